package gpt2

import "errors"

var (
	// ErrInvalidConfig is returned for config.json files the model cannot be
	// built from.
	ErrInvalidConfig = errors.New("invalid gpt2 config")

	// ErrMissingTensor is returned when a checkpoint lacks a required weight.
	ErrMissingTensor = errors.New("missing tensor")
)
