// Package gpt2test builds small randomly initialized models for tests.
package gpt2test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/garr-ai/garr/pkg/gpt2"
)

// Vocab matches tokenizertest.Bytes{Vocab: Vocab}; its last id pads.
const Vocab = 11

// Config is a two layer, two head model with an eight token context.
func Config(labels []string) gpt2.Config {
	c := gpt2.DefaultConfig()
	c.VocabSize = Vocab
	c.NPositions = 8
	c.NEmbd = 8
	c.NLayer = 2
	c.NHead = 2
	c.InitializerRange = 0.3
	c.BosTokenID = Vocab - 1
	c.EosTokenID = Vocab - 1
	return c.WithLabels(labels, Vocab-1)
}

func Model(t testing.TB, labels []string) *gpt2.Model {
	t.Helper()
	m, err := gpt2.New(Config(labels), 7)
	require.NoError(t, err)
	return m
}
