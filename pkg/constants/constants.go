package constants

import (
	"strconv"
	"strings"
)

// Agent Constants
var (
	AgentName    = "garr-agent"
	AgentAppName = "GARR_AGENT"
)

// Serving Defaults
const (
	DefaultServingHost      = "0.0.0.0"
	DefaultServingPort      = 8000
	DefaultServingModelPath = "weights/garr-epoch-0"
	PredictPath             = "/predict"
	HealthPath              = "/healthz"
	MetricsPath             = "/metrics"
)

// Training Defaults
const (
	DefaultDataPath        = "data/query_result.csv"
	DefaultOutputDir       = "weights"
	DefaultPretrainedModel = "gpt2"
	DefaultEpochs          = 4
	DefaultBatchSize       = 2
	DefaultLearningRate    = 2e-5
	DefaultAdamEpsilon     = 1e-8
	DefaultMaxGradNorm     = 1.0
	DefaultTestSize        = 0.3
	DefaultSeed            = 42
)

// Client Defaults
const (
	DefaultPredictURL  = "http://localhost:8000"
	DefaultPredictText = "Omicron has caused significant disruptions in global supply chains"
)

// Hub Defaults
const (
	DefaultHubEndpoint = "https://huggingface.co"
	DefaultHubRevision = "main"
	DefaultHubRepoID   = "gpt2"
)

// Model Files
const (
	ModelConfigFile  = "config.json"
	ModelWeightsFile = "model.safetensors"
	VocabFile        = "vocab.json"
	MergesFile       = "merges.txt"
	MetricsFile      = "metrics.json"
	EvaluationFile   = "evaluation.json"
	ReportFile       = "evaluation.txt"
	LossPlotFile     = "loss.png"
	AccuracyPlotFile = "accuracy.png"
)

// GPT2EndOfText is the id of <|endoftext|>, used both as eos and pad.
const GPT2EndOfText = 50256

// DefaultLabels are the news risk classes in id order. The ids are the
// sorted order of the names, which is how the production checkpoints
// number them.
var DefaultLabels = []string{
	"commodities",
	"compliance",
	"delays",
	"environmental",
	"financial health",
	"supplier market",
}

// CheckpointDirName returns the checkpoint directory name for a 1-based epoch.
func CheckpointDirName(epoch int) string {
	return "epoch_" + strconv.Itoa(epoch)
}

// EnvVarKey returns the environment variable overriding the viper key.
func EnvVarKey(key string) string {
	return AgentAppName + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
