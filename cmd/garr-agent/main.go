package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/garr-ai/garr/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:     "garr-agent",
	Short:   "Run GARR Agent",
	Long:    "GARR Agent serves, fine-tunes and queries the GPT-2 news risk classifier.",
	Version: version.String(),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(CreateAgentCommand(NewServingAgent()))
	rootCmd.AddCommand(CreateAgentCommand(NewTrainingAgent()))
	rootCmd.AddCommand(CreateAgentCommand(NewPredictAgent()))
	rootCmd.AddCommand(CreateAgentCommand(NewPretrainedDownloadAgent()))
}
