// Package cli defines the promptlab command tree. The serve command runs
// the HTTP API, run executes an experiment file from the terminal, and
// models prints the known pricing table.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/promptlab/promptlab/internal/api"
)

var rootCmd = &cobra.Command{
	Use:   "promptlab",
	Short: "Prompt experimentation across LLM providers",
	Long: `Promptlab runs the same prompt against multiple model configurations,
scores every response, and aggregates the results so configurations can be
compared side by side. Provider failures caused by quota or auth problems
degrade to a deterministic mock generator instead of failing the run.`,
	Version:       api.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}
