package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/promptlab/promptlab/internal/config"
	"github.com/promptlab/promptlab/internal/domain"
	"github.com/promptlab/promptlab/internal/experiment"
	"github.com/promptlab/promptlab/internal/export"
)

var (
	runDemoMode   bool
	runRuns       int
	runWorkers    int
	runOutput     string
	runPromptFile string
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run an experiment file and print the aggregate",
	Long: `Runs the experiment described by a YAML file against the providers
configured in the environment and prints per-run outcomes plus the
aggregated metrics. Results go to stdout; logs go to stderr.`,
	Example: `  # Run an experiment against live providers
  promptlab run experiment.yaml

  # Same experiment without credentials, using the mock generator
  promptlab run experiment.yaml --demo

  # Save the flattened per-run records next to the terminal report
  promptlab run experiment.yaml -o results.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExperiment(args[0])
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runDemoMode, "demo", false, "Use the mock generator instead of live providers")
	runCmd.Flags().IntVar(&runRuns, "runs", 0, "Override the number of runs per configuration")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Concurrent generation units (defaults to WORKERS)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Write flattened results to a .csv or .json file")
	runCmd.Flags().StringVarP(&runPromptFile, "prompt-file", "p", "", "Read the prompt from a file (overrides the experiment file)")
}

// experimentFile is the YAML shape of a terminal experiment.
type experimentFile struct {
	Prompt  string                 `yaml:"prompt"`
	Runs    int                    `yaml:"runs"`
	Notes   string                 `yaml:"notes"`
	Configs []experimentFileConfig `yaml:"configs"`
}

// experimentFileConfig mirrors the API's model configuration input.
// Pointer fields keep absent values distinct from explicit zeros so
// defaulting works the same as over HTTP.
type experimentFileConfig struct {
	Provider         string   `yaml:"provider"`
	ModelName        string   `yaml:"model_name"`
	Temperature      *float64 `yaml:"temperature"`
	MaxTokens        *int     `yaml:"max_tokens"`
	TopP             *float64 `yaml:"top_p"`
	FrequencyPenalty *float64 `yaml:"frequency_penalty"`
	PresencePenalty  *float64 `yaml:"presence_penalty"`
}

func loadExperimentFile(path string) (*experimentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiment file: %w", err)
	}
	var f experimentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse experiment file: %w", err)
	}
	return &f, nil
}

func (f *experimentFile) modelConfigs() ([]domain.ModelConfig, error) {
	configs := make([]domain.ModelConfig, 0, len(f.Configs))
	for i, c := range f.Configs {
		cfg, err := domain.NewModelConfig(domain.ModelConfigParams{
			Provider:         domain.Provider(c.Provider),
			ModelName:        c.ModelName,
			Temperature:      c.Temperature,
			MaxTokens:        c.MaxTokens,
			TopP:             c.TopP,
			FrequencyPenalty: c.FrequencyPenalty,
			PresencePenalty:  c.PresencePenalty,
		})
		if err != nil {
			return nil, fmt.Errorf("config %d: %w", i, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func runExperiment(path string) error {
	file, err := loadExperimentFile(path)
	if err != nil {
		return err
	}

	if runPromptFile != "" {
		data, err := os.ReadFile(runPromptFile)
		if err != nil {
			return fmt.Errorf("read prompt file: %w", err)
		}
		file.Prompt = strings.TrimSpace(string(data))
	}
	if runRuns > 0 {
		file.Runs = runRuns
	}
	if file.Runs == 0 {
		file.Runs = experiment.DefaultRuns
	}

	configs, err := file.modelConfigs()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runDemoMode {
		cfg.DemoMode = true
	}
	workers := cfg.Workers
	if runWorkers > 0 {
		workers = runWorkers
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dispatcher := buildDispatcher(ctx, cfg)
	runner := experiment.NewRunner(dispatcher, workers)

	exp, err := runner.Run(ctx, experiment.Request{
		Prompt:  file.Prompt,
		Configs: configs,
		Runs:    file.Runs,
		Notes:   file.Notes,
	})
	if err != nil {
		return err
	}

	printExperiment(os.Stdout, exp, len(configs))

	if runOutput != "" {
		if err := writeResults(runOutput, exp); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "\nResults written to %s\n", runOutput)
	}

	return nil
}

func printExperiment(w io.Writer, exp *domain.Experiment, configCount int) {
	fmt.Fprintf(w, "Experiment %s (%d ms)\n", exp.ID, exp.DurationMs)
	fmt.Fprintf(w, "Prompt: %s\n", exp.Prompt)
	fmt.Fprintf(w, "Configs: %d, total runs: %d\n\n", configCount, len(exp.Results))

	for i, res := range exp.Results {
		line := fmt.Sprintf("  [%d] %s/%s run %d: %s",
			i+1, res.Config.Provider, res.Config.ModelName, res.RunNumber, res.Outcome.Status)
		if res.Outcome.Status == domain.StatusFallback {
			line += " (mock, cause: " + string(res.Outcome.ErrorKind) + ")"
		}
		if res.Outcome.Error != "" && res.Outcome.Status == domain.StatusFailed {
			line += " (" + res.Outcome.Error + ")"
		}
		fmt.Fprintln(w, line)
	}

	summary := exp.Summary
	fmt.Fprintf(w, "\nSuccess rate: %.1f%% (%d responses)\n", summary.SuccessRate*100, summary.TotalResponses)
	if len(summary.Metrics) == 0 {
		return
	}

	names := make([]string, 0, len(summary.Metrics))
	for name := range summary.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "\n  %-20s %12s %12s %12s\n", "metric", "avg", "min", "max")
	for _, name := range names {
		stats := summary.Metrics[name]
		fmt.Fprintf(w, "  %-20s %12.2f %12.2f %12.2f\n", name, stats.Avg, stats.Min, stats.Max)
	}
}

// writeResults flattens the experiment into per-run records and writes
// them in the format implied by the file extension.
func writeResults(path string, exp *domain.Experiment) error {
	format, err := export.ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return fmt.Errorf("output file %q: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	if err := export.Write(f, format, export.Flatten([]*domain.Experiment{exp})); err != nil {
		f.Close()
		return fmt.Errorf("write results: %w", err)
	}
	return f.Close()
}
