package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mailnerd/internal/config"
)

var (
	// Global flags
	verbose    bool
	configFile string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mailnerd",
	Short: "mailNERD - deterministic entity extraction for email triage",
	Long: `mailNERD extracts structured entities (emails, fiscal codes, VAT numbers,
IBANs, phone numbers, dates, amounts, case numbers) from normalized email
text.

Three engines run in sequence - curated regexes, a selective NER model and
a domain lexicon - and a deterministic resolver merges their candidates:
the same input and configuration always produce byte-identical output.

The NER engine degrades gracefully: when the model is unavailable, the
language is unsupported or inference times out, the run still succeeds on
the deterministic engines and records the skip reason in the envelope.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// versionCmd prints the extraction layer version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the extraction layer version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.LayerVersion)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Pipeline config file (YAML or JSON; or set NER_CONFIG_FILE)")

	// Add commands to root
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective pipeline configuration: explicit
// --config file first, then NER_CONFIG_FILE plus env overrides.
func loadConfig() (*config.Pipeline, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	return config.FromEnv(), nil
}
