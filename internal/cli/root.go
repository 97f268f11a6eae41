// Package cli implements the narrator command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/dgallion1/narrator/internal/config"
)

var (
	version = "dev"

	configPath string
	logLevel   string
	logFormat  string
	logFile    string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "narrator",
	Short: "Turn scanned books and documents into narrated audio",
	Long: `Narrator extracts the text of a document (running OCR on scanned pages),
corrects recognition errors with a language model and synthesizes the
corrected text into a single WAV file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(cmd.Context(), configPath)
		if err != nil {
			return err
		}
		loaded.LogLevel = logLevel
		loaded.LogFormat = logFormat
		if cmd.Flags().Changed("log-file") {
			loaded.LogFile = logFile
		}
		cfg = loaded
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("narrator version %s\n", version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file (default $"+config.EnvConfigFile+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "error", "log level: debug, info, warn, error, critical")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")

	rootCmd.AddCommand(versionCmd)
}
