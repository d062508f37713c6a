// Package cli provides the command-line interface for Wisp
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	projectRoot string
	verbosity   string
	logFile     string
	version     string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wisp",
	Short: "Hook pipeline runner for AI coding assistants",
	Long: `🪝 Wisp - Dependency-aware hook execution for assistant lifecycle events

Wisp receives a lifecycle event from your coding assistant, runs the
configured hook handlers in dependency order, and reports the merged
decision, context and environment back on stdout.`,

	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("🪝 Wisp v%s\n", version)
			return
		}
		// If no subcommand, show help
		cmd.Help()
	},
}

// Execute runs the CLI
func Execute(v string) error {
	version = v

	// Initialize the root command explicitly (avoiding init())
	initializeRootCommand()

	return rootCmd.Execute()
}

// initializeRootCommand sets up the root command and its flags.
// This replaces the init() function to make initialization explicit and testable.
func initializeRootCommand() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: wisp.config.json)")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", ".", "project root directory")
	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to a file instead of stderr")

	rootCmd.Flags().Bool("version", false, "Print version information and quit")

	// Add subcommands
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newExplainCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in project root
		viper.AddConfigPath(projectRoot)
		viper.SetConfigName("wisp.config")
		viper.SetConfigType("json")
	}

	// Read in environment variables
	viper.SetEnvPrefix("WISP")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbosity == "debug" {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// Helper functions. Everything human-facing goes to stderr; stdout is
// reserved for the pipeline result JSON.

func printSuccess(message string) {
	fmt.Fprintf(os.Stderr, "🪝 %s %s\n", color.GreenString("[Wisp]"), message)
}

func printError(message string) {
	fmt.Fprintf(os.Stderr, "🪝 %s %s\n", color.RedString("[Wisp]"), message)
}

func printInfo(message string) {
	fmt.Fprintf(os.Stderr, "🪝 %s %s\n", color.CyanString("[Wisp]"), message)
}

func printWarning(message string) {
	fmt.Fprintf(os.Stderr, "🪝 %s %s\n", color.YellowString("[Wisp]"), message)
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return filepath.Join(projectRoot, "wisp.config.json")
}
