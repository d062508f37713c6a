package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wisp/wisp/internal/pipeline"
	"github.com/wisp/wisp/pkg/config"
	"github.com/wisp/wisp/pkg/logger"
	"github.com/wisp/wisp/pkg/types"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured hooks",
		Long:  `List all hooks defined in the configuration file, with their events, priorities and dependencies.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList()
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long:  `Check that the configuration file is valid and the hook dependency graph is well-formed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate()
		},
	}
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter configuration file",
		Long:  `Write a wisp.config.json with the built-in hooks enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of Wisp",
		Long:  `Print the version number of Wisp`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("🪝 Wisp v%s\n", version)
		},
	}
}

// Implementation functions

func runList() error {
	cfg, err := loadConfigFile(getConfigPath(), nil)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stderr, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tEVENTS\tPRIORITY\tDEPENDS ON\tON ERROR\tENABLED")
	fmt.Fprintln(w, "--\t----\t------\t--------\t----------\t--------\t-------")

	for _, hook := range cfg.Hooks {
		events := make([]string, len(hook.Events))
		for i, ev := range hook.Events {
			events[i] = string(ev)
		}

		dependsOn := "-"
		if len(hook.DependsOn) > 0 {
			dependsOn = strings.Join(hook.DependsOn, ", ")
		}

		onError := string(hook.OnError)
		if onError == "" {
			onError = string(types.ErrorStrategyContinue)
		}

		enabled := color.GreenString("yes")
		if !hook.IsEnabled() {
			enabled = color.YellowString("no")
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			hook.ID, hook.Kind, strings.Join(events, ", "),
			hook.Priority, dependsOn, onError, enabled)
	}

	return w.Flush()
}

func runValidate() error {
	configPath := getConfigPath()

	cfg, err := loadConfigFile(configPath, nil)
	if err != nil {
		printError(fmt.Sprintf("Configuration invalid: %v", err))
		return err
	}

	// Building the pipeline catches what static validation cannot: unknown
	// dependencies across enabled hooks and dependency cycles.
	log := logger.CreateLoggerWithOutput("", verbosity, nil)
	if _, err := buildPipeline(cfg, log); err != nil {
		var cfgErr *pipeline.ConfigurationError
		if errors.As(err, &cfgErr) {
			printError(fmt.Sprintf("Dependency graph invalid: %v", cfgErr))
		} else {
			printError(fmt.Sprintf("Configuration invalid: %v", err))
		}
		return err
	}

	printSuccess(fmt.Sprintf("Configuration valid: %d hooks (%s)", len(cfg.Hooks), configPath))
	return nil
}

func runInit(force bool) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
	}

	manager := config.NewManager(nil)
	cfg := manager.GetDefaultConfig()

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := writeJSON(file, cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printSuccess(fmt.Sprintf("Created %s", configPath))
	return nil
}
