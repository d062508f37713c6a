package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wisp/wisp/pkg/logger"
	"github.com/wisp/wisp/pkg/types"
)

func newExplainCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "explain [event]",
		Short: "Show the layered execution plan for an event type",
		Long: `Render the resolved execution plan for one event type, or for every
subscribed event type when no argument is given. Handlers in the same layer
have no ordering dependency between them and may run concurrently.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventArg := ""
			if len(args) > 0 {
				eventArg = args[0]
			}
			return runExplain(eventArg, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the plan as JSON")

	return cmd
}

func runExplain(eventArg string, asJSON bool) error {
	cfg, err := loadConfigFile(getConfigPath(), nil)
	if err != nil {
		return err
	}

	log := logger.CreateLoggerWithOutput("", verbosity, nil)
	p, err := buildPipeline(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	var events []types.EventType
	if eventArg != "" {
		event := types.EventType(eventArg)
		if !event.IsValid() {
			return fmt.Errorf("unknown event type: %q", eventArg)
		}
		events = []types.EventType{event}
	} else {
		events = p.EventTypes()
		if len(events) == 0 {
			printInfo("No hooks subscribed to any event")
			return nil
		}
	}

	if asJSON {
		return explainJSON(p, events)
	}

	for _, event := range events {
		layers, err := p.ExplainPlan(event)
		if err != nil {
			return err
		}
		printPlan(event, layers)
	}
	return nil
}

func explainJSON(p planExplainer, events []types.EventType) error {
	plans := make(map[types.EventType][][]string, len(events))
	for _, event := range events {
		layers, err := p.ExplainPlan(event)
		if err != nil {
			return err
		}
		plans[event] = layers
	}
	return writeJSON(os.Stdout, plans)
}

// planExplainer lets tests substitute the pipeline
type planExplainer interface {
	ExplainPlan(event types.EventType) ([][]string, error)
}

func printPlan(event types.EventType, layers [][]string) {
	fmt.Fprintf(os.Stderr, "\n%s\n", color.CyanString("Event: %s", string(event)))
	if len(layers) == 0 {
		fmt.Fprintln(os.Stderr, "  (no subscribed hooks)")
		return
	}

	w := tabwriter.NewWriter(os.Stderr, 0, 0, 2, ' ', 0)
	for i, layer := range layers {
		fmt.Fprintf(w, "  layer %d\t%s\n", i, strings.Join(layer, ", "))
	}
	w.Flush()
}
