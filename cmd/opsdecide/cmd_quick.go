package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/quick"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// promptQuick is a test hook for replacing the interactive form in tests.
// It fills in scenario type and urgency and reports whether it ran.
var promptQuick = defaultPromptQuick

func defaultPromptQuick(in io.Reader, out io.Writer, scenarioType, urgency *string) (bool, error) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, nil
	}

	typeOptions := make([]huh.Option[string], 0, len(models.AllScenarioTypes()))
	for _, st := range models.AllScenarioTypes() {
		typeOptions = append(typeOptions, huh.NewOption(string(st), string(st)))
	}

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Scenario type").
				Options(typeOptions...).
				Value(scenarioType),
			huh.NewSelect[string]().
				Title("Urgency").
				Options(
					huh.NewOption("Critical", string(models.UrgencyCritical)),
					huh.NewOption("High", string(models.UrgencyHigh)),
					huh.NewOption("Medium", string(models.UrgencyMedium)),
					huh.NewOption("Low", string(models.UrgencyLow)),
				).
				Value(urgency),
		),
	).WithInput(in).WithOutput(out).Run()
	if err != nil {
		return false, fmt.Errorf("quick recommendation form: %w", err)
	}
	return true, nil
}

func newQuickCommand() *cobra.Command {
	var scenarioType, urgency, flight, airport string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "quick",
		Short: "Get a canned action plan for a scenario type and urgency",
		Long: `Get a policy-defined action plan without scoring any options.

When --type or --urgency is missing and stdin is a terminal, an interactive
form asks for them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if scenarioType == "" || urgency == "" {
				ran, err := promptQuick(cmd.InOrStdin(), cmd.ErrOrStderr(), &scenarioType, &urgency)
				if err != nil {
					return err
				}
				if !ran {
					return errors.New("--type and --urgency are required when stdin is not a terminal")
				}
			}

			callerCtx := map[string]any{}
			if flight != "" {
				callerCtx["flightNumber"] = flight
			}
			if airport != "" {
				callerCtx["nearestAirport"] = airport
			}

			plan := quick.Lookup(scenarioType, urgency, callerCtx)

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}
			printPlan(out, plan)
			return nil
		},
	}

	cmd.Flags().StringVar(&scenarioType, "type", "", "Scenario type (diversion, delay_management, route_optimization, resource_allocation)")
	cmd.Flags().StringVar(&urgency, "urgency", "", "Urgency (low, medium, high, critical)")
	cmd.Flags().StringVar(&flight, "flight", "", "Flight number to personalise the plan")
	cmd.Flags().StringVar(&airport, "airport", "", "Nearest suitable airport (diversions)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the plan as JSON")

	return cmd
}

func printPlan(w io.Writer, plan models.CannedPlan) {
	fmt.Fprintf(w, "%s / %s\n\n", plan.ScenarioType, plan.Urgency) //nolint:errcheck
	fmt.Fprintf(w, "Action:      %s\n", plan.Action)               //nolint:errcheck
	fmt.Fprintf(w, "Rationale:   %s\n", plan.Rationale)            //nolint:errcheck
	fmt.Fprintf(w, "Decide:      %s\n", plan.TimeToDecision)       //nolint:errcheck
	fmt.Fprintf(w, "Confidence:  %.0f%%\n\n", plan.Confidence*100) //nolint:errcheck
	fmt.Fprintln(w, "Immediate steps:")                            //nolint:errcheck
	for i, step := range plan.ImmediateSteps {
		fmt.Fprintf(w, "  %d. %s\n", i+1, step) //nolint:errcheck
	}
}
