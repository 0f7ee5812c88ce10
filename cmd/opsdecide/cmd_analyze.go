package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/spinner"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/validation"
	"github.com/spf13/cobra"
)

func newAnalyzeCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "analyze [scenario-file|-]",
		Short: "Analyze a decision scenario",
		Long: `Analyze a decision scenario read from a JSON or YAML file, or from stdin
when the argument is "-" or omitted.

The scenario is scored by the configured backend or, when it is missing or
fails, by the rule-based scorer. The analysis is recorded in the history log.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := readScenario(cmd, args)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			eng, err := newEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer eng.Close() //nolint:errcheck

			stop := func() {}
			if eng.adapter != nil && spinner.Enabled(cmd.ErrOrStderr()) {
				stop = spinner.Start(cmd.ErrOrStderr(), "Waiting for "+eng.adapter.Name())
			}
			result := eng.dispatcher.Analyze(cmd.Context(), scenario)
			stop()

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printAnalysis(cmd.OutOrStdout(), scenario, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw analysis as JSON")

	return cmd
}

func readScenario(cmd *cobra.Command, args []string) (*models.DecisionScenario, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading scenario from stdin: %w", err)
		}
		return validation.ParseScenario(data)
	}
	return validation.ParseScenarioFile(args[0])
}

const maxOptionNameWidth = 32

func printAnalysis(w io.Writer, scenario *models.DecisionScenario, a *models.DecisionAnalysis) {
	fmt.Fprintf(w, "Scenario:  %s (%s)\n", a.ScenarioID, a.ScenarioType) //nolint:errcheck
	fmt.Fprintf(w, "Method:    %s\n", a.AnalysisMethod)                  //nolint:errcheck
	fmt.Fprintf(w, "Options:   %d\n", a.OptionsAnalyzed)                 //nolint:errcheck
	if primary, ok := a.PrimaryRecommendation(); ok {
		fmt.Fprintf(w, "Primary:   %s\n", primary.Action) //nolint:errcheck
	}
	fmt.Fprintln(w) //nolint:errcheck

	if len(a.OptionsAnalysis) == 0 {
		fmt.Fprintln(w, "No options to rank.") //nolint:errcheck
		return
	}

	nameWidth := runewidth.StringWidth("OPTION")
	names := make([]string, len(a.OptionsAnalysis))
	for i, o := range a.OptionsAnalysis {
		name := o.OptionID
		if opt, ok := scenario.OptionByID(o.OptionID); ok {
			name = opt.DisplayName()
		}
		names[i] = runewidth.Truncate(name, maxOptionNameWidth, "…")
		nameWidth = max(nameWidth, runewidth.StringWidth(names[i]))
	}

	fmt.Fprintf(w, "%-4s  %s  %-5s  %-8s  %s\n", "RANK", padRight("OPTION", nameWidth), "SCORE", "RISK", "CONFIDENCE") //nolint:errcheck
	fmt.Fprintln(w, strings.Repeat("─", 4+2+nameWidth+2+5+2+8+2+10))                                                   //nolint:errcheck
	for i, o := range a.OptionsAnalysis {
		fmt.Fprintf(w, "%-4d  %s  %.3f  %-8s  %.2f\n", //nolint:errcheck
			o.RecommendationRank, padRight(names[i], nameWidth), o.TotalScore, o.RiskLevel, o.Confidence)
	}

	if len(a.Recommendations) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRecommendations:") //nolint:errcheck
	for _, r := range a.Recommendations {
		fmt.Fprintf(w, "  [%s] %s\n", r.Type, r.Action) //nolint:errcheck
		if r.Rationale != "" {
			fmt.Fprintf(w, "      %s\n", r.Rationale) //nolint:errcheck
		}
		if r.ExpectedOutcome != "" {
			fmt.Fprintf(w, "      %s\n", r.ExpectedOutcome) //nolint:errcheck
		}
	}
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
