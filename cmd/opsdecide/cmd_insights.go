package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
	"github.com/spf13/cobra"
)

func newInsightsCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Show aggregates rebuilt from the history log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.HistoryEnabled() {
				return errors.New("history is disabled in configuration; no insights to show")
			}

			eng, err := newEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer eng.Close() //nolint:errcheck

			snap := eng.insights.Snapshot()
			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			printInsights(out, snap)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the snapshot as JSON")

	return cmd
}

func printInsights(w io.Writer, s models.Insights) {
	fmt.Fprintf(w, "Total decisions:     %d\n", s.TotalDecisions)      //nolint:errcheck
	fmt.Fprintf(w, "Average confidence:  %.2f\n", s.AverageConfidence) //nolint:errcheck
	if s.LastDecisionAt != nil {
		fmt.Fprintf(w, "Last decision:       %s\n", s.LastDecisionAt.Format("2006-01-02 15:04:05Z07:00")) //nolint:errcheck
	}

	fmt.Fprintln(w, "\nBy scenario type:") //nolint:errcheck
	for _, st := range models.AllScenarioTypes() {
		fmt.Fprintf(w, "  %s %d\n", padRight(string(st), 22), s.ByScenarioType[st]) //nolint:errcheck
	}

	fmt.Fprintln(w, "\nBy method:") //nolint:errcheck
	methods := make([]string, 0, len(s.ByMethod))
	for m := range s.ByMethod {
		methods = append(methods, string(m))
	}
	slices.Sort(methods)
	for _, m := range methods {
		fmt.Fprintf(w, "  %s %d\n", padRight(m, 22), s.ByMethod[models.AnalysisMethod(m)]) //nolint:errcheck
	}

	fmt.Fprintln(w, "\nRisk distribution:") //nolint:errcheck
	for _, r := range models.AllRiskLevels() {
		fmt.Fprintf(w, "  %s %d\n", padRight(string(r), 22), s.RiskDistribution[r]) //nolint:errcheck
	}

	p := s.Performance
	fmt.Fprintln(w, "\nPerformance:")                                                        //nolint:errcheck
	fmt.Fprintf(w, "  Outcomes reported          %d\n", p.OutcomesReported)                  //nolint:errcheck
	fmt.Fprintf(w, "  Accuracy                   %.1f%%\n", p.Accuracy*100)                  //nolint:errcheck
	fmt.Fprintf(w, "  Implementation success     %.1f%%\n", p.ImplementationSuccessRate*100) //nolint:errcheck
	fmt.Fprintf(w, "  Cost savings (USD)         %.0f\n", p.CostSavingsUSD)                  //nolint:errcheck
	fmt.Fprintf(w, "  Time savings (min)         %.0f\n", p.TimeSavingsMinutes)              //nolint:errcheck
}
