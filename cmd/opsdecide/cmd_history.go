package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/history"
	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and export the decision log",
	}
	cmd.AddCommand(newHistoryExportCommand())
	cmd.AddCommand(newHistoryStatsCommand())
	cmd.AddCommand(newHistoryVerifyCommand())
	return cmd
}

func newHistoryExportCommand() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the decision log as zstd-compressed JSON lines",
		Long: `Export every recorded analysis and outcome as zstd-compressed JSON lines.

Writes to --out, or to stdout when --out is "-" or omitted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, cerr := os.Create(outPath)
				if cerr != nil {
					return fmt.Errorf("creating export file: %w", cerr)
				}
				defer func() {
					if cerr := f.Close(); cerr != nil && err == nil {
						err = fmt.Errorf("closing export file: %w", cerr)
					}
				}()
				w = f
			}

			n, err := store.Export(cmd.Context(), w)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d records from %s\n", n, store.Path()) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (e.g. history.jsonl.zst)")

	return cmd
}

func newHistoryStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show how many records the decision log holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			analyses, outcomes, err := store.Counts(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Log:       %s\n", store.Path()) //nolint:errcheck
			fmt.Fprintf(out, "Analyses:  %d\n", analyses)     //nolint:errcheck
			fmt.Fprintf(out, "Outcomes:  %d\n", outcomes)     //nolint:errcheck
			return nil
		},
	}
}

func newHistoryVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <export-file>",
		Short: "Check that an export file decodes and count its records",
		Long: `Decode every record of a file written by "history export" and check that
each analysis is internally consistent. Prints the record counts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening export file: %w", err)
			}
			defer f.Close() //nolint:errcheck

			sum, err := verifyExport(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Analyses:  %d (%d with a primary recommendation)\n", sum.analyses, sum.withPrimary) //nolint:errcheck
			fmt.Fprintf(out, "Outcomes:  %d\n", sum.outcomes)                                                     //nolint:errcheck
			return nil
		},
	}
}

type exportSummary struct {
	analyses    int
	withPrimary int
	outcomes    int
}

// verifyExport decodes an export and rejects records that could not have
// been written by a healthy engine.
func verifyExport(r io.Reader) (exportSummary, error) {
	var sum exportSummary
	n := 0
	err := history.ReadExport(r, func(rec history.Record) error {
		n++
		switch rec.Kind {
		case history.KindAnalysis:
			a := rec.Analysis
			if a == nil {
				return fmt.Errorf("record %d: analysis record without payload", n)
			}
			if a.OptionsAnalyzed != len(a.OptionsAnalysis) {
				return fmt.Errorf("record %d: scenario %s lists %d options but analysed %d",
					n, a.ScenarioID, len(a.OptionsAnalysis), a.OptionsAnalyzed)
			}
			sum.analyses++
			if _, ok := a.PrimaryRecommendation(); ok {
				sum.withPrimary++
			}
		case history.KindOutcome:
			if rec.Outcome == nil {
				return fmt.Errorf("record %d: outcome record without payload", n)
			}
			sum.outcomes++
		default:
			return fmt.Errorf("record %d: unknown kind %q", n, rec.Kind)
		}
		return nil
	})
	return sum, err
}

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if !cfg.HistoryEnabled() {
		return nil, errors.New("history is disabled in configuration")
	}
	return history.Open(cfg.HistoryPath())
}
