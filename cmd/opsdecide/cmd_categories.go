package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/catalog"
	"github.com/spf13/cobra"
)

func newCategoriesCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List supported scenario types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := catalog.Categories()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cats)
			}

			for _, c := range cats {
				fmt.Fprintf(out, "%s (%s)\n", c.Name, c.Type)                      //nolint:errcheck
				fmt.Fprintf(out, "  %s\n", c.Description)                          //nolint:errcheck
				fmt.Fprintf(out, "  Factors: %s\n", strings.Join(c.Factors, ", ")) //nolint:errcheck
				for _, ex := range c.Examples {
					fmt.Fprintf(out, "  - %s\n", ex) //nolint:errcheck
				}
				fmt.Fprintln(out) //nolint:errcheck
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the catalogue as JSON")

	return cmd
}
