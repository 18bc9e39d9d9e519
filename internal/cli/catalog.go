package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"healthTrackerAPI/internal/achievement"
)

type CatalogSummary struct {
	Valid        bool   `json:"valid"`
	Source       string `json:"source"`
	Achievements int    `json:"achievements"`
	Fields       int    `json:"fields"`
	Error        string `json:"error,omitempty"`
}

func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the achievement catalog",
	}
	cmd.AddCommand(newCatalogValidateCommand(rootOpts))
	return cmd
}

func newCatalogValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a catalog file, or the built-in catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = os.Getenv("CATALOG_PATH")
			}
			return runCatalogValidate(cmd, rootOpts, file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog YAML file (default: $CATALOG_PATH or built-in)")
	return cmd
}

func runCatalogValidate(cmd *cobra.Command, opts *RootOptions, file string) error {
	summary := CatalogSummary{Source: file}
	if file == "" {
		summary.Source = "built-in"
	}

	catalog, err := achievement.LoadCatalog(file)
	if err != nil {
		summary.Error = err.Error()
	} else {
		summary.Valid = true
		summary.Achievements = catalog.Len()
		summary.Fields = len(catalog.Fields())
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		if werr := writeJSON(out, summary); werr != nil {
			return werr
		}
	} else if summary.Valid {
		fmt.Fprintf(out, "%s: %d achievements over %d fields\n", summary.Source, summary.Achievements, summary.Fields)
	}
	return err
}
