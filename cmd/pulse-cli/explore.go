package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"pulse/internal/core"
	"pulse/internal/export"
)

func newDatasetsCmd(opts *rootOptions) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List the dataset catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(core.Datasets()))
			if !check {
				for _, d := range core.Datasets() {
					rows = append(rows, []string{d.ID, d.Label, d.File, string(d.Kind)})
				}
				renderTable(out, []string{"ID", "Label", "File", "Kind"}, rows)
				return nil
			}

			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report := a.datasets.WarmAll(cmd.Context())
			for _, d := range core.Datasets() {
				status, count := "ok", "-"
				if err := report.Failed[d.File]; err != nil {
					status = err.Error()
				} else if t, err := a.datasets.Load(cmd.Context(), d.File); err == nil {
					count = strconv.Itoa(t.Len())
				}
				rows = append(rows, []string{d.ID, d.File, count, status})
			}
			renderTable(out, []string{"ID", "File", "Rows", "Status"}, rows)
			if !report.OK() {
				warn(out, "%d of %d datasets unavailable", len(report.Failed), len(core.Datasets()))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Load every dataset and report row counts")
	return cmd
}

type filterFlags struct {
	dataset string
	filters []string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dataset, "dataset", "d", core.Datasets()[0].ID, "Dataset id, label or file name")
	cmd.Flags().StringArrayVarP(&f.filters, "filter", "f", nil, "Filter as Column=value[,value...] (repeatable)")
}

func (f *filterFlags) constraints() ([]core.Constraint, error) {
	out := make([]core.Constraint, 0, len(f.filters))
	for _, s := range f.filters {
		c, err := core.ParseConstraint(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func newPreviewCmd(opts *rootOptions) *cobra.Command {
	var (
		flags filterFlags
		limit int
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the rows of a dataset matching the filters",
		Example: `  pulse-cli preview -d agg-trans -f State=Goa,Kerala -f Year=2022
  pulse-cli preview -d top-user-pin -n 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			constraints, err := flags.constraints()
			if err != nil {
				return err
			}
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ex, err := a.explorer.Explore(cmd.Context(), flags.dataset, constraints, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			heading(out, "%s (%s)", ex.Dataset.Label, ex.Dataset.File)
			if !ex.Matched {
				warn(out, "No rows match the selected filters")
				return nil
			}
			renderTable(out, ex.Preview.Columns(), ex.Preview.Rows())
			fmt.Fprintf(out, "Showing %d of %d matching rows (%d total)\n", ex.Preview.Len(), ex.Filtered.Len(), ex.Table.Len())
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to print (0 prints all)")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		flags filterFlags
		out   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered rows of a dataset to a CSV or XLSX file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := export.ParseFormat(outputFormat(out))
			if err != nil {
				return err
			}
			constraints, err := flags.constraints()
			if err != nil {
				return err
			}
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			d, tbl, err := a.explorer.Export(cmd.Context(), flags.dataset, constraints)
			if err != nil {
				return err
			}
			if err := writeFile(out, func(w io.Writer) error { return export.Table(w, format, tbl) }); err != nil {
				return err
			}
			if tbl.Empty() {
				warn(cmd.OutOrStdout(), "No rows match the selected filters; wrote the header only")
			}
			success(cmd.OutOrStdout(), "Exported %d rows of %s to %s", tbl.Len(), d.File, out)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (.csv or .xlsx)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
