package main

import (
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pulse/internal/charts"
	"pulse/internal/core"
	"pulse/internal/export"
	"pulse/internal/recipes"
)

func newViewsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "List the prepared chart views",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all := recipes.Default().All()
			rows := make([][]string, 0, len(all))
			for _, rc := range all {
				rows = append(rows, []string{string(rc.ID), rc.Title, rc.Dataset, string(rc.Chart)})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "Title", "Dataset", "Chart"}, rows)
			return nil
		},
	}
}

func newViewCmd(opts *rootOptions) *cobra.Command {
	var (
		chartPath  string
		exportPath string
	)
	cmd := &cobra.Command{
		Use:   "view NAME",
		Short: "Compute a view and print its derived table",
		Example: `  pulse-cli view top-brands
  pulse-cli view states-by-amount --chart states.png --out states.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.views.Render(cmd.Context(), args[0])
			if err != nil {
				var se *core.SchemaError
				if errors.As(err, &se) {
					warn(cmd.ErrOrStderr(), "Missing columns: %s", strings.Join(se.Missing, ", "))
				}
				return err
			}

			out := cmd.OutOrStdout()
			heading(out, "%s", res.Title)
			if res.Empty() {
				warn(out, "The view has no rows")
				return nil
			}
			renderTable(out, res.Columns, res.Rows)

			if chartPath != "" {
				format, err := charts.ParseFormat(outputFormat(chartPath))
				if err != nil {
					return err
				}
				renderer := charts.NewRenderer(a.cfg.ChartWidth, a.cfg.ChartHeight)
				if err := writeFile(chartPath, func(w io.Writer) error { return renderer.Render(w, res, format) }); err != nil {
					return err
				}
				success(out, "Chart written to %s", chartPath)
			}
			if exportPath != "" {
				format, err := export.ParseFormat(outputFormat(exportPath))
				if err != nil {
					return err
				}
				if err := writeFile(exportPath, func(w io.Writer) error { return export.Result(w, format, res) }); err != nil {
					return err
				}
				success(out, "Table written to %s", exportPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&chartPath, "chart", "", "Also render the chart to a .png or .svg file")
	cmd.Flags().StringVarP(&exportPath, "out", "o", "", "Also write the derived table to a .csv or .xlsx file")
	return cmd
}
