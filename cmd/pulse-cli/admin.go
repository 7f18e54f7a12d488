package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pulse/internal/amqp"
	"pulse/internal/core"
	"pulse/internal/sources"
	"pulse/internal/sources/files"
	"pulse/internal/storage"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "import DIR",
		Short: "Import the CSV files in DIR into the SQLite backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.logger()
			cfg := opts.config()

			targets := core.Datasets()
			if len(only) > 0 {
				targets = targets[:0:0]
				for _, key := range only {
					d, err := core.LookupDataset(key)
					if err != nil {
						return fmt.Errorf("%w: %s", err, key)
					}
					targets = append(targets, d)
				}
			}

			repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx := cmd.Context()
			src := files.New(args[0])
			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(targets))
			imported := 0
			for _, d := range targets {
				t, err := src.ReadTable(ctx, d.File)
				if errors.Is(err, sources.ErrSourceNotFound) {
					rows = append(rows, []string{d.File, "-", "skipped: not found"})
					continue
				}
				if err != nil {
					return err
				}
				if err := repo.ImportTable(ctx, t); err != nil {
					return err
				}
				imported++
				rows = append(rows, []string{d.File, strconv.Itoa(t.Len()), "imported"})
			}
			renderTable(out, []string{"File", "Rows", "Status"}, rows)
			if imported == 0 {
				warn(out, "No dataset files found in %s", args[0])
				return nil
			}
			success(out, "Imported %d datasets into %s", imported, cfg.SQLiteDBPath)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "dataset", nil, "Import only these datasets (repeatable)")
	return cmd
}

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "refresh [DATASET]",
		Short: "Ask running servers to reload a dataset, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.logger()
			cfg := opts.config()
			if cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not set")
			}

			file, target := "", "all datasets"
			if len(args) == 1 {
				d, err := core.LookupDataset(args[0])
				if err != nil {
					return fmt.Errorf("%w: %s", err, args[0])
				}
				file, target = d.File, d.File
			}

			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.PublishDatasetRefresh(cmd.Context(), file, reason); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Refresh requested for %s", target)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "manual", "Reason recorded in the refresh message")
	return cmd
}
