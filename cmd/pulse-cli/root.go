package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"pulse/internal/backend"
	"pulse/internal/cache"
	"pulse/internal/cli"
	"pulse/internal/config"
	"pulse/internal/log"
	"pulse/internal/services"
)

type rootOptions struct {
	backend string
	dataDir string
	dbPath  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "pulse-cli",
		Short:         "Browse the payments datasets and views from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "Data backend: files, sqlite or sheets (default $DATA_BACKEND)")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Directory holding the CSV files (default $DATA_DIR)")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (default $SQLITE_DB_PATH)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at debug level")

	cmd.AddCommand(
		newDatasetsCmd(opts),
		newPreviewCmd(opts),
		newExportCmd(opts),
		newViewsCmd(opts),
		newViewCmd(opts),
		newImportCmd(opts),
		newRefreshCmd(opts),
	)
	return cmd
}

// config loads the environment configuration with flag overrides applied.
func (o *rootOptions) config() *config.Config {
	cfg := config.Load()
	if o.backend != "" {
		cfg.DataBackend = o.backend
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.dbPath != "" {
		cfg.SQLiteDBPath = o.dbPath
	}
	return cfg
}

func (o *rootOptions) logger() *log.Logger {
	if o.verbose {
		os.Setenv("LOG_LEVEL", "debug")
	} else if os.Getenv("LOG_LEVEL") == "" {
		os.Setenv("LOG_LEVEL", "warn")
	}
	return cli.SetupLogger()
}

// app bundles the services a command needs.
type app struct {
	cfg      *config.Config
	source   *backend.BackendResult
	cache    *cache.Manager
	datasets *services.DatasetService
	views    *services.ViewService
	explorer *services.ExplorerService
}

func (o *rootOptions) open(ctx context.Context) (*app, error) {
	logger := o.logger()
	cfg := o.config()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	source, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	datasets, mgr := cli.NewDatasetService(logger, cfg, source)
	return &app{
		cfg:      cfg,
		source:   source,
		cache:    mgr,
		datasets: datasets,
		views:    services.NewViewService(datasets, nil, logger),
		explorer: services.NewExplorerService(datasets),
	}, nil
}

func (a *app) Close() error {
	a.cache.Stop()
	return a.source.Close()
}

func renderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}

func heading(w io.Writer, format string, args ...any) {
	color.New(color.FgCyan, color.Bold).Fprintf(w, format+"\n", args...)
}

func warn(w io.Writer, format string, args ...any) {
	color.New(color.FgYellow).Fprintf(w, format+"\n", args...)
}

func success(w io.Writer, format string, args ...any) {
	color.New(color.FgGreen).Fprintf(w, format+"\n", args...)
}

// outputFormat is the lowercase extension of path without its dot.
func outputFormat(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// writeFile creates path and streams write into it.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
