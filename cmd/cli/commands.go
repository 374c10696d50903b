package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/balance-indicators/internal/app"
	"github.com/dvloznov/balance-indicators/internal/config"
	"github.com/dvloznov/balance-indicators/internal/domain"
	"github.com/dvloznov/balance-indicators/internal/logger"
	"github.com/dvloznov/balance-indicators/internal/normalize"
	"github.com/dvloznov/balance-indicators/internal/pipeline"
	"github.com/dvloznov/balance-indicators/internal/report"
)

// Output formats.
const (
	formatTable    = "table"
	formatMarkdown = "markdown"
	formatJSON     = "json"
	formatXLSX     = "xlsx"
)

const terminalWidth = 100

// opener builds the backends for one command run.
type opener func(ctx context.Context, cfg *config.Config) (*app.App, error)

func defaultOpener(ctx context.Context, cfg *config.Config) (*app.App, error) {
	return app.Open(ctx, cfg)
}

// cli holds the flags shared by every subcommand.
type cli struct {
	open       opener
	configPath string
	store      string
	logLevel   string
}

func newRootCommand(open opener) *cobra.Command {
	c := &cli{open: open}

	rootCmd := &cobra.Command{
		Use:   "balance",
		Short: "Balance-sheet liquidity and debt indicators",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "path to YAML config (default: $BALANCE_CONFIG or balance.yaml)")
	rootCmd.PersistentFlags().StringVar(&c.store, "store", "", "record store: bigquery or memory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (overrides config)")

	rootCmd.AddCommand(
		c.newUploadCommand(),
		c.newIngestCommand(),
		c.newRecordsCommand(),
		c.newIndicatorsCommand(),
		c.newCompositionCommand(),
		c.newDeleteAllCommand(),
		c.newConfigCommand(),
	)

	return rootCmd
}

// session loads the configuration and opens the backends. The returned
// context carries a logger writing to the command's stderr.
func (c *cli) session(cmd *cobra.Command) (context.Context, *app.App, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	if c.store != "" {
		cfg.Store = c.store
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}

	log := logger.NewWithWriter(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		Level(logger.ParseLevel(cfg.Logging.Level))
	ctx := logger.WithContext(cmd.Context(), log)

	a, err := c.open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening backends: %w", err)
	}
	return ctx, a, nil
}

func (c *cli) newUploadCommand() *cobra.Command {
	var file, period, layout string

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Normalize a local balance-sheet export and store its records",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", file, err)
			}

			ctx, a, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if layout == "" {
				layout = a.Config.Import.Layout
			}
			p, err := declaredPeriod(period, layout)
			if err != nil {
				return err
			}
			res, err := a.Service.ProcessUpload(ctx, pipeline.UploadRequest{
				Raw:      raw,
				Filename: file,
				Period:   p,
				Layout:   layout,
			})
			return printUploadResult(cmd, res, err)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to the export (required)")
	cmd.Flags().StringVar(&period, "period", "", "reporting month, e.g. JULY or JULHO (required unless the layout is static)")
	cmd.Flags().StringVar(&layout, "layout", "", "file layout: upload or static (default from config)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func (c *cli) newIngestCommand() *cobra.Command {
	var gcsURI, period, layout string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Normalize an export stored in GCS and store its records",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if layout == "" {
				layout = a.Config.Import.Layout
			}
			p, err := declaredPeriod(period, layout)
			if err != nil {
				return err
			}
			res, err := a.Service.IngestFromGCS(ctx, gcsURI, p, layout)
			return printUploadResult(cmd, res, err)
		},
	}

	cmd.Flags().StringVar(&gcsURI, "gcs-uri", "", "gs:// URI of the export (required)")
	cmd.Flags().StringVar(&period, "period", "", "reporting month (required unless the layout is static)")
	cmd.Flags().StringVar(&layout, "layout", "", "file layout: upload or static (default from config)")
	_ = cmd.MarkFlagRequired("gcs-uri")

	return cmd
}

// declaredPeriod resolves the --period flag. Static files carry the period
// on every row, so the flag is optional for them.
func declaredPeriod(period, layout string) (domain.Period, error) {
	if strings.EqualFold(layout, normalize.LayoutStatic) && strings.TrimSpace(period) == "" {
		return "", nil
	}
	if strings.TrimSpace(period) == "" {
		return "", fmt.Errorf("--period is required for the %q layout", layout)
	}
	return domain.ParsePeriod(period)
}

// printUploadResult reports an upload. An upload without valid rows is a
// warning, not a failure.
func printUploadResult(cmd *cobra.Command, res *pipeline.UploadResult, err error) error {
	if errors.Is(err, pipeline.ErrEmptyResult) {
		read := 0
		if res != nil {
			read = res.RowsRead
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: no valid rows found (%d read); nothing was stored\n", read)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stored %d records (%d read, %d dropped).\n", res.Stored, res.RowsRead, res.RowsDropped)
	if res.ArchiveURI != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Archived to %s\n", res.ArchiveURI)
	}
	return nil
}

func (c *cli) newRecordsCommand() *cobra.Command {
	var distinct bool
	var format string

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List stored records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, false); err != nil {
				return err
			}

			ctx, a, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.Service.Records(ctx, distinct)
			if err != nil {
				return err
			}
			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			md, err := report.RenderRecords(records)
			if err != nil {
				return err
			}
			return writeMarkdown(cmd.OutOrStdout(), md, format)
		},
	}

	cmd.Flags().BoolVar(&distinct, "distinct", false, "show repeated account/value/period rows once")
	cmd.Flags().StringVar(&format, "format", formatTable, "output format: table, markdown or json")

	return cmd
}

func (c *cli) newIndicatorsCommand() *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "indicators",
		Short: "Show liquidity and debt indicators per period",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, true); err != nil {
				return err
			}
			if format == formatXLSX && out == "" {
				return errors.New("--out is required for xlsx output")
			}

			ctx, a, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.Service.Dashboard(ctx)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			switch format {
			case formatXLSX:
				if err := report.WriteWorkbook(w, d); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
				return nil
			case formatJSON:
				return writeJSON(w, d)
			default:
				md, err := report.RenderIndicators(d)
				if err != nil {
					return err
				}
				return writeMarkdown(w, md, format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "output format: table, markdown, json or xlsx")
	cmd.Flags().StringVar(&out, "out", "", "write to this file instead of stdout")

	return cmd
}

func (c *cli) newCompositionCommand() *cobra.Command {
	var period, format string

	cmd := &cobra.Command{
		Use:   "composition",
		Short: "Show the current-asset composition of a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, false); err != nil {
				return err
			}
			p, err := domain.ParsePeriod(period)
			if err != nil {
				return err
			}

			ctx, a, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			slices, err := a.Service.Composition(ctx, p)
			if err != nil {
				return err
			}
			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), slices)
			}
			md, err := report.RenderComposition(report.CompositionView{Period: p, Slices: slices})
			if err != nil {
				return err
			}
			return writeMarkdown(cmd.OutOrStdout(), md, format)
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "reporting month (required)")
	cmd.Flags().StringVar(&format, "format", formatTable, "output format: table, markdown or json")
	_ = cmd.MarkFlagRequired("period")

	return cmd
}

func (c *cli) newDeleteAllCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every stored record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete all records without --yes")
			}

			ctx, a, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Service.DeleteAll(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All records deleted.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")

	return cmd
}

func (c *cli) newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var out string
	var force bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", out)
			}

			cfg := config.Default()
			if c.store != "" {
				cfg.Store = c.store
			}
			if c.logLevel != "" {
				cfg.Logging.Level = c.logLevel
			}
			if err := config.Save(out, cfg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}
	initCmd.Flags().StringVar(&out, "out", config.DefaultConfigFile, "path of the file to write")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}

func checkFormat(format string, allowXLSX bool) error {
	switch format {
	case formatTable, formatMarkdown, formatJSON:
		return nil
	case formatXLSX:
		if allowXLSX {
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q", format)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeMarkdown(w io.Writer, md, format string) error {
	if format == formatTable {
		styled, err := report.RenderTerminal(md, terminalWidth)
		if err != nil {
			return err
		}
		md = styled
	}
	_, err := io.WriteString(w, md)
	return err
}
