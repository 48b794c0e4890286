package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/guillermoBallester/stagecheck/internal/core/domain"
	"github.com/guillermoBallester/stagecheck/internal/core/port"
	"github.com/guillermoBallester/stagecheck/internal/report"
	"github.com/spf13/cobra"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the rule catalogue and print a report (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(cmd, opts)
		},
	}
}

func runRules(cmd *cobra.Command, opts *rootOptions) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(ctx); err != nil {
			a.logger.Warn("shutdown", slog.String("error", err.Error()))
		}
	}()

	rules, err := domain.SelectRules(a.catalog, opts.cfg.OnlyRules)
	if err != nil {
		return err
	}

	provider, err := a.provider()
	if err != nil {
		return err
	}

	rep, runErr := a.runner(provider).Run(ctx, rules)
	if rep != nil && len(rep.Results) > 0 {
		if err := report.Write(cmd.OutOrStdout(), rep, opts.cfg.Format); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	a.logger.Info("run complete", slog.String("summary", report.Summary(rep)))
	if !rep.Passed() {
		return errRulesFailed
	}
	return nil
}

func newRulesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the rule catalogue without connecting to the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(cmd.Context()) }()

			rules, err := domain.SelectRules(a.catalog, opts.cfg.OnlyRules)
			if err != nil {
				return err
			}
			return writeRules(cmd.OutOrStdout(), rules, opts.cfg.Format)
		},
	}
}

func writeRules(w io.Writer, rules []domain.Rule, format string) error {
	if format == report.FormatJSON {
		return writeJSON(w, rules)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tTARGET\tPARAMETERS")
	for _, r := range rules {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Kind, r.Target(), ruleParams(r))
	}
	return tw.Flush()
}

func ruleParams(r domain.Rule) string {
	switch r.Kind {
	case domain.KindAllowedValues:
		s := "[" + strings.Join(r.AllowedValues, ", ") + "]"
		if r.AllowNull {
			s += " or NULL"
		}
		return s
	case domain.KindExpectedType:
		return r.ExpectedType
	case domain.KindDateOffset:
		return fmt.Sprintf("%s >= %s + %s", r.LaterColumn, r.EarlierColumn, r.MinInterval)
	}
	return ""
}

func newInspectCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [table]",
		Short: "List the staging tables, or describe one table's columns",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(ctx) }()

			provider, err := a.provider()
			if err != nil {
				return err
			}
			explorer := a.explorer(provider)

			if len(args) == 0 {
				tables, err := explorer.ListTables(ctx)
				if err != nil {
					return err
				}
				return writeTables(cmd.OutOrStdout(), tables, opts.cfg.Format)
			}

			detail, err := explorer.DescribeTable(ctx, args[0])
			if err != nil {
				return err
			}
			return writeTableDetail(cmd.OutOrStdout(), detail, opts.cfg.Format)
		},
	}
}

func writeTables(w io.Writer, tables []port.TableInfo, format string) error {
	if format == report.FormatJSON {
		return writeJSON(w, tables)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tTYPE\tROWS (EST.)\tSIZE\tCOLUMNS\tCOMMENT")
	for _, t := range tables {
		fmt.Fprintf(tw, "%s.%s\t%s\t%d\t%s\t%d\t%s\n", t.Schema, t.Name, t.Type, t.RowEstimate, t.SizeHuman, t.ColumnCount, t.Comment)
	}
	return tw.Flush()
}

func writeTableDetail(w io.Writer, detail *port.TableDetail, format string) error {
	if format == report.FormatJSON {
		return writeJSON(w, detail)
	}

	fmt.Fprintf(w, "%s.%s", detail.Schema, detail.Name)
	if detail.Comment != "" {
		fmt.Fprintf(w, "  -- %s", detail.Comment)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tDATA TYPE\tNULLABLE\tDEFAULT\tCOMMENT")
	for _, c := range detail.Columns {
		nullable := "no"
		if c.IsNullable {
			nullable = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Name, c.DataType, nullable, c.DefaultValue, c.Comment)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
