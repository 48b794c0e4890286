package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/stagecheck/internal/core/domain"
	"github.com/guillermoBallester/stagecheck/internal/core/port"
	"github.com/guillermoBallester/stagecheck/internal/core/service"
	"github.com/guillermoBallester/stagecheck/internal/report"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "stagecheck"

// Tool descriptions
const (
	descListRules = "List the validation rules in the catalogue: id, kind, target table and column, " +
		"and kind-specific parameters (allowed values, expected type, minimum date interval). " +
		"Use the ids with run_rules to run a subset."

	descRunRules = "Run validation rules against the staging schema and return a report. " +
		"Each call opens its own database session and runs the rules sequentially, read-only. " +
		"Every result has an outcome (pass, fail, schema_error, execution_error) and, when not passing, " +
		"a diagnostic plus the offending rows (capped, sensitive columns masked). " +
		"A failing rule is a normal report, not a tool error."

	descRunRulesParam = "Rule ids to run (optional, defaults to the whole catalogue)"

	descListTables = "List the tables and views of the staging schema with type, estimated row count, " +
		"size and column count."

	descDescribeTable = "Describe a staging table's columns: name, data_type as information_schema reports it " +
		"(the value expected_type rules compare against), nullability, default and comment."

	descDescribeTableParam = "Table to describe, either \"table\" or \"schema.table\""
)

func RegisterTools(s *server.MCPServer, catalog []domain.Rule, runner *service.Runner, explorer port.SchemaExplorer, logger *slog.Logger) {
	s.AddTool(
		mcp.NewTool("list_rules",
			mcp.WithDescription(descListRules),
		),
		listRulesHandler(catalog),
	)

	if runner != nil {
		s.AddTool(
			mcp.NewTool("run_rules",
				mcp.WithDescription(descRunRules),
				mcp.WithArray("rule_ids",
					mcp.Description(descRunRulesParam),
					mcp.WithStringItems(),
				),
			),
			runRulesHandler(catalog, runner, logger),
		)
	}

	if explorer != nil {
		s.AddTool(
			mcp.NewTool("list_tables",
				mcp.WithDescription(descListTables),
			),
			listTablesHandler(explorer, logger),
		)

		s.AddTool(
			mcp.NewTool("describe_table",
				mcp.WithDescription(descDescribeTable),
				mcp.WithString("table_name",
					mcp.Required(),
					mcp.Description(descDescribeTableParam),
				),
			),
			describeTableHandler(explorer, logger),
		)
	}
}

func listRulesHandler(catalog []domain.Rule) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(catalog)
	}
}

func runRulesHandler(catalog []domain.Rule, runner *service.Runner, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := stringSlice(request.GetArguments()["rule_ids"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		rules, err := domain.SelectRules(catalog, ids)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		rep, err := runner.Run(ctx, rules)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "run rules")), nil
		}

		return jsonResult(report.Build(rep))
	}
}

func listTablesHandler(explorer port.SchemaExplorer, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables, err := explorer.ListTables(ctx)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "list tables")), nil
		}
		return jsonResult(tables)
	}
}

func describeTableHandler(explorer port.SchemaExplorer, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tableName, ok := request.GetArguments()["table_name"].(string)
		if !ok || tableName == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}

		detail, err := explorer.DescribeTable(ctx, tableName)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "describe table")), nil
		}
		return jsonResult(detail)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// stringSlice accepts a missing argument or a JSON array of strings.
func stringSlice(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, errors.New("rule_ids must be an array of strings")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, errors.New("rule_ids must be an array of strings")
		}
		out = append(out, s)
	}
	return out, nil
}

// sanitizeError turns an internal error into a message safe for the client.
// Taxonomy errors are passed through; anything else is logged and replaced
// by a generic message, since driver errors can leak connection details.
func sanitizeError(logger *slog.Logger, err error, op string) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Sprintf("%s timed out or was cancelled", op)
	case errors.Is(err, domain.ErrConnection):
		logger.Error(op+" failed", slog.String("error", err.Error()))
		return fmt.Sprintf("%s failed: database unavailable (check server logs)", op)
	case errors.Is(err, domain.ErrSchema),
		errors.Is(err, domain.ErrInvalidRule),
		errors.Is(err, domain.ErrUnknownRule):
		return fmt.Sprintf("%s failed: %v", op, err)
	}

	logger.Error(op+" failed", slog.String("error", err.Error()))
	return fmt.Sprintf("%s failed: internal error (check server logs)", op)
}
