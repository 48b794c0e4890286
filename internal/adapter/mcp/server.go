package mcp

import (
	"log/slog"

	"github.com/guillermoBallester/stagecheck/internal/core/domain"
	"github.com/guillermoBallester/stagecheck/internal/core/port"
	"github.com/guillermoBallester/stagecheck/internal/core/service"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
)

// NewServer creates an MCPServer exposing the rule catalogue and schema
// inspector, with logging and tracing hooks on every tool call.
func NewServer(version string, catalog []domain.Rule, runner *service.Runner, explorer port.SchemaExplorer, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithHooks(ToolCallHooks(logger, tracer, inst)),
	)

	RegisterTools(s, catalog, runner, explorer, logger)

	return s
}
