package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nodebench/searchmcp/internal/config"
	"github.com/nodebench/searchmcp/internal/fusion"
	"github.com/nodebench/searchmcp/internal/source"
	"github.com/nodebench/searchmcp/internal/telemetry"
	"github.com/nodebench/searchmcp/pkg/version"
)

// Server is the MCP server for searchmcp. It bridges AI clients with the
// multi-source fusion search pipeline.
type Server struct {
	mcp          *mcp.Server
	orchestrator *fusion.Orchestrator
	registry     *source.Registry
	hasReranker  bool
	config       *config.Config
	logger       *slog.Logger

	// Query telemetry (optional, set via SetMetrics)
	metrics *telemetry.QueryMetrics

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server over the given pipeline and registry.
func NewServer(orchestrator *fusion.Orchestrator, registry *source.Registry, cfg *config.Config, hasReranker bool) (*Server, error) {
	if orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if registry == nil {
		return nil, errors.New("adapter registry is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		orchestrator: orchestrator,
		registry:     registry,
		hasReranker:  hasReranker,
		config:       cfg,
		logger:       slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "searchmcp",
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools/resources
	)

	s.registerTools()

	return s, nil
}

// SetMetrics sets the query metrics collector for telemetry.
// When set, a query_metrics resource is registered.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m

	if m != nil {
		s.registerQueryMetricsResource()
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "searchmcp", version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "fusion_search",
			Description: "Search all configured sources at once and get one fused, deduplicated ranking. Supports mode presets (fast, balanced, comprehensive), source selection, date windows, and optional semantic reranking.",
		},
		{
			Name:        "quick_search",
			Description: "Fast single-shot search across the cheapest sources, returned as markdown. Use for quick lookups where latency matters more than coverage.",
		},
		{
			Name:        "source_status",
			Description: "Check which search sources are configured and currently available, and whether the reranker is wired. Use when results look incomplete.",
		},
	}
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "fusion_search",
		Description: "Search all configured sources at once and get one fused, deduplicated ranking. Supports mode presets (fast, balanced, comprehensive), source selection, date windows, and optional semantic reranking.",
	}, s.mcpFusionSearchHandler)
	s.logger.Debug("Registered tool", slog.String("name", "fusion_search"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "quick_search",
		Description: "Fast single-shot search across the cheapest sources, returned as markdown. Use for quick lookups where latency matters more than coverage.",
	}, s.mcpQuickSearchHandler)
	s.logger.Debug("Registered tool", slog.String("name", "quick_search"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "source_status",
		Description: "Check which search sources are configured and currently available, and whether the reranker is wired. Use when results look incomplete.",
	}, s.mcpSourceStatusHandler)
	s.logger.Debug("Registered tool", slog.String("name", "source_status"))

	s.logger.Info("MCP tools registered", slog.Int("count", 3))
}

// mcpFusionSearchHandler is the MCP SDK handler for the fusion_search tool.
func (s *Server) mcpFusionSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input FusionSearchInput) (
	*mcp.CallToolResult,
	FusionSearchOutput,
	error,
) {
	req, mcpErr := buildSearchRequest(input)
	if mcpErr != nil {
		return nil, FusionSearchOutput{}, mcpErr
	}

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("fusion_search started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.String("mode", string(req.Mode)))

	resp, err := s.orchestrator.Search(ctx, req)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("fusion_search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, FusionSearchOutput{}, MapError(err)
	}

	s.logger.Info("fusion_search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(resp.Results)))

	return nil, toFusionOutput(resp), nil
}

// mcpQuickSearchHandler is the MCP SDK handler for the quick_search tool.
// Returns markdown-formatted results.
func (s *Server) mcpQuickSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input QuickSearchInput) (
	*mcp.CallToolResult,
	any,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, "", NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}

	limit := clampLimit(input.Limit, 10, 1, 50)

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("quick_search started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.Int("limit", limit))

	resp, err := s.orchestrator.Search(ctx, fusion.SearchRequest{
		Query:    input.Query,
		Mode:     fusion.ModeFast,
		MaxTotal: limit,
	})
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("quick_search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, "", MapError(err)
	}

	s.logger.Info("quick_search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(resp.Results)))

	return nil, FormatSearchResults(input.Query, resp), nil
}

// mcpSourceStatusHandler is the MCP SDK handler for the source_status tool.
func (s *Server) mcpSourceStatusHandler(_ context.Context, _ *mcp.CallToolRequest, _ SourceStatusInput) (
	*mcp.CallToolResult,
	SourceStatusOutput,
	error,
) {
	output := SourceStatusOutput{
		Sources:  make([]SourceStatus, 0, s.registry.Len()),
		Reranker: s.hasReranker,
	}
	for _, name := range s.registry.Names() {
		adapter := s.registry.Get(name)
		output.Sources = append(output.Sources, SourceStatus{
			Name:      name,
			Available: adapter != nil && adapter.IsAvailable(),
		})
	}
	return nil, output, nil
}

// buildSearchRequest validates and converts tool input into a pipeline request.
func buildSearchRequest(input FusionSearchInput) (fusion.SearchRequest, *MCPError) {
	if strings.TrimSpace(input.Query) == "" {
		return fusion.SearchRequest{}, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}

	req := fusion.SearchRequest{
		Query:           input.Query,
		Mode:            fusion.Mode(input.Mode),
		Sources:         input.Sources,
		MaxPerSource:    input.MaxPerSource,
		MaxTotal:        input.MaxTotal,
		ContentTypes:    input.ContentTypes,
		EnableReranking: input.EnableReranking,
	}
	if input.Mode != "" && !req.Mode.Valid() {
		return fusion.SearchRequest{}, NewInvalidParamsError(
			fmt.Sprintf("unknown mode %q (expected fast, balanced, or comprehensive)", input.Mode))
	}

	if input.DateFrom != "" {
		t, err := time.Parse("2006-01-02", input.DateFrom)
		if err != nil {
			return fusion.SearchRequest{}, NewInvalidParamsError("date_from must be formatted YYYY-MM-DD")
		}
		req.DateFrom = t
	}
	if input.DateTo != "" {
		t, err := time.Parse("2006-01-02", input.DateTo)
		if err != nil {
			return fusion.SearchRequest{}, NewInvalidParamsError("date_to must be formatted YYYY-MM-DD")
		}
		req.DateTo = t
	}
	if !req.DateFrom.IsZero() && !req.DateTo.IsZero() && req.DateTo.Before(req.DateFrom) {
		return fusion.SearchRequest{}, NewInvalidParamsError("date_to must not be before date_from")
	}

	return req, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server",
		slog.String("transport", transport))

	switch transport {
	case "stdio":
		s.logger.Debug("Using stdio transport for JSON-RPC")
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	// The MCP server stops when its context is canceled.
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
