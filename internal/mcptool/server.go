// Package mcptool exposes the search pipeline as MCP tools for assistants.
package mcptool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"rentsearch/internal/config"
	"rentsearch/internal/model"
	"rentsearch/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	defaultSearchResults  = 10
	defaultSummaryResults = 5
)

// NewServer registers the search tools on a new MCP server
func NewServer(svc *service.SearchService, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"rental-search",
		version,
		server.WithToolCapabilities(true),
	)

	searchTool := mcp.NewTool(
		"search_properties",
		mcp.WithDescription("Search rental listings with a natural language query. Extracts location and budget, filters listings and ranks them by semantic and keyword relevance. Returns JSON."),
		mcp.WithString("user_query", mcp.Required(), mcp.Description(`Natural language query, e.g. "2BHK furnished near Jersey City under $2000".`)),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of results to return (default 10).")),
	)
	summaryTool := mcp.NewTool(
		"get_property_summary",
		mcp.WithDescription("Search rental listings and return a short human-readable summary suitable for chat replies."),
		mcp.WithString("user_query", mcp.Required(), mcp.Description("Natural language query.")),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of results to return (default 5).")),
	)
	statusTool := mcp.NewTool(
		"check_search_status",
		mcp.WithDescription("Check whether the listing search service and its components are operational."),
	)

	s.AddTool(searchTool, searchPropertiesHandler(svc))
	s.AddTool(summaryTool, propertySummaryHandler(svc))
	s.AddTool(statusTool, searchStatusHandler(svc))
	return s
}

// Serve runs s on the configured transport until ctx is cancelled or the
// transport stops. Transport "off" returns immediately.
func Serve(ctx context.Context, s *server.MCPServer, cfg config.MCPConfig) error {
	switch cfg.Transport {
	case "off", "":
		return nil
	case "stdio":
		return server.ServeStdio(s)
	case "http":
		httpServer := server.NewStreamableHTTPServer(s, server.WithEndpointPath(cfg.HTTPPath))
		go func() {
			<-ctx.Done()
			_ = httpServer.Shutdown(context.Background())
		}()
		slog.Info("starting streamable HTTP MCP server", "addr", cfg.HTTPAddr, "path", cfg.HTTPPath)
		return httpServer.Start(cfg.HTTPAddr)
	default:
		return fmt.Errorf("unsupported MCP transport: %s", cfg.Transport)
	}
}

type searchPayload struct {
	Status   string               `json:"status"`
	Message  string               `json:"message"`
	Count    int                  `json:"count"`
	Query    string               `json:"query"`
	SearchID string               `json:"search_id"`
	Degraded bool                 `json:"degraded"`
	Results  []model.SearchResult `json:"results"`
}

func searchPropertiesHandler(svc *service.SearchService) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("user_query", "")
		resp, err := svc.Search(ctx, query, req.GetInt("max_results", defaultSearchResults))
		if err != nil {
			return mcp.NewToolResultError(toolError(err)), nil
		}

		payload := searchPayload{
			Status:   "success",
			Count:    len(resp.Results),
			Query:    query,
			SearchID: resp.SearchID,
			Degraded: resp.Degraded,
			Results:  resp.Results,
		}
		if payload.Count == 0 {
			payload.Message = "No properties found matching your criteria"
		} else {
			payload.Message = fmt.Sprintf("Found %d matching properties", payload.Count)
		}

		body, _ := json.Marshal(payload)
		return mcp.NewToolResultText(string(body)), nil
	}
}

func propertySummaryHandler(svc *service.SearchService) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := svc.Search(ctx, req.GetString("user_query", ""), req.GetInt("max_results", defaultSummaryResults))
		if err != nil {
			return mcp.NewToolResultError(toolError(err)), nil
		}
		return mcp.NewToolResultText(FormatSummary(resp.Results)), nil
	}
}

func searchStatusHandler(svc *service.SearchService) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		body, _ := json.Marshal(svc.Status(ctx))
		return mcp.NewToolResultText(string(body)), nil
	}
}

func toolError(err error) string {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	return "Error searching properties: " + err.Error()
}

// FormatSummary renders results as numbered chat lines:
// "1. Sunny flat - 2 BHK in 123 Main St - $1,800/month"
func FormatSummary(results []model.SearchResult) string {
	if len(results) == 0 {
		return "No properties found matching your criteria. Try adjusting your search parameters."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matching properties:\n", len(results))
	for i, r := range results {
		title := r.Listing.Title
		if title == "" {
			title = "Untitled Property"
		}
		fmt.Fprintf(&b, "\n%d. %s - %d BHK in %s - %s/month", i+1, title, r.Listing.Bedroom, r.Listing.Address, formatPrice(r.Listing.Price))
	}
	return b.String()
}

// formatPrice renders whole dollars with thousands separators
func formatPrice(p float64) string {
	digits := strconv.FormatFloat(p, 'f', 0, 64)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return "$" + b.String()
}
