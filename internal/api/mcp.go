package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/vinsight/internal/storage"
	"github.com/kalambet/vinsight/internal/vehicle"
)

// StatsSource backs the vehicles://stats resource.
type StatsSource interface {
	Stats(ctx context.Context) (storage.Stats, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Service Lookuper
	Stats   StatsSource // optional; the stats resource is omitted when nil
	Version string
}

// NewMCPServer creates an MCP server exposing vehicle lookup as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"vinsight",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("vinsight: vehicle records and generated insights by VIN or registration mark."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("lookup_vehicle",
			mcp.WithDescription("Look up a vehicle by VIN or VRM and return its records with generated insights."),
			mcp.WithString("key", mcp.Description("VIN (17 characters) or UK registration mark"), mcp.Required()),
			mcp.WithString("key_type", mcp.Description("vin or vrm (default vrm)"), mcp.Enum("vin", "vrm")),
		),
		mcpLookupVehicle(deps),
	)

	s.AddTool(
		mcp.NewTool("search_vehicles",
			mcp.WithDescription("Search vehicles by partial VIN, VRM, make or model."),
			mcp.WithString("query", mcp.Description("At least two characters"), mcp.Required()),
		),
		mcpSearchVehicles(deps),
	)

	s.AddTool(
		mcp.NewTool("refresh_insights",
			mcp.WithDescription("Drop cached insights for a vehicle so the next lookup regenerates them."),
			mcp.WithNumber("vehicle_id", mcp.Description("Vehicle ID from a lookup or search"), mcp.Required()),
		),
		mcpRefreshInsights(deps),
	)

	if deps.Stats != nil {
		s.AddResource(
			mcp.NewResource(
				"vehicles://stats",
				"Vehicle Store Stats",
				mcp.WithResourceDescription("Number of stored vehicles and cached insights"),
				mcp.WithMIMEType("application/json"),
			),
			mcpResourceStats(deps),
		)
	}

	return s
}

func mcpLookupVehicle(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		kt, err := vehicle.ParseKeyType(req.GetString("key_type", string(vehicle.KeyVRM)))
		if err != nil {
			return mcpError(err.Error()), nil
		}

		res, err := deps.Service.Lookup(ctx, key, kt)
		if err != nil {
			return mcpFailure(err), nil
		}
		return mcpJSON(res)
	}
}

func mcpSearchVehicles(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		res, err := deps.Service.Search(ctx, query)
		if err != nil {
			return mcpFailure(err), nil
		}
		return mcpJSON(res)
	}
}

func mcpRefreshInsights(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := req.GetInt("vehicle_id", 0)
		if id <= 0 {
			return mcpError("vehicle_id must be a positive integer"), nil
		}
		res, err := deps.Service.RefreshInsights(ctx, int64(id))
		if err != nil {
			if errors.Is(err, vehicle.ErrNotFound) {
				return mcpError(fmt.Sprintf("Vehicle with ID %d not found", id)), nil
			}
			return mcpFailure(err), nil
		}
		return mcpJSON(res)
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		st, err := deps.Stats.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get stats: %w", err)
		}
		b, err := json.Marshal(st)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

// mcpFailure reports err the way the HTTP layer would, without leaking
// internal details.
func mcpFailure(err error) *mcp.CallToolResult {
	_, detail := statusFor(err)
	return mcpError(detail)
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcpError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
