package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/flowerdesk/internal/storage"
)

// NewMCPServer creates an MCP server exposing the services as tools.
// Tools whose service is nil are not registered.
func NewMCPServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"flowerdesk",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("flowerdesk: inventory analysis, marketing plans and a document Q&A bot for a flower shop."),
		server.WithRecovery(),
	)

	if deps.Inventory != nil {
		s.AddTool(
			mcp.NewTool("analyze_inventory",
				mcp.WithDescription("Analyze weather, social and holiday factors for a product and propose an inventory strategy."),
				mcp.WithString("product", mcp.Description("Product name, e.g. 玫瑰"), mcp.Required()),
				mcp.WithString("city", mcp.Description("City; defaults to nationwide")),
			),
			mcpAnalyzeInventory(deps),
		)
	}

	if deps.Records != nil {
		s.AddTool(
			mcp.NewTool("recent_records",
				mcp.WithDescription("List the most recent stored inventory analyses."),
				mcp.WithNumber("limit", mcp.Description("Maximum number of records (default 5)")),
			),
			mcpRecentRecords(deps),
		)
		s.AddTool(
			mcp.NewTool("search_records",
				mcp.WithDescription("Search stored inventory analyses by product name substring."),
				mcp.WithString("query", mcp.Description("Substring of the product name"), mcp.Required()),
				mcp.WithNumber("limit", mcp.Description("Maximum number of records (default 3)")),
			),
			mcpSearchRecords(deps),
		)
	}

	if deps.Marketing != nil {
		s.AddTool(
			mcp.NewTool("marketing_plan",
				mcp.WithDescription("Draft a marketing plan for a product."),
				mcp.WithString("product", mcp.Description("Product to promote"), mcp.Required()),
				mcp.WithString("target", mcp.Description("Target audience"), mcp.Required()),
				mcp.WithString("goal", mcp.Description("Marketing goal"), mcp.Required()),
			),
			mcpMarketingPlan(deps),
		)
	}

	if deps.Chat != nil {
		s.AddTool(
			mcp.NewTool("ask_docs",
				mcp.WithDescription("Answer a question from the shop's document knowledge base."),
				mcp.WithString("question", mcp.Description("The question"), mcp.Required()),
				mcp.WithString("session_id", mcp.Description("Conversation id to continue")),
			),
			mcpAskDocs(deps),
		)
	}

	return s
}

func mcpAnalyzeInventory(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		product, err := req.RequireString("product")
		if err != nil || product == "" {
			return mcpError("product is required"), nil
		}
		city := req.GetString("city", "")

		return mcpJSON(deps.Inventory.Analyze(ctx, product, city))
	}
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, maxRecordLimit)
}

func mcpRecentRecords(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := clampLimit(req.GetInt("limit", storage.DefaultRecentLimit), storage.DefaultRecentLimit)

		recs, err := deps.Records.Recent(ctx, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("listing records failed: %v", err)), nil
		}
		if recs == nil {
			recs = []storage.InventoryRecord{}
		}
		return mcpJSON(recs)
	}
}

func mcpSearchRecords(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil || query == "" {
			return mcpError("query is required"), nil
		}
		limit := clampLimit(req.GetInt("limit", storage.DefaultSearchLimit), storage.DefaultSearchLimit)

		recs, err := deps.Records.Search(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if recs == nil {
			recs = []storage.InventoryRecord{}
		}
		return mcpJSON(recs)
	}
}

func mcpMarketingPlan(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args [3]string
		for i, name := range []string{"product", "target", "goal"} {
			v, err := req.RequireString(name)
			if err != nil || v == "" {
				return mcpError(name + " is required"), nil
			}
			args[i] = v
		}
		return mcpText(deps.Marketing.Generate(ctx, args[0], args[1], args[2])), nil
	}
}

func mcpAskDocs(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || question == "" {
			return mcpError("question is required"), nil
		}
		ans, err := deps.Chat.Ask(ctx, req.GetString("session_id", ""), question)
		if err != nil {
			return mcpError(fmt.Sprintf("ask failed: %v", err)), nil
		}
		return mcpJSON(ans)
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
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
