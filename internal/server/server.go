// Package server exposes the inventory assistant as MCP tools.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/stockwise-ai/server/internal/agent/model"
	errx "github.com/stockwise-ai/server/internal/core/error"
	logx "github.com/stockwise-ai/server/pkg/logger"
)

// Sessions runs conversation turns.
type Sessions interface {
	Handle(ctx context.Context, sessionID, text string) (*model.TurnResult, error)
	Reset(ctx context.Context, sessionID string) error
}

// Inventory lists the stored products.
type Inventory interface {
	Items(ctx context.Context) ([]model.InventoryItem, error)
}

// New creates an MCP server with the assistant tools registered.
func New(sessions Sessions, inventory Inventory, version string) *mcp.Server {
	t := &assistantTools{sessions: sessions, inventory: inventory}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "stockwise",
		Version: version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name: "inventory_chat",
		Description: "Send a natural-language message about the inventory. " +
			"Replies may be clarification questions; answer them with the same session_id. " +
			"Updates require the write token in the message.",
	}, t.Chat)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "reset_session",
		Description: "Forget the conversation history of a session",
	}, t.Reset)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_inventory",
		Description: "List every product with its quantity and price",
	}, t.ListInventory)

	return srv
}

type assistantTools struct {
	sessions  Sessions
	inventory Inventory
}

type ChatInput struct {
	SessionID string `json:"session_id" jsonschema:"Conversation identifier; reuse it to answer clarification questions"`
	Message   string `json:"message" jsonschema:"The user's message"`
}

type ResetInput struct {
	SessionID string `json:"session_id" jsonschema:"Conversation identifier to reset"`
}

type ListInventoryInput struct{}

func (t *assistantTools) Chat(ctx context.Context, _ *mcp.CallToolRequest, input ChatInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.SessionID) == "" {
		return toolError("session_id is required"), nil, nil
	}
	if strings.TrimSpace(input.Message) == "" {
		return toolError("message is required"), nil, nil
	}

	res, err := t.sessions.Handle(ctx, input.SessionID, input.Message)
	if err != nil {
		logx.Error().Err(err).Str("session_id", input.SessionID).Msg("MCP chat failed")
		return toolError("Chat failed: %s", errx.MessageOf(err)), nil, nil
	}
	return toolJSON(res)
}

func (t *assistantTools) Reset(ctx context.Context, _ *mcp.CallToolRequest, input ResetInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.SessionID) == "" {
		return toolError("session_id is required"), nil, nil
	}
	if err := t.sessions.Reset(ctx, input.SessionID); err != nil {
		return toolError("Failed to reset session: %s", errx.MessageOf(err)), nil, nil
	}
	return toolJSON(map[string]string{"session_id": input.SessionID, "status": "reset"})
}

func (t *assistantTools) ListInventory(ctx context.Context, _ *mcp.CallToolRequest, _ ListInventoryInput) (*mcp.CallToolResult, any, error) {
	items, err := t.inventory.Items(ctx)
	if err != nil {
		return toolError("Failed to list inventory: %s", errx.MessageOf(err)), nil, nil
	}
	if items == nil {
		items = []model.InventoryItem{}
	}
	return toolJSON(items)
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
