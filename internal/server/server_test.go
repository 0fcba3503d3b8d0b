package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockwise-ai/server/internal/agent/model"
)

type fakeSessions struct {
	reset []string
}

func (f *fakeSessions) Handle(_ context.Context, id, text string) (*model.TurnResult, error) {
	return &model.TurnResult{ConversationID: id, Resolved: true, Reply: "echo: " + text}, nil
}

func (f *fakeSessions) Reset(_ context.Context, id string) error {
	f.reset = append(f.reset, id)
	return nil
}

type fakeInventory struct{}

func (fakeInventory) Items(context.Context) ([]model.InventoryItem, error) {
	return []model.InventoryItem{{ID: 1, ProductName: "Premium Tea", Quantity: 40, Price: 15999}}, nil
}

func connect(t *testing.T, sessions Sessions) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	_, err := New(sessions, fakeInventory{}, "test").Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text, res.IsError
}

func TestInventoryChat(t *testing.T) {
	cs := connect(t, &fakeSessions{})

	text, isErr := callTool(t, cs, "inventory_chat", map[string]any{"session_id": "s1", "message": "how much tea?"})
	require.False(t, isErr, text)

	var res model.TurnResult
	require.NoError(t, json.Unmarshal([]byte(text), &res))
	assert.Equal(t, "s1", res.ConversationID)
	assert.Equal(t, "echo: how much tea?", res.Reply)
}

func TestInventoryChatRequiresSession(t *testing.T) {
	cs := connect(t, &fakeSessions{})

	text, isErr := callTool(t, cs, "inventory_chat", map[string]any{"session_id": "", "message": "hi"})
	assert.True(t, isErr)
	assert.Contains(t, text, "session_id")
}

func TestResetAndList(t *testing.T) {
	sessions := &fakeSessions{}
	cs := connect(t, sessions)

	_, isErr := callTool(t, cs, "reset_session", map[string]any{"session_id": "s1"})
	require.False(t, isErr)
	assert.Equal(t, []string{"s1"}, sessions.reset)

	text, isErr := callTool(t, cs, "list_inventory", map[string]any{})
	require.False(t, isErr)
	assert.Contains(t, text, "Premium Tea")
}
