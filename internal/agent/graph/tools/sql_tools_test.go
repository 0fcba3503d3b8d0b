package tools

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockwise-ai/server/internal/agent/sqlguard"
	errx "github.com/stockwise-ai/server/internal/core/error"
)

type fakeDB struct {
	tables  []string
	queries []string
}

func (f *fakeDB) Dialect() string { return "sqlite" }

func (f *fakeDB) ListTables(ctx context.Context) (string, error) {
	return "inventory, sales", nil
}

func (f *fakeDB) TableInfo(ctx context.Context, tables []string) (string, error) {
	f.tables = tables
	return "CREATE TABLE inventory (...)", nil
}

func (f *fakeDB) RunQuery(ctx context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	return "[(1,)]", nil
}

func TestListTablesTool(t *testing.T) {
	out, err := NewListTablesTool(&fakeDB{}).InvokableRun(context.Background(), "{}")
	require.NoError(t, err)
	assert.Equal(t, "inventory, sales", out)
	assert.Equal(t, []string{"inventory", "sales"}, SplitTableNames(out))
}

func TestSchemaToolSplitsNames(t *testing.T) {
	db := &fakeDB{}
	out, err := NewSchemaTool(db).InvokableRun(context.Background(), `{"table_names":"inventory, 'sales' ,"}`)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE inventory (...)", out)
	assert.Equal(t, []string{"inventory", "sales"}, db.tables)
}

var writePolicy = sqlguard.Policy{Token: "ChickenB"}

func userSaid(text string) RequestText {
	return func(context.Context) string { return text }
}

func TestQueryToolRefusesDestructive(t *testing.T) {
	db := &fakeDB{}
	qt := NewQueryTool(db, writePolicy, userSaid("drop the sales table (ChickenB)"))

	out, err := qt.InvokableRun(context.Background(), QueryArguments("DROP TABLE sales"))
	require.NoError(t, err)
	assert.Contains(t, out, "not permitted")
	assert.Empty(t, db.queries)

	out, err = qt.InvokableRun(context.Background(), QueryArguments("SELECT count(*) FROM sales"))
	require.NoError(t, err)
	assert.Equal(t, "[(1,)]", out)
	assert.Equal(t, []string{"SELECT count(*) FROM sales"}, db.queries)
}

func TestQueryToolChecksWriteToken(t *testing.T) {
	update := "UPDATE inventory SET quantity = 0"

	db := &fakeDB{}
	out, err := NewQueryTool(db, writePolicy, userSaid("zero the stock")).InvokableRun(context.Background(), QueryArguments(update))
	require.NoError(t, err)
	assert.Equal(t, "Error: Authentication required for updates", out)
	assert.Empty(t, db.queries)

	out, err = NewQueryTool(db, writePolicy, nil).InvokableRun(context.Background(), QueryArguments(update))
	require.NoError(t, err)
	assert.Equal(t, "Error: Authentication required for updates", out)
	assert.Empty(t, db.queries)

	_, err = NewQueryTool(db, writePolicy, userSaid("zero the stock (ChickenB)")).InvokableRun(context.Background(), QueryArguments(update))
	require.NoError(t, err)
	assert.Equal(t, []string{update}, db.queries)
}

func TestQueryToolRejectsUnreadableArguments(t *testing.T) {
	db := &fakeDB{}
	qt := NewQueryTool(db, writePolicy, userSaid("how much tea?"))

	for _, args := range []string{
		"{not json",
		`{"query":["UPDATE inventory SET quantity = 0"]}`,
		`{"query":{"sql":"SELECT 1"}}`,
		`{"query":null}`,
	} {
		out, err := qt.InvokableRun(context.Background(), args)
		require.NoError(t, err, args)
		assert.Equal(t, "Error: "+errx.ErrUnreadableQuery.Error(), out, args)
	}
	assert.Empty(t, db.queries)
}

func TestNormalizeArguments(t *testing.T) {
	out, err := NormalizeArguments(ToolGetSchema, `{"table_names":[" inventory","sales "]}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"table_names":"inventory, sales"}`, out)

	out, err = NormalizeArguments(ToolRunQuery, `{"query":"  SELECT 1  "}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"SELECT 1"}`, out)

	_, err = NormalizeArguments(ToolRunQuery, `{"query":["SELECT 1"]}`)
	assert.ErrorIs(t, err, errx.ErrUnreadableQuery)

	out, err = NormalizeArguments("other_tool", `{"x":[1]}`)
	require.NoError(t, err)
	assert.Equal(t, `{"x":[1]}`, out)
}

func TestParseQuery(t *testing.T) {
	call := schema.ToolCall{ID: "call_1", Function: schema.FunctionCall{Name: ToolRunQuery, Arguments: QueryArguments("SELECT 1")}}
	query, err := ParseQuery(call)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", query)

	call.Function.Arguments = `{"query":["UPDATE inventory SET quantity = 0"]}`
	_, err = ParseQuery(call)
	assert.ErrorIs(t, err, errx.ErrUnreadableQuery)

	assert.Equal(t, `{"table_names":"inventory, sales"}`, SchemaArguments([]string{"inventory", "sales"}))
}

func TestToolInfos(t *testing.T) {
	db := &fakeDB{}
	infos, err := ToolInfos(context.Background(), NewListTablesTool(db), NewSchemaTool(db), NewQueryTool(db, writePolicy, nil))
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, ToolListTables, infos[0].Name)
	assert.Equal(t, ToolGetSchema, infos[1].Name)
	assert.Equal(t, ToolRunQuery, infos[2].Name)
}
