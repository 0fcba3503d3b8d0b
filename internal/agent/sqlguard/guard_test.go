package sqlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/stockwise-ai/server/internal/core/error"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		query string
		want  Kind
	}{
		{"SELECT product_name, price FROM inventory LIMIT 5", Read},
		{"select * from sales where product_name = 'Drop Cookies'", Read},
		{"SELECT 1 -- DELETE FROM inventory", Read},
		{"SELECT /* drop table sales */ 1", Read},
		{`SELECT "update" FROM inventory`, Read},
		{"SELECT deleted_at FROM inventory", Read},
		{"UPDATE inventory SET quantity = quantity - 4 WHERE product_name = 'Premium Tea'", Write},
		{"insert into sales (product_name, quantity_sold, sale_date) values ('Tea', 1, '2024-01-01')", Write},
		{"CREATE TABLE IF NOT EXISTS x (id INTEGER)", Write},
		{"DELETE FROM sales", Destructive},
		{"drop table inventory", Destructive},
		{"SELECT 1; DROP TABLE sales", Destructive},
		{"UPDATE inventory SET quantity = 0; DELETE FROM sales", Destructive},
		{"TRUNCATE sales", Destructive},
		{"SELECT 'it''s' ; delete from sales", Destructive},
		{"SELECT REPLACE(product_name, ' ', '-') FROM inventory", Read},
		{"select replace(lower(product_name), 'tea', 'Tea') as name from inventory", Read},
		{"REPLACE INTO inventory (product_name, quantity) VALUES ('Tea', 1)", Write},
		{"INSERT OR REPLACE INTO inventory (product_name, quantity) VALUES ('Tea', 1)", Write},
		{"WITH t AS (SELECT 1) REPLACE INTO inventory (product_name) SELECT 'Tea' FROM t", Write},
		{"SELECT 1; REPLACE INTO inventory (product_name) VALUES ('Tea')", Write},
		{"ATTACH DATABASE '/tmp/x.db' AS x", Write},
		{"DETACH DATABASE x", Write},
		{"VACUUM INTO '/tmp/copy.db'", Write},
		{"REINDEX inventory", Write},
		{"PRAGMA writable_schema = ON", Write},
		{"PRAGMA writable_schema(1)", Write},
		{"pragma main.journal_mode=DELETE", Destructive},
		{"PRAGMA table_info(inventory)", Read},
		{"PRAGMA main.table_info('sales')", Read},
		{"PRAGMA journal_mode", Read},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.query))
		})
	}
}

func TestPolicyAuthorize(t *testing.T) {
	p := Policy{Token: "ChickenB"}
	update := "UPDATE inventory SET quantity = 10 WHERE product_name = 'Premium Tea'"

	t.Run("reads always pass", func(t *testing.T) {
		require.NoError(t, p.Authorize("SELECT * FROM inventory", "show me everything"))
	})

	t.Run("write without token", func(t *testing.T) {
		err := p.Authorize(update, "set premium tea stock to 10")
		require.ErrorIs(t, err, errx.ErrAuthenticationRequired)
		assert.Equal(t, "Authentication required for updates", RefusalMessage(err))
	})

	t.Run("write with token", func(t *testing.T) {
		require.NoError(t, p.Authorize(update, "set premium tea stock to 10 (ChickenB)"))
	})

	t.Run("token is case sensitive and needs parentheses", func(t *testing.T) {
		require.ErrorIs(t, p.Authorize(update, "set stock (chickenb)"), errx.ErrAuthenticationRequired)
		require.ErrorIs(t, p.Authorize(update, "set stock ChickenB"), errx.ErrAuthenticationRequired)
	})

	t.Run("destructive never passes", func(t *testing.T) {
		err := p.Authorize("DELETE FROM sales", "clear all sales (ChickenB)")
		require.ErrorIs(t, err, errx.ErrDestructiveStatement)
		assert.Equal(t, "Destructive statements (DELETE, DROP) are not permitted", RefusalMessage(err))
	})

	t.Run("string functions are not writes", func(t *testing.T) {
		require.NoError(t, p.Authorize("SELECT REPLACE(product_name, ' ', '-') FROM inventory", "list product slugs"))
	})

	t.Run("database file and pragma changes need the token", func(t *testing.T) {
		for _, q := range []string{
			"ATTACH DATABASE '/tmp/x.db' AS x",
			"VACUUM INTO '/tmp/copy.db'",
			"PRAGMA writable_schema = ON",
		} {
			require.ErrorIs(t, p.Authorize(q, "tidy the database"), errx.ErrAuthenticationRequired, q)
		}
	})

	t.Run("empty token blocks writes", func(t *testing.T) {
		require.ErrorIs(t, Policy{}.Authorize(update, "()"), errx.ErrAuthenticationRequired)
	})
}
