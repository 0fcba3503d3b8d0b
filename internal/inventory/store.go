package inventory

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/stockwise-ai/server/internal/agent/model"
	errx "github.com/stockwise-ai/server/internal/core/error"
)

// Store is the SQLite inventory database. It serves both as the item catalog
// and as the SQL collaborator of the query agent.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open inventory db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping inventory db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the inventory and sales tables when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return errx.WrapSQL(fmt.Errorf("ensure schema: %w", err))
	}
	return nil
}

// ItemNames returns every product name in insertion order. The schema is
// created first so a fresh database yields an empty catalog.
func (s *Store) ItemNames(ctx context.Context) ([]string, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT product_name FROM inventory ORDER BY id`)
	if err != nil {
		return nil, errx.WrapSQL(fmt.Errorf("list item names: %w", err))
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errx.WrapSQL(fmt.Errorf("scan item name: %w", err))
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapSQL(err)
	}
	return names, nil
}

// Items returns every inventory row.
func (s *Store) Items(ctx context.Context) ([]model.InventoryItem, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, product_name, quantity, price, created_date FROM inventory ORDER BY id`)
	if err != nil {
		return nil, errx.WrapSQL(fmt.Errorf("list items: %w", err))
	}
	defer rows.Close()

	items := []model.InventoryItem{}
	for rows.Next() {
		var it model.InventoryItem
		if err := rows.Scan(&it.ID, &it.ProductName, &it.Quantity, &it.Price, &it.CreatedDate); err != nil {
			return nil, errx.WrapSQL(fmt.Errorf("scan item: %w", err))
		}
		items = append(items, it)
	}
	return items, errx.WrapSQL(rows.Err())
}

// Sales returns every sale row, oldest first.
func (s *Store) Sales(ctx context.Context) ([]model.SaleRecord, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, product_name, quantity_sold, sale_date, created_date FROM sales ORDER BY id`)
	if err != nil {
		return nil, errx.WrapSQL(fmt.Errorf("list sales: %w", err))
	}
	defer rows.Close()

	sales := []model.SaleRecord{}
	for rows.Next() {
		var sr model.SaleRecord
		if err := rows.Scan(&sr.ID, &sr.ProductName, &sr.QuantitySold, &sr.SaleDate, &sr.CreatedDate); err != nil {
			return nil, errx.WrapSQL(fmt.Errorf("scan sale: %w", err))
		}
		sales = append(sales, sr)
	}
	return sales, errx.WrapSQL(rows.Err())
}

// UpsertItem inserts a product or overwrites its quantity and price.
func (s *Store) UpsertItem(ctx context.Context, name string, quantity int, price float64) error {
	if name == "" {
		return fmt.Errorf("upsert item: product name is empty")
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory (product_name, quantity, price) VALUES (?, ?, ?)
		ON CONFLICT(product_name) DO UPDATE SET quantity = excluded.quantity, price = excluded.price`,
		name, quantity, price)
	if err != nil {
		return errx.WrapSQL(fmt.Errorf("upsert item %q: %w", name, err))
	}
	return nil
}

// RecordSale appends a sale row.
func (s *Store) RecordSale(ctx context.Context, name string, quantity int, saleDate string) error {
	if name == "" || saleDate == "" {
		return fmt.Errorf("record sale: product name and sale date are required")
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sales (product_name, quantity_sold, sale_date) VALUES (?, ?, ?)`,
		name, quantity, saleDate)
	if err != nil {
		return errx.WrapSQL(fmt.Errorf("record sale %q: %w", name, err))
	}
	return nil
}

var (
	_ model.ItemCatalog = (*Store)(nil)
	_ model.SQLDatabase = (*Store)(nil)
)
