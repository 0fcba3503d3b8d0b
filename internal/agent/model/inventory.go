package model

import "context"

// InventoryItem is a row of the inventory table.
type InventoryItem struct {
	ID          int64   `json:"id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	CreatedDate string  `json:"created_date"`
}

// SaleRecord is a row of the sales table.
type SaleRecord struct {
	ID           int64  `json:"id"`
	ProductName  string `json:"product_name"`
	QuantitySold int    `json:"quantity_sold"`
	SaleDate     string `json:"sale_date"`
	CreatedDate  string `json:"created_date"`
}

// ItemCatalog returns the known product names, creating storage on first use.
type ItemCatalog interface {
	ItemNames(ctx context.Context) ([]string, error)
}

// SQLDatabase is everything the query agent may do with the database.
// Query execution failures are reported in the returned text, not as errors.
type SQLDatabase interface {
	Dialect() string
	ListTables(ctx context.Context) (string, error)
	TableInfo(ctx context.Context, tables []string) (string, error)
	RunQuery(ctx context.Context, query string) (string, error)
}
