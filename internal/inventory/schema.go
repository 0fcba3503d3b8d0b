package inventory

// Schema creates the inventory and sales relations. Every statement is
// CREATE ... IF NOT EXISTS so applying it repeatedly never touches rows.
const Schema = `
CREATE TABLE IF NOT EXISTS inventory (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    product_name TEXT UNIQUE NOT NULL,
    quantity INTEGER DEFAULT 0,
    price REAL DEFAULT 0.0,
    created_date TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sales (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    product_name TEXT NOT NULL,
    quantity_sold INTEGER NOT NULL,
    sale_date TEXT NOT NULL,
    created_date TEXT DEFAULT CURRENT_TIMESTAMP
);
`
