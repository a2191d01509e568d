package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const northwindFixture = `
CREATE TABLE Categories (CategoryID INTEGER PRIMARY KEY, CategoryName TEXT, Description TEXT);
CREATE TABLE Suppliers (SupplierID INTEGER PRIMARY KEY, CompanyName TEXT);
CREATE TABLE Customers (CustomerID TEXT PRIMARY KEY, CompanyName TEXT);
CREATE TABLE Products (ProductID INTEGER PRIMARY KEY, ProductName TEXT, SupplierID INTEGER, CategoryID INTEGER, UnitPrice NUMERIC);
CREATE TABLE Orders (OrderID INTEGER PRIMARY KEY, CustomerID TEXT, OrderDate DATETIME);
CREATE TABLE "Order Details" (OrderID INTEGER, ProductID INTEGER, UnitPrice NUMERIC, Quantity INTEGER, Discount REAL);

INSERT INTO Categories VALUES (1, 'Beverages', 'Soft drinks'), (4, 'Dairy Products', 'Cheeses');
INSERT INTO Suppliers VALUES (1, 'Exotic Liquids');
INSERT INTO Customers VALUES ('ALFKI', 'Alfreds Futterkiste');
INSERT INTO Products VALUES (1, 'Chai', 1, 1, 18.0), (11, 'Queso Cabrales', 1, 4, 21.0);
INSERT INTO Orders VALUES (10248, 'ALFKI', '1997-06-04 00:00:00'), (10249, 'ALFKI', '1997-12-10 00:00:00');
INSERT INTO "Order Details" VALUES (10248, 1, 18.0, 10, 0.0), (10248, 11, 21.0, 5, 0.1), (10249, 1, 18.0, 2, 0.0);
`

// newFixture writes a small Northwind-shaped database and opens it.
func newFixture(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "northwind.sqlite")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(northwindFixture)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(context.Background(), path, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope.sqlite"), time.Second)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEnsureViewsIdempotent(t *testing.T) {
	s := newFixture(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureViews(ctx))
	require.NoError(t, s.EnsureViews(ctx))

	res := s.Execute(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'view' AND name = 'order_items'`)
	require.False(t, res.Failed(), "unexpected error: %v", res.Err)
	assert.Equal(t, int64(1), res.Rows[0][0])
}

func TestExecuteRevenue(t *testing.T) {
	s := newFixture(t)

	res := s.Execute(context.Background(), `SELECT SUM(oi.UnitPrice * oi.Quantity * (1 - oi.Discount)) AS Revenue
		FROM orders o JOIN order_items oi ON o.OrderID = oi.OrderID
		JOIN products p ON oi.ProductID = p.ProductID
		JOIN categories c ON p.CategoryID = c.CategoryID
		WHERE strftime('%Y-%m-%d', o.OrderDate) BETWEEN '1997-06-01' AND '1997-06-30'
		AND c.CategoryName = 'Beverages'`)

	require.False(t, res.Failed(), "unexpected error: %v", res.Err)
	assert.Equal(t, []string{"Revenue"}, res.Columns)
	require.Len(t, res.Rows, 1)
	assert.InDelta(t, 180.0, res.Rows[0][0], 1e-9)
	assert.Equal(t, "[[180]] (columns: Revenue)", res.String())
}

func TestExecuteTextValues(t *testing.T) {
	s := newFixture(t)

	res := s.Execute(context.Background(), "SELECT ProductName FROM products ORDER BY ProductID")
	require.False(t, res.Failed())
	assert.Equal(t, []Row{{"Chai"}, {"Queso Cabrales"}}, res.Rows)
}

func TestExecuteError(t *testing.T) {
	s := newFixture(t)

	res := s.Execute(context.Background(), "SELECT nope FROM missing_table")
	require.True(t, res.Failed())
	assert.True(t, errors.Is(res.Err, ErrExecution))
	assert.Contains(t, res.String(), "Error:")
	assert.True(t, res.Empty())
}

func TestExecuteWrite(t *testing.T) {
	s := newFixture(t)

	res := s.Execute(context.Background(), "UPDATE Categories SET Description = 'Drinks' WHERE CategoryID = 1")
	require.False(t, res.Failed(), "unexpected error: %v", res.Err)
	assert.Equal(t, "Executed successfully", res.Message)
	assert.Equal(t, int64(1), res.Affected)
}

func TestExecutePragma(t *testing.T) {
	s := newFixture(t)

	res := s.Execute(context.Background(), "PRAGMA table_info('order_items')")
	require.False(t, res.Failed())
	assert.Len(t, res.Rows, 5)
}

func TestSchemaDetailed(t *testing.T) {
	s := newFixture(t)

	schema, err := s.SchemaDetailed(context.Background())
	require.NoError(t, err)

	assert.Contains(t, schema, "View: order_items\nColumns:\n  - OrderID (INTEGER)")
	assert.Contains(t, schema, "View: categories")
	assert.Contains(t, schema, "SUM(oi.UnitPrice * oi.Quantity * (1 - oi.Discount))")
	assert.Contains(t, schema, "0.7 * oi.UnitPrice")
	assert.Contains(t, schema, "strftime('%Y-%m-%d', o.OrderDate)")
	assert.NotContains(t, schema, "Order Details", "physical table names must not leak")
}

func TestSchema(t *testing.T) {
	s := newFixture(t)

	schema, err := s.Schema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"OrderID", "ProductID", "UnitPrice", "Quantity", "Discount"}, schema["Order Details"])
	assert.NotContains(t, schema, "order_items", "views are not tables")
}
