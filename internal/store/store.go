// Package store executes generated queries against the Northwind SQLite
// database and describes the view surface the query generator may use.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var (
	ErrNotFound  = errors.New("database not found")
	ErrExecution = errors.New("execution error")
)

// compatibility views over the physical Northwind schema
var views = []string{
	`CREATE VIEW IF NOT EXISTS orders AS SELECT * FROM Orders`,
	`CREATE VIEW IF NOT EXISTS order_items AS SELECT * FROM "Order Details"`,
	`CREATE VIEW IF NOT EXISTS products AS SELECT * FROM Products`,
	`CREATE VIEW IF NOT EXISTS customers AS SELECT * FROM Customers`,
	`CREATE VIEW IF NOT EXISTS categories AS SELECT * FROM Categories`,
	`CREATE VIEW IF NOT EXISTS suppliers AS SELECT * FROM Suppliers`,
}

// AllowedViews is the only surface described to the query generator.
var AllowedViews = []string{"orders", "order_items", "products", "customers", "categories", "suppliers"}

const queryPatterns = `Common Query Patterns:
- Revenue: SUM(oi.UnitPrice * oi.Quantity * (1 - oi.Discount))
- Cost of Goods Sold (COGS): 0.7 * oi.UnitPrice
- Join pattern: orders o JOIN order_items oi ON o.OrderID = oi.OrderID JOIN products p ON oi.ProductID = p.ProductID JOIN categories c ON p.CategoryID = c.CategoryID
- Date filtering: WHERE strftime('%Y-%m-%d', o.OrderDate) BETWEEN 'YYYY-MM-DD' AND 'YYYY-MM-DD'
`

type Store struct {
	db           *sql.DB
	path         string
	queryTimeout time.Duration
}

// Open connects to the database file at path and creates the lower-case
// compatibility views. View failures are logged, not returned: the views may
// already exist or the file may be read-only.
func Open(ctx context.Context, path string, queryTimeout time.Duration) (*Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, path: path, queryTimeout: queryTimeout}
	if err := s.EnsureViews(ctx); err != nil {
		slog.Warn("Failed to initialize views", "path", path, "error", err)
	}
	slog.Info("Opened database", "path", path)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureViews is idempotent; every statement is attempted and the failures
// are joined.
func (s *Store) EnsureViews(ctx context.Context) error {
	var errs []error
	for _, stmt := range views {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", stmt, err))
		}
	}
	return errors.Join(errs...)
}

// Execute runs exactly one statement. Driver faults come back inside the
// Result rather than as an error so the caller can route on them.
func (s *Store) Execute(ctx context.Context, query string) Result {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q := strings.TrimSpace(query)
	if !isRead(q) {
		res, err := s.db.ExecContext(ctx, q)
		if err != nil {
			return failed(err)
		}
		affected, _ := res.RowsAffected()
		return Result{Message: "Executed successfully", Affected: affected}
	}

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return failed(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return failed(err)
	}

	result := Result{Columns: cols, Rows: []Row{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return failed(err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return failed(err)
	}
	return result
}

// SchemaDetailed lists the allowed views with their column names and types,
// followed by the canonical formulas and join path.
func (s *Store) SchemaDetailed(ctx context.Context) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var b strings.Builder
	b.WriteString("Database Schema (Use these lowercase views):\n\n")

	for _, view := range AllowedViews {
		cols, err := s.columns(ctx, view)
		if err != nil {
			return "", err
		}
		if len(cols) == 0 {
			continue
		}
		fmt.Fprintf(&b, "View: %s\nColumns:\n", view)
		for _, c := range cols {
			fmt.Fprintf(&b, "  - %s (%s)\n", c.Name, c.Type)
		}
		b.WriteString("\n")
	}

	b.WriteString(queryPatterns)
	return b.String(), nil
}

// Schema maps every physical table to its column names.
func (s *Store) Schema(ctx context.Context) (map[string][]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	schema := make(map[string][]string, len(tables))
	for _, table := range tables {
		cols, err := s.columns(ctx, table)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.Name
		}
		schema[table] = names
	}
	return schema, nil
}

type column struct {
	Name string
	Type string
}

func (s *Store) columns(ctx context.Context, table string) ([]column, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", table, err)
	}
	defer rows.Close()

	var cols []column
	for rows.Next() {
		var c column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func isRead(q string) bool {
	upper := strings.ToUpper(q)
	for _, kw := range []string{"SELECT", "PRAGMA", "WITH"} {
		if strings.HasPrefix(upper, kw) {
			return true
		}
	}
	return false
}
