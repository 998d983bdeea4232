package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Column describes one column of a table as reported by the migrator.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// Rows is a rendered result set.
type Rows struct {
	Columns   []string
	Values    [][]any
	Truncated bool
}

// Catalog answers the introspection and query needs of the SQL tools.
type Catalog struct {
	pool *Pool
}

// NewCatalog wraps pool.
func NewCatalog(pool *Pool) *Catalog {
	return &Catalog{pool: pool}
}

// ListTables returns the tables of the current schema.
func (c *Catalog) ListTables(ctx context.Context) ([]string, error) {
	var tables []string
	err := c.pool.withRetry(ctx, func(db *gorm.DB) error {
		var err error
		tables, err = db.Migrator().GetTables()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// Columns returns the column layout of table.
func (c *Catalog) Columns(ctx context.Context, table string) ([]Column, error) {
	var columns []Column
	err := c.pool.withRetry(ctx, func(db *gorm.DB) error {
		types, err := db.Migrator().ColumnTypes(table)
		if err != nil {
			return err
		}
		columns = make([]Column, 0, len(types))
		for _, ct := range types {
			col := Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
			if full, ok := ct.ColumnType(); ok && full != "" {
				col.Type = full
			}
			if nullable, ok := ct.Nullable(); ok {
				col.Nullable = nullable
			}
			if pk, ok := ct.PrimaryKey(); ok {
				col.PrimaryKey = pk
			}
			if def, ok := ct.DefaultValue(); ok {
				col.Default = def
			}
			columns = append(columns, col)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("describe table %s: %w", table, err)
	}
	return columns, nil
}

// SampleRows returns up to limit rows of table.
func (c *Catalog) SampleRows(ctx context.Context, table string, limit int) (Rows, error) {
	return c.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", QuoteIdentifier(table), limit))
}

// Query runs statement inside a transaction bounded by the statement timeout.
// The transaction is read-only unless the pool is configured otherwise.
func (c *Catalog) Query(ctx context.Context, statement string) (Rows, error) {
	cfg := c.pool.Config()
	var out Rows
	err := c.pool.withRetry(ctx, func(db *gorm.DB) error {
		out = Rows{}
		return db.Transaction(func(tx *gorm.DB) error {
			if cfg.StatementTimeout > 0 {
				if err := tx.Exec(fmt.Sprintf("SET LOCAL statement_timeout = %d", cfg.StatementTimeout.Milliseconds())).Error; err != nil {
					return err
				}
			}
			rows, err := tx.Raw(statement).Rows()
			if err != nil {
				return err
			}
			defer rows.Close()
			out, err = scanRows(rows, cfg.MaxResultRows)
			return err
		}, &sql.TxOptions{ReadOnly: cfg.ReadOnly})
	})
	return out, err
}

func scanRows(rows *sql.Rows, maxRows int) (Rows, error) {
	columns, err := rows.Columns()
	if err != nil {
		return Rows{}, err
	}
	out := Rows{Columns: columns}
	for rows.Next() {
		if maxRows > 0 && len(out.Values) >= maxRows {
			out.Truncated = true
			break
		}
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return Rows{}, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out.Values = append(out.Values, values)
	}
	return out, rows.Err()
}

// QuoteIdentifier quotes a PostgreSQL identifier.
func QuoteIdentifier(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
