// Package sqltools provides the database tools the SQL workflow calls:
// list_tables_tool, sql_db_schema and db_query_tool.
package sqltools

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/janhq/sql-agent/internal/domain/tool"
	"github.com/janhq/sql-agent/internal/infrastructure/database"
	"github.com/janhq/sql-agent/internal/infrastructure/observability"
)

// ErrNoRows is the text shown to the model when a statement yields nothing.
var ErrNoRows = errors.New("query failed, please rewrite the query and retry")

// Database is the capability the tools need from the target database.
type Database interface {
	ListTables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]database.Column, error)
	SampleRows(ctx context.Context, table string, limit int) (database.Rows, error)
	Query(ctx context.Context, statement string) (database.Rows, error)
}

// Options tune the tools.
type Options struct {
	SampleRows int
	Cache      *SchemaCache
	Logger     zerolog.Logger
}

// Toolkit builds the three SQL tools over one database.
type Toolkit struct {
	db         Database
	sampleRows int
	cache      *SchemaCache
	log        zerolog.Logger
}

// NewToolkit wraps db.
func NewToolkit(db Database, opts Options) *Toolkit {
	if opts.SampleRows < 0 {
		opts.SampleRows = 0
	}
	return &Toolkit{
		db:         db,
		sampleRows: opts.SampleRows,
		cache:      opts.Cache,
		log:        opts.Logger.With().Str("component", "sql-tools").Logger(),
	}
}

// Tools returns the tools in registration order.
func (k *Toolkit) Tools() []tool.Tool {
	return []tool.Tool{
		listTablesTool{k},
		schemaTool{k},
		queryTool{k},
	}
}

// Source exposes the toolkit as a tool.Source.
func (k *Toolkit) Source() tool.Source {
	return tool.Static(k.Tools())
}

type listTablesTool struct{ k *Toolkit }

func (listTablesTool) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        tool.ListTablesToolName,
		Description: "List the tables available in the database. Takes no input and returns a comma-separated list of table names.",
		InputSchema: inputSchema(&ListTablesArgs{}),
	}
}

func (t listTablesTool) Call(ctx context.Context, _ map[string]any) (string, error) {
	ctx, span := observability.StartToolSpan(ctx, tool.ListTablesToolName)
	defer span.End()

	tables, err := t.k.db.ListTables(ctx)
	if err != nil {
		observability.RecordError(span, err, "recoverable")
		return "", errors.New(database.Describe(err))
	}
	if len(tables) == 0 {
		return "", errors.New("the database contains no tables")
	}
	slices.Sort(tables)
	return strings.Join(tables, ", "), nil
}

type schemaTool struct{ k *Toolkit }

func (schemaTool) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name: tool.SchemaToolName,
		Description: "Input to this tool is a comma-separated list of tables, output is the schema and sample rows for those tables. " +
			"Be sure that the tables actually exist by calling " + tool.ListTablesToolName + " first! Example input: table1, table2, table3",
		InputSchema: inputSchema(&SchemaArgs{}),
	}
}

func (t schemaTool) Call(ctx context.Context, args map[string]any) (string, error) {
	ctx, span := observability.StartToolSpan(ctx, tool.SchemaToolName)
	defer span.End()

	raw, _ := args["table_names"].(string)
	requested := splitTableNames(raw)
	if len(requested) == 0 {
		return "", errors.New("table_names is required")
	}

	known, err := t.k.db.ListTables(ctx)
	if err != nil {
		observability.RecordError(span, err, "recoverable")
		return "", errors.New(database.Describe(err))
	}
	var missing []string
	for _, name := range requested {
		if !slices.Contains(known, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("table_names {%s} not found in database", strings.Join(missing, ", "))
	}

	blocks := make([]string, 0, len(requested))
	for _, name := range requested {
		block, err := t.k.describe(ctx, name)
		if err != nil {
			observability.RecordError(span, err, "recoverable")
			return "", errors.New(database.Describe(err))
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n"), nil
}

func (k *Toolkit) describe(ctx context.Context, table string) (string, error) {
	if cached, ok := k.cache.Get(table); ok {
		return cached, nil
	}

	columns, err := k.db.Columns(ctx, table)
	if err != nil {
		return "", err
	}
	var sample database.Rows
	if k.sampleRows > 0 {
		sample, err = k.db.SampleRows(ctx, table, k.sampleRows)
		if err != nil {
			k.log.Warn().Err(err).Str("table", table).Msg("sample rows unavailable")
			sample = database.Rows{}
		}
	}

	block := RenderTable(table, columns, sample, k.sampleRows)
	k.cache.Set(table, block)
	return block, nil
}

type queryTool struct{ k *Toolkit }

func (queryTool) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name: tool.QueryToolName,
		Description: "Execute a SQL query against the database and get back the result. " +
			"If the query is not correct, an error message will be returned. " +
			"If an error is returned, rewrite the query, check the query, and try again.",
		InputSchema: inputSchema(&QueryArgs{}),
	}
}

func (t queryTool) Call(ctx context.Context, args map[string]any) (string, error) {
	ctx, span := observability.StartToolSpan(ctx, tool.QueryToolName)
	defer span.End()

	statement, _ := args["query"].(string)
	statement = strings.TrimSpace(statement)
	if statement == "" {
		return "", errors.New("query is required")
	}

	rows, err := t.k.db.Query(ctx, statement)
	if err != nil {
		observability.RecordError(span, err, "recoverable")
		t.k.log.Debug().Err(err).Msg("query rejected by database")
		return "", errors.New(database.Describe(err))
	}
	if len(rows.Columns) == 0 || len(rows.Values) == 0 {
		return "", ErrNoRows
	}
	return RenderRows(rows), nil
}

func splitTableNames(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}
