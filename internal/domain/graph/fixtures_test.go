package graph_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	errs "github.com/janhq/sql-agent/internal/domain/errors"
	"github.com/janhq/sql-agent/internal/domain/graph"
	"github.com/janhq/sql-agent/internal/domain/llm"
	"github.com/janhq/sql-agent/internal/domain/prompt"
	"github.com/janhq/sql-agent/internal/domain/status"
	"github.com/janhq/sql-agent/internal/domain/tool"
)

// fakeDatabase backs the three SQL tools with canned data.
type fakeDatabase struct {
	mu          sync.Mutex
	tables      string
	queries     []string
	schemaCalls []string
}

func (db *fakeDatabase) tools() []tool.Tool {
	return []tool.Tool{
		tool.Func{
			Desc: tool.Descriptor{Name: tool.ListTablesToolName, Description: "List tables"},
			Fn: func(context.Context, map[string]any) (string, error) {
				return db.tables, nil
			},
		},
		tool.Func{
			Desc: tool.Descriptor{Name: tool.SchemaToolName, Description: "Describe tables"},
			Fn: func(_ context.Context, args map[string]any) (string, error) {
				names, _ := args["table_names"].(string)
				db.mu.Lock()
				db.schemaCalls = append(db.schemaCalls, names)
				db.mu.Unlock()
				return "CREATE TABLE orders (\n\tid integer NOT NULL\n)", nil
			},
		},
		tool.Func{
			Desc: tool.Descriptor{Name: tool.QueryToolName, Description: "Run a query"},
			Fn: func(_ context.Context, args map[string]any) (string, error) {
				query, _ := args["query"].(string)
				db.mu.Lock()
				db.queries = append(db.queries, query)
				db.mu.Unlock()
				if !strings.HasPrefix(strings.ToUpper(query), "SELECT ") {
					return "", errors.New(`syntax error at or near "` + strings.Fields(query + " x")[0] + `"`)
				}
				return "id\n1\n2", nil
			},
		},
	}
}

func (db *fakeDatabase) executed() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]string(nil), db.queries...)
}

// recordingInstrumentation captures lifecycle events.
type recordingInstrumentation struct {
	mu        sync.Mutex
	nodes     []graph.NodeID
	recovered []string
	final     status.Status
	budget    int
}

func (r *recordingInstrumentation) StartRun(ctx context.Context, _ string, stepBudget int) (context.Context, func(status.Status, error)) {
	r.mu.Lock()
	r.budget = stepBudget
	r.mu.Unlock()
	return ctx, func(s status.Status, _ error) {
		r.mu.Lock()
		r.final = s
		r.mu.Unlock()
	}
}

func (r *recordingInstrumentation) StartNode(ctx context.Context, _ string, node graph.NodeID, _ int) (context.Context, func(error)) {
	r.mu.Lock()
	r.nodes = append(r.nodes, node)
	r.mu.Unlock()
	return ctx, func(error) {}
}

func (r *recordingInstrumentation) Recovered(_ context.Context, _ graph.NodeID, err *errs.StepError) {
	r.mu.Lock()
	r.recovered = append(r.recovered, err.Code)
	r.mu.Unlock()
}

type fixture struct {
	db    *fakeDatabase
	instr *recordingInstrumentation
	exec  *graph.Executor
}

func newFixture(t *testing.T, client llm.Client, budget int) *fixture {
	t.Helper()
	db := &fakeDatabase{tables: "employees, orders"}
	registry, err := tool.NewRegistry(db.tools())
	require.NoError(t, err)

	instr := &recordingInstrumentation{}
	exec, err := graph.NewExecutor(graph.Config{
		LLM:             client,
		Tools:           registry,
		Prompts:         prompt.Default(prompt.Params{Dialect: "postgresql", TopK: 5}),
		StepBudget:      budget,
		Instrumentation: instr,
		Logger:          zerolog.Nop(),
	})
	require.NoError(t, err)
	return &fixture{db: db, instr: instr, exec: exec}
}
