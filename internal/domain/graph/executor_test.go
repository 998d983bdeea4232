package graph_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/janhq/sql-agent/internal/domain/errors"
	"github.com/janhq/sql-agent/internal/domain/graph"
	"github.com/janhq/sql-agent/internal/domain/llm"
	"github.com/janhq/sql-agent/internal/domain/llm/llmtest"
	"github.com/janhq/sql-agent/internal/domain/message"
	"github.com/janhq/sql-agent/internal/domain/status"
	"github.com/janhq/sql-agent/internal/domain/tool"
)

func schemaLookup(tables string) llmtest.Response {
	return llmtest.Call(tool.SchemaToolName, map[string]any{"table_names": tables})
}

func TestExecutor_ListAllTables(t *testing.T) {
	client := llmtest.NewScriptedClient(
		schemaLookup("employees, orders"),
		llmtest.Text("The database contains the tables employees and orders."),
	)
	f := newFixture(t, client, 0)

	result, err := f.exec.Run(context.Background(), "List all tables")
	require.NoError(t, err)

	assert.Equal(t, status.StatusCompleted, result.Status)
	assert.Equal(t, 5, result.Steps)
	assert.Equal(t, "The database contains the tables employees and orders.", result.Final)
	require.Len(t, result.Messages, 6)

	assert.Equal(t, message.RoleUser, result.Messages[0].Role)
	assert.Equal(t, "List all tables", result.Messages[0].Content)

	listCall := result.Messages[1]
	require.Len(t, listCall.ToolCalls, 1)
	assert.Equal(t, tool.ListTablesToolName, listCall.ToolCalls[0].Name)
	assert.NotEmpty(t, listCall.ToolCalls[0].ID)

	listResult := result.Messages[2]
	assert.Equal(t, message.RoleTool, listResult.Role)
	assert.Equal(t, "employees, orders", listResult.Content)
	assert.Equal(t, listCall.ToolCalls[0].ID, listResult.ToolCallID)

	last := result.Messages[5]
	assert.False(t, last.HasToolCalls())
	assert.Equal(t, []string{"employees, orders"}, f.db.schemaCalls)
	assert.Equal(t, status.StatusCompleted, f.instr.final)

	requests := client.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, llm.ModeForcedAny, requests[0].Mode)
	require.Len(t, requests[0].Tools, 1)
	assert.Equal(t, tool.SchemaToolName, requests[0].Tools[0].Name)
	assert.Equal(t, llm.ModeFree, requests[1].Mode)
	assert.Equal(t, tool.QueryToolName, requests[1].Tools[0].Name)
	assert.Equal(t, message.RoleSystem, requests[1].Messages[0].Role)
	assert.Contains(t, requests[1].Messages[0].Content, "at most 5 results")
}

func TestExecutor_RunsRevisedQuery(t *testing.T) {
	client := llmtest.NewScriptedClient(
		schemaLookup("orders"),
		llmtest.Query("SELECT * FROM orders"),
		llmtest.Query("SELECT id FROM orders LIMIT 5"),
		llmtest.Text("Order ids are 1 and 2."),
	)
	f := newFixture(t, client, 0)

	result, err := f.exec.Run(context.Background(), "Show some orders")
	require.NoError(t, err)

	assert.Equal(t, []string{"SELECT id FROM orders LIMIT 5"}, f.db.executed())
	assert.Equal(t, 8, result.Steps)
	assert.Equal(t, "Order ids are 1 and 2.", result.Final)

	proposed := result.Messages[5]
	revised := result.Messages[6]
	query, _ := revised.ToolCalls[0].StringArg("query")
	assert.Equal(t, "SELECT id FROM orders LIMIT 5", query)
	assert.Equal(t, proposed.ID, revised.ID)

	queryResult := result.Messages[7]
	assert.Equal(t, revised.ToolCalls[0].ID, queryResult.ToolCallID)

	requests := client.Requests()
	require.Len(t, requests, 4)
	review := requests[2]
	assert.Equal(t, llm.ModeForcedAny, review.Mode)
	require.Len(t, review.Messages, 2)
	assert.Equal(t, message.RoleSystem, review.Messages[0].Role)
	assert.Equal(t, message.RoleUser, review.Messages[1].Role)
	assert.Equal(t, "SELECT * FROM orders", review.Messages[1].Content)

	for _, m := range requests[3].Messages {
		if m.HasToolCalls() {
			q, _ := m.ToolCalls[0].StringArg("query")
			assert.NotEqual(t, "SELECT * FROM orders", q, "superseded proposal must not reach the model")
		}
	}
}

func TestExecutor_ToolErrorBecomesContent(t *testing.T) {
	client := llmtest.NewScriptedClient(
		schemaLookup("orders"),
		llmtest.Query("SELEC id FROM orders"),
		llmtest.Query("SELEC id FROM orders"),
		llmtest.Text("I could not run that query."),
	)
	f := newFixture(t, client, 0)

	result, err := f.exec.Run(context.Background(), "Show orders")
	require.NoError(t, err)

	toolTurn := result.Messages[7]
	assert.Equal(t, message.RoleTool, toolTurn.Role)
	assert.True(t, tool.IsErrorText(toolTurn.Content))
	assert.Contains(t, toolTurn.Content, "syntax error")
	assert.Contains(t, f.instr.recovered, errs.ErrCodeToolInvocation)

	lastRequest := client.Requests()[3]
	lastSeen := lastRequest.Messages[len(lastRequest.Messages)-1]
	assert.Equal(t, toolTurn.Content, lastSeen.Content)
}

func TestExecutor_MissingQueryRoutesBackToGeneration(t *testing.T) {
	client := llmtest.NewScriptedClient(
		schemaLookup("orders"),
		llmtest.Call(tool.QueryToolName, map[string]any{}),
		llmtest.Text("There are two orders."),
	)
	f := newFixture(t, client, 0)

	result, err := f.exec.Run(context.Background(), "How many orders?")
	require.NoError(t, err)

	assert.Empty(t, f.db.executed())
	assert.Equal(t, 7, result.Steps)
	require.Len(t, result.Messages, 8)

	proposal := result.Messages[5]
	corrective := result.Messages[6]
	assert.Equal(t, message.RoleAssistant, corrective.Role)
	assert.False(t, corrective.HasToolCalls())
	assert.NotEmpty(t, corrective.Content)
	assert.Equal(t, proposal.ID, corrective.ID)
	assert.Equal(t, []string{errs.ErrCodeMissingQuery}, f.instr.recovered)

	assert.Equal(t, []graph.NodeID{
		graph.NodeListTablesRequest, graph.NodeListTablesExec, graph.NodeSchemaRequest, graph.NodeSchemaExec,
		graph.NodeGenerateQuery, graph.NodeCheckQuery, graph.NodeGenerateQuery,
	}, f.instr.nodes)
	assert.Len(t, client.Requests(), 3)
}

func TestExecutor_ForcedSchemaLookupDeclined(t *testing.T) {
	client := llmtest.NewScriptedClient(
		llmtest.Text("I already know the schema."),
		llmtest.Text("Done."),
	)
	f := newFixture(t, client, 0)

	result, err := f.exec.Run(context.Background(), "List all tables")
	require.NoError(t, err)

	assert.Empty(t, f.db.schemaCalls)
	assert.Equal(t, []string{errs.ErrCodeForcedToolCall}, f.instr.recovered)
	corrective := result.Messages[3]
	assert.Contains(t, corrective.Content, tool.SchemaToolName)
	assert.NotContains(t, f.instr.nodes, graph.NodeSchemaExec)
}

func TestExecutor_ForcedReviewDeclined(t *testing.T) {
	client := llmtest.NewScriptedClient(
		schemaLookup("orders"),
		llmtest.Query("SELECT id FROM orders"),
		llmtest.Text("Looks fine to me."),
		llmtest.Text("Could not verify the query."),
	)
	f := newFixture(t, client, 0)

	result, err := f.exec.Run(context.Background(), "Show orders")
	require.NoError(t, err)

	assert.Empty(t, f.db.executed())
	assert.Equal(t, []string{errs.ErrCodeForcedToolCall}, f.instr.recovered)
	assert.Equal(t, result.Messages[5].ID, result.Messages[6].ID)
	assert.Equal(t, "Could not verify the query.", result.Final)
}

func TestExecutor_StepBudget(t *testing.T) {
	alwaysQuery := llm.ClientFunc(func(_ context.Context, req llm.Request) (message.Message, error) {
		if req.Tools[0].Name == tool.SchemaToolName {
			return message.NewAssistant("", message.ToolCall{Name: tool.SchemaToolName, Arguments: map[string]any{"table_names": "orders"}})
		}
		return message.NewAssistant("", message.ToolCall{Name: tool.QueryToolName, Arguments: map[string]any{"query": "SELECT 1"}})
	})

	for _, budget := range []int{1, 4, 9, 25} {
		f := newFixture(t, alwaysQuery, budget)

		result, err := f.exec.Run(context.Background(), "loop forever")
		require.Error(t, err)
		assert.ErrorIs(t, err, graph.ErrRecursionLimitExceeded)
		assert.True(t, errs.HasCode(err, errs.ErrCodeRecursionLimit))
		assert.Equal(t, status.StatusBudgetExhausted, graph.StatusFor(err))

		require.NotNil(t, result)
		assert.Equal(t, status.StatusBudgetExhausted, result.Status)
		assert.Equal(t, budget, result.Steps)
		assert.Len(t, f.instr.nodes, budget)
		assert.Greater(t, len(result.Messages), 1)
	}
}

func TestExecutor_WithStepBudgetOverride(t *testing.T) {
	client := llmtest.NewScriptedClient(schemaLookup("orders"), llmtest.Text("done"))
	f := newFixture(t, client, 3)

	result, err := f.exec.Run(context.Background(), "q", graph.WithStepBudget(5), graph.WithRunID("run-123"))
	require.NoError(t, err)
	assert.Equal(t, "run-123", result.RunID)
	assert.Equal(t, 5, result.Steps)
	assert.Equal(t, 5, f.instr.budget)
}

func TestExecutor_ReportsConfiguredBudgetWithoutOverride(t *testing.T) {
	client := llmtest.NewScriptedClient(schemaLookup("orders"), llmtest.Text("done"))
	f := newFixture(t, client, 9)

	_, err := f.exec.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 9, f.instr.budget)
}

func TestExecutor_CapabilityFaultPreservesLog(t *testing.T) {
	client := llmtest.NewScriptedClient(
		schemaLookup("orders"),
		llmtest.Fail(errors.New("dial tcp: connection refused")),
	)
	f := newFixture(t, client, 0)

	result, err := f.exec.Run(context.Background(), "Show orders")
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeCapabilityClient))
	assert.Contains(t, err.Error(), "connection refused")

	var stepErr *errs.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, graph.NodeGenerateQuery.String(), stepErr.Node)

	assert.Equal(t, status.StatusFailed, result.Status)
	assert.Len(t, result.Messages, 5)
	assert.Equal(t, status.StatusFailed, f.instr.final)
}

func TestExecutor_CancellationBetweenSteps(t *testing.T) {
	f := newFixture(t, llmtest.NewScriptedClient(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var snapshots []graph.Snapshot
	var runErr error
	for snap, err := range f.exec.Stream(ctx, "List all tables") {
		snapshots = append(snapshots, snap)
		if snap.Node == graph.NodeListTablesExec {
			cancel()
		}
		if err != nil {
			runErr = err
		}
	}

	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, graph.ErrRunCancelled)
	assert.ErrorIs(t, runErr, context.Canceled)
	assert.Equal(t, status.StatusCancelled, graph.StatusFor(runErr))

	last := snapshots[len(snapshots)-1]
	assert.Len(t, last.Messages, 3)
	assert.Equal(t, "employees, orders", last.Messages[2].Content)
}

func TestExecutor_StreamIsAppendOnly(t *testing.T) {
	client := llmtest.NewScriptedClient(
		schemaLookup("orders"),
		llmtest.Query("SELECT * FROM orders"),
		llmtest.Query("SELECT id FROM orders LIMIT 5"),
		llmtest.Text("done"),
	)
	f := newFixture(t, client, 0)

	var previous []message.Message
	count := 0
	for snap, err := range f.exec.Stream(context.Background(), "Show orders") {
		require.NoError(t, err)
		if count == 0 {
			assert.Equal(t, graph.Start, snap.Node)
			assert.Equal(t, graph.NodeListTablesRequest, snap.Next)
			require.Len(t, snap.Messages, 1)
		} else {
			assert.Greater(t, len(snap.Messages), len(previous))
			assert.Equal(t, previous, snap.Messages[:len(previous)])
			assert.Equal(t, count, snap.Step)
		}
		previous = snap.Messages
		count++
	}
	assert.Equal(t, 9, count)
}

func TestExecutor_StreamStopsWhenConsumerBreaks(t *testing.T) {
	client := llmtest.NewScriptedClient(schemaLookup("orders"), llmtest.Text("done"))
	f := newFixture(t, client, 0)

	for snap := range f.exec.Stream(context.Background(), "q") {
		if snap.Node == graph.NodeListTablesExec {
			break
		}
	}

	assert.Equal(t, 2, client.Remaining())
	assert.Equal(t, status.StatusCancelled, f.instr.final)
}

func TestExecutor_EmptyQuestion(t *testing.T) {
	f := newFixture(t, llmtest.NewScriptedClient(), 0)

	_, err := f.exec.Run(context.Background(), "   ")
	require.ErrorIs(t, err, graph.ErrEmptyQuestion)
	assert.True(t, errs.HasCode(err, errs.ErrCodeInvalidInput))
}

func TestNewExecutor_RequiresTools(t *testing.T) {
	registry, err := tool.NewRegistry(nil)
	require.NoError(t, err)

	_, err = graph.NewExecutor(graph.Config{
		LLM:    llmtest.NewScriptedClient(),
		Tools:  registry,
		Logger: zerolog.Nop(),
	})
	require.ErrorIs(t, err, tool.ErrUnknownTool)
}

func TestExecutor_ConcurrentRunsAreIsolated(t *testing.T) {
	client := llm.ClientFunc(func(_ context.Context, req llm.Request) (message.Message, error) {
		if req.Tools[0].Name == tool.SchemaToolName {
			return message.NewAssistant("", message.ToolCall{Name: tool.SchemaToolName, Arguments: map[string]any{"table_names": "orders"}})
		}
		last := req.Messages[len(req.Messages)-1]
		return message.NewAssistant("answer:" + last.Content)
	})
	f := newFixture(t, client, 0)

	results := make(chan *graph.Result, 8)
	for i := 0; i < 8; i++ {
		go func() {
			res, err := f.exec.Run(context.Background(), "q")
			if err != nil {
				results <- nil
				return
			}
			results <- res
		}()
	}
	runIDs := map[string]struct{}{}
	for i := 0; i < 8; i++ {
		res := <-results
		require.NotNil(t, res)
		assert.Len(t, res.Messages, 6)
		runIDs[res.RunID] = struct{}{}
	}
	assert.Len(t, runIDs, 8)
}
