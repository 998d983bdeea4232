package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/sql-agent/internal/config"
	"github.com/janhq/sql-agent/internal/domain/ask"
	"github.com/janhq/sql-agent/internal/domain/status"
)

type scriptedAsker struct {
	questions []string
}

func (s *scriptedAsker) Ask(_ context.Context, question string, onStep func(ask.Event)) (*ask.Answer, error) {
	s.questions = append(s.questions, question)
	onStep(ask.Event{Output: question})
	onStep(ask.Event{Output: ""})
	onStep(ask.Event{Output: "answer to " + question})
	return &ask.Answer{Final: "answer to " + question, Status: status.StatusCompleted}, nil
}

func (s *scriptedAsker) Close() error { return nil }

func TestReadEventsResult(t *testing.T) {
	stream := strings.Join([]string{
		"event:step",
		`data:{"run_id":"r1","step":0,"node":"__start__","next":"list_tables_request","output":"how many users?"}`,
		"",
		"event:step",
		`data:{"run_id":"r1","step":1,"node":"list_tables_request","next":"list_tables_exec","output":""}`,
		"",
		"event:result",
		`data:{"run_id":"r1","status":"completed","steps":1,"outputs":["how many users?",""],"final":"how many users?"}`,
		"",
	}, "\n")

	var steps []ask.Event
	answer, err := readEvents(strings.NewReader(stream), func(ev ask.Event) { steps = append(steps, ev) })
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "how many users?", steps[0].Output)
	assert.Equal(t, status.StatusCompleted, answer.Status)
	assert.Equal(t, "r1", answer.RunID)
}

func TestReadEventsError(t *testing.T) {
	stream := "event:error\n" +
		`data:{"error":"step budget of 3 exhausted","type":"LIMIT_EXCEEDED","run":{"run_id":"r2","status":"budget_exhausted","steps":3}}` + "\n\n"

	answer, err := readEvents(strings.NewReader(stream), func(ask.Event) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LIMIT_EXCEEDED")
	require.NotNil(t, answer)
	assert.Equal(t, status.StatusBudgetExhausted, answer.Status)
}

func TestReadEventsTruncated(t *testing.T) {
	_, err := readEvents(strings.NewReader("event:step\ndata:{}\n\n"), func(ask.Event) {})
	assert.EqualError(t, err, "stream ended without a result")
}

func TestIsQuit(t *testing.T) {
	for _, in := range []string{"q", "exit", "QUIT", "  quit  "} {
		assert.True(t, isQuit(in), in)
	}
	assert.False(t, isQuit("how many rows?"))
}

func TestAskOnceEchoesNonEmptyOutputs(t *testing.T) {
	var out bytes.Buffer
	answer, err := askOnce(context.Background(), &scriptedAsker{}, "users?", &out, true)
	require.NoError(t, err)
	assert.Equal(t, "answer to users?", answer.Final)
	assert.Equal(t, "users?\nanswer to users?\n", out.String())
}

func TestMaskSecrets(t *testing.T) {
	masked := maskSecrets(config.Config{
		LLMAPIKey:   "sk-live",
		DatabaseURL: "postgres://reader:s3cret@db:5432/shop?sslmode=disable",
	})
	assert.Equal(t, "****", masked.LLMAPIKey)
	assert.NotContains(t, masked.DatabaseURL, "s3cret")
	assert.Contains(t, masked.DatabaseURL, "reader")
}
