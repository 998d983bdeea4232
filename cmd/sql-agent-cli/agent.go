package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/janhq/sql-agent/internal/bootstrap"
	"github.com/janhq/sql-agent/internal/config"
	"github.com/janhq/sql-agent/internal/domain/ask"
	"github.com/janhq/sql-agent/internal/infrastructure/logger"
)

// asker runs one question and reports every step.
type asker interface {
	Ask(ctx context.Context, question string, onStep func(ask.Event)) (*ask.Answer, error)
	Close() error
}

func newAsker(cmd *cobra.Command) (asker, error) {
	baseURL, _ := cmd.Flags().GetString("url")
	budget, _ := cmd.Flags().GetInt("step-budget")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if baseURL != "" {
		return newRemoteAsker(baseURL, budget), nil
	}
	return newLocalAsker(cmd.Context(), budget, verbose)
}

type localAsker struct {
	agent  *bootstrap.Agent
	budget int
}

func newLocalAsker(ctx context.Context, budget int, verbose bool) (*localAsker, error) {
	loadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if !verbose {
		cfg.LogLevel = "warn"
	}
	agent, err := bootstrap.Build(ctx, cfg, logger.New(cfg))
	if err != nil {
		return nil, err
	}
	return &localAsker{agent: agent, budget: budget}, nil
}

func (a *localAsker) Ask(ctx context.Context, question string, onStep func(ask.Event)) (*ask.Answer, error) {
	return a.agent.Ask.Stream(ctx, ask.Request{Question: question, StepBudget: a.budget}, func(ev ask.Event) error {
		onStep(ev)
		return nil
	})
}

func (a *localAsker) Close() error {
	return a.agent.Close()
}

type remoteAsker struct {
	client *resty.Client
	budget int
}

func newRemoteAsker(baseURL string, budget int) *remoteAsker {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10*time.Minute).
		SetHeader("Content-Type", "application/json")
	if token := os.Getenv("SQL_AGENT_TOKEN"); token != "" {
		client.SetAuthToken(token)
	}
	return &remoteAsker{client: client, budget: budget}
}

type streamError struct {
	Error string      `json:"error"`
	Type  string      `json:"type"`
	Run   *ask.Answer `json:"run"`
}

func (a *remoteAsker) Ask(ctx context.Context, question string, onStep func(ask.Event)) (*ask.Answer, error) {
	body := map[string]any{"question": question}
	if a.budget > 0 {
		body["step_budget"] = a.budget
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/event-stream").
		SetBody(body).
		SetDoNotParseResponse(true).
		Post("/v1/ask/stream")
	if err != nil {
		return nil, fmt.Errorf("call server: %w", err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.StatusCode() != http.StatusOK {
		payload, _ := io.ReadAll(raw)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode(), strings.TrimSpace(string(payload)))
	}
	return readEvents(raw, onStep)
}

func (a *remoteAsker) Close() error {
	return nil
}

// readEvents consumes the server-sent events of /v1/ask/stream.
func readEvents(r io.Reader, onStep func(ask.Event)) (*ask.Answer, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var event string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := []byte(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			switch event {
			case "step":
				var ev ask.Event
				if err := json.Unmarshal(data, &ev); err != nil {
					return nil, fmt.Errorf("decode step event: %w", err)
				}
				onStep(ev)
			case "result":
				var answer ask.Answer
				if err := json.Unmarshal(data, &answer); err != nil {
					return nil, fmt.Errorf("decode result event: %w", err)
				}
				return &answer, nil
			case "error":
				var failure streamError
				if err := json.Unmarshal(data, &failure); err != nil {
					return nil, fmt.Errorf("decode error event: %w", err)
				}
				return failure.Run, fmt.Errorf("%s: %s", failure.Type, failure.Error)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("stream ended without a result")
}

func loadEnvFiles() {
	for _, path := range []string{".env", "../.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
