package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	errs "github.com/janhq/sql-agent/internal/domain/errors"
	"github.com/janhq/sql-agent/internal/domain/llm"
	"github.com/janhq/sql-agent/internal/domain/message"
	"github.com/janhq/sql-agent/internal/domain/prompt"
	"github.com/janhq/sql-agent/internal/domain/tool"
)

// steps holds the bindings shared by every node of one compiled graph.
type steps struct {
	client     llm.Client
	registry   *tool.Registry
	listTables tool.Descriptor
	schema     tool.Descriptor
	query      tool.Descriptor
	prompts    prompt.Prompts
	instr      Instrumentation
	log        zerolog.Logger
}

func (s *steps) listTablesRequest(_ context.Context, _ History) ([]message.Message, error) {
	msg, err := message.NewAssistant("", message.ToolCall{
		Name:      s.listTables.Name,
		Arguments: map[string]any{},
	})
	if err != nil {
		return nil, err
	}
	return []message.Message{msg}, nil
}

func (s *steps) schemaRequest(ctx context.Context, history History) ([]message.Message, error) {
	resp, err := s.generate(ctx, NodeSchemaRequest, llm.Request{
		Messages: history.Effective(),
		Tools:    []tool.Descriptor{s.schema},
		Mode:     llm.ModeForcedAny,
	})
	if err != nil {
		return nil, err
	}
	if !resp.HasToolCalls() {
		s.recovered(ctx, NodeSchemaRequest, errs.ErrCodeForcedToolCall, "model declined the forced schema lookup")
		corrective, err := message.NewAssistant(s.prompts.SkippedToolMessage(s.schema.Name))
		if err != nil {
			return nil, err
		}
		return []message.Message{corrective}, nil
	}
	return []message.Message{resp}, nil
}

func (s *steps) generateQuery(ctx context.Context, history History) ([]message.Message, error) {
	msgs := append([]message.Message{message.NewSystem(s.prompts.QueryGeneration)}, history.Effective()...)
	resp, err := s.generate(ctx, NodeGenerateQuery, llm.Request{
		Messages: msgs,
		Tools:    []tool.Descriptor{s.query},
		Mode:     llm.ModeFree,
	})
	if err != nil {
		return nil, err
	}
	return []message.Message{resp}, nil
}

func (s *steps) checkQuery(ctx context.Context, history History) ([]message.Message, error) {
	last, _ := history.Last()

	candidate, ok := ExtractCandidate(last)
	if !ok {
		s.recovered(ctx, NodeCheckQuery, errs.ErrCodeMissingQuery, "no candidate SQL in tool arguments or content")
		corrective, err := message.NewAssistant(s.prompts.MissingQuery)
		if err != nil {
			return nil, err
		}
		return []message.Message{corrective.WithID(last.ID)}, nil
	}

	resp, err := s.generate(ctx, NodeCheckQuery, llm.Request{
		Messages: []message.Message{
			message.NewSystem(s.prompts.QueryCheck),
			message.NewUser(candidate),
		},
		Tools: []tool.Descriptor{s.query},
		Mode:  llm.ModeForcedAny,
	})
	if err != nil {
		return nil, err
	}
	if !resp.HasToolCalls() {
		s.recovered(ctx, NodeCheckQuery, errs.ErrCodeForcedToolCall, "model declined to submit the reviewed query")
		corrective, err := message.NewAssistant(s.prompts.SkippedToolMessage(s.query.Name))
		if err != nil {
			return nil, err
		}
		return []message.Message{corrective.WithID(last.ID)}, nil
	}
	return []message.Message{resp.WithID(last.ID)}, nil
}

// execPending returns a node that invokes every call on the last message.
// Calls to tools outside allowed are answered with error text.
func (s *steps) execPending(node NodeID, allowed ...tool.Descriptor) Node {
	names := make(map[string]struct{}, len(allowed))
	for _, d := range allowed {
		names[d.Name] = struct{}{}
	}

	return func(ctx context.Context, history History) ([]message.Message, error) {
		last, ok := history.Last()
		if !ok || !last.HasToolCalls() {
			return nil, errs.WrapFatal(nil, errs.ErrCodeSystemError,
				fmt.Sprintf("%s reached without a pending tool call", node))
		}

		out := make([]message.Message, 0, len(last.ToolCalls))
		for _, call := range last.ToolCalls {
			var result tool.Result
			if _, bound := names[call.Name]; bound {
				result = s.registry.Invoke(ctx, call)
			} else {
				result = tool.Result{
					CallID:   call.ID,
					ToolName: call.Name,
					Text:     tool.ErrorText(fmt.Sprintf("%s is not a valid tool at this step", call.Name)),
				}
			}
			if result.IsError() {
				s.recovered(ctx, node, errs.ErrCodeToolInvocation, result.Text)
			}
			msg, err := result.Message()
			if err != nil {
				return nil, err
			}
			out = append(out, msg)
		}
		return out, nil
	}
}

func (s *steps) generate(ctx context.Context, node NodeID, req llm.Request) (message.Message, error) {
	resp, err := s.client.Generate(ctx, req)
	if err != nil {
		return message.Message{}, errs.WrapFatal(err, errs.ErrCodeCapabilityClient,
			fmt.Sprintf("language model call failed in %s", node))
	}
	if resp.ID == "" {
		resp.ID = message.NewID()
	}
	return resp, nil
}

func (s *steps) recovered(ctx context.Context, node NodeID, code, detail string) {
	stepErr := errs.WrapRecoverable(nil, code, detail)
	s.log.Warn().Str("node", node.String()).Str("code", code).Msg(detail)
	s.instr.Recovered(ctx, node, stepErr)
}

// ExtractCandidate returns the SQL a message proposes. The query argument of
// the first tool call wins; otherwise the trimmed content is used.
func ExtractCandidate(msg message.Message) (string, bool) {
	if msg.HasToolCalls() {
		if query, ok := msg.ToolCalls[0].StringArg("query"); ok && strings.TrimSpace(query) != "" {
			return query, true
		}
	}
	if content := strings.TrimSpace(msg.Content); content != "" {
		return content, true
	}
	return "", false
}
