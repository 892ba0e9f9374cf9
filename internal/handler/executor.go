package handler

import (
	"context"
	"fmt"

	"github.com/nidhogg/noema/internal/provider"
	"github.com/nidhogg/noema/internal/tool"
	"go.uber.org/zap"
)

const executorSystemPrompt = `You carry out concrete actions with the available tools.
Call tools when they help; report results plainly.`

const maxToolRounds = 5

// Executor runs tool-using actions. It works strictly from the planned
// Action in the payload.
type Executor struct {
	provider provider.Provider
	model    string
	tools    *tool.Registry
	logger   *zap.Logger
}

// NewExecutor creates the executor handler.
func NewExecutor(p provider.Provider, model string, tools *tool.Registry, logger *zap.Logger) *Executor {
	return &Executor{provider: p, model: model, tools: tools, logger: logger}
}

func (e *Executor) Name() string { return "executor" }

// Execute runs the model with the tool registry attached, looping through
// tool rounds until the model stops calling tools.
func (e *Executor) Execute(ctx context.Context, p *Payload) (string, error) {
	req := &provider.ChatRequest{
		Model: e.model,
		Messages: []provider.Message{
			{Role: "system", Content: executorSystemPrompt},
			{Role: "user", Content: p.Action},
		},
	}
	if defs := e.tools.Definitions(); len(defs) > 0 {
		req.Tools = defs
		req.ToolChoice = "auto"
	}

	var resp *provider.ChatResponse
	for round := 0; round < maxToolRounds; round++ {
		p.Stats.ModelCall()
		var err error
		resp, err = e.provider.Chat(ctx, req)
		if err != nil {
			return "", fmt.Errorf("executor: %w", err)
		}
		if len(resp.ToolCalls) == 0 || resp.FinishReason != "tool_calls" {
			break
		}

		req.Messages = append(req.Messages, provider.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			result, toolErr := e.tools.Invoke(ctx, tc.Function.Name, tc.Function.Arguments)
			p.Stats.ToolCall(toolErr)
			if toolErr != nil {
				e.logger.Warn("tool failed",
					zap.String("tool", tc.Function.Name),
					zap.Error(toolErr))
				result = fmt.Sprintf(`{"error":%q}`, toolErr.Error())
			}
			req.Messages = append(req.Messages, provider.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
		e.logger.Debug("tool round complete",
			zap.Int("round", round+1),
			zap.Int("tool_calls", len(resp.ToolCalls)))
	}

	// Round limit hit while the model was still asking for tools. Its last
	// content is usually empty, so report the exhaustion instead.
	if resp.FinishReason == "tool_calls" && resp.Content == "" {
		e.logger.Warn("tool round limit reached", zap.Int("rounds", maxToolRounds))
		return fmt.Sprintf("I stopped after %d tool rounds without reaching a final answer.", maxToolRounds), nil
	}
	return resp.Content, nil
}
