package handler

import (
	"context"
	"fmt"

	"github.com/nidhogg/noema/internal/provider"
	"go.uber.org/zap"
)

const analystSystemPrompt = `You analyze information: compare, summarize, extract structure,
spot inconsistencies. Give findings, not pleasantries.`

// Analyst handles research and analysis actions.
type Analyst struct {
	provider provider.Provider
	model    string
	logger   *zap.Logger
}

// NewAnalyst creates the analyst handler.
func NewAnalyst(p provider.Provider, model string, logger *zap.Logger) *Analyst {
	return &Analyst{provider: p, model: model, logger: logger}
}

func (a *Analyst) Name() string { return "analyst" }

func (a *Analyst) Execute(ctx context.Context, p *Payload) (string, error) {
	messages := []provider.Message{
		{Role: "system", Content: analystSystemPrompt},
	}
	if ctxBlock := formatContext(p.Context); ctxBlock != "" {
		messages = append(messages, provider.Message{Role: "system", Content: ctxBlock})
	}
	messages = append(messages, provider.Message{Role: "user", Content: p.Action})

	p.Stats.ModelCall()
	resp, err := a.provider.Chat(ctx, &provider.ChatRequest{
		Model:    a.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("analyst: %w", err)
	}
	a.logger.Debug("analysis complete", zap.Int("tokens", resp.Usage.TotalTokens))
	return resp.Content, nil
}
