package handler

import (
	"context"
	"fmt"

	"github.com/nidhogg/noema/internal/provider"
	"go.uber.org/zap"
)

const reasonerSystemPrompt = `You solve problems step by step. Lay out the reasoning chain,
check each step, then state the conclusion.`

// Reasoner handles multi-step reasoning actions.
type Reasoner struct {
	provider provider.Provider
	model    string
	logger   *zap.Logger
}

// NewReasoner creates the reasoner handler.
func NewReasoner(p provider.Provider, model string, logger *zap.Logger) *Reasoner {
	return &Reasoner{provider: p, model: model, logger: logger}
}

func (r *Reasoner) Name() string { return "reasoner" }

func (r *Reasoner) Execute(ctx context.Context, p *Payload) (string, error) {
	messages := []provider.Message{
		{Role: "system", Content: reasonerSystemPrompt},
	}
	if ctxBlock := formatContext(p.Context); ctxBlock != "" {
		messages = append(messages, provider.Message{Role: "system", Content: ctxBlock})
	}
	messages = append(messages, provider.Message{Role: "user", Content: p.Action})

	p.Stats.ModelCall()
	resp, err := r.provider.Chat(ctx, &provider.ChatRequest{
		Model:    r.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("reasoner: %w", err)
	}
	r.logger.Debug("reasoning complete", zap.Int("tokens", resp.Usage.TotalTokens))
	return resp.Content, nil
}
