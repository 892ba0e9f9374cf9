package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/nidhogg/noema/internal/provider"
	"go.uber.org/zap"
)

const directorSystemPrompt = `You are the lead conversational agent. Answer the user directly,
grounded in the provided context. Be concise and concrete.`

// Director is the primary conversational handler. It answers simple requests
// on its own and synthesizes the final reply from supporting contributions on
// complex ones.
type Director struct {
	provider provider.Provider
	model    string
	logger   *zap.Logger
}

// NewDirector creates the director handler.
func NewDirector(p provider.Provider, model string, logger *zap.Logger) *Director {
	return &Director{provider: p, model: model, logger: logger}
}

func (d *Director) Name() string { return "director" }

// Execute answers the planned action with one model call.
func (d *Director) Execute(ctx context.Context, p *Payload) (string, error) {
	messages := []provider.Message{
		{Role: "system", Content: directorSystemPrompt},
	}
	if ctxBlock := formatContext(p.Context); ctxBlock != "" {
		messages = append(messages, provider.Message{Role: "system", Content: ctxBlock})
	}
	messages = append(messages, provider.Message{Role: "user", Content: p.Action})

	p.Stats.ModelCall()
	resp, err := d.provider.Chat(ctx, &provider.ChatRequest{
		Model:    d.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("director: %w", err)
	}
	return resp.Content, nil
}

// Synthesize folds supporting contributions into one final answer.
func (d *Director) Synthesize(ctx context.Context, p *Payload, contributions map[string]string) (string, error) {
	var sb strings.Builder
	sb.WriteString("User request: ")
	sb.WriteString(p.Task)
	sb.WriteString("\n\nContributions from supporting workers:\n")
	for name, text := range contributions {
		sb.WriteString("\n[")
		sb.WriteString(name)
		sb.WriteString("]\n")
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	sb.WriteString("\nCompose the single best reply to the user from these contributions.")

	messages := []provider.Message{
		{Role: "system", Content: directorSystemPrompt},
		{Role: "user", Content: sb.String()},
	}

	p.Stats.ModelCall()
	resp, err := d.provider.Chat(ctx, &provider.ChatRequest{
		Model:    d.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("director synthesize: %w", err)
	}
	d.logger.Debug("synthesis complete", zap.Int("contributions", len(contributions)))
	return resp.Content, nil
}

// formatContext renders recalled context as a system block.
func formatContext(ctx map[string]string) string {
	if len(ctx) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Relevant context:\n")
	for k, v := range ctx {
		sb.WriteString("- ")
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(v)
		sb.WriteString("\n")
	}
	return sb.String()
}
