package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nidhogg/noema/internal/provider"
	"github.com/nidhogg/noema/internal/tool"
	"go.uber.org/zap"
)

// scriptedProvider returns canned responses in order.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []*provider.ChatResponse
	err       error
	calls     int
}

func (s *scriptedProvider) Chat(_ context.Context, _ *provider.ChatRequest) (*provider.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.calls >= len(s.responses) {
		return nil, fmt.Errorf("no scripted response for call %d", s.calls+1)
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func textResponse(content string) *provider.ChatResponse {
	return &provider.ChatResponse{Content: content, FinishReason: "stop"}
}

func newPayload(action string) *Payload {
	return &Payload{Task: action, Action: action, Stats: &Stats{}}
}

func TestDirectorExecute(t *testing.T) {
	sp := &scriptedProvider{responses: []*provider.ChatResponse{textResponse("the answer")}}
	d := NewDirector(sp, "m", zap.NewNop())

	p := newPayload("what is a monad?")
	got, err := d.Execute(context.Background(), p)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got != "the answer" {
		t.Errorf("got %q", got)
	}
	if p.Stats.ModelCalls() != 1 {
		t.Errorf("model calls %d, want 1", p.Stats.ModelCalls())
	}
}

func TestDirectorSynthesize(t *testing.T) {
	sp := &scriptedProvider{responses: []*provider.ChatResponse{textResponse("combined")}}
	d := NewDirector(sp, "m", zap.NewNop())

	p := newPayload("plan my trip")
	got, err := d.Synthesize(context.Background(), p, map[string]string{
		"analyst":  "flights are cheapest tuesday",
		"executor": "booked calendar hold",
	})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if got != "combined" {
		t.Errorf("got %q", got)
	}
}

func TestDirectorPropagatesModelError(t *testing.T) {
	sp := &scriptedProvider{err: provider.ErrModelUnavailable}
	d := NewDirector(sp, "m", zap.NewNop())

	_, err := d.Execute(context.Background(), newPayload("hi"))
	if !errors.Is(err, provider.ErrModelUnavailable) {
		t.Errorf("got %v, want ErrModelUnavailable", err)
	}
}

func TestExecutorToolLoop(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(provider.Tool{
		Type:     "function",
		Function: provider.ToolFunction{Name: "lookup"},
	}, func(_ context.Context, args string) (string, error) {
		return `{"result":"42"}`, nil
	})

	sp := &scriptedProvider{responses: []*provider.ChatResponse{
		{
			FinishReason: "tool_calls",
			ToolCalls: []provider.ToolCall{
				{ID: "tc-1", Type: "function", Function: provider.ToolCallFunction{Name: "lookup", Arguments: "{}"}},
			},
		},
		textResponse("the value is 42"),
	}}
	e := NewExecutor(sp, "m", reg, zap.NewNop())

	p := newPayload("look up the value")
	got, err := e.Execute(context.Background(), p)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got != "the value is 42" {
		t.Errorf("got %q", got)
	}
	if p.Stats.ModelCalls() != 2 {
		t.Errorf("model calls %d, want 2", p.Stats.ModelCalls())
	}
	if p.Stats.ToolCalls() != 1 || p.Stats.ToolErrors() != 0 {
		t.Errorf("tool calls %d errors %d", p.Stats.ToolCalls(), p.Stats.ToolErrors())
	}
}

func TestExecutorToolRoundLimit(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(provider.Tool{
		Type:     "function",
		Function: provider.ToolFunction{Name: "lookup"},
	}, func(_ context.Context, _ string) (string, error) {
		return `{"result":"more"}`, nil
	})

	// The model keeps asking for tools on every round and never produces
	// content. The executor must stop at the limit with a real message,
	// not an empty string.
	wantsTools := &provider.ChatResponse{
		FinishReason: "tool_calls",
		ToolCalls: []provider.ToolCall{
			{ID: "tc-1", Type: "function", Function: provider.ToolCallFunction{Name: "lookup", Arguments: "{}"}},
		},
	}
	sp := &scriptedProvider{responses: []*provider.ChatResponse{
		wantsTools, wantsTools, wantsTools, wantsTools, wantsTools,
	}}
	e := NewExecutor(sp, "m", reg, zap.NewNop())

	p := newPayload("keep digging")
	got, err := e.Execute(context.Background(), p)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got == "" {
		t.Error("exhausted loop returned empty content")
	}
	if p.Stats.ModelCalls() != maxToolRounds {
		t.Errorf("model calls %d, want %d", p.Stats.ModelCalls(), maxToolRounds)
	}
}

func TestExecutorCountsToolErrors(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(provider.Tool{
		Type:     "function",
		Function: provider.ToolFunction{Name: "flaky"},
	}, func(_ context.Context, _ string) (string, error) {
		return "", fmt.Errorf("backend down")
	})

	sp := &scriptedProvider{responses: []*provider.ChatResponse{
		{
			FinishReason: "tool_calls",
			ToolCalls: []provider.ToolCall{
				{ID: "tc-1", Type: "function", Function: provider.ToolCallFunction{Name: "flaky", Arguments: "{}"}},
			},
		},
		textResponse("could not fetch it"),
	}}
	e := NewExecutor(sp, "m", reg, zap.NewNop())

	p := newPayload("fetch the thing")
	if _, err := e.Execute(context.Background(), p); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if p.Stats.ToolErrors() != 1 {
		t.Errorf("tool errors %d, want 1", p.Stats.ToolErrors())
	}
}

func TestStatsConcurrentUpdates(t *testing.T) {
	s := &Stats{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.ModelCall()
			if i%2 == 0 {
				s.ToolCall(nil)
			} else {
				s.ToolCall(fmt.Errorf("fail"))
			}
		}(i)
	}
	wg.Wait()

	if s.ModelCalls() != 50 {
		t.Errorf("model calls %d, want 50", s.ModelCalls())
	}
	if s.ToolCalls() != 50 {
		t.Errorf("tool calls %d, want 50", s.ToolCalls())
	}
	if s.ToolErrors() != 25 {
		t.Errorf("tool errors %d, want 25", s.ToolErrors())
	}
}
