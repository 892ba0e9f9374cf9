// Package handler defines the workers that execute planned actions. Each
// handler covers one capability; the orchestrator routes to them by name.
package handler

import (
	"context"
	"sync"
)

// Handler executes one planned action.
type Handler interface {
	// Name identifies the handler for routing and logs.
	Name() string
	// Execute performs the action described by the payload and returns the
	// handler's contribution to the final answer.
	Execute(ctx context.Context, p *Payload) (string, error)
}

// Payload carries everything a handler needs for one request. The Action
// field is the single source of what to do; handlers must not re-derive it
// from the raw task text.
type Payload struct {
	Task     string            // raw user utterance
	Action   string            // planned action for this handler
	Strategy string            // chosen strategy name
	ThreadID string            // owning conversation thread
	Context  map[string]string // recalled memory, prior results
	Stats    *Stats            // per-request accumulator, never shared across requests
}

// Stats accumulates per-request counters. One instance is created per
// request; handlers touching the same request share it safely.
type Stats struct {
	mu         sync.Mutex
	modelCalls int
	toolCalls  int
	toolErrors int
}

// ModelCall records one model invocation.
func (s *Stats) ModelCall() {
	s.mu.Lock()
	s.modelCalls++
	s.mu.Unlock()
}

// ToolCall records one tool invocation and whether it failed.
func (s *Stats) ToolCall(err error) {
	s.mu.Lock()
	s.toolCalls++
	if err != nil {
		s.toolErrors++
	}
	s.mu.Unlock()
}

// ModelCalls returns the number of model invocations so far.
func (s *Stats) ModelCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelCalls
}

// ToolCalls returns the number of tool invocations so far.
func (s *Stats) ToolCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toolCalls
}

// ToolErrors returns the number of failed tool invocations so far.
func (s *Stats) ToolErrors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toolErrors
}
