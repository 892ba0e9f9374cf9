// Package orchestrator is the top-level state machine: classify, choose a
// strategy, dispatch, persist, feed the outcome back to the selector.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nidhogg/noema/internal/episodic"
	"github.com/nidhogg/noema/internal/handler"
	"github.com/nidhogg/noema/internal/knowledge"
	"github.com/nidhogg/noema/internal/strategy"
	"github.com/nidhogg/noema/internal/thread"
	"github.com/nidhogg/noema/internal/vectorindex"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultRecallK = 3

// backgroundTimeout bounds indexing/extraction spawned after a response has
// already been returned.
const backgroundTimeout = 30 * time.Second

// Synthesizer folds supporting contributions into one reply. The director
// handler implements it.
type Synthesizer interface {
	Synthesize(ctx context.Context, p *handler.Payload, contributions map[string]string) (string, error)
}

// Config wires the orchestrator's collaborators. Required fields are
// validated once at construction; optional subsystems are nil.
type Config struct {
	Episodes    *episodic.Store           // required
	Threads     *thread.Tracker           // required
	Selector    *strategy.Selector        // required
	Handlers    map[string]handler.Handler // required, must cover every classifier target
	Synthesizer Synthesizer               // required for the full path
	Index       vectorindex.Index         // optional semantic memory
	Graph       knowledge.Graph           // optional fact store
	Extractor   *knowledge.Extractor      // optional, used with Graph
	RecallK     int                       // top-k memory recall, default 3
	Logger      *zap.Logger               // required
}

func (c Config) validate() error {
	if c.Episodes == nil {
		return fmt.Errorf("orchestrator config: episodic store is required")
	}
	if c.Threads == nil {
		return fmt.Errorf("orchestrator config: thread tracker is required")
	}
	if c.Selector == nil {
		return fmt.Errorf("orchestrator config: strategy selector is required")
	}
	if c.Logger == nil {
		return fmt.Errorf("orchestrator config: logger is required")
	}
	if c.Synthesizer == nil {
		return fmt.Errorf("orchestrator config: synthesizer is required")
	}
	for _, rule := range classifyRules {
		if _, ok := c.Handlers[rule.primary]; !ok {
			return fmt.Errorf("orchestrator config: no handler %q", rule.primary)
		}
		for _, name := range rule.supporting {
			if _, ok := c.Handlers[name]; !ok {
				return fmt.Errorf("orchestrator config: no handler %q", name)
			}
		}
	}
	if _, ok := c.Handlers["director"]; !ok {
		return fmt.Errorf("orchestrator config: no handler %q", "director")
	}
	if c.Graph != nil && c.Extractor == nil {
		return fmt.Errorf("orchestrator config: graph set without extractor")
	}
	return nil
}

// Orchestrator coordinates one request end to end.
type Orchestrator struct {
	cfg    Config
	logger *zap.Logger

	bg         sync.WaitGroup
	bgFailures atomic.Int64
	closed     atomic.Bool
}

// New validates the configuration and builds the orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.RecallK <= 0 {
		cfg.RecallK = defaultRecallK
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{cfg: cfg, logger: cfg.Logger}, nil
}

// Handle runs one utterance through the full lifecycle and returns the
// response. ErrClassification and *strategy.NameError propagate; downstream
// failures degrade the response instead.
func (o *Orchestrator) Handle(ctx context.Context, utterance string) (*Response, error) {
	start := time.Now()
	state := StateReceived
	stats := &handler.Stats{}

	cls, err := classify(utterance)
	if err != nil {
		return nil, fmt.Errorf("handle: %w", err)
	}
	o.transition(&state, StateClassified)

	strategyName := o.cfg.Selector.Choose()
	th := o.cfg.Threads.Attach(utterance, start)

	payload := &handler.Payload{
		Task:     utterance,
		Action:   utterance,
		Strategy: strategyName,
		ThreadID: th.ID,
		Context:  o.recall(ctx, utterance),
		Stats:    stats,
	}

	var (
		text        string
		stages      []string
		dispatchErr error
	)
	fastPath := cls.Complexity == ComplexitySimple && len(cls.Supporting) == 0
	if fastPath {
		o.transition(&state, StateFastPath)
		stages = []string{"dispatch"}
		text, dispatchErr = o.cfg.Handlers[cls.Primary].Execute(ctx, payload)
	} else {
		o.transition(&state, StatePlanned)
		plan := Plan{Primary: cls.Primary, Supporting: cls.Supporting, Action: utterance}
		stages = []string{"plan", "dispatch", "synthesize"}
		text, dispatchErr = o.runPlan(ctx, plan, payload)
	}
	o.transition(&state, StateDispatched)

	// A cancelled request persists nothing and reports no outcome.
	if ctx.Err() != nil {
		return nil, fmt.Errorf("handle: %w", ctx.Err())
	}

	elapsed := time.Since(start)
	degraded := false
	if dispatchErr != nil {
		o.transition(&state, StateFailed)
		degraded = true
		text = "I ran into a problem handling that. Please try again or rephrase."
		o.logger.Warn("dispatch failed",
			zap.String("intent", cls.Intent),
			zap.String("handler", cls.Primary),
			zap.Error(dispatchErr))
	} else {
		o.transition(&state, StateCompleted)
	}

	episode := episodic.Episode{
		Utterance:  utterance,
		Response:   text,
		Importance: importanceOf(cls.Complexity, stats),
		HadError:   dispatchErr != nil || stats.ToolErrors() > 0,
		Tags:       []string{cls.Intent, strategyName},
	}
	stored := o.cfg.Episodes.Add(episode)
	o.cfg.Threads.RecordEpisode(th.ID, stored.ID)
	o.cfg.Threads.Touch(th.ID, time.Now())

	o.spawnBackground(utterance, text, th.ID)

	reward := strategy.ShapeReward(strategy.Outcome{
		Success:    dispatchErr == nil,
		Latency:    elapsed,
		ToolErrors: stats.ToolErrors(),
	})
	if err := o.cfg.Selector.RecordOutcome(strategyName, reward); err != nil {
		// Unknown strategy name is a programmer error, never swallowed.
		return nil, fmt.Errorf("record outcome: %w", err)
	}

	o.logger.Info("request handled",
		zap.String("intent", cls.Intent),
		zap.String("state", string(state)),
		zap.String("strategy", strategyName),
		zap.Float64("reward", reward),
		zap.Duration("elapsed", elapsed))

	return &Response{
		Text:         text,
		UsedStrategy: strategyName,
		ElapsedMs:    elapsed.Milliseconds(),
		Stages:       stages,
		ThreadID:     th.ID,
		Degraded:     degraded,
	}, nil
}

func (o *Orchestrator) transition(state *State, next State) {
	*state = next
	o.logger.Debug("request state", zap.String("state", string(next)))
}

// runPlan executes the full path: primary dispatch, supporting handlers in
// parallel, then synthesis. Supporting failures degrade to fewer
// contributions rather than failing the request.
func (o *Orchestrator) runPlan(ctx context.Context, plan Plan, payload *handler.Payload) (string, error) {
	primary, err := o.cfg.Handlers[plan.Primary].Execute(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("primary %s: %w", plan.Primary, err)
	}

	contributions := map[string]string{plan.Primary: primary}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range plan.Supporting {
		h := o.cfg.Handlers[name]
		g.Go(func() error {
			sub := *payload // same Stats, own copy otherwise
			out, err := h.Execute(gctx, &sub)
			if err != nil {
				o.logger.Warn("supporting handler failed",
					zap.String("handler", h.Name()),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			contributions[h.Name()] = out
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	text, err := o.cfg.Synthesizer.Synthesize(ctx, payload, contributions)
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}
	return text, nil
}

// recall pulls top-k semantically similar memories for the payload context.
// Recall failures degrade to no context.
func (o *Orchestrator) recall(ctx context.Context, utterance string) map[string]string {
	if o.cfg.Index == nil {
		return nil
	}
	results, err := o.cfg.Index.Search(ctx, utterance, o.cfg.RecallK)
	if err != nil {
		o.logger.Warn("memory recall failed", zap.Error(err))
		return nil
	}
	if len(results) == 0 {
		return nil
	}
	recalled := make(map[string]string, len(results))
	for i, r := range results {
		recalled["memory_"+strconv.Itoa(i+1)] = r.Text
	}
	return recalled
}

// spawnBackground indexes the exchange and extracts facts as supervised work:
// tracked by a WaitGroup, failures logged and counted, joined at Close.
func (o *Orchestrator) spawnBackground(utterance, response, threadID string) {
	if o.closed.Load() || (o.cfg.Index == nil && o.cfg.Graph == nil) {
		return
	}
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()

		if o.cfg.Index != nil {
			exchange := "user: " + utterance + "\nassistant: " + response
			if _, err := o.cfg.Index.Add(ctx, exchange, map[string]string{"thread": threadID}); err != nil {
				o.bgFailures.Add(1)
				o.logger.Warn("background indexing failed", zap.Error(err))
			}
		}
		if o.cfg.Graph != nil {
			for _, f := range o.cfg.Extractor.Extract(utterance) {
				if err := o.cfg.Graph.Upsert(ctx, f.Subject, f.Predicate, f.Object, f.Confidence, "dialogue"); err != nil {
					o.bgFailures.Add(1)
					o.logger.Warn("background fact upsert failed", zap.Error(err))
				}
			}
		}
	}()
}

// Close joins outstanding background work. A non-zero failure count is
// reported as an error after the join.
func (o *Orchestrator) Close() error {
	o.closed.Store(true)
	o.bg.Wait()
	if n := o.bgFailures.Load(); n > 0 {
		return fmt.Errorf("orchestrator close: %d background task(s) failed", n)
	}
	return nil
}

// BackgroundFailures reports how many supervised background tasks have
// failed so far.
func (o *Orchestrator) BackgroundFailures() int64 {
	return o.bgFailures.Load()
}

// Recent returns the n most recent episodes, newest first.
func (o *Orchestrator) Recent(n int) []episodic.Episode {
	return o.cfg.Episodes.Recent(n)
}

// QueryKnowledge returns stored facts matching the pattern.
func (o *Orchestrator) QueryKnowledge(ctx context.Context, p knowledge.Pattern) ([]knowledge.Triple, error) {
	if o.cfg.Graph == nil {
		return nil, nil
	}
	return o.cfg.Graph.Query(ctx, p)
}

// importanceOf derives episode importance strictly from this request.
func importanceOf(c Complexity, stats *handler.Stats) int {
	importance := 1
	if c == ComplexityComplex {
		importance++
	}
	if stats.ToolCalls() > 0 {
		importance++
	}
	if importance > 3 {
		importance = 3
	}
	return importance
}

// IsClassificationError reports whether err is the fatal classification
// failure, for callers deciding between degrade and abort.
func IsClassificationError(err error) bool {
	return errors.Is(err, ErrClassification)
}
