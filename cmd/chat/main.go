package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/noema/internal/config"
	"github.com/nidhogg/noema/internal/embedding"
	"github.com/nidhogg/noema/internal/episodic"
	"github.com/nidhogg/noema/internal/handler"
	"github.com/nidhogg/noema/internal/knowledge"
	"github.com/nidhogg/noema/internal/orchestrator"
	"github.com/nidhogg/noema/internal/persist"
	"github.com/nidhogg/noema/internal/provider"
	"github.com/nidhogg/noema/internal/strategy"
	"github.com/nidhogg/noema/internal/thread"
	"github.com/nidhogg/noema/internal/tool"
	"github.com/nidhogg/noema/internal/vectorindex"
	"go.uber.org/zap"
)

const requestTimeout = 60 * time.Second

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/noema.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	ctx := context.Background()

	llm := provider.NewOpenAIProvider(provider.Config{
		Endpoint: cfg.Model.Endpoint,
		APIKey:   cfg.Model.APIKey,
		Model:    cfg.Model.Model,
	}, logger)

	cache := embedding.NewCache(embedding.NewAPIProvider(embedding.Config{
		Endpoint:  cfg.Embedding.Endpoint,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		Dimension: cfg.Embedding.Dimension,
	}), cfg.Embedding.CacheSize, logger)

	// Vector index: Qdrant when configured, in-process otherwise.
	var index vectorindex.Index
	var qdrantIdx *vectorindex.QdrantIndex
	if cfg.Database.Qdrant.Host != "" {
		qdrantIdx, err = vectorindex.NewQdrantIndex(ctx, vectorindex.QdrantConfig{
			Host:       cfg.Database.Qdrant.Host,
			Port:       cfg.Database.Qdrant.Port,
			Collection: cfg.Database.Qdrant.Collection,
		}, cache, logger)
		if err != nil {
			logger.Warn("Qdrant unavailable, using in-process index", zap.Error(err))
		} else {
			index = qdrantIdx
		}
	}
	if index == nil {
		index = vectorindex.NewMemoryIndex(cache, logger)
	}

	// Knowledge graph: Neo4j when configured, in-process otherwise.
	var graph knowledge.Graph
	var memGraph *knowledge.MemoryGraph
	var neoGraph *knowledge.Neo4jGraph
	if cfg.Database.Neo4j.URI != "" {
		neoGraph, err = knowledge.NewNeo4jGraph(knowledge.Neo4jConfig{
			URI:      cfg.Database.Neo4j.URI,
			User:     cfg.Database.Neo4j.User,
			Password: cfg.Database.Neo4j.Password,
		}, logger)
		if err == nil {
			err = neoGraph.Ping(ctx)
		}
		if err != nil {
			logger.Warn("Neo4j unavailable, using in-process graph", zap.Error(err))
			neoGraph = nil
		} else {
			graph = neoGraph
		}
	}
	if graph == nil {
		memGraph = knowledge.NewMemoryGraph(cfg.Memory.MaxTriples, logger)
		graph = memGraph
	}

	capacity := cfg.Memory.EpisodeCapacity
	if capacity <= 0 {
		capacity = 1000
	}
	episodes, err := episodic.New(capacity, logger)
	if err != nil {
		logger.Fatal("episodic store", zap.Error(err))
	}
	threads := thread.NewTracker(cfg.Memory.ThreadTimeout, logger)
	selector, err := strategy.New(cfg.Strategy.Names, cfg.Strategy.Exploration, logger)
	if err != nil {
		logger.Fatal("strategy selector", zap.Error(err))
	}

	tools := tool.NewRegistry()
	registerBuiltinTools(tools)

	director := handler.NewDirector(llm, cfg.Model.Model, logger)
	handlers := map[string]handler.Handler{
		"director": director,
		"executor": handler.NewExecutor(llm, cfg.Model.Model, tools, logger),
		"analyst":  handler.NewAnalyst(llm, cfg.Model.Model, logger),
		"reasoner": handler.NewReasoner(llm, cfg.Model.Model, logger),
	}

	backend := chooseBackend(ctx, cfg, logger)
	if backend != nil {
		restoreState(ctx, backend, episodes, threads, selector, memGraph, logger)
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Episodes:    episodes,
		Threads:     threads,
		Selector:    selector,
		Handlers:    handlers,
		Synthesizer: director,
		Index:       index,
		Graph:       graph,
		Extractor:   knowledge.NewExtractor(),
		RecallK:     cfg.Memory.RecallK,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("orchestrator", zap.Error(err))
	}

	fmt.Println("noema chat")
	fmt.Println("Type 'exit' or 'quit' to leave. Commands: /recent, /facts <subject>")
	fmt.Println("---")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		if input == "/recent" {
			printRecent(orch.Recent(5))
			continue
		}
		if subject, ok := strings.CutPrefix(input, "/facts "); ok {
			printFacts(ctx, orch, subject)
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		resp, err := orch.Handle(reqCtx, input)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(resp.Text)
		fmt.Printf("  [strategy=%s elapsed=%dms]\n", resp.UsedStrategy, resp.ElapsedMs)
	}

	fmt.Println("Bye!")
	if err := orch.Close(); err != nil {
		logger.Warn("background work finished with failures", zap.Error(err))
	}
	if backend != nil {
		saveState(ctx, backend, episodes, threads, selector, memGraph, logger)
	}
	if qdrantIdx != nil {
		qdrantIdx.Close()
	}
	if neoGraph != nil {
		neoGraph.Close(ctx)
	}
}

// chooseBackend prefers Postgres, then Redis, then the snapshot file.
func chooseBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) persist.Backend {
	if cfg.Database.Postgres.DSN != "" {
		b, err := persist.NewPostgresBackend(ctx, cfg.Database.Postgres.DSN, logger)
		if err == nil {
			return b
		}
		logger.Warn("PostgreSQL unavailable", zap.Error(err))
	}
	if cfg.Database.Redis.URL != "" {
		b, err := persist.NewRedisBackend(ctx, cfg.Database.Redis.URL, logger)
		if err == nil {
			return b
		}
		logger.Warn("Redis unavailable", zap.Error(err))
	}
	path := cfg.SnapshotPath
	if path == "" {
		path = "data/snapshot.json"
	}
	return persist.NewFileBackend(path, logger)
}

func restoreState(ctx context.Context, backend persist.Backend, episodes *episodic.Store,
	threads *thread.Tracker, selector *strategy.Selector, memGraph *knowledge.MemoryGraph,
	logger *zap.Logger) {
	snap, err := backend.Load(ctx)
	if errors.Is(err, persist.ErrNotFound) {
		return
	}
	if err != nil {
		logger.Warn("snapshot load failed, starting fresh", zap.Error(err))
		return
	}
	episodes.Restore(snap.Episodes)
	threads.Restore(snap.Threads)
	selector.Restore(snap.Strategies)
	if memGraph != nil {
		memGraph.Restore(snap.Triples)
	}
	logger.Info("state restored",
		zap.Int("episodes", len(snap.Episodes)),
		zap.Int("triples", len(snap.Triples)),
		zap.Time("saved_at", snap.SavedAt))
}

func saveState(ctx context.Context, backend persist.Backend, episodes *episodic.Store,
	threads *thread.Tracker, selector *strategy.Selector, memGraph *knowledge.MemoryGraph,
	logger *zap.Logger) {
	snap := &persist.Snapshot{
		Episodes:   episodes.All(),
		Threads:    threads.Snapshot(),
		Strategies: selector.Snapshot(),
	}
	if memGraph != nil {
		snap.Triples = memGraph.Snapshot()
	}
	if err := backend.Save(ctx, snap); err != nil {
		logger.Warn("snapshot save failed", zap.Error(err))
		return
	}
	logger.Info("state saved", zap.Int("episodes", len(snap.Episodes)))
}

func printRecent(eps []episodic.Episode) {
	if len(eps) == 0 {
		fmt.Println("No episodes yet.")
		return
	}
	for _, ep := range eps {
		flag := " "
		if ep.HadError {
			flag = "!"
		}
		fmt.Printf("%s [%d] %s → %s\n", flag, ep.Importance,
			truncate(ep.Utterance, 40), truncate(ep.Response, 60))
	}
}

func printFacts(ctx context.Context, orch *orchestrator.Orchestrator, subject string) {
	triples, err := orch.QueryKnowledge(ctx, knowledge.Pattern{Subject: subject})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if len(triples) == 0 {
		fmt.Printf("No facts about %q.\n", subject)
		return
	}
	for _, t := range triples {
		fmt.Printf("(%s, %s, %s) confidence=%.2f\n", t.Subject, t.Predicate, t.Object, t.Confidence)
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
