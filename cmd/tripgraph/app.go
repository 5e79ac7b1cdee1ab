// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite"

	"github.com/jllopis/tripgraph/pkg/config"
	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/graph"
	"github.com/jllopis/tripgraph/pkg/guardrails"
	"github.com/jllopis/tripgraph/pkg/health"
	"github.com/jllopis/tripgraph/pkg/incident"
	"github.com/jllopis/tripgraph/pkg/llm"
	"github.com/jllopis/tripgraph/pkg/llm/anthropic"
	"github.com/jllopis/tripgraph/pkg/llm/openai"
	"github.com/jllopis/tripgraph/pkg/memory"
	"github.com/jllopis/tripgraph/pkg/memory/ollama"
	"github.com/jllopis/tripgraph/pkg/memory/qdrant"
	promcollector "github.com/jllopis/tripgraph/pkg/metrics/prometheus"
	"github.com/jllopis/tripgraph/pkg/resilience"
	"github.com/jllopis/tripgraph/pkg/run"
	"github.com/jllopis/tripgraph/pkg/run/store"
	"github.com/jllopis/tripgraph/pkg/search"
	"github.com/jllopis/tripgraph/pkg/telemetry"
	"github.com/jllopis/tripgraph/pkg/travel"
)

// app owns the long-lived resources of one CLI invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	shutdown  telemetry.ShutdownFunc
	metrics   *http.Server
	collector *promcollector.Collector
	engine    *telemetry.EngineMetrics

	dbs     map[string]*sql.DB
	closers []io.Closer

	runs      store.Store
	incidents incident.Sink
	audit     graph.AuditStore
	health    *health.Registry
}

// newApp loads configuration and starts logging, tracing and the metrics
// endpoint.
func newApp() (*app, error) {
	cfg, err := config.LoadWithCLI(global.configArgs())
	if err != nil {
		return nil, NewConfigError(err, global.ConfigPath)
	}
	return newAppWithConfig(cfg)
}

func newAppWithConfig(cfg *config.Config) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format),
		dbs:    make(map[string]*sql.DB),
		health: health.NewRegistry(5 * time.Second),
	}

	shutdown, err := telemetry.InitWithConfig("tripgraph", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		OTLPTimeout:  cfg.Telemetry.OTLPTimeout,
		OTLPHeaders:  cfg.Telemetry.OTLPHeaders,
	})
	if err != nil {
		return nil, err
	}
	a.shutdown = shutdown

	if a.engine, err = telemetry.NewEngineMetrics(); err != nil {
		return nil, err
	}
	if addr := cfg.Telemetry.PrometheusAddr; addr != "" {
		a.collector = promcollector.NewCollector()
		a.serveMetrics(addr)
	}
	return a, nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", a.health.Handler())
	a.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metrics.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics.server.failed", slog.String("addr", addr), slog.String("error", err.Error()))
		}
	}()
	a.logger.Info("metrics.server.start", slog.String("addr", addr))
}

// Close releases every resource, flushing telemetry last.
func (a *app) Close(ctx context.Context) error {
	var err error
	if a.metrics != nil {
		err = multierr.Append(err, a.metrics.Shutdown(ctx))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i].Close())
	}
	for _, db := range a.dbs {
		err = multierr.Append(err, db.Close())
	}
	if a.shutdown != nil {
		err = multierr.Append(err, a.shutdown(ctx))
	}
	return err
}

// sqlite returns a shared handle for dsn.
func (a *app) sqlite(dsn string) (*sql.DB, error) {
	if db, ok := a.dbs[dsn]; ok {
		return db, nil
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.New(errors.CodeStoreError, "open sqlite", err).WithContext("dsn", dsn)
	}
	a.dbs[dsn] = db
	return db, nil
}

// provider builds the configured LLM provider wrapped with timeout, retry
// and circuit breaking.
func (a *app) provider(cfg config.LLMConfig) (llm.Provider, error) {
	var p llm.Provider
	switch strings.ToLower(cfg.Provider) {
	case "groq":
		opts := []openai.Option{}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		p = openai.NewGroq(cfg.APIKey, opts...)
	case "openai":
		opts := []openai.Option{}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		p = openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{}
		if cfg.APIKey != "" {
			opts = append(opts, anthropic.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		p = anthropic.New(opts...)
	case "ollama":
		p = llm.NewOllama(cfg.BaseURL)
	default:
		return nil, NewInvalidArgumentError("llm.provider",
			fmt.Sprintf("unknown provider %q (groq, openai, anthropic, ollama)", cfg.Provider))
	}

	retry := resilience.DefaultRetryConfig().WithMaxAttempts(cfg.Retries + 1)
	guarded := llm.Guarded(p, resilience.Policy{
		Timeout: cfg.Timeout,
		Retry:   &retry,
		Breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "llm." + cfg.Provider,
			FailureThreshold: 5,
			SuccessThreshold: 1,
			Cooldown:         30 * time.Second,
		}),
	})
	return llm.WithDefaults(guarded, cfg.Model, cfg.Temperature), nil
}

// searcher builds the configured grounding source.
func (a *app) searcher(ctx context.Context, cfg config.SearchConfig) (search.Searcher, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return search.None, nil
	case "tavily":
		if cfg.APIKey == "" {
			a.logger.Warn("search.disabled", slog.String("reason", "search.api_key is empty"))
			return search.None, nil
		}
		opts := []search.TavilyOption{}
		if cfg.BaseURL != "" {
			opts = append(opts, search.WithTavilyURL(cfg.BaseURL))
		}
		return search.NewTavily(cfg.APIKey, opts...), nil
	case "vector":
		index, err := a.vectorIndex(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return search.NewRetriever(index, float32(cfg.Threshold)), nil
	}
	return nil, NewInvalidArgumentError("search.provider",
		fmt.Sprintf("unknown provider %q (tavily, vector, none)", cfg.Provider))
}

// vectorIndex connects to Qdrant and prepares the knowledge base collection.
func (a *app) vectorIndex(ctx context.Context, cfg config.SearchConfig) (*memory.Index, error) {
	vs, err := qdrant.New(cfg.QdrantAddr)
	if err != nil {
		return nil, errors.New(errors.CodeSearchError, "connect qdrant", err).WithContext("addr", cfg.QdrantAddr)
	}
	a.closers = append(a.closers, vs)
	a.health.Register("search.qdrant", health.Ping(vs.Ping, false))
	index := memory.NewIndex(vs, ollama.NewEmbedder(cfg.EmbedderURL, cfg.EmbedderModel), cfg.Collection)
	if err := index.Initialize(ctx); err != nil {
		return nil, err
	}
	return index, nil
}

// runStore opens the configured conversation store once.
func (a *app) runStore() (store.Store, error) {
	if a.runs != nil {
		return a.runs, nil
	}
	cfg := a.cfg.Store
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		a.runs = store.NewMemory()
		a.health.Register("store", health.Ping(func(context.Context) error { return nil }, true))
	case "sqlite":
		db, err := a.sqlite(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if a.runs, err = store.NewSQLite(db); err != nil {
			return nil, err
		}
		a.health.Register("store", health.Ping(db.PingContext, true))
	case "redis":
		r := store.NewRedis(cfg.RedisAddr, "", 0, store.WithTTL(cfg.TTL))
		a.closers = append(a.closers, r)
		a.runs = r
		a.health.Register("store", health.Ping(r.Ping, true))
	default:
		return nil, NewInvalidArgumentError("store.driver",
			fmt.Sprintf("unknown driver %q (memory, sqlite, redis)", cfg.Driver))
	}
	return a.runs, nil
}

// auditStore returns the node audit trail, or nil when disabled. SQLite
// stores keep it next to the runs.
func (a *app) auditStore() (graph.AuditStore, error) {
	if !a.cfg.Store.Audit {
		return nil, nil
	}
	if a.audit != nil {
		return a.audit, nil
	}
	if strings.ToLower(a.cfg.Store.Driver) != "sqlite" {
		a.audit = graph.NewMemoryAuditStore()
		return a.audit, nil
	}
	db, err := a.sqlite(a.cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	audit, err := graph.NewSQLiteAuditStore(db)
	if err != nil {
		return nil, errors.New(errors.CodeStoreError, "prepare audit table", err)
	}
	a.audit = audit
	return a.audit, nil
}

// incidentSink opens the configured emergency log once.
func (a *app) incidentSink() (incident.Sink, error) {
	if a.incidents != nil {
		return a.incidents, nil
	}
	cfg := a.cfg.Incident
	switch strings.ToLower(cfg.Driver) {
	case "", "file":
		a.incidents = incident.NewFileSink(cfg.Path)
		dir := filepath.Dir(cfg.Path)
		a.health.Register("incidents", health.Ping(func(context.Context) error {
			_, err := os.Stat(dir)
			return err
		}, true))
	case "sqlite":
		db, err := a.sqlite(cfg.Path)
		if err != nil {
			return nil, err
		}
		sink, err := incident.NewSQLiteSink(db)
		if err != nil {
			return nil, err
		}
		a.incidents = sink
		a.health.Register("incidents", health.Ping(db.PingContext, true))
	default:
		return nil, NewInvalidArgumentError("incident.driver",
			fmt.Sprintf("unknown driver %q (file, sqlite)", cfg.Driver))
	}
	return a.incidents, nil
}

// nodes builds the assistant nodes for cfg.
func (a *app) nodes(ctx context.Context, cfg *config.Config) (*travel.Nodes, error) {
	provider, err := a.provider(cfg.LLM)
	if err != nil {
		return nil, err
	}
	searcher, err := a.searcher(ctx, cfg.Search)
	if err != nil {
		return nil, err
	}
	sink, err := a.incidentSink()
	if err != nil {
		return nil, err
	}
	return travel.NewNodes(travel.Deps{
		LLM:           provider,
		Search:        searcher,
		SearchTimeout: cfg.Search.Timeout,
		MaxResults:    cfg.Search.MaxResults,
		Incidents:     sink,
		Logger:        a.logger,
		Model:         cfg.LLM.Model,
		Provider:      cfg.LLM.Provider,
	}), nil
}

// compile returns the assistant graph, from engine.definition when set.
func (a *app) compile(nodes *travel.Nodes, cfg *config.Config) (*graph.CompiledGraph, error) {
	if path := cfg.Engine.Definition; path != "" {
		def, err := graph.LoadDefinition(path)
		if err != nil {
			return nil, err
		}
		return travel.CompileDefinition(def, nodes)
	}
	return travel.NewGraph(nodes)
}

// assistant wires the full pipeline for cfg. It can be called again after a
// config reload; stores and sinks are shared between calls.
func (a *app) assistant(ctx context.Context, cfg *config.Config) (*travel.Assistant, error) {
	nodes, err := a.nodes(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cg, err := a.compile(nodes, cfg)
	if err != nil {
		return nil, err
	}
	runs, err := a.runStore()
	if err != nil {
		return nil, err
	}

	observers := graph.MultiObserver{a.engine}
	if a.collector != nil {
		observers = append(observers, a.collector)
	}
	opts := []run.Option{
		run.WithStore(runs),
		run.WithLogger(a.logger),
		run.WithSchedulerOptions(
			graph.WithConfig(graph.Config{
				MaxSupersteps:  cfg.Engine.MaxSupersteps,
				MaxConcurrency: cfg.Engine.MaxConcurrency,
				NodeTimeout:    cfg.Engine.NodeTimeout,
			}),
			graph.WithObserver(observers),
		),
	}
	audit, err := a.auditStore()
	if err != nil {
		return nil, err
	}
	if audit != nil {
		opts = append(opts, run.WithAuditStore(audit))
	}
	var assistantOpts []travel.AssistantOption
	if guard := guardFor(cfg.Guard); guard != nil {
		assistantOpts = append(assistantOpts, travel.WithGuardrails(guard))
	}
	return travel.NewAssistant(run.NewController(cg, opts...), a.logger, assistantOpts...), nil
}

// guardFor returns nil when the guard is disabled. Only passport and card
// numbers are masked; phone numbers and emails in answers are usually
// embassy contacts.
func guardFor(cfg config.GuardConfig) *guardrails.Guardrails {
	if !cfg.Enabled {
		return nil
	}
	opts := []guardrails.Option{
		guardrails.WithPromptInjectionDetector(guardrails.WithInjectionThreshold(cfg.InjectionThreshold)),
	}
	if cfg.MaskPII {
		opts = append(opts, guardrails.WithPIIFilter(guardrails.PIIFilterMask,
			guardrails.WithPIITypes(guardrails.PIITypePassport, guardrails.PIITypeCreditCard)))
	}
	return guardrails.New(opts...)
}

// withApp runs fn with a fresh app and always closes it.
func withApp(ctx context.Context, fn func(*app) error) (err error) {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, a.Close(closeCtx))
	}()
	return fn(a)
}
