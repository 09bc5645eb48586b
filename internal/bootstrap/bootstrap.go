package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/rrr-query-engine/internal/config"
	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
	"github.com/kirillkom/rrr-query-engine/internal/core/ports"
	"github.com/kirillkom/rrr-query-engine/internal/core/usecase"
	"github.com/kirillkom/rrr-query-engine/internal/infrastructure/chunking"
	"github.com/kirillkom/rrr-query-engine/internal/infrastructure/extractor"
	"github.com/kirillkom/rrr-query-engine/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/rrr-query-engine/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/rrr-query-engine/internal/infrastructure/queue/nats"
	"github.com/kirillkom/rrr-query-engine/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/rrr-query-engine/internal/infrastructure/resilience"
	"github.com/kirillkom/rrr-query-engine/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/rrr-query-engine/internal/infrastructure/vector/qdrant"
)

type Options struct {
	// RequestID extracts a correlation ID forwarded on NATS requests.
	RequestID func(context.Context) string
	Observer  ports.QueryObserver
	// Dependency receives retry and circuit breaker transitions.
	Dependency resilience.Observer
	// ServeLocal forces an in-process engine regardless of cfg.Dispatch.
	// The worker sets it because it is the remote end of NATS dispatch.
	ServeLocal bool
	// ConnectQueue opens the NATS connection even for local dispatch.
	ConnectQueue bool
}

type App struct {
	Config     config.Config
	Categories []config.CategorySpec

	Queue      *nats.Conn
	Engine     *usecase.RewriteRetrieveReadEngine
	QueryUC    ports.QueryService
	CategoryUC ports.CategoryLister

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	specs, err := config.LoadCategories(cfg.CategoriesFile)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	app := &App{Config: cfg, Categories: specs}
	executor := resilience.NewExecutor(cfg.Resilience, resilience.WithObserver(opts.Dependency))

	dispatchNATS := cfg.Dispatch == config.DispatchNATS && !opts.ServeLocal
	if dispatchNATS || opts.ConnectQueue {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSQuerySubject, nats.Options{
			ResilienceExecutor: executor,
			WorkerConcurrency:  cfg.WorkerConcurrency,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.closeFns = append(app.closeFns, queue.Close)
	}

	if dispatchNATS {
		app.QueryUC = nats.NewClient(app.Queue, opts.RequestID)
		app.CategoryUC = categoryList(categoriesOf(specs))
		slog.Info("rrr_dispatch", "mode", config.DispatchNATS, "subject", cfg.NATSQuerySubject)
		return app, nil
	}

	engine, err := app.buildEngine(ctx, specs, executor, opts.Observer)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Engine = engine
	app.QueryUC = engine
	app.CategoryUC = engine
	slog.Info("rrr_dispatch", "mode", config.DispatchLocal, "categories", len(specs), "concurrency", cfg.Concurrency)
	return app, nil
}

func (a *App) buildEngine(
	ctx context.Context,
	specs []config.CategorySpec,
	executor *resilience.Executor,
	observer ports.QueryObserver,
) (*usecase.RewriteRetrieveReadEngine, error) {
	cfg := a.Config
	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		ResilienceExecutor: executor,
	})
	completion := ollama.NewCompletion(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)

	backends := &retrieverBackends{embedder: embedder}
	if usesKind(specs, config.RetrieverVector, config.RetrieverHybrid) {
		backends.vectors = qdrant.New(cfg.QdrantURL)
	}
	if usesKind(specs, config.RetrieverFullText, config.RetrieverHybrid) {
		repo, err := a.openFragments(ctx)
		if err != nil {
			return nil, err
		}
		backends.fragments = repo
	}
	if usesKind(specs, config.RetrieverGraph) {
		runner, err := neo4j.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUsername, cfg.Neo4jPassword, cfg.Neo4jDatabase)
		if err != nil {
			return nil, fmt.Errorf("connect neo4j: %w", err)
		}
		a.closeFns = append(a.closeFns, func() { _ = runner.Close(context.Background()) })
		backends.graph = neo4j.NewStore(runner, neo4j.Options{ResilienceExecutor: executor})
	}

	hybridCfg := usecase.HybridConfig{
		Candidates: cfg.RAGHybridCandidates,
		RRFK:       cfg.RAGFusionRRFK,
		RerankTopN: cfg.RAGRerankTopN,
	}

	entries := make(map[string]ports.Retriever, len(specs))
	for _, spec := range specs {
		retriever, err := backends.build(spec, hybridCfg)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", spec.Name, err)
		}
		retriever, err = usecase.WithRewrite(spec.Retriever.Rewrite, completion, retriever)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", spec.Name, err)
		}
		entries[spec.Name] = retriever
	}

	registry, err := usecase.NewRetrieverRegistry(entries)
	if err != nil {
		return nil, fmt.Errorf("build retriever registry: %w", err)
	}
	return usecase.NewRewriteRetrieveReadEngine(completion, registry, usecase.EngineConfig{
		Categories:  categoriesOf(specs),
		Concurrency: cfg.Concurrency,
		Verbose:     cfg.Verbose,
		Observer:    observer,
	})
}

func (a *App) openFragments(ctx context.Context) (*postgres.FragmentRepository, error) {
	db, err := postgres.OpenDB(a.Config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closeFns = append(a.closeFns, func() { _ = db.Close() })

	repo := postgres.NewFragmentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

type retrieverBackends struct {
	embedder  ports.Embedder
	vectors   ports.VectorStore
	fragments ports.FragmentStore
	graph     ports.GraphStore
}

func (b *retrieverBackends) build(spec config.CategorySpec, hybrid usecase.HybridConfig) (ports.Retriever, error) {
	topK := spec.Retriever.TopK
	switch spec.Retriever.Kind {
	case config.RetrieverVector:
		return usecase.NewVectorRetriever(b.embedder, b.vectors, spec.Retriever.Collection, topK), nil
	case config.RetrieverFullText:
		return usecase.NewFullTextRetriever(b.fragments, spec.Name, topK), nil
	case config.RetrieverHybrid:
		hybrid.Limit = topK
		return usecase.NewHybridRetriever(
			usecase.NewVectorRetriever(b.embedder, b.vectors, spec.Retriever.Collection, topK),
			usecase.NewFullTextRetriever(b.fragments, spec.Name, topK),
			hybrid,
		), nil
	case config.RetrieverGraph:
		return usecase.NewGraphRetriever(b.graph, spec.Name, topK), nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "build retriever", fmt.Errorf("unknown retriever kind %q", spec.Retriever.Kind))
	}
}

func usesKind(specs []config.CategorySpec, kinds ...string) bool {
	for _, spec := range specs {
		for _, kind := range kinds {
			if spec.Retriever.Kind == kind {
				return true
			}
		}
	}
	return false
}

func categoriesOf(specs []config.CategorySpec) []domain.Category {
	out := make([]domain.Category, 0, len(specs))
	for _, spec := range specs {
		out = append(out, spec.Category())
	}
	return out
}

type categoryList []domain.Category

func (c categoryList) Categories() []domain.Category {
	out := make([]domain.Category, len(c))
	copy(out, c)
	return out
}

// Ingest holds the document loading pipeline used by cmd/ingest.
type Ingest struct {
	Config     config.Config
	Categories []config.CategorySpec
	UseCase    *usecase.IngestUseCase

	closeFns []func()
}

func NewIngest(ctx context.Context, cfg config.Config, documentsPath string) (*Ingest, error) {
	specs, err := config.LoadCategories(cfg.CategoriesFile)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	if documentsPath == "" {
		documentsPath = cfg.DocumentsPath
	}
	source, err := localfs.New(documentsPath)
	if err != nil {
		return nil, fmt.Errorf("init document source: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	in := &Ingest{Config: cfg, Categories: specs, closeFns: []func(){func() { closeDB(db) }}}

	repo := postgres.NewFragmentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		in.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		ResilienceExecutor: resilience.NewExecutor(cfg.Resilience),
	})

	in.UseCase = usecase.NewIngestUseCase(
		source,
		extractor.NewRegistry(),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		ollama.NewEmbedder(ollamaClient),
		qdrant.New(cfg.QdrantURL),
		repo,
		config.Collections(specs),
	)
	return in, nil
}

func (in *Ingest) Close() {
	for i := len(in.closeFns) - 1; i >= 0; i-- {
		in.closeFns[i]()
	}
	in.closeFns = nil
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Warn("postgres_close_failed", "error", err)
	}
}
