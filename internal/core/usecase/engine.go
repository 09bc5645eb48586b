package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
	"github.com/kirillkom/rrr-query-engine/internal/core/ports"
)

const unanswerableTemplate = "Unanswerable: no knowledge source is registered for category %s."

type EngineConfig struct {
	Categories []domain.Category
	// Concurrency bounds parallel sub-question work; values <= 1 run sequentially.
	Concurrency int
	Verbose     bool
	Tracer      ports.TraceSink
	Observer    ports.QueryObserver
}

// RewriteRetrieveReadEngine decomposes a query into categorized
// sub-questions, answers each from its routed retriever and merges the
// answers. It holds no per-query state.
type RewriteRetrieveReadEngine struct {
	decomposer *QueryDecomposer
	registry   *RetrieverRegistry
	answerer   *SubQuestionAnswerer
	merger     *AnswerMerger

	categories  []domain.Category
	concurrency int
	tracer      ports.TraceSink
	observer    ports.QueryObserver
}

func NewRewriteRetrieveReadEngine(
	completion ports.TextCompletion,
	registry *RetrieverRegistry,
	cfg EngineConfig,
) (*RewriteRetrieveReadEngine, error) {
	if completion == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new engine", errors.New("completion capability is required"))
	}
	if registry == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new engine", errors.New("retriever registry is required"))
	}

	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var tracer ports.TraceSink
	if cfg.Verbose {
		tracer = cfg.Tracer
		if tracer == nil {
			tracer = slogTraceSink{}
		}
	}

	categories := make([]domain.Category, len(cfg.Categories))
	copy(categories, cfg.Categories)

	return &RewriteRetrieveReadEngine{
		decomposer:  NewQueryDecomposer(completion, categories),
		registry:    registry,
		answerer:    NewSubQuestionAnswerer(completion, tracer, cfg.Observer),
		merger:      NewAnswerMerger(completion),
		categories:  categories,
		concurrency: concurrency,
		tracer:      tracer,
		observer:    cfg.Observer,
	}, nil
}

func (e *RewriteRetrieveReadEngine) Categories() []domain.Category {
	out := make([]domain.Category, len(e.categories))
	copy(out, e.categories)
	return out
}

func (e *RewriteRetrieveReadEngine) Query(ctx context.Context, text string) (*domain.QueryResult, error) {
	start := time.Now()
	result, subQuestions, err := e.run(ctx, text)
	e.observe(err, subQuestions, time.Since(start))
	if err != nil {
		return nil, err
	}
	slog.Info("rrr_query",
		"sub_questions", len(result.SubAnswers),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return result, nil
}

func (e *RewriteRetrieveReadEngine) run(ctx context.Context, text string) (*domain.QueryResult, int, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil, 0, domain.WrapError(domain.ErrInvalidInput, "query", errors.New("query is empty"))
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, domain.ContextError("query", err)
	}

	subQuestions, err := e.decomposer.Decompose(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	e.trace(ctx, domain.TraceRecord{
		Stage:    domain.TraceStageDecompose,
		Question: query,
		Answer:   formatSubQuestions(subQuestions),
	})

	subAnswers, err := e.answerAll(ctx, subQuestions)
	if err != nil {
		return nil, len(subQuestions), err
	}

	answers := make([]string, len(subAnswers))
	for i, sa := range subAnswers {
		answers[i] = sa.Answer
	}
	final, err := e.merger.Merge(ctx, query, answers)
	if err != nil {
		return nil, len(subQuestions), err
	}
	e.trace(ctx, domain.TraceRecord{
		Stage:    domain.TraceStageMerge,
		Question: query,
		Answer:   final,
	})

	return &domain.QueryResult{
		Query:      query,
		Answer:     final,
		SubAnswers: subAnswers,
	}, len(subQuestions), nil
}

// answerAll writes each result at its sub-question index so the merger sees
// decomposer order regardless of completion order.
func (e *RewriteRetrieveReadEngine) answerAll(ctx context.Context, subQuestions []domain.SubQuestion) ([]domain.SubAnswer, error) {
	out := make([]domain.SubAnswer, len(subQuestions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, sq := range subQuestions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return domain.ContextError("answer sub-question", err)
			}
			sa, err := e.answerOne(gctx, sq)
			if err != nil {
				return err
			}
			out[i] = sa
			return nil
		})
	}
	err := g.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, domain.ContextError("answer sub-questions", ctxErr)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *RewriteRetrieveReadEngine) answerOne(ctx context.Context, sq domain.SubQuestion) (domain.SubAnswer, error) {
	retriever, err := e.registry.Route(sq.Category)
	if err != nil {
		var unknown *domain.UnknownCategoryError
		if !errors.As(err, &unknown) {
			return domain.SubAnswer{}, err
		}
		slog.Warn("rrr_unknown_category", "category", sq.Category, "question", sq.Text)
		if e.observer != nil {
			e.observer.ObserveUnknownCategory(sq.Category)
		}
		return domain.SubAnswer{
			SubQuestion:  sq,
			Answer:       fmt.Sprintf(unanswerableTemplate, sq.Category),
			Unanswerable: true,
		}, nil
	}
	return e.answerer.Answer(ctx, sq, retriever)
}

func (e *RewriteRetrieveReadEngine) trace(ctx context.Context, record domain.TraceRecord) {
	if e.tracer == nil {
		return
	}
	e.tracer.Trace(ctx, record)
}

func (e *RewriteRetrieveReadEngine) observe(err error, subQuestions int, duration time.Duration) {
	if e.observer == nil {
		return
	}
	e.observer.ObserveQuery(queryStatus(err), subQuestions, duration.Seconds())
}

func queryStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case domain.IsKind(err, domain.ErrCancelled):
		return "cancelled"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrDecompositionFormat):
		return "decomposition_format"
	case domain.IsKind(err, domain.ErrRetrieval):
		return "retrieval_error"
	case domain.IsKind(err, domain.ErrCompletion):
		return "completion_error"
	default:
		return "error"
	}
}


func formatSubQuestions(subQuestions []domain.SubQuestion) string {
	parts := make([]string, 0, len(subQuestions))
	for _, sq := range subQuestions {
		parts = append(parts, "["+sq.Category+"]"+sq.Text)
	}
	return strings.Join(parts, ",")
}

type slogTraceSink struct{}

func (slogTraceSink) Trace(ctx context.Context, record domain.TraceRecord) {
	slog.InfoContext(ctx, "rrr_trace",
		"stage", string(record.Stage),
		"category", record.Category,
		"question", record.Question,
		"context", record.Context,
		"answer", record.Answer,
	)
}

var (
	_ ports.QueryService   = (*RewriteRetrieveReadEngine)(nil)
	_ ports.CategoryLister = (*RewriteRetrieveReadEngine)(nil)
)
