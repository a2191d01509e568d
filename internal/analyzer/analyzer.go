package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sozercan/northwind-agent/apimodels"
	"github.com/sozercan/northwind-agent/internal/retriever"
	"github.com/sozercan/northwind-agent/internal/signatures"
	"github.com/sozercan/northwind-agent/internal/store"
)

const DefaultTopK = 3

// Retriever answers top-k lexical queries over the document corpus.
type Retriever interface {
	Retrieve(query string, k int) []retriever.Result
}

// Store executes queries and describes the queryable views.
type Store interface {
	Execute(ctx context.Context, query string) store.Result
	SchemaDetailed(ctx context.Context) (string, error)
}

// Analyzer answers one question at a time. It holds no per-question state,
// so one Analyzer may serve concurrent Analyze calls.
type Analyzer struct {
	predictor signatures.Predictor
	docs      Retriever
	db        Store
	topK      int
	logger    *slog.Logger
}

func New(predictor signatures.Predictor, docs Retriever, db Store, topK int) *Analyzer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Analyzer{
		predictor: predictor,
		docs:      docs,
		db:        db,
		topK:      topK,
		logger:    slog.Default(),
	}
}

// WithLogger returns a copy of a that logs through l.
func (a *Analyzer) WithLogger(l *slog.Logger) *Analyzer {
	cp := *a
	cp.logger = l
	return &cp
}

// Analyze runs the graph for q. Component failures are absorbed into a low
// confidence answer; an error means the context was cancelled or the graph
// itself is broken.
func (a *Analyzer) Analyze(ctx context.Context, q apimodels.Question) (*apimodels.Answer, error) {
	startTime := time.Now()
	log := a.logger.With("question_id", q.ID)
	log.Info("Starting analysis", "question", q.Question, "format_hint", q.Hint())

	state := &AgentState{
		Question:   q.Question,
		FormatHint: q.Hint(),
		log:        log,
	}

	if err := a.run(ctx, state); err != nil {
		log.Error("Analysis aborted", "error", err, "trace", state.Trace)
		return nil, fmt.Errorf("question %s: %w", q.ID, err)
	}

	log.Info("Analysis complete",
		"route", state.Route,
		"confidence", state.Final.Confidence,
		"steps", len(state.Trace),
		"duration", time.Since(startTime).String(),
	)

	citations := state.Final.Citations
	if citations == nil {
		citations = []string{}
	}
	return &apimodels.Answer{
		ID:          q.ID,
		FinalAnswer: state.Final.Answer,
		SQL:         state.SQL,
		Confidence:  state.Final.Confidence,
		Explanation: state.Final.Explanation,
		Citations:   citations,
	}, nil
}
