package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sozercan/northwind-agent/apimodels"
	"github.com/sozercan/northwind-agent/internal/analyzer"
)

// Answerer answers a single question.
type Answerer interface {
	Analyze(ctx context.Context, q apimodels.Question) (*apimodels.Answer, error)
}

type Runner struct {
	answerer    Answerer
	concurrency int
	logger      *slog.Logger
}

func NewRunner(answerer Answerer, concurrency int, logger *slog.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		answerer:    answerer,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run answers questions in up to concurrency lanes. Answers come back in
// input order. A question whose analysis fails gets a zero-confidence answer
// instead of stopping the batch; only cancellation of ctx aborts the run.
func (r *Runner) Run(ctx context.Context, questions []apimodels.Question) ([]*apimodels.Answer, error) {
	log := r.logger.With("run_id", uuid.NewString())
	startTime := time.Now()
	log.Info("Starting batch", "questions", len(questions), "concurrency", r.concurrency)

	answers := make([]*apimodels.Answer, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, q := range questions {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			ans, err := r.answerer.Analyze(gctx, q)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					return err
				}
				log.Error("Question failed", "question_id", q.ID, "error", err)
				ans = failedAnswer(q, err)
			}
			answers[i] = ans
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch aborted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch aborted: %w", err)
	}

	log.Info("Batch complete", "answers", len(answers), "duration", time.Since(startTime).String())
	return answers, nil
}

func failedAnswer(q apimodels.Question, err error) *apimodels.Answer {
	return &apimodels.Answer{
		ID:          q.ID,
		FinalAnswer: "N/A",
		Confidence:  0,
		Explanation: analyzer.TruncateExplanation(fmt.Sprintf("Analysis failed: %v", err)),
		Citations:   []string{},
	}
}

// RunFile reads questions from in, answers them and writes the answers to
// out. The output file is only created once every answer is ready.
func (r *Runner) RunFile(ctx context.Context, in, out string) error {
	f, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("opening batch input: %w", err)
	}
	questions, err := ReadQuestions(f, r.logger)
	f.Close()
	if err != nil {
		return err
	}

	answers, err := r.Run(ctx, questions)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	w, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating batch output: %w", err)
	}
	if err := WriteAnswers(w, answers); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing batch output: %w", err)
	}

	r.logger.Info("Wrote answers", "path", out, "count", len(answers))
	return nil
}
