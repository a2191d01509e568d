package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sozercan/northwind-agent/apimodels"
	"github.com/sozercan/northwind-agent/internal/analyzer"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type echoAnswerer struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	fail     map[string]error
}

func (e *echoAnswerer) Analyze(ctx context.Context, q apimodels.Question) (*apimodels.Answer, error) {
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		p := e.peak.Load()
		if n <= p || e.peak.CompareAndSwap(p, n) {
			break
		}
	}

	// Later questions finish first so ordering is exercised.
	select {
	case <-time.After(time.Duration(len(q.ID)%3) * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := e.fail[q.ID]; err != nil {
		return nil, err
	}
	return &apimodels.Answer{
		ID:          q.ID,
		FinalAnswer: q.Question,
		Confidence:  1,
		Citations:   []string{},
	}, nil
}

func TestReadQuestions(t *testing.T) {
	input := strings.Join([]string{
		`{"id": "a", "question": "How many orders?", "format_hint": "int"}`,
		``,
		`not json`,
		`{"id": "b", "question": "Top category?"}`,
		`{"id": "", "question": "missing id"}`,
		`{"id": "c"}`,
		`   `,
		`{"id": "d", "question": "Average?", "format_hint": "float"}`,
	}, "\n")

	qs, err := ReadQuestions(strings.NewReader(input), quiet)
	require.NoError(t, err)

	require.Len(t, qs, 3)
	assert.Equal(t, apimodels.Question{ID: "a", Question: "How many orders?", FormatHint: "int"}, qs[0])
	assert.Equal(t, apimodels.DefaultFormatHint, qs[1].FormatHint)
	assert.Equal(t, "d", qs[2].ID)
}

func TestWriteAnswers(t *testing.T) {
	var buf bytes.Buffer
	err := WriteAnswers(&buf, []*apimodels.Answer{
		{ID: "a", FinalAnswer: 42, SQL: "SELECT 42", Confidence: 0.9, Explanation: "x < y", Citations: []string{"Orders"}},
		{ID: "b", FinalAnswer: "N/A", Citations: []string{}},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"id":"a","final_answer":42,"sql":"SELECT 42","confidence":0.9,"explanation":"x < y","citations":["Orders"]}`, lines[0])
	assert.JSONEq(t, `{"id":"b","final_answer":"N/A","sql":"","confidence":0,"explanation":"","citations":[]}`, lines[1])
	assert.Contains(t, lines[0], "x < y")
}

func TestRunPreservesOrder(t *testing.T) {
	var qs []apimodels.Question
	for _, id := range []string{"q1", "q22", "q333", "q4444", "q55555", "q6"} {
		qs = append(qs, apimodels.Question{ID: id, Question: "ask " + id})
	}
	ans := &echoAnswerer{}

	answers, err := NewRunner(ans, 3, quiet).Run(context.Background(), qs)
	require.NoError(t, err)

	require.Len(t, answers, len(qs))
	for i, q := range qs {
		assert.Equal(t, q.ID, answers[i].ID)
		assert.Equal(t, q.Question, answers[i].FinalAnswer)
	}
	assert.LessOrEqual(t, ans.peak.Load(), int32(3))
}

func TestRunAbsorbsQuestionFailure(t *testing.T) {
	qs := []apimodels.Question{
		{ID: "ok", Question: "fine"},
		{ID: "bad", Question: "broken"},
	}
	ans := &echoAnswerer{fail: map[string]error{"bad": errors.New("graph did not terminate")}}

	answers, err := NewRunner(ans, 1, quiet).Run(context.Background(), qs)
	require.NoError(t, err)

	require.Len(t, answers, 2)
	assert.Equal(t, "fine", answers[0].FinalAnswer)
	assert.Equal(t, "bad", answers[1].ID)
	assert.Equal(t, 0.0, answers[1].Confidence)
	assert.Contains(t, answers[1].Explanation, "graph did not terminate")
	assert.NotNil(t, answers[1].Citations)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(&echoAnswerer{}, 2, quiet).Run(ctx, []apimodels.Question{{ID: "a", Question: "?"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "questions.jsonl")
	out := filepath.Join(dir, "out", "answers.jsonl")
	require.NoError(t, os.WriteFile(in, []byte(
		`{"id": "x", "question": "one"}`+"\n"+`{"id": "y", "question": "two", "format_hint": "list"}`+"\n",
	), 0o600))

	require.NoError(t, NewRunner(&echoAnswerer{}, 2, quiet).RunFile(context.Background(), in, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first apimodels.Answer
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "x", first.ID)
	assert.Equal(t, "one", first.FinalAnswer)
}

func TestRunFileMissingInput(t *testing.T) {
	err := NewRunner(&echoAnswerer{}, 1, quiet).RunFile(context.Background(), "does-not-exist.jsonl", filepath.Join(t.TempDir(), "out.jsonl"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunSucceedsWithBackgroundContext(t *testing.T) {
	answers, err := NewRunner(&echoAnswerer{}, 1, nil).Run(context.Background(), []apimodels.Question{
		{ID: "q1", Question: "x"},
	})
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "q1", answers[0].ID)
}

func TestFailedAnswerExplanationIsBounded(t *testing.T) {
	ans := &echoAnswerer{fail: map[string]error{"long": errors.New(strings.Repeat("x", 500))}}

	answers, err := NewRunner(ans, 1, quiet).Run(context.Background(), []apimodels.Question{
		{ID: "long", Question: "?"},
	})
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Len(t, []rune(answers[0].Explanation), analyzer.MaxExplanationLength)
	assert.True(t, strings.HasPrefix(answers[0].Explanation, "Analysis failed: "))
}
