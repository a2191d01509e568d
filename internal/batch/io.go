package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sozercan/northwind-agent/apimodels"
)

const maxLineSize = 1 << 20

var validate = validator.New()

// ReadQuestions parses JSONL input. Blank lines are ignored; lines that are
// not valid questions are logged and skipped.
func ReadQuestions(r io.Reader, log *slog.Logger) ([]apimodels.Question, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var questions []apimodels.Question
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var q apimodels.Question
		if err := json.Unmarshal([]byte(line), &q); err != nil {
			log.Warn("Skipping malformed input line", "line", lineNo, "error", err)
			continue
		}
		if err := validate.Struct(q); err != nil {
			log.Warn("Skipping invalid question", "line", lineNo, "error", err)
			continue
		}
		q.FormatHint = q.Hint()
		questions = append(questions, q)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading questions: %w", err)
	}
	return questions, nil
}

// WriteAnswers emits one JSON object per line.
func WriteAnswers(w io.Writer, answers []*apimodels.Answer) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, a := range answers {
		if err := enc.Encode(a); err != nil {
			return fmt.Errorf("encoding answer %s: %w", a.ID, err)
		}
	}
	return bw.Flush()
}
