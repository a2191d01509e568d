package analyzer

import (
	"context"
	"regexp"
	"strings"

	"github.com/sozercan/northwind-agent/internal/signatures"
)

// DatabaseCitation is cited whenever a query result was part of the context.
const DatabaseCitation = "Orders"

const (
	unavailableAnswer    = "N/A"
	synthesisFailureText = "Could not synthesize answer due to parsing error"
)

var salvageRe = regexp.MustCompile(`"final_answer"\s*:\s*"?([^",}]+)"?`)

func (a *Analyzer) synthesize(ctx context.Context, s *AgentState) Update {
	s.log.Info("Synthesizer: building answer", "format_hint", s.FormatHint)

	var (
		parts     []string
		citations []string
	)
	if len(s.Docs) > 0 {
		var b strings.Builder
		b.WriteString("Documentation:\n")
		for _, d := range s.Docs {
			b.WriteString("- ")
			b.WriteString(d.Content)
			b.WriteString("\n")
			citations = append(citations, d.ID)
		}
		parts = append(parts, b.String())
	}
	if !s.Result.Empty() {
		parts = append(parts, "SQL Result: "+s.Result.String())
		citations = append(citations, DatabaseCitation)
	}

	pred, err := a.predictor.Predict(ctx, signatures.SynthesizeAnswer, map[string]string{
		"question":    s.Question,
		"context":     strings.Join(parts, "\n"),
		"format_hint": s.FormatHint,
	})
	if err != nil {
		s.log.Warn("Synthesizer: call failed", "error", err)
		return Update{Final: &Final{
			Answer:      salvage(s.FormatHint, err.Error()),
			Explanation: synthesisFailureText,
			Confidence:  0,
			Citations:   citations,
		}}
	}

	final := Final{
		Answer:      Coerce(s.FormatHint, pred.Get("final_answer")),
		Explanation: TruncateExplanation(pred.Get("explanation")),
		Confidence:  ParseConfidence(pred.Get("confidence")),
		Citations:   citations,
	}
	s.log.Info("Synthesizer: answer ready", "answer", final.Answer, "confidence", final.Confidence)
	return Update{Final: &final}
}

// salvage searches a failed reply for a final_answer fragment.
func salvage(hint, text string) any {
	m := salvageRe.FindStringSubmatch(text)
	if m == nil {
		return unavailableAnswer
	}
	return Coerce(hint, strings.TrimSpace(m[1]))
}
