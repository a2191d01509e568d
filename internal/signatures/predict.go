package signatures

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sozercan/northwind-agent/internal/llm"
)

// Prediction holds the parsed output fields of one call.
type Prediction map[string]string

func (p Prediction) Get(name string) string {
	return p[name]
}

// ParseError reports a reply that did not carry every required output field.
// Raw keeps the reply verbatim so callers can salvage partial values.
type ParseError struct {
	Signature string
	Missing   []string
	Raw       string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: response missing field(s) %s: %s",
		e.Signature, strings.Join(e.Missing, ", "), e.Raw)
}

// Predictor is the seam between agent nodes and the model.
type Predictor interface {
	Predict(ctx context.Context, sig Signature, inputs map[string]string) (Prediction, error)
}

// LLMPredictor renders signatures for an llm.Provider.
type LLMPredictor struct {
	provider llm.Provider
	useTools bool
}

// NewPredictor returns a predictor over provider. With useTools set, each
// signature is also offered as a function so models that support tool
// calling return their outputs as arguments.
func NewPredictor(provider llm.Provider, useTools bool) *LLMPredictor {
	return &LLMPredictor{provider: provider, useTools: useTools}
}

func (p *LLMPredictor) Predict(ctx context.Context, sig Signature, inputs map[string]string) (Prediction, error) {
	var opts []llm.Option
	if p.useTools {
		opts = append(opts, llm.WithTools(sig.Tool()))
	}

	resp, err := p.provider.Complete(ctx,
		[]string{SystemPrompt(sig)},
		[]string{UserPrompt(sig, inputs)},
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", sig.Name, err)
	}

	raw := resp.Content
	if resp.FunctionCall != nil {
		raw = resp.FunctionCall.Arguments
	}
	slog.Debug("LLM replied", "signature", sig.Name, "raw", raw)

	return Parse(sig, raw)
}

// SystemPrompt describes the task and the expected reply shape.
func SystemPrompt(sig Signature) string {
	var b strings.Builder
	b.WriteString(sig.Instructions)
	b.WriteString("\n\nYour input fields are:\n")
	for i, f := range sig.Inputs {
		writeFieldLine(&b, i+1, f)
	}
	b.WriteString("Your output fields are:\n")
	outputs := sig.Outputs
	if sig.Reasoning {
		outputs = append([]Field{{Name: reasoningField, Description: "Think step by step before producing the other fields"}}, outputs...)
	}
	for i, f := range outputs {
		writeFieldLine(&b, i+1, f)
	}
	fmt.Fprintf(&b, "\nRespond with a single JSON object whose keys are: %s. Every value must be a string.",
		strings.Join(sig.OutputNames(), ", "))
	return b.String()
}

func writeFieldLine(b *strings.Builder, n int, f Field) {
	if f.Description != "" {
		fmt.Fprintf(b, "%d. `%s`: %s\n", n, f.Name, f.Description)
		return
	}
	fmt.Fprintf(b, "%d. `%s`\n", n, f.Name)
}

// UserPrompt lays the inputs out between field markers.
func UserPrompt(sig Signature, inputs map[string]string) string {
	var b strings.Builder
	for _, f := range sig.Inputs {
		fmt.Fprintf(&b, "[[ ## %s ## ]]\n%s\n\n", f.Name, inputs[f.Name])
	}
	b.WriteString("Respond with the JSON object now.")
	return b.String()
}

var markerRe = regexp.MustCompile(`\[\[ ## (\w+) ## \]\]`)

// Parse extracts the output fields of sig from a raw reply. A JSON object
// anywhere in the reply is preferred; field markers are the fallback.
func Parse(sig Signature, raw string) (Prediction, error) {
	pred := Prediction{}

	if obj, ok := jsonObject(raw); ok {
		for _, name := range sig.OutputNames() {
			if r := gjson.Get(obj, name); r.Exists() && r.Type != gjson.Null {
				pred[name] = strings.TrimSpace(r.String())
			}
		}
	}

	if len(pred) == 0 {
		locs := markerRe.FindAllStringSubmatchIndex(raw, -1)
		for i, loc := range locs {
			name := raw[loc[2]:loc[3]]
			end := len(raw)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			pred[name] = strings.TrimSpace(raw[loc[1]:end])
		}
	}

	var missing []string
	for _, f := range sig.Outputs {
		if _, ok := pred[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &ParseError{Signature: sig.Name, Missing: missing, Raw: raw}
	}
	return pred, nil
}

// jsonObject returns the outermost {...} span of s when it is valid JSON.
func jsonObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	candidate := s[start : end+1]
	if !gjson.Valid(candidate) {
		return "", false
	}
	return candidate, true
}
