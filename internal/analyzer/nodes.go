package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/sozercan/northwind-agent/internal/signatures"
)

// NoConstraints is used when no documents were retrieved or extraction failed.
const NoConstraints = "No specific constraints"

// ParseRoute normalizes a raw classifier label. Anything unrecognized,
// including an empty label, resolves to hybrid.
func ParseRoute(raw string) Route {
	decision := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(decision, "sql"):
		return RouteSQL
	case strings.Contains(decision, "rag"):
		return RouteRAG
	default:
		return RouteHybrid
	}
}

func (a *Analyzer) routeQuestion(ctx context.Context, s *AgentState) Update {
	s.log.Info("Router: analyzing question")

	raw := ""
	pred, err := a.predictor.Predict(ctx, signatures.Router, map[string]string{
		"question": s.Question,
	})
	if err != nil {
		s.log.Warn("Router call failed, defaulting route", "error", err)
	} else {
		raw = pred.Get("decision")
	}

	route := ParseRoute(raw)
	s.log.Info("Router: decided", "raw", raw, "route", route)
	return Update{Route: ptr(route)}
}

func (a *Analyzer) retrieveDocs(_ context.Context, s *AgentState) Update {
	docs := a.docs.Retrieve(s.Question, a.topK)
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.String()
	}
	s.log.Info("Retriever: fetched docs", "count", len(docs), "docs", ids)
	return Update{Docs: &docs}
}

func (a *Analyzer) extractConstraints(ctx context.Context, s *AgentState) Update {
	if len(s.Docs) == 0 {
		s.log.Info("Planner: no documents, skipping extraction")
		return Update{Constraints: ptr(NoConstraints)}
	}

	contents := make([]string, len(s.Docs))
	for i, d := range s.Docs {
		contents[i] = d.Content
	}

	pred, err := a.predictor.Predict(ctx, signatures.ExtractConstraints, map[string]string{
		"question":  s.Question,
		"documents": strings.Join(contents, "\n"),
	})
	if err != nil {
		s.log.Warn("Planner: constraint extraction failed", "error", err)
		return Update{Constraints: ptr(NoConstraints)}
	}

	constraints := pred.Get("constraints")
	s.log.Info("Planner: extracted constraints", "constraints", constraints)
	return Update{Constraints: ptr(constraints)}
}

func (a *Analyzer) generateSQL(ctx context.Context, s *AgentState) Update {
	s.log.Info("NL SQL: generating query", "attempt", s.RetryCount+1)

	schema, err := a.db.SchemaDetailed(ctx)
	if err != nil {
		s.log.Warn("NL SQL: schema unavailable", "error", err)
	}

	constraints := s.Constraints
	if constraints == "" {
		constraints = "None"
	}

	question := s.Question
	if s.Result.Failed() {
		question = fmt.Sprintf("%s (Previous SQL had error: %s. Fix it!)", question, s.Result.Err)
	}

	pred, err := a.predictor.Predict(ctx, signatures.GenerateSQL, map[string]string{
		"question":    question,
		"schema_info": schema,
		"constraints": constraints,
	})
	if err != nil {
		return a.fallbackSQL(s, err)
	}

	query, err := SanitizeSQL(pred.Get("sql_query"))
	if err != nil {
		return a.fallbackSQL(s, err)
	}

	s.log.Info("NL SQL: generated", "sql", query)
	return Update{SQL: ptr(query), GenerationErr: ptr("")}
}

func (a *Analyzer) fallbackSQL(s *AgentState, err error) Update {
	s.log.Warn("NL SQL: generation failed, using fallback query", "error", err)
	return Update{
		SQL:           ptr(FallbackSQL),
		GenerationErr: ptr(fmt.Sprintf("Generation failed: %v", err)),
	}
}

func (a *Analyzer) executeSQL(ctx context.Context, s *AgentState) Update {
	s.log.Info("Executor: running query", "sql", s.SQL)

	res := a.db.Execute(ctx, s.SQL)
	if res.Failed() {
		s.log.Warn("Executor: query failed", "error", res.Err, "retry_count", s.RetryCount+1)
		return Update{Result: &res, RetryCount: ptr(s.RetryCount + 1)}
	}

	s.log.Info("Executor: query succeeded", "rows", len(res.Rows))
	return Update{Result: &res, RetryCount: ptr(0)}
}
