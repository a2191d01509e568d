package analyzer

import (
	"fmt"
	"log/slog"

	"github.com/sozercan/northwind-agent/internal/retriever"
	"github.com/sozercan/northwind-agent/internal/store"
)

// Route selects the sub-pipelines a question uses.
type Route string

const (
	RouteRAG    Route = "rag"
	RouteSQL    Route = "sql"
	RouteHybrid Route = "hybrid"
)

// AgentState is threaded through the graph for one question. Each field
// group is written by exactly one node; see owners.
type AgentState struct {
	Question   string
	FormatHint string

	// router
	Route Route

	// retriever
	Docs []retriever.Result

	// planner
	Constraints string

	// query generator
	SQL           string
	GenerationErr string

	// executor
	Result     store.Result
	RetryCount int

	// synthesizer
	Final Final

	// visited nodes, maintained by the interpreter
	Trace []Node

	log *slog.Logger
}

// Final is the synthesizer's output.
type Final struct {
	Answer      any
	Explanation string
	Confidence  float64
	Citations   []string
}

// Update is a partial write to AgentState. Nil fields are left untouched.
type Update struct {
	Route         *Route
	Docs          *[]retriever.Result
	Constraints   *string
	SQL           *string
	GenerationErr *string
	Result        *store.Result
	RetryCount    *int
	Final         *Final
}

func ptr[T any](v T) *T {
	return &v
}

// written names the fields u sets.
func (u Update) written() []string {
	var fields []string
	if u.Route != nil {
		fields = append(fields, "Route")
	}
	if u.Docs != nil {
		fields = append(fields, "Docs")
	}
	if u.Constraints != nil {
		fields = append(fields, "Constraints")
	}
	if u.SQL != nil {
		fields = append(fields, "SQL")
	}
	if u.GenerationErr != nil {
		fields = append(fields, "GenerationErr")
	}
	if u.Result != nil {
		fields = append(fields, "Result")
	}
	if u.RetryCount != nil {
		fields = append(fields, "RetryCount")
	}
	if u.Final != nil {
		fields = append(fields, "Final")
	}
	return fields
}

var owners = map[Node]map[string]bool{
	NodeRouter:         {"Route": true},
	NodeRetriever:      {"Docs": true},
	NodePlanner:        {"Constraints": true},
	NodeQueryGenerator: {"SQL": true, "GenerationErr": true},
	NodeExecutor:       {"Result": true, "RetryCount": true},
	NodeSynthesizer:    {"Final": true},
}

func checkOwnership(node Node, u Update) error {
	for _, field := range u.written() {
		if !owners[node][field] {
			return fmt.Errorf("node %s wrote field %s it does not own", node, field)
		}
	}
	return nil
}

func (s *AgentState) apply(u Update) {
	if u.Route != nil {
		s.Route = *u.Route
	}
	if u.Docs != nil {
		s.Docs = *u.Docs
	}
	if u.Constraints != nil {
		s.Constraints = *u.Constraints
	}
	if u.SQL != nil {
		s.SQL = *u.SQL
	}
	if u.GenerationErr != nil {
		s.GenerationErr = *u.GenerationErr
	}
	if u.Result != nil {
		s.Result = *u.Result
	}
	if u.RetryCount != nil {
		s.RetryCount = *u.RetryCount
	}
	if u.Final != nil {
		s.Final = *u.Final
	}
}
