package analyzer

import (
	"context"
	"fmt"
)

// Node identifies a step of the question-answering graph.
type Node string

const (
	NodeRouter         Node = "router"
	NodeRetriever      Node = "retriever"
	NodePlanner        Node = "planner"
	NodeQueryGenerator Node = "nl_sql"
	NodeExecutor       Node = "executor"
	NodeSynthesizer    Node = "synthesizer"
	NodeEnd            Node = "end"
)

// Condition labels an outgoing edge.
type Condition string

const (
	Always     Condition = "always"
	OnRAG      Condition = Condition(RouteRAG)
	OnSQL      Condition = Condition(RouteSQL)
	OnHybrid   Condition = Condition(RouteHybrid)
	OnRetry    Condition = "retry"
	OnContinue Condition = "continue"
)

// transitions is the whole control flow. The only cycle is
// nl_sql -> executor -> nl_sql, bounded by MaxRetries.
var transitions = map[Node]map[Condition]Node{
	NodeRouter: {
		OnRAG:    NodeRetriever,
		OnHybrid: NodeRetriever,
		OnSQL:    NodeQueryGenerator,
	},
	NodeRetriever: {
		Always: NodePlanner,
	},
	NodePlanner: {
		OnHybrid: NodeQueryGenerator,
		OnRAG:    NodeSynthesizer,
	},
	NodeQueryGenerator: {
		Always: NodeExecutor,
	},
	NodeExecutor: {
		OnRetry:    NodeQueryGenerator,
		OnContinue: NodeSynthesizer,
	},
	NodeSynthesizer: {
		Always: NodeEnd,
	},
}

// maxSteps is a guard well above the longest legal path
// (router, retriever, planner, three generate/execute rounds, synthesizer).
const maxSteps = 16

type step struct {
	run  func(ctx context.Context, s *AgentState) Update
	next func(s *AgentState) Condition
}

func (a *Analyzer) steps() map[Node]step {
	always := func(*AgentState) Condition { return Always }
	return map[Node]step{
		NodeRouter:         {run: a.routeQuestion, next: routeCondition},
		NodeRetriever:      {run: a.retrieveDocs, next: always},
		NodePlanner:        {run: a.extractConstraints, next: plannerCondition},
		NodeQueryGenerator: {run: a.generateSQL, next: always},
		NodeExecutor:       {run: a.executeSQL, next: RetryDecision},
		NodeSynthesizer:    {run: a.synthesize, next: always},
	}
}

func routeCondition(s *AgentState) Condition {
	return Condition(s.Route)
}

func plannerCondition(s *AgentState) Condition {
	if s.Route == RouteHybrid {
		return OnHybrid
	}
	return OnRAG
}

// run interprets the graph from NodeRouter until NodeEnd.
func (a *Analyzer) run(ctx context.Context, s *AgentState) error {
	steps := a.steps()
	node := NodeRouter

	for n := 0; node != NodeEnd; n++ {
		if n >= maxSteps {
			return fmt.Errorf("graph did not terminate after %d steps (trace %v)", maxSteps, s.Trace)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		st, ok := steps[node]
		if !ok {
			return fmt.Errorf("no handler for node %s", node)
		}
		s.Trace = append(s.Trace, node)

		u := st.run(ctx, s)
		if err := checkOwnership(node, u); err != nil {
			return err
		}
		s.apply(u)

		cond := st.next(s)
		next, ok := transitions[node][cond]
		if !ok {
			return fmt.Errorf("no transition from %s on %q", node, cond)
		}
		s.log.Debug("Transition", "from", node, "on", cond, "to", next)
		node = next
	}
	return nil
}
