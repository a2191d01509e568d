// Package signatures declares the structured calls the agent makes to the
// language model. A Signature names its input and output fields; the
// Predictor renders it into a prompt, sends it, and parses the named outputs
// back out of whatever the model returned.
package signatures

import (
	"github.com/openai/openai-go"
)

// Field is a named input or output slot of a Signature.
type Field struct {
	Name        string
	Description string
}

type Signature struct {
	Name         string
	Instructions string
	Inputs       []Field
	Outputs      []Field
	// Reasoning asks the model for a step-by-step rationale before the outputs.
	// The rationale is optional when parsing.
	Reasoning bool
}

const reasoningField = "reasoning"

// OutputNames lists the output fields in declaration order, reasoning first
// when enabled.
func (s Signature) OutputNames() []string {
	names := make([]string, 0, len(s.Outputs)+1)
	if s.Reasoning {
		names = append(names, reasoningField)
	}
	for _, f := range s.Outputs {
		names = append(names, f.Name)
	}
	return names
}

// Tool exposes the signature as a function the model can call, with one
// string parameter per output field.
func (s Signature) Tool() openai.ChatCompletionToolParam {
	properties := map[string]interface{}{}
	required := make([]string, 0, len(s.Outputs))
	if s.Reasoning {
		properties[reasoningField] = map[string]string{
			"type":        "string",
			"description": "Think step by step before producing the other fields",
		}
	}
	for _, f := range s.Outputs {
		properties[f.Name] = map[string]string{
			"type":        "string",
			"description": f.Description,
		}
		required = append(required, f.Name)
	}

	return openai.ChatCompletionToolParam{
		Type: openai.F(openai.ChatCompletionToolTypeFunction),
		Function: openai.F(openai.FunctionDefinitionParam{
			Name:        openai.String(s.Name),
			Description: openai.String(s.Instructions),
			Parameters: openai.F(openai.FunctionParameters{
				"type":       "object",
				"properties": properties,
				"required":   required,
			}),
		}),
	}
}

var Router = Signature{
	Name: "Router",
	Instructions: `Decide the best approach to answer the question.

Choose 'rag' if the question asks about:
- Product policies (return windows, warranties)
- Marketing campaigns/calendars (event dates, focus categories)
- KPI definitions (formulas, calculations)
- Catalog information (category mappings)

Choose 'sql' if the question asks about:
- Actual data from the database (orders, revenue, quantities)
- Aggregations (sum, count, average) of transactional data
- Specific order or product details

Choose 'hybrid' if the question needs BOTH:
- Document constraints (like date ranges from marketing calendar)
- AND database queries (like revenue during that period)

Examples:
- "What is the return window for Beverages?" -> rag
- "What was the total revenue in June 1997?" -> sql
- "What was revenue for Summer Beverages 1997?" -> hybrid (needs campaign dates from docs + revenue from DB)`,
	Inputs: []Field{
		{Name: "question"},
	},
	Outputs: []Field{
		{Name: "decision", Description: "Output ONLY one word: 'rag', 'sql', or 'hybrid'"},
	},
}

var GenerateSQL = Signature{
	Name: "GenerateSQL",
	Instructions: `Generate a VALID SQLite query. Output ONLY the SQL.

Allowed Views (LOWERCASE ONLY):
- orders (o): OrderID, OrderDate
- order_items (oi): OrderID, ProductID, UnitPrice, Quantity, Discount
- products (p): ProductID, ProductName, CategoryID, UnitPrice
- categories (c): CategoryID, CategoryName

Rules:
- Revenue = SUM(oi.UnitPrice * oi.Quantity * (1 - oi.Discount))
- Cost = 0.7 * oi.UnitPrice
- Date format: strftime('%Y-%m-%d', o.OrderDate) BETWEEN '...' AND '...'
- JOIN: orders o JOIN order_items oi ON o.OrderID = oi.OrderID JOIN products p ON oi.ProductID = p.ProductID JOIN categories c ON p.CategoryID = c.CategoryID`,
	Inputs: []Field{
		{Name: "question"},
		{Name: "schema_info"},
		{Name: "constraints"},
	},
	Outputs: []Field{
		{Name: "sql_query", Description: "SQL query starting with SELECT"},
	},
}

var ExtractConstraints = Signature{
	Name: "ExtractConstraints",
	Instructions: `Extract specific constraints from documents that are needed for SQL queries.
Look for: date ranges, product categories, KPI formulas, filters.`,
	Inputs: []Field{
		{Name: "question"},
		{Name: "documents", Description: "Retrieved document chunks"},
	},
	Outputs: []Field{
		{Name: "constraints", Description: "Extracted constraints in structured format (e.g., dates: 1997-06-01 to 1997-06-30, categories: Beverages, Condiments)"},
	},
	Reasoning: true,
}

var SynthesizeAnswer = Signature{
	Name: "SynthesizeAnswer",
	Instructions: `Generate a final answer matching the exact format_hint.
For 'float', output only a number like 12345.67
For 'int', output only an integer like 42
For 'list', output a JSON array`,
	Inputs: []Field{
		{Name: "question"},
		{Name: "context", Description: "Retrieved documents or SQL results"},
		{Name: "format_hint", Description: "Expected output format type (int, float, list, etc.)"},
	},
	Outputs: []Field{
		{Name: "final_answer", Description: "ONLY the answer value, matching the format_hint exactly. No text, no units."},
		{Name: "explanation", Description: "Short explanation <= 2 sentences"},
		{Name: "confidence", Description: "Float between 0.0 and 1.0"},
	},
	Reasoning: true,
}
