package store

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Row []any

// Result is either rows (or a statement message) or an execution error.
type Result struct {
	Columns  []string
	Rows     []Row
	Message  string
	Affected int64
	Err      error
}

func failed(err error) Result {
	return Result{Err: fmt.Errorf("%w: %v", ErrExecution, err)}
}

func (r Result) Failed() bool {
	return r.Err != nil
}

// Empty reports whether there is nothing worth showing downstream.
func (r Result) Empty() bool {
	return r.Failed() || (len(r.Rows) == 0 && r.Message == "")
}

// String renders the result compactly for a prompt.
func (r Result) String() string {
	if r.Failed() {
		return "Error: " + r.Err.Error()
	}
	if r.Message != "" {
		return r.Message
	}
	rows, err := json.Marshal(r.Rows)
	if err != nil {
		rows = []byte(fmt.Sprintf("%v", r.Rows))
	}
	return fmt.Sprintf("%s (columns: %s)", rows, strings.Join(r.Columns, ", "))
}
