package apimodels

// DefaultFormatHint applies when an input line omits format_hint.
const DefaultFormatHint = "str"

// Question is one line of the batch input.
type Question struct {
	// ID identifies the question in the output
	ID string `json:"id" validate:"required"`

	// Question is the natural language question to answer
	Question string `json:"question" validate:"required"`

	// FormatHint is the expected answer type: int, float, list or free text
	FormatHint string `json:"format_hint,omitempty"`
}

// Hint returns the format hint, defaulted.
func (q Question) Hint() string {
	if q.FormatHint == "" {
		return DefaultFormatHint
	}
	return q.FormatHint
}
