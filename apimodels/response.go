package apimodels

// Answer is one line of the batch output.
type Answer struct {
	ID string `json:"id"`

	// The typed answer: int, float64 or the raw string for other hints
	FinalAnswer any `json:"final_answer"`

	// Final (possibly fallback) generated query
	SQL string `json:"sql"`

	// Confidence in [0,1]; zero signals failure
	Confidence float64 `json:"confidence"`

	Explanation string `json:"explanation"`

	// Chunk identifiers and data-source tags, in gathering order
	Citations []string `json:"citations"`
}
