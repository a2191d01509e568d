package analyzer

// MaxRetries bounds the generate/execute repair loop. The executor runs at
// most MaxRetries+1 times per question.
const MaxRetries = 2

// RetryDecision picks the executor's outgoing edge. RetryCount has already
// been incremented for the failed execution being judged.
func RetryDecision(s *AgentState) Condition {
	if s.Result.Failed() && s.RetryCount <= MaxRetries {
		return OnRetry
	}
	return OnContinue
}
