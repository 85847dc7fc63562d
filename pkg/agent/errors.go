package agent

import "fmt"

// ValidationError reports bad request input. No component calls are made
// once validation fails.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Reason
}

// GenerationError wraps a query-generation failure. The engine retries
// generation once per round; a second failure aborts the run.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("query generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SearchError wraps a single failed search query. Non-fatal: the round
// proceeds with whatever queries succeeded.
type SearchError struct {
	Query string
	Err   error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search failed for %q: %v", e.Query, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// ReflectionError wraps a failed sufficiency evaluation. The engine
// degrades it to "insufficient" with a generic gap instead of aborting.
type ReflectionError struct {
	Err error
}

func (e *ReflectionError) Error() string {
	return fmt.Sprintf("reflection failed: %v", e.Err)
}

func (e *ReflectionError) Unwrap() error { return e.Err }

// SynthesisError wraps a failed answer synthesis. Fatal only when no
// evidence was gathered; otherwise the engine returns a minimal answer.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("answer synthesis failed: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
