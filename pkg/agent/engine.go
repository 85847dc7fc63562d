package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"
)

// SearchProvider returns raw ranked documents for one query string.
// Deduplication is not its job; the engine merges results into the
// evidence set and dedupes by URL there.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]SourceDocument, error)
}

const (
	defaultFollowUpQueryCount = 2
	defaultCallTimeout        = 90 * time.Second
)

// Engine drives the research loop for one question at a time:
// generate queries, fan out searches, reflect on the evidence, and
// either loop with the identified knowledge gap or synthesize the
// final answer. Each Run owns its own state; an Engine is safe to
// reuse across sequential runs.
type Engine struct {
	Generator   QueryGenerator
	Searcher    SearchProvider
	Reflector   ReflectionEvaluator
	Synthesizer AnswerSynthesizer

	// InitialQueryCount and MaxResearchLoops come from the caller's
	// effort tier. Both must be >= 1.
	InitialQueryCount int
	MaxResearchLoops  int

	// FollowUpQueryCount bounds queries per round after round 0.
	// Defaults to 2.
	FollowUpQueryCount int

	// CallTimeout bounds each external component call independently.
	// Defaults to 90s.
	CallTimeout time.Duration

	Logger *slog.Logger
}

// NewEngine wires the four components into an engine with medium-effort
// defaults. Callers adjust the loop bounds before Run.
func NewEngine(gen QueryGenerator, searcher SearchProvider, reflector ReflectionEvaluator, synth AnswerSynthesizer) *Engine {
	return &Engine{
		Generator:         gen,
		Searcher:          searcher,
		Reflector:         reflector,
		Synthesizer:       synth,
		InitialQueryCount: 3,
		MaxResearchLoops:  3,
	}
}

// Run executes the research loop for question, emitting progress and a
// terminal event to sink. Cancellation is cooperative: it is checked
// before each state transition, in-flight searches are allowed to
// settle, and nothing further is emitted once the context is done.
func (e *Engine) Run(ctx context.Context, question string, sink EventSink) (*RunResult, error) {
	if sink == nil {
		sink = discardSink
	}

	question = strings.TrimSpace(question)
	if err := e.validate(question); err != nil {
		sink.Emit(errorEvent(err))
		return nil, err
	}

	state := newResearchState(question)
	logger := e.logger().With("question", question)
	logger.Info("Starting research loop", "max_loops", e.MaxResearchLoops)

	for {
		// SEARCHING
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		queries, err := e.generateQueries(ctx, state, logger)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			sink.Emit(errorEvent(err))
			return nil, err
		}
		sink.Emit(stepEvent("Generating Search Queries", List(queries)))

		added, failed := e.runSearches(ctx, state, queries, logger)

		// REFLECTING
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sink.Emit(stepEvent("Web Research", Text(fmt.Sprintf(
			"Gathered %d new sources from %d queries (%d failed)", added, len(queries), failed))))

		ref := e.reflect(ctx, state, logger)
		state.IsSufficient = ref.IsSufficient

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if ref.IsSufficient || state.Round+1 >= e.MaxResearchLoops {
			sink.Emit(stepEvent("Research Complete", Text(fmt.Sprintf(
				"Research finished after %d round(s) with %d sources", state.Round+1, len(state.Evidence)))))
			break
		}

		gap := ref.KnowledgeGap
		if gap == "" {
			gap = question
		}
		state.KnowledgeGap = gap
		state.Round++
		sink.Emit(stepEvent("Reflection", Text("Knowledge gap: "+gap)))
	}

	// FINALIZING
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sink.Emit(stepEvent("Finalizing Answer", Text("Synthesizing research into a cited answer")))

	answer, err := e.synthesize(ctx, state, logger)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		sink.Emit(errorEvent(err))
		return nil, err
	}
	state.FinalAnswer = &answer

	result := &RunResult{
		Question: question,
		Answer:   answer,
		Evidence: state.orderedEvidence(),
		Metadata: RunMetadata{
			ResearchLoops: state.Round + 1,
			QueriesRun:    len(state.SearchQueries),
		},
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sink.Emit(completeEvent(Result{
		Query:           question,
		Answer:          answer.Text,
		Sources:         answer.Sources,
		ConfidenceScore: answer.ConfidenceScore,
		Metadata:        result.Metadata,
	}))

	logger.Info("Research loop done", "rounds", result.Metadata.ResearchLoops, "sources", len(result.Evidence))
	return result, nil
}

func (e *Engine) validate(question string) error {
	if question == "" {
		return &ValidationError{Reason: "question must not be empty"}
	}
	if e.MaxResearchLoops < 1 {
		return &ValidationError{Reason: "max research loops must be at least 1"}
	}
	if e.InitialQueryCount < 1 {
		return &ValidationError{Reason: "initial query count must be at least 1"}
	}
	return nil
}

// generateQueries invokes the Query Generator for the current round,
// retrying once on failure. The stored knowledge gap is consumed here.
func (e *Engine) generateQueries(ctx context.Context, state *ResearchState, logger *slog.Logger) ([]string, error) {
	count := e.InitialQueryCount
	gap := ""
	if state.Round > 0 {
		count = e.followUpCount()
		gap = state.KnowledgeGap
		state.KnowledgeGap = ""
	}

	queries, err := e.callGenerate(ctx, state.Question, state.Round, gap, count)
	if err != nil {
		logger.Warn("Query generation failed, retrying", "round", state.Round, "error", err)
		queries, err = e.callGenerate(ctx, state.Question, state.Round, gap, count)
		if err != nil {
			genErr := &GenerationError{}
			if !errors.As(err, &genErr) {
				err = &GenerationError{Err: err}
			}
			return nil, err
		}
	}

	state.SearchQueries = append(state.SearchQueries, queries...)
	logger.Info("Generated queries", "round", state.Round, "queries", queries)
	return queries, nil
}

func (e *Engine) callGenerate(ctx context.Context, question string, round int, gap string, count int) ([]string, error) {
	cctx, cancel := e.callContext(ctx)
	defer cancel()
	return e.Generator.Generate(cctx, question, round, gap, count)
}

// runSearches fans out one search per query and waits for all of them
// to settle. Results are merged in query order so the winner for a
// duplicate URL is deterministic. Per-query failures are non-fatal.
func (e *Engine) runSearches(ctx context.Context, state *ResearchState, queries []string, logger *slog.Logger) (added, failed int) {
	results := make([][]SourceDocument, len(queries))
	errs := make([]error, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			cctx, cancel := e.callContext(ctx)
			defer cancel()
			docs, err := e.Searcher.Search(cctx, query)
			if err != nil {
				errs[i] = &SearchError{Query: query, Err: err}
				return
			}
			results[i] = docs
		}(i, q)
	}
	wg.Wait()

	for i := range queries {
		if errs[i] != nil {
			logger.Warn("Search failed", "error", errs[i])
			failed++
			continue
		}
		added += state.addEvidence(results[i])
	}
	logger.Info("Search round settled", "round", state.Round, "new_sources", added, "failed", failed)
	return added, failed
}

// reflect evaluates sufficiency. A failed or malformed reflection
// degrades to "insufficient" with the original question as the gap.
func (e *Engine) reflect(ctx context.Context, state *ResearchState, logger *slog.Logger) Reflection {
	cctx, cancel := e.callContext(ctx)
	defer cancel()

	ref, err := e.Reflector.Reflect(cctx, state.Question, state.orderedEvidence())
	if err != nil {
		logger.Warn("Reflection failed, assuming insufficient", "error", err)
		return Reflection{IsSufficient: false, KnowledgeGap: state.Question}
	}
	logger.Info("Reflection outcome", "round", state.Round, "sufficient", ref.IsSufficient, "gap", ref.KnowledgeGap)
	return ref
}

// synthesize produces the final answer. When synthesis fails but
// evidence exists, a minimal answer listing the raw sources is returned
// instead of an error; with no evidence the failure is fatal.
func (e *Engine) synthesize(ctx context.Context, state *ResearchState, logger *slog.Logger) (FinalAnswer, error) {
	evidence := state.orderedEvidence()

	cctx, cancel := e.callContext(ctx)
	defer cancel()

	answer, err := e.Synthesizer.Synthesize(cctx, state.Question, evidence)
	if err != nil {
		if len(evidence) == 0 {
			synthErr := &SynthesisError{}
			if !errors.As(err, &synthErr) {
				err = &SynthesisError{Err: err}
			}
			return FinalAnswer{}, err
		}
		logger.Warn("Synthesis failed, returning minimal answer", "error", err)
		return fallbackAnswer(state.Question, evidence), nil
	}

	// Citations must come from gathered evidence, whatever the
	// synthesizer implementation claims.
	answer.Sources = filterCitations(answer.Sources, evidence)
	if math.IsNaN(answer.ConfidenceScore) || answer.ConfidenceScore < 0 || answer.ConfidenceScore > 1 {
		answer.ConfidenceScore = estimateConfidence(len(answer.Sources), len(answer.Text), state.Round+1, len(state.SearchQueries))
	}
	return answer, nil
}

func (e *Engine) followUpCount() int {
	if e.FollowUpQueryCount > 0 {
		return e.FollowUpQueryCount
	}
	return defaultFollowUpQueryCount
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := e.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
