package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// AnswerSynthesizer produces the final cited answer from the full
// evidence set. Implementations must only cite URLs present in the
// evidence.
type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, question string, evidence []SourceDocument) (FinalAnswer, error)
}

// LLMAnswerSynthesizer writes the answer with a language model in JSON
// mode, then filters its citations down to known evidence URLs.
type LLMAnswerSynthesizer struct {
	LLM llms.Model
}

func NewLLMAnswerSynthesizer(model llms.Model) *LLMAnswerSynthesizer {
	return &LLMAnswerSynthesizer{LLM: model}
}

const answerPrompt = `You are a research writer producing the final answer to the user's question.
Base the answer only on the evidence provided. Cite your sources: cited_urls must contain
the EXACT URLs of the evidence you used, in the order they are first referenced.
Never invent URLs. Rate your confidence in the answer between 0 and 1 given the
coverage and relevance of the evidence.`

const answerSchema = `Return the JSON object directly without any formatting or additional text. Make sure to answer in valid json and include all necessary properties:{
  "type": "object",
  "properties": {
    "answer": {"type": "string", "description": "The full answer in Markdown"},
    "cited_urls": {"type": "array", "items": {"type": "string"}},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  },
  "required": ["answer", "cited_urls", "confidence"]
}`

// synthesisExcerptLimit caps per-document content passed to the model.
const synthesisExcerptLimit = 4000

func (s *LLMAnswerSynthesizer) Synthesize(ctx context.Context, question string, evidence []SourceDocument) (FinalAnswer, error) {
	input := fmt.Sprintf("Question: %s\n\nEvidence:\n%s", question, formatEvidence(evidence, synthesisExcerptLimit))

	resp, err := s.LLM.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, answerPrompt+"\n\n# Response Format:\n\n"+answerSchema),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	}, llms.WithJSONMode())
	if err != nil {
		return FinalAnswer{}, &SynthesisError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return FinalAnswer{}, &SynthesisError{Err: errors.New("model returned no choices")}
	}

	var parsed struct {
		Answer     string   `json:"answer"`
		CitedURLs  []string `json:"cited_urls"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Content), &parsed); err != nil {
		return FinalAnswer{}, &SynthesisError{Err: fmt.Errorf("json parse error: %w", err)}
	}
	if strings.TrimSpace(parsed.Answer) == "" {
		return FinalAnswer{}, &SynthesisError{Err: errors.New("empty answer")}
	}

	answer := FinalAnswer{
		Text:    parsed.Answer,
		Sources: filterCitations(parsed.CitedURLs, evidence),
	}
	if parsed.Confidence != nil && !math.IsNaN(*parsed.Confidence) && *parsed.Confidence >= 0 && *parsed.Confidence <= 1 {
		answer.ConfidenceScore = *parsed.Confidence
	} else {
		// NaN signals "no usable confidence"; the engine estimates one
		// from the run's evidence and effort.
		answer.ConfidenceScore = math.NaN()
	}
	return answer, nil
}

// filterCitations keeps only URLs present in the evidence set,
// preserving citation order and dropping duplicates.
func filterCitations(cited []string, evidence []SourceDocument) []string {
	known := make(map[string]bool, len(evidence))
	for _, doc := range evidence {
		known[doc.URL] = true
	}

	sources := make([]string, 0, len(cited))
	for _, url := range cited {
		url = strings.TrimSpace(url)
		if !known[url] {
			continue
		}
		known[url] = false
		sources = append(sources, url)
	}
	return sources
}

// estimateConfidence is the fallback when the model does not report a
// usable confidence: base 0.5 plus bonuses for source coverage, answer
// length, and research effort, bounded to [0.1, 1.0].
func estimateConfidence(sources, answerLen, loops, queries int) float64 {
	score := 0.5

	switch {
	case sources >= 3:
		score += 0.3
	case sources == 2:
		score += 0.2
	case sources == 1:
		score += 0.1
	}

	switch {
	case answerLen > 500:
		score += 0.2
	case answerLen > 200:
		score += 0.15
	case answerLen > 50:
		score += 0.1
	}

	if loops >= 2 {
		score += 0.1
	}
	if queries >= 3 {
		score += 0.1
	}

	return math.Max(0.1, math.Min(1.0, score))
}

// fallbackAnswer is the degraded answer returned when synthesis fails
// with non-empty evidence: no synthesized text, but the raw sources are
// still reported.
func fallbackAnswer(question string, evidence []SourceDocument) FinalAnswer {
	urls := make([]string, 0, len(evidence))
	var listing strings.Builder
	for _, doc := range evidence {
		urls = append(urls, doc.URL)
		fmt.Fprintf(&listing, "- %s: %s\n", doc.Title, doc.URL)
	}

	text := fmt.Sprintf("Unable to fully synthesize an answer for %q. The following sources were gathered during research:\n\n%s", question, listing.String())
	return FinalAnswer{
		Text:            text,
		Sources:         urls,
		ConfidenceScore: 0.1,
	}
}
