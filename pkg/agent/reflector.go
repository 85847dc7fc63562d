package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// ReflectionEvaluator judges whether the accumulated evidence answers
// the question, and names the remaining knowledge gap when it does not.
type ReflectionEvaluator interface {
	Reflect(ctx context.Context, question string, evidence []SourceDocument) (Reflection, error)
}

// LLMReflectionEvaluator delegates the sufficiency judgment to a
// language model in JSON mode.
type LLMReflectionEvaluator struct {
	LLM llms.Model
}

func NewLLMReflectionEvaluator(model llms.Model) *LLMReflectionEvaluator {
	return &LLMReflectionEvaluator{LLM: model}
}

const reflectionPrompt = `You are a research manager reviewing gathered evidence.
Decide whether the evidence, taken together, answers all aspects of the research topic without obvious omissions.
If it does not, describe the knowledge gap as one concrete, actionable sub-topic for further searching.
Do not repeat the original topic as the gap.`

const reflectionSchema = `Return the JSON object directly without any formatting or additional text. Make sure to answer in valid json and include all necessary properties:{
  "type": "object",
  "properties": {
    "is_sufficient": {"type": "boolean"},
    "knowledge_gap": {"type": "string", "description": "Empty when is_sufficient is true"}
  },
  "required": ["is_sufficient", "knowledge_gap"]
}`

// reflectionExcerptLimit caps per-document content passed to the model.
const reflectionExcerptLimit = 1500

func (r *LLMReflectionEvaluator) Reflect(ctx context.Context, question string, evidence []SourceDocument) (Reflection, error) {
	input := fmt.Sprintf("Topic: %s\n\nEvidence:\n%s", question, formatEvidence(evidence, reflectionExcerptLimit))

	resp, err := r.LLM.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, reflectionPrompt+"\n\n# Response Format:\n\n"+reflectionSchema),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	}, llms.WithJSONMode())
	if err != nil {
		return Reflection{}, &ReflectionError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return Reflection{}, &ReflectionError{Err: errors.New("model returned no choices")}
	}

	var parsed Reflection
	if err := json.Unmarshal([]byte(resp.Choices[0].Content), &parsed); err != nil {
		return Reflection{}, &ReflectionError{Err: fmt.Errorf("json parse error: %w", err)}
	}
	return parsed, nil
}

// formatEvidence renders the evidence set for a prompt, truncating each
// document's content rune-safely.
func formatEvidence(evidence []SourceDocument, limit int) string {
	if len(evidence) == 0 {
		return "(no sources gathered yet)"
	}

	parts := make([]string, 0, len(evidence))
	for _, doc := range evidence {
		content := doc.Content
		if runes := []rune(content); len(runes) > limit {
			content = string(runes[:limit]) + "..."
		}
		parts = append(parts, fmt.Sprintf("Title: %s\nURL: %s\nContent: %s", doc.Title, doc.URL, content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}
