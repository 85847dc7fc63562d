package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// QueryGenerator produces search queries for one round of research.
// Round 0 explores the question's distinct facets; later rounds target
// the knowledge gap identified by reflection.
type QueryGenerator interface {
	Generate(ctx context.Context, question string, round int, gap string, count int) ([]string, error)
}

// LLMQueryGenerator generates queries with a language model in JSON mode.
type LLMQueryGenerator struct {
	LLM llms.Model
}

func NewLLMQueryGenerator(model llms.Model) *LLMQueryGenerator {
	return &LLMQueryGenerator{LLM: model}
}

const queryWriterPrompt = `You are a research planner writing web search queries.
Generate sophisticated and diverse queries that together cover the distinct facets of the topic.
Each query should focus on one specific aspect; do not produce near-duplicate rephrasings.
Prefer queries that surface current information; today's date is %s.`

const followUpPrompt = `You are a research planner writing follow-up web search queries.
Earlier research on the topic left a knowledge gap. Write queries that specifically close that gap;
do not simply restate the original topic.`

func queriesSchema(count int) string {
	return fmt.Sprintf(`Return the JSON object directly without any formatting or additional text. Make sure to answer in valid json and include all necessary properties:{
  "type": "object",
  "properties": {
    "queries": {
      "type": "array",
      "items": {"type": "string"},
      "description": "List of at most %d search queries"
    },
    "rationale": {"type": "string"}
  },
  "required": ["queries"]
}`, count)
}

// Generate asks the model for up to count queries. Any failure (model
// error, malformed or empty output) is reported as a GenerationError;
// retrying is the caller's decision.
func (g *LLMQueryGenerator) Generate(ctx context.Context, question string, round int, gap string, count int) ([]string, error) {
	if count < 1 {
		count = 1
	}

	system := fmt.Sprintf(queryWriterPrompt, time.Now().Format("January 2, 2006"))
	input := fmt.Sprintf("Topic: %s\nGenerate up to %d search queries.", question, count)
	if round > 0 {
		system = followUpPrompt
		input = fmt.Sprintf("Topic: %s\nKnowledge gap: %s\nGenerate up to %d follow-up search queries.", question, gap, count)
	}

	resp, err := g.LLM.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system+"\n\n# Response Format:\n\n"+queriesSchema(count)),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	}, llms.WithJSONMode())
	if err != nil {
		return nil, &GenerationError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &GenerationError{Err: errors.New("model returned no choices")}
	}

	var parsed struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Content), &parsed); err != nil {
		return nil, &GenerationError{Err: fmt.Errorf("json parse error: %w", err)}
	}

	queries := make([]string, 0, len(parsed.Queries))
	for _, q := range parsed.Queries {
		q = strings.TrimSpace(q)
		if q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return nil, &GenerationError{Err: errors.New("empty queries list")}
	}
	if len(queries) > count {
		queries = queries[:count]
	}
	return queries, nil
}
