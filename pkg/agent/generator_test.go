package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"
)

// fakeLLM plays back canned responses in order, recording prompts.
type fakeLLM struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if tp, ok := part.(llms.TextContent); ok {
				f.prompts = append(f.prompts, tp.Text)
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return &llms.ContentResponse{}, nil
	}
	content := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func TestLLMQueryGeneratorGenerate(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		count    int
		want     []string
		wantErr  bool
	}{
		{
			name:     "parses queries",
			response: `{"queries": ["golang generics tutorial", "go 1.22 release notes"], "rationale": "covers both facets"}`,
			count:    3,
			want:     []string{"golang generics tutorial", "go 1.22 release notes"},
		},
		{
			name:     "trims whitespace and drops blanks",
			response: `{"queries": ["  padded  ", "", "   "]}`,
			count:    3,
			want:     []string{"padded"},
		},
		{
			name:     "caps at requested count",
			response: `{"queries": ["a", "b", "c", "d"]}`,
			count:    2,
			want:     []string{"a", "b"},
		},
		{
			name:     "malformed json",
			response: "I'd be happy to help with some queries!",
			count:    3,
			wantErr:  true,
		},
		{
			name:     "empty queries list",
			response: `{"queries": []}`,
			count:    3,
			wantErr:  true,
		},
		{
			name:    "model error",
			err:     errors.New("rate limited"),
			count:   3,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := NewLLMQueryGenerator(&fakeLLM{responses: []string{tt.response}, err: tt.err})
			got, err := gen.Generate(context.Background(), "how do go generics work", 0, "", tt.count)

			if tt.wantErr {
				if err == nil {
					t.Fatal("Generate() expected error, got nil")
				}
				genErr := &GenerationError{}
				if !errors.As(err, &genErr) {
					t.Errorf("Generate() error = %T, want *GenerationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Generate() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Generate()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLLMQueryGeneratorFollowUpPrompt(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"queries": ["q"]}`}}
	gen := NewLLMQueryGenerator(llm)

	if _, err := gen.Generate(context.Background(), "topic", 1, "pricing details missing", 2); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	joined := strings.Join(llm.prompts, "\n")
	if !strings.Contains(joined, "pricing details missing") {
		t.Error("follow-up prompt should carry the knowledge gap")
	}
	if !strings.Contains(joined, "follow-up") {
		t.Error("later rounds should use the follow-up prompt")
	}
}
