package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLLMReflectionEvaluatorReflect(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		want     Reflection
		wantErr  bool
	}{
		{
			name:     "sufficient",
			response: `{"is_sufficient": true, "knowledge_gap": ""}`,
			want:     Reflection{IsSufficient: true},
		},
		{
			name:     "insufficient with gap",
			response: `{"is_sufficient": false, "knowledge_gap": "benchmark numbers for go 1.22"}`,
			want:     Reflection{IsSufficient: false, KnowledgeGap: "benchmark numbers for go 1.22"},
		},
		{
			name:     "malformed json",
			response: "the evidence looks fine to me",
			wantErr:  true,
		},
		{
			name:    "model error",
			err:     errors.New("timeout"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewLLMReflectionEvaluator(&fakeLLM{responses: []string{tt.response}, err: tt.err})
			got, err := r.Reflect(context.Background(), "topic", []SourceDocument{{URL: "https://a.test", Content: "text"}})

			if tt.wantErr {
				if err == nil {
					t.Fatal("Reflect() expected error, got nil")
				}
				refErr := &ReflectionError{}
				if !errors.As(err, &refErr) {
					t.Errorf("Reflect() error = %T, want *ReflectionError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Reflect() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Reflect() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFormatEvidence(t *testing.T) {
	t.Run("empty evidence", func(t *testing.T) {
		if got := formatEvidence(nil, 100); got != "(no sources gathered yet)" {
			t.Errorf("formatEvidence(nil) = %q", got)
		}
	})

	t.Run("truncates long content rune-safely", func(t *testing.T) {
		doc := SourceDocument{URL: "https://a.test", Title: "A", Content: strings.Repeat("ü", 50)}
		got := formatEvidence([]SourceDocument{doc}, 10)
		if !strings.Contains(got, strings.Repeat("ü", 10)+"...") {
			t.Errorf("formatEvidence() did not truncate at rune boundary: %q", got)
		}
		if strings.Contains(got, strings.Repeat("ü", 11)) {
			t.Errorf("formatEvidence() exceeded limit: %q", got)
		}
	})

	t.Run("separates documents", func(t *testing.T) {
		docs := []SourceDocument{
			{URL: "https://a.test", Title: "A", Content: "one"},
			{URL: "https://b.test", Title: "B", Content: "two"},
		}
		got := formatEvidence(docs, 100)
		if !strings.Contains(got, "---") {
			t.Errorf("formatEvidence() missing separator: %q", got)
		}
		if !strings.Contains(got, "URL: https://b.test") {
			t.Errorf("formatEvidence() missing second document: %q", got)
		}
	})
}
