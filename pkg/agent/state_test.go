package agent

import "testing"

func TestAddEvidence(t *testing.T) {
	tests := []struct {
		name      string
		batches   [][]SourceDocument
		wantAdded []int
		wantURLs  []string
	}{
		{
			name: "distinct URLs all added",
			batches: [][]SourceDocument{
				{{URL: "https://a.test", Title: "A"}, {URL: "https://b.test", Title: "B"}},
			},
			wantAdded: []int{2},
			wantURLs:  []string{"https://a.test", "https://b.test"},
		},
		{
			name: "duplicate URL keeps first document",
			batches: [][]SourceDocument{
				{{URL: "https://a.test", Title: "first"}},
				{{URL: "https://a.test", Title: "second"}},
			},
			wantAdded: []int{1, 0},
			wantURLs:  []string{"https://a.test"},
		},
		{
			name: "re-merging same batch is a no-op",
			batches: [][]SourceDocument{
				{{URL: "https://a.test"}, {URL: "https://b.test"}},
				{{URL: "https://a.test"}, {URL: "https://b.test"}},
			},
			wantAdded: []int{2, 0},
			wantURLs:  []string{"https://a.test", "https://b.test"},
		},
		{
			name: "documents without URL are skipped",
			batches: [][]SourceDocument{
				{{URL: "", Title: "orphan"}, {URL: "https://a.test"}},
			},
			wantAdded: []int{1},
			wantURLs:  []string{"https://a.test"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := newResearchState("q")
			for i, batch := range tt.batches {
				if got := state.addEvidence(batch); got != tt.wantAdded[i] {
					t.Errorf("addEvidence() batch %d = %d, want %d", i, got, tt.wantAdded[i])
				}
			}

			docs := state.orderedEvidence()
			if len(docs) != len(tt.wantURLs) {
				t.Fatalf("orderedEvidence() returned %d docs, want %d", len(docs), len(tt.wantURLs))
			}
			for i, url := range tt.wantURLs {
				if docs[i].URL != url {
					t.Errorf("orderedEvidence()[%d].URL = %q, want %q", i, docs[i].URL, url)
				}
			}
		})
	}
}

func TestAddEvidenceFirstWriteWins(t *testing.T) {
	state := newResearchState("q")
	state.addEvidence([]SourceDocument{{URL: "https://a.test", Title: "original", Content: "kept"}})
	state.addEvidence([]SourceDocument{{URL: "https://a.test", Title: "replacement", Content: "dropped"}})

	doc := state.Evidence["https://a.test"]
	if doc.Title != "original" || doc.Content != "kept" {
		t.Errorf("duplicate URL overwrote the first document: got %+v", doc)
	}
}
