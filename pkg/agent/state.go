package agent

// ResearchState tracks the progress of one run. It is owned exclusively
// by the engine for the duration of the run; there is no concurrent
// writer, so no locking is needed.
type ResearchState struct {
	Question      string
	Round         int
	SearchQueries []string
	Evidence      map[string]SourceDocument
	KnowledgeGap  string
	IsSufficient  bool
	FinalAnswer   *FinalAnswer

	// evidenceOrder records URL insertion order so evidence iteration
	// stays deterministic across a run.
	evidenceOrder []string
}

func newResearchState(question string) *ResearchState {
	return &ResearchState{
		Question: question,
		Evidence: make(map[string]SourceDocument),
	}
}

// addEvidence merges documents into the evidence set, deduplicating by
// URL. The first document seen for a URL wins; re-merging the same
// results is a no-op. Returns the number of newly added documents.
func (s *ResearchState) addEvidence(docs []SourceDocument) int {
	added := 0
	for _, doc := range docs {
		if doc.URL == "" {
			continue
		}
		if _, seen := s.Evidence[doc.URL]; seen {
			continue
		}
		s.Evidence[doc.URL] = doc
		s.evidenceOrder = append(s.evidenceOrder, doc.URL)
		added++
	}
	return added
}

// orderedEvidence returns the evidence set in insertion order.
func (s *ResearchState) orderedEvidence() []SourceDocument {
	docs := make([]SourceDocument, 0, len(s.evidenceOrder))
	for _, url := range s.evidenceOrder {
		docs = append(docs, s.Evidence[url])
	}
	return docs
}
