package agent

// SourceDocument is a single retrieved web source. Immutable once created;
// the engine only ever adds documents to the evidence set.
type SourceDocument struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Reflection is the evaluator's judgment of the accumulated evidence.
// When the evidence is insufficient, KnowledgeGap names the concrete
// sub-topic the next round of queries should target.
type Reflection struct {
	IsSufficient bool   `json:"is_sufficient"`
	KnowledgeGap string `json:"knowledge_gap"`
}

// FinalAnswer is the synthesized answer with its citations. Sources are
// listed in citation order and are always a subset of the gathered evidence.
type FinalAnswer struct {
	Text            string   `json:"text"`
	Sources         []string `json:"sources"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// RunMetadata summarizes the effort spent on a single run.
type RunMetadata struct {
	ResearchLoops int `json:"research_loops"`
	QueriesRun    int `json:"queries_run"`
}

// RunResult is everything a completed run produced. Evidence is included
// so callers can persist or index it after the fact.
type RunResult struct {
	Question string
	Answer   FinalAnswer
	Evidence []SourceDocument
	Metadata RunMetadata
}
