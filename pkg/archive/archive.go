// Package archive indexes the evidence of completed research runs into
// the vector store, so follow-up chat and the MCP tools can search it.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/mikeboe/openloop/pkg/agent"
	"github.com/mikeboe/openloop/pkg/database"
	"github.com/mikeboe/openloop/pkg/embeddings"
	"github.com/mikeboe/openloop/pkg/splitter"
	"github.com/mikeboe/openloop/pkg/vectorstore"
)

// embeddingDimension matches the Google embedding model output.
const embeddingDimension = 1536

type Archiver struct {
	DB       *database.PostgresDB
	Embedder *embeddings.GoogleEmbedder

	Collection   string
	ChunkSize    int
	ChunkOverlap int

	Logger *slog.Logger
}

func NewArchiver(db *database.PostgresDB, embedder *embeddings.GoogleEmbedder, collection string, chunkSize, chunkOverlap int) *Archiver {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 200
	}
	return &Archiver{
		DB:           db,
		Embedder:     embedder,
		Collection:   collection,
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Logger:       slog.Default(),
	}
}

// ArchiveRun chunks, embeds, and indexes a run's evidence. Documents
// that fail to embed are skipped and logged; the first storage-level
// failure aborts the rest.
func (a *Archiver) ArchiveRun(ctx context.Context, runID uuid.UUID, evidence []agent.SourceDocument) error {
	if len(evidence) == 0 {
		return nil
	}

	if err := a.DB.EnsureVectorExtension(ctx); err != nil {
		return fmt.Errorf("failed to ensure vector extension: %w", err)
	}
	if err := a.DB.CreateEmbeddingsTable(ctx, a.Collection, embeddingDimension); err != nil {
		return fmt.Errorf("failed to create embeddings table: %w", err)
	}

	store, err := vectorstore.NewPGVectorStore(a.DB.Pool, a.Collection)
	if err != nil {
		return fmt.Errorf("invalid collection name: %w", err)
	}

	textSplitter := splitter.NewRecursiveCharacterTextSplitter(a.ChunkSize, a.ChunkOverlap)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 3) // Limit embedding concurrency

	for _, doc := range evidence {
		wg.Add(1)
		go func(doc agent.SourceDocument) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := a.archiveDocument(ctx, store, textSplitter, runID, doc); err != nil {
				a.Logger.Error("Failed to archive evidence", "url", doc.URL, "error", err)
			}
		}(doc)
	}
	wg.Wait()

	a.Logger.Info("Archived run evidence", "run_id", runID, "sources", len(evidence))
	return nil
}

func (a *Archiver) archiveDocument(ctx context.Context, store *vectorstore.PGVectorStore, textSplitter *splitter.TextSplitter, runID uuid.UUID, doc agent.SourceDocument) error {
	content := doc.Content
	if content == "" {
		content = doc.Title
	}
	if content == "" {
		return nil
	}

	chunks, err := textSplitter.SplitText(content)
	if err != nil {
		return fmt.Errorf("failed to split text: %w", err)
	}

	vectors, err := a.Embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	documents := make([]vectorstore.Document, len(chunks))
	for i, chunk := range chunks {
		documents[i] = vectorstore.Document{
			Content: chunk,
			Metadata: map[string]interface{}{
				"source": doc.URL,
				"title":  doc.Title,
				"run_id": runID.String(),
			},
			Embedding: vectors[i],
		}
	}

	return store.AddDocuments(ctx, documents)
}
