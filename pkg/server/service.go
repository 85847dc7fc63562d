package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/openloop/pkg/agent"
	"github.com/mikeboe/openloop/pkg/archive"
	"github.com/mikeboe/openloop/pkg/clients"
	"github.com/mikeboe/openloop/pkg/config"
	"github.com/mikeboe/openloop/pkg/database"
)

// Service runs research requests and persists their outcome. The DB and
// archiver are optional; without them runs are not recorded.
type Service struct {
	DB  *database.PostgresDB
	Cfg *config.Config

	QueryLLM      llms.Model
	ReflectionLLM llms.Model
	AnswerLLM     llms.Model
	Searcher      agent.SearchProvider

	Archiver *archive.Archiver
}

func NewService(db *database.PostgresDB, cfg *config.Config, queryLLM, reflectionLLM, answerLLM llms.Model, searcher agent.SearchProvider) *Service {
	return &Service{
		DB:            db,
		Cfg:           cfg,
		QueryLLM:      queryLLM,
		ReflectionLLM: reflectionLLM,
		AnswerLLM:     answerLLM,
		Searcher:      searcher,
	}
}

// ModelOverrides lets a request swap individual loop models.
type ModelOverrides struct {
	QueryModel      string `json:"query_model,omitempty"`
	ReflectionModel string `json:"reflection_model,omitempty"`
	AnswerModel     string `json:"answer_model,omitempty"`
}

type ResearchRequest struct {
	Question       string          `json:"question"`
	Effort         string          `json:"effort,omitempty"`
	ModelOverrides *ModelOverrides `json:"model_overrides,omitempty"`
}

// Run is a persisted research run.
type Run struct {
	ID              uuid.UUID       `json:"id"`
	Question        string          `json:"question"`
	Effort          string          `json:"effort"`
	Status          string          `json:"status"`
	Answer          *string         `json:"answer,omitempty"`
	Sources         json.RawMessage `json:"sources,omitempty"`
	ConfidenceScore *float64        `json:"confidence_score,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Research executes one research run, streaming engine events to sink
// (which may be nil). The run row is created up front so its logs have
// a home, and finalized with the outcome.
func (s *Service) Research(ctx context.Context, req ResearchRequest, sink agent.EventSink) (*agent.RunResult, error) {
	profile, err := config.ProfileFor(req.Effort)
	if err != nil {
		verr := &agent.ValidationError{Reason: err.Error()}
		emitError(sink, verr)
		return nil, verr
	}

	runID := uuid.New()
	logger := slog.Default()
	if s.DB != nil {
		if err := s.createRun(ctx, runID, req); err != nil {
			emitError(sink, err)
			return nil, err
		}
		logger = slog.New(NewRunLogHandler(s.DB, runID))
	}

	// Setup failures before the engine starts still owe the stream its
	// terminal error event; the engine emits its own once running.
	eng, err := s.newEngine(ctx, profile, req.ModelOverrides, logger)
	if err != nil {
		s.failRun(runID, err)
		emitError(sink, err)
		return nil, err
	}

	result, err := eng.Run(ctx, req.Question, sink)
	if err != nil {
		s.failRun(runID, err)
		return nil, err
	}

	s.completeRun(runID, result)
	s.archiveRun(runID, result)
	return result, nil
}

func (s *Service) newEngine(ctx context.Context, profile config.EffortProfile, overrides *ModelOverrides, logger *slog.Logger) (*agent.Engine, error) {
	queryLLM, err := s.resolveModel(ctx, overrideOf(overrides).QueryModel, s.QueryLLM)
	if err != nil {
		return nil, err
	}
	reflectionLLM, err := s.resolveModel(ctx, overrideOf(overrides).ReflectionModel, s.ReflectionLLM)
	if err != nil {
		return nil, err
	}
	answerLLM, err := s.resolveModel(ctx, overrideOf(overrides).AnswerModel, s.AnswerLLM)
	if err != nil {
		return nil, err
	}

	eng := agent.NewEngine(
		agent.NewLLMQueryGenerator(queryLLM),
		s.Searcher,
		agent.NewLLMReflectionEvaluator(reflectionLLM),
		agent.NewLLMAnswerSynthesizer(answerLLM),
	)
	eng.InitialQueryCount = profile.InitialQueryCount
	eng.MaxResearchLoops = profile.MaxResearchLoops
	eng.Logger = logger
	return eng, nil
}

func emitError(sink agent.EventSink, err error) {
	if sink != nil {
		sink.Emit(agent.Event{Type: agent.EventError, Error: err.Error()})
	}
}

func overrideOf(o *ModelOverrides) ModelOverrides {
	if o == nil {
		return ModelOverrides{}
	}
	return *o
}

func (s *Service) resolveModel(ctx context.Context, override string, fallback llms.Model) (llms.Model, error) {
	if override == "" {
		if fallback == nil {
			return nil, errors.New("no model configured")
		}
		return fallback, nil
	}
	llm, err := clients.GoogleAI(ctx, s.Cfg.GoogleApiKey, override)
	if err != nil {
		return nil, fmt.Errorf("failed to init override model %q: %w", override, err)
	}
	return llm, nil
}

func (s *Service) createRun(ctx context.Context, runID uuid.UUID, req ResearchRequest) error {
	effort := req.Effort
	if effort == "" {
		effort = config.EffortMedium
	}
	_, err := s.DB.Pool.Exec(ctx,
		"INSERT INTO research_runs (id, question, effort, status) VALUES ($1, $2, $3, 'running')",
		runID, req.Question, effort)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (s *Service) completeRun(runID uuid.UUID, result *agent.RunResult) {
	if s.DB == nil {
		return
	}
	ctx := context.Background()

	sourcesJSON, _ := json.Marshal(result.Answer.Sources)
	metaJSON, _ := json.Marshal(result.Metadata)

	_, err := s.DB.Pool.Exec(ctx, `
		UPDATE research_runs
		SET status = 'completed', answer = $2, sources = $3, confidence_score = $4, metadata = $5, updated_at = NOW()
		WHERE id = $1`,
		runID, result.Answer.Text, sourcesJSON, result.Answer.ConfidenceScore, metaJSON)
	if err != nil {
		slog.Error("Failed to save run outcome", "run_id", runID, "error", err)
	}
}

func (s *Service) failRun(runID uuid.UUID, cause error) {
	if s.DB == nil {
		return
	}
	ctx := context.Background()

	status := "failed"
	if errors.Is(cause, context.Canceled) {
		status = "cancelled"
	}

	dbLogger := slog.New(NewRunLogHandler(s.DB, runID))
	dbLogger.Error("Research run did not complete", "status", status, "error", cause)

	_, err := s.DB.Pool.Exec(ctx,
		"UPDATE research_runs SET status = $2, updated_at = NOW() WHERE id = $1", runID, status)
	if err != nil {
		slog.Error("Failed to mark run", "run_id", runID, "status", status, "error", err)
	}
}

// archiveRun indexes the run's evidence in the background. Best-effort:
// archive failures never affect the request outcome.
func (s *Service) archiveRun(runID uuid.UUID, result *agent.RunResult) {
	if s.Archiver == nil || len(result.Evidence) == 0 {
		return
	}

	evidence := result.Evidence
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.Archiver.ArchiveRun(ctx, runID, evidence); err != nil {
			slog.Error("Failed to archive run evidence", "run_id", runID, "error", err)
		}
	}()
}

func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	query := `
		SELECT id, question, effort, status, answer, sources, confidence_score, metadata, created_at, updated_at
		FROM research_runs
		WHERE id = $1
	`
	run := &Run{}
	err := s.DB.Pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.Question, &run.Effort, &run.Status, &run.Answer, &run.Sources,
		&run.ConfidenceScore, &run.Metadata, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func (s *Service) ListRuns(ctx context.Context) ([]Run, error) {
	query := `
		SELECT id, question, effort, status, answer, sources, confidence_score, metadata, created_at, updated_at
		FROM research_runs
		ORDER BY created_at DESC
		LIMIT 50
	`
	rows, err := s.DB.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Question, &run.Effort, &run.Status, &run.Answer, &run.Sources,
			&run.ConfidenceScore, &run.Metadata, &run.CreatedAt, &run.UpdatedAt); err != nil {
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetRunLogs(ctx context.Context, runID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE run_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, nil
}
