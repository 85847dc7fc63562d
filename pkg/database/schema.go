package database

import (
	"context"
	"fmt"
)

func (db *PostgresDB) InitSchema(ctx context.Context) error {
	// 1. Research Runs Table
	runsQuery := `
		CREATE TABLE IF NOT EXISTS research_runs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			question TEXT NOT NULL,
			effort TEXT NOT NULL DEFAULT 'medium',
			status TEXT NOT NULL DEFAULT 'running',
			answer TEXT,
			sources JSONB,
			confidence_score DOUBLE PRECISION,
			metadata JSONB,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := db.Pool.Exec(ctx, runsQuery); err != nil {
		return fmt.Errorf("failed to create research_runs table: %w", err)
	}

	// 2. Research Logs Table
	logsQuery := `
		CREATE TABLE IF NOT EXISTS research_logs (
			id SERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES research_runs(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		);
	`
	if _, err := db.Pool.Exec(ctx, logsQuery); err != nil {
		return fmt.Errorf("failed to create research_logs table: %w", err)
	}

	// Indexes for faster querying
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_research_logs_run_id ON research_logs(run_id)"); err != nil {
		return fmt.Errorf("failed to create index on research_logs: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_research_runs_created_at ON research_runs(created_at DESC)"); err != nil {
		return fmt.Errorf("failed to create index on research_runs: %w", err)
	}

	// 3. Conversations Table (follow-up chat over archived evidence)
	convQuery := `
		CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title TEXT NOT NULL DEFAULT 'New Conversation',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := db.Pool.Exec(ctx, convQuery); err != nil {
		return fmt.Errorf("failed to create conversations table: %w", err)
	}

	// 4. Messages Table
	msgQuery := `
		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := db.Pool.Exec(ctx, msgQuery); err != nil {
		return fmt.Errorf("failed to create messages table: %w", err)
	}

	// Indexes for chat
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id)"); err != nil {
		return fmt.Errorf("failed to create index on messages: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)"); err != nil {
		return fmt.Errorf("failed to create index on conversations: %w", err)
	}

	return nil
}
