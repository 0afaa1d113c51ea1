package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0003, Down0003)
}

func Up0003(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `
CREATE TABLE coding_submission (
	id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
	question_id UUID NOT NULL REFERENCES coding_question(id),
	user_id TEXT NOT NULL,
	language_id INTEGER NOT NULL,
	source_code TEXT NOT NULL,
	source_key TEXT,
	kind TEXT NOT NULL DEFAULT 'standard' CHECK (kind IN ('standard', 'personalized')),
	status TEXT NOT NULL DEFAULT 'queued'
		CHECK (status IN ('queued', 'running', 'passed', 'failed', 'error')),
	passed_count INTEGER CHECK (passed_count >= 0),
	total_count INTEGER CHECK (total_count >= 0),
	first_failure_index INTEGER CHECK (first_failure_index >= 0),
	first_failure JSONB,
	stdout TEXT,
	stderr TEXT,
	compile_output TEXT,
	duration_ms BIGINT CHECK (duration_ms >= 0),
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	CHECK (passed_count <= total_count)
);`},
		statement{query: `
CREATE INDEX coding_submission_user_status_created
ON coding_submission (user_id, status, created_at DESC);`},
		statement{query: `
CREATE INDEX coding_submission_user_question_created
ON coding_submission (user_id, question_id, created_at DESC);`},
	)
}

func Down0003(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `DROP TABLE coding_submission;`},
	)
}
