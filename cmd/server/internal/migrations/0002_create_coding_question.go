package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0002, Down0002)
}

func Up0002(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `
CREATE TABLE coding_question (
	id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
	title TEXT NOT NULL,
	difficulty TEXT NOT NULL CHECK (difficulty IN ('easy', 'medium', 'hard')),
	tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	language_ids_allowed JSONB NOT NULL DEFAULT '[]'::jsonb,
	default_language_id INTEGER NOT NULL,
	time_limit_seconds DOUBLE PRECISION NOT NULL CHECK (time_limit_seconds > 0),
	memory_limit_mb INTEGER NOT NULL CHECK (memory_limit_mb > 0),
	output_comparison JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);`},
		statement{query: `
CREATE TABLE coding_test_case (
	id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
	question_id UUID NOT NULL REFERENCES coding_question(id) ON DELETE CASCADE,
	visibility TEXT NOT NULL CHECK (visibility IN ('public', 'hidden')),
	stdin TEXT NOT NULL DEFAULT '',
	expected_stdout TEXT NOT NULL DEFAULT '',
	name TEXT,
	"order" INTEGER NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	UNIQUE (question_id, "order")
);`},
	)
}

func Down0002(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `DROP TABLE coding_test_case;`},
		statement{query: `DROP TABLE coding_question;`},
	)
}
