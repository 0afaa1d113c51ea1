package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0004, Down0004)
}

// A submission belongs to at most one execution, whatever that execution's status
func Up0004(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `
CREATE TABLE analysis_execution (
	id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
	user_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed')),
	completed_at TIMESTAMP WITH TIME ZONE,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);`},
		statement{query: `CREATE INDEX analysis_execution_user_status ON analysis_execution (user_id, status);`},
		statement{query: `
CREATE TABLE analysis_execution_submission (
	submission_id UUID PRIMARY KEY REFERENCES coding_submission(id),
	execution_id UUID NOT NULL REFERENCES analysis_execution(id) ON DELETE CASCADE
);`},
		statement{query: `
CREATE INDEX analysis_execution_submission_execution
ON analysis_execution_submission (execution_id);`},
	)
}

func Down0004(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `DROP TABLE analysis_execution_submission;`},
		statement{query: `DROP TABLE analysis_execution;`},
	)
}
