package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0005, Down0005)
}

func Up0005(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `
CREATE TABLE coding_user_remark (
	id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
	user_id TEXT NOT NULL,
	execution_id UUID REFERENCES analysis_execution(id),
	remark TEXT NOT NULL,
	submission_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);`},
		statement{query: `CREATE INDEX coding_user_remark_user_created ON coding_user_remark (user_id, created_at DESC);`},
	)
}

func Down0005(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx, statement{query: `DROP TABLE coding_user_remark;`})
}
