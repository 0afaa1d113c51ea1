package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0006, Down0006)
}

var touchedTables = []string{
	"coding_question",
	"coding_test_case",
	"coding_submission",
	"analysis_execution",
	"coding_user_remark",
}

func Up0006(ctx context.Context, tx *sql.Tx) error {
	for _, table := range touchedTables {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`
CREATE TRIGGER touch_updated_at_trigger
BEFORE UPDATE ON %s
FOR EACH ROW EXECUTE PROCEDURE touch_updated_at();`,
			table))
		if err != nil {
			return err
		}
	}

	return nil
}

func Down0006(ctx context.Context, tx *sql.Tx) error {
	reversed := slices.Clone(touchedTables)
	slices.Reverse(reversed)

	for _, table := range reversed {
		_, err := tx.ExecContext(
			ctx,
			fmt.Sprintf(`DROP TRIGGER touch_updated_at_trigger ON %s;`, table),
		)
		if err != nil {
			return err
		}
	}

	return nil
}
