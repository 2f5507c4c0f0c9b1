package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_quizzes.sql
var createQuizzesSQL string

//go:embed 0002_create_quiz_submissions.sql
var createSubmissionsSQL string

//go:embed 0003_create_nft_metadata.sql
var createMetadataSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			for _, stmt := range []string{createQuizzesSQL, createSubmissionsSQL, createMetadataSQL} {
				if _, err := db.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`DROP TABLE IF EXISTS nft_metadata; DROP TABLE IF EXISTS quiz_submissions; DROP TABLE IF EXISTS quizzes`)
			return err
		},
	)
}
