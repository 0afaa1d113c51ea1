// Package testdb starts a migrated postgres container for tests
package testdb

import (
	"context"
	"time"

	sloggorm "github.com/imdatngo/slog-gorm/v2"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/migrations"
)

type DB struct {
	Container *postgres.PostgresContainer
	DB        *gorm.DB
}

func Start(ctx context.Context) (*DB, error) {
	ct, err := postgres.Run(ctx,
		"postgres:16.4-alpine",
		postgres.WithDatabase("judgestore"),
		postgres.WithUsername("judgestore"),
		postgres.WithPassword("judgestore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := ct.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(ct)
		return nil, err
	}

	db, err := gorm.Open(gormpg.Open(connStr), &gorm.Config{
		Logger:         sloggorm.New(),
		TranslateError: true,
	})
	if err != nil {
		_ = testcontainers.TerminateContainer(ct)
		return nil, err
	}

	if _, err := migrations.Up(ctx, db); err != nil {
		_ = testcontainers.TerminateContainer(ct)
		return nil, err
	}

	return &DB{Container: ct, DB: db}, nil
}

func (d *DB) Terminate() error {
	if sqlDB, err := d.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return testcontainers.TerminateContainer(d.Container)
}
