package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mehmetcc/cmsgate/migrations"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// Migrate brings the persons and auth_events tables up to date.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// SetMigrationLogger routes goose output through zap.
func SetMigrationLogger(logger *zap.Logger) {
	goose.SetLogger(gooseZapLogger{s: logger.Named("migrate").Sugar()})
}

type gooseZapLogger struct{ s *zap.SugaredLogger }

func (l gooseZapLogger) Printf(format string, v ...interface{}) {
	l.s.Infof(format, v...)
}

// Fatalf must not exit: a failed migration is reported back through Migrate.
func (l gooseZapLogger) Fatalf(format string, v ...interface{}) {
	l.s.Errorf(format, v...)
}
