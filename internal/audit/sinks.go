package audit

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"
)

type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Emit(_ context.Context, e Event) error {
	s.logger.Info("authorization decision",
		zap.String("event_id", e.ID),
		zap.String("layer", e.Layer),
		zap.String("method", e.Method),
		zap.String("path", e.Path),
		zap.Bool("allowed", e.Allowed),
		zap.String("reason", e.Reason),
		zap.Int64("user_id", e.UserID),
		zap.String("ip", e.IP),
	)
	return nil
}

const insertAuthEventQuery = `
						INSERT INTO auth_events (id, occurred_at, layer, method, path, allowed, reason, user_id, email, ip)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
						`

type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Emit(ctx context.Context, e Event) error {
	userID := sql.NullInt64{Int64: e.UserID, Valid: e.UserID != 0}
	_, err := s.db.ExecContext(ctx, insertAuthEventQuery,
		e.ID,
		e.Time,
		e.Layer,
		e.Method,
		e.Path,
		e.Allowed,
		e.Reason,
		userID,
		e.Email,
		e.IP,
	)
	return err
}

// MultiSink fans out to every sink; one failing sink does not stop the rest.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
