package person

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type PersonDTO struct {
	Email    string
	Username string
	Password string
}

type PersonRepo interface {
	Create(ctx context.Context, dto *PersonDTO) (int64, error)
	GetByEmail(ctx context.Context, email string) (*Person, error)
	GetByID(ctx context.Context, id int64) (*Person, error)
}

type personRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPersonRepo(db *sql.DB, logger *zap.Logger) PersonRepo {
	return &personRepo{
		db:     db,
		logger: logger,
	}
}

const (
	insertPersonQuery = `
						INSERT INTO persons (email, username, password, role, is_active, is_deleted)
						VALUES ($1, $2, $3, $4, $5, $6)
						RETURNING id
						`
	selectPersonColumns = `
						SELECT id, email, username, password, role, is_active, is_deleted, created_at, updated_at
						FROM persons
						`
	getPersonByEmailQuery = selectPersonColumns + `WHERE lower(email) = $1 LIMIT 1`
	getPersonByIDQuery    = selectPersonColumns + `WHERE id = $1 LIMIT 1`
)

func (p *personRepo) Create(ctx context.Context, dto *PersonDTO) (int64, error) {
	row := p.db.QueryRowContext(ctx,
		insertPersonQuery,
		normalizeEmail(dto.Email),
		strings.TrimSpace(dto.Username),
		dto.Password,
		RoleUser,
		true,
		false,
	)

	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			p.logger.Warn("create person canceled/timed out", zap.Error(err))
			return 0, err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			switch pgErr.ConstraintName {
			case "persons_email_key", "persons_email_lower_idx":
				p.logger.Debug("duplicate email", zap.String("email", dto.Email))
				return 0, ErrDuplicateEmail
			case "persons_username_key":
				p.logger.Debug("duplicate username", zap.String("username", dto.Username))
				return 0, ErrDuplicateUsername
			}
		}
		if pgErr != nil {
			p.logger.Error("postgres error",
				zap.String("code", pgErr.Code),
				zap.String("msg", pgErr.Message),
				zap.String("detail", pgErr.Detail),
			)
			return 0, err
		}

		p.logger.Error("driver/scan error", zap.Error(err))
		return 0, err
	}

	p.logger.Debug("person created", zap.Int64("id", id))
	return id, nil
}

func (p *personRepo) GetByEmail(ctx context.Context, email string) (*Person, error) {
	return p.getOne(ctx, getPersonByEmailQuery, normalizeEmail(email))
}

func (p *personRepo) GetByID(ctx context.Context, id int64) (*Person, error) {
	return p.getOne(ctx, getPersonByIDQuery, id)
}

func (p *personRepo) getOne(ctx context.Context, query string, arg any) (*Person, error) {
	var rec Person
	err := p.db.QueryRowContext(ctx, query, arg).Scan(
		&rec.ID,
		&rec.Email,
		&rec.Username,
		&rec.Password,
		&rec.Role,
		&rec.IsActive,
		&rec.IsDeleted,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		p.logger.Error("failed to load person", zap.Error(err))
		return nil, err
	}
	return &rec, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
