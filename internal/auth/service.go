package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mehmetcc/cmsgate/internal/person"
	"github.com/mehmetcc/cmsgate/internal/session"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Register(ctx context.Context, email, username, password string) (int64, error)
	Login(ctx context.Context, email, password string) (session.Payload, error)
}

type authService struct {
	personRepo person.PersonRepo
	logger     *zap.Logger
	dummyHash  []byte
}

func NewAuthenticationService(personRepo person.PersonRepo, logger *zap.Logger) AuthService {
	// compared against when the email is unknown so both paths cost a bcrypt run
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	return &authService{
		personRepo: personRepo,
		logger:     logger,
		dummyHash:  dummy,
	}
}

func (a *authService) Register(ctx context.Context, email, username, password string) (int64, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		a.logger.Error("failed to hash password", zap.Error(err))
		return 0, err
	}

	id, err := a.personRepo.Create(ctx, &person.PersonDTO{
		Email:    email,
		Username: username,
		Password: string(hashed),
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// Login checks credentials and returns the payload a session is issued for.
func (a *authService) Login(ctx context.Context, email, password string) (session.Payload, error) {
	p, err := a.personRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, person.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
			return session.Payload{}, ErrInvalidCredentials
		}
		return session.Payload{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(p.Password), []byte(password)); err != nil {
		a.logger.Debug("password mismatch", zap.Int64("person_id", p.ID))
		return session.Payload{}, ErrInvalidCredentials
	}
	if !p.CanSignIn() {
		return session.Payload{}, ErrUserNotActive
	}
	if !p.Role.Valid() {
		a.logger.Error("person has unknown role", zap.Int64("person_id", p.ID), zap.String("role", string(p.Role)))
		return session.Payload{}, ErrInvalidCredentials
	}

	return session.Payload{
		Email:        p.Email,
		Role:         p.Role,
		ID:           p.ID,
		SessionToken: uuid.NewString(),
		Capabilities: p.Role.Capabilities(),
	}, nil
}
