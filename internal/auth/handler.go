package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/mehmetcc/cmsgate/internal/httpx"
	"github.com/mehmetcc/cmsgate/internal/person"
	"github.com/mehmetcc/cmsgate/internal/session"
	"github.com/mehmetcc/cmsgate/internal/token"
	"go.uber.org/zap"
)

type AuthenticationHandler interface {
	Register(w http.ResponseWriter, r *http.Request)
	SignIn(w http.ResponseWriter, r *http.Request)
	SignOut(w http.ResponseWriter, r *http.Request)
	Routes() chi.Router
}

type authenticationHandler struct {
	logger      *zap.Logger
	authService AuthService
	codec       token.Codec
	store       session.Store
	ttl         time.Duration
	validator   *validator.Validate
}

func NewAuthenticationHandler(authService AuthService, codec token.Codec, store session.Store, ttl time.Duration, l *zap.Logger) AuthenticationHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	return &authenticationHandler{
		logger:      l,
		authService: authService,
		codec:       codec,
		store:       store,
		ttl:         ttl,
		validator:   v,
	}
}

func (a *authenticationHandler) Routes() chi.Router {
	signInLimit := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteError(w, http.StatusTooManyRequests, httpx.ErrorResponse[any]{
				Code:    httpx.ErrTooManyRequests,
				Message: "too many attempts, try again later",
			})
		}),
	)

	r := chi.NewRouter()
	r.Post("/register", a.Register)
	r.With(signInLimit).Post("/signin", a.SignIn)
	r.Post("/signout", a.SignOut)
	return r
}

func (a *authenticationHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var req registerPersonRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	id, err := a.authService.Register(ctx, req.Email, req.Username, req.Password)
	if err != nil {
		a.logger.Warn("failed to register user", zap.Error(err))
		switch {
		case errors.Is(err, person.ErrDuplicateEmail):
			httpx.WriteError(w, http.StatusConflict, httpx.ErrorResponse[any]{
				Code:    httpx.ErrConflict,
				Message: "email already exists",
			})
		case errors.Is(err, person.ErrDuplicateUsername):
			httpx.WriteError(w, http.StatusConflict, httpx.ErrorResponse[any]{
				Code:    httpx.ErrConflict,
				Message: "username already exists",
			})
		default:
			a.logger.Error("internal server error", zap.Error(err))
			httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrorResponse[any]{
				Code:    httpx.ErrInternal,
				Message: "internal server error",
			})
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, registerPersonResponse{ID: id})
}

func (a *authenticationHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var req signInRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	payload, err := a.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUserNotActive):
			a.logger.Warn("sign-in refused", zap.String("email", req.Email), zap.Error(err))
			httpx.WriteError(w, http.StatusUnauthorized, httpx.ErrorResponse[any]{
				Code:    httpx.ErrUnauthorized,
				Message: "invalid email or password",
			})
		default:
			a.logger.Error("sign-in failed", zap.Error(err))
			httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrorResponse[any]{
				Code:    httpx.ErrInternal,
				Message: "internal server error",
			})
		}
		return
	}

	var issued *session.Session
	tok, err := a.codec.Encode(payload, a.ttl)
	if err == nil {
		issued, err = a.codec.Decode(tok)
	}
	if err != nil {
		a.logger.Error("failed to issue session token", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrorResponse[any]{
			Code:    httpx.ErrInternal,
			Message: "internal server error",
		})
		return
	}
	a.store.Write(w, tok, session.Options{HTTPOnly: true, MaxAge: a.ttl})

	a.logger.Info("session issued", zap.Int64("person_id", payload.ID), zap.String("role", string(payload.Role)))
	httpx.WriteJSON(w, http.StatusOK, signInResponse{
		Email:     payload.Email,
		Role:      string(payload.Role),
		ExpiresAt: time.Unix(issued.ExpiresAt, 0).UTC(),
		Redirect:  SafeReturnTo(req.ReturnTo),
	})
}

func (a *authenticationHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	a.store.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *authenticationHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(w, r, dst); err != nil {
		a.logger.Warn("failed to decode request body", zap.String("path", r.URL.Path), zap.Error(err))
		httpx.WriteDecodeError(w, err)
		return false
	}
	if err := a.validator.Struct(dst); err != nil {
		a.logger.Warn("validation failed", zap.String("path", r.URL.Path), zap.Error(err))
		httpx.WriteError(w, http.StatusUnprocessableEntity, httpx.ErrorResponse[[]httpx.FieldError]{
			Code:    httpx.ErrValidationFailed,
			Message: "validation failed",
			Details: httpx.ValidationDetails(err),
		})
		return false
	}
	return true
}

// SafeReturnTo returns v if it is a local absolute path, "/" otherwise.
// Backslashes and control characters are never accepted.
func SafeReturnTo(v string) string {
	if v == "" || !strings.HasPrefix(v, "/") || strings.HasPrefix(v, "//") {
		return "/"
	}
	if strings.ContainsFunc(v, func(r rune) bool { return r == '\\' || r < 0x20 || r == 0x7f }) {
		return "/"
	}
	u, err := url.Parse(v)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Opaque != "" {
		return "/"
	}
	return v
}

type registerPersonRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Username string `json:"username" validate:"required,min=8,max=32"`
	Password string `json:"password" validate:"required,min=8,max=72,alphanum"`
}

type registerPersonResponse struct {
	ID int64 `json:"id"`
}

type signInRequest struct {
	Email    string `json:"email"     validate:"required,email"`
	Password string `json:"password"  validate:"required,max=72"`
	ReturnTo string `json:"return_to" validate:"omitempty,max=2048"`
}

type signInResponse struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
	Redirect  string    `json:"redirect"`
}
