// Package admin holds the server-rendered administration pages. Every page
// goes through the page guard, whatever the edge gateway decided.
package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mehmetcc/cmsgate/internal/guard"
	"github.com/mehmetcc/cmsgate/internal/httpx"
	"github.com/mehmetcc/cmsgate/internal/person"
	"github.com/mehmetcc/cmsgate/internal/session"
	"go.uber.org/zap"
)

type AdminHandler interface {
	Dashboard(w http.ResponseWriter, r *http.Request, sess *session.Session)
	User(w http.ResponseWriter, r *http.Request, sess *session.Session)
	Routes() chi.Router
}

type adminHandler struct {
	logger     *zap.Logger
	guard      *guard.Guard
	personRepo person.PersonRepo
}

func NewAdminHandler(g *guard.Guard, personRepo person.PersonRepo, l *zap.Logger) AdminHandler {
	return &adminHandler{
		logger:     l,
		guard:      g,
		personRepo: personRepo,
	}
}

func (a *adminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", a.guard.AdminPage(a.Dashboard))
	r.Get("/users/{id}", a.guard.AdminPage(a.User))
	return r
}

func (a *adminHandler) Dashboard(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	httpx.WriteJSON(w, http.StatusOK, dashboardResponse{
		Email:        sess.Email,
		Role:         string(sess.Role),
		Capabilities: sess.Capabilities,
		ExpiresAt:    time.Unix(sess.ExpiresAt, 0).UTC(),
	})
}

func (a *adminHandler) User(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.NotFound(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := a.personRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, person.ErrNotFound) {
			httpx.NotFound(w, r)
			return
		}
		a.logger.Error("failed to load person", zap.Int64("id", id), zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrorResponse[any]{
			Code:    httpx.ErrInternal,
			Message: "internal server error",
		})
		return
	}

	a.logger.Info("admin viewed person",
		zap.Int64("admin_id", sess.ID),
		zap.Int64("person_id", p.ID),
	)
	httpx.WriteJSON(w, http.StatusOK, p)
}

type dashboardResponse struct {
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Capabilities []string  `json:"capabilities"`
	ExpiresAt    time.Time `json:"expires_at"`
}
