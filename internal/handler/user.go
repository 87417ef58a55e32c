package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/worklane/worklane-api/internal/config"
	"github.com/worklane/worklane-api/internal/middleware"
	"github.com/worklane/worklane-api/internal/repository"
)

// AccountStore is the persistence surface for the account endpoints.
type AccountStore interface {
	UserStore
	Deactivate(ctx context.Context, id string) error
	Reactivate(ctx context.Context, id string) error
}

// UserHandler serves the self-service account endpoints.  Authorization is
// enforced entirely by the middleware gates on the routes; the handlers
// only act on the ids the gates have already approved.
type UserHandler struct {
	Cfg   config.Config
	Users AccountStore
	responder
}

func NewUserHandler(cfg config.Config, users AccountStore) *UserHandler {
	return &UserHandler{Cfg: cfg, Users: users, responder: responder{dev: cfg.Dev()}}
}

// Me returns the authenticated identity as attached by the middleware.
func (h *UserHandler) Me(c echo.Context) error {
	u := middleware.CurrentUser(c)
	return h.success(c, http.StatusOK, "Authenticated user", echo.Map{"user": u})
}

// Profile returns the full (sanitized) profile of the account owner.  The
// ownership gate guarantees the path id equals the authenticated id.
func (h *UserHandler) Profile(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, c.Param("userId"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return h.fail(c, errNotFound("User"), "")
		}
		return h.fail(c, err, "Failed to load profile")
	}
	return h.success(c, http.StatusOK, "Profile loaded", echo.Map{"user": sanitize(u)})
}

// Deactivate soft-deletes the caller's own account.  The row survives and
// an admin can reactivate it later.
func (h *UserHandler) Deactivate(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.Deactivate(ctx, c.Param("userId")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return h.fail(c, errNotFound("User"), "")
		}
		return h.fail(c, err, "Failed to deactivate account")
	}
	return h.success(c, http.StatusOK, "Account deactivated", nil)
}

// Reactivate undoes a soft-delete.  Admin-gated: a deactivated user cannot
// authenticate, so they cannot reactivate themselves.
func (h *UserHandler) Reactivate(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.Reactivate(ctx, c.Param("userId")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return h.fail(c, errNotFound("User"), "")
		}
		return h.fail(c, err, "Failed to reactivate account")
	}
	return h.success(c, http.StatusOK, "Account reactivated", nil)
}
