package middleware // middleware provides the request-authorization gates applied to routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/worklane/worklane-api/internal/model"
	"github.com/worklane/worklane-api/internal/token"
)

// identityKey is the echo context key the authenticated identity lives
// under.  The identity is attached once and never mutated afterwards.
const identityKey = "auth_user"

// UserSource loads the full user row for a verified token subject.  It is
// the only persistence dependency the authentication gates have.
type UserSource interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// RoleSource answers role-membership questions for the admin gate.
type RoleSource interface {
	HasRole(ctx context.Context, userID, name string) (bool, error)
}

// CurrentUser returns the identity attached by Authenticate or
// OptionalAuthenticate, or nil for anonymous requests.
func CurrentUser(c echo.Context) *model.AuthUser {
	u, _ := c.Get(identityKey).(*model.AuthUser)
	return u
}

// resolve extracts the Bearer token, verifies it as an access token and
// loads the user.  It is shared by the required and the optional variant;
// only the failure handling differs.
func resolve(c echo.Context, codec *token.Codec, users UserSource) (*model.User, error) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil, token.ErrInvalid
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	// Verify enforces the type claim, so a password-reset or verification
	// token presented here is rejected even before expiry.
	userID, err := codec.Verify(token.Access, raw)
	if err != nil {
		return nil, err
	}
	return users.GetByID(c.Request().Context(), userID)
}

// Authenticate requires a valid Bearer access token.  It resolves the
// user, rejects inactive accounts, and attaches the identity to the
// request context.  On any failure it responds 401 and halts the chain.
func Authenticate(codec *token.Codec, users UserSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, err := resolve(c, codec, users)
			if err != nil {
				return unauthorized(c, "Invalid or expired access token")
			}
			if u.Inactive() {
				return unauthorized(c, "Account is inactive or suspended")
			}
			c.Set(identityKey, u.Identity())
			return next(c)
		}
	}
}

// OptionalAuthenticate performs the same resolution as Authenticate but
// any failure (missing header, invalid token, inactive account) silently
// continues the chain with no identity attached.  Endpoints that
// personalize content for logged-in users but remain open to guests use
// this gate.
func OptionalAuthenticate(codec *token.Codec, users UserSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, err := resolve(c, codec, users)
			if err == nil && !u.Inactive() {
				c.Set(identityKey, u.Identity())
			}
			return next(c)
		}
	}
}

// RequireFreelancer passes only identities holding the freelancer role
// flag.  Like the other predicate gates it never touches the persistence
// layer.
func RequireFreelancer() echo.MiddlewareFunc {
	return requireFlag("Freelancer access required", func(u *model.AuthUser) bool { return u.IsFreelancer })
}

// RequireClient passes only identities holding the client role flag.
func RequireClient() echo.MiddlewareFunc {
	return requireFlag("Client access required", func(u *model.AuthUser) bool { return u.IsClient })
}

// RequireVerified passes only identities with a verified email address.
func RequireVerified() echo.MiddlewareFunc {
	return requireFlag("Email verification required", func(u *model.AuthUser) bool { return u.IsEmailVerified })
}

// RequirePhoneVerified passes only identities with a verified phone number.
func RequirePhoneVerified() echo.MiddlewareFunc {
	return requireFlag("Phone verification required", func(u *model.AuthUser) bool { return u.IsPhoneVerified })
}

// requireFlag builds a pure predicate gate: 401 without an identity, 403
// when the predicate fails.
func requireFlag(message string, pass func(*model.AuthUser) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := CurrentUser(c)
			if u == nil {
				return unauthorized(c, "Authentication required")
			}
			if !pass(u) {
				return forbidden(c, message)
			}
			return next(c)
		}
	}
}

// RequireAdmin queries the role relation for a role named "admin".  This
// is the one authorization gate with a per-request database cost; there is
// no caching layer.
func RequireAdmin(roles RoleSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := CurrentUser(c)
			if u == nil {
				return unauthorized(c, "Authentication required")
			}
			isAdmin, err := roles.HasRole(c.Request().Context(), u.ID, "admin")
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{
					"success": false,
					"message": "Error checking admin permissions",
				})
			}
			if !isAdmin {
				return forbidden(c, "Admin access required")
			}
			return next(c)
		}
	}
}

// RequireOwnership compares the authenticated identity's id against the
// named field, read from the URL params first and the JSON body second.
// 400 when the field is absent, 403 on mismatch.
func RequireOwnership(field string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := CurrentUser(c)
			if u == nil {
				return unauthorized(c, "Authentication required")
			}
			resourceID := c.Param(field)
			if resourceID == "" {
				resourceID = bodyField(c, field)
			}
			if resourceID == "" {
				return c.JSON(http.StatusBadRequest, echo.Map{
					"success": false,
					"message": "Resource user ID is required",
				})
			}
			if u.ID != resourceID {
				return forbidden(c, "Access denied: you can only access your own resources")
			}
			return next(c)
		}
	}
}

// bodyField reads a string field from the JSON body without consuming it
// for downstream handlers.
func bodyField(c echo.Context, field string) string {
	req := c.Request()
	if req.Body == nil {
		return ""
	}
	b, err := io.ReadAll(req.Body)
	if err != nil {
		return ""
	}
	req.Body = io.NopCloser(bytes.NewReader(b))
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return ""
	}
	v, _ := m[field].(string)
	return v
}

func unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": message})
}

func forbidden(c echo.Context, message string) error {
	return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": message})
}
