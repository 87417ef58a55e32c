package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/worklane/worklane-api/internal/config"
	"github.com/worklane/worklane-api/internal/model"
	"github.com/worklane/worklane-api/internal/otp"
	"github.com/worklane/worklane-api/internal/queue"
	"github.com/worklane/worklane-api/internal/repository"
	"github.com/worklane/worklane-api/internal/token"
	"github.com/worklane/worklane-api/internal/utils"
)

const refreshCookieName = "refreshToken"

// UserStore is the persistence surface the session flows need for users.
type UserStore interface {
	CreateWithRefreshToken(ctx context.Context, u *model.User, token string, exp time.Time) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByPhone(ctx context.Context, phone string) (*model.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetEmailVerified(ctx context.Context, id string) error
	SetPhoneVerified(ctx context.Context, id string) error
}

// RefreshTokenStore is the ledger surface for issued refresh tokens.
type RefreshTokenStore interface {
	Store(ctx context.Context, userID, token string, exp time.Time) error
	FindActive(ctx context.Context, token, userID string) (*model.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	Rotate(ctx context.Context, userID, oldToken, newToken string, exp time.Time) error
}

// PhoneCodeStore issues and verifies one-time phone codes.
type PhoneCodeStore interface {
	Issue(ctx context.Context, phone string) (string, error)
	Verify(ctx context.Context, phone, code string) error
}

// Mailer queues out-of-band deliveries (email links, SMS codes).
type Mailer interface {
	PublishMail(ctx context.Context, ev queue.MailRequested) error
}

// AuthHandler bundles dependencies for the session lifecycle endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Codec  *token.Codec
	Users  UserStore
	Tokens RefreshTokenStore
	Codes  PhoneCodeStore
	Mail   Mailer
	responder
}

func NewAuthHandler(cfg config.Config, codec *token.Codec, u UserStore, t RefreshTokenStore, codes PhoneCodeStore, mail Mailer) *AuthHandler {
	return &AuthHandler{
		Cfg:       cfg,
		Codec:     codec,
		Users:     u,
		Tokens:    t,
		Codes:     codes,
		Mail:      mail,
		responder: responder{dev: cfg.Dev()},
	}
}

// ----- DTOs -----

type signUpReq struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	IsFreelancer bool   `json:"isFreelancer"`
	IsClient     bool   `json:"isClient"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type forgotPasswordReq struct {
	Email string `json:"email"`
}
type resetPasswordReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}
type verifyEmailReq struct {
	Token string `json:"token"`
}
type phoneCodeReq struct {
	Phone string `json:"phone"`
}
type verifyPhoneReq struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// userPart is the sanitized user projection returned by sign-up and login.
// The password hash never appears in a response.
type userPart struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	IsFreelancer    bool      `json:"isFreelancer"`
	IsClient        bool      `json:"isClient"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	IsPhoneVerified bool      `json:"isPhoneVerified"`
	CreatedAt       time.Time `json:"createdAt"`
}

func sanitize(u *model.User) userPart {
	return userPart{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		IsFreelancer:    u.IsFreelancer,
		IsClient:        u.IsClient,
		IsEmailVerified: u.IsEmailVerified,
		IsPhoneVerified: u.IsPhoneVerified,
		CreatedAt:       u.CreatedAt,
	}
}

type authResp struct {
	User        userPart `json:"user"`
	AccessToken string   `json:"accessToken"`
}

// ----- cookie helpers -----

// setRefreshCookie stores the refresh token in an HTTP-only cookie.  The
// token is never echoed in a JSON body; the cookie is the only carrier.
func (h *AuthHandler) setRefreshCookie(c echo.Context, tok string) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    tok,
		Path:     "/api/v1/auth",
		MaxAge:   h.Cfg.CookieMaxAgeDays * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   h.Cfg.Env == "prod" || h.Cfg.Env == "production",
		SameSite: h.Cfg.CookieSameSite,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cfg.Env == "prod" || h.Cfg.Env == "production",
		SameSite: h.Cfg.CookieSameSite,
	})
}

// refreshTokenFromRequest reads the refresh token from the cookie, falling
// back to a refreshToken body field for non-browser clients.
func refreshTokenFromRequest(c echo.Context) string {
	if ck, err := c.Cookie(refreshCookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = c.Bind(&body)
	return strings.TrimSpace(body.RefreshToken)
}

// ledgerExpiry computes the database expiry for a new refresh token.
func (h *AuthHandler) ledgerExpiry() time.Time {
	return time.Now().UTC().Add(time.Duration(h.Cfg.RefreshDBDays) * 24 * time.Hour)
}

// issuePair signs a fresh access and refresh token for the user.
func (h *AuthHandler) issuePair(userID string) (access, refresh string, err error) {
	access, _, err = h.Codec.Issue(token.Access, userID)
	if err != nil {
		return "", "", err
	}
	refresh, _, err = h.Codec.Issue(token.Refresh, userID)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// ----- endpoints -----

// SignUp registers a new account and opens its first session: the user row
// and the refresh-token ledger row are created in one transaction, the
// access token is returned in the body and the refresh token only as a
// cookie.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpReq
	if err := c.Bind(&req); err != nil {
		return h.invalid(c, []FieldError{{"body", "Invalid request body"}})
	}
	if errs := req.validate(); len(errs) > 0 {
		return h.invalid(c, errs)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Users.GetByEmail(ctx, req.Email); err == nil {
		return h.fail(c, errAlreadyExists("User with this email"), "")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return h.fail(c, err, "Failed to register user")
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return h.fail(c, err, "Failed to register user")
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		IsFreelancer: req.IsFreelancer,
		IsClient:     req.IsClient,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}

	access, refresh, err := h.issuePair(u.ID)
	if err != nil {
		return h.fail(c, err, "Failed to register user")
	}
	// The unique email constraint catches sign-up races the pre-check
	// missed; the translator turns the violation into a 409.
	if err := h.Users.CreateWithRefreshToken(ctx, u, refresh, h.ledgerExpiry()); err != nil {
		return h.fail(c, err, "Failed to register user")
	}

	// Queue the verification link.  Delivery failures are logged by the
	// publisher and must not fail the registration.
	if verifyTok, _, err := h.Codec.Issue(token.EmailVerification, u.ID); err == nil {
		_ = h.Mail.PublishMail(ctx, queue.MailRequested{
			To:       u.Email,
			Channel:  "email",
			Template: "email_verification",
			Token:    verifyTok,
			QueuedAt: time.Now().UTC().Format(time.RFC3339),
		})
	}

	h.setRefreshCookie(c, refresh)
	return h.success(c, http.StatusCreated, "User registered successfully", authResp{
		User:        sanitize(u),
		AccessToken: access,
	})
}

// Login verifies credentials and opens a new session.  A missing account
// and a wrong password produce the same response; inactive accounts are
// reported distinctly so legitimate users know why they are locked out.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return h.invalid(c, []FieldError{{"body", "Invalid request body"}})
	}
	if errs := req.validate(); len(errs) > 0 {
		return h.invalid(c, errs)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return h.fail(c, errInvalidCredentials(), "")
		}
		return h.fail(c, err, "Failed to login")
	}
	if u.Inactive() {
		return h.fail(c, errAccountInactive(), "")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return h.fail(c, errInvalidCredentials(), "")
	}

	access, refresh, err := h.issuePair(u.ID)
	if err != nil {
		return h.fail(c, err, "Failed to login")
	}
	if err := h.Tokens.Store(ctx, u.ID, refresh, h.ledgerExpiry()); err != nil {
		return h.fail(c, err, "Failed to login")
	}

	h.setRefreshCookie(c, refresh)
	return h.success(c, http.StatusOK, "Login successful", authResp{
		User:        sanitize(u),
		AccessToken: access,
	})
}

// Logout revokes the presented refresh token's ledger row and clears the
// cookie.  It always succeeds from the caller's view: revoking an unknown
// or already-revoked token is not an error.
func (h *AuthHandler) Logout(c echo.Context) error {
	if tok := refreshTokenFromRequest(c); tok != "" {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := h.Tokens.Revoke(ctx, tok); err != nil {
			return h.fail(c, err, "Failed to logout")
		}
	}
	h.clearRefreshCookie(c)
	return h.success(c, http.StatusOK, "Logout successful", nil)
}

// Refresh rotates the session: the cookie's refresh token is verified
// against both its signature and the ledger, the old ledger row is
// replaced with a new one in a single transaction, and only the new access
// token is returned in the body.  Signature failures and ledger misses
// share one message so probing cannot tell them apart.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := refreshTokenFromRequest(c)
	if raw == "" {
		return h.fail(c, errValidation("Refresh token is required"), "")
	}

	userID, err := h.Codec.Verify(token.Refresh, raw)
	if err != nil {
		return h.fail(c, errValidation("Invalid or expired refresh token"), "")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Tokens.FindActive(ctx, raw, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return h.fail(c, errValidation("Invalid or expired refresh token"), "")
		}
		return h.fail(c, err, "Failed to refresh token")
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return h.fail(c, errNotFound("User"), "")
		}
		return h.fail(c, err, "Failed to refresh token")
	}
	if u.Inactive() {
		return h.fail(c, errAccountInactive(), "")
	}

	access, refresh, err := h.issuePair(u.ID)
	if err != nil {
		return h.fail(c, err, "Failed to refresh token")
	}
	if err := h.Tokens.Rotate(ctx, u.ID, raw, refresh, h.ledgerExpiry()); err != nil {
		return h.fail(c, err, "Failed to refresh token")
	}

	h.setRefreshCookie(c, refresh)
	return h.success(c, http.StatusOK, "Token refreshed successfully", echo.Map{
		"accessToken": access,
	})
}

const forgotPasswordMessage = "If the email exists, a password reset link has been sent"

// ForgotPassword issues a password-reset token and queues its delivery.
// The response is identical whether or not the email is registered, and
// the token never appears in the response body.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordReq
	if err := c.Bind(&req); err != nil {
		return h.invalid(c, []FieldError{{"body", "Invalid request body"}})
	}
	if errs := req.validate(); len(errs) > 0 {
		return h.invalid(c, errs)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		// Unknown email or storage trouble: respond as if the mail went
		// out.  Revealing which addresses exist is worse than a silently
		// dropped reset request.
		return h.success(c, http.StatusOK, forgotPasswordMessage, nil)
	}

	if resetTok, _, err := h.Codec.Issue(token.PasswordReset, u.ID); err == nil {
		_ = h.Mail.PublishMail(ctx, queue.MailRequested{
			To:       u.Email,
			Channel:  "email",
			Template: "password_reset",
			Token:    resetTok,
			QueuedAt: time.Now().UTC().Format(time.RFC3339),
		})
	}
	return h.success(c, http.StatusOK, forgotPasswordMessage, nil)
}

// ResetPassword consumes a password-reset token, stores the new hash and
// revokes every outstanding session so a stolen refresh token does not
// outlive the reset.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return h.invalid(c, []FieldError{{"body", "Invalid request body"}})
	}
	if errs := req.validate(); len(errs) > 0 {
		return h.invalid(c, errs)
	}

	userID, err := h.Codec.Verify(token.PasswordReset, req.Token)
	if err != nil {
		return h.fail(c, errValidation("Invalid or expired reset token"), "")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return h.fail(c, errNotFound("User"), "")
		}
		return h.fail(c, err, "Failed to reset password")
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return h.fail(c, err, "Failed to reset password")
	}
	if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return h.fail(c, err, "Failed to reset password")
	}
	if err := h.Tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		return h.fail(c, err, "Failed to reset password")
	}

	return h.success(c, http.StatusOK, "Password reset successfully", nil)
}

// VerifyEmail consumes an email-verification token and flips the flag.
// Re-verifying an already-verified address is a conflict.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailReq
	if err := c.Bind(&req); err != nil {
		return h.invalid(c, []FieldError{{"body", "Invalid request body"}})
	}
	if errs := req.validate(); len(errs) > 0 {
		return h.invalid(c, errs)
	}

	userID, err := h.Codec.Verify(token.EmailVerification, req.Token)
	if err != nil {
		return h.fail(c, errValidation("Invalid or expired verification token"), "")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return h.fail(c, errNotFound("User"), "")
		}
		return h.fail(c, err, "Failed to verify email")
	}
	if u.IsEmailVerified {
		return h.fail(c, errAlreadyExists("Email verification"), "")
	}
	if err := h.Users.SetEmailVerified(ctx, u.ID); err != nil {
		return h.fail(c, err, "Failed to verify email")
	}

	return h.success(c, http.StatusOK, "Email verified successfully", nil)
}

// RequestPhoneCode issues a one-time code for the phone number and queues
// its SMS delivery.  Like forgot-password, the response does not reveal
// whether the number is registered.
func (h *AuthHandler) RequestPhoneCode(c echo.Context) error {
	var req phoneCodeReq
	if err := c.Bind(&req); err != nil {
		return h.invalid(c, []FieldError{{"body", "Invalid request body"}})
	}
	if errs := req.validate(); len(errs) > 0 {
		return h.invalid(c, errs)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	const sentMessage = "If the phone number is registered, a verification code has been sent"

	u, err := h.Users.GetByPhone(ctx, req.Phone)
	if err != nil || u.IsPhoneVerified {
		return h.success(c, http.StatusOK, sentMessage, nil)
	}

	code, err := h.Codes.Issue(ctx, req.Phone)
	if err != nil {
		if errors.Is(err, otp.ErrUnavailable) {
			return h.fail(c, err, "Phone verification is temporarily unavailable")
		}
		return h.fail(c, err, "Failed to send verification code")
	}
	_ = h.Mail.PublishMail(ctx, queue.MailRequested{
		To:       req.Phone,
		Channel:  "sms",
		Template: "phone_code",
		Code:     code,
		QueuedAt: time.Now().UTC().Format(time.RFC3339),
	})
	return h.success(c, http.StatusOK, sentMessage, nil)
}

// VerifyPhone checks the submitted one-time code and flips the phone
// verification flag.  The code is consumed on success.
func (h *AuthHandler) VerifyPhone(c echo.Context) error {
	var req verifyPhoneReq
	if err := c.Bind(&req); err != nil {
		return h.invalid(c, []FieldError{{"body", "Invalid request body"}})
	}
	if errs := req.validate(); len(errs) > 0 {
		return h.invalid(c, errs)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByPhone(ctx, req.Phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return h.fail(c, errNotFound("User with this phone number"), "")
		}
		return h.fail(c, err, "Failed to verify phone number")
	}
	if u.IsPhoneVerified {
		return h.fail(c, errAlreadyExists("Phone verification"), "")
	}

	if err := h.Codes.Verify(ctx, req.Phone, req.Code); err != nil {
		switch {
		case errors.Is(err, otp.ErrCodeMismatch):
			return h.fail(c, errValidation("Invalid verification code"), "")
		case errors.Is(err, otp.ErrUnavailable):
			return h.fail(c, err, "Phone verification is temporarily unavailable")
		default:
			return h.fail(c, err, "Failed to verify phone number")
		}
	}

	if err := h.Users.SetPhoneVerified(ctx, u.ID); err != nil {
		return h.fail(c, err, "Failed to verify phone number")
	}
	return h.success(c, http.StatusOK, "Phone number verified successfully", nil)
}
