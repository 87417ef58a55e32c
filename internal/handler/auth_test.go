package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/worklane/worklane-api/internal/config"
	"github.com/worklane/worklane-api/internal/handler"
	"github.com/worklane/worklane-api/internal/model"
	"github.com/worklane/worklane-api/internal/otp"
	"github.com/worklane/worklane-api/internal/queue"
	"github.com/worklane/worklane-api/internal/repository"
	"github.com/worklane/worklane-api/internal/router"
	"github.com/worklane/worklane-api/internal/token"
)

// memStore is an in-memory stand-in for the user table and the
// refresh-token ledger, mirroring the repository contracts.
type memStore struct {
	users  map[string]*model.User         // by id
	tokens map[string]*model.RefreshToken // by token string
	nextID uint64
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[string]*model.User),
		tokens: make(map[string]*model.RefreshToken),
	}
}

func (m *memStore) CreateWithRefreshToken(_ context.Context, u *model.User, tok string, exp time.Time) error {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return m.Store(context.Background(), u.ID, tok, exp)
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) GetByPhone(_ context.Context, phone string) (*model.User, error) {
	for _, u := range m.users {
		if u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) UpdatePassword(_ context.Context, id, hash string) error {
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memStore) SetEmailVerified(_ context.Context, id string) error {
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsEmailVerified = true
	return nil
}

func (m *memStore) SetPhoneVerified(_ context.Context, id string) error {
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsPhoneVerified = true
	return nil
}

func (m *memStore) Deactivate(_ context.Context, id string) error {
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsDeleted = true
	u.IsActive = false
	return nil
}

func (m *memStore) Reactivate(_ context.Context, id string) error {
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsDeleted = false
	u.IsActive = true
	return nil
}

func (m *memStore) Store(_ context.Context, userID, tok string, exp time.Time) error {
	m.nextID++
	m.tokens[tok] = &model.RefreshToken{
		ID:        m.nextID,
		UserID:    userID,
		Token:     tok,
		ExpiresAt: exp,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (m *memStore) FindActive(_ context.Context, tok, userID string) (*model.RefreshToken, error) {
	rt, ok := m.tokens[tok]
	if !ok || rt.UserID != userID || rt.IsRevoked || !rt.ExpiresAt.After(time.Now().UTC()) {
		return nil, repository.ErrNotFound
	}
	cp := *rt
	return &cp, nil
}

func (m *memStore) Revoke(_ context.Context, tok string) error {
	delete(m.tokens, tok)
	return nil
}

func (m *memStore) RevokeAllForUser(_ context.Context, userID string) error {
	for k, rt := range m.tokens {
		if rt.UserID == userID {
			delete(m.tokens, k)
		}
	}
	return nil
}

func (m *memStore) Rotate(_ context.Context, userID, oldTok, newTok string, exp time.Time) error {
	delete(m.tokens, oldTok)
	return m.Store(context.Background(), userID, newTok, exp)
}

func (m *memStore) ledgerFor(userID string) []*model.RefreshToken {
	var out []*model.RefreshToken
	for _, rt := range m.tokens {
		if rt.UserID == userID {
			out = append(out, rt)
		}
	}
	return out
}

// memCodes is an in-memory phone code store with deterministic codes.
type memCodes struct {
	pending map[string]string
	n       int
}

func newMemCodes() *memCodes { return &memCodes{pending: make(map[string]string)} }

func (m *memCodes) Issue(_ context.Context, phone string) (string, error) {
	m.n++
	code := fmt.Sprintf("%06d", m.n)
	m.pending[phone] = code
	return code, nil
}

func (m *memCodes) Verify(_ context.Context, phone, code string) error {
	if m.pending[phone] != code {
		return otp.ErrCodeMismatch
	}
	delete(m.pending, phone)
	return nil
}

// mailRec records queued deliveries instead of touching a broker.
type mailRec struct {
	sent []queue.MailRequested
}

func (m *mailRec) PublishMail(_ context.Context, ev queue.MailRequested) error {
	m.sent = append(m.sent, ev)
	return nil
}

type testEnv struct {
	e     *echo.Echo
	store *memStore
	codes *memCodes
	mail  *mailRec
	codec *token.Codec
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	codec, err := token.NewCodec(token.Secrets{
		AccessSecret:  "access-secret",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    7 * 24 * time.Hour,
		ResetSecret:   "access-secret",
		ResetTTL:      time.Hour,
		VerifySecret:  "access-secret",
		VerifyTTL:     24 * time.Hour,
	})
	require.NoError(t, err)

	cfg := config.Config{
		Env:              "test",
		BcryptCost:       10,
		RefreshDBDays:    7,
		CookieMaxAgeDays: 7,
		CookieSameSite:   http.SameSiteLaxMode,
		PhoneOTPTTL:      10 * time.Minute,
	}

	store := newMemStore()
	codes := newMemCodes()
	mail := &mailRec{}

	e := echo.New()
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, codec, store, store, codes, mail))
	return &testEnv{e: e, store: store, codes: codes, mail: mail, codec: codec}
}

type envelope struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    map[string]any   `json:"data"`
	Errors  []map[string]any `json:"errors"`
}

func (te *testEnv) post(t *testing.T, path, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(http.MethodPost, path, nil)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	te.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "refreshToken" {
			return ck
		}
	}
	t.Fatal("no refreshToken cookie in response")
	return nil
}

func (te *testEnv) signUp(t *testing.T, name, email, password string) (userID, accessToken string, cookie *http.Cookie) {
	t.Helper()
	rec, env := te.post(t, "/api/v1/auth/sign-up",
		fmt.Sprintf(`{"name":%q,"email":%q,"password":%q,"isFreelancer":true}`, name, email, password))
	require.Equal(t, http.StatusCreated, rec.Code, env.Message)
	require.True(t, env.Success)

	user := env.Data["user"].(map[string]any)
	return user["id"].(string), env.Data["accessToken"].(string), refreshCookie(t, rec)
}

func TestSignUpIssuesSessionAndLedgerRow(t *testing.T) {
	te := newTestEnv(t)
	userID, access, cookie := te.signUp(t, "Alice", "alice@x.com", "secret1")

	// The access token decodes to the created user's id.
	sub, err := te.codec.Verify(token.Access, access)
	require.NoError(t, err)
	require.Equal(t, userID, sub)

	// The refresh cookie is an HTTP-only refresh-kind token backed by a
	// ledger row for the same user.
	require.True(t, cookie.HttpOnly)
	sub, err = te.codec.Verify(token.Refresh, cookie.Value)
	require.NoError(t, err)
	require.Equal(t, userID, sub)

	_, err = te.store.FindActive(context.Background(), cookie.Value, userID)
	require.NoError(t, err)

	// The stored credential is a bcrypt hash, not the plaintext.
	require.True(t, strings.HasPrefix(te.mustUser(t, userID).PasswordHash, "$2"))
}

func (te *testEnv) mustUser(t *testing.T, id string) *model.User {
	t.Helper()
	u, err := te.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func TestSignUpResponseOmitsSecrets(t *testing.T) {
	te := newTestEnv(t)
	rec, env := te.post(t, "/api/v1/auth/sign-up",
		`{"name":"Alice","email":"alice@x.com","password":"secret1","isClient":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := rec.Body.String()
	require.NotContains(t, body, "password")
	require.NotContains(t, body, "refreshToken")
	user := env.Data["user"].(map[string]any)
	require.Equal(t, "alice@x.com", user["email"])
	require.Equal(t, true, user["isClient"])
	require.Equal(t, false, user["isFreelancer"])
}

func TestSignUpDuplicateEmail(t *testing.T) {
	te := newTestEnv(t)
	te.signUp(t, "Alice", "alice@x.com", "secret1")

	rec, env := te.post(t, "/api/v1/auth/sign-up",
		`{"name":"Mallory","email":"alice@x.com","password":"secret2"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.False(t, env.Success)
}

func TestSignUpValidation(t *testing.T) {
	te := newTestEnv(t)
	rec, env := te.post(t, "/api/v1/auth/sign-up",
		`{"name":"A","email":"not-an-email","password":"123"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, env.Success)
	require.Len(t, env.Errors, 3)
}

func TestLoginSuccessIssuesFreshTokens(t *testing.T) {
	te := newTestEnv(t)
	_, signUpAccess, _ := te.signUp(t, "Alice", "alice@x.com", "secret1")

	rec, env := te.post(t, "/api/v1/auth/log-in", `{"email":"alice@x.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	// Every issuance produces a distinct token.
	loginAccess := env.Data["accessToken"].(string)
	require.NotEqual(t, signUpAccess, loginAccess)
	refreshCookie(t, rec)
}

func TestLoginWrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	te := newTestEnv(t)
	te.signUp(t, "Alice", "alice@x.com", "secret1")

	recWrong, envWrong := te.post(t, "/api/v1/auth/log-in", `{"email":"alice@x.com","password":"nope00"}`)
	recMissing, envMissing := te.post(t, "/api/v1/auth/log-in", `{"email":"ghost@x.com","password":"nope00"}`)

	require.Equal(t, http.StatusUnauthorized, recWrong.Code)
	require.Equal(t, http.StatusUnauthorized, recMissing.Code)
	// Same message for both, so responses do not reveal which emails exist.
	require.Equal(t, envWrong.Message, envMissing.Message)
}

func TestLoginInactiveAccount(t *testing.T) {
	te := newTestEnv(t)
	userID, _, _ := te.signUp(t, "Alice", "alice@x.com", "secret1")

	flags := []func(*model.User){
		func(u *model.User) { u.IsDeleted = true },
		func(u *model.User) { u.IsSuspended = true },
		func(u *model.User) { u.IsBlocked = true },
	}
	for i, set := range flags {
		u := te.store.users[userID]
		u.IsDeleted, u.IsSuspended, u.IsBlocked = false, false, false
		set(u)

		rec, env := te.post(t, "/api/v1/auth/log-in", `{"email":"alice@x.com","password":"secret1"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "flag %d", i)
		require.Contains(t, env.Message, "inactive")
	}
}

func TestRefreshRotationIsSingleUse(t *testing.T) {
	te := newTestEnv(t)
	userID, firstAccess, firstCookie := te.signUp(t, "Alice", "alice@x.com", "secret1")

	rec, env := te.post(t, "/api/v1/auth/refresh-token", "", firstCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	newAccess := env.Data["accessToken"].(string)
	require.NotEqual(t, firstAccess, newAccess)

	// The rotated cookie is a different token with its own ledger row.
	secondCookie := refreshCookie(t, rec)
	require.NotEqual(t, firstCookie.Value, secondCookie.Value)
	_, err := te.store.FindActive(context.Background(), secondCookie.Value, userID)
	require.NoError(t, err)

	// Replaying the original token must fail: its ledger row is gone even
	// though the signature is still valid.
	rec, env = te.post(t, "/api/v1/auth/refresh-token", "", firstCookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid or expired refresh token", env.Message)

	// The rotated token still works.
	rec, _ = te.post(t, "/api/v1/auth/refresh-token", "", secondCookie)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshWithoutToken(t *testing.T) {
	te := newTestEnv(t)
	rec, env := te.post(t, "/api/v1/auth/refresh-token", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Refresh token is required", env.Message)
}

func TestRefreshRejectsForgedLedgerlessToken(t *testing.T) {
	te := newTestEnv(t)
	userID, _, _ := te.signUp(t, "Alice", "alice@x.com", "secret1")

	// Signature-valid refresh token that was never entered in the ledger.
	forged, _, err := te.codec.Issue(token.Refresh, userID)
	require.NoError(t, err)

	rec, env := te.post(t, "/api/v1/auth/refresh-token", "",
		&http.Cookie{Name: "refreshToken", Value: forged})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid or expired refresh token", env.Message)
}

func TestRefreshInactiveAccount(t *testing.T) {
	te := newTestEnv(t)
	userID, _, cookie := te.signUp(t, "Alice", "alice@x.com", "secret1")
	te.store.users[userID].IsSuspended = true

	rec, env := te.post(t, "/api/v1/auth/refresh-token", "", cookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, env.Message, "inactive")
}

func TestLogoutIsIdempotent(t *testing.T) {
	te := newTestEnv(t)
	userID, _, cookie := te.signUp(t, "Alice", "alice@x.com", "secret1")

	rec, env := te.post(t, "/api/v1/auth/log-out", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)
	require.Empty(t, te.store.ledgerFor(userID))

	// Same token again: the row is gone, logout still reports success.
	rec, env = te.post(t, "/api/v1/auth/log-out", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	// No token at all: still success.
	rec, env = te.post(t, "/api/v1/auth/log-out", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)
}

func TestLogoutClearsCookie(t *testing.T) {
	te := newTestEnv(t)
	_, _, cookie := te.signUp(t, "Alice", "alice@x.com", "secret1")

	rec, _ := te.post(t, "/api/v1/auth/log-out", "", cookie)
	cleared := refreshCookie(t, rec)
	require.Empty(t, cleared.Value)
	require.True(t, cleared.MaxAge < 0)
}

func TestForgotPasswordUniformResponse(t *testing.T) {
	te := newTestEnv(t)
	te.signUp(t, "Alice", "alice@x.com", "secret1")

	recKnown, envKnown := te.post(t, "/api/v1/auth/forgot-password", `{"email":"alice@x.com"}`)
	recUnknown, envUnknown := te.post(t, "/api/v1/auth/forgot-password", `{"email":"nonexistent@x.com"}`)

	require.Equal(t, http.StatusOK, recKnown.Code)
	require.Equal(t, http.StatusOK, recUnknown.Code)
	require.Equal(t, recKnown.Body.String(), recUnknown.Body.String())
	require.Equal(t, envKnown.Message, envUnknown.Message)

	// Only the registered address got a queued delivery, and the reset
	// token never appeared in either response body.
	require.Len(t, te.mail.sent, 2) // sign-up verification + reset
	reset := te.mail.sent[1]
	require.Equal(t, "password_reset", reset.Template)
	require.Equal(t, "alice@x.com", reset.To)
	require.NotContains(t, recKnown.Body.String(), reset.Token)
}

func TestResetPasswordRevokesAllSessions(t *testing.T) {
	te := newTestEnv(t)
	userID, _, cookie := te.signUp(t, "Alice", "alice@x.com", "secret1")

	resetTok, _, err := te.codec.Issue(token.PasswordReset, userID)
	require.NoError(t, err)

	rec, env := te.post(t, "/api/v1/auth/reset-password",
		fmt.Sprintf(`{"token":%q,"password":"newpass1"}`, resetTok))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	// Old password no longer works, the new one does.
	rec, _ = te.post(t, "/api/v1/auth/log-in", `{"email":"alice@x.com","password":"secret1"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = te.post(t, "/api/v1/auth/log-in", `{"email":"alice@x.com","password":"newpass1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// The pre-reset session was revoked.
	rec, _ = te.post(t, "/api/v1/auth/refresh-token", "", cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetPasswordRejectsWrongTokenKind(t *testing.T) {
	te := newTestEnv(t)
	_, access, _ := te.signUp(t, "Alice", "alice@x.com", "secret1")

	// An access token shares the reset secret but carries the wrong type.
	rec, env := te.post(t, "/api/v1/auth/reset-password",
		fmt.Sprintf(`{"token":%q,"password":"newpass1"}`, access))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid or expired reset token", env.Message)
}

func TestVerifyEmail(t *testing.T) {
	te := newTestEnv(t)
	userID, _, _ := te.signUp(t, "Alice", "alice@x.com", "secret1")

	// Sign-up queued the verification mail carrying the token.
	require.NotEmpty(t, te.mail.sent)
	verification := te.mail.sent[0]
	require.Equal(t, "email_verification", verification.Template)

	rec, env := te.post(t, "/api/v1/auth/verify-email",
		fmt.Sprintf(`{"token":%q}`, verification.Token))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)
	require.True(t, te.mustUser(t, userID).IsEmailVerified)

	// Re-verifying an already-verified address is a conflict.
	rec, _ = te.post(t, "/api/v1/auth/verify-email",
		fmt.Sprintf(`{"token":%q}`, verification.Token))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestVerifyPhoneFlow(t *testing.T) {
	te := newTestEnv(t)
	userID, _, _ := te.signUp(t, "Alice", "alice@x.com", "secret1")
	te.store.users[userID].Phone = "15551234567"

	rec, env := te.post(t, "/api/v1/auth/request-phone-code", `{"phone":"15551234567"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	// The code travels out-of-band, never in the response.
	sms := te.mail.sent[len(te.mail.sent)-1]
	require.Equal(t, "phone_code", sms.Template)
	require.NotContains(t, rec.Body.String(), sms.Code)

	// Wrong code fails and does not flip the flag.
	rec, _ = te.post(t, "/api/v1/auth/verify-phone", `{"phone":"15551234567","code":"999999"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, te.mustUser(t, userID).IsPhoneVerified)

	// Right code verifies.
	rec, env = te.post(t, "/api/v1/auth/verify-phone",
		fmt.Sprintf(`{"phone":"15551234567","code":%q}`, sms.Code))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)
	require.True(t, te.mustUser(t, userID).IsPhoneVerified)

	// Already verified: conflict.
	rec, _ = te.post(t, "/api/v1/auth/verify-phone",
		fmt.Sprintf(`{"phone":"15551234567","code":%q}`, sms.Code))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestVerifyPhoneUnknownNumber(t *testing.T) {
	te := newTestEnv(t)
	rec, _ := te.post(t, "/api/v1/auth/verify-phone", `{"phone":"15550000000","code":"123456"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
