package token // package token signs and verifies the application's JWT classes

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
	"github.com/google/uuid"
)

// Kind identifies the purpose a token was signed for.  The kind is embedded
// in the claims as "type" and checked again on verification, so a token
// signed for one purpose (say password reset) is rejected wherever a
// different kind (say access) is expected, even though it is
// cryptographically valid under a shared secret.
type Kind string

const (
	Access            Kind = "access"
	Refresh           Kind = "refresh"
	PasswordReset     Kind = "password_reset"
	EmailVerification Kind = "email_verification"
)

// ErrInvalid is returned for any token that fails verification: bad
// signature, expired, malformed claims, or a type claim that does not match
// the expected kind.  The causes are deliberately collapsed into one error
// so callers cannot leak which check failed.
var ErrInvalid = errors.New("invalid token")

// kindConfig holds the signing context for one token kind.
type kindConfig struct {
	secret []byte
	ttl    time.Duration
}

// Codec issues and verifies HS256 tokens for all four kinds.  Each kind has
// its own secret and lifetime, configured once at construction.
type Codec struct {
	kinds map[Kind]kindConfig
}

// Secrets carries the per-kind signing configuration for NewCodec.
type Secrets struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	ResetSecret   string
	ResetTTL      time.Duration
	VerifySecret  string
	VerifyTTL     time.Duration
}

// NewCodec builds a Codec from the per-kind secrets and lifetimes.  Empty
// secrets or non-positive lifetimes are a programming error surfaced here
// rather than at issue time.
func NewCodec(s Secrets) (*Codec, error) {
	kinds := map[Kind]kindConfig{
		Access:            {secret: []byte(s.AccessSecret), ttl: s.AccessTTL},
		Refresh:           {secret: []byte(s.RefreshSecret), ttl: s.RefreshTTL},
		PasswordReset:     {secret: []byte(s.ResetSecret), ttl: s.ResetTTL},
		EmailVerification: {secret: []byte(s.VerifySecret), ttl: s.VerifyTTL},
	}
	for k, kc := range kinds {
		if len(kc.secret) == 0 {
			return nil, errors.New("token: missing secret for kind " + string(k))
		}
		if kc.ttl <= 0 {
			return nil, errors.New("token: non-positive ttl for kind " + string(k))
		}
	}
	return &Codec{kinds: kinds}, nil
}

// Issue signs a token of the given kind for a user.  The claims carry the
// user id as subject, the kind as "type", and expiry from the kind's
// configured lifetime.  The expiration time is returned alongside the token
// so callers can mirror it in cookies or ledger rows.
func (c *Codec) Issue(kind Kind, userID string) (string, time.Time, error) {
	kc, ok := c.kinds[kind]
	if !ok {
		return "", time.Time{}, errors.New("token: unknown kind " + string(kind))
	}
	now := time.Now().UTC()
	exp := now.Add(kc.ttl)
	claims := jwt.MapClaims{
		"sub":  userID,
		"type": string(kind),
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
		// jti makes every issuance distinct even within the same second,
		// so two logins never share a token string.
		"jti": uuid.NewString(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(kc.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks the signature and expiry of a token against the expected
// kind's secret and enforces that the embedded type claim matches.  On
// success it returns the user id from the subject claim; any failure is
// reported as ErrInvalid.
func (c *Codec) Verify(kind Kind, raw string) (string, error) {
	kc, ok := c.kinds[kind]
	if !ok {
		return "", ErrInvalid
	}
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything other than HMAC.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return kc.secret, nil
	})
	if err != nil || !tok.Valid {
		return "", ErrInvalid
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalid
	}
	// Cross-purpose replay defense: the type claim must name this kind.
	if typ, _ := claims["type"].(string); typ != string(kind) {
		return "", ErrInvalid
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalid
	}
	return sub, nil
}
