// Package otp implements the one-time phone verification code store on
// Redis.  Codes are short-lived, consumed on first successful check, and
// compared in constant time.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCodeMismatch is returned when the submitted code does not match
	// the stored one, or no code is pending for the phone number.  The two
	// cases share an error so callers cannot probe which numbers have a
	// code outstanding.
	ErrCodeMismatch = errors.New("verification code mismatch")

	// ErrUnavailable is returned when the backing Redis connection is not
	// configured or not reachable.
	ErrUnavailable = errors.New("verification store unavailable")
)

const codeDigits = 6

// Store issues and verifies one-time codes keyed by phone number.
type Store struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore wraps a Redis client.  The client may be nil, in which case
// every operation reports ErrUnavailable.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, prefix: "otp:phone:", ttl: ttl}
}

// Issue generates a fresh numeric code for the phone number and stores it
// with the configured TTL, replacing any earlier pending code.
func (s *Store) Issue(ctx context.Context, phone string) (string, error) {
	if s.rdb == nil {
		return "", ErrUnavailable
	}
	code, err := randomCode()
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, s.prefix+phone, code, s.ttl).Err(); err != nil {
		return "", ErrUnavailable
	}
	return code, nil
}

// Verify checks the submitted code against the pending one and consumes it
// on success.  A second verify with the same code fails: codes are
// single-use.
func (s *Store) Verify(ctx context.Context, phone, code string) error {
	if s.rdb == nil {
		return ErrUnavailable
	}
	stored, err := s.rdb.Get(ctx, s.prefix+phone).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCodeMismatch
		}
		return ErrUnavailable
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrCodeMismatch
	}
	_ = s.rdb.Del(ctx, s.prefix+phone).Err()
	return nil
}

// randomCode returns a cryptographically random string of codeDigits digits.
func randomCode() (string, error) {
	buf := make([]byte, codeDigits)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, codeDigits)
	for i, b := range buf {
		out[i] = '0' + b%10
	}
	return string(out), nil
}
