package otp

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, 10*time.Minute), mr
}

func TestIssueAndVerify(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	code, err := s.Issue(ctx, "15551234567")
	require.NoError(t, err)
	require.Len(t, code, 6)

	require.NoError(t, s.Verify(ctx, "15551234567", code))

	// Codes are single-use: the successful check consumed it.
	require.ErrorIs(t, s.Verify(ctx, "15551234567", code), ErrCodeMismatch)
}

func TestVerifyWrongCode(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	code, err := s.Issue(ctx, "15551234567")
	require.NoError(t, err)

	require.ErrorIs(t, s.Verify(ctx, "15551234567", "000000"), ErrCodeMismatch)

	// A failed attempt does not consume the pending code.
	require.NoError(t, s.Verify(ctx, "15551234567", code))
}

func TestVerifyNoPendingCode(t *testing.T) {
	s, _ := newTestStore(t)
	require.ErrorIs(t, s.Verify(context.Background(), "15550000000", "123456"), ErrCodeMismatch)
}

func TestCodeExpires(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	code, err := s.Issue(ctx, "15551234567")
	require.NoError(t, err)

	mr.FastForward(11 * time.Minute)

	require.ErrorIs(t, s.Verify(ctx, "15551234567", code), ErrCodeMismatch)
}

func TestReissueReplacesCode(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.Issue(ctx, "15551234567")
	require.NoError(t, err)
	second, err := s.Issue(ctx, "15551234567")
	require.NoError(t, err)

	if first != second {
		require.ErrorIs(t, s.Verify(ctx, "15551234567", first), ErrCodeMismatch)
	}
	require.NoError(t, s.Verify(ctx, "15551234567", second))
}

func TestNilClientUnavailable(t *testing.T) {
	s := NewStore(nil, time.Minute)
	_, err := s.Issue(context.Background(), "15551234567")
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, s.Verify(context.Background(), "15551234567", "123456"), ErrUnavailable)
}
