package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/worklane/worklane-api/internal/model"
)

// TokenRepo persists the refresh-token ledger.  The ledger is the source of
// truth for refresh-token validity: a signed token whose row is missing,
// revoked or past its ledger expiry is dead regardless of its signature.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts a ledger row for a newly issued refresh token.
func (r *TokenRepo) Store(ctx context.Context, userID, token string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES (?,?,?)",
		userID, token, exp)
	return err
}

// FindActive returns the ledger row matching the exact token string AND the
// given user id, provided it is neither revoked nor expired.  All four
// conditions are required: a token whose claims decode to a different user
// than the ledger row's owner must not pass.
func (r *TokenRepo) FindActive(ctx context.Context, token, userID string) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token, is_revoked, expires_at, created_at FROM refresh_tokens "+
			"WHERE token=? AND user_id=? AND is_revoked=0 AND expires_at>? LIMIT 1",
		token, userID, time.Now().UTC()).
		Scan(&rt.ID, &rt.UserID, &rt.Token, &rt.IsRevoked, &rt.ExpiresAt, &rt.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rt, nil
}

// Revoke deletes the ledger row for a token.  Deleting a token that does
// not exist is not an error; logout must be idempotent.
func (r *TokenRepo) Revoke(ctx context.Context, token string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE token=?", token)
	return err
}

// RevokeAllForUser deletes every ledger row owned by the user, terminating
// all of their sessions at once.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id=?", userID)
	return err
}

// Rotate atomically replaces one ledger row with another: the old token's
// row is deleted and the new token inserted in a single transaction, so the
// old refresh token becomes permanently unusable the moment the new one is
// live.
func (r *TokenRepo) Rotate(ctx context.Context, userID, oldToken, newToken string, exp time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE token=?", oldToken); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES (?,?,?)",
		userID, newToken, exp); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteExpired removes ledger rows past their expiry.  Nothing schedules
// this; it exists for operator-driven cleanup since expired rows otherwise
// accumulate.
func (r *TokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at<=?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
