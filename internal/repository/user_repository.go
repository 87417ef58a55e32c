package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/worklane/worklane-api/internal/model"
)

const userColumns = "id,name,email,password_hash,phone,is_freelancer,is_client," +
	"is_email_verified,is_phone_verified,is_active,is_deleted,is_suspended,is_blocked," +
	"created_at,updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// CreateWithRefreshToken inserts the user row and its first refresh-token
// ledger row in one transaction.  Either both land or neither does, so a
// signed refresh token never exists without its ledger entry.  A duplicate
// email surfaces as ErrEmailExists.
func (r *UserRepo) CreateWithRefreshToken(ctx context.Context, u *model.User, token string, exp time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, phone, is_freelancer, is_client) VALUES (?,?,?,?,NULLIF(?,''),?,?)",
		u.ID, u.Name, u.Email, u.PasswordHash, u.Phone, u.IsFreelancer, u.IsClient)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES (?,?,?)",
		u.ID, token, exp)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetByEmail fetches a user by exact email match.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getWhere(ctx, "email=?", email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getWhere(ctx, "id=?", id)
}

// GetByPhone fetches the first user registered with the given phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	return r.getWhere(ctx, "phone=?", phone)
}

func (r *UserRepo) getWhere(ctx context.Context, where string, arg any) (*model.User, error) {
	var (
		u     model.User
		phone sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &phone,
			&u.IsFreelancer, &u.IsClient, &u.IsEmailVerified, &u.IsPhoneVerified,
			&u.IsActive, &u.IsDeleted, &u.IsSuspended, &u.IsBlocked,
			&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Phone = phone.String
	return &u, nil
}

// UpdatePassword stores a new password hash for the user.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.update(ctx, "UPDATE users SET password_hash=? WHERE id=?", passwordHash, id)
}

// SetEmailVerified flips the email verification flag.
func (r *UserRepo) SetEmailVerified(ctx context.Context, id string) error {
	return r.update(ctx, "UPDATE users SET is_email_verified=1 WHERE id=?", id)
}

// SetPhoneVerified flips the phone verification flag.
func (r *UserRepo) SetPhoneVerified(ctx context.Context, id string) error {
	return r.update(ctx, "UPDATE users SET is_phone_verified=1 WHERE id=?", id)
}

// Deactivate soft-deletes the account.  The row is kept; authentication is
// blocked by the is_deleted flag.
func (r *UserRepo) Deactivate(ctx context.Context, id string) error {
	return r.update(ctx, "UPDATE users SET is_deleted=1, is_active=0 WHERE id=?", id)
}

// Reactivate undoes a soft-delete.
func (r *UserRepo) Reactivate(ctx context.Context, id string) error {
	return r.update(ctx, "UPDATE users SET is_deleted=0, is_active=1 WHERE id=?", id)
}

func (r *UserRepo) update(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// isDuplicate reports whether err is a MySQL unique-key violation (1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
