package model

import "time"

// User represents an account row in the `users` table.  An account may act
// as a freelancer, a client, or both at once; the role booleans are not
// exclusive.  Any of IsDeleted, IsSuspended or IsBlocked being true makes
// the account inactive and bars authentication no matter what IsActive says.
//
// Fields:
//  ID              – UUID primary key.
//  Name            – display name.
//  Email           – unique email address.
//  PasswordHash    – bcrypt hashed password; never serialized in responses.
//  Phone           – optional phone number ("" when unset).
//  IsFreelancer    – account offers services.
//  IsClient        – account buys services.
//  IsEmailVerified – email ownership confirmed.
//  IsPhoneVerified – phone ownership confirmed.
//  IsActive        – soft activation flag.
//  IsDeleted       – soft-deleted; blocks authentication.
//  IsSuspended     – suspended by moderation; blocks authentication.
//  IsBlocked       – blocked; blocks authentication.
//  CreatedAt       – timestamp of creation.
//  UpdatedAt       – timestamp of last update.
type User struct {
	ID              string    // users.id
	Name            string    // users.name
	Email           string    // users.email
	PasswordHash    string    // users.password_hash
	Phone           string    // users.phone (nullable, "" when unset)
	IsFreelancer    bool      // users.is_freelancer
	IsClient        bool      // users.is_client
	IsEmailVerified bool      // users.is_email_verified
	IsPhoneVerified bool      // users.is_phone_verified
	IsActive        bool      // users.is_active
	IsDeleted       bool      // users.is_deleted
	IsSuspended     bool      // users.is_suspended
	IsBlocked       bool      // users.is_blocked
	CreatedAt       time.Time // users.created_at
	UpdatedAt       time.Time // users.updated_at
}

// Inactive reports whether the account is barred from authenticating.
func (u *User) Inactive() bool {
	return u.IsDeleted || u.IsSuspended || u.IsBlocked
}

// Role represents a row in the `roles` table (e.g. "admin").  Users are
// joined to roles through the user_roles relation table.
type Role struct {
	ID   uint64 // roles.id
	Name string // roles.name
}

// RefreshToken models an entry in the `refresh_tokens` ledger.  The ledger,
// not the token signature, is the authority for whether a refresh token is
// still usable: rotation deletes the old row, logout revokes it.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  Token     – the signed token string (unique).
//  IsRevoked – true once the token has been revoked.
//  ExpiresAt – ledger expiration timestamp.
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64    // refresh_tokens.id
	UserID    string    // refresh_tokens.user_id
	Token     string    // refresh_tokens.token
	IsRevoked bool      // refresh_tokens.is_revoked
	ExpiresAt time.Time // refresh_tokens.expires_at
	CreatedAt time.Time // refresh_tokens.created_at
}

// AuthUser is the request-scoped identity attached after access-token
// verification.  It carries only what the authorization gates need and is
// never mutated after attachment.
type AuthUser struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	IsFreelancer    bool   `json:"isFreelancer"`
	IsClient        bool   `json:"isClient"`
	IsEmailVerified bool   `json:"isEmailVerified"`
	IsPhoneVerified bool   `json:"isPhoneVerified"`
}

// Identity projects a full user row onto the request-scoped view.
func (u *User) Identity() *AuthUser {
	return &AuthUser{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		IsFreelancer:    u.IsFreelancer,
		IsClient:        u.IsClient,
		IsEmailVerified: u.IsEmailVerified,
		IsPhoneVerified: u.IsPhoneVerified,
	}
}
