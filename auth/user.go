/*
Package auth implements the identity gate consumed by the shop engine.

PURPOSE:
  Owns user accounts, credential hashing and bearer tokens. The Service type
  satisfies shop.Gate, so the engine can resolve a caller's current role,
  verify a re-entered password and count active admins without knowing how
  accounts are stored.

CREDENTIALS:
  Passwords are hashed with bcrypt. VerifyCredential compares a plaintext
  secret with a stored hash in constant time.

TOKENS:
  Login issues an HS256 JWT whose subject is the user id. The HTTP layer
  parses it into a shop.Principal and passes it explicitly to every call.

ACCOUNT GUARDS:
  - the "system" account cannot be deleted
  - a user cannot delete themselves
  - an active Admin cannot be deleted or deactivated while it is one of
    fewer than two active admins (shop.ErrQuorumViolation)
*/
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/warp/shop-engine/shop"
)

// SystemUsername is the built-in admin account created at first start.
const SystemUsername = "system"

var ErrDuplicateUsername = errors.New("username already exists")

// User is a stored account.
type User struct {
	ID           shop.UserID
	Username     string
	PasswordHash string
	FullName     string
	Role         shop.Role
	Active       bool
	CreatedAt    time.Time
}

// Principal converts the account into the identity passed to the engine.
func (u User) Principal() shop.Principal {
	return shop.Principal{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		Active:   u.Active,
	}
}

// UserStore persists accounts. Missing users are reported with a
// *shop.NotFoundError of Kind "user".
type UserStore interface {
	GetUser(ctx context.Context, id shop.UserID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, u User) (User, error)
	UpdateUser(ctx context.Context, u User) error
	DeleteUser(ctx context.Context, id shop.UserID) error
	ListUsers(ctx context.Context) ([]User, error)
	CountActiveAdmins(ctx context.Context) (int, error)
}

// UserNotFound builds the error stores return for a missing user.
func UserNotFound(id shop.UserID) error {
	return &shop.NotFoundError{Kind: "user", ID: int64(id)}
}
