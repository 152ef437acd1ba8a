package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/shop-engine/auth"
	"github.com/warp/shop-engine/shop"
)

// =============================================================================
// USER OPERATIONS (auth.UserStore interface)
// =============================================================================

var _ auth.UserStore = (*Store)(nil)

const userColumns = `id, username, password_hash, full_name, role, is_active, created_at`

func (s *Store) GetUser(ctx context.Context, id shop.UserID) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.UserNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername matches case-insensitively (NOCASE on SQLite, the
// default collation on MySQL).
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &shop.NotFoundError{Kind: "user"}
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u auth.User) (auth.User, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, full_name, role, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.Username, u.PasswordHash, u.FullName, string(u.Role), u.Active, formatTime(u.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return auth.User{}, auth.ErrDuplicateUsername
		}
		return auth.User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return auth.User{}, err
	}
	u.ID = shop.UserID(id)
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u auth.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, full_name = ?, role = ?, is_active = ?
		WHERE id = ?
	`, u.PasswordHash, u.FullName, string(u.Role), u.Active, u.ID)
	if err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetUser(ctx, u.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id shop.UserID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.UserNotFound(id)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *Store) CountActiveAdmins(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = ? AND is_active = 1`, string(shop.RoleAdmin)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active admins: %w", err)
	}
	return n, nil
}

func scanUser(row scanner) (*auth.User, error) {
	var (
		u         auth.User
		role      string
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &role, &u.Active, &createdAt); err != nil {
		return nil, err
	}
	u.Role = shop.Role(role)
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}
