package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/warp/shop-engine/shop"
)

// Service manages accounts and implements shop.Gate.
type Service struct {
	users      UserStore
	tokens     *TokenIssuer
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time
}

var _ shop.Gate = (*Service)(nil)

type ServiceOption func(*Service)

func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBcryptCost overrides bcrypt.DefaultCost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) { s.bcryptCost = cost }
}

func NewService(users UserStore, tokens *TokenIssuer, opts ...ServiceOption) *Service {
	s := &Service{
		users:  users,
		tokens: tokens,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// shop.Gate
// =============================================================================

func (s *Service) Resolve(ctx context.Context, id shop.UserID) (shop.Principal, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return shop.Principal{}, err
	}
	return u.Principal(), nil
}

func (s *Service) VerifyCredential(ctx context.Context, id shop.UserID, secret string) (bool, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		if shop.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return VerifyCredential(secret, u.PasswordHash), nil
}

func (s *Service) ActiveAdminCount(ctx context.Context) (int, error) {
	return s.users.CountActiveAdmins(ctx)
}

// =============================================================================
// SESSIONS
// =============================================================================

// LoginResult is returned by Login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      User
}

// Login checks credentials of an active user and issues a token.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if shop.IsNotFound(err) {
			return nil, shop.ErrInvalidCredential
		}
		return nil, err
	}
	if !u.Active || !VerifyCredential(password, u.PasswordHash) {
		s.logger.Warn("login rejected", zap.String("username", u.Username))
		return nil, shop.ErrInvalidCredential
	}

	token, exp, err := s.tokens.Issue(*u)
	if err != nil {
		return nil, err
	}
	s.logger.Info("login", zap.Int64("user_id", int64(u.ID)), zap.String("role", string(u.Role)))
	return &LoginResult{Token: token, ExpiresAt: exp, User: *u}, nil
}

// Authenticate turns a bearer token into a principal.
func (s *Service) Authenticate(raw string) (shop.Principal, error) {
	return s.tokens.Parse(raw)
}

// =============================================================================
// ACCOUNT MANAGEMENT
// =============================================================================

// RegisterInput is the payload of Register.
type RegisterInput struct {
	Username string
	Password string
	FullName string
	Role     shop.Role
}

func (in *RegisterInput) validate() error {
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	n := utf8.RuneCountInString(in.Username)
	switch {
	case n < 3 || n > 50:
		return &shop.ValidationError{Field: "username", Message: "must be 3-50 characters"}
	case utf8.RuneCountInString(in.Password) < 4:
		return &shop.ValidationError{Field: "password", Message: "must be at least 4 characters"}
	case in.FullName == "":
		return &shop.ValidationError{Field: "full_name", Message: "required"}
	case utf8.RuneCountInString(in.FullName) > 100:
		return &shop.ValidationError{Field: "full_name", Message: "too long"}
	case !in.Role.Valid():
		return &shop.ValidationError{Field: "role", Message: "must be Admin or Staff"}
	}
	return nil
}

// Register creates an account. Only admins may register users.
func (s *Service) Register(ctx context.Context, caller shop.Principal, in RegisterInput) (User, error) {
	if err := in.validate(); err != nil {
		return User{}, err
	}
	if _, err := s.requireAdmin(ctx, caller); err != nil {
		return User{}, err
	}
	u, err := s.createUser(ctx, in)
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user registered",
		zap.Int64("user_id", int64(u.ID)),
		zap.Int64("actor", int64(caller.UserID)),
		zap.String("role", string(u.Role)),
	)
	return u, nil
}

func (s *Service) createUser(ctx context.Context, in RegisterInput) (User, error) {
	hash, err := HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return User{}, err
	}
	u, err := s.users.CreateUser(ctx, User{
		Username:     in.Username,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         in.Role,
		Active:       true,
		CreatedAt:    s.now(),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return User{}, &shop.ValidationError{Field: "username", Message: "already exists"}
		}
		return User{}, err
	}
	return u, nil
}

// EnsureSystemAdmin creates the built-in admin if it does not exist yet.
func (s *Service) EnsureSystemAdmin(ctx context.Context, password string) (User, bool, error) {
	existing, err := s.users.GetUserByUsername(ctx, SystemUsername)
	if err == nil {
		return *existing, false, nil
	}
	if !shop.IsNotFound(err) {
		return User{}, false, err
	}
	in := RegisterInput{Username: SystemUsername, Password: password, FullName: "System Administrator", Role: shop.RoleAdmin}
	if err := in.validate(); err != nil {
		return User{}, false, err
	}
	u, err := s.createUser(ctx, in)
	if err != nil {
		return User{}, false, err
	}
	return u, true, nil
}

func (s *Service) ListUsers(ctx context.Context, caller shop.Principal) ([]User, error) {
	if _, err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	return s.users.ListUsers(ctx)
}

// UpdateInput changes profile fields. An empty Password keeps the old one.
type UpdateInput struct {
	FullName string
	Role     shop.Role
	Password string
}

// UpdateUser edits an account. The system account is read-only, and
// demoting the last active admins is guarded by the same quorum rule as
// deletion.
func (s *Service) UpdateUser(ctx context.Context, caller shop.Principal, id shop.UserID, in UpdateInput) (User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	if in.FullName == "" {
		return User{}, &shop.ValidationError{Field: "full_name", Message: "required"}
	}
	if !in.Role.Valid() {
		return User{}, &shop.ValidationError{Field: "role", Message: "must be Admin or Staff"}
	}
	if in.Password != "" && utf8.RuneCountInString(in.Password) < 4 {
		return User{}, &shop.ValidationError{Field: "password", Message: "must be at least 4 characters"}
	}
	if _, err := s.requireAdmin(ctx, caller); err != nil {
		return User{}, err
	}

	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if u.Username == SystemUsername {
		return User{}, &shop.ValidationError{Field: "id", Message: "the system account cannot be edited"}
	}
	if u.Role == shop.RoleAdmin && in.Role != shop.RoleAdmin {
		if err := s.guardLastAdmin(ctx, *u); err != nil {
			return User{}, err
		}
	}

	u.FullName = in.FullName
	u.Role = in.Role
	if in.Password != "" {
		hash, err := HashPassword(in.Password, s.bcryptCost)
		if err != nil {
			return User{}, err
		}
		u.PasswordHash = hash
	}
	if err := s.users.UpdateUser(ctx, *u); err != nil {
		return User{}, err
	}
	s.logger.Info("user updated", zap.Int64("user_id", int64(id)), zap.Int64("actor", int64(caller.UserID)))
	return *u, nil
}

// SetActive enables or disables an account.
func (s *Service) SetActive(ctx context.Context, caller shop.Principal, id shop.UserID, active bool) error {
	if _, err := s.requireAdmin(ctx, caller); err != nil {
		return err
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if !active {
		if u.ID == caller.UserID {
			return &shop.ValidationError{Field: "id", Message: "cannot deactivate yourself"}
		}
		if err := s.guardLastAdmin(ctx, *u); err != nil {
			return err
		}
	}
	u.Active = active
	if err := s.users.UpdateUser(ctx, *u); err != nil {
		return err
	}
	s.logger.Info("user activation changed",
		zap.Int64("user_id", int64(id)),
		zap.Bool("active", active),
		zap.Int64("actor", int64(caller.UserID)),
	)
	return nil
}

// DeleteUser removes an account subject to the account guards.
func (s *Service) DeleteUser(ctx context.Context, caller shop.Principal, id shop.UserID) error {
	if _, err := s.requireAdmin(ctx, caller); err != nil {
		return err
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if u.Username == SystemUsername {
		return &shop.ValidationError{Field: "id", Message: "the system account cannot be deleted"}
	}
	if u.ID == caller.UserID {
		return &shop.ValidationError{Field: "id", Message: "cannot delete yourself"}
	}
	if err := s.guardLastAdmin(ctx, *u); err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.Int64("user_id", int64(id)), zap.Int64("actor", int64(caller.UserID)))
	return nil
}

// guardLastAdmin fails when removing u would leave no active admin.
func (s *Service) guardLastAdmin(ctx context.Context, u User) error {
	if u.Role != shop.RoleAdmin || !u.Active {
		return nil
	}
	n, err := s.users.CountActiveAdmins(ctx)
	if err != nil {
		return err
	}
	if n < shop.MinActiveAdmins {
		return &shop.QuorumError{ActiveAdmins: n, Required: shop.MinActiveAdmins}
	}
	return nil
}

func (s *Service) requireAdmin(ctx context.Context, caller shop.Principal) (shop.Principal, error) {
	if caller.IsAnonymous() {
		return shop.Principal{}, shop.ErrUnauthorized
	}
	p, err := s.Resolve(ctx, caller.UserID)
	if err != nil {
		if shop.IsNotFound(err) {
			return shop.Principal{}, shop.ErrUnauthorized
		}
		return shop.Principal{}, fmt.Errorf("resolve caller: %w", err)
	}
	if !p.IsAdmin() {
		return p, shop.ErrUnauthorized
	}
	return p, nil
}
