// Package auth registers users, verifies credentials and issues the
// session tokens that guard the rest of the API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/ports"
)

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrPasswordTooLong    = errors.New("password is too long")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingToken       = errors.New("missing bearer token")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

const bearerPrefix = "Bearer "

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      core.User
}

type Service struct {
	users     ports.UserRepository
	tokens    *TokenIssuer
	cost      int
	dummyHash string
	logger    *log.Logger
	newID     func() string
}

// NewService builds the auth service. cost is the bcrypt work factor.
func NewService(users ports.UserRepository, tokens *TokenIssuer, cost int, logger *log.Logger) (*Service, error) {
	if logger == nil {
		logger = log.Discard()
	}
	// Compared against when the username is unknown.
	dummy, err := HashPassword("not-a-real-password", cost)
	if err != nil {
		return nil, err
	}
	return &Service{
		users:     users,
		tokens:    tokens,
		cost:      cost,
		dummyHash: dummy,
		logger:    logger.WithComponent(log.ComponentAuth),
		newID:     uuid.NewString,
	}, nil
}

// Register creates a user. Usernames are trimmed; passwords are not.
func (s *Service) Register(ctx context.Context, username, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return core.User{}, ErrMissingCredentials
	}

	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return core.User{}, core.ErrUsernameTaken
	} else if !errors.Is(err, core.ErrUserNotFound) {
		return core.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return core.User{}, err
	}

	user, err := s.users.CreateUser(ctx, core.User{
		ID:           s.newID(),
		Username:     username,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, core.ErrUsernameTaken) {
			return core.User{}, err
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered",
		log.NewFields().WithUser(user.ID, user.Username).WithOperation(log.OpRegister).ToSlice()...)
	return user, nil
}

// Login verifies credentials and issues a session token. Unknown users and
// wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, ErrMissingCredentials
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, core.ErrUserNotFound):
		_ = CheckPassword(s.dummyHash, password)
		return Session{}, ErrInvalidCredentials
	case err != nil:
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return Session{}, err
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, err
	}

	s.logger.InfoContext(ctx, "User logged in",
		log.NewFields().WithUser(user.ID, user.Username).WithOperation(log.OpLogin).ToSlice()...)
	return Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate validates an Authorization header value of the form
// "Bearer <token>".
func (s *Service) Authenticate(header string) (*Claims, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, ErrMissingToken
	}
	return s.tokens.Parse(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
}
