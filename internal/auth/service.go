// Package auth handles accounts and session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"meurenda/internal/core"
	"meurenda/internal/ports"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
)

// checkPassword is the comparison Login runs. Tests observe it.
var checkPassword = CheckPassword

// Service registers users and opens and closes sessions.
type Service struct {
	users  ports.UserStore
	tokens *TokenService
}

func NewService(users ports.UserStore, tokens *TokenService) *Service {
	return &Service{users: users, tokens: tokens}
}

// Register creates an account and opens a session for it.
func (s *Service) Register(ctx context.Context, email, password string) (core.User, Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return core.User{}, Token{}, ErrInvalidEmail
	}

	hash, err := HashPassword(password)
	if err != nil {
		return core.User{}, Token{}, err
	}

	u, err := s.users.CreateUser(ctx, core.User{Email: email, PasswordHash: hash})
	if errors.Is(err, ports.ErrConflict) {
		return core.User{}, Token{}, ErrEmailTaken
	}
	if err != nil {
		return core.User{}, Token{}, fmt.Errorf("create user: %w", err)
	}

	tok, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return core.User{}, Token{}, err
	}
	slog.InfoContext(ctx, "User registered", "user_id", u.ID)
	return u, tok, nil
}

// Login checks credentials. Unknown emails and wrong passwords give the
// same error.
func (s *Service) Login(ctx context.Context, email, password string) (core.User, Token, error) {
	u, err := s.users.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ports.ErrNotFound) {
		checkPassword(dummyHash(), password)
		return core.User{}, Token{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, Token{}, fmt.Errorf("find user: %w", err)
	}
	if !checkPassword(u.PasswordHash, password) {
		slog.WarnContext(ctx, "Failed login attempt", "user_id", u.ID)
		return core.User{}, Token{}, ErrInvalidCredentials
	}

	tok, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return core.User{}, Token{}, err
	}
	return u, tok, nil
}

// Authenticate resolves a bearer token to an identity.
func (s *Service) Authenticate(token string) (Identity, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		UserID:    claims.Subject,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Logout revokes the token. Already invalid tokens are an error.
func (s *Service) Logout(token string) error {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return err
	}
	s.tokens.Revoke(claims)
	return nil
}

// CurrentUser loads the account behind an identity.
func (s *Service) CurrentUser(ctx context.Context, id Identity) (core.User, error) {
	u, err := s.users.UserByID(ctx, id.UserID)
	if err != nil {
		return core.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}
