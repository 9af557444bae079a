// Package auth is the session-issuing collaborator: it turns
// credentials into accounts and opaque bearer tokens, and resolves
// tokens back to accounts. The diary core only ever sees the resulting
// user identity.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mweber/meddiary/internal/domain"
	"github.com/mweber/meddiary/internal/store"
)

// Service issues and resolves bearer tokens
type Service struct {
	store    *store.Store
	tokenTTL time.Duration
	now      func() time.Time
}

// New creates an auth Service issuing tokens valid for ttl
func New(st *store.Store, ttl time.Duration) *Service {
	return &Service{store: st, tokenTTL: ttl, now: time.Now}
}

// NewWithClock creates an auth Service with an injected clock
func NewWithClock(st *store.Store, ttl time.Duration, now func() time.Time) *Service {
	return &Service{store: st, tokenTTL: ttl, now: now}
}

// Register creates an account with a bcrypt-hashed password
func (s *Service) Register(email, name, password string) (*domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("a valid email is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("a name is required")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return s.store.CreateUser(email, name, hash)
}

// Login verifies credentials and issues a bearer token
func (s *Service) Login(email, password string) (string, *domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, hash, err := s.store.UserByEmail(email)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, domain.ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return "", nil, domain.ErrUnauthorized
	}

	token := uuid.New().String()
	if err := s.store.InsertToken(token, user.ID, s.now().Add(s.tokenTTL)); err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// UserFromToken resolves a bearer token, failing closed: an unknown or
// expired token yields ErrUnauthorized.
func (s *Service) UserFromToken(token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	user, err := s.store.UserByToken(token, s.now())
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUnauthorized
	}
	return user, nil
}

// Logout revokes a bearer token
func (s *Service) Logout(token string) error {
	return s.store.DeleteToken(token)
}
