package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"phantom-auth/internal/domain"
	"phantom-auth/internal/repository"
	"phantom-auth/internal/token"
)

// DefaultScope is granted to every session minted by Issue.
var DefaultScope = []string{"read"}

// Introspection is the verdict for a presented raw token. When Active is
// false every other field is zero: missing, revoked, and expired tokens are
// deliberately indistinguishable.
type Introspection struct {
	Active bool
	Sub    int64
	Scope  []string
	Exp    int64
}

// Session pairs a freshly minted raw token with its stored record.
type Session struct {
	RawToken string
	Token    *domain.AccessToken
}

// TokenService owns the opaque-token lifecycle: issuance with a per-user
// active-session cap, revocation, and introspection.
type TokenService interface {
	Issue(ctx context.Context, email, password string) (*Session, error)
	Revoke(ctx context.Context, rawToken string) error
	Introspect(ctx context.Context, rawToken string) (Introspection, error)
}

type tokenService struct {
	users     UserService
	tokens    repository.TokenRepository
	maxActive int
	ttl       time.Duration
	now       func() time.Time
}

// Option tweaks token service construction.
type Option func(*tokenService)

// WithClock overrides the service clock. Used by tests to pin time.
func WithClock(now func() time.Time) Option {
	return func(s *tokenService) { s.now = now }
}

func NewTokenService(users UserService, tokens repository.TokenRepository, maxActive int, ttl time.Duration, opts ...Option) TokenService {
	s := &tokenService{
		users:     users,
		tokens:    tokens,
		maxActive: maxActive,
		ttl:       ttl,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue authenticates the credentials and mints a new session. Cap
// enforcement and the insert run in one store transaction, so a burst of
// concurrent logins cannot leave the user over the cap.
func (s *tokenService) Issue(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	raw, err := token.Generate(token.DefaultBytes)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	now := s.now().UTC()
	record := &domain.AccessToken{
		ID:        uuid.NewString(),
		TokenHash: token.Hash(raw),
		UserID:    user.ID,
		Scope:     append([]string(nil), DefaultScope...),
		ExpiresAt: now.Add(s.ttl),
		Revoked:   false,
		CreatedAt: now,
	}

	if _, err := s.tokens.InsertWithCap(ctx, record, s.maxActive, now); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}

	return &Session{RawToken: raw, Token: record}, nil
}

// Revoke flips the matching record to revoked. Unknown and already-revoked
// tokens are silent no-ops, which makes logout idempotent.
func (s *tokenService) Revoke(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	return s.tokens.RevokeByHash(ctx, token.Hash(rawToken))
}

// Introspect resolves a raw token to an activity verdict. Malformed input
// hashes like any other string and simply fails the lookup.
func (s *tokenService) Introspect(ctx context.Context, rawToken string) (Introspection, error) {
	if rawToken == "" {
		return Introspection{}, nil
	}

	record, err := s.tokens.GetByHash(ctx, token.Hash(rawToken))
	if err != nil {
		return Introspection{}, fmt.Errorf("lookup token: %w", err)
	}
	if !record.Active(s.now()) {
		return Introspection{}, nil
	}

	return Introspection{
		Active: true,
		Sub:    record.UserID,
		Scope:  append([]string(nil), record.Scope...),
		Exp:    record.ExpiresAt.Unix(),
	}, nil
}
