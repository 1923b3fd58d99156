package upstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// refreshMargin is how much remaining token lifetime triggers a proactive
// refresh. A request never goes out with a token closer than this to expiry.
const refreshMargin = 5 * time.Minute

// TokenSource yields the bearer token for core API requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type staticTokenSource struct {
	token string
}

// StaticTokenSource returns a source that always yields the given token.
// Used for service tokens and tests.
func StaticTokenSource(token string) TokenSource {
	return &staticTokenSource{token: token}
}

func (s *staticTokenSource) Token(ctx context.Context) (string, error) {
	return s.token, nil
}

// RefreshingTokenSource caches a short-lived JWT and refreshes it before it
// expires. The exp claim is read without signature verification; the core
// API is the one doing the verifying.
type RefreshingTokenSource struct {
	refresh func(ctx context.Context) (string, error)
	now     func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewRefreshingTokenSource wraps a refresh callback (typically an auth
// endpoint exchange) in expiry tracking.
func NewRefreshingTokenSource(refresh func(ctx context.Context) (string, error)) *RefreshingTokenSource {
	return &RefreshingTokenSource{
		refresh: refresh,
		now:     time.Now,
	}
}

// Token returns the cached token, refreshing first if missing or within
// refreshMargin of expiry. Tokens without a parseable exp claim are treated
// as non-expiring.
func (s *RefreshingTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		if s.expiresAt.IsZero() || s.now().Add(refreshMargin).Before(s.expiresAt) {
			return s.token, nil
		}
	}

	token, err := s.refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("refreshing token: %w", err)
	}
	s.token = token
	s.expiresAt = tokenExpiry(token)
	return s.token, nil
}

// tokenExpiry returns the exp claim of a JWT, or zero when the token is not
// a JWT or carries no exp.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
