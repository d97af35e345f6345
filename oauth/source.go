// Package oauth provides a DB-backed token cache for providers whose tokens are
// persisted in the oauth_tokens table. Each API client owns a Source configured
// with its provider-specific grant; tokens are fetched lazily and survive
// restarts through the database row.
package oauth

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/playmark/db"
)

// expiryBuffer is how long before the recorded expiry a token is considered stale.
const expiryBuffer = 60 * time.Second

// FetchFunc performs the provider-specific grant and returns the new token.
type FetchFunc func(ctx context.Context) (access, refresh string, expiry time.Time, scope string, err error)

// Source caches a provider token in memory and in the oauth_tokens table,
// invoking Fetch when neither holds a fresh one.
type Source struct {
	DB       *sql.DB
	Provider string
	Fetch    FetchFunc

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// Token returns a valid access token, refreshing through Fetch if needed.
func (s *Source) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.token != "" && time.Until(s.expiresAt) > expiryBuffer {
		tok := s.token
		s.mu.RUnlock()
		return tok, nil
	}
	s.mu.RUnlock()
	return s.refresh(ctx)
}

func (s *Source) refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && time.Until(s.expiresAt) > expiryBuffer {
		return s.token, nil
	}

	// A previous process may have left a usable token in the table.
	if s.DB != nil {
		access, _, expiry, _, err := db.GetOAuthToken(ctx, s.DB, s.Provider)
		if err != nil {
			slog.Warn("stored token read failed", slog.String("provider", s.Provider), slog.Any("err", err))
		} else if access != "" && time.Until(expiry) > expiryBuffer {
			s.token, s.expiresAt = access, expiry
			return s.token, nil
		}
	}

	access, refreshTok, expiry, scope, err := s.Fetch(ctx)
	if err != nil {
		return "", err
	}
	s.token, s.expiresAt = access, expiry

	if s.DB != nil {
		if err := db.UpsertOAuthToken(ctx, s.DB, s.Provider, access, refreshTok, expiry, scope); err != nil {
			slog.Warn("token persist failed", slog.String("provider", s.Provider), slog.Any("err", err))
		} else {
			slog.Info("refreshed provider token", slog.String("provider", s.Provider))
		}
	}
	return s.token, nil
}
