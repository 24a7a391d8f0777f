package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"lightning-tournament-backend/internal/common/cache"
	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/common/logger"
	"lightning-tournament-backend/internal/common/validation"
)

const DefaultTTL = 24 * time.Hour

// Session is the cache payload behind a bearer token.
type Session struct {
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Service manages bearer-token sessions in the ephemeral cache with a sliding
// TTL. Tokens are 256 bits of crypto randomness, hex-encoded, and validated
// against the expected format before any cache lookup.
type Service struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewService(c cache.Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{cache: c, ttl: ttl}
}

// Create mints a session token for the user.
func (s *Service) Create(ctx context.Context, userID string) (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", apperrors.NewInternalError("generate session token", err)
	}
	token := hex.EncodeToString(buf[:])

	now := time.Now()
	sess := Session{UserID: userID, CreatedAt: now, LastActivity: now}
	if err := s.cache.Set(ctx, cache.SessionKey(token), sess, s.ttl); err != nil {
		return "", apperrors.NewInternalError("store session", err)
	}
	return token, nil
}

// Get resolves a token to its session, extending the TTL on hit.
func (s *Service) Get(ctx context.Context, token string) (*Session, error) {
	if err := validation.ValidateSessionToken(token); err != nil {
		return nil, apperrors.NewUnauthorizedError("Invalid session")
	}

	var sess Session
	err := s.cache.Get(ctx, cache.SessionKey(token), &sess)
	if err == cache.ErrMiss {
		return nil, apperrors.NewUnauthorizedError("Invalid session")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("load session", err)
	}

	sess.LastActivity = time.Now()
	if err := s.cache.Set(ctx, cache.SessionKey(token), sess, s.ttl); err != nil {
		logger.Warn().Err(err).Msg("Failed to extend session TTL")
	}
	return &sess, nil
}

// Destroy removes a single session.
func (s *Service) Destroy(ctx context.Context, token string) error {
	if err := validation.ValidateSessionToken(token); err != nil {
		return nil
	}
	_, err := s.cache.Del(ctx, cache.SessionKey(token))
	return err
}

// DestroyAllForUser scans the session namespace and removes every session
// owned by userID. Used on logout-all and when a whitelist entry is revoked.
func (s *Service) DestroyAllForUser(ctx context.Context, userID string) (int, error) {
	keys, err := s.cache.Keys(ctx, cache.SessionKey("*"))
	if err != nil {
		return 0, apperrors.NewInternalError("scan sessions", err)
	}

	removed := 0
	for _, key := range keys {
		var sess Session
		if err := s.cache.Get(ctx, key, &sess); err != nil {
			continue
		}
		if sess.UserID != userID {
			continue
		}
		if existed, err := s.cache.Del(ctx, key); err == nil && existed {
			removed++
		}
	}
	return removed, nil
}
