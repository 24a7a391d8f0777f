package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/decred/dcrd/bech32"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/google/uuid"

	"lightning-tournament-backend/internal/common/cache"
	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/common/logger"
	"lightning-tournament-backend/internal/common/validation"
	"lightning-tournament-backend/internal/features/lnurlauth/models"
	"lightning-tournament-backend/internal/features/lnurlauth/repository"
	usermodels "lightning-tournament-backend/internal/features/user/models"
)

// challengeTTL is the window a wallet has between scanning the QR and the
// browser calling complete.
const challengeTTL = 5 * time.Minute

// Users is the slice of the user feature the login flow needs.
type Users interface {
	GetByLinkingKey(ctx context.Context, linkingKey string) (*usermodels.User, error)
	Create(ctx context.Context, user *usermodels.User) error
}

// Sessions mints and revokes bearer sessions.
type Sessions interface {
	Create(ctx context.Context, userID string) (string, error)
	DestroyAllForUser(ctx context.Context, userID string) (int, error)
}

type AuthService interface {
	Challenge(ctx context.Context) (*models.ChallengeResponse, error)
	// Callback verifies the wallet's signature over k1. The reply shape is
	// dictated by the LNURL protocol, hence the error is pre-rendered by the
	// handler.
	Callback(ctx context.Context, k1, sig, key string) error
	Status(ctx context.Context, k1 string) (*models.StatusResponse, error)
	Complete(ctx context.Context, k1 string) (*usermodels.AuthResponse, error)

	Bootstrap(ctx context.Context, req *models.BootstrapRequest) error
	Approve(ctx context.Context, adminID string, req *models.WhitelistRequest) error
	// Revoke removes the key and destroys every session of the linked user.
	Revoke(ctx context.Context, linkingKey string) (int, error)
	ListWhitelist(ctx context.Context) ([]*models.WhitelistEntry, error)
}

type authService struct {
	whitelist repository.WhitelistRepository
	users     Users
	sessions  Sessions
	store     cache.Cache

	publicURL       string
	bootstrapSecret string
}

func NewAuthService(whitelist repository.WhitelistRepository, users Users, sessions Sessions, store cache.Cache, publicURL, bootstrapSecret string) AuthService {
	return &authService{
		whitelist:       whitelist,
		users:           users,
		sessions:        sessions,
		store:           store,
		publicURL:       strings.TrimRight(publicURL, "/"),
		bootstrapSecret: bootstrapSecret,
	}
}

func (s *authService) Challenge(ctx context.Context) (*models.ChallengeResponse, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, apperrors.NewInternalError("mint challenge", err)
	}
	k1 := hex.EncodeToString(buf)

	ch := &models.Challenge{
		K1:        k1,
		Status:    models.ChallengePending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Set(ctx, cache.ChallengeKey(k1), ch, challengeTTL); err != nil {
		return nil, apperrors.NewInternalError("store challenge", err)
	}

	callback := fmt.Sprintf("%s/api/lnurl-auth/callback?tag=login&k1=%s", s.publicURL, k1)
	lnurl, err := encodeLNURL(callback)
	if err != nil {
		return nil, apperrors.NewInternalError("encode lnurl", err)
	}
	return &models.ChallengeResponse{LNURL: lnurl, K1: k1}, nil
}

// encodeLNURL bech32-кодирует callback URL с префиксом lnurl. Верхний регистр
// дает более плотный QR.
func encodeLNURL(url string) (string, error) {
	converted, err := bech32.ConvertBits([]byte(url), 8, 5, true)
	if err != nil {
		return "", err
	}
	encoded, err := bech32.Encode("lnurl", converted)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(encoded), nil
}

func (s *authService) Callback(ctx context.Context, k1, sig, key string) error {
	if err := validation.ValidateSessionToken(k1); err != nil {
		return apperrors.NewValidationError("k1", "invalid challenge format")
	}

	var ch models.Challenge
	err := s.store.Get(ctx, cache.ChallengeKey(k1), &ch)
	if errors.Is(err, cache.ErrMiss) {
		return apperrors.NewUnauthorizedError("Challenge expired or unknown")
	}
	if err != nil {
		return apperrors.NewInternalError("load challenge", err)
	}
	if ch.Status == models.ChallengeVerified {
		// Кошельки иногда повторяют callback. Тот же ключ - тот же ответ.
		if ch.LinkingKey == key {
			return nil
		}
		return apperrors.NewUnauthorizedError("Challenge already verified")
	}

	keyBytes, err := hex.DecodeString(key)
	if err != nil {
		return apperrors.NewValidationError("key", "linking key must be hex")
	}
	pubKey, err := secp256k1.ParsePubKey(keyBytes)
	if err != nil {
		return apperrors.NewValidationError("key", "invalid linking key")
	}

	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return apperrors.NewValidationError("sig", "signature must be hex")
	}
	signature, err := secpecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return apperrors.NewValidationError("sig", "invalid DER signature")
	}

	k1Bytes, err := hex.DecodeString(k1)
	if err != nil {
		return apperrors.NewValidationError("k1", "challenge must be hex")
	}
	if !signature.Verify(k1Bytes, pubKey) {
		return apperrors.New(apperrors.ErrCodeInvalidSignature, "Signature does not match challenge")
	}

	entry, err := s.whitelist.Get(ctx, key)
	if err != nil {
		return apperrors.NewInternalError("check whitelist", err)
	}
	if entry == nil {
		logger.Warn().Str("linking_key_prefix", keyPrefix(key)).Msg("LNURL-auth from non-whitelisted key")
		return apperrors.NewForbiddenError("Key is not whitelisted")
	}

	ch.Status = models.ChallengeVerified
	ch.LinkingKey = key
	remaining, err := s.store.TTL(ctx, cache.ChallengeKey(k1))
	if err != nil || remaining <= 0 {
		remaining = time.Minute
	}
	if err := s.store.Set(ctx, cache.ChallengeKey(k1), &ch, remaining); err != nil {
		return apperrors.NewInternalError("update challenge", err)
	}

	logger.Info().Str("linking_key_prefix", keyPrefix(key)).Msg("LNURL-auth challenge verified")
	return nil
}

func (s *authService) Status(ctx context.Context, k1 string) (*models.StatusResponse, error) {
	if err := validation.ValidateSessionToken(k1); err != nil {
		return nil, apperrors.NewValidationError("k1", "invalid challenge format")
	}
	var ch models.Challenge
	err := s.store.Get(ctx, cache.ChallengeKey(k1), &ch)
	if errors.Is(err, cache.ErrMiss) {
		return nil, apperrors.NewUnauthorizedError("Challenge expired or unknown")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("load challenge", err)
	}
	return &models.StatusResponse{Status: ch.Status}, nil
}

// Complete обменивает подтвержденный k1 на сессию. Del делает k1 строго
// одноразовым даже при одновременных запросах.
func (s *authService) Complete(ctx context.Context, k1 string) (*usermodels.AuthResponse, error) {
	if err := validation.ValidateSessionToken(k1); err != nil {
		return nil, apperrors.NewValidationError("k1", "invalid challenge format")
	}

	var ch models.Challenge
	err := s.store.Get(ctx, cache.ChallengeKey(k1), &ch)
	if errors.Is(err, cache.ErrMiss) {
		return nil, apperrors.NewUnauthorizedError("Challenge expired or unknown")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("load challenge", err)
	}
	if ch.Status != models.ChallengeVerified {
		return nil, apperrors.NewUnauthorizedError("Challenge not verified yet")
	}

	existed, err := s.store.Del(ctx, cache.ChallengeKey(k1))
	if err != nil {
		return nil, apperrors.NewInternalError("consume challenge", err)
	}
	if !existed {
		return nil, apperrors.NewUnauthorizedError("Challenge already used")
	}

	user, err := s.users.GetByLinkingKey(ctx, ch.LinkingKey)
	if err != nil {
		return nil, apperrors.NewInternalError("load user", err)
	}
	if user == nil {
		user, err = s.createFromWhitelist(ctx, ch.LinkingKey)
		if err != nil {
			return nil, err
		}
	}

	token, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("user_id", user.ID).Msg("LNURL-auth login")
	return &usermodels.AuthResponse{UserID: user.ID, Token: token}, nil
}

func (s *authService) createFromWhitelist(ctx context.Context, linkingKey string) (*usermodels.User, error) {
	entry, err := s.whitelist.Get(ctx, linkingKey)
	if err != nil {
		return nil, apperrors.NewInternalError("check whitelist", err)
	}
	if entry == nil {
		return nil, apperrors.NewForbiddenError("Key is not whitelisted")
	}

	displayName := entry.DisplayName
	if displayName == "" {
		displayName = "Player " + keyPrefix(linkingKey)
	}

	now := time.Now().UTC()
	user := &usermodels.User{
		ID:          uuid.NewString(),
		LinkingKey:  linkingKey,
		DisplayName: displayName,
		IsAdmin:     entry.IsAdmin,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	logger.Info().Str("user_id", user.ID).Msg("User created from LNURL-auth")
	return user, nil
}

// Bootstrap is the break-glass path to the first admin key. Disabled unless
// the deployment sets the secret.
func (s *authService) Bootstrap(ctx context.Context, req *models.BootstrapRequest) error {
	if s.bootstrapSecret == "" {
		return apperrors.NewForbiddenError("Bootstrap is disabled")
	}
	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.bootstrapSecret)) != 1 {
		logger.Warn().Msg("Bootstrap attempt with wrong secret")
		return apperrors.NewForbiddenError("Invalid bootstrap secret")
	}
	if err := validateLinkingKey(req.LinkingKey); err != nil {
		return err
	}
	return s.whitelist.Upsert(ctx, &models.WhitelistEntry{
		LinkingKey:  req.LinkingKey,
		DisplayName: req.DisplayName,
		IsAdmin:     true,
		ApprovedBy:  "bootstrap",
	})
}

func (s *authService) Approve(ctx context.Context, adminID string, req *models.WhitelistRequest) error {
	if err := validateLinkingKey(req.LinkingKey); err != nil {
		return err
	}
	err := s.whitelist.Upsert(ctx, &models.WhitelistEntry{
		LinkingKey:  req.LinkingKey,
		DisplayName: req.DisplayName,
		IsAdmin:     req.IsAdmin,
		ApprovedBy:  adminID,
	})
	if err != nil {
		return apperrors.NewInternalError("approve key", err)
	}
	logger.Info().
		Str("linking_key_prefix", keyPrefix(req.LinkingKey)).
		Str("approved_by", adminID).
		Bool("is_admin", req.IsAdmin).
		Msg("Linking key whitelisted")
	return nil
}

func (s *authService) Revoke(ctx context.Context, linkingKey string) (int, error) {
	if err := validateLinkingKey(linkingKey); err != nil {
		return 0, err
	}
	removed, err := s.whitelist.Delete(ctx, linkingKey)
	if err != nil {
		return 0, apperrors.NewInternalError("revoke key", err)
	}
	if !removed {
		return 0, apperrors.NewNotFoundError("whitelist entry")
	}

	destroyed := 0
	user, err := s.users.GetByLinkingKey(ctx, linkingKey)
	if err != nil {
		return 0, apperrors.NewInternalError("load user", err)
	}
	if user != nil {
		destroyed, err = s.sessions.DestroyAllForUser(ctx, user.ID)
		if err != nil {
			return 0, apperrors.NewInternalError("destroy sessions", err)
		}
	}
	logger.Info().
		Str("linking_key_prefix", keyPrefix(linkingKey)).
		Int("sessions_destroyed", destroyed).
		Msg("Linking key revoked")
	return destroyed, nil
}

func (s *authService) ListWhitelist(ctx context.Context) ([]*models.WhitelistEntry, error) {
	entries, err := s.whitelist.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("list whitelist", err)
	}
	if entries == nil {
		entries = []*models.WhitelistEntry{}
	}
	return entries, nil
}

// validateLinkingKey требует сжатый secp256k1 ключ в hex.
func validateLinkingKey(key string) error {
	raw, err := hex.DecodeString(key)
	if err != nil {
		return apperrors.NewValidationError("linkingKey", "must be hex")
	}
	if _, err := secp256k1.ParsePubKey(raw); err != nil {
		return apperrors.NewValidationError("linkingKey", "invalid public key")
	}
	return nil
}

func keyPrefix(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8]
}
