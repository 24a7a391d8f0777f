package service

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/decred/dcrd/bech32"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lightning-tournament-backend/internal/common/cache"
	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/features/lnurlauth/models"
	usermodels "lightning-tournament-backend/internal/features/user/models"
)

type memWhitelist struct {
	entries map[string]*models.WhitelistEntry
}

func (m *memWhitelist) Upsert(ctx context.Context, e *models.WhitelistEntry) error {
	m.entries[e.LinkingKey] = e
	return nil
}

func (m *memWhitelist) Get(ctx context.Context, linkingKey string) (*models.WhitelistEntry, error) {
	return m.entries[linkingKey], nil
}

func (m *memWhitelist) Delete(ctx context.Context, linkingKey string) (bool, error) {
	_, ok := m.entries[linkingKey]
	delete(m.entries, linkingKey)
	return ok, nil
}

func (m *memWhitelist) List(ctx context.Context) ([]*models.WhitelistEntry, error) {
	out := make([]*models.WhitelistEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

type stubUsers struct {
	byKey   map[string]*usermodels.User
	created []*usermodels.User
}

func (s *stubUsers) GetByLinkingKey(ctx context.Context, linkingKey string) (*usermodels.User, error) {
	return s.byKey[linkingKey], nil
}

func (s *stubUsers) Create(ctx context.Context, user *usermodels.User) error {
	s.byKey[user.LinkingKey] = user
	s.created = append(s.created, user)
	return nil
}

type stubSessions struct {
	minted    int
	destroyed map[string]int
}

func (s *stubSessions) Create(ctx context.Context, userID string) (string, error) {
	s.minted++
	return "token-" + userID, nil
}

func (s *stubSessions) DestroyAllForUser(ctx context.Context, userID string) (int, error) {
	return s.destroyed[userID], nil
}

func newAuthFixture(t *testing.T) (*authService, *memWhitelist, *stubUsers, *stubSessions) {
	t.Helper()
	store := cache.NewMemoryCache(1000)
	t.Cleanup(func() { _ = store.Close() })

	wl := &memWhitelist{entries: map[string]*models.WhitelistEntry{}}
	users := &stubUsers{byKey: map[string]*usermodels.User{}}
	sessions := &stubSessions{destroyed: map[string]int{}}

	svc := NewAuthService(wl, users, sessions, store, "https://game.example.com/", "").(*authService)
	return svc, wl, users, sessions
}

// testKeypair возвращает сжатый linking key в hex и функцию подписи k1.
func testKeypair(t *testing.T) (string, func(k1 string) string) {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	key := hex.EncodeToString(priv.PubKey().SerializeCompressed())
	sign := func(k1 string) string {
		k1Bytes, err := hex.DecodeString(k1)
		require.NoError(t, err)
		sig := secpecdsa.Sign(priv, k1Bytes)
		return hex.EncodeToString(sig.Serialize())
	}
	return key, sign
}

func TestChallenge_EncodesCallback(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newAuthFixture(t)

	resp, err := svc.Challenge(ctx)
	require.NoError(t, err)
	assert.Len(t, resp.K1, 64)
	assert.True(t, strings.HasPrefix(resp.LNURL, "LNURL1"), resp.LNURL)

	hrp, data, err := bech32.DecodeNoLimit(strings.ToLower(resp.LNURL))
	require.NoError(t, err)
	assert.Equal(t, "lnurl", hrp)

	raw, err := bech32.ConvertBits(data, 5, 8, false)
	require.NoError(t, err)
	callback := string(raw)
	assert.Equal(t, "https://game.example.com/api/lnurl-auth/callback?tag=login&k1="+resp.K1, callback)
}

func TestCallback_FullLoginFlow(t *testing.T) {
	ctx := context.Background()
	svc, wl, users, sessions := newAuthFixture(t)
	key, sign := testKeypair(t)
	wl.entries[key] = &models.WhitelistEntry{LinkingKey: key, IsAdmin: true}

	ch, err := svc.Challenge(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.Callback(ctx, ch.K1, sign(ch.K1), key))

	status, err := svc.Status(ctx, ch.K1)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeVerified, status.Status)

	auth, err := svc.Complete(ctx, ch.K1)
	require.NoError(t, err)
	assert.NotEmpty(t, auth.UserID)
	assert.Equal(t, "token-"+auth.UserID, auth.Token)
	assert.Equal(t, 1, sessions.minted)

	require.Len(t, users.created, 1)
	assert.True(t, users.created[0].IsAdmin)
	assert.Equal(t, "Player "+key[:8], users.created[0].DisplayName)

	// k1 одноразовый: повторный Complete встречает пустой кеш.
	_, err = svc.Complete(ctx, ch.K1)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, appErr.Code)
}

func TestCallback_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, wl, _, _ := newAuthFixture(t)
	key, sign := testKeypair(t)
	otherKey, _ := testKeypair(t)
	wl.entries[key] = &models.WhitelistEntry{LinkingKey: key}

	ch, err := svc.Challenge(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.Callback(ctx, ch.K1, sign(ch.K1), key))

	// Same wallet retrying gets the same OK.
	require.NoError(t, svc.Callback(ctx, ch.K1, sign(ch.K1), key))

	// A different key cannot take over a verified challenge.
	err = svc.Callback(ctx, ch.K1, sign(ch.K1), otherKey)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, appErr.Code)
}

func TestCallback_RejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	svc, wl, _, _ := newAuthFixture(t)
	key, _ := testKeypair(t)
	_, otherSign := testKeypair(t)
	wl.entries[key] = &models.WhitelistEntry{LinkingKey: key}

	ch, err := svc.Challenge(ctx)
	require.NoError(t, err)

	err = svc.Callback(ctx, ch.K1, otherSign(ch.K1), key)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeInvalidSignature, appErr.Code)
}

func TestCallback_NonWhitelistedKey(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newAuthFixture(t)
	key, sign := testKeypair(t)

	ch, err := svc.Challenge(ctx)
	require.NoError(t, err)

	err = svc.Callback(ctx, ch.K1, sign(ch.K1), key)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeForbidden, appErr.Code)
}

func TestCallback_UnknownChallenge(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newAuthFixture(t)
	key, sign := testKeypair(t)

	unknown := strings.Repeat("cd", 32)
	err := svc.Callback(ctx, unknown, sign(unknown), key)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, appErr.Code)
}

func TestComplete_PendingChallenge(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newAuthFixture(t)

	ch, err := svc.Challenge(ctx)
	require.NoError(t, err)

	_, err = svc.Complete(ctx, ch.K1)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, appErr.Code)
}

func TestComplete_ReusesExistingUser(t *testing.T) {
	ctx := context.Background()
	svc, wl, users, _ := newAuthFixture(t)
	key, sign := testKeypair(t)
	wl.entries[key] = &models.WhitelistEntry{LinkingKey: key}
	users.byKey[key] = &usermodels.User{ID: "existing", LinkingKey: key}

	ch, err := svc.Challenge(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.Callback(ctx, ch.K1, sign(ch.K1), key))

	auth, err := svc.Complete(ctx, ch.K1)
	require.NoError(t, err)
	assert.Equal(t, "existing", auth.UserID)
	assert.Empty(t, users.created)
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	key, _ := testKeypair(t)

	t.Run("disabled without secret", func(t *testing.T) {
		svc, _, _, _ := newAuthFixture(t)
		err := svc.Bootstrap(ctx, &models.BootstrapRequest{Secret: "anything", LinkingKey: key})
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeForbidden, appErr.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		svc, _, _, _ := newAuthFixture(t)
		svc.bootstrapSecret = "s3cret"
		err := svc.Bootstrap(ctx, &models.BootstrapRequest{Secret: "guess", LinkingKey: key})
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeForbidden, appErr.Code)
	})

	t.Run("mints first admin", func(t *testing.T) {
		svc, wl, _, _ := newAuthFixture(t)
		svc.bootstrapSecret = "s3cret"
		require.NoError(t, svc.Bootstrap(ctx, &models.BootstrapRequest{Secret: "s3cret", LinkingKey: key, DisplayName: "Root"}))

		entry := wl.entries[key]
		require.NotNil(t, entry)
		assert.True(t, entry.IsAdmin)
		assert.Equal(t, "bootstrap", entry.ApprovedBy)
	})

	t.Run("rejects garbage key", func(t *testing.T) {
		svc, _, _, _ := newAuthFixture(t)
		svc.bootstrapSecret = "s3cret"
		err := svc.Bootstrap(ctx, &models.BootstrapRequest{Secret: "s3cret", LinkingKey: "deadbeef"})
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeValidation, appErr.Code)
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	svc, wl, users, sessions := newAuthFixture(t)
	key, _ := testKeypair(t)
	wl.entries[key] = &models.WhitelistEntry{LinkingKey: key}
	users.byKey[key] = &usermodels.User{ID: "u-1", LinkingKey: key}
	sessions.destroyed["u-1"] = 3

	destroyed, err := svc.Revoke(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, destroyed)
	assert.NotContains(t, wl.entries, key)

	// Повторный revoke уже нечего удалять.
	_, err = svc.Revoke(ctx, key)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeNotFound, appErr.Code)
}
