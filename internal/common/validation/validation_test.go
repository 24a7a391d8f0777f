package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"valid simple", "satoshi", false},
		{"valid with digits and underscore", "player_21m", false},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", 31), true},
		{"uppercase rejected", "Satoshi", true},
		{"spaces rejected", "sat oshi", true},
		{"unicode rejected", "сатоши", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "Satoshi", "Satoshi", false},
		{"trims whitespace", "  Alice  ", "Alice", false},
		{"strips html", "<script>Bob</script>", "scriptBobscript", false},
		{"allows dots and dashes", "node-runner v2.1", "node-runner v2.1", false},
		{"too short after strip", "<>!", "", true},
		{"too long", strings.Repeat("x", 25), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeDisplayName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePaymentHash(t *testing.T) {
	canonical := strings.Repeat("ab", 32)

	got, err := NormalizePaymentHash(canonical)
	require.NoError(t, err)
	assert.Equal(t, canonical, got)

	got, err = NormalizePaymentHash("  " + strings.ToUpper(canonical) + "  ")
	require.NoError(t, err)
	assert.Equal(t, canonical, got)

	withDashes := canonical[:8] + "-" + canonical[8:]
	got, err = NormalizePaymentHash(withDashes)
	require.NoError(t, err)
	assert.Equal(t, canonical, got)

	for _, bad := range []string{"", "xyz", canonical[:63], canonical + "ff", canonical[:62] + "zz"} {
		_, err := NormalizePaymentHash(bad)
		assert.Error(t, err, "hash %q should be rejected", bad)
	}
}

func TestValidateDepositAmount(t *testing.T) {
	assert.NoError(t, ValidateDepositAmount(MinDepositSats))
	assert.NoError(t, ValidateDepositAmount(MaxDepositSats))
	assert.Error(t, ValidateDepositAmount(MinDepositSats-1))
	assert.Error(t, ValidateDepositAmount(MaxDepositSats+1))
	assert.Error(t, ValidateDepositAmount(0))
	assert.Error(t, ValidateDepositAmount(-100))
}

func TestValidateLightningAddress(t *testing.T) {
	assert.NoError(t, ValidateLightningAddress("alice@getalby.com"))
	assert.NoError(t, ValidateLightningAddress("BOB@Wallet.Example.Org"))
	assert.NoError(t, ValidateLightningAddress("user.name+tag@ln.tips"))

	for _, bad := range []string{"", "alice", "@getalby.com", "alice@", "alice@localhost", "a b@x.com"} {
		assert.Error(t, ValidateLightningAddress(bad), "address %q should be rejected", bad)
	}
}

func TestValidateScoreSubmission(t *testing.T) {
	frames := int64(9000)
	negFrames := int64(-1)

	tests := []struct {
		name       string
		score      int64
		level      int64
		durationMs int64
		frameCount *int64
		inputLen   int
		wantErr    bool
	}{
		{"valid", 1500, 3, 150_000, &frames, 200, false},
		{"valid without frames", 1500, 3, 150_000, nil, 0, false},
		{"negative score", -1, 3, 150_000, nil, 0, true},
		{"score too large", MaxScore + 1, 3, 150_000, nil, 0, true},
		{"level zero", 1500, 0, 150_000, nil, 0, true},
		{"level too large", 1500, MaxLevel + 1, 150_000, nil, 0, true},
		{"duration too short", 1500, 3, MinDurationMs - 1, nil, 0, true},
		{"duration too long", 1500, 3, MaxDurationMs + 1, nil, 0, true},
		{"negative frames", 1500, 3, 150_000, &negFrames, 0, true},
		{"input log too large", 1500, 3, 150_000, nil, MaxInputLog + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScoreSubmission(tt.score, tt.level, tt.durationMs, tt.frameCount, tt.inputLen)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
