package session

import (
	"crypto/rand"
	"encoding/hex"

	apperrors "lightning-tournament-backend/internal/common/errors"
)

// CSRFCookieName is the double-submit cookie paired with the X-CSRF-Token
// header. The cookie is readable by the frontend so it can echo the value
// back on mutating calls.
const CSRFCookieName = "csrf_token"

// CSRFHeaderName is the request header carrying the echoed token.
const CSRFHeaderName = "X-CSRF-Token"

// MintCSRFToken returns 256 bits of randomness, hex-encoded.
func MintCSRFToken() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", apperrors.NewInternalError("generate csrf token", err)
	}
	return hex.EncodeToString(buf[:]), nil
}
