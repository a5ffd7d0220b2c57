package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	b64 = base64.RawURLEncoding

	// ErrInvalidToken covers malformed tokens and signature mismatches.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates the issued-at claim is older than the
	// configured max age.
	ErrTokenExpired = errors.New("token expired")
)

const issuedAtClaim = "iat"

// Sign encodes the claims and appends a keyed signature, producing a
// compact "payload.signature" credential that is verifiable statelessly.
func Sign(claims map[string]any, secret []byte) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	encoded := b64.EncodeToString(payload)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(encoded))
	return encoded + "." + b64.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature in constant time and decodes the claims.
// When maxAge > 0 the token must carry an issued-at claim no older than
// maxAge; maxAge == 0 disables the age check.
func Verify(token string, secret []byte, maxAge time.Duration) (map[string]any, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return nil, ErrInvalidToken
	}
	sig, err := b64.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalidToken
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(parts[0]))
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, ErrInvalidToken
	}

	payload, err := b64.DecodeString(parts[0])
	if err != nil {
		return nil, ErrInvalidToken
	}
	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrInvalidToken
	}

	if maxAge > 0 {
		iat, ok := claims[issuedAtClaim].(float64)
		if !ok {
			return nil, ErrInvalidToken
		}
		if time.Since(time.Unix(int64(iat), 0)) > maxAge {
			return nil, ErrTokenExpired
		}
	}

	return claims, nil
}
