package auth

import (
	"strings"
	"testing"
	"time"
)

var secret = []byte("test-secret")

func TestSignAndVerify(t *testing.T) {
	token, err := Sign(map[string]any{"phone": "+60123456789", "iat": time.Now().Unix()}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := Verify(token, secret, time.Hour)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims["phone"] != "+60123456789" {
		t.Fatalf("unexpected claims: %v", claims)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	token, err := Sign(map[string]any{"phone": "+60123456789", "iat": time.Now().Unix()}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	forged, err := Sign(map[string]any{"phone": "+60999999999", "iat": time.Now().Unix()}, secret)
	if err != nil {
		t.Fatalf("sign forged: %v", err)
	}

	mixed := strings.Split(forged, ".")[0] + "." + strings.Split(token, ".")[1]
	if _, err := Verify(mixed, secret, time.Hour); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	if _, err := Verify(token, []byte("other-secret"), time.Hour); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken with wrong secret, got %v", err)
	}

	if _, err := Verify("garbage", secret, time.Hour); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestVerifyMaxAge(t *testing.T) {
	stale, err := Sign(map[string]any{"phone": "+60123456789", "iat": time.Now().Add(-2 * time.Hour).Unix()}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := Verify(stale, secret, time.Hour); err != ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	// maxAge 0 disables the check.
	if _, err := Verify(stale, secret, 0); err != nil {
		t.Fatalf("expected stale token to pass with maxAge 0, got %v", err)
	}

	// A token without iat is rejected whenever an age limit applies.
	noIat, err := Sign(map[string]any{"phone": "+60123456789"}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Verify(noIat, secret, time.Hour); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken without iat, got %v", err)
	}
}
