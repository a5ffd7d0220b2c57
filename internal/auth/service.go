// Package auth holds the account lifecycle (register, login, password reset)
// and the stateless session tokens tying the HTTP surface to an identity.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/scrypt"

	"github.com/panadol94/tipsmega-api/internal/identity"
	"github.com/panadol94/tipsmega-api/internal/ledger"
	"github.com/panadol94/tipsmega-api/internal/otp"
	"github.com/panadol94/tipsmega-api/internal/phone"
)

var (
	// ErrUsernameTaken indicates another account already owns the username.
	ErrUsernameTaken = errors.New("username taken")

	// ErrAlreadyRegistered indicates the phone already has a verified account.
	ErrAlreadyRegistered = errors.New("phone already registered")

	// ErrNotVerified indicates the account record exists but never completed
	// OTP verification.
	ErrNotVerified = errors.New("account not verified")

	// ErrWrongPassword indicates a credential mismatch at login.
	ErrWrongPassword = errors.New("wrong password")

	// ErrUsernameTooShort rejects usernames under three characters.
	ErrUsernameTooShort = errors.New("username too short")

	// ErrWeakPassword rejects passwords under six characters.
	ErrWeakPassword = errors.New("password too short")
)

const (
	minUsernameLen = 3
	minPasswordLen = 6

	saltBytes = 16
	hashBytes = 32

	referralAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referralCodeLen  = 6
)

// Service owns account creation and credential checks. Registration is the
// only path that sets the welcome grant and consumes referral codes, so the
// ledger is a direct dependency.
type Service struct {
	ids       identity.Repository
	otp       *otp.Service
	ledger    ledger.Ledger
	secret    []byte
	maxAge    time.Duration
	logger    *slog.Logger
	now       func() time.Time
	scryptKey func(password, salt []byte) ([]byte, error)
}

// NewService wires the account service.
func NewService(ids identity.Repository, codes *otp.Service, led ledger.Ledger,
	secret string, tokenMaxAge time.Duration, logger *slog.Logger) *Service {
	return &Service{
		ids:    ids,
		otp:    codes,
		ledger: led,
		secret: []byte(secret),
		maxAge: tokenMaxAge,
		logger: logger,
		now:    time.Now,
		scryptKey: func(password, salt []byte) ([]byte, error) {
			return scrypt.Key(password, salt, 16384, 8, 1, hashBytes)
		},
	}
}

// RegisterInput carries the raw registration form.
type RegisterInput struct {
	Phone    string
	Username string
	Password string
	Code     string // one-time code
	RefCode  string // optional referral code
}

// RegisterResult reports the created account.
type RegisterResult struct {
	Phone        string
	Username     string
	ReferralCode string
	ReferredBy   string
}

// Register validates the form, consumes the one-time code and writes the
// verified account with the welcome grant. A referral code that is unknown
// or self-owned is dropped silently; registration still succeeds.
func (s *Service) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	canonical, err := phone.Normalize(in.Phone)
	if err != nil {
		return RegisterResult{}, err
	}
	username := strings.TrimSpace(in.Username)
	if len(username) < minUsernameLen {
		return RegisterResult{}, ErrUsernameTooShort
	}
	if len(in.Password) < minPasswordLen {
		return RegisterResult{}, ErrWeakPassword
	}

	if _, err := s.ids.GetByUsername(ctx, username); err == nil {
		return RegisterResult{}, ErrUsernameTaken
	} else if !errors.Is(err, identity.ErrNotFound) {
		return RegisterResult{}, err
	}

	if err := s.otp.Verify(ctx, canonical, strings.TrimSpace(in.Code)); err != nil {
		return RegisterResult{}, err
	}

	existing, err := s.ids.GetByPhone(ctx, canonical)
	switch {
	case err == nil && existing.Verified:
		return RegisterResult{}, ErrAlreadyRegistered
	case err != nil && !errors.Is(err, identity.ErrNotFound):
		return RegisterResult{}, err
	}
	hasPartial := err == nil

	referredBy := s.redeemReferral(ctx, canonical, in.RefCode)

	salt, hash, err := s.hashPassword(in.Password)
	if err != nil {
		return RegisterResult{}, err
	}
	code, err := s.newReferralCode()
	if err != nil {
		return RegisterResult{}, err
	}

	record := identity.Identity{
		Phone:        canonical,
		Username:     username,
		PassSalt:     salt,
		PassHash:     hash,
		Verified:     true,
		ReferralCode: code,
		ReferredBy:   referredBy,
		GrantedTotal: ledger.WelcomeBonus,
		CreatedAt:    s.now().UTC(),
	}
	if hasPartial {
		// Upgrade in place. The claim watermark survives so a historical
		// claim is not replayable; the grant is set absolutely, not added.
		record.ClaimedTotal = existing.ClaimedTotal
		record.ReferralCount = existing.ReferralCount
		record.LastClaimDevice = existing.LastClaimDevice
		record.CreatedAt = existing.CreatedAt
		if err := s.ids.Update(ctx, record); err != nil {
			return RegisterResult{}, err
		}
	} else if err := s.ids.Create(ctx, record); err != nil {
		return RegisterResult{}, err
	}

	s.logger.Info("account registered", "phone", canonical, "username", username, "referred_by", referredBy)
	return RegisterResult{Phone: canonical, Username: username, ReferralCode: code, ReferredBy: referredBy}, nil
}

// redeemReferral credits the code owner and returns their phone, or "" when
// the code is absent, malformed, unknown or self-owned.
func (s *Service) redeemReferral(ctx context.Context, refereePhone, rawCode string) string {
	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if len(code) != referralCodeLen {
		return ""
	}
	referrer, err := s.ledger.Redeem(ctx, refereePhone, code)
	if err != nil {
		s.logger.Info("referral code not redeemed", "code", code, "error", err)
		return ""
	}
	return referrer
}

// LoginResult carries the session token and the profile snapshot returned
// alongside it.
type LoginResult struct {
	Token         string
	Phone         string
	Username      string
	ReferralCode  string
	GrantedTotal  int64
	LegacyClaimed bool
}

// Login checks the credentials and mints a session token. Accounts created
// before referral codes existed get one backfilled on first login.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	id, err := s.ids.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return LoginResult{}, err
	}
	if !id.Verified {
		return LoginResult{}, ErrNotVerified
	}
	if err := s.checkPassword(id, password); err != nil {
		return LoginResult{}, err
	}

	if id.ReferralCode == "" {
		code, err := s.newReferralCode()
		if err != nil {
			return LoginResult{}, err
		}
		id.ReferralCode = code
		if err := s.ids.Update(ctx, id); err != nil {
			return LoginResult{}, err
		}
	}

	token, err := Sign(map[string]any{"phone": id.Phone, "iat": s.now().Unix()}, s.secret)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		Token:         token,
		Phone:         id.Phone,
		Username:      id.Username,
		ReferralCode:  id.ReferralCode,
		GrantedTotal:  id.GrantedTotal,
		LegacyClaimed: id.LegacyClaimed(),
	}, nil
}

// ResetPassword verifies a fresh one-time code for the phone and replaces
// the stored credentials. Only verified accounts can reset.
func (s *Service) ResetPassword(ctx context.Context, rawPhone, newPassword, code string) (string, error) {
	canonical, err := phone.Normalize(rawPhone)
	if err != nil {
		return "", err
	}
	if len(newPassword) < minPasswordLen {
		return "", ErrWeakPassword
	}

	if err := s.otp.Verify(ctx, canonical, strings.TrimSpace(code)); err != nil {
		return "", err
	}

	id, err := s.ids.GetByPhone(ctx, canonical)
	if err != nil {
		return "", err
	}
	if !id.Verified {
		return "", ErrNotVerified
	}

	salt, hash, err := s.hashPassword(newPassword)
	if err != nil {
		return "", err
	}
	id.PassSalt = salt
	id.PassHash = hash
	if err := s.ids.Update(ctx, id); err != nil {
		return "", err
	}

	s.logger.Info("password reset", "phone", canonical, "username", id.Username)
	return id.Username, nil
}

// Authenticate resolves a session token to the canonical phone it was
// minted for.
func (s *Service) Authenticate(token string) (string, error) {
	claims, err := Verify(token, s.secret, s.maxAge)
	if err != nil {
		return "", err
	}
	p, ok := claims["phone"].(string)
	if !ok || p == "" {
		return "", ErrInvalidToken
	}
	return p, nil
}

func (s *Service) hashPassword(password string) (salt, hash string, err error) {
	rawSalt := make([]byte, saltBytes)
	if _, err := rand.Read(rawSalt); err != nil {
		return "", "", err
	}
	key, err := s.scryptKey([]byte(password), rawSalt)
	if err != nil {
		return "", "", fmt.Errorf("hash password: %w", err)
	}
	return hex.EncodeToString(rawSalt), hex.EncodeToString(key), nil
}

func (s *Service) checkPassword(id identity.Identity, password string) error {
	rawSalt, err := hex.DecodeString(id.PassSalt)
	if err != nil {
		return ErrWrongPassword
	}
	key, err := s.scryptKey([]byte(password), rawSalt)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(hex.EncodeToString(key)), []byte(id.PassHash)) != 1 {
		return ErrWrongPassword
	}
	return nil
}

func (s *Service) newReferralCode() (string, error) {
	buf := make([]byte, referralCodeLen)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(referralAlphabet))))
		if err != nil {
			return "", err
		}
		buf[i] = referralAlphabet[n.Int64()]
	}
	return string(buf), nil
}
