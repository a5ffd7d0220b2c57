package identity

import "time"

// Identity represents a verified phone-bound account with credentials,
// referral fields and the credit ledger totals. The canonical phone is the
// primary key; pending credit is always GrantedTotal - ClaimedTotal.
type Identity struct {
	Phone           string
	Username        string
	PassSalt        string
	PassHash        string
	Verified        bool
	ReferralCode    string
	ReferredBy      string
	ReferralCount   int64
	GrantedTotal    int64
	ClaimedTotal    int64
	LastClaimDevice string
	CreatedAt       time.Time
}

// Pending returns the ledger credit granted but not yet moved to a device.
// Not clamped: an operator over-deduction may push it negative.
func (i Identity) Pending() int64 {
	return i.GrantedTotal - i.ClaimedTotal
}

// LegacyClaimed derives the historical boolean "bonus granted" flag from
// the claim watermark.
func (i Identity) LegacyClaimed() bool {
	return i.ClaimedTotal > 0
}
