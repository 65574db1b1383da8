package models

import (
	"time"

	id "pixkey/pkg/domain"
)

// Claim is the Directory's claim sub-record attached to a key while an
// ownership or portability process is open. It is owned by exactly one Key.
type Claim struct {
	ID       id.ClaimID
	KeyID    id.KeyID
	Type     ClaimType
	Reason   ClaimReason
	OpenedAt time.Time
	ClosedAt *time.Time
}

// NewClaim opens a claim for keyID.
func NewClaim(claimID id.ClaimID, keyID id.KeyID, claimType ClaimType, reason ClaimReason, now time.Time) *Claim {
	return &Claim{
		ID:       claimID,
		KeyID:    keyID,
		Type:     claimType,
		Reason:   reason,
		OpenedAt: now,
	}
}

// IsOpen reports whether the claim has not been closed.
func (c *Claim) IsOpen() bool {
	return c != nil && c.ClosedAt == nil
}

// ApplyClose stamps the claim as closed.
func (c *Claim) ApplyClose(now time.Time) {
	closed := now
	c.ClosedAt = &closed
}

func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	cp := *c
	if c.ClosedAt != nil {
		closed := *c.ClosedAt
		cp.ClosedAt = &closed
	}
	return &cp
}
