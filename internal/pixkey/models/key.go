package models

import (
	"time"

	id "pixkey/pkg/domain"
	dErrors "pixkey/pkg/domain-errors"
)

// Key is the aggregate root for one registered Pix alias.
//
// Invariants:
//   - ID, KeyType and KeyValue never change after creation
//   - OwnerUserID is set once the key leaves PENDING
//   - Claim is non-nil iff State.IsClaimInProgress()
//   - at most one non-terminal key exists per (KeyType, KeyValue); the store
//     enforces this mirror of the Directory's uniqueness rule
//
// Only the service mutates a Key, and only by applying an engine decision.
type Key struct {
	ID          id.KeyID
	OwnerUserID id.UserID
	KeyValue    string
	KeyType     KeyType
	State       KeyState
	Claim       *Claim
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewKey builds a freshly registered key in PENDING. The value must already be
// normalized with NormalizeKeyValue.
func NewKey(keyID id.KeyID, owner id.UserID, keyType KeyType, value string, now time.Time) (*Key, error) {
	if keyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "key ID cannot be nil")
	}
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner cannot be nil")
	}
	if !keyType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid key type")
	}
	if value == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "key value cannot be empty")
	}
	return &Key{
		ID:          keyID,
		OwnerUserID: owner,
		KeyValue:    value,
		KeyType:     keyType,
		State:       StatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// HasClaim reports whether an open claim is attached.
func (k *Key) HasClaim() bool {
	return k.Claim != nil
}

// IsOwnedBy reports whether user is the key's current owner.
func (k *Key) IsOwnedBy(user id.UserID) bool {
	return !user.IsNil() && k.OwnerUserID == user
}

// Validate checks the aggregate invariants that can be verified locally.
func (k *Key) Validate() error {
	if !k.State.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown key state")
	}
	if k.State != StatePending && k.OwnerUserID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "owner required outside PENDING")
	}
	if k.State.IsClaimInProgress() != k.HasClaim() {
		return dErrors.New(dErrors.CodeInvariantViolation, "claim presence does not match state")
	}
	if k.Claim != nil && k.Claim.KeyID != k.ID {
		return dErrors.New(dErrors.CodeInvariantViolation, "claim belongs to another key")
	}
	return nil
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (k *Key) Clone() *Key {
	if k == nil {
		return nil
	}
	cp := *k
	cp.Claim = k.Claim.Clone()
	return &cp
}
