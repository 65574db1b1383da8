package domain

import (
	"github.com/google/uuid"

	dErrors "pixkey/pkg/domain-errors"
)

// Typed identifiers. Distinct named types so a KeyID can never be passed where
// a UserID is expected.
type (
	UserID  uuid.UUID
	KeyID   uuid.UUID
	ClaimID uuid.UUID
)

// parseUUID is the single validation path for every typed id: non-empty,
// well-formed and not the nil UUID.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return parsed, nil
}

// ParseUserID parses a user id at a trust boundary.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

// ParseKeyID parses a key id at a trust boundary.
func ParseKeyID(s string) (KeyID, error) {
	u, err := parseUUID(s, "key ID")
	return KeyID(u), err
}

// ParseClaimID parses a claim id at a trust boundary.
func ParseClaimID(s string) (ClaimID, error) {
	u, err := parseUUID(s, "claim ID")
	return ClaimID(u), err
}

func NewKeyID() KeyID     { return KeyID(uuid.New()) }
func NewClaimID() ClaimID { return ClaimID(uuid.New()) }

func (id UserID) String() string  { return uuid.UUID(id).String() }
func (id KeyID) String() string   { return uuid.UUID(id).String() }
func (id ClaimID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id KeyID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ClaimID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
