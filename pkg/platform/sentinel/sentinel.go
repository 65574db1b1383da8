package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so the service layer can translate them into domain errors.
//
//   - ErrNotFound: the key or claim does not exist in the store
//   - ErrConflict: a uniqueness rule (one live key per type and value) was hit
//   - ErrInvalidState: the stored aggregate violates its own invariants
//   - ErrUnavailable: the backing store or broker is temporarily unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
