package models

import dErrors "pixkey/pkg/domain-errors"

// KeyState is the lifecycle state of a Pix key. It is the single source of
// truth for which commands are legal; see the engine package for the table.
type KeyState string

const (
	StatePending                         KeyState = "PENDING"
	StateConfirmed                       KeyState = "CONFIRMED"
	StateAddKeyReady                     KeyState = "ADD_KEY_READY"
	StateReady                           KeyState = "READY"
	StateCanceled                        KeyState = "CANCELED"
	StateNotConfirmed                    KeyState = "NOT_CONFIRMED"
	StateDeleted                         KeyState = "DELETED"
	StateClaimPending                    KeyState = "CLAIM_PENDING"
	StateClaimNotConfirmed               KeyState = "CLAIM_NOT_CONFIRMED"
	StateClaimClosing                    KeyState = "CLAIM_CLOSING"
	StateOwnershipPending                KeyState = "OWNERSHIP_PENDING"
	StateOwnershipOpened                 KeyState = "OWNERSHIP_OPENED"
	StateOwnershipWaiting                KeyState = "OWNERSHIP_WAITING"
	StateOwnershipConflict               KeyState = "OWNERSHIP_CONFLICT"
	StateOwnershipCanceling              KeyState = "OWNERSHIP_CANCELING"
	StateOwnershipCanceled               KeyState = "OWNERSHIP_CANCELED"
	StateOwnershipReady                  KeyState = "OWNERSHIP_READY"
	StatePortabilityRequestPending       KeyState = "PORTABILITY_REQUEST_PENDING"
	StatePortabilityRequestAutoConfirmed KeyState = "PORTABILITY_REQUEST_AUTO_CONFIRMED"
	StatePortabilityCanceled             KeyState = "PORTABILITY_CANCELED"
	StatePortabilityReady                KeyState = "PORTABILITY_READY"
)

// AllStates lists every state in declaration order.
func AllStates() []KeyState {
	return []KeyState{
		StatePending,
		StateConfirmed,
		StateAddKeyReady,
		StateReady,
		StateCanceled,
		StateNotConfirmed,
		StateDeleted,
		StateClaimPending,
		StateClaimNotConfirmed,
		StateClaimClosing,
		StateOwnershipPending,
		StateOwnershipOpened,
		StateOwnershipWaiting,
		StateOwnershipConflict,
		StateOwnershipCanceling,
		StateOwnershipCanceled,
		StateOwnershipReady,
		StatePortabilityRequestPending,
		StatePortabilityRequestAutoConfirmed,
		StatePortabilityCanceled,
		StatePortabilityReady,
	}
}

// IsValid reports whether s is one of the declared states.
func (s KeyState) IsValid() bool {
	switch s {
	case StatePending, StateConfirmed, StateAddKeyReady, StateReady, StateCanceled,
		StateNotConfirmed, StateDeleted, StateClaimPending, StateClaimNotConfirmed,
		StateClaimClosing, StateOwnershipPending, StateOwnershipOpened, StateOwnershipWaiting,
		StateOwnershipConflict, StateOwnershipCanceling, StateOwnershipCanceled, StateOwnershipReady,
		StatePortabilityRequestPending, StatePortabilityRequestAutoConfirmed,
		StatePortabilityCanceled, StatePortabilityReady:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s on its own.
func (s KeyState) IsTerminal() bool {
	return s == StateCanceled || s == StateDeleted
}

// IsClaimInProgress reports whether a key in s must carry a claim.
func (s KeyState) IsClaimInProgress() bool {
	switch s {
	case StateClaimPending, StateClaimNotConfirmed, StateClaimClosing,
		StateOwnershipPending, StateOwnershipOpened, StateOwnershipWaiting,
		StateOwnershipConflict, StateOwnershipCanceling, StateOwnershipCanceled,
		StateOwnershipReady,
		StatePortabilityRequestPending, StatePortabilityRequestAutoConfirmed,
		StatePortabilityCanceled, StatePortabilityReady:
		return true
	}
	return false
}

func (s KeyState) String() string {
	return string(s)
}

// ParseKeyState validates a state read from storage or the wire.
func ParseKeyState(raw string) (KeyState, error) {
	s := KeyState(raw)
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown key state")
	}
	return s, nil
}
