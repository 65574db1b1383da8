package engine

import (
	"fmt"

	"pixkey/internal/pixkey/models"
)

// ClaimOp says what happens to the claim sub-record.
type ClaimOp int

const (
	ClaimNone ClaimOp = iota
	ClaimOpen
	ClaimKeep
	ClaimClose
)

func (op ClaimOp) String() string {
	switch op {
	case ClaimOpen:
		return "open"
	case ClaimKeep:
		return "keep"
	case ClaimClose:
		return "close"
	default:
		return "none"
	}
}

// ClaimAction is the claim half of a decision. Type and Reason are set for
// ClaimOpen; Reason is set for ClaimKeep when the command replaces it.
type ClaimAction struct {
	Op     ClaimOp
	Type   models.ClaimType
	Reason models.ClaimReason
}

// EffectKind enumerates the side effects scheduled after commit.
type EffectKind string

const (
	EffectDirectoryStartClaim   EffectKind = "DIRECTORY_START_CLAIM"
	EffectDirectoryApproveClaim EffectKind = "DIRECTORY_APPROVE_CLAIM"
	EffectDirectoryCancelClaim  EffectKind = "DIRECTORY_CANCEL_CLAIM"
	EffectEmitEvent             EffectKind = "EMIT_EVENT"
)

// IsDirectoryCall reports whether the effect goes to the Directory gateway.
func (k EffectKind) IsDirectoryCall() bool {
	return k == EffectDirectoryStartClaim || k == EffectDirectoryApproveClaim || k == EffectDirectoryCancelClaim
}

// Effect is one side effect. EventName is the target state for EffectEmitEvent.
type Effect struct {
	Kind      EffectKind
	ClaimType models.ClaimType
	Reason    models.ClaimReason
	EventName string
}

// Decision is the outcome of an accepted command.
type Decision struct {
	Command CommandKind
	From    models.KeyState
	To      models.KeyState
	Claim   ClaimAction
	Effects []Effect
}

// IsNoop reports an idempotent self-transition with nothing to do.
func (d Decision) IsNoop() bool {
	return d.From == d.To && len(d.Effects) == 0 && d.Claim.Reason == ""
}

// RejectReason classifies why a command was refused.
type RejectReason string

const (
	RejectWrongState        RejectReason = "wrong_state"
	RejectActorNotPermitted RejectReason = "actor_not_permitted"
	RejectInconsistentKey   RejectReason = "inconsistent_key"
	RejectUnknownCommand    RejectReason = "unknown_command"
)

// Rejection is returned by Decide when the command is inapplicable. It is a
// value, never an infrastructure failure.
type Rejection struct {
	Command CommandKind
	State   models.KeyState
	Reason  RejectReason
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("command %s not applicable in state %s: %s", r.Command, r.State, r.Reason)
}
