// Package engine holds the claim transition rules for Pix keys. Decide is a
// pure function: no I/O, no clock, no randomness.
package engine

import (
	"errors"

	"pixkey/internal/pixkey/models"
)

// Decide computes the transition a command triggers from the current state,
// or returns a *Rejection.
func Decide(current models.KeyState, claimPresent bool, cmd Command, actor Actor) (Decision, error) {
	if !current.IsValid() || claimPresent != current.IsClaimInProgress() {
		return Decision{}, reject(cmd, current, RejectInconsistentKey)
	}
	if !actorMayIssue(actor, cmd.Kind) {
		return Decision{}, reject(cmd, current, RejectActorNotPermitted)
	}

	var (
		to      models.KeyState
		effects []Effect
	)

	switch cmd.Kind {
	case CmdStartOwnershipClaim:
		if current != models.StateOwnershipPending {
			return Decision{}, reject(cmd, current, RejectWrongState)
		}
		to = models.StateOwnershipOpened
		effects = []Effect{{Kind: EffectDirectoryStartClaim, ClaimType: models.ClaimTypeOwnership}}

	case CmdApprovePortabilityClaim:
		if current != models.StatePortabilityRequestPending {
			return Decision{}, reject(cmd, current, RejectWrongState)
		}
		to = models.StateCanceled
		effects = []Effect{{Kind: EffectDirectoryApproveClaim, ClaimType: models.ClaimTypePortability}}

	case CmdCancelCode:
		switch current {
		case models.StatePending:
			to = models.StateCanceled
		case models.StateClaimPending:
			to = models.StateClaimClosing
			effects = []Effect{{Kind: EffectDirectoryCancelClaim, Reason: cmd.Reason}}
		default:
			return Decision{}, reject(cmd, current, RejectWrongState)
		}

	case CmdCancelOwnershipClaim:
		if current != models.StateOwnershipWaiting {
			return Decision{}, reject(cmd, current, RejectWrongState)
		}
		to = models.StateOwnershipCanceling
		effects = []Effect{{Kind: EffectDirectoryCancelClaim, ClaimType: models.ClaimTypeOwnership, Reason: cmd.Reason}}

	case CmdReadyOwnershipClaim:
		switch current {
		case models.StateReady:
			to = models.StateClaimPending
			effects = []Effect{{Kind: EffectEmitEvent, EventName: string(models.StateClaimPending)}}
		case models.StateClaimPending:
			// Already delivered: the notification is replayed, nothing changes.
			to = models.StateClaimPending
		default:
			return Decision{}, reject(cmd, current, RejectWrongState)
		}

	case CmdDismiss:
		switch current {
		case models.StateClaimNotConfirmed:
			to = models.StateClaimPending
		case models.StatePortabilityRequestAutoConfirmed,
			models.StatePortabilityCanceled,
			models.StateOwnershipCanceled,
			models.StateOwnershipConflict,
			models.StateDeleted,
			models.StateNotConfirmed:
			to = models.StateCanceled
		case models.StatePortabilityReady,
			models.StateOwnershipReady,
			models.StateAddKeyReady:
			to = models.StateReady
		default:
			return Decision{}, reject(cmd, current, RejectWrongState)
		}

	default:
		return Decision{}, reject(cmd, current, RejectUnknownCommand)
	}

	return Decision{
		Command: cmd.Kind,
		From:    current,
		To:      to,
		Claim:   claimActionFor(current, to, cmd),
		Effects: effects,
	}, nil
}

// claimActionFor derives the claim operation from whether the source and
// target states carry a claim, so the claim-presence invariant holds by
// construction.
func claimActionFor(from, to models.KeyState, cmd Command) ClaimAction {
	fromClaim, toClaim := from.IsClaimInProgress(), to.IsClaimInProgress()
	switch {
	case !fromClaim && toClaim:
		// Only the Directory opens a claim on an already-READY key.
		return ClaimAction{Op: ClaimOpen, Type: models.ClaimTypeOwnership, Reason: models.ReasonDefaultOperation}
	case fromClaim && toClaim:
		if cmd.Kind == CmdCancelCode || cmd.Kind == CmdCancelOwnershipClaim {
			return ClaimAction{Op: ClaimKeep, Reason: cmd.Reason}
		}
		return ClaimAction{Op: ClaimKeep}
	case fromClaim && !toClaim:
		return ClaimAction{Op: ClaimClose}
	default:
		return ClaimAction{Op: ClaimNone}
	}
}

func actorMayIssue(actor Actor, kind CommandKind) bool {
	switch actor.Kind {
	case ActorDirectory:
		return kind.IsDirectoryDriven()
	case ActorUser:
		return !kind.IsDirectoryDriven() && !actor.UserID.IsNil()
	default:
		return false
	}
}

func reject(cmd Command, state models.KeyState, reason RejectReason) *Rejection {
	return &Rejection{Command: cmd.Kind, State: state, Reason: reason}
}

// IsRejection reports whether err carries a *Rejection.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}
