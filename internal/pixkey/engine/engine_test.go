package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixkey/internal/pixkey/models"
	id "pixkey/pkg/domain"
)

type transition struct {
	to      models.KeyState
	claim   ClaimOp
	effects []EffectKind
}

// legal is the complete set of accepted (state, command) pairs. Everything
// not listed must be rejected.
var legal = map[models.KeyState]map[CommandKind]transition{
	models.StateOwnershipPending: {
		CmdStartOwnershipClaim: {models.StateOwnershipOpened, ClaimKeep, []EffectKind{EffectDirectoryStartClaim}},
	},
	models.StatePortabilityRequestPending: {
		CmdApprovePortabilityClaim: {models.StateCanceled, ClaimClose, []EffectKind{EffectDirectoryApproveClaim}},
	},
	models.StatePending: {
		CmdCancelCode: {models.StateCanceled, ClaimNone, nil},
	},
	models.StateClaimPending: {
		CmdCancelCode:          {models.StateClaimClosing, ClaimKeep, []EffectKind{EffectDirectoryCancelClaim}},
		CmdReadyOwnershipClaim: {models.StateClaimPending, ClaimKeep, nil},
	},
	models.StateOwnershipWaiting: {
		CmdCancelOwnershipClaim: {models.StateOwnershipCanceling, ClaimKeep, []EffectKind{EffectDirectoryCancelClaim}},
	},
	models.StateReady: {
		CmdReadyOwnershipClaim: {models.StateClaimPending, ClaimOpen, []EffectKind{EffectEmitEvent}},
	},
	models.StateClaimNotConfirmed: {
		CmdDismiss: {models.StateClaimPending, ClaimKeep, nil},
	},
	models.StatePortabilityRequestAutoConfirmed: {CmdDismiss: {models.StateCanceled, ClaimClose, nil}},
	models.StatePortabilityCanceled:             {CmdDismiss: {models.StateCanceled, ClaimClose, nil}},
	models.StateOwnershipCanceled:               {CmdDismiss: {models.StateCanceled, ClaimClose, nil}},
	models.StateOwnershipConflict:               {CmdDismiss: {models.StateCanceled, ClaimClose, nil}},
	models.StateDeleted:                         {CmdDismiss: {models.StateCanceled, ClaimNone, nil}},
	models.StateNotConfirmed:                    {CmdDismiss: {models.StateCanceled, ClaimNone, nil}},
	models.StatePortabilityReady:                {CmdDismiss: {models.StateReady, ClaimClose, nil}},
	models.StateOwnershipReady:                  {CmdDismiss: {models.StateReady, ClaimClose, nil}},
	models.StateAddKeyReady:                     {CmdDismiss: {models.StateReady, ClaimNone, nil}},
}

var owner = id.UserID(uuid.MustParse("4f0c6e4a-8c55-4d43-9d0e-3f4a1f8a7b21"))

func commandFor(kind CommandKind) (Command, Actor) {
	switch kind {
	case CmdCancelCode:
		return CancelCode(models.ReasonUserRequested), UserActor(owner)
	case CmdCancelOwnershipClaim:
		return CancelOwnershipClaim(models.ReasonFraud), UserActor(owner)
	case CmdReadyOwnershipClaim:
		return ReadyOwnershipClaim(), DirectoryActor()
	default:
		return Command{Kind: kind}, UserActor(owner)
	}
}

func TestDecideCoversEveryPair(t *testing.T) {
	for _, state := range models.AllStates() {
		for _, kind := range AllCommands() {
			t.Run(string(state)+"/"+string(kind), func(t *testing.T) {
				cmd, actor := commandFor(kind)
				got, err := Decide(state, state.IsClaimInProgress(), cmd, actor)

				want, ok := legal[state][kind]
				if !ok {
					require.Error(t, err)
					var rej *Rejection
					require.ErrorAs(t, err, &rej)
					assert.Equal(t, RejectWrongState, rej.Reason)
					assert.Equal(t, state, rej.State)
					return
				}

				require.NoError(t, err)
				assert.Equal(t, state, got.From)
				assert.Equal(t, want.to, got.To)
				assert.Equal(t, want.claim, got.Claim.Op)

				var kinds []EffectKind
				for _, e := range got.Effects {
					kinds = append(kinds, e.Kind)
				}
				assert.Equal(t, want.effects, kinds)

				// the claim-presence invariant must hold on the far side
				present := state.IsClaimInProgress()
				switch got.Claim.Op {
				case ClaimOpen:
					present = true
				case ClaimClose:
					present = false
				}
				assert.Equal(t, got.To.IsClaimInProgress(), present)
			})
		}
	}
}

func TestCanceledRejectsEverything(t *testing.T) {
	for _, kind := range AllCommands() {
		cmd, actor := commandFor(kind)
		_, err := Decide(models.StateCanceled, false, cmd, actor)
		assert.True(t, IsRejection(err), "CANCELED must reject %s", kind)
	}
}

func TestReadyOwnershipClaim(t *testing.T) {
	t.Run("opens an ownership claim and emits CLAIM_PENDING once", func(t *testing.T) {
		first, err := Decide(models.StateReady, false, ReadyOwnershipClaim(), DirectoryActor())
		require.NoError(t, err)
		assert.Equal(t, ClaimAction{Op: ClaimOpen, Type: models.ClaimTypeOwnership, Reason: models.ReasonDefaultOperation}, first.Claim)
		require.Len(t, first.Effects, 1)
		assert.Equal(t, "CLAIM_PENDING", first.Effects[0].EventName)

		second, err := Decide(first.To, true, ReadyOwnershipClaim(), DirectoryActor())
		require.NoError(t, err)
		assert.Equal(t, models.StateClaimPending, second.To)
		assert.Empty(t, second.Effects)
		assert.True(t, second.IsNoop())
	})

	t.Run("rejects on canceled key", func(t *testing.T) {
		_, err := Decide(models.StateCanceled, false, ReadyOwnershipClaim(), DirectoryActor())
		var rej *Rejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, RejectWrongState, rej.Reason)
	})

	t.Run("users cannot issue it", func(t *testing.T) {
		_, err := Decide(models.StateReady, false, ReadyOwnershipClaim(), UserActor(owner))
		var rej *Rejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, RejectActorNotPermitted, rej.Reason)
	})
}

func TestDismissRoundTripToReady(t *testing.T) {
	for _, s := range []models.KeyState{models.StatePortabilityReady, models.StateOwnershipReady, models.StateAddKeyReady} {
		d, err := Decide(s, s.IsClaimInProgress(), Dismiss(), UserActor(owner))
		require.NoError(t, err)
		assert.Equal(t, models.StateReady, d.To)

		// READY has no user-driven follow-up
		for _, kind := range AllCommands() {
			if kind.IsDirectoryDriven() {
				continue
			}
			cmd, actor := commandFor(kind)
			_, err := Decide(models.StateReady, false, cmd, actor)
			assert.True(t, IsRejection(err), kind)
		}
	}
}

func TestCancelCarriesReason(t *testing.T) {
	d, err := Decide(models.StateClaimPending, true, CancelCode(models.ReasonAccountClosure), UserActor(owner))
	require.NoError(t, err)
	assert.Equal(t, models.ReasonAccountClosure, d.Claim.Reason)
	require.Len(t, d.Effects, 1)
	assert.Equal(t, models.ReasonAccountClosure, d.Effects[0].Reason)
	assert.False(t, d.IsNoop())
}

func TestDecideRejectsBadInput(t *testing.T) {
	t.Run("claim presence mismatch", func(t *testing.T) {
		_, err := Decide(models.StateReady, true, Dismiss(), UserActor(owner))
		var rej *Rejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, RejectInconsistentKey, rej.Reason)
	})

	t.Run("unknown state", func(t *testing.T) {
		_, err := Decide(models.KeyState("LIMBO"), false, Dismiss(), UserActor(owner))
		assert.True(t, IsRejection(err))
	})

	t.Run("anonymous user", func(t *testing.T) {
		_, err := Decide(models.StatePending, false, CancelCode(models.ReasonUserRequested), UserActor(id.UserID{}))
		var rej *Rejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, RejectActorNotPermitted, rej.Reason)
	})

	t.Run("directory cannot dismiss", func(t *testing.T) {
		_, err := Decide(models.StateAddKeyReady, false, Dismiss(), DirectoryActor())
		assert.True(t, IsRejection(err))
	})

	t.Run("unknown command", func(t *testing.T) {
		_, err := Decide(models.StatePending, false, Command{Kind: "PURGE"}, UserActor(owner))
		var rej *Rejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, RejectUnknownCommand, rej.Reason)
	})
}
