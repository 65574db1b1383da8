package engine

import (
	"pixkey/internal/pixkey/models"
	id "pixkey/pkg/domain"
)

// CommandKind names one of the operations the engine knows how to decide.
type CommandKind string

const (
	CmdStartOwnershipClaim     CommandKind = "START_OWNERSHIP_CLAIM"
	CmdApprovePortabilityClaim CommandKind = "APPROVE_PORTABILITY_CLAIM"
	CmdCancelCode              CommandKind = "CANCEL_CODE"
	CmdCancelOwnershipClaim    CommandKind = "CANCEL_OWNERSHIP_CLAIM"
	CmdReadyOwnershipClaim     CommandKind = "READY_OWNERSHIP_CLAIM"
	CmdDismiss                 CommandKind = "DISMISS"
)

// AllCommands lists every command kind.
func AllCommands() []CommandKind {
	return []CommandKind{
		CmdStartOwnershipClaim,
		CmdApprovePortabilityClaim,
		CmdCancelCode,
		CmdCancelOwnershipClaim,
		CmdReadyOwnershipClaim,
		CmdDismiss,
	}
}

func (k CommandKind) String() string { return string(k) }

// IsDirectoryDriven reports whether the command originates from a Directory
// notification rather than from the key owner.
func (k CommandKind) IsDirectoryDriven() bool {
	return k == CmdReadyOwnershipClaim
}

// Command is a requested operation plus its payload. Only the cancel commands
// carry a reason.
type Command struct {
	Kind   CommandKind
	Reason models.ClaimReason
}

func StartOwnershipClaim() Command     { return Command{Kind: CmdStartOwnershipClaim} }
func ApprovePortabilityClaim() Command { return Command{Kind: CmdApprovePortabilityClaim} }
func ReadyOwnershipClaim() Command     { return Command{Kind: CmdReadyOwnershipClaim} }
func Dismiss() Command                 { return Command{Kind: CmdDismiss} }

func CancelCode(reason models.ClaimReason) Command {
	return Command{Kind: CmdCancelCode, Reason: reason}
}

func CancelOwnershipClaim(reason models.ClaimReason) Command {
	return Command{Kind: CmdCancelOwnershipClaim, Reason: reason}
}

// ActorKind distinguishes key owners from the Directory.
type ActorKind string

const (
	ActorUser      ActorKind = "user"
	ActorDirectory ActorKind = "directory"
)

// Actor is whoever issued the command. Ownership is checked by the caller
// before Decide; the engine only checks that the actor kind may issue the
// command at all.
type Actor struct {
	Kind   ActorKind
	UserID id.UserID
}

func UserActor(userID id.UserID) Actor {
	return Actor{Kind: ActorUser, UserID: userID}
}

func DirectoryActor() Actor {
	return Actor{Kind: ActorDirectory}
}
