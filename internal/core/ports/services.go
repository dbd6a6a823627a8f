package ports

import (
	"context"

	"relaycast/internal/core/domain"
)

type DirectoryService interface {
	CreateRoom(ctx context.Context, name domain.RoomName, password string, privacy domain.Privacy) (*domain.RoomRecord, error)
	Authenticate(ctx context.Context, name domain.RoomName, password string) error
	Get(ctx context.Context, name domain.RoomName) (*domain.RoomRecord, error)
	List(ctx context.Context) ([]*domain.RoomRecord, error)
	UpdatePrivacy(ctx context.Context, name domain.RoomName, privacy domain.Privacy) (*domain.RoomRecord, error)
	// UpdateVipRequired normalizes the flag back to false when the room is not
	// private; the returned record carries the effective value.
	UpdateVipRequired(ctx context.Context, name domain.RoomName, required bool) (*domain.RoomRecord, error)
	AddVipUser(ctx context.Context, name domain.RoomName, displayName string) (*domain.RoomRecord, error)
	GenerateVipCode(ctx context.Context, name domain.RoomName, maxUses int) (string, *domain.VipCode, error)
	RevokeVipCode(ctx context.Context, name domain.RoomName, code string) error
	// RedeemCode locates the owning room and consumes one use in a single
	// atomic step. A non-empty room rejects a code owned by another room
	// before any use is consumed; an empty room matches any owner.
	RedeemCode(ctx context.Context, code string, room domain.RoomName) (domain.RoomName, error)
	MarkPermanent(ctx context.Context, name domain.RoomName) error
	UpdateLiveState(ctx context.Context, name domain.RoomName, live bool, viewerCount int, title string) error
}

type SessionService interface {
	Join(room domain.RoomName, id domain.SocketID, name string, isViewer, isVip bool) *domain.RoomState
	// Leave removes the socket and reports whether the session became empty.
	Leave(room domain.RoomName, id domain.SocketID) (state *domain.RoomState, empty bool)
	Promote(room domain.RoomName, caller, target domain.SocketID) *domain.RoomState
	Lock(room domain.RoomName, caller domain.SocketID, locked bool) *domain.RoomState
	Kick(room domain.RoomName, caller, target domain.SocketID) (*domain.RoomState, bool)
	SetTitle(room domain.RoomName, caller domain.SocketID, title string) *domain.RoomState
	SetRequestingCall(room domain.RoomName, id domain.SocketID, requesting bool) *domain.RoomState
	Snapshot(room domain.RoomName) (*domain.RoomState, bool)
	IsOwner(room domain.RoomName, id domain.SocketID) bool
	IsLocked(room domain.RoomName) bool
	Members(room domain.RoomName) []domain.SocketID
}

// JoinRequest is everything the admission controller needs to evaluate one
// join attempt.
type JoinRequest struct {
	Room          domain.RoomName
	SocketID      domain.SocketID
	Name          string
	IsViewer      bool
	VipCode       string
	VipToken      string
	Authenticated bool // the connection proved the room password earlier
}

type JoinDecision struct {
	Accept bool
	IsVip  bool
	Reason error // one of the domain reason errors when Accept is false
}

type AdmissionService interface {
	Evaluate(ctx context.Context, req *JoinRequest) JoinDecision
}

type TreeService interface {
	// EnsureRoot creates the room's tree rooted at the host socket. A tree
	// rooted at a different socket is replaced.
	EnsureRoot(room domain.RoomName, host domain.SocketID)
	Insert(room domain.RoomName, id domain.SocketID, dev domain.DeviceInfo) (*domain.Assignment, error)
	// Remove detaches the node and returns its children as orphans, in
	// insertion order. Removing the root orphans every direct child.
	Remove(room domain.RoomName, id domain.SocketID) []domain.SocketID
	ReassignOrphans(room domain.RoomName, orphans []domain.SocketID) []domain.OrphanResult
	Destroy(room domain.RoomName)
	Nodes(room domain.RoomName) []domain.SocketID
	Size(room domain.RoomName) int
}

type AuthService interface {
	// GenerateRoomToken issues a bearer token scoped to one room name for the
	// HTTP management surface.
	GenerateRoomToken(room domain.RoomName) (string, error)
	ValidateToken(token string) (domain.RoomName, error)
}
