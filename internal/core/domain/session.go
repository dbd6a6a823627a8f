package domain

// SessionUser is one connected member of a room session.
type SessionUser struct {
	Name           string `json:"name"`
	IsViewer       bool   `json:"is_viewer"`
	IsVip          bool   `json:"is_vip"`
	RequestingCall bool   `json:"requesting_call"`
}

// RoomSession is the ephemeral runtime roster of a room. It exists only while
// at least one socket is joined and is never persisted.
//
// Invariant: OwnerID, when non-empty, is a key in Users.
type RoomSession struct {
	Room        RoomName
	OwnerID     SocketID
	Locked      bool
	StreamTitle string
	Users       map[SocketID]*SessionUser
}

// RoomState is the snapshot broadcast to every member after any roster or
// configuration change.
type RoomState struct {
	Room        RoomName                 `json:"room"`
	Users       map[SocketID]SessionUser `json:"users"`
	OwnerID     SocketID                 `json:"owner_id"`
	Locked      bool                     `json:"locked"`
	StreamTitle string                   `json:"stream_title"`
	Privacy     Privacy                  `json:"privacy"`
	VipRequired bool                     `json:"vip_required"`
}

// Snapshot copies the session roster into a broadcastable state. Privacy and
// VipRequired are filled in by the caller from the directory record.
func (s *RoomSession) Snapshot() *RoomState {
	users := make(map[SocketID]SessionUser, len(s.Users))
	for id, u := range s.Users {
		users[id] = *u
	}
	return &RoomState{
		Room:        s.Room,
		Users:       users,
		OwnerID:     s.OwnerID,
		Locked:      s.Locked,
		StreamTitle: s.StreamTitle,
	}
}
