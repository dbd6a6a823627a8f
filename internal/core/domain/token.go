package domain

import "time"

// VipToken is a short-lived, single-use grant scoped to one room, issued when
// a VIP code is redeemed out of band. Expiry is checked at consumption.
type VipToken struct {
	Token    string    `json:"token"`
	Room     RoomName  `json:"room"`
	IssuedAt time.Time `json:"issued_at"`
}
