package domain

import (
	"strings"
	"time"
)

type RoomName string
type SocketID string

type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
)

// VipCode is a room-scoped redeemable string. MaxUses <= 0 means the code is
// multi-use: redemptions are counted but never exhaust it.
type VipCode struct {
	MaxUses  int `json:"max_uses"`
	UsesLeft int `json:"uses_left"`
	Used     int `json:"used"`
}

func (c *VipCode) MultiUse() bool {
	return c.MaxUses <= 0
}

// RoomRecord is the durable registry entry for a claimed room name. It is
// owned by the directory service and mutated only through it.
type RoomRecord struct {
	Name         RoomName            `json:"name"`
	PasswordHash string              `json:"password_hash,omitempty"`
	Privacy      Privacy             `json:"privacy"`
	VipRequired  bool                `json:"vip_required"`
	VipRoster    map[string]string   `json:"vip_roster,omitempty"` // lowercased name -> display name
	VipCodes     map[string]*VipCode `json:"vip_codes,omitempty"`
	Permanent    bool                `json:"permanent"`
	Live         bool                `json:"live"`
	ViewerCount  int                 `json:"viewer_count"`
	Title        string              `json:"title"`
	CreatedAt    time.Time           `json:"created_at"`
}

// HasVipUser reports roster membership ignoring case and surrounding
// whitespace, matching how roster keys are written.
func (r *RoomRecord) HasVipUser(displayName string) bool {
	_, ok := r.VipRoster[strings.ToLower(strings.TrimSpace(displayName))]
	return ok
}

// RosterNames returns the display names on the VIP roster.
func (r *RoomRecord) RosterNames() []string {
	names := make([]string, 0, len(r.VipRoster))
	for _, display := range r.VipRoster {
		names = append(names, display)
	}
	return names
}

// Clone returns a deep copy. The directory service mutates clones and only
// publishes them after the durable write succeeds.
func (r *RoomRecord) Clone() *RoomRecord {
	cp := *r
	if r.VipRoster != nil {
		cp.VipRoster = make(map[string]string, len(r.VipRoster))
		for k, v := range r.VipRoster {
			cp.VipRoster[k] = v
		}
	}
	if r.VipCodes != nil {
		cp.VipCodes = make(map[string]*VipCode, len(r.VipCodes))
		for k, v := range r.VipCodes {
			c := *v
			cp.VipCodes[k] = &c
		}
	}
	return &cp
}
