package signal

import (
	"encoding/json"
	"fmt"

	"relaycast/internal/core/domain"

	"github.com/pion/webrtc/v3"
)

// Message is the tagged union every client frame decodes into. Payload shape
// depends on Type and is validated before reaching business logic.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ClaimRoomPayload struct {
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
	Privacy  string `json:"privacy,omitempty"`
}

type AuthHostRoomPayload struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type JoinRoomPayload struct {
	Room     string `json:"room"`
	Name     string `json:"name"`
	IsViewer bool   `json:"is_viewer"`
	VipCode  string `json:"vip_code,omitempty"`
	VipToken string `json:"vip_token,omitempty"`
}

type JoinRoomRelayPayload struct {
	Room       string            `json:"room,omitempty"`
	DeviceInfo domain.DeviceInfo `json:"device_info"`
}

type GenerateVipCodePayload struct {
	Room    string `json:"room"`
	MaxUses int    `json:"max_uses"`
}

type RevokeVipCodePayload struct {
	RoomName string `json:"room_name"`
	Code     string `json:"code"`
}

type UpdatePrivacyPayload struct {
	RoomName string `json:"room_name"`
	Privacy  string `json:"privacy"`
}

type UpdateVipRequiredPayload struct {
	RoomName    string `json:"room_name"`
	VipRequired bool   `json:"vip_required"`
}

type TargetPayload struct {
	TargetID string `json:"target_id"`
}

type LockRoomPayload struct {
	Locked bool `json:"locked"`
}

type ChatPayload struct {
	Text string `json:"text"`
}

type SetTitlePayload struct {
	Title string `json:"title"`
}

// NegotiationPayload is the shape peers exchange through the forward path:
// an addressed envelope around a WebRTC session description or ICE
// candidate. The gateway decodes it to address and schema-check the frame,
// then relays the sender's bytes verbatim.
type NegotiationPayload struct {
	Target    string                     `json:"target"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// forwardTypes are relayed without inspecting payload contents.
var forwardTypes = map[string]bool{
	"offer":         true,
	"answer":        true,
	"ice-candidate": true,
	"call-offer":    true,
	"call-answer":   true,
	"call-ice":      true,
	"call-end":      true,
	"relay-offer":   true,
	"relay-answer":  true,
	"relay-ice":     true,
}

func IsForwardType(t string) bool {
	return forwardTypes[t]
}

func decodePayload(msg Message, v interface{}) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s: payload is required", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", msg.Type, err)
	}
	return nil
}
