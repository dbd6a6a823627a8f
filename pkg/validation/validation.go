package validation

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	MaxRoomNameLength    = 32
	MaxDisplayNameLength = 32
	MaxPasswordLength    = 128
	MaxTitleLength       = 120
)

var (
	// RoomNameRegex validates a normalized room name.
	RoomNameRegex = regexp.MustCompile(`^[a-z0-9_-]+$`)

	// SocketIDRegex validates socket/peer identity format.
	SocketIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// NormalizeRoomName lowercases and trims a room name.
func NormalizeRoomName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateRoomName checks a room name after normalization.
func ValidateRoomName(name string) error {
	if name == "" {
		return fmt.Errorf("room name is required")
	}
	if len(name) > MaxRoomNameLength {
		return fmt.Errorf("room name is too long (max %d characters)", MaxRoomNameLength)
	}
	if !RoomNameRegex.MatchString(name) {
		return fmt.Errorf("room name contains invalid characters (only lowercase letters, numbers, _, - allowed)")
	}
	return nil
}

// NormalizeDisplayName lowercases and trims a display name. Roster keys are
// stored in this form so lookups ignore case and surrounding whitespace.
func NormalizeDisplayName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateDisplayName checks a participant display name.
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("display name is required")
	}
	if len(name) > MaxDisplayNameLength {
		return fmt.Errorf("display name is too long (max %d characters)", MaxDisplayNameLength)
	}
	return nil
}

// ValidatePassword checks a room password at claim time.
func ValidatePassword(password string) error {
	if password == "" {
		return nil // password is optional for public rooms
	}
	if len(password) < 4 {
		return fmt.Errorf("password must be at least 4 characters")
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password is too long (max %d characters)", MaxPasswordLength)
	}
	return nil
}

// ValidateSocketID checks a socket identity supplied by a client.
func ValidateSocketID(id string) error {
	if id == "" {
		return fmt.Errorf("socket id is required")
	}
	if len(id) > 64 {
		return fmt.Errorf("socket id is too long (max 64 characters)")
	}
	if !SocketIDRegex.MatchString(id) {
		return fmt.Errorf("invalid socket id format")
	}
	return nil
}
