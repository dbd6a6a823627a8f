package domain

import "errors"

var (
	ErrAlreadyExists       = errors.New("room already exists")
	ErrNotFound            = errors.New("not found")
	ErrInvalidName         = errors.New("invalid room name")
	ErrInvalidPassword     = errors.New("invalid password")
	ErrAuthRequired        = errors.New("authentication required")
	ErrLocked              = errors.New("room is locked")
	ErrVipUsernameRequired = errors.New("display name is not on the vip roster")
	ErrVipCodeRequired     = errors.New("a vip code or token is required")
	ErrInvalidOrExhausted  = errors.New("code is invalid or exhausted")
	ErrNoCapacity          = errors.New("no relay capacity available")
	ErrCodeSpaceExhausted  = errors.New("code space exhausted")
)

// ReasonCode maps a domain error to the wire-level reason code carried in
// acknowledgments.
func ReasonCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyExists):
		return "ALREADY_EXISTS"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidName):
		return "INVALID_NAME"
	case errors.Is(err, ErrInvalidPassword):
		return "INVALID_PASSWORD"
	case errors.Is(err, ErrAuthRequired):
		return "AUTH_REQUIRED"
	case errors.Is(err, ErrLocked):
		return "LOCKED"
	case errors.Is(err, ErrVipUsernameRequired):
		return "VIP_USERNAME_REQUIRED"
	case errors.Is(err, ErrVipCodeRequired):
		return "VIP_CODE_REQUIRED"
	case errors.Is(err, ErrInvalidOrExhausted):
		return "INVALID_OR_EXHAUSTED"
	case errors.Is(err, ErrNoCapacity):
		return "NO_CAPACITY"
	case errors.Is(err, ErrCodeSpaceExhausted):
		return "CODE_SPACE_EXHAUSTED"
	default:
		return "INTERNAL"
	}
}
