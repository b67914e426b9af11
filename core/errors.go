package core

import "errors"

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// Ledger failures. Every check that can produce one of these runs before the
// operation mutates anything.
var (
	// ErrUnknown: the referenced asset id has no registry entry.
	ErrUnknown = errors.New("unknown asset")
	// ErrNoPermission: the caller is not the asset's registered owner.
	ErrNoPermission = errors.New("no permission")
	// ErrNotOwned: the caller holds none of the unique asset.
	ErrNotOwned = errors.New("asset not owned")
	// ErrNoSupply: a unique asset was minted with zero supply.
	ErrNoSupply = errors.New("supply must be positive")
	// ErrIDsExhausted: the id allocator reached its ceiling.
	ErrIDsExhausted = errors.New("asset ids exhausted")
)

// Stable codes reported in receipts and RPC error data.
const (
	CodeUnknown      = "Unknown"
	CodeNoPermission = "NoPermission"
	CodeNotOwned     = "NotOwned"
	CodeNoSupply     = "NoSupply"
	CodeIDsExhausted = "IdsExhausted"
	CodeInvalid      = "Invalid"
	CodeInternal     = "Internal"
)

// ErrInvalidCall marks a call rejected before dispatch: bad envelope, unknown
// call type, or a payload that fails validation.
var ErrInvalidCall = errors.New("invalid call")

// ErrorCode maps err onto one of the stable codes. nil maps to "".
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknown):
		return CodeUnknown
	case errors.Is(err, ErrNoPermission):
		return CodeNoPermission
	case errors.Is(err, ErrNotOwned):
		return CodeNotOwned
	case errors.Is(err, ErrNoSupply):
		return CodeNoSupply
	case errors.Is(err, ErrIDsExhausted):
		return CodeIDsExhausted
	case errors.Is(err, ErrInvalidCall):
		return CodeInvalid
	default:
		return CodeInternal
	}
}
