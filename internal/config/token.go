package config

import "github.com/halcyon-audio/spindle/internal/errs"

// tokenLength is the exact length a gateway-issued user token must have.
const tokenLength = 64

// UserToken is the short-lived token obtained from the gateway during
// session setup, kept distinct from ARL so the two secrets can never be
// swapped by mistake.
type UserToken string

// Validate enforces the 64-char base62 invariant.
func (t UserToken) Validate() error {
	if len(t) != tokenLength {
		return errs.New(errs.InvalidArgument, "config: token length", errTokenLength)
	}
	for _, r := range t {
		if !isBase62(r) {
			return errs.New(errs.InvalidArgument, "config: token charset", errTokenCharset)
		}
	}
	return nil
}

func isBase62(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	default:
		return false
	}
}

var (
	errTokenLength  = simpleErr("config: user token must be exactly 64 characters")
	errTokenCharset = simpleErr("config: user token must be base62")
)
