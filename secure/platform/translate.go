package platform

import "errors"

var (
	ErrBadOwnerMagic  = errors.New("platform: unknown translation owner")
	ErrClientIDRange  = errors.New("platform: client id outside non-secure window")
	ErrClientIDZero   = errors.New("platform: client id zero is reserved")
	ErrClientIDSecure = errors.New("platform: positive client id from non-secure caller")
)

// NSClientWindow is the identity translation for the non-secure mailbox
// agent. Non-secure callers own the negative id space; the window bounds
// which slice of it this channel may claim, so a caller cannot impersonate
// another channel's clients.
type NSClientWindow struct {
	OwnerMagic uint32
	// Min and Max bound the accepted raw ids, both negative, Min <= Max.
	Min int32
	Max int32
}

// Translate validates a raw non-secure client id and returns the id the
// secure runtime sees. Identity within the window; anything else fails.
func (w NSClientWindow) Translate(ownerMagic uint32, raw int32) (int32, error) {
	if ownerMagic != w.OwnerMagic {
		return 0, ErrBadOwnerMagic
	}
	if raw == 0 {
		return 0, ErrClientIDZero
	}
	if raw > 0 {
		return 0, ErrClientIDSecure
	}
	if raw < w.Min || raw > w.Max {
		return 0, ErrClientIDRange
	}
	return raw, nil
}
