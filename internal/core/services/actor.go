package services

import (
	"unicode/utf16"

	"livegate/internal/core/domain"
)

// DeriveActorID maps an identity string to a numeric actor id in
// [0, 2^31-2] using a 31-multiplier polynomial rolling hash over the
// identity's UTF-16 code units, accumulated in signed 32-bit with
// wraparound. Hashing UTF-16 units rather than runes keeps the mapping
// identical to clients that hash per charCodeAt, surrogate pairs
// included.
//
// The mapping is pure and stable across processes and versions: clients
// rely on re-deriving the same actor id from the same identity when they
// reconnect to a channel. It is not injective; collisions are accepted
// and neither detected nor resolved.
//
// The empty identity maps to 0, the anonymous auto-assigned actor.
func DeriveActorID(identity domain.Identity) domain.ActorID {
	var acc int32
	for _, u := range utf16.Encode([]rune(string(identity))) {
		acc = acc*31 + int32(u)
	}

	v := int64(acc)
	if v < 0 {
		v = -v
	}
	return domain.ActorID(v % int64(domain.MaxActorID))
}
