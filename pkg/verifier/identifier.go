package verifier

import (
	"bytes"
	"fmt"

	"github.com/tollgated/tollgate/pkg/identity"
	"github.com/tollgated/tollgate/pkg/record"
)

// Full content identifier, fixed binary layout:
//
//	[0:2]   literal marker "0x"
//	[2:34]  32-byte owner identity
//	[34]    literal separator '/'
//	[35:]   UTF-8 content name
const (
	identifierMinLen    = 35
	identifierSeparator = byte('/')
)

var identifierMarker = []byte("0x")

// ParseIdentifier splits a full content identifier into the owner
// identity and the content name. Returns record.ErrInvalidIdentifier
// if the identifier is too short or the marker or separator byte is
// wrong.
func ParseIdentifier(full []byte) (identity.Identity, string, error) {
	if len(full) < identifierMinLen {
		return identity.Identity{}, "", fmt.Errorf(
			"identifier too short: %d bytes, minimum %d: %w",
			len(full), identifierMinLen, record.ErrInvalidIdentifier,
		)
	}
	if !bytes.Equal(full[0:2], identifierMarker) {
		return identity.Identity{}, "", fmt.Errorf(
			"identifier marker mismatch: %w",
			record.ErrInvalidIdentifier,
		)
	}
	if full[34] != identifierSeparator {
		return identity.Identity{}, "", fmt.Errorf(
			"identifier separator mismatch at offset 34: %w",
			record.ErrInvalidIdentifier,
		)
	}

	var owner identity.Identity
	copy(owner[:], full[2:34])
	return owner, string(full[35:]), nil
}

// FormatIdentifier builds the full content identifier for an owner and
// a content name.
func FormatIdentifier(owner identity.Identity, name string) []byte {
	full := make([]byte, 0, identifierMinLen+len(name))
	full = append(full, identifierMarker...)
	full = append(full, owner[:]...)
	full = append(full, identifierSeparator)
	full = append(full, name...)
	return full
}
