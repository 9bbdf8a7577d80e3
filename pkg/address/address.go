// Package address implements the deterministic addressing scheme of
// the tollgate ledger. An address is the SHA-256 of a namespace tag
// and an ordered list of length-prefixed seed values, so the same
// (namespace, seeds) input always lands on the same storage slot and
// creation at an occupied slot is first-writer-wins.
package address

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/tollgated/tollgate/pkg/identity"
)

// Size is the byte length of an Address.
const Size = sha256.Size

// Namespace tags for the two record families.
const (
	NamespaceContent = "tollgate/content"
	NamespaceReceipt = "tollgate/receipt"
)

// Address is a deterministic storage slot identifier.
type Address [Size]byte

// Derive computes the address for a namespace tag and ordered seed
// values. Each seed is prefixed with its big-endian length so that
// distinct seed lists can never produce the same digest input.
func Derive(namespace string, seeds ...[]byte) Address {
	h := sha256.New()

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(namespace)))
	h.Write(lenBuf[:])
	h.Write([]byte(namespace))

	for _, seed := range seeds {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(seed)))
		h.Write(lenBuf[:])
		h.Write(seed)
	}

	var a Address
	h.Sum(a[:0])
	return a
}

// ForContent returns the content record address for an owner and a
// content name.
func ForContent(owner identity.Identity, name string) Address {
	return Derive(NamespaceContent, owner[:], []byte(name))
}

// ForReceipt returns the access receipt address for a content address
// and a buyer.
func ForReceipt(content Address, buyer identity.Identity) Address {
	return Derive(NamespaceReceipt, content[:], buyer[:])
}

// FromBytes builds an Address from a 32-byte slice.
func FromBytes(b []byte) (Address, error) {
	if len(b) != Size {
		return Address{}, fmt.Errorf(
			"invalid address length: expected %d, got %d",
			Size, len(b),
		)
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// Equal returns true if this address equals the other address.
func (a Address) Equal(other Address) bool {
	return a == other
}

// IsZero returns true if this address is the zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Bytes returns a byte slice copy of the address.
func (a Address) Bytes() []byte {
	b := make([]byte, len(a))
	copy(b, a[:])
	return b
}

// String returns the hexadecimal representation of the address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Hex returns the hexadecimal representation of the address
// (alias for String).
func (a Address) Hex() string {
	return a.String()
}
