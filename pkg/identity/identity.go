// Package identity provides the signing principals of the tollgate
// protocol. An Identity is the raw 32-byte ed25519 public key of an
// owner or buyer; it doubles as an addressing seed and as the subject
// that authorizes calls.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// Size is the byte length of an Identity.
const Size = ed25519.PublicKeySize

// Identity is a fixed-size array holding an ed25519 public key.
type Identity [Size]byte

// FromBytes builds an Identity from a 32-byte slice.
func FromBytes(b []byte) (Identity, error) {
	if len(b) != Size {
		return Identity{}, fmt.Errorf(
			"invalid identity length: expected %d, got %d",
			Size, len(b),
		)
	}
	var id Identity
	copy(id[:], b)
	return id, nil
}

// FromHexadecimal parses a 64-character hex string into an Identity.
func FromHexadecimal(s string) (Identity, error) {
	if len(s) != Size*2 {
		return Identity{}, fmt.Errorf(
			"invalid hex length: expected %d, got %d",
			Size*2, len(s),
		)
	}

	decoded, err := hex.DecodeString(s)
	if err != nil {
		return Identity{}, fmt.Errorf("decode hex: %w", err)
	}

	var id Identity
	copy(id[:], decoded)
	return id, nil
}

// Equal returns true if this identity equals the other identity.
func (id Identity) Equal(other Identity) bool {
	return subtle.ConstantTimeCompare(id[:], other[:]) == 1
}

// IsZero returns true if this identity is the zero value.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// Bytes returns a byte slice copy of the identity.
func (id Identity) Bytes() []byte {
	b := make([]byte, len(id))
	copy(b, id[:])
	return b
}

// String returns the hexadecimal representation of the identity.
func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}

// Hex returns the hexadecimal representation of the identity
// (alias for String).
func (id Identity) Hex() string {
	return id.String()
}

// Verify checks that sig is a valid ed25519 signature by this
// identity over message.
func (id Identity) Verify(message, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(id[:]), message, sig)
}

// Keypair holds the private half of an Identity. Operations that must
// be authorized by a principal take a Keypair; everything else works
// on the bare Identity.
type Keypair struct {
	priv ed25519.PrivateKey
}

// NewKeypair generates a fresh ed25519 keypair.
func NewKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// KeypairFromSeed derives a keypair from a 32-byte ed25519 seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf(
			"invalid seed length: expected %d, got %d",
			ed25519.SeedSize, len(seed),
		)
	}
	return &Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// Identity returns the public identity of this keypair.
func (kp *Keypair) Identity() Identity {
	var id Identity
	copy(id[:], kp.priv.Public().(ed25519.PublicKey))
	return id
}

// Sign signs message with the private key.
func (kp *Keypair) Sign(message []byte) ([]byte, error) {
	if kp == nil || len(kp.priv) == 0 {
		return nil, errors.New("keypair must not be nil")
	}
	return ed25519.Sign(kp.priv, message), nil
}

// Seed returns the 32-byte seed of the private key. Callers persisting
// key material are responsible for keeping it secret.
func (kp *Keypair) Seed() []byte {
	return kp.priv.Seed()
}
