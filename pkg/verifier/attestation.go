package verifier

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/tollgated/tollgate/pkg/address"
	"github.com/tollgated/tollgate/pkg/identity"
)

// attestationVersion tags the attestation wire format.
const attestationVersion = 1

// Attestation is the signed outcome of a successful access check. It
// binds the caller, the content address and the verified revision, and
// is independently checkable from its bytes, so it can be handed to a
// third party (a decryption-key issuer) as proof of current access.
//
// The attestation proves access as of the verified revision; a
// consumer that cares about freshness re-checks the content record's
// current revision against Revision.
type Attestation struct {
	// Caller is the identity whose access was verified; it signed the
	// statement.
	Caller identity.Identity
	// Content is the deterministic address of the verified content
	// record.
	Content address.Address
	// Revision is the revision at which access was verified.
	Revision uint64
	// IssuedAt is the verification time, seconds precision.
	IssuedAt time.Time
	// Signature is the caller's ed25519 signature over the canonical
	// statement.
	Signature []byte
}

// statementBytes encodes the signed portion of the attestation:
// version(1) | caller(32) | content(32) | revision(8, BE) |
// issuedAt unix(8, BE).
func (a *Attestation) statementBytes() ([]byte, error) {
	issuedUnix := a.IssuedAt.Unix()
	if issuedUnix < 0 {
		return nil, errors.New("issuedAt must be unix epoch or later")
	}

	size := 1 + identity.Size + address.Size + 8 + 8
	buf := make([]byte, 0, size)
	buf = append(buf, attestationVersion)
	buf = append(buf, a.Caller[:]...)
	buf = append(buf, a.Content[:]...)

	var intBuf [8]byte
	binary.BigEndian.PutUint64(intBuf[:], a.Revision)
	buf = append(buf, intBuf[:]...)
	binary.BigEndian.PutUint64(intBuf[:], uint64(issuedUnix))
	buf = append(buf, intBuf[:]...)

	return buf, nil
}

func newAttestation(
	caller *identity.Keypair,
	content address.Address,
	revision uint64,
	issuedAt time.Time,
) (*Attestation, error) {
	a := &Attestation{
		Caller:   caller.Identity(),
		Content:  content,
		Revision: revision,
		IssuedAt: issuedAt.Truncate(time.Second).UTC(),
	}

	statement, err := a.statementBytes()
	if err != nil {
		return nil, err
	}
	sig, err := caller.Sign(statement)
	if err != nil {
		return nil, fmt.Errorf("sign attestation: %w", err)
	}
	a.Signature = sig
	return a, nil
}

// Verify checks the attestation signature against the embedded caller
// identity.
func (a *Attestation) Verify() bool {
	statement, err := a.statementBytes()
	if err != nil {
		return false
	}
	return a.Caller.Verify(statement, a.Signature)
}

// Marshal serializes the attestation into its canonical wire form:
// the statement followed by the 64-byte signature.
func (a *Attestation) Marshal() ([]byte, error) {
	if len(a.Signature) != ed25519.SignatureSize {
		return nil, fmt.Errorf(
			"invalid signature length: expected %d, got %d",
			ed25519.SignatureSize, len(a.Signature),
		)
	}
	statement, err := a.statementBytes()
	if err != nil {
		return nil, err
	}
	return append(statement, a.Signature...), nil
}

// UnmarshalAttestation parses a canonical attestation wire payload.
func UnmarshalAttestation(data []byte) (*Attestation, error) {
	size := 1 + identity.Size + address.Size + 8 + 8 + ed25519.SignatureSize
	if len(data) != size {
		return nil, fmt.Errorf(
			"invalid attestation length: expected %d, got %d",
			size, len(data),
		)
	}

	offset := 0
	if data[offset] != attestationVersion {
		return nil, fmt.Errorf(
			"unsupported attestation version: %d", data[offset],
		)
	}
	offset++

	a := &Attestation{}
	caller, err := identity.FromBytes(data[offset : offset+identity.Size])
	if err != nil {
		return nil, fmt.Errorf("attestation caller: %w", err)
	}
	a.Caller = caller
	offset += identity.Size

	content, err := address.FromBytes(data[offset : offset+address.Size])
	if err != nil {
		return nil, fmt.Errorf("attestation content address: %w", err)
	}
	a.Content = content
	offset += address.Size

	a.Revision = binary.BigEndian.Uint64(data[offset : offset+8])
	offset += 8

	issuedRaw := binary.BigEndian.Uint64(data[offset : offset+8])
	offset += 8
	if issuedRaw > uint64(1)<<62 {
		return nil, errors.New("issuedAt exceeds int64")
	}
	a.IssuedAt = time.Unix(int64(issuedRaw), 0).UTC()

	a.Signature = make([]byte, ed25519.SignatureSize)
	copy(a.Signature, data[offset:])

	return a, nil
}
