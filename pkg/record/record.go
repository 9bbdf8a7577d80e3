// Package record defines the two record families of the tollgate
// ledger and their stable binary layout. The layout is the contract
// between the registry/purchase side (which writes records) and the
// access verifier (which re-reads them without any shared in-process
// state), so it is versioned and fixed-width rather than implicit.
package record

import (
	"crypto/sha256"

	"github.com/tollgated/tollgate/pkg/identity"
)

// MaxKeyBlobSize bounds the encrypted key blob carried by a content
// record.
const MaxKeyBlobSize = 1024

// InitialRevision is the revision counter value of a freshly
// registered content record.
const InitialRevision uint64 = 1

// Controller is the ownership marker stamped into every record written
// by the access-control subsystem. Records presented to the verifier
// that carry a different marker are foreign and rejected.
type Controller [sha256.Size]byte

// AccessController is the controller marker of this subsystem.
var AccessController = Controller(sha256.Sum256([]byte("tollgate/access-control/v1")))

// Equal returns true if this controller equals the other controller.
func (c Controller) Equal(other Controller) bool {
	return c == other
}

// ContentRecord is the sellable content metadata registered by an
// owner. It lives at the deterministic content address derived from
// (owner, name); the name itself is not stored, it is an addressing
// seed only.
type ContentRecord struct {
	// Controller is the subsystem ownership marker.
	Controller Controller
	// Owner is the identity that registered the content and receives
	// purchase payments.
	Owner identity.Identity
	// Scheme tags the encryption scheme of the key blob.
	Scheme uint8
	// KeyBlob is the opaque encrypted payload key, at most
	// MaxKeyBlobSize bytes.
	KeyBlob []byte
	// Price is the purchase price in the smallest currency unit.
	Price uint64
	// Revision is the monotonic revision counter. Advancing it past a
	// receipt's snapshot implicitly revokes that receipt.
	Revision uint64
}

// AccessReceipt is the immutable proof-of-purchase record created at
// the deterministic receipt address derived from (content address,
// buyer). Its existence implies the buyer paid the content price at
// the recorded revision.
type AccessReceipt struct {
	// Controller is the subsystem ownership marker.
	Controller Controller
	// Revision is the content record's revision at the instant of
	// purchase.
	Revision uint64
}
