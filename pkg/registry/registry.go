// Package registry implements registration of sellable content. A
// registration allocates a ContentRecord at the deterministic content
// address; creation is compare-and-create, so re-registering an
// occupied address fails and the revision counter of a record is fixed
// at its initial value for the lifetime of this protocol version.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/tollgated/tollgate/internal/ledgerstore"
	"github.com/tollgated/tollgate/pkg/address"
	"github.com/tollgated/tollgate/pkg/identity"
	"github.com/tollgated/tollgate/pkg/record"
)

// Registry owns content metadata records.
type Registry struct {
	store *ledgerstore.Store
	log   *slog.Logger
}

// New creates a Registry over the given store.
func New(store *ledgerstore.Store, log *slog.Logger) *Registry {
	return &Registry{store: store, log: log}
}

// RegisterParams holds the inputs of a registration.
type RegisterParams struct {
	// Owner is the asserted owner identity; it must match the signer.
	Owner identity.Identity
	// Name identifies the content under this owner.
	Name string
	// Scheme tags the encryption scheme of KeyBlob.
	Scheme uint8
	// KeyBlob is the opaque encrypted payload key, at most
	// record.MaxKeyBlobSize bytes.
	KeyBlob []byte
	// Price is the purchase price in the smallest currency unit.
	Price uint64
}

// Register creates the ContentRecord for (owner, name) at its
// deterministic address. The signer must be the asserted owner.
// Returns record.ErrAlreadyExists if the address is occupied.
func (r *Registry) Register(
	signer *identity.Keypair,
	params RegisterParams,
) (*record.ContentRecord, address.Address, error) {
	if signer == nil {
		return nil, address.Address{}, fmt.Errorf(
			"register: signer must not be nil",
		)
	}
	if !signer.Identity().Equal(params.Owner) {
		return nil, address.Address{}, fmt.Errorf(
			"register: signer %s is not the asserted owner %s: %w",
			signer.Identity().Hex(), params.Owner.Hex(),
			record.ErrInvalidOwner,
		)
	}
	if len(params.KeyBlob) > record.MaxKeyBlobSize {
		return nil, address.Address{}, fmt.Errorf(
			"register: key blob too large: %d bytes, maximum %d",
			len(params.KeyBlob), record.MaxKeyBlobSize,
		)
	}

	rec := &record.ContentRecord{
		Controller: record.AccessController,
		Owner:      params.Owner,
		Scheme:     params.Scheme,
		KeyBlob:    append([]byte{}, params.KeyBlob...),
		Price:      params.Price,
		Revision:   record.InitialRevision,
	}

	payload, err := record.MarshalContent(rec)
	if err != nil {
		return nil, address.Address{}, fmt.Errorf("register: %w", err)
	}

	addr := address.ForContent(params.Owner, params.Name)
	if err := r.store.CreateRecord(addr, payload); err != nil {
		return nil, address.Address{}, fmt.Errorf(
			"register %q for %s: %w",
			params.Name, params.Owner.Hex(), err,
		)
	}

	r.log.Info("content registered",
		"owner", params.Owner.Hex(),
		"name", params.Name,
		"address", addr.Hex(),
		"scheme", params.Scheme,
		"price", params.Price,
	)
	return rec, addr, nil
}
