// Package purchase implements the purchase processor: it moves the
// content price from buyer to owner and issues the access receipt, as
// one store transaction. A failed purchase leaves neither a partial
// transfer nor a half-created receipt.
package purchase

import (
	"fmt"
	"log/slog"

	"github.com/tollgated/tollgate/internal/ledgerstore"
	"github.com/tollgated/tollgate/pkg/address"
	"github.com/tollgated/tollgate/pkg/identity"
	"github.com/tollgated/tollgate/pkg/record"
)

// Processor executes purchases against the ledger store.
type Processor struct {
	store *ledgerstore.Store
	log   *slog.Logger
}

// New creates a Processor over the given store.
func New(store *ledgerstore.Store, log *slog.Logger) *Processor {
	return &Processor{store: store, log: log}
}

// Purchase buys access to the content at contentAddr for the signing
// buyer. ownerRef must equal the content record's registered owner;
// this guards against redirecting the payment to an unrelated identity
// while naming the correct record. The record is read and checked
// inside the commit transaction, so the receipt snapshots the revision
// that is current at the instant the purchase commits.
//
// Fails with record.ErrNotFound if no content record exists at
// contentAddr, record.ErrInvalidOwner on an owner mismatch,
// record.ErrAlreadyExists if this buyer already holds a receipt, and
// ledgerstore.ErrInsufficientFunds if the buyer cannot pay.
func (p *Processor) Purchase(
	buyer *identity.Keypair,
	contentAddr address.Address,
	ownerRef identity.Identity,
) (*record.AccessReceipt, address.Address, error) {
	if buyer == nil {
		return nil, address.Address{}, fmt.Errorf(
			"purchase: buyer must not be nil",
		)
	}

	buyerID := buyer.Identity()
	rcptAddr := address.ForReceipt(contentAddr, buyerID)

	rec, rcpt, err := p.store.CommitPurchase(
		buyerID, contentAddr, ownerRef, rcptAddr,
	)
	if err != nil {
		return nil, address.Address{}, fmt.Errorf(
			"purchase of %s by %s: %w",
			contentAddr.Hex(), buyerID.Hex(), err,
		)
	}

	p.log.Info("access purchased",
		"content", contentAddr.Hex(),
		"buyer", buyerID.Hex(),
		"price", rec.Price,
		"revision", rcpt.Revision,
	)
	return rcpt, rcptAddr, nil
}
