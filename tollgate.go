// Package tollgate implements a rights-gating ledger: content owners
// register priced, deterministically addressed metadata records for
// off-chain encrypted payloads, buyers purchase access and receive
// revision-bound receipts, and an external decryption-key service can
// verify proof of current access without a database of its own.
package tollgate

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tollgated/tollgate/internal/ledgerstore"
	"github.com/tollgated/tollgate/pkg/identity"
	"github.com/tollgated/tollgate/pkg/logging"
	"github.com/tollgated/tollgate/pkg/purchase"
	"github.com/tollgated/tollgate/pkg/registry"
	"github.com/tollgated/tollgate/pkg/verifier"
)

// Tollgate is the main handle. It owns the ledger store and wires the
// three protocol components over it.
type Tollgate struct {
	log    *slog.Logger
	config Config

	store     *ledgerstore.Store
	registry  *registry.Registry
	purchases *purchase.Processor
	verifier  *verifier.Verifier

	closeOnce sync.Once
}

// Open opens the ledger store at config.Path and wires the protocol
// components.
func Open(config Config) (*Tollgate, error) {
	if config.Logger == nil {
		config.Logger = logging.Default()
	}
	if config.StoreLogger == nil {
		config.StoreLogger = logrus.New()
		config.StoreLogger.SetLevel(logrus.WarnLevel)
	}

	store, err := ledgerstore.New(ledgerstore.StoreConfig{
		Path:          config.Path,
		MinimumFreeGB: config.MinimumFreeGB,
		Logger:        config.StoreLogger,
		SkipDiskCheck: config.SkipDiskCheck,
	})
	if err != nil {
		return nil, fmt.Errorf("tollgate: %w", err)
	}

	tg := &Tollgate{
		log:       config.Logger,
		config:    config,
		store:     store,
		registry:  registry.New(store, config.Logger),
		purchases: purchase.New(store, config.Logger),
		verifier:  verifier.New(store, config.Logger),
	}

	tg.log.Info("tollgate ledger opened", "path", config.Path)
	return tg, nil
}

// Registry returns the content registry.
func (tg *Tollgate) Registry() *registry.Registry {
	return tg.registry
}

// Purchases returns the purchase processor.
func (tg *Tollgate) Purchases() *purchase.Processor {
	return tg.purchases
}

// Verifier returns the access verifier.
func (tg *Tollgate) Verifier() *verifier.Verifier {
	return tg.verifier
}

// Credit adds funds to an identity's balance. Account funding is a
// host concern, not a protocol operation; this is the seam the host
// uses.
func (tg *Tollgate) Credit(id identity.Identity, amount uint64) error {
	return tg.store.Credit(id, amount)
}

// Balance returns the funds held by an identity.
func (tg *Tollgate) Balance(id identity.Identity) (uint64, error) {
	return tg.store.Balance(id)
}

// Snapshot writes an xz-compressed dump of the whole ledger to w.
func (tg *Tollgate) Snapshot(w io.Writer) error {
	return tg.store.Snapshot(w)
}

// Restore loads a snapshot previously written by Snapshot.
func (tg *Tollgate) Restore(r io.Reader) error {
	return tg.store.Restore(r)
}

// Close syncs and closes the underlying store. Safe to call more than
// once.
func (tg *Tollgate) Close() error {
	var err error
	tg.closeOnce.Do(func() {
		err = tg.store.Close()
		tg.log.Info("tollgate ledger closed")
	})
	return err
}
