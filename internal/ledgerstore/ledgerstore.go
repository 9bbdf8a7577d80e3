// Package ledgerstore is the badger-backed keyed record store shared
// by the registry, purchase and verifier components. Badger update
// transactions are the atomicity host of the protocol: exclusive
// creation and the purchase commit each run inside a single
// serializable transaction, so racing creators see ErrAlreadyExists
// and a failed purchase leaves neither a partial transfer nor a
// half-created receipt.
package ledgerstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/tollgated/tollgate/pkg/address"
	"github.com/tollgated/tollgate/pkg/identity"
	"github.com/tollgated/tollgate/pkg/record"
)

// ErrInsufficientFunds means a buyer's balance cannot cover a price.
// The enclosing transaction is aborted like any other failure.
var ErrInsufficientFunds = errors.New("tollgate: insufficient funds")

// Key prefixes. Records live under their deterministic address;
// balances under the bare identity.
var (
	prefixRecord  = []byte("r/")
	prefixBalance = []byte("b/")
)

type StoreConfig struct {
	Path          string // data directory
	MinimumFreeGB uint   // refuse to open below this free-space threshold
	Logger        *logrus.Logger
	SkipDiskCheck bool // used by tests on exotic filesystems
}

type Store struct {
	config       StoreConfig
	badgerDB     *badger.DB
	log          *logrus.Logger
	readCounter  uint64
	writeCounter uint64
}

func New(config StoreConfig) (*Store, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}

	if config.Path == "" {
		return nil, errors.New("ledgerstore: data path must not be empty")
	}

	if !config.SkipDiskCheck {
		if err := checkFreeSpace(config.Path, config.MinimumFreeGB, config.Logger); err != nil {
			return nil, fmt.Errorf("ledgerstore: %w", err)
		}
	}

	opts := badger.DefaultOptions(config.Path)
	opts.Logger = nil
	// Receipts and transfers must survive a crash; this store is tiny
	// compared to a content store, so synchronous writes are affordable.
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ledgerstore: open badger at %s: %w", config.Path, err)
	}

	return &Store{
		config:   config,
		badgerDB: db,
		log:      config.Logger,
	}, nil
}

func recordKey(addr address.Address) []byte {
	return append(append([]byte{}, prefixRecord...), addr[:]...)
}

func balanceKey(id identity.Identity) []byte {
	return append(append([]byte{}, prefixBalance...), id[:]...)
}

// GetRecord reads the payload stored at addr. Returns
// record.ErrNotFound if the slot is empty.
func (s *Store) GetRecord(addr address.Address) ([]byte, error) {
	atomic.AddUint64(&s.readCounter, 1)

	var value []byte
	err := s.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(addr))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, record.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", addr.Hex(), err)
	}
	return value, nil
}

// CreateRecord writes payload at addr if and only if the slot is
// empty. Returns record.ErrAlreadyExists when occupied; exactly one of
// two racing creators succeeds.
func (s *Store) CreateRecord(addr address.Address, payload []byte) error {
	atomic.AddUint64(&s.writeCounter, 1)

	key := recordKey(addr)
	err := s.badgerDB.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return record.ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, payload)
	})
	if errors.Is(err, record.ErrAlreadyExists) {
		return record.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create record %s: %w", addr.Hex(), err)
	}

	s.log.WithFields(logrus.Fields{
		"address": addr.Hex(),
		"bytes":   len(payload),
	}).Debug("record created")
	return nil
}

// PutRecord overwrites the payload at addr. This is the owner-side
// mutation path (revision advancement); it is not reachable through
// the public protocol surface.
func (s *Store) PutRecord(addr address.Address, payload []byte) error {
	atomic.AddUint64(&s.writeCounter, 1)

	err := s.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(addr), payload)
	})
	if err != nil {
		return fmt.Errorf("put record %s: %w", addr.Hex(), err)
	}
	return nil
}

// Balance returns the funds held by id. An absent account has balance
// zero; account creation mechanics live outside this protocol.
func (s *Store) Balance(id identity.Identity) (uint64, error) {
	atomic.AddUint64(&s.readCounter, 1)

	var balance uint64
	err := s.badgerDB.View(func(txn *badger.Txn) error {
		b, err := readBalance(txn, id)
		balance = b
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("read balance of %s: %w", id.Hex(), err)
	}
	return balance, nil
}

// Credit adds amount to id's balance. This is the funding seam for the
// hosting environment; the protocol itself only moves funds through
// CommitPurchase.
func (s *Store) Credit(id identity.Identity, amount uint64) error {
	atomic.AddUint64(&s.writeCounter, 1)

	err := s.badgerDB.Update(func(txn *badger.Txn) error {
		balance, err := readBalance(txn, id)
		if err != nil {
			return err
		}
		return writeBalance(txn, id, balance+amount)
	})
	if err != nil {
		return fmt.Errorf("credit %s: %w", id.Hex(), err)
	}
	return nil
}

// CommitPurchase executes the purchase write set as one transaction:
// load and decode the content record, check the owner reference, verify
// the receipt slot is empty, move the record's price from buyer to
// owner, create the receipt bound to the record's current revision.
// Any failure aborts the whole transaction. Price and revision are the
// values on the record at commit time; a record mutation is either
// serialized before this transaction and fully visible to it, or after
// it and invisible.
func (s *Store) CommitPurchase(
	buyer identity.Identity,
	contentAddr address.Address,
	ownerRef identity.Identity,
	receiptAddr address.Address,
) (*record.ContentRecord, *record.AccessReceipt, error) {
	atomic.AddUint64(&s.writeCounter, 1)

	var (
		rec  *record.ContentRecord
		rcpt *record.AccessReceipt
	)
	receiptKey := recordKey(receiptAddr)
	err := s.badgerDB.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(contentAddr))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return record.ErrNotFound
		}
		if err != nil {
			return err
		}
		payload, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec, err = record.UnmarshalContent(payload)
		if err != nil {
			return err
		}
		if !ownerRef.Equal(rec.Owner) {
			return fmt.Errorf(
				"owner reference %s does not match registered owner %s: %w",
				ownerRef.Hex(), rec.Owner.Hex(), record.ErrInvalidOwner,
			)
		}

		_, err = txn.Get(receiptKey)
		if err == nil {
			return record.ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		buyerBalance, err := readBalance(txn, buyer)
		if err != nil {
			return err
		}
		if buyerBalance < rec.Price {
			return ErrInsufficientFunds
		}
		ownerBalance, err := readBalance(txn, rec.Owner)
		if err != nil {
			return err
		}
		if err := writeBalance(txn, buyer, buyerBalance-rec.Price); err != nil {
			return err
		}
		if err := writeBalance(txn, rec.Owner, ownerBalance+rec.Price); err != nil {
			return err
		}

		rcpt = &record.AccessReceipt{
			Controller: record.AccessController,
			Revision:   rec.Revision,
		}
		rcptPayload, err := record.MarshalReceipt(rcpt)
		if err != nil {
			return err
		}
		return txn.Set(receiptKey, rcptPayload)
	})
	if errors.Is(err, record.ErrNotFound) ||
		errors.Is(err, record.ErrInvalidOwner) ||
		errors.Is(err, record.ErrAlreadyExists) ||
		errors.Is(err, ErrInsufficientFunds) {
		return nil, nil, err
	}
	if err != nil {
		return nil, nil, fmt.Errorf("commit purchase at %s: %w", receiptAddr.Hex(), err)
	}

	s.log.WithFields(logrus.Fields{
		"buyer":   buyer.Hex(),
		"owner":   rec.Owner.Hex(),
		"price":   rec.Price,
		"receipt": receiptAddr.Hex(),
	}).Info("purchase committed")
	return rec, rcpt, nil
}

func readBalance(txn *badger.Txn, id identity.Identity) (uint64, error) {
	item, err := txn.Get(balanceKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var balance uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt balance entry: %d bytes", len(val))
		}
		balance = binary.BigEndian.Uint64(val)
		return nil
	})
	return balance, err
}

func writeBalance(txn *badger.Txn, id identity.Identity, balance uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], balance)
	return txn.Set(balanceKey(id), buf[:])
}

func (s *Store) Close() error {
	if err := s.badgerDB.Sync(); err != nil {
		s.log.Errorf("error syncing db on close: %v", err)
	}

	s.log.WithFields(logrus.Fields{
		"reads":  atomic.LoadUint64(&s.readCounter),
		"writes": atomic.LoadUint64(&s.writeCounter),
	}).Info("ledger store closed")
	return s.badgerDB.Close()
}
