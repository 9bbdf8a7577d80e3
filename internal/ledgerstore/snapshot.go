package ledgerstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v4"
	"github.com/ulikunitz/xz"
)

// snapshotMagic starts every snapshot stream, followed by a format
// version byte.
var snapshotMagic = []byte("TGSNAP")

const snapshotVersion = 1

// Snapshot writes an xz-compressed dump of every key in the store.
// The dump contains records and balances alike; restoring it onto an
// empty store reproduces the exact ledger state.
func (s *Store) Snapshot(w io.Writer) error {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("snapshot: open xz writer: %w", err)
	}

	if _, err := xw.Write(append(append([]byte{}, snapshotMagic...), snapshotVersion)); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}

	var entries uint64
	err = s.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		var lenBuf [4]byte
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			binary.BigEndian.PutUint32(lenBuf[:], uint32(len(key)))
			if _, err := xw.Write(lenBuf[:]); err != nil {
				return err
			}
			if _, err := xw.Write(key); err != nil {
				return err
			}
			binary.BigEndian.PutUint32(lenBuf[:], uint32(len(val)))
			if _, err := xw.Write(lenBuf[:]); err != nil {
				return err
			}
			if _, err := xw.Write(val); err != nil {
				return err
			}
			entries++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	if err := xw.Close(); err != nil {
		return fmt.Errorf("snapshot: close xz writer: %w", err)
	}

	s.log.WithField("entries", entries).Info("snapshot written")
	return nil
}

// Restore loads a snapshot stream produced by Snapshot. Existing keys
// are overwritten; the caller is responsible for restoring onto a
// store it considers disposable.
func (s *Store) Restore(r io.Reader) error {
	xr, err := xz.NewReader(r)
	if err != nil {
		return fmt.Errorf("restore: open xz reader: %w", err)
	}

	header := make([]byte, len(snapshotMagic)+1)
	if _, err := io.ReadFull(xr, header); err != nil {
		return fmt.Errorf("restore: read header: %w", err)
	}
	if string(header[:len(snapshotMagic)]) != string(snapshotMagic) {
		return errors.New("restore: not a tollgate snapshot")
	}
	if header[len(snapshotMagic)] != snapshotVersion {
		return fmt.Errorf(
			"restore: unsupported snapshot version: %d",
			header[len(snapshotMagic)],
		)
	}

	wb := s.badgerDB.NewWriteBatch()
	defer wb.Cancel()

	var entries uint64
	for {
		key, err := readSizedChunk(xr)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("restore: read key: %w", err)
		}
		val, err := readSizedChunk(xr)
		if err != nil {
			return fmt.Errorf("restore: read value: %w", err)
		}

		if err := wb.Set(key, val); err != nil {
			return fmt.Errorf("restore: write entry: %w", err)
		}
		entries++
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("restore: flush: %w", err)
	}

	s.log.WithField("entries", entries).Info("snapshot restored")
	return nil
}

func readSizedChunk(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	chunk := make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(r, chunk); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return chunk, nil
}
