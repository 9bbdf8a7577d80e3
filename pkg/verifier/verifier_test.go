package verifier

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/tollgated/tollgate/internal/ledgerstore"
	"github.com/tollgated/tollgate/pkg/address"
	"github.com/tollgated/tollgate/pkg/identity"
	"github.com/tollgated/tollgate/pkg/purchase"
	"github.com/tollgated/tollgate/pkg/record"
	"github.com/tollgated/tollgate/pkg/registry"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fixture struct {
	store    *ledgerstore.Store
	verifier *Verifier
	owner    *identity.Keypair
	buyer    *identity.Keypair
	content  address.Address
	receipt  address.Address
	full     []byte
}

// newFixture registers "doc1" for a fresh owner and buys access for a
// fresh buyer, so every test starts from a state where assert-access
// succeeds.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	storeLog := logrus.New()
	storeLog.SetOutput(io.Discard)

	store, err := ledgerstore.New(ledgerstore.StoreConfig{
		Path:          t.TempDir(),
		Logger:        storeLog,
		SkipDiskCheck: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	owner, err := identity.NewKeypair()
	require.NoError(t, err)
	buyer, err := identity.NewKeypair()
	require.NoError(t, err)

	_, contentAddr, err := registry.New(store, log).Register(owner, registry.RegisterParams{
		Owner:   owner.Identity(),
		Name:    "doc1",
		Scheme:  2,
		KeyBlob: []byte("encrypted key"),
		Price:   1000,
	})
	require.NoError(t, err)

	require.NoError(t, store.Credit(buyer.Identity(), 1000))
	_, receiptAddr, err := purchase.New(store, log).Purchase(
		buyer, contentAddr, owner.Identity(),
	)
	require.NoError(t, err)

	return &fixture{
		store:    store,
		verifier: New(store, log),
		owner:    owner,
		buyer:    buyer,
		content:  contentAddr,
		receipt:  receiptAddr,
		full:     FormatIdentifier(owner.Identity(), "doc1"),
	}
}

// bumpRevision rewrites the content record with its revision advanced,
// the owner-side mutation a future rotate operation would perform.
func (f *fixture) bumpRevision(t *testing.T) {
	t.Helper()

	payload, err := f.store.GetRecord(f.content)
	require.NoError(t, err)
	rec, err := record.UnmarshalContent(payload)
	require.NoError(t, err)

	rec.Revision++
	updated, err := record.MarshalContent(rec)
	require.NoError(t, err)
	require.NoError(t, f.store.PutRecord(f.content, updated))
}

func TestAssertAccessSucceedsAfterPurchase(t *testing.T) {
	f := newFixture(t)

	attestation, err := f.verifier.AssertAccess(
		f.buyer, f.full, f.content, f.receipt,
	)
	require.NoError(t, err)

	require.True(t, attestation.Caller.Equal(f.buyer.Identity()))
	require.Equal(t, f.content, attestation.Content)
	require.Equal(t, record.InitialRevision, attestation.Revision)
	require.True(t, attestation.Verify(),
		"attestation must verify against the caller identity")
}

func TestAssertAccessIsIdempotent(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.verifier.AssertAccess(f.buyer, f.full, f.content, f.receipt)
		require.NoError(t, err)
	}
}

func TestRevisionBumpFlipsToAccessDenied(t *testing.T) {
	f := newFixture(t)

	_, err := f.verifier.AssertAccess(f.buyer, f.full, f.content, f.receipt)
	require.NoError(t, err)

	f.bumpRevision(t)

	// The receipt itself is untouched; staleness comes purely from the
	// content record's revision moving past the snapshot.
	_, err = f.verifier.AssertAccess(f.buyer, f.full, f.content, f.receipt)
	require.ErrorIs(t, err, record.ErrAccessDenied)
}

func TestAssertAccessWithoutReceiptFails(t *testing.T) {
	f := newFixture(t)

	stranger, err := identity.NewKeypair()
	require.NoError(t, err)

	strangerReceipt := address.ForReceipt(f.content, stranger.Identity())
	_, err = f.verifier.AssertAccess(stranger, f.full, f.content, strangerReceipt)
	require.ErrorIs(t, err, record.ErrNotFound)
}

func TestAssertAccessRejectsSubstitutedReceipt(t *testing.T) {
	f := newFixture(t)

	stranger, err := identity.NewKeypair()
	require.NoError(t, err)

	// The stranger presents the real buyer's receipt: both records
	// exist and carry the right controller, but the receipt address
	// re-derived for the stranger does not match.
	_, err = f.verifier.AssertAccess(stranger, f.full, f.content, f.receipt)
	require.ErrorIs(t, err, record.ErrInvalidRecordOwner)
}

func TestAssertAccessRejectsMismatchedContentRef(t *testing.T) {
	f := newFixture(t)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, otherAddr, err := registry.New(f.store, log).Register(f.owner, registry.RegisterParams{
		Owner:   f.owner.Identity(),
		Name:    "doc2",
		Scheme:  2,
		KeyBlob: []byte("other key"),
		Price:   500,
	})
	require.NoError(t, err)

	// Identifier names doc1 but the supplied reference is doc2's
	// record.
	_, err = f.verifier.AssertAccess(f.buyer, f.full, otherAddr, f.receipt)
	require.ErrorIs(t, err, record.ErrInvalidRecordOwner)
}

func TestAssertAccessRejectsForeignController(t *testing.T) {
	f := newFixture(t)

	payload, err := f.store.GetRecord(f.content)
	require.NoError(t, err)
	rec, err := record.UnmarshalContent(payload)
	require.NoError(t, err)

	rec.Controller[0] ^= 0xFF
	forged, err := record.MarshalContent(rec)
	require.NoError(t, err)
	require.NoError(t, f.store.PutRecord(f.content, forged))

	_, err = f.verifier.AssertAccess(f.buyer, f.full, f.content, f.receipt)
	require.ErrorIs(t, err, record.ErrInvalidRecordOwner)
}

func TestAssertAccessMalformedIdentifier(t *testing.T) {
	f := newFixture(t)

	short := f.full[:34]

	wrongMarker := append([]byte{}, f.full...)
	wrongMarker[0] = 'X'

	wrongSeparator := append([]byte{}, f.full...)
	wrongSeparator[34] = ':'

	for name, bad := range map[string][]byte{
		"short":           short,
		"wrong marker":    wrongMarker,
		"wrong separator": wrongSeparator,
	} {
		_, err := f.verifier.AssertAccess(f.buyer, bad, f.content, f.receipt)
		require.ErrorIs(t, err, record.ErrInvalidIdentifier, name)
	}
}

func TestAssertAccessHasNoSideEffects(t *testing.T) {
	f := newFixture(t)

	before, err := f.store.GetRecord(f.content)
	require.NoError(t, err)

	_, err = f.verifier.AssertAccess(f.buyer, f.full, f.content, f.receipt)
	require.NoError(t, err)

	after, err := f.store.GetRecord(f.content)
	require.NoError(t, err)
	require.Equal(t, before, after)

	buyerBalance, err := f.store.Balance(f.buyer.Identity())
	require.NoError(t, err)
	require.Equal(t, uint64(0), buyerBalance)
}

func TestAttestationRoundtrip(t *testing.T) {
	f := newFixture(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f.verifier.WithClock(fixedClock{now: now})

	attestation, err := f.verifier.AssertAccess(
		f.buyer, f.full, f.content, f.receipt,
	)
	require.NoError(t, err)
	require.Equal(t, now, attestation.IssuedAt)

	wire, err := attestation.Marshal()
	require.NoError(t, err)

	parsed, err := UnmarshalAttestation(wire)
	require.NoError(t, err)
	require.True(t, parsed.Caller.Equal(f.buyer.Identity()))
	require.Equal(t, attestation.Revision, parsed.Revision)
	require.Equal(t, now, parsed.IssuedAt)
	require.True(t, parsed.Verify(),
		"attestation must stay verifiable through the wire")
}

func TestAttestationTamperDetected(t *testing.T) {
	f := newFixture(t)

	attestation, err := f.verifier.AssertAccess(
		f.buyer, f.full, f.content, f.receipt,
	)
	require.NoError(t, err)

	wire, err := attestation.Marshal()
	require.NoError(t, err)

	// Flip a bit in the revision field.
	wire[1+identity.Size+address.Size] ^= 0x01
	tampered, err := UnmarshalAttestation(wire)
	require.NoError(t, err)
	require.False(t, tampered.Verify(),
		"tampered attestation must not verify")

	_, err = UnmarshalAttestation(wire[:len(wire)-1])
	require.Error(t, err, "truncated attestation must not parse")
}
