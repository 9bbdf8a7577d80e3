package tollgate_test

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/tollgated/tollgate"
	"github.com/tollgated/tollgate/pkg/identity"
	"github.com/tollgated/tollgate/pkg/registry"
	"github.com/tollgated/tollgate/pkg/verifier"
)

func openTestLedger(t *testing.T) *tollgate.Tollgate {
	t.Helper()

	storeLog := logrus.New()
	storeLog.SetOutput(io.Discard)

	tg, err := tollgate.Open(tollgate.Config{
		Path:          t.TempDir(),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		StoreLogger:   storeLog,
		SkipDiskCheck: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tg.Close() })
	return tg
}

// The full seller/buyer/verifier walk: register doc1 at price 1000,
// buy it, and present the access proof.
func TestSellAndVerifyAccessFlow(t *testing.T) {
	tg := openTestLedger(t)

	seller, err := identity.NewKeypair()
	require.NoError(t, err)
	buyer, err := identity.NewKeypair()
	require.NoError(t, err)

	rec, contentAddr, err := tg.Registry().Register(seller, registry.RegisterParams{
		Owner:   seller.Identity(),
		Name:    "doc1",
		Scheme:  2,
		KeyBlob: []byte("encrypted key"),
		Price:   1000,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), rec.Revision)

	require.NoError(t, tg.Credit(buyer.Identity(), 1000))

	rcpt, receiptAddr, err := tg.Purchases().Purchase(
		buyer, contentAddr, seller.Identity(),
	)
	require.NoError(t, err)
	require.Equal(t, rec.Revision, rcpt.Revision)

	buyerBalance, err := tg.Balance(buyer.Identity())
	require.NoError(t, err)
	require.Equal(t, uint64(0), buyerBalance)

	sellerBalance, err := tg.Balance(seller.Identity())
	require.NoError(t, err)
	require.Equal(t, uint64(1000), sellerBalance)

	full := verifier.FormatIdentifier(seller.Identity(), "doc1")
	attestation, err := tg.Verifier().AssertAccess(
		buyer, full, contentAddr, receiptAddr,
	)
	require.NoError(t, err)
	require.True(t, attestation.Verify())

	// The attestation travels as bytes to the key issuer.
	wire, err := attestation.Marshal()
	require.NoError(t, err)
	presented, err := verifier.UnmarshalAttestation(wire)
	require.NoError(t, err)
	require.True(t, presented.Verify())
	require.True(t, presented.Caller.Equal(buyer.Identity()))
}

func TestSnapshotRestoreAcrossHandles(t *testing.T) {
	source := openTestLedger(t)

	seller, err := identity.NewKeypair()
	require.NoError(t, err)
	require.NoError(t, source.Credit(seller.Identity(), 777))

	var dump bytes.Buffer
	require.NoError(t, source.Snapshot(&dump))

	target := openTestLedger(t)
	require.NoError(t, target.Restore(&dump))

	balance, err := target.Balance(seller.Identity())
	require.NoError(t, err)
	require.Equal(t, uint64(777), balance)
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\n"), 0o600))

	cfg, err := tollgate.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "tollgate-data", cfg.Path)
	require.Equal(t, uint(1), cfg.MinimumFreeGB)
	require.NotNil(t, cfg.Logger)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := tollgate.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
