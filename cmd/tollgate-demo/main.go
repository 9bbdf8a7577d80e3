// tollgate-demo walks the full protocol against a throwaway ledger:
// a seller registers an encrypted-key record, a buyer purchases
// access, and the buyer proves access to a hypothetical key issuer.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/tollgated/tollgate"
	"github.com/tollgated/tollgate/pkg/identity"
	"github.com/tollgated/tollgate/pkg/logging"
	"github.com/tollgated/tollgate/pkg/registry"
	"github.com/tollgated/tollgate/pkg/verifier"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "tollgate-demo: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dataDir := flag.String("data", "", "ledger directory (default: temporary)")
	price := flag.Uint64("price", 1000, "content price in base units")
	payeeHex := flag.String("payee", "",
		"owner identity the buyer expects to pay, hex (default: the generated seller)")
	flag.Parse()

	dir := *dataDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "tollgate-demo-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	log := logging.New(slog.LevelDebug)
	tg, err := tollgate.Open(tollgate.Config{
		Path:          dir,
		MinimumFreeGB: 1,
		Logger:        log,
	})
	if err != nil {
		return err
	}
	defer tg.Close()

	seller, err := identity.NewKeypair()
	if err != nil {
		return err
	}
	buyer, err := identity.NewKeypair()
	if err != nil {
		return err
	}

	_, contentAddr, err := tg.Registry().Register(seller, registry.RegisterParams{
		Owner:   seller.Identity(),
		Name:    "doc1",
		Scheme:  2,
		KeyBlob: []byte("demo encrypted payload key"),
		Price:   *price,
	})
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	if err := tg.Credit(buyer.Identity(), *price); err != nil {
		return fmt.Errorf("fund buyer: %w", err)
	}

	// The payee is the buyer's statement of who it intends to pay; a
	// mismatch with the registered owner aborts the purchase.
	payee := seller.Identity()
	if *payeeHex != "" {
		payee, err = identity.FromHexadecimal(*payeeHex)
		if err != nil {
			return fmt.Errorf("parse payee: %w", err)
		}
	}

	rcpt, receiptAddr, err := tg.Purchases().Purchase(
		buyer, contentAddr, payee,
	)
	if err != nil {
		return fmt.Errorf("purchase: %w", err)
	}
	log.Info("receipt issued", "revision", rcpt.Revision)

	full := verifier.FormatIdentifier(seller.Identity(), "doc1")
	attestation, err := tg.Verifier().AssertAccess(
		buyer, full, contentAddr, receiptAddr,
	)
	if err != nil {
		return fmt.Errorf("assert access: %w", err)
	}

	wire, err := attestation.Marshal()
	if err != nil {
		return err
	}

	fmt.Printf("seller identity: %s\n", seller.Identity().Hex())
	fmt.Printf("content address: %s\n", contentAddr.Hex())
	fmt.Printf("receipt address: %s\n", receiptAddr.Hex())
	fmt.Printf("attestation:     %s\n", hex.EncodeToString(wire))
	fmt.Printf("verifies:        %v\n", attestation.Verify())
	return nil
}
