package verifier

import (
	"errors"
	"testing"

	"github.com/tollgated/tollgate/pkg/identity"
	"github.com/tollgated/tollgate/pkg/record"
)

func mustKeypair(t *testing.T) *identity.Keypair {
	t.Helper()
	kp, err := identity.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair: %v", err)
	}
	return kp
}

func TestParseIdentifierRoundtrip(t *testing.T) {
	owner := mustKeypair(t).Identity()
	full := FormatIdentifier(owner, "reports/q3.pdf")

	parsedOwner, name, err := ParseIdentifier(full)
	if err != nil {
		t.Fatalf("ParseIdentifier: %v", err)
	}
	if !parsedOwner.Equal(owner) {
		t.Error("owner mismatch")
	}
	if name != "reports/q3.pdf" {
		t.Errorf("name mismatch: %q", name)
	}
}

// Names may contain the separator byte; only offset 34 is structural.
func TestParseIdentifierNameMayContainSeparator(t *testing.T) {
	owner := mustKeypair(t).Identity()
	full := FormatIdentifier(owner, "a/b/c")

	_, name, err := ParseIdentifier(full)
	if err != nil {
		t.Fatalf("ParseIdentifier: %v", err)
	}
	if name != "a/b/c" {
		t.Errorf("name mismatch: %q", name)
	}
}

func TestParseIdentifierMinimumLength(t *testing.T) {
	owner := mustKeypair(t).Identity()
	full := FormatIdentifier(owner, "")

	if len(full) != 35 {
		t.Fatalf("empty-name identifier: expected 35 bytes, got %d", len(full))
	}
	if _, _, err := ParseIdentifier(full); err != nil {
		t.Errorf("35-byte identifier must parse: %v", err)
	}

	_, _, err := ParseIdentifier(full[:34])
	if !errors.Is(err, record.ErrInvalidIdentifier) {
		t.Errorf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestParseIdentifierWrongMarker(t *testing.T) {
	owner := mustKeypair(t).Identity()

	full := FormatIdentifier(owner, "doc1")
	full[0] = '1'
	if _, _, err := ParseIdentifier(full); !errors.Is(err, record.ErrInvalidIdentifier) {
		t.Errorf("expected ErrInvalidIdentifier, got %v", err)
	}

	full = FormatIdentifier(owner, "doc1")
	full[1] = 'X'
	if _, _, err := ParseIdentifier(full); !errors.Is(err, record.ErrInvalidIdentifier) {
		t.Errorf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestParseIdentifierWrongSeparator(t *testing.T) {
	owner := mustKeypair(t).Identity()

	full := FormatIdentifier(owner, "doc1")
	full[34] = '\\'
	if _, _, err := ParseIdentifier(full); !errors.Is(err, record.ErrInvalidIdentifier) {
		t.Errorf("expected ErrInvalidIdentifier, got %v", err)
	}
}
