package record

import "errors"

// Protocol error taxonomy. Every operation surfaces exactly one of
// these per failure; the enclosing store transaction is aborted, so
// callers never observe partial state.
var (
	// ErrNotFound means a referenced record is absent.
	ErrNotFound = errors.New("tollgate: record not found")

	// ErrAlreadyExists means a create collided with an occupied
	// deterministic address.
	ErrAlreadyExists = errors.New("tollgate: record already exists")

	// ErrInvalidOwner means a caller-supplied owner reference does
	// not match the content record's registered owner.
	ErrInvalidOwner = errors.New("tollgate: owner reference does not match record owner")

	// ErrInvalidRecordOwner means a record reference is not
	// controlled by the access-control subsystem, or its recomputed
	// deterministic address does not match the supplied reference.
	ErrInvalidRecordOwner = errors.New("tollgate: record not controlled by access-control subsystem")

	// ErrInvalidIdentifier means a full content identifier is
	// malformed.
	ErrInvalidIdentifier = errors.New("tollgate: invalid content identifier")

	// ErrAccessDenied means the receipt's revision snapshot no longer
	// matches the content record's current revision.
	ErrAccessDenied = errors.New("tollgate: access denied")
)
