// Package apperr classifies errors into the taxonomy spec.md §7 defines, so
// that the HTTP layer can map them to status codes in one place instead of
// scattering http.Error calls through every handler.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one entry in the error taxonomy from spec.md §7.
type Kind int

const (
	// KindInvalidInput covers malformed UserID/Signature, oversized items,
	// unparseable records, bad attachment file names, negative sizes.
	KindInvalidInput Kind = iota
	// KindSignatureInvalid means UserID.Verify returned false.
	KindSignatureInvalid
	// KindUnauthorized means the ingest quota policy rejected the item.
	KindUnauthorized
	// KindNotFound means the resource doesn't exist, or exists but its
	// author isn't in known_users (the two are indistinguishable by design).
	KindNotFound
	// KindHashMismatch means uploaded attachment bytes didn't hash to the
	// declared SHA-512.
	KindHashMismatch
	// KindDuplicate means the item was already stored; treated as
	// idempotent success at the API boundary.
	KindDuplicate
	// KindConflict means a uniqueness invariant was violated unexpectedly.
	KindConflict
	// KindStorage means a database or filesystem I/O failure.
	KindStorage
	// KindIntegrity means an invariant was violated at runtime, e.g. a
	// stored blob's length didn't match its manifest size.
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindSignatureInvalid:
		return "signature_invalid"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindHashMismatch:
		return "hash_mismatch"
	case KindDuplicate:
		return "duplicate"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	case KindIntegrity:
		return "integrity"
	default:
		return "unknown"
	}
}

// E is an error carrying a Kind alongside a wrapped cause.
type E struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *E) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *E) Unwrap() error { return e.Cause }

// New builds an *E with no wrapped cause.
func New(kind Kind, msg string) error {
	return &E{Kind: kind, Msg: msg}
}

// Wrap builds an *E wrapping cause, or returns nil if cause is nil.
func Wrap(kind Kind, msg string, cause error) error {
	if cause == nil {
		return nil
	}
	return &E{Kind: kind, Msg: msg, Cause: cause}
}

// As extracts the Kind of err if it (or something it wraps) is an *E.
// Unclassified errors default to KindStorage, since every unexpected error
// from the persistence layer is, from the caller's perspective, an I/O
// failure.
func As(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}
