// Package crypto implements the cryptographic primitives diskuto items are
// built on: Ed25519 user identities and detached signatures, SHA-512
// attachment hashes, and base58 encoding for user-facing identifiers.
//
// Import hygiene: crypto depends only on the standard library plus
// mr-tron/base58. It does NOT import model, backend, or store, so that it
// stays at the lowest tier and is safe for every other package to import.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// ErrInvalidLength is returned when a byte slice doesn't match the expected
// fixed size for a UserID, Signature, or SHA512 hash.
var ErrInvalidLength = errors.New("invalid length")

// ErrInvalidEncoding is returned when a base58 string fails to decode.
var ErrInvalidEncoding = errors.New("invalid encoding")

// UserID is an Ed25519 public key identifying a user.
type UserID struct {
	key [ed25519.PublicKeySize]byte
}

// Signature is a detached Ed25519 signature over an item's bytes.
type Signature struct {
	sig [ed25519.SignatureSize]byte
}

// UserIDFromBytes validates and wraps a 32-byte Ed25519 public key.
func UserIDFromBytes(b []byte) (UserID, error) {
	var u UserID
	if len(b) != ed25519.PublicKeySize {
		return u, fmt.Errorf("user ID must be %d bytes, got %d: %w", ed25519.PublicKeySize, len(b), ErrInvalidLength)
	}
	copy(u.key[:], b)
	return u, nil
}

// UserIDFromBase58 decodes a base58-encoded user ID, as it appears in URLs.
func UserIDFromBase58(s string) (UserID, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return UserID{}, fmt.Errorf("decoding user ID %q: %w", s, ErrInvalidEncoding)
	}
	return UserIDFromBytes(b)
}

// Bytes returns the raw 32-byte public key.
func (u UserID) Bytes() []byte {
	out := make([]byte, len(u.key))
	copy(out, u.key[:])
	return out
}

// String returns the base58 encoding of the user ID, suitable for URLs.
func (u UserID) String() string {
	return base58.Encode(u.key[:])
}

// Equal reports whether two user IDs are the same public key.
func (u UserID) Equal(o UserID) bool {
	return u.key == o.key
}

// SignatureFromBytes validates and wraps a 64-byte detached signature.
func SignatureFromBytes(b []byte) (Signature, error) {
	var s Signature
	if len(b) != ed25519.SignatureSize {
		return s, fmt.Errorf("signature must be %d bytes, got %d: %w", ed25519.SignatureSize, len(b), ErrInvalidLength)
	}
	copy(s.sig[:], b)
	return s, nil
}

// SignatureFromBase58 decodes a base58-encoded signature, as it appears in URLs.
func SignatureFromBase58(s string) (Signature, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Signature{}, fmt.Errorf("decoding signature %q: %w", s, ErrInvalidEncoding)
	}
	return SignatureFromBytes(b)
}

// Bytes returns the raw 64-byte signature.
func (s Signature) Bytes() []byte {
	out := make([]byte, len(s.sig))
	copy(out, s.sig[:])
	return out
}

// String returns the base58 encoding of the signature.
func (s Signature) String() string {
	return base58.Encode(s.sig[:])
}

// Verify reports whether sig is a valid detached Ed25519 signature over
// itemBytes under this user's public key. Verification runs in constant time
// with respect to the signature bytes (ed25519.Verify's guarantee); failure
// is always a plain false, never an error.
func (u UserID) Verify(itemBytes []byte, sig Signature) bool {
	return ed25519.Verify(u.key[:], itemBytes, sig.sig[:])
}

// GenerateKeyPair returns a fresh Ed25519 key pair. Used by tests to mint
// user identities.
func GenerateKeyPair() (UserID, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return UserID{}, nil, fmt.Errorf("generating key pair: %w", err)
	}
	uid, err := UserIDFromBytes(pub)
	if err != nil {
		return UserID{}, nil, err
	}
	return uid, priv, nil
}

// Sign produces a detached signature over itemBytes using priv. Exposed for
// tests that need to construct well-formed signed items without a full
// client implementation.
func Sign(priv ed25519.PrivateKey, itemBytes []byte) (Signature, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return Signature{}, fmt.Errorf("private key must be %d bytes: %w", ed25519.PrivateKeySize, ErrInvalidLength)
	}
	sig := ed25519.Sign(priv, itemBytes)
	return SignatureFromBytes(sig)
}
