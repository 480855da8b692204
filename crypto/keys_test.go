package crypto

import (
	"bytes"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	uid, priv, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	msg := []byte("hello diskuto")
	sig, err := Sign(priv, msg)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if !uid.Verify(msg, sig) {
		t.Fatalf("expected signature to verify")
	}

	if uid.Verify([]byte("tampered"), sig) {
		t.Fatalf("expected signature over different bytes to fail verification")
	}
}

func TestUserIDBase58RoundTrip(t *testing.T) {
	t.Parallel()

	uid, _, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	encoded := uid.String()
	decoded, err := UserIDFromBase58(encoded)
	if err != nil {
		t.Fatalf("UserIDFromBase58 failed: %v", err)
	}
	if !uid.Equal(decoded) {
		t.Fatalf("round-trip mismatch")
	}
}

func TestUserIDFromBytesLengthChecks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		n    int
	}{
		{"too short", 16},
		{"too long", 33},
		{"empty", 0},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := UserIDFromBytes(make([]byte, tc.n)); err == nil {
				t.Fatalf("expected error for length %d", tc.n)
			}
		})
	}
}

func TestSignatureFromBase58InvalidEncoding(t *testing.T) {
	t.Parallel()
	if _, err := SignatureFromBase58("not-valid-base58-0OIl"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestSHA512StreamMatchesOf(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte{0xAB}, 1024)
	fromOf := SHA512Of(data)
	fromStream, err := SHA512FromStream(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("SHA512FromStream failed: %v", err)
	}
	if !fromOf.Equal(fromStream) {
		t.Fatalf("hash mismatch between SHA512Of and SHA512FromStream")
	}
}

func TestSHA512FromBytesLength(t *testing.T) {
	t.Parallel()
	if _, err := SHA512FromBytes(make([]byte, 31)); err == nil {
		t.Fatalf("expected error for 31-byte (temp-key-length) input")
	}
	if _, err := SHA512FromBytes(make([]byte, SHA512Size)); err != nil {
		t.Fatalf("unexpected error for correctly sized input: %v", err)
	}
}
