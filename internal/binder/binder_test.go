package binder

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/digitaldrreamer/veiled-sub002/pkg/reasoncodes"
	"github.com/digitaldrreamer/veiled-sub002/pkg/signer"
)

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func TestBindLayout(t *testing.T) {
	device, err := signer.NewRandomLocal()
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}

	proof := []byte("proof-bytes")
	result, err := Bind(context.Background(), proof, true, device, Options{Now: fixedClock(1_700_000_000)})
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	if len(result) != ResultLength {
		t.Fatalf("result is %d bytes, want %d", len(result), ResultLength)
	}

	parsed, err := Parse(result)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !parsed.IsValid {
		t.Error("validity flag not set")
	}

	expectedDigest := sha256.Sum256(proof)
	if parsed.ProofDigest != expectedDigest {
		t.Error("proof digest mismatch")
	}
	if parsed.Timestamp != 1_700_000_000 {
		t.Errorf("timestamp = %d", parsed.Timestamp)
	}
}

func TestBindSignatureCoversLeading41Bytes(t *testing.T) {
	device, err := signer.NewRandomLocal()
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}

	result, err := Bind(context.Background(), []byte("proof"), true, device, Options{Now: fixedClock(1_700_000_000)})
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	message, err := SignedMessage(result)
	if err != nil {
		t.Fatalf("SignedMessage failed: %v", err)
	}
	if len(message) != SignedPrefixLength {
		t.Fatalf("signed message is %d bytes, want %d", len(message), SignedPrefixLength)
	}

	pub := ed25519.PublicKey(device.PublicKey().Bytes())
	if !ed25519.Verify(pub, message, result[SignedPrefixLength:]) {
		t.Error("signature does not verify over the leading 41 bytes")
	}
}

func TestBindTimestampChangesSignature(t *testing.T) {
	device, err := signer.NewRandomLocal()
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}

	first, err := Bind(context.Background(), []byte("proof"), true, device, Options{Now: fixedClock(1_700_000_000)})
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	second, err := Bind(context.Background(), []byte("proof"), true, device, Options{Now: fixedClock(1_700_000_001)})
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	if bytes.Equal(first[SignedPrefixLength:], second[SignedPrefixLength:]) {
		t.Error("changing the timestamp did not change the signature")
	}
}

func TestBindWithoutSignerFailsClosed(t *testing.T) {
	_, err := Bind(context.Background(), []byte("proof"), true, nil, Options{})
	if !errors.Is(err, reasoncodes.ErrSignerUnavailable) {
		t.Errorf("expected ErrSignerUnavailable, got %v", err)
	}
}

func TestBindUnsignedTestModeIsExplicit(t *testing.T) {
	result, err := Bind(context.Background(), []byte("proof"), true, nil, Options{AllowUnsigned: true})
	if err != nil {
		t.Fatalf("Bind failed in explicit test mode: %v", err)
	}

	var zero [64]byte
	if !bytes.Equal(result[SignedPrefixLength:], zero[:]) {
		t.Error("unsigned test mode produced a non-zero signature")
	}
}

type shortSigner struct{ *signer.Local }

func (s shortSigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	full, err := s.Local.SignMessage(ctx, message)
	if err != nil {
		return nil, err
	}
	return full[:32], nil
}

func TestBindRejectsShortSignature(t *testing.T) {
	local, err := signer.NewRandomLocal()
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}

	_, err = Bind(context.Background(), []byte("proof"), true, shortSigner{local}, Options{})
	if !errors.Is(err, reasoncodes.ErrSignerUnavailable) {
		t.Errorf("short signature was not rejected: %v", err)
	}
}
