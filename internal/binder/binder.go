// Package binder builds the 105-byte verification result the on-chain
// program trusts instead of re-running proof verification:
//
//	[1: validity flag][32: SHA-256 proof digest][8: timestamp LE][64: signature]
//
// The device signer countersigns the leading 41 bytes, i.e. everything but
// the signature field itself.
package binder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/digitaldrreamer/veiled-sub002/pkg/logger"
	"github.com/digitaldrreamer/veiled-sub002/pkg/reasoncodes"
	"github.com/digitaldrreamer/veiled-sub002/pkg/signer"
)

const (
	// ResultLength is the packed verification-result size.
	ResultLength = 105

	// SignedPrefixLength is how much of the result the signer signs.
	SignedPrefixLength = 41

	digestOffset    = 1
	timestampOffset = 33
	signatureOffset = SignedPrefixLength
)

// Options tune binding behavior.
type Options struct {
	// AllowUnsigned emits a zero signature when no signer is available.
	// Test mode only; the production path refuses to degrade silently.
	AllowUnsigned bool

	// Now overrides the timestamp source in tests.
	Now func() time.Time
}

// VerificationResult is the parsed form of the packed artifact.
type VerificationResult struct {
	IsValid     bool
	ProofDigest [32]byte
	Timestamp   uint64
	Signature   [64]byte
}

// Bind digests the proof, packs the result and countersigns it with the
// device signer.
func Bind(ctx context.Context, proofBytes []byte, isValid bool, device signer.Device, opts Options) ([]byte, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	digest := sha256.Sum256(proofBytes)

	result := make([]byte, ResultLength)
	if isValid {
		result[0] = 1
	}
	copy(result[digestOffset:timestampOffset], digest[:])
	binary.LittleEndian.PutUint64(result[timestampOffset:signatureOffset], uint64(now().Unix()))

	if device == nil {
		if !opts.AllowUnsigned {
			return nil, fmt.Errorf("%w: binding requires a device signer", reasoncodes.ErrSignerUnavailable)
		}
		logger.Default().Warn("binding verification result with zero signature (insecure test mode)")
		return result, nil
	}

	sig, err := device.SignMessage(ctx, result[:SignedPrefixLength])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reasoncodes.ErrSignerUnavailable, err)
	}
	if len(sig) != signer.SignatureLength {
		return nil, fmt.Errorf("%w: signature is %d bytes, need %d",
			reasoncodes.ErrSignerUnavailable, len(sig), signer.SignatureLength)
	}

	copy(result[signatureOffset:], sig)
	return result, nil
}

// SignedMessage returns the portion of a packed result the signature
// covers.
func SignedMessage(result []byte) ([]byte, error) {
	if len(result) != ResultLength {
		return nil, fmt.Errorf("verification result is %d bytes, need %d", len(result), ResultLength)
	}
	return result[:SignedPrefixLength], nil
}

// Parse unpacks a verification result.
func Parse(result []byte) (*VerificationResult, error) {
	if len(result) != ResultLength {
		return nil, fmt.Errorf("verification result is %d bytes, need %d", len(result), ResultLength)
	}

	var out VerificationResult
	out.IsValid = result[0] == 1
	copy(out.ProofDigest[:], result[digestOffset:timestampOffset])
	out.Timestamp = binary.LittleEndian.Uint64(result[timestampOffset:signatureOffset])
	copy(out.Signature[:], result[signatureOffset:])

	return &out, nil
}
