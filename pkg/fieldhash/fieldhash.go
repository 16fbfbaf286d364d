// Package fieldhash maps bytes and strings onto the BN254 scalar field and
// provides the off-circuit MiMC chain used for nullifier derivation. The
// mapping is shared bit-for-bit with the in-circuit hash: any divergence
// breaks cross-circuit nullifier comparability.
package fieldhash

import (
	"crypto/sha256"
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	"github.com/digitaldrreamer/veiled-sub002/pkg/reasoncodes"
)

// DomainByteLength is the fixed on-chain domain buffer size.
const DomainByteLength = 32

var errEmptyDomain = errors.New("domain is empty")

// HashToField hashes arbitrary bytes with SHA-256 and reduces the digest
// into the scalar field. Every hash-derived value in the protocol passes
// through this reduction before use.
func HashToField(data []byte) fr.Element {
	digest := sha256.Sum256(data)

	var e fr.Element
	e.SetBytes(digest[:])
	return e
}

// HashStringToField is HashToField over the UTF-8 bytes of s.
func HashStringToField(s string) fr.Element {
	return HashToField([]byte(s))
}

// MiMCChain absorbs the canonical 32-byte encodings of the elements into a
// MiMC sponge and reduces the sum. Matches the in-circuit
// std/hash/mimc chain over the same inputs in the same order.
func MiMCChain(elems ...fr.Element) fr.Element {
	h := mimc.NewMiMC()
	for _, e := range elems {
		b := e.Bytes()
		h.Write(b[:])
	}

	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

// EncodeDomain validates a relying-party domain and encodes it as the fixed
// null-padded 32-byte buffer the on-chain program stores. Validation runs
// before any hashing of the domain.
func EncodeDomain(domain string) ([DomainByteLength]byte, error) {
	var buf [DomainByteLength]byte

	raw := []byte(domain)
	if len(raw) == 0 {
		return buf, errEmptyDomain
	}
	if len(raw) > DomainByteLength {
		return buf, reasoncodes.ErrDomainTooLong
	}

	copy(buf[:], raw)
	return buf, nil
}

// DecodeDomain reads a null-terminated domain back out of its fixed buffer.
func DecodeDomain(buf [DomainByteLength]byte) string {
	end := len(buf)
	for i, b := range buf {
		if b == 0 {
			end = i
			break
		}
	}
	return string(buf[:end])
}
