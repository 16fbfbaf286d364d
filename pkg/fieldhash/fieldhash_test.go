package fieldhash

import (
	"math/big"
	"strings"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

func TestHashToFieldIsDeterministic(t *testing.T) {
	a := HashToField([]byte("veiled"))
	b := HashToField([]byte("veiled"))

	if !a.Equal(&b) {
		t.Errorf("same input produced different field elements: %s vs %s", a.String(), b.String())
	}
}

func TestHashToFieldDiffersPerInput(t *testing.T) {
	a := HashStringToField("example.com")
	b := HashStringToField("other.com")

	if a.Equal(&b) {
		t.Error("distinct domains mapped to the same field element")
	}
}

func TestHashToFieldIsReduced(t *testing.T) {
	e := HashToField([]byte{0xff, 0xff, 0xff, 0xff})

	bi := e.BigInt(new(big.Int))
	if bi.Cmp(fr.Modulus()) >= 0 {
		t.Errorf("hash output %s not reduced below the field modulus", bi.String())
	}
}

func TestMiMCChainOrderMatters(t *testing.T) {
	x := HashStringToField("x")
	y := HashStringToField("y")

	xy := MiMCChain(x, y)
	yx := MiMCChain(y, x)

	if xy.Equal(&yx) {
		t.Error("MiMC chain is order-insensitive, nullifier derivation would be ambiguous")
	}
}

func TestEncodeDomainRoundTrip(t *testing.T) {
	buf, err := EncodeDomain("example.com")
	if err != nil {
		t.Fatalf("EncodeDomain failed: %v", err)
	}

	if got := DecodeDomain(buf); got != "example.com" {
		t.Errorf("round trip mismatch: got %q", got)
	}
}

func TestEncodeDomainRejectsOversized(t *testing.T) {
	long := strings.Repeat("a", DomainByteLength+1)

	if _, err := EncodeDomain(long); err == nil {
		t.Error("domain longer than 32 bytes was accepted")
	}
}

func TestEncodeDomainRejectsEmpty(t *testing.T) {
	if _, err := EncodeDomain(""); err == nil {
		t.Error("empty domain was accepted")
	}
}

func TestEncodeDomainExactLimit(t *testing.T) {
	exact := strings.Repeat("b", DomainByteLength)

	buf, err := EncodeDomain(exact)
	if err != nil {
		t.Fatalf("32-byte domain rejected: %v", err)
	}
	if got := DecodeDomain(buf); got != exact {
		t.Errorf("round trip mismatch for full-width domain: got %q", got)
	}
}
