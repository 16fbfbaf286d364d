package zkp

import (
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestSelectCircuitOwnershipByDefault(t *testing.T) {
	if got := SelectCircuit(Requirements{}); got != CircuitAccountOwnership {
		t.Errorf("empty requirements selected %s", got)
	}
}

func TestSelectCircuitBalance(t *testing.T) {
	req := Requirements{Balance: &BalanceConstraint{MinimumLamports: 1_000_000_000}}

	if got := SelectCircuit(req); got != CircuitBalanceRange {
		t.Errorf("balance requirement selected %s", got)
	}
}

func TestSelectCircuitAssetWinsOverBalance(t *testing.T) {
	collection := solana.NewWallet().PublicKey()
	req := Requirements{
		Balance: &BalanceConstraint{MinimumLamports: 1},
		Asset:   &AssetConstraint{Collection: collection},
	}

	if got := SelectCircuit(req); got != CircuitAssetOwnership {
		t.Errorf("asset constraint did not take precedence, selected %s", got)
	}
}

func TestSelectCircuitIsPure(t *testing.T) {
	req := Requirements{Balance: &BalanceConstraint{MinimumLamports: 5}}

	first := SelectCircuit(req)
	for i := 0; i < 10; i++ {
		if got := SelectCircuit(req); got != first {
			t.Fatalf("selection changed between calls: %s then %s", first, got)
		}
	}
}

func TestParseCircuitID(t *testing.T) {
	for _, id := range []CircuitID{CircuitAccountOwnership, CircuitBalanceRange, CircuitAssetOwnership} {
		parsed, err := ParseCircuitID(string(id))
		if err != nil {
			t.Errorf("ParseCircuitID(%s) failed: %v", id, err)
		}
		if parsed != id {
			t.Errorf("ParseCircuitID(%s) = %s", id, parsed)
		}
	}

	if _, err := ParseCircuitID("age_over_18"); err == nil {
		t.Error("unknown circuit id was accepted")
	}
}
