package zkp

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// CircuitID identifies one of the fixed proving circuits. The set is closed;
// adding a statement means adding a variant here, a circuit in circuits.go
// and a preparer, nothing else.
type CircuitID string

const (
	CircuitAccountOwnership CircuitID = "account_ownership"
	CircuitBalanceRange     CircuitID = "balance_range"
	CircuitAssetOwnership   CircuitID = "asset_ownership"
)

func ParseCircuitID(s string) (CircuitID, error) {
	switch CircuitID(s) {
	case CircuitAccountOwnership, CircuitBalanceRange, CircuitAssetOwnership:
		return CircuitID(s), nil
	default:
		return "", fmt.Errorf("unknown circuit id '%s'", s)
	}
}

// BalanceConstraint declares a minimum balance in lamports. TokenMint nil
// means the native balance.
type BalanceConstraint struct {
	MinimumLamports uint64
	TokenMint       *solana.PublicKey
}

// AssetConstraint declares membership in an asset collection.
type AssetConstraint struct {
	Collection solana.PublicKey
}

// Requirements describes what a relying party asks the user to prove.
// Ownership is always proven; at most one of the optional constraints
// applies, asset membership taking precedence.
type Requirements struct {
	Balance *BalanceConstraint
	Asset   *AssetConstraint
}

// SelectCircuit maps requirements onto a circuit. Deterministic, total and
// side-effect free; never inferred from external state.
func SelectCircuit(req Requirements) CircuitID {
	switch {
	case req.Asset != nil:
		return CircuitAssetOwnership
	case req.Balance != nil:
		return CircuitBalanceRange
	default:
		return CircuitAccountOwnership
	}
}
