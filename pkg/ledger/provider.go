// Package ledger provides read access to on-chain wallet state: balances
// and held assets. The preparer uses it to enforce eligibility locally
// before any proof work starts.
package ledger

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// HeldAsset is one asset in the wallet, with its collection when the asset
// carries verified collection metadata.
type HeldAsset struct {
	AssetID    solana.PublicKey
	Collection solana.PublicKey
	Burnt      bool
}

// DataProvider reads wallet state from the ledger.
type DataProvider interface {
	// GetBalance returns the native balance in lamports.
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)

	// GetHeldAssets lists the wallet's token assets.
	GetHeldAssets(ctx context.Context, account solana.PublicKey) ([]HeldAsset, error)
}
