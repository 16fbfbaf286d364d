// Package chain implements the on-chain submission protocol: deterministic
// address derivation, the replay-guard instruction pair, and the
// submit/confirm state machine against the Veiled program.
package chain

import (
	"github.com/gagliardetto/solana-go"
)

// PDA seed tags, fixed by the on-chain program.
var (
	nullifierSeed  = []byte("nullifier")
	permissionSeed = []byte("permission")
)

// NullifierRecordAddress derives the replay-protection record address for a
// nullifier. Any two conforming implementations derive identical addresses
// from identical inputs.
func NullifierRecordAddress(programID solana.PublicKey, nullifier [32]byte) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{nullifierSeed, nullifier[:]},
		programID,
	)
}

// PermissionGrantAddress derives the permission-grant record address for a
// (nullifier, relying-party) pair.
func PermissionGrantAddress(programID solana.PublicKey, nullifier [32]byte, appID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{permissionSeed, nullifier[:], appID.Bytes()},
		programID,
	)
}
