package chain

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
)

// Ed25519SigVerify111111111111111111111111111, the native signature
// verification program the replay-guard instruction is paired with.
var Ed25519ProgramID = solana.MustPublicKeyFromBase58("Ed25519SigVerify111111111111111111111111111")

// anchorDiscriminator computes the 8-byte instruction tag the program
// dispatches on.
func anchorDiscriminator(name string) []byte {
	digest := sha256.Sum256([]byte("global:" + name))
	return digest[:8]
}

type verifyAuthArgs struct {
	VerificationResult []byte
	Nullifier          [32]byte
	Domain             [32]byte
}

// NewVerifyAuthInstruction builds the replay-guard instruction: create the
// nullifier record iff none exists, after validating the countersigned
// verification result against the paired ed25519 instruction.
func NewVerifyAuthInstruction(
	programID solana.PublicKey,
	authority solana.PublicKey,
	verificationResult []byte,
	nullifier [32]byte,
	domain [32]byte,
) (solana.Instruction, error) {
	recordAddress, _, err := NullifierRecordAddress(programID, nullifier)
	if err != nil {
		return nil, fmt.Errorf("derive nullifier record address: %w", err)
	}

	args, err := borsh.Serialize(verifyAuthArgs{
		VerificationResult: verificationResult,
		Nullifier:          nullifier,
		Domain:             domain,
	})
	if err != nil {
		return nil, fmt.Errorf("serialize verify_auth args: %w", err)
	}

	data := append(anchorDiscriminator("verify_auth"), args...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(recordAddress, true, false),
		solana.NewAccountMeta(authority, true, true),
		solana.NewAccountMeta(solana.SysVarInstructionsPubkey, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}

	return solana.NewInstruction(programID, accounts, data), nil
}

// NewEd25519Instruction builds a native ed25519-program instruction
// verifying (pubkey, message, signature). All instruction-index fields are
// u16 max, the "current instruction" sentinel the program requires.
//
// Layout: [num_sigs:1][pad:1][offsets:14][signature:64][pubkey:32][message].
func NewEd25519Instruction(pubkey solana.PublicKey, message []byte, sig []byte) (solana.Instruction, error) {
	if len(sig) != 64 {
		return nil, fmt.Errorf("ed25519 signature is %d bytes, need 64", len(sig))
	}

	const (
		headerLen       = 16
		signatureOffset = headerLen
		pubkeyOffset    = headerLen + 64
		messageOffset   = headerLen + 64 + 32
		currentIx       = uint16(0xFFFF)
	)

	data := make([]byte, 0, messageOffset+len(message))
	data = append(data, 1, 0) // one signature, padding

	offsets := [7]uint16{
		signatureOffset,
		currentIx,
		pubkeyOffset,
		currentIx,
		messageOffset,
		uint16(len(message)),
		currentIx,
	}
	for _, v := range offsets {
		data = binary.LittleEndian.AppendUint16(data, v)
	}

	data = append(data, sig...)
	data = append(data, pubkey.Bytes()...)
	data = append(data, message...)

	return solana.NewInstruction(Ed25519ProgramID, solana.AccountMetaSlice{}, data), nil
}

// Permission mirrors the on-chain enum; the borsh encoding is the variant
// index as a single byte.
type Permission uint8

const (
	PermissionRevealWalletAddress Permission = iota
	PermissionRevealExactBalance
	PermissionRevealTokenBalances
	PermissionRevealNFTList
	PermissionRevealTransactionHistory
	PermissionRevealStakingPositions
	PermissionRevealDeFiPositions
	PermissionSignTransactions
)

func (p Permission) String() string {
	names := [...]string{
		"reveal_wallet_address",
		"reveal_exact_balance",
		"reveal_token_balances",
		"reveal_nft_list",
		"reveal_transaction_history",
		"reveal_staking_positions",
		"reveal_defi_positions",
		"sign_transactions",
	}
	if int(p) < len(names) {
		return names[p]
	}
	return fmt.Sprintf("permission(%d)", uint8(p))
}

// MaxPermissionsPerGrant bounds a single grant, as the program enforces.
const MaxPermissionsPerGrant = 10

// MaxAccessMetadataLength bounds audit-log metadata, as the program
// enforces.
const MaxAccessMetadataLength = 100

type grantPermissionsArgs struct {
	Nullifier   [32]byte
	AppID       [32]byte
	Permissions []uint8
	ExpiresIn   int64
}

// NewGrantPermissionsInstruction builds the consent-recording instruction.
func NewGrantPermissionsInstruction(
	programID solana.PublicKey,
	payer solana.PublicKey,
	nullifier [32]byte,
	appID solana.PublicKey,
	permissions []Permission,
	expiresInSeconds int64,
) (solana.Instruction, error) {
	if len(permissions) > MaxPermissionsPerGrant {
		return nil, fmt.Errorf("%d permissions exceeds the per-grant limit of %d",
			len(permissions), MaxPermissionsPerGrant)
	}

	grantAddress, _, err := PermissionGrantAddress(programID, nullifier, appID)
	if err != nil {
		return nil, fmt.Errorf("derive permission grant address: %w", err)
	}

	flags := make([]uint8, len(permissions))
	for i, p := range permissions {
		flags[i] = uint8(p)
	}

	var appIDBytes [32]byte
	copy(appIDBytes[:], appID.Bytes())

	args, err := borsh.Serialize(grantPermissionsArgs{
		Nullifier:   nullifier,
		AppID:       appIDBytes,
		Permissions: flags,
		ExpiresIn:   expiresInSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("serialize grant_permissions args: %w", err)
	}

	data := append(anchorDiscriminator("grant_permissions"), args...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(grantAddress, true, false),
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}

	return solana.NewInstruction(programID, accounts, data), nil
}

// NewRevokePermissionsInstruction unconditionally marks a grant revoked.
func NewRevokePermissionsInstruction(
	programID solana.PublicKey,
	authority solana.PublicKey,
	nullifier [32]byte,
	appID solana.PublicKey,
) (solana.Instruction, error) {
	grantAddress, _, err := PermissionGrantAddress(programID, nullifier, appID)
	if err != nil {
		return nil, fmt.Errorf("derive permission grant address: %w", err)
	}

	data := anchorDiscriminator("revoke_permissions")

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(grantAddress, true, false),
		solana.NewAccountMeta(authority, false, true),
	}

	return solana.NewInstruction(programID, accounts, data), nil
}

type logPermissionAccessArgs struct {
	PermissionUsed uint8
	Metadata       string
}

// NewLogPermissionAccessInstruction builds the audit-trail instruction. The
// access record is a fresh account that must co-sign the transaction.
func NewLogPermissionAccessInstruction(
	programID solana.PublicKey,
	payer solana.PublicKey,
	accessRecord solana.PublicKey,
	nullifier [32]byte,
	appID solana.PublicKey,
	permission Permission,
	metadata string,
) (solana.Instruction, error) {
	if len(metadata) > MaxAccessMetadataLength {
		return nil, fmt.Errorf("metadata is %d chars, limit is %d", len(metadata), MaxAccessMetadataLength)
	}

	grantAddress, _, err := PermissionGrantAddress(programID, nullifier, appID)
	if err != nil {
		return nil, fmt.Errorf("derive permission grant address: %w", err)
	}

	args, err := borsh.Serialize(logPermissionAccessArgs{
		PermissionUsed: uint8(permission),
		Metadata:       metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("serialize log_permission_access args: %w", err)
	}

	data := append(anchorDiscriminator("log_permission_access"), args...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(accessRecord, true, true),
		solana.NewAccountMeta(grantAddress, false, false),
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}

	return solana.NewInstruction(programID, accounts, data), nil
}
