package chain

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func testProgramID() solana.PublicKey {
	return solana.MustPublicKeyFromBase58("H6apEGZAw23AKUeqCX41wkDv2LVwX3Ec8oYPip7k3xzA")
}

func TestNullifierRecordAddressIsDeterministic(t *testing.T) {
	var nullifier [32]byte
	copy(nullifier[:], bytes.Repeat([]byte{0xAB}, 32))

	first, bump1, err := NullifierRecordAddress(testProgramID(), nullifier)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	second, bump2, err := NullifierRecordAddress(testProgramID(), nullifier)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}

	if !first.Equals(second) || bump1 != bump2 {
		t.Error("identical inputs derived different addresses")
	}

	var other [32]byte
	other[0] = 0x01
	third, _, err := NullifierRecordAddress(testProgramID(), other)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if first.Equals(third) {
		t.Error("distinct nullifiers derived the same address")
	}
}

func TestPermissionGrantAddressVariesByApp(t *testing.T) {
	var nullifier [32]byte
	nullifier[0] = 0x42

	appA := solana.NewWallet().PublicKey()
	appB := solana.NewWallet().PublicKey()

	a, _, err := PermissionGrantAddress(testProgramID(), nullifier, appA)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	b, _, err := PermissionGrantAddress(testProgramID(), nullifier, appB)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}

	if a.Equals(b) {
		t.Error("different relying parties derived the same grant address")
	}
}

func TestVerifyAuthInstructionEncoding(t *testing.T) {
	authority := solana.NewWallet().PublicKey()
	result := bytes.Repeat([]byte{0x11}, 105)
	var nullifier, domain [32]byte
	nullifier[0] = 1
	copy(domain[:], "example.com")

	ix, err := NewVerifyAuthInstruction(testProgramID(), authority, result, nullifier, domain)
	if err != nil {
		t.Fatalf("build instruction: %v", err)
	}

	if !ix.ProgramID().Equals(testProgramID()) {
		t.Error("wrong program id")
	}

	data, err := ix.Data()
	if err != nil {
		t.Fatalf("instruction data: %v", err)
	}

	expectedTag := sha256.Sum256([]byte("global:verify_auth"))
	if !bytes.Equal(data[:8], expectedTag[:8]) {
		t.Error("anchor discriminator mismatch")
	}

	// borsh: Vec<u8> length prefix, then the result bytes.
	if got := binary.LittleEndian.Uint32(data[8:12]); got != 105 {
		t.Errorf("verification result length prefix = %d", got)
	}
	if !bytes.Equal(data[12:117], result) {
		t.Error("verification result bytes mismatch")
	}
	if !bytes.Equal(data[117:149], nullifier[:]) {
		t.Error("nullifier bytes mismatch")
	}
	if !bytes.Equal(data[149:181], domain[:]) {
		t.Error("domain bytes mismatch")
	}

	accounts := ix.Accounts()
	if len(accounts) != 4 {
		t.Fatalf("expected 4 accounts, got %d", len(accounts))
	}
	record, _, _ := NullifierRecordAddress(testProgramID(), nullifier)
	if !accounts[0].PublicKey.Equals(record) {
		t.Error("first account is not the nullifier record PDA")
	}
	if !accounts[1].PublicKey.Equals(authority) || !accounts[1].IsSigner {
		t.Error("authority account malformed")
	}
	if !accounts[2].PublicKey.Equals(solana.SysVarInstructionsPubkey) {
		t.Error("instructions sysvar missing")
	}
}

func TestEd25519InstructionLayout(t *testing.T) {
	pubkey := solana.NewWallet().PublicKey()
	message := bytes.Repeat([]byte{0x22}, 41)
	sig := bytes.Repeat([]byte{0x33}, 64)

	ix, err := NewEd25519Instruction(pubkey, message, sig)
	if err != nil {
		t.Fatalf("build instruction: %v", err)
	}

	if !ix.ProgramID().Equals(Ed25519ProgramID) {
		t.Error("wrong program id")
	}
	if len(ix.Accounts()) != 0 {
		t.Error("ed25519 program takes no accounts")
	}

	data, err := ix.Data()
	if err != nil {
		t.Fatalf("instruction data: %v", err)
	}

	if data[0] != 1 {
		t.Errorf("num_signatures = %d", data[0])
	}

	sigOffset := binary.LittleEndian.Uint16(data[2:4])
	sigIxIdx := binary.LittleEndian.Uint16(data[4:6])
	pubkeyOffset := binary.LittleEndian.Uint16(data[6:8])
	pubkeyIxIdx := binary.LittleEndian.Uint16(data[8:10])
	msgOffset := binary.LittleEndian.Uint16(data[10:12])
	msgSize := binary.LittleEndian.Uint16(data[12:14])
	msgIxIdx := binary.LittleEndian.Uint16(data[14:16])

	if sigIxIdx != 0xFFFF || pubkeyIxIdx != 0xFFFF || msgIxIdx != 0xFFFF {
		t.Error("instruction-index fields must be the current-instruction sentinel")
	}
	if msgSize != 41 {
		t.Errorf("message size = %d", msgSize)
	}

	if !bytes.Equal(data[sigOffset:sigOffset+64], sig) {
		t.Error("signature bytes misplaced")
	}
	if !bytes.Equal(data[pubkeyOffset:pubkeyOffset+32], pubkey.Bytes()) {
		t.Error("pubkey bytes misplaced")
	}
	if !bytes.Equal(data[msgOffset:msgOffset+msgSize], message) {
		t.Error("message bytes misplaced")
	}
}

func TestEd25519InstructionRejectsShortSignature(t *testing.T) {
	pubkey := solana.NewWallet().PublicKey()
	if _, err := NewEd25519Instruction(pubkey, []byte("msg"), bytes.Repeat([]byte{1}, 32)); err == nil {
		t.Error("32-byte signature was accepted")
	}
}

func TestGrantPermissionsRejectsTooMany(t *testing.T) {
	var nullifier [32]byte
	perms := make([]Permission, MaxPermissionsPerGrant+1)

	_, err := NewGrantPermissionsInstruction(
		testProgramID(), solana.NewWallet().PublicKey(), nullifier,
		solana.NewWallet().PublicKey(), perms, 3600,
	)
	if err == nil {
		t.Error("11 permissions were accepted")
	}
}

func TestLogPermissionAccessRejectsLongMetadata(t *testing.T) {
	var nullifier [32]byte
	long := string(bytes.Repeat([]byte("x"), MaxAccessMetadataLength+1))

	_, err := NewLogPermissionAccessInstruction(
		testProgramID(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(),
		nullifier, solana.NewWallet().PublicKey(), PermissionRevealExactBalance, long,
	)
	if err == nil {
		t.Error("oversized metadata was accepted")
	}
}
