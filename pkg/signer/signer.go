// Package signer abstracts the device signer: a wallet that proves control
// of the account by signing messages. Interaction is human-gated and may
// block indefinitely, so every call takes a context.
package signer

import (
	"context"
	"crypto/sha512"

	"github.com/gagliardetto/solana-go"
)

// SignatureLength is the ed25519 signature size the protocol requires.
// Shorter signatures are rejected, never zero-padded.
const SignatureLength = 64

// Device is the wallet-side signer.
type Device interface {
	// Connect establishes the signer session. Implementations backed by a
	// hardware or browser wallet wait for user approval here.
	Connect(ctx context.Context) error

	// PublicKey returns the signer's public identifier.
	PublicKey() solana.PublicKey

	// SignMessage signs arbitrary bytes with the device key.
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// Local signs with an in-process ed25519 keypair.
type Local struct {
	key solana.PrivateKey
}

func NewLocal(key solana.PrivateKey) *Local {
	return &Local{key: key}
}

func NewRandomLocal() (*Local, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	return &Local{key: key}, nil
}

func (l *Local) Connect(ctx context.Context) error { return ctx.Err() }

func (l *Local) PublicKey() solana.PublicKey { return l.key.PublicKey() }

func (l *Local) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sig, err := l.key.Sign(message)
	if err != nil {
		return nil, err
	}
	return sig[:], nil
}

// PrivateKey exposes the underlying key for transaction signing when the
// local signer doubles as the fee payer.
func (l *Local) PrivateKey() solana.PrivateKey { return l.key }

// Insecure is an explicit test double. It derives a deterministic 64-byte
// pseudo-signature from the message alone; nothing on chain accepts it.
type Insecure struct{}

func (Insecure) Connect(ctx context.Context) error { return ctx.Err() }

func (Insecure) PublicKey() solana.PublicKey { return solana.PublicKey{} }

func (Insecure) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sum := sha512.Sum512(message)
	return sum[:], nil
}
