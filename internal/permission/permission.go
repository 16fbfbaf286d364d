// Package permission implements the selective-disclosure grant flow:
// on-chain grant/revoke records and the access audit log. It records
// consent and access; actual data-release enforcement is the
// application's contract, not this layer's.
package permission

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/digitaldrreamer/veiled-sub002/internal/chain"
	"github.com/digitaldrreamer/veiled-sub002/pkg/fieldhash"
	"github.com/digitaldrreamer/veiled-sub002/pkg/logger"
	"github.com/digitaldrreamer/veiled-sub002/pkg/reasoncodes"
)

// Executor sends permission transactions. *chain.Client satisfies it.
type Executor interface {
	ExecuteInstructions(ctx context.Context, signers []solana.PrivateKey, instructions ...solana.Instruction) (*chain.Confirmation, error)
}

// Manager drives the permission subsystem against one program.
type Manager struct {
	Chain     Executor
	ProgramID solana.PublicKey
	Payer     solana.PrivateKey

	log *logger.Logger
}

func NewManager(executor Executor, programID solana.PublicKey, payer solana.PrivateKey) *Manager {
	return &Manager{Chain: executor, ProgramID: programID, Payer: payer, log: logger.Default()}
}

func (m *Manager) logger() *logger.Logger {
	if m.log == nil {
		m.log = logger.Default()
	}
	return m.log
}

// AppIDForDomain maps a relying-party domain onto the 32-byte app id the
// grant records are keyed by.
func AppIDForDomain(domain string) (solana.PublicKey, error) {
	domainBytes, err := fieldhash.EncodeDomain(domain)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(domainBytes[:]), nil
}

// Grant records consent on-chain. Consent collection happens before this
// call; the grant is time-bounded and revocable.
func (m *Manager) Grant(ctx context.Context, nullifier [32]byte, domain string, permissions []chain.Permission, durationSeconds int64) (solana.Signature, error) {
	appID, err := AppIDForDomain(domain)
	if err != nil {
		return solana.Signature{}, err
	}

	ix, err := chain.NewGrantPermissionsInstruction(
		m.ProgramID, m.Payer.PublicKey(), nullifier, appID, permissions, durationSeconds,
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", reasoncodes.ErrPermissionDenied, err)
	}

	confirmation, err := m.Chain.ExecuteInstructions(ctx, []solana.PrivateKey{m.Payer}, ix)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", reasoncodes.ErrPermissionDenied, err)
	}

	m.logger().Infof("granted %d permissions to %s, tx %s", len(permissions), domain, confirmation.Signature.String())
	return confirmation.Signature, nil
}

// Revoke unconditionally clears a grant.
func (m *Manager) Revoke(ctx context.Context, nullifier [32]byte, domain string) (solana.Signature, error) {
	appID, err := AppIDForDomain(domain)
	if err != nil {
		return solana.Signature{}, err
	}

	ix, err := chain.NewRevokePermissionsInstruction(m.ProgramID, m.Payer.PublicKey(), nullifier, appID)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", reasoncodes.ErrPermissionDenied, err)
	}

	confirmation, err := m.Chain.ExecuteInstructions(ctx, []solana.PrivateKey{m.Payer}, ix)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", reasoncodes.ErrPermissionDenied, err)
	}

	m.logger().Infof("revoked permissions for %s, tx %s", domain, confirmation.Signature.String())
	return confirmation.Signature, nil
}

// LogAccess writes an audit entry for a permission use. The permission
// must be present in the caller's granted set; otherwise the call fails
// locally with zero network calls.
func (m *Manager) LogAccess(ctx context.Context, nullifier [32]byte, domain string, granted []chain.Permission, used chain.Permission, metadata string) (solana.Signature, error) {
	if !contains(granted, used) {
		return solana.Signature{}, fmt.Errorf("%w: %s", reasoncodes.ErrPermissionNotGranted, used.String())
	}

	appID, err := AppIDForDomain(domain)
	if err != nil {
		return solana.Signature{}, err
	}

	// The access record is a fresh account; it co-signs account creation.
	accessRecord, err := solana.NewRandomPrivateKey()
	if err != nil {
		return solana.Signature{}, err
	}

	ix, err := chain.NewLogPermissionAccessInstruction(
		m.ProgramID, m.Payer.PublicKey(), accessRecord.PublicKey(),
		nullifier, appID, used, metadata,
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", reasoncodes.ErrPermissionDenied, err)
	}

	confirmation, err := m.Chain.ExecuteInstructions(ctx, []solana.PrivateKey{m.Payer, accessRecord}, ix)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", reasoncodes.ErrPermissionDenied, err)
	}

	return confirmation.Signature, nil
}

func contains(granted []chain.Permission, p chain.Permission) bool {
	for _, g := range granted {
		if g == p {
			return true
		}
	}
	return false
}
