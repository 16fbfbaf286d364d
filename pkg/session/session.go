// Package session orchestrates a full sign-in: circuit selection, input
// preparation, proving, result binding, on-chain registration and the
// optional permission grant. It is the only package that sequences the
// stages; everything below it is stage-local.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/digitaldrreamer/veiled-sub002/internal/binder"
	"github.com/digitaldrreamer/veiled-sub002/internal/chain"
	"github.com/digitaldrreamer/veiled-sub002/internal/prepare"
	"github.com/digitaldrreamer/veiled-sub002/pkg/events"
	"github.com/digitaldrreamer/veiled-sub002/pkg/ledger"
	"github.com/digitaldrreamer/veiled-sub002/pkg/logger"
	"github.com/digitaldrreamer/veiled-sub002/pkg/reasoncodes"
	"github.com/digitaldrreamer/veiled-sub002/pkg/signer"
	"github.com/digitaldrreamer/veiled-sub002/pkg/zkp"
)

// Submitter is the on-chain surface the manager needs. *chain.Client
// satisfies it.
type Submitter interface {
	Submit(ctx context.Context, sub *chain.Submission) (*chain.Confirmation, error)
	ReadNullifierRecord(ctx context.Context, nullifier [32]byte) (*chain.NullifierRecord, error)
}

// Granter records permission grants. *permission.Manager satisfies it.
type Granter interface {
	Grant(ctx context.Context, nullifier [32]byte, domain string, permissions []chain.Permission, durationSeconds int64) (solana.Signature, error)
}

// Manager builds sessions. Chain and Permissions are optional: without a
// chain client the flow stops after local verification and binding.
type Manager struct {
	Signer   signer.Device
	Ledger   ledger.DataProvider
	Pipeline *zkp.Pipeline

	Chain       Submitter
	Permissions Granter

	// Authority pays for and signs submission transactions. When unset
	// and Signer is a local keypair, that keypair is used.
	Authority solana.PrivateKey

	Observer events.Observer

	// BindOptions is surfaced for tests; the zero value is the strict
	// production behavior.
	BindOptions binder.Options

	log *logger.Logger
}

func NewManager(device signer.Device, provider ledger.DataProvider) *Manager {
	return &Manager{
		Signer:   device,
		Ledger:   provider,
		Pipeline: zkp.NewPipeline(),
		Observer: events.NopObserver{},
		log:      logger.Default(),
	}
}

// SignInOptions parameterizes one sign-in.
type SignInOptions struct {
	// Domain is the relying party, at most 32 bytes.
	Domain string

	// Requirements selects the circuit. The zero value proves plain
	// account ownership.
	Requirements zkp.Requirements

	// SeedOverride reuses a nullifier seed across sign-ins. That makes
	// sessions to the same relying party linkable; intentional use only.
	SeedOverride *fr.Element

	// SkipSubmission stops after binding even when a chain client is
	// configured.
	SkipSubmission bool

	// GrantPermissions, when non-empty, records a consent grant after a
	// confirmed submission.
	GrantPermissions []chain.Permission

	// GrantDuration bounds the grant lifetime. Zero means one hour.
	GrantDuration time.Duration
}

// Session is the outcome of a sign-in.
type Session struct {
	Success bool
	Domain  string
	Circuit zkp.CircuitID

	// Nullifier is the base58 rendering of NullifierBytes, the session
	// identifier the relying party stores.
	Nullifier      string
	NullifierBytes [32]byte

	// Commitment is the account commitment (the secret hash public input)
	// as a decimal field element, matching Proof.PublicInputs rendering.
	Commitment string

	Proof              *zkp.Proof
	VerificationResult []byte

	// Verified reports local proof verification. Confirmed reports
	// on-chain registration; a session can be verified but unconfirmed
	// when submission degrades.
	Verified  bool
	Confirmed bool

	TxSignature string
	ExpiresAt   time.Time

	// SubmissionFailure carries the degraded-submission cause, empty on a
	// confirmed or skipped submission.
	SubmissionFailure string

	Permissions []chain.Permission

	// Bucket is the disclosed balance band, only set by the balance
	// circuit.
	Bucket *prepare.BalanceBucket
}

const defaultGrantDuration = time.Hour

// SignIn runs the full flow. Every stage failure is wrapped with its
// stage so callers can resume precisely. Submission failure other than
// replay degrades to a locally-verified, unconfirmed session.
func (m *Manager) SignIn(ctx context.Context, opts SignInOptions) (*Session, error) {
	observer := m.observer()

	if m.Signer != nil {
		if err := m.Signer.Connect(ctx); err != nil {
			return nil, reasoncodes.AtStage(reasoncodes.StagePrepare,
				fmt.Errorf("%w: %v", reasoncodes.ErrSignerUnavailable, err))
		}
	}

	observer.StageStarted(reasoncodes.StageSelect, opts.Domain)
	circuit := zkp.SelectCircuit(opts.Requirements)
	observer.StageCompleted(reasoncodes.StageSelect, opts.Domain)

	observer.StageStarted(reasoncodes.StagePrepare, opts.Domain)
	preparer := prepare.New(m.Signer, m.Ledger)
	prepared, err := preparer.Prepare(ctx, circuit, opts.Requirements, opts.Domain, opts.SeedOverride)
	if err != nil {
		observer.StageFailed(reasoncodes.StagePrepare, opts.Domain, err)
		return nil, reasoncodes.AtStage(reasoncodes.StagePrepare, err)
	}
	observer.StageCompleted(reasoncodes.StagePrepare, opts.Domain)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	observer.StageStarted(reasoncodes.StageProve, opts.Domain)
	proof, err := m.Pipeline.Execute(ctx, circuit, prepared.Inputs)
	if err != nil {
		observer.StageFailed(reasoncodes.StageProve, opts.Domain, err)
		return nil, reasoncodes.AtStage(reasoncodes.StageProve, err)
	}
	observer.StageCompleted(reasoncodes.StageProve, opts.Domain)

	observer.StageStarted(reasoncodes.StageVerify, opts.Domain)
	valid, err := m.Pipeline.Verify(ctx, circuit, proof)
	if err == nil && !valid {
		err = reasoncodes.ErrProofInvalid
	}
	if err != nil {
		observer.StageFailed(reasoncodes.StageVerify, opts.Domain, err)
		return nil, reasoncodes.AtStage(reasoncodes.StageVerify, err)
	}
	observer.StageCompleted(reasoncodes.StageVerify, opts.Domain)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	observer.StageStarted(reasoncodes.StageBind, opts.Domain)
	result, err := binder.Bind(ctx, proof.ProofBytes, true, m.Signer, m.BindOptions)
	if err != nil {
		observer.StageFailed(reasoncodes.StageBind, opts.Domain, err)
		return nil, reasoncodes.AtStage(reasoncodes.StageBind, err)
	}
	observer.StageCompleted(reasoncodes.StageBind, opts.Domain)

	session := &Session{
		Success:            true,
		Domain:             opts.Domain,
		Circuit:            circuit,
		NullifierBytes:     prepared.Nullifier.Bytes(),
		Commitment:         prepared.SecretHash.String(),
		Proof:              proof,
		VerificationResult: result,
		Verified:           true,
		Bucket:             prepared.Bucket,
	}
	session.Nullifier = base58.Encode(session.NullifierBytes[:])

	if m.Chain == nil || opts.SkipSubmission {
		return session, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	observer.StageStarted(reasoncodes.StageSubmit, opts.Domain)
	confirmation, err := m.submit(ctx, session, prepared)
	if err != nil {
		observer.StageFailed(reasoncodes.StageSubmit, opts.Domain, err)

		var submitErr *chain.SubmitError
		if errors.As(err, &submitErr) && submitErr.Replay {
			// Replay rejection is terminal for this nullifier; never
			// degrade it into an unconfirmed session.
			return nil, reasoncodes.AtStage(reasoncodes.StageSubmit, err)
		}

		m.logger().Warnf("submission failed, session stays locally verified: %v", err)
		session.SubmissionFailure = err.Error()
		return session, nil
	}
	session.Confirmed = true
	session.TxSignature = confirmation.Signature.String()
	observer.StageCompleted(reasoncodes.StageSubmit, opts.Domain)

	if record, err := m.Chain.ReadNullifierRecord(ctx, session.NullifierBytes); err == nil && record != nil {
		session.ExpiresAt = time.Unix(record.ExpiresAt, 0)
	}

	if len(opts.GrantPermissions) == 0 || m.Permissions == nil {
		return session, nil
	}

	observer.StageStarted(reasoncodes.StagePermission, opts.Domain)
	duration := opts.GrantDuration
	if duration <= 0 {
		duration = defaultGrantDuration
	}
	_, err = m.Permissions.Grant(ctx, session.NullifierBytes, opts.Domain,
		opts.GrantPermissions, int64(duration/time.Second))
	if err != nil {
		observer.StageFailed(reasoncodes.StagePermission, opts.Domain, err)
		return nil, reasoncodes.AtStage(reasoncodes.StagePermission, err)
	}
	session.Permissions = opts.GrantPermissions
	observer.StageCompleted(reasoncodes.StagePermission, opts.Domain)

	return session, nil
}

func (m *Manager) submit(ctx context.Context, session *Session, prepared *prepare.Prepared) (*chain.Confirmation, error) {
	authority := m.Authority
	if authority == nil {
		local, ok := m.Signer.(*signer.Local)
		if !ok {
			return nil, fmt.Errorf("no submission authority configured")
		}
		authority = local.PrivateKey()
	}

	return m.Chain.Submit(ctx, &chain.Submission{
		VerificationResult: session.VerificationResult,
		Nullifier:          session.NullifierBytes,
		Domain:             prepared.DomainBytes,
		Authority:          authority,
	})
}

// SessionStatus is the result of an on-chain session check.
type SessionStatus struct {
	Valid     bool
	Expired   bool
	Domain    string
	ExpiresAt time.Time
}

// VerifySession checks a nullifier against the on-chain registry. A
// missing record is an invalid session, a past expiry an expired one.
func (m *Manager) VerifySession(ctx context.Context, nullifier [32]byte) (*SessionStatus, error) {
	if m.Chain == nil {
		return nil, fmt.Errorf("no chain client configured")
	}

	record, err := m.Chain.ReadNullifierRecord(ctx, nullifier)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &SessionStatus{}, nil
	}

	status := &SessionStatus{
		Valid:     true,
		Domain:    record.Domain,
		ExpiresAt: time.Unix(record.ExpiresAt, 0),
	}
	if time.Now().After(status.ExpiresAt) {
		status.Valid = false
		status.Expired = true
	}
	return status, nil
}

func (m *Manager) observer() events.Observer {
	if m.Observer == nil {
		return events.NopObserver{}
	}
	return m.Observer
}

func (m *Manager) logger() *logger.Logger {
	if m.log == nil {
		m.log = logger.Default()
	}
	return m.log
}
