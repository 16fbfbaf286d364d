package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/near/borsh-go"

	"github.com/digitaldrreamer/veiled-sub002/pkg/logger"
	"github.com/digitaldrreamer/veiled-sub002/pkg/reasoncodes"
)

// RPC is the slice of the Solana JSON-RPC surface the client uses.
// *rpc.Client satisfies it; tests substitute fakes.
type RPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
}

// SubmitError is a submission failure with replay classification. Replay
// rejection is terminal for that nullifier; everything else may be retried
// by re-invoking the stage.
type SubmitError struct {
	Replay bool
	Err    error
}

func (e *SubmitError) Error() string {
	if e.Replay {
		return fmt.Sprintf("nullifier already registered: %v", e.Err)
	}
	return e.Err.Error()
}

func (e *SubmitError) Unwrap() error { return reasoncodes.ErrSubmissionFailed }

// Submission is one replay-guard registration attempt.
type Submission struct {
	VerificationResult []byte
	Nullifier          [32]byte
	Domain             [32]byte

	// Authority is the device key that countersigned the verification
	// result; it pays for and signs the transaction.
	Authority solana.PrivateKey
}

// Confirmation is the observed outcome of a submission.
type Confirmation struct {
	Signature solana.Signature
	Slot      uint64
}

// NullifierRecord is the on-chain replay-protection record.
type NullifierRecord struct {
	Nullifier [32]byte
	Domain    string
	CreatedAt int64
	ExpiresAt int64
}

// Client drives the on-chain submission protocol. Each attempt is strictly
// linear with no internal retries.
type Client struct {
	Rpc            RPC
	ProgramID      solana.PublicKey
	Commitment     rpc.CommitmentType
	ConfirmTimeout time.Duration
	PollInterval   time.Duration

	log *logger.Logger
}

func NewClient(endpoint string, programID solana.PublicKey) *Client {
	return &Client{
		Rpc:            rpc.New(endpoint),
		ProgramID:      programID,
		Commitment:     rpc.CommitmentFinalized,
		ConfirmTimeout: 60 * time.Second,
		PollInterval:   2 * time.Second,
		log:            logger.Default(),
	}
}

func (c *Client) logger() *logger.Logger {
	if c.log == nil {
		c.log = logger.Default()
	}
	return c.log
}

// Submit runs one registration attempt: derive the record address, check
// for an existing record, build the instruction pair, send, and await
// confirmation.
func (c *Client) Submit(ctx context.Context, sub *Submission) (*Confirmation, error) {
	recordAddress, _, err := NullifierRecordAddress(c.ProgramID, sub.Nullifier)
	if err != nil {
		return nil, &SubmitError{Err: err}
	}

	existing, err := c.fetchAccount(ctx, recordAddress)
	if err != nil {
		return nil, &SubmitError{Err: fmt.Errorf("check nullifier record: %w", err)}
	}
	if existing != nil {
		return nil, &SubmitError{Replay: true, Err: fmt.Errorf("record exists at %s", recordAddress.String())}
	}

	message := sub.VerificationResult[:41]
	signature := sub.VerificationResult[41:]

	ed25519Ix, err := NewEd25519Instruction(sub.Authority.PublicKey(), message, signature)
	if err != nil {
		return nil, &SubmitError{Err: err}
	}

	verifyIx, err := NewVerifyAuthInstruction(
		c.ProgramID,
		sub.Authority.PublicKey(),
		sub.VerificationResult,
		sub.Nullifier,
		sub.Domain,
	)
	if err != nil {
		return nil, &SubmitError{Err: err}
	}

	confirmation, err := c.ExecuteInstructions(ctx, []solana.PrivateKey{sub.Authority}, ed25519Ix, verifyIx)
	if err != nil {
		return nil, &SubmitError{Err: err}
	}

	c.logger().Infof("nullifier registered, tx %s", confirmation.Signature.String())
	return confirmation, nil
}

// ExecuteInstructions signs, sends and confirms a transaction carrying the
// given instructions. The first signer pays the fee.
func (c *Client) ExecuteInstructions(ctx context.Context, signers []solana.PrivateKey, instructions ...solana.Instruction) (*Confirmation, error) {
	txSig, err := c.sendInstructions(ctx, signers, instructions...)
	if err != nil {
		return nil, err
	}
	return c.awaitConfirmation(ctx, txSig)
}

// sendInstructions signs and sends a transaction paid by signers[0].
func (c *Client) sendInstructions(ctx context.Context, signers []solana.PrivateKey, instructions ...solana.Instruction) (solana.Signature, error) {
	if len(signers) == 0 {
		return solana.Signature{}, fmt.Errorf("no signers provided")
	}

	latest, err := c.Rpc.GetLatestBlockhash(ctx, c.Commitment)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("fetch blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		latest.Value.Blockhash,
		solana.TransactionPayer(signers[0].PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	_, err = tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if pk.Equals(signers[i].PublicKey()) {
				return &signers[i]
			}
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	txSig, err := c.Rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: c.Commitment,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}

	return txSig, nil
}

// awaitConfirmation polls signature status until the configured commitment
// is reached or the timeout elapses.
func (c *Client) awaitConfirmation(ctx context.Context, txSig solana.Signature) (*Confirmation, error) {
	timeout := c.ConfirmTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	interval := c.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		statuses, err := c.Rpc.GetSignatureStatuses(ctx, true, txSig)
		if err == nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return nil, fmt.Errorf("transaction %s failed on-chain: %v", txSig.String(), status.Err)
			}
			if confirmed(status.ConfirmationStatus, c.Commitment) {
				return &Confirmation{Signature: txSig, Slot: status.Slot}, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("confirmation of %s timed out: %w", txSig.String(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func confirmed(status rpc.ConfirmationStatusType, commitment rpc.CommitmentType) bool {
	switch commitment {
	case rpc.CommitmentProcessed:
		return status != ""
	case rpc.CommitmentConfirmed:
		return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
	default:
		return status == rpc.ConfirmationStatusFinalized
	}
}

// ReadNullifierRecord fetches and decodes the replay-protection record.
// A missing record returns (nil, nil).
func (c *Client) ReadNullifierRecord(ctx context.Context, nullifier [32]byte) (*NullifierRecord, error) {
	recordAddress, _, err := NullifierRecordAddress(c.ProgramID, nullifier)
	if err != nil {
		return nil, err
	}

	data, err := c.fetchAccount(ctx, recordAddress)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	return decodeNullifierRecord(data)
}

// fetchAccount returns the raw account data, or nil when the account does
// not exist.
func (c *Client) fetchAccount(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	info, err := c.Rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Commitment: c.Commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if info.Value == nil {
		return nil, nil
	}

	return info.Value.Data.GetBinary(), nil
}

const accountDiscriminatorLength = 8

func decodeNullifierRecord(data []byte) (*NullifierRecord, error) {
	if len(data) <= accountDiscriminatorLength {
		return nil, fmt.Errorf("nullifier record too short: %d bytes", len(data))
	}

	var record NullifierRecord
	if err := borsh.Deserialize(&record, data[accountDiscriminatorLength:]); err != nil {
		return nil, fmt.Errorf("decode nullifier record: %w", err)
	}

	return &record, nil
}
