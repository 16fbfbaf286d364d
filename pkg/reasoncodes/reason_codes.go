// Package reasoncodes defines the error taxonomy of the authentication flow.
// Callers match with errors.Is and use the attached stage for precise retry.
package reasoncodes

import (
	"errors"
	"fmt"
)

type ReasonCode string

const (
	CodeSignerUnavailable       ReasonCode = "SignerUnavailable"
	CodeInsufficientEligibility ReasonCode = "InsufficientEligibility"
	CodeAssetNotFound           ReasonCode = "AssetNotFound"
	CodeProofGenerationFailed   ReasonCode = "ProofGenerationFailed"
	CodeProofInvalid            ReasonCode = "ProofInvalid"
	CodeSubmissionFailed        ReasonCode = "SubmissionFailed"
	CodePermissionDenied        ReasonCode = "PermissionDenied"
	CodePermissionNotGranted    ReasonCode = "PermissionNotGranted"
	CodeDomainTooLong           ReasonCode = "DomainTooLong"
)

var (
	// ErrSignerUnavailable: the device signer is missing or refused to sign.
	// Not retryable without user action.
	ErrSignerUnavailable = errors.New("signer unavailable")

	// ErrInsufficientEligibility: a local eligibility check failed before any
	// proof work. Not retryable without a wallet-state change.
	ErrInsufficientEligibility = errors.New("insufficient eligibility")

	// ErrAssetNotFound: no held asset matches the declared collection.
	ErrAssetNotFound = errors.New("asset not found in collection")

	// ErrProofGenerationFailed: the proof backend errored. Retryable.
	ErrProofGenerationFailed = errors.New("proof generation failed")

	// ErrProofInvalid: local verification returned false. Fail-closed; the
	// proof is never forwarded. Retry only via regeneration.
	ErrProofInvalid = errors.New("proof failed local verification")

	// ErrSubmissionFailed: on-chain submission failed. Retryable except for
	// replay rejection, which is terminal for that nullifier.
	ErrSubmissionFailed = errors.New("on-chain submission failed")

	// ErrPermissionDenied: the on-chain program refused the permission
	// operation. Terminal for that request.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrPermissionNotGranted: local sequencing error, the permission is not
	// in the caller's session.
	ErrPermissionNotGranted = errors.New("permission not granted")

	// ErrDomainTooLong: relying-party domain exceeds the 32-byte buffer.
	ErrDomainTooLong = errors.New("domain exceeds 32 bytes")
)

// Stage identifies where in the sign-in flow an error occurred so a caller
// can re-invoke from the failed stage.
type Stage string

const (
	StageSelect     Stage = "select"
	StagePrepare    Stage = "prepare"
	StageProve      Stage = "prove"
	StageVerify     Stage = "verify"
	StageBind       Stage = "bind"
	StageSubmit     Stage = "submit"
	StagePermission Stage = "permission"
)

// StageError wraps an error with the sign-in stage it occurred in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func AtStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf extracts the stage identifier from a wrapped error chain.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
