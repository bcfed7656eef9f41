package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/cosmos/ibc-relayer/relayer/commitment"
	"github.com/cosmos/ibc-relayer/relayer/core"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
	"github.com/cosmos/ibc-relayer/relayer/provider"
)

// ErrorClass decides what a path worker does with a failed step.
type ErrorClass int

const (
	// ClassRetry errors are transient: the step is retried with backoff.
	ClassRetry ErrorClass = iota
	// ClassRefresh errors are retried after rebuilding the messages at a
	// fresh proof height.
	ClassRefresh
	// ClassReported errors indicate a counterparty or relay bug. They are
	// reported and the step is dropped.
	ClassReported
	// ClassRejected errors are on-chain validation failures of the message
	// itself. They are surfaced and the step is not retried.
	ClassRejected
	// ClassFatal errors stop the path until an operator intervenes.
	ClassFatal
	// ClassCanceled is returned once the worker is shutting down.
	ClassCanceled
)

func (c ErrorClass) String() string {
	switch c {
	case ClassRetry:
		return "retry"
	case ClassRefresh:
		return "refresh"
	case ClassReported:
		return "reported"
	case ClassRejected:
		return "rejected"
	case ClassFatal:
		return "fatal"
	case ClassCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by a query, a local verification or a
// submission onto the action the path worker takes. A rejected transaction is
// classified by the chain's cause, so a proof the chain could not verify is
// refreshed like one that failed local verification.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassRetry
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	case errors.Is(err, lightclient.ErrClientFrozen),
		errors.Is(err, lightclient.ErrExpiredTrustingPeriod):
		return ClassFatal
	case errors.Is(err, core.ErrSequencingViolation):
		return ClassReported
	case errors.Is(err, core.ErrInvalidConnectionState),
		errors.Is(err, core.ErrInvalidChannelState),
		errors.Is(err, core.ErrChannelNotFound),
		errors.Is(err, core.ErrInvalidVersion):
		// handshake states the relayer cannot advance
		return ClassRejected
	case errors.Is(err, lightclient.ErrStaleHeader),
		errors.Is(err, lightclient.ErrHeightMismatch),
		errors.Is(err, lightclient.ErrConsensusStateNotFound),
		errors.Is(err, commitment.ErrProofInvalid):
		return ClassRefresh
	case errors.Is(err, lightclient.ErrInsufficientVotingPower),
		errors.Is(err, provider.ErrTxTransient),
		errors.Is(err, provider.ErrHeightUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return ClassRetry
	case errors.Is(err, provider.ErrTxRejected):
		return ClassRejected
	}
	// query failures
	return ClassRetry
}

// IsFatal reports whether err must stop the path.
func IsFatal(err error) bool {
	return Classify(err) == ClassFatal
}

func retryable(err error) bool {
	c := Classify(err)
	return c == ClassRetry || c == ClassRefresh
}

// PathError carries the context of a failed step.
type PathError struct {
	Path    string
	Step    string
	ChainID string
	Height  ibc.Height
	Err     error
}

func (e *PathError) Error() string {
	if e.Height.IsZero() {
		return fmt.Sprintf("path %s: %s on %s: %v", e.Path, e.Step, e.ChainID, e.Err)
	}
	return fmt.Sprintf("path %s: %s on %s at %s: %v", e.Path, e.Step, e.ChainID, e.Height, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}
