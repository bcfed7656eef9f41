package lightclient

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

const codespace = "light"

// Verification failures are reported with a specific kind so that callers
// can pick a retry policy per kind.
var (
	ErrStaleHeader             = sdkerrors.Register(codespace, 2, "header height is not greater than the trusted height")
	ErrInsufficientVotingPower = sdkerrors.Register(codespace, 3, "insufficient voting power")
	ErrExpiredTrustingPeriod   = sdkerrors.Register(codespace, 4, "trusting period has expired")
	ErrHeightMismatch          = sdkerrors.Register(codespace, 5, "height mismatch")
	ErrInvalidHeader           = sdkerrors.Register(codespace, 6, "invalid header")
	ErrClientFrozen            = sdkerrors.Register(codespace, 7, "client is frozen due to misbehaviour")
	ErrMisbehaviour            = sdkerrors.Register(codespace, 8, "conflicting header detected")
	ErrConsensusStateNotFound  = sdkerrors.Register(codespace, 9, "consensus state not found")
	ErrInvalidClientState      = sdkerrors.Register(codespace, 10, "invalid client state")
	ErrInvalidMisbehaviour     = sdkerrors.Register(codespace, 11, "invalid misbehaviour evidence")
	ErrInvalidValidatorSet     = sdkerrors.Register(codespace, 12, "invalid validator set")
)
