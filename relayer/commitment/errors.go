package commitment

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

const codespace = "proof"

var (
	ErrProofInvalid         = sdkerrors.Register(codespace, 2, "proof verification failed")
	ErrEmptyProof           = sdkerrors.Register(codespace, 3, "proof cannot be empty")
	ErrEmptyRoot            = sdkerrors.Register(codespace, 4, "commitment root cannot be empty")
	ErrInvalidProofEncoding = sdkerrors.Register(codespace, 5, "invalid proof encoding")
	ErrInvalidPrefix        = sdkerrors.Register(codespace, 6, "invalid commitment prefix")
	ErrEmptyStore           = sdkerrors.Register(codespace, 7, "cannot prove against an empty store")
)
