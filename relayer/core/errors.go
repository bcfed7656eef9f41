package core

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

const codespace = "ibchandler"

var (
	ErrClientNotFound          = sdkerrors.Register(codespace, 2, "light client not found")
	ErrConnectionNotFound      = sdkerrors.Register(codespace, 3, "connection not found")
	ErrInvalidConnectionState  = sdkerrors.Register(codespace, 4, "invalid connection state")
	ErrInvalidCounterparty     = sdkerrors.Register(codespace, 5, "invalid counterparty")
	ErrInvalidVersion          = sdkerrors.Register(codespace, 6, "invalid version")
	ErrChannelNotFound         = sdkerrors.Register(codespace, 7, "channel not found")
	ErrInvalidChannelState     = sdkerrors.Register(codespace, 8, "invalid channel state")
	ErrInvalidChannelOrdering  = sdkerrors.Register(codespace, 9, "invalid channel ordering")
	ErrPortNotBound            = sdkerrors.Register(codespace, 10, "no application bound to port")
	ErrInvalidPacket           = sdkerrors.Register(codespace, 11, "invalid packet")
	ErrPacketTimeout           = sdkerrors.Register(codespace, 12, "packet timeout")
	ErrPacketTimeoutNotReached = sdkerrors.Register(codespace, 13, "packet timeout has not been reached")
	ErrSequencingViolation     = sdkerrors.Register(codespace, 14, "packet sequence is out of order")
	ErrInvalidClientState      = sdkerrors.Register(codespace, 15, "invalid counterparty client state")
	ErrInvalidMsg              = sdkerrors.Register(codespace, 16, "invalid message")
	ErrUnknownMsg              = sdkerrors.Register(codespace, 17, "unknown message type")
	ErrAcknowledgementExists   = sdkerrors.Register(codespace, 18, "acknowledgement for packet already exists")
)
