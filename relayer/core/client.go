package core

import (
	"errors"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/cosmos/ibc-relayer/relayer/common"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
)

func (k *Keeper) createClient(_ Context, msg *MsgCreateClient) (*Result, error) {
	clientID := ibc.FormatClientIdentifier(k.nextIdentifier(keyNextClientSequence))
	tr, err := lightclient.NewTracker(clientID, msg.ClientState, msg.ConsensusState)
	if err != nil {
		return nil, err
	}
	k.clients[clientID] = tr
	k.setClientState(clientID, msg.ClientState)
	k.setConsensusState(clientID, msg.ClientState.LatestHeight, msg.ConsensusState)

	return &Result{
		Events: []ibc.Event{clientEvent(ibc.EventCreateClient, clientID, msg.ClientState.LatestHeight, nil)},
		Data:   []byte(clientID),
	}, nil
}

// updateClient verifies and stores a header. A verified header that conflicts
// with trusted state freezes the client; the freeze is committed, so it is
// reported as a successful message emitting a misbehaviour event.
func (k *Keeper) updateClient(ctx Context, msg *MsgUpdateClient) (*Result, error) {
	tr, ok := k.clients[msg.ClientID]
	if !ok {
		return nil, sdkerrors.Wrap(ErrClientNotFound, msg.ClientID)
	}
	height := msg.Header.Height()
	_, existed := tr.ConsensusState(height)

	consState, err := tr.Update(msg.Header, ctx.Time)
	switch {
	case errors.Is(err, lightclient.ErrMisbehaviour):
		k.setClientState(msg.ClientID, tr.ClientState())
		return &Result{
			Events: []ibc.Event{clientEvent(ibc.EventClientMisbehaviour, msg.ClientID, height, nil)},
		}, nil
	case err != nil:
		return nil, err
	case existed:
		return &Result{NoOp: true}, nil
	}

	k.setClientState(msg.ClientID, tr.ClientState())
	k.setConsensusState(msg.ClientID, height, *consState)
	tr.Prune(ctx.Time)

	return &Result{
		Events: []ibc.Event{clientEvent(ibc.EventUpdateClient, msg.ClientID, height, lightclient.EncodeHeader(msg.Header))},
	}, nil
}

// submitMisbehaviour freezes a client given valid evidence. Evidence against
// an already frozen client is a no-op.
func (k *Keeper) submitMisbehaviour(ctx Context, msg *MsgSubmitMisbehaviour) (*Result, error) {
	tr, ok := k.clients[msg.ClientID]
	if !ok {
		return nil, sdkerrors.Wrap(ErrClientNotFound, msg.ClientID)
	}
	if tr.ClientState().IsFrozen() {
		return &Result{NoOp: true}, nil
	}
	if err := tr.Freeze(msg.Misbehaviour, ctx.Time); err != nil {
		return nil, err
	}
	k.setClientState(msg.ClientID, tr.ClientState())
	return &Result{
		Events: []ibc.Event{clientEvent(ibc.EventClientMisbehaviour, msg.ClientID, msg.Misbehaviour.Height(), nil)},
	}, nil
}

func (k *Keeper) setClientState(clientID string, cs lightclient.ClientState) {
	k.set(common.GetClientStatePath(clientID), ibc.MustMarshal(cs))
}

func (k *Keeper) setConsensusState(clientID string, height ibc.Height, cs lightclient.ConsensusState) {
	k.set(common.GetConsensusStatePath(clientID, height), ibc.MustMarshal(cs))
}

// activeClient returns the tracker of clientID if it may be used to verify
// proofs at the host time.
func (k *Keeper) activeClient(ctx Context, clientID string) (*lightclient.Tracker, error) {
	tr, ok := k.clients[clientID]
	if !ok {
		return nil, sdkerrors.Wrap(ErrClientNotFound, clientID)
	}
	switch tr.Status(ctx.Time) {
	case lightclient.Frozen:
		return nil, sdkerrors.Wrapf(lightclient.ErrClientFrozen, "client %s", clientID)
	case lightclient.Expired:
		return nil, sdkerrors.Wrapf(lightclient.ErrExpiredTrustingPeriod, "client %s", clientID)
	}
	return tr, nil
}

// validateSelfClient checks a counterparty's client of this chain.
func validateSelfClient(ctx Context, cs lightclient.ClientState) error {
	if cs.ChainID != ctx.ChainID {
		return sdkerrors.Wrapf(ErrInvalidClientState, "client tracks chain %s, expected %s", cs.ChainID, ctx.ChainID)
	}
	if cs.IsFrozen() {
		return sdkerrors.Wrap(ErrInvalidClientState, "client is frozen")
	}
	if cs.LatestHeight.GTE(ctx.Height) {
		return sdkerrors.Wrapf(ErrInvalidClientState, "client height %s must be below host height %s", cs.LatestHeight, ctx.Height)
	}
	if err := cs.Validate(); err != nil {
		return sdkerrors.Wrap(ErrInvalidClientState, err.Error())
	}
	return nil
}

func clientEvent(typ ibc.EventType, clientID string, height ibc.Height, header []byte) ibc.Event {
	return ibc.Event{
		Type: typ,
		Client: &ibc.ClientInfo{
			ClientID:        clientID,
			ClientType:      ibc.ClientType,
			ConsensusHeight: height,
			Header:          header,
		},
	}
}
