package core

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/cosmos/ibc-relayer/relayer/common"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
)

// chanOpenInit stores a new channel in Init on an Open connection. An Init
// identical to a channel still in Init returns that channel instead.
func (k *Keeper) chanOpenInit(ctx Context, msg *MsgChannelOpenInit) (*Result, error) {
	if _, ok := k.apps[msg.PortID]; !ok {
		return nil, sdkerrors.Wrap(ErrPortNotBound, msg.PortID)
	}
	conn, err := k.channelConnection(ctx, msg.Channel)
	if err != nil {
		return nil, err
	}
	if err := checkOrdering(conn, msg.Channel.Ordering); err != nil {
		return nil, err
	}

	end := ibc.NewChannelEnd(ibc.ChannelInit, msg.Channel.Ordering, msg.Channel.Counterparty, msg.Channel.ConnectionHops, msg.Channel.Version)
	if existing := k.findChannel(msg.PortID, end); existing != "" {
		return &Result{NoOp: true, Data: []byte(existing)}, nil
	}

	channelID := ibc.FormatChannelIdentifier(k.nextIdentifier(keyNextChannelSequence))
	k.setChannel(msg.PortID, channelID, end)
	k.initSequences(msg.PortID, channelID)
	return &Result{
		Events: []ibc.Event{channelEvent(ibc.EventChannelOpenInit, msg.PortID, channelID, end)},
		Data:   []byte(channelID),
	}, nil
}

// chanOpenTry answers a counterparty channel Init.
func (k *Keeper) chanOpenTry(ctx Context, msg *MsgChannelOpenTry) (*Result, error) {
	if _, ok := k.apps[msg.PortID]; !ok {
		return nil, sdkerrors.Wrap(ErrPortNotBound, msg.PortID)
	}
	version := msg.Channel.Version
	if version == "" {
		version = msg.CounterpartyVersion
	}
	end := ibc.NewChannelEnd(ibc.ChannelTryOpen, msg.Channel.Ordering, msg.Channel.Counterparty, msg.Channel.ConnectionHops, version)
	if existing := k.findChannel(msg.PortID, end); existing != "" {
		return &Result{NoOp: true, Data: []byte(existing)}, nil
	}

	channelID := msg.PreviousChannelID
	if channelID != "" {
		prev, ok := k.getChannel(msg.PortID, channelID)
		if !ok {
			return nil, sdkerrors.Wrapf(ErrChannelNotFound, "%s/%s", msg.PortID, channelID)
		}
		if prev.State != ibc.ChannelInit ||
			prev.Ordering != end.Ordering ||
			prev.Counterparty.PortId != end.Counterparty.PortId ||
			ibc.ChannelConnectionID(prev) != ibc.ChannelConnectionID(end) {
			return nil, sdkerrors.Wrapf(ErrInvalidChannelState, "previous channel %s does not match the counterparty handshake", channelID)
		}
	}

	conn, err := k.channelConnection(ctx, end)
	if err != nil {
		return nil, err
	}
	if err := checkOrdering(conn, end.Ordering); err != nil {
		return nil, err
	}

	expected := ibc.NewChannelEnd(ibc.ChannelInit, end.Ordering, ibc.NewChannelCounterparty(msg.PortID, ""),
		[]string{conn.Counterparty.ConnectionId}, msg.CounterpartyVersion)
	if err := k.verifyChannelState(ctx, conn, msg.ProofHeight, msg.ProofInit, end.Counterparty.PortId, end.Counterparty.ChannelId, expected); err != nil {
		return nil, err
	}

	if channelID == "" {
		channelID = ibc.FormatChannelIdentifier(k.nextIdentifier(keyNextChannelSequence))
		k.initSequences(msg.PortID, channelID)
	}
	k.setChannel(msg.PortID, channelID, end)
	return &Result{
		Events: []ibc.Event{channelEvent(ibc.EventChannelOpenTry, msg.PortID, channelID, end)},
		Data:   []byte(channelID),
	}, nil
}

func (k *Keeper) chanOpenAck(ctx Context, msg *MsgChannelOpenAck) (*Result, error) {
	ch, ok := k.getChannel(msg.PortID, msg.ChannelID)
	if !ok {
		return nil, sdkerrors.Wrapf(ErrChannelNotFound, "%s/%s", msg.PortID, msg.ChannelID)
	}
	if ch.State == ibc.ChannelOpen && ch.Counterparty.ChannelId == msg.CounterpartyChannelID {
		return &Result{NoOp: true}, nil
	}
	if ch.State != ibc.ChannelInit && ch.State != ibc.ChannelTryOpen {
		return nil, sdkerrors.Wrapf(ErrInvalidChannelState, "channel %s/%s is %s, expected INIT or TRYOPEN", msg.PortID, msg.ChannelID, ch.State)
	}
	if ch.Counterparty.ChannelId != "" && ch.Counterparty.ChannelId != msg.CounterpartyChannelID {
		return nil, sdkerrors.Wrapf(ErrInvalidCounterparty, "channel %s is bound to counterparty %s", msg.ChannelID, ch.Counterparty.ChannelId)
	}
	conn, err := k.channelConnection(ctx, ch)
	if err != nil {
		return nil, err
	}

	expected := ibc.NewChannelEnd(ibc.ChannelTryOpen, ch.Ordering, ibc.NewChannelCounterparty(msg.PortID, msg.ChannelID),
		[]string{conn.Counterparty.ConnectionId}, msg.CounterpartyVersion)
	if err := k.verifyChannelState(ctx, conn, msg.ProofHeight, msg.ProofTry, ch.Counterparty.PortId, msg.CounterpartyChannelID, expected); err != nil {
		return nil, err
	}

	ch.State = ibc.ChannelOpen
	ch.Version = msg.CounterpartyVersion
	ch.Counterparty.ChannelId = msg.CounterpartyChannelID
	k.setChannel(msg.PortID, msg.ChannelID, ch)
	return &Result{
		Events: []ibc.Event{channelEvent(ibc.EventChannelOpenAck, msg.PortID, msg.ChannelID, ch)},
	}, nil
}

func (k *Keeper) chanOpenConfirm(ctx Context, msg *MsgChannelOpenConfirm) (*Result, error) {
	ch, ok := k.getChannel(msg.PortID, msg.ChannelID)
	if !ok {
		return nil, sdkerrors.Wrapf(ErrChannelNotFound, "%s/%s", msg.PortID, msg.ChannelID)
	}
	if ch.State == ibc.ChannelOpen {
		return &Result{NoOp: true}, nil
	}
	if ch.State != ibc.ChannelTryOpen {
		return nil, sdkerrors.Wrapf(ErrInvalidChannelState, "channel %s/%s is %s, expected TRYOPEN", msg.PortID, msg.ChannelID, ch.State)
	}
	conn, err := k.channelConnection(ctx, ch)
	if err != nil {
		return nil, err
	}

	expected := ibc.NewChannelEnd(ibc.ChannelOpen, ch.Ordering, ibc.NewChannelCounterparty(msg.PortID, msg.ChannelID),
		[]string{conn.Counterparty.ConnectionId}, ch.Version)
	if err := k.verifyChannelState(ctx, conn, msg.ProofHeight, msg.ProofAck, ch.Counterparty.PortId, ch.Counterparty.ChannelId, expected); err != nil {
		return nil, err
	}

	ch.State = ibc.ChannelOpen
	k.setChannel(msg.PortID, msg.ChannelID, ch)
	return &Result{
		Events: []ibc.Event{channelEvent(ibc.EventChannelOpenConfirm, msg.PortID, msg.ChannelID, ch)},
	}, nil
}

func (k *Keeper) chanCloseInit(ctx Context, msg *MsgChannelCloseInit) (*Result, error) {
	ch, ok := k.getChannel(msg.PortID, msg.ChannelID)
	if !ok {
		return nil, sdkerrors.Wrapf(ErrChannelNotFound, "%s/%s", msg.PortID, msg.ChannelID)
	}
	if ch.State == ibc.ChannelClosed {
		return &Result{NoOp: true}, nil
	}
	if _, err := k.channelConnection(ctx, ch); err != nil {
		return nil, err
	}

	ch.State = ibc.ChannelClosed
	k.setChannel(msg.PortID, msg.ChannelID, ch)
	return &Result{
		Events: []ibc.Event{channelEvent(ibc.EventChannelCloseInit, msg.PortID, msg.ChannelID, ch)},
	}, nil
}

func (k *Keeper) chanCloseConfirm(ctx Context, msg *MsgChannelCloseConfirm) (*Result, error) {
	ch, ok := k.getChannel(msg.PortID, msg.ChannelID)
	if !ok {
		return nil, sdkerrors.Wrapf(ErrChannelNotFound, "%s/%s", msg.PortID, msg.ChannelID)
	}
	if ch.State == ibc.ChannelClosed {
		return &Result{NoOp: true}, nil
	}
	conn, err := k.channelConnection(ctx, ch)
	if err != nil {
		return nil, err
	}

	expected := ibc.NewChannelEnd(ibc.ChannelClosed, ch.Ordering, ibc.NewChannelCounterparty(msg.PortID, msg.ChannelID),
		[]string{conn.Counterparty.ConnectionId}, ch.Version)
	if err := k.verifyChannelState(ctx, conn, msg.ProofHeight, msg.ProofInit, ch.Counterparty.PortId, ch.Counterparty.ChannelId, expected); err != nil {
		return nil, err
	}

	ch.State = ibc.ChannelClosed
	k.setChannel(msg.PortID, msg.ChannelID, ch)
	return &Result{
		Events: []ibc.Event{channelEvent(ibc.EventChannelCloseConfirm, msg.PortID, msg.ChannelID, ch)},
	}, nil
}

// channelConnection returns the Open connection of ch after checking that its
// client can verify proofs.
func (k *Keeper) channelConnection(ctx Context, ch ibc.ChannelEnd) (ibc.ConnectionEnd, error) {
	conn, err := k.openConnection(ibc.ChannelConnectionID(ch))
	if err != nil {
		return conn, err
	}
	if _, err := k.activeClient(ctx, conn.ClientId); err != nil {
		return conn, err
	}
	return conn, nil
}

// findChannel returns the identifier of a channel on portID equal to end.
func (k *Keeper) findChannel(portID string, end ibc.ChannelEnd) string {
	var found string
	k.iterateChannels(portID, func(channelID string, ch ibc.ChannelEnd) bool {
		if ch.State == end.State &&
			ch.Ordering == end.Ordering &&
			ch.Counterparty == end.Counterparty &&
			ibc.ChannelConnectionID(ch) == ibc.ChannelConnectionID(end) &&
			ch.Version == end.Version {
			found = channelID
			return false
		}
		return true
	})
	return found
}

func (k *Keeper) initSequences(portID, channelID string) {
	one := common.Uint64ToBytes(1)
	k.set(common.GetNextSequenceSendPath(portID, channelID), one)
	k.set(common.GetNextSequenceRecvPath(portID, channelID), one)
	k.set(common.GetNextSequenceAckPath(portID, channelID), one)
}

func checkOrdering(conn ibc.ConnectionEnd, order ibc.Order) error {
	if len(conn.Versions) == 0 || !ibc.HasFeature(conn.Versions[0], order.String()) {
		return sdkerrors.Wrapf(ErrInvalidChannelOrdering, "connection does not support %s", order)
	}
	return nil
}

func channelEvent(typ ibc.EventType, portID, channelID string, end ibc.ChannelEnd) ibc.Event {
	return ibc.Event{
		Type: typ,
		Channel: &ibc.ChannelInfo{
			PortID:                portID,
			ChannelID:             channelID,
			CounterpartyPortID:    end.Counterparty.PortId,
			CounterpartyChannelID: end.Counterparty.ChannelId,
			ConnectionID:          ibc.ChannelConnectionID(end),
			Order:                 end.Ordering,
			Version:               end.Version,
		},
	}
}
