package core

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/cosmos/ibc-relayer/relayer/common"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
)

// timeoutPacket releases the commitment of a packet the counterparty can no
// longer receive. The proof height must have reached the packet timeout.
// Timing out a packet closes an ordered channel.
func (k *Keeper) timeoutPacket(ctx Context, msg *MsgTimeout) (*Result, error) {
	packet := msg.Packet
	ch, conn, commitment, err := k.sourceChannel(ctx, packet, true)
	if err != nil {
		return nil, err
	}
	if commitment == nil {
		return &Result{NoOp: true}, nil
	}

	consState, err := k.consensusStateAt(ctx, conn.ClientId, msg.ProofHeight)
	if err != nil {
		return nil, err
	}
	if !ibc.TimeoutReached(packet, msg.ProofHeight, uint64(consState.Timestamp.UnixNano())) {
		return nil, sdkerrors.Wrapf(ErrPacketTimeoutNotReached, "packet %s: proof height %s, counterparty time %s",
			ibc.PacketID(packet), msg.ProofHeight, consState.Timestamp)
	}
	if err := k.verifyUnreceived(ctx, ch, conn, packet, msg.NextSequenceRecv, msg.ProofHeight, msg.ProofUnreceived); err != nil {
		return nil, err
	}

	events := k.timeoutExecuted(packet, ch, ibc.EventTimeoutPacket)
	if err := k.apps[packet.SourcePort].OnTimeoutPacket(packet); err != nil {
		return nil, err
	}
	return &Result{Events: events}, nil
}

// timeoutOnClose releases the commitment of a packet whose destination
// channel was closed before receiving it.
func (k *Keeper) timeoutOnClose(ctx Context, msg *MsgTimeoutOnClose) (*Result, error) {
	packet := msg.Packet
	ch, conn, commitment, err := k.sourceChannel(ctx, packet, false)
	if err != nil {
		return nil, err
	}
	if commitment == nil {
		return &Result{NoOp: true}, nil
	}

	expected := ibc.NewChannelEnd(ibc.ChannelClosed, ch.Ordering,
		ibc.NewChannelCounterparty(packet.SourcePort, packet.SourceChannel),
		[]string{conn.Counterparty.ConnectionId}, ch.Version)
	if err := k.verifyChannelState(ctx, conn, msg.ProofHeight, msg.ProofClose, packet.DestinationPort, packet.DestinationChannel, expected); err != nil {
		return nil, err
	}
	if err := k.verifyUnreceived(ctx, ch, conn, packet, msg.NextSequenceRecv, msg.ProofHeight, msg.ProofUnreceived); err != nil {
		return nil, err
	}

	events := k.timeoutExecuted(packet, ch, ibc.EventTimeoutOnClosePacket)
	if err := k.apps[packet.SourcePort].OnTimeoutPacket(packet); err != nil {
		return nil, err
	}
	return &Result{Events: events}, nil
}

// verifyUnreceived proves the counterparty has not received packet: by
// nextSequenceRecv on ordered channels, by receipt absence otherwise.
func (k *Keeper) verifyUnreceived(ctx Context, ch ibc.ChannelEnd, conn ibc.ConnectionEnd, packet ibc.Packet, nextSequenceRecv uint64, proofHeight ibc.Height, proof []byte) error {
	if ch.Ordering == ibc.Ordered {
		if packet.Sequence < nextSequenceRecv {
			return sdkerrors.Wrapf(ErrInvalidPacket, "packet %s was already received, next sequence %d", ibc.PacketID(packet), nextSequenceRecv)
		}
		err := k.verifyMembership(ctx, conn.ClientId, conn.Counterparty.Prefix, proofHeight, proof,
			common.GetNextSequenceRecvPath(packet.DestinationPort, packet.DestinationChannel), common.Uint64ToBytes(nextSequenceRecv))
		if err != nil {
			return sdkerrors.Wrapf(err, "failed to verify next sequence recv of %s", ibc.PacketID(packet))
		}
		return nil
	}
	err := k.verifyNonMembership(ctx, conn.ClientId, conn.Counterparty.Prefix, proofHeight, proof,
		common.GetPacketReceiptPath(packet.DestinationPort, packet.DestinationChannel, packet.Sequence))
	if err != nil {
		return sdkerrors.Wrapf(err, "failed to verify receipt absence of %s", ibc.PacketID(packet))
	}
	return nil
}

func (k *Keeper) timeoutExecuted(packet ibc.Packet, ch ibc.ChannelEnd, typ ibc.EventType) []ibc.Event {
	k.delete(common.GetPacketCommitmentPath(packet.SourcePort, packet.SourceChannel, packet.Sequence))
	k.setOutcome(packet, ibc.PacketTimedOut)

	events := []ibc.Event{packetEvent(typ, packet, ch.Ordering, nil)}
	if ch.Ordering == ibc.Ordered && ch.State != ibc.ChannelClosed {
		ch.State = ibc.ChannelClosed
		k.setChannel(packet.SourcePort, packet.SourceChannel, ch)
		events = append(events, channelEvent(ibc.EventChannelCloseInit, packet.SourcePort, packet.SourceChannel, ch))
	}
	return events
}
