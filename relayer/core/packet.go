package core

import (
	"bytes"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/cosmos/ibc-relayer/relayer/common"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
)

// sendPacket commits a packet on an Open channel. Packets whose timeout has
// already passed on the counterparty, as far as the channel's client knows,
// are rejected.
func (k *Keeper) sendPacket(ctx Context, msg *MsgSendPacket) (*Result, error) {
	ch, ok := k.getChannel(msg.SourcePort, msg.SourceChannel)
	if !ok {
		return nil, sdkerrors.Wrapf(ErrChannelNotFound, "%s/%s", msg.SourcePort, msg.SourceChannel)
	}
	if ch.State != ibc.ChannelOpen {
		return nil, sdkerrors.Wrapf(ErrInvalidChannelState, "channel %s/%s is %s, expected OPEN", msg.SourcePort, msg.SourceChannel, ch.State)
	}
	conn, err := k.channelConnection(ctx, ch)
	if err != nil {
		return nil, err
	}

	seq, _ := k.getSequence(common.GetNextSequenceSendPath(msg.SourcePort, msg.SourceChannel))
	packet := ibc.Packet{
		Sequence:           seq,
		SourcePort:         msg.SourcePort,
		SourceChannel:      msg.SourceChannel,
		DestinationPort:    ch.Counterparty.PortId,
		DestinationChannel: ch.Counterparty.ChannelId,
		Data:               msg.Data,
		TimeoutHeight:      msg.TimeoutHeight,
		TimeoutTimestamp:   msg.TimeoutTimestamp,
	}
	if err := packet.ValidateBasic(); err != nil {
		return nil, sdkerrors.Wrap(ErrInvalidPacket, err.Error())
	}

	latestHeight, latest := k.clients[conn.ClientId].LatestConsensusState()
	if ibc.TimeoutReached(packet, latestHeight, uint64(latest.Timestamp.UnixNano())) {
		return nil, sdkerrors.Wrapf(ErrPacketTimeout, "counterparty is already at %s (%s)", latestHeight, latest.Timestamp)
	}

	k.set(common.GetNextSequenceSendPath(msg.SourcePort, msg.SourceChannel), common.Uint64ToBytes(seq+1))
	k.set(common.GetPacketCommitmentPath(msg.SourcePort, msg.SourceChannel, seq), ibc.CommitPacket(packet))
	k.setOutcome(packet, ibc.PacketCommitted)

	return &Result{
		Events: []ibc.Event{packetEvent(ibc.EventSendPacket, packet, ch.Ordering, nil)},
		Data:   common.Uint64ToBytes(seq),
	}, nil
}

// recvPacket verifies the counterparty committed the packet and hands it to
// the destination port's application.
func (k *Keeper) recvPacket(ctx Context, msg *MsgRecvPacket) (*Result, error) {
	packet := msg.Packet
	ch, ok := k.getChannel(packet.DestinationPort, packet.DestinationChannel)
	if !ok {
		return nil, sdkerrors.Wrapf(ErrChannelNotFound, "%s/%s", packet.DestinationPort, packet.DestinationChannel)
	}
	if ch.State != ibc.ChannelOpen {
		return nil, sdkerrors.Wrapf(ErrInvalidChannelState, "channel %s/%s is %s, expected OPEN", packet.DestinationPort, packet.DestinationChannel, ch.State)
	}
	if packet.SourcePort != ch.Counterparty.PortId || packet.SourceChannel != ch.Counterparty.ChannelId {
		return nil, sdkerrors.Wrapf(ErrInvalidPacket, "packet source %s/%s does not match counterparty %s/%s",
			packet.SourcePort, packet.SourceChannel, ch.Counterparty.PortId, ch.Counterparty.ChannelId)
	}
	conn, err := k.channelConnection(ctx, ch)
	if err != nil {
		return nil, err
	}
	if ibc.TimeoutReached(packet, ctx.Height, uint64(ctx.Time.UnixNano())) {
		return nil, sdkerrors.Wrapf(ErrPacketTimeout, "packet %s timed out at host height %s", ibc.PacketID(packet), ctx.Height)
	}

	err = k.verifyMembership(ctx, conn.ClientId, conn.Counterparty.Prefix, msg.ProofHeight, msg.ProofCommitment,
		common.GetPacketCommitmentPath(packet.SourcePort, packet.SourceChannel, packet.Sequence), ibc.CommitPacket(packet))
	if err != nil {
		return nil, sdkerrors.Wrapf(err, "failed to verify commitment of packet %s", ibc.PacketID(packet))
	}

	port, channel := packet.DestinationPort, packet.DestinationChannel
	switch ch.Ordering {
	case ibc.Unordered:
		if k.has(common.GetPacketReceiptPath(port, channel, packet.Sequence)) {
			return &Result{NoOp: true}, nil
		}
		k.set(common.GetPacketReceiptPath(port, channel, packet.Sequence), ibc.ReceiptValue)
	case ibc.Ordered:
		next, _ := k.getSequence(common.GetNextSequenceRecvPath(port, channel))
		if packet.Sequence < next {
			return &Result{NoOp: true}, nil
		}
		if packet.Sequence > next {
			return nil, sdkerrors.Wrapf(ErrSequencingViolation, "packet sequence %d, expected %d", packet.Sequence, next)
		}
		k.set(common.GetNextSequenceRecvPath(port, channel), common.Uint64ToBytes(next+1))
	}

	if k.has(common.GetPacketAcknowledgementPath(port, channel, packet.Sequence)) {
		return nil, sdkerrors.Wrapf(ErrAcknowledgementExists, "packet %s", ibc.PacketID(packet))
	}
	ack := k.apps[port].OnRecvPacket(packet).Acknowledgement()
	k.set(common.GetPacketAcknowledgementPath(port, channel, packet.Sequence), ibc.CommitAcknowledgement(ack))

	return &Result{
		Events: []ibc.Event{
			packetEvent(ibc.EventRecvPacket, packet, ch.Ordering, nil),
			packetEvent(ibc.EventWriteAcknowledgement, packet, ch.Ordering, ack),
		},
		Data: ack,
	}, nil
}

// acknowledgePacket verifies the counterparty wrote the acknowledgement and
// releases the packet commitment.
func (k *Keeper) acknowledgePacket(ctx Context, msg *MsgAcknowledgement) (*Result, error) {
	packet := msg.Packet
	ch, conn, commitment, err := k.sourceChannel(ctx, packet, true)
	if err != nil {
		return nil, err
	}
	if commitment == nil {
		return &Result{NoOp: true}, nil
	}

	err = k.verifyMembership(ctx, conn.ClientId, conn.Counterparty.Prefix, msg.ProofHeight, msg.ProofAcked,
		common.GetPacketAcknowledgementPath(packet.DestinationPort, packet.DestinationChannel, packet.Sequence),
		ibc.CommitAcknowledgement(msg.Acknowledgement))
	if err != nil {
		return nil, sdkerrors.Wrapf(err, "failed to verify acknowledgement of packet %s", ibc.PacketID(packet))
	}

	if ch.Ordering == ibc.Ordered {
		path := common.GetNextSequenceAckPath(packet.SourcePort, packet.SourceChannel)
		next, _ := k.getSequence(path)
		if packet.Sequence != next {
			return nil, sdkerrors.Wrapf(ErrSequencingViolation, "acknowledgement for sequence %d, expected %d", packet.Sequence, next)
		}
		k.set(path, common.Uint64ToBytes(next+1))
	}

	k.delete(common.GetPacketCommitmentPath(packet.SourcePort, packet.SourceChannel, packet.Sequence))
	k.setOutcome(packet, ibc.PacketAcknowledged)
	if err := k.apps[packet.SourcePort].OnAcknowledgementPacket(packet, msg.Acknowledgement); err != nil {
		return nil, err
	}
	return &Result{
		Events: []ibc.Event{packetEvent(ibc.EventAcknowledgePacket, packet, ch.Ordering, msg.Acknowledgement)},
	}, nil
}

// sourceChannel loads the channel a packet was sent on and its stored
// commitment. A nil commitment means the packet was already acknowledged or
// timed out and is returned before the channel state is checked. A
// commitment that does not match packet is an error.
func (k *Keeper) sourceChannel(ctx Context, packet ibc.Packet, requireOpen bool) (ibc.ChannelEnd, ibc.ConnectionEnd, []byte, error) {
	var conn ibc.ConnectionEnd
	ch, ok := k.getChannel(packet.SourcePort, packet.SourceChannel)
	if !ok {
		return ch, conn, nil, sdkerrors.Wrapf(ErrChannelNotFound, "%s/%s", packet.SourcePort, packet.SourceChannel)
	}
	if packet.DestinationPort != ch.Counterparty.PortId || packet.DestinationChannel != ch.Counterparty.ChannelId {
		return ch, conn, nil, sdkerrors.Wrapf(ErrInvalidPacket, "packet destination %s/%s does not match counterparty %s/%s",
			packet.DestinationPort, packet.DestinationChannel, ch.Counterparty.PortId, ch.Counterparty.ChannelId)
	}

	commitment, ok := k.get(common.GetPacketCommitmentPath(packet.SourcePort, packet.SourceChannel, packet.Sequence))
	if !ok {
		return ch, conn, nil, nil
	}
	if !bytes.Equal(commitment, ibc.CommitPacket(packet)) {
		return ch, conn, nil, sdkerrors.Wrapf(ErrInvalidPacket, "packet %s does not match its commitment", ibc.PacketID(packet))
	}
	if requireOpen && ch.State != ibc.ChannelOpen {
		return ch, conn, nil, sdkerrors.Wrapf(ErrInvalidChannelState, "channel %s/%s is %s, expected OPEN", packet.SourcePort, packet.SourceChannel, ch.State)
	}

	conn, err := k.channelConnection(ctx, ch)
	if err != nil {
		return ch, conn, nil, err
	}
	return ch, conn, commitment, nil
}

func packetEvent(typ ibc.EventType, packet ibc.Packet, order ibc.Order, ack []byte) ibc.Event {
	return ibc.Event{
		Type: typ,
		Packet: &ibc.PacketInfo{
			Packet: packet,
			Order:  order,
			Ack:    ack,
		},
	}
}
