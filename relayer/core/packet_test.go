package core_test

import (
	"context"
	"testing"

	"github.com/cosmos/ibc-relayer/relayer/commitment"
	"github.com/cosmos/ibc-relayer/relayer/core"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
	"github.com/cosmos/ibc-relayer/relayer/provider"
	"github.com/stretchr/testify/require"
)

func TestPacketLifecycle(t *testing.T) {
	p := newTestPath(t)
	p.openChannel(t, ibc.Unordered)

	packet := p.sendPacket(t, "hello", ibc.ZeroHeight)
	require.Equal(t, uint64(1), packet.Sequence)
	require.Equal(t, p.chanB, packet.DestinationChannel)
	require.Equal(t, ibc.PacketCommitted, p.a.Keeper().PacketOutcome(ibc.TransferPort, p.chanA, 1))
	require.Equal(t, []uint64{1}, p.a.Keeper().PacketCommitments(ibc.TransferPort, p.chanA))

	recv := p.recvMsg(t, packet)
	res := send(t, p.b, recv)
	require.Equal(t, []ibc.EventType{ibc.EventRecvPacket, ibc.EventWriteAcknowledgement}, eventTypes(res))
	require.True(t, p.b.Keeper().PacketReceived(ibc.TransferPort, p.chanB, 1))
	require.Len(t, p.b.App().Received(), 1)
	ack := ackFrom(t, res)
	require.Equal(t, ibc.NewResultAcknowledgement([]byte("hello")).Acknowledgement(), ack)

	// a repeated receive is a no-op and the application is not called again
	res = send(t, p.b, recv)
	require.True(t, res.Results[0].NoOp)
	require.Len(t, p.b.App().Received(), 1)

	second := p.sendPacket(t, "second", ibc.ZeroHeight)
	require.Equal(t, []uint64{1, 2}, p.a.Keeper().PacketCommitments(ibc.TransferPort, p.chanA))

	res = send(t, p.a, p.ackMsg(t, packet, ack))
	require.Equal(t, []ibc.EventType{ibc.EventAcknowledgePacket}, eventTypes(res))
	require.Equal(t, ibc.PacketAcknowledged, p.a.Keeper().PacketOutcome(ibc.TransferPort, p.chanA, 1))
	require.Equal(t, ibc.PacketCommitted, p.a.Keeper().PacketOutcome(ibc.TransferPort, p.chanA, second.Sequence))
	require.Equal(t, []uint64{2}, p.a.Keeper().PacketCommitments(ibc.TransferPort, p.chanA))
	require.Len(t, p.a.App().Acknowledged(), 1)
	require.Equal(t, ibc.PacketUnknown, p.a.Keeper().PacketOutcome(ibc.TransferPort, p.chanA, 3))
}

func TestAcknowledgementWithWrongAckRejected(t *testing.T) {
	p := newTestPath(t)
	p.openChannel(t, ibc.Unordered)

	packet := p.sendPacket(t, "hello", ibc.ZeroHeight)
	send(t, p.b, p.recvMsg(t, packet))

	msg := p.ackMsg(t, packet, ibc.NewErrorAcknowledgement(core.ErrRejectedPacketData).Acknowledgement())
	_, err := p.a.SendMessages(context.Background(), []core.Msg{msg})
	require.ErrorIs(t, err, commitment.ErrProofInvalid)
	require.Equal(t, ibc.PacketCommitted, p.a.Keeper().PacketOutcome(ibc.TransferPort, p.chanA, 1))
}

func TestErrorAcknowledgement(t *testing.T) {
	p := newTestPath(t)
	p.openChannel(t, ibc.Unordered)
	p.b.App().Reject = []byte("bad")

	packet := p.sendPacket(t, "bad", ibc.ZeroHeight)
	ack := ackFrom(t, send(t, p.b, p.recvMsg(t, packet)))

	decoded, err := ibc.DecodeAcknowledgement(ack)
	require.NoError(t, err)
	require.False(t, decoded.Success())

	send(t, p.a, p.ackMsg(t, packet, ack))
	require.Equal(t, ibc.PacketAcknowledged, p.a.Keeper().PacketOutcome(ibc.TransferPort, p.chanA, 1))
}

func TestPacketTimeout(t *testing.T) {
	p := newTestPath(t)
	p.openChannel(t, ibc.Unordered)

	latestB, err := p.b.QueryLatestHeight(context.Background())
	require.NoError(t, err)
	packet := p.sendPacket(t, "slow", ibc.NextHeight(ibc.NextHeight(latestB)))

	// not yet timed out at the proof height
	_, err = p.a.SendMessages(context.Background(), []core.Msg{p.timeoutMsg(t, packet, false)})
	require.ErrorIs(t, err, core.ErrPacketTimeoutNotReached)

	p.b.ProduceBlocks(2)

	// the destination refuses the packet
	_, err = p.b.SendMessages(context.Background(), []core.Msg{p.recvMsg(t, packet)})
	require.ErrorIs(t, err, core.ErrPacketTimeout)

	res := send(t, p.a, p.timeoutMsg(t, packet, false))
	require.Equal(t, []ibc.EventType{ibc.EventTimeoutPacket}, eventTypes(res))
	require.Equal(t, ibc.PacketTimedOut, p.a.Keeper().PacketOutcome(ibc.TransferPort, p.chanA, 1))
	require.Len(t, p.a.App().TimedOut(), 1)

	// unordered channels stay open
	chA, _ := p.a.Keeper().Channel(ibc.TransferPort, p.chanA)
	require.Equal(t, ibc.ChannelOpen, chA.State)
}

func TestSendPacketAlreadyTimedOut(t *testing.T) {
	p := newTestPath(t)
	p.openChannel(t, ibc.Unordered)

	// a's client of b is already past height 2 of b
	_, err := p.a.SendMessages(context.Background(), []core.Msg{&core.MsgSendPacket{
		SourcePort:    ibc.TransferPort,
		SourceChannel: p.chanA,
		Data:          []byte("expired"),
		TimeoutHeight: lightclient.HeightOf(p.b.ChainID(), 2),
	}})
	require.ErrorIs(t, err, core.ErrPacketTimeout)
}

// Once a packet is acknowledged its commitment is gone and a racing timeout
// is a no-op, so exactly one terminal outcome is recorded.
func TestAcknowledgementTimeoutRace(t *testing.T) {
	p := newTestPath(t)
	p.openChannel(t, ibc.Unordered)

	latestB, err := p.b.QueryLatestHeight(context.Background())
	require.NoError(t, err)
	packet := p.sendPacket(t, "race", ibc.NextHeight(ibc.NextHeight(ibc.NextHeight(latestB))))

	ack := ackFrom(t, send(t, p.b, p.recvMsg(t, packet)))
	p.b.ProduceBlocks(3)

	// the receipt exists, so no timeout proof can be produced
	_, err = p.a.SendMessages(context.Background(), []core.Msg{p.timeoutMsg(t, packet, false)})
	require.ErrorIs(t, err, commitment.ErrProofInvalid)

	ackMsg := p.ackMsg(t, packet, ack)
	timeoutMsg := p.timeoutMsg(t, packet, false)
	send(t, p.a, ackMsg)
	res := send(t, p.a, timeoutMsg)
	require.True(t, res.Results[0].NoOp)
	require.Equal(t, ibc.PacketAcknowledged, p.a.Keeper().PacketOutcome(ibc.TransferPort, p.chanA, packet.Sequence))
	require.Empty(t, p.a.App().TimedOut())

	res = send(t, p.a, ackMsg)
	require.True(t, res.Results[0].NoOp)
}

func TestOrderedChannelSequencing(t *testing.T) {
	p := newTestPath(t)
	p.openChannel(t, ibc.Ordered)

	packets := make([]ibc.Packet, 3)
	for i := range packets {
		packets[i] = p.sendPacket(t, "ordered", ibc.ZeroHeight)
	}

	send(t, p.b, p.recvMsg(t, packets[0]))

	_, err := p.b.SendMessages(context.Background(), []core.Msg{p.recvMsg(t, packets[2])})
	require.ErrorIs(t, err, core.ErrSequencingViolation)
	require.False(t, p.b.Keeper().PacketReceived(ibc.TransferPort, p.chanB, 3))

	send(t, p.b, p.recvMsg(t, packets[1]))
	send(t, p.b, p.recvMsg(t, packets[2]))
	require.True(t, p.b.Keeper().PacketReceived(ibc.TransferPort, p.chanB, 3))

	// a stale ordered receive is a no-op
	res := send(t, p.b, p.recvMsg(t, packets[0]))
	require.True(t, res.Results[0].NoOp)

	received := p.b.App().Received()
	require.Len(t, received, 3)
	for i, pkt := range received {
		require.Equal(t, uint64(i+1), pkt.Sequence)
	}
}

func TestOrderedTimeoutClosesChannel(t *testing.T) {
	p := newTestPath(t)
	p.openChannel(t, ibc.Ordered)

	latestB, err := p.b.QueryLatestHeight(context.Background())
	require.NoError(t, err)
	packet := p.sendPacket(t, "slow", ibc.NextHeight(ibc.NextHeight(latestB)))
	p.b.ProduceBlocks(2)

	res := send(t, p.a, p.timeoutMsg(t, packet, true))
	require.Equal(t, []ibc.EventType{ibc.EventTimeoutPacket, ibc.EventChannelCloseInit}, eventTypes(res))
	chA, _ := p.a.Keeper().Channel(ibc.TransferPort, p.chanA)
	require.Equal(t, ibc.ChannelClosed, chA.State)

	// the counterparty can close its end against the proof of the closed end
	h := updateClient(t, p.b, p.a, p.clientB)
	_, proof, err := provider.QueryChannel(context.Background(), p.a, h, ibc.TransferPort, p.chanA)
	require.NoError(t, err)
	send(t, p.b, &core.MsgChannelCloseConfirm{PortID: ibc.TransferPort, ChannelID: p.chanB, ProofHeight: h, ProofInit: proof})
}

// Messages for packets whose commitment is already gone are no-ops even
// after an ordered timeout has closed the channel.
func TestRepeatedMessagesOnClosedOrderedChannel(t *testing.T) {
	p := newTestPath(t)
	p.openChannel(t, ibc.Ordered)

	first := p.sendPacket(t, "first", ibc.ZeroHeight)
	ack := ackFrom(t, send(t, p.b, p.recvMsg(t, first)))
	ackMsg := p.ackMsg(t, first, ack)
	send(t, p.a, ackMsg)

	latestB, err := p.b.QueryLatestHeight(context.Background())
	require.NoError(t, err)
	second := p.sendPacket(t, "slow", ibc.NextHeight(ibc.NextHeight(latestB)))
	p.b.ProduceBlocks(2)

	timeoutMsg := p.timeoutMsg(t, second, true)
	send(t, p.a, timeoutMsg)
	chA, _ := p.a.Keeper().Channel(ibc.TransferPort, p.chanA)
	require.Equal(t, ibc.ChannelClosed, chA.State)

	res := send(t, p.a, timeoutMsg)
	require.True(t, res.Results[0].NoOp)
	require.Empty(t, res.Events)
	require.Len(t, p.a.App().TimedOut(), 1)

	res = send(t, p.a, ackMsg)
	require.True(t, res.Results[0].NoOp)
	require.Len(t, p.a.App().Acknowledged(), 1)

	// a packet that still has a commitment needs an open channel
	_, err = p.a.SendMessages(context.Background(), []core.Msg{&core.MsgSendPacket{
		SourcePort:    ibc.TransferPort,
		SourceChannel: p.chanA,
		Data:          []byte("late"),
		TimeoutHeight: lightclient.HeightOf(p.b.ChainID(), 10000),
	}})
	require.ErrorIs(t, err, core.ErrInvalidChannelState)
}

func TestTimeoutOnClose(t *testing.T) {
	p := newTestPath(t)
	p.openChannel(t, ibc.Unordered)
	ctx := context.Background()

	packet := p.sendPacket(t, "stranded", ibc.ZeroHeight)
	send(t, p.b, &core.MsgChannelCloseInit{PortID: ibc.TransferPort, ChannelID: p.chanB})

	h := updateClient(t, p.a, p.b, p.clientA)
	_, proofClose, err := provider.QueryChannel(ctx, p.b, h, ibc.TransferPort, p.chanB)
	require.NoError(t, err)
	_, proofUnreceived, err := provider.QueryPacketReceipt(ctx, p.b, h, ibc.TransferPort, p.chanB, packet.Sequence)
	require.NoError(t, err)

	res := send(t, p.a, &core.MsgTimeoutOnClose{
		Packet:          packet,
		ProofHeight:     h,
		ProofUnreceived: proofUnreceived,
		ProofClose:      proofClose,
	})
	require.Equal(t, []ibc.EventType{ibc.EventTimeoutOnClosePacket}, eventTypes(res))
	require.Equal(t, ibc.PacketTimedOut, p.a.Keeper().PacketOutcome(ibc.TransferPort, p.chanA, packet.Sequence))
}

// A failing message reverts every state change of its transaction.
func TestTransactionAtomicity(t *testing.T) {
	p := newTestPath(t)
	p.openChannel(t, ibc.Unordered)

	_, err := p.a.SendMessages(context.Background(), []core.Msg{
		&core.MsgSendPacket{SourcePort: ibc.TransferPort, SourceChannel: p.chanA, Data: []byte("x"), TimeoutHeight: lightclient.HeightOf(p.b.ChainID(), 10000)},
		&core.MsgChannelCloseInit{PortID: ibc.TransferPort, ChannelID: "channel-9"},
	})
	require.ErrorIs(t, err, core.ErrChannelNotFound)
	require.ErrorIs(t, err, provider.ErrTxRejected)

	seq, _ := p.a.Keeper().NextSequenceSend(ibc.TransferPort, p.chanA)
	require.Equal(t, uint64(1), seq)
	require.Empty(t, p.a.Keeper().PacketCommitments(ibc.TransferPort, p.chanA))
}

func TestConflictingUpdateFreezesClient(t *testing.T) {
	p := newTestPath(t)
	p.openChannel(t, ibc.Unordered)
	ctx := context.Background()

	tr, _ := p.a.Keeper().Tracker(p.clientA)
	heights := tr.Heights()
	target := heights[len(heights)-1]
	trusted := heights[len(heights)-2]

	forged, err := p.b.ForgeLightBlock(target, []byte("forged app hash of 32 bytes....."))
	require.NoError(t, err)
	trustedBlock, err := p.b.QueryLightBlock(ctx, trusted)
	require.NoError(t, err)

	res := send(t, p.a, &core.MsgUpdateClient{ClientID: p.clientA, Header: &lightclient.Header{
		SignedHeader:      forged.SignedHeader,
		ValidatorSet:      forged.ValidatorSet,
		TrustedHeight:     trusted,
		TrustedValidators: trustedBlock.NextValidatorSet,
	}})
	require.Equal(t, []ibc.EventType{ibc.EventClientMisbehaviour}, eventTypes(res))

	tr, _ = p.a.Keeper().Tracker(p.clientA)
	require.True(t, tr.ClientState().IsFrozen())

	_, err = p.a.SendMessages(ctx, []core.Msg{&core.MsgSendPacket{
		SourcePort: ibc.TransferPort, SourceChannel: p.chanA, Data: []byte("x"), TimeoutHeight: lightclient.HeightOf(p.b.ChainID(), 10000),
	}})
	require.ErrorIs(t, err, lightclient.ErrClientFrozen)
}

func TestSubmitMisbehaviourIdempotent(t *testing.T) {
	p := newTestPath(t)
	p.createClients(t)
	ctx := context.Background()

	updateClient(t, p.a, p.b, p.clientA)
	tr, _ := p.a.Keeper().Tracker(p.clientA)
	heights := tr.Heights()
	trusted, target := heights[0], heights[1]

	honest, err := p.b.QueryLightBlock(ctx, target)
	require.NoError(t, err)
	forged, err := p.b.ForgeLightBlock(target, []byte("forged app hash of 32 bytes....."))
	require.NoError(t, err)
	trustedBlock, err := p.b.QueryLightBlock(ctx, trusted)
	require.NoError(t, err)

	header := func(lb *provider.LightBlock) *lightclient.Header {
		return &lightclient.Header{
			SignedHeader:      lb.SignedHeader,
			ValidatorSet:      lb.ValidatorSet,
			TrustedHeight:     trusted,
			TrustedValidators: trustedBlock.NextValidatorSet,
		}
	}
	msg := &core.MsgSubmitMisbehaviour{ClientID: p.clientA, Misbehaviour: &lightclient.Misbehaviour{
		ClientID: p.clientA,
		Header1:  header(honest),
		Header2:  header(forged),
	}}

	res := send(t, p.a, msg)
	require.Equal(t, []ibc.EventType{ibc.EventClientMisbehaviour}, eventTypes(res))
	res = send(t, p.a, msg)
	require.True(t, res.Results[0].NoOp)

	_, err = p.a.SendMessages(ctx, []core.Msg{&core.MsgUpdateClient{ClientID: p.clientA, Header: header(honest)}})
	require.ErrorIs(t, err, lightclient.ErrClientFrozen)
}
