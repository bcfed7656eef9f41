package processor

import (
	"testing"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/stretchr/testify/require"
)

var trackerChannel = ibc.ChannelKey{
	ChannelID:             "channel-0",
	PortID:                ibc.TransferPort,
	CounterpartyChannelID: "channel-1",
	CounterpartyPortID:    ibc.TransferPort,
}

func TestPacketTrackerTransitions(t *testing.T) {
	tr := NewPacketTracker()
	require.Equal(t, ibc.PacketUnknown, tr.State(trackerChannel, 1))

	for _, s := range []ibc.PacketState{ibc.PacketCommitted, ibc.PacketSent, ibc.PacketSent, ibc.PacketReceived, ibc.PacketAcknowledged} {
		require.NoError(t, tr.Transition(trackerChannel, 1, s))
	}
	require.Equal(t, ibc.PacketAcknowledged, tr.State(trackerChannel, 1))

	// terminal states are final and exclusive
	require.Error(t, tr.Transition(trackerChannel, 1, ibc.PacketTimedOut))
	require.Error(t, tr.Transition(trackerChannel, 1, ibc.PacketCommitted))
	require.Equal(t, ibc.PacketAcknowledged, tr.State(trackerChannel, 1))

	require.NoError(t, tr.Transition(trackerChannel, 2, ibc.PacketCommitted))
	require.NoError(t, tr.Transition(trackerChannel, 2, ibc.PacketTimedOut))
	require.Error(t, tr.Transition(trackerChannel, 2, ibc.PacketAcknowledged))

	// a received packet can no longer time out
	require.NoError(t, tr.Transition(trackerChannel, 3, ibc.PacketReceived))
	require.Error(t, tr.Transition(trackerChannel, 3, ibc.PacketTimedOut))
	require.Error(t, tr.Transition(trackerChannel, 3, ibc.PacketSent))
}

func TestPacketTrackerPending(t *testing.T) {
	tr := NewPacketTracker()
	other := trackerChannel.Counterparty()
	for _, seq := range []uint64{5, 2, 9} {
		require.NoError(t, tr.Transition(trackerChannel, seq, ibc.PacketCommitted))
	}
	require.NoError(t, tr.Transition(other, 1, ibc.PacketCommitted))
	require.NoError(t, tr.Transition(trackerChannel, 9, ibc.PacketTimedOut))

	require.Equal(t, []uint64{2, 5}, tr.Pending(trackerChannel))
	require.Equal(t, []uint64{1}, tr.Pending(other))
	require.Equal(t, map[ibc.PacketState]int{ibc.PacketCommitted: 3, ibc.PacketTimedOut: 1}, tr.Counts())
}

func TestPacketTrackerObserve(t *testing.T) {
	tr := NewPacketTracker()
	packet := ibc.Packet{
		Sequence:           1,
		SourcePort:         trackerChannel.PortID,
		SourceChannel:      trackerChannel.ChannelID,
		DestinationPort:    trackerChannel.CounterpartyPortID,
		DestinationChannel: trackerChannel.CounterpartyChannelID,
	}
	event := func(typ ibc.EventType) ibc.Event {
		return ibc.Event{Type: typ, Packet: &ibc.PacketInfo{Packet: packet}}
	}

	require.NoError(t, tr.observe(event(ibc.EventSendPacket)))
	require.Equal(t, ibc.PacketCommitted, tr.State(trackerChannel, 1))
	// write acknowledgement carries no state of its own
	require.NoError(t, tr.observe(event(ibc.EventWriteAcknowledgement)))
	require.NoError(t, tr.observe(event(ibc.EventRecvPacket)))
	require.Equal(t, ibc.PacketReceived, tr.State(trackerChannel, 1))
	require.Error(t, tr.observe(event(ibc.EventTimeoutPacket)))
	require.NoError(t, tr.observe(event(ibc.EventAcknowledgePacket)))
	require.Equal(t, ibc.PacketAcknowledged, tr.State(trackerChannel, 1))

	require.NoError(t, tr.observe(ibc.Event{Type: ibc.EventNewBlock}))
}
