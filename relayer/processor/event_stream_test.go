package processor

import (
	"context"
	"testing"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/stretchr/testify/require"
)

func TestEventStreamPoll(t *testing.T) {
	ctx := context.Background()
	p := newTestPath(t)
	p.link(t, ibc.Unordered)

	latest, err := p.a.QueryLatestHeight(ctx)
	require.NoError(t, err)
	s := NewEventStream(p.a, ibc.NewHeight(latest.RevisionNumber, 1))
	events, err := s.Poll(ctx)
	require.NoError(t, err)
	require.Equal(t, ibc.NextHeight(latest), s.Cursor())

	// one new block event per block, heights non-decreasing
	var blocks int
	var prev ibc.Height
	for _, e := range events {
		require.True(t, e.Height.GTE(prev))
		prev = e.Height
		if e.Type == ibc.EventNewBlock {
			blocks++
		}
	}
	require.Equal(t, int(latest.RevisionHeight), blocks)

	// nothing new
	events, err = s.Poll(ctx)
	require.NoError(t, err)
	require.Empty(t, events)

	packet := p.sendPacket(t, "hello", ibc.Height{})
	events, err = s.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, ibc.EventSendPacket, events[1].Type)
	require.Equal(t, packet, events[1].Packet.Packet)
}

func TestEventStreamStopsAtFailedBlock(t *testing.T) {
	ctx := context.Background()
	p := newTestPath(t)
	p.a.ProduceBlocks(3)

	s := NewEventStream(p.a, ibc.NewHeight(1, 1))
	p.a.FailQueries(1)
	_, err := s.Poll(ctx)
	require.Error(t, err)
	require.Equal(t, ibc.NewHeight(1, 1), s.Cursor())

	events, err := s.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 4)
	require.Equal(t, ibc.NewHeight(1, 5), s.Cursor())
}

func TestStartHeight(t *testing.T) {
	require.Equal(t, ibc.NewHeight(1, 1), startHeight(ibc.NewHeight(1, 5), 20))
	require.Equal(t, ibc.NewHeight(1, 1), startHeight(ibc.NewHeight(1, 20), 20))
	require.Equal(t, ibc.NewHeight(1, 80), startHeight(ibc.NewHeight(1, 100), 20))
}
