package processor

import (
	"context"
	"errors"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/provider"
)

// pathEndRuntime is used at runtime for each chain involved in the path.
// Everything pending on it was derived from its own events, so its cursor
// can be held back to the oldest of them.
type pathEndRuntime struct {
	*Endpoint

	stream  *EventStream
	tracker *PacketTracker // packets sent by this chain

	// packets sent by this chain, not yet received or timed out
	recvs map[packetKey]pendingPacket
	// acknowledgements written by this chain, not yet delivered
	acks map[packetKey]pendingPacket
	// handshakes started by events of this chain
	handshakes map[string]*handshake

	// relevance of this chain's channels to the path, by port/channel
	channels map[string]bool
}

func newPathEndRuntime(e *Endpoint) *pathEndRuntime {
	return &pathEndRuntime{
		Endpoint:   e,
		tracker:    NewPacketTracker(),
		recvs:      make(map[packetKey]pendingPacket),
		acks:       make(map[packetKey]pendingPacket),
		handshakes: make(map[string]*handshake),
		channels:   make(map[string]bool),
	}
}

// isRelevantChannel reports whether a channel of this chain runs over the
// path's connection. The answer is cached once the channel exists.
func (rt *pathEndRuntime) isRelevantChannel(ctx context.Context, portID, channelID string) (bool, error) {
	if rt.ConnectionID == "" {
		return true, nil
	}
	key := portID + "/" + channelID
	if relevant, ok := rt.channels[key]; ok {
		return relevant, nil
	}
	h, err := rt.Provider.QueryLatestHeight(ctx)
	if err != nil {
		return false, err
	}
	ch, _, err := provider.QueryChannel(ctx, rt.Provider, h, portID, channelID)
	if errors.Is(err, provider.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	relevant := ibc.ChannelConnectionID(ch) == rt.ConnectionID
	rt.channels[key] = relevant
	return relevant, nil
}

// cursor is the height from which events must be read again after a
// restart: the stream cursor, held back to the oldest pending work.
func (rt *pathEndRuntime) cursor() ibc.Height {
	next := rt.stream.Cursor()
	for _, pending := range []map[packetKey]pendingPacket{rt.recvs, rt.acks} {
		for _, p := range pending {
			if p.height.LT(next) {
				next = p.height
			}
		}
	}
	for _, hs := range rt.handshakes {
		if hs.height.LT(next) {
			next = hs.height
		}
	}
	return next
}

func (rt *pathEndRuntime) pendingCount() int {
	return len(rt.recvs) + len(rt.acks) + len(rt.handshakes)
}
