package processor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
)

// packetKey identifies a packet by its source channel and sequence.
type packetKey struct {
	channel  ibc.ChannelKey
	sequence uint64
}

// legalTransitions lists the states a packet may move to from each state.
// Committed is entered when the send is observed, Sent once the relayer
// submitted the receive. A receive or acknowledgement may be observed without
// the earlier steps when another relayer served the packet.
var legalTransitions = map[ibc.PacketState][]ibc.PacketState{
	ibc.PacketUnknown:   {ibc.PacketCommitted, ibc.PacketSent, ibc.PacketReceived, ibc.PacketAcknowledged, ibc.PacketTimedOut},
	ibc.PacketCommitted: {ibc.PacketSent, ibc.PacketReceived, ibc.PacketAcknowledged, ibc.PacketTimedOut},
	ibc.PacketSent:      {ibc.PacketReceived, ibc.PacketAcknowledged, ibc.PacketTimedOut},
	ibc.PacketReceived:  {ibc.PacketAcknowledged},
}

// PacketTracker records the lifecycle of every packet a path worker has seen.
// Acknowledged and TimedOut are terminal and exclude each other.
type PacketTracker struct {
	mu     sync.RWMutex
	states map[packetKey]ibc.PacketState
}

func NewPacketTracker() *PacketTracker {
	return &PacketTracker{states: make(map[packetKey]ibc.PacketState)}
}

// State returns the tracked state of a packet sent on channel, Unknown if
// it was never observed.
func (t *PacketTracker) State(channel ibc.ChannelKey, sequence uint64) ibc.PacketState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[packetKey{channel, sequence}]
}

// Transition moves a packet to next. Moving to the current state is a no-op.
// An illegal transition leaves the state unchanged and returns an error.
func (t *PacketTracker) Transition(channel ibc.ChannelKey, sequence uint64, next ibc.PacketState) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := packetKey{channel, sequence}
	cur := t.states[key]
	if cur == next {
		return nil
	}
	for _, s := range legalTransitions[cur] {
		if s == next {
			t.states[key] = next
			return nil
		}
	}
	return fmt.Errorf("illegal packet transition %s -> %s for %s#%d", cur, next, channel, sequence)
}

// Pending returns the sequences sent on channel that did not reach a
// terminal state, in ascending order.
func (t *PacketTracker) Pending(channel ibc.ChannelKey) []uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var seqs []uint64
	for k, s := range t.states {
		if k.channel == channel && !s.IsTerminal() {
			seqs = append(seqs, k.sequence)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs
}

// Counts returns how many tracked packets are in each state.
func (t *PacketTracker) Counts() map[ibc.PacketState]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := make(map[ibc.PacketState]int)
	for _, s := range t.states {
		counts[s]++
	}
	return counts
}

// observe applies a packet event to the tracker of the packet's source
// chain. Every event is keyed by the source channel of its packet.
func (t *PacketTracker) observe(e ibc.Event) error {
	if e.Packet == nil {
		return nil
	}
	p := e.Packet.Packet
	src := ibc.PacketChannelKey(p)
	switch e.Type {
	case ibc.EventSendPacket:
		return t.Transition(src, p.Sequence, ibc.PacketCommitted)
	case ibc.EventRecvPacket:
		return t.Transition(src, p.Sequence, ibc.PacketReceived)
	case ibc.EventAcknowledgePacket:
		return t.Transition(src, p.Sequence, ibc.PacketAcknowledged)
	case ibc.EventTimeoutPacket, ibc.EventTimeoutOnClosePacket:
		return t.Transition(src, p.Sequence, ibc.PacketTimedOut)
	}
	return nil
}
