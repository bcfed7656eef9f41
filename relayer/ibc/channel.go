package ibc

import (
	"fmt"
	"strings"

	chantypes "github.com/cosmos/ibc-go/v3/modules/core/04-channel/types"
)

// ChannelState is the handshake state of a channel end.
type ChannelState = chantypes.State

const (
	ChannelUninitialized = chantypes.UNINITIALIZED
	ChannelInit          = chantypes.INIT
	ChannelTryOpen       = chantypes.TRYOPEN
	ChannelOpen          = chantypes.OPEN
	ChannelClosed        = chantypes.CLOSED
)

// Order is the packet ordering guarantee of a channel.
type Order = chantypes.Order

const (
	NoneOrder = chantypes.NONE
	Unordered = chantypes.UNORDERED
	Ordered   = chantypes.ORDERED
)

// OrderFromString parses "ordered" / "unordered" in any case, with or without
// the ORDER_ prefix.
func OrderFromString(order string) Order {
	switch strings.TrimPrefix(strings.ToUpper(order), "ORDER_") {
	case "UNORDERED":
		return Unordered
	case "ORDERED":
		return Ordered
	default:
		return NoneOrder
	}
}

// ChannelCounterparty identifies the remote end of a channel.
type ChannelCounterparty = chantypes.Counterparty

// ChannelEnd is the state a chain stores for one end of a channel.
type ChannelEnd = chantypes.Channel

func NewChannelCounterparty(portID, channelID string) ChannelCounterparty {
	return chantypes.NewCounterparty(portID, channelID)
}

func NewChannelEnd(state ChannelState, ordering Order, counterparty ChannelCounterparty, hops []string, version string) ChannelEnd {
	return chantypes.NewChannel(state, ordering, counterparty, hops, version)
}

// ChannelConnectionID returns the single connection hop of the channel.
func ChannelConnectionID(ch ChannelEnd) string {
	if len(ch.ConnectionHops) == 0 {
		return ""
	}
	return ch.ConnectionHops[0]
}

// ChannelKey is the unique identifier for a channel between two chains,
// from the perspective of one of them.
type ChannelKey struct {
	ChannelID             string
	PortID                string
	CounterpartyChannelID string
	CounterpartyPortID    string
}

// Counterparty flips a ChannelKey for the perspective of the counterparty chain.
func (k ChannelKey) Counterparty() ChannelKey {
	return ChannelKey{
		ChannelID:             k.CounterpartyChannelID,
		PortID:                k.CounterpartyPortID,
		CounterpartyChannelID: k.ChannelID,
		CounterpartyPortID:    k.PortID,
	}
}

func (k ChannelKey) String() string {
	return fmt.Sprintf("%s/%s->%s/%s", k.PortID, k.ChannelID, k.CounterpartyPortID, k.CounterpartyChannelID)
}
