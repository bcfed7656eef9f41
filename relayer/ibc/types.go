package ibc

import (
	"fmt"
	"time"
)

type LatestBlock struct {
	Height Height
	Time   time.Time
}

// ClientInfo is the payload of client events.
type ClientInfo struct {
	ClientID        string
	ClientType      string
	ConsensusHeight Height
	// Header is the encoded header of an UpdateClient event. The monitor
	// re-derives it from a witness to detect misbehaviour.
	Header []byte
}

// ConnectionInfo is the payload of connection handshake events.
type ConnectionInfo struct {
	ConnectionID             string
	ClientID                 string
	CounterpartyClientID     string
	CounterpartyConnectionID string
}

// ChannelInfo is the payload of channel handshake events.
type ChannelInfo struct {
	PortID                string
	ChannelID             string
	CounterpartyPortID    string
	CounterpartyChannelID string
	ConnectionID          string
	Order                 Order
	Version               string
}

// ChannelKey returns the channel key from the perspective of the chain that
// emitted the event.
func (c ChannelInfo) ChannelKey() ChannelKey {
	return ChannelKey{
		ChannelID:             c.ChannelID,
		PortID:                c.PortID,
		CounterpartyChannelID: c.CounterpartyChannelID,
		CounterpartyPortID:    c.CounterpartyPortID,
	}
}

// PacketInfo is the payload of packet events.
type PacketInfo struct {
	Packet
	Order Order
	Ack   []byte
}

// TimeoutError is returned when a packet can no longer be received on its
// destination and must be timed out on its source instead.
type TimeoutError struct {
	msg string
}

func (t *TimeoutError) Error() string {
	return fmt.Sprintf("packet timeout error: %s", t.msg)
}

func NewTimeoutError(msg string) *TimeoutError {
	return &TimeoutError{msg}
}
