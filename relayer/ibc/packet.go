package ibc

import (
	"fmt"

	chantypes "github.com/cosmos/ibc-go/v3/modules/core/04-channel/types"
)

// PacketState is the lifecycle state of a single packet sequence.
type PacketState int

const (
	PacketUnknown PacketState = iota
	PacketSent
	PacketCommitted
	PacketReceived
	PacketAcknowledged
	PacketTimedOut
)

func (s PacketState) String() string {
	switch s {
	case PacketSent:
		return "sent"
	case PacketCommitted:
		return "committed"
	case PacketReceived:
		return "received"
	case PacketAcknowledged:
		return "acknowledged"
	case PacketTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// IsTerminal returns true for Acknowledged and TimedOut.
func (s PacketState) IsTerminal() bool {
	return s == PacketAcknowledged || s == PacketTimedOut
}

// Packet is an application data packet sent over a channel.
// TimeoutTimestamp is in unix nanoseconds; zero disables the timestamp timeout.
type Packet = chantypes.Packet

// TimeoutReached reports whether a destination chain at the given height and
// time (unix nanoseconds) may no longer receive the packet.
func TimeoutReached(p Packet, height Height, timestamp uint64) bool {
	if !p.TimeoutHeight.IsZero() && height.GTE(p.TimeoutHeight) {
		return true
	}
	return p.TimeoutTimestamp != 0 && timestamp >= p.TimeoutTimestamp
}

// PacketChannelKey returns the source side channel key of the packet.
func PacketChannelKey(p Packet) ChannelKey {
	return ChannelKey{
		ChannelID:             p.SourceChannel,
		PortID:                p.SourcePort,
		CounterpartyChannelID: p.DestinationChannel,
		CounterpartyPortID:    p.DestinationPort,
	}
}

// PacketID is the short form of a packet used in logs and errors.
func PacketID(p Packet) string {
	return fmt.Sprintf("%s/%s#%d", p.SourcePort, p.SourceChannel, p.Sequence)
}

// CommitPacket returns the commitment stored by the sending chain:
// sha256(timeout_timestamp || timeout_revision_number || timeout_revision_height || sha256(data))
// with all integers big endian.
func CommitPacket(p Packet) []byte {
	return chantypes.CommitPacket(nil, p)
}

// CommitAcknowledgement returns the commitment stored by the receiving chain
// for an encoded acknowledgement.
func CommitAcknowledgement(ack []byte) []byte {
	return chantypes.CommitAcknowledgement(ack)
}

// Acknowledgement is the standard result/error acknowledgement envelope. Its
// Acknowledgement method returns the sorted JSON bytes written on chain.
type Acknowledgement = chantypes.Acknowledgement

func NewResultAcknowledgement(result []byte) Acknowledgement {
	return chantypes.NewResultAcknowledgement(result)
}

func NewErrorAcknowledgement(err error) Acknowledgement {
	return chantypes.NewErrorAcknowledgement(err.Error())
}

// DecodeAcknowledgement parses acknowledgement bytes as written on chain.
func DecodeAcknowledgement(bz []byte) (Acknowledgement, error) {
	var ack Acknowledgement
	if err := chantypes.SubModuleCdc.UnmarshalJSON(bz, &ack); err != nil {
		return Acknowledgement{}, fmt.Errorf("failed to decode acknowledgement: %w", err)
	}
	return ack, nil
}

// ReceiptValue is the value committed under a packet receipt path.
var ReceiptValue = []byte{0x01}
