package core

import (
	"bytes"
	"errors"
	"sync"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
)

// Application is the module bound to a port. It is called back as packets on
// its channels move through their lifecycle.
type Application interface {
	OnRecvPacket(packet ibc.Packet) ibc.Acknowledgement
	OnAcknowledgementPacket(packet ibc.Packet, ack []byte) error
	OnTimeoutPacket(packet ibc.Packet) error
}

// ErrRejectedPacketData is carried in the error acknowledgement of packets an
// EchoApp refuses.
var ErrRejectedPacketData = errors.New("packet data rejected by application")

// EchoApp acknowledges every packet with its own data, except packets whose
// data equals Reject, which receive an error acknowledgement. It records every
// callback so tests and the demo can inspect delivery.
type EchoApp struct {
	Reject []byte

	mu           sync.Mutex
	received     []ibc.Packet
	acknowledged []ibc.Packet
	timedOut     []ibc.Packet
}

var _ Application = (*EchoApp)(nil)

func (a *EchoApp) OnRecvPacket(packet ibc.Packet) ibc.Acknowledgement {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.received = append(a.received, packet)
	if a.Reject != nil && bytes.Equal(packet.Data, a.Reject) {
		return ibc.NewErrorAcknowledgement(ErrRejectedPacketData)
	}
	return ibc.NewResultAcknowledgement(packet.Data)
}

func (a *EchoApp) OnAcknowledgementPacket(packet ibc.Packet, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acknowledged = append(a.acknowledged, packet)
	return nil
}

func (a *EchoApp) OnTimeoutPacket(packet ibc.Packet) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timedOut = append(a.timedOut, packet)
	return nil
}

func (a *EchoApp) Received() []ibc.Packet {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ibc.Packet(nil), a.received...)
}

func (a *EchoApp) Acknowledged() []ibc.Packet {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ibc.Packet(nil), a.acknowledged...)
}

func (a *EchoApp) TimedOut() []ibc.Packet {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ibc.Packet(nil), a.timedOut...)
}
