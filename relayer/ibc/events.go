package ibc

// EventType names an IBC event emitted by a chain when a block executes.
type EventType string

const (
	EventNewBlock EventType = "new_block"

	EventCreateClient       EventType = "create_client"
	EventUpdateClient       EventType = "update_client"
	EventClientMisbehaviour EventType = "client_misbehaviour"

	EventConnectionOpenInit    EventType = "connection_open_init"
	EventConnectionOpenTry     EventType = "connection_open_try"
	EventConnectionOpenAck     EventType = "connection_open_ack"
	EventConnectionOpenConfirm EventType = "connection_open_confirm"

	EventChannelOpenInit     EventType = "channel_open_init"
	EventChannelOpenTry      EventType = "channel_open_try"
	EventChannelOpenAck      EventType = "channel_open_ack"
	EventChannelOpenConfirm  EventType = "channel_open_confirm"
	EventChannelCloseInit    EventType = "channel_close_init"
	EventChannelCloseConfirm EventType = "channel_close_confirm"

	EventSendPacket           EventType = "send_packet"
	EventRecvPacket           EventType = "recv_packet"
	EventWriteAcknowledgement EventType = "write_acknowledgement"
	EventAcknowledgePacket    EventType = "acknowledge_packet"
	EventTimeoutPacket        EventType = "timeout_packet"
	EventTimeoutOnClosePacket EventType = "timeout_on_close_packet"
)

// Event is a single IBC event. Exactly one of the info payloads is set,
// matching the category of Type.
type Event struct {
	Type   EventType
	Height Height

	Client     *ClientInfo
	Connection *ConnectionInfo
	Channel    *ChannelInfo
	Packet     *PacketInfo
}

func (e Event) IsClientEvent() bool {
	return e.Client != nil
}

func (e Event) IsConnectionEvent() bool {
	return e.Connection != nil
}

func (e Event) IsChannelEvent() bool {
	return e.Channel != nil
}

func (e Event) IsPacketEvent() bool {
	return e.Packet != nil
}

// WithHeight returns a copy of the event tagged with the height of the block
// that emitted it.
func (e Event) WithHeight(h Height) Event {
	e.Height = h
	return e
}
