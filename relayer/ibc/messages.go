package ibc

// Type URLs of the IBC messages handled by a chain.
const (
	MsgSendPacket      = "/ibc.core.channel.v1.MsgSendPacket"
	MsgRecvPacket      = "/ibc.core.channel.v1.MsgRecvPacket"
	MsgAcknowledgement = "/ibc.core.channel.v1.MsgAcknowledgement"
	MsgTimeout         = "/ibc.core.channel.v1.MsgTimeout"
	MsgTimeoutOnClose  = "/ibc.core.channel.v1.MsgTimeoutOnClose"

	MsgChannelCloseConfirm = "/ibc.core.channel.v1.MsgChannelCloseConfirm"
	MsgChannelCloseInit    = "/ibc.core.channel.v1.MsgChannelCloseInit"
	MsgChannelOpenAck      = "/ibc.core.channel.v1.MsgChannelOpenAck"
	MsgChannelOpenConfirm  = "/ibc.core.channel.v1.MsgChannelOpenConfirm"
	MsgChannelOpenInit     = "/ibc.core.channel.v1.MsgChannelOpenInit"
	MsgChannelOpenTry      = "/ibc.core.channel.v1.MsgChannelOpenTry"

	MsgConnectionOpenInit    = "/ibc.core.connection.v1.MsgConnectionOpenInit"
	MsgConnectionOpenTry     = "/ibc.core.connection.v1.MsgConnectionOpenTry"
	MsgConnectionOpenAck     = "/ibc.core.connection.v1.MsgConnectionOpenAck"
	MsgConnectionOpenConfirm = "/ibc.core.connection.v1.MsgConnectionOpenConfirm"

	MsgCreateClient       = "/ibc.core.client.v1.MsgCreateClient"
	MsgUpdateClient       = "/ibc.core.client.v1.MsgUpdateClient"
	MsgSubmitMisbehaviour = "/ibc.core.client.v1.MsgSubmitMisbehaviour"
)
