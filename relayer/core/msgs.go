package core

import (
	"errors"
	"fmt"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
)

// Msg is an IBC message executed by a Keeper.
type Msg interface {
	// Type returns the IBC type URL of the message.
	Type() string
	ValidateBasic() error
}

var (
	_ Msg = (*MsgCreateClient)(nil)
	_ Msg = (*MsgUpdateClient)(nil)
	_ Msg = (*MsgSubmitMisbehaviour)(nil)
	_ Msg = (*MsgConnectionOpenInit)(nil)
	_ Msg = (*MsgConnectionOpenTry)(nil)
	_ Msg = (*MsgConnectionOpenAck)(nil)
	_ Msg = (*MsgConnectionOpenConfirm)(nil)
	_ Msg = (*MsgChannelOpenInit)(nil)
	_ Msg = (*MsgChannelOpenTry)(nil)
	_ Msg = (*MsgChannelOpenAck)(nil)
	_ Msg = (*MsgChannelOpenConfirm)(nil)
	_ Msg = (*MsgChannelCloseInit)(nil)
	_ Msg = (*MsgChannelCloseConfirm)(nil)
	_ Msg = (*MsgSendPacket)(nil)
	_ Msg = (*MsgRecvPacket)(nil)
	_ Msg = (*MsgAcknowledgement)(nil)
	_ Msg = (*MsgTimeout)(nil)
	_ Msg = (*MsgTimeoutOnClose)(nil)
)

var errEmptyProof = errors.New("proof cannot be empty")

func validateProof(proof []byte, height ibc.Height) error {
	if len(proof) == 0 {
		return errEmptyProof
	}
	if height.IsZero() {
		return errors.New("proof height cannot be zero")
	}
	return nil
}

// MsgCreateClient creates a light client of a counterparty chain from a
// trusted consensus state.
type MsgCreateClient struct {
	ClientState    lightclient.ClientState
	ConsensusState lightclient.ConsensusState
}

func (msg *MsgCreateClient) Type() string { return ibc.MsgCreateClient }

func (msg *MsgCreateClient) ValidateBasic() error {
	if err := msg.ClientState.Validate(); err != nil {
		return err
	}
	if msg.ClientState.IsFrozen() {
		return errors.New("cannot create a frozen client")
	}
	return msg.ConsensusState.ValidateBasic()
}

type MsgUpdateClient struct {
	ClientID string
	Header   *lightclient.Header
}

func (msg *MsgUpdateClient) Type() string { return ibc.MsgUpdateClient }

func (msg *MsgUpdateClient) ValidateBasic() error {
	if err := ibc.ValidateClientID(msg.ClientID); err != nil {
		return err
	}
	if msg.Header == nil {
		return errors.New("header cannot be nil")
	}
	return nil
}

type MsgSubmitMisbehaviour struct {
	ClientID     string
	Misbehaviour *lightclient.Misbehaviour
}

func (msg *MsgSubmitMisbehaviour) Type() string { return ibc.MsgSubmitMisbehaviour }

func (msg *MsgSubmitMisbehaviour) ValidateBasic() error {
	if err := ibc.ValidateClientID(msg.ClientID); err != nil {
		return err
	}
	if msg.Misbehaviour == nil {
		return errors.New("misbehaviour cannot be nil")
	}
	if msg.Misbehaviour.ClientID != msg.ClientID {
		return fmt.Errorf("misbehaviour client %s does not match %s", msg.Misbehaviour.ClientID, msg.ClientID)
	}
	return msg.Misbehaviour.ValidateBasic()
}

// MsgConnectionOpenInit starts a connection handshake. A nil Version proposes
// every compatible version. DelayPeriod is in nanoseconds.
type MsgConnectionOpenInit struct {
	ClientID     string
	Counterparty ibc.ConnectionCounterparty
	Version      *ibc.Version
	DelayPeriod  uint64
}

func (msg *MsgConnectionOpenInit) Type() string { return ibc.MsgConnectionOpenInit }

func (msg *MsgConnectionOpenInit) ValidateBasic() error {
	if err := ibc.ValidateClientID(msg.ClientID); err != nil {
		return err
	}
	if err := ibc.ValidateClientID(msg.Counterparty.ClientId); err != nil {
		return fmt.Errorf("invalid counterparty client: %w", err)
	}
	if msg.Counterparty.ConnectionId != "" {
		return errors.New("counterparty connection identifier must be empty")
	}
	if msg.Counterparty.Prefix.Empty() {
		return errors.New("counterparty prefix cannot be empty")
	}
	return nil
}

// MsgConnectionOpenTry answers an Init on the counterparty. ClientState is the
// counterparty's client of this chain, proven by ProofClient.
type MsgConnectionOpenTry struct {
	PreviousConnectionID string
	ClientID             string
	ClientState          lightclient.ClientState
	Counterparty         ibc.ConnectionCounterparty
	DelayPeriod          uint64
	CounterpartyVersions []*ibc.Version
	ProofHeight          ibc.Height
	ProofInit            []byte
	ProofClient          []byte
}

func (msg *MsgConnectionOpenTry) Type() string { return ibc.MsgConnectionOpenTry }

func (msg *MsgConnectionOpenTry) ValidateBasic() error {
	if msg.PreviousConnectionID != "" {
		if err := ibc.ValidateConnectionID(msg.PreviousConnectionID); err != nil {
			return err
		}
	}
	if err := ibc.ValidateClientID(msg.ClientID); err != nil {
		return err
	}
	if err := ibc.ValidateConnectionID(msg.Counterparty.ConnectionId); err != nil {
		return fmt.Errorf("invalid counterparty connection: %w", err)
	}
	if len(msg.CounterpartyVersions) == 0 {
		return errors.New("counterparty versions cannot be empty")
	}
	if err := validateProof(msg.ProofInit, msg.ProofHeight); err != nil {
		return err
	}
	return validateProof(msg.ProofClient, msg.ProofHeight)
}

type MsgConnectionOpenAck struct {
	ConnectionID             string
	CounterpartyConnectionID string
	Version                  *ibc.Version
	ClientState              lightclient.ClientState
	ProofHeight              ibc.Height
	ProofTry                 []byte
	ProofClient              []byte
}

func (msg *MsgConnectionOpenAck) Type() string { return ibc.MsgConnectionOpenAck }

func (msg *MsgConnectionOpenAck) ValidateBasic() error {
	if err := ibc.ValidateConnectionID(msg.ConnectionID); err != nil {
		return err
	}
	if err := ibc.ValidateConnectionID(msg.CounterpartyConnectionID); err != nil {
		return fmt.Errorf("invalid counterparty connection: %w", err)
	}
	if msg.Version == nil {
		return errors.New("version cannot be nil")
	}
	if err := validateProof(msg.ProofTry, msg.ProofHeight); err != nil {
		return err
	}
	return validateProof(msg.ProofClient, msg.ProofHeight)
}

type MsgConnectionOpenConfirm struct {
	ConnectionID string
	ProofHeight  ibc.Height
	ProofAck     []byte
}

func (msg *MsgConnectionOpenConfirm) Type() string { return ibc.MsgConnectionOpenConfirm }

func (msg *MsgConnectionOpenConfirm) ValidateBasic() error {
	if err := ibc.ValidateConnectionID(msg.ConnectionID); err != nil {
		return err
	}
	return validateProof(msg.ProofAck, msg.ProofHeight)
}

type MsgChannelOpenInit struct {
	PortID  string
	Channel ibc.ChannelEnd
}

func (msg *MsgChannelOpenInit) Type() string { return ibc.MsgChannelOpenInit }

func (msg *MsgChannelOpenInit) ValidateBasic() error {
	if err := ibc.ValidatePortID(msg.PortID); err != nil {
		return err
	}
	if msg.Channel.Counterparty.ChannelId != "" {
		return errors.New("counterparty channel identifier must be empty")
	}
	return validateChannel(msg.Channel)
}

type MsgChannelOpenTry struct {
	PortID              string
	PreviousChannelID   string
	Channel             ibc.ChannelEnd
	CounterpartyVersion string
	ProofHeight         ibc.Height
	ProofInit           []byte
}

func (msg *MsgChannelOpenTry) Type() string { return ibc.MsgChannelOpenTry }

func (msg *MsgChannelOpenTry) ValidateBasic() error {
	if err := ibc.ValidatePortID(msg.PortID); err != nil {
		return err
	}
	if msg.PreviousChannelID != "" {
		if err := ibc.ValidateChannelID(msg.PreviousChannelID); err != nil {
			return err
		}
	}
	if err := ibc.ValidateChannelID(msg.Channel.Counterparty.ChannelId); err != nil {
		return fmt.Errorf("invalid counterparty channel: %w", err)
	}
	if err := validateChannel(msg.Channel); err != nil {
		return err
	}
	return validateProof(msg.ProofInit, msg.ProofHeight)
}

type MsgChannelOpenAck struct {
	PortID                string
	ChannelID             string
	CounterpartyChannelID string
	CounterpartyVersion   string
	ProofHeight           ibc.Height
	ProofTry              []byte
}

func (msg *MsgChannelOpenAck) Type() string { return ibc.MsgChannelOpenAck }

func (msg *MsgChannelOpenAck) ValidateBasic() error {
	if err := validatePortChannel(msg.PortID, msg.ChannelID); err != nil {
		return err
	}
	if err := ibc.ValidateChannelID(msg.CounterpartyChannelID); err != nil {
		return fmt.Errorf("invalid counterparty channel: %w", err)
	}
	return validateProof(msg.ProofTry, msg.ProofHeight)
}

type MsgChannelOpenConfirm struct {
	PortID      string
	ChannelID   string
	ProofHeight ibc.Height
	ProofAck    []byte
}

func (msg *MsgChannelOpenConfirm) Type() string { return ibc.MsgChannelOpenConfirm }

func (msg *MsgChannelOpenConfirm) ValidateBasic() error {
	if err := validatePortChannel(msg.PortID, msg.ChannelID); err != nil {
		return err
	}
	return validateProof(msg.ProofAck, msg.ProofHeight)
}

type MsgChannelCloseInit struct {
	PortID    string
	ChannelID string
}

func (msg *MsgChannelCloseInit) Type() string { return ibc.MsgChannelCloseInit }

func (msg *MsgChannelCloseInit) ValidateBasic() error {
	return validatePortChannel(msg.PortID, msg.ChannelID)
}

type MsgChannelCloseConfirm struct {
	PortID      string
	ChannelID   string
	ProofHeight ibc.Height
	ProofInit   []byte
}

func (msg *MsgChannelCloseConfirm) Type() string { return ibc.MsgChannelCloseConfirm }

func (msg *MsgChannelCloseConfirm) ValidateBasic() error {
	if err := validatePortChannel(msg.PortID, msg.ChannelID); err != nil {
		return err
	}
	return validateProof(msg.ProofInit, msg.ProofHeight)
}

// MsgSendPacket asks the application bound to SourcePort to send Data over
// SourceChannel. The keeper assigns the sequence.
type MsgSendPacket struct {
	SourcePort       string
	SourceChannel    string
	Data             []byte
	TimeoutHeight    ibc.Height
	TimeoutTimestamp uint64
}

func (msg *MsgSendPacket) Type() string { return ibc.MsgSendPacket }

func (msg *MsgSendPacket) ValidateBasic() error {
	if err := validatePortChannel(msg.SourcePort, msg.SourceChannel); err != nil {
		return err
	}
	if len(msg.Data) == 0 {
		return errors.New("packet data cannot be empty")
	}
	if msg.TimeoutHeight.IsZero() && msg.TimeoutTimestamp == 0 {
		return errors.New("packet timeout height and timeout timestamp cannot both be 0")
	}
	return nil
}

type MsgRecvPacket struct {
	Packet          ibc.Packet
	ProofHeight     ibc.Height
	ProofCommitment []byte
}

func (msg *MsgRecvPacket) Type() string { return ibc.MsgRecvPacket }

func (msg *MsgRecvPacket) ValidateBasic() error {
	if err := msg.Packet.ValidateBasic(); err != nil {
		return err
	}
	return validateProof(msg.ProofCommitment, msg.ProofHeight)
}

type MsgAcknowledgement struct {
	Packet          ibc.Packet
	Acknowledgement []byte
	ProofHeight     ibc.Height
	ProofAcked      []byte
}

func (msg *MsgAcknowledgement) Type() string { return ibc.MsgAcknowledgement }

func (msg *MsgAcknowledgement) ValidateBasic() error {
	if err := msg.Packet.ValidateBasic(); err != nil {
		return err
	}
	if len(msg.Acknowledgement) == 0 {
		return errors.New("acknowledgement cannot be empty")
	}
	return validateProof(msg.ProofAcked, msg.ProofHeight)
}

// MsgTimeout proves that a packet was not received before its timeout.
// ProofUnreceived proves the receipt absence on unordered channels and
// NextSequenceRecv on ordered channels.
type MsgTimeout struct {
	Packet           ibc.Packet
	NextSequenceRecv uint64
	ProofHeight      ibc.Height
	ProofUnreceived  []byte
}

func (msg *MsgTimeout) Type() string { return ibc.MsgTimeout }

func (msg *MsgTimeout) ValidateBasic() error {
	if err := msg.Packet.ValidateBasic(); err != nil {
		return err
	}
	return validateProof(msg.ProofUnreceived, msg.ProofHeight)
}

type MsgTimeoutOnClose struct {
	Packet           ibc.Packet
	NextSequenceRecv uint64
	ProofHeight      ibc.Height
	ProofUnreceived  []byte
	ProofClose       []byte
}

func (msg *MsgTimeoutOnClose) Type() string { return ibc.MsgTimeoutOnClose }

func (msg *MsgTimeoutOnClose) ValidateBasic() error {
	if err := msg.Packet.ValidateBasic(); err != nil {
		return err
	}
	if err := validateProof(msg.ProofUnreceived, msg.ProofHeight); err != nil {
		return err
	}
	return validateProof(msg.ProofClose, msg.ProofHeight)
}

func validatePortChannel(portID, channelID string) error {
	if err := ibc.ValidatePortID(portID); err != nil {
		return err
	}
	return ibc.ValidateChannelID(channelID)
}

func validateChannel(ch ibc.ChannelEnd) error {
	if ch.Ordering != ibc.Ordered && ch.Ordering != ibc.Unordered {
		return fmt.Errorf("invalid channel ordering %s", ch.Ordering)
	}
	if len(ch.ConnectionHops) != 1 {
		return fmt.Errorf("channel must have exactly one connection hop, got %d", len(ch.ConnectionHops))
	}
	if err := ibc.ValidateConnectionID(ch.ConnectionHops[0]); err != nil {
		return err
	}
	return ibc.ValidatePortID(ch.Counterparty.PortId)
}
