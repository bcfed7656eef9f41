package ibc_test

import (
	"errors"
	"testing"
	"time"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/stretchr/testify/require"
)

func testPacket() ibc.Packet {
	return ibc.Packet{
		Sequence:           1,
		SourcePort:         ibc.TransferPort,
		SourceChannel:      "channel-0",
		DestinationPort:    ibc.TransferPort,
		DestinationChannel: "channel-1",
		Data:               []byte("hello"),
		TimeoutHeight:      ibc.NewHeight(0, 100),
	}
}

func TestPacketValidateBasic(t *testing.T) {
	require.NoError(t, testPacket().ValidateBasic())

	p := testPacket()
	p.Sequence = 0
	require.Error(t, p.ValidateBasic())

	p = testPacket()
	p.Data = nil
	require.Error(t, p.ValidateBasic())

	p = testPacket()
	p.TimeoutHeight = ibc.ZeroHeight
	require.Error(t, p.ValidateBasic())

	p.TimeoutTimestamp = uint64(time.Now().UnixNano())
	require.NoError(t, p.ValidateBasic())
}

func TestTimeoutReached(t *testing.T) {
	p := testPacket()
	require.False(t, ibc.TimeoutReached(p, ibc.NewHeight(0, 99), 0))
	require.True(t, ibc.TimeoutReached(p, ibc.NewHeight(0, 100), 0))
	require.True(t, ibc.TimeoutReached(p, ibc.NewHeight(1, 1), 0))

	p.TimeoutHeight = ibc.ZeroHeight
	p.TimeoutTimestamp = 1000
	require.False(t, ibc.TimeoutReached(p, ibc.NewHeight(0, 1_000_000), 999))
	require.True(t, ibc.TimeoutReached(p, ibc.NewHeight(0, 1), 1000))
}

func TestCommitPacket(t *testing.T) {
	p := testPacket()
	c := ibc.CommitPacket(p)
	require.Len(t, c, 32)
	require.Equal(t, c, ibc.CommitPacket(p))

	// the commitment binds the timeout and the data but not the identifiers
	other := p
	other.Data = []byte("hellO")
	require.NotEqual(t, c, ibc.CommitPacket(other))

	other = p
	other.TimeoutHeight = ibc.NewHeight(0, 101)
	require.NotEqual(t, c, ibc.CommitPacket(other))

	other = p
	other.Sequence = 2
	require.Equal(t, c, ibc.CommitPacket(other))
}

func TestPacketID(t *testing.T) {
	p := testPacket()
	require.Equal(t, "transfer/channel-0#1", ibc.PacketID(p))
	require.Equal(t, ibc.ChannelKey{
		ChannelID:             "channel-0",
		PortID:                ibc.TransferPort,
		CounterpartyChannelID: "channel-1",
		CounterpartyPortID:    ibc.TransferPort,
	}, ibc.PacketChannelKey(p))
}

func TestAcknowledgement(t *testing.T) {
	ack := ibc.NewResultAcknowledgement([]byte{0x01})
	require.True(t, ack.Success())

	decoded, err := ibc.DecodeAcknowledgement(ack.Acknowledgement())
	require.NoError(t, err)
	require.True(t, decoded.Success())
	require.Equal(t, []byte{0x01}, decoded.GetResult())

	failed := ibc.NewErrorAcknowledgement(errors.New("rejected"))
	require.False(t, failed.Success())
	decoded, err = ibc.DecodeAcknowledgement(failed.Acknowledgement())
	require.NoError(t, err)
	require.Equal(t, "rejected", decoded.GetError())

	require.Len(t, ibc.CommitAcknowledgement(ack.Acknowledgement()), 32)

	_, err = ibc.DecodeAcknowledgement([]byte("not json"))
	require.Error(t, err)
}

func TestCodecDeterministic(t *testing.T) {
	end := ibc.NewConnectionEnd(
		ibc.ConnectionInit,
		"07-tendermint-0",
		ibc.NewConnectionCounterparty("07-tendermint-1", "", []byte("ibc")),
		ibc.CompatibleVersions(),
		0,
	)
	bz1 := ibc.MustMarshal(&end)
	bz2 := ibc.MustMarshal(&end)
	require.Equal(t, bz1, bz2)

	var decoded ibc.ConnectionEnd
	require.NoError(t, ibc.Unmarshal(bz1, &decoded))
	require.Equal(t, end, decoded)
	require.Equal(t, bz1, ibc.MustMarshal(&decoded))

	// message values encode the same as pointers
	require.Equal(t, bz1, ibc.MustMarshal(end))
	h := ibc.NewHeight(1, 2)
	var decodedHeight ibc.Height
	require.NoError(t, ibc.Unmarshal(ibc.MustMarshal(h), &decodedHeight))
	require.Equal(t, h, decodedHeight)
}

func TestPickVersion(t *testing.T) {
	v, err := ibc.PickVersion(ibc.CompatibleVersions(), ibc.CompatibleVersions())
	require.NoError(t, err)
	require.True(t, ibc.VersionsEqual(v, ibc.DefaultVersion()))

	restricted := &ibc.Version{Identifier: "1", Features: []string{ibc.OrderUnordered}}
	v, err = ibc.PickVersion(ibc.CompatibleVersions(), []*ibc.Version{restricted})
	require.NoError(t, err)
	require.Equal(t, []string{ibc.OrderUnordered}, v.Features)
	require.True(t, ibc.IsSupportedVersion(ibc.CompatibleVersions(), restricted))
	require.True(t, ibc.HasFeature(v, ibc.OrderUnordered))
	require.False(t, ibc.HasFeature(v, ibc.OrderOrdered))

	_, err = ibc.PickVersion(ibc.CompatibleVersions(), []*ibc.Version{{Identifier: "2", Features: []string{ibc.OrderOrdered}}})
	require.Error(t, err)
	require.False(t, ibc.IsSupportedVersion(ibc.CompatibleVersions(), &ibc.Version{Identifier: "1", Features: []string{"ORDER_DAG"}}))

	// callers may mutate their copy without touching the default
	d := ibc.DefaultVersion()
	d.Features[0] = "ORDER_DAG"
	require.Equal(t, ibc.OrderOrdered, ibc.DefaultVersion().Features[0])
}
