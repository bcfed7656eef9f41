package common_test

import (
	"bytes"
	"testing"

	"github.com/cosmos/ibc-relayer/relayer/common"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/stretchr/testify/require"
)

func TestCommitmentPaths(t *testing.T) {
	require.Equal(t, "clients/07-tendermint-0/clientState", string(common.GetClientStatePath("07-tendermint-0")))
	require.Equal(t, "clients/07-tendermint-0/consensusStates/1-42", string(common.GetConsensusStatePath("07-tendermint-0", ibc.NewHeight(1, 42))))
	require.Equal(t, "connections/connection-0", string(common.GetConnectionPath("connection-0")))
	require.Equal(t, "channelEnds/ports/transfer/channels/channel-0", string(common.GetChannelPath("transfer", "channel-0")))
	require.Equal(t, "nextSequenceRecv/ports/transfer/channels/channel-0", string(common.GetNextSequenceRecvPath("transfer", "channel-0")))
	require.Equal(t, "commitments/ports/transfer/channels/channel-0/sequences/7", string(common.GetPacketCommitmentPath("transfer", "channel-0", 7)))
	require.Equal(t, "acks/ports/transfer/channels/channel-0/sequences/7", string(common.GetPacketAcknowledgementPath("transfer", "channel-0", 7)))
	require.Equal(t, "receipts/ports/transfer/channels/channel-0/sequences/7", string(common.GetPacketReceiptPath("transfer", "channel-0", 7)))
}

func TestCommitmentPrefixPaths(t *testing.T) {
	require.Equal(t, "connections/", string(common.GetConnectionPrefixPath()))
	require.Equal(t, "channelEnds/ports/transfer/channels/", string(common.GetChannelPrefixPath("transfer")))

	prefix := common.GetPacketCommitmentPrefixPath("transfer", "channel-1")
	require.Equal(t, "commitments/ports/transfer/channels/channel-1/sequences/", string(prefix))
	require.True(t, bytes.HasPrefix(common.GetPacketCommitmentPath("transfer", "channel-1", 3), prefix))
	require.False(t, bytes.HasPrefix(common.GetPacketCommitmentPath("transfer", "channel-10", 3), prefix))
}

func TestUint64Bytes(t *testing.T) {
	require.Equal(t, uint64(1<<40+5), common.BytesToUint64(common.Uint64ToBytes(1<<40+5)))
	require.Zero(t, common.BytesToUint64([]byte{1, 2}))
}
