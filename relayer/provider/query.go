package provider

import (
	"context"
	"fmt"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/cosmos/ibc-relayer/relayer/common"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
)

func queryDecoded(ctx context.Context, p QueryProvider, path []byte, height ibc.Height, v any) ([]byte, error) {
	value, proof, err := p.QueryProof(ctx, path, height)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, sdkerrors.Wrapf(ErrNotFound, "%s at %s on %s", path, height, p.ChainID())
	}
	if err := ibc.Unmarshal(value, v); err != nil {
		return nil, fmt.Errorf("failed to decode %s on %s: %w", path, p.ChainID(), err)
	}
	return proof, nil
}

// QueryClientState returns the client state of clientID on p and its proof.
func QueryClientState(ctx context.Context, p QueryProvider, height ibc.Height, clientID string) (lightclient.ClientState, []byte, error) {
	var cs lightclient.ClientState
	proof, err := queryDecoded(ctx, p, common.GetClientStatePath(clientID), height, &cs)
	return cs, proof, err
}

// QueryClientConsensusState returns the consensus state clientID on p stores
// for consensusHeight.
func QueryClientConsensusState(ctx context.Context, p QueryProvider, height ibc.Height, clientID string, consensusHeight ibc.Height) (lightclient.ConsensusState, []byte, error) {
	var cs lightclient.ConsensusState
	proof, err := queryDecoded(ctx, p, common.GetConsensusStatePath(clientID, consensusHeight), height, &cs)
	return cs, proof, err
}

func QueryConnection(ctx context.Context, p QueryProvider, height ibc.Height, connectionID string) (ibc.ConnectionEnd, []byte, error) {
	var end ibc.ConnectionEnd
	proof, err := queryDecoded(ctx, p, common.GetConnectionPath(connectionID), height, &end)
	return end, proof, err
}

func QueryChannel(ctx context.Context, p QueryProvider, height ibc.Height, portID, channelID string) (ibc.ChannelEnd, []byte, error) {
	var end ibc.ChannelEnd
	proof, err := queryDecoded(ctx, p, common.GetChannelPath(portID, channelID), height, &end)
	return end, proof, err
}

// QueryPacketCommitment returns the stored commitment of a sent packet, nil
// once the packet was acknowledged or timed out, with a proof either way.
func QueryPacketCommitment(ctx context.Context, p QueryProvider, height ibc.Height, portID, channelID string, seq uint64) ([]byte, []byte, error) {
	return p.QueryProof(ctx, common.GetPacketCommitmentPath(portID, channelID, seq), height)
}

// QueryPacketAcknowledgement returns the acknowledgement commitment of a
// received packet, nil if none was written.
func QueryPacketAcknowledgement(ctx context.Context, p QueryProvider, height ibc.Height, portID, channelID string, seq uint64) ([]byte, []byte, error) {
	return p.QueryProof(ctx, common.GetPacketAcknowledgementPath(portID, channelID, seq), height)
}

// QueryPacketReceipt reports whether a receipt exists for seq on an unordered
// channel.
func QueryPacketReceipt(ctx context.Context, p QueryProvider, height ibc.Height, portID, channelID string, seq uint64) (bool, []byte, error) {
	value, proof, err := p.QueryProof(ctx, common.GetPacketReceiptPath(portID, channelID, seq), height)
	return value != nil, proof, err
}

func QueryNextSequenceRecv(ctx context.Context, p QueryProvider, height ibc.Height, portID, channelID string) (uint64, []byte, error) {
	value, proof, err := p.QueryProof(ctx, common.GetNextSequenceRecvPath(portID, channelID), height)
	if err != nil {
		return 0, nil, err
	}
	if value == nil {
		return 0, nil, sdkerrors.Wrapf(ErrNotFound, "next sequence recv of %s/%s on %s", portID, channelID, p.ChainID())
	}
	return common.BytesToUint64(value), proof, nil
}
