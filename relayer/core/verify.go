package core

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/cosmos/ibc-relayer/relayer/commitment"
	"github.com/cosmos/ibc-relayer/relayer/common"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
)

// consensusStateAt returns the consensus state clientID trusts at height.
func (k *Keeper) consensusStateAt(ctx Context, clientID string, height ibc.Height) (lightclient.ConsensusState, error) {
	tr, err := k.activeClient(ctx, clientID)
	if err != nil {
		return lightclient.ConsensusState{}, err
	}
	consState, ok := tr.ConsensusState(height)
	if !ok {
		return lightclient.ConsensusState{}, sdkerrors.Wrapf(lightclient.ErrConsensusStateNotFound, "client %s at height %s", clientID, height)
	}
	return consState, nil
}

// verifyMembership verifies that the counterparty tracked by clientID stored
// value at path under prefix at proofHeight.
func (k *Keeper) verifyMembership(ctx Context, clientID string, prefix commitment.Prefix, proofHeight ibc.Height, proof, path, value []byte) error {
	consState, err := k.consensusStateAt(ctx, clientID, proofHeight)
	if err != nil {
		return err
	}
	mpath, err := commitment.ApplyPrefix(prefix, path)
	if err != nil {
		return err
	}
	return commitment.VerifyMembership(commitment.ProofSpecs, consState.Root, proof, mpath, value)
}

// verifyNonMembership verifies that the counterparty tracked by clientID had
// nothing stored at path under prefix at proofHeight.
func (k *Keeper) verifyNonMembership(ctx Context, clientID string, prefix commitment.Prefix, proofHeight ibc.Height, proof, path []byte) error {
	consState, err := k.consensusStateAt(ctx, clientID, proofHeight)
	if err != nil {
		return err
	}
	mpath, err := commitment.ApplyPrefix(prefix, path)
	if err != nil {
		return err
	}
	return commitment.VerifyNonMembership(commitment.ProofSpecs, consState.Root, proof, mpath)
}

// verifyConnectionState verifies the counterparty stored expected under
// counterpartyConnectionID.
func (k *Keeper) verifyConnectionState(ctx Context, conn ibc.ConnectionEnd, proofHeight ibc.Height, proof []byte, counterpartyConnectionID string, expected ibc.ConnectionEnd) error {
	bz, err := ibc.Marshal(&expected)
	if err != nil {
		return err
	}
	err = k.verifyMembership(ctx, conn.ClientId, conn.Counterparty.Prefix, proofHeight, proof, common.GetConnectionPath(counterpartyConnectionID), bz)
	if err != nil {
		return sdkerrors.Wrapf(err, "failed to verify connection %s in state %s", counterpartyConnectionID, expected.State)
	}
	return nil
}

// verifyClientState verifies the counterparty stored cs as its client
// conn.Counterparty.ClientId.
func (k *Keeper) verifyClientState(ctx Context, conn ibc.ConnectionEnd, proofHeight ibc.Height, proof []byte, cs lightclient.ClientState) error {
	bz, err := ibc.Marshal(cs)
	if err != nil {
		return err
	}
	err = k.verifyMembership(ctx, conn.ClientId, conn.Counterparty.Prefix, proofHeight, proof, common.GetClientStatePath(conn.Counterparty.ClientId), bz)
	if err != nil {
		return sdkerrors.Wrapf(err, "failed to verify client state of %s", conn.Counterparty.ClientId)
	}
	return nil
}

// verifyChannelState verifies the counterparty stored expected under
// (portID, channelID).
func (k *Keeper) verifyChannelState(ctx Context, conn ibc.ConnectionEnd, proofHeight ibc.Height, proof []byte, portID, channelID string, expected ibc.ChannelEnd) error {
	bz, err := ibc.Marshal(&expected)
	if err != nil {
		return err
	}
	err = k.verifyMembership(ctx, conn.ClientId, conn.Counterparty.Prefix, proofHeight, proof, common.GetChannelPath(portID, channelID), bz)
	if err != nil {
		return sdkerrors.Wrapf(err, "failed to verify channel %s/%s in state %s", portID, channelID, expected.State)
	}
	return nil
}
