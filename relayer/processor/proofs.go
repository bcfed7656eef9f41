package processor

import (
	"context"
	"fmt"
	"time"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/cosmos/ibc-relayer/relayer/commitment"
	"github.com/cosmos/ibc-relayer/relayer/common"
	"github.com/cosmos/ibc-relayer/relayer/core"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
	"github.com/cosmos/ibc-relayer/relayer/provider"
)

// proofSource proves state of src to dst at a single height. When dst's
// client of src is behind that height, update carries the header that
// brings it there and must be delivered before the proofs.
type proofSource struct {
	src    *Endpoint
	height ibc.Height
	root   commitment.Root
	update *core.MsgUpdateClient

	// dstHeight and dstTime are dst's latest block when the source was built.
	dstHeight ibc.Height
	dstTime   time.Time
}

// newProofSource prepares proofs of src's latest state for dst. The update
// header is verified locally against the trusted consensus state dst stores,
// so a header dst would reject is never submitted.
func newProofSource(ctx context.Context, src, dst *Endpoint) (*proofSource, error) {
	srcHeight, err := src.Provider.QueryLatestHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest height of %s: %w", src.ChainID, err)
	}
	dstBlock, err := provider.QueryLatestLightBlock(ctx, dst.Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest block of %s: %w", dst.ChainID, err)
	}
	ps := &proofSource{src: src, dstHeight: dstBlock.Height(), dstTime: dstBlock.Time()}

	cs, _, err := provider.QueryClientState(ctx, dst.Provider, ps.dstHeight, dst.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query client %s on %s: %w", dst.ClientID, dst.ChainID, err)
	}
	if cs.IsFrozen() {
		return nil, sdkerrors.Wrapf(lightclient.ErrClientFrozen, "client %s on %s", dst.ClientID, dst.ChainID)
	}

	trusted := cs.LatestHeight
	if trusted.GTE(srcHeight) {
		lb, err := src.Provider.QueryLightBlock(ctx, trusted)
		if err != nil {
			return nil, err
		}
		ps.height, ps.root = trusted, commitment.NewRoot(lb.SignedHeader.Header.AppHash)
		return ps, nil
	}

	header, err := provider.NewUpdateHeader(ctx, src.Provider, trusted, srcHeight)
	if err != nil {
		return nil, err
	}
	trustedState, _, err := provider.QueryClientConsensusState(ctx, dst.Provider, ps.dstHeight, dst.ClientID, trusted)
	if err != nil {
		return nil, fmt.Errorf("failed to query consensus state %s of client %s on %s: %w", trusted, dst.ClientID, dst.ChainID, err)
	}
	// The relayer's notion of now is the latest block time it has seen on
	// either chain.
	now := ps.dstTime
	if header.Time().After(now) {
		now = header.Time()
	}
	if _, err := lightclient.VerifyHeader(cs, trustedState, header, now); err != nil {
		return nil, fmt.Errorf("header %s of %s failed local verification: %w", srcHeight, src.ChainID, err)
	}

	ps.height, ps.root = srcHeight, commitment.NewRoot(header.SignedHeader.Header.AppHash)
	ps.update = &core.MsgUpdateClient{ClientID: dst.ClientID, Header: header}
	return ps, nil
}

// msgs prepends the client update, if any, to msgs.
func (ps *proofSource) msgs(msgs ...core.Msg) []core.Msg {
	if ps.update == nil {
		return msgs
	}
	return append([]core.Msg{ps.update}, msgs...)
}

// prove queries path on src at the proof height and checks the proof against
// the root before it is handed to the counterparty. A nil value comes with a
// proof of absence.
func (ps *proofSource) prove(ctx context.Context, path []byte) ([]byte, []byte, error) {
	value, proof, err := ps.src.Provider.QueryProof(ctx, path, ps.height)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query proof of %s on %s at %s: %w", path, ps.src.ChainID, ps.height, err)
	}
	mpath, err := commitment.ApplyPrefix(ps.src.Provider.CommitmentPrefix(), path)
	if err != nil {
		return nil, nil, err
	}
	if value == nil {
		err = commitment.VerifyNonMembership(commitment.ProofSpecs, ps.root, proof, mpath)
	} else {
		err = commitment.VerifyMembership(commitment.ProofSpecs, ps.root, proof, mpath, value)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("proof of %s on %s at %s failed local verification: %w", path, ps.src.ChainID, ps.height, err)
	}
	return value, proof, nil
}

func (ps *proofSource) proveDecoded(ctx context.Context, path []byte, v any) ([]byte, error) {
	value, proof, err := ps.prove(ctx, path)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, sdkerrors.Wrapf(provider.ErrNotFound, "%s on %s at %s", path, ps.src.ChainID, ps.height)
	}
	if err := ibc.Unmarshal(value, v); err != nil {
		return nil, fmt.Errorf("failed to decode %s on %s: %w", path, ps.src.ChainID, err)
	}
	return proof, nil
}

func (ps *proofSource) connection(ctx context.Context, connectionID string) (ibc.ConnectionEnd, []byte, error) {
	var end ibc.ConnectionEnd
	proof, err := ps.proveDecoded(ctx, common.GetConnectionPath(connectionID), &end)
	return end, proof, err
}

func (ps *proofSource) clientState(ctx context.Context, clientID string) (lightclient.ClientState, []byte, error) {
	var cs lightclient.ClientState
	proof, err := ps.proveDecoded(ctx, common.GetClientStatePath(clientID), &cs)
	return cs, proof, err
}

func (ps *proofSource) channel(ctx context.Context, portID, channelID string) (ibc.ChannelEnd, []byte, error) {
	var end ibc.ChannelEnd
	proof, err := ps.proveDecoded(ctx, common.GetChannelPath(portID, channelID), &end)
	return end, proof, err
}
