package mock

import (
	"context"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
	"github.com/cosmos/ibc-relayer/relayer/provider"
)

func (c *Chain) QueryLatestHeight(ctx context.Context) (ibc.Height, error) {
	if err := c.faults.query(ctx); err != nil {
		return ibc.ZeroHeight, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latestHeight(), nil
}

func (c *Chain) QueryLightBlock(ctx context.Context, height ibc.Height) (*provider.LightBlock, error) {
	if err := c.faults.query(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, err := c.block(height)
	if err != nil {
		return nil, err
	}
	return b.lightBlock, nil
}

func (c *Chain) QueryConsensusState(ctx context.Context, height ibc.Height) (lightclient.ConsensusState, error) {
	lb, err := c.QueryLightBlock(ctx, height)
	if err != nil {
		return lightclient.ConsensusState{}, err
	}
	return lb.ConsensusState(), nil
}

func (c *Chain) QueryProof(ctx context.Context, path []byte, height ibc.Height) ([]byte, []byte, error) {
	if err := c.faults.query(ctx); err != nil {
		return nil, nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, err := c.block(height)
	if err != nil {
		return nil, nil, err
	}
	return b.snapshot.GetProof(c.keeper.Prefix(), path)
}

func (c *Chain) QueryBlockEvents(ctx context.Context, height ibc.Height) ([]ibc.Event, error) {
	if err := c.faults.query(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, err := c.block(height)
	if err != nil {
		return nil, err
	}
	return append([]ibc.Event(nil), b.events...), nil
}
