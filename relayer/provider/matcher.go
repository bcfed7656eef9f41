package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
)

// ClientMatches reports whether the existing client clientID on src tracks
// dst and can be reused instead of creating a new one: it must follow the
// same chain with the same parameters as proposed, must not be frozen or
// expired, and its latest consensus state must match dst's block at that
// height.
func ClientMatches(ctx context.Context, src, dst QueryProvider, clientID string, proposed lightclient.ClientState, now time.Time) (bool, error) {
	srch, err := src.QueryLatestHeight(ctx)
	if err != nil {
		return false, err
	}
	existing, _, err := QueryClientState(ctx, src, srch, clientID)
	if err != nil {
		return false, fmt.Errorf("failed to query client %s on %s: %w", clientID, src.ChainID(), err)
	}
	if !isMatchingClient(existing, proposed) || existing.IsFrozen() {
		return false, nil
	}

	consState, _, err := QueryClientConsensusState(ctx, src, srch, clientID, existing.LatestHeight)
	if err != nil {
		return false, err
	}
	// a client that was not updated within the trusting period cannot be
	// reused
	if existing.IsExpired(consState.Timestamp, now) {
		return false, lightclient.ErrExpiredTrustingPeriod
	}

	lb, err := dst.QueryLightBlock(ctx, existing.LatestHeight)
	if err != nil {
		return false, err
	}
	return consState.Equal(lb.ConsensusState()), nil
}

// isMatchingClient compares two client states in all fields except the
// heights, which move with updates.
func isMatchingClient(a, b lightclient.ClientState) bool {
	a.LatestHeight, b.LatestHeight = ibc.ZeroHeight, ibc.ZeroHeight
	a.FrozenHeight, b.FrozenHeight = ibc.ZeroHeight, ibc.ZeroHeight
	return a == b
}
