package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cosmos/ibc-relayer/relayer/core"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/provider"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// A client is refreshed once less than 1/clientRefreshFraction of its
// trusting period remains.
const clientRefreshFraction = 3

// PathProcessor relays between the two ends of a path. It reads the events
// of both chains, completes handshakes started by either side and delivers
// packets and acknowledgements. All of its steps run sequentially.
type PathProcessor struct {
	log     *zap.Logger
	name    string
	opts    Options
	cursors CursorStore
	metrics *PrometheusMetrics

	pathEnd1 *pathEndRuntime
	pathEnd2 *pathEndRuntime

	started bool
}

// NewPathProcessor returns a processor for the path name between end1 and
// end2. Without a cursor store, cursors live in memory. metrics may be nil.
func NewPathProcessor(
	log *zap.Logger,
	name string,
	end1, end2 *Endpoint,
	opts Options,
	cursors CursorStore,
	metrics *PrometheusMetrics,
) *PathProcessor {
	if cursors == nil {
		cursors = NewMemoryCursorStore()
	}
	return &PathProcessor{
		log:      log.With(zap.String("path_name", name)),
		name:     name,
		opts:     opts,
		cursors:  cursors,
		metrics:  metrics,
		pathEnd1: newPathEndRuntime(end1),
		pathEnd2: newPathEndRuntime(end2),
	}
}

func (pp *PathProcessor) Name() string {
	return pp.name
}

// PacketState returns the tracked state of a packet sent by chainID.
func (pp *PathProcessor) PacketState(chainID string, channel ibc.ChannelKey, sequence uint64) ibc.PacketState {
	rt, _ := pp.ends(chainID)
	if rt == nil {
		return ibc.PacketUnknown
	}
	return rt.tracker.State(channel, sequence)
}

// Pending returns how many packets and handshakes wait to be relayed.
func (pp *PathProcessor) Pending() int {
	return pp.pathEnd1.pendingCount() + pp.pathEnd2.pendingCount()
}

func (pp *PathProcessor) ends(chainID string) (*pathEndRuntime, *pathEndRuntime) {
	switch chainID {
	case pp.pathEnd1.ChainID:
		return pp.pathEnd1, pp.pathEnd2
	case pp.pathEnd2.ChainID:
		return pp.pathEnd2, pp.pathEnd1
	}
	return nil, nil
}

// Run relays until ctx is done or a fatal error stops the path. Non-fatal
// errors are logged and the failed work is retried in a later cycle.
func (pp *PathProcessor) Run(ctx context.Context) error {
	if err := pp.opts.Validate(); err != nil {
		return err
	}
	pp.log.Info("Starting path processor",
		zap.String("chain_id_1", pp.pathEnd1.ChainID),
		zap.String("chain_id_2", pp.pathEnd2.ChainID),
		zap.Duration("poll_interval", pp.opts.PollInterval),
	)

	ticker := time.NewTicker(pp.opts.PollInterval)
	defer ticker.Stop()
	for {
		err := pp.RunOnce(ctx)
		if ctx.Err() != nil {
			pp.log.Info("Path processor stopped", zap.Int("pending", pp.Pending()))
			return nil
		}
		if err != nil {
			class := Classify(err)
			if pp.metrics != nil {
				pp.metrics.IncPathFailure(pp.name, class.String())
			}
			if class == ClassFatal {
				pp.log.Error("Path stopped, operator intervention required", zap.Error(err))
				return err
			}
			pp.log.Warn("Relay cycle finished with errors", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			pp.log.Info("Path processor stopped", zap.Int("pending", pp.Pending()))
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce runs a single relay cycle: read new blocks of both chains, advance
// handshakes, relay packets, then persist the cursors. A fatal error is
// returned on its own, other errors of the cycle are combined.
func (pp *PathProcessor) RunOnce(ctx context.Context) error {
	if !pp.started {
		if err := pp.start(ctx); err != nil {
			return err
		}
		pp.started = true
	}

	var errs error
	for _, e := range [][2]*pathEndRuntime{{pp.pathEnd1, pp.pathEnd2}, {pp.pathEnd2, pp.pathEnd1}} {
		rt, cp := e[0], e[1]
		events, err := rt.stream.Poll(ctx)
		if err != nil {
			if pp.metrics != nil {
				pp.metrics.IncBlockQueryFailure(rt.ChainID, "events")
			}
			errs = multierr.Append(errs, &PathError{Path: pp.name, Step: "poll", ChainID: rt.ChainID, Height: rt.stream.Cursor(), Err: err})
		}
		if err := pp.handleEvents(ctx, rt, cp, events); err != nil {
			errs = multierr.Append(errs, err)
		}
		if pp.metrics != nil {
			if h, ok := ibc.PrevHeight(rt.stream.Cursor()); ok {
				pp.metrics.SetLatestHeight(rt.ChainID, h.RevisionHeight)
			}
		}
	}

	for _, step := range []func(context.Context) error{
		pp.runHandshakes,
		func(ctx context.Context) error { return pp.relayPackets(ctx, pp.pathEnd1, pp.pathEnd2) },
		func(ctx context.Context) error { return pp.relayPackets(ctx, pp.pathEnd2, pp.pathEnd1) },
		pp.refreshClients,
	} {
		err := step(ctx)
		if IsFatal(err) || errors.Is(err, context.Canceled) {
			return err
		}
		errs = multierr.Append(errs, err)
	}

	if err := pp.saveCursors(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// start places the event streams at the saved cursors, or InitialBlockHistory
// blocks before the latest height when the path never ran.
func (pp *PathProcessor) start(ctx context.Context) error {
	for _, rt := range []*pathEndRuntime{pp.pathEnd1, pp.pathEnd2} {
		next, ok, err := pp.cursors.Cursor(pp.name, rt.ChainID)
		if err != nil {
			return err
		}
		if !ok {
			latest, err := rt.Provider.QueryLatestHeight(ctx)
			if err != nil {
				return &PathError{Path: pp.name, Step: "start", ChainID: rt.ChainID, Err: err}
			}
			next = startHeight(latest, pp.opts.InitialBlockHistory)
		}
		rt.stream = NewEventStream(rt.Provider, next)
		pp.log.Debug("Event stream positioned",
			zap.String("chain_id", rt.ChainID),
			zap.Stringer("height", next),
			zap.Bool("resumed", ok),
		)
	}
	return nil
}

func (pp *PathProcessor) saveCursors() error {
	var errs error
	for _, rt := range []*pathEndRuntime{pp.pathEnd1, pp.pathEnd2} {
		if err := pp.cursors.SaveCursor(pp.name, rt.ChainID, rt.cursor()); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to save cursor of %s: %w", rt.ChainID, err))
		}
	}
	return errs
}

// refreshClients updates a client that is about to expire even when no
// packets flow, and reports the time left on each client.
func (pp *PathProcessor) refreshClients(ctx context.Context) error {
	var errs error
	for _, e := range [][2]*pathEndRuntime{{pp.pathEnd1, pp.pathEnd2}, {pp.pathEnd2, pp.pathEnd1}} {
		host, cp := e[0], e[1]
		if host.ClientID == "" {
			continue
		}
		if err := pp.refreshClient(ctx, host, cp); err != nil {
			if IsFatal(err) {
				return err
			}
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (pp *PathProcessor) refreshClient(ctx context.Context, host, cp *pathEndRuntime) error {
	block, err := provider.QueryLatestLightBlock(ctx, host.Provider)
	if err != nil {
		return err
	}
	cs, _, err := provider.QueryClientState(ctx, host.Provider, block.Height(), host.ClientID)
	if err != nil {
		return err
	}
	consState, _, err := provider.QueryClientConsensusState(ctx, host.Provider, block.Height(), host.ClientID, cs.LatestHeight)
	if err != nil {
		return err
	}
	remaining := consState.Timestamp.Add(cs.TrustingPeriod).Sub(block.Time())
	if pp.metrics != nil {
		pp.metrics.SetClientExpiration(pp.name, host.ChainID, host.ClientID, cs.TrustingPeriod.String(), remaining)
		pp.metrics.SetClientTrustingPeriod(pp.name, host.ChainID, host.ClientID, cs.TrustingPeriod)
	}
	if cs.IsFrozen() || remaining > cs.TrustingPeriod/clientRefreshFraction {
		return nil
	}

	pp.log.Info("Refreshing client",
		zap.String("chain_id", host.ChainID),
		zap.String("client_id", host.ClientID),
		zap.Duration("time_to_expiration", remaining),
	)
	err = withRetry(ctx, pp.log, pp.opts, "update_client", nil, func(ctx context.Context) error {
		ps, err := newProofSource(ctx, cp.Endpoint, host.Endpoint)
		if err != nil {
			return err
		}
		if ps.update == nil {
			return nil
		}
		_, err = host.Provider.SendMessages(ctx, []core.Msg{ps.update})
		return err
	})
	if err != nil {
		return &PathError{Path: pp.name, Step: "update_client", ChainID: host.ChainID, Err: err}
	}
	return nil
}
