package relayer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cosmos/ibc-relayer/relayer/processor"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// RelayerOptions are the settings StartRelayer runs paths with.
type RelayerOptions struct {
	Processor processor.Options
	// Monitor configures misbehaviour monitors. A zero poll interval
	// disables them.
	Monitor processor.Options
	Cursors processor.CursorStore
	Metrics *processor.PrometheusMetrics
}

// StartRelayer starts a path processor for every path and, unless disabled,
// a misbehaviour monitor for every client the paths use. A fatal error stops
// only the path or monitor that hit it; it is logged at once and the others
// keep running. The returned channel receives the combined errors after
// every path and monitor stopped, or nil when they all stopped because ctx
// is done.
func StartRelayer(ctx context.Context, log *zap.Logger, chains Chains, paths Paths, opts RelayerOptions) chan error {
	errorChan := make(chan error, 1)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	run := func(kind, name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			if err == nil || (ctx.Err() != nil && errors.Is(err, context.Canceled)) {
				return
			}
			log.Error("Relaying stopped",
				zap.String(kind, name),
				zap.Error(err),
			)
			mu.Lock()
			errs = multierr.Append(errs, fmt.Errorf("%s %s: %w", kind, name, err))
			mu.Unlock()
		}()
	}

	monitored := make(map[string]bool)
	for _, name := range paths.Names() {
		p := paths[name]
		src, err := chains.Get(p.Src.ChainID)
		if err != nil {
			errorChan <- fmt.Errorf("path %s: %w", name, err)
			return errorChan
		}
		dst, err := chains.Get(p.Dst.ChainID)
		if err != nil {
			errorChan <- fmt.Errorf("path %s: %w", name, err)
			return errorChan
		}

		srcFilter, dstFilter := p.filters()
		end1 := src.withPath(p.Src).endpoint(p.Filter.Rule, srcFilter)
		end2 := dst.withPath(p.Dst).endpoint(p.Filter.Rule, dstFilter)
		pp := processor.NewPathProcessor(log, name, end1, end2, opts.Processor, opts.Cursors, opts.Metrics)
		run("path", name, pp.Run)

		if opts.Monitor.PollInterval <= 0 {
			continue
		}
		for _, ends := range [][2]*Chain{{src, dst}, {dst, src}} {
			host, counterparty := ends[0], ends[1]
			clientID := p.End(host.ChainID()).ClientID
			key := host.ChainID() + "/" + clientID
			if clientID == "" || monitored[key] {
				continue
			}
			monitored[key] = true
			m := processor.NewMisbehaviourMonitor(
				log, host.ChainProvider, counterparty.Witness, clientID,
				opts.Monitor, opts.Cursors, opts.Metrics,
			)
			run("monitor", key, m.Run)
		}
	}

	go func() {
		wg.Wait()
		errorChan <- errs
	}()
	return errorChan
}

// withPath returns a copy of the chain bound to pe, so that one chain can
// serve several paths at once.
func (c *Chain) withPath(pe *PathEnd) *Chain {
	out := *c
	out.PathEnd = pe
	return &out
}
