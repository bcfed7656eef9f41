package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cosmos/ibc-relayer/relayer/processor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// misbehaviourCmd watches both clients of a path without relaying packets.
func misbehaviourCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "misbehaviour path_name",
		Aliases: []string{"mis"},
		Short:   "Watch the clients of a path for conflicting headers and submit evidence",
		Args:    withUsage(cobra.ExactArgs(1)),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s misbehaviour demo-path
$ %s mis demo-path --misbehaviour-interval 2s`, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			global, err := applyRelayFlags(cmd, a.Config.Global)
			if err != nil {
				return err
			}

			p, src, dst, err := a.pathChains(args[0])
			if err != nil {
				return err
			}
			if p.Src.ClientID == "" || p.Dst.ClientID == "" {
				return errPathNotLinked(args[0])
			}

			opts := global.MonitorOptions()
			if opts.PollInterval <= 0 {
				opts.PollInterval = global.PollInterval
			}

			cursors, closeCursors, err := a.cursorStore()
			if err != nil {
				return err
			}
			defer closeCursors()

			metrics := processor.NewPrometheusMetrics()
			log := a.Log.With(zap.String("path_name", args[0]))

			// the client on each end tracks the other chain, so the
			// counterparty's witness is the independent source of headers
			eg, egCtx := errgroup.WithContext(cmd.Context())
			for _, m := range []*processor.MisbehaviourMonitor{
				processor.NewMisbehaviourMonitor(log, src.ChainProvider, dst.Witness, p.Src.ClientID, opts, cursors, metrics),
				processor.NewMisbehaviourMonitor(log, dst.ChainProvider, src.Witness, p.Dst.ClientID, opts, cursors, metrics),
			} {
				m := m
				eg.Go(func() error {
					return m.Run(egCtx)
				})
			}
			if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	return relayFlags(cmd)
}
