/*
Package cmd includes relayer commands
Copyright © 2020 Jack Zampolin <jack.zampolin@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/cosmos/ibc-relayer/internal/relaydebug"
	"github.com/cosmos/ibc-relayer/internal/relayermetrics"
	"github.com/cosmos/ibc-relayer/relayer"
	"github.com/cosmos/ibc-relayer/relayer/processor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
func startCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start [path_name...]",
		Aliases: []string{"st"},
		Short:   "Start the relayer on the given paths, or on every configured path",
		Args:    withUsage(cobra.ArbitraryArgs),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s start
$ %s start demo-path --max-msgs 3
$ %s start demo-path demo-path2 --enable-metrics-server`, appName, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			global, err := applyRelayFlags(cmd, a.Config.Global)
			if err != nil {
				return err
			}

			paths, err := selectPaths(a.Config.Paths, args)
			if err != nil {
				return err
			}
			chains, err := a.chains()
			if err != nil {
				return err
			}

			metrics := processor.NewPrometheusMetrics()
			if err := a.startServers(cmd, global, metrics); err != nil {
				return err
			}

			cursors, closeCursors, err := a.cursorStore()
			if err != nil {
				return err
			}
			defer closeCursors()

			rlyErrCh := relayer.StartRelayer(cmd.Context(), a.Log, chains, paths, relayer.RelayerOptions{
				Processor: global.Options(),
				Monitor:   global.MonitorOptions(),
				Cursors:   cursors,
				Metrics:   metrics,
			})

			// Block until the error channel sends a message.
			// The context being canceled will cause the relayer to stop,
			// so we don't want to separately monitor the ctx.Done channel,
			// because we would risk returning before the relayer cleans up.
			if err := <-rlyErrCh; err != nil && !errors.Is(err, context.Canceled) {
				a.Log.Warn(
					"Relayer start error",
					zap.Error(err),
				)
				return err
			}
			return nil
		},
	}
	return relayFlags(metricsServerFlags(a.Viper, debugServerFlags(a.Viper, cmd)))
}

// selectPaths returns the named paths, or all paths when names is empty.
func selectPaths(all relayer.Paths, names []string) (relayer.Paths, error) {
	if len(names) == 0 {
		if len(all) == 0 {
			return nil, errors.New("no paths configured")
		}
		return all, nil
	}
	out := make(relayer.Paths, len(names))
	for _, name := range names {
		p, err := all.Get(name)
		if err != nil {
			return nil, err
		}
		out[name] = p
	}
	return out, nil
}

// startServers starts the debug server and, when enabled, the metrics
// server. Both stop when the command's context is done.
func (a *appState) startServers(cmd *cobra.Command, global relayer.GlobalConfig, metrics *processor.PrometheusMetrics) error {
	debugAddr, _ := cmd.Flags().GetString(flagDebugAddr)
	if debugAddr == "" {
		debugAddr = global.DebugListenAddr
	}
	if debugAddr == "" || debugAddr == "-" {
		a.Log.Info("Skipping debug server due to empty debug address flag")
	} else {
		ln, err := net.Listen("tcp", debugAddr)
		if err != nil {
			a.Log.Error("Failed to listen on debug address. If you have another relayer process open, use --" + flagDebugAddr + " to pick a different address.")
			return fmt.Errorf("failed to listen on debug address %q: %w", debugAddr, err)
		}
		log := a.Log.With(zap.String("sys", "debughttp"))
		log.Info("Debug server listening", zap.String("addr", ln.Addr().String()))
		relaydebug.StartDebugServer(cmd.Context(), log, ln, relaydebug.BuildInfo{
			Version: Version,
			Commit:  relaydebug.BuildCommit(),
		})
	}

	enabled, _ := cmd.Flags().GetBool(flagEnableMetrics)
	if !enabled {
		a.Log.Info("Metrics server is disabled, enable it with --" + flagEnableMetrics)
		return nil
	}
	metricsAddr, _ := cmd.Flags().GetString(flagMetricsAddr)
	if metricsAddr == "" {
		metricsAddr = global.MetricsListenAddr
	}
	ln, err := net.Listen("tcp", metricsAddr)
	if err != nil {
		a.Log.Error("Failed to start metrics server you can change the address and port using metrics-listen-addr config setting or --" + flagMetricsAddr + " flag")
		return fmt.Errorf("failed to listen on metrics address %q: %w", metricsAddr, err)
	}
	log := a.Log.With(zap.String("sys", "metricshttp"))
	log.Info("Metrics server listening", zap.String("addr", ln.Addr().String()))
	relayermetrics.StartMetricsServer(cmd.Context(), log, ln, metrics.Registry)
	return nil
}
