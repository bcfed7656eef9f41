package cmd

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cosmos/ibc-relayer/relayer"
	"github.com/cosmos/ibc-relayer/relayer/chains/mock"
	"github.com/cosmos/ibc-relayer/relayer/core"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
	"github.com/cosmos/ibc-relayer/relayer/processor"
	"github.com/cosmos/ibc-relayer/relayer/provider"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	demoSrcChainID = "demo-a-1"
	demoDstChainID = "demo-b-1"

	// offset of packets sent without a timeout height offset
	demoFarTimeout = 1 << 20
)

type demoSummary struct {
	Path         *relayer.Path
	Sent         int
	Received     int
	Acknowledged int
	TimedOut     int
	ClientFrozen bool
}

// demoCmd runs a complete relay between two in-memory chains.
func demoCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Link two in-memory chains, relay packets between them and print a summary",
		Long: strings.TrimSpace(`Start two in-memory chains, create clients, a connection and a channel
between them, send packets from the first chain and relay them until every
packet is acknowledged or timed out. With --fork a conflicting header of the
second chain is submitted to the first one and the misbehaviour monitor is
expected to freeze the client.`),
		Args: withUsage(cobra.NoArgs),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s demo
$ %s demo --packets 10 --timeout-height-offset 3
$ %s demo --fork`, appName, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			packets, _ := cmd.Flags().GetInt(flagPackets)
			offset, _ := cmd.Flags().GetUint64(flagTimeoutHeight)
			fork, _ := cmd.Flags().GetBool(flagForkClient)
			timeout, _ := cmd.Flags().GetDuration(flagRelayTimeoutDur)
			if packets < 0 {
				return fmt.Errorf("--%s must not be negative", flagPackets)
			}

			opts := demoOptions()
			summary, err := runDemo(cmd.Context(), a.Log, packets, offset, fork, timeout, opts)
			if summary != nil {
				printDemoSummary(cmd.OutOrStdout(), summary)
			}
			return err
		},
	}
	return demoFlags(a.Viper, cmd)
}

func demoOptions() processor.Options {
	opts := processor.DefaultOptions()
	opts.PollInterval = 50 * time.Millisecond
	opts.Backoff = 10 * time.Millisecond
	opts.MaxBackoff = 100 * time.Millisecond
	return opts
}

func runDemo(
	ctx context.Context,
	log *zap.Logger,
	packets int,
	offset uint64,
	fork bool,
	timeout time.Duration,
	opts processor.Options,
) (*demoSummary, error) {
	network := mock.NewNetwork(mock.NewClock(mock.GenesisTime, time.Second))
	a, err := network.Chain(log, mock.Config{ChainID: demoSrcChainID})
	if err != nil {
		return nil, err
	}
	b, err := network.Chain(log, mock.Config{ChainID: demoDstChainID})
	if err != nil {
		return nil, err
	}
	src, dst := relayer.NewChain(log, a), relayer.NewChain(log, b)

	p := relayer.GenPath(a.ChainID(), b.ChainID(), "", "", "", "ics20-1")
	if err := relayer.Link(ctx, log, src, dst, p, false, relayer.DefaultMaxSteps, opts); err != nil {
		return nil, fmt.Errorf("failed to link demo chains: %w", err)
	}
	summary := &demoSummary{Path: p}

	latestB, err := b.QueryLatestHeight(ctx)
	if err != nil {
		return summary, err
	}
	if offset == 0 {
		offset = demoFarTimeout
	}
	for i := 0; i < packets; i++ {
		if _, err := a.SendMessages(ctx, []core.Msg{&core.MsgSendPacket{
			SourcePort:    p.Src.PortID,
			SourceChannel: p.Src.ChannelID,
			Data:          []byte(fmt.Sprintf("demo packet %d", i+1)),
			TimeoutHeight: lightclient.HeightOf(b.ChainID(), latestB.RevisionHeight+offset),
		}}); err != nil {
			return summary, fmt.Errorf("failed to send packet %d: %w", i+1, err)
		}
		summary.Sent++
	}

	if fork {
		if err := forkClient(ctx, a, b, p.Src.ClientID); err != nil {
			return summary, err
		}
	}

	relayCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	monitor := opts
	monitor.PollInterval = 2 * opts.PollInterval
	errCh := relayer.StartRelayer(relayCtx, log, relayer.Chains{a.ChainID(): src, b.ChainID(): dst}, relayer.Paths{"demo": p}, relayer.RelayerOptions{
		Processor: opts,
		Monitor:   monitor,
		Metrics:   processor.NewPrometheusMetrics(),
	})

	done := func() bool {
		summary.Received = len(b.App().Received())
		summary.Acknowledged = len(a.App().Acknowledged())
		summary.TimedOut = len(a.App().TimedOut())
		if fork {
			summary.ClientFrozen = clientFrozen(relayCtx, a, p.Src.ClientID)
			return summary.ClientFrozen
		}
		return summary.Acknowledged+summary.TimedOut == summary.Sent
	}

	// a frozen client stops the path, which is the expected end of a fork
	expected := func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled) ||
			(fork && errors.Is(err, lightclient.ErrClientFrozen))
	}

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()
	for !done() {
		select {
		case err := <-errCh:
			if done() && expected(err) {
				return summary, nil
			}
			if err == nil || errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("demo did not finish within %s", timeout)
			}
			return summary, err
		case <-ticker.C:
		}
	}

	cancel()
	if err := <-errCh; !expected(err) {
		return summary, err
	}
	return summary, nil
}

// forkClient updates host's client of counterparty with a header that
// conflicts with the counterparty's committed block.
func forkClient(ctx context.Context, host, counterparty *mock.Chain, clientID string) error {
	latest, err := host.QueryLatestHeight(ctx)
	if err != nil {
		return err
	}
	cs, _, err := provider.QueryClientState(ctx, host, latest, clientID)
	if err != nil {
		return err
	}
	height := counterparty.ProduceBlocks(2)
	header, err := provider.NewUpdateHeader(ctx, counterparty, cs.LatestHeight, height)
	if err != nil {
		return err
	}
	appHash := sha256.Sum256([]byte("fork"))
	lb, err := counterparty.ForgeLightBlock(height, appHash[:])
	if err != nil {
		return err
	}
	header.SignedHeader = lb.SignedHeader
	_, err = host.SendMessages(ctx, []core.Msg{&core.MsgUpdateClient{ClientID: clientID, Header: header}})
	return err
}

func clientFrozen(ctx context.Context, host *mock.Chain, clientID string) bool {
	latest, err := host.QueryLatestHeight(ctx)
	if err != nil {
		return false
	}
	cs, _, err := provider.QueryClientState(ctx, host, latest, clientID)
	return err == nil && cs.IsFrozen()
}

func printDemoSummary(w io.Writer, s *demoSummary) {
	fmt.Fprintf(w, "path:         %s[%s/%s] <-> %s[%s/%s]\n",
		s.Path.Src.ChainID, s.Path.Src.PortID, s.Path.Src.ChannelID,
		s.Path.Dst.ChainID, s.Path.Dst.PortID, s.Path.Dst.ChannelID)
	fmt.Fprintf(w, "sent:         %d\n", s.Sent)
	fmt.Fprintf(w, "received:     %d\n", s.Received)
	fmt.Fprintf(w, "acknowledged: %d\n", s.Acknowledged)
	fmt.Fprintf(w, "timed out:    %d\n", s.TimedOut)
	fmt.Fprintf(w, "frozen:       %t\n", s.ClientFrozen)
}
