package processor

import (
	"context"
	"testing"
	"time"

	"github.com/cosmos/ibc-relayer/relayer/chains/mock"
	"github.com/cosmos/ibc-relayer/relayer/core"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const testVersion = "ics20-1"

type testPath struct {
	log   *zap.Logger
	clock *mock.Clock
	a, b  *mock.Chain
	endA  *Endpoint
	endB  *Endpoint
}

func newTestPath(t *testing.T) *testPath {
	log := zaptest.NewLogger(t)
	clock := mock.NewClock(mock.GenesisTime, time.Second)
	a, err := mock.NewChain(log, mock.Config{ChainID: "chain-a-1"}, clock)
	require.NoError(t, err)
	b, err := mock.NewChain(log, mock.Config{ChainID: "chain-b-1"}, clock)
	require.NoError(t, err)

	endA := NewEndpoint(a, NewPathEnd(a.ChainID(), "", "", "", nil))
	endA.PortID = ibc.TransferPort
	endB := NewEndpoint(b, NewPathEnd(b.ChainID(), "", "", "", nil))
	endB.PortID = ibc.TransferPort
	return &testPath{log: log, clock: clock, a: a, b: b, endA: endA, endB: endB}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.PollInterval = 10 * time.Millisecond
	opts.Backoff = time.Millisecond
	opts.MaxBackoff = 5 * time.Millisecond
	opts.SubmitTimeout = 10 * time.Second
	return opts
}

// link opens a connection and a channel of the given order between a and b.
func (p *testPath) link(t *testing.T, order ibc.Order) {
	ctx := context.Background()
	_, err := CreateClients(ctx, p.log, p.endA, p.endB, false, testOptions())
	require.NoError(t, err)
	p.untilDone(t, func() (bool, error) {
		return ConnectionStep(ctx, p.log, p.endA, p.endB, testOptions())
	})
	p.untilDone(t, func() (bool, error) {
		return ChannelStep(ctx, p.log, p.endA, p.endB, order, testVersion, testOptions())
	})
}

func (p *testPath) untilDone(t *testing.T, step func() (bool, error)) {
	t.Helper()
	for i := 0; i < 10; i++ {
		done, err := step()
		require.NoError(t, err)
		if done {
			return
		}
	}
	t.Fatal("handshake did not complete")
}

func (p *testPath) processor(opts Options, cursors CursorStore, metrics *PrometheusMetrics) *PathProcessor {
	return NewPathProcessor(p.log, "test-path", p.endA, p.endB, opts, cursors, metrics)
}

// sendPacket sends data from a to b. A zero timeout height is replaced by
// one far in the future.
func (p *testPath) sendPacket(t *testing.T, data string, timeoutHeight ibc.Height) ibc.Packet {
	if timeoutHeight.IsZero() {
		timeoutHeight = lightclient.HeightOf(p.b.ChainID(), 10000)
	}
	res, err := p.a.SendMessages(context.Background(), []core.Msg{&core.MsgSendPacket{
		SourcePort:    p.endA.PortID,
		SourceChannel: p.endA.ChannelID,
		Data:          []byte(data),
		TimeoutHeight: timeoutHeight,
	}})
	require.NoError(t, err)
	for _, e := range res.Events {
		if e.Type == ibc.EventSendPacket {
			return e.Packet.Packet
		}
	}
	t.Fatal("no send packet event")
	return ibc.Packet{}
}

// runCycles runs relay cycles until cond holds.
func runCycles(t *testing.T, pp *PathProcessor, cond func() bool) {
	t.Helper()
	for i := 0; i < 10; i++ {
		require.NoError(t, pp.RunOnce(context.Background()))
		if cond() {
			return
		}
	}
	t.Fatal("condition not reached")
}
