package cmd_test

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/cosmos/ibc-relayer/internal/relayertest"
	"github.com/cosmos/ibc-relayer/relayer"
	"github.com/cosmos/ibc-relayer/relayer/chains/mock"
	"github.com/cosmos/ibc-relayer/relayer/core"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// setupLinkedPath configures two chains and links the path "demo" between them.
func setupLinkedPath(t *testing.T, srcChainID, dstChainID string) *relayertest.System {
	sys := setupRelayer(t, srcChainID, dstChainID)
	_ = sys.MustRun(t, "paths", "new", srcChainID, dstChainID, "demo")
	_ = sys.MustRun(t, "link", "demo")
	return sys
}

func TestPathsNewRequiresChains(t *testing.T) {
	t.Parallel()

	sys := setupRelayer(t, "paths-req-a-1")
	res := sys.Run(zaptest.NewLogger(t), "paths", "new", "paths-req-a-1", "paths-req-b-1", "demo")
	require.Error(t, res.Err)
	require.Contains(t, res.Err.Error(), "chains need to be configured")
}

func TestPathsAddShowDelete(t *testing.T) {
	t.Parallel()

	sys := setupRelayer(t, "paths-add-a-1", "paths-add-b-1")

	p := relayer.GenPath("paths-add-a-1", "paths-add-b-1", "", "", "ordered", "ics20-1")
	sys.MustAddPath(t, "demo", p)

	res := sys.MustRun(t, "paths", "list")
	require.Contains(t, res.Stdout.String(), "demo")
	require.Contains(t, res.Stdout.String(), "(paths-add-a-1<>paths-add-b-1)")

	res = sys.MustRun(t, "paths", "show", "demo", "--json")
	var shown relayer.PathWithStatus
	require.NoError(t, json.Unmarshal(res.Stdout.Bytes(), &shown))
	require.True(t, shown.Status.Chains)
	require.False(t, shown.Status.Clients)

	_ = sys.MustRun(t, "paths", "delete", "demo")
	require.Empty(t, sys.MustGetConfig(t).Paths)
}

func TestLinkWritesIdentifiers(t *testing.T) {
	t.Parallel()

	sys := setupLinkedPath(t, "link-a-1", "link-b-1")

	p := sys.MustGetConfig(t).Paths["demo"]
	require.NotNil(t, p)
	for _, end := range []*relayer.PathEnd{p.Src, p.Dst} {
		require.NotEmpty(t, end.ClientID)
		require.NotEmpty(t, end.ConnectionID)
		require.NotEmpty(t, end.ChannelID)
		require.Equal(t, ibc.TransferPort, end.PortID)
	}

	res := sys.MustRun(t, "paths", "show", "demo", "--json")
	var shown relayer.PathWithStatus
	require.NoError(t, json.Unmarshal(res.Stdout.Bytes(), &shown))
	require.Equal(t, relayer.PathStatus{Chains: true, Clients: true, Connection: true, Channel: true}, shown.Status)

	// linking again keeps the identifiers
	_ = sys.MustRun(t, "link", "demo")
	require.Equal(t, p, sys.MustGetConfig(t).Paths["demo"])
}

func TestListenOnce(t *testing.T) {
	t.Parallel()

	sys := setupLinkedPath(t, "listen-a-1", "listen-b-1")

	res := sys.MustRun(t, "listen", "listen-a-1", "--height", "1", "--once")

	types := map[string]bool{}
	scanner := bufio.NewScanner(strings.NewReader(res.Stdout.String()))
	for scanner.Scan() {
		var e struct {
			Type   string `json:"type"`
			Height string `json:"height"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		require.NotEmpty(t, e.Height)
		types[e.Type] = true
	}
	require.NoError(t, scanner.Err())
	require.True(t, types[string(ibc.EventCreateClient)])
	require.True(t, types[string(ibc.EventChannelOpenInit)] || types[string(ibc.EventChannelOpenAck)])
}

func TestCloseChannelCmd(t *testing.T) {
	t.Parallel()

	sys := setupLinkedPath(t, "close-a-1", "close-b-1")
	_ = sys.MustRun(t, "close-channel", "demo")

	res := sys.MustRun(t, "paths", "show", "demo", "--json")
	var shown relayer.PathWithStatus
	require.NoError(t, json.Unmarshal(res.Stdout.Bytes(), &shown))
	require.False(t, shown.Status.Channel)
}

func TestMisbehaviourRequiresLinkedPath(t *testing.T) {
	t.Parallel()

	sys := setupRelayer(t, "mis-a-1", "mis-b-1")
	_ = sys.MustRun(t, "paths", "new", "mis-a-1", "mis-b-1", "demo")

	res := sys.Run(zaptest.NewLogger(t), "misbehaviour", "demo")
	require.Error(t, res.Err)
	require.Contains(t, res.Err.Error(), "run link first")
}

func TestStartRelaysPackets(t *testing.T) {
	t.Parallel()

	sys := setupLinkedPath(t, "start-a-1", "start-b-1")
	p := sys.MustGetConfig(t).Paths["demo"]

	log := zaptest.NewLogger(t)
	a, err := mock.DefaultNetwork.Chain(log, mock.Config{ChainID: "start-a-1"})
	require.NoError(t, err)
	b, err := mock.DefaultNetwork.Chain(log, mock.Config{ChainID: "start-b-1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err = a.SendMessages(ctx, []core.Msg{&core.MsgSendPacket{
		SourcePort:    p.Src.PortID,
		SourceChannel: p.Src.ChannelID,
		Data:          []byte("ping"),
		TimeoutHeight: lightclient.HeightOf(b.ChainID(), 1<<20),
	}})
	require.NoError(t, err)

	resCh := make(chan relayertest.RunResult, 1)
	go func() {
		resCh <- sys.RunC(ctx, log, "start", "demo", "--debug-addr", "-", "--poll-interval", "20ms")
	}()

	require.Eventually(t, func() bool {
		return len(a.App().Acknowledged()) == 1
	}, 10*time.Second, 20*time.Millisecond)
	require.Equal(t, []byte("ping"), b.App().Received()[0].Data)

	cancel()
	select {
	case res := <-resCh:
		require.NoError(t, res.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("start did not return after cancel")
	}
}

func TestStartUnknownPath(t *testing.T) {
	t.Parallel()

	sys := setupRelayer(t)
	res := sys.Run(zaptest.NewLogger(t), "start", "nope", "--debug-addr", "-")
	require.Error(t, res.Err)
}
