package cmd_test

import (
	"encoding/json"
	"testing"

	"github.com/cosmos/ibc-relayer/internal/relayertest"
	"github.com/cosmos/ibc-relayer/relayer"
	"github.com/cosmos/ibc-relayer/relayer/chains/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Chains created through the CLI live in mock.DefaultNetwork for the whole
// test binary, so every test uses its own chain ids.

func mockChain(chainID string) relayer.ChainConfig {
	return relayer.ChainConfig{
		Type:  mock.ChainType,
		Value: &mock.ProviderConfig{ChainID: chainID, Validators: 4},
	}
}

func setupRelayer(t *testing.T, chainIDs ...string) *relayertest.System {
	sys := relayertest.NewSystem(t)

	_ = sys.MustRun(t, "config", "init")

	for _, chainID := range chainIDs {
		sys.MustAddChain(t, chainID, mockChain(chainID))
	}
	return sys
}

func TestChainsList_Empty(t *testing.T) {
	t.Parallel()

	sys := setupRelayer(t)

	res := sys.MustRun(t, "chains", "list")

	// Before adding any chains, attempting to list the chains gives a helpful message on stderr.
	require.Empty(t, res.Stdout.String())
	require.Contains(t, res.Stderr.String(), "no chains found")
}

func TestChainsAddListDelete(t *testing.T) {
	t.Parallel()

	sys := setupRelayer(t, "chains-a-1", "chains-b-1")

	res := sys.MustRun(t, "chains", "list")
	require.Contains(t, res.Stdout.String(), "chains-a-1")
	require.Contains(t, res.Stdout.String(), "type(mock)")

	res = sys.MustRun(t, "chains", "show", "chains-b-1", "--json")
	var cc relayer.ChainConfig
	require.NoError(t, json.Unmarshal(res.Stdout.Bytes(), &cc))
	require.Equal(t, mockChain("chains-b-1"), cc)

	_ = sys.MustRun(t, "chains", "delete", "chains-a-1")
	cfg := sys.MustGetConfig(t)
	require.NotContains(t, cfg.Chains, "chains-a-1")
	require.Contains(t, cfg.Chains, "chains-b-1")

	res = sys.Run(zaptest.NewLogger(t), "chains", "delete", "chains-a-1")
	require.Error(t, res.Err)
	require.Contains(t, res.Err.Error(), "not found")
}

func TestChainsAddRequiresFile(t *testing.T) {
	t.Parallel()

	sys := setupRelayer(t, "chains-file-1")

	cfgBefore := sys.MustGetConfig(t)
	res := sys.Run(zaptest.NewLogger(t), "chains", "add", "chains-file-2")
	require.Error(t, res.Err)
	require.Equal(t, cfgBefore, sys.MustGetConfig(t))
}
