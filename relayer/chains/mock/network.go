package mock

import (
	"fmt"
	"sync"

	"github.com/cosmos/ibc-relayer/relayer/provider"
	"go.uber.org/zap"
)

// ChainType is the configuration type of in-memory chains.
const ChainType = "mock"

func init() {
	provider.RegisterProviderType(ChainType, func() provider.ProviderConfig { return &ProviderConfig{} })
}

// Network is a set of in-memory chains sharing a clock. Providers created
// from configuration for the same chain id share one chain.
type Network struct {
	mu     sync.Mutex
	clock  *Clock
	chains map[string]*Chain
}

func NewNetwork(clock *Clock) *Network {
	return &Network{clock: clock, chains: make(map[string]*Chain)}
}

// DefaultNetwork backs chains created from configuration.
var DefaultNetwork = NewNetwork(NewClock(GenesisTime, defaultBlockTime))

// Chain returns the chain described by cfg, starting it on first use.
func (n *Network) Chain(log *zap.Logger, cfg Config) (*Chain, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if c, ok := n.chains[cfg.ChainID]; ok {
		return c, nil
	}
	c, err := NewChain(log, cfg, n.clock)
	if err != nil {
		return nil, err
	}
	n.chains[cfg.ChainID] = c
	return c, nil
}

func (n *Network) Clock() *Clock {
	return n.clock
}

// ProviderConfig configures an in-memory chain.
type ProviderConfig struct {
	ChainID    string `json:"chain-id" yaml:"chain-id"`
	Validators int    `json:"validators" yaml:"validators"`
	Seed       string `json:"seed,omitempty" yaml:"seed,omitempty"`
}

var _ provider.ProviderConfig = (*ProviderConfig)(nil)

func (pc *ProviderConfig) Validate() error {
	if pc.ChainID == "" {
		return fmt.Errorf("chain-id cannot be empty")
	}
	if pc.Validators < 0 {
		return fmt.Errorf("validators cannot be negative, got %d", pc.Validators)
	}
	return nil
}

func (pc *ProviderConfig) NewProvider(log *zap.Logger) (provider.ChainProvider, error) {
	if err := pc.Validate(); err != nil {
		return nil, err
	}
	return DefaultNetwork.Chain(log, Config{ChainID: pc.ChainID, Validators: pc.Validators, Seed: pc.Seed})
}
