package relayer

import (
	"fmt"
	"sort"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/processor"
	"github.com/cosmos/ibc-relayer/relayer/provider"
	"go.uber.org/zap"
)

// Chain represents the necessary data for connecting to and identifying a
// chain and its counterparties.
type Chain struct {
	log *zap.Logger

	ChainProvider provider.ChainProvider
	// Witness serves the same chain through a separate provider. Misbehaviour
	// monitors of the counterparty's clients compare headers against it.
	Witness       provider.QueryProvider

	PathEnd *PathEnd
}

// NewChain returns a new instance of Chain.
func NewChain(log *zap.Logger, prov provider.ChainProvider) *Chain {
	return &Chain{
		log:           log.With(zap.String("chain_id", prov.ChainID())),
		ChainProvider: prov,
		Witness:       prov,
	}
}

// ChainID returns the chain id of the chain.
func (c *Chain) ChainID() string {
	return c.ChainProvider.ChainID()
}

// SetPath sets the path end the chain is used with and validates the
// identifiers.
func (c *Chain) SetPath(p *PathEnd) error {
	if p.ChainID != c.ChainID() {
		return fmt.Errorf("path end is for chain %s, not %s", p.ChainID, c.ChainID())
	}
	if err := p.ValidateBasic(); err != nil {
		return fmt.Errorf("invalid path end for chain %s: %w", c.ChainID(), err)
	}
	c.PathEnd = p
	return nil
}

// ClientID returns the client of the chain's path end.
func (c *Chain) ClientID() string {
	return c.PathEnd.ClientID
}

// ConnectionID returns the connection of the chain's path end.
func (c *Chain) ConnectionID() string {
	return c.PathEnd.ConnectionID
}

func (c *Chain) String() string {
	return c.ChainID()
}

// endpoint binds the chain's path end to its provider for the processor.
func (c *Chain) endpoint(rule string, filter []ibc.ChannelKey) *processor.Endpoint {
	e := processor.NewEndpoint(c.ChainProvider, processor.NewPathEnd(
		c.ChainID(),
		c.PathEnd.ClientID,
		c.PathEnd.ConnectionID,
		rule,
		filter,
	))
	e.PortID = c.PathEnd.PortID
	if e.PortID == "" {
		e.PortID = ibc.TransferPort
	}
	e.ChannelID = c.PathEnd.ChannelID
	return e
}

// Chains is a collection of Chain keyed by chain id.
type Chains map[string]*Chain

// Get returns the configuration for a given chain.
func (c Chains) Get(chainID string) (*Chain, error) {
	if chain, ok := c[chainID]; ok {
		return chain, nil
	}
	return nil, fmt.Errorf("chain with ID %s is not configured", chainID)
}

// MustGet returns the chain and panics on any error.
func (c Chains) MustGet(chainID string) *Chain {
	out, err := c.Get(chainID)
	if err != nil {
		panic(err)
	}
	return out
}

// Gets returns a map chainIDs to their chains.
func (c Chains) Gets(chainIDs ...string) (map[string]*Chain, error) {
	out := make(map[string]*Chain, len(chainIDs))
	for _, cid := range chainIDs {
		chain, err := c.Get(cid)
		if err != nil {
			return nil, err
		}
		out[cid] = chain
	}
	return out, nil
}

// ChainIDs returns the sorted chain ids of the collection.
func (c Chains) ChainIDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
