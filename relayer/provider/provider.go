package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/cosmos/ibc-relayer/relayer/commitment"
	"github.com/cosmos/ibc-relayer/relayer/core"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
	"go.uber.org/zap"
)

const codespace = "chainprovider"

var (
	// ErrTxTransient wraps submission failures that may succeed when retried,
	// e.g. a full mempool or an unreachable node.
	ErrTxTransient = sdkerrors.Register(codespace, 2, "transient transaction failure")
	// ErrTxRejected wraps a transaction the chain executed and rejected. The
	// cause is the chain's error.
	ErrTxRejected = sdkerrors.Register(codespace, 3, "transaction rejected")
	ErrNotFound   = sdkerrors.Register(codespace, 4, "not found")
	// ErrHeightUnavailable is returned for heights the chain has not
	// produced or has pruned.
	ErrHeightUnavailable = sdkerrors.Register(codespace, 5, "height unavailable")
)

// LightBlock is everything a light client needs to verify the header at a
// height: the signed header and the validator sets that signed it and that
// will sign the next block.
type LightBlock struct {
	SignedHeader     lightclient.SignedHeader
	ValidatorSet     *lightclient.ValidatorSet
	NextValidatorSet *lightclient.ValidatorSet
}

func (lb *LightBlock) Height() ibc.Height {
	return lb.SignedHeader.Header.Height
}

func (lb *LightBlock) Time() time.Time {
	return lb.SignedHeader.Header.Time
}

// ConsensusState is the consensus state a light client stores for this block.
func (lb *LightBlock) ConsensusState() lightclient.ConsensusState {
	return lightclient.ConsensusState{
		Timestamp:          lb.SignedHeader.Header.Time.UTC(),
		Root:               commitment.NewRoot(lb.SignedHeader.Header.AppHash),
		NextValidatorsHash: lb.SignedHeader.Header.NextValidatorsHash,
	}
}

// TxResult is the outcome of a transaction included in a block. Results holds
// one entry per message.
type TxResult struct {
	Height  ibc.Height
	Events  []ibc.Event
	Results []*core.Result
}

// QueryProvider answers queries about a chain's committed state.
// Proofs at height h verify against the app hash in the header of block h.
type QueryProvider interface {
	ChainID() string
	CommitmentPrefix() commitment.Prefix

	QueryLatestHeight(ctx context.Context) (ibc.Height, error)
	// QueryConsensusState returns the chain's own consensus state at height,
	// as a light client of this chain would store it.
	QueryConsensusState(ctx context.Context, height ibc.Height) (lightclient.ConsensusState, error)
	QueryLightBlock(ctx context.Context, height ibc.Height) (*LightBlock, error)
	// QueryProof returns the value stored at an ICS-24 path and a proof of its
	// membership or, when value is nil, its absence.
	QueryProof(ctx context.Context, path []byte, height ibc.Height) (value []byte, proof []byte, err error)
	// QueryBlockEvents returns the IBC events emitted by the block at height.
	QueryBlockEvents(ctx context.Context, height ibc.Height) ([]ibc.Event, error)
}

// TxProvider submits messages. Every message of a call executes in one
// transaction that either succeeds as a whole or is rejected.
type TxProvider interface {
	SendMessages(ctx context.Context, msgs []core.Msg) (*TxResult, error)
}

// ChainProvider is a chain the relayer can both query and submit to. Every
// implementation is safe for concurrent use.
type ChainProvider interface {
	QueryProvider
	TxProvider
}

// ProviderConfig is the chain-type specific part of a chain's configuration.
type ProviderConfig interface {
	NewProvider(log *zap.Logger) (ChainProvider, error)
	Validate() error
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() ProviderConfig)
)

// RegisterProviderType makes a chain type available to configuration. The
// constructor returns an empty config that the configuration loader decodes
// into.
func RegisterProviderType(typ string, newConfig func() ProviderConfig) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[typ]; ok {
		panic(fmt.Sprintf("provider type %s registered twice", typ))
	}
	registry[typ] = newConfig
}

// NewProviderConfig returns an empty config for chain type typ.
func NewProviderConfig(typ string) (ProviderConfig, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	newConfig, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("unknown chain type %q, expected one of %v", typ, providerTypes())
	}
	return newConfig(), nil
}

func providerTypes() []string {
	types := make([]string, 0, len(registry))
	for typ := range registry {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}
