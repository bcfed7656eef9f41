// Package mock implements an in-memory chain running the IBC handler. Each
// transaction is executed in its own block, whose header is signed by the
// chain's validators so counterparty light clients can verify it.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/cosmos/ibc-relayer/relayer/commitment"
	"github.com/cosmos/ibc-relayer/relayer/common"
	"github.com/cosmos/ibc-relayer/relayer/core"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
	"github.com/cosmos/ibc-relayer/relayer/provider"
	"go.uber.org/zap"
)

const (
	defaultValidators = 4
	defaultBlockTime  = time.Second
)

// Config describes an in-memory chain.
type Config struct {
	ChainID    string
	Validators int
	// Seed derives the validator keys. Chains with the same seed share
	// validator keys.
	Seed string
}

type block struct {
	lightBlock *provider.LightBlock
	snapshot   *commitment.Snapshot
	events     []ibc.Event
}

// Chain is an in-memory chain. It is safe for concurrent use; blocks are
// produced one at a time.
type Chain struct {
	log   *zap.Logger
	clock *Clock

	chainID  string
	revision uint64

	mu        sync.RWMutex
	privs     []lightclient.PrivValidator
	vals      *lightclient.ValidatorSet
	nextPrivs []lightclient.PrivValidator
	keeper    *core.Keeper
	app       *core.EchoApp
	blocks    []*block
	faults    faults
}

var _ provider.ChainProvider = (*Chain)(nil)

// NewChain starts a chain at height 1. The transfer port is bound to an
// EchoApp.
func NewChain(log *zap.Logger, cfg Config, clock *Clock) (*Chain, error) {
	if cfg.ChainID == "" {
		return nil, fmt.Errorf("chain id cannot be empty")
	}
	n := cfg.Validators
	if n <= 0 {
		n = defaultValidators
	}
	seed := cfg.Seed
	if seed == "" {
		seed = cfg.ChainID
	}
	privs := make([]lightclient.PrivValidator, n)
	for i := range privs {
		privs[i] = lightclient.NewPrivValidator(fmt.Sprintf("%s-validator-%d", seed, i), 10)
	}
	if clock == nil {
		clock = NewClock(GenesisTime, defaultBlockTime)
	}

	c := &Chain{
		log:      log.With(zap.String("chain_id", cfg.ChainID)),
		clock:    clock,
		chainID:  cfg.ChainID,
		revision: ibc.ParseChainID(cfg.ChainID),
		privs:    privs,
		vals:     lightclient.NewValidatorSetFromPrivs(privs),
		keeper:   core.NewKeeper(commitment.NewPrefix(common.StoreKey)),
		app:      &core.EchoApp{},
	}
	if err := c.keeper.BindPort(ibc.TransferPort, c.app); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.commitBlock(nil); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Chain) ChainID() string {
	return c.chainID
}

func (c *Chain) CommitmentPrefix() commitment.Prefix {
	return c.keeper.Prefix()
}

// Keeper returns the IBC handler state as of the latest block. It must only
// be read.
func (c *Chain) Keeper() *core.Keeper {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keeper
}

// App returns the application bound to the transfer port.
func (c *Chain) App() *core.EchoApp {
	return c.app
}

func (c *Chain) Clock() *Clock {
	return c.clock
}

// BindPort binds an application to portID.
func (c *Chain) BindPort(portID string, app core.Application) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keeper.BindPort(portID, app)
}

// SetValidators replaces the validator set starting with the block after
// next, announced in the next header.
func (c *Chain) SetValidators(privs []lightclient.PrivValidator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextPrivs = privs
}

// ProduceBlock commits an empty block.
func (c *Chain) ProduceBlock() ibc.Height {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.commitBlock(nil); err != nil {
		panic(err)
	}
	return c.latestHeight()
}

// ProduceBlocks commits n empty blocks.
func (c *Chain) ProduceBlocks(n int) ibc.Height {
	var h ibc.Height
	for i := 0; i < n; i++ {
		h = c.ProduceBlock()
	}
	return h
}

// SendMessages executes msgs as one transaction in a new block. If any message
// fails the block is still produced but none of the messages' state changes
// or events are kept, and the error wraps provider.ErrTxRejected.
func (c *Chain) SendMessages(ctx context.Context, msgs []core.Msg) (*provider.TxResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, sdkerrors.Wrap(provider.ErrTxTransient, err.Error())
	}
	if len(msgs) == 0 {
		return nil, sdkerrors.Wrap(provider.ErrTxRejected, "transaction has no messages")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.faults.submit(); err != nil {
		return nil, err
	}

	height := ibc.NextHeight(c.latestHeight())
	hctx := core.Context{ChainID: c.chainID, Height: height, Time: c.clock.Next()}
	k := c.keeper.Clone()
	results := make([]*core.Result, 0, len(msgs))
	var events []ibc.Event
	var txErr error
	for i, msg := range msgs {
		res, err := k.Deliver(hctx, msg)
		if err != nil {
			txErr = fmt.Errorf("message %d (%s): %w", i, msg.Type(), err)
			break
		}
		results = append(results, res)
		events = append(events, res.Events...)
	}

	if txErr != nil {
		if err := c.commitBlockAt(hctx.Time, nil); err != nil {
			return nil, err
		}
		c.log.Debug("Transaction rejected", zap.Uint64("height", height.RevisionHeight), zap.Error(txErr))
		return nil, fmt.Errorf("%w: %w", provider.ErrTxRejected, txErr)
	}

	c.keeper = k
	if err := c.commitBlockAt(hctx.Time, events); err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Height = height
	}
	c.log.Debug("Transaction committed",
		zap.Uint64("height", height.RevisionHeight),
		zap.Int("messages", len(msgs)),
		zap.Int("events", len(events)),
	)
	return &provider.TxResult{Height: height, Events: events, Results: results}, nil
}

func (c *Chain) latestHeight() ibc.Height {
	return ibc.NewHeight(c.revision, uint64(len(c.blocks)))
}

func (c *Chain) commitBlock(events []ibc.Event) error {
	return c.commitBlockAt(c.clock.Next(), events)
}

// commitBlockAt commits the keeper's state as the next block and signs its
// header.
func (c *Chain) commitBlockAt(t time.Time, events []ibc.Event) error {
	height := ibc.NextHeight(c.latestHeight())
	snapshot := c.keeper.Commit()

	vals := c.vals
	nextVals := vals
	if c.nextPrivs != nil {
		nextVals = lightclient.NewValidatorSetFromPrivs(c.nextPrivs)
	}
	header := lightclient.BlockHeader{
		ChainID:            c.chainID,
		Height:             height,
		Time:               t.UTC(),
		NextValidatorsHash: nextVals.Hash(),
		AppHash:            snapshot.Root().GetHash(),
	}
	sh, err := lightclient.NewSignedHeader(header, vals, c.faults.signers(c.privs))
	if err != nil {
		return err
	}

	tagged := make([]ibc.Event, 0, len(events)+1)
	tagged = append(tagged, ibc.Event{Type: ibc.EventNewBlock, Height: height})
	for _, e := range events {
		tagged = append(tagged, e.WithHeight(height))
	}
	c.blocks = append(c.blocks, &block{
		lightBlock: &provider.LightBlock{
			SignedHeader:     sh,
			ValidatorSet:     vals,
			NextValidatorSet: nextVals,
		},
		snapshot: snapshot,
		events:   tagged,
	})

	if c.nextPrivs != nil {
		c.privs, c.vals, c.nextPrivs = c.nextPrivs, nextVals, nil
	}
	return nil
}

func (c *Chain) block(height ibc.Height) (*block, error) {
	if height.RevisionNumber != c.revision || height.RevisionHeight == 0 || height.RevisionHeight > uint64(len(c.blocks)) {
		return nil, sdkerrors.Wrapf(provider.ErrHeightUnavailable, "%s on %s (latest %s)", height, c.chainID, c.latestHeight())
	}
	return c.blocks[height.RevisionHeight-1], nil
}
