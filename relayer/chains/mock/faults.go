package mock

import (
	"context"
	"fmt"
	"sync"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
	"github.com/cosmos/ibc-relayer/relayer/provider"
)

// faults holds injected failures.
type faults struct {
	mu              sync.Mutex
	failSubmits     int
	failQueries     int
	withheldSigners int
}

func (f *faults) submit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSubmits > 0 {
		f.failSubmits--
		return sdkerrors.Wrap(provider.ErrTxTransient, "injected submit failure")
	}
	return nil
}

func (f *faults) query(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failQueries > 0 {
		f.failQueries--
		return fmt.Errorf("injected query failure")
	}
	return nil
}

func (f *faults) signers(privs []lightclient.PrivValidator) []lightclient.PrivValidator {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(privs) - f.withheldSigners
	if n < 1 {
		n = 1
	}
	return privs[:n]
}

// FailSubmits makes the next n submissions fail with provider.ErrTxTransient
// without producing a block.
func (c *Chain) FailSubmits(n int) {
	c.faults.mu.Lock()
	defer c.faults.mu.Unlock()
	c.faults.failSubmits = n
}

// FailQueries makes the next n queries fail.
func (c *Chain) FailQueries(n int) {
	c.faults.mu.Lock()
	defer c.faults.mu.Unlock()
	c.faults.failQueries = n
}

// WithholdSignatures makes the next blocks be signed by all but n
// validators. Zero restores full signing.
func (c *Chain) WithholdSignatures(n int) {
	c.faults.mu.Lock()
	defer c.faults.mu.Unlock()
	c.faults.withheldSigners = n
}

// ForgeLightBlock returns a light block at height that conflicts with the
// committed one: it carries a different app hash but is signed by the same
// validators. It models a fork of the chain.
func (c *Chain) ForgeLightBlock(height ibc.Height, appHash []byte) (*provider.LightBlock, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, err := c.block(height)
	if err != nil {
		return nil, err
	}
	header := b.lightBlock.SignedHeader.Header
	header.AppHash = appHash

	var signers []lightclient.PrivValidator
	for _, pv := range c.privs {
		if b.lightBlock.ValidatorSet.GetByAddress(pv.Address()) != nil {
			signers = append(signers, pv)
		}
	}
	commit, err := lightclient.SignHeader(header, signers)
	if err != nil {
		return nil, err
	}
	return &provider.LightBlock{
		SignedHeader:     lightclient.SignedHeader{Header: header, Commit: commit},
		ValidatorSet:     b.lightBlock.ValidatorSet,
		NextValidatorSet: b.lightBlock.NextValidatorSet,
	}, nil
}
