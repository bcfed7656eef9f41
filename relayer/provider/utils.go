package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
)

// Retry options for queries.
var (
	RtyAttNum = uint(5)
	RtyAtt    = retry.Attempts(RtyAttNum)
	RtyDel    = retry.Delay(time.Millisecond * 400)
	RtyErr    = retry.LastErrorOnly(true)
)

// QueryLatestLightBlock returns the light block at the latest height of p.
func QueryLatestLightBlock(ctx context.Context, p QueryProvider) (*LightBlock, error) {
	var lb *LightBlock
	err := retry.Do(func() error {
		h, err := p.QueryLatestHeight(ctx)
		if err != nil {
			return err
		}
		lb, err = p.QueryLightBlock(ctx, h)
		return err
	}, retry.Context(ctx), RtyAtt, RtyDel, RtyErr)
	return lb, err
}

// NewUpdateHeader builds the header that updates a client of src from
// trustedHeight to the light block at height. The trusted validators are the
// next validators of the trusted block.
func NewUpdateHeader(ctx context.Context, src QueryProvider, trustedHeight, height ibc.Height) (*lightclient.Header, error) {
	target, err := src.QueryLightBlock(ctx, height)
	if err != nil {
		return nil, fmt.Errorf("failed to query light block at %s on %s: %w", height, src.ChainID(), err)
	}
	trusted, err := src.QueryLightBlock(ctx, trustedHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to query trusted light block at %s on %s: %w", trustedHeight, src.ChainID(), err)
	}
	return &lightclient.Header{
		SignedHeader:      target.SignedHeader,
		ValidatorSet:      target.ValidatorSet,
		TrustedHeight:     trustedHeight,
		TrustedValidators: trusted.NextValidatorSet,
	}, nil
}
