package relayer

import (
	"context"
	"fmt"

	"github.com/cosmos/ibc-relayer/relayer/processor"
	"go.uber.org/zap"
)

// DefaultMaxSteps bounds the handshake transactions Link sends per
// handshake.
const DefaultMaxSteps = 16

// Link creates the clients, connection and channel of p between src and dst,
// reusing the identifiers already set on the path ends. The created
// identifiers are written back to the path ends.
func Link(ctx context.Context, log *zap.Logger, src, dst *Chain, p *Path, override bool, maxSteps int, opts processor.Options) error {
	if err := src.SetPath(p.Src); err != nil {
		return err
	}
	if err := dst.SetPath(p.Dst); err != nil {
		return err
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	end1, end2 := src.endpoint("", nil), dst.endpoint("", nil)
	defer func() {
		p.Src.ClientID, p.Src.ConnectionID, p.Src.ChannelID = end1.ClientID, end1.ConnectionID, end1.ChannelID
		p.Dst.ClientID, p.Dst.ConnectionID, p.Dst.ChannelID = end2.ClientID, end2.ConnectionID, end2.ChannelID
		p.Src.PortID, p.Dst.PortID = end1.PortID, end2.PortID
	}()

	modified, err := processor.CreateClients(ctx, log, end1, end2, override, opts)
	if err != nil {
		return err
	}
	if modified {
		// new clients invalidate connections and channels built on the old ones
		end1.ConnectionID, end2.ConnectionID = "", ""
		end1.ChannelID, end2.ChannelID = "", ""
	}

	if err := runSteps(ctx, "connection", maxSteps, func(ctx context.Context) (bool, error) {
		return processor.ConnectionStep(ctx, log, end1, end2, opts)
	}); err != nil {
		return err
	}
	log.Info("Connection open",
		zap.String("src_chain_id", end1.ChainID),
		zap.String("src_connection_id", end1.ConnectionID),
		zap.String("dst_chain_id", end2.ChainID),
		zap.String("dst_connection_id", end2.ConnectionID),
	)

	if err := runSteps(ctx, "channel", maxSteps, func(ctx context.Context) (bool, error) {
		return processor.ChannelStep(ctx, log, end1, end2, p.Ordering(), p.Version, opts)
	}); err != nil {
		return err
	}
	log.Info("Channel open",
		zap.String("src_chain_id", end1.ChainID),
		zap.String("src_channel_id", end1.ChannelID),
		zap.String("src_port_id", end1.PortID),
		zap.String("dst_chain_id", end2.ChainID),
		zap.String("dst_channel_id", end2.ChannelID),
		zap.String("dst_port_id", end2.PortID),
	)
	return nil
}

// CloseChannel closes the channel of p, starting on src.
func CloseChannel(ctx context.Context, log *zap.Logger, src, dst *Chain, p *Path, maxSteps int, opts processor.Options) error {
	if p.Src.ChannelID == "" || p.Dst.ChannelID == "" {
		return fmt.Errorf("path has no channel to close")
	}
	if err := src.SetPath(p.Src); err != nil {
		return err
	}
	if err := dst.SetPath(p.Dst); err != nil {
		return err
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	end1, end2 := src.endpoint("", nil), dst.endpoint("", nil)
	return runSteps(ctx, "channel_close", maxSteps, func(ctx context.Context) (bool, error) {
		return processor.ChannelCloseStep(ctx, log, end1, end2, opts)
	})
}

func runSteps(ctx context.Context, name string, maxSteps int, step func(context.Context) (bool, error)) error {
	for i := 0; i < maxSteps; i++ {
		done, err := step(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s handshake not finished after %d steps", name, maxSteps)
}
