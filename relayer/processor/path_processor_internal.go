package processor

import (
	"context"
	"errors"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/provider"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type handshakeKind int

const (
	connectionHandshake handshakeKind = iota
	channelHandshake
	channelClose
)

func (k handshakeKind) String() string {
	switch k {
	case connectionHandshake:
		return "connection_handshake"
	case channelHandshake:
		return "channel_handshake"
	default:
		return "channel_close"
	}
}

// handshake is a handshake step owed to the counterparty of the chain that
// emitted the event at height. self and counterparty are copies of the path
// ends carrying the identifiers of this handshake.
type handshake struct {
	kind         handshakeKind
	height       ibc.Height
	self         *Endpoint
	counterparty *Endpoint
	order        ibc.Order
	version      string
	failures     uint
}

// handleEvents translates the events of rt into pending work.
func (pp *PathProcessor) handleEvents(ctx context.Context, rt, cp *pathEndRuntime, events []ibc.Event) error {
	var errs error
	for _, e := range events {
		var err error
		switch {
		case e.IsPacketEvent():
			err = pp.handlePacketEvent(ctx, rt, cp, e)
		case e.IsConnectionEvent():
			pp.handleConnectionEvent(rt, cp, e)
		case e.IsChannelEvent():
			err = pp.handleChannelEvent(ctx, rt, cp, e)
		}
		if err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (pp *PathProcessor) handlePacketEvent(ctx context.Context, rt, cp *pathEndRuntime, e ibc.Event) error {
	info := *e.Packet
	p := info.Packet

	// send, acknowledge and timeout are emitted by the source chain
	channel := ibc.PacketChannelKey(p)
	if e.Type == ibc.EventRecvPacket || e.Type == ibc.EventWriteAcknowledgement {
		channel = channel.Counterparty()
	}
	relevant, err := rt.isRelevantChannel(ctx, channel.PortID, channel.ChannelID)
	if err != nil {
		return err
	}
	if !relevant || !rt.ShouldRelayChannel(channel) {
		return nil
	}
	if pp.metrics != nil {
		pp.metrics.AddPacketsObserved(pp.name, rt.ChainID, channel.ChannelID, channel.PortID, string(e.Type), 1)
	}

	key := packetKey{channel: ibc.PacketChannelKey(p), sequence: p.Sequence}
	tracker := rt.tracker
	switch e.Type {
	case ibc.EventSendPacket:
		rt.recvs[key] = pendingPacket{info: info, height: e.Height}
	case ibc.EventRecvPacket:
		tracker = cp.tracker
		delete(cp.recvs, key)
	case ibc.EventWriteAcknowledgement:
		rt.acks[key] = pendingPacket{info: info, height: e.Height}
		return nil
	case ibc.EventAcknowledgePacket:
		delete(rt.recvs, key)
		delete(cp.acks, key)
	case ibc.EventTimeoutPacket, ibc.EventTimeoutOnClosePacket:
		delete(rt.recvs, key)
	}
	if err := tracker.observe(e); err != nil {
		pp.log.Debug("Packet state not updated", zap.String("chain_id", rt.ChainID), zap.Error(err))
	}
	return nil
}

// handleConnectionEvent queues the next step of a connection handshake
// between the path's clients.
func (pp *PathProcessor) handleConnectionEvent(rt, cp *pathEndRuntime, e ibc.Event) {
	info := e.Connection
	if e.Type == ibc.EventConnectionOpenConfirm || info.ClientID != rt.ClientID {
		return
	}
	if info.CounterpartyClientID != "" && info.CounterpartyClientID != cp.ClientID {
		return
	}
	if rt.ConnectionID != "" && info.ConnectionID != rt.ConnectionID {
		return
	}

	self, counterparty := *rt.Endpoint, *cp.Endpoint
	self.ConnectionID = info.ConnectionID
	counterparty.ConnectionID = info.CounterpartyConnectionID
	pp.queueHandshake(rt, "connection/"+info.ConnectionID, &handshake{
		kind:         connectionHandshake,
		height:       e.Height,
		self:         &self,
		counterparty: &counterparty,
	})
}

// handleChannelEvent queues the next step of a channel handshake or close
// on the path's connection.
func (pp *PathProcessor) handleChannelEvent(ctx context.Context, rt, cp *pathEndRuntime, e ibc.Event) error {
	info := e.Channel
	kind := channelHandshake
	switch e.Type {
	case ibc.EventChannelOpenInit, ibc.EventChannelOpenTry, ibc.EventChannelOpenAck:
	case ibc.EventChannelCloseInit:
		kind = channelClose
	default:
		return nil
	}
	if rt.ConnectionID != "" && info.ConnectionID != rt.ConnectionID {
		return nil
	}
	if !rt.ShouldRelayChannel(info.ChannelKey()) {
		return nil
	}

	self, counterparty := *rt.Endpoint, *cp.Endpoint
	self.ConnectionID = info.ConnectionID
	self.PortID, self.ChannelID = info.PortID, info.ChannelID
	counterparty.PortID, counterparty.ChannelID = info.CounterpartyPortID, info.CounterpartyChannelID
	if counterparty.ConnectionID == "" {
		h, err := rt.Provider.QueryLatestHeight(ctx)
		if err != nil {
			return err
		}
		conn, _, err := provider.QueryConnection(ctx, rt.Provider, h, info.ConnectionID)
		if err != nil {
			return err
		}
		counterparty.ConnectionID = conn.Counterparty.ConnectionId
	}
	pp.queueHandshake(rt, kind.String()+"/"+info.PortID+"/"+info.ChannelID, &handshake{
		kind:         kind,
		height:       e.Height,
		self:         &self,
		counterparty: &counterparty,
		order:        info.Order,
		version:      info.Version,
	})
	return nil
}

// queueHandshake keeps the oldest event height for a handshake already
// queued, so the cursor does not pass it.
func (pp *PathProcessor) queueHandshake(rt *pathEndRuntime, key string, hs *handshake) {
	if prev, ok := rt.handshakes[key]; ok && prev.height.LT(hs.height) {
		hs.height = prev.height
	}
	rt.handshakes[key] = hs
}

// runHandshakes advances every queued handshake by one step. A handshake is
// forgotten once complete, or when it failed MaxRetries cycles in a row.
func (pp *PathProcessor) runHandshakes(ctx context.Context) error {
	var errs error
	for _, rt := range []*pathEndRuntime{pp.pathEnd1, pp.pathEnd2} {
		for key, hs := range rt.handshakes {
			done, err := pp.stepHandshake(ctx, hs)
			switch {
			case err == nil && done:
				pp.log.Info("Handshake complete",
					zap.String("handshake", key),
					zap.String("chain_id", hs.self.ChainID),
					zap.String("counterparty_chain_id", hs.counterparty.ChainID),
				)
				delete(rt.handshakes, key)
			case err == nil:
				hs.failures = 0
			case IsFatal(err) || errors.Is(err, context.Canceled):
				return err
			default:
				hs.failures++
				if hs.failures >= pp.opts.MaxRetries || Classify(err) == ClassReported || Classify(err) == ClassRejected {
					pp.log.Warn("Dropping handshake", zap.String("handshake", key), zap.Error(err))
					delete(rt.handshakes, key)
				}
				errs = multierr.Append(errs, err)
			}
		}
	}
	return errs
}

func (pp *PathProcessor) stepHandshake(ctx context.Context, hs *handshake) (bool, error) {
	var (
		done bool
		err  error
	)
	switch hs.kind {
	case connectionHandshake:
		done, err = ConnectionStep(ctx, pp.log, hs.self, hs.counterparty, pp.opts)
	case channelHandshake:
		done, err = ChannelStep(ctx, pp.log, hs.self, hs.counterparty, hs.order, hs.version, pp.opts)
	case channelClose:
		done, err = ChannelCloseStep(ctx, pp.log, hs.self, hs.counterparty, pp.opts)
	}
	var pathErr *PathError
	if errors.As(err, &pathErr) {
		pathErr.Path = pp.name
	}
	return done, err
}
