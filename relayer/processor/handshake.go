package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/cosmos/ibc-relayer/relayer/core"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
	"github.com/cosmos/ibc-relayer/relayer/provider"
	"go.uber.org/zap"
)

// Handshake drivers advance a handshake by at most one transaction per call,
// deciding the step from the state both chains hold at their latest height.
// Repeating a call after a partial failure is always safe.

// CreateClients creates a client of dst on src and a client of src on dst.
// An existing client id on an endpoint is kept when the client still tracks
// the counterparty, unless override is set. The returned boolean indicates
// that an endpoint was modified.
func CreateClients(ctx context.Context, log *zap.Logger, src, dst *Endpoint, override bool, opts Options) (bool, error) {
	var modified bool
	for _, e := range [][2]*Endpoint{{src, dst}, {dst, src}} {
		host, counterparty := e[0], e[1]
		err := withRetry(ctx, log, opts, "create_client", nil, func(ctx context.Context) error {
			created, err := createClient(ctx, log, host, counterparty, override)
			modified = modified || created
			return err
		})
		if err != nil {
			return modified, &PathError{Step: "create_client", ChainID: host.ChainID, Err: err}
		}
	}
	return modified, nil
}

func createClient(ctx context.Context, log *zap.Logger, host, counterparty *Endpoint, override bool) (bool, error) {
	lb, err := provider.QueryLatestLightBlock(ctx, counterparty.Provider)
	if err != nil {
		return false, err
	}
	proposed := lightclient.NewClientState(counterparty.ChainID, lb.Height())

	if host.ClientID != "" && !override {
		hostBlock, err := provider.QueryLatestLightBlock(ctx, host.Provider)
		if err != nil {
			return false, err
		}
		now := hostBlock.Time()
		if lb.Time().After(now) {
			now = lb.Time()
		}
		matches, err := provider.ClientMatches(ctx, host.Provider, counterparty.Provider, host.ClientID, proposed, now)
		switch {
		case errors.Is(err, lightclient.ErrExpiredTrustingPeriod):
			log.Warn("Existing client expired, creating a new one",
				zap.String("chain_id", host.ChainID),
				zap.String("client_id", host.ClientID),
			)
		case err != nil:
			return false, err
		case matches:
			log.Info("Client already exists",
				zap.String("chain_id", host.ChainID),
				zap.String("client_id", host.ClientID),
				zap.String("counterparty_chain_id", counterparty.ChainID),
			)
			return false, nil
		}
	}

	res, err := host.Provider.SendMessages(ctx, []core.Msg{&core.MsgCreateClient{
		ClientState:    proposed,
		ConsensusState: lb.ConsensusState(),
	}})
	if err != nil {
		return false, err
	}
	host.ClientID = string(res.Results[0].Data)
	log.Info("Client created",
		zap.String("chain_id", host.ChainID),
		zap.String("client_id", host.ClientID),
		zap.String("counterparty_chain_id", counterparty.ChainID),
		zap.Stringer("height", lb.Height()),
	)
	return true, nil
}

// ConnectionStep advances the connection handshake between src and dst. It
// returns true once both ends are Open.
func ConnectionStep(ctx context.Context, log *zap.Logger, src, dst *Endpoint, opts Options) (bool, error) {
	var done bool
	err := withRetry(ctx, log, opts, "connection_handshake", nil, func(ctx context.Context) error {
		var err error
		done, err = connectionStep(ctx, log, src, dst)
		return err
	})
	if err != nil {
		return false, &PathError{Step: "connection_handshake", ChainID: src.ChainID, Err: err}
	}
	return done, nil
}

func connectionStep(ctx context.Context, log *zap.Logger, src, dst *Endpoint) (bool, error) {
	srcEnd, dstEnd, err := connectionEnds(ctx, src, dst)
	if err != nil {
		return false, err
	}

	s, d := srcEnd.State, dstEnd.State
	switch {
	case s == ibc.ConnectionOpen && d == ibc.ConnectionOpen:
		return true, nil
	case s == ibc.ConnectionUninitialized && d == ibc.ConnectionUninitialized:
		return false, connOpenInit(ctx, log, src, dst)
	case s == ibc.ConnectionInit && (d == ibc.ConnectionUninitialized || d == ibc.ConnectionInit):
		return false, connOpenTry(ctx, log, src, dst, d == ibc.ConnectionInit)
	case s == ibc.ConnectionUninitialized && d == ibc.ConnectionInit:
		return false, connOpenTry(ctx, log, dst, src, false)
	case s == ibc.ConnectionTryOpen && d == ibc.ConnectionInit:
		return false, connOpenAck(ctx, log, src, dst)
	case (s == ibc.ConnectionInit || s == ibc.ConnectionTryOpen) && d == ibc.ConnectionTryOpen:
		return false, connOpenAck(ctx, log, dst, src)
	case s == ibc.ConnectionOpen && d == ibc.ConnectionTryOpen:
		return false, connOpenConfirm(ctx, log, src, dst)
	case s == ibc.ConnectionTryOpen && d == ibc.ConnectionOpen:
		return false, connOpenConfirm(ctx, log, dst, src)
	}
	return false, fmt.Errorf("%w: connection %s on %s is %s, connection %s on %s is %s",
		core.ErrInvalidConnectionState, src.ConnectionID, src.ChainID, s, dst.ConnectionID, dst.ChainID, d)
}

// connectionEnds queries both ends at their latest heights. An endpoint
// without a connection id adopts the one its counterparty recorded.
func connectionEnds(ctx context.Context, src, dst *Endpoint) (ibc.ConnectionEnd, ibc.ConnectionEnd, error) {
	srcEnd, err := latestConnection(ctx, src)
	if err != nil {
		return srcEnd, ibc.ConnectionEnd{}, err
	}
	dstEnd, err := latestConnection(ctx, dst)
	if err != nil {
		return srcEnd, dstEnd, err
	}
	if dst.ConnectionID == "" && srcEnd.Counterparty.ConnectionId != "" {
		dst.ConnectionID = srcEnd.Counterparty.ConnectionId
		dstEnd, err = latestConnection(ctx, dst)
	} else if src.ConnectionID == "" && dstEnd.Counterparty.ConnectionId != "" {
		src.ConnectionID = dstEnd.Counterparty.ConnectionId
		srcEnd, err = latestConnection(ctx, src)
	}
	return srcEnd, dstEnd, err
}

func latestConnection(ctx context.Context, e *Endpoint) (ibc.ConnectionEnd, error) {
	if e.ConnectionID == "" {
		return ibc.ConnectionEnd{}, nil
	}
	h, err := e.Provider.QueryLatestHeight(ctx)
	if err != nil {
		return ibc.ConnectionEnd{}, err
	}
	end, _, err := provider.QueryConnection(ctx, e.Provider, h, e.ConnectionID)
	if errors.Is(err, provider.ErrNotFound) {
		return ibc.ConnectionEnd{}, nil
	}
	return end, err
}

func connOpenInit(ctx context.Context, log *zap.Logger, src, dst *Endpoint) error {
	res, err := src.Provider.SendMessages(ctx, []core.Msg{&core.MsgConnectionOpenInit{
		ClientID:     src.ClientID,
		Counterparty: ibc.NewConnectionCounterparty(dst.ClientID, "", dst.Provider.CommitmentPrefix().Bytes()),
	}})
	if err != nil {
		return err
	}
	src.ConnectionID = lastData(res)
	log.Info("Connection open init",
		zap.String("chain_id", src.ChainID),
		zap.String("connection_id", src.ConnectionID),
		zap.String("counterparty_chain_id", dst.ChainID),
	)
	return nil
}

// connOpenTry answers the Init of from on host. With crossing hellos host
// already holds an Init connection which the Try reuses.
func connOpenTry(ctx context.Context, log *zap.Logger, from, host *Endpoint, crossing bool) error {
	ps, err := newProofSource(ctx, from, host)
	if err != nil {
		return err
	}
	end, proofInit, err := ps.connection(ctx, from.ConnectionID)
	if err != nil {
		return err
	}
	cs, proofClient, err := ps.clientState(ctx, from.ClientID)
	if err != nil {
		return err
	}
	msg := &core.MsgConnectionOpenTry{
		ClientID:             host.ClientID,
		ClientState:          cs,
		Counterparty:         ibc.NewConnectionCounterparty(from.ClientID, from.ConnectionID, from.Provider.CommitmentPrefix().Bytes()),
		DelayPeriod:          end.DelayPeriod,
		CounterpartyVersions: end.Versions,
		ProofHeight:          ps.height,
		ProofInit:            proofInit,
		ProofClient:          proofClient,
	}
	if crossing {
		msg.PreviousConnectionID = host.ConnectionID
	}
	res, err := host.Provider.SendMessages(ctx, ps.msgs(msg))
	if err != nil {
		return err
	}
	host.ConnectionID = lastData(res)
	log.Info("Connection open try",
		zap.String("chain_id", host.ChainID),
		zap.String("connection_id", host.ConnectionID),
		zap.String("counterparty_connection_id", from.ConnectionID),
		zap.Stringer("proof_height", ps.height),
	)
	return nil
}

func connOpenAck(ctx context.Context, log *zap.Logger, from, host *Endpoint) error {
	ps, err := newProofSource(ctx, from, host)
	if err != nil {
		return err
	}
	end, proofTry, err := ps.connection(ctx, from.ConnectionID)
	if err != nil {
		return err
	}
	if len(end.Versions) != 1 {
		return fmt.Errorf("%w: connection %s on %s has %d versions", core.ErrInvalidVersion, from.ConnectionID, from.ChainID, len(end.Versions))
	}
	cs, proofClient, err := ps.clientState(ctx, from.ClientID)
	if err != nil {
		return err
	}
	if _, err := host.Provider.SendMessages(ctx, ps.msgs(&core.MsgConnectionOpenAck{
		ConnectionID:             host.ConnectionID,
		CounterpartyConnectionID: from.ConnectionID,
		Version:                  end.Versions[0],
		ClientState:              cs,
		ProofHeight:              ps.height,
		ProofTry:                 proofTry,
		ProofClient:              proofClient,
	})); err != nil {
		return err
	}
	log.Info("Connection open ack",
		zap.String("chain_id", host.ChainID),
		zap.String("connection_id", host.ConnectionID),
		zap.Stringer("proof_height", ps.height),
	)
	return nil
}

func connOpenConfirm(ctx context.Context, log *zap.Logger, from, host *Endpoint) error {
	ps, err := newProofSource(ctx, from, host)
	if err != nil {
		return err
	}
	_, proofAck, err := ps.connection(ctx, from.ConnectionID)
	if err != nil {
		return err
	}
	if _, err := host.Provider.SendMessages(ctx, ps.msgs(&core.MsgConnectionOpenConfirm{
		ConnectionID: host.ConnectionID,
		ProofHeight:  ps.height,
		ProofAck:     proofAck,
	})); err != nil {
		return err
	}
	log.Info("Connection open confirm",
		zap.String("chain_id", host.ChainID),
		zap.String("connection_id", host.ConnectionID),
		zap.Stringer("proof_height", ps.height),
	)
	return nil
}

// ChannelStep advances the channel handshake between src and dst on their
// connections. A channel is opened on src with order and version when
// neither end exists yet. It returns true once both ends are Open.
func ChannelStep(ctx context.Context, log *zap.Logger, src, dst *Endpoint, order ibc.Order, version string, opts Options) (bool, error) {
	var done bool
	err := withRetry(ctx, log, opts, "channel_handshake", nil, func(ctx context.Context) error {
		var err error
		done, err = channelStep(ctx, log, src, dst, order, version)
		return err
	})
	if err != nil {
		return false, &PathError{Step: "channel_handshake", ChainID: src.ChainID, Err: err}
	}
	return done, nil
}

func channelStep(ctx context.Context, log *zap.Logger, src, dst *Endpoint, order ibc.Order, version string) (bool, error) {
	srcEnd, dstEnd, err := channelEnds(ctx, src, dst)
	if err != nil {
		return false, err
	}

	s, d := srcEnd.State, dstEnd.State
	switch {
	case s == ibc.ChannelOpen && d == ibc.ChannelOpen:
		return true, nil
	case s == ibc.ChannelClosed || d == ibc.ChannelClosed:
		return false, fmt.Errorf("%w: channel %s/%s on %s is %s, channel %s/%s on %s is %s", core.ErrInvalidChannelState,
			src.PortID, src.ChannelID, src.ChainID, s, dst.PortID, dst.ChannelID, dst.ChainID, d)
	case s == ibc.ChannelUninitialized && d == ibc.ChannelUninitialized:
		return false, chanOpenInit(ctx, log, src, dst, order, version)
	case s == ibc.ChannelInit && (d == ibc.ChannelUninitialized || d == ibc.ChannelInit):
		return false, chanOpenTry(ctx, log, src, dst, d == ibc.ChannelInit)
	case s == ibc.ChannelUninitialized && d == ibc.ChannelInit:
		return false, chanOpenTry(ctx, log, dst, src, false)
	case s == ibc.ChannelTryOpen && d == ibc.ChannelInit:
		return false, chanOpenAck(ctx, log, src, dst)
	case (s == ibc.ChannelInit || s == ibc.ChannelTryOpen) && d == ibc.ChannelTryOpen:
		return false, chanOpenAck(ctx, log, dst, src)
	case s == ibc.ChannelOpen && d == ibc.ChannelTryOpen:
		return false, chanOpenConfirm(ctx, log, src, dst)
	case s == ibc.ChannelTryOpen && d == ibc.ChannelOpen:
		return false, chanOpenConfirm(ctx, log, dst, src)
	}
	return false, fmt.Errorf("%w: channel %s/%s on %s is %s, channel %s/%s on %s is %s", core.ErrInvalidChannelState,
		src.PortID, src.ChannelID, src.ChainID, s, dst.PortID, dst.ChannelID, dst.ChainID, d)
}

func channelEnds(ctx context.Context, src, dst *Endpoint) (ibc.ChannelEnd, ibc.ChannelEnd, error) {
	srcEnd, err := latestChannel(ctx, src)
	if err != nil {
		return srcEnd, ibc.ChannelEnd{}, err
	}
	dstEnd, err := latestChannel(ctx, dst)
	if err != nil {
		return srcEnd, dstEnd, err
	}
	if dst.ChannelID == "" && srcEnd.Counterparty.ChannelId != "" {
		dst.ChannelID = srcEnd.Counterparty.ChannelId
		dstEnd, err = latestChannel(ctx, dst)
	} else if src.ChannelID == "" && dstEnd.Counterparty.ChannelId != "" {
		src.ChannelID = dstEnd.Counterparty.ChannelId
		srcEnd, err = latestChannel(ctx, src)
	}
	return srcEnd, dstEnd, err
}

func latestChannel(ctx context.Context, e *Endpoint) (ibc.ChannelEnd, error) {
	if e.ChannelID == "" {
		return ibc.ChannelEnd{}, nil
	}
	h, err := e.Provider.QueryLatestHeight(ctx)
	if err != nil {
		return ibc.ChannelEnd{}, err
	}
	end, _, err := provider.QueryChannel(ctx, e.Provider, h, e.PortID, e.ChannelID)
	if errors.Is(err, provider.ErrNotFound) {
		return ibc.ChannelEnd{}, nil
	}
	return end, err
}

func chanOpenInit(ctx context.Context, log *zap.Logger, src, dst *Endpoint, order ibc.Order, version string) error {
	res, err := src.Provider.SendMessages(ctx, []core.Msg{&core.MsgChannelOpenInit{
		PortID:  src.PortID,
		Channel: ibc.NewChannelEnd(ibc.ChannelInit, order, ibc.NewChannelCounterparty(dst.PortID, ""), []string{src.ConnectionID}, version),
	}})
	if err != nil {
		return err
	}
	src.ChannelID = lastData(res)
	log.Info("Channel open init",
		zap.String("chain_id", src.ChainID),
		zap.String("port_id", src.PortID),
		zap.String("channel_id", src.ChannelID),
		zap.Stringer("order", order),
	)
	return nil
}

func chanOpenTry(ctx context.Context, log *zap.Logger, from, host *Endpoint, crossing bool) error {
	ps, err := newProofSource(ctx, from, host)
	if err != nil {
		return err
	}
	end, proofInit, err := ps.channel(ctx, from.PortID, from.ChannelID)
	if err != nil {
		return err
	}
	msg := &core.MsgChannelOpenTry{
		PortID: host.PortID,
		Channel: ibc.NewChannelEnd(ibc.ChannelTryOpen, end.Ordering,
			ibc.NewChannelCounterparty(from.PortID, from.ChannelID), []string{host.ConnectionID}, end.Version),
		CounterpartyVersion: end.Version,
		ProofHeight:         ps.height,
		ProofInit:           proofInit,
	}
	if crossing {
		msg.PreviousChannelID = host.ChannelID
	}
	res, err := host.Provider.SendMessages(ctx, ps.msgs(msg))
	if err != nil {
		return err
	}
	host.ChannelID = lastData(res)
	log.Info("Channel open try",
		zap.String("chain_id", host.ChainID),
		zap.String("port_id", host.PortID),
		zap.String("channel_id", host.ChannelID),
		zap.String("counterparty_channel_id", from.ChannelID),
		zap.Stringer("proof_height", ps.height),
	)
	return nil
}

func chanOpenAck(ctx context.Context, log *zap.Logger, from, host *Endpoint) error {
	ps, err := newProofSource(ctx, from, host)
	if err != nil {
		return err
	}
	end, proofTry, err := ps.channel(ctx, from.PortID, from.ChannelID)
	if err != nil {
		return err
	}
	if _, err := host.Provider.SendMessages(ctx, ps.msgs(&core.MsgChannelOpenAck{
		PortID:                host.PortID,
		ChannelID:             host.ChannelID,
		CounterpartyChannelID: from.ChannelID,
		CounterpartyVersion:   end.Version,
		ProofHeight:           ps.height,
		ProofTry:              proofTry,
	})); err != nil {
		return err
	}
	log.Info("Channel open ack",
		zap.String("chain_id", host.ChainID),
		zap.String("port_id", host.PortID),
		zap.String("channel_id", host.ChannelID),
		zap.Stringer("proof_height", ps.height),
	)
	return nil
}

func chanOpenConfirm(ctx context.Context, log *zap.Logger, from, host *Endpoint) error {
	ps, err := newProofSource(ctx, from, host)
	if err != nil {
		return err
	}
	_, proofAck, err := ps.channel(ctx, from.PortID, from.ChannelID)
	if err != nil {
		return err
	}
	if _, err := host.Provider.SendMessages(ctx, ps.msgs(&core.MsgChannelOpenConfirm{
		PortID:      host.PortID,
		ChannelID:   host.ChannelID,
		ProofHeight: ps.height,
		ProofAck:    proofAck,
	})); err != nil {
		return err
	}
	log.Info("Channel open confirm",
		zap.String("chain_id", host.ChainID),
		zap.String("port_id", host.PortID),
		zap.String("channel_id", host.ChannelID),
		zap.Stringer("proof_height", ps.height),
	)
	return nil
}

// ChannelCloseStep advances closing the channel between src and dst. The
// close is initiated on src unless dst is already closed. It returns true
// once both ends are Closed.
func ChannelCloseStep(ctx context.Context, log *zap.Logger, src, dst *Endpoint, opts Options) (bool, error) {
	var done bool
	err := withRetry(ctx, log, opts, "channel_close", nil, func(ctx context.Context) error {
		var err error
		done, err = channelCloseStep(ctx, log, src, dst)
		return err
	})
	if err != nil {
		return false, &PathError{Step: "channel_close", ChainID: src.ChainID, Err: err}
	}
	return done, nil
}

func channelCloseStep(ctx context.Context, log *zap.Logger, src, dst *Endpoint) (bool, error) {
	srcEnd, dstEnd, err := channelEnds(ctx, src, dst)
	if err != nil {
		return false, err
	}
	switch {
	case srcEnd.State == ibc.ChannelClosed && dstEnd.State == ibc.ChannelClosed:
		return true, nil
	case dstEnd.State == ibc.ChannelClosed:
		return false, chanCloseConfirm(ctx, log, dst, src)
	case srcEnd.State == ibc.ChannelClosed:
		return false, chanCloseConfirm(ctx, log, src, dst)
	case srcEnd.State == ibc.ChannelUninitialized:
		return false, fmt.Errorf("%w: channel %s/%s on %s", core.ErrChannelNotFound, src.PortID, src.ChannelID, src.ChainID)
	}
	if _, err := src.Provider.SendMessages(ctx, []core.Msg{&core.MsgChannelCloseInit{PortID: src.PortID, ChannelID: src.ChannelID}}); err != nil {
		return false, err
	}
	log.Info("Channel close init",
		zap.String("chain_id", src.ChainID),
		zap.String("port_id", src.PortID),
		zap.String("channel_id", src.ChannelID),
	)
	return false, nil
}

func chanCloseConfirm(ctx context.Context, log *zap.Logger, from, host *Endpoint) error {
	ps, err := newProofSource(ctx, from, host)
	if err != nil {
		return err
	}
	_, proofInit, err := ps.channel(ctx, from.PortID, from.ChannelID)
	if err != nil {
		return err
	}
	if _, err := host.Provider.SendMessages(ctx, ps.msgs(&core.MsgChannelCloseConfirm{
		PortID:      host.PortID,
		ChannelID:   host.ChannelID,
		ProofHeight: ps.height,
		ProofInit:   proofInit,
	})); err != nil {
		return err
	}
	log.Info("Channel close confirm",
		zap.String("chain_id", host.ChainID),
		zap.String("port_id", host.PortID),
		zap.String("channel_id", host.ChannelID),
		zap.Stringer("proof_height", ps.height),
	)
	return nil
}

// lastData returns the result data of the last message of a transaction,
// the identifier assigned by a handshake message.
func lastData(res *provider.TxResult) string {
	if len(res.Results) == 0 {
		return ""
	}
	return string(res.Results[len(res.Results)-1].Data)
}
