package processor

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/cosmos/ibc-relayer/relayer/core"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
	"github.com/cosmos/ibc-relayer/relayer/provider"
	"go.uber.org/zap"
)

// MisbehaviourMonitor watches the headers a host chain accepts for one client
// and compares each of them with the block a witness of the counterparty
// reports at the same height. A mismatch that verifies on both sides is
// submitted as evidence, freezing the client.
type MisbehaviourMonitor struct {
	log      *zap.Logger
	host     provider.ChainProvider
	witness  provider.QueryProvider
	clientID string
	opts     Options
	cursors  CursorStore
	metrics  *PrometheusMetrics

	stream   *EventStream
	pending  []pendingUpdate
	// heights of the headers already reported, so retries count once
	reported map[string]bool
	frozen   bool
}

// pendingUpdate is a client update event waiting to be checked.
type pendingUpdate struct {
	event    ibc.Event
	failures uint
}

// NewMisbehaviourMonitor returns a monitor of clientID on host. witness must
// serve the chain the client tracks and must not share a node with the
// provider that relays headers to host. metrics may be nil.
func NewMisbehaviourMonitor(
	log *zap.Logger,
	host provider.ChainProvider,
	witness provider.QueryProvider,
	clientID string,
	opts Options,
	cursors CursorStore,
	metrics *PrometheusMetrics,
) *MisbehaviourMonitor {
	if cursors == nil {
		cursors = NewMemoryCursorStore()
	}
	return &MisbehaviourMonitor{
		log: log.With(
			zap.String("host_chain_id", host.ChainID()),
			zap.String("client_id", clientID),
			zap.String("witness_chain_id", witness.ChainID()),
		),
		host:     host,
		witness:  witness,
		clientID: clientID,
		opts:     opts,
		cursors:  cursors,
		metrics:  metrics,
		reported: make(map[string]bool),
	}
}

// Frozen reports whether the monitored client is known to be frozen.
func (m *MisbehaviourMonitor) Frozen() bool {
	return m.frozen
}

func (m *MisbehaviourMonitor) cursorName() string {
	return "misbehaviour/" + m.clientID
}

// Run checks new headers every PollInterval until ctx is done or the client
// is frozen.
func (m *MisbehaviourMonitor) Run(ctx context.Context) error {
	if err := m.opts.Validate(); err != nil {
		return err
	}
	m.log.Info("Starting misbehaviour monitor")

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()
	for {
		err := m.RunOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if m.frozen {
			m.log.Info("Client frozen, misbehaviour monitor stopped")
			return nil
		}
		if err != nil {
			if IsFatal(err) {
				m.log.Error("Misbehaviour monitor stopped", zap.Error(err))
				return err
			}
			m.log.Warn("Misbehaviour check finished with errors", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce reads the new blocks of the host and checks every header they
// store for the client. A header that cannot be checked yet, e.g. because
// the witness has not reached its height, is checked again next cycle.
func (m *MisbehaviourMonitor) RunOnce(ctx context.Context) error {
	if m.stream == nil {
		if err := m.start(ctx); err != nil {
			return err
		}
	}

	events, pollErr := m.stream.Poll(ctx)
	if pollErr != nil {
		if m.metrics != nil {
			m.metrics.IncBlockQueryFailure(m.host.ChainID(), "events")
		}
		pollErr = &PathError{Path: m.cursorName(), Step: "poll", ChainID: m.host.ChainID(), Height: m.stream.Cursor(), Err: pollErr}
	}
	for _, e := range events {
		if e.Type == ibc.EventUpdateClient && e.Client != nil && e.Client.ClientID == m.clientID {
			m.pending = append(m.pending, pendingUpdate{event: e})
		}
	}

	err := m.checkPending(ctx)
	if err == nil {
		err = pollErr
	}
	if saveErr := m.cursors.SaveCursor(m.cursorName(), m.host.ChainID(), m.cursor()); saveErr != nil && err == nil {
		err = saveErr
	}
	return err
}

func (m *MisbehaviourMonitor) start(ctx context.Context) error {
	next, ok, err := m.cursors.Cursor(m.cursorName(), m.host.ChainID())
	if err != nil {
		return err
	}
	if !ok {
		latest, err := m.host.QueryLatestHeight(ctx)
		if err != nil {
			return &PathError{Path: m.cursorName(), Step: "start", ChainID: m.host.ChainID(), Err: err}
		}
		next = startHeight(latest, m.opts.InitialBlockHistory)
	}
	m.stream = NewEventStream(m.host, next)
	return nil
}

// cursor is the height of the oldest unchecked update, or the stream cursor.
func (m *MisbehaviourMonitor) cursor() ibc.Height {
	if len(m.pending) > 0 && m.pending[0].event.Height.LT(m.stream.Cursor()) {
		return m.pending[0].event.Height
	}
	return m.stream.Cursor()
}

func (m *MisbehaviourMonitor) checkPending(ctx context.Context) error {
	for len(m.pending) > 0 {
		if m.frozen {
			m.pending = nil
			return nil
		}
		u := &m.pending[0]
		err := withRetry(ctx, m.log, m.opts, "check_misbehaviour", func(error) {
			if m.metrics != nil {
				m.metrics.IncRetry(m.cursorName(), m.host.ChainID(), "check_misbehaviour")
			}
		}, func(ctx context.Context) error {
			return m.check(ctx, u.event)
		})
		if err != nil {
			err = &PathError{Path: m.cursorName(), Step: "check_misbehaviour", ChainID: m.host.ChainID(), Height: u.event.Height, Err: err}
			if IsFatal(err) || errors.Is(err, context.Canceled) {
				return err
			}
			u.failures++
			if retryable(err) && u.failures < m.opts.MaxRetries {
				return err
			}
			m.log.Warn("Giving up on header update", zap.Stringer("height", u.event.Height), zap.Error(err))
		}
		m.pending = m.pending[1:]
	}
	return nil
}

// check compares the header stored by e with the witness. Evidence is only
// submitted while the client is not frozen, so repeated checks of the same
// header are harmless.
func (m *MisbehaviourMonitor) check(ctx context.Context, e ibc.Event) error {
	onChain, err := lightclient.DecodeHeader(e.Client.Header)
	if err != nil {
		m.log.Warn("Skipping undecodable header", zap.Stringer("height", e.Height), zap.Error(err))
		return nil
	}
	height := onChain.Height()

	lb, err := m.witness.QueryLightBlock(ctx, height)
	if err != nil {
		return err
	}
	witnessed := &lightclient.Header{
		SignedHeader:      lb.SignedHeader,
		ValidatorSet:      lb.ValidatorSet,
		TrustedHeight:     onChain.TrustedHeight,
		TrustedValidators: onChain.TrustedValidators,
	}
	if bytes.Equal(witnessed.Hash(), onChain.Hash()) {
		return nil
	}

	hostBlock, err := provider.QueryLatestLightBlock(ctx, m.host)
	if err != nil {
		return err
	}
	cs, _, err := provider.QueryClientState(ctx, m.host, hostBlock.Height(), m.clientID)
	if err != nil {
		return err
	}
	if cs.IsFrozen() {
		m.frozen = true
		return nil
	}
	trusted, _, err := provider.QueryClientConsensusState(ctx, m.host, hostBlock.Height(), m.clientID, onChain.TrustedHeight)
	if err != nil {
		return err
	}

	now := latestTime(hostBlock.Time(), onChain.Time(), witnessed.Time())
	evidence, err := lightclient.CheckMisbehaviour(cs, trusted, trusted, onChain, witnessed, now)
	if err != nil {
		m.log.Warn("Conflicting header does not verify, witness may be faulty",
			zap.Stringer("height", height),
			zap.Error(err),
		)
		return nil
	}
	if evidence == nil {
		return nil
	}
	evidence.ClientID = m.clientID

	if key := height.String(); !m.reported[key] {
		m.reported[key] = true
		if m.metrics != nil {
			m.metrics.IncMisbehaviourDetected(m.host.ChainID(), m.clientID)
		}
		m.log.Error("Conflicting header detected",
			zap.Stringer("height", height),
			zap.Binary("on_chain_hash", onChain.Hash()),
			zap.Binary("witness_hash", witnessed.Hash()),
		)
	}

	res, err := m.host.SendMessages(ctx, []core.Msg{&core.MsgSubmitMisbehaviour{
		ClientID:     m.clientID,
		Misbehaviour: evidence,
	}})
	if err != nil {
		return err
	}
	m.frozen = true
	m.log.Info("Submitted misbehaviour, client frozen",
		zap.Stringer("frozen_height", evidence.Height()),
		zap.Stringer("tx_height", res.Height),
		zap.Bool("already_frozen", len(res.Results) > 0 && res.Results[0].NoOp),
	)
	return nil
}

func latestTime(times ...time.Time) time.Time {
	var latest time.Time
	for _, t := range times {
		if t.After(latest) {
			latest = t
		}
	}
	return latest
}
