package lightclient

import (
	"fmt"
	"sync"
	"time"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

// Status of a client at a point in time.
type Status string

const (
	Active  Status = "Active"
	Frozen  Status = "Frozen"
	Expired Status = "Expired"
)

// Tracker holds the client state of one counterparty chain and the
// append-only sequence of consensus states trusted for it. Appends are
// serialized, reads may happen concurrently.
type Tracker struct {
	mu sync.RWMutex

	clientID        string
	clientState     ClientState
	heights         []ibc.Height
	consensusStates map[ibc.Height]ConsensusState
}

// NewTracker creates a tracker trusting initial at clientState.LatestHeight.
func NewTracker(clientID string, clientState ClientState, initial ConsensusState) (*Tracker, error) {
	if err := ibc.ValidateClientID(clientID); err != nil {
		return nil, sdkerrors.Wrap(ErrInvalidClientState, err.Error())
	}
	if err := clientState.Validate(); err != nil {
		return nil, err
	}
	if err := initial.ValidateBasic(); err != nil {
		return nil, sdkerrors.Wrapf(ErrInvalidClientState, "initial consensus state: %v", err)
	}
	initial.Timestamp = initial.Timestamp.UTC()
	return &Tracker{
		clientID:        clientID,
		clientState:     clientState,
		heights:         []ibc.Height{clientState.LatestHeight},
		consensusStates: map[ibc.Height]ConsensusState{clientState.LatestHeight: initial},
	}, nil
}

func (t *Tracker) ClientID() string {
	return t.clientID
}

func (t *Tracker) ClientState() ClientState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.clientState
}

func (t *Tracker) ConsensusState(height ibc.Height) (ConsensusState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cs, ok := t.consensusStates[height]
	return cs, ok
}

// LatestConsensusState returns the most recent trusted height and state.
func (t *Tracker) LatestConsensusState() (ibc.Height, ConsensusState) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h := t.heights[len(t.heights)-1]
	return h, t.consensusStates[h]
}

// Heights returns the trusted heights in ascending order.
func (t *Tracker) Heights() []ibc.Height {
	t.mu.RLock()
	defer t.mu.RUnlock()
	heights := make([]ibc.Height, len(t.heights))
	copy(heights, t.heights)
	return heights
}

// Status reports whether the client can be used at now.
func (t *Tracker) Status(now time.Time) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.clientState.IsFrozen() {
		return Frozen
	}
	latest := t.consensusStates[t.heights[len(t.heights)-1]]
	if t.clientState.IsExpired(latest.Timestamp, now) {
		return Expired
	}
	return Active
}

// Update verifies header against the consensus state trusted at
// header.TrustedHeight and appends the resulting consensus state. An update
// with a header identical to an already trusted one is a no-op. A valid
// header that conflicts with a trusted one freezes the client and returns
// ErrMisbehaviour.
func (t *Tracker) Update(header *Header, now time.Time) (*ConsensusState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.clientState.IsFrozen() {
		return nil, sdkerrors.Wrapf(ErrClientFrozen, "client %s", t.clientID)
	}
	if header == nil {
		return nil, sdkerrors.Wrap(ErrInvalidHeader, "header cannot be nil")
	}
	trusted, ok := t.consensusStates[header.TrustedHeight]
	if !ok {
		return nil, sdkerrors.Wrapf(ErrConsensusStateNotFound, "client %s has no consensus state at trusted height %s", t.clientID, header.TrustedHeight)
	}

	height := header.Height()
	candidate := header.ConsensusState()
	if existing, ok := t.consensusStates[height]; ok && existing.Equal(candidate) {
		return &existing, nil
	}

	consState, err := VerifyHeader(t.clientState, trusted, header, now)
	if err != nil {
		return nil, err
	}

	if _, ok := t.consensusStates[height]; ok {
		t.clientState.FrozenHeight = height
		return nil, sdkerrors.Wrapf(ErrMisbehaviour, "client %s: header at %s conflicts with trusted state", t.clientID, height)
	}

	latest := t.heights[len(t.heights)-1]
	if height.LT(latest) {
		return nil, sdkerrors.Wrapf(ErrStaleHeader, "client %s: header height %s is below latest height %s", t.clientID, height, latest)
	}
	// time must be monotonic across all trusted heights
	if !consState.Timestamp.After(t.consensusStates[latest].Timestamp) {
		t.clientState.FrozenHeight = height
		return nil, sdkerrors.Wrapf(ErrMisbehaviour, "client %s: header time %s at %s is not after time of latest height %s",
			t.clientID, consState.Timestamp, height, latest)
	}

	t.consensusStates[height] = *consState
	t.heights = append(t.heights, height)
	t.clientState.LatestHeight = height
	return consState, nil
}

// CheckMisbehaviour verifies m against the consensus states this tracker
// trusts.
func (t *Tracker) CheckMisbehaviour(m *Misbehaviour, now time.Time) error {
	if err := m.ValidateBasic(); err != nil {
		return err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.checkMisbehaviour(m, now)
}

func (t *Tracker) checkMisbehaviour(m *Misbehaviour, now time.Time) error {
	if m.ClientID != t.clientID {
		return sdkerrors.Wrapf(ErrInvalidMisbehaviour, "evidence for client %s submitted to client %s", m.ClientID, t.clientID)
	}
	trusted1, ok := t.consensusStates[m.Header1.TrustedHeight]
	if !ok {
		return sdkerrors.Wrapf(ErrConsensusStateNotFound, "trusted height %s of header 1", m.Header1.TrustedHeight)
	}
	trusted2, ok := t.consensusStates[m.Header2.TrustedHeight]
	if !ok {
		return sdkerrors.Wrapf(ErrConsensusStateNotFound, "trusted height %s of header 2", m.Header2.TrustedHeight)
	}
	evidence, err := CheckMisbehaviour(t.clientState, trusted1, trusted2, m.Header1, m.Header2, now)
	if err != nil {
		return err
	}
	if evidence == nil {
		return sdkerrors.Wrap(ErrInvalidMisbehaviour, "headers do not conflict")
	}
	return nil
}

// Freeze verifies m and freezes the client. Freezing an already frozen
// client is a no-op.
func (t *Tracker) Freeze(m *Misbehaviour, now time.Time) error {
	if err := m.ValidateBasic(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.clientState.IsFrozen() {
		return nil
	}
	if err := t.checkMisbehaviour(m, now); err != nil {
		return err
	}
	t.clientState.FrozenHeight = m.Height()
	return nil
}

// Prune removes consensus states that expired at now. The latest consensus
// state is always kept. It returns the number of states removed.
func (t *Tracker) Prune(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.heights[:0]
	pruned := 0
	for i, h := range t.heights {
		if i < len(t.heights)-1 && t.clientState.IsExpired(t.consensusStates[h].Timestamp, now) {
			delete(t.consensusStates, h)
			pruned++
			continue
		}
		kept = append(kept, h)
	}
	t.heights = kept
	return pruned
}

// Clone returns an independent copy of the tracker.
func (t *Tracker) Clone() *Tracker {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c := &Tracker{
		clientID:        t.clientID,
		clientState:     t.clientState,
		heights:         make([]ibc.Height, len(t.heights)),
		consensusStates: make(map[ibc.Height]ConsensusState, len(t.consensusStates)),
	}
	copy(c.heights, t.heights)
	for h, cs := range t.consensusStates {
		c.consensusStates[h] = cs
	}
	return c
}

func (t *Tracker) String() string {
	h, _ := t.LatestConsensusState()
	return fmt.Sprintf("%s(%s@%s)", t.clientID, t.ClientState().ChainID, h)
}
