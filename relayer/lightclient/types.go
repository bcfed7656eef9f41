package lightclient

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/cosmos/ibc-relayer/relayer/commitment"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/tendermint/tendermint/crypto/merkle"
	"github.com/tendermint/tendermint/crypto/tmhash"
)

const (
	DefaultTrustingPeriod  = 14 * 24 * time.Hour
	DefaultUnbondingPeriod = 21 * 24 * time.Hour
	DefaultMaxClockDrift   = 10 * time.Second
)

// Fraction is a rational number used for voting power thresholds.
type Fraction struct {
	Numerator   uint64 `json:"numerator" yaml:"numerator"`
	Denominator uint64 `json:"denominator" yaml:"denominator"`
}

// DefaultTrustLevel is the share of the trusted validator set's power that
// must sign a non-adjacent header.
var DefaultTrustLevel = Fraction{Numerator: 1, Denominator: 3}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

// ValidateTrustLevel checks that f lies within [1/3, 1].
func (f Fraction) ValidateTrustLevel() error {
	if f.Denominator == 0 || f.Numerator*3 < f.Denominator || f.Numerator > f.Denominator {
		return fmt.Errorf("trust level must be within [1/3, 1], got %s", f)
	}
	return nil
}

// ClientState tracks a counterparty chain.
type ClientState struct {
	ChainID         string        `json:"chain_id" yaml:"chain_id"`
	TrustLevel      Fraction      `json:"trust_level" yaml:"trust_level"`
	TrustingPeriod  time.Duration `json:"trusting_period" yaml:"trusting_period"`
	UnbondingPeriod time.Duration `json:"unbonding_period" yaml:"unbonding_period"`
	MaxClockDrift   time.Duration `json:"max_clock_drift" yaml:"max_clock_drift"`
	// MaxHeightSkip bounds how far a header may jump past the trusted height.
	// Zero means unbounded.
	MaxHeightSkip uint64     `json:"max_height_skip" yaml:"max_height_skip"`
	LatestHeight  ibc.Height `json:"latest_height" yaml:"latest_height"`
	FrozenHeight  ibc.Height `json:"frozen_height" yaml:"frozen_height"`
}

// NewClientState returns a client state for chainID with default parameters.
func NewClientState(chainID string, latestHeight ibc.Height) ClientState {
	return ClientState{
		ChainID:         chainID,
		TrustLevel:      DefaultTrustLevel,
		TrustingPeriod:  DefaultTrustingPeriod,
		UnbondingPeriod: DefaultUnbondingPeriod,
		MaxClockDrift:   DefaultMaxClockDrift,
		LatestHeight:    latestHeight,
	}
}

func (cs ClientState) IsFrozen() bool {
	return !cs.FrozenHeight.IsZero()
}

func (cs ClientState) Validate() error {
	if cs.ChainID == "" {
		return sdkerrors.Wrap(ErrInvalidClientState, "chain id cannot be empty")
	}
	if err := cs.TrustLevel.ValidateTrustLevel(); err != nil {
		return sdkerrors.Wrap(ErrInvalidClientState, err.Error())
	}
	if cs.TrustingPeriod <= 0 {
		return sdkerrors.Wrap(ErrInvalidClientState, "trusting period must be positive")
	}
	if cs.UnbondingPeriod <= 0 {
		return sdkerrors.Wrap(ErrInvalidClientState, "unbonding period must be positive")
	}
	if cs.TrustingPeriod >= cs.UnbondingPeriod {
		return sdkerrors.Wrap(ErrInvalidClientState, fmt.Sprintf("trusting period %s must be less than unbonding period %s", cs.TrustingPeriod, cs.UnbondingPeriod))
	}
	if cs.MaxClockDrift < 0 {
		return sdkerrors.Wrap(ErrInvalidClientState, "max clock drift cannot be negative")
	}
	if cs.LatestHeight.RevisionHeight == 0 {
		return sdkerrors.Wrap(ErrInvalidClientState, "latest height cannot have zero revision height")
	}
	if cs.LatestHeight.RevisionNumber != ibc.ParseChainID(cs.ChainID) {
		return sdkerrors.Wrap(ErrInvalidClientState, fmt.Sprintf("latest height revision %d does not match chain id %s", cs.LatestHeight.RevisionNumber, cs.ChainID))
	}
	return nil
}

// IsExpired returns true if a consensus state with the given timestamp can no
// longer be trusted at now.
func (cs ClientState) IsExpired(timestamp, now time.Time) bool {
	return !timestamp.Add(cs.TrustingPeriod).After(now)
}

// ConsensusState is the trusted state of the counterparty at one height.
type ConsensusState struct {
	Timestamp          time.Time       `json:"timestamp" yaml:"timestamp"`
	Root               commitment.Root `json:"root" yaml:"root"`
	NextValidatorsHash []byte          `json:"next_validators_hash" yaml:"next_validators_hash"`
}

func (c ConsensusState) Equal(other ConsensusState) bool {
	return c.Timestamp.Equal(other.Timestamp) &&
		bytes.Equal(c.Root.GetHash(), other.Root.GetHash()) &&
		bytes.Equal(c.NextValidatorsHash, other.NextValidatorsHash)
}

func (c ConsensusState) ValidateBasic() error {
	if c.Root.Empty() {
		return errors.New("root cannot be empty")
	}
	if len(c.NextValidatorsHash) != tmhash.Size {
		return fmt.Errorf("next validators hash must be %d bytes", tmhash.Size)
	}
	if c.Timestamp.IsZero() {
		return errors.New("timestamp cannot be zero")
	}
	return nil
}

// BlockHeader is the header of a block of the tracked chain.
type BlockHeader struct {
	ChainID            string     `json:"chain_id"`
	Height             ibc.Height `json:"height"`
	Time               time.Time  `json:"time"`
	ValidatorsHash     []byte     `json:"validators_hash"`
	NextValidatorsHash []byte     `json:"next_validators_hash"`
	AppHash            []byte     `json:"app_hash"`
}

// Hash is the merkle root of the header fields.
func (h BlockHeader) Hash() []byte {
	return merkle.HashFromByteSlices([][]byte{
		[]byte(h.ChainID),
		sdk.Uint64ToBigEndian(h.Height.RevisionNumber),
		sdk.Uint64ToBigEndian(h.Height.RevisionHeight),
		[]byte(h.Time.UTC().Format(time.RFC3339Nano)),
		h.ValidatorsHash,
		h.NextValidatorsHash,
		h.AppHash,
	})
}

// CommitSig is a validator's signature over a block. An empty signature
// means the validator was absent.
type CommitSig struct {
	ValidatorAddress []byte `json:"validator_address"`
	Signature        []byte `json:"signature"`
}

func (cs CommitSig) Absent() bool {
	return len(cs.Signature) == 0
}

// Commit is the set of signatures that finalized a block.
type Commit struct {
	Height     ibc.Height  `json:"height"`
	BlockHash  []byte      `json:"block_hash"`
	Signatures []CommitSig `json:"signatures"`
}

type canonicalVote struct {
	ChainID   string
	Height    ibc.Height
	BlockHash []byte
}

// VoteSignBytes are the bytes a validator signs to commit a block.
func VoteSignBytes(chainID string, height ibc.Height, blockHash []byte) []byte {
	return ibc.MustMarshal(canonicalVote{ChainID: chainID, Height: height, BlockHash: blockHash})
}

// SignedHeader is a block header together with the commit for it.
type SignedHeader struct {
	Header BlockHeader `json:"header"`
	Commit Commit      `json:"commit"`
}

func (sh SignedHeader) ValidateBasic(chainID string) error {
	if sh.Header.ChainID != chainID {
		return fmt.Errorf("header belongs to chain %q, expected %q", sh.Header.ChainID, chainID)
	}
	if sh.Header.Height.RevisionHeight == 0 {
		return errors.New("header height cannot be zero")
	}
	if sh.Header.Height.RevisionNumber != ibc.ParseChainID(chainID) {
		return fmt.Errorf("header revision %d does not match chain id %s", sh.Header.Height.RevisionNumber, chainID)
	}
	if sh.Header.Time.IsZero() {
		return errors.New("header time cannot be zero")
	}
	for name, h := range map[string][]byte{
		"validators hash":      sh.Header.ValidatorsHash,
		"next validators hash": sh.Header.NextValidatorsHash,
		"app hash":             sh.Header.AppHash,
	} {
		if len(h) != tmhash.Size {
			return fmt.Errorf("%s must be %d bytes, got %d", name, tmhash.Size, len(h))
		}
	}
	if !sh.Commit.Height.EQ(sh.Header.Height) {
		return fmt.Errorf("commit height %s does not match header height %s", sh.Commit.Height, sh.Header.Height)
	}
	if !bytes.Equal(sh.Commit.BlockHash, sh.Header.Hash()) {
		return errors.New("commit signs a different block than the header")
	}
	if len(sh.Commit.Signatures) == 0 {
		return errors.New("commit has no signatures")
	}
	return nil
}

// Header is the message used to update a client: a signed header of the
// tracked chain, the validator set that signed it, and the trusted height
// and validators it is verified against.
type Header struct {
	SignedHeader      SignedHeader  `json:"signed_header"`
	ValidatorSet      *ValidatorSet `json:"validator_set"`
	TrustedHeight     ibc.Height    `json:"trusted_height"`
	TrustedValidators *ValidatorSet `json:"trusted_validators"`
}

func (h *Header) Height() ibc.Height {
	return h.SignedHeader.Header.Height
}

func (h *Header) Time() time.Time {
	return h.SignedHeader.Header.Time
}

// Hash is the hash of the signed block header.
func (h *Header) Hash() []byte {
	return h.SignedHeader.Header.Hash()
}

// ConsensusState is the state that becomes trusted once h is verified.
func (h *Header) ConsensusState() ConsensusState {
	return ConsensusState{
		Timestamp:          h.Time().UTC(),
		Root:               commitment.NewRoot(h.SignedHeader.Header.AppHash),
		NextValidatorsHash: h.SignedHeader.Header.NextValidatorsHash,
	}
}

func (h *Header) ValidateBasic(chainID string) error {
	if h == nil {
		return errors.New("header cannot be nil")
	}
	if err := h.SignedHeader.ValidateBasic(chainID); err != nil {
		return err
	}
	if err := h.ValidatorSet.ValidateBasic(); err != nil {
		return err
	}
	if err := h.TrustedValidators.ValidateBasic(); err != nil {
		return fmt.Errorf("trusted validators: %w", err)
	}
	if h.TrustedHeight.RevisionHeight == 0 {
		return errors.New("trusted height cannot be zero")
	}
	return nil
}

// EncodeHeader encodes a header for inclusion in events.
func EncodeHeader(h *Header) []byte {
	return ibc.MustMarshal(h)
}

func DecodeHeader(bz []byte) (*Header, error) {
	var h Header
	if err := ibc.Unmarshal(bz, &h); err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}
	return &h, nil
}

// Misbehaviour is evidence of two conflicting headers for the same client.
type Misbehaviour struct {
	ClientID string  `json:"client_id"`
	Header1  *Header `json:"header_1"`
	Header2  *Header `json:"header_2"`
}

// Height is the height at which the client is frozen.
func (m *Misbehaviour) Height() ibc.Height {
	if m.Header1.Height().GT(m.Header2.Height()) {
		return m.Header2.Height()
	}
	return m.Header1.Height()
}

func (m *Misbehaviour) ValidateBasic() error {
	if m == nil || m.Header1 == nil || m.Header2 == nil {
		return sdkerrors.Wrap(ErrInvalidMisbehaviour, "misbehaviour requires two headers")
	}
	if err := ibc.ValidateClientID(m.ClientID); err != nil {
		return sdkerrors.Wrap(ErrInvalidMisbehaviour, err.Error())
	}
	if m.Header1.SignedHeader.Header.ChainID != m.Header2.SignedHeader.Header.ChainID {
		return sdkerrors.Wrap(ErrInvalidMisbehaviour, "headers are from different chains")
	}
	return nil
}
