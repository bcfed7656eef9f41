package lightclient

import (
	"bytes"
	"fmt"
	"time"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

// CheckMisbehaviour returns evidence when header1 and header2 conflict and
// both verify against their trusted consensus states. Two headers conflict
// when they are at the same height with different hashes, or when the
// higher header does not have a later time than the lower one. It returns
// nil, nil when the headers do not conflict, and an error when either
// header fails verification.
func CheckMisbehaviour(
	cs ClientState,
	trusted1, trusted2 ConsensusState,
	header1, header2 *Header,
	now time.Time,
) (*Misbehaviour, error) {
	if header1 == nil || header2 == nil {
		return nil, sdkerrors.Wrap(ErrInvalidMisbehaviour, "misbehaviour requires two headers")
	}
	if !conflicting(header1, header2) {
		return nil, nil
	}

	// evidence is checked the same way whether or not the client is frozen
	cs.FrozenHeight = ibc.ZeroHeight

	if _, err := VerifyHeader(cs, trusted1, header1, now); err != nil {
		return nil, fmt.Errorf("%w: header 1 at %s: %w", ErrInvalidMisbehaviour, header1.Height(), err)
	}
	if _, err := VerifyHeader(cs, trusted2, header2, now); err != nil {
		return nil, fmt.Errorf("%w: header 2 at %s: %w", ErrInvalidMisbehaviour, header2.Height(), err)
	}

	return &Misbehaviour{Header1: header1, Header2: header2}, nil
}

func conflicting(header1, header2 *Header) bool {
	h1, h2 := header1.Height(), header2.Height()
	switch h1.Compare(h2) {
	case 0:
		return !bytes.Equal(header1.Hash(), header2.Hash())
	case 1:
		return !header1.Time().After(header2.Time())
	default:
		return !header2.Time().After(header1.Time())
	}
}
