package lightclient

import (
	"bytes"
	"time"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

// VerifyHeader checks header against the consensus state trusted at
// header.TrustedHeight and returns the consensus state that becomes trusted.
// It does not mutate any state.
func VerifyHeader(cs ClientState, trusted ConsensusState, header *Header, now time.Time) (*ConsensusState, error) {
	if cs.IsFrozen() {
		return nil, sdkerrors.Wrapf(ErrClientFrozen, "client for chain %s frozen at height %s", cs.ChainID, cs.FrozenHeight)
	}
	if err := header.ValidateBasic(cs.ChainID); err != nil {
		return nil, sdkerrors.Wrap(ErrInvalidHeader, err.Error())
	}

	height := header.Height()
	trustedHeight := header.TrustedHeight
	if height.RevisionNumber != trustedHeight.RevisionNumber {
		return nil, sdkerrors.Wrapf(ErrHeightMismatch,
			"header revision %d does not match trusted revision %d", height.RevisionNumber, trustedHeight.RevisionNumber)
	}
	if height.LTE(trustedHeight) {
		return nil, sdkerrors.Wrapf(ErrStaleHeader, "header height %s <= trusted height %s", height, trustedHeight)
	}
	if cs.MaxHeightSkip > 0 && height.RevisionHeight-trustedHeight.RevisionHeight > cs.MaxHeightSkip {
		return nil, sdkerrors.Wrapf(ErrHeightMismatch,
			"header height %s skips more than %d blocks past trusted height %s", height, cs.MaxHeightSkip, trustedHeight)
	}

	headerTime := header.Time()
	if cs.IsExpired(trusted.Timestamp, now) {
		return nil, sdkerrors.Wrapf(ErrExpiredTrustingPeriod,
			"trusted state at %s expired at %s (now %s)", trustedHeight, trusted.Timestamp.Add(cs.TrustingPeriod), now)
	}
	if headerTime.Sub(trusted.Timestamp) >= cs.TrustingPeriod {
		return nil, sdkerrors.Wrapf(ErrExpiredTrustingPeriod,
			"header time %s is %s after trusted time %s, trusting period is %s",
			headerTime, headerTime.Sub(trusted.Timestamp), trusted.Timestamp, cs.TrustingPeriod)
	}
	if !headerTime.After(trusted.Timestamp) {
		return nil, sdkerrors.Wrapf(ErrInvalidHeader, "header time %s is not after trusted time %s", headerTime, trusted.Timestamp)
	}
	if headerTime.After(now.Add(cs.MaxClockDrift)) {
		return nil, sdkerrors.Wrapf(ErrInvalidHeader, "header time %s is from the future (now %s, max drift %s)", headerTime, now, cs.MaxClockDrift)
	}

	if !bytes.Equal(header.TrustedValidators.Hash(), trusted.NextValidatorsHash) {
		return nil, sdkerrors.Wrap(ErrInvalidHeader, "trusted validators do not match the trusted next validators hash")
	}
	if !bytes.Equal(header.ValidatorSet.Hash(), header.SignedHeader.Header.ValidatorsHash) {
		return nil, sdkerrors.Wrap(ErrInvalidHeader, "validator set does not match the header validators hash")
	}

	chainID := cs.ChainID
	commit := header.SignedHeader.Commit
	if height.RevisionHeight == trustedHeight.RevisionHeight+1 {
		if !bytes.Equal(header.SignedHeader.Header.ValidatorsHash, trusted.NextValidatorsHash) {
			return nil, sdkerrors.Wrap(ErrInvalidHeader, "adjacent header validators do not match the trusted next validators")
		}
	} else {
		if err := verifyCommitTrusting(chainID, header.TrustedValidators, commit, cs.TrustLevel); err != nil {
			return nil, err
		}
	}
	if err := verifyCommit(chainID, header.ValidatorSet, commit); err != nil {
		return nil, err
	}

	consState := header.ConsensusState()
	return &consState, nil
}

// verifyCommit checks that more than 2/3 of the power of vals signed commit.
func verifyCommit(chainID string, vals *ValidatorSet, commit Commit) error {
	total := vals.TotalVotingPower()
	tallied, err := tallyCommit(chainID, vals, commit)
	if err != nil {
		return err
	}
	if tallied*3 <= total*2 {
		return sdkerrors.Wrapf(ErrInsufficientVotingPower, "got %d of %d voting power, need more than 2/3", tallied, total)
	}
	return nil
}

// verifyCommitTrusting checks that more than trustLevel of the power of the
// trusted validators signed commit.
func verifyCommitTrusting(chainID string, trusted *ValidatorSet, commit Commit, trustLevel Fraction) error {
	total := trusted.TotalVotingPower()
	tallied, err := tallyCommit(chainID, trusted, commit)
	if err != nil {
		return err
	}
	if uint64(tallied)*trustLevel.Denominator <= uint64(total)*trustLevel.Numerator {
		return sdkerrors.Wrapf(ErrInsufficientVotingPower,
			"trusted validators signed %d of %d voting power, need more than %s", tallied, total, trustLevel)
	}
	return nil
}

// tallyCommit sums the power of the members of vals whose signatures in
// commit are valid. Signatures of validators outside vals are ignored, a bad
// signature of a member is an error.
func tallyCommit(chainID string, vals *ValidatorSet, commit Commit) (int64, error) {
	signBytes := VoteSignBytes(chainID, commit.Height, commit.BlockHash)
	seen := make(map[string]struct{}, len(commit.Signatures))
	var tallied int64
	for _, sig := range commit.Signatures {
		if sig.Absent() {
			continue
		}
		val := vals.GetByAddress(sig.ValidatorAddress)
		if val == nil {
			continue
		}
		if _, ok := seen[string(sig.ValidatorAddress)]; ok {
			return 0, sdkerrors.Wrapf(ErrInvalidHeader, "double vote from validator %X", sig.ValidatorAddress)
		}
		seen[string(sig.ValidatorAddress)] = struct{}{}
		if !val.PubKey.VerifySignature(signBytes, sig.Signature) {
			return 0, sdkerrors.Wrapf(ErrInvalidHeader, "invalid signature from validator %X", sig.ValidatorAddress)
		}
		tallied += val.VotingPower
	}
	return tallied, nil
}
