package lightclient

import (
	"fmt"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/tendermint/tendermint/crypto/ed25519"
)

// PrivValidator is a validator key able to sign commits. It is used by the
// in-memory chain and by tests.
type PrivValidator struct {
	PrivKey ed25519.PrivKey
	Power   int64
}

// NewPrivValidator derives a deterministic key from seed.
func NewPrivValidator(seed string, power int64) PrivValidator {
	return PrivValidator{
		PrivKey: ed25519.GenPrivKeyFromSecret([]byte(seed)),
		Power:   power,
	}
}

func (pv PrivValidator) PubKey() ed25519.PubKey {
	return pv.PrivKey.PubKey().(ed25519.PubKey)
}

func (pv PrivValidator) Address() []byte {
	return pv.PubKey().Address()
}

func (pv PrivValidator) Validator() *Validator {
	return NewValidator(pv.PubKey(), pv.Power)
}

// NewValidatorSetFromPrivs returns the validator set of privs.
func NewValidatorSetFromPrivs(privs []PrivValidator) *ValidatorSet {
	vals := make([]*Validator, len(privs))
	for i, pv := range privs {
		vals[i] = pv.Validator()
	}
	return NewValidatorSet(vals)
}

// SignHeader returns a commit for header signed by signers.
func SignHeader(header BlockHeader, signers []PrivValidator) (Commit, error) {
	blockHash := header.Hash()
	signBytes := VoteSignBytes(header.ChainID, header.Height, blockHash)
	commit := Commit{
		Height:     header.Height,
		BlockHash:  blockHash,
		Signatures: make([]CommitSig, 0, len(signers)),
	}
	for _, pv := range signers {
		sig, err := pv.PrivKey.Sign(signBytes)
		if err != nil {
			return Commit{}, fmt.Errorf("failed to sign header at %s: %w", header.Height, err)
		}
		commit.Signatures = append(commit.Signatures, CommitSig{
			ValidatorAddress: pv.Address(),
			Signature:        sig,
		})
	}
	return commit, nil
}

// NewSignedHeader sets the validators hash of header to vals and signs it
// with signers. The next validators default to vals.
func NewSignedHeader(header BlockHeader, vals *ValidatorSet, signers []PrivValidator) (SignedHeader, error) {
	header.ValidatorsHash = vals.Hash()
	if header.NextValidatorsHash == nil {
		header.NextValidatorsHash = header.ValidatorsHash
	}
	commit, err := SignHeader(header, signers)
	if err != nil {
		return SignedHeader{}, err
	}
	return SignedHeader{Header: header, Commit: commit}, nil
}

// HeightOf is a convenience for building headers on a chain id's revision.
func HeightOf(chainID string, height uint64) ibc.Height {
	return ibc.NewHeight(ibc.ParseChainID(chainID), height)
}
