package lightclient

import (
	"bytes"
	"fmt"
	"sort"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/tendermint/tendermint/crypto/ed25519"
	"github.com/tendermint/tendermint/crypto/merkle"
)

// Validator is a consensus participant of the tracked chain.
type Validator struct {
	Address     []byte         `json:"address"`
	PubKey      ed25519.PubKey `json:"pub_key"`
	VotingPower int64          `json:"voting_power"`
}

func NewValidator(pubKey ed25519.PubKey, votingPower int64) *Validator {
	return &Validator{
		Address:     pubKey.Address(),
		PubKey:      pubKey,
		VotingPower: votingPower,
	}
}

// Bytes is the leaf committed in the validator set hash.
func (v *Validator) Bytes() []byte {
	bz := make([]byte, 0, len(v.PubKey)+8)
	bz = append(bz, v.PubKey...)
	return append(bz, sdk.Uint64ToBigEndian(uint64(v.VotingPower))...)
}

// ValidatorSet is a set of validators sorted by address.
type ValidatorSet struct {
	Validators []*Validator `json:"validators"`
}

// NewValidatorSet sorts vals by address. It does not copy the validators.
func NewValidatorSet(vals []*Validator) *ValidatorSet {
	sorted := make([]*Validator, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Address, sorted[j].Address) < 0
	})
	return &ValidatorSet{Validators: sorted}
}

func (vs *ValidatorSet) ValidateBasic() error {
	if vs == nil || len(vs.Validators) == 0 {
		return fmt.Errorf("%w: validator set is nil or empty", ErrInvalidValidatorSet)
	}
	for i, v := range vs.Validators {
		if v == nil || len(v.PubKey) != ed25519.PubKeySize {
			return fmt.Errorf("%w: validator %d has an invalid public key", ErrInvalidValidatorSet, i)
		}
		if !bytes.Equal(v.Address, v.PubKey.Address()) {
			return fmt.Errorf("%w: validator %d address does not match its public key", ErrInvalidValidatorSet, i)
		}
		if v.VotingPower <= 0 {
			return fmt.Errorf("%w: validator %X has non-positive voting power", ErrInvalidValidatorSet, v.Address)
		}
		if i > 0 && bytes.Compare(vs.Validators[i-1].Address, v.Address) >= 0 {
			return fmt.Errorf("%w: validators must be sorted by address without duplicates", ErrInvalidValidatorSet)
		}
	}
	return nil
}

// Hash is the merkle root of the validators in set order.
func (vs *ValidatorSet) Hash() []byte {
	if vs == nil {
		return nil
	}
	items := make([][]byte, len(vs.Validators))
	for i, v := range vs.Validators {
		items[i] = v.Bytes()
	}
	return merkle.HashFromByteSlices(items)
}

func (vs *ValidatorSet) TotalVotingPower() int64 {
	var total int64
	for _, v := range vs.Validators {
		total += v.VotingPower
	}
	return total
}

// GetByAddress returns the validator with the given address or nil.
func (vs *ValidatorSet) GetByAddress(address []byte) *Validator {
	i := sort.Search(len(vs.Validators), func(i int) bool {
		return bytes.Compare(vs.Validators[i].Address, address) >= 0
	})
	if i < len(vs.Validators) && bytes.Equal(vs.Validators[i].Address, address) {
		return vs.Validators[i]
	}
	return nil
}

// Copy returns a deep copy of the set.
func (vs *ValidatorSet) Copy() *ValidatorSet {
	vals := make([]*Validator, len(vs.Validators))
	for i, v := range vs.Validators {
		c := *v
		vals[i] = &c
	}
	return &ValidatorSet{Validators: vals}
}
