package commitment

import (
	"fmt"

	ics23 "github.com/confio/ics23/go"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	commitmenttypes "github.com/cosmos/ibc-go/v3/modules/core/23-commitment/types"
	"github.com/gogo/protobuf/proto"
)

// ProofSpecs are the ics23 specs of the store committed by every chain,
// lowest tree first: a simple merkle tree over the keys of a substore, then
// one over the substore roots.
var ProofSpecs = []*ics23.ProofSpec{ics23.TendermintSpec, ics23.TendermintSpec}

// Root is a commitment root, the app hash of a block.
type Root = commitmenttypes.MerkleRoot

// Prefix names the substore ICS-24 paths are committed in.
type Prefix = commitmenttypes.MerklePrefix

// Path is an ICS-24 path under a prefix, outermost key first.
type Path = commitmenttypes.MerklePath

func NewRoot(hash []byte) Root {
	return commitmenttypes.NewMerkleRoot(hash)
}

func NewPrefix(storeName string) Prefix {
	return commitmenttypes.NewMerklePrefix([]byte(storeName))
}

// ApplyPrefix returns the merkle path of an ICS-24 path under prefix.
func ApplyPrefix(prefix Prefix, path []byte) (Path, error) {
	if len(path) == 0 {
		return Path{}, sdkerrors.Wrap(ErrInvalidPrefix, "path cannot be empty")
	}
	mpath, err := commitmenttypes.ApplyPrefix(prefix, commitmenttypes.NewMerklePath(string(path)))
	if err != nil {
		return Path{}, sdkerrors.Wrap(ErrInvalidPrefix, err.Error())
	}
	return mpath, nil
}

// VerifyMembership checks that proof, an encoded MerkleProof, proves value is
// stored at path under root.
func VerifyMembership(specs []*ics23.ProofSpec, root Root, proof []byte, path Path, value []byte) error {
	mp, err := decodeProof(root, proof)
	if err != nil {
		return err
	}
	if len(value) == 0 {
		return sdkerrors.Wrap(ErrProofInvalid, "value cannot be empty")
	}
	if err := mp.VerifyMembership(specs, root, path, value); err != nil {
		return sdkerrors.Wrapf(ErrProofInvalid, "membership of %s: %v", path, err)
	}
	return nil
}

// VerifyNonMembership checks that proof, an encoded MerkleProof, proves
// nothing is stored at path under root.
func VerifyNonMembership(specs []*ics23.ProofSpec, root Root, proof []byte, path Path) error {
	mp, err := decodeProof(root, proof)
	if err != nil {
		return err
	}
	if err := mp.VerifyNonMembership(specs, root, path); err != nil {
		return sdkerrors.Wrapf(ErrProofInvalid, "non-membership of %s: %v", path, err)
	}
	return nil
}

func decodeProof(root Root, proof []byte) (commitmenttypes.MerkleProof, error) {
	var mp commitmenttypes.MerkleProof
	if len(proof) == 0 {
		return mp, fmt.Errorf("%w: %w", ErrProofInvalid, ErrEmptyProof)
	}
	if root.Empty() {
		return mp, fmt.Errorf("%w: %w", ErrProofInvalid, ErrEmptyRoot)
	}
	if err := proto.Unmarshal(proof, &mp); err != nil {
		return mp, fmt.Errorf("%w: %w: %v", ErrProofInvalid, ErrInvalidProofEncoding, err)
	}
	return mp, nil
}
