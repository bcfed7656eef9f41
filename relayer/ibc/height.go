package ibc

import (
	clienttypes "github.com/cosmos/ibc-go/v3/modules/core/02-client/types"
)

// Height is a monotonically increasing position of a chain. The revision
// number is incremented when a chain upgrades in a way that resets its block
// height (a hard fork), in which case the revision height restarts.
type Height = clienttypes.Height

// ZeroHeight is the zero value of Height.
var ZeroHeight = clienttypes.ZeroHeight()

func NewHeight(revisionNumber, revisionHeight uint64) Height {
	return clienttypes.NewHeight(revisionNumber, revisionHeight)
}

// NextHeight returns the next height on the same revision.
func NextHeight(h Height) Height {
	return NewHeight(h.RevisionNumber, h.RevisionHeight+1)
}

// PrevHeight returns the previous height on the same revision. The second
// return value is false when h is the first height of its revision.
func PrevHeight(h Height) (Height, bool) {
	if h.RevisionHeight == 0 {
		return ZeroHeight, false
	}
	return NewHeight(h.RevisionNumber, h.RevisionHeight-1), true
}

// ParseHeight parses a height of the form "{revision}-{height}".
func ParseHeight(s string) (Height, error) {
	return clienttypes.ParseHeight(s)
}

// ParseChainID returns the revision number encoded in a chain id of the form
// {name}-{revision}. Chain ids without a revision suffix are on revision 0.
func ParseChainID(chainID string) uint64 {
	return clienttypes.ParseChainID(chainID)
}
