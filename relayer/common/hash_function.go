package common

import (
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Uint64ToBytes returns the big endian encoding of i, used for sequence
// values committed to the store.
func Uint64ToBytes(i uint64) []byte {
	return sdk.Uint64ToBigEndian(i)
}

// BytesToUint64 is the inverse of Uint64ToBytes. It returns 0 for values of
// the wrong length.
func BytesToUint64(bz []byte) uint64 {
	if len(bz) != 8 {
		return 0
	}
	return sdk.BigEndianToUint64(bz)
}
