package common

import (
	host "github.com/cosmos/ibc-go/v3/modules/core/24-host"
)

const (
	// StoreKey names the substore a chain commits its IBC state in. It is
	// also the commitment prefix counterparties prove that state under.
	StoreKey = host.StoreKey

	// MetaStoreKey names the substore holding keeper bookkeeping that is
	// never proven to a counterparty.
	MetaStoreKey = "meta"
)
