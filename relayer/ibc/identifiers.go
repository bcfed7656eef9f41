package ibc

import (
	"fmt"
	"strconv"
	"strings"

	host "github.com/cosmos/ibc-go/v3/modules/core/24-host"
)

const (
	// ClientType is the type of light client every chain in this module runs
	// for its counterparties.
	ClientType = "07-tendermint"

	ConnectionPrefix = "connection-"
	ChannelPrefix    = "channel-"

	// TransferPort is the default port used by the relayer's paths.
	TransferPort = "transfer"
)

func FormatClientIdentifier(sequence uint64) string {
	return fmt.Sprintf("%s-%d", ClientType, sequence)
}

func FormatConnectionIdentifier(sequence uint64) string {
	return fmt.Sprintf("%s%d", ConnectionPrefix, sequence)
}

func FormatChannelIdentifier(sequence uint64) string {
	return fmt.Sprintf("%s%d", ChannelPrefix, sequence)
}

// ParseIdentifierSequence returns the trailing sequence of a generated
// identifier such as "connection-4".
func ParseIdentifierSequence(id, prefix string) (uint64, error) {
	if !strings.HasPrefix(id, prefix) {
		return 0, fmt.Errorf("identifier %s does not have prefix %s", id, prefix)
	}
	return strconv.ParseUint(strings.TrimPrefix(id, prefix), 10, 64)
}

func ValidateClientID(id string) error     { return host.ClientIdentifierValidator(id) }
func ValidateConnectionID(id string) error { return host.ConnectionIdentifierValidator(id) }
func ValidateChannelID(id string) error    { return host.ChannelIdentifierValidator(id) }
func ValidatePortID(id string) error       { return host.PortIdentifierValidator(id) }
