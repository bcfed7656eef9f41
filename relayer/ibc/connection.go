package ibc

import (
	"bytes"

	conntypes "github.com/cosmos/ibc-go/v3/modules/core/03-connection/types"
	commitmenttypes "github.com/cosmos/ibc-go/v3/modules/core/23-commitment/types"
	"github.com/gogo/protobuf/proto"
)

// ConnectionState is the handshake state of a connection end.
type ConnectionState = conntypes.State

const (
	ConnectionUninitialized = conntypes.UNINITIALIZED
	ConnectionInit          = conntypes.INIT
	ConnectionTryOpen       = conntypes.TRYOPEN
	ConnectionOpen          = conntypes.OPEN
)

const (
	OrderOrdered   = "ORDER_ORDERED"
	OrderUnordered = "ORDER_UNORDERED"
)

// Version is a connection version together with the channel orderings it
// supports.
type Version = conntypes.Version

// DefaultVersion is the only connection version this implementation
// negotiates. Callers get their own copy.
func DefaultVersion() *Version {
	d := conntypes.DefaultIBCVersion
	return conntypes.NewVersion(d.Identifier, append([]string(nil), d.Features...))
}

// CompatibleVersions returns the versions supported by this implementation
// in order of preference.
func CompatibleVersions() []*Version {
	return []*Version{DefaultVersion()}
}

// VersionsEqual compares identifier and features in order.
func VersionsEqual(a, b *Version) bool {
	return proto.Equal(a, b)
}

// HasFeature reports whether v supports the given channel ordering.
func HasFeature(v *Version, feature string) bool {
	return conntypes.VerifySupportedFeature(v, feature)
}

// IsSupportedVersion returns true if version matches one of supported by
// identifier and only uses features that version supports.
func IsSupportedVersion(supported []*Version, version *Version) bool {
	if version == nil {
		return false
	}
	match, ok := conntypes.FindSupportedVersion(version, conntypes.ProtoVersionsToExported(supported))
	if !ok {
		return false
	}
	return match.VerifyProposedVersion(version) == nil
}

// PickVersion selects the first supported version that the counterparty also
// proposed, restricted to the features both sides share.
func PickVersion(supported, counterparty []*Version) (*Version, error) {
	return conntypes.PickVersion(
		conntypes.ProtoVersionsToExported(supported),
		conntypes.ProtoVersionsToExported(counterparty),
	)
}

// ConnectionCounterparty identifies the remote end of a connection and the
// store prefix its state is proven under.
type ConnectionCounterparty = conntypes.Counterparty

func NewConnectionCounterparty(clientID, connectionID string, prefix []byte) ConnectionCounterparty {
	return conntypes.NewCounterparty(clientID, connectionID, commitmenttypes.NewMerklePrefix(prefix))
}

// ConnectionEnd is the state a chain stores for one end of a connection.
// DelayPeriod is in nanoseconds.
type ConnectionEnd = conntypes.ConnectionEnd

func NewConnectionEnd(state ConnectionState, clientID string, counterparty ConnectionCounterparty, versions []*Version, delayPeriod uint64) ConnectionEnd {
	return conntypes.NewConnectionEnd(state, clientID, counterparty, versions, delayPeriod)
}

// CounterpartiesEqual compares client, connection and prefix.
func CounterpartiesEqual(a, b ConnectionCounterparty) bool {
	return a.ClientId == b.ClientId &&
		a.ConnectionId == b.ConnectionId &&
		bytes.Equal(a.Prefix.KeyPrefix, b.Prefix.KeyPrefix)
}

// IdentifiedConnection is a connection end together with its identifier.
type IdentifiedConnection = conntypes.IdentifiedConnection

func NewIdentifiedConnection(connectionID string, end ConnectionEnd) IdentifiedConnection {
	return conntypes.NewIdentifiedConnection(connectionID, end)
}
