package core

import (
	"bytes"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
)

// connOpenInit stores a new connection in Init. An Init identical to an
// existing connection still in Init returns that connection instead.
func (k *Keeper) connOpenInit(ctx Context, msg *MsgConnectionOpenInit) (*Result, error) {
	if _, err := k.activeClient(ctx, msg.ClientID); err != nil {
		return nil, err
	}
	versions := ibc.CompatibleVersions()
	if msg.Version != nil {
		if !ibc.IsSupportedVersion(versions, msg.Version) {
			return nil, sdkerrors.Wrapf(ErrInvalidVersion, "version %s is not supported", msg.Version.Identifier)
		}
		versions = []*ibc.Version{msg.Version}
	}
	end := ibc.NewConnectionEnd(ibc.ConnectionInit, msg.ClientID, msg.Counterparty, versions, msg.DelayPeriod)

	var existing string
	k.iterateConnections(func(id string, c ibc.ConnectionEnd) bool {
		if connectionsEqual(c, end) {
			existing = id
			return false
		}
		return true
	})
	if existing != "" {
		return &Result{NoOp: true, Data: []byte(existing)}, nil
	}

	connectionID := ibc.FormatConnectionIdentifier(k.nextIdentifier(keyNextConnectionSequence))
	k.setConnection(connectionID, end)
	return &Result{
		Events: []ibc.Event{connectionEvent(ibc.EventConnectionOpenInit, connectionID, end)},
		Data:   []byte(connectionID),
	}, nil
}

// connOpenTry answers a counterparty Init. With PreviousConnectionID set it
// advances this chain's own Init of the same connection (crossing hellos).
// Proofs are verified before a duplicate Try is reported as a NoOp.
func (k *Keeper) connOpenTry(ctx Context, msg *MsgConnectionOpenTry) (*Result, error) {
	if err := validateSelfClient(ctx, msg.ClientState); err != nil {
		return nil, err
	}
	version, err := ibc.PickVersion(ibc.CompatibleVersions(), msg.CounterpartyVersions)
	if err != nil {
		return nil, sdkerrors.Wrap(ErrInvalidVersion, err.Error())
	}
	end := ibc.NewConnectionEnd(ibc.ConnectionTryOpen, msg.ClientID, msg.Counterparty, []*ibc.Version{version}, msg.DelayPeriod)

	if _, err := k.activeClient(ctx, msg.ClientID); err != nil {
		return nil, err
	}
	expected := ibc.NewConnectionEnd(ibc.ConnectionInit, msg.Counterparty.ClientId,
		ibc.NewConnectionCounterparty(msg.ClientID, "", k.prefix.Bytes()),
		msg.CounterpartyVersions, msg.DelayPeriod)
	if err := k.verifyConnectionState(ctx, end, msg.ProofHeight, msg.ProofInit, msg.Counterparty.ConnectionId, expected); err != nil {
		return nil, err
	}
	if err := k.verifyClientState(ctx, end, msg.ProofHeight, msg.ProofClient, msg.ClientState); err != nil {
		return nil, err
	}

	var existing string
	k.iterateConnections(func(id string, c ibc.ConnectionEnd) bool {
		if connectionsEqual(c, end) {
			existing = id
			return false
		}
		return true
	})
	if existing != "" {
		return &Result{NoOp: true, Data: []byte(existing)}, nil
	}

	connectionID := msg.PreviousConnectionID
	if connectionID != "" {
		prev, ok := k.getConnection(connectionID)
		if !ok {
			return nil, sdkerrors.Wrap(ErrConnectionNotFound, connectionID)
		}
		if prev.State != ibc.ConnectionInit ||
			prev.ClientId != msg.ClientID ||
			prev.Counterparty.ClientId != msg.Counterparty.ClientId ||
			!bytes.Equal(prev.Counterparty.Prefix.KeyPrefix, msg.Counterparty.Prefix.KeyPrefix) ||
			prev.DelayPeriod != msg.DelayPeriod {
			return nil, sdkerrors.Wrapf(ErrInvalidConnectionState, "previous connection %s does not match the counterparty handshake", connectionID)
		}
	} else {
		connectionID = ibc.FormatConnectionIdentifier(k.nextIdentifier(keyNextConnectionSequence))
	}
	k.setConnection(connectionID, end)
	return &Result{
		Events: []ibc.Event{connectionEvent(ibc.EventConnectionOpenTry, connectionID, end)},
		Data:   []byte(connectionID),
	}, nil
}

// connOpenAck opens a connection in Init or TryOpen once the counterparty has
// answered with Try. An Ack already applied is a NoOp once its proofs verify.
func (k *Keeper) connOpenAck(ctx Context, msg *MsgConnectionOpenAck) (*Result, error) {
	conn, ok := k.getConnection(msg.ConnectionID)
	if !ok {
		return nil, sdkerrors.Wrap(ErrConnectionNotFound, msg.ConnectionID)
	}
	applied := conn.State == ibc.ConnectionOpen && conn.Counterparty.ConnectionId == msg.CounterpartyConnectionID

	if !applied {
		switch conn.State {
		case ibc.ConnectionInit:
			if !ibc.IsSupportedVersion(conn.Versions, msg.Version) {
				return nil, sdkerrors.Wrapf(ErrInvalidVersion, "version %s was not proposed", msg.Version.Identifier)
			}
		case ibc.ConnectionTryOpen:
			if len(conn.Versions) != 1 || !ibc.VersionsEqual(conn.Versions[0], msg.Version) {
				return nil, sdkerrors.Wrapf(ErrInvalidVersion, "version %s does not match the version picked on try", msg.Version.Identifier)
			}
		default:
			return nil, sdkerrors.Wrapf(ErrInvalidConnectionState, "connection %s is %s, expected INIT or TRYOPEN", msg.ConnectionID, conn.State)
		}
		if conn.Counterparty.ConnectionId != "" && conn.Counterparty.ConnectionId != msg.CounterpartyConnectionID {
			return nil, sdkerrors.Wrapf(ErrInvalidCounterparty, "connection %s is bound to counterparty %s", msg.ConnectionID, conn.Counterparty.ConnectionId)
		}
	}
	if err := validateSelfClient(ctx, msg.ClientState); err != nil {
		return nil, err
	}

	expected := ibc.NewConnectionEnd(ibc.ConnectionTryOpen, conn.Counterparty.ClientId,
		ibc.NewConnectionCounterparty(conn.ClientId, msg.ConnectionID, k.prefix.Bytes()),
		[]*ibc.Version{msg.Version}, conn.DelayPeriod)
	if err := k.verifyConnectionState(ctx, conn, msg.ProofHeight, msg.ProofTry, msg.CounterpartyConnectionID, expected); err != nil {
		return nil, err
	}
	if err := k.verifyClientState(ctx, conn, msg.ProofHeight, msg.ProofClient, msg.ClientState); err != nil {
		return nil, err
	}
	if applied {
		return &Result{NoOp: true}, nil
	}

	conn.State = ibc.ConnectionOpen
	conn.Versions = []*ibc.Version{msg.Version}
	conn.Counterparty.ConnectionId = msg.CounterpartyConnectionID
	k.setConnection(msg.ConnectionID, conn)
	return &Result{
		Events: []ibc.Event{connectionEvent(ibc.EventConnectionOpenAck, msg.ConnectionID, conn)},
	}, nil
}

// connOpenConfirm opens a connection in TryOpen once the counterparty is
// Open. A Confirm of an Open connection is a NoOp once its proof verifies.
func (k *Keeper) connOpenConfirm(ctx Context, msg *MsgConnectionOpenConfirm) (*Result, error) {
	conn, ok := k.getConnection(msg.ConnectionID)
	if !ok {
		return nil, sdkerrors.Wrap(ErrConnectionNotFound, msg.ConnectionID)
	}
	if conn.State != ibc.ConnectionTryOpen && conn.State != ibc.ConnectionOpen {
		return nil, sdkerrors.Wrapf(ErrInvalidConnectionState, "connection %s is %s, expected TRYOPEN", msg.ConnectionID, conn.State)
	}

	expected := ibc.NewConnectionEnd(ibc.ConnectionOpen, conn.Counterparty.ClientId,
		ibc.NewConnectionCounterparty(conn.ClientId, msg.ConnectionID, k.prefix.Bytes()),
		conn.Versions, conn.DelayPeriod)
	if err := k.verifyConnectionState(ctx, conn, msg.ProofHeight, msg.ProofAck, conn.Counterparty.ConnectionId, expected); err != nil {
		return nil, err
	}
	if conn.State == ibc.ConnectionOpen {
		return &Result{NoOp: true}, nil
	}

	conn.State = ibc.ConnectionOpen
	k.setConnection(msg.ConnectionID, conn)
	return &Result{
		Events: []ibc.Event{connectionEvent(ibc.EventConnectionOpenConfirm, msg.ConnectionID, conn)},
	}, nil
}

// openConnection returns the Open connection with the given identifier.
func (k *Keeper) openConnection(connectionID string) (ibc.ConnectionEnd, error) {
	conn, ok := k.getConnection(connectionID)
	if !ok {
		return conn, sdkerrors.Wrap(ErrConnectionNotFound, connectionID)
	}
	if conn.State != ibc.ConnectionOpen {
		return conn, sdkerrors.Wrapf(ErrInvalidConnectionState, "connection %s is %s, expected OPEN", connectionID, conn.State)
	}
	return conn, nil
}

func connectionsEqual(a, b ibc.ConnectionEnd) bool {
	if a.State != b.State ||
		a.ClientId != b.ClientId ||
		!ibc.CounterpartiesEqual(a.Counterparty, b.Counterparty) ||
		a.DelayPeriod != b.DelayPeriod ||
		len(a.Versions) != len(b.Versions) {
		return false
	}
	for i := range a.Versions {
		if !ibc.VersionsEqual(a.Versions[i], b.Versions[i]) {
			return false
		}
	}
	return true
}

func connectionEvent(typ ibc.EventType, connectionID string, end ibc.ConnectionEnd) ibc.Event {
	return ibc.Event{
		Type: typ,
		Connection: &ibc.ConnectionInfo{
			ConnectionID:             connectionID,
			ClientID:                 end.ClientId,
			CounterpartyClientID:     end.Counterparty.ClientId,
			CounterpartyConnectionID: end.Counterparty.ConnectionId,
		},
	}
}
