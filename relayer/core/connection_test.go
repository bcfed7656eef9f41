package core_test

import (
	"context"
	"testing"

	"github.com/cosmos/ibc-relayer/relayer/commitment"
	"github.com/cosmos/ibc-relayer/relayer/core"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
	"github.com/cosmos/ibc-relayer/relayer/provider"
	"github.com/stretchr/testify/require"
)

func TestConnectionHandshake(t *testing.T) {
	p := newTestPath(t)
	p.openConnection(t)

	connA, ok := p.a.Keeper().Connection(p.connA)
	require.True(t, ok)
	connB, ok := p.b.Keeper().Connection(p.connB)
	require.True(t, ok)

	require.Equal(t, ibc.ConnectionOpen, connA.State)
	require.Equal(t, ibc.ConnectionOpen, connB.State)
	require.Equal(t, p.connB, connA.Counterparty.ConnectionId)
	require.Equal(t, p.connA, connB.Counterparty.ConnectionId)
	require.Equal(t, p.clientB, connA.Counterparty.ClientId)
	require.Equal(t, p.clientA, connB.Counterparty.ClientId)
	require.Equal(t, connA.Versions, connB.Versions)

	// repeated steps against an Open connection are no-ops
	res := p.connConfirm(t)
	require.True(t, res.Results[0].NoOp)
	require.Empty(t, res.Events)
	res = send(t, p.a, p.openAck)
	require.True(t, res.Results[0].NoOp)
	require.Empty(t, res.Events)
}

func TestConnectionRepeatedStepsVerifyProofs(t *testing.T) {
	p := newTestPath(t)
	p.openConnection(t)
	ctx := context.Background()

	// an Ack resent with a corrupted proof fails even though connA is Open
	ack := *p.openAck
	ack.ProofTry = append([]byte(nil), ack.ProofTry...)
	ack.ProofTry[len(ack.ProofTry)-1] ^= 0xff
	_, err := p.a.SendMessages(ctx, []core.Msg{&ack})
	require.ErrorIs(t, err, provider.ErrTxRejected)

	// proofs checked against a height they were not taken at are rejected
	ack = *p.openAck
	ack.ProofHeight = updateClient(t, p.a, p.b, p.clientA)
	_, err = p.a.SendMessages(ctx, []core.Msg{&ack})
	require.ErrorIs(t, err, commitment.ErrProofInvalid)

	// a Try repeated with a corrupted proof fails even though connB exists
	h := updateClient(t, p.b, p.a, p.clientB)
	end, proofInit, err := provider.QueryConnection(ctx, p.a, h, p.connA)
	require.NoError(t, err)
	cs, proofClient, err := provider.QueryClientState(ctx, p.a, h, p.clientA)
	require.NoError(t, err)
	proofInit[len(proofInit)-1] ^= 0xff
	_, err = p.b.SendMessages(ctx, []core.Msg{&core.MsgConnectionOpenTry{
		ClientID:             p.clientB,
		ClientState:          cs,
		Counterparty:         ibc.NewConnectionCounterparty(p.clientA, p.connA, p.a.CommitmentPrefix().Bytes()),
		CounterpartyVersions: end.Versions,
		ProofHeight:          h,
		ProofInit:            proofInit,
		ProofClient:          proofClient,
	}})
	require.ErrorIs(t, err, provider.ErrTxRejected)
	require.Len(t, p.b.Keeper().Connections(), 1)

	// a Confirm with a valid proof of the Open counterparty stays a no-op
	res := p.connConfirm(t)
	require.True(t, res.Results[0].NoOp)
}

func TestConnectionOpenInitDeduplicated(t *testing.T) {
	p := newTestPath(t)
	p.createClients(t)

	first := p.connInit(t)
	res := send(t, p.a, &core.MsgConnectionOpenInit{
		ClientID:     p.clientA,
		Counterparty: ibc.NewConnectionCounterparty(p.clientB, "", p.b.CommitmentPrefix().Bytes()),
	})
	require.True(t, res.Results[0].NoOp)
	require.Equal(t, first, string(res.Results[0].Data))
	require.Len(t, p.a.Keeper().Connections(), 1)

	// a repeated Try for the same counterparty connection returns the first
	p.connA = first
	res = send(t, p.b, p.connTryMsg(t, ""))
	p.connB = string(res.Results[0].Data)
	res = send(t, p.b, p.connTryMsg(t, ""))
	require.True(t, res.Results[0].NoOp)
	require.Equal(t, p.connB, string(res.Results[0].Data))
	require.Len(t, p.b.Keeper().Connections(), 1)
}

func TestConnectionCrossingHellos(t *testing.T) {
	p := newTestPath(t)
	p.createClients(t)

	p.connA = p.connInit(t)
	res := send(t, p.b, &core.MsgConnectionOpenInit{
		ClientID:     p.clientB,
		Counterparty: ibc.NewConnectionCounterparty(p.clientA, "", p.a.CommitmentPrefix().Bytes()),
	})
	initB := string(res.Results[0].Data)

	// b advances its own Init instead of allocating a new connection
	res = send(t, p.b, p.connTryMsg(t, initB))
	p.connB = string(res.Results[0].Data)
	require.Equal(t, initB, p.connB)

	// a is still in Init and accepts the Ack
	p.connAck(t)
	p.connConfirm(t)

	connA, _ := p.a.Keeper().Connection(p.connA)
	connB, _ := p.b.Keeper().Connection(p.connB)
	require.Equal(t, ibc.ConnectionOpen, connA.State)
	require.Equal(t, ibc.ConnectionOpen, connB.State)
	require.Len(t, p.b.Keeper().Connections(), 1)
}

func TestConnectionTryRejectsCorruptedProof(t *testing.T) {
	p := newTestPath(t)
	p.createClients(t)
	p.connA = p.connInit(t)

	msg := p.connTryMsg(t, "")
	msg.ProofInit[len(msg.ProofInit)-1] ^= 0xff
	before, err := p.b.QueryLatestHeight(context.Background())
	require.NoError(t, err)

	_, err = p.b.SendMessages(context.Background(), []core.Msg{msg})
	require.ErrorIs(t, err, provider.ErrTxRejected)
	require.Error(t, err)
	require.Empty(t, p.b.Keeper().Connections())

	// the rejected transaction still produced a block without events
	after, err := p.b.QueryLatestHeight(context.Background())
	require.NoError(t, err)
	require.Equal(t, ibc.NextHeight(before), after)
	events, err := p.b.QueryBlockEvents(context.Background(), after)
	require.NoError(t, err)
	require.Equal(t, []ibc.EventType{ibc.EventNewBlock}, eventTypesOf(events))

	// a proof of a different value is rejected as well
	msg = p.connTryMsg(t, "")
	msg.DelayPeriod = 1
	_, err = p.b.SendMessages(context.Background(), []core.Msg{msg})
	require.ErrorIs(t, err, commitment.ErrProofInvalid)
}

func TestConnectionTryValidatesSelfClient(t *testing.T) {
	p := newTestPath(t)
	p.createClients(t)
	p.connA = p.connInit(t)

	tests := []struct {
		name   string
		modify func(cs *lightclient.ClientState)
	}{
		{"wrong chain", func(cs *lightclient.ClientState) { cs.ChainID = "chain-c-1" }},
		{"frozen", func(cs *lightclient.ClientState) { cs.FrozenHeight = ibc.NewHeight(1, 1) }},
		{"height from the future", func(cs *lightclient.ClientState) { cs.LatestHeight = lightclient.HeightOf(cs.ChainID, 1000) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := p.connTryMsg(t, "")
			tt.modify(&msg.ClientState)
			_, err := p.b.SendMessages(context.Background(), []core.Msg{msg})
			require.ErrorIs(t, err, core.ErrInvalidClientState)
		})
	}
}

func TestConnectionConfirmRequiresTryOpen(t *testing.T) {
	p := newTestPath(t)
	p.createClients(t)
	p.connA = p.connInit(t)

	h := updateClient(t, p.b, p.a, p.clientB)
	_, proof, err := provider.QueryConnection(context.Background(), p.a, h, p.connA)
	require.NoError(t, err)
	_, err = p.a.SendMessages(context.Background(), []core.Msg{&core.MsgConnectionOpenConfirm{
		ConnectionID: p.connA, ProofHeight: h, ProofAck: proof,
	}})
	require.ErrorIs(t, err, core.ErrInvalidConnectionState)

	_, err = p.b.SendMessages(context.Background(), []core.Msg{&core.MsgConnectionOpenConfirm{
		ConnectionID: "connection-9", ProofHeight: h, ProofAck: proof,
	}})
	require.ErrorIs(t, err, core.ErrConnectionNotFound)
}

func eventTypesOf(events []ibc.Event) []ibc.EventType {
	var types []ibc.EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}
