package core_test

import (
	"context"
	"testing"

	"github.com/cosmos/ibc-relayer/relayer/core"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/provider"
	"github.com/stretchr/testify/require"
)

func TestChannelHandshake(t *testing.T) {
	p := newTestPath(t)
	p.openChannel(t, ibc.Unordered)

	chA, ok := p.a.Keeper().Channel(ibc.TransferPort, p.chanA)
	require.True(t, ok)
	chB, ok := p.b.Keeper().Channel(ibc.TransferPort, p.chanB)
	require.True(t, ok)
	require.Equal(t, ibc.ChannelOpen, chA.State)
	require.Equal(t, ibc.ChannelOpen, chB.State)
	require.Equal(t, p.chanB, chA.Counterparty.ChannelId)
	require.Equal(t, p.chanA, chB.Counterparty.ChannelId)
	require.Equal(t, chA.Version, chB.Version)

	seq, ok := p.a.Keeper().NextSequenceSend(ibc.TransferPort, p.chanA)
	require.True(t, ok)
	require.Equal(t, uint64(1), seq)
}

func TestChannelInitRequiresOpenConnection(t *testing.T) {
	p := newTestPath(t)
	p.createClients(t)
	p.connA = p.connInit(t)

	_, err := p.a.SendMessages(context.Background(), []core.Msg{&core.MsgChannelOpenInit{
		PortID: ibc.TransferPort,
		Channel: ibc.NewChannelEnd(ibc.ChannelInit, ibc.Unordered, ibc.NewChannelCounterparty(ibc.TransferPort, ""),
			[]string{p.connA}, "ics20-1"),
	}})
	require.ErrorIs(t, err, core.ErrInvalidConnectionState)

	_, err = p.a.SendMessages(context.Background(), []core.Msg{&core.MsgChannelOpenInit{
		PortID: "unbound",
		Channel: ibc.NewChannelEnd(ibc.ChannelInit, ibc.Unordered, ibc.NewChannelCounterparty(ibc.TransferPort, ""),
			[]string{p.connA}, "ics20-1"),
	}})
	require.ErrorIs(t, err, core.ErrPortNotBound)
}

func TestChannelClose(t *testing.T) {
	p := newTestPath(t)
	p.openChannel(t, ibc.Unordered)

	res := send(t, p.a, &core.MsgChannelCloseInit{PortID: ibc.TransferPort, ChannelID: p.chanA})
	require.Equal(t, []ibc.EventType{ibc.EventChannelCloseInit}, eventTypes(res))

	h := updateClient(t, p.b, p.a, p.clientB)
	_, proof, err := provider.QueryChannel(context.Background(), p.a, h, ibc.TransferPort, p.chanA)
	require.NoError(t, err)
	closeConfirm := &core.MsgChannelCloseConfirm{PortID: ibc.TransferPort, ChannelID: p.chanB, ProofHeight: h, ProofInit: proof}
	res = send(t, p.b, closeConfirm)
	require.Equal(t, []ibc.EventType{ibc.EventChannelCloseConfirm}, eventTypes(res))

	chB, _ := p.b.Keeper().Channel(ibc.TransferPort, p.chanB)
	require.Equal(t, ibc.ChannelClosed, chB.State)

	res = send(t, p.b, closeConfirm)
	require.True(t, res.Results[0].NoOp)

	_, err = p.a.SendMessages(context.Background(), []core.Msg{&core.MsgSendPacket{
		SourcePort:    ibc.TransferPort,
		SourceChannel: p.chanA,
		Data:          []byte("late"),
		TimeoutHeight: ibc.NewHeight(1, 10000),
	}})
	require.ErrorIs(t, err, core.ErrInvalidChannelState)
}

func TestChannelCloseConfirmRequiresClosedCounterparty(t *testing.T) {
	p := newTestPath(t)
	p.openChannel(t, ibc.Unordered)

	h := updateClient(t, p.b, p.a, p.clientB)
	_, proof, err := provider.QueryChannel(context.Background(), p.a, h, ibc.TransferPort, p.chanA)
	require.NoError(t, err)
	_, err = p.b.SendMessages(context.Background(), []core.Msg{&core.MsgChannelCloseConfirm{
		PortID: ibc.TransferPort, ChannelID: p.chanB, ProofHeight: h, ProofInit: proof,
	}})
	require.ErrorIs(t, err, provider.ErrTxRejected)

	chB, _ := p.b.Keeper().Channel(ibc.TransferPort, p.chanB)
	require.Equal(t, ibc.ChannelOpen, chB.State)
}
