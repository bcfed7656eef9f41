package processor

import (
	"context"
	"testing"

	"github.com/cosmos/ibc-relayer/relayer/core"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/stretchr/testify/require"
)

func TestLinkOpensConnectionAndChannel(t *testing.T) {
	p := newTestPath(t)
	p.link(t, ibc.Unordered)

	connA, ok := p.a.Keeper().Connection(p.endA.ConnectionID)
	require.True(t, ok)
	require.Equal(t, ibc.ConnectionOpen, connA.State)
	require.Equal(t, p.endB.ConnectionID, connA.Counterparty.ConnectionId)
	connB, ok := p.b.Keeper().Connection(p.endB.ConnectionID)
	require.True(t, ok)
	require.Equal(t, ibc.ConnectionOpen, connB.State)

	chA, ok := p.a.Keeper().Channel(ibc.TransferPort, p.endA.ChannelID)
	require.True(t, ok)
	require.Equal(t, ibc.ChannelOpen, chA.State)
	require.Equal(t, p.endB.ChannelID, chA.Counterparty.ChannelId)
	require.Equal(t, testVersion, chA.Version)
	chB, ok := p.b.Keeper().Channel(ibc.TransferPort, p.endB.ChannelID)
	require.True(t, ok)
	require.Equal(t, ibc.ChannelOpen, chB.State)

	// completed handshakes submit nothing
	ha, err := p.a.QueryLatestHeight(context.Background())
	require.NoError(t, err)
	done, err := ConnectionStep(context.Background(), p.log, p.endA, p.endB, testOptions())
	require.NoError(t, err)
	require.True(t, done)
	done, err = ChannelStep(context.Background(), p.log, p.endA, p.endB, ibc.Unordered, testVersion, testOptions())
	require.NoError(t, err)
	require.True(t, done)
	hb, err := p.a.QueryLatestHeight(context.Background())
	require.NoError(t, err)
	require.Equal(t, ha, hb)
}

func TestCreateClientsReusesMatchingClient(t *testing.T) {
	ctx := context.Background()
	p := newTestPath(t)

	modified, err := CreateClients(ctx, p.log, p.endA, p.endB, false, testOptions())
	require.NoError(t, err)
	require.True(t, modified)
	clientA, clientB := p.endA.ClientID, p.endB.ClientID
	require.NotEmpty(t, clientA)
	require.NotEmpty(t, clientB)

	modified, err = CreateClients(ctx, p.log, p.endA, p.endB, false, testOptions())
	require.NoError(t, err)
	require.False(t, modified)
	require.Equal(t, clientA, p.endA.ClientID)

	modified, err = CreateClients(ctx, p.log, p.endA, p.endB, true, testOptions())
	require.NoError(t, err)
	require.True(t, modified)
	require.NotEqual(t, clientA, p.endA.ClientID)
	require.NotEqual(t, clientB, p.endB.ClientID)
	require.Len(t, p.a.Keeper().ClientIDs(), 2)
}

// Both chains start the same connection; the drivers finish it as one.
func TestConnectionCrossingHellos(t *testing.T) {
	ctx := context.Background()
	p := newTestPath(t)
	_, err := CreateClients(ctx, p.log, p.endA, p.endB, false, testOptions())
	require.NoError(t, err)

	res, err := p.a.SendMessages(ctx, []core.Msg{&core.MsgConnectionOpenInit{
		ClientID:     p.endA.ClientID,
		Counterparty: ibc.NewConnectionCounterparty(p.endB.ClientID, "", p.b.CommitmentPrefix().Bytes()),
	}})
	require.NoError(t, err)
	p.endA.ConnectionID = string(res.Results[0].Data)
	res, err = p.b.SendMessages(ctx, []core.Msg{&core.MsgConnectionOpenInit{
		ClientID:     p.endB.ClientID,
		Counterparty: ibc.NewConnectionCounterparty(p.endA.ClientID, "", p.a.CommitmentPrefix().Bytes()),
	}})
	require.NoError(t, err)
	connB := string(res.Results[0].Data)
	p.endB.ConnectionID = connB

	p.untilDone(t, func() (bool, error) {
		return ConnectionStep(ctx, p.log, p.endA, p.endB, testOptions())
	})
	require.Equal(t, connB, p.endB.ConnectionID)
	require.Len(t, p.b.Keeper().Connections(), 1)

	end, ok := p.a.Keeper().Connection(p.endA.ConnectionID)
	require.True(t, ok)
	require.Equal(t, ibc.ConnectionOpen, end.State)
	require.Equal(t, connB, end.Counterparty.ConnectionId)
}

func TestConnectionStepAdoptsCounterpartyIdentifier(t *testing.T) {
	ctx := context.Background()
	p := newTestPath(t)
	_, err := CreateClients(ctx, p.log, p.endA, p.endB, false, testOptions())
	require.NoError(t, err)

	// init and try
	for i := 0; i < 2; i++ {
		done, err := ConnectionStep(ctx, p.log, p.endA, p.endB, testOptions())
		require.NoError(t, err)
		require.False(t, done)
	}
	require.NotEmpty(t, p.endB.ConnectionID)

	// a driver that lost b's identifier gets it back from the repeated Try,
	// which b deduplicates
	endB := *p.endB
	endB.ConnectionID = ""
	done, err := ConnectionStep(ctx, p.log, p.endA, &endB, testOptions())
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, p.endB.ConnectionID, endB.ConnectionID)

	p.untilDone(t, func() (bool, error) {
		return ConnectionStep(ctx, p.log, p.endA, &endB, testOptions())
	})
}

func TestChannelCloseStep(t *testing.T) {
	ctx := context.Background()
	p := newTestPath(t)
	p.link(t, ibc.Ordered)

	p.untilDone(t, func() (bool, error) {
		return ChannelCloseStep(ctx, p.log, p.endA, p.endB, testOptions())
	})
	chA, _ := p.a.Keeper().Channel(ibc.TransferPort, p.endA.ChannelID)
	require.Equal(t, ibc.ChannelClosed, chA.State)
	chB, _ := p.b.Keeper().Channel(ibc.TransferPort, p.endB.ChannelID)
	require.Equal(t, ibc.ChannelClosed, chB.State)

	// a closed channel cannot be reopened
	_, err := ChannelStep(ctx, p.log, p.endA, p.endB, ibc.Ordered, testVersion, testOptions())
	require.ErrorIs(t, err, core.ErrInvalidChannelState)
	require.Equal(t, ClassRejected, Classify(err))
}
