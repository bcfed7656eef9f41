package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/cosmos/ibc-relayer/relayer/chains/mock"
	"github.com/cosmos/ibc-relayer/relayer/core"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
	"github.com/cosmos/ibc-relayer/relayer/provider"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testPath connects chain a and chain b. Identifiers are filled in as the
// path is built; clientA is the client of b on a.
type testPath struct {
	a, b *mock.Chain

	clientA, clientB string
	connA, connB     string
	chanA, chanB     string

	// openAck is the Ack that opened connA.
	openAck *core.MsgConnectionOpenAck
}

func newTestPath(t *testing.T) *testPath {
	clock := mock.NewClock(mock.GenesisTime, time.Second)
	log := zaptest.NewLogger(t)
	a, err := mock.NewChain(log, mock.Config{ChainID: "chain-a-1"}, clock)
	require.NoError(t, err)
	b, err := mock.NewChain(log, mock.Config{ChainID: "chain-b-1"}, clock)
	require.NoError(t, err)
	return &testPath{a: a, b: b}
}

func send(t *testing.T, c *mock.Chain, msgs ...core.Msg) *provider.TxResult {
	t.Helper()
	res, err := c.SendMessages(context.Background(), msgs)
	require.NoError(t, err)
	return res
}

func createClient(t *testing.T, host, counterparty *mock.Chain) string {
	t.Helper()
	lb, err := provider.QueryLatestLightBlock(context.Background(), counterparty)
	require.NoError(t, err)
	res := send(t, host, &core.MsgCreateClient{
		ClientState:    lightclient.NewClientState(counterparty.ChainID(), lb.Height()),
		ConsensusState: lb.ConsensusState(),
	})
	return string(res.Results[0].Data)
}

// updateClient updates clientID on host to the latest height of counterparty
// and returns that height.
func updateClient(t *testing.T, host, counterparty *mock.Chain, clientID string) ibc.Height {
	t.Helper()
	ctx := context.Background()
	tr, ok := host.Keeper().Tracker(clientID)
	require.True(t, ok)
	trusted := tr.ClientState().LatestHeight
	latest, err := counterparty.QueryLatestHeight(ctx)
	require.NoError(t, err)
	if latest.EQ(trusted) {
		return latest
	}
	header, err := provider.NewUpdateHeader(ctx, counterparty, trusted, latest)
	require.NoError(t, err)
	send(t, host, &core.MsgUpdateClient{ClientID: clientID, Header: header})
	return latest
}

func (p *testPath) createClients(t *testing.T) {
	p.clientA = createClient(t, p.a, p.b)
	p.clientB = createClient(t, p.b, p.a)
}

func (p *testPath) connInit(t *testing.T) string {
	res := send(t, p.a, &core.MsgConnectionOpenInit{
		ClientID:     p.clientA,
		Counterparty: ibc.NewConnectionCounterparty(p.clientB, "", p.b.CommitmentPrefix().Bytes()),
	})
	return string(res.Results[0].Data)
}

// connTryMsg builds the Try on b answering a's connection connA.
func (p *testPath) connTryMsg(t *testing.T, previous string) *core.MsgConnectionOpenTry {
	ctx := context.Background()
	h := updateClient(t, p.b, p.a, p.clientB)
	end, proofInit, err := provider.QueryConnection(ctx, p.a, h, p.connA)
	require.NoError(t, err)
	cs, proofClient, err := provider.QueryClientState(ctx, p.a, h, p.clientA)
	require.NoError(t, err)
	return &core.MsgConnectionOpenTry{
		PreviousConnectionID: previous,
		ClientID:             p.clientB,
		ClientState:          cs,
		Counterparty:         ibc.NewConnectionCounterparty(p.clientA, p.connA, p.a.CommitmentPrefix().Bytes()),
		CounterpartyVersions: end.Versions,
		ProofHeight:          h,
		ProofInit:            proofInit,
		ProofClient:          proofClient,
	}
}

func (p *testPath) connAck(t *testing.T) *provider.TxResult {
	return send(t, p.a, p.connAckMsg(t))
}

// connAckMsg builds the Ack on a for b's connection connB.
func (p *testPath) connAckMsg(t *testing.T) *core.MsgConnectionOpenAck {
	ctx := context.Background()
	h := updateClient(t, p.a, p.b, p.clientA)
	end, proofTry, err := provider.QueryConnection(ctx, p.b, h, p.connB)
	require.NoError(t, err)
	cs, proofClient, err := provider.QueryClientState(ctx, p.b, h, p.clientB)
	require.NoError(t, err)
	return &core.MsgConnectionOpenAck{
		ConnectionID:             p.connA,
		CounterpartyConnectionID: p.connB,
		Version:                  end.Versions[0],
		ClientState:              cs,
		ProofHeight:              h,
		ProofTry:                 proofTry,
		ProofClient:              proofClient,
	}
}

func (p *testPath) connConfirm(t *testing.T) *provider.TxResult {
	h := updateClient(t, p.b, p.a, p.clientB)
	_, proofAck, err := provider.QueryConnection(context.Background(), p.a, h, p.connA)
	require.NoError(t, err)
	return send(t, p.b, &core.MsgConnectionOpenConfirm{ConnectionID: p.connB, ProofHeight: h, ProofAck: proofAck})
}

func (p *testPath) openConnection(t *testing.T) {
	p.createClients(t)
	p.connA = p.connInit(t)
	res := send(t, p.b, p.connTryMsg(t, ""))
	p.connB = string(res.Results[0].Data)
	p.openAck = p.connAckMsg(t)
	send(t, p.a, p.openAck)
	p.connConfirm(t)
}

func (p *testPath) openChannel(t *testing.T, order ibc.Order) {
	ctx := context.Background()
	p.openConnection(t)

	res := send(t, p.a, &core.MsgChannelOpenInit{
		PortID: ibc.TransferPort,
		Channel: ibc.NewChannelEnd(ibc.ChannelInit, order, ibc.NewChannelCounterparty(ibc.TransferPort, ""),
			[]string{p.connA}, "ics20-1"),
	})
	p.chanA = string(res.Results[0].Data)

	h := updateClient(t, p.b, p.a, p.clientB)
	_, proofInit, err := provider.QueryChannel(ctx, p.a, h, ibc.TransferPort, p.chanA)
	require.NoError(t, err)
	res = send(t, p.b, &core.MsgChannelOpenTry{
		PortID: ibc.TransferPort,
		Channel: ibc.NewChannelEnd(ibc.ChannelTryOpen, order, ibc.NewChannelCounterparty(ibc.TransferPort, p.chanA),
			[]string{p.connB}, "ics20-1"),
		CounterpartyVersion: "ics20-1",
		ProofHeight:         h,
		ProofInit:           proofInit,
	})
	p.chanB = string(res.Results[0].Data)

	h = updateClient(t, p.a, p.b, p.clientA)
	_, proofTry, err := provider.QueryChannel(ctx, p.b, h, ibc.TransferPort, p.chanB)
	require.NoError(t, err)
	send(t, p.a, &core.MsgChannelOpenAck{
		PortID:                ibc.TransferPort,
		ChannelID:             p.chanA,
		CounterpartyChannelID: p.chanB,
		CounterpartyVersion:   "ics20-1",
		ProofHeight:           h,
		ProofTry:              proofTry,
	})

	h = updateClient(t, p.b, p.a, p.clientB)
	_, proofAck, err := provider.QueryChannel(ctx, p.a, h, ibc.TransferPort, p.chanA)
	require.NoError(t, err)
	send(t, p.b, &core.MsgChannelOpenConfirm{
		PortID:      ibc.TransferPort,
		ChannelID:   p.chanB,
		ProofHeight: h,
		ProofAck:    proofAck,
	})
}

// sendPacket sends data from a to b with a timeout far in the future unless
// timeoutHeight is set.
func (p *testPath) sendPacket(t *testing.T, data string, timeoutHeight ibc.Height) ibc.Packet {
	if timeoutHeight.IsZero() {
		timeoutHeight = lightclient.HeightOf(p.b.ChainID(), 10000)
	}
	res := send(t, p.a, &core.MsgSendPacket{
		SourcePort:    ibc.TransferPort,
		SourceChannel: p.chanA,
		Data:          []byte(data),
		TimeoutHeight: timeoutHeight,
	})
	for _, e := range res.Events {
		if e.Type == ibc.EventSendPacket {
			return e.Packet.Packet
		}
	}
	t.Fatal("no send packet event")
	return ibc.Packet{}
}

func (p *testPath) recvMsg(t *testing.T, packet ibc.Packet) *core.MsgRecvPacket {
	h := updateClient(t, p.b, p.a, p.clientB)
	_, proof, err := provider.QueryPacketCommitment(context.Background(), p.a, h, packet.SourcePort, packet.SourceChannel, packet.Sequence)
	require.NoError(t, err)
	return &core.MsgRecvPacket{Packet: packet, ProofHeight: h, ProofCommitment: proof}
}

// ackMsg builds the acknowledgement of packet from b's WriteAcknowledgement
// event payload ack.
func (p *testPath) ackMsg(t *testing.T, packet ibc.Packet, ack []byte) *core.MsgAcknowledgement {
	h := updateClient(t, p.a, p.b, p.clientA)
	_, proof, err := provider.QueryPacketAcknowledgement(context.Background(), p.b, h, packet.DestinationPort, packet.DestinationChannel, packet.Sequence)
	require.NoError(t, err)
	return &core.MsgAcknowledgement{Packet: packet, Acknowledgement: ack, ProofHeight: h, ProofAcked: proof}
}

func (p *testPath) timeoutMsg(t *testing.T, packet ibc.Packet, ordered bool) *core.MsgTimeout {
	ctx := context.Background()
	h := updateClient(t, p.a, p.b, p.clientA)
	msg := &core.MsgTimeout{Packet: packet, ProofHeight: h}
	if ordered {
		next, proof, err := provider.QueryNextSequenceRecv(ctx, p.b, h, packet.DestinationPort, packet.DestinationChannel)
		require.NoError(t, err)
		msg.NextSequenceRecv, msg.ProofUnreceived = next, proof
		return msg
	}
	_, proof, err := provider.QueryPacketReceipt(ctx, p.b, h, packet.DestinationPort, packet.DestinationChannel, packet.Sequence)
	require.NoError(t, err)
	msg.ProofUnreceived = proof
	return msg
}

func ackFrom(t *testing.T, res *provider.TxResult) []byte {
	for _, e := range res.Events {
		if e.Type == ibc.EventWriteAcknowledgement {
			return e.Packet.Ack
		}
	}
	t.Fatal("no write acknowledgement event")
	return nil
}

func eventTypes(res *provider.TxResult) []ibc.EventType {
	var types []ibc.EventType
	for _, e := range res.Events {
		types = append(types, e.Type)
	}
	return types
}
