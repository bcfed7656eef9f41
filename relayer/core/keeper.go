package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/cosmos/ibc-relayer/relayer/commitment"
	"github.com/cosmos/ibc-relayer/relayer/common"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
)

// Keys of keeper bookkeeping in the meta substore. None of it is proven to
// counterparties.
const (
	keyNextClientSequence     = "nextClientSequence"
	keyNextConnectionSequence = "nextConnectionSequence"
	keyNextChannelSequence    = "nextChannelSequence"
	keyPacketOutcomePrefix    = "outcomes"
)

// Context is the host block a message executes in.
type Context struct {
	ChainID string
	Height  ibc.Height
	Time    time.Time
}

// Result is returned for every message that executed without error. NoOp is
// set when the message was redundant and changed no state.
type Result struct {
	Events []ibc.Event
	NoOp   bool
	// Data carries a message specific return value, e.g. the sequence of a
	// sent packet.
	Data []byte
}

// Keeper is the IBC handler of a chain: it stores clients, connections,
// channels and packet commitments and executes IBC messages against them.
// A Keeper is not safe for concurrent writes; the chain executing it
// serializes blocks.
type Keeper struct {
	mu      sync.RWMutex
	prefix  commitment.Prefix
	store   *commitment.MultiStore
	clients map[string]*lightclient.Tracker
	apps    map[string]Application
}

// NewKeeper returns a keeper storing IBC state in the substore named by
// prefix. Bookkeeping goes to a separate meta substore.
func NewKeeper(prefix commitment.Prefix) *Keeper {
	k := &Keeper{
		prefix:  prefix,
		store:   commitment.NewMultiStore(string(prefix.Bytes()), common.MetaStoreKey),
		clients: make(map[string]*lightclient.Tracker),
		apps:    make(map[string]Application),
	}
	k.setSequence(keyNextClientSequence, 0)
	k.setSequence(keyNextConnectionSequence, 0)
	k.setSequence(keyNextChannelSequence, 0)
	return k
}

// Prefix returns the commitment prefix of this keeper's store.
func (k *Keeper) Prefix() commitment.Prefix {
	return k.prefix
}

// BindPort binds app to portID. Channels can only be opened on bound ports.
func (k *Keeper) BindPort(portID string, app Application) error {
	if err := ibc.ValidatePortID(portID); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.apps[portID]; ok {
		return fmt.Errorf("port %s is already bound", portID)
	}
	k.apps[portID] = app
	return nil
}

// Clone returns a deep copy of the keeper sharing bound applications. A chain
// executes a block against a clone and swaps it in only if every message
// succeeded.
func (k *Keeper) Clone() *Keeper {
	k.mu.RLock()
	defer k.mu.RUnlock()
	c := &Keeper{
		prefix:  k.prefix,
		store:   k.store.Clone(),
		clients: make(map[string]*lightclient.Tracker, len(k.clients)),
		apps:    k.apps,
	}
	for id, tr := range k.clients {
		c.clients[id] = tr.Clone()
	}
	return c
}

// Commit returns an immutable snapshot of the current store.
func (k *Keeper) Commit() *commitment.Snapshot {
	return k.store.Commit()
}

// Deliver executes msg. On error no state is guaranteed to be unchanged; the
// caller discards the keeper clone the message ran against.
func (k *Keeper) Deliver(ctx Context, msg Msg) (*Result, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, sdkerrors.Wrapf(ErrInvalidMsg, "%s: %s", msg.Type(), err)
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	switch m := msg.(type) {
	case *MsgCreateClient:
		return k.createClient(ctx, m)
	case *MsgUpdateClient:
		return k.updateClient(ctx, m)
	case *MsgSubmitMisbehaviour:
		return k.submitMisbehaviour(ctx, m)
	case *MsgConnectionOpenInit:
		return k.connOpenInit(ctx, m)
	case *MsgConnectionOpenTry:
		return k.connOpenTry(ctx, m)
	case *MsgConnectionOpenAck:
		return k.connOpenAck(ctx, m)
	case *MsgConnectionOpenConfirm:
		return k.connOpenConfirm(ctx, m)
	case *MsgChannelOpenInit:
		return k.chanOpenInit(ctx, m)
	case *MsgChannelOpenTry:
		return k.chanOpenTry(ctx, m)
	case *MsgChannelOpenAck:
		return k.chanOpenAck(ctx, m)
	case *MsgChannelOpenConfirm:
		return k.chanOpenConfirm(ctx, m)
	case *MsgChannelCloseInit:
		return k.chanCloseInit(ctx, m)
	case *MsgChannelCloseConfirm:
		return k.chanCloseConfirm(ctx, m)
	case *MsgSendPacket:
		return k.sendPacket(ctx, m)
	case *MsgRecvPacket:
		return k.recvPacket(ctx, m)
	case *MsgAcknowledgement:
		return k.acknowledgePacket(ctx, m)
	case *MsgTimeout:
		return k.timeoutPacket(ctx, m)
	case *MsgTimeoutOnClose:
		return k.timeoutOnClose(ctx, m)
	default:
		return nil, sdkerrors.Wrapf(ErrUnknownMsg, "%T", msg)
	}
}

// Tracker returns the light client with the given identifier.
func (k *Keeper) Tracker(clientID string) (*lightclient.Tracker, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	tr, ok := k.clients[clientID]
	return tr, ok
}

// ClientIDs returns the identifiers of all clients in creation order.
func (k *Keeper) ClientIDs() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	ids := make([]string, 0, len(k.clients))
	for id := range k.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		si, _ := ibc.ParseIdentifierSequence(ids[i], ibc.ClientType+"-")
		sj, _ := ibc.ParseIdentifierSequence(ids[j], ibc.ClientType+"-")
		return si < sj
	})
	return ids
}

// Connection returns the connection end stored under connectionID.
func (k *Keeper) Connection(connectionID string) (ibc.ConnectionEnd, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.getConnection(connectionID)
}

// Connections returns every connection end.
func (k *Keeper) Connections() []ibc.IdentifiedConnection {
	k.mu.RLock()
	defer k.mu.RUnlock()
	var out []ibc.IdentifiedConnection
	k.iterateConnections(func(id string, end ibc.ConnectionEnd) bool {
		out = append(out, ibc.NewIdentifiedConnection(id, end))
		return true
	})
	return out
}

// Channel returns the channel end stored under (portID, channelID).
func (k *Keeper) Channel(portID, channelID string) (ibc.ChannelEnd, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.getChannel(portID, channelID)
}

// PacketOutcome reports the lifecycle state of a packet sent from
// (portID, channelID): Committed while the commitment is stored, then
// Acknowledged or TimedOut.
func (k *Keeper) PacketOutcome(portID, channelID string, sequence uint64) ibc.PacketState {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.has(common.GetPacketCommitmentPath(portID, channelID, sequence)) {
		return ibc.PacketCommitted
	}
	bz, ok := k.metaStore().Get(outcomeKey(portID, channelID, sequence))
	if !ok {
		return ibc.PacketUnknown
	}
	return ibc.PacketState(common.BytesToUint64(bz))
}

// PacketReceived reports whether a packet with the given sequence was received
// on (portID, channelID).
func (k *Keeper) PacketReceived(portID, channelID string, sequence uint64) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	channel, ok := k.getChannel(portID, channelID)
	if !ok {
		return false
	}
	if channel.Ordering == ibc.Ordered {
		next, _ := k.getSequence(common.GetNextSequenceRecvPath(portID, channelID))
		return sequence < next
	}
	return k.has(common.GetPacketReceiptPath(portID, channelID, sequence))
}

// NextSequenceSend returns the sequence the next packet sent on the channel
// will carry.
func (k *Keeper) NextSequenceSend(portID, channelID string) (uint64, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.getSequence(common.GetNextSequenceSendPath(portID, channelID))
}

// PacketCommitments returns the sequences with a stored commitment on the
// channel, in ascending order.
func (k *Keeper) PacketCommitments(portID, channelID string) []uint64 {
	k.mu.RLock()
	defer k.mu.RUnlock()
	prefix := common.GetPacketCommitmentPrefixPath(portID, channelID)
	var seqs []uint64
	k.ibcStore().IteratePrefix(prefix, func(key, _ []byte) bool {
		var seq uint64
		if _, err := fmt.Sscanf(string(key[len(prefix):]), "%d", &seq); err == nil {
			seqs = append(seqs, seq)
		}
		return true
	})
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs
}

// ibcStore is the substore counterparties prove ICS-24 paths in.
func (k *Keeper) ibcStore() *commitment.Store {
	return k.store.Store(string(k.prefix.Bytes()))
}

func (k *Keeper) metaStore() *commitment.Store {
	return k.store.Store(common.MetaStoreKey)
}

func (k *Keeper) get(path []byte) ([]byte, bool) {
	return k.ibcStore().Get(path)
}

func (k *Keeper) has(path []byte) bool {
	return k.ibcStore().Has(path)
}

func (k *Keeper) set(path []byte, value []byte) {
	k.ibcStore().Set(path, value)
}

func (k *Keeper) delete(path []byte) {
	k.ibcStore().Delete(path)
}

func (k *Keeper) getSequence(path []byte) (uint64, bool) {
	bz, ok := k.get(path)
	if !ok {
		return 0, false
	}
	return common.BytesToUint64(bz), true
}

func (k *Keeper) setSequence(key string, seq uint64) {
	k.metaStore().Set([]byte(key), common.Uint64ToBytes(seq))
}

// nextIdentifier returns the next value of an identifier sequence and
// advances it.
func (k *Keeper) nextIdentifier(key string) uint64 {
	bz, _ := k.metaStore().Get([]byte(key))
	seq := common.BytesToUint64(bz)
	k.setSequence(key, seq+1)
	return seq
}

func (k *Keeper) setOutcome(packet ibc.Packet, state ibc.PacketState) {
	k.metaStore().Set(outcomeKey(packet.SourcePort, packet.SourceChannel, packet.Sequence), common.Uint64ToBytes(uint64(state)))
}

func outcomeKey(portID, channelID string, sequence uint64) []byte {
	return []byte(fmt.Sprintf("%s/%s/%s/%d", keyPacketOutcomePrefix, portID, channelID, sequence))
}

func (k *Keeper) getConnection(connectionID string) (ibc.ConnectionEnd, bool) {
	var end ibc.ConnectionEnd
	bz, ok := k.get(common.GetConnectionPath(connectionID))
	if !ok {
		return end, false
	}
	if err := ibc.Unmarshal(bz, &end); err != nil {
		panic(fmt.Errorf("corrupt connection %s: %w", connectionID, err))
	}
	return end, true
}

func (k *Keeper) setConnection(connectionID string, end ibc.ConnectionEnd) {
	k.set(common.GetConnectionPath(connectionID), ibc.MustMarshal(&end))
}

// iterateConnections calls fn for every connection until fn returns false.
func (k *Keeper) iterateConnections(fn func(id string, end ibc.ConnectionEnd) bool) {
	prefix := common.GetConnectionPrefixPath()
	k.ibcStore().IteratePrefix(prefix, func(key, value []byte) bool {
		var end ibc.ConnectionEnd
		if err := ibc.Unmarshal(value, &end); err != nil {
			panic(fmt.Errorf("corrupt connection %s: %w", key, err))
		}
		return fn(string(key[len(prefix):]), end)
	})
}

func (k *Keeper) getChannel(portID, channelID string) (ibc.ChannelEnd, bool) {
	var end ibc.ChannelEnd
	bz, ok := k.get(common.GetChannelPath(portID, channelID))
	if !ok {
		return end, false
	}
	if err := ibc.Unmarshal(bz, &end); err != nil {
		panic(fmt.Errorf("corrupt channel %s/%s: %w", portID, channelID, err))
	}
	return end, true
}

func (k *Keeper) setChannel(portID, channelID string, end ibc.ChannelEnd) {
	k.set(common.GetChannelPath(portID, channelID), ibc.MustMarshal(&end))
}

// iterateChannels calls fn for every channel bound to portID until fn returns
// false.
func (k *Keeper) iterateChannels(portID string, fn func(channelID string, end ibc.ChannelEnd) bool) {
	prefix := common.GetChannelPrefixPath(portID)
	k.ibcStore().IteratePrefix(prefix, func(key, value []byte) bool {
		var end ibc.ChannelEnd
		if err := ibc.Unmarshal(value, &end); err != nil {
			panic(fmt.Errorf("corrupt channel %s: %w", key, err))
		}
		return fn(string(key[len(prefix):]), end)
	})
}
