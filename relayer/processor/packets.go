package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/cosmos/ibc-relayer/relayer/common"
	"github.com/cosmos/ibc-relayer/relayer/core"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/provider"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// errSkip marks a message that no longer needs to be relayed.
var errSkip = errors.New("message no longer needed")

type msgKind int

const (
	msgRecv msgKind = iota
	msgAck
	msgTimeout
	msgTimeoutOnClose
)

func (k msgKind) String() string {
	switch k {
	case msgRecv:
		return "MsgRecvPacket"
	case msgAck:
		return "MsgAcknowledgement"
	case msgTimeout:
		return "MsgTimeout"
	case msgTimeoutOnClose:
		return "MsgTimeoutOnClose"
	}
	return "unknown"
}

// pendingPacket is a packet event waiting to be relayed. height is the block
// that emitted the event; the cursor of that chain never passes it while
// the packet is pending.
type pendingPacket struct {
	info     ibc.PacketInfo
	height   ibc.Height
	failures uint
}

// relayItem is one packet message to deliver. Its proofs come from the
// chain the message is not sent to. src and dst are the packet's source and
// destination ends, whichever way the message travels.
type relayItem struct {
	kind     msgKind
	key      packetKey
	info     ibc.PacketInfo
	src, dst *pathEndRuntime
}

// pending returns the set the item's packet is pending in.
func (it relayItem) pending() map[packetKey]pendingPacket {
	if it.kind == msgAck {
		return it.dst.acks
	}
	return it.src.recvs
}

// build assembles the message from proofs of ps. errSkip is returned when
// the proven state shows the message is no longer needed.
func (it relayItem) build(ctx context.Context, ps *proofSource) (core.Msg, error) {
	p := it.info.Packet
	switch it.kind {
	case msgRecv:
		value, proof, err := ps.prove(ctx, common.GetPacketCommitmentPath(p.SourcePort, p.SourceChannel, p.Sequence))
		if err != nil {
			return nil, err
		}
		if value == nil {
			return nil, errSkip
		}
		return &core.MsgRecvPacket{Packet: p, ProofHeight: ps.height, ProofCommitment: proof}, nil

	case msgAck:
		value, proof, err := ps.prove(ctx, common.GetPacketAcknowledgementPath(p.DestinationPort, p.DestinationChannel, p.Sequence))
		if err != nil {
			return nil, err
		}
		if value == nil {
			return nil, sdkerrors.Wrapf(provider.ErrNotFound, "acknowledgement of %s", ibc.PacketID(p))
		}
		return &core.MsgAcknowledgement{Packet: p, Acknowledgement: it.info.Ack, ProofHeight: ps.height, ProofAcked: proof}, nil

	case msgTimeout, msgTimeoutOnClose:
		next, proofUnreceived, err := it.proveUnreceived(ctx, ps)
		if err != nil {
			return nil, err
		}
		if it.kind == msgTimeout {
			return &core.MsgTimeout{Packet: p, NextSequenceRecv: next, ProofHeight: ps.height, ProofUnreceived: proofUnreceived}, nil
		}
		_, proofClose, err := ps.prove(ctx, common.GetChannelPath(p.DestinationPort, p.DestinationChannel))
		if err != nil {
			return nil, err
		}
		return &core.MsgTimeoutOnClose{
			Packet:           p,
			NextSequenceRecv: next,
			ProofHeight:      ps.height,
			ProofUnreceived:  proofUnreceived,
			ProofClose:       proofClose,
		}, nil
	}
	return nil, fmt.Errorf("unknown message kind %d", it.kind)
}

// proveUnreceived proves the destination has not received the packet, by
// its next receive sequence on ordered channels and by receipt absence
// otherwise.
func (it relayItem) proveUnreceived(ctx context.Context, ps *proofSource) (uint64, []byte, error) {
	p := it.info.Packet
	if it.info.Order == ibc.Ordered {
		value, proof, err := ps.prove(ctx, common.GetNextSequenceRecvPath(p.DestinationPort, p.DestinationChannel))
		if err != nil {
			return 0, nil, err
		}
		next := common.BytesToUint64(value)
		if p.Sequence < next {
			return 0, nil, errSkip
		}
		return next, proof, nil
	}
	value, proof, err := ps.prove(ctx, common.GetPacketReceiptPath(p.DestinationPort, p.DestinationChannel, p.Sequence))
	if err != nil {
		return 0, nil, err
	}
	if value != nil {
		return 0, nil, errSkip
	}
	return 0, proof, nil
}

// relayPackets decides, for every packet pending on src, which message to
// deliver, then delivers them. Packets sent by src are received on dst or
// timed out on src; acknowledgements written by src are delivered to dst.
func (pp *PathProcessor) relayPackets(ctx context.Context, src, dst *pathEndRuntime) error {
	if len(src.recvs) == 0 && len(dst.acks) == 0 {
		return nil
	}
	dstBlock, err := provider.QueryLatestLightBlock(ctx, dst.Provider)
	if err != nil {
		return err
	}
	srcHeight, err := src.Provider.QueryLatestHeight(ctx)
	if err != nil {
		return err
	}
	dstHeight := dstBlock.Height()
	dstTime := uint64(dstBlock.Time().UnixNano())

	var toDst, toSrc []relayItem
	var errs error
	for _, k := range sortedKeys(src.recvs) {
		pending := src.recvs[k]
		p := pending.info.Packet
		commitment, _, err := provider.QueryPacketCommitment(ctx, src.Provider, srcHeight, p.SourcePort, p.SourceChannel, p.Sequence)
		if err != nil && !errors.Is(err, provider.ErrNotFound) {
			errs = multierr.Append(errs, err)
			continue
		}
		if commitment == nil {
			delete(src.recvs, k)
			continue
		}
		received, err := pp.received(ctx, dst, dstHeight, pending.info)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if received {
			delete(src.recvs, k)
			continue
		}
		ch, _, err := provider.QueryChannel(ctx, dst.Provider, dstHeight, p.DestinationPort, p.DestinationChannel)
		switch {
		case err != nil:
			errs = multierr.Append(errs, err)
		case ch.State == ibc.ChannelClosed:
			toSrc = append(toSrc, relayItem{kind: msgTimeoutOnClose, key: k, info: pending.info, src: src, dst: dst})
		case ibc.TimeoutReached(p, dstHeight, dstTime):
			toSrc = append(toSrc, relayItem{kind: msgTimeout, key: k, info: pending.info, src: src, dst: dst})
		case ibc.TimeoutReached(p, ibc.NextHeight(dstHeight), dstTime):
			// times out in the next block of dst, before a receive could land
		default:
			toDst = append(toDst, relayItem{kind: msgRecv, key: k, info: pending.info, src: src, dst: dst})
		}
	}

	for _, k := range sortedKeys(dst.acks) {
		pending := dst.acks[k]
		p := pending.info.Packet
		commitment, _, err := provider.QueryPacketCommitment(ctx, src.Provider, srcHeight, p.SourcePort, p.SourceChannel, p.Sequence)
		if err != nil && !errors.Is(err, provider.ErrNotFound) {
			errs = multierr.Append(errs, err)
			continue
		}
		if commitment == nil {
			delete(dst.acks, k)
			continue
		}
		toSrc = append(toSrc, relayItem{kind: msgAck, key: k, info: pending.info, src: src, dst: dst})
	}

	if err := pp.deliver(ctx, src, dst, toDst); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := pp.deliver(ctx, dst, src, toSrc); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// received reports whether dst already received the packet.
func (pp *PathProcessor) received(ctx context.Context, dst *pathEndRuntime, height ibc.Height, info ibc.PacketInfo) (bool, error) {
	p := info.Packet
	if info.Order == ibc.Ordered {
		next, _, err := provider.QueryNextSequenceRecv(ctx, dst.Provider, height, p.DestinationPort, p.DestinationChannel)
		if errors.Is(err, provider.ErrNotFound) {
			return false, nil
		}
		return p.Sequence < next, err
	}
	received, _, err := provider.QueryPacketReceipt(ctx, dst.Provider, height, p.DestinationPort, p.DestinationChannel, p.Sequence)
	return received, err
}

// deliver sends items to the chain of to, proving them on from. Items are
// batched into transactions of at most MaxMsgsPerTx messages; a rejected
// batch is retried one message per transaction.
func (pp *PathProcessor) deliver(ctx context.Context, from, to *pathEndRuntime, items []relayItem) error {
	var errs error
	for len(items) > 0 {
		n := len(items)
		if n > pp.opts.MaxMsgsPerTx {
			n = pp.opts.MaxMsgsPerTx
		}
		batch := items[:n]
		items = items[n:]

		err := pp.submit(ctx, from, to, batch)
		if err == nil {
			continue
		}
		if IsFatal(err) || errors.Is(err, context.Canceled) {
			return err
		}
		if len(batch) > 1 && Classify(err) == ClassRejected {
			pp.log.Info(
				"Batch rejected, submitting messages one by one",
				zap.String("chain_id", to.ChainID),
				zap.Int("count", len(batch)),
				zap.Error(err),
			)
			for _, it := range batch {
				if err := pp.submit(ctx, from, to, []relayItem{it}); err != nil {
					if IsFatal(err) || errors.Is(err, context.Canceled) {
						return err
					}
					errs = multierr.Append(errs, err)
				}
			}
			continue
		}
		errs = multierr.Append(errs, err)
	}
	return errs
}

// submit delivers one transaction under the retry policy. Every attempt
// builds its messages at a fresh proof height. Items that fail for good are
// accounted against their pending packet.
func (pp *PathProcessor) submit(ctx context.Context, from, to *pathEndRuntime, items []relayItem) error {
	var sent []relayItem
	step := "relay_packets"
	err := withRetry(ctx, pp.log, pp.opts, step, func(error) {
		if pp.metrics != nil {
			pp.metrics.IncRetry(pp.name, to.ChainID, step)
		}
	}, func(ctx context.Context) error {
		ps, err := newProofSource(ctx, from.Endpoint, to.Endpoint)
		if err != nil {
			return err
		}
		sent = sent[:0]
		var msgs []core.Msg
		for _, it := range items {
			msg, err := it.build(ctx, ps)
			if errors.Is(err, errSkip) {
				delete(it.pending(), it.key)
				continue
			}
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
			sent = append(sent, it)
		}
		if len(msgs) == 0 {
			return nil
		}
		_, err = to.Provider.SendMessages(ctx, ps.msgs(msgs...))
		return err
	})
	if err != nil {
		if pp.metrics != nil {
			pp.metrics.IncTxFailure(pp.name, to.ChainID, Classify(err).String())
		}
		for _, it := range items {
			pp.failed(it, err)
		}
		return &PathError{Path: pp.name, Step: step, ChainID: to.ChainID, Err: err}
	}

	for _, it := range sent {
		p := it.info.Packet
		if pp.metrics != nil {
			pp.metrics.IncPacketsRelayed(pp.name, to.ChainID, p.SourceChannel, p.SourcePort, it.kind.String())
		}
		if it.kind == msgRecv {
			if err := it.src.tracker.Transition(it.key.channel, it.key.sequence, ibc.PacketSent); err != nil {
				pp.log.Debug("Packet state not updated", zap.Error(err))
			}
		}
		pp.log.Info(
			"Relayed packet message",
			zap.String("msg", it.kind.String()),
			zap.String("dst_chain_id", to.ChainID),
			zap.String("packet", ibc.PacketID(p)),
		)
	}
	return nil
}

// failed counts a failed delivery. Sequencing violations are dropped at once,
// other packets once they failed in MaxRetries cycles.
func (pp *PathProcessor) failed(it relayItem, err error) {
	pending := it.pending()
	entry, ok := pending[it.key]
	if !ok {
		return
	}
	entry.failures++
	if Classify(err) != ClassReported && entry.failures < pp.opts.MaxRetries {
		pending[it.key] = entry
		return
	}
	delete(pending, it.key)
	pp.log.Warn(
		"Dropping packet",
		zap.String("msg", it.kind.String()),
		zap.String("packet", ibc.PacketID(it.info.Packet)),
		zap.Uint("failures", entry.failures),
		zap.Error(err),
	)
}

func sortedKeys(m map[packetKey]pendingPacket) []packetKey {
	keys := make([]packetKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.channel != b.channel {
			return a.channel.String() < b.channel.String()
		}
		return a.sequence < b.sequence
	})
	return keys
}
