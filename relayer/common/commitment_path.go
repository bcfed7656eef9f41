package common

import (
	"fmt"

	host "github.com/cosmos/ibc-go/v3/modules/core/24-host"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
)

// ICS-24 host paths as store keys. Every value a counterparty needs to prove
// is stored under one of these keys.

func GetClientStatePath(clientID string) []byte {
	return []byte(host.FullClientStatePath(clientID))
}

func GetConsensusStatePath(clientID string, height ibc.Height) []byte {
	return []byte(host.FullConsensusStatePath(clientID, height))
}

func GetConnectionPath(connectionID string) []byte {
	return []byte(host.ConnectionPath(connectionID))
}

func GetChannelPath(portID, channelID string) []byte {
	return []byte(host.ChannelPath(portID, channelID))
}

func GetNextSequenceSendPath(portID, channelID string) []byte {
	return []byte(host.NextSequenceSendPath(portID, channelID))
}

func GetNextSequenceRecvPath(portID, channelID string) []byte {
	return []byte(host.NextSequenceRecvPath(portID, channelID))
}

func GetNextSequenceAckPath(portID, channelID string) []byte {
	return []byte(host.NextSequenceAckPath(portID, channelID))
}

func GetPacketCommitmentPath(portID, channelID string, sequence uint64) []byte {
	return []byte(host.PacketCommitmentPath(portID, channelID, sequence))
}

func GetPacketAcknowledgementPath(portID, channelID string, sequence uint64) []byte {
	return []byte(host.PacketAcknowledgementPath(portID, channelID, sequence))
}

func GetPacketReceiptPath(portID, channelID string, sequence uint64) []byte {
	return []byte(host.PacketReceiptPath(portID, channelID, sequence))
}

// Iteration prefixes. Each ends in a separator so that "channel-1" does not
// match "channel-10".

func GetConnectionPrefixPath() []byte {
	return []byte(host.KeyConnectionPrefix + "/")
}

func GetChannelPrefixPath(portID string) []byte {
	return []byte(fmt.Sprintf("%s/%s/%s/%s/", host.KeyChannelEndPrefix, host.KeyPortPrefix, portID, host.KeyChannelPrefix))
}

func GetPacketCommitmentPrefixPath(portID, channelID string) []byte {
	return []byte(host.PacketCommitmentPrefixPath(portID, channelID) + "/")
}
