package processor

import (
	"testing"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/stretchr/testify/require"
)

const (
	testChannel0 = "channel-0"
	testChannel2 = "channel-2"

	testPort0 = "transfer"
	testPort1 = "other"
)

func TestShouldRelayChannel(t *testing.T) {
	channel0 := ibc.ChannelKey{ChannelID: testChannel0, PortID: testPort0}
	channel0OtherPort := ibc.ChannelKey{ChannelID: testChannel0, PortID: testPort1}
	counterparty0 := ibc.ChannelKey{CounterpartyChannelID: testChannel0, CounterpartyPortID: testPort0}
	channel2 := ibc.ChannelKey{ChannelID: testChannel2, PortID: testPort0}

	tests := []struct {
		name     string
		rule     string
		filter   []ibc.ChannelKey
		channel  ibc.ChannelKey
		expected bool
	}{
		{"no rule relays everything", "", nil, channel2, true},
		{"no rule relays counterparty", "", nil, counterparty0, true},
		{"allowed channel", RuleAllowList, []ibc.ChannelKey{{ChannelID: testChannel0}}, channel0, true},
		{"allowed channel any port", RuleAllowList, []ibc.ChannelKey{{ChannelID: testChannel0}}, channel0OtherPort, true},
		{"allowed counterparty channel", RuleAllowList, []ibc.ChannelKey{{ChannelID: testChannel0}}, counterparty0, true},
		{"channel not on allow list", RuleAllowList, []ibc.ChannelKey{{ChannelID: testChannel0}}, channel2, false},
		{"allowed channel and port", RuleAllowList, []ibc.ChannelKey{{ChannelID: testChannel0, PortID: testPort0}}, channel0, true},
		{"allowed channel other port", RuleAllowList, []ibc.ChannelKey{{ChannelID: testChannel0, PortID: testPort0}}, channel0OtherPort, false},
		{"allow list by counterparty", RuleAllowList, []ibc.ChannelKey{{CounterpartyChannelID: testChannel0}}, channel0, true},
		{"denied channel", RuleDenyList, []ibc.ChannelKey{{ChannelID: testChannel0}}, channel0, false},
		{"denied counterparty channel", RuleDenyList, []ibc.ChannelKey{{ChannelID: testChannel0}}, counterparty0, false},
		{"channel not on deny list", RuleDenyList, []ibc.ChannelKey{{ChannelID: testChannel0}}, channel2, true},
		{"denied port only", RuleDenyList, []ibc.ChannelKey{{ChannelID: testChannel0, PortID: testPort0}}, channel0OtherPort, true},
		{"denied channel and port", RuleDenyList, []ibc.ChannelKey{{ChannelID: testChannel0, PortID: testPort0}}, channel0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := NewPathEnd("chain-a-1", "07-tendermint-0", "connection-0", tt.rule, tt.filter)
			require.Equal(t, tt.expected, pe.ShouldRelayChannel(tt.channel))
		})
	}
}
