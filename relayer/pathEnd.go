package relayer

import (
	"errors"
	"fmt"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
)

// PathEnd represents the local connection identifiers for a relay path.
// Identifiers that are empty are created by linking the path.
type PathEnd struct {
	ChainID      string `yaml:"chain-id" json:"chain-id"`
	ClientID     string `yaml:"client-id,omitempty" json:"client-id,omitempty"`
	ConnectionID string `yaml:"connection-id,omitempty" json:"connection-id,omitempty"`
	ChannelID    string `yaml:"channel-id,omitempty" json:"channel-id,omitempty"`
	PortID       string `yaml:"port-id,omitempty" json:"port-id,omitempty"`
}

// ValidateBasic checks the identifiers that are set. A connection requires a
// client and a channel requires a connection.
func (pe *PathEnd) ValidateBasic() error {
	if pe.ChainID == "" {
		return errors.New("chain-id cannot be empty")
	}
	if pe.ClientID != "" {
		if err := ibc.ValidateClientID(pe.ClientID); err != nil {
			return err
		}
	}
	if pe.ConnectionID != "" {
		if pe.ClientID == "" {
			return fmt.Errorf("connection %s set without a client", pe.ConnectionID)
		}
		if err := ibc.ValidateConnectionID(pe.ConnectionID); err != nil {
			return err
		}
	}
	if pe.ChannelID != "" {
		if pe.ConnectionID == "" {
			return fmt.Errorf("channel %s set without a connection", pe.ChannelID)
		}
		if err := ibc.ValidateChannelID(pe.ChannelID); err != nil {
			return err
		}
	}
	if pe.PortID != "" {
		if err := ibc.ValidatePortID(pe.PortID); err != nil {
			return err
		}
	}
	return nil
}

func (pe PathEnd) String() string {
	return fmt.Sprintf("client{%s}-conn{%s}-chan{%s}@chain{%s}:port{%s}", pe.ClientID, pe.ConnectionID, pe.ChannelID, pe.ChainID, pe.PortID)
}
