// Copyright © 2020 NAME HERE <EMAIL ADDRESS>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/processor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const flagOnce = "once"

type eventOutput struct {
	Type       ibc.EventType       `json:"type"`
	Height     string              `json:"height"`
	Client     *ibc.ClientInfo     `json:"client,omitempty"`
	Connection *ibc.ConnectionInfo `json:"connection,omitempty"`
	Channel    *ibc.ChannelInfo    `json:"channel,omitempty"`
	Packet     *ibc.PacketInfo     `json:"packet,omitempty"`
}

// listenCmd represents the listen command
func listenCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "listen chain_id",
		Aliases: []string{"l"},
		Short:   "Listen to the IBC events of a chain and output them to stdout as json lines",
		Args:    withUsage(cobra.ExactArgs(1)),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s listen ibc-0
$ %s listen ibc-0 --height 1 --once`, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			chains, err := a.chains()
			if err != nil {
				return err
			}
			c, err := chains.Get(args[0])
			if err != nil {
				return err
			}

			start, _ := cmd.Flags().GetUint64(flagHeight)
			once, _ := cmd.Flags().GetBool(flagOnce)

			latest, err := c.ChainProvider.QueryLatestHeight(cmd.Context())
			if err != nil {
				return err
			}
			next := latest
			if start > 0 {
				next = ibc.NewHeight(latest.RevisionNumber, start)
			}
			stream := processor.NewEventStream(c.ChainProvider, next)
			a.Log.Info("Listening to events",
				zap.String("chain_id", c.ChainID()),
				zap.Stringer("height", next),
			)

			ticker := time.NewTicker(a.Config.Global.PollInterval)
			defer ticker.Stop()
			for {
				// drain every block available before waiting
				for {
					before := stream.Cursor()
					events, err := stream.Poll(cmd.Context())
					if werr := writeEvents(cmd.OutOrStdout(), events); werr != nil {
						return werr
					}
					if err != nil {
						return err
					}
					if stream.Cursor() == before {
						break
					}
				}
				if once {
					return nil
				}
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().Bool(flagOnce, false, "exit once every block up to the latest height has been read")
	return heightFlag(a.Viper, cmd)
}

func writeEvents(w io.Writer, events []ibc.Event) error {
	enc := json.NewEncoder(w)
	for _, e := range events {
		if err := enc.Encode(eventOutput{
			Type:       e.Type,
			Height:     e.Height.String(),
			Client:     e.Client,
			Connection: e.Connection,
			Channel:    e.Channel,
			Packet:     e.Packet,
		}); err != nil {
			return err
		}
	}
	return nil
}
