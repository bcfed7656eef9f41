package cmd

import (
	"fmt"
	"strings"

	"github.com/cosmos/ibc-relayer/relayer"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func linkCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "link path_name",
		Aliases: []string{"connect"},
		Short:   "Create clients, a connection and a channel between the two chains of a path",
		Long: strings.TrimSpace(`Create clients, a connection and a channel between the two chains of a path.
Identifiers already set on the path are reused. The created identifiers are
written back to the config file, also when linking fails part way.`),
		Args: withUsage(cobra.ExactArgs(1)),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s link demo-path
$ %s link demo-path --override --max-steps 20`, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			override, _ := cmd.Flags().GetBool(flagOverride)
			maxSteps, _ := cmd.Flags().GetInt(flagMaxSteps)

			p, src, dst, err := a.pathChains(args[0])
			if err != nil {
				return err
			}

			log := a.Log.With(zap.String("path_name", args[0]))
			linkErr := relayer.Link(cmd.Context(), log, src, dst, p, override, maxSteps, a.Config.Global.Options())
			return multierr.Combine(linkErr, a.OverwriteConfig(a.Config))
		},
	}
	return linkFlags(a.Viper, cmd)
}

func closeChannelCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close-channel path_name",
		Short: "Close the channel of a path, starting on its src chain",
		Args:  withUsage(cobra.ExactArgs(1)),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s close-channel demo-path`, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxSteps, _ := cmd.Flags().GetInt(flagMaxSteps)

			p, src, dst, err := a.pathChains(args[0])
			if err != nil {
				return err
			}

			log := a.Log.With(zap.String("path_name", args[0]))
			return relayer.CloseChannel(cmd.Context(), log, src, dst, p, maxSteps, a.Config.Global.Options())
		},
	}
	cmd.Flags().Int(flagMaxSteps, relayer.DefaultMaxSteps, "maximum handshake transactions")
	return cmd
}
