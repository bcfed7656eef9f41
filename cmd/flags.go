package cmd

import (
	"time"

	"github.com/cosmos/ibc-relayer/relayer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagHome            = "home"
	flagHeight          = "height"
	flagJSON            = "json"
	flagYAML            = "yaml"
	flagFile            = "file"
	flagOverride        = "override"
	flagMaxSteps        = "max-steps"
	flagOrder           = "order"
	flagVersion         = "version"
	flagSrcPort         = "src-port"
	flagDstPort         = "dst-port"
	flagPollInterval    = "poll-interval"
	flagMaxRetries      = "max-retries"
	flagMaxMsgs         = "max-msgs"
	flagBlockHistory    = "block-history"
	flagMisbehaviour    = "misbehaviour-interval"
	flagDebugAddr       = "debug-addr"
	flagMetricsAddr     = "metrics-addr"
	flagEnableMetrics   = "enable-metrics-server"
	flagPackets         = "packets"
	flagTimeoutHeight   = "timeout-height-offset"
	flagForkClient      = "fork"
	flagRelayTimeoutDur = "timeout"
)

func yamlFlag(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().BoolP(flagYAML, "y", false, "output using yaml")
	if err := v.BindPFlag(flagYAML, cmd.Flags().Lookup(flagYAML)); err != nil {
		panic(err)
	}
	return cmd
}

func jsonFlag(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().BoolP(flagJSON, "j", false, "returns the response in json format")
	if err := v.BindPFlag(flagJSON, cmd.Flags().Lookup(flagJSON)); err != nil {
		panic(err)
	}
	return cmd
}

func fileFlag(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().StringP(flagFile, "f", "", "fetch json data from specified file")
	if err := v.BindPFlag(flagFile, cmd.Flags().Lookup(flagFile)); err != nil {
		panic(err)
	}
	return cmd
}

func heightFlag(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().Uint64(flagHeight, 0, "height to start from, 0 for the latest height")
	if err := v.BindPFlag(flagHeight, cmd.Flags().Lookup(flagHeight)); err != nil {
		panic(err)
	}
	return cmd
}

func linkFlags(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().Bool(flagOverride, false, "create new clients even if the configured ones still track the counterparty")
	cmd.Flags().Int(flagMaxSteps, relayer.DefaultMaxSteps, "maximum handshake transactions per handshake")
	for _, name := range []string{flagOverride, flagMaxSteps} {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
	return cmd
}

func newPathFlags(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String(flagSrcPort, "", "port on the src chain, transfer when empty")
	cmd.Flags().String(flagDstPort, "", "port on the dst chain, transfer when empty")
	cmd.Flags().String(flagOrder, "unordered", "order of the channel, ordered or unordered")
	cmd.Flags().String(flagVersion, "ics20-1", "version of the channel")
	for _, name := range []string{flagSrcPort, flagDstPort, flagOrder, flagVersion} {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
	return cmd
}

// relayFlags registers flags overriding the global config for one run.
func relayFlags(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().Duration(flagPollInterval, 0, "time between relay cycles")
	cmd.Flags().Uint(flagMaxRetries, 0, "attempts of a relay step before it is reported")
	cmd.Flags().Int(flagMaxMsgs, 0, "maximum number of messages per transaction")
	cmd.Flags().Uint64(flagBlockHistory, 0, "blocks scanned before the latest height when no cursor is saved")
	cmd.Flags().Duration(flagMisbehaviour, 0, "poll interval of misbehaviour monitors, 0 disables them")
	return cmd
}

// applyRelayFlags returns g with the relay flags set on cmd applied. Flags
// win over the config file and IBCRELAYER_GLOBAL_* variables.
func applyRelayFlags(cmd *cobra.Command, g relayer.GlobalConfig) (relayer.GlobalConfig, error) {
	var err error
	f := cmd.Flags()
	if f.Changed(flagPollInterval) {
		if g.PollInterval, err = f.GetDuration(flagPollInterval); err != nil {
			return g, err
		}
	}
	if f.Changed(flagMaxRetries) {
		if g.MaxRetries, err = f.GetUint(flagMaxRetries); err != nil {
			return g, err
		}
	}
	if f.Changed(flagMaxMsgs) {
		if g.MaxMsgsPerTx, err = f.GetInt(flagMaxMsgs); err != nil {
			return g, err
		}
	}
	if f.Changed(flagBlockHistory) {
		if g.InitialBlockHistory, err = f.GetUint64(flagBlockHistory); err != nil {
			return g, err
		}
	}
	if f.Changed(flagMisbehaviour) {
		if g.MisbehaviourInterval, err = f.GetDuration(flagMisbehaviour); err != nil {
			return g, err
		}
	}
	return g, g.Validate()
}

func debugServerFlags(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String(flagDebugAddr, "", "address to use for debug server, config value when empty, set to - to disable")
	if err := v.BindPFlag(flagDebugAddr, cmd.Flags().Lookup(flagDebugAddr)); err != nil {
		panic(err)
	}
	return cmd
}

func metricsServerFlags(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String(flagMetricsAddr, "", "address to use for metrics server, config value when empty")
	cmd.Flags().Bool(flagEnableMetrics, false, "enables the metrics server")
	for _, name := range []string{flagMetricsAddr, flagEnableMetrics} {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
	return cmd
}

func demoFlags(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().Int(flagPackets, 3, "number of packets to send from src to dst")
	cmd.Flags().Uint64(flagTimeoutHeight, 0, "timeout height offset of the packets on dst, 0 for a height that is never reached")
	cmd.Flags().Bool(flagForkClient, false, "forge a conflicting header and let the misbehaviour monitor freeze the client")
	cmd.Flags().Duration(flagRelayTimeoutDur, 30*time.Second, "maximum time to wait for packets to be relayed")
	for _, name := range []string{flagPackets, flagTimeoutHeight, flagForkClient, flagRelayTimeoutDur} {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
	return cmd
}
