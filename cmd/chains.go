package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cosmos/ibc-relayer/relayer"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func chainsCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "chains",
		Aliases: []string{"ch"},
		Short:   "Manage chain configurations",
	}

	cmd.AddCommand(
		chainsListCmd(a),
		chainsShowCmd(a),
		chainsAddCmd(a),
		chainsDeleteCmd(a),
	)

	return cmd
}

func chainsListCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"l"},
		Short:   "Returns chain configuration data",
		Args:    withUsage(cobra.NoArgs),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s chains list
$ %s ch l`, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(a.Config.Chains) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: no chains found (do you need to run 'chains add'?)")
				return nil
			}

			jsn, _ := cmd.Flags().GetBool(flagJSON)
			yml, _ := cmd.Flags().GetBool(flagYAML)
			switch {
			case yml && jsn:
				return errBothFormats
			case yml:
				out, err := yaml.Marshal(a.Config.Chains)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			case jsn:
				out, err := json.Marshal(a.Config.Chains)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			default:
				for i, name := range a.Config.Chains.Names() {
					fmt.Fprintf(cmd.OutOrStdout(), "%2d: %-20s -> type(%s)\n", i, name, a.Config.Chains[name].Type)
				}
			}
			return nil
		},
	}
	return yamlFlag(a.Viper, jsonFlag(a.Viper, cmd))
}

func chainsShowCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "show chain_name",
		Aliases: []string{"s"},
		Short:   "Returns a chain's configuration data",
		Args:    withUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ok := a.Config.Chains[args[0]]
			if !ok {
				return errChainNotFound(args[0])
			}

			jsn, _ := cmd.Flags().GetBool(flagJSON)
			var (
				out []byte
				err error
			)
			if jsn {
				out, err = json.Marshal(c)
			} else {
				out, err = yaml.Marshal(c)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	return jsonFlag(a.Viper, cmd)
}

func chainsAddCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add chain_name",
		Aliases: []string{"a"},
		Short:   "Add a chain to the configuration file from a json file",
		Args:    withUsage(cobra.ExactArgs(1)),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s chains add demo-a --file chains/demo-a.json`, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := cmd.Flags().GetString(flagFile)
			if err != nil {
				return err
			}
			if file == "" {
				return fmt.Errorf("--%s is required", flagFile)
			}
			if _, ok := a.Config.Chains[args[0]]; ok {
				return fmt.Errorf("chain %q already exists in config", args[0])
			}

			byt, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			cc := &relayer.ChainConfig{}
			if err := json.Unmarshal(byt, cc); err != nil {
				return fmt.Errorf("failed to unmarshal chain file %s: %w", file, err)
			}
			if err := cc.Validate(); err != nil {
				return fmt.Errorf("invalid chain file %s: %w", file, err)
			}

			a.Config.Chains[args[0]] = cc
			return a.OverwriteConfig(a.Config)
		},
	}
	return fileFlag(a.Viper, cmd)
}

func chainsDeleteCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete chain_name",
		Aliases: []string{"d"},
		Short:   "Removes chain from config based off chain name",
		Args:    withUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := a.Config.Chains[args[0]]; !ok {
				return errChainNotFound(args[0])
			}
			delete(a.Config.Chains, args[0])
			return a.OverwriteConfig(a.Config)
		},
	}
	return cmd
}
