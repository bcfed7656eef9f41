package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cosmos/ibc-relayer/relayer"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func pathsCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "paths",
		Aliases: []string{"pth"},
		Short:   "Manage path configurations",
		Long: `
A path represents the "full path" or "link" for communication between two chains.
This includes the client, connection, and channel ids from both the source and destination chains as well as the channel filter to use when relaying`,
	}

	cmd.AddCommand(
		pathsListCmd(a),
		pathsShowCmd(a),
		pathsAddCmd(a),
		pathsNewCmd(a),
		pathsDeleteCmd(a),
	)

	return cmd
}

func pathsDeleteCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete path_name",
		Aliases: []string{"d"},
		Short:   "Delete a path with a given name",
		Args:    withUsage(cobra.ExactArgs(1)),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s paths delete demo-path
$ %s pth d path-name`, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.Config.Paths.Get(args[0]); err != nil {
				return err
			}
			delete(a.Config.Paths, args[0])
			return a.OverwriteConfig(a.Config)
		},
	}
	return cmd
}

func pathsListCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"l"},
		Short:   "Print out configured paths",
		Args:    withUsage(cobra.NoArgs),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s paths list --yaml
$ %s paths list --json
$ %s pth l`, appName, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsn, _ := cmd.Flags().GetBool(flagJSON)
			yml, _ := cmd.Flags().GetBool(flagYAML)
			switch {
			case yml && jsn:
				return errBothFormats
			case yml:
				out, err := yaml.Marshal(a.Config.Paths)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			case jsn:
				out, err := json.Marshal(a.Config.Paths)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			default:
				chains, err := a.chains()
				if err != nil {
					return err
				}
				for i, name := range a.Config.Paths.Names() {
					pth := a.Config.Paths[name]
					var stat relayer.PathStatus
					src, srcErr := chains.Get(pth.Src.ChainID)
					dst, dstErr := chains.Get(pth.Dst.ChainID)
					if srcErr == nil && dstErr == nil {
						stat = pth.QueryPathStatus(cmd.Context(), src, dst).Status
					}
					printPath(cmd.OutOrStdout(), i, name, pth, stat)
				}
				return nil
			}
		},
	}
	return yamlFlag(a.Viper, jsonFlag(a.Viper, cmd))
}

func printPath(stdout io.Writer, i int, k string, pth *relayer.Path, stat relayer.PathStatus) {
	fmt.Fprintf(stdout, "%2d: %-20s -> chns(%s) clnts(%s) conn(%s) chan(%s) (%s<>%s)\n",
		i, k, relayer.Checkmark(stat.Chains), relayer.Checkmark(stat.Clients),
		relayer.Checkmark(stat.Connection), relayer.Checkmark(stat.Channel), pth.Src.ChainID, pth.Dst.ChainID)
}

func pathsShowCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "show path_name",
		Aliases: []string{"s"},
		Short:   "Show a path given its name",
		Args:    withUsage(cobra.ExactArgs(1)),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s paths show demo-path --yaml
$ %s paths show demo-path --json
$ %s pth s path-name`, appName, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, src, dst, err := a.pathChains(args[0])
			if err != nil {
				return err
			}
			jsn, _ := cmd.Flags().GetBool(flagJSON)
			yml, _ := cmd.Flags().GetBool(flagYAML)
			pathWithStatus := p.QueryPathStatus(cmd.Context(), src, dst)
			switch {
			case yml && jsn:
				return errBothFormats
			case yml:
				out, err := yaml.Marshal(pathWithStatus)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			case jsn:
				out, err := json.Marshal(pathWithStatus)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			default:
				fmt.Fprintln(cmd.OutOrStdout(), pathWithStatus.PrintString(args[0]))
			}
			return nil
		},
	}
	return yamlFlag(a.Viper, jsonFlag(a.Viper, cmd))
}

func pathsAddCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add path_name",
		Aliases: []string{"a"},
		Short:   "Add a path from a json file to the list of paths",
		Args:    withUsage(cobra.ExactArgs(1)),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s paths add demo-path --file paths/demo.json
$ %s pth a demo-path -f paths/demo.json`, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := cmd.Flags().GetString(flagFile)
			if err != nil {
				return err
			}
			if file == "" {
				return fmt.Errorf("--%s is required", flagFile)
			}
			if err := a.AddPathFromFile(file, args[0]); err != nil {
				return err
			}
			return a.OverwriteConfig(a.Config)
		},
	}
	return fileFlag(a.Viper, cmd)
}

func pathsNewCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "new src_chain_id dst_chain_id path_name",
		Aliases: []string{"n"},
		Short:   "Create a new blank path to be used in generating a new path (connection & client) between two chains",
		Args:    withUsage(cobra.ExactArgs(3)),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s paths new ibc-0 ibc-1 demo-path
$ %s pth n ibc-0 ibc-1 demo-path --order ordered`, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := args[0], args[1]
			chains, err := a.chains()
			if err != nil {
				return err
			}
			if _, err := chains.Gets(src, dst); err != nil {
				return fmt.Errorf("chains need to be configured before paths to them can be added: %w", err)
			}

			srcPort, _ := cmd.Flags().GetString(flagSrcPort)
			dstPort, _ := cmd.Flags().GetString(flagDstPort)
			order, _ := cmd.Flags().GetString(flagOrder)
			version, _ := cmd.Flags().GetString(flagVersion)

			p := relayer.GenPath(src, dst, srcPort, dstPort, order, version)
			if err := a.Config.Paths.Add(args[2], p); err != nil {
				return err
			}
			return a.OverwriteConfig(a.Config)
		},
	}
	return newPathFlags(a.Viper, cmd)
}
