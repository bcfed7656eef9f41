package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"github.com/cosmos/ibc-relayer/internal/relaydebug"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	// Version defines the application version (defined at compile time)
	Version = ""
	Commit  = ""
	Dirty   = ""
)

type versionInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	CosmosSDK string `json:"cosmos-sdk" yaml:"cosmos-sdk"`
	IBCGo     string `json:"ibc-go" yaml:"ibc-go"`
	Go        string `json:"go" yaml:"go"`
}

func getVersionCmd(a *appState) *cobra.Command {
	versionCmd := &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Print the relayer version info",
		Args:    withUsage(cobra.NoArgs),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s version --json
$ %s v`,
			appName, appName,
		)),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsn, err := cmd.Flags().GetBool(flagJSON)
			if err != nil {
				return err
			}

			// prefer the linker-stamped commit, fall back to the vcs stamp
			commit := Commit
			if commit == "" {
				commit = relaydebug.BuildCommit()
			} else if Dirty != "" && Dirty != "0" {
				commit += " (dirty)"
			}

			verInfo := versionInfo{
				Version:   Version,
				Commit:    commit,
				CosmosSDK: relaydebug.DependencyVersion("github.com/cosmos/cosmos-sdk"),
				IBCGo:     relaydebug.DependencyVersion("github.com/cosmos/ibc-go/v3"),
				Go:        fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
			}

			var bz []byte
			if jsn {
				bz, err = json.Marshal(verInfo)
			} else {
				bz, err = yaml.Marshal(&verInfo)
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(bz))
			return err
		},
	}

	return jsonFlag(a.Viper, versionCmd)
}
