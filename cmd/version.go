package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/Masterminds/semver"
	"github.com/spf13/cobra"
)

// VERSION is set at build time.
var VERSION = "dev"

// resolveVersion prefers the build time version, then the module version. Valid versions are normalized.
func resolveVersion(buildVersion, moduleVersion string) string {
	version := buildVersion
	if version == "dev" && moduleVersion != "" && moduleVersion != "(devel)" {
		version = moduleVersion
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return version
	}
	return "v" + v.String()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var moduleVersion string
		if info, ok := debug.ReadBuildInfo(); ok {
			moduleVersion = info.Main.Version
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cursorql %s\n", resolveVersion(VERSION, moduleVersion))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
