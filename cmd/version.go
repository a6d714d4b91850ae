package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(versionString())
	},
}

// versionString prefers -ldflags metadata and falls back to the build info
// the Go toolchain embeds (module version, VCS revision and time).
func versionString() string {
	version, commit, date := Version, CommitSHA, BuildDate
	if info, ok := debug.ReadBuildInfo(); ok {
		if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "unknown" {
					commit = s.Value
				}
			case "vcs.time":
				if date == "unknown" {
					date = s.Value
				}
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "face-attendance %s\n", version)
	fmt.Fprintf(&b, "  Commit: %s\n", commit)
	fmt.Fprintf(&b, "  Built:  %s\n", date)
	fmt.Fprintf(&b, "  Go:     %s\n", runtime.Version())
	return b.String()
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
