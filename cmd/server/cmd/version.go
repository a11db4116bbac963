package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the build version, the Go runtime, and the User-Agent sent to
analytics backends and crawled pages.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "sitelens")
		for _, line := range [][2]string{
			{"Version:", Version},
			{"Git commit:", GitCommit},
			{"Build date:", BuildDate},
			{"Go version:", runtime.Version()},
			{"Platform:", runtime.GOOS + "/" + runtime.GOARCH},
			{"User-Agent:", userAgent()},
		} {
			fmt.Fprintf(out, "%-11s %s\n", line[0], line[1])
		}
	},
}
