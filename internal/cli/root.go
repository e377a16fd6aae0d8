package cli

import (
	"log/slog"
	"os"

	"github.com/me/gokern/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default monitor URL, checking GOKERN_MONITOR env var first.
func defaultServer() string {
	if s := os.Getenv("GOKERN_MONITOR"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the gokern CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gokern",
		Short: "gokern — simulated CPU scheduler and virtual memory kernel",
		Long:  "gokern runs scheduling and paging workloads on a simulated machine and serves a diagnostic API.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "monitor", defaultServer(), "Monitor URL (or GOKERN_MONITOR env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newSelfTestCmd(),
		newStatusCmd(),
		newThreadsCmd(),
		newFramesCmd(),
	)

	return root
}
