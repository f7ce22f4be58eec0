package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X github.com/notarikon-nz/notabot/cmd.Version=v1.0.0"
var Version = "dev"

var (
	configDir string
	storePath string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "notabot",
	Short: "NotaBot — multi-platform live-chat moderation engine",
	Long:  "NotaBot: a pattern-matching moderation bot for Twitch and YouTube live chat, with hot-reloadable filters, escalating enforcement, and adaptive self-tuning.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "config", "directory containing bot.yaml, patterns.yaml, filters.yaml, timers.yaml")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "notabot.db", "path to the sqlite snapshot/effectiveness store")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("notabot %s\n", Version)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the moderation engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

// Execute runs the root cobra command, translating a returned *exitError
// into the matching process exit code (spec §6 exit codes).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if asExitError(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}
