package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/wopr/internal/config"
)

// Version is set at build time via -ldflags "-X github.com/nextlevelbuilder/wopr/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "wopr",
	Short: "WOPR — session dispatch core",
	Long:  "WOPR: a session-addressable dispatch core that turns injected messages into provider-routed, tool-capable, capability-gated conversations.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $WOPR_HOME/config.json or $WOPR_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(identityCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(cronCmd())
	rootCmd.AddCommand(keysCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("wopr %s\n", Version)
		},
	}
}

// resolveConfigPath follows goclaw's flag-then-env-then-default order.
func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("WOPR_CONFIG"); v != "" {
		return v
	}
	return config.Path()
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
