package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	version    = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "socmed",
		Short: "Federated social node",
		Long: `A federated social node: follow graph, channels with access control,
post federation with bounded retries and a moderation queue.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configFile != "" {
				_ = os.Setenv("CONFIG_PATH", configFile)
			}
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (overrides CONFIG_PATH)")

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		userCmd(),
		tokenCmd(),
		requeueCmd(),
		approveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}
