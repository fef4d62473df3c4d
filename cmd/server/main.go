package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/csv-chat/backend/internal/config"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "csvchat.yaml"

var (
	configPath string
	portFlag   int
)

var rootCmd = &cobra.Command{
	Use:   "csvchat",
	Short: "CSV Chat - ask questions answered from your own CSV files",
	Long: `csvchat serves a small web page where you upload CSV files, enter an
OpenAI API key and ask questions. Answers come from a tool-calling agent
that may only read the uploaded tables.

Run without arguments to start the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with the defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := DefaultConfigPath
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "csvchat %s (built %s)\n", Version, BuildTime)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVarP(&configPath, "config", "c", DefaultConfigPath, "Path to the YAML configuration file")
		cmd.Flags().IntVarP(&portFlag, "port", "p", 0, "Listen port (overrides the configuration)")
	}

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(serveCmd, configCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
