// Command peek4c runs the feed engine: the HTTP server the client talks to
// plus a few maintenance commands against the same local store.
package main

import (
	"os"

	"github.com/peek4c/peek4c/app_config"
	"github.com/peek4c/peek4c/utils/dotenv"
	Logger "github.com/peek4c/peek4c/utils/log"
	"github.com/spf13/cobra"
)

var (
	// configPath is the optional yaml config file.
	configPath string
	// AppConfig is loaded before any subcommand runs.
	AppConfig *app_config.AppConfig
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "peek4c",
	Short: "Local feed engine for image boards",
	Long: `peek4c keeps a local store of board threads, assembles catalog,
recommendation and follow feeds from it, and serves them over HTTP.

Configuration comes from defaults, an optional yaml file (--config) and
PEEK4C_* environment variables, in increasing priority. .env files are loaded
first.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := dotenv.LoadDotEnvs(); err != nil {
			return err
		}
		Logger.InitLogger("peek4c_" + cmd.Name())

		c, err := app_config.Load(configPath)
		if err != nil {
			return err
		}
		AppConfig = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a yaml config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(keywordsCmd)
}
