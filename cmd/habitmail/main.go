// Command habitmail runs the email habit tracker: an HTTP surface, a mailbox
// poller feeding a durable queue, and the parse/execute/reply pipeline.
//
// @title                       habitmail API
// @version                     1.0
// @description                 Inbound webhook and queue inspection for the habit-tracking mail service.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Bearer INBOUND_TOKEN
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-habit-mail/internal/config"
	"github.com/tbourn/go-habit-mail/internal/llm"
	"github.com/tbourn/go-habit-mail/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	envFile  string
	logLevel string

	cfg       config.Config
	logCloser io.Closer

	// newCompleter is replaced in tests.
	newCompleter = llm.New
)

var rootCmd = &cobra.Command{
	Use:           "habitmail",
	Short:         "Track habits over email",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `habitmail reads check-in emails, extracts what the sender did, records it,
and replies with a short summary.

Configuration comes from the environment (and an optional .env file).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
		}
		var err error
		if cfg, err = config.Load(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		logCloser, err = sysutil.SetupLogging(sysutil.LogOptions{
			Level:  cfg.LogLevel,
			Pretty: cfg.LogPretty,
			File:   cfg.LogFile,
			Out:    cmd.ErrOrStderr(),
		})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	rootCmd.AddCommand(serveCmd, parseCmd, queueCmd, mailboxCmd, versionCmd)
	queueCmd.AddCommand(queueStatsCmd, queueRecoverCmd)
	mailboxCmd.AddCommand(mailboxCheckCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("habitmail")
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
