package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-habit-mail/internal/config"
	"github.com/tbourn/go-habit-mail/internal/mailbox"
)

var mailboxTimeout time.Duration

var mailboxCmd = &cobra.Command{
	Use:   "mailbox",
	Short: "Mailbox utilities",
}

var mailboxCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Log in to the IMAP server with MAILBOX_CREDENTIALS and select INBOX",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		mc, err := config.LoadMailbox(cfg.MailboxCredentials)
		if err != nil {
			return err
		}
		f := mailbox.NewFetcher(mc)
		f.Timeout = mailboxTimeout
		if err := f.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("imap %s:%d: %w", mc.IMAP.Host, mc.IMAP.Port, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok: %s on %s:%d\n", mc.Email, mc.IMAP.Host, mc.IMAP.Port)
		return nil
	},
}

func init() {
	mailboxCheckCmd.Flags().DurationVar(&mailboxTimeout, "timeout", 30*time.Second, "dial and command timeout")
}
