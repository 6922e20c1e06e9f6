package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and repair the processing queue",
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print item counts per status as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openStore(cfg, false)
		if err != nil {
			return err
		}
		defer closeStore(db)

		st, err := newQueue(db).Stats(cmd.Context())
		if err != nil {
			return err
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(st)
	},
}

var queueRecoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Return items stuck in processing to new",
	Long: `recover resets items left in the processing state by a crashed worker.
Only run it while no server is running against the same database.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openStore(cfg, false)
		if err != nil {
			return err
		}
		defer closeStore(db)

		n, err := newQueue(db).RecoverInterrupted(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recovered %d item(s)\n", n)
		return nil
	},
}
