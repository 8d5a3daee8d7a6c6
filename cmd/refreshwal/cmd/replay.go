/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/ssargent/refreshwal/pkg/di"
	"github.com/ssargent/refreshwal/pkg/rmgr"
	"github.com/ssargent/refreshwal/pkg/wal"
)

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Run redo over the whole log",
	Long: `Run redo for every record in the log. Refresh records carry no page
changes, so a clean log replays without effect; an unknown op code stops the
replay with a fatal error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := replayLog(cmd.Context(), container)
		if result != nil {
			cmd.Printf("replayed %d records, last lsn %s\n", result.RecordsApplied, result.LastLSN)
		}
		var fatal *rmgr.FatalError
		if errors.As(err, &fatal) {
			cmd.PrintErrf("PANIC: %v\n", fatal)
		}
		return err
	},
}

func replayLog(ctx context.Context, c *di.Container) (*rmgr.ReplayResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	reader, err := c.OpenReader(wal.FirstLSN)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	replayer := &rmgr.Replayer{Table: c.Table(), Metrics: c.Metrics(), Logger: c.Logger()}
	return replayer.Run(ctx, reader)
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
