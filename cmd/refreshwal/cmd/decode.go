/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/ssargent/refreshwal/pkg/decoding"
	"github.com/ssargent/refreshwal/pkg/di"
	"github.com/ssargent/refreshwal/pkg/storage"
	"github.com/ssargent/refreshwal/pkg/wal"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode refresh records into the event archive",
	Long: `Decode refresh records from the slot's restart point to the end of
the log, archive the changes of each committed transaction, and advance
the slot. Aborted transactions archive nothing.

Examples:
  refreshwal decode
  refreshwal decode --slot audit --only-local`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := container.Config()
		if slot, _ := cmd.Flags().GetString("slot"); slot != "" {
			cfg.Decoding.Slot = slot
		}
		if f := cmd.Flags().Lookup("only-local"); f != nil && f.Changed {
			cfg.Decoding.OnlyLocal, _ = cmd.Flags().GetBool("only-local")
		}

		res, err := decodeLog(cmd.Context(), container)
		if err != nil {
			return err
		}
		cmd.Printf("slot %s: %d changes archived, restart %s, confirmed %s\n",
			cfg.Decoding.Slot, res.Changes, res.Position.Restart, res.Position.Confirmed)
		return nil
	},
}

type decodeResult struct {
	Changes  int
	Position decoding.Position
}

// decodeLog streams the log from the slot's restart point into the
// archive. The slot only advances past records whose changes were stored.
func decodeLog(ctx context.Context, c *di.Container) (*decodeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	slot := c.Config().Decoding.Slot

	store, err := c.OpenEventStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	start, err := store.Position(slot)
	if errors.Is(err, storage.ErrSlotNotFound) {
		start = decoding.StartPosition(wal.FirstLSN)
	} else if err != nil {
		return nil, err
	}

	reader, err := c.OpenReader(start.Restart)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	res := &decodeResult{}
	pos, streamErr := c.NewDecoder().Stream(ctx, reader, start, func(ctx context.Context, ch *decoding.Change) error {
		if _, err := store.AppendChange(ch); err != nil {
			return err
		}
		res.Changes++
		return nil
	})
	res.Position = pos
	if pos != start {
		if err := store.SavePosition(slot, pos); err != nil {
			return res, err
		}
	}
	c.Logger().Info("decoding pass finished", "slot", slot, "changes", res.Changes,
		"restart", pos.Restart, "confirmed", pos.Confirmed)
	return res, streamErr
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().String("slot", "", "Slot name (default: decoding.slot)")
	decodeCmd.Flags().Bool("only-local", false, "Skip changes that carry a replication origin")
}
