/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ssargent/refreshwal/pkg/api"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inspection server",
	Long: `Start the read-only HTTP server over the log, the event archive and
decoding slots.

Examples:
  refreshwal serve
  refreshwal serve --port 9000 --bind 0.0.0.0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := container.Config()
		if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		if f := cmd.Flags().Lookup("bind"); f != nil && f.Changed {
			cfg.Server.Bind, _ = cmd.Flags().GetString("bind")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		var events api.EventSource
		store, err := container.OpenEventStore()
		if err != nil {
			container.Logger().Warn("event archive unavailable", "path", cfg.EventsPath(), "error", err)
		} else {
			defer store.Close()
			events = store
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cmd.Printf("🚀 Starting refreshwal server on %s:%d\n", cfg.Server.Bind, cfg.Server.Port)
		cmd.Printf("📁 Data directory: %s\n", cfg.DataDir)
		return container.NewServer(events).ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind to")
}
