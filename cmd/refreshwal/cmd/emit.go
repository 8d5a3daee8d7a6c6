/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ssargent/refreshwal/pkg/di"
	"github.com/ssargent/refreshwal/pkg/refresh"
	"github.com/ssargent/refreshwal/pkg/xact"
	"github.com/ssargent/refreshwal/pkg/xlog"
)

// emitRequest describes one record to append
type emitRequest struct {
	Message   bool // refresh message instead of refresh data
	Prefix    string
	Payload   []byte
	MatviewID xlog.Oid
	Role      xlog.Oid
	Options   refresh.Options
	// Abort logs an abort record instead of a commit, so decoding
	// discards the change
	Abort bool
}

type emitResult struct {
	LSN xlog.LSN
	XID xlog.TransactionID
}

// emitCmd represents the emit command
var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Append a refresh record to the log",
}

var emitDataCmd = &cobra.Command{
	Use:   "data",
	Short: "Append a refresh data record",
	Long: `Append a refresh data record inside a new transaction.

Examples:
  refreshwal emit data --prefix demo --payload AB --matview 24576 --concurrent
  refreshwal emit data --prefix demo --hex 4142`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := emitRequestFromFlags(cmd)
		if err != nil {
			return err
		}
		return runEmit(cmd, req)
	},
}

var emitMessageCmd = &cobra.Command{
	Use:   "message",
	Short: "Append a refresh message record",
	Long: `Append a refresh message record inside a new transaction. The role is
resolved from the configured roles and the search path comes from the session
configuration. With --schema and --view and no payload, the payload is the
REFRESH MATERIALIZED VIEW statement for that view.

Examples:
  refreshwal emit message --prefix demo --schema public --view sales_summary --concurrent
  refreshwal emit message --prefix demo --payload "hello" --role 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := emitRequestFromFlags(cmd)
		if err != nil {
			return err
		}
		req.Message = true

		schema, _ := cmd.Flags().GetString("schema")
		view, _ := cmd.Flags().GetString("view")
		if len(req.Payload) == 0 && view != "" {
			sql, err := refresh.BuildRefreshSQL(schema, view, req.Options)
			if err != nil {
				return err
			}
			req.Payload = []byte(sql)
		}
		return runEmit(cmd, req)
	},
}

func emitRequestFromFlags(cmd *cobra.Command) (emitRequest, error) {
	prefix, _ := cmd.Flags().GetString("prefix")
	payload, _ := cmd.Flags().GetString("payload")
	hexPayload, _ := cmd.Flags().GetString("hex")
	matview, _ := cmd.Flags().GetUint32("matview")
	concurrent, _ := cmd.Flags().GetBool("concurrent")
	skipData, _ := cmd.Flags().GetBool("skip-data")
	complete, _ := cmd.Flags().GetBool("complete-query")
	abort, _ := cmd.Flags().GetBool("abort")

	req := emitRequest{
		Prefix:    prefix,
		Payload:   []byte(payload),
		MatviewID: xlog.Oid(matview),
		Role:      xlog.Oid(container.Config().Session.Role),
		Options:   refresh.Options{Concurrent: concurrent, SkipData: skipData, CompleteQuery: complete},
		Abort:     abort,
	}
	if f := cmd.Flags().Lookup("role"); f != nil && f.Changed {
		role, _ := cmd.Flags().GetUint32("role")
		req.Role = xlog.Oid(role)
	}
	if hexPayload != "" {
		if payload != "" {
			return req, errors.New("--payload and --hex are mutually exclusive")
		}
		raw, err := hex.DecodeString(hexPayload)
		if err != nil {
			return req, fmt.Errorf("invalid --hex payload: %w", err)
		}
		req.Payload = raw
	}
	return req, nil
}

func runEmit(cmd *cobra.Command, req emitRequest) error {
	res, err := emitRecord(cmd.Context(), container, req)
	if err != nil {
		return err
	}
	state := "committed"
	if req.Abort {
		state = "aborted"
	}
	cmd.Printf("lsn: %s, tx: %d (%s)\n", res.LSN, res.XID, state)
	return nil
}

// emitRecord recovers the log, seeds transaction ids past the highest one
// logged, and writes req inside a fresh transaction
func emitRecord(ctx context.Context, c *di.Container, req emitRequest) (*emitResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	w, recovery, err := c.OpenWriter()
	if err != nil {
		return nil, err
	}
	defer w.Close()

	if recovery.Truncated {
		c.Logger().Warn("recovered log", "bytes_truncated", recovery.BytesTruncated, "end_lsn", recovery.EndLSN)
	}

	next := xlog.FirstNormalTransactionID
	if recovery.LastXID >= next {
		next = recovery.LastXID + 1
	}
	sess := c.NewSession(xact.NewManager(next))

	var lsn xlog.LSN
	if req.Message {
		roleName, rerr := c.Roles().RoleName(ctx, req.Role)
		if rerr != nil {
			return nil, fmt.Errorf("role %d: %w", req.Role, rerr)
		}
		lsn, err = refresh.LogRefreshMessage(ctx, w, sess, req.Prefix, roleName, req.Payload, req.MatviewID, req.Options)
	} else {
		lsn, err = refresh.LogRefreshData(ctx, w, sess, req.Prefix, req.Payload, req.MatviewID, req.Options)
	}
	if err != nil {
		_, _ = xact.LogAbort(ctx, w, sess)
		return nil, err
	}

	if req.Abort {
		_, err = xact.LogAbort(ctx, w, sess)
	} else {
		_, err = xact.LogCommit(ctx, w, sess)
	}
	if err != nil {
		return nil, err
	}
	if err := w.Sync(); err != nil {
		return nil, err
	}
	return &emitResult{LSN: lsn, XID: sess.Txn.ID()}, nil
}

func init() {
	rootCmd.AddCommand(emitCmd)
	emitCmd.AddCommand(emitDataCmd)
	emitCmd.AddCommand(emitMessageCmd)

	for _, c := range []*cobra.Command{emitDataCmd, emitMessageCmd} {
		c.Flags().String("prefix", "", "Message prefix")
		c.Flags().String("payload", "", "Payload as text")
		c.Flags().String("hex", "", "Payload as hex bytes")
		c.Flags().Uint32("matview", 0, "Materialized view oid")
		c.Flags().Bool("concurrent", false, "Concurrent refresh")
		c.Flags().Bool("skip-data", false, "Refresh WITH NO DATA")
		c.Flags().Bool("complete-query", false, "Payload is the complete refresh query")
		c.Flags().Bool("abort", false, "Abort the transaction after logging")
	}
	emitMessageCmd.Flags().Uint32("role", 0, "Role oid (default: session.role)")
	emitMessageCmd.Flags().String("schema", "public", "Schema for the generated statement")
	emitMessageCmd.Flags().String("view", "", "View for the generated statement")
}
