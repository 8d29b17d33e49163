package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	historyv1 "github.com/rzbill/tablehistory/api/history/v1"
	transports "github.com/rzbill/tablehistory/internal/cmd/client/transports"
	"github.com/rzbill/tablehistory/internal/history"
)

// newUpdateCommand constructs the `update` command.
func newUpdateCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Record a revision of a document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, _ := cmd.Flags().GetString("table")
			key, _ := cmd.Flags().GetString("key")
			doc, _ := cmd.Flags().GetString("doc")
			del, _ := cmd.Flags().GetBool("delete")
			ser, _ := cmd.Flags().GetString("serializability")
			attr, _ := cmd.Flags().GetString("attribution")

			req := &historyv1.UpdateRequest{Table: table, Key: key, Serializability: ser, Attribution: attr}
			switch {
			case del && doc != "":
				return errors.New("--doc and --delete are exclusive")
			case del:
			case doc == "":
				return errors.New("--doc is required unless --delete is set")
			default:
				if !json.Valid([]byte(doc)) {
					return fmt.Errorf("--doc is not valid JSON")
				}
				req.Doc = json.RawMessage(doc)
			}
			resp, err := getTransport(baseURL).Update(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().String("table", "", "Table")
	cmd.Flags().String("key", "", "Document key")
	cmd.Flags().String("doc", "", "Document as JSON")
	cmd.Flags().Bool("delete", false, "Record a deletion")
	cmd.Flags().String("serializability", "", "Override the table policy: table|document|wallclock")
	cmd.Flags().String("attribution", "", "Free-form attribution stored with the revision")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

// newHistoryCommand constructs the `history` command.
func newHistoryCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a table's revisions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, _ := cmd.Flags().GetString("table")
			maxTs, err := optionalTimestampFlag(cmd, "max-ts")
			if err != nil {
				return err
			}
			cursor, _ := cmd.Flags().GetString("cursor")
			limit, _ := cmd.Flags().GetInt("limit")
			filter, _ := cmd.Flags().GetString("filter")
			waitMs, _ := cmd.Flags().GetInt64("wait-ms")
			all, _ := cmd.Flags().GetBool("all")

			t := getTransport(baseURL)
			req := &historyv1.ListHistoryRequest{Table: table, MaxTs: maxTs, Cursor: cursor, NumItems: limit, Filter: filter, WaitMs: waitMs}
			for {
				page, err := t.ListHistory(cmd.Context(), req)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), page); err != nil {
					return err
				}
				if !all || page.IsDone {
					return nil
				}
				req.Cursor = page.ContinueCursor
				req.WaitMs = 0
			}
		},
	}
	cmd.Flags().String("table", "", "Table")
	cmd.Flags().String("max-ts", "", "Only revisions at or before this time: ms or RFC3339")
	cmd.Flags().String("cursor", "", "Continue cursor from a previous page")
	cmd.Flags().Int("limit", 100, "Page size")
	cmd.Flags().String("filter", "", "CEL filter over key, ts, deleted, attribution and doc")
	cmd.Flags().Int64("wait-ms", 0, "On an empty first page, wait up to this long for a write")
	cmd.Flags().Bool("all", false, "Page until the end")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

// newDocHistoryCommand constructs the `doc-history` command.
func newDocHistoryCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc-history",
		Short: "List the revisions of one document, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, _ := cmd.Flags().GetString("table")
			key, _ := cmd.Flags().GetString("key")
			maxTs, err := optionalTimestampFlag(cmd, "max-ts")
			if err != nil {
				return err
			}
			cursor, _ := cmd.Flags().GetString("cursor")
			limit, _ := cmd.Flags().GetInt("limit")
			filter, _ := cmd.Flags().GetString("filter")
			all, _ := cmd.Flags().GetBool("all")

			t := getTransport(baseURL)
			req := &historyv1.ListDocumentHistoryRequest{Table: table, Key: key, MaxTs: maxTs, Cursor: cursor, NumItems: limit, Filter: filter}
			for {
				page, err := t.ListDocumentHistory(cmd.Context(), req)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), page); err != nil {
					return err
				}
				if !all || page.IsDone {
					return nil
				}
				req.Cursor = page.ContinueCursor
			}
		},
	}
	cmd.Flags().String("table", "", "Table")
	cmd.Flags().String("key", "", "Document key")
	cmd.Flags().String("max-ts", "", "Only revisions at or before this time: ms or RFC3339")
	cmd.Flags().String("cursor", "", "Continue cursor from a previous page")
	cmd.Flags().Int("limit", 100, "Page size")
	cmd.Flags().String("filter", "", "CEL filter over key, ts, deleted, attribution and doc")
	cmd.Flags().Bool("all", false, "Page until the end")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

// newSnapshotCommand constructs the `snapshot` command.
func newSnapshotCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "List a table as it was at a point in time",
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, _ := cmd.Flags().GetString("table")
			at, err := timestampFlag(cmd, "at")
			if err != nil {
				return err
			}
			currentTs, err := timestampFlag(cmd, "current-ts")
			if err != nil {
				return err
			}
			cursor, _ := cmd.Flags().GetString("cursor")
			endCursor, _ := cmd.Flags().GetString("end-cursor")
			limit, _ := cmd.Flags().GetInt("limit")
			all, _ := cmd.Flags().GetBool("all")
			follow, _ := cmd.Flags().GetBool("follow-splits")

			req := historyv1.ListSnapshotRequest{
				Table:      table,
				SnapshotTs: at,
				CurrentTs:  currentTs,
				Cursor:     cursor,
				EndCursor:  endCursor,
				NumItems:   limit,
			}
			return pageSnapshot(cmd.Context(), getTransport(baseURL), req, all, follow, func(p *historyv1.SnapshotResponse) error {
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}
	cmd.Flags().String("table", "", "Table")
	cmd.Flags().String("at", "", "Snapshot time: ms or RFC3339")
	cmd.Flags().String("current-ts", "", "Pin the listing to this time (continuations must reuse the first page's value)")
	cmd.Flags().String("cursor", "", "Continue cursor from a previous page")
	cmd.Flags().String("end-cursor", "", "Stop at this cursor")
	cmd.Flags().Int("limit", 100, "Page size")
	cmd.Flags().Bool("all", false, "Page until the end")
	cmd.Flags().Bool("follow-splits", false, "Re-fetch split-recommended pages as two bounded halves")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

// pageSnapshot fetches snapshot pages and hands each to emit. With
// followSplits, a page that recommends a split is replaced by its two
// bounded halves. Every continuation reuses the first page's CurrentTs.
func pageSnapshot(ctx context.Context, t transports.HistoryTransport, req historyv1.ListSnapshotRequest, all, followSplits bool, emit func(*historyv1.SnapshotResponse) error) error {
	for {
		page, err := t.ListSnapshot(ctx, &req)
		if err != nil {
			return err
		}
		req.CurrentTs = page.CurrentTs
		if followSplits && page.PageStatus == string(history.SplitRecommended) && page.SplitCursor != "" {
			lo, hi := req, req
			lo.EndCursor = page.SplitCursor
			hi.Cursor = page.SplitCursor
			hi.EndCursor = page.ContinueCursor
			for _, sub := range []historyv1.ListSnapshotRequest{lo, hi} {
				part, err := t.ListSnapshot(ctx, &sub)
				if err != nil {
					return err
				}
				if err := emit(part); err != nil {
					return err
				}
			}
		} else if err := emit(page); err != nil {
			return err
		}
		if !all || page.IsDone {
			return nil
		}
		req.Cursor = page.ContinueCursor
	}
}

// newVacuumCommand constructs the `vacuum` command.
func newVacuumCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vacuum",
		Short: "Compact history older than a timestamp",
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, _ := cmd.Flags().GetString("table")
			minTs, err := timestampFlag(cmd, "min-ts")
			if err != nil {
				return err
			}
			sync, _ := cmd.Flags().GetBool("sync")
			resp, err := getTransport(baseURL).Vacuum(cmd.Context(), &historyv1.VacuumRequest{Table: table, MinTsToKeep: minTs, Sync: sync})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().String("table", "", "Table")
	cmd.Flags().String("min-ts", "", "Oldest snapshot time that must stay answerable: ms or RFC3339")
	cmd.Flags().Bool("sync", false, "Compact inline instead of scheduling a background job")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("min-ts")
	return cmd
}

// newWatermarkCommand constructs the `watermark` command.
func newWatermarkCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watermark",
		Short: "Show how far a table has been compacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, _ := cmd.Flags().GetString("table")
			resp, err := getTransport(baseURL).GetWatermark(cmd.Context(), table)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().String("table", "", "Table")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

// newTablesCommand constructs the `tables` command group.
func newTablesCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := getTransport(baseURL).ListTables(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a table with an allocation policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			ser, _ := cmd.Flags().GetString("serializability")
			resp, err := getTransport(baseURL).CreateTable(cmd.Context(), &historyv1.CreateTableRequest{Name: name, Serializability: ser})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	create.Flags().String("name", "", "Table name")
	create.Flags().String("serializability", "", "table|document|wallclock (default from server config)")
	_ = create.MarkFlagRequired("name")
	cmd.AddCommand(create)
	return cmd
}

// optionalTimestampFlag is nil unless the flag was given.
func optionalTimestampFlag(cmd *cobra.Command, name string) (*int64, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	ts, err := timestampFlag(cmd, name)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func timestampFlag(cmd *cobra.Command, name string) (int64, error) {
	s, _ := cmd.Flags().GetString(name)
	ts, err := parseTimestamp(s)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", name, err)
	}
	return ts, nil
}
