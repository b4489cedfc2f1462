package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bidboard/internal/render"
	"bidboard/internal/store"
)

func newAuditCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent /api/bidding requests from the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.SQLitePath == "" {
				return errors.New("storage.sqlite_path (SQLITE_PATH) is not set")
			}

			rec, err := store.NewSQLiteRecorder(cfg.Storage.SQLitePath)
			if err != nil {
				return err
			}
			defer rec.Close()

			events, err := rec.RecentQueries(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), render.Audit(events))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "number of events to show")
	return cmd
}
