package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"bidboard/internal/config"
	"bidboard/internal/render"
	"bidboard/internal/snapshot"
	"bidboard/internal/store"
	"bidboard/internal/util"
)

func newArchiveCmd() *cobra.Command {
	var (
		date string
		all  bool
		list bool
	)
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Archive snapshot days from the local directory to Parquet",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.ArchiveDir == "" {
				return errors.New("storage.archive_dir (ARCHIVE_DIR) is not set")
			}
			archive := store.NewParquetArchive(cfg.Storage.ArchiveDir)
			out := cmd.OutOrStdout()

			if list {
				days, err := archive.ListDays(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprint(out, render.Dates(days))
				return nil
			}

			logger := util.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			svc, err := newLocalService(cfg, logger)
			if err != nil {
				return err
			}

			dates := []string{date}
			if all {
				if dates, err = snapshot.ListDates(cfg.Snapshot.Dir); err != nil {
					return err
				}
			} else if date == "" {
				return errors.New("either --date or --all is required")
			}

			for _, d := range dates {
				res, err := archiveDay(cmd.Context(), svc, archive, d)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s  %s\n", d, render.Summary(res))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date to archive, YYYY-MM-DD")
	cmd.Flags().BoolVar(&all, "all", false, "archive every date in the snapshot directory")
	cmd.Flags().BoolVar(&list, "list", false, "list archived dates")
	return cmd
}

func newLocalService(cfg *config.Config, logger *slog.Logger) (*snapshot.Service, error) {
	dec, err := snapshot.NewDecoder(cfg.Snapshot.MissingValues, cfg.Snapshot.Encoding)
	if err != nil {
		return nil, err
	}
	return snapshot.NewService(cfg.Snapshot.Dir, dec, cfg.Snapshot.DecodeWorkers, logger), nil
}

// archiveDay reads every snapshot of date and writes them to the archive.
func archiveDay(ctx context.Context, svc *snapshot.Service, archive store.Archive, date string) (*snapshot.Result, error) {
	res, err := svc.Query(ctx, date, "000000", "235959")
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", date, err)
	}
	if len(res.Timestamps) == 0 {
		return nil, fmt.Errorf("reading %s: every snapshot file failed to decode", date)
	}
	if err := archive.WriteDay(ctx, date, res); err != nil {
		return nil, err
	}
	return res, nil
}
