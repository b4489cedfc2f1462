package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bidboard/internal/render"
	"bidboard/internal/snapshot"
	"bidboard/pkg/bidboard"
)

func newQueryCmd() *cobra.Command {
	var (
		date, start, end string
		maxRows          int
		raw              bool
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query snapshots from a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			snap, err := bidboard.NewClient(serverURL).Bidding(ctx, date, start, end)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			res := toResult(snap)
			if raw {
				fmt.Fprintln(out, render.Summary(res))
				for _, ts := range res.Timestamps {
					fmt.Fprintln(out, ts)
				}
				return nil
			}
			fmt.Fprint(out, render.Result(res, render.Options{
				MaxRows:       maxRows,
				ChangeColumns: render.DefaultChangeColumns,
			}))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "trading date, YYYY-MM-DD")
	cmd.Flags().StringVar(&start, "start", "091500", "first time token, inclusive")
	cmd.Flags().StringVar(&end, "end", "092500", "last time token, inclusive")
	cmd.Flags().IntVar(&maxRows, "rows", 20, "rows shown per snapshot (0 = all)")
	cmd.Flags().BoolVar(&raw, "list", false, "list timestamps only")
	cmd.MarkFlagRequired("date")
	return cmd
}

func newDatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dates",
		Short: "List snapshot dates known to the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			dates, err := bidboard.NewClient(serverURL).Dates(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), render.Dates(dates))
			return nil
		},
	}
}

func toResult(s *bidboard.Snapshots) *snapshot.Result {
	res := &snapshot.Result{
		Timestamps: s.Timestamps,
		Data:       make(map[string]snapshot.Table, len(s.Data)),
	}
	for ts, rows := range s.Data {
		table := make(snapshot.Table, len(rows))
		for i, r := range rows {
			table[i] = snapshot.Row(r)
		}
		res.Data[ts] = table
	}
	return res
}
