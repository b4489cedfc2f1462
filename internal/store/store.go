// Package store persists artefacts derived from the snapshot directory: a
// Parquet archive of whole trading days and a SQLite audit log of API
// requests.
package store

import (
	"context"
	"time"

	"bidboard/internal/snapshot"
)

// Archive stores every snapshot of a trading day in one file.
type Archive interface {
	// WriteDay replaces the archive for date with res.
	WriteDay(ctx context.Context, date string, res *snapshot.Result) error

	// ReadDay returns the archived snapshots for date.
	ReadDay(ctx context.Context, date string) (*snapshot.Result, error)

	// ListDays returns the archived dates, ascending.
	ListDays(ctx context.Context) ([]string, error)
}

// QueryEvent is one served /api/bidding request.
type QueryEvent struct {
	Time      time.Time
	RequestID string
	Date      string
	Start     string
	End       string
	Status    int
	Returned  int // timestamps in the response
	Dropped   int // files skipped because they failed to decode
	Duration  time.Duration
	Error     string
}

// UpstreamEvent is one realtime proxy call.
type UpstreamEvent struct {
	Time      time.Time
	RequestID string
	Status    int
	Bytes     int
	Duration  time.Duration
	Error     string
}

// Recorder keeps an audit trail of requests.
type Recorder interface {
	RecordQuery(ctx context.Context, evt *QueryEvent) error
	RecordUpstream(ctx context.Context, evt *UpstreamEvent) error

	// RecentQueries returns up to limit query events, newest first.
	RecentQueries(ctx context.Context, limit int) ([]QueryEvent, error)

	Close() error
}
