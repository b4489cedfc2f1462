package store

import "context"

// NoopRecorder is used when no SQLite path is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (NoopRecorder) RecordQuery(context.Context, *QueryEvent) error       { return nil }
func (NoopRecorder) RecordUpstream(context.Context, *UpstreamEvent) error { return nil }
func (NoopRecorder) RecentQueries(context.Context, int) ([]QueryEvent, error) {
	return nil, nil
}
func (NoopRecorder) Close() error { return nil }
