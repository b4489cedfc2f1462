package snapshot

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent file decodes when none is configured.
const DefaultWorkers = 8

// Result is the combined answer to a query. Timestamps is ascending and holds
// exactly the keys of Data.
type Result struct {
	Timestamps []string         `json:"timestamps"`
	Data       map[string]Table `json:"data"`

	// Dropped counts in-range files that failed to decode.
	Dropped int `json:"-"`
}

// Service answers historical snapshot queries against one directory.
type Service struct {
	dir     string
	dec     *Decoder
	workers int
	log     *slog.Logger

	// OnDecodeError, when set, is called for every file dropped from a
	// result. It may be called from several goroutines at once.
	OnDecodeError func(*DecodeError)
}

// NewService creates a Service reading snapshot files from dir.
func NewService(dir string, dec *Decoder, workers int, log *slog.Logger) *Service {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{dir: dir, dec: dec, workers: workers, log: log}
}

// Dir returns the snapshot directory.
func (s *Service) Dir() string { return s.dir }

// Query finds the snapshot files for date whose time token lies in
// [start, end], decodes them, and returns them keyed by token. A file that
// fails to decode is logged and omitted; it never fails the query.
func (s *Service) Query(ctx context.Context, date, start, end string) (*Result, error) {
	if date == "" || start == "" || end == "" {
		return nil, queryErrorf(ErrMissingParameter, "date, start and end are required")
	}

	refs, matched, err := ListRefs(s.dir, date)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots for %s: %w", date, err)
	}
	if matched == 0 {
		return nil, queryErrorf(ErrNoDataForDate, "no data files found for date %s", date)
	}

	refs = FilterRange(refs, start, end)
	if len(refs) == 0 {
		return nil, queryErrorf(ErrNoDataInRange, "no data found between %s and %s", start, end)
	}

	tables, err := s.decodeAll(ctx, refs)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Timestamps: make([]string, 0, len(refs)),
		Data:       make(map[string]Table, len(refs)),
	}
	for i, ref := range refs {
		if tables[i] == nil {
			res.Dropped++
			continue
		}
		if _, dup := res.Data[ref.Token]; !dup {
			res.Timestamps = append(res.Timestamps, ref.Token)
		}
		res.Data[ref.Token] = tables[i]
	}

	s.log.Debug("snapshot query",
		"date", date, "start", start, "end", end,
		"matched", matched, "in_range", len(refs), "returned", len(res.Timestamps))
	return res, nil
}

// decodeAll decodes refs concurrently. The returned slice is index-aligned
// with refs; a nil entry marks a file that failed.
func (s *Service) decodeAll(ctx context.Context, refs []Ref) ([]Table, error) {
	tables := make([]Table, len(refs))
	sem := make(chan struct{}, s.workers)

	// Decode failures are per file, so the group itself never fails and one
	// bad file cannot cancel the others.
	var g errgroup.Group
	for i, ref := range refs {
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return nil
			}
			t, err := s.dec.DecodeFile(ref.Path)
			if err != nil {
				s.dropped(&DecodeError{Path: ref.Path, Err: err})
				return nil
			}
			tables[i] = t
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return tables, nil
}

func (s *Service) dropped(de *DecodeError) {
	s.log.Error("reading snapshot file failed", "file", de.Path, "error", de.Err)
	if s.OnDecodeError != nil {
		s.OnDecodeError(de)
	}
}
