package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"bidboard/internal/snapshot"
)

// Compile-time interface check.
var _ Archive = (*ParquetArchive)(nil)

// ErrNotArchived is returned by ReadDay when no archive exists for a date.
var ErrNotArchived = errors.New("date not archived")

// ParquetArchive implements Archive with one Parquet file per date.
type ParquetArchive struct {
	Dir string
}

// NewParquetArchive creates a ParquetArchive rooted at dir.
func NewParquetArchive(dir string) *ParquetArchive {
	return &ParquetArchive{Dir: dir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// CellRecord is one table cell in long format. A nil Value is an absent
// cell; row 0 is the header row of the snapshot.
type CellRecord struct {
	Date  string  `parquet:"date"`
	Time  string  `parquet:"time"`
	Row   int32   `parquet:"row"`
	Col   int32   `parquet:"col"`
	Value *string `parquet:"value"`
}

// ---------------------------------------------------------------------------
// Archive implementation
// ---------------------------------------------------------------------------

// WriteDay flattens res into cell records and writes them to
//
//	<Dir>/bidding/<YYYY-MM-DD>.parquet
func (a *ParquetArchive) WriteDay(_ context.Context, date string, res *snapshot.Result) error {
	if res == nil || len(res.Timestamps) == 0 {
		return fmt.Errorf("archiving %s: nothing to write", date)
	}

	var records []CellRecord
	for _, ts := range res.Timestamps {
		for r, row := range res.Data[ts] {
			for c, cell := range row {
				records = append(records, CellRecord{
					Date:  date,
					Time:  ts,
					Row:   int32(r),
					Col:   int32(c),
					Value: cell,
				})
			}
		}
	}

	if err := writeParquetFile(a.dayPath(date), records); err != nil {
		return fmt.Errorf("archiving %s: %w", date, err)
	}
	return nil
}

// ReadDay rebuilds the snapshot result stored for date.
func (a *ParquetArchive) ReadDay(_ context.Context, date string) (*snapshot.Result, error) {
	records, err := readParquetFile[CellRecord](a.dayPath(date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotArchived
		}
		return nil, fmt.Errorf("reading archive %s: %w", date, err)
	}

	sort.Slice(records, func(i, j int) bool {
		ri, rj := records[i], records[j]
		if ri.Time != rj.Time {
			return ri.Time < rj.Time
		}
		if ri.Row != rj.Row {
			return ri.Row < rj.Row
		}
		return ri.Col < rj.Col
	})

	res := &snapshot.Result{Timestamps: []string{}, Data: make(map[string]snapshot.Table)}
	for _, rec := range records {
		table, ok := res.Data[rec.Time]
		if !ok {
			res.Timestamps = append(res.Timestamps, rec.Time)
		}
		for int(rec.Row) >= len(table) {
			table = append(table, nil)
		}
		row := table[rec.Row]
		for int(rec.Col) >= len(row) {
			row = append(row, nil)
		}
		row[rec.Col] = rec.Value
		table[rec.Row] = row
		res.Data[rec.Time] = table
	}
	return res, nil
}

// ListDays lists the dates that have an archive file.
func (a *ParquetArchive) ListDays(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(a.Dir, "bidding"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var days []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".parquet") {
			continue
		}
		days = append(days, strings.TrimSuffix(e.Name(), ".parquet"))
	}
	sort.Strings(days)
	return days, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// dayPath returns the archive file for a date.
// Layout: <Dir>/bidding/<YYYY-MM-DD>.parquet
func (a *ParquetArchive) dayPath(date string) string {
	return filepath.Join(a.Dir, "bidding", filepath.Base(date)+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
