package snapshot

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// Cell is one table value. nil is the absence marker.
type Cell = *string

// Row is an ordered sequence of cells.
type Row []Cell

// Table is a decoded snapshot file. The header row, when present, is Rows[0].
type Table []Row

// DefaultMissing holds the cell values decoded as absent.
var DefaultMissing = []string{"", "nan", "NaN"}

// ErrEmptyFile is returned for a file with no records at all.
var ErrEmptyFile = errors.New("no columns to parse from file")

// ErrRaggedRow is returned when a data row has more fields than the header.
var ErrRaggedRow = errors.New("row has more fields than header")

// ErrInvalidUTF8 is returned when a UTF-8 file holds bytes that are not
// valid UTF-8.
var ErrInvalidUTF8 = errors.New("invalid UTF-8 in cell")

// Decoder turns delimited text into a Table without any type inference.
type Decoder struct {
	missing  map[string]struct{}
	encoding encoding.Encoding
}

// NewDecoder returns a Decoder. missing lists the values decoded as absent;
// nil selects DefaultMissing. charset is "", "utf-8", "gbk" or "gb18030".
func NewDecoder(missing []string, charset string) (*Decoder, error) {
	if missing == nil {
		missing = DefaultMissing
	}
	d := &Decoder{missing: make(map[string]struct{}, len(missing))}
	for _, m := range missing {
		d.missing[m] = struct{}{}
	}

	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
	case "gbk":
		d.encoding = simplifiedchinese.GBK
	case "gb18030":
		d.encoding = simplifiedchinese.GB18030
	default:
		return nil, fmt.Errorf("unsupported snapshot encoding %q", charset)
	}
	return d, nil
}

// DecodeFile reads and decodes the file at path.
func (d *Decoder) DecodeFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return d.Decode(f)
}

// Decode reads all records from r. Short rows are padded with absent cells;
// rows longer than the first row, invalid UTF-8 in the default charset, or an
// input without records fail the whole table.
func (d *Decoder) Decode(r io.Reader) (Table, error) {
	src := skipBOM(r)
	if d.encoding != nil {
		src = transform.NewReader(src, d.encoding.NewDecoder())
	}

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		table Table
		width int
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if table == nil {
			width = len(rec)
		} else if len(rec) > width {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w (%d > %d)", line, ErrRaggedRow, len(rec), width)
		}

		row := make(Row, width)
		for i, v := range rec {
			if d.encoding == nil && !utf8.ValidString(v) {
				line, col := cr.FieldPos(i)
				return nil, fmt.Errorf("line %d, column %d: %w", line, col, ErrInvalidUTF8)
			}
			row[i] = d.cell(v)
		}
		table = append(table, row)
	}
	if table == nil {
		return nil, ErrEmptyFile
	}
	return table, nil
}

func (d *Decoder) cell(v string) Cell {
	if _, ok := d.missing[v]; ok {
		return nil
	}
	return &v
}

// skipBOM drops a leading UTF-8 byte order mark.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	return br
}

// Strings flattens the table for display, rendering absent cells as "".
func (t Table) Strings() [][]string {
	out := make([][]string, len(t))
	for i, row := range t {
		out[i] = make([]string, len(row))
		for j, c := range row {
			if c != nil {
				out[i][j] = *c
			}
		}
	}
	return out
}
