// Package snapshot discovers, filters, and decodes the pre-recorded call
// auction snapshot files (bidding_<date>_<time>_limit.csv) and combines them
// into a single time-ordered result.
package snapshot

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	filePrefix = "bidding_"
	fileSuffix = "_limit.csv"

	// TokenWidth is the fixed width every time token is normalized to.
	TokenWidth = 6
)

// Ref identifies one snapshot file on disk.
type Ref struct {
	Date  string // YYYY-MM-DD, as it appears in the file name
	Token string // normalized HHMMSS
	Path  string
}

// NormalizeToken pads a 4-digit HHMM token to HHMMSS. Any other input is
// returned unchanged.
func NormalizeToken(t string) string {
	if len(t) == 4 && allDigits(t) {
		return t + "00"
	}
	return t
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// splitName splits a snapshot file name into its date and raw time parts.
// ok is false when the name does not have the bidding_<date>_<x>_limit.csv
// shape at all.
func splitName(name string) (date, raw string, ok bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return "", "", false
	}
	mid := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	i := strings.LastIndexByte(mid, '_')
	if i <= 0 {
		return "", "", false
	}
	return mid[:i], mid[i+1:], true
}

// parseToken validates a raw time group (exactly 4 or 6 ASCII digits) and
// returns it normalized.
func parseToken(raw string) (string, bool) {
	if len(raw) != 4 && len(raw) != TokenWidth || !allDigits(raw) {
		return "", false
	}
	return NormalizeToken(raw), true
}

// ParseName extracts a Ref from a snapshot file name. The returned Ref has no
// Path set.
func ParseName(name string) (Ref, bool) {
	date, raw, ok := splitName(name)
	if !ok {
		return Ref{}, false
	}
	tok, ok := parseToken(raw)
	if !ok {
		return Ref{}, false
	}
	return Ref{Date: date, Token: tok}, true
}

// FileName returns the canonical on-disk name for a date and token.
func FileName(date, token string) string {
	return filePrefix + date + "_" + token + fileSuffix
}

// ListRefs returns every glob match for date (bidding_<date>_*_limit.csv) in
// dir, together with the subset whose time group is a valid token. matched
// counts all glob matches, including ones with a malformed time group.
func ListRefs(dir, date string) (refs []Ref, matched int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	prefix := filePrefix + date + "_"
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		// The glob "*" needs at least the separator before _limit.csv.
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, fileSuffix) ||
			len(name) < len(prefix)+len(fileSuffix) {
			continue
		}
		matched++

		raw := name[len(prefix) : len(name)-len(fileSuffix)]
		tok, ok := parseToken(raw)
		if !ok {
			continue
		}
		refs = append(refs, Ref{Date: date, Token: tok, Path: filepath.Join(dir, name)})
	}

	sortRefs(refs)
	return refs, matched, nil
}

// FilterRange keeps refs whose token t satisfies start <= t <= end under
// string comparison. 4-digit bounds are normalized first.
func FilterRange(refs []Ref, start, end string) []Ref {
	start, end = NormalizeToken(start), NormalizeToken(end)
	var out []Ref
	for _, r := range refs {
		if start <= r.Token && r.Token <= end {
			out = append(out, r)
		}
	}
	return out
}

// sortRefs orders refs by token. Ties (0915 and 091500 for the same date)
// fall back to the path so the order is deterministic.
func sortRefs(refs []Ref) {
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Token != refs[j].Token {
			return refs[i].Token < refs[j].Token
		}
		return refs[i].Path < refs[j].Path
	})
}
