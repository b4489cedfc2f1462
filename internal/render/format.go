// Package render formats snapshot data for terminal output.
package render

import (
	"strconv"
	"strings"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	s := strconv.Itoa(n)
	sign := ""
	if n < 0 {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	b.WriteString(sign)
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatToken renders a 6-digit time token as HH:MM:SS. Other shapes are
// returned unchanged.
func FormatToken(t string) string {
	if len(t) != 6 {
		return t
	}
	return t[0:2] + ":" + t[2:4] + ":" + t[4:6]
}

// FormatCell renders a cell, showing absent values as "-".
func FormatCell(c *string) string {
	if c == nil {
		return "-"
	}
	return *c
}

// signOf reports whether a numeric-looking cell is positive (1), negative
// (-1) or neither (0). Cells are text; only a leading sign and digits are
// inspected.
func signOf(s string) int {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		return 0
	}
	neg := s[0] == '-'
	if neg || s[0] == '+' {
		s = s[1:]
	}
	nonZero := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '1' && c <= '9':
			nonZero = true
		case c == '0' || c == '.':
		default:
			return 0
		}
	}
	if !nonZero {
		return 0
	}
	if neg {
		return -1
	}
	return 1
}
