package extract

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAmount converts an Indonesian-formatted currency string to an
// integer amount. "." is a thousands separator and "," a decimal
// separator; the fractional part is discarded, never rounded, matching
// the whole-rupiah display convention of the source emails.
//
//	"60.471,23" -> 60471
//	"2.500"     -> 2500
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, ".", "")
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	amount, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return amount, nil
}
