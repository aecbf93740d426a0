package sheet

import (
	"strconv"
	"strings"
	"time"
)

// excelEpoch is Dec 30 1899, the zero point for Excel serial dates
// (offset accounts for Excel's 1900 leap year bug).
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ParseAmount normalizes a raw cell value to a signed number. It strips
// leading currency symbols and thousands separators and converts
// accounting-style parenthesized negatives. The second return is false
// when the cell is empty or not numeric; such rows are skipped, never
// zero-filled.
func ParseAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseCellDate interprets a date-bearing cell. The export renders dates
// either as ISO-style strings or as Excel serial numbers (days since the
// 1900 epoch).
func ParseCellDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if strings.Contains(s, "-") || strings.Contains(s, "/") {
		for _, layout := range []string{"2006-01-02", "2006-01-02T15:04:05", "1/2/2006", "01/02/2006"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, false
	}
	return excelEpoch.Add(time.Duration(serial * float64(24*time.Hour))), true
}

// MonthName returns the canonical full name for a month number.
func MonthName(m time.Month) string {
	return MonthOrder[int(m)-1]
}

// QuarterOf returns Q1..Q4 for a month number.
func QuarterOf(m time.Month) string {
	return QuarterOrder[(int(m)-1)/3]
}
