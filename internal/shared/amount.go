package shared

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	amountJunk     = regexp.MustCompile(`[^0-9.,-]`)
	commaDecimals  = regexp.MustCompile(`,\d{1,2}$`)
	dotDecimals    = regexp.MustCompile(`\.\d{1,2}$`)
	dotThousands   = regexp.MustCompile(`\.\d{3}$`)
	dayMonthYear   = regexp.MustCompile(`^(\d{1,2})[/\-](\d{1,2})[/\-](\d{2,4})$`)
	yearMonthDay   = regexp.MustCompile(`^(\d{4})[/\-](\d{1,2})[/\-](\d{1,2})$`)
	nonDigits      = regexp.MustCompile(`\D`)
	excelEpochDiff = 25569.0
)

// ParseAmount parses a decimal amount from mixed-locale input. Both
// "1,234.56" and "1.234,56" resolve to 1234.56; "1,23" is a decimal
// because at most two digits follow the last separator, while "1.234"
// with no comma is a thousands grouping. Unparsable input yields 0.
func ParseAmount(v string) float64 {
	str := strings.TrimSpace(v)
	if str == "" {
		return 0
	}
	str = amountJunk.ReplaceAllString(str, "")
	if str == "" {
		return 0
	}

	hasDot := strings.Contains(str, ".")
	hasComma := strings.Contains(str, ",")

	switch {
	case hasDot && hasComma:
		if strings.LastIndex(str, ".") > strings.LastIndex(str, ",") {
			// 1,234.56
			str = strings.ReplaceAll(str, ",", "")
		} else {
			// 1.234,56
			str = strings.ReplaceAll(str, ".", "")
			str = strings.ReplaceAll(str, ",", ".")
		}
	case hasComma:
		if commaDecimals.MatchString(str) {
			str = strings.ReplaceAll(str, ",", ".")
		} else {
			str = strings.ReplaceAll(str, ",", "")
		}
	case hasDot:
		if !dotDecimals.MatchString(str) && dotThousands.MatchString(str) {
			str = strings.ReplaceAll(str, ".", "")
		}
	}

	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0
	}
	return f
}

// ParseDate parses dates from the formats seen in imported spreadsheets:
// DD/MM/YYYY, YYYY-MM-DD, spreadsheet serial numbers and RFC 3339.
// Returns the zero time when nothing matches.
func ParseDate(v string) time.Time {
	str := strings.TrimSpace(v)
	if str == "" {
		return time.Time{}
	}

	if m := dayMonthYear.FindStringSubmatch(str); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if t.Day() == day && int(t.Month()) == month {
			return t
		}
		return time.Time{}
	}

	if m := yearMonthDay.FindStringSubmatch(str); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if t.Day() == day && int(t.Month()) == month {
			return t
		}
		return time.Time{}
	}

	// Spreadsheet serial (days since 1899-12-30).
	if serial, err := strconv.ParseFloat(str, 64); err == nil {
		return time.Unix(int64((serial-excelEpochDiff)*86400), 0).UTC()
	}

	if t, err := time.Parse(time.RFC3339, str); err == nil {
		return t
	}
	return time.Time{}
}

// NumericSuffix extracts the numeric portion of an identifier such as a
// zero-padded order number. Returns 0 when no digits are present.
func NumericSuffix(id string) int {
	digits := nonDigits.ReplaceAllString(id, "")
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
