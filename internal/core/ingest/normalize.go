package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var rfcStrip = regexp.MustCompile(`[^A-Z0-9]`)

// CleanRFC uppercases, strips non-alphanumerics, and validates length.
// Returns ("", false) if the cleaned value is not a 10-13 character RFC.
func CleanRFC(v string) (string, bool) {
	s := rfcStrip.ReplaceAllString(strings.ToUpper(strings.TrimSpace(v)), "")
	if len(s) < 10 || len(s) > 13 {
		return "", false
	}
	return s, true
}

var nullDateTokens = map[string]struct{}{
	"": {}, "nan": {}, "nat": {}, "none": {}, "null": {},
}

// dateLayouts are attempted in order; day-first layouts precede month-first
// ones per spec.md's "parse day-first where ambiguous" rule.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2-1-2006",
	"01/02/2006",
	"2006/01/02",
	"2-Jan-2006",
	"02-Jan-2006",
}

// excelEpoch is the Excel 1900 date system epoch used for numeric serials,
// with the well-known off-by-one leap-year bug baked in (1899-12-30).
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// CleanDate normalizes a spreadsheet cell value to "YYYY-MM-DD". It accepts
// an already-formatted date string, a day-first ambiguous string, or a
// numeric Excel serial date encoded as a string (excelize yields cell
// values as strings regardless of underlying type). Returns ("", false) on
// parse failure or an explicit null token.
func CleanDate(v string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(v))
	if _, isNull := nullDateTokens[s]; isNull {
		return "", false
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t := excelEpoch.Add(time.Duration(serial*24*float64(time.Hour)))
		return t.Format("2006-01-02"), true
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

var inactiveTokens = map[string]struct{}{
	"": {}, "0": {}, "0.0": {}, "NO": {}, "N/A": {}, "NA": {}, "NONE": {},
}

// Active implements the Quincena Activity predicate: true iff the cell is
// present, non-blank after trimming/uppercasing, not one of the recognized
// inactive tokens, and not a numeric value equal to zero.
func Active(cell string) bool {
	trimmed := strings.ToUpper(strings.TrimSpace(cell))
	if _, inactive := inactiveTokens[trimmed]; inactive {
		return false
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && f == 0 {
		return false
	}
	return true
}

var headerNormalizer = strings.NewReplacer(" ", "_")

// NormalizeHeader trims, uppercases and space->underscore normalizes a
// spreadsheet header cell.
func NormalizeHeader(h string) string {
	return headerNormalizer.Replace(strings.ToUpper(strings.TrimSpace(h)))
}

var quincenaColumn = regexp.MustCompile(`^QNA([1-9]|1[0-9]|2[0-4])$`)

// QuincenaNumber returns the quincena index (1..24) encoded by a header of
// the form QNA<n>, or (0, false) if the header does not match.
func QuincenaNumber(header string) (int, bool) {
	m := quincenaColumn.FindStringSubmatch(header)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
