package core

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical calendar date format used as index key and
// persisted in the date column.
const DateLayout = "2006-01-02"

const (
	serialMin = 30000
	serialMax = 60000
	// Days between the spreadsheet serial epoch (1899-12-30) and 1970-01-01.
	serialUnixOffset = 25569
)

var (
	euroDate     = regexp.MustCompile(`^(\d{1,2})[./-](\d{1,2})[./-](\d{2}|\d{4})$`)
	standardDate = regexp.MustCompile(`^(\d{4})[./-](\d{1,2})[./-](\d{1,2})$`)

	genericLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999Z07",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999Z07",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04",
		time.RFC1123Z,
		time.RFC1123,
		time.RFC850,
		time.RFC822Z,
		time.RFC822,
		time.UnixDate,
		time.ANSIC,
		"Mon Jan 2 2006",
		"Mon Jan 02 2006",
		"January 2, 2006",
		"Jan 2, 2006",
		"2 January 2006",
		"2 Jan 2006",
		"2006/01/02 15:04:05",
		"2006-01",
		"2006",
	}
)

// DateNormalizer turns heterogeneous date values into canonical YYYY-MM-DD
// strings. The zero value uses time.Now and time.Local.
type DateNormalizer struct {
	Now      func() time.Time
	Location *time.Location
}

// NormalizeDate normalizes raw with the default clock and local time zone.
func NormalizeDate(raw any) string {
	return DateNormalizer{}.Normalize(raw)
}

// Today returns the current local calendar day as YYYY-MM-DD.
func (n DateNormalizer) Today() string {
	return n.now().Format(DateLayout)
}

// Normalize never fails: anything it cannot interpret becomes today.
//
// Rules, first match wins:
//   - nil, "", 0, false and NaN are today
//   - numbers strictly between 30000 and 60000 are spreadsheet serial days
//   - D/M/Y with '.', '/' or '-' separators and a 2 or 4 digit year
//   - Y/M/D with a 4 digit year
//   - a list of common timestamp and date layouts
func (n DateNormalizer) Normalize(raw any) string {
	if !Truthy(raw) {
		return n.Today()
	}
	if t, ok := raw.(time.Time); ok {
		return t.Format(DateLayout)
	}

	if num, ok := Number(raw); ok && num > serialMin && num < serialMax {
		days := int(math.Floor(num)) - serialUnixOffset
		return time.Unix(0, 0).UTC().AddDate(0, 0, days).Format(DateLayout)
	}

	s := strings.TrimSpace(Text(raw))

	if m := euroDate.FindStringSubmatch(s); m != nil {
		year := m[3]
		if len(year) == 2 {
			year = "20" + year
		}
		return year + "-" + pad2(m[2]) + "-" + pad2(m[1])
	}

	if m := standardDate.FindStringSubmatch(s); m != nil {
		return m[1] + "-" + pad2(m[2]) + "-" + pad2(m[3])
	}

	for _, layout := range genericLayouts {
		t, err := time.ParseInLocation(layout, s, n.location())
		if err != nil {
			continue
		}
		return t.In(n.location()).Format(DateLayout)
	}

	return n.Today()
}

func (n DateNormalizer) now() time.Time {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return now().In(n.location())
}

func (n DateNormalizer) location() *time.Location {
	if n.Location != nil {
		return n.Location
	}
	return time.Local
}

func pad2(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

// Truthy reports whether raw carries a value: nil, "", 0, NaN, false and the
// zero time are not truthy.
func Truthy(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case json.Number:
		f, ok := parseNumber(string(v))
		return v != "" && (!ok || f != 0)
	case time.Time:
		return !v.IsZero()
	}
	if num, ok := numericValue(raw); ok {
		return num != 0 && !math.IsNaN(num)
	}
	return true
}

// Number coerces numeric values and numeric strings to float64. NaN and
// non-numeric input report false.
func Number(raw any) (float64, bool) {
	if num, ok := numericValue(raw); ok {
		return num, !math.IsNaN(num)
	}
	switch v := raw.(type) {
	case string:
		return parseNumber(v)
	case json.Number:
		return parseNumber(string(v))
	}
	return 0, false
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func numericValue(raw any) (float64, bool) {
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// Text renders raw the way it would appear in a text column. Integral floats
// print without a fraction, so 3.0 becomes "3".
func Text(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case json.Number:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	}
	if num, ok := numericValue(raw); ok {
		return strconv.FormatFloat(num, 'f', -1, 64)
	}
	if s, ok := raw.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}
