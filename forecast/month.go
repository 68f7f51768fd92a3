/*
month.go - Month encoding normalization

PURPOSE:
  Upstream processes encode months three different ways:
    "M1".."M60"   month-code form, case-insensitive, tolerates whitespace
    "YYYY-MM"     calendar form; a running index when a base year is known,
                  the literal month component otherwise
    "7" / 7       bare integers and integer strings

  Everything funnels through one normalizer so that a month is either a
  validated MonthIndex in [1, MaxMonths] or dropped. Unparseable or
  out-of-range inputs are NEVER coerced to 0 — the caller drops the record
  and counts it.

PRIORITY ORDER:
  month-code -> calendar form -> bare integer. The order is fixed here and
  nowhere else.

SEE ALSO:
  - materializer.go, matcher.go: The two consumers
*/
package forecast

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	monthCodeRe = regexp.MustCompile(`^[Mm]\s*(\d{1,3})$`)
	yearMonthRe = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
)

// MonthNormalizer parses raw month encodings into MonthIndex values.
//
// BaseYear anchors calendar-form encodings to the project start: with
// BaseYear set, "2026-03" becomes (2026-BaseYear)*12 + 3. With BaseYear
// zero the literal month component is used. The zero value is a valid
// normalizer for projects without calendar anchoring.
type MonthNormalizer struct {
	BaseYear int
}

// Normalize parses raw into a validated MonthIndex. The second return is
// false when the input is unparseable or outside [1, MaxMonths]; the
// normalizer never guesses.
func (n MonthNormalizer) Normalize(raw any) (MonthIndex, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case string:
		return n.normalizeString(v)
	case int:
		return validated(v)
	case int64:
		return validated(int(v))
	case float64:
		// JSON numbers decode as float64; only whole values are months.
		if v != float64(int(v)) {
			return 0, false
		}
		return validated(int(v))
	case json.Number:
		return n.normalizeString(v.String())
	case MonthIndex:
		return validated(int(v))
	default:
		return 0, false
	}
}

func (n MonthNormalizer) normalizeString(raw string) (MonthIndex, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	if m := monthCodeRe.FindStringSubmatch(s); m != nil {
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return validated(v)
	}

	if m := yearMonthRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, err := strconv.Atoi(m[2])
		if err != nil || month < 1 || month > 12 {
			return 0, false
		}
		if n.BaseYear > 0 {
			return validated((year-n.BaseYear)*12 + month)
		}
		return validated(month)
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return validated(v)
}

func validated(v int) (MonthIndex, bool) {
	m := MonthIndex(v)
	if !m.Valid() {
		return 0, false
	}
	return m, true
}

// ParseMonth normalizes raw without calendar anchoring.
func ParseMonth(raw any) (MonthIndex, bool) {
	return MonthNormalizer{}.Normalize(raw)
}
