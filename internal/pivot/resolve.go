package pivot

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"adpivot/internal/domain"

	"github.com/samber/lo"
)

const dateLayout = "2006-01-02"

// accepted layouts for range bounds, tried in order
var dateFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05-0700", // Meta insights style offset
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	dateLayout,
	"2006/01/02",
}

// Resolve reads a dot-separated path ("insights.trigger_type") from an ad.
// It returns nil as soon as a segment is missing, null or not an object.
func Resolve(ad domain.Ad, path string) any {
	if ad == nil || path == "" {
		return nil
	}

	var current any = map[string]any(ad)
	for _, segment := range strings.Split(path, ".") {
		obj, ok := asObject(current)
		if !ok {
			return nil
		}
		value, exists := obj[segment]
		if !exists || value == nil {
			return nil
		}
		current = value
	}
	return current
}

// Values resolves path and normalizes the result into the set of dimension
// values the ad carries. Array elements are trimmed, empty ones skipped and
// duplicates removed. A missing value, empty scalar or empty array yields
// the single value "Unknown".
func Values(ad domain.Ad, path string) []string {
	raw := Resolve(ad, path)

	items, isList := asList(raw)
	if !isList {
		s := strings.TrimSpace(scalarString(raw))
		if s == "" {
			return []string{domain.UnknownValue}
		}
		return []string{s}
	}

	if len(items) == 0 {
		return []string{domain.UnknownValue}
	}

	values := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(scalarString(item)); s != "" {
			values = append(values, s)
		}
	}
	return lo.Uniq(values)
}

// Number coerces a JSON value to float64. Anything that is not a finite
// number or numeric string becomes 0.
func Number(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		f, _ = n.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(n), 64)
	case bool:
		if n {
			f = 1
		}
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ParseDate parses a range bound in any accepted layout
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DayKey returns the YYYY-MM-DD prefix of an ad date. Only the first ten
// characters count; whatever follows them (time, offset) is ignored.
func DayKey(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(dateLayout) {
		return "", false
	}
	day := s[:len(dateLayout)]
	if _, err := time.Parse(dateLayout, day); err != nil {
		return "", false
	}
	return day, true
}

// DateKey returns the day of the first non-empty date field in fields.
// Later fields are not consulted when the first present one is unparseable.
func DateKey(ad domain.Ad, fields []string) (string, bool) {
	for _, field := range fields {
		raw, ok := Resolve(ad, field).(string)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		return DayKey(raw)
	}
	return "", false
}

func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, true
	case domain.Ad:
		return obj, true
	}
	return nil, false
}

func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		return lo.ToAnySlice(list), true
	}
	return nil, false
}

// scalarString renders a scalar JSON value. Objects, arrays and nil render
// as "" so they normalize to Unknown.
func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	}
	return ""
}

// rawStrings returns the string forms of a value without Unknown
// normalization, for free-text search.
func rawStrings(v any) []string {
	if items, ok := asList(v); ok {
		return lo.FilterMap(items, func(item any, _ int) (string, bool) {
			s := scalarString(item)
			return s, s != ""
		})
	}
	if s := scalarString(v); s != "" {
		return []string{s}
	}
	return nil
}
