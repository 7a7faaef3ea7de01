package pivot

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// ReservedParams are query parameters that never act as dimension filters
var ReservedParams = []string{
	"groupby", "fields", "platform", "start", "end", "member", "query",
	"search", "timeseries", "sort", "limit", "level",
}

// CriteriaFromQuery builds Criteria from request query parameters. Every
// non-reserved parameter becomes a dimension filter; repeated parameters
// are ANDed. A date-only end bound covers that whole day. "query" selects
// the upstream ad list and is not a local filter; "search" is. Keys in
// reserved are skipped like ReservedParams, for endpoint-specific options.
func CriteriaFromQuery(q url.Values, reserved ...string) (Criteria, error) {
	c := Criteria{
		Platform: strings.TrimSpace(q.Get("platform")),
		Search:   strings.TrimSpace(q.Get("search")),
	}

	start, err := ParseBound(q.Get("start"), false)
	if err != nil {
		return Criteria{}, fmt.Errorf("invalid start: %w", err)
	}
	end, err := ParseBound(q.Get("end"), true)
	if err != nil {
		return Criteria{}, fmt.Errorf("invalid end: %w", err)
	}
	c.Start, c.End = start, end

	keys := lo.Keys(q)
	sort.Strings(keys)
	for _, key := range keys {
		name := strings.ToLower(key)
		if lo.Contains(ReservedParams, name) || lo.Contains(reserved, name) {
			continue
		}
		for _, value := range q[key] {
			if value = strings.TrimSpace(value); value != "" {
				c.Dimensions = append(c.Dimensions, DimensionFilter{Field: key, Value: value})
			}
		}
	}

	return c, nil
}

// ParseBound parses a range bound. Empty input means no bound. With
// endOfDay, a date-only value is moved to the last instant of that day.
func ParseBound(s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, ok := ParseDate(s)
	if !ok {
		return nil, fmt.Errorf("unrecognized date %q", s)
	}
	if endOfDay && len(s) == len(dateLayout) {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
