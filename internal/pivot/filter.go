package pivot

import (
	"strings"
	"time"

	"adpivot/internal/domain"

	"github.com/samber/lo"
)

var (
	// DefaultDateFields are tried in order to find an ad's date
	DefaultDateFields = []string{domain.FieldStartDate, domain.FieldDate, "start_time", "windsor.ad_created_time"}

	// DefaultSearchFields are matched by Criteria.Search
	DefaultSearchFields = []string{
		domain.FieldTitle,
		domain.FieldProducts,
		domain.FieldUseCase,
		domain.FieldAngles,
		domain.FieldOffers,
		domain.FieldPromotion,
	}
)

// DimensionFilter keeps ads whose Field carries Value
type DimensionFilter struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Criteria narrows the ad list before grouping. All set filters are ANDed.
type Criteria struct {
	Platform   string            `json:"platform,omitempty"`
	Start      *time.Time        `json:"start,omitempty"`
	End        *time.Time        `json:"end,omitempty"`
	Dimensions []DimensionFilter `json:"dimensions,omitempty"`
	Search     string            `json:"search,omitempty"`

	// nil selects DefaultDateFields / DefaultSearchFields
	DateFields   []string `json:"-"`
	SearchFields []string `json:"-"`
}

// IsEmpty returns true if no filters are set.
func (c Criteria) IsEmpty() bool {
	return strings.TrimSpace(c.Platform) == "" &&
		c.Start == nil && c.End == nil &&
		len(c.Dimensions) == 0 &&
		strings.TrimSpace(c.Search) == ""
}

// With returns a copy of c with an extra dimension filter
func (c Criteria) With(field, value string) Criteria {
	dims := make([]DimensionFilter, 0, len(c.Dimensions)+1)
	dims = append(dims, c.Dimensions...)
	c.Dimensions = append(dims, DimensionFilter{Field: field, Value: value})
	return c
}

// Filter returns the ads matching every filter in c. The input slice is never
// modified. Malformed rows (bad dates, missing fields) simply do not match.
// Filters run cheapest first: platform, date range, dimensions, search.
func Filter(ads []domain.Ad, c Criteria) []domain.Ad {
	filtered := ads

	if platform := strings.TrimSpace(c.Platform); platform != "" {
		filtered = lo.Filter(filtered, func(ad domain.Ad, _ int) bool {
			return matchesPlatform(ad, platform)
		})
	}

	if c.Start != nil || c.End != nil {
		fields := c.DateFields
		if fields == nil {
			fields = DefaultDateFields
		}
		filtered = lo.Filter(filtered, func(ad domain.Ad, _ int) bool {
			return matchesDateRange(ad, fields, c.Start, c.End)
		})
	}

	for _, dim := range c.Dimensions {
		value := strings.TrimSpace(dim.Value)
		if dim.Field == "" || value == "" {
			continue
		}
		filtered = lo.Filter(filtered, func(ad domain.Ad, _ int) bool {
			return lo.Contains(Values(ad, dim.Field), value)
		})
	}

	if needle := strings.ToLower(strings.TrimSpace(c.Search)); needle != "" {
		fields := c.SearchFields
		if fields == nil {
			fields = DefaultSearchFields
		}
		filtered = lo.Filter(filtered, func(ad domain.Ad, _ int) bool {
			return matchesSearch(ad, fields, needle)
		})
	}

	if filtered == nil {
		return []domain.Ad{}
	}
	return filtered
}

func matchesPlatform(ad domain.Ad, platform string) bool {
	return lo.ContainsBy(Values(ad, domain.FieldPlatform), func(v string) bool {
		return strings.EqualFold(v, platform)
	})
}

// matchesDateRange compares days, not instants: a bound's day is taken in
// the bound's own offset and an ad's day is the prefix of its date string.
func matchesDateRange(ad domain.Ad, fields []string, start, end *time.Time) bool {
	day, ok := DateKey(ad, fields)
	if !ok {
		return false
	}
	if start != nil && day < start.Format(dateLayout) {
		return false
	}
	if end != nil && day > end.Format(dateLayout) {
		return false
	}
	return true
}

func matchesSearch(ad domain.Ad, fields []string, needle string) bool {
	for _, field := range fields {
		for _, s := range rawStrings(Resolve(ad, field)) {
			if strings.Contains(strings.ToLower(s), needle) {
				return true
			}
		}
	}
	return false
}
