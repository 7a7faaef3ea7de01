// Package pivot turns a flat list of ad records into grouped summary rows.
//
// Pipeline: filter → aggregate → finalize. Every stage is a pure function of
// its input; nothing is cached or shared between runs, so running the same
// query twice over the same ads yields identical rows.
package pivot

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"adpivot/internal/domain"

	"github.com/samber/lo"
)

var (
	ErrInvalidGroupBy = errors.New("invalid group by field")
	ErrInvalidSort    = errors.New("invalid sort key")
)

// Query is one pivot request
type Query struct {
	GroupBy    string   `json:"groupBy"`
	Criteria   Criteria `json:"criteria"`
	Timeseries bool     `json:"timeseries"`
	Columns    []Column `json:"columns,omitempty"`
	SortBy     string   `json:"sortBy,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// Option configures engine behavior via functional options pattern.
type Option func(*config)

type config struct {
	ctrPercent    bool
	topN          int
	showMore      bool
	revenueFields []string
	dateFields    []string
	searchFields  []string
}

// WithCTRPercent reports CTR as clicks/impressions*100 instead of a fraction.
// The convention applies to every row and timeseries point the engine emits.
func WithCTRPercent(enabled bool) Option {
	return func(c *config) {
		c.ctrPercent = enabled
	}
}

// WithTopN sets how many values a distribution string lists.
func WithTopN(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.topN = n
		}
	}
}

// WithShowMore appends " + K more" to distributions with hidden values.
func WithShowMore(enabled bool) Option {
	return func(c *config) {
		c.showMore = enabled
	}
}

// WithRevenueFields sets the revenue lookup order.
func WithRevenueFields(fields ...string) Option {
	return func(c *config) {
		if len(fields) > 0 {
			c.revenueFields = fields
		}
	}
}

// WithDateFields sets the ad date lookup order.
func WithDateFields(fields ...string) Option {
	return func(c *config) {
		if len(fields) > 0 {
			c.dateFields = fields
		}
	}
}

// WithSearchFields sets the fields free-text search looks at.
func WithSearchFields(fields ...string) Option {
	return func(c *config) {
		if len(fields) > 0 {
			c.searchFields = fields
		}
	}
}

// Engine runs pivot queries with a fixed output convention
type Engine struct {
	cfg config
}

// New creates an engine. Without options CTR is a fraction, distributions
// list the top 5 values and revenue prefers the windsor purchase value.
func New(opts ...Option) *Engine {
	cfg := config{
		topN:          DefaultTopN,
		revenueFields: DefaultRevenueFields,
		dateFields:    DefaultDateFields,
		searchFields:  DefaultSearchFields,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{cfg: cfg}
}

// CTRUnit names the CTR convention of this engine's output
func (e *Engine) CTRUnit() string {
	if e.cfg.ctrPercent {
		return "percent"
	}
	return "fraction"
}

// Run filters, groups and finalizes ads. A nil or empty ad list yields no
// rows. Only a malformed query returns an error; bad ad data never does.
func (e *Engine) Run(ads []domain.Ad, q Query) ([]Row, error) {
	groupBy := strings.TrimSpace(q.GroupBy)
	if err := ValidateGroupBy(groupBy); err != nil {
		return nil, err
	}
	if err := ValidateSort(q.SortBy); err != nil {
		return nil, err
	}

	criteria := q.Criteria
	if criteria.DateFields == nil {
		criteria.DateFields = e.cfg.dateFields
	}
	if criteria.SearchFields == nil {
		criteria.SearchFields = e.cfg.searchFields
	}

	filtered := Filter(ads, criteria)

	groups := Aggregate(filtered, groupBy, AggregateOptions{
		Timeseries:    q.Timeseries,
		KeepAds:       needsAds(q.Columns),
		RevenueFields: e.cfg.revenueFields,
		DateFields:    e.cfg.dateFields,
	})

	return Finalize(groups, FinalizeOptions{
		Columns:    q.Columns,
		CTRPercent: e.cfg.ctrPercent,
		TopN:       e.cfg.topN,
		ShowMore:   e.cfg.showMore,
		SortBy:     q.SortBy,
		Limit:      q.Limit,
	}), nil
}

// Run executes q with a default engine
func Run(ads []domain.Ad, q Query) ([]Row, error) {
	return New().Run(ads, q)
}

// ValidateGroupBy rejects dot paths with empty segments. An empty path is
// valid and groups everything under "Total".
func ValidateGroupBy(path string) error {
	if path == "" {
		return nil
	}
	for _, segment := range strings.Split(path, ".") {
		if strings.TrimSpace(segment) == "" {
			return fmt.Errorf("%w: %q", ErrInvalidGroupBy, path)
		}
	}
	return nil
}

// ValidateSort accepts "", "name" and the metric sort keys
func ValidateSort(sortBy string) error {
	if sortBy == "" || sortBy == "name" {
		return nil
	}
	if _, ok := sortKeys[sortBy]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidSort, sortBy)
	}
	return nil
}

// SortKeys lists the accepted SortBy values
func SortKeys() []string {
	keys := append(lo.Keys(sortKeys), "name")
	sort.Strings(keys)
	return keys
}

func needsAds(columns []Column) bool {
	return lo.SomeBy(columns, func(c Column) bool {
		return !isMetricColumn(c.Name, nil)
	})
}
