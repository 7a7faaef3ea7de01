package pivot

import (
	"encoding/json"

	"adpivot/internal/domain"
)

// TotalKey names the single group produced when no group-by field is set
const TotalKey = "Total"

// DefaultRevenueFields are tried in order; the first non-zero value is the ad's revenue
var DefaultRevenueFields = []string{domain.FieldPurchaseValue, domain.FieldRevenue}

// Totals are the summable metrics of one ad, group or day
type Totals struct {
	Spend       float64
	Revenue     float64
	Impressions float64
	Clicks      float64

	// numeric entries of the ad's nested "metrics" object
	Extra map[string]float64
}

func (t *Totals) add(other Totals) {
	t.Spend += other.Spend
	t.Revenue += other.Revenue
	t.Impressions += other.Impressions
	t.Clicks += other.Clicks

	if len(other.Extra) == 0 {
		return
	}
	if t.Extra == nil {
		t.Extra = make(map[string]float64, len(other.Extra))
	}
	for name, value := range other.Extra {
		t.Extra[name] += value
	}
}

// Bucket accumulates one group's ads for a single day
type Bucket struct {
	Date     string
	AdsCount int
	Totals
}

// Group accumulates every ad carrying one dimension value
type Group struct {
	Name     string
	AdsCount int
	Totals

	// contributing ads, only kept when AggregateOptions.KeepAds is set
	Ads []domain.Ad

	Buckets map[string]*Bucket
}

func (g *Group) bucket(date string) *Bucket {
	if g.Buckets == nil {
		g.Buckets = make(map[string]*Bucket)
	}
	b, ok := g.Buckets[date]
	if !ok {
		b = &Bucket{Date: date}
		g.Buckets[date] = b
	}
	return b
}

// Groups is the aggregation result, ordered by first appearance
type Groups struct {
	order      []string
	byName     map[string]*Group
	timeseries bool
}

func newGroups(timeseries bool) *Groups {
	return &Groups{
		byName:     make(map[string]*Group),
		timeseries: timeseries,
	}
}

func (gs *Groups) getOrCreate(name string) *Group {
	if g, ok := gs.byName[name]; ok {
		return g
	}
	g := &Group{Name: name}
	gs.byName[name] = g
	gs.order = append(gs.order, name)
	return g
}

// Len returns the number of groups
func (gs *Groups) Len() int {
	return len(gs.order)
}

// Get returns the group for name
func (gs *Groups) Get(name string) (*Group, bool) {
	g, ok := gs.byName[name]
	return g, ok
}

// All returns the groups in first-appearance order
func (gs *Groups) All() []*Group {
	all := make([]*Group, 0, len(gs.order))
	for _, name := range gs.order {
		all = append(all, gs.byName[name])
	}
	return all
}

// HasTimeseries reports whether per-day buckets were accumulated
func (gs *Groups) HasTimeseries() bool {
	return gs.timeseries
}

// AggregateOptions control what Aggregate accumulates besides the sums
type AggregateOptions struct {
	Timeseries bool
	KeepAds    bool

	// nil selects DefaultRevenueFields / DefaultDateFields
	RevenueFields []string
	DateFields    []string
}

// Aggregate partitions ads by the values of groupBy and sums their metrics.
//
// An ad whose groupBy value is an array joins one group per distinct element
// and adds its full spend, revenue, impressions and clicks to each of them.
// Summing a metric across all rows of one grouping can therefore exceed the
// ad-level total. Ads with no usable value land in "Unknown"; an empty
// groupBy puts every ad in a single "Total" group.
func Aggregate(ads []domain.Ad, groupBy string, opts AggregateOptions) *Groups {
	revenueFields := opts.RevenueFields
	if revenueFields == nil {
		revenueFields = DefaultRevenueFields
	}
	dateFields := opts.DateFields
	if dateFields == nil {
		dateFields = DefaultDateFields
	}

	groups := newGroups(opts.Timeseries)

	for _, ad := range ads {
		keys := []string{TotalKey}
		if groupBy != "" {
			keys = Values(ad, groupBy)
		}
		if len(keys) == 0 {
			continue
		}

		totals := adTotals(ad, revenueFields)

		var date string
		var dated bool
		if opts.Timeseries {
			date, dated = DateKey(ad, dateFields)
		}

		for _, key := range keys {
			g := groups.getOrCreate(key)
			g.AdsCount++
			g.Totals.add(totals)

			if opts.KeepAds {
				g.Ads = append(g.Ads, ad)
			}

			if dated {
				b := g.bucket(date)
				b.AdsCount++
				b.Totals.add(totals)
			}
		}
	}

	return groups
}

// adTotals reads the summable metrics of a single ad
func adTotals(ad domain.Ad, revenueFields []string) Totals {
	t := Totals{
		Spend:       Number(Resolve(ad, domain.FieldSpend)),
		Impressions: Number(Resolve(ad, domain.FieldImpressions)),
		Clicks:      Number(Resolve(ad, domain.FieldClicks)),
	}

	for _, field := range revenueFields {
		if revenue := Number(Resolve(ad, field)); revenue != 0 {
			t.Revenue = revenue
			break
		}
	}

	if nested, ok := asObject(Resolve(ad, domain.FieldMetrics)); ok {
		for name, value := range nested {
			if !isNumeric(value) {
				continue
			}
			if t.Extra == nil {
				t.Extra = make(map[string]float64)
			}
			t.Extra[name] = Number(value)
		}
	}

	return t
}

func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64, int32, json.Number:
		return true
	}
	return false
}
