package pivot

import (
	"encoding/json"
	"strings"

	"github.com/samber/lo"
)

// MetricColumns are the row keys computed from sums. Any other requested
// column is treated as a dimension and rendered as a distribution.
var MetricColumns = []string{
	"name", "adsCount", "spend", "revenue", "impressions", "clicks",
	"roas", "ctr", "cpc", "revPerAd",
}

// columns with this prefix always address an extra metric
const extraPrefix = "metrics."

// Metrics holds the raw sums and derived ratios of a group or day
type Metrics struct {
	AdsCount    int     `json:"adsCount"`
	Spend       float64 `json:"spend"`
	Revenue     float64 `json:"revenue"`
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	ROAS        float64 `json:"roas"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
	RevPerAd    float64 `json:"revPerAd"`
}

// Point is one day of a row's timeseries
type Point struct {
	Date string `json:"date"`
	Metrics
}

// Row is the finalized view of one group
type Row struct {
	Name string
	Metrics

	// sums of the ads' nested "metrics" entries
	Extra map[string]float64

	// top-N strings keyed by column name
	Distributions map[string]string

	// nil unless timeseries was requested
	Timeseries []Point
}

// Value returns the row's value for an output column
func (r Row) Value(column string) (any, bool) {
	switch column {
	case "name":
		return r.Name, true
	case "adsCount":
		return r.AdsCount, true
	case "spend":
		return r.Spend, true
	case "revenue":
		return r.Revenue, true
	case "impressions":
		return r.Impressions, true
	case "clicks":
		return r.Clicks, true
	case "roas":
		return r.ROAS, true
	case "ctr":
		return r.CTR, true
	case "cpc":
		return r.CPC, true
	case "revPerAd":
		return r.RevPerAd, true
	}

	if v, ok := r.Extra[strings.TrimPrefix(column, extraPrefix)]; ok {
		return v, true
	}
	if d, ok := r.Distributions[column]; ok {
		return d, true
	}
	return nil, false
}

// Fields returns every key the row carries. Extra metrics and distributions
// never shadow the built-in metric keys.
func (r Row) Fields() map[string]any {
	fields := make(map[string]any, len(MetricColumns)+len(r.Extra)+len(r.Distributions)+1)
	for name, value := range r.Extra {
		fields[name] = value
	}
	for name, value := range r.Distributions {
		fields[name] = value
	}
	for _, name := range MetricColumns {
		fields[name], _ = r.Value(name)
	}
	if r.Timeseries != nil {
		fields["timeseries"] = r.Timeseries
	}
	return fields
}

// MarshalJSON flattens the row into a single JSON object
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields())
}

func isMetricColumn(name string, extras map[string]bool) bool {
	return lo.Contains(MetricColumns, name) ||
		strings.HasPrefix(name, extraPrefix) ||
		extras[name]
}
