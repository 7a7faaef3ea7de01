package pivot

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"adpivot/internal/domain"

	"github.com/samber/lo"
)

// DefaultTopN is the number of values shown in a distribution string
const DefaultTopN = 5

// row orderings accepted by FinalizeOptions.SortBy; "name" sorts ascending,
// the rest descending
var sortKeys = map[string]func(Row) float64{
	"adsCount":    func(r Row) float64 { return float64(r.AdsCount) },
	"spend":       func(r Row) float64 { return r.Spend },
	"revenue":     func(r Row) float64 { return r.Revenue },
	"impressions": func(r Row) float64 { return r.Impressions },
	"clicks":      func(r Row) float64 { return r.Clicks },
	"roas":        func(r Row) float64 { return r.ROAS },
	"ctr":         func(r Row) float64 { return r.CTR },
	"cpc":         func(r Row) float64 { return r.CPC },
	"revPerAd":    func(r Row) float64 { return r.RevPerAd },
}

// FinalizeOptions shape the rows built from aggregated groups
type FinalizeOptions struct {
	Columns []Column

	// report CTR as a percentage (x100) instead of a fraction
	CTRPercent bool

	TopN     int
	ShowMore bool

	SortBy string
	Limit  int
}

// Finalize turns groups into rows: derived ratios, distribution strings for
// dimension columns and date-sorted timeseries. Rows keep first-appearance
// order unless SortBy is set.
func Finalize(groups *Groups, opts FinalizeOptions) []Row {
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	all := groups.All()

	extras := make(map[string]bool)
	for _, g := range all {
		for name := range g.Extra {
			extras[name] = true
		}
	}

	var distributionColumns, extraColumns []Column
	for _, col := range opts.Columns {
		if isMetricColumn(col.Name, extras) {
			if !lo.Contains(MetricColumns, col.Name) {
				extraColumns = append(extraColumns, col)
			}
			continue
		}
		distributionColumns = append(distributionColumns, col)
	}

	rows := make([]Row, 0, len(all))
	for _, g := range all {
		row := Row{
			Name:    g.Name,
			Metrics: deriveMetrics(g.AdsCount, g.Totals, opts.CTRPercent),
		}

		if len(g.Extra) > 0 || len(extraColumns) > 0 {
			row.Extra = make(map[string]float64, len(g.Extra)+len(extraColumns))
			for _, col := range extraColumns {
				row.Extra[strings.TrimPrefix(col.Name, extraPrefix)] = 0
			}
			for name, value := range g.Extra {
				row.Extra[name] = value
			}
		}

		if len(distributionColumns) > 0 {
			row.Distributions = make(map[string]string, len(distributionColumns))
			for _, col := range distributionColumns {
				row.Distributions[col.Name] = Distribution(g.Ads, col.Field, topN, opts.ShowMore)
			}
		}

		if groups.HasTimeseries() {
			row.Timeseries = timeseries(g, opts.CTRPercent)
		}

		rows = append(rows, row)
	}

	sortRows(rows, opts.SortBy)

	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	return rows
}

// Distribution counts the values of field across ads and renders the topN
// most frequent as "value (count)" joined by ", ". Ties keep first
// appearance. With showMore, " + K more" reports the values left out.
func Distribution(ads []domain.Ad, field string, topN int, showMore bool) string {
	counts := make(map[string]int)
	var order []string

	for _, ad := range ads {
		for _, value := range Values(ad, field) {
			if counts[value] == 0 {
				order = append(order, value)
			}
			counts[value]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	shown := order
	if topN > 0 && len(shown) > topN {
		shown = shown[:topN]
	}

	parts := lo.Map(shown, func(value string, _ int) string {
		return fmt.Sprintf("%s (%d)", value, counts[value])
	})
	out := strings.Join(parts, ", ")

	if rest := len(order) - len(shown); showMore && rest > 0 {
		out += fmt.Sprintf(" + %d more", rest)
	}
	return out
}

func timeseries(g *Group, ctrPercent bool) []Point {
	dates := lo.Keys(g.Buckets)
	sort.Strings(dates)

	points := make([]Point, 0, len(dates))
	for _, date := range dates {
		b := g.Buckets[date]
		points = append(points, Point{
			Date:    date,
			Metrics: deriveMetrics(b.AdsCount, b.Totals, ctrPercent),
		})
	}
	return points
}

// deriveMetrics computes the ratios with division by zero protection
func deriveMetrics(adsCount int, t Totals, ctrPercent bool) Metrics {
	m := Metrics{
		AdsCount:    adsCount,
		Spend:       t.Spend,
		Revenue:     t.Revenue,
		Impressions: t.Impressions,
		Clicks:      t.Clicks,
		ROAS:        ratio(t.Revenue, t.Spend),
		CTR:         ratio(t.Clicks, t.Impressions),
		CPC:         ratio(t.Spend, t.Clicks),
		RevPerAd:    ratio(t.Revenue, float64(adsCount)),
	}
	if ctrPercent {
		m.CTR *= 100
	}
	return m
}

func ratio(numerator, denominator float64) float64 {
	if denominator <= 0 {
		return 0
	}
	r := numerator / denominator
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

func sortRows(rows []Row, sortBy string) {
	if sortBy == "name" {
		sort.SliceStable(rows, func(i, j int) bool {
			return strings.ToLower(rows[i].Name) < strings.ToLower(rows[j].Name)
		})
		return
	}
	key, ok := sortKeys[sortBy]
	if !ok {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return key(rows[i]) > key(rows[j])
	})
}
