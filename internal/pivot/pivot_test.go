package pivot

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"adpivot/internal/domain"
)

const scenarioAds = `[
	{"platform": "meta", "spend": 100, "revenue": 300, "impressions": 1000, "clicks": 20, "start_date": "2024-01-01", "f_products": "A"},
	{"platform": "meta", "spend": 50, "revenue": 0, "impressions": 500, "clicks": 5, "start_date": "2024-01-02", "f_products": ["A", "B"]}
]`

func TestRunScenario(t *testing.T) {
	ads := decodeAds(t, scenarioAds)

	rows, err := Run(ads, Query{GroupBy: "f_products", Timeseries: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	a := findRow(t, rows, "A")
	if a.AdsCount != 2 {
		t.Errorf("A adsCount = %d, want 2", a.AdsCount)
	}
	assertFloat(t, a.Spend, 150, "A spend")
	assertFloat(t, a.Revenue, 300, "A revenue")
	assertFloat(t, a.ROAS, 2, "A roas")
	assertFloat(t, a.CTR, 25.0/1500.0, "A ctr")
	if len(a.Timeseries) != 2 || a.Timeseries[0].Date != "2024-01-01" || a.Timeseries[1].Date != "2024-01-02" {
		t.Errorf("A timeseries = %+v", a.Timeseries)
	}

	b := findRow(t, rows, "B")
	if b.AdsCount != 1 {
		t.Errorf("B adsCount = %d, want 1", b.AdsCount)
	}
	assertFloat(t, b.Spend, 50, "B spend")
	assertFloat(t, b.Revenue, 0, "B revenue")
	assertFloat(t, b.ROAS, 0, "B roas")
	if len(b.Timeseries) != 1 || b.Timeseries[0].Date != "2024-01-02" {
		t.Errorf("B timeseries = %+v", b.Timeseries)
	}
}

func TestRunIdempotent(t *testing.T) {
	ads := decodeAds(t, `[
		{"platform": "meta", "spend": 3, "f_angles": ["x", "y", "z"], "f_use_case": ["u1", "u2"], "start_date": "2024-02-03", "metrics": {"leads": 1}},
		{"platform": "tiktok", "spend": 7, "f_angles": "y", "f_use_case": "u2", "start_date": "2024-02-01", "metrics": {"leads": 2, "views": 9}},
		{"platform": "meta", "spend": 1, "start_date": "2024-02-02"},
		{"platform": "meta", "spend": 2, "f_angles": ["z", "x"], "f_use_case": ["u3", "u1"], "start_date": "2024-02-01"}
	]`)
	q := Query{
		GroupBy:    "f_angles",
		Timeseries: true,
		Columns:    Columns("name", "spend", "usecases", "leads"),
	}
	engine := New(WithShowMore(true), WithTopN(2))

	run := func() []byte {
		rows, err := engine.Run(ads, q)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		raw, err := json.Marshal(Project(rows, q.Columns))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return raw
	}

	first, second := run(), run()
	if !bytes.Equal(first, second) {
		t.Errorf("runs differ:\n%s\n%s", first, second)
	}
}

func TestRunTimeseriesCompleteness(t *testing.T) {
	ads := decodeAds(t, `[
		{"k": ["a", "b"], "start_date": "2024-03-05"},
		{"k": "a", "date": "2024-03-01T10:00:00Z"},
		{"k": "a", "start_date": "2024-03-05T23:00:00"},
		{"k": "b", "windsor": {"ad_created_time": "2024-02-28 08:00:00"}},
		{"k": "c", "start_date": "2024-03-02"}
	]`)

	rows, err := Run(ads, Query{GroupBy: "k", Timeseries: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, r := range rows {
		total := 0
		for i, p := range r.Timeseries {
			total += p.AdsCount
			if i > 0 && p.Date <= r.Timeseries[i-1].Date {
				t.Errorf("%s: dates not strictly ascending: %v", r.Name, r.Timeseries)
			}
		}
		if total != r.AdsCount {
			t.Errorf("%s: timeseries adsCount = %d, group adsCount = %d", r.Name, total, r.AdsCount)
		}
	}

	a := findRow(t, rows, "a")
	if len(a.Timeseries) != 2 || a.Timeseries[1].AdsCount != 2 {
		t.Errorf("a timeseries = %+v", a.Timeseries)
	}
}

func TestRunWithoutTimeseries(t *testing.T) {
	rows, err := Run(decodeAds(t, scenarioAds), Query{GroupBy: "f_products"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, r := range rows {
		if r.Timeseries != nil {
			t.Errorf("%s: unexpected timeseries %v", r.Name, r.Timeseries)
		}
	}
}

func TestRunFiltersBeforeGrouping(t *testing.T) {
	ads := decodeAds(t, `[
		{"platform": "Meta", "spend": 1, "f_products": "A", "start_date": "2024-01-01"},
		{"platform": "tiktok", "spend": 2, "f_products": "A", "start_date": "2024-01-01"},
		{"platform": "meta", "spend": 4, "f_products": "B", "start_date": "2024-02-01"}
	]`)
	end, _ := ParseBound("2024-01-31", true)

	rows, err := Run(ads, Query{
		GroupBy:  "f_products",
		Criteria: Criteria{Platform: "meta", End: end},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %v", names(rows))
	}
	assertFloat(t, rows[0].Spend, 1, "A spend")
}

func TestRunEmptyGroupByTotals(t *testing.T) {
	rows, err := Run(decodeAds(t, scenarioAds), Query{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Name != TotalKey {
		t.Fatalf("rows = %v", names(rows))
	}
	assertFloat(t, rows[0].Spend, 150, "total spend")
	if rows[0].AdsCount != 2 {
		t.Errorf("total adsCount = %d", rows[0].AdsCount)
	}
}

func TestRunEmptyInput(t *testing.T) {
	for _, ads := range [][]domain.Ad{nil, {}} {
		rows, err := Run(ads, Query{GroupBy: "f_products", Timeseries: true})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if rows == nil || len(rows) != 0 {
			t.Errorf("Run(%v) = %v, want empty non-nil rows", ads, rows)
		}
	}
}

func TestRunInvalidQuery(t *testing.T) {
	ads := decodeAds(t, scenarioAds)

	tests := []struct {
		name  string
		query Query
		want  error
	}{
		{"empty segment", Query{GroupBy: "a..b"}, ErrInvalidGroupBy},
		{"leading dot", Query{GroupBy: ".a"}, ErrInvalidGroupBy},
		{"unknown sort", Query{GroupBy: "f_products", SortBy: "popularity"}, ErrInvalidSort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Run(ads, tt.query)
			if !errors.Is(err, tt.want) {
				t.Errorf("Run() error = %v, want %v", err, tt.want)
			}
			if rows != nil {
				t.Errorf("Run() rows = %v, want nil", rows)
			}
		})
	}
}

func TestEngineOptions(t *testing.T) {
	ads := decodeAds(t, `[
		{"k": "a", "revenue": 10, "custom_rev": 40, "spend": 10, "impressions": 100, "clicks": 1, "when": "2024-05-01"}
	]`)

	engine := New(WithCTRPercent(true), WithRevenueFields("custom_rev"), WithDateFields("when"))
	if engine.CTRUnit() != "percent" {
		t.Errorf("CTRUnit() = %q", engine.CTRUnit())
	}
	if New().CTRUnit() != "fraction" {
		t.Errorf("default CTRUnit() = %q", New().CTRUnit())
	}

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rows, err := engine.Run(ads, Query{GroupBy: "k", Timeseries: true, Criteria: Criteria{Start: &start}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	assertFloat(t, rows[0].Revenue, 40, "revenue")
	assertFloat(t, rows[0].ROAS, 4, "roas")
	assertFloat(t, rows[0].CTR, 1, "ctr percent")
	if len(rows[0].Timeseries) != 1 || rows[0].Timeseries[0].Date != "2024-05-01" {
		t.Errorf("timeseries = %+v", rows[0].Timeseries)
	}
}

func TestSortKeys(t *testing.T) {
	keys := SortKeys()
	if len(keys) != len(sortKeys)+1 {
		t.Fatalf("SortKeys() = %v", keys)
	}
	for _, k := range keys {
		if err := ValidateSort(k); err != nil {
			t.Errorf("ValidateSort(%q) = %v", k, err)
		}
	}
}
