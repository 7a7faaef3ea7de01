package pivot

import (
	"testing"

	"adpivot/internal/domain"
)

func TestAggregateFanOutAddsFullMetricsToEachGroup(t *testing.T) {
	ads := decodeAds(t, `[
		{"spend": 90, "revenue": 180, "impressions": 900, "clicks": 9, "f_angles": ["Pain", "Gain", "Fear", "Pain"]}
	]`)

	groups := Aggregate(ads, "f_angles", AggregateOptions{})

	if groups.Len() != 3 {
		t.Fatalf("got %d groups, want 3 (distinct values)", groups.Len())
	}
	for _, name := range []string{"Pain", "Gain", "Fear"} {
		g, ok := groups.Get(name)
		if !ok {
			t.Fatalf("group %q missing", name)
		}
		if g.AdsCount != 1 {
			t.Errorf("%s adsCount = %d, want 1", name, g.AdsCount)
		}
		assertFloat(t, g.Spend, 90, name+" spend")
		assertFloat(t, g.Revenue, 180, name+" revenue")
		assertFloat(t, g.Impressions, 900, name+" impressions")
		assertFloat(t, g.Clicks, 9, name+" clicks")
	}
}

func TestAggregateUnknownBucketing(t *testing.T) {
	ads := decodeAds(t, `[
		{"spend": 1},
		{"spend": 2, "f_offers": ""},
		{"spend": 3, "f_offers": "   "},
		{"spend": 4, "f_offers": []},
		{"spend": 5, "f_offers": null},
		{"spend": 6, "f_offers": "BOGO"},
		{"spend": 7, "f_offers": ["", "  "]}
	]`)

	groups := Aggregate(ads, "f_offers", AggregateOptions{})

	unknown, ok := groups.Get(domain.UnknownValue)
	if !ok {
		t.Fatal("Unknown group missing")
	}
	if unknown.AdsCount != 5 {
		t.Errorf("Unknown adsCount = %d, want 5", unknown.AdsCount)
	}
	assertFloat(t, unknown.Spend, 15, "Unknown spend")

	// blank array elements are skipped, not bucketed
	if groups.Len() != 2 {
		t.Errorf("got groups %v, want Unknown and BOGO", groupNames(groups))
	}
}

func TestAggregateWithoutGroupByIsTotal(t *testing.T) {
	ads := decodeAds(t, `[{"spend": 1, "f_products": "A"}, {"spend": 2, "f_products": ["A", "B"]}]`)

	groups := Aggregate(ads, "", AggregateOptions{})

	if groups.Len() != 1 {
		t.Fatalf("got %d groups, want 1", groups.Len())
	}
	total, _ := groups.Get(TotalKey)
	if total == nil || total.AdsCount != 2 {
		t.Fatalf("Total group = %+v", total)
	}
	assertFloat(t, total.Spend, 3, "Total spend")
}

func TestAggregateRevenueFallback(t *testing.T) {
	ads := decodeAds(t, `[
		{"revenue": 10, "windsor": {"action_values_omni_purchase": 25}},
		{"revenue": 10, "windsor": {"action_values_omni_purchase": 0}},
		{"revenue": "7.5"},
		{"windsor": {"action_values_omni_purchase": "12"}}
	]`)

	groups := Aggregate(ads, "", AggregateOptions{})
	total, _ := groups.Get(TotalKey)

	assertFloat(t, total.Revenue, 25+10+7.5+12, "revenue")
}

func TestAggregateNestedMetrics(t *testing.T) {
	ads := decodeAds(t, `[
		{"f_products": "A", "metrics": {"purchases": 2, "add_to_cart": 5, "label": "x"}},
		{"f_products": "A", "metrics": {"purchases": 3}},
		{"f_products": "A", "metrics": "not an object"}
	]`)

	g, _ := Aggregate(ads, "f_products", AggregateOptions{}).Get("A")

	assertFloat(t, g.Extra["purchases"], 5, "purchases")
	assertFloat(t, g.Extra["add_to_cart"], 5, "add_to_cart")
	if _, ok := g.Extra["label"]; ok {
		t.Error("non-numeric metric was summed")
	}
}

func TestAggregateTimeseriesBuckets(t *testing.T) {
	ads := decodeAds(t, `[
		{"f_products": "A", "spend": 10, "start_date": "2024-01-02T10:00:00Z"},
		{"f_products": "A", "spend": 5, "start_date": "2024-01-02"},
		{"f_products": "A", "spend": 1, "date": "2024-01-01"},
		{"f_products": "A", "spend": 100}
	]`)

	g, _ := Aggregate(ads, "f_products", AggregateOptions{Timeseries: true}).Get("A")

	if g.AdsCount != 4 {
		t.Errorf("adsCount = %d, want 4", g.AdsCount)
	}
	if len(g.Buckets) != 2 {
		t.Fatalf("got %d buckets, want 2", len(g.Buckets))
	}
	day := g.Buckets["2024-01-02"]
	if day == nil || day.AdsCount != 2 {
		t.Fatalf("2024-01-02 bucket = %+v", day)
	}
	assertFloat(t, day.Spend, 15, "bucket spend")
}

func TestAggregateKeepsAdsOnlyWhenAsked(t *testing.T) {
	ads := decodeAds(t, `[{"f_products": "A"}]`)

	g, _ := Aggregate(ads, "f_products", AggregateOptions{}).Get("A")
	if len(g.Ads) != 0 {
		t.Error("ads retained without KeepAds")
	}

	g, _ = Aggregate(ads, "f_products", AggregateOptions{KeepAds: true}).Get("A")
	if len(g.Ads) != 1 {
		t.Error("ads not retained with KeepAds")
	}
}

func TestAggregateOrderIsFirstAppearance(t *testing.T) {
	ads := decodeAds(t, `[{"k": "c"}, {"k": "a"}, {"k": ["b", "c"]}, {"k": "a"}]`)

	got := groupNames(Aggregate(ads, "k", AggregateOptions{}))
	if !equalStrings(got, []string{"c", "a", "b"}) {
		t.Errorf("order = %v", got)
	}
}

func groupNames(groups *Groups) []string {
	var out []string
	for _, g := range groups.All() {
		out = append(out, g.Name)
	}
	return out
}
