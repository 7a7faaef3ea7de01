package pivot

import (
	"encoding/json"
	"math"
	"testing"

	"adpivot/internal/domain"
)

// decodeAds parses a JSON array the way the upstream client does
func decodeAds(t *testing.T, raw string) []domain.Ad {
	t.Helper()
	var ads []domain.Ad
	if err := json.Unmarshal([]byte(raw), &ads); err != nil {
		t.Fatalf("decode ads: %v", err)
	}
	return ads
}

func findRow(t *testing.T, rows []Row, name string) Row {
	t.Helper()
	for _, r := range rows {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("row %q not found in %d rows", name, len(rows))
	return Row{}
}

func assertFloat(t *testing.T, got, want float64, msg string) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s: got %v, want %v", msg, got, want)
	}
}

func assertFinite(t *testing.T, m Metrics, msg string) {
	t.Helper()
	for name, v := range map[string]float64{"roas": m.ROAS, "ctr": m.CTR, "cpc": m.CPC, "revPerAd": m.RevPerAd} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s: %s is %v", msg, name, v)
		}
	}
}

func names(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
