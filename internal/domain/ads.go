package domain

import (
	"encoding/json"
	"strings"
)

// Ad is one upstream ad record. Keys vary by platform and some are nested,
// so the record is kept as decoded JSON rather than a fixed struct.
type Ad map[string]any

// Well-known ad fields
const (
	FieldPlatform    = "platform"
	FieldSpend       = "spend"
	FieldRevenue     = "revenue"
	FieldImpressions = "impressions"
	FieldClicks      = "clicks"
	FieldStartDate   = "start_date"
	FieldDate        = "date"
	FieldMetrics     = "metrics"
	FieldTitle       = "title"

	FieldProducts  = "f_products"
	FieldUseCase   = "f_use_case"
	FieldAngles    = "f_angles"
	FieldOffers    = "f_offers"
	FieldPromotion = "f_promotion"

	// purchase value reported by the windsor connector, preferred over revenue
	FieldPurchaseValue = "windsor.action_values_omni_purchase"
)

// UnknownValue is the group key for ads with an absent or empty dimension.
const UnknownValue = "Unknown"

// AdsPayload is the upstream response envelope.
type AdsPayload struct {
	Data struct {
		Results json.RawMessage `json:"results"`
	} `json:"data"`
}

// Ads decodes data.results. ok is false when results is missing or not an
// array. Elements that are not JSON objects are dropped and counted in skipped.
func (p AdsPayload) Ads() (ads []Ad, skipped int, ok bool) {
	raw := p.Data.Results
	if len(raw) == 0 || raw[0] != '[' {
		return []Ad{}, 0, false
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return []Ad{}, 0, false
	}

	ads = make([]Ad, 0, len(elems))
	for _, elem := range elems {
		var ad Ad
		if len(elem) == 0 || elem[0] != '{' || json.Unmarshal(elem, &ad) != nil {
			skipped++
			continue
		}
		ads = append(ads, ad)
	}
	return ads, skipped, true
}

// FetchParams select which ad list the upstream returns
type FetchParams struct {
	Query    string `json:"query"`
	Platform string `json:"platform,omitempty"`
}

// CacheKey returns a string representation of FetchParams for use as cache key
func (p FetchParams) CacheKey() string {
	return strings.TrimSpace(p.Query) + "|" + strings.ToLower(strings.TrimSpace(p.Platform))
}
