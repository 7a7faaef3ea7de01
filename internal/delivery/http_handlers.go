package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"adpivot/internal/domain"
	"adpivot/internal/pivot"
	"adpivot/internal/usecase"
	"adpivot/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// handles HTTP requests
type HTTPHandlers struct {
	pivotService *usecase.PivotService
	logger       *logger.Logger
}

// creates new HTTP handlers
func NewHTTPHandlers(pivotService *usecase.PivotService, logger *logger.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		pivotService: pivotService,
		logger:       logger,
	}
}

// GetData returns a tabular pivot of the ads
func (h *HTTPHandlers) GetData(c *gin.Context) {
	req, err := h.tableRequest(c, usecase.DefaultGroupBy)
	if err != nil {
		h.badRequest(c, "Invalid parameters", err)
		return
	}

	table, err := h.pivotService.Table(c.Request.Context(), "data", req)
	if err != nil {
		h.respondError(c, "Failed to build pivot table", err, nil)
		return
	}

	c.JSON(http.StatusOK, table)
}

// GetDrilldown groups by product, use case or angle under the chosen parents
func (h *HTTPHandlers) GetDrilldown(c *gin.Context) {
	table, err := h.pivotService.Drilldown(c.Request.Context(), usecase.DrilldownRequest{
		Level:    strings.TrimSpace(c.Query("level")),
		Query:    strings.TrimSpace(c.Query("query")),
		Platform: strings.TrimSpace(c.Query("platform")),
		Product:  strings.TrimSpace(c.Query("product")),
		Usecase:  strings.TrimSpace(c.Query("usecase")),
		Angle:    strings.TrimSpace(c.Query("angle")),
	})
	if err != nil {
		h.respondError(c, "Failed to build drilldown", err, nil)
		return
	}

	c.JSON(http.StatusOK, table)
}

// GetFacet serves one of the fixed single-dimension views
func (h *HTTPHandlers) GetFacet(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var legacyEmpty gin.H
		if usecase.Facets[name].Legacy {
			legacyEmpty = gin.H{name: []any{}}
		}

		criteria, err := pivot.CriteriaFromQuery(c.Request.URL.Query())
		if err != nil {
			h.badRequest(c, "Invalid parameters", err)
			return
		}
		// legacy drill parameters name the level, not the ad field
		criteria.Dimensions = dropAliases(criteria.Dimensions, "product", "usecase")
		if product := strings.TrimSpace(c.Query("product")); product != "" {
			criteria = criteria.With(domain.FieldProducts, product)
		}
		if uc := strings.TrimSpace(c.Query("usecase")); uc != "" {
			criteria = criteria.With(domain.FieldUseCase, uc)
		}

		fetch := h.pivotService.Loader().Params(c.Query("query"), c.Query("platform"))
		table, facet, err := h.pivotService.Facet(c.Request.Context(), name, fetch, criteria)
		if err != nil {
			h.respondError(c, "Failed to build "+name, err, legacyEmpty)
			return
		}

		if facet.Legacy {
			c.JSON(http.StatusOK, gin.H{name: table.Rows})
			return
		}
		c.JSON(http.StatusOK, table)
	}
}

// GetAds returns the raw upstream ads
func (h *HTTPHandlers) GetAds(c *gin.Context) {
	fetch := h.pivotService.Loader().Params(c.Query("query"), c.Query("platform"))

	ads, err := h.pivotService.Ads(c.Request.Context(), fetch)
	if err != nil {
		h.respondError(c, "Failed to load ads", err, nil)
		return
	}

	c.JSON(http.StatusOK, ads)
}

// GetSummary totals the filtered ads into one row
func (h *HTTPHandlers) GetSummary(c *gin.Context) {
	criteria, err := pivot.CriteriaFromQuery(c.Request.URL.Query())
	if err != nil {
		h.badRequest(c, "Invalid parameters", err)
		return
	}

	fetch := h.pivotService.Loader().Params(c.Query("query"), c.Query("platform"))
	row, err := h.pivotService.Summary(c.Request.Context(), fetch, criteria)
	if err != nil {
		h.respondError(c, "Failed to build summary", err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary":  row,
		"ctr_unit": h.pivotService.CTRUnit(),
	})
}

// InvalidateCache drops one cached ad list, or all of them when neither
// query nor platform is given
func (h *HTTPHandlers) InvalidateCache(c *gin.Context) {
	var fetch *domain.FetchParams
	if c.Query("query") != "" || c.Query("platform") != "" {
		params := h.pivotService.Loader().Params(c.Query("query"), c.Query("platform"))
		fetch = &params
	}

	if err := h.pivotService.InvalidateCache(c.Request.Context(), fetch); err != nil {
		h.respondError(c, "Failed to invalidate cache", err, nil)
		return
	}

	scope := "all"
	if fetch != nil {
		scope = fetch.CacheKey()
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Cache invalidated",
		"scope":      scope,
		"request_id": c.GetString("request_id"),
	})
}

// ExportRun pushes a tabular pivot to the configured sink
func (h *HTTPHandlers) ExportRun(c *gin.Context) {
	req, err := h.tableRequest(c, usecase.DefaultGroupBy, "view")
	if err != nil {
		h.badRequest(c, "Invalid parameters", err)
		return
	}

	data, err := h.pivotService.Export(c.Request.Context(), usecase.ExportRequest{
		View:         c.DefaultQuery("view", "data"),
		TableRequest: req,
	})
	if err != nil {
		h.respondError(c, "Export failed", err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Export completed successfully",
		"view":         data.View,
		"group_by":     data.GroupBy,
		"rows":         len(data.Rows),
		"generated_at": data.GeneratedAt.Format(time.RFC3339),
		"request_id":   c.GetString("request_id"),
	})
}

// GetAPIInfo returns API v1 information and available endpoints
func (h *HTTPHandlers) GetAPIInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"api_version": "v1",
		"service":     "adpivot",
		"description": "Pivoted ad performance views over the upstream analytics API",
		"ctr_unit":    h.pivotService.CTRUnit(),
		"sort_keys":   pivot.SortKeys(),
		"endpoints": gin.H{
			"data": gin.H{
				"path":    "/api/v1/data",
				"methods": []string{"GET"},
				"parameters": gin.H{
					"groupby":    "Dimension path to group by (default f_products)",
					"fields":     "Comma separated output columns (default name,adsCount,usecases,angles)",
					"platform":   "Optional: case-insensitive platform filter",
					"start":      "Optional: start date (YYYY-MM-DD or RFC3339)",
					"end":        "Optional: end date, a bare date covers the whole day",
					"timeseries": "Optional: true to add per-day breakdowns",
					"sort":       "Optional: name or a metric, descending",
					"limit":      "Optional: maximum number of rows",
					"query":      "Optional: upstream query term",
					"search":     "Optional: local free-text search",
					"<field>":    "Any other parameter filters on that ad field",
				},
				"example": "/api/v1/data?groupby=f_angles&fields=name,adsCount,spend,roas&platform=meta",
			},
			"drilldown": gin.H{
				"path":       "/api/v1/drilldown",
				"methods":    []string{"GET"},
				"parameters": gin.H{"level": "product | usecase | angle", "product": "", "usecase": "", "angle": "", "query": "", "platform": ""},
				"example":    "/api/v1/drilldown?level=usecase&product=Sleep%20Gummies",
			},
			"facets":  []string{"/api/v1/products", "/api/v1/usecases", "/api/v1/angles", "/api/v1/offers"},
			"ads":     "/api/v1/ads",
			"summary": "/api/v1/summary",
			"cache":   gin.H{"path": "/api/v1/cache/invalidate", "methods": []string{"POST"}},
			"export":  gin.H{"path": "/api/v1/export/run", "methods": []string{"POST"}},
		},
		"metrics": gin.H{
			"roas":     "Return On Ad Spend (revenue / spend)",
			"ctr":      "Click-Through Rate (clicks / impressions)",
			"cpc":      "Cost Per Click (spend / clicks)",
			"revPerAd": "Revenue per ad (revenue / adsCount)",
		},
		"request_id": c.GetString("request_id"),
	})
}

// HealthCheck returns the health status of the service
func (h *HTTPHandlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"service":    "adpivot",
		"request_id": c.GetString("request_id"),
	})
}

// tableRequest reads the generic pivot parameters
func (h *HTTPHandlers) tableRequest(c *gin.Context, defaultGroupBy string, reserved ...string) (usecase.TableRequest, error) {
	criteria, err := pivot.CriteriaFromQuery(c.Request.URL.Query(), reserved...)
	if err != nil {
		return usecase.TableRequest{}, err
	}

	query := pivot.Query{
		GroupBy:  strings.TrimSpace(c.DefaultQuery("groupby", defaultGroupBy)),
		Criteria: criteria,
		SortBy:   strings.TrimSpace(c.Query("sort")),
	}

	if fields := c.Query("fields"); strings.TrimSpace(fields) != "" {
		query.Columns = pivot.ParseColumns(fields)
	}

	if ts := c.Query("timeseries"); ts != "" {
		if query.Timeseries, err = strconv.ParseBool(ts); err != nil {
			return usecase.TableRequest{}, fmt.Errorf("invalid timeseries %q", ts)
		}
	}

	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return usecase.TableRequest{}, fmt.Errorf("invalid limit %q", limit)
		}
		query.Limit = n
	}

	return usecase.TableRequest{
		Fetch: h.pivotService.Loader().Params(c.Query("query"), c.Query("platform")),
		Query: query,
	}, nil
}

func (h *HTTPHandlers) badRequest(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":      message,
		"message":    err.Error(),
		"request_id": c.GetString("request_id"),
	})
}

// respondError maps service errors to a status. extra carries the empty
// payload legacy clients expect alongside the error.
func (h *HTTPHandlers) respondError(c *gin.Context, message string, err error, extra gin.H) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, usecase.ErrInvalidArgument),
		errors.Is(err, usecase.ErrInvalidLevel),
		errors.Is(err, usecase.ErrInvalidFacet),
		errors.Is(err, pivot.ErrInvalidGroupBy),
		errors.Is(err, pivot.ErrInvalidSort):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, usecase.ErrUpstream):
		status = http.StatusBadGateway
	case errors.Is(err, usecase.ErrExportDisabled):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		h.logger.WithContext(c.Request.Context()).WithError(err).Error(message)
	}

	body := gin.H{}
	for k, v := range extra {
		body[k] = v
	}
	body["error"] = message
	body["message"] = err.Error()
	body["request_id"] = c.GetString("request_id")

	c.JSON(status, body)
}

func dropAliases(dims []pivot.DimensionFilter, names ...string) []pivot.DimensionFilter {
	return lo.Reject(dims, func(d pivot.DimensionFilter, _ int) bool {
		return lo.Contains(names, d.Field)
	})
}
