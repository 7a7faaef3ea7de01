package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adpivot/internal/domain"
	"adpivot/internal/pivot"
	"adpivot/pkg/logger"
	"adpivot/pkg/metrics"
)

var (
	ErrInvalidLevel    = errors.New("invalid drilldown level")
	ErrInvalidFacet    = errors.New("invalid facet")
	ErrUpstream        = errors.New("upstream ads API failed")
	ErrExportDisabled  = errors.New("export sink not configured")
	ErrInvalidArgument = errors.New("invalid argument")
)

// DefaultGroupBy is the dimension tabular views group by when none is given
const DefaultGroupBy = domain.FieldProducts

// DefaultTableColumns are the columns of a tabular view without "fields"
var DefaultTableColumns = pivot.Columns("name", "adsCount", "usecases", "angles")

// DrilldownLevels map a drilldown level to the dimension it groups by
var DrilldownLevels = map[string]string{
	"product": domain.FieldProducts,
	"usecase": domain.FieldUseCase,
	"angle":   domain.FieldAngles,
}

var drilldownColumns = pivot.Columns("name", "adsCount", "usecases", "angles", "offers", "promotions")

// Facet is a fixed single-dimension view
type Facet struct {
	Field      string
	Columns    []pivot.Column
	Timeseries bool

	// Legacy facets answer {<name>: rows} instead of {columns, rows}
	Legacy bool
}

// Facets are the named views served besides the generic table
var Facets = map[string]Facet{
	"products": {Field: domain.FieldProducts, Columns: legacyFacetColumns, Legacy: true},
	"usecases": {Field: domain.FieldUseCase, Columns: legacyFacetColumns, Legacy: true},
	"angles":   {Field: domain.FieldAngles, Columns: legacyFacetColumns, Legacy: true},
	"offers": {
		Field:      domain.FieldOffers,
		Columns:    pivot.Columns("name", "adsCount", "spend", "revenue", "roas", "ctr"),
		Timeseries: true,
	},
}

var legacyFacetColumns = pivot.Columns("name", "adsCount", "spend", "impressions")

// TableRequest selects the ads to load and the pivot to run over them
type TableRequest struct {
	Fetch domain.FetchParams
	Query pivot.Query
}

// DrilldownRequest narrows by the levels above the requested one
type DrilldownRequest struct {
	Level    string
	Query    string
	Platform string
	Product  string
	Usecase  string
	Angle    string
}

// ExportRequest pushes one tabular view to the sink
type ExportRequest struct {
	View string
	TableRequest
}

type PivotService struct {
	loader   *AdLoader
	engine   *pivot.Engine
	exporter domain.ExportClient
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewPivotService creates the service. A nil exporter disables Export.
func NewPivotService(
	loader *AdLoader,
	engine *pivot.Engine,
	exporter domain.ExportClient,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *PivotService {
	return &PivotService{
		loader:   loader,
		engine:   engine,
		exporter: exporter,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Loader exposes the ad loader for request parameter normalization
func (s *PivotService) Loader() *AdLoader {
	return s.loader
}

// CTRUnit reports the CTR convention of every row this service returns
func (s *PivotService) CTRUnit() string {
	return s.engine.CTRUnit()
}

// Table runs a pivot over the requested ads and projects the requested columns
func (s *PivotService) Table(ctx context.Context, view string, req TableRequest) (domain.Table, error) {
	start := time.Now()
	log := s.logger.WithContext(ctx)

	query := req.Query
	if query.Columns == nil {
		query.Columns = DefaultTableColumns
	}

	ads, err := s.loader.Load(ctx, req.Fetch)
	if err != nil {
		s.metrics.RecordPivotRun(view, "failed", 0, time.Since(start))
		log.WithError(err).Error("Failed to load ads")
		return domain.Table{}, err
	}

	rows, err := s.run(ads, query)
	if err != nil {
		s.metrics.RecordPivotRun(view, "invalid", 0, time.Since(start))
		return domain.Table{}, err
	}

	duration := time.Since(start)
	s.metrics.RecordPivotRun(view, "success", len(rows), duration)

	log.WithFields(map[string]any{
		"view":     view,
		"group_by": query.GroupBy,
		"ads":      len(ads),
		"rows":     len(rows),
		"duration": duration,
	}).Info("Pivot completed")

	return pivot.Project(rows, query.Columns), nil
}

// Drilldown groups by the requested level after narrowing by the levels
// above it. An upstream failure degrades to an empty table.
func (s *PivotService) Drilldown(ctx context.Context, req DrilldownRequest) (domain.Table, error) {
	start := time.Now()
	log := s.logger.WithContext(ctx)

	level := req.Level
	if level == "" {
		level = "product"
	}
	groupBy, ok := DrilldownLevels[level]
	if !ok {
		return domain.Table{}, fmt.Errorf("%w: %q", ErrInvalidLevel, req.Level)
	}

	criteria := pivot.Criteria{Platform: req.Platform, Search: req.Query}
	if req.Product != "" {
		criteria = criteria.With(domain.FieldProducts, req.Product)
	}
	if req.Usecase != "" {
		criteria = criteria.With(domain.FieldUseCase, req.Usecase)
	}
	if req.Angle != "" {
		criteria = criteria.With(domain.FieldAngles, req.Angle)
	}

	status := "success"
	ads, err := s.loader.Load(ctx, s.loader.Params(req.Query, req.Platform))
	if err != nil {
		status = "degraded"
		log.WithError(err).Warn("Drilldown serving empty ad list")
		ads = []domain.Ad{}
	}

	query := pivot.Query{
		GroupBy:    groupBy,
		Criteria:   criteria,
		Timeseries: true,
		Columns:    drilldownColumns,
	}
	rows, err := s.run(ads, query)
	if err != nil {
		return domain.Table{}, err
	}

	duration := time.Since(start)
	s.metrics.RecordPivotRun("drilldown", status, len(rows), duration)

	log.WithFields(map[string]any{
		"level":    level,
		"group_by": groupBy,
		"ads":      len(ads),
		"rows":     len(rows),
		"duration": duration,
	}).Info("Drilldown completed")

	return pivot.Project(rows, drilldownColumns), nil
}

// Facet runs one of the named Facets
func (s *PivotService) Facet(ctx context.Context, name string, fetch domain.FetchParams, criteria pivot.Criteria) (domain.Table, Facet, error) {
	facet, ok := Facets[name]
	if !ok {
		return domain.Table{}, Facet{}, fmt.Errorf("%w: %q", ErrInvalidFacet, name)
	}

	table, err := s.Table(ctx, name, TableRequest{
		Fetch: fetch,
		Query: pivot.Query{
			GroupBy:    facet.Field,
			Criteria:   criteria,
			Timeseries: facet.Timeseries,
			Columns:    facet.Columns,
		},
	})
	return table, facet, err
}

// Ads returns the raw ad list, narrowed to the requested platform
func (s *PivotService) Ads(ctx context.Context, fetch domain.FetchParams) ([]domain.Ad, error) {
	ads, err := s.loader.Load(ctx, fetch)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to load ads")
		return nil, err
	}

	// the upstream does not always honor its platform parameter
	return pivot.Filter(ads, pivot.Criteria{Platform: fetch.Platform}), nil
}

// Summary totals every ad matching criteria into a single row
func (s *PivotService) Summary(ctx context.Context, fetch domain.FetchParams, criteria pivot.Criteria) (pivot.Row, error) {
	start := time.Now()

	ads, err := s.loader.Load(ctx, fetch)
	if err != nil {
		s.metrics.RecordPivotRun("summary", "failed", 0, time.Since(start))
		s.logger.WithContext(ctx).WithError(err).Error("Failed to load ads")
		return pivot.Row{}, err
	}

	rows, err := s.run(ads, pivot.Query{Criteria: criteria})
	if err != nil {
		return pivot.Row{}, err
	}
	s.metrics.RecordPivotRun("summary", "success", len(rows), time.Since(start))

	if len(rows) == 0 {
		return pivot.Row{Name: pivot.TotalKey}, nil
	}
	return rows[0], nil
}

// InvalidateCache drops the cached ad list for fetch, or all lists when nil
func (s *PivotService) InvalidateCache(ctx context.Context, fetch *domain.FetchParams) error {
	if err := s.loader.Invalidate(ctx, fetch); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to invalidate ads cache")
		return err
	}

	fields := map[string]any{"scope": "all"}
	if fetch != nil {
		fields["scope"] = fetch.CacheKey()
	}
	s.logger.WithContext(ctx).WithFields(fields).Info("Ads cache invalidated")
	return nil
}

// Export runs a tabular view and pushes it to the sink
func (s *PivotService) Export(ctx context.Context, req ExportRequest) (domain.ExportData, error) {
	log := s.logger.WithContext(ctx)

	if s.exporter == nil {
		return domain.ExportData{}, ErrExportDisabled
	}

	view := req.View
	if view == "" {
		view = "data"
	}

	table, err := s.Table(ctx, "export", req.TableRequest)
	if err != nil {
		return domain.ExportData{}, err
	}

	data := domain.ExportData{
		View:        view,
		GroupBy:     req.Query.GroupBy,
		GeneratedAt: s.now().UTC(),
		Table:       table,
	}
	if c := req.Query.Criteria; c.Start != nil {
		data.From = c.Start.Format(time.RFC3339)
	}
	if c := req.Query.Criteria; c.End != nil {
		data.To = c.End.Format(time.RFC3339)
	}

	if err := s.exporter.Export(ctx, data); err != nil {
		log.WithError(err).Error("Failed to export pivot table")
		return domain.ExportData{}, fmt.Errorf("failed to export %s view: %w", view, err)
	}

	log.WithFields(map[string]any{
		"view":     view,
		"group_by": data.GroupBy,
		"rows":     len(data.Rows),
	}).Info("Export completed successfully")

	return data, nil
}

func (s *PivotService) run(ads []domain.Ad, query pivot.Query) ([]pivot.Row, error) {
	rows, err := s.engine.Run(ads, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return rows, nil
}
