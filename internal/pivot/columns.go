package pivot

import (
	"strings"

	"adpivot/internal/domain"

	"github.com/samber/lo"
)

// ColumnAliases map dashboard column names to the ad fields they summarize
var ColumnAliases = map[string]string{
	"products":   domain.FieldProducts,
	"usecases":   domain.FieldUseCase,
	"angles":     domain.FieldAngles,
	"offers":     domain.FieldOffers,
	"promotions": domain.FieldPromotion,
}

// Column is one requested output column. Name is the output key, Field the
// ad path a distribution column is computed from.
type Column struct {
	Name  string `json:"name"`
	Field string `json:"field"`
}

// NewColumn resolves aliases for a column name
func NewColumn(name string) Column {
	name = strings.TrimSpace(name)
	if field, ok := ColumnAliases[name]; ok {
		return Column{Name: name, Field: field}
	}
	return Column{Name: name, Field: name}
}

// Columns builds columns from names, dropping blanks and duplicates
func Columns(names ...string) []Column {
	columns := make([]Column, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		columns = append(columns, NewColumn(name))
	}
	return lo.UniqBy(columns, func(c Column) string { return c.Name })
}

// ParseColumns parses a comma separated "fields" parameter
func ParseColumns(fields string) []Column {
	return Columns(strings.Split(fields, ",")...)
}

// ColumnNames returns the output keys of columns
func ColumnNames(columns []Column) []string {
	return lo.Map(columns, func(c Column, _ int) string { return c.Name })
}
