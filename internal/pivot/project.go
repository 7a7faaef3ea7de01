package pivot

import (
	"adpivot/internal/domain"
)

// Project keeps only the requested columns of each row, producing the
// {columns, rows} table contract. Timeseries travel with the row when present.
func Project(rows []Row, columns []Column) domain.Table {
	names := ColumnNames(columns)

	projected := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		values := make(map[string]any, len(names)+1)
		for _, name := range names {
			values[name], _ = row.Value(name)
		}
		if row.Timeseries != nil {
			values["timeseries"] = row.Timeseries
		}
		projected = append(projected, values)
	}

	return domain.Table{Columns: names, Rows: projected}
}
