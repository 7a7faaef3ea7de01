package domain

import (
	"time"
)

// Table is the tabular contract consumed by the dashboard tables
type Table struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// represents a pivot table pushed to the export sink
type ExportData struct {
	View        string    `json:"view"`
	GroupBy     string    `json:"group_by"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	Table
}
