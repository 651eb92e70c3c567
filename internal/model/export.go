package model

import "time"

// ExportResult represents the result of one export operation
type ExportResult struct {
	Type        string    `json:"type"` // json, records, csv, npz, database
	Path        string    `json:"path"`
	RecordCount int       `json:"record_count"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ExportedAt  time.Time `json:"exported_at"`
}
