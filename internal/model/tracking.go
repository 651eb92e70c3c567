package model

import "time"

// StageMetrics represents metrics for one stage of an archive extraction
type StageMetrics struct {
	Stage     string        `json:"stage"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Items     int64         `json:"items"`
	Errors    int64         `json:"errors"`
}

// ArchiveSummary is the outcome of one archive in a batch run
type ArchiveSummary struct {
	Archive  string         `json:"archive"`
	Status   string         `json:"status"` // completed, partial, failed
	Series   int            `json:"series"`
	Records  int            `json:"records"`
	Warnings int            `json:"warnings"`
	Failures int            `json:"failures"`
	Outputs  []ExportResult `json:"outputs,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// RunSummary aggregates the archive summaries of a batch run
type RunSummary struct {
	RunID     string                  `json:"run_id"`
	StartTime time.Time               `json:"start_time"`
	EndTime   time.Time               `json:"end_time"`
	Status    string                  `json:"status"`
	Archives  []ArchiveSummary        `json:"archives"`
	Stages    map[string]StageMetrics `json:"stages"`
}

// Failed reports whether no archive of the run produced any output
func (s RunSummary) Failed() bool {
	if len(s.Archives) == 0 {
		return true
	}
	for _, a := range s.Archives {
		if a.Status != "failed" {
			return false
		}
	}
	return true
}
