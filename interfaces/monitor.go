package interfaces

import (
	"context"
	"time"
)

// RunSummary describes one completed monitoring pass.
type RunSummary struct {
	RunID           string    `json:"runId"`
	StartedAt       time.Time `json:"startedAt"`
	CompletedAt     time.Time `json:"completedAt"`
	MessagesFetched int       `json:"messagesFetched"`
	ReportsParsed   int       `json:"reportsParsed"`
	ReportsFailed   int       `json:"reportsFailed"`
	IssueCount      int       `json:"issueCount"`
	CleanCount      int       `json:"cleanCount"`
	Dispatched      bool      `json:"dispatched"`
}

// MonitorService drives one full pass: fetch report mail, parse and
// store every report, classify, compose a digest and dispatch it.
type MonitorService interface {
	Run(ctx context.Context) (*RunSummary, error)
}
