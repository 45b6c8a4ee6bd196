// Package connectors orchestrates per-jurisdiction scrape jobs: it schedules
// work on the external job host, deduplicates and validates the returned
// items, and commits resume cursors only when a full batch succeeds.
package connectors

import (
	"strings"
	"time"

	"surplus-backend/lib/caseschema"
)

type ParsingMode string

const (
	ParsingModeRaw        ParsingMode = "raw"
	ParsingModeNormalized ParsingMode = "normalized"
)

// ConnectorKey identifies one jurisdiction. State and county code compare
// case-insensitively.
type ConnectorKey struct {
	State      string `json:"state"`
	CountyCode string `json:"county_code"`
}

func (k ConnectorKey) String() string {
	return strings.ToUpper(k.State) + "-" + strings.ToUpper(k.CountyCode)
}

// ConnectorConfig holds identity and execution parameters for one
// jurisdiction connector. Immutable once loaded into the registry.
type ConnectorConfig struct {
	Key              ConnectorKey `json:"key"`
	SpiderName       string       `json:"spider_name"`
	WatchURLs        []string     `json:"watch_urls"`
	ScheduleInterval int          `json:"schedule_interval"` // seconds
	ParsingMode      ParsingMode  `json:"parsing_mode"`
}

// ScrapedItem is one raw record returned by a scrape job.
type ScrapedItem struct {
	State      string           `json:"state"`
	CountyCode string           `json:"county_code"`
	PropertyID string           `json:"property_id"`
	SaleDate   string           `json:"sale_date,omitempty"`
	Raw        map[string]any   `json:"raw"`
	Normalized *caseschema.Case `json:"normalized,omitempty"`
	RawSha256  string           `json:"raw_sha256,omitempty"`
	// opaque replay position supplied by the job host
	Cursor string `json:"cursor,omitempty"`
}

// StoredCaseRecord is a deduplicated, validated case as remembered by the
// state store. The dedupe key alone is conclusive proof an equivalent raw
// record was already ingested.
type StoredCaseRecord struct {
	CaseRef    string          `json:"case_ref"`
	Normalized caseschema.Case `json:"normalized"`
	DedupeKey  string          `json:"dedupe_key"`
	Connector  ConnectorKey    `json:"connector"`
	PropertyID string          `json:"property_id"`
	SaleDate   string          `json:"sale_date,omitempty"`
	RawSha256  string          `json:"raw_sha256"`
}

// RunStatus is the aggregated, queryable view per connector. Derived cache;
// the run store stays authoritative for resumption.
type RunStatus struct {
	LastRun    time.Time `json:"last_run,omitempty"`
	LastCursor string    `json:"last_cursor,omitempty"`
	LastJobID  string    `json:"last_job_id,omitempty"`
	Extracted  int64     `json:"extracted"`
	Created    int64     `json:"created"`
	Failures   int64     `json:"failures"`
	LastError  string    `json:"last_error,omitempty"`
}

type AuditEventName string

const (
	AuditRunStarted   AuditEventName = "connector_run_started"
	AuditRunFinished  AuditEventName = "connector_run_finished"
	AuditCasesCreated AuditEventName = "cases_created"
)

// AuditEvent is handed to the audit ledger fire-and-forget.
type AuditEvent struct {
	Event     AuditEventName `json:"event"`
	At        time.Time      `json:"at"`
	Connector ConnectorKey   `json:"connector"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type RunStatusType string

const (
	RunQueued  RunStatusType = "queued"
	RunRunning RunStatusType = "running"
	RunSuccess RunStatusType = "success"
	RunFailed  RunStatusType = "failed"
)

// RunStats is the tagged stats payload attached to a run row.
type RunStats struct {
	Extracted int64    `json:"extracted"`
	Created   int64    `json:"created"`
	Failures  int64    `json:"failures"`
	JobID     string   `json:"job_id,omitempty"`
	CaseRefs  []string `json:"case_refs,omitempty"`
}

// RunRecord is one execution attempt chain of a connector. The row is reused
// across attempts of the same orchestration cycle; AttemptCount increments
// instead of creating a new row.
type RunRecord struct {
	ID           string        `json:"id"`
	Connector    ConnectorKey  `json:"connector"`
	Status       RunStatusType `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at,omitempty"`
	Cursor       string        `json:"cursor,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Stats        *RunStats     `json:"stats,omitempty"`
	AttemptCount int64         `json:"attempt_count"`
}

// JurisdictionGate answers whether a jurisdiction is currently enabled for
// ingestion. Implemented by lib/rules.Registry.
type JurisdictionGate interface {
	IsEnabled(state, countyCode string) bool
}
