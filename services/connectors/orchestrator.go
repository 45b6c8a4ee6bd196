package connectors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/connectors")

// IngestionFailureError marks a run rejected because the batch had item
// failures. The committed cursor was NOT advanced; Cursor carries the
// candidate the batch produced.
type IngestionFailureError struct {
	JobID     string
	Cursor    string
	Extracted int64
	Created   int64
	Failures  int64
}

func (e *IngestionFailureError) Error() string {
	return "ingestion failures"
}

// RunContext pins a connector to its run row for the duration of one
// orchestration cycle, so retries increment AttemptCount on the same row
// instead of opening new ones.
type RunContext struct {
	RunID        string
	AttemptCount int64
}

// CycleContext is owned by the caller of RunAllConnectors and shared across
// retry attempts of the same cycle.
type CycleContext map[string]*RunContext

// RunOutcome reports a successful connector run.
type RunOutcome struct {
	RunID        string   `json:"run_id"`
	JobID        string   `json:"job_id"`
	AttemptCount int64    `json:"attempt_count"`
	Extracted    int64    `json:"extracted"`
	Created      int64    `json:"created"`
	CaseRefs     []string `json:"case_refs,omitempty"`
}

// Orchestrator drives the full run protocol for each registered connector.
type Orchestrator struct {
	registry *Registry
	state    StateStore
	runs     RunStore
	jobs     JobClient
	ingestor Ingestor
}

func NewOrchestrator(
	registry *Registry,
	state StateStore,
	runs RunStore,
	jobs JobClient,
	gate JurisdictionGate,
) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		state:    state,
		runs:     runs,
		jobs:     jobs,
		ingestor: NewIngestor(state, gate),
	}
}

func (o *Orchestrator) audit(ctx context.Context, key ConnectorKey, name AuditEventName, payload map[string]any) {
	err := o.state.Audit(ctx, AuditEvent{
		Event:     name,
		At:        time.Now().UTC(),
		Connector: key,
		Payload:   payload,
	})
	if err != nil {
		// the ledger is best-effort, a run must not die on it
		slog.WarnContext(ctx, "failed to write audit event",
			"event", string(name), "connector", key.String(), "err", err)
	}
}

// failRun finishes a run on the host-failure path: the job host could not be
// scheduled or reached, no items were processed.
func (o *Orchestrator) failRun(
	ctx context.Context,
	connector ConnectorConfig,
	runID string,
	attempt int64,
	startedAt time.Time,
	prevCursor string,
	cause error,
) error {
	key := connector.Key
	updateErr := o.runs.UpdateRun(ctx, runID, RunUpdate{
		Status:       RunFailed,
		FinishedAt:   time.Now().UTC(),
		ErrorMessage: cause.Error(),
		Cursor:       prevCursor,
		AttemptCount: attempt,
	})
	if updateErr != nil {
		slog.ErrorContext(ctx, "failed to mark run as failed",
			"run_id", runID, "err", updateErr)
	}

	status, err := o.state.GetStatus(ctx, key)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read connector status",
			"connector", key.String(), "err", err)
		status = RunStatus{}
	}
	status.LastRun = startedAt
	status.Extracted = 0
	status.Created = 0
	status.Failures = 1
	status.LastError = cause.Error()
	if err := o.state.SetStatus(ctx, key, status); err != nil {
		slog.ErrorContext(ctx, "failed to update connector status",
			"connector", key.String(), "err", err)
	}

	o.audit(ctx, key, AuditRunFinished, map[string]any{
		"error": cause.Error(),
	})
	return cause
}

// RunConnector executes the full protocol for one connector. When runCtx
// already names a run row, the attempt resumes that row instead of creating
// a new one.
func (o *Orchestrator) RunConnector(ctx context.Context, connector ConnectorConfig, runCtx *RunContext) (RunOutcome, error) {
	ctx, span := tracer.Start(ctx, "RunConnector")
	defer span.End()

	fail := func(err error) (RunOutcome, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RunOutcome{}, err
	}

	key := connector.Key
	startedAt := time.Now().UTC()

	prevCursor, err := o.runs.GetLatestCursor(ctx, key)
	if err != nil {
		return fail(err)
	}

	o.audit(ctx, key, AuditRunStarted, map[string]any{
		"cursor": prevCursor,
	})

	var runID string
	var attempt int64
	if runCtx == nil || runCtx.RunID == "" {
		runID, err = o.runs.CreateRun(ctx, key, CreateRunInput{
			Status:       RunRunning,
			StartedAt:    startedAt,
			Cursor:       prevCursor,
			AttemptCount: 1,
		})
		if err != nil {
			return fail(err)
		}
		attempt = 1
		if runCtx != nil {
			runCtx.RunID = runID
			runCtx.AttemptCount = attempt
		}
	} else {
		runCtx.AttemptCount++
		runID = runCtx.RunID
		attempt = runCtx.AttemptCount
		err = o.runs.UpdateRun(ctx, runID, RunUpdate{
			Status:       RunRunning,
			Cursor:       prevCursor,
			AttemptCount: attempt,
		})
		if err != nil {
			return fail(err)
		}
	}

	slog.InfoContext(ctx, "running connector",
		"connector", key.String(),
		"spider", connector.SpiderName,
		"cursor", prevCursor,
		"attempt", attempt)

	jobID, err := o.jobs.ScheduleSpider(ctx, connector.SpiderName, map[string]string{
		"cursor": prevCursor,
	})
	if err != nil {
		return fail(o.failRun(ctx, connector, runID, attempt, startedAt, prevCursor, err))
	}

	items, err := o.jobs.FetchItems(ctx, jobID)
	if err != nil {
		return fail(o.failRun(ctx, connector, runID, attempt, startedAt, prevCursor, err))
	}

	result, err := o.ingestor.IngestBatch(ctx, connector, items)
	if err != nil {
		return fail(o.failRun(ctx, connector, runID, attempt, startedAt, prevCursor, err))
	}

	cursor := result.Cursor
	if cursor == "" {
		cursor = prevCursor
	}

	caseRefs := make([]string, 0, len(result.Created))
	for _, record := range result.Created {
		caseRefs = append(caseRefs, record.CaseRef)
	}
	stats := &RunStats{
		Extracted: int64(len(items)),
		Created:   int64(len(result.Created)),
		Failures:  int64(len(result.Failures)),
		JobID:     jobID,
		CaseRefs:  caseRefs,
	}

	if len(result.Failures) > 0 {
		ingestErr := &IngestionFailureError{
			JobID:     jobID,
			Cursor:    cursor,
			Extracted: stats.Extracted,
			Created:   stats.Created,
			Failures:  stats.Failures,
		}

		// the committed cursor stays where it was, only the run row and the
		// status view learn about the rejected batch
		err = o.runs.UpdateRun(ctx, runID, RunUpdate{
			Status:       RunFailed,
			FinishedAt:   time.Now().UTC(),
			ErrorMessage: ingestErr.Error(),
			Cursor:       prevCursor,
			Stats:        stats,
			AttemptCount: attempt,
		})
		if err != nil {
			return fail(err)
		}

		status := RunStatus{
			LastRun:    startedAt,
			LastCursor: prevCursor,
			LastJobID:  jobID,
			Extracted:  stats.Extracted,
			Created:    stats.Created,
			Failures:   stats.Failures,
			LastError:  ingestErr.Error(),
		}
		if err := o.state.SetStatus(ctx, key, status); err != nil {
			return fail(err)
		}

		o.audit(ctx, key, AuditRunFinished, map[string]any{
			"job_id":    jobID,
			"extracted": stats.Extracted,
			"created":   stats.Created,
			"failures":  stats.Failures,
			"error":     ingestErr.Error(),
		})
		return fail(ingestErr)
	}

	if err := o.runs.PersistCursor(ctx, key, cursor); err != nil {
		return fail(err)
	}
	err = o.runs.UpdateRun(ctx, runID, RunUpdate{
		Status:       RunSuccess,
		FinishedAt:   time.Now().UTC(),
		Cursor:       cursor,
		Stats:        stats,
		AttemptCount: attempt,
	})
	if err != nil {
		return fail(err)
	}

	if err := o.state.SetCursor(ctx, key, cursor); err != nil {
		return fail(err)
	}
	status := RunStatus{
		LastRun:    startedAt,
		LastCursor: cursor,
		LastJobID:  jobID,
		Extracted:  stats.Extracted,
		Created:    stats.Created,
		Failures:   0,
	}
	if err := o.state.SetStatus(ctx, key, status); err != nil {
		return fail(err)
	}

	o.audit(ctx, key, AuditRunFinished, map[string]any{
		"job_id":    jobID,
		"extracted": stats.Extracted,
		"created":   stats.Created,
		"failures":  int64(0),
	})
	if len(caseRefs) > 0 {
		o.audit(ctx, key, AuditCasesCreated, map[string]any{
			"job_id":    jobID,
			"case_refs": caseRefs,
			"count":     int64(len(caseRefs)),
		})
	}

	slog.InfoContext(ctx, "connector run finished",
		"connector", key.String(),
		"job_id", jobID,
		"extracted", stats.Extracted,
		"created", stats.Created)

	return RunOutcome{
		RunID:        runID,
		JobID:        jobID,
		AttemptCount: attempt,
		Extracted:    stats.Extracted,
		Created:      stats.Created,
		CaseRefs:     caseRefs,
	}, nil
}

// RunAllConnectors runs every registered connector in registration order and
// stops at the first failure. The cycle map carries run rows across retry
// attempts; passing nil gives every connector a fresh row.
func (o *Orchestrator) RunAllConnectors(ctx context.Context, cycle CycleContext) ([]RunOutcome, error) {
	ctx, span := tracer.Start(ctx, "RunAllConnectors")
	defer span.End()

	if cycle == nil {
		cycle = CycleContext{}
	}

	var outcomes []RunOutcome
	for _, connector := range o.registry.List() {
		key := connector.Key.String()
		runCtx := cycle[key]
		if runCtx == nil {
			runCtx = &RunContext{}
			cycle[key] = runCtx
		}

		outcome, err := o.RunConnector(ctx, connector, runCtx)
		if err != nil {
			err = fmt.Errorf("connector %s: %w", key, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// RetryOptions controls whole-cycle retry. Wait exists so tests can observe
// backoff without sleeping.
type RetryOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Wait        func(ctx context.Context, d time.Duration) error
}

func sleepWait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RunAllConnectorsWithRetry retries the whole cycle with exponential backoff.
// Connectors that already succeeded in an earlier attempt run again, but their
// run rows are reused and dedup makes the replays cheap.
func (o *Orchestrator) RunAllConnectorsWithRetry(ctx context.Context, opts RetryOptions) ([]RunOutcome, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.Wait == nil {
		opts.Wait = sleepWait
	}

	cycle := CycleContext{}
	for attempt := 1; ; attempt++ {
		outcomes, err := o.RunAllConnectors(ctx, cycle)
		if err == nil {
			return outcomes, nil
		}
		if attempt >= opts.MaxAttempts {
			return nil, err
		}

		delay := opts.BaseDelay * (1 << (attempt - 1))
		slog.WarnContext(ctx, "cycle failed, backing off",
			"attempt", attempt,
			"delay", delay.String(),
			"err", err)
		if waitErr := opts.Wait(ctx, delay); waitErr != nil {
			return nil, waitErr
		}
	}
}
