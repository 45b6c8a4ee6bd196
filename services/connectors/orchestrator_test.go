package connectors_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"surplus-backend/lib/caseschema"
	"surplus-backend/lib/rules"
	"surplus-backend/lib/testutil"
	"surplus-backend/services/connectors"
	"surplus-backend/services/connectors/db"

	"github.com/stretchr/testify/require"
)

// fakeJobHost returns canned batches per spider and records every schedule
// call with its cursor setting.
type fakeJobHost struct {
	mu          sync.Mutex
	batches     map[string][]connectors.ScrapedItem
	scheduleErr map[string]error
	fetchErr    error
	scheduled   []scheduledJob
	jobItems    map[string][]connectors.ScrapedItem
	nextJob     int
}

type scheduledJob struct {
	Spider string
	Cursor string
	JobID  string
}

func newFakeJobHost() *fakeJobHost {
	return &fakeJobHost{
		batches:     map[string][]connectors.ScrapedItem{},
		scheduleErr: map[string]error{},
		jobItems:    map[string][]connectors.ScrapedItem{},
	}
}

func (f *fakeJobHost) setBatch(spider string, items ...connectors.ScrapedItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches[spider] = items
}

func (f *fakeJobHost) ScheduleSpider(ctx context.Context, spider string, settings map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.scheduleErr[spider]; err != nil {
		return "", err
	}
	f.nextJob++
	jobID := fmt.Sprintf("job-%d", f.nextJob)
	f.scheduled = append(f.scheduled, scheduledJob{
		Spider: spider,
		Cursor: settings["cursor"],
		JobID:  jobID,
	})
	f.jobItems[jobID] = f.batches[spider]
	return jobID, nil
}

func (f *fakeJobHost) FetchItems(ctx context.Context, jobID string) ([]connectors.ScrapedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.jobItems[jobID], nil
}

type orchestratorFixture struct {
	host  *fakeJobHost
	state connectors.SqliteStateStore
	runs  connectors.SqliteRunStore
	gate  *rules.Registry
	orch  *connectors.Orchestrator
}

func setupOrchestrator(t *testing.T, configs ...connectors.ConnectorConfig) orchestratorFixture {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "connectors-orchestrator",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)

	host := newFakeJobHost()
	state := connectors.NewSqliteStateStore(res.DB)
	runs := connectors.NewSqliteRunStore(res.DB)
	gate := enabledGate([2]string{"GA", "FULTON"}, [2]string{"CA", "LOS_ANGELES"})
	registry := connectors.NewRegistry(configs...)

	return orchestratorFixture{
		host:  host,
		state: state,
		runs:  runs,
		gate:  gate,
		orch:  connectors.NewOrchestrator(registry, state, runs, host, gate),
	}
}

var caLosAngeles = connectors.ConnectorConfig{
	Key:        connectors.ConnectorKey{State: "CA", CountyCode: "LOS_ANGELES"},
	SpiderName: "ca_los_angeles",
}

func caItem(propertyID, cursor string) connectors.ScrapedItem {
	return connectors.ScrapedItem{
		State:      "CA",
		CountyCode: "LOS_ANGELES",
		PropertyID: propertyID,
		SaleDate:   "2026-06-15",
		Raw:        map[string]any{"parcel": propertyID},
		Cursor:     cursor,
	}
}

func TestRunConnectorAdvancesCursorAcrossRuns(t *testing.T) {
	fix := setupOrchestrator(t, gaFulton)
	ctx := context.Background()

	fix.host.setBatch("ga_fulton", gaItem("P-100", "cursor-1"))
	outcome, err := fix.orch.RunConnector(ctx, gaFulton, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, outcome.Extracted)
	require.EqualValues(t, 1, outcome.Created)
	require.EqualValues(t, 1, outcome.AttemptCount)

	cursor, err := fix.runs.GetLatestCursor(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.Equal(t, "cursor-1", cursor)

	fix.host.setBatch("ga_fulton", gaItem("P-200", "cursor-2"))
	_, err = fix.orch.RunConnector(ctx, gaFulton, nil)
	require.NoError(t, err)

	cursor, err = fix.runs.GetLatestCursor(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.Equal(t, "cursor-2", cursor)

	// the second schedule resumed from the first run's committed cursor
	require.Len(t, fix.host.scheduled, 2)
	require.Empty(t, fix.host.scheduled[0].Cursor)
	require.Equal(t, "cursor-1", fix.host.scheduled[1].Cursor)

	runs, err := fix.runs.ListRunsByConnector(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, run := range runs {
		require.Equal(t, connectors.RunSuccess, run.Status)
		require.False(t, run.FinishedAt.IsZero())
	}

	status, err := fix.state.GetStatus(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.Equal(t, "cursor-2", status.LastCursor)
	require.EqualValues(t, 1, status.Created)
	require.Empty(t, status.LastError)

	cached, err := fix.state.GetCursor(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.Equal(t, "cursor-2", cached)
}

func TestRunConnectorRejectsBatchWithFailures(t *testing.T) {
	fix := setupOrchestrator(t, gaFulton)
	ctx := context.Background()

	require.NoError(t, fix.runs.PersistCursor(ctx, gaFulton.Key, "cursor-1"))

	bad := gaItem("P-200", "cursor-2")
	bad.Normalized = &caseschema.Case{CaseRef: "NOT-A-VALID-REF"}
	fix.host.setBatch("ga_fulton", bad)

	_, err := fix.orch.RunConnector(ctx, gaFulton, nil)
	var ingestErr *connectors.IngestionFailureError
	require.ErrorAs(t, err, &ingestErr)
	require.EqualValues(t, 1, ingestErr.Extracted)
	require.EqualValues(t, 0, ingestErr.Created)
	require.EqualValues(t, 1, ingestErr.Failures)

	// the committed cursor did not move
	cursor, err := fix.runs.GetLatestCursor(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.Equal(t, "cursor-1", cursor)

	runs, err := fix.runs.ListRunsByConnector(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, connectors.RunFailed, runs[0].Status)
	require.Equal(t, "ingestion failures", runs[0].ErrorMessage)
	require.Equal(t, "cursor-1", runs[0].Cursor)
	require.NotNil(t, runs[0].Stats)
	require.EqualValues(t, 1, runs[0].Stats.Failures)

	records, err := fix.state.ListCases(ctx)
	require.NoError(t, err)
	require.Empty(t, records)

	status, err := fix.state.GetStatus(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.Equal(t, "ingestion failures", status.LastError)
	require.Equal(t, "cursor-1", status.LastCursor)
}

func TestRunConnectorHostFailure(t *testing.T) {
	fix := setupOrchestrator(t, gaFulton)
	ctx := context.Background()

	fix.host.scheduleErr["ga_fulton"] = &connectors.SchedulingError{
		Spider:  "ga_fulton",
		Message: "connection refused",
	}

	_, err := fix.orch.RunConnector(ctx, gaFulton, nil)
	var schedErr *connectors.SchedulingError
	require.ErrorAs(t, err, &schedErr)

	runs, err := fix.runs.ListRunsByConnector(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, connectors.RunFailed, runs[0].Status)
	require.Contains(t, runs[0].ErrorMessage, "connection refused")

	status, err := fix.state.GetStatus(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.EqualValues(t, 1, status.Failures)
	require.EqualValues(t, 0, status.Extracted)
	require.Contains(t, status.LastError, "connection refused")
}

func TestRunAllConnectorsStopsAtFirstFailure(t *testing.T) {
	fix := setupOrchestrator(t, gaFulton, caLosAngeles)
	ctx := context.Background()

	fix.host.setBatch("ga_fulton", gaItem("P-100", "cursor-1"))
	fix.host.setBatch("ca_los_angeles", caItem("P-900", "cursor-9"))
	// CA goes dark mid-cycle
	require.True(t, fix.gate.SetEnabled("CA", "LOS_ANGELES", false))

	outcomes, err := fix.orch.RunAllConnectors(ctx, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "CA-LOS_ANGELES")
	require.Len(t, outcomes, 1)

	// the healthy connector still committed its work
	cursor, err := fix.runs.GetLatestCursor(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.Equal(t, "cursor-1", cursor)

	caRuns, err := fix.runs.ListRunsByConnector(ctx, caLosAngeles.Key)
	require.NoError(t, err)
	require.Len(t, caRuns, 1)
	require.Equal(t, connectors.RunFailed, caRuns[0].Status)

	caCursor, err := fix.runs.GetLatestCursor(ctx, caLosAngeles.Key)
	require.NoError(t, err)
	require.Empty(t, caCursor)
}

func TestRetryReusesRunRowAndDedupesReplays(t *testing.T) {
	fix := setupOrchestrator(t, gaFulton)
	ctx := context.Background()

	good := gaItem("P-100", "cursor-1")
	bad := gaItem("P-200", "cursor-2")
	bad.Normalized = &caseschema.Case{CaseRef: "NOT-A-VALID-REF"}
	fix.host.setBatch("ga_fulton", good, bad)

	waits := 0
	outcomes, err := fix.orch.RunAllConnectorsWithRetry(ctx, connectors.RetryOptions{
		MaxAttempts: 2,
		BaseDelay:   time.Second,
		Wait: func(ctx context.Context, d time.Duration) error {
			waits++
			require.Equal(t, time.Second, d)
			// the source fixes itself before the retry
			fix.host.setBatch("ga_fulton", good, gaItem("P-200", "cursor-2"))
			return nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, waits)
	require.Len(t, outcomes, 1)
	require.EqualValues(t, 2, outcomes[0].AttemptCount)

	// one run row across both attempts
	runs, err := fix.runs.ListRunsByConnector(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, connectors.RunSuccess, runs[0].Status)
	require.EqualValues(t, 2, runs[0].AttemptCount)
	require.Empty(t, runs[0].ErrorMessage)

	// P-100 was created in attempt one and skipped in attempt two
	records, err := fix.state.ListCases(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	cursor, err := fix.runs.GetLatestCursor(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.Equal(t, "cursor-2", cursor)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	fix := setupOrchestrator(t, gaFulton)
	ctx := context.Background()

	bad := gaItem("P-200", "cursor-2")
	bad.Normalized = &caseschema.Case{CaseRef: "NOT-A-VALID-REF"}
	fix.host.setBatch("ga_fulton", bad)

	var delays []time.Duration
	_, err := fix.orch.RunAllConnectorsWithRetry(ctx, connectors.RetryOptions{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Wait: func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	})
	var ingestErr *connectors.IngestionFailureError
	require.ErrorAs(t, err, &ingestErr)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)

	runs, err := fix.runs.ListRunsByConnector(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.EqualValues(t, 3, runs[0].AttemptCount)
	require.Equal(t, connectors.RunFailed, runs[0].Status)
}

func TestRunConnectorEmitsAuditTrail(t *testing.T) {
	fix := setupOrchestrator(t, gaFulton)
	ctx := context.Background()

	fix.host.setBatch("ga_fulton", gaItem("P-100", "cursor-1"))
	_, err := fix.orch.RunConnector(ctx, gaFulton, nil)
	require.NoError(t, err)

	events, err := fix.state.ListAudits(ctx)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, connectors.AuditRunStarted, events[0].Event)
	require.Equal(t, connectors.AuditRunFinished, events[1].Event)
	require.Equal(t, connectors.AuditCasesCreated, events[2].Event)

	refs, ok := events[2].Payload["case_refs"].([]any)
	require.True(t, ok)
	require.Len(t, refs, 1)
}

func TestRunAllConnectorsSharesCycleAcrossCalls(t *testing.T) {
	fix := setupOrchestrator(t, gaFulton)
	ctx := context.Background()

	bad := gaItem("P-200", "cursor-2")
	bad.Normalized = &caseschema.Case{CaseRef: "NOT-A-VALID-REF"}
	fix.host.setBatch("ga_fulton", bad)

	cycle := connectors.CycleContext{}
	_, err := fix.orch.RunAllConnectors(ctx, cycle)
	require.Error(t, err)

	fix.host.setBatch("ga_fulton", gaItem("P-200", "cursor-2"))
	_, err = fix.orch.RunAllConnectors(ctx, cycle)
	require.NoError(t, err)

	runs, err := fix.runs.ListRunsByConnector(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.EqualValues(t, 2, runs[0].AttemptCount)

	// a fresh cycle opens a fresh row
	fix.host.setBatch("ga_fulton", gaItem("P-300", "cursor-3"))
	_, err = fix.orch.RunAllConnectors(ctx, nil)
	require.NoError(t, err)
	runs, err = fix.runs.ListRunsByConnector(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestRunConnectorHostFailureKeepsPriorSuccessState(t *testing.T) {
	fix := setupOrchestrator(t, gaFulton)
	ctx := context.Background()

	fix.host.setBatch("ga_fulton", gaItem("P-100", "cursor-1"))
	_, err := fix.orch.RunConnector(ctx, gaFulton, nil)
	require.NoError(t, err)

	fix.host.fetchErr = errors.New("items endpoint unreachable")
	_, err = fix.orch.RunConnector(ctx, gaFulton, nil)
	require.Error(t, err)

	// the committed cursor survives a host outage
	cursor, err := fix.runs.GetLatestCursor(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.Equal(t, "cursor-1", cursor)

	status, err := fix.state.GetStatus(ctx, gaFulton.Key)
	require.NoError(t, err)
	require.Contains(t, status.LastError, "unreachable")
	// the status keeps pointing at the last good cursor and job
	require.Equal(t, "cursor-1", status.LastCursor)
	require.NotEmpty(t, status.LastJobID)
}
