package connectors_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"surplus-backend/lib/testutil"
	"surplus-backend/services/connectors"
	"surplus-backend/services/connectors/db"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type blockingJobHost struct {
	inner     *fakeJobHost
	startOnce sync.Once
	started   chan struct{}
	release   chan struct{}
}

func (b *blockingJobHost) ScheduleSpider(ctx context.Context, spider string, settings map[string]string) (string, error) {
	b.startOnce.Do(func() { close(b.started) })
	<-b.release
	return b.inner.ScheduleSpider(ctx, spider, settings)
}

func (b *blockingJobHost) FetchItems(ctx context.Context, jobID string) ([]connectors.ScrapedItem, error) {
	return b.inner.FetchItems(ctx, jobID)
}

func setupService(t *testing.T, host connectors.JobClient) *connectors.Service {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "connectors-service",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)

	return connectors.NewService(
		connectors.NewRegistry(gaFulton),
		connectors.NewSqliteStateStore(res.DB),
		connectors.NewSqliteRunStore(res.DB),
		host,
		enabledGate([2]string{"GA", "FULTON"}),
		connectors.RetryOptions{MaxAttempts: 1},
	)
}

func TestServiceRejectsConcurrentCycles(t *testing.T) {
	inner := newFakeJobHost()
	inner.setBatch("ga_fulton", gaItem("P-100", "cursor-1"))
	host := &blockingJobHost{
		inner:   inner,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	service := setupService(t, host)

	done := make(chan error, 1)
	go func() {
		_, err := service.RunCycle(context.Background())
		done <- err
	}()

	<-host.started
	_, err := service.RunCycle(context.Background())
	require.ErrorIs(t, err, connectors.ErrCycleInFlight)
	_, err = service.RunOne(context.Background(), gaFulton.Key)
	require.ErrorIs(t, err, connectors.ErrCycleInFlight)

	close(host.release)
	require.NoError(t, <-done)

	// the guard is released once the cycle finishes
	_, err = service.RunOne(context.Background(), gaFulton.Key)
	require.NoError(t, err)
}

func TestServiceHTTPEndpoints(t *testing.T) {
	host := newFakeJobHost()
	host.setBatch("ga_fulton", gaItem("P-100", "cursor-1"))
	service := setupService(t, host)

	router := chi.NewRouter()
	service.RegisterHTTP(router)
	server := httptest.NewServer(router)
	defer server.Close()

	res, err := http.Get(server.URL + "/api/connectors")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var configs []connectors.ConnectorConfig
	require.NoError(t, json.NewDecoder(res.Body).Decode(&configs))
	require.Len(t, configs, 1)
	require.Equal(t, "ga_fulton", configs[0].SpiderName)

	res, err = http.Post(server.URL+"/api/connectors/GA/FULTON/run", "", nil)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var outcome connectors.RunOutcome
	require.NoError(t, json.NewDecoder(res.Body).Decode(&outcome))
	require.EqualValues(t, 1, outcome.Created)

	res, err = http.Post(server.URL+"/api/connectors/TX/HARRIS/run", "", nil)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	res, err = http.Get(server.URL + "/api/connectors/status")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var views []connectors.ConnectorStatusView
	require.NoError(t, json.NewDecoder(res.Body).Decode(&views))
	require.Len(t, views, 1)
	require.Equal(t, "cursor-1", views[0].Status.LastCursor)

	res, err = http.Get(server.URL + "/api/connectors/audits")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var events []connectors.AuditEvent
	require.NoError(t, json.NewDecoder(res.Body).Decode(&events))
	require.NotEmpty(t, events)
}
