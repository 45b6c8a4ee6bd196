package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

// ErrCycleInFlight means a cycle or manual run was requested while another
// one was still executing.
var ErrCycleInFlight = errors.New("an orchestration cycle is already in flight")

// Service ties the orchestrator to the poll daemon and the admin HTTP
// surface. At most one cycle executes at a time.
type Service struct {
	registry     *Registry
	state        StateStore
	runs         RunStore
	orchestrator *Orchestrator
	retry        RetryOptions
	inFlight     atomic.Bool
}

func NewService(
	registry *Registry,
	state StateStore,
	runs RunStore,
	jobs JobClient,
	gate JurisdictionGate,
	retry RetryOptions,
) *Service {
	return &Service{
		registry:     registry,
		state:        state,
		runs:         runs,
		orchestrator: NewOrchestrator(registry, state, runs, jobs, gate),
		retry:        retry,
	}
}

// RunCycle runs every connector with whole-cycle retry. Returns
// ErrCycleInFlight when another cycle holds the guard.
func (s *Service) RunCycle(ctx context.Context) ([]RunOutcome, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrCycleInFlight
	}
	defer s.inFlight.Store(false)
	return s.orchestrator.RunAllConnectorsWithRetry(ctx, s.retry)
}

// RunOne runs a single connector once, outside the retry loop. Used by the
// manual trigger endpoint.
func (s *Service) RunOne(ctx context.Context, key ConnectorKey) (RunOutcome, error) {
	connector, ok := s.registry.Get(key)
	if !ok {
		return RunOutcome{}, errors.New("unknown connector " + key.String())
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return RunOutcome{}, ErrCycleInFlight
	}
	defer s.inFlight.Store(false)
	return s.orchestrator.RunConnector(ctx, connector, nil)
}

// StartDaemon runs one cycle immediately and then on every tick until the
// context is canceled. Blocks; run it in its own goroutine.
func (s *Service) StartDaemon(ctx context.Context, interval time.Duration) {
	run := func() {
		_, err := s.RunCycle(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.ErrorContext(ctx, "orchestration cycle failed", "err", err)
		}
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// RegisterHTTP mounts the admin endpoints on the given router.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Get("/api/connectors", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, s.registry.List())
	})

	r.Get("/api/connectors/status", func(w http.ResponseWriter, req *http.Request) {
		statuses, err := s.state.ListStatuses(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		list := s.registry.List()
		views := make([]ConnectorStatusView, 0, len(list))
		for _, connector := range list {
			views = append(views, ConnectorStatusView{
				Connector: connector,
				Status:    statuses[connector.Key.String()],
			})
		}
		writeJSON(w, http.StatusOK, views)
	})

	r.Get("/api/connectors/audits", func(w http.ResponseWriter, req *http.Request) {
		audits, err := s.state.ListAudits(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, audits)
	})

	r.Post("/api/connectors/{state}/{county}/run", func(w http.ResponseWriter, req *http.Request) {
		key := ConnectorKey{
			State:      chi.URLParam(req, "state"),
			CountyCode: chi.URLParam(req, "county"),
		}
		if _, ok := s.registry.Get(key); !ok {
			http.Error(w, "unknown connector "+key.String(), http.StatusNotFound)
			return
		}

		outcome, err := s.RunOne(req.Context(), key)
		if errors.Is(err, ErrCycleInFlight) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	})
}
