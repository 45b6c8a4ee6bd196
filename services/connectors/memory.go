package connectors

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStateStore is a mutex-guarded StateStore for tests and local
// experiments.
type MemoryStateStore struct {
	mu       sync.RWMutex
	statuses map[string]RunStatus
	cursors  map[string]string
	cases    map[string]StoredCaseRecord
	order    []string
	audits   []AuditEvent
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		statuses: map[string]RunStatus{},
		cursors:  map[string]string{},
		cases:    map[string]StoredCaseRecord{},
	}
}

func (m *MemoryStateStore) GetStatus(ctx context.Context, key ConnectorKey) (RunStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statuses[key.String()], nil
}

func (m *MemoryStateStore) SetStatus(ctx context.Context, key ConnectorKey, status RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[key.String()] = status
	return nil
}

func (m *MemoryStateStore) ListStatuses(ctx context.Context) (map[string]RunStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]RunStatus, len(m.statuses))
	for key, status := range m.statuses {
		out[key] = status
	}
	return out, nil
}

func (m *MemoryStateStore) GetCursor(ctx context.Context, key ConnectorKey) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursors[key.String()], nil
}

func (m *MemoryStateStore) SetCursor(ctx context.Context, key ConnectorKey, cursor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[key.String()] = cursor
	return nil
}

func (m *MemoryStateStore) RememberCase(ctx context.Context, record StoredCaseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.cases[record.DedupeKey]; !seen {
		m.order = append(m.order, record.DedupeKey)
	}
	m.cases[record.DedupeKey] = record
	return nil
}

func (m *MemoryStateStore) FindCase(ctx context.Context, dedupeKey string) (StoredCaseRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.cases[dedupeKey]
	return record, ok, nil
}

func (m *MemoryStateStore) ListCases(ctx context.Context) ([]StoredCaseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]StoredCaseRecord, 0, len(m.order))
	for _, key := range m.order {
		records = append(records, m.cases[key])
	}
	return records, nil
}

func (m *MemoryStateStore) Audit(ctx context.Context, event AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, event)
	return nil
}

func (m *MemoryStateStore) ListAudits(ctx context.Context) ([]AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AuditEvent, len(m.audits))
	copy(out, m.audits)
	return out, nil
}

// MemoryRunStore is a mutex-guarded RunStore for tests and local experiments.
type MemoryRunStore struct {
	mu      sync.RWMutex
	runs    map[string]RunRecord
	byKey   map[string][]string
	cursors map[string]string
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		runs:    map[string]RunRecord{},
		byKey:   map[string][]string{},
		cursors: map[string]string{},
	}
}

func (m *MemoryRunStore) GetLatestCursor(ctx context.Context, key ConnectorKey) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursors[key.String()], nil
}

func (m *MemoryRunStore) PersistCursor(ctx context.Context, key ConnectorKey, cursor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[key.String()] = cursor
	return nil
}

func (m *MemoryRunStore) CreateRun(ctx context.Context, key ConnectorKey, input CreateRunInput) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.runs[id] = RunRecord{
		ID:           id,
		Connector:    key,
		Status:       input.Status,
		StartedAt:    input.StartedAt,
		Cursor:       input.Cursor,
		AttemptCount: input.AttemptCount,
	}
	m.byKey[key.String()] = append(m.byKey[key.String()], id)
	return id, nil
}

func (m *MemoryRunStore) UpdateRun(ctx context.Context, runID string, update RunUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	record.Status = update.Status
	record.FinishedAt = update.FinishedAt
	record.ErrorMessage = update.ErrorMessage
	record.Cursor = update.Cursor
	record.AttemptCount = update.AttemptCount
	if update.Stats != nil {
		stats := *update.Stats
		record.Stats = &stats
	} else {
		record.Stats = nil
	}
	m.runs[runID] = record
	return nil
}

func (m *MemoryRunStore) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.runs[runID]
	if !ok {
		return RunRecord{}, fmt.Errorf("run %s not found", runID)
	}
	return record, nil
}

func (m *MemoryRunStore) ListRunsByConnector(ctx context.Context, key ConnectorKey) ([]RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byKey[key.String()]
	records := make([]RunRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, m.runs[id])
	}
	return records, nil
}

var _ StateStore = (*MemoryStateStore)(nil)
var _ RunStore = (*MemoryRunStore)(nil)
var _ StateStore = SqliteStateStore{}
var _ RunStore = SqliteRunStore{}
