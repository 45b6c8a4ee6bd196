package connectors

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"surplus-backend/lib/caseschema"
	"surplus-backend/services/connectors/db"
)

// StateStore holds the derived per-connector views: aggregated status, a
// cached cursor, the dedupe case cache, and the audit event sink. The run
// store stays authoritative for resumption.
type StateStore interface {
	GetStatus(ctx context.Context, key ConnectorKey) (RunStatus, error)
	SetStatus(ctx context.Context, key ConnectorKey, status RunStatus) error
	ListStatuses(ctx context.Context) (map[string]RunStatus, error)
	GetCursor(ctx context.Context, key ConnectorKey) (string, error)
	SetCursor(ctx context.Context, key ConnectorKey, cursor string) error

	RememberCase(ctx context.Context, record StoredCaseRecord) error
	FindCase(ctx context.Context, dedupeKey string) (StoredCaseRecord, bool, error)
	ListCases(ctx context.Context) ([]StoredCaseRecord, error)

	Audit(ctx context.Context, event AuditEvent) error
	ListAudits(ctx context.Context) ([]AuditEvent, error)
}

// ConnectorStatusView pairs a connector with its aggregated status for the
// admin surface.
type ConnectorStatusView struct {
	Connector ConnectorConfig `json:"connector"`
	Status    RunStatus       `json:"status"`
}

// SqliteStateStore persists the state views in the connectors database.
type SqliteStateStore struct {
	db  *sql.DB
	qry *db.Queries
}

func NewSqliteStateStore(database *sql.DB) SqliteStateStore {
	return SqliteStateStore{
		db:  database,
		qry: db.New(database),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullInt64 {
	return sql.NullInt64{Int64: t.Unix(), Valid: !t.IsZero()}
}

func splitConnectorKey(key string) ConnectorKey {
	parts := strings.SplitN(key, "-", 2)
	if len(parts) != 2 {
		return ConnectorKey{State: key}
	}
	return ConnectorKey{State: parts[0], CountyCode: parts[1]}
}

func statusFromRow(row db.ConnectorStatus) RunStatus {
	status := RunStatus{
		LastCursor: row.LastCursor.String,
		LastJobID:  row.LastJobID.String,
		Extracted:  row.Extracted,
		Created:    row.Created,
		Failures:   row.Failures,
		LastError:  row.LastError.String,
	}
	if row.LastRun.Valid {
		status.LastRun = time.Unix(row.LastRun.Int64, 0).UTC()
	}
	return status
}

func (s SqliteStateStore) GetStatus(ctx context.Context, key ConnectorKey) (RunStatus, error) {
	row, err := s.qry.GetConnectorStatus(ctx, key.String())
	if errors.Is(err, sql.ErrNoRows) {
		return RunStatus{}, nil
	}
	if err != nil {
		return RunStatus{}, err
	}
	return statusFromRow(row), nil
}

func (s SqliteStateStore) ListStatuses(ctx context.Context) (map[string]RunStatus, error) {
	rows, err := s.qry.ListConnectorStatuses(ctx)
	if err != nil {
		return nil, err
	}
	statuses := make(map[string]RunStatus, len(rows))
	for _, row := range rows {
		statuses[row.ConnectorKey] = statusFromRow(row)
	}
	return statuses, nil
}

func (s SqliteStateStore) SetStatus(ctx context.Context, key ConnectorKey, status RunStatus) error {
	return s.qry.UpsertConnectorStatus(ctx, db.UpsertConnectorStatusParams{
		ConnectorKey: key.String(),
		LastRun:      nullTime(status.LastRun),
		LastCursor:   nullString(status.LastCursor),
		LastJobID:    nullString(status.LastJobID),
		Extracted:    status.Extracted,
		Created:      status.Created,
		Failures:     status.Failures,
		LastError:    nullString(status.LastError),
	})
}

func (s SqliteStateStore) GetCursor(ctx context.Context, key ConnectorKey) (string, error) {
	cursor, err := s.qry.GetConnectorCursor(ctx, key.String())
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return cursor, err
}

func (s SqliteStateStore) SetCursor(ctx context.Context, key ConnectorKey, cursor string) error {
	return s.qry.SetConnectorCursor(ctx, db.SetConnectorCursorParams{
		ConnectorKey: key.String(),
		Cursor:       cursor,
	})
}

func (s SqliteStateStore) RememberCase(ctx context.Context, record StoredCaseRecord) error {
	normalized, err := json.Marshal(record.Normalized)
	if err != nil {
		return err
	}
	return s.qry.CreateCaseRecord(ctx, db.CreateCaseRecordParams{
		DedupeKey:    record.DedupeKey,
		CaseRef:      record.CaseRef,
		ConnectorKey: record.Connector.String(),
		PropertyID:   record.PropertyID,
		SaleDate:     nullString(record.SaleDate),
		RawSha256:    record.RawSha256,
		Normalized:   string(normalized),
	})
}

func caseRecordFromRow(row db.CaseRecord) (StoredCaseRecord, error) {
	var normalized caseschema.Case
	if err := json.Unmarshal([]byte(row.Normalized), &normalized); err != nil {
		return StoredCaseRecord{}, err
	}
	return StoredCaseRecord{
		CaseRef:    row.CaseRef,
		Normalized: normalized,
		DedupeKey:  row.DedupeKey,
		Connector:  splitConnectorKey(row.ConnectorKey),
		PropertyID: row.PropertyID,
		SaleDate:   row.SaleDate.String,
		RawSha256:  row.RawSha256,
	}, nil
}

func (s SqliteStateStore) FindCase(ctx context.Context, dedupeKey string) (StoredCaseRecord, bool, error) {
	row, err := s.qry.GetCaseRecord(ctx, dedupeKey)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredCaseRecord{}, false, nil
	}
	if err != nil {
		return StoredCaseRecord{}, false, err
	}
	record, err := caseRecordFromRow(row)
	if err != nil {
		return StoredCaseRecord{}, false, err
	}
	return record, true, nil
}

func (s SqliteStateStore) ListCases(ctx context.Context) ([]StoredCaseRecord, error) {
	rows, err := s.qry.ListCaseRecords(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]StoredCaseRecord, 0, len(rows))
	for _, row := range rows {
		record, err := caseRecordFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s SqliteStateStore) Audit(ctx context.Context, event AuditEvent) error {
	var payload sql.NullString
	if event.Payload != nil {
		raw, err := json.Marshal(event.Payload)
		if err != nil {
			return err
		}
		payload = nullString(string(raw))
	}
	return s.qry.CreateAuditEvent(ctx, db.CreateAuditEventParams{
		Event:        string(event.Event),
		At:           event.At.Unix(),
		ConnectorKey: event.Connector.String(),
		Payload:      payload,
	})
}

func (s SqliteStateStore) ListAudits(ctx context.Context) ([]AuditEvent, error) {
	rows, err := s.qry.ListAuditEvents(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]AuditEvent, 0, len(rows))
	for _, row := range rows {
		event := AuditEvent{
			Event:     AuditEventName(row.Event),
			At:        time.Unix(row.At, 0).UTC(),
			Connector: splitConnectorKey(row.ConnectorKey),
		}
		if row.Payload.Valid {
			if err := json.Unmarshal([]byte(row.Payload.String), &event.Payload); err != nil {
				return nil, err
			}
		}
		events = append(events, event)
	}
	return events, nil
}
