package connectors

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"surplus-backend/services/connectors/db"

	"github.com/google/uuid"
)

// RunStore is the authoritative ledger of connector executions. A cursor only
// reaches PersistCursor after a fully successful run, so GetLatestCursor is
// always a safe resume point.
type RunStore interface {
	GetLatestCursor(ctx context.Context, key ConnectorKey) (string, error)
	PersistCursor(ctx context.Context, key ConnectorKey, cursor string) error

	CreateRun(ctx context.Context, key ConnectorKey, input CreateRunInput) (string, error)
	UpdateRun(ctx context.Context, runID string, update RunUpdate) error
	GetRun(ctx context.Context, runID string) (RunRecord, error)
	ListRunsByConnector(ctx context.Context, key ConnectorKey) ([]RunRecord, error)
}

// CreateRunInput seeds a new run row. Cursor is the resume point the run
// started from, not the one it will produce.
type CreateRunInput struct {
	Status       RunStatusType
	StartedAt    time.Time
	Cursor       string
	AttemptCount int64
}

// RunUpdate overwrites the mutable columns of a run row. Zero values clear
// the corresponding column.
type RunUpdate struct {
	Status       RunStatusType
	FinishedAt   time.Time
	ErrorMessage string
	Cursor       string
	Stats        *RunStats
	AttemptCount int64
}

// SqliteRunStore persists runs and committed cursors in the connectors
// database.
type SqliteRunStore struct {
	db  *sql.DB
	qry *db.Queries
}

func NewSqliteRunStore(database *sql.DB) SqliteRunStore {
	return SqliteRunStore{
		db:  database,
		qry: db.New(database),
	}
}

func (s SqliteRunStore) GetLatestCursor(ctx context.Context, key ConnectorKey) (string, error) {
	cursor, err := s.qry.GetRunCursor(ctx, key.String())
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return cursor, err
}

func (s SqliteRunStore) PersistCursor(ctx context.Context, key ConnectorKey, cursor string) error {
	return s.qry.SetRunCursor(ctx, db.SetRunCursorParams{
		ConnectorKey: key.String(),
		Cursor:       cursor,
		UpdatedAt:    time.Now().Unix(),
	})
}

func (s SqliteRunStore) CreateRun(ctx context.Context, key ConnectorKey, input CreateRunInput) (string, error) {
	id := uuid.NewString()
	err := s.qry.CreateRun(ctx, db.CreateRunParams{
		ID:           id,
		ConnectorKey: key.String(),
		Status:       string(input.Status),
		StartedAt:    input.StartedAt.Unix(),
		Cursor:       nullString(input.Cursor),
		AttemptCount: input.AttemptCount,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func marshalStats(stats *RunStats) (sql.NullString, error) {
	if stats == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return sql.NullString{}, err
	}
	return nullString(string(raw)), nil
}

func (s SqliteRunStore) UpdateRun(ctx context.Context, runID string, update RunUpdate) error {
	stats, err := marshalStats(update.Stats)
	if err != nil {
		return err
	}
	return s.qry.UpdateRun(ctx, db.UpdateRunParams{
		ID:           runID,
		Status:       string(update.Status),
		FinishedAt:   nullTime(update.FinishedAt),
		ErrorMessage: nullString(update.ErrorMessage),
		Cursor:       nullString(update.Cursor),
		Stats:        stats,
		AttemptCount: update.AttemptCount,
	})
}

func runRecordFromRow(row db.Run) (RunRecord, error) {
	record := RunRecord{
		ID:           row.ID,
		Connector:    splitConnectorKey(row.ConnectorKey),
		Status:       RunStatusType(row.Status),
		StartedAt:    time.Unix(row.StartedAt, 0).UTC(),
		Cursor:       row.Cursor.String,
		ErrorMessage: row.ErrorMessage.String,
		AttemptCount: row.AttemptCount,
	}
	if row.FinishedAt.Valid {
		record.FinishedAt = time.Unix(row.FinishedAt.Int64, 0).UTC()
	}
	if row.Stats.Valid {
		var stats RunStats
		if err := json.Unmarshal([]byte(row.Stats.String), &stats); err != nil {
			return RunRecord{}, err
		}
		record.Stats = &stats
	}
	return record, nil
}

func (s SqliteRunStore) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	row, err := s.qry.GetRun(ctx, runID)
	if err != nil {
		return RunRecord{}, err
	}
	return runRecordFromRow(row)
}

func (s SqliteRunStore) ListRunsByConnector(ctx context.Context, key ConnectorKey) ([]RunRecord, error) {
	rows, err := s.qry.ListRunsByConnector(ctx, key.String())
	if err != nil {
		return nil, err
	}
	records := make([]RunRecord, 0, len(rows))
	for _, row := range rows {
		record, err := runRecordFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}
