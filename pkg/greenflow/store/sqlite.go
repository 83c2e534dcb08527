package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"k8s.io/klog/v2"
	"k8s.io/utils/ptr"

	"github.com/elevated-systems/greenflow/pkg/greenflow/types"
)

const eventColumns = `id, source, timestamp, co2_ppm, risk_score, carbon_score, severity, anomaly, location, raw_payload`

const alertColumns = `id, event_id, alert_type, severity, message, timestamp, resolved`

// SQLiteStore implements Store on a SQLite database file
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = &SQLiteStore{}

// NewSQLiteStore opens the database at dbPath, creating its directory and
// tables as needed.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	klog.V(2).InfoS("Opened event store", "path", dbPath)
	return s, nil
}

// NewFromDB wraps an existing connection pool without touching the schema
func NewFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		timestamp REAL NOT NULL,
		co2_ppm REAL NOT NULL,
		risk_score REAL NOT NULL,
		carbon_score REAL NOT NULL,
		severity TEXT NOT NULL,
		anomaly BOOLEAN NOT NULL DEFAULT 0,
		location TEXT,
		raw_payload TEXT -- JSON snapshot of the submitted reading
	);

	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);

	CREATE TABLE IF NOT EXISTS system_alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id INTEGER NOT NULL,
		alert_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		timestamp REAL NOT NULL,
		resolved BOOLEAN NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_event ON system_alerts(event_id);
	CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON system_alerts(timestamp);

	CREATE TABLE IF NOT EXISTS query_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT,
		query TEXT NOT NULL,
		answer TEXT,
		source_count INTEGER NOT NULL DEFAULT 0,
		latency_ms REAL,
		timestamp REAL NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			klog.ErrorS(rbErr, "Failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetEvent(ctx context.Context, id int64) (*types.PersistedEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", id, err)
	}
	return event, nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, limit, offset int) ([]types.PersistedEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []types.PersistedEvent{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) LatestEvent(ctx context.Context) (*types.PersistedEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY timestamp DESC, id DESC LIMIT 1`)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest event: %w", err)
	}
	return event, nil
}

func (s *SQLiteStore) Summary(ctx context.Context, since float64) (*types.Summary, error) {
	summary := &types.Summary{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&summary.EventCount); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	var avgCO2, maxRisk sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT AVG(co2_ppm), MAX(risk_score) FROM events WHERE timestamp >= ?`, since).
		Scan(&avgCO2, &maxRisk)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate events: %w", err)
	}
	if avgCO2.Valid {
		summary.AverageCO224h = ptr.To(avgCO2.Float64)
	}
	if maxRisk.Valid {
		summary.MaxRisk24h = ptr.To(maxRisk.Float64)
	}

	latest, err := s.LatestEvent(ctx)
	switch {
	case err == nil:
		summary.Latest = latest
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return summary, nil
}

func (s *SQLiteStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]types.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM system_alerts`
	if filter.UnresolvedOnly {
		query += ` WHERE resolved = 0`
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return collectAlerts(rows)
}

func (s *SQLiteStore) AlertsForEvent(ctx context.Context, eventID int64) ([]types.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM system_alerts WHERE event_id = ? ORDER BY id ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts for event %d: %w", eventID, err)
	}
	return collectAlerts(rows)
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) InsertEvent(ctx context.Context, event *types.PersistedEvent) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO events (source, timestamp, co2_ppm, risk_score, carbon_score, severity, anomaly, location, raw_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Source, event.Timestamp, event.CO2PPM, event.RiskScore, event.CarbonScore,
		string(event.Severity), event.Anomaly, nullString(event.Location), event.RawPayload)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read event id: %w", err)
	}
	event.ID = id
	return nil
}

func (t *sqlTx) InsertAlerts(ctx context.Context, alerts []types.Alert) error {
	for i := range alerts {
		a := &alerts[i]
		res, err := t.tx.ExecContext(ctx, `
			INSERT INTO system_alerts (event_id, alert_type, severity, message, timestamp, resolved)
			VALUES (?, ?, ?, ?, ?, ?)`,
			a.EventID, string(a.Type), string(a.Severity), a.Message, a.Timestamp, a.Resolved)
		if err != nil {
			return fmt.Errorf("failed to insert %s alert: %w", a.Type, err)
		}
		if a.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read alert id: %w", err)
		}
	}
	return nil
}

func (t *sqlTx) InsertQueryLog(ctx context.Context, entry *types.QueryLog) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO query_logs (request_id, query, answer, source_count, latency_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.RequestID, entry.Query, entry.Answer, entry.SourceCount, entry.LatencyMS, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert query log: %w", err)
	}
	if entry.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read query log id: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*types.PersistedEvent, error) {
	var (
		event    types.PersistedEvent
		severity string
		location sql.NullString
		payload  sql.NullString
	)
	err := row.Scan(&event.ID, &event.Source, &event.Timestamp, &event.CO2PPM,
		&event.RiskScore, &event.CarbonScore, &severity, &event.Anomaly, &location, &payload)
	if err != nil {
		return nil, err
	}
	event.Severity = types.Severity(severity)
	if location.Valid {
		event.Location = ptr.To(location.String)
	}
	event.RawPayload = payload.String
	return &event, nil
}

func collectAlerts(rows *sql.Rows) ([]types.Alert, error) {
	defer rows.Close()

	alerts := []types.Alert{}
	for rows.Next() {
		var (
			a        types.Alert
			typ, sev string
		)
		if err := rows.Scan(&a.ID, &a.EventID, &typ, &sev, &a.Message, &a.Timestamp, &a.Resolved); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Type = types.AlertType(typ)
		a.Severity = types.AlertSeverity(sev)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
