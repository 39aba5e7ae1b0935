package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/qiniu/dcalerts/internal/aggregator/model"
)

// SnapshotRow is one persisted observation of an alert at one cycle
// timestamp. Rows are append-only and never updated.
type SnapshotRow struct {
	TS          time.Time
	Site        string
	AlertName   string
	Status      string
	Fingerprint string
	Source      string
	StartsAt    *time.Time
	EndsAt      *time.Time
	Labels      map[string]string
	Annotations map[string]string
}

// SnapshotRepo is the append-only store for cycle snapshots and per-site
// counts.
type SnapshotRepo struct {
	db *Database
}

func NewSnapshotRepo(db *Database) *SnapshotRepo { return &SnapshotRepo{db: db} }

// Init creates the snapshot tables. Failing here is fatal to startup.
func (r *SnapshotRepo) Init(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS site_counts (
		id BIGSERIAL PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		site TEXT NOT NULL,
		active INT NOT NULL,
		suppressed INT NOT NULL,
		total INT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_site_counts_ts ON site_counts(ts);
	CREATE INDEX IF NOT EXISTS idx_site_counts_site ON site_counts(site);

	CREATE TABLE IF NOT EXISTS alert_snapshots (
		id BIGSERIAL PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		site TEXT NOT NULL,
		alertname TEXT,
		status TEXT,
		fingerprint TEXT,
		source TEXT,
		starts_at TIMESTAMPTZ,
		ends_at TIMESTAMPTZ,
		labels JSONB,
		annotations JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_alert_snapshots_ts ON alert_snapshots(ts);
	CREATE INDEX IF NOT EXISTS idx_alert_snapshots_site ON alert_snapshots(site);
	CREATE INDEX IF NOT EXISTS idx_alert_snapshots_fingerprint ON alert_snapshots(fingerprint);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init snapshot schema: %w", err)
	}
	return nil
}

// AppendCountRow records the per-site totals for one cycle.
func (r *SnapshotRepo) AppendCountRow(ctx context.Context, ts time.Time, site string, active, suppressed, total int) error {
	const q = `INSERT INTO site_counts(ts, site, active, suppressed, total) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, q, ts, site, active, suppressed, total); err != nil {
		return fmt.Errorf("append count row: %w", err)
	}
	return nil
}

// AppendAlertRow records one normalized alert's observed state for one cycle.
func (r *SnapshotRepo) AppendAlertRow(ctx context.Context, ts time.Time, site string, a model.NormalizedAlert) error {
	labelsJSON, _ := json.Marshal(a.Labels)
	annotationsJSON, _ := json.Marshal(a.Annotations)

	const q = `
	INSERT INTO alert_snapshots(ts, site, alertname, status, fingerprint, source, starts_at, ends_at, labels, annotations)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10::jsonb)
	`
	_, err := r.db.ExecContext(ctx, q,
		ts, site, a.AlertName, a.Status, a.Fingerprint, a.Source,
		nullableTime(a.StartTime()), nullableTime(a.EndTime()),
		string(labelsJSON), string(annotationsJSON))
	if err != nil {
		return fmt.Errorf("append alert row: %w", err)
	}
	return nil
}

// SnapshotsInRange returns the persisted alert rows with ts in [start, end),
// ordered by ts ascending.
func (r *SnapshotRepo) SnapshotsInRange(ctx context.Context, start, end time.Time) ([]SnapshotRow, error) {
	const q = `
	SELECT ts, site, alertname, status, fingerprint, source, starts_at, ends_at, labels, annotations
	FROM alert_snapshots
	WHERE ts >= $1 AND ts < $2
	ORDER BY ts
	`
	rows, err := r.db.QueryContext(ctx, q, start, end)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var (
			row                   SnapshotRow
			startsAt, endsAt      sql.NullTime
			labelsRaw, annotsRaw  []byte
			name, status, fp, src sql.NullString
		)
		if err := rows.Scan(&row.TS, &row.Site, &name, &status, &fp, &src, &startsAt, &endsAt, &labelsRaw, &annotsRaw); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		row.AlertName = name.String
		row.Status = status.String
		row.Fingerprint = fp.String
		row.Source = src.String
		if startsAt.Valid {
			t := startsAt.Time.UTC()
			row.StartsAt = &t
		}
		if endsAt.Valid {
			t := endsAt.Time.UTC()
			row.EndsAt = &t
		}
		if len(labelsRaw) > 0 {
			_ = json.Unmarshal(labelsRaw, &row.Labels)
		}
		if len(annotsRaw) > 0 {
			_ = json.Unmarshal(annotsRaw, &row.Annotations)
		}
		row.TS = row.TS.UTC()
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
