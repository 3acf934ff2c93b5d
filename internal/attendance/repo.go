package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists attendance data in Postgres. It implements Ledger
// and Roster; see schema.sql for the backing tables.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Append writes the Present record for identity at ts. The insert is
// conditional on the deterministic record id: a duplicate (retry or
// concurrent submission inside the same minute) reports created == false
// and leaves the ledger untouched.
func (r *Repository) Append(ctx context.Context, identity string, ts time.Time) (Record, bool, error) {
	if identity == "" {
		return Record{}, false, errors.New("identity required")
	}
	rec := NewPresentRecord(identity, ts)
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (record_id, identity, occurred_at, date, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (record_id) DO NOTHING
		RETURNING created_at
	`, rec.ID, rec.Identity, rec.OccurredAt, rec.Date, rec.Status)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Conflict: hand back the row already in the ledger so the
			// caller sees what actually happened, not the retry's view.
			existing, gerr := r.getRecord(ctx, rec.ID)
			if gerr != nil {
				return Record{}, false, gerr
			}
			return existing, false, nil
		}
		return Record{}, false, err
	}
	return rec, true, nil
}

func (r *Repository) getRecord(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT record_id, identity, occurred_at, date, status, created_at
		FROM attendance_records WHERE record_id = $1
	`, id)
	var rec Record
	err := row.Scan(&rec.ID, &rec.Identity, &rec.OccurredAt, &rec.Date, &rec.Status, &rec.CreatedAt)
	return rec, err
}

// LastPresent returns the most recent Present record for identity, or nil
// when none exists. Backed by the (identity, occurred_at DESC) index.
func (r *Repository) LastPresent(ctx context.Context, identity string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT record_id, identity, occurred_at, date, status, created_at
		FROM attendance_records
		WHERE identity = $1 AND status = $2
		ORDER BY occurred_at DESC
		LIMIT 1
	`, identity, StatusPresent)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.Identity, &rec.OccurredAt, &rec.Date, &rec.Status, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// IncrementCounter bumps the running Present total for identity in a single
// statement and returns the new count. The add happens in the store, so
// concurrent increments never lose updates.
func (r *Repository) IncrementCounter(ctx context.Context, identity string) (int, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE identities
		SET present_count = present_count + 1
		WHERE identity = $1
		RETURNING present_count
	`, identity)
	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("identity %s not enrolled", identity)
		}
		return 0, err
	}
	return count, nil
}

// Person returns the roster entry for identity, or nil when not enrolled.
func (r *Repository) Person(ctx context.Context, identity string) (*Person, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT identity, name, phone, present_count, created_at
		FROM identities WHERE identity = $1
	`, identity)
	var p Person
	if err := row.Scan(&p.Identity, &p.Name, &p.Phone, &p.PresentCount, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// UpsertPerson creates or updates a roster entry.
func (r *Repository) UpsertPerson(ctx context.Context, identity string, name, phone *string) error {
	if identity == "" {
		return errors.New("identity required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (identity, name, phone)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, identities.name),
			phone = COALESCE(EXCLUDED.phone, identities.phone)
	`, identity, name, phone)
	return err
}

// ListRecords returns ledger entries with basic filters, newest first.
func (r *Repository) ListRecords(ctx context.Context, identity, date string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT record_id, identity, occurred_at, date, status, created_at FROM attendance_records`
	args := []any{}
	clauses := []string{}
	if identity != "" {
		clauses = append(clauses, "identity = $"+itoa(len(args)+1))
		args = append(args, identity)
	}
	if date != "" {
		clauses = append(clauses, "date = $"+itoa(len(args)+1))
		args = append(args, date)
	}
	if len(clauses) > 0 {
		query += " WHERE " + joinClauses(clauses, " AND ")
	}
	query += " ORDER BY occurred_at DESC LIMIT $" + itoa(len(args)+1) + " OFFSET $" + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Identity, &rec.OccurredAt, &rec.Date, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// MarkAbsentees writes an Absent record for every enrolled identity with no
// Present record on the given date. Returns how many were marked. The
// record id depends only on identity and date, so a re-run of the sweep for
// the same date is a no-op regardless of when it runs.
func (r *Repository) MarkAbsentees(ctx context.Context, date string, asOf time.Time) (int, error) {
	suffix := absentSuffix(date)
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (record_id, identity, occurred_at, date, status)
		SELECT i.identity || $1, i.identity, $2, $3, $4
		FROM identities i
		WHERE NOT EXISTS (
			SELECT 1 FROM attendance_records a
			WHERE a.identity = i.identity AND a.date = $3 AND a.status = $5
		)
		ON CONFLICT (record_id) DO NOTHING
	`, suffix, asOf.UTC(), date, StatusAbsent, StatusPresent)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// UpsertStation ensures a capture station record exists.
func (r *Repository) UpsertStation(ctx context.Context, stationID string) error {
	if stationID == "" {
		return errors.New("station id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stations (station_id)
		VALUES ($1)
		ON CONFLICT (station_id) DO NOTHING
	`, stationID)
	return err
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, stationID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, station_id, token, expires_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), stationID, token, expiresAt)
	return err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
