package repositories

import (
	"context"
	"cone-tracker-service/internal/domain"
	"cone-tracker-service/internal/platform/obs"
	"cone-tracker-service/internal/ports"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Initialize the PostgreSQL export schema.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createConeRecordsQuery := `
	CREATE TABLE IF NOT EXISTS cone_records (
		cone_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		lat TEXT NOT NULL,
		lon TEXT NOT NULL,
		ip TEXT NOT NULL,
		raw_timestamp TEXT NOT NULL,
		recorded_at DOUBLE PRECISION,
		PRIMARY KEY (cone_id, seq)
	);
	`

	createMailingListQuery := `
	CREATE TABLE IF NOT EXISTS mailing_list (
		seq INTEGER PRIMARY KEY,
		email TEXT NOT NULL,
		ip TEXT NOT NULL,
		subscribed_at DOUBLE PRECISION NOT NULL
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_cone_records_ip
	ON cone_records(ip);
	`

	statements := []string{
		createConeRecordsQuery,
		createMailingListQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// Replace the cone_records table with the current contents of every
// marker file. Any malformed marker aborts the export before anything
// is written. Returns the number of rows inserted.
func ExportCones(ctx context.Context, db *sql.DB, repo ports.ConeRepository) (_ int, err error) {
	defer obs.Time(ctx, "export.Cones")(&err)

	if db == nil {
		return 0, errors.New("export cones: DB is nil")
	}

	summaries, err := repo.ListMarkers(ctx)
	if err != nil {
		return 0, fmt.Errorf("export cones: %w", err)
	}

	histories := make(map[int][]domain.ConeRecord, len(summaries))
	for _, s := range summaries {
		recs, err := repo.Load(ctx, s.ID)
		if err != nil {
			return 0, fmt.Errorf("export cones: %w", err)
		}
		histories[s.ID] = recs
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("export cones: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cone_records;`); err != nil {
		return 0, fmt.Errorf("export cones: clear table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO cone_records (cone_id, seq, lat, lon, ip, raw_timestamp, recorded_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7);
	`)
	if err != nil {
		return 0, fmt.Errorf("export cones: prepare insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, s := range summaries {
		for seq, r := range histories[s.ID] {
			if _, err := stmt.ExecContext(ctx, s.ID, seq, r.Lat, r.Long, r.IPAddress, r.Timestamp, nullableFloat(r.Timestamp)); err != nil {
				return 0, fmt.Errorf("export cones: insert cone_id=%d seq=%d: %w", s.ID, seq, err)
			}
			n++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("export cones: commit tx: %w", err)
	}

	return n, nil
}

// Replace the mailing_list table with the parseable rows of the list.
func ExportMailingList(ctx context.Context, db *sql.DB, repo ports.MailingListReader) (_ int, err error) {
	defer obs.Time(ctx, "export.MailingList")(&err)

	if db == nil {
		return 0, errors.New("export mailing list: DB is nil")
	}

	entries, err := repo.ListEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("export mailing list: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("export mailing list: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM mailing_list;`); err != nil {
		return 0, fmt.Errorf("export mailing list: clear table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO mailing_list (seq, email, ip, subscribed_at)
	VALUES ($1, $2, $3, $4);
	`)
	if err != nil {
		return 0, fmt.Errorf("export mailing list: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, i, e.Email, e.IP, e.Timestamp); err != nil {
			return 0, fmt.Errorf("export mailing list: insert seq=%d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("export mailing list: commit tx: %w", err)
	}

	return len(entries), nil
}

func nullableFloat(raw string) sql.NullFloat64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
