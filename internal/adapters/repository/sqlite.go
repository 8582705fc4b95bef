package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/tiergate/internal/domain/feedback"
	"github.com/okian/tiergate/internal/domain/model"
	"github.com/okian/tiergate/pkg/logger"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS submissions (
	id            TEXT PRIMARY KEY,
	submitter_id  TEXT NOT NULL,
	account_name  TEXT NOT NULL,
	tier          INTEGER NOT NULL,
	role          TEXT NOT NULL DEFAULT '',
	log_url       TEXT NOT NULL,
	encounter_id  INTEGER NOT NULL DEFAULT 0,
	pool          TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	message       TEXT NOT NULL DEFAULT '',
	verdict       TEXT,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS submissions_submitter_idx ON submissions (submitter_id, created_at);
`

// SQLiteStore implements Store on a SQLite file. A single connection
// serializes every writer, so AssignPool needs no extra locking.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at path and creates the schema.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := newOptions(opts)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %w", ErrOpenStore, err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", sqliteSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %w", ErrOpenStore, err)
		}
	}
	o.log.Info(ctx, "sqlite store ready", logger.String("path", path))
	return &SQLiteStore{db: db, opts: o}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, sub model.Submission) error {
	verdict, err := encodeVerdict(sub.Verdict)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.SubmitterID, sub.AccountName, sub.Tier, sub.Role, sub.LogURL,
		sub.EncounterID, string(sub.Pool), string(sub.Status), sub.Message, nullText(verdict),
		formatTime(sub.CreatedAt), formatTime(sub.UpdatedAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %s", ErrExists, sub.ID)
	}
	if err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Submission, error) {
	return getSQLite(ctx, s.db, id)
}

func (s *SQLiteStore) ListBySubmitter(ctx context.Context, submitterID string) ([]model.Submission, error) {
	return listSQLite(ctx, s.db, `submitter_id = ?`, submitterID)
}

func (s *SQLiteStore) ListUnvalidated(ctx context.Context) ([]model.Submission, error) {
	return listSQLite(ctx, s.db, `status = ? AND verdict IS NULL`, string(model.StatusPending))
}

func (s *SQLiteStore) AssignPool(ctx context.Context, id string, encounterID int, pool model.BossPool) (model.Submission, []model.Submission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Submission{}, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE submissions SET encounter_id = ?, pool = ?, updated_at = ? WHERE id = ?`,
		encounterID, string(pool), formatTime(s.opts.now()), id)
	if err != nil {
		return model.Submission{}, nil, fmt.Errorf("assign pool: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Submission{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	current, err := getSQLite(ctx, tx, id)
	if err != nil {
		return model.Submission{}, nil, err
	}
	history, err := listSQLite(ctx, tx, `submitter_id = ?`, current.SubmitterID)
	if err != nil {
		return model.Submission{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return model.Submission{}, nil, fmt.Errorf("commit: %w", err)
	}
	return current, history, nil
}

func (s *SQLiteStore) SaveVerdict(ctx context.Context, id string, status model.Status, message string, verdict *feedback.Collection) error {
	b, err := encodeVerdict(verdict)
	if err != nil {
		return err
	}
	return s.update(ctx, id,
		`UPDATE submissions SET status = ?, message = ?, verdict = ?, updated_at = ? WHERE id = ?`,
		string(status), message, nullText(b), formatTime(s.opts.now()), id)
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	return s.update(ctx, id,
		`UPDATE submissions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(s.opts.now()), id)
}

func (s *SQLiteStore) update(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM submissions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	out := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[model.Status(status)] = n
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqlQuerier is satisfied by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func getSQLite(ctx context.Context, q sqlQuerier, id string) (model.Submission, error) {
	row := q.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Submission{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Submission{}, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

func listSQLite(ctx context.Context, q sqlQuerier, where string, args ...any) ([]model.Submission, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE `+where+` ORDER BY created_at, id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		sub, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

func scanSQLite(row scanner) (model.Submission, error) {
	var sub model.Submission
	var pool, status, createdAt, updatedAt string
	var verdict sql.NullString
	err := row.Scan(
		&sub.ID, &sub.SubmitterID, &sub.AccountName, &sub.Tier, &sub.Role, &sub.LogURL,
		&sub.EncounterID, &pool, &status, &sub.Message, &verdict, &createdAt, &updatedAt,
	)
	if err != nil {
		return model.Submission{}, err
	}
	sub.Pool = model.BossPool(pool)
	sub.Status = model.Status(status)
	if sub.CreatedAt, err = time.Parse(sqliteTime, createdAt); err != nil {
		return model.Submission{}, fmt.Errorf("parse created_at: %w", err)
	}
	if sub.UpdatedAt, err = time.Parse(sqliteTime, updatedAt); err != nil {
		return model.Submission{}, fmt.Errorf("parse updated_at: %w", err)
	}
	if verdict.Valid {
		if sub.Verdict, err = decodeVerdict([]byte(verdict.String)); err != nil {
			return model.Submission{}, err
		}
	}
	return sub, nil
}

// sqliteTime keeps a fixed width so text ordering matches time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func nullText(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
