package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/tiergate/internal/domain/feedback"
	"github.com/okian/tiergate/internal/domain/model"
	"github.com/okian/tiergate/pkg/logger"
)

const postgresSchema = `
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
	verdict       JSONB,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS submissions_submitter_idx ON submissions (submitter_id, created_at);
`

const submissionColumns = `id, submitter_id, account_name, tier, role, log_url, encounter_id, pool, status, message, verdict, created_at, updated_at`

// serializationFailure is the SQLSTATE of a serializable transaction that
// lost a conflict.
const serializationFailure = "40001"

// PostgresStore implements Store on PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts options
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects, pings and creates the schema.
func NewPostgresStore(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	o := newOptions(opts)

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse dsn: %w", ErrOpenStore, err)
	}
	cfg.MaxConns = o.maxConns
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create pool: %w", ErrOpenStore, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrOpenStore, err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: migrate: %w", ErrOpenStore, err)
	}
	o.log.Info(ctx, "postgres store ready", logger.Int("max_conns", int(o.maxConns)))
	return &PostgresStore{pool: pool, opts: o}, nil
}

func (s *PostgresStore) Create(ctx context.Context, sub model.Submission) error {
	verdict, err := encodeVerdict(sub.Verdict)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		sub.ID, sub.SubmitterID, sub.AccountName, sub.Tier, sub.Role, sub.LogURL,
		sub.EncounterID, string(sub.Pool), string(sub.Status), sub.Message, verdict,
		sub.CreatedAt, sub.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrExists, sub.ID)
	}
	if err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (model.Submission, error) {
	return getPostgres(ctx, s.pool, id)
}

func (s *PostgresStore) ListBySubmitter(ctx context.Context, submitterID string) ([]model.Submission, error) {
	return listPostgres(ctx, s.pool, `submitter_id = $1`, submitterID)
}

func (s *PostgresStore) ListUnvalidated(ctx context.Context) ([]model.Submission, error) {
	return listPostgres(ctx, s.pool, `status = $1 AND verdict IS NULL`, string(model.StatusPending))
}

func (s *PostgresStore) AssignPool(ctx context.Context, id string, encounterID int, pool model.BossPool) (model.Submission, []model.Submission, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return model.Submission{}, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE submissions SET encounter_id = $2, pool = $3, updated_at = $4 WHERE id = $1`,
		id, encounterID, string(pool), s.opts.now())
	if err != nil {
		return model.Submission{}, nil, classifyPostgres("assign pool", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Submission{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	current, err := getPostgres(ctx, tx, id)
	if err != nil {
		return model.Submission{}, nil, classifyPostgres("read submission", err)
	}
	history, err := listPostgres(ctx, tx, `submitter_id = $1`, current.SubmitterID)
	if err != nil {
		return model.Submission{}, nil, classifyPostgres("read history", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Submission{}, nil, classifyPostgres("commit", err)
	}
	return current, history, nil
}

func (s *PostgresStore) SaveVerdict(ctx context.Context, id string, status model.Status, message string, verdict *feedback.Collection) error {
	b, err := encodeVerdict(verdict)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE submissions SET status = $2, message = $3, verdict = $4, updated_at = $5 WHERE id = $1`,
		id, string(status), message, b, s.opts.now())
	if err != nil {
		return fmt.Errorf("save verdict: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE submissions SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), s.opts.now())
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM submissions GROUP BY status`)
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getPostgres(ctx context.Context, q querier, id string) (model.Submission, error) {
	row := q.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	sub, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Submission{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Submission{}, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

func listPostgres(ctx context.Context, q querier, where string, args ...any) ([]model.Submission, error) {
	rows, err := q.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE `+where+` ORDER BY created_at, id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		sub, err := scanPostgres(rows)
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

func scanPostgres(row pgx.Row) (model.Submission, error) {
	var sub model.Submission
	var pool, status string
	var verdict []byte
	err := row.Scan(
		&sub.ID, &sub.SubmitterID, &sub.AccountName, &sub.Tier, &sub.Role, &sub.LogURL,
		&sub.EncounterID, &pool, &status, &sub.Message, &verdict, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return model.Submission{}, err
	}
	sub.Pool = model.BossPool(pool)
	sub.Status = model.Status(status)
	sub.Verdict, err = decodeVerdict(verdict)
	if err != nil {
		return model.Submission{}, err
	}
	return sub, nil
}

func classifyPostgres(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == serializationFailure {
		return fmt.Errorf("%w: %s: %w", ErrConflict, op, err)
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
