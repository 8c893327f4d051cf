package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Enroleai/Uni-Automation/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Store provides a PostgreSQL implementation of the Repository interface.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ Repository = (*Store)(nil)

// Connect opens a pgx pool for url and wraps it in a Store.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const schemaSQL = `
    CREATE TABLE IF NOT EXISTS records (
        id BIGINT PRIMARY KEY,
        email TEXT NOT NULL,
        data JSONB NOT NULL,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    );
    CREATE TABLE IF NOT EXISTS submissions (
        id TEXT PRIMARY KEY,
        record_id BIGINT NOT NULL,
        target TEXT NOT NULL,
        status TEXT NOT NULL,
        account_email TEXT NOT NULL DEFAULT '',
        account_created BOOLEAN NOT NULL DEFAULT FALSE,
        email_verified BOOLEAN NOT NULL DEFAULT FALSE,
        confirmation_id TEXT NOT NULL DEFAULT '',
        last_error TEXT NOT NULL DEFAULT '',
        retry_count INTEGER NOT NULL DEFAULT 0,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL,
        submission_date TIMESTAMPTZ
    );
    CREATE INDEX IF NOT EXISTS submissions_record_id_idx ON submissions (record_id);
`

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const sqlInsertSubmission = `
    INSERT INTO submissions (id, record_id, target, status, account_email, account_created, email_verified,
        confirmation_id, last_error, retry_count, created_at, updated_at, submission_date)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
`

// CreateSubmission inserts a new submission row. The account password is not
// persisted.
func (s *Store) CreateSubmission(ctx context.Context, sub *schemas.Submission) error {
	_, err := s.pool.Exec(ctx, sqlInsertSubmission,
		sub.ID, sub.RecordID, sub.Target, string(sub.Status), sub.AccountEmail,
		sub.AccountCreated, sub.EmailVerified, sub.ConfirmationID, sub.LastError,
		sub.RetryCount, sub.CreatedAt.UTC(), sub.UpdatedAt.UTC(), utcPtr(sub.SubmissionDate),
	)
	if err != nil {
		return fmt.Errorf("failed to insert submission %s: %w", sub.ID, err)
	}
	return nil
}

const sqlUpdateSubmission = `
    UPDATE submissions SET
        status = $2,
        account_created = $3,
        email_verified = $4,
        confirmation_id = $5,
        last_error = $6,
        retry_count = $7,
        updated_at = $8,
        submission_date = $9
    WHERE id = $1;
`

// UpdateSubmission writes the mutable columns of an existing submission.
func (s *Store) UpdateSubmission(ctx context.Context, sub *schemas.Submission) error {
	tag, err := s.pool.Exec(ctx, sqlUpdateSubmission,
		sub.ID, string(sub.Status), sub.AccountCreated, sub.EmailVerified,
		sub.ConfirmationID, sub.LastError, sub.RetryCount, sub.UpdatedAt.UTC(),
		utcPtr(sub.SubmissionDate),
	)
	if err != nil {
		return fmt.Errorf("failed to update submission %s: %w", sub.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission %s: %w", sub.ID, ErrNotFound)
	}
	return nil
}

const sqlSelectSubmissions = `
    SELECT id, record_id, target, status, account_email, account_created, email_verified,
        confirmation_id, last_error, retry_count, created_at, updated_at, submission_date
    FROM submissions
`

func scanSubmission(row pgx.Row) (schemas.Submission, error) {
	var (
		sub    schemas.Submission
		status string
	)
	err := row.Scan(
		&sub.ID, &sub.RecordID, &sub.Target, &status, &sub.AccountEmail,
		&sub.AccountCreated, &sub.EmailVerified, &sub.ConfirmationID, &sub.LastError,
		&sub.RetryCount, &sub.CreatedAt, &sub.UpdatedAt, &sub.SubmissionDate,
	)
	sub.Status = schemas.Status(status)
	return sub, err
}

func (s *Store) GetSubmission(ctx context.Context, id string) (*schemas.Submission, error) {
	sub, err := scanSubmission(s.pool.QueryRow(ctx, sqlSelectSubmissions+" WHERE id = $1;", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission %s: %w", id, err)
	}
	return &sub, nil
}

func (s *Store) ListSubmissions(ctx context.Context, recordID *int64) ([]schemas.Submission, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if recordID != nil {
		rows, err = s.pool.Query(ctx, sqlSelectSubmissions+" WHERE record_id = $1 ORDER BY created_at ASC;", *recordID)
	} else {
		rows, err = s.pool.Query(ctx, sqlSelectSubmissions+" ORDER BY created_at ASC;")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var subs []schemas.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return subs, nil
}

const sqlUpsertRecord = `
    INSERT INTO records (id, email, data, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (id) DO UPDATE SET
        email = EXCLUDED.email,
        data = EXCLUDED.data,
        updated_at = EXCLUDED.updated_at;
`

// SaveRecords upserts records in one transaction.
func (s *Store) SaveRecords(ctx context.Context, records []schemas.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for i := range records {
		data, err := json.Marshal(&records[i])
		if err != nil {
			return fmt.Errorf("failed to encode record %d: %w", records[i].ID, err)
		}
		batch.Queue(sqlUpsertRecord, records[i].ID, records[i].Email, data, now, now)
	}

	br := tx.SendBatch(ctx, batch)
	if br == nil {
		return fmt.Errorf("failed to send batch: batch results is nil")
	}
	for i := range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to upsert record %d: %w", records[i].ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func decodeRecord(data []byte) (schemas.Record, error) {
	var rec schemas.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}

func (s *Store) GetRecord(ctx context.Context, id int64) (*schemas.Record, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM records WHERE id = $1;`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("record %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %d: %w", id, err)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) ListRecords(ctx context.Context) ([]schemas.Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM records ORDER BY id ASC;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []schemas.Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
