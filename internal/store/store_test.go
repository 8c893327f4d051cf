package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Enroleai/Uni-Automation/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(interface{}) bool

func (f ArgumentMatcherFunc) Match(v interface{}) bool {
	return f(v)
}

// anyArg accepts any value (timestamps, encoded JSON).
var anyArg = ArgumentMatcherFunc(func(v interface{}) bool {
	return true
})

// anyArgs matches a statement with exactly n arguments of any value.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = anyArg
	}
	return args
}

var submissionColumns = []string{
	"id", "record_id", "target", "status", "account_email", "account_created", "email_verified",
	"confirmation_id", "last_error", "retry_count", "created_at", "updated_at", "submission_date",
}

func newMockStore(t *testing.T, logger *zap.Logger) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing().WillReturnError(nil)
	store, err := New(context.Background(), mockPool, logger)
	require.NoError(t, err)
	return store, mockPool
}

func sampleSubmission() *schemas.Submission {
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return &schemas.Submission{
		ID:              "3d0f4f36-8d3c-4a55-9a3c-5a4f4f1d2b7e",
		RecordID:        7,
		Target:          "State University",
		Status:          schemas.StatusPending,
		AccountEmail:    "ada@example.com",
		AccountPassword: "s3cret",
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

// -- Test Cases --

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestEnsureSchema(t *testing.T) {
	store, mockPool := newMockStore(t, zap.NewNop())

	mockPool.ExpectExec("CREATE TABLE IF NOT EXISTS records").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))

	mockPool.ExpectExec("CREATE TABLE IF NOT EXISTS records").
		WillReturnError(errors.New("permission denied"))
	assert.Error(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestCreateSubmission(t *testing.T) {
	ctx := context.Background()

	t.Run("should insert without the password and with UTC timestamps", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		sub := sampleSubmission()
		loc, err := time.LoadLocation("America/New_York")
		require.NoError(t, err)
		sub.CreatedAt = sub.CreatedAt.In(loc)

		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertSubmission)).
			WithArgs(
				sub.ID, sub.RecordID, sub.Target, "pending", sub.AccountEmail,
				false, false, "", "", 0,
				ArgumentMatcherFunc(func(v interface{}) bool {
					ts, ok := v.(time.Time)
					return ok && ts.Location() == time.UTC && ts.Equal(sub.CreatedAt)
				}),
				anyArg,
				(*time.Time)(nil),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, store.CreateSubmission(ctx, sub))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should wrap driver errors", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		dbErr := errors.New("duplicate key")
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertSubmission)).
			WithArgs(anyArgs(13)...).
			WillReturnError(dbErr)

		err := store.CreateSubmission(ctx, sampleSubmission())
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestUpdateSubmission(t *testing.T) {
	ctx := context.Background()

	t.Run("should write the mutable columns", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		sub := sampleSubmission()
		require.NoError(t, sub.Advance(schemas.StatusAccountCreation, sub.CreatedAt))
		sub.MarkAccountCreated(sub.CreatedAt)
		require.NoError(t, sub.Fail(errors.New("login rejected"), sub.CreatedAt))

		mockPool.ExpectExec(flexibleSQLMatcher(sqlUpdateSubmission)).
			WithArgs(sub.ID, "failed", true, false, "", "login rejected", 1, anyArg, (*time.Time)(nil)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, store.UpdateSubmission(ctx, sub))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should report unknown submissions", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectExec(flexibleSQLMatcher(sqlUpdateSubmission)).
			WithArgs(anyArgs(9)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := store.UpdateSubmission(ctx, sampleSubmission())
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestGetAndListSubmissions(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	submitted := created.Add(10 * time.Minute)

	t.Run("should scan a submission by id", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		rows := pgxmock.NewRows(submissionColumns).
			AddRow("sub-1", int64(7), "State University", "submitted", "ada@example.com", true, true,
				"APP-1234", "", 0, created, submitted, &submitted)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectSubmissions + " WHERE id = $1;")).
			WithArgs("sub-1").
			WillReturnRows(rows)

		sub, err := store.GetSubmission(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, schemas.StatusSubmitted, sub.Status)
		assert.Equal(t, "APP-1234", sub.ConfirmationID)
		require.NotNil(t, sub.SubmissionDate)
		assert.True(t, sub.SubmissionDate.Equal(submitted))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should map no rows to ErrNotFound", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectSubmissions + " WHERE id = $1;")).
			WithArgs("missing").
			WillReturnError(pgx.ErrNoRows)

		_, err := store.GetSubmission(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should filter by record id", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		recordID := int64(7)
		rows := pgxmock.NewRows(submissionColumns).
			AddRow("sub-1", int64(7), "A", "failed", "ada@example.com", true, false, "", "boom", 1, created, created, (*time.Time)(nil)).
			AddRow("sub-2", int64(7), "B", "submitted", "ada@example.com", true, false, "", "", 0, created, submitted, &submitted)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectSubmissions + " WHERE record_id = $1 ORDER BY created_at ASC;")).
			WithArgs(recordID).
			WillReturnRows(rows)

		subs, err := store.ListSubmissions(ctx, &recordID)
		require.NoError(t, err)
		require.Len(t, subs, 2)
		assert.Equal(t, "boom", subs[0].LastError)
		assert.Equal(t, 1, subs[0].RetryCount)
		assert.Nil(t, subs[0].SubmissionDate)
		assert.Equal(t, schemas.StatusSubmitted, subs[1].Status)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should list everything without a filter", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectSubmissions + " ORDER BY created_at ASC;")).
			WillReturnRows(pgxmock.NewRows(submissionColumns))

		subs, err := store.ListSubmissions(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, subs)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSaveRecords(t *testing.T) {
	ctx := context.Background()
	records := []schemas.Record{
		{ID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		{ID: 2, FirstName: "Alan", LastName: "Turing", Email: "alan@example.com"},
	}

	t.Run("should upsert in one transaction without rollback errors", func(t *testing.T) {
		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		store, mockPool := newMockStore(t, zap.New(observedZapCore))

		mockPool.ExpectBegin()
		batchExp := mockPool.ExpectBatch()
		for _, r := range records {
			batchExp.ExpectExec(flexibleSQLMatcher(sqlUpsertRecord)).
				WithArgs(r.ID, r.Email, anyArg, anyArg, anyArg).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, store.SaveRecords(ctx, records))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, observedLogs.All(), "Expected no errors logged on successful commit")
	})

	t.Run("should rollback if an upsert fails", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		batchErr := errors.New("constraint violation")

		mockPool.ExpectBegin()
		batchExp := mockPool.ExpectBatch()
		batchExp.ExpectExec(flexibleSQLMatcher(sqlUpsertRecord)).
			WithArgs(int64(1), "ada@example.com", anyArg, anyArg, anyArg).
			WillReturnError(batchErr)
		mockPool.ExpectRollback()

		err := store.SaveRecords(ctx, records[:1])
		require.Error(t, err)
		assert.ErrorIs(t, err, batchErr)
		assert.Contains(t, err.Error(), "failed to upsert record 1")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should do nothing for an empty slice", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		require.NoError(t, store.SaveRecords(ctx, nil))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestGetAndListRecords(t *testing.T) {
	ctx := context.Background()

	t.Run("should decode the stored document", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		data := []byte(`{"id":3,"first_name":"Grace","last_name":"Hopper","email":"grace@example.com","sat_score":1500}`)
		mockPool.ExpectQuery(flexibleSQLMatcher(`SELECT data FROM records WHERE id = $1;`)).
			WithArgs(int64(3)).
			WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(data))

		rec, err := store.GetRecord(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "Grace", rec.FirstName)
		assert.Equal(t, 1500, rec.SATScore)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should map no rows to ErrNotFound", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectQuery(flexibleSQLMatcher(`SELECT data FROM records WHERE id = $1;`)).
			WithArgs(int64(99)).
			WillReturnError(pgx.ErrNoRows)

		_, err := store.GetRecord(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should list records in id order", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		rows := pgxmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"id":1,"first_name":"Ada","last_name":"L","email":"ada@example.com"}`)).
			AddRow([]byte(`{"id":2,"first_name":"Alan","last_name":"T","email":"alan@example.com"}`))
		mockPool.ExpectQuery(flexibleSQLMatcher(`SELECT data FROM records ORDER BY id ASC;`)).
			WillReturnRows(rows)

		records, err := store.ListRecords(ctx)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, int64(2), records[1].ID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should surface corrupt documents", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectQuery(flexibleSQLMatcher(`SELECT data FROM records ORDER BY id ASC;`)).
			WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{not json`)))

		_, err := store.ListRecords(ctx)
		assert.Error(t, err)
	})
}
