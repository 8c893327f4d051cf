// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Enroleai/Uni-Automation/api/schemas"
	"github.com/Enroleai/Uni-Automation/internal/submission"
)

// -- Mock Implementations for Testing --

type call struct {
	record int64
	target string
	pass   string
}

// mockRunner fails the pairs listed in failing and succeeds everything else.
type mockRunner struct {
	mu      sync.Mutex
	calls   []call
	failing map[string]bool
	onRun   func(n int) // -- hook invoked after each run --
}

func (m *mockRunner) Run(ctx context.Context, record schemas.Record, target schemas.Target, password string) submission.Outcome {
	m.mu.Lock()
	m.calls = append(m.calls, call{record: record.ID, target: target.Name, pass: password})
	n := len(m.calls)
	m.mu.Unlock()
	defer func() {
		if m.onRun != nil {
			m.onRun(n)
		}
	}()

	sub := schemas.NewSubmission(record.ID, target.Name, record.Email, password, time.Now())
	if m.failing[fmt.Sprintf("%d/%s", record.ID, target.Name)] {
		err := errors.New("login failed")
		_ = sub.Fail(err, time.Now())
		return submission.Outcome{Submission: sub, Err: err}
	}
	sub.Status = schemas.StatusSubmitted
	return submission.Outcome{Submission: sub}
}

func fixtures() ([]schemas.Record, []schemas.Target) {
	records := []schemas.Record{{ID: 1, Email: "a@example.com"}, {ID: 2, Email: "b@example.com"}}
	targets := []schemas.Target{{Name: "alpha"}, {Name: "beta"}, {Name: "gamma"}}
	return records, targets
}

func newTestOrchestrator(t *testing.T, r Runner, delay time.Duration) (*Orchestrator, *[]time.Duration) {
	t.Helper()
	o, err := New(r, delay, zaptest.NewLogger(t))
	require.NoError(t, err)
	var sleeps []time.Duration
	o.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return o, &sleeps
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, time.Second, zaptest.NewLogger(t))
	assert.Error(t, err)
	_, err = New(&mockRunner{}, time.Second, nil)
	assert.Error(t, err)

	o, err := New(&mockRunner{}, -time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Zero(t, o.delay)
}

func TestRun_CrossProductOrder(t *testing.T) {
	runner := &mockRunner{failing: map[string]bool{"1/beta": true, "2/gamma": true}}
	o, sleeps := newTestOrchestrator(t, runner, 5*time.Second)
	records, targets := fixtures()

	result := o.Run(context.Background(), records, targets, "S3cret!")

	assert.Equal(t, 6, result.Total)
	assert.Equal(t, 4, result.Successful)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, result.Total, result.Successful+result.Failed)

	want := []call{
		{1, "alpha", "S3cret!"}, {1, "beta", "S3cret!"}, {1, "gamma", "S3cret!"},
		{2, "alpha", "S3cret!"}, {2, "beta", "S3cret!"}, {2, "gamma", "S3cret!"},
	}
	assert.Equal(t, want, runner.calls)

	require.Len(t, result.Details, 6)
	for i, d := range result.Details {
		assert.Equal(t, want[i].record, d.RecordID)
		assert.Equal(t, want[i].target, d.Target)
		assert.NotEmpty(t, d.SubmissionID)
	}
	assert.False(t, result.Details[1].Success)
	assert.Equal(t, schemas.StatusFailed, result.Details[1].Status)
	assert.Equal(t, "login failed", result.Details[1].Error)
	assert.Equal(t, schemas.StatusSubmitted, result.Details[0].Status)

	assert.Len(t, *sleeps, 5, "no delay after the last pair")
	for _, d := range *sleeps {
		assert.Equal(t, 5*time.Second, d)
	}
}

func TestRun_CancellationReportsRemainingPairs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &mockRunner{onRun: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	o, _ := newTestOrchestrator(t, runner, time.Second)
	records, targets := fixtures()

	result := o.Run(ctx, records, targets, "")

	assert.Len(t, runner.calls, 2)
	assert.Equal(t, 6, result.Total)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 4, result.Failed)
	for _, d := range result.Details[2:] {
		assert.False(t, d.Success)
		assert.Equal(t, schemas.StatusFailed, d.Status)
		assert.Equal(t, context.Canceled.Error(), d.Error)
		assert.Empty(t, d.SubmissionID)
	}
	assert.Equal(t, "gamma", result.Details[2].Target)
	assert.Equal(t, int64(2), result.Details[5].RecordID)
}

func TestRun_Empty(t *testing.T) {
	o, sleeps := newTestOrchestrator(t, &mockRunner{}, time.Second)
	records, _ := fixtures()

	result := o.Run(context.Background(), records, nil, "")

	assert.Zero(t, result.Total)
	assert.Empty(t, result.Details)
	assert.Empty(t, *sleeps)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
