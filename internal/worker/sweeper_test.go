package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	calls   atomic.Int32
	deleted int64
	err     error
	block   chan struct{}
}

func (f *fakeLedger) SweepExpired(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.deleted, f.err
}

type sweepRecorder struct {
	deleted int64
	runs    int
}

func (r *sweepRecorder) RecordLogin(string)         {}
func (r *sweepRecorder) RecordSignup(string)        {}
func (r *sweepRecorder) RecordGateRejection(string) {}
func (r *sweepRecorder) RecordRevocation(string)    {}
func (r *sweepRecorder) RecordSweep(n int64, _ time.Duration) {
	r.deleted += n
	r.runs++
}

func TestRunOnce(t *testing.T) {
	ledger := &fakeLedger{deleted: 7}
	rec := &sweepRecorder{}
	s := NewSweeper(ledger, rec, nil)

	assert.Equal(t, int64(7), s.RunOnce(context.Background()))
	assert.Equal(t, int64(7), rec.deleted)
	assert.Equal(t, 1, rec.runs)
}

func TestRunOnce_ErrorIsNotRecorded(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("db down")}
	rec := &sweepRecorder{}
	s := NewSweeper(ledger, rec, nil)

	assert.Zero(t, s.RunOnce(context.Background()))
	assert.Zero(t, rec.runs)
}

func TestRunOnce_SkipsWhileRunning(t *testing.T) {
	ledger := &fakeLedger{deleted: 1, block: make(chan struct{})}
	s := NewSweeper(ledger, nil, nil)

	done := make(chan int64)
	go func() { done <- s.RunOnce(context.Background()) }()
	require.Eventually(t, func() bool { return ledger.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	assert.Zero(t, s.RunOnce(context.Background()))
	close(ledger.block)
	assert.Equal(t, int64(1), <-done)
	assert.Equal(t, int32(1), ledger.calls.Load())
}

func TestStart_RunsOnSchedule(t *testing.T) {
	ledger := &fakeLedger{}
	s := NewSweeper(ledger, nil, nil)
	require.NoError(t, s.Start("@every 1s"))
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool { return ledger.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestStart_BadSchedule(t *testing.T) {
	s := NewSweeper(&fakeLedger{}, nil, nil)
	assert.Error(t, s.Start("not a schedule"))
}
