package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmehra2102/grpcadvice/internal/domain"
)

type fakeExecer struct {
	mu      sync.Mutex
	args    [][]any
	err     error
	release chan struct{}
}

func (f *fakeExecer) ExecContext(_ context.Context, _ string, args ...any) (sql.Result, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.args = append(f.args, args)
	return nil, f.err
}

func (f *fakeExecer) calls() [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]any(nil), f.args...)
}

func testEvent(method string) domain.ExceptionEvent {
	return domain.NewExceptionEvent(method, "half_close", "NotFound", "missing", "resource not found", false)
}

func TestJournalWritesQueuedEventsOnClose(t *testing.T) {
	t.Parallel()

	db := &fakeExecer{}
	j := newJournal(db, 8, zap.NewNop())

	first := testEvent("/svc/A")
	second := testEvent("/svc/B")
	require.NoError(t, j.Record(context.Background(), first))
	require.NoError(t, j.Record(context.Background(), second))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, j.Close(ctx))

	calls := db.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, first.ID, calls[0][0])
	assert.Equal(t, "/svc/B", calls[1][1])
	assert.Equal(t, false, calls[1][6])
}

func TestJournalDropsWhenFull(t *testing.T) {
	t.Parallel()

	db := &fakeExecer{release: make(chan struct{})}
	j := newJournal(db, 1, zap.NewNop())

	// The writer may pick up the first event and block on release, so the
	// buffer fills after at most two records.
	var full bool
	for i := 0; i < 3; i++ {
		if err := j.Record(context.Background(), testEvent("/svc/A")); err != nil {
			require.ErrorIs(t, err, ErrJournalFull)
			full = true
		}
	}
	assert.True(t, full)

	close(db.release)
	require.NoError(t, j.Close(context.Background()))
}

func TestJournalRejectsAfterClose(t *testing.T) {
	t.Parallel()

	j := newJournal(&fakeExecer{}, 4, nil)
	require.NoError(t, j.Close(context.Background()))
	require.NoError(t, j.Close(context.Background()))

	err := j.Record(context.Background(), testEvent("/svc/A"))
	assert.ErrorIs(t, err, ErrJournalClosed)
}

func TestJournalKeepsRunningAfterInsertFailure(t *testing.T) {
	t.Parallel()

	db := &fakeExecer{err: errors.New("connection refused")}
	j := newJournal(db, 4, zap.NewNop())

	require.NoError(t, j.Record(context.Background(), testEvent("/svc/A")))
	require.NoError(t, j.Record(context.Background(), testEvent("/svc/B")))
	require.NoError(t, j.Close(context.Background()))

	assert.Len(t, db.calls(), 2)
}

func TestJournalCloseHonoursContext(t *testing.T) {
	t.Parallel()

	db := &fakeExecer{release: make(chan struct{})}
	j := newJournal(db, 4, zap.NewNop())
	require.NoError(t, j.Record(context.Background(), testEvent("/svc/A")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, j.Close(ctx), context.Canceled)

	close(db.release)
	require.NoError(t, j.Close(context.Background()))
}
