package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dmehra2102/grpcadvice/internal/domain"
)

const queryTimeout = 5 * time.Second

var (
	ErrJournalFull   = errors.New("exception journal buffer is full")
	ErrJournalClosed = errors.New("exception journal is closed")
)

var journalEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "grpc_advice_journal_events_total",
		Help: "Exception events by journal outcome",
	},
	[]string{"outcome"},
)

// execer is the part of *sql.DB the journal uses.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Journal persists exception events from a background goroutine. Record
// only enqueues, so it never waits on the database.
type Journal struct {
	db     execer
	logger *zap.Logger
	tracer trace.Tracer

	mu     sync.RWMutex
	closed bool
	events chan domain.ExceptionEvent
	done   chan struct{}
}

var _ domain.Journal = (*Journal)(nil)

func NewJournal(db *sql.DB, bufferSize int, logger *zap.Logger) *Journal {
	return newJournal(db, bufferSize, logger)
}

func newJournal(db execer, bufferSize int, logger *zap.Logger) *Journal {
	if bufferSize < 1 {
		bufferSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &Journal{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("postgres-journal"),
		events: make(chan domain.ExceptionEvent, bufferSize),
		done:   make(chan struct{}),
	}
	go j.run()
	return j
}

func (j *Journal) Record(_ context.Context, event domain.ExceptionEvent) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return ErrJournalClosed
	}

	select {
	case j.events <- event:
		journalEvents.WithLabelValues("queued").Inc()
		return nil
	default:
		journalEvents.WithLabelValues("dropped").Inc()
		return ErrJournalFull
	}
}

// Close stops accepting events and waits until the queued ones are written
// or ctx is done.
func (j *Journal) Close(ctx context.Context) error {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.events)
	}
	j.mu.Unlock()

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to drain exception journal: %w", ctx.Err())
	}
}

func (j *Journal) run() {
	defer close(j.done)

	for event := range j.events {
		if err := j.insert(event); err != nil {
			journalEvents.WithLabelValues("failed").Inc()
			j.logger.Error("failed to persist exception event",
				zap.String("event_id", event.ID),
				zap.String("method", event.Method),
				zap.Error(err),
			)
			continue
		}
		journalEvents.WithLabelValues("written").Inc()
	}
}

func (j *Journal) insert(event domain.ExceptionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	ctx, span := j.tracer.Start(ctx, "journal.Insert")
	defer span.End()

	span.SetAttributes(
		attribute.String("event.id", event.ID),
		attribute.String("rpc.method", event.Method),
	)

	query := `
		INSERT INTO exception_events (
			id, method, phase, code, message, cause, panicked, request_id, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := j.db.ExecContext(ctx, query,
		event.ID,
		event.Method,
		event.Phase,
		event.Code,
		event.Message,
		event.Cause,
		event.Panicked,
		event.RequestID,
		event.OccurredAt,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert exception event: %w", err)
	}

	return nil
}
