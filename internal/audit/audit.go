// Package audit implements the append-only AuditEvent log (spec §3, §4.7).
// Most call sites log fire-and-forget through the buffered Writer, the same
// async-batch idiom the teacher used for its own audit trail; the rate and
// purge endpoints need a row written inside their own transaction (or, for
// purge's terminal event, from a connection outside it), so those paths
// bypass the buffer and write directly.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorehq/loreserver/internal/idgen"
)

// Event is a single audit_events row (spec §3: append-only, no mutable
// fields beyond the ones listed here).
type Event struct {
	Tenant      string
	EventType   string
	LessonID    *string
	QueryText   *string
	InitiatedBy string
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// Writer is an async, buffered audit log writer for non-transactional call
// sites (key create/revoke, agent config changes, and the like).
type Writer struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	entries chan Event
	wg      sync.WaitGroup
}

// NewWriter creates a Writer. Call Start to begin flushing.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger) *Writer {
	return &Writer{
		pool:    pool,
		logger:  logger,
		entries: make(chan Event, bufferSize),
	}
}

// Start launches the background flush loop and returns immediately; the loop
// exits once ctx is cancelled and the entries pending at that point are
// flushed.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close waits for the background loop to drain and exit.
func (w *Writer) Close() {
	close(w.entries)
	w.wg.Wait()
}

// Log enqueues an event. It never blocks the caller; if the buffer is full
// the entry is dropped and a warning logged.
func (w *Writer) Log(_ context.Context, e Event) {
	select {
	case w.entries <- e:
	default:
		w.logger.Warn("audit log buffer full, dropping entry", "event_type", e.EventType, "tenant", e.Tenant)
	}
}

func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, flushBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case e, ok := <-w.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (w *Writer) flush(batch []Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range batch {
		if err := WriteDirect(ctx, w.pool, e); err != nil {
			w.logger.Error("writing audit event", "error", err, "event_type", e.EventType, "tenant", e.Tenant)
		}
	}
}

// WriteTx inserts e using tx, for call sites that need the audit row to
// commit atomically with a mutation (spec §4.7's rate and purge endpoints).
func WriteTx(ctx context.Context, tx pgx.Tx, e Event) error {
	_, err := tx.Exec(ctx, insertSQL,
		idgen.New(), e.Tenant, e.EventType, e.LessonID, e.QueryText, e.InitiatedBy,
	)
	return err
}

// WriteDirect inserts e using pool directly rather than an in-flight
// transaction — used for the purge operation's terminal audit row, which
// must survive the transaction that deleted everything else (spec §4.7).
func WriteDirect(ctx context.Context, pool *pgxpool.Pool, e Event) error {
	_, err := pool.Exec(ctx, insertSQL,
		idgen.New(), e.Tenant, e.EventType, e.LessonID, e.QueryText, e.InitiatedBy,
	)
	return err
}

const insertSQL = `INSERT INTO audit_events (id, tenant_id, event_type, lesson_id, query_text, initiated_by)
	VALUES ($1, $2, $3, $4, $5, $6)`
