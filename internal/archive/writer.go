package archive

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/eludris-client/internal/event"
)

// ErrClosed is returned by Handle after Stop.
var ErrClosed = errors.New("archive writer is closed")

const insertMessage = `
	INSERT INTO messages (id, instance, author_id, author_name, content, received_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO NOTHING`

// Batcher sends queued statements in one round trip. *pgxpool.Pool
// satisfies it.
type Batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Config holds batch writer settings.
type Config struct {
	Instance      string // Stored with every row
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int // Initial buffer capacity
}

// DefaultConfig returns the default writer settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// Stats holds writer counters.
type Stats struct {
	Received  int64
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64
	Pending   int
}

type messageRow struct {
	ID         uuid.UUID
	Instance   string
	AuthorID   int64
	AuthorName string
	Content    string
	ReceivedAt int64 // Unix microseconds
}

// Writer archives MessageCreateEvents.
type Writer struct {
	cfg    Config
	db     Batcher
	logger *slog.Logger
	now    func() time.Time

	input *Buffer[messageRow]
	full  chan struct{}

	// Lifecycle
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	stats Stats
}

// NewWriter creates a Writer. Zero config fields take their defaults.
func NewWriter(cfg Config, db Batcher, logger *slog.Logger) *Writer {
	def := DefaultConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = def.BufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Writer{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "archive"),
		now:    time.Now,
		input:  NewBuffer[messageRow](cfg.BufferSize),
		full:   make(chan struct{}, 1),
	}
}

// Handle queues ev for writing. It is a MessageCreateEvent listener.
func (w *Writer) Handle(_ context.Context, ev event.MessageCreateEvent) error {
	if !w.input.Push(w.transform(ev)) {
		w.mu.Lock()
		w.stats.Dropped++
		w.mu.Unlock()
		return ErrClosed
	}

	w.mu.Lock()
	w.stats.Received++
	w.mu.Unlock()

	if w.input.Len() >= w.cfg.BatchSize {
		select {
		case w.full <- struct{}{}:
		default:
		}
	}
	return nil
}

// Start begins flushing in the background.
func (w *Writer) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.flushLoop(ctx)

	w.logger.Info("archive writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop stops accepting messages and writes whatever is still queued.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping archive writer")

	w.input.Close()
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("archive writer stop timed out")
		return ctx.Err()
	}

	// Final flush
	w.flush(ctx)
	w.logger.Info("archive writer stopped", "pending", w.input.Len())
	return nil
}

// Stats returns current counters.
func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.stats
	s.Pending = w.input.Len()
	return s
}

func (w *Writer) flushLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.flush(ctx)
		case <-w.full:
			w.flush(ctx)
		}
	}
}

func (w *Writer) transform(ev event.MessageCreateEvent) messageRow {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return messageRow{
		ID:         id,
		Instance:   w.cfg.Instance,
		AuthorID:   int64(ev.Author.ID),
		AuthorName: ev.Author.Username,
		Content:    ev.Content,
		ReceivedAt: w.now().UnixMicro(),
	}
}

// flush writes every queued row in batches of at most BatchSize.
func (w *Writer) flush(ctx context.Context) {
	for {
		rows := w.input.Drain(w.cfg.BatchSize)
		if len(rows) == 0 {
			return
		}

		start := time.Now()
		conflicts, err := w.batchInsert(ctx, rows)
		if err != nil {
			w.logger.Error("batch insert failed", "error", err, "count", len(rows))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
			return
		}

		w.mu.Lock()
		w.stats.Inserts += int64(len(rows) - conflicts)
		w.stats.Conflicts += int64(conflicts)
		w.stats.Flushes++
		w.mu.Unlock()

		w.logger.Debug("flushed messages",
			"count", len(rows),
			"conflicts", conflicts,
			"duration", time.Since(start),
		)
	}
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []messageRow) (conflicts int, err error) {
	if w.db == nil {
		return 0, errors.New("no database")
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertMessage, r.ID, r.Instance, r.AuthorID, r.AuthorName, r.Content, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
