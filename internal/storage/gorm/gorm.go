// Package gormstorage implements the storage.Backend interface on any gorm
// dialect with internal queues and a background DB writer goroutine.
// The postgres and sqlite backends wrap it.
package gormstorage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autodash/simulator/internal/database"
	"github.com/autodash/simulator/internal/geo"
	"github.com/autodash/simulator/internal/model"
	"github.com/autodash/simulator/internal/model/convert"
	"github.com/autodash/simulator/internal/queue"
	"github.com/autodash/simulator/pkg/core"

	"gorm.io/gorm"
)

// DefaultWriteInterval is how often the writer drains the queues.
const DefaultWriteInterval = 2 * time.Second

// maxBatch caps the rows written in one transaction.
const maxBatch = 5000

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	Projector     *geo.Projector
	WriteInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Frames   *queue.Queue[model.TelemetryFrame]
	Warnings *queue.Queue[model.WarningEvent]
}

func newQueues() *queues {
	return &queues{
		Frames:   queue.New[model.TelemetryFrame](),
		Warnings: queue.New[model.WarningEvent](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	log       *slog.Logger
	queues    *queues
	stopChan  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
	lastWrite atomic.Int64 // nanoseconds
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.WriteInterval <= 0 {
		deps.WriteInterval = DefaultWriteInterval
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		deps: deps,
		log:  log.With("component", "storage", "dialect", dialect(deps.DB)),
	}
}

func dialect(db *gorm.DB) string {
	if db == nil {
		return "none"
	}
	return db.Dialector.Name()
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
// Without a DB the backend only queues, which is what the unit tests rely on.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB == nil {
		close(b.done)
		return nil
	}

	if err := database.Setup(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.log.Info("Database setup complete")

	go b.writeLoop()
	return nil
}

// Close stops the DB writer goroutine and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.closeOnce.Do(func() { close(b.stopChan) })
	<-b.done
	return b.Flush()
}

// DB exposes the connection for the monitor's performance samples.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// StartSession inserts the session row synchronously so frames can reference it.
func (b *Backend) StartSession(s *core.Session) error {
	if b.deps.DB == nil {
		return nil
	}
	row, err := convert.CoreToSession(*s)
	if err != nil {
		return err
	}
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}
	b.log.Info("Session started", "session", s.ID)
	return nil
}

// EndSession flushes pending rows and stamps the session's end time.
func (b *Backend) EndSession(s *core.Session) error {
	if b.deps.DB == nil {
		return nil
	}
	if err := b.Flush(); err != nil {
		return err
	}
	end := sql.NullTime{Time: s.EndTime, Valid: !s.EndTime.IsZero()}
	res := b.deps.DB.Model(&model.Session{}).Where("id = ?", s.ID).Update("end_time", end)
	if res.Error != nil {
		return fmt.Errorf("failed to end session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to end session %s: %w", s.ID, gorm.ErrRecordNotFound)
	}
	return nil
}

// RecordSnapshot converts a snapshot to a telemetry row and queues it.
func (b *Backend) RecordSnapshot(s *core.Snapshot) error {
	frame, err := convert.CoreToFrame(*s, b.deps.Projector)
	if err != nil {
		return err
	}
	b.queues.Frames.Push(frame)
	return nil
}

// RecordWarningEvent converts and queues a warning transition.
func (b *Backend) RecordWarningEvent(e *core.WarningEvent) error {
	b.queues.Warnings.Push(convert.CoreToWarningEvent(*e))
	return nil
}

// QueueLengths reports the rows waiting for the writer.
func (b *Backend) QueueLengths() model.WriteQueueLengths {
	if b.queues == nil {
		return model.WriteQueueLengths{}
	}
	return model.WriteQueueLengths{
		Frames:   uint16(min(b.queues.Frames.Len(), 65535)),
		Warnings: uint16(min(b.queues.Warnings.Len(), 65535)),
	}
}

// LastWriteDuration is how long the most recent flush took.
func (b *Backend) LastWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// Flush drains every queue into the database. Failed batches are requeued.
func (b *Backend) Flush() error {
	if b.deps.DB == nil || b.queues == nil {
		return nil
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := time.Now()
	err := errors.Join(
		writeQueue(b.deps.DB, b.queues.Frames, "telemetry frames", b.log),
		writeQueue(b.deps.DB, b.queues.Warnings, "warning events", b.log),
	)
	b.lastWrite.Store(int64(time.Since(start)))
	return err
}

// writeQueue writes all items from a queue to the database, one transaction per batch.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) error {
	for !q.Empty() {
		items := q.Take(maxBatch)
		tx := db.Begin()
		if err := tx.Create(&items).Error; err != nil {
			log.Error("Error creating rows", "table", name, "count", len(items), "error", err)
			tx.Rollback()
			q.Requeue(items...)
			return fmt.Errorf("write %s: %w", name, err)
		}
		if err := tx.Commit().Error; err != nil {
			q.Requeue(items...)
			return fmt.Errorf("commit %s: %w", name, err)
		}
		log.Debug("Wrote rows", "table", name, "count", len(items))
	}
	return nil
}

// writeLoop periodically drains queues into the DB until Close.
func (b *Backend) writeLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			// errors are logged by writeQueue and retried next cycle
			_ = b.Flush()
		}
	}
}
