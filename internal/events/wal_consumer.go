package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/destel/rill"
	"github.com/vadiminshakov/gowal"
)

var _ EventConsumer = new(WALConsumer)

// WALConsumer appends every event to a write-ahead log before queueing it,
// so events accepted before a crash are replayed on the next Start.
type WALConsumer struct {
	eventRepository EventRepository
	wal             *gowal.Wal
	walMu           sync.Mutex
	workCh          chan walItem
	doneCh          chan uint64
	opts            WALConsumerOptions
	logger          *slog.Logger
	stateFile       string

	lastProcessedIndex atomic.Uint64
	lastFlushedIndex   atomic.Uint64

	workerWg        sync.WaitGroup
	coordinatorDone chan struct{}

	// guards workCh against sends after Stop closed it
	stopMu  sync.RWMutex
	stopped bool
}

type WALConsumerOptions struct {
	BufferSize       int
	BatchSize        int
	BatchTimeout     time.Duration
	WALDir           string
	WALPrefix        string
	SegmentThreshold int
	MaxSegments      int
	IsInSyncDiskMode bool
	WorkerCount      int
	FlushThreshold   int
	FlushInterval    time.Duration
	Logger           *slog.Logger
}

type walItem struct {
	index uint64
	event Event
}

func (o *WALConsumerOptions) defaults() {
	if o.BufferSize == 0 {
		o.BufferSize = 1000
	}
	if o.BatchSize == 0 {
		o.BatchSize = 100
	}
	if o.BatchTimeout == 0 {
		o.BatchTimeout = 100 * time.Millisecond
	}
	if o.WALDir == "" {
		o.WALDir = "./wal"
	}
	if o.WALPrefix == "" {
		o.WALPrefix = "deal_event_"
	}
	if o.SegmentThreshold == 0 {
		o.SegmentThreshold = 1000
	}
	if o.MaxSegments == 0 {
		o.MaxSegments = 10
	}
	if o.WorkerCount == 0 {
		o.WorkerCount = 4
	}
	if o.FlushThreshold == 0 {
		o.FlushThreshold = 1000
	}
	if o.FlushInterval == 0 {
		o.FlushInterval = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

func NewWALConsumer(eventRepository EventRepository, opts WALConsumerOptions) (*WALConsumer, error) {
	opts.defaults()

	if err := os.MkdirAll(opts.WALDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              opts.WALDir,
		Prefix:           opts.WALPrefix,
		SegmentThreshold: opts.SegmentThreshold,
		MaxSegments:      opts.MaxSegments,
		IsInSyncDiskMode: opts.IsInSyncDiskMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create WAL: %w", err)
	}

	return &WALConsumer{
		eventRepository: eventRepository,
		wal:             wal,
		workCh:          make(chan walItem, opts.BufferSize),
		doneCh:          make(chan uint64, opts.BufferSize),
		opts:            opts,
		logger:          opts.Logger.With("component", "wal_consumer"),
		stateFile:       filepath.Join(opts.WALDir, "processor.state"),
		coordinatorDone: make(chan struct{}),
	}, nil
}

func (c *WALConsumer) Start(ctx context.Context) {
	last, err := c.readLastProcessedIndex()
	if err != nil {
		c.logger.Warn("failed to read last processed index, starting from 0", "error", err)
		last = 0
	}
	c.lastFlushedIndex.Store(last)
	c.lastProcessedIndex.Store(last)

	go c.stateCoordinator()

	for range c.opts.WorkerCount {
		c.workerWg.Add(1)
		go c.worker(ctx)
	}

	if err := c.recover(ctx); err != nil {
		c.logger.Error("error during WAL recovery", "error", err)
	}
}

// Stop drains the workers, persists the processed index and closes the WAL.
func (c *WALConsumer) Stop() {
	c.stopMu.Lock()
	c.stopped = true
	close(c.workCh)
	c.stopMu.Unlock()

	c.workerWg.Wait()

	close(c.doneCh)
	<-c.coordinatorDone

	if err := c.writeLastProcessedIndex(c.lastProcessedIndex.Load()); err != nil {
		c.logger.Error("failed to flush processed index on stop", "error", err)
	}

	c.walMu.Lock()
	defer c.walMu.Unlock()
	if err := c.wal.Close(); err != nil {
		c.logger.Error("failed to close WAL", "error", err)
	}
}

// Consume appends event to the WAL and queues it. Once written, the event
// must reach a worker: the processed index only advances over contiguous
// indexes, so Consume waits for buffer space instead of dropping it.
func (c *WALConsumer) Consume(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	c.stopMu.RLock()
	defer c.stopMu.RUnlock()
	if c.stopped {
		return ErrConsumerStopped
	}

	c.walMu.Lock()
	index := c.wal.CurrentIndex() + 1
	if err := c.wal.Write(index, event.ID, payload); err != nil {
		c.walMu.Unlock()
		return fmt.Errorf("failed to write to WAL: %w", err)
	}
	c.walMu.Unlock()

	c.workCh <- walItem{index: index, event: event}
	return nil
}

func (c *WALConsumer) recover(ctx context.Context) error {
	last := c.lastProcessedIndex.Load()
	c.logger.Info("recovering deal events from WAL", "from_index", last)

	c.walMu.Lock()
	defer c.walMu.Unlock()

	recovered := 0
	for msg := range c.wal.Iterator() {
		if msg.Index() <= last {
			continue
		}

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Error("failed to unmarshal WAL entry", "index", msg.Index(), "error", err)
			continue
		}

		select {
		case c.workCh <- walItem{index: msg.Index(), event: event}:
			recovered++
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.logger.Info("WAL recovery completed", "recovered", recovered)
	return nil
}

// stateCoordinator advances the processed index only over a contiguous run
// of completed WAL indexes.
func (c *WALConsumer) stateCoordinator() {
	defer close(c.coordinatorDone)

	completedOutOfOrder := make(map[uint64]bool)

	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case completed, ok := <-c.doneCh:
			if !ok {
				return
			}

			last := c.lastProcessedIndex.Load()
			switch {
			case completed == last+1:
				c.lastProcessedIndex.Add(1)
				for next := c.lastProcessedIndex.Load() + 1; completedOutOfOrder[next]; next++ {
					delete(completedOutOfOrder, next)
					c.lastProcessedIndex.Add(1)
				}
				if c.lastProcessedIndex.Load()-c.lastFlushedIndex.Load() >= uint64(c.opts.FlushThreshold) {
					c.flush()
				}
			case completed > last+1:
				completedOutOfOrder[completed] = true
			}

		case <-ticker.C:
			if c.lastProcessedIndex.Load() > c.lastFlushedIndex.Load() {
				c.flush()
			}
		}
	}
}

func (c *WALConsumer) flush() {
	current := c.lastProcessedIndex.Load()
	if err := c.writeLastProcessedIndex(current); err != nil {
		c.logger.Error("failed to write last processed index", "index", current, "error", err)
		return
	}
	c.lastFlushedIndex.Store(current)
	c.logger.Debug("flushed WAL state", "index", current)
}

func (c *WALConsumer) worker(ctx context.Context) {
	defer c.workerWg.Done()

	batches := rill.Batch(rill.FromChan(c.workCh, nil), c.opts.BatchSize, c.opts.BatchTimeout)
	for batch := range batches {
		if len(batch.Value) == 0 {
			continue
		}

		events := make([]Event, len(batch.Value))
		for i, item := range batch.Value {
			events[i] = item.event
		}

		if err := c.eventRepository.BulkInsert(ctx, events); err != nil {
			c.logger.Error("failed to bulk insert deal events", "error", err, "count", len(events))
		}
		for _, item := range batch.Value {
			c.doneCh <- item.index
		}
	}
}

func (c *WALConsumer) readLastProcessedIndex() (uint64, error) {
	data, err := os.ReadFile(c.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}

func (c *WALConsumer) writeLastProcessedIndex(index uint64) error {
	return os.WriteFile(c.stateFile, []byte(strconv.FormatUint(index, 10)), 0644)
}
