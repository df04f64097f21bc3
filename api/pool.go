package api

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// DispatcherConfig sizes the event worker pool.
type DispatcherConfig struct {
	Workers        int
	Buffer         int
	PublishTimeout time.Duration
	HandoffTimeout time.Duration
}

// Dispatcher hands board events to a fixed pool of workers that publish them
// off the request path. Events that cannot be buffered in time are dropped.
type Dispatcher struct {
	cfg    DispatcherConfig
	pub    Publisher
	logger *log.Logger

	mu      sync.RWMutex
	jobs    chan domain.Event
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewDispatcher starts the workers.
func NewDispatcher(pub Publisher, cfg DispatcherConfig, logger *log.Logger) *Dispatcher {
	if pub == nil {
		panic("publisher is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 30 * time.Second
	}

	d := &Dispatcher{
		cfg:    cfg,
		pub:    pub,
		logger: logger,
		jobs:   make(chan domain.Event, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	logger.Infof("event dispatcher started, workers: %d, buffer: %d, timeout: %v, handoff: %v", cfg.Workers, cfg.Buffer, cfg.PublishTimeout, cfg.HandoffTimeout)
	return d
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for ev := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.PublishTimeout)
		err := d.pub.Publish(ctx, ev)
		cancel()

		if err != nil {
			d.failed.Add(1)
			d.logger.WithFields(log.Fields{
				"event":  ev.ID,
				"type":   ev.Type,
				"task":   ev.TaskID,
				"worker": id,
			}).Errorf("publish event failed: %v", err)
		}
	}
}

// Emit queues ev for publishing and reports whether it was accepted. A nil
// dispatcher accepts nothing.
func (d *Dispatcher) Emit(ev domain.Event) bool {
	if d == nil {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	if trySendNonBlocking(d.jobs, ev) {
		return true
	}
	if d.cfg.HandoffTimeout > 0 {
		timer := time.NewTimer(d.cfg.HandoffTimeout)
		defer timer.Stop()
		if sendWithTimer(d.jobs, ev, timer.C) {
			return true
		}
	}

	d.dropped.Add(1)
	d.logger.WithFields(log.Fields{"event": ev.ID, "type": ev.Type, "task": ev.TaskID}).Warn("event buffer saturated; dropping event")
	return false
}

// Close stops accepting events and waits until buffered ones are published.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}

// Dropped returns how many events were discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

// Failed returns how many publish attempts returned an error.
func (d *Dispatcher) Failed() uint64 { return d.failed.Load() }

func trySendNonBlocking(ch chan<- domain.Event, ev domain.Event) bool {
	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}

func sendWithTimer(ch chan<- domain.Event, ev domain.Event, timer <-chan time.Time) bool {
	select {
	case ch <- ev:
		return true
	case <-timer:
		return false
	}
}

// LogPublisher writes events to the logger. It is used when no queue is
// configured.
type LogPublisher struct {
	Logger *log.Logger
}

// Publish logs ev at debug level.
func (p LogPublisher) Publish(_ context.Context, ev domain.Event) error {
	p.Logger.WithFields(log.Fields{
		"event":     ev.ID,
		"type":      ev.Type,
		"task":      ev.TaskID,
		"column":    ev.ColumnID,
		"timestamp": ev.Timestamp,
	}).Debug("board.event")
	return nil
}
