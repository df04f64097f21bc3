package api

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"taskboard-api/domain"
)

// eventClock hands out nanosecond timestamps that never repeat or go back,
// even when the wall clock does.
type eventClock struct {
	last atomic.Int64
	now  func() time.Time
}

func (c *eventClock) Next() int64 {
	for {
		prev := c.last.Load()
		ts := c.now().UnixNano()
		if ts <= prev {
			ts = prev + 1
		}
		if c.last.CompareAndSwap(prev, ts) {
			return ts
		}
	}
}

var eventTimes = &eventClock{now: time.Now}

func newEvent(kind string, task domain.Task) domain.Event {
	ev := domain.Event{
		ID:        uuid.NewString(),
		Type:      kind,
		TaskID:    task.ID,
		ColumnID:  task.ColumnID,
		Timestamp: eventTimes.Next(),
	}
	if kind != domain.TaskDeleted {
		snapshot := task
		ev.Task = &snapshot
	}
	return ev
}
