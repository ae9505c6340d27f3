package coordinator

import (
	"time"

	"github.com/scanomatic/som/common/stats"
	"github.com/scanomatic/som/domain"
)

type EventKind string

const (
	EventSubmitted  EventKind = "submitted"
	EventTransition EventKind = "transition"
	EventRemoved    EventKind = "removed"
)

// Event describes one change to a job record.
type Event struct {
	Time   time.Time       `json:"time"`
	Kind   EventKind       `json:"kind"`
	JobID  string          `json:"job_id"`
	Type   domain.JobType  `json:"type"`
	From   domain.JobState `json:"from,omitempty"`
	To     domain.JobState `json:"to,omitempty"`
	Reason string          `json:"reason,omitempty"`
}

// Listener receives events on the coordinator's dispatch goroutine, never under its lock.
// Observe may block on I/O; a slow listener delays later events and may cause drops.
type Listener interface {
	Observe(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) Observe(ev Event) { f(ev) }

// emit queues ev without blocking. caller holds c.mu.
func (c *Coordinator) emit(ev Event) {
	if len(c.listeners) == 0 {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = c.now()
	}
	select {
	case c.events <- ev:
	default:
		c.stat.Counter(stats.CoordEventsDroppedCounter).Inc(1)
	}
}

// dispatch delivers events until stop is closed, then drains what is left.
func (c *Coordinator) dispatch(stop <-chan struct{}) {
	deliver := func(ev Event) {
		for _, l := range c.listeners {
			l.Observe(ev)
		}
	}
	for {
		select {
		case ev := <-c.events:
			deliver(ev)
		case <-stop:
			for {
				select {
				case ev := <-c.events:
					deliver(ev)
				default:
					return
				}
			}
		}
	}
}
