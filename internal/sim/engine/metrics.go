package engine

import (
	"sync/atomic"
	"time"
)

// Metrics is a thread-safe read-only view of key session signals.
// It is updated from the loop goroutine and read from HTTP handlers/tests.
type Metrics struct {
	Day      uint64  `json:"day"`
	Age      float64 `json:"age"`
	Running  bool    `json:"running"`
	Clock    string  `json:"clock"`
	Rebirths int     `json:"rebirths"`

	Ticks            uint64 `json:"ticks"`
	CommandsApplied  uint64 `json:"commands_applied"`
	CommandsRejected uint64 `json:"commands_rejected"`
	NightEvents      uint64 `json:"night_events"`

	Subscribers          int    `json:"subscribers"`
	NotificationsDropped uint64 `json:"notifications_dropped"`
	SavesQueued          uint64 `json:"saves_queued"`
	SavesDropped         uint64 `json:"saves_dropped"`
	TickLogErrors        uint64 `json:"tick_log_errors"`

	CommandQueueDepth int     `json:"command_queue_depth"`
	StepMS            float64 `json:"step_ms"`
}

type counters struct {
	ticks        atomic.Uint64
	applied      atomic.Uint64
	rejected     atomic.Uint64
	nightEvents  atomic.Uint64
	dropped      atomic.Uint64
	savesQueued  atomic.Uint64
	savesDropped atomic.Uint64
	logErrors    atomic.Uint64
}

func (e *Engine) Metrics() Metrics {
	if e == nil {
		return Metrics{}
	}
	m, _ := e.metrics.Load().(Metrics)
	// Queue depth is live; everything else is as of the last publish.
	m.CommandQueueDepth = len(e.cmds)
	m.Subscribers = e.subscriberCount()
	return m
}

// publish refreshes the concurrent views after a tick or command.
func (e *Engine) publish(step time.Duration) {
	e.view.Store(e.state())
	e.metrics.Store(Metrics{
		Day:                  e.player.Day,
		Age:                  e.player.Age,
		Running:              e.running,
		Clock:                string(e.clock),
		Rebirths:             e.legacy.Rebirths,
		Ticks:                e.counters.ticks.Load(),
		CommandsApplied:      e.counters.applied.Load(),
		CommandsRejected:     e.counters.rejected.Load(),
		NightEvents:          e.counters.nightEvents.Load(),
		NotificationsDropped: e.counters.dropped.Load(),
		SavesQueued:          e.counters.savesQueued.Load(),
		SavesDropped:         e.counters.savesDropped.Load(),
		TickLogErrors:        e.counters.logErrors.Load(),
		StepMS:               float64(step.Microseconds()) / 1000.0,
	})
}
