package engine

import (
	"context"
	"time"

	"moonrise.game/internal/protocol"
)

// Run drives the session until ctx is cancelled or Stop is called. The tick
// ticker only exists while the scheduler is running; commands are applied
// between ticks in arrival order.
func (e *Engine) Run(ctx context.Context) error {
	interval := time.Duration(e.tun.TickIntervalMs) * time.Millisecond
	var (
		ticker *time.Ticker
		tickC  <-chan time.Time
	)
	syncTicker := func() {
		switch {
		case e.running && ticker == nil:
			ticker = time.NewTicker(interval)
			tickC = ticker.C
		case !e.running && ticker != nil:
			ticker.Stop()
			ticker, tickC = nil, nil
		}
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	syncTicker()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stop:
			return nil
		case cmd := <-e.cmds:
			_ = e.ApplyCommand(cmd)
		case <-tickC:
			e.StepOnce()
		}
		syncTicker()
	}
}

func (e *Engine) Stop() { e.stopOnce.Do(func() { close(e.stop) }) }

// Submit queues a command for the loop without blocking.
func (e *Engine) Submit(cmd protocol.CommandMsg) error {
	select {
	case e.cmds <- cmd:
		return nil
	default:
		return ErrBusy
	}
}

// sendLatest delivers b, dropping the oldest queued message if ch is full.
// It reports whether anything was dropped.
func sendLatest(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return false
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
	return true
}
