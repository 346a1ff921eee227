package engine

import (
	"slices"
	"time"

	"moonrise.game/internal/protocol"
	"moonrise.game/internal/sim/clock"
	"moonrise.game/internal/sim/jobs"
	"moonrise.game/internal/sim/model"
	"moonrise.game/internal/sim/nightevents"
	"moonrise.game/internal/sim/rewards"
)

// StepOnce advances the game by a single tick using the same ordering as Run.
// It ignores the scheduler flag, which makes it the entry point for tests and
// replays. advanced is false when the life is over and awaits rebirth.
func (e *Engine) StepOnce() (day uint64, advanced bool) {
	start := time.Now()

	if e.clock == model.ClockAwaitingRebirth {
		return e.player.Day, false
	}
	// Threshold check happens before the advance.
	if cause, done := clock.Check(e.player, e.cats.Ages, e.cats.Housing); done {
		e.enterAwaitingRebirth(cause)
		e.publish(time.Since(start))
		return e.player.Day, false
	}

	clock.Advance(&e.player, e.tun.YearsPerTick)
	day = e.player.Day
	night := clock.IsNight(day, e.tun.TicksPerDay)

	pay := rewards.Resolve(rewards.Inputs{
		Catalogs:  e.cats,
		ActiveJob: e.player.ActiveJob,
		IsNight:   night,
		Modifiers: e.mods,
		Rewards:   e.tun.Rewards,
	})
	applied := rewards.Apply(&e.player, e.ledger, pay)

	entry := TickLogEntry{
		Rebirths:  e.legacy.Rebirths,
		Day:       day,
		Night:     night,
		Job:       e.player.ActiveJob,
		CoinGain:  pay.Coins,
		XP:        pay.XP,
		LeveledUp: applied.LeveledUp,
		Commands:  e.pendingCmds,
	}
	e.pendingCmds = nil

	if ev, ok := e.events.Roll(day, e.player.ActiveJob); ok {
		nightevents.Apply(&e.player, ev, e.mods)
		e.eventShown = true
		e.counters.nightEvents.Add(1)
		entry.Event = &ev
		e.emit(protocol.EventTriggeredMsg{
			Type:            protocol.TypeEventTriggered,
			ProtocolVersion: protocol.Version,
			Day:             day,
			Event:           eventPayload(ev),
		})
		if e.recorder != nil {
			e.recorder.RecordNightEvent(NightEventRecord{
				Rebirths: e.legacy.Rebirths,
				Day:      day,
				Job:      e.player.ActiveJob,
				Event:    ev,
			})
		}
	} else if e.eventShown {
		e.eventShown = false
		e.emit(protocol.ClearEventMsg{Type: protocol.TypeClearEvent, ProtocolVersion: protocol.Version, Day: day})
	}

	e.checkUnlocks(applied.LeveledUp)
	e.emitUpdate()

	entry.Age = e.player.Age
	entry.Coins = e.player.Coins
	entry.Clock = e.clock
	e.logTick(entry)

	if every := e.tun.AutosaveEveryTicks; every > 0 && day%uint64(every) == 0 {
		e.queueSave()
	}

	e.counters.ticks.Add(1)
	e.publish(time.Since(start))
	return day, true
}

func (e *Engine) enterAwaitingRebirth(cause model.RebirthCause) {
	e.clock = model.ClockAwaitingRebirth
	e.cause = cause
	e.running = false
	e.logger.Printf("life over: cause=%s day=%d age=%.2f", cause, e.player.Day, e.player.Age)
	e.emitRebirthModal()
	e.emitUpdate()
	e.logTick(TickLogEntry{
		Rebirths: e.legacy.Rebirths,
		Day:      e.player.Day,
		Age:      e.player.Age,
		Coins:    e.player.Coins,
		Job:      e.player.ActiveJob,
		Commands: e.pendingCmds,
		Clock:    e.clock,
		Cause:    cause,
	})
	e.pendingCmds = nil
	e.queueSave()
}

func (e *Engine) emitRebirthModal() {
	e.emit(protocol.ShowRebirthModalMsg{
		Type:            protocol.TypeShowRebirthModal,
		ProtocolVersion: protocol.Version,
		Cause:           string(e.cause),
		Age:             e.player.Age,
		EffectiveMaxAge: clock.EffectiveMaxAge(e.cats.Ages, e.cats.Housing, e.player.HousingTier),
	})
}

// checkUnlocks emits NEEDS_JOB_RENDER when the unlocked set changed or force is set.
func (e *Engine) checkUnlocks(force bool) {
	unlocked := jobs.Unlocked(e.cats, e.player.CompletedJobs, e.ledger)
	if !force && slices.Equal(unlocked, e.lastUnlocked) {
		return
	}
	e.lastUnlocked = unlocked
	e.emit(protocol.NeedsJobRenderMsg{
		Type:            protocol.TypeNeedsJobRender,
		ProtocolVersion: protocol.Version,
		UnlockedJobs:    unlocked,
	})
}

func (e *Engine) emitUpdate() {
	e.emit(protocol.UpdateMsg{
		Type:            protocol.TypeUpdate,
		ProtocolVersion: protocol.Version,
		Seq:             e.seq.Add(1),
		Running:         e.running,
		State:           e.wireState(),
		UnlockedJobs:    e.lastUnlocked,
	})
}

func (e *Engine) logTick(entry TickLogEntry) {
	if e.tickLogger != nil {
		if err := e.tickLogger.WriteTick(entry); err != nil {
			e.counters.logErrors.Add(1)
		}
	}
	if e.recorder == nil {
		return
	}
	// The index keeps one row per day plus every tick that did something.
	tpd := uint64(e.tun.TicksPerDay)
	if entry.Event != nil || len(entry.Commands) > 0 || entry.Cause != "" || (tpd > 0 && entry.Day%tpd == 0) {
		e.recorder.RecordTick(entry)
	}
}
