// Package nightevents rolls the random encounter that may happen at nightfall.
package nightevents

import (
	"math/rand/v2"

	"moonrise.game/internal/sim/catalogs"
	"moonrise.game/internal/sim/clock"
	"moonrise.game/internal/sim/model"
	"moonrise.game/internal/sim/talents"
	"moonrise.game/internal/sim/tuning"
)

const (
	TypeSeerVision     = "Seer's Vision"
	TypeSuccessfulHunt = "Successful Hunt"
	TypeFailedHunt     = "Failed Hunt"

	flavorSeerVision     = "You gaze into the stars and glimpse what the night hides."
	flavorSuccessfulHunt = "The thrill of the hunt courses through you."
	flavorFailedHunt     = "The prey was too swift."
)

// Resolver owns the random source. It is not safe for concurrent use; the
// engine calls it from its loop goroutine only.
type Resolver struct {
	cats   *catalogs.Catalogs
	tuning tuning.Tuning
	rng    *rand.Rand
}

func New(cats *catalogs.Catalogs, t tuning.Tuning, rng *rand.Rand) *Resolver {
	if rng == nil {
		rng = NewRand(t.Seed)
	}
	return &Resolver{cats: cats, tuning: t, rng: rng}
}

// NewRand returns the deterministic source used for a given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Due reports whether day is the one tick per cycle on which events can fire.
func (r *Resolver) Due(day uint64) bool {
	tpd := r.tuning.TicksPerDay
	return clock.TickInDay(day, tpd) == r.tuning.NightfallTick() && clock.IsNight(day, tpd)
}

// Roll draws at most one event for the active job. ok is false when nothing
// happens, including when day is not the nightfall tick.
func (r *Resolver) Roll(day uint64, activeJob string) (model.NightEvent, bool) {
	if !r.Due(day) {
		return model.NightEvent{}, false
	}
	job, ok := r.cats.Job(activeJob)
	if !ok {
		return model.NightEvent{}, false
	}
	ev := r.tuning.Events

	if job.Name == r.tuning.SeerJob && r.rng.Float64() < ev.SeerChance {
		return model.NightEvent{Type: TypeSeerVision, Flavor: flavorSeerVision}, true
	}
	if job.Type == model.JobWerewolf && r.rng.Float64() < ev.HuntChance {
		if r.rng.Float64() < ev.HuntSuccessChance {
			return model.NightEvent{
				Type:    TypeSuccessfulHunt,
				Flavor:  flavorSuccessfulHunt,
				Effects: model.EventOutcome{RepWolf: ev.HuntRepWolf, RepVillage: ev.HuntRepVillage},
			}, true
		}
		return model.NightEvent{Type: TypeFailedHunt, Flavor: flavorFailedHunt}, true
	}
	pool := r.cats.Events.Pool
	if len(pool) == 0 || r.rng.Float64() >= ev.GenericChance {
		return model.NightEvent{}, false
	}
	tpl := pool[r.rng.IntN(len(pool))]
	out := model.NightEvent{Type: tpl.Name, Flavor: tpl.Flavor}
	if variant, ok := tpl.Effects[job.Type]; ok {
		out.Effects = variant
		out.Effects.Flavor = ""
		if variant.Flavor != "" {
			out.Flavor = variant.Flavor
		}
	}
	return out, true
}

// Apply adds an event's effects to the player. Reputation gains are scaled by
// talents; losses and curse are applied as is.
func Apply(p *model.Player, ev model.NightEvent, mods talents.Modifiers) {
	v, w := mods.ScaleReputation(ev.Effects.RepVillage, ev.Effects.RepWolf)
	p.RepVillage += v
	p.RepWolf += w
	p.CurseLevel += ev.Effects.CurseLevel
}
