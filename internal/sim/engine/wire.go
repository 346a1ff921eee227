package engine

import (
	"fmt"

	"moonrise.game/internal/protocol"
	"moonrise.game/internal/sim/clock"
	"moonrise.game/internal/sim/model"
)

func (e *Engine) wireState() protocol.GameState {
	p := e.player
	out := protocol.GameState{
		Player: protocol.PlayerState{
			Day:             p.Day,
			Age:             p.Age,
			Coins:           p.Coins,
			ActiveJob:       p.ActiveJob,
			CompletedJobs:   p.CompletedJobs.Sorted(),
			RepVillage:      p.RepVillage,
			RepWolf:         p.RepWolf,
			CurseLevel:      p.CurseLevel,
			HousingTier:     p.HousingTier,
			IsNight:         clock.IsNight(p.Day, e.tun.TicksPerDay),
			TickInDay:       clock.TickInDay(p.Day, e.tun.TicksPerDay),
			EffectiveMaxAge: clock.EffectiveMaxAge(e.cats.Ages, e.cats.Housing, p.HousingTier),
		},
		Legacy: protocol.LegacyState{
			Rebirths:         e.legacy.Rebirths,
			BloodEchoes:      e.legacy.BloodEchoes,
			Talents:          e.legacy.Clone().Talents,
			PrestigeUnlocked: e.legacy.PrestigeUnlocked,
		},
		Clock: string(e.clock),
		Cause: string(e.cause),
	}
	for _, s := range e.ledger.Skills() {
		out.Skills = append(out.Skills, protocol.SkillState{
			Name:     s.Name,
			Category: string(s.Category),
			Level:    s.Level,
			XP:       s.XP,
			XPToNext: s.XPToNext,
			Effect:   s.Effect,
		})
	}
	return out
}

// stateFromWire converts a client-supplied state. Derived fields are ignored.
func stateFromWire(g protocol.GameState) (State, error) {
	st := State{
		Player: model.Player{
			Day:           g.Player.Day,
			Age:           g.Player.Age,
			Coins:         g.Player.Coins,
			ActiveJob:     g.Player.ActiveJob,
			CompletedJobs: model.NewJobSet(g.Player.CompletedJobs...),
			RepVillage:    g.Player.RepVillage,
			RepWolf:       g.Player.RepWolf,
			CurseLevel:    g.Player.CurseLevel,
			HousingTier:   g.Player.HousingTier,
		},
		Legacy: model.Legacy{
			Rebirths:         g.Legacy.Rebirths,
			BloodEchoes:      g.Legacy.BloodEchoes,
			Talents:          map[string]int{},
			PrestigeUnlocked: g.Legacy.PrestigeUnlocked,
		},
		Clock: model.ClockState(g.Clock),
		Cause: model.RebirthCause(g.Cause),
	}
	for k, v := range g.Legacy.Talents {
		st.Legacy.Talents[k] = v
	}
	for _, s := range g.Skills {
		cat := model.SkillCategory(s.Category)
		if s.Category != "" && !cat.Valid() {
			return State{}, fmt.Errorf("skill %q category %q: %w", s.Name, s.Category, ErrInvalidState)
		}
		st.Skills = append(st.Skills, model.Skill{
			Name:     s.Name,
			Category: cat,
			Level:    s.Level,
			XP:       s.XP,
			XPToNext: s.XPToNext,
			Effect:   s.Effect,
		})
	}
	return st, nil
}

func eventPayload(ev model.NightEvent) protocol.NightEventPayload {
	return protocol.NightEventPayload{
		Type:   ev.Type,
		Flavor: ev.Flavor,
		Effects: protocol.EventEffects{
			RepVillage: ev.Effects.RepVillage,
			RepWolf:    ev.Effects.RepWolf,
			CurseLevel: ev.Effects.CurseLevel,
		},
	}
}

// Params describes the session for the WELCOME handshake.
func (e *Engine) Params() protocol.GameParams {
	return protocol.GameParams{
		TickIntervalMs: e.tun.TickIntervalMs,
		TicksPerDay:    e.tun.TicksPerDay,
		YearsPerTick:   e.tun.YearsPerTick,
		StartAge:       e.cats.Ages.StartAge,
		RebirthAge:     e.cats.Ages.RebirthAge,
		MaxAge:         e.cats.Ages.MaxAge,
	}
}

func (e *Engine) CatalogDigests() protocol.CatalogDigests {
	return protocol.CatalogDigests{
		Ages:        e.cats.Ages.Digest,
		Jobs:        e.cats.Jobs.Digest,
		Skills:      e.cats.Skills.Digest,
		Talents:     e.cats.Talents.Digest,
		Housing:     e.cats.Housing.Digest,
		NightEvents: e.cats.Events.Digest,
		Tuning:      e.tuningDigest,
	}
}
