// Package rebirth ends a life: it converts skill progress into Blood Echoes and
// builds the next life's starting state.
package rebirth

import (
	"moonrise.game/internal/sim/catalogs"
	"moonrise.game/internal/sim/model"
	"moonrise.game/internal/sim/skills"
	"moonrise.game/internal/sim/talents"
	"moonrise.game/internal/sim/tuning"
)

type Inputs struct {
	Catalogs *catalogs.Catalogs
	Tuning   tuning.Tuning

	Player model.Player
	Ledger *skills.Ledger
	Cause  model.RebirthCause
}

type Result struct {
	Player model.Player
	Ledger *skills.Ledger

	TotalLevels  int
	EchoesGained int
	Prestige     bool
}

// Echoes is the Blood Echo reward for a life with the given total skill levels.
func Echoes(totalLevels int, cfg tuning.Rebirth) int {
	div := cfg.EchoDivisor
	if div <= 0 {
		div = 1
	}
	return cfg.EchoBase + totalLevels/div
}

// PrestigeEarned reports whether a life that ended of old age met every
// reputation and curse requirement.
func PrestigeEarned(p model.Player, cause model.RebirthCause, cfg tuning.Prestige) bool {
	return cause == model.CauseOldAge &&
		p.RepVillage >= cfg.RepVillage &&
		p.RepWolf >= cfg.RepWolf &&
		p.CurseLevel >= cfg.CurseLevel
}

// Perform credits the legacy and returns a fresh life. The old player and
// ledger in Inputs are not modified.
func Perform(legacy *model.Legacy, in Inputs) Result {
	total := 0
	if in.Ledger != nil {
		total = in.Ledger.TotalLevels()
	}
	res := Result{
		TotalLevels:  total,
		EchoesGained: Echoes(total, in.Tuning.Rebirth),
		Prestige:     PrestigeEarned(in.Player, in.Cause, in.Tuning.Prestige),
	}

	legacy.Rebirths++
	legacy.BloodEchoes += res.EchoesGained
	if res.Prestige {
		legacy.PrestigeUnlocked = true
	}

	res.Player = model.NewPlayer(in.Catalogs.Ages.StartAge, in.Tuning.StartingJob)
	res.Ledger = Reseed(in.Catalogs, in.Tuning, *legacy)
	return res
}

// Reseed builds the starting skill ledger for a life under the given legacy.
func Reseed(cats *catalogs.Catalogs, t tuning.Tuning, legacy model.Legacy) *skills.Ledger {
	mods := talents.Resolve(cats, legacy, t.Rewards.TalentPerLevel)
	l := skills.NewLedger(cats.Skills, t.XPGrowth)
	l.Bonus = mods.XP
	if mods.RebirthSkillXP > 0 {
		for _, name := range l.Names() {
			l.Grant(name, mods.RebirthSkillXP, true)
		}
	}
	return l
}
