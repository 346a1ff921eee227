// Package talents turns purchased talent levels into the numeric modifiers
// consulted by the reward, event and skill systems.
package talents

import (
	"moonrise.game/internal/sim/catalogs"
	"moonrise.game/internal/sim/model"
)

// Modifiers is the resolved set of permanent bonuses for one legacy.
type Modifiers struct {
	XP         float64
	Coins      float64
	RepVillage float64
	RepWolf    float64

	// RebirthSkillXP is the flat XP granted to every skill after a rebirth.
	RebirthSkillXP float64
}

// Neutral applies no bonus.
func Neutral() Modifiers {
	return Modifiers{XP: 1, Coins: 1, RepVillage: 1, RepWolf: 1}
}

// Resolve computes modifiers as 1 + level*value per talent, summed over all
// talents that target the same mechanic. defaultPerLevel is used when a
// catalog entry carries no value.
func Resolve(cats *catalogs.Catalogs, legacy model.Legacy, defaultPerLevel float64) Modifiers {
	m := Neutral()
	if cats == nil {
		return m
	}
	for _, id := range cats.Talents.Order {
		t := cats.Talents.ByID[id]
		lvl := legacy.TalentLevel(id)
		if lvl <= 0 {
			continue
		}
		per := t.Value
		if per == 0 {
			per = defaultPerLevel
		}
		bonus := float64(lvl) * per
		switch t.Effect {
		case catalogs.EffectXPMultiplier:
			m.XP += bonus
		case catalogs.EffectCoinMultiplier:
			m.Coins += bonus
		case catalogs.EffectVillageRepScaling:
			m.RepVillage += bonus
		case catalogs.EffectWolfRepScaling:
			m.RepWolf += bonus
		case catalogs.EffectRebirthSkillXP:
			// Flat grant, not scaled by level.
			m.RebirthSkillXP += t.Value
		}
	}
	return m
}

// ScaleReputation boosts positive deltas only; losses pass through unchanged.
func (m Modifiers) ScaleReputation(village, wolf float64) (float64, float64) {
	if village > 0 {
		village *= m.RepVillage
	}
	if wolf > 0 {
		wolf *= m.RepWolf
	}
	return village, wolf
}
