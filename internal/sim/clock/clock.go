// Package clock owns time: the day counter, aging, the day/night phase and the
// point at which a life ends.
package clock

import (
	"moonrise.game/internal/sim/catalogs"
	"moonrise.game/internal/sim/model"
)

// TickInDay is the position of day within its cycle.
func TickInDay(day uint64, ticksPerDay int) int {
	if ticksPerDay <= 0 {
		return 0
	}
	return int(day % uint64(ticksPerDay))
}

// IsNight is true for the second half of every cycle.
func IsNight(day uint64, ticksPerDay int) bool {
	if ticksPerDay <= 0 {
		return false
	}
	return TickInDay(day, ticksPerDay) >= ticksPerDay/2
}

// EffectiveMaxAge adds the bonus of every housing tier up to and including tier.
func EffectiveMaxAge(ages catalogs.Ages, housing catalogs.HousingCatalog, tier int) float64 {
	max := ages.MaxAge
	for i := 0; i <= tier && i < len(housing.Tiers); i++ {
		max += housing.Tiers[i].MaxAgeBonus
	}
	return max
}

// Check runs before a tick advances. It reports whether the life is over and why.
// Old age takes precedence when both thresholds are reached.
func Check(p model.Player, ages catalogs.Ages, housing catalogs.HousingCatalog) (model.RebirthCause, bool) {
	if p.Age >= EffectiveMaxAge(ages, housing, p.HousingTier) {
		return model.CauseOldAge, true
	}
	if p.Age >= ages.RebirthAge {
		return model.CauseChoice, true
	}
	return model.CauseNone, false
}

// Advance moves the clock forward by one tick.
func Advance(p *model.Player, yearsPerTick float64) {
	p.Day++
	p.Age += yearsPerTick
}
