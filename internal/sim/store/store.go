// Package store validates and applies talent and housing purchases.
package store

import (
	"errors"
	"fmt"

	"moonrise.game/internal/sim/catalogs"
	"moonrise.game/internal/sim/model"
)

var (
	ErrUnknownTalent     = errors.New("unknown talent")
	ErrMaxLevel          = errors.New("talent at max level")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOutOfSequence     = errors.New("housing tier out of sequence")
	ErrUnknownTier       = errors.New("unknown housing tier")
)

// PurchaseTalent spends Blood Echoes on one level of a talent.
func PurchaseTalent(l *model.Legacy, cats *catalogs.Catalogs, id string) error {
	t, ok := cats.Talent(id)
	if !ok {
		return fmt.Errorf("talent %q: %w", id, ErrUnknownTalent)
	}
	lvl := l.TalentLevel(id)
	if lvl >= t.MaxLevel {
		return fmt.Errorf("talent %q level %d: %w", id, lvl, ErrMaxLevel)
	}
	if l.BloodEchoes < t.Cost {
		return fmt.Errorf("talent %q costs %d, have %d: %w", id, t.Cost, l.BloodEchoes, ErrInsufficientFunds)
	}
	if l.Talents == nil {
		l.Talents = map[string]int{}
	}
	l.BloodEchoes -= t.Cost
	l.Talents[id] = lvl + 1
	return nil
}

// PurchaseHousing buys the next housing tier with coins. Tiers must be bought
// in order.
func PurchaseHousing(p *model.Player, housing catalogs.HousingCatalog, tier int) error {
	if tier < 0 || tier >= len(housing.Tiers) {
		return fmt.Errorf("housing tier %d: %w", tier, ErrUnknownTier)
	}
	if tier != p.HousingTier+1 {
		return fmt.Errorf("housing tier %d after %d: %w", tier, p.HousingTier, ErrOutOfSequence)
	}
	cost := housing.Tiers[tier].Cost
	if p.Coins < cost {
		return fmt.Errorf("housing tier %d costs %v: %w", tier, cost, ErrInsufficientFunds)
	}
	p.Coins -= cost
	p.HousingTier = tier
	return nil
}
