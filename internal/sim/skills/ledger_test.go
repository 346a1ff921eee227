package skills

import (
	"math"
	"testing"

	"pgregory.net/rapid"

	"moonrise.game/internal/sim/catalogs"
	"moonrise.game/internal/sim/model"
)

func testCatalog() catalogs.SkillCatalog {
	return catalogs.SkillCatalog{
		Order: []string{"Tracking", "Discipline"},
		ByName: map[string]catalogs.SkillDef{
			"Tracking":   {Name: "Tracking", Category: model.CategoryJob, Level: 1, XPToNext: 50},
			"Discipline": {Name: "Discipline", Category: model.CategoryGeneral, Level: 1, XPToNext: 40},
		},
	}
}

func TestGrant_LevelUpRollsOverflow(t *testing.T) {
	l := NewLedger(testCatalog(), 1.5)
	res := l.Grant("Tracking", 60, true)
	if !res.Known || !res.LeveledUp || res.LevelsUp != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	s, _ := l.Get("Tracking")
	if s.Level != 2 || s.XP != 10 || s.XPToNext != 75 {
		t.Fatalf("got level=%d xp=%v next=%d, want 2/10/75", s.Level, s.XP, s.XPToNext)
	}
}

func TestGrant_MultipleLevelsInOneGrant(t *testing.T) {
	l := NewLedger(testCatalog(), 1.5)
	// 50 + 75 + 113 = 238
	res := l.Grant("Tracking", 240, false)
	if res.LevelsUp != 3 {
		t.Fatalf("levels up: got %d want 3", res.LevelsUp)
	}
	s, _ := l.Get("Tracking")
	if s.Level != 4 || s.XP != 2 || s.XPToNext != 170 {
		t.Fatalf("got %+v", s)
	}
}

func TestGrant_UnknownSkillIsNoop(t *testing.T) {
	l := NewLedger(testCatalog(), 1.5)
	before := l.Skills()
	res := l.Grant("Swimming", 1000, false)
	if res.Known || res.LeveledUp {
		t.Fatalf("unknown skill should be ignored: %+v", res)
	}
	after := l.Skills()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("ledger mutated: %+v -> %+v", before[i], after[i])
		}
	}
}

func TestGrant_BonusAppliedUnlessIgnored(t *testing.T) {
	l := NewLedger(testCatalog(), 1.5)
	l.Bonus = 1.2

	l.Grant("Discipline", 10, false)
	if s, _ := l.Get("Discipline"); s.XP != 12 {
		t.Fatalf("bonus grant: xp=%v want 12", s.XP)
	}
	l.Grant("Discipline", 10, true)
	if s, _ := l.Get("Discipline"); s.XP != 22 {
		t.Fatalf("flat grant: xp=%v want 22", s.XP)
	}
}

func TestNewLedger_DeepCopiesTemplates(t *testing.T) {
	cat := testCatalog()
	a := NewLedger(cat, 1.5)
	b := NewLedger(cat, 1.5)
	a.Grant("Tracking", 49, true)
	if s, _ := b.Get("Tracking"); s.XP != 0 {
		t.Fatalf("ledgers share skill state: %+v", s)
	}
	if cat.ByName["Tracking"].XP != 0 {
		t.Fatalf("catalog template mutated")
	}
}

func TestTotalLevels(t *testing.T) {
	l := NewLedger(testCatalog(), 1.5)
	l.Grant("Tracking", 50, true)
	if got := l.TotalLevels(); got != 3 {
		t.Fatalf("total levels: got %d want 3", got)
	}
}

func TestSkillNameFromProduce(t *testing.T) {
	cases := map[string]string{
		"TrackingXP":     "Tracking",
		"Lore_ReadingXP": "Lore Reading",
		"strengthxp":     "Strength",
	}
	for in, want := range cases {
		got, ok := SkillNameFromProduce(in)
		if !ok || got != want {
			t.Fatalf("%s: got %q ok=%v want %q", in, got, ok, want)
		}
	}
	if _, ok := SkillNameFromProduce("coins"); ok {
		t.Fatalf("coins is not an xp tag")
	}
}

func TestGrant_InvariantsHoldForAnySequence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l := NewLedger(testCatalog(), 1.5)
		l.Bonus = rapid.Float64Range(1, 3).Draw(t, "bonus")
		prevNext := map[string]int{"Tracking": 50, "Discipline": 40}
		prevLevel := map[string]int{"Tracking": 1, "Discipline": 1}

		n := rapid.IntRange(1, 40).Draw(t, "grants")
		for i := 0; i < n; i++ {
			name := rapid.SampledFrom([]string{"Tracking", "Discipline", "Nope"}).Draw(t, "skill")
			amt := rapid.Float64Range(0, 5000).Draw(t, "amount")
			l.Grant(name, amt, rapid.Bool().Draw(t, "ignore"))

			for _, s := range l.Skills() {
				if s.XP < 0 || s.XP >= float64(s.XPToNext) {
					t.Fatalf("%s: xp %v outside [0,%d)", s.Name, s.XP, s.XPToNext)
				}
				if s.Level < 1 {
					t.Fatalf("%s: level %d", s.Name, s.Level)
				}
				// Replay the threshold curve from the previous state.
				want := prevNext[s.Name]
				for lv := prevLevel[s.Name]; lv < s.Level; lv++ {
					want = int(math.Round(float64(want) * 1.5))
				}
				if s.XPToNext != want {
					t.Fatalf("%s: threshold %d want %d", s.Name, s.XPToNext, want)
				}
				if s.XPToNext < prevNext[s.Name] {
					t.Fatalf("%s: threshold decreased", s.Name)
				}
				prevNext[s.Name] = s.XPToNext
				prevLevel[s.Name] = s.Level
			}
		}
	})
}
