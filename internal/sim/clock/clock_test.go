package clock

import (
	"testing"

	"moonrise.game/internal/sim/catalogs"
	"moonrise.game/internal/sim/model"
)

var (
	testAges    = catalogs.Ages{StartAge: 16, RebirthAge: 70, MaxAge: 40}
	testHousing = catalogs.HousingCatalog{Tiers: []catalogs.HousingTier{
		{Name: "Shack", Cost: 50, MaxAgeBonus: 5},
		{Name: "Cottage", Cost: 250, MaxAgeBonus: 10},
	}}
)

func TestIsNight(t *testing.T) {
	for day := uint64(0); day < 48; day++ {
		want := day%24 >= 12
		if got := IsNight(day, 24); got != want {
			t.Fatalf("day %d: got %v want %v", day, got, want)
		}
	}
}

func TestEffectiveMaxAge(t *testing.T) {
	cases := map[int]float64{-1: 40, 0: 45, 1: 55, 7: 55}
	for tier, want := range cases {
		if got := EffectiveMaxAge(testAges, testHousing, tier); got != want {
			t.Fatalf("tier %d: got %v want %v", tier, got, want)
		}
	}
}

func TestCheck_OldAgeStopsBeforeAdvance(t *testing.T) {
	p := model.NewPlayer(16, "Simple Villager")
	p.Age = 39.999
	p.Day = 100
	if _, done := Check(p, testAges, testHousing); done {
		t.Fatalf("life should continue below max age")
	}
	Advance(&p, 0.008)
	if p.Day != 101 {
		t.Fatalf("day: got %d want 101", p.Day)
	}

	cause, done := Check(p, testAges, testHousing)
	if !done || cause != model.CauseOldAge {
		t.Fatalf("got %q/%v, want old_age", cause, done)
	}
}

func TestCheck_HousingExtendsLife(t *testing.T) {
	p := model.NewPlayer(16, "Simple Villager")
	p.Age = 41
	p.HousingTier = 0
	if _, done := Check(p, testAges, testHousing); done {
		t.Fatalf("shack should extend life to 45")
	}
}

func TestCheck_ChoiceWhenRebirthAgeIsLower(t *testing.T) {
	ages := catalogs.Ages{StartAge: 16, RebirthAge: 30, MaxAge: 40}
	p := model.NewPlayer(16, "")
	p.Age = 30
	cause, done := Check(p, ages, catalogs.HousingCatalog{})
	if !done || cause != model.CauseChoice {
		t.Fatalf("got %q/%v, want choice", cause, done)
	}
}

func TestCheck_ChoiceAtRebirthAgeOldAgeAtMax(t *testing.T) {
	ages := catalogs.Ages{StartAge: 16, RebirthAge: 40, MaxAge: 40}
	p := model.NewPlayer(16, "")
	p.HousingTier = 0 // effective max 45
	p.Age = 40
	if cause, done := Check(p, ages, testHousing); !done || cause != model.CauseChoice {
		t.Fatalf("at rebirth age: got %q/%v, want choice", cause, done)
	}
	p.Age = 45
	if cause, done := Check(p, ages, testHousing); !done || cause != model.CauseOldAge {
		t.Fatalf("at effective max: got %q/%v, want old_age", cause, done)
	}
}
