package talents

import (
	"math"
	"testing"

	"moonrise.game/internal/sim/catalogs"
	"moonrise.game/internal/sim/model"
)

func loadCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	c, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return c
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestResolve_NoTalentsIsNeutral(t *testing.T) {
	m := Resolve(loadCatalogs(t), model.NewLegacy(), 0.1)
	if m != Neutral() {
		t.Fatalf("modifiers: %+v", m)
	}
	if m := Resolve(nil, model.NewLegacy(), 0.1); m != Neutral() {
		t.Fatalf("nil catalogs: %+v", m)
	}
}

func TestResolve_Levels(t *testing.T) {
	l := model.NewLegacy()
	l.Talents["tome_of_experience"] = 3
	l.Talents["primal_greed"] = 2
	l.Talents["feral_affinity"] = 1
	l.Talents["lingering_knowledge"] = 1

	m := Resolve(loadCatalogs(t), l, 0.1)
	if !near(m.XP, 1.3) || !near(m.Coins, 1.2) || !near(m.RepWolf, 1.1) || !near(m.RepVillage, 1) {
		t.Fatalf("multipliers: %+v", m)
	}
	if m.RebirthSkillXP != 25 {
		t.Fatalf("rebirth xp: %v", m.RebirthSkillXP)
	}
}

func TestResolve_UnknownTalentIgnored(t *testing.T) {
	l := model.NewLegacy()
	l.Talents["silver_tongue"] = 4
	if m := Resolve(loadCatalogs(t), l, 0.1); m != Neutral() {
		t.Fatalf("modifiers: %+v", m)
	}
}

func TestScaleReputation_OnlyGains(t *testing.T) {
	m := Neutral()
	m.RepVillage, m.RepWolf = 1.5, 2
	v, w := m.ScaleReputation(2, -3)
	if v != 3 || w != -3 {
		t.Fatalf("got village=%v wolf=%v", v, w)
	}
	v, w = m.ScaleReputation(-1, 1)
	if v != -1 || w != 2 {
		t.Fatalf("got village=%v wolf=%v", v, w)
	}
}
