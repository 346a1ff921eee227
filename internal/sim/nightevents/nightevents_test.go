package nightevents

import (
	"math"
	"reflect"
	"testing"

	"moonrise.game/internal/sim/catalogs"
	"moonrise.game/internal/sim/model"
	"moonrise.game/internal/sim/talents"
	"moonrise.game/internal/sim/tuning"
)

func testCatalogs(pool ...catalogs.NightEventTemplate) *catalogs.Catalogs {
	c := &catalogs.Catalogs{
		Jobs: catalogs.JobCatalog{ByName: map[string]catalogs.JobDef{
			"Seer":         {Name: "Seer", Type: model.JobHuman},
			"Farmer":       {Name: "Farmer", Type: model.JobHuman},
			"Lurking Wolf": {Name: "Lurking Wolf", Type: model.JobWerewolf},
		}},
		Events: catalogs.EventCatalog{ByID: map[string]catalogs.NightEventTemplate{}},
	}
	for _, tpl := range pool {
		c.Events.Pool = append(c.Events.Pool, tpl)
		c.Events.ByID[tpl.ID] = tpl
	}
	return c
}

func certain(t tuning.Tuning) tuning.Tuning {
	t.Events.SeerChance = 1
	t.Events.HuntChance = 1
	t.Events.HuntSuccessChance = 1
	t.Events.GenericChance = 1
	return t
}

const nightfall = 12

func TestDue_OnlyFirstNightTick(t *testing.T) {
	r := New(testCatalogs(), tuning.Defaults(), nil)
	for day := uint64(0); day < 72; day++ {
		want := day%24 == nightfall
		if got := r.Due(day); got != want {
			t.Fatalf("day %d: got %v want %v", day, got, want)
		}
	}
}

func TestRoll_OffTickNeverFires(t *testing.T) {
	r := New(testCatalogs(), certain(tuning.Defaults()), nil)
	if _, ok := r.Roll(0, "Seer"); ok {
		t.Fatalf("event fired at dawn")
	}
	if _, ok := r.Roll(nightfall+1, "Seer"); ok {
		t.Fatalf("event fired after nightfall tick")
	}
}

func TestRoll_SeerVision(t *testing.T) {
	r := New(testCatalogs(), certain(tuning.Defaults()), nil)
	ev, ok := r.Roll(nightfall, "Seer")
	if !ok || ev.Type != TypeSeerVision || !ev.Effects.IsZero() {
		t.Fatalf("got %+v ok=%v", ev, ok)
	}
}

func TestRoll_Hunt(t *testing.T) {
	tn := certain(tuning.Defaults())
	ev, ok := New(testCatalogs(), tn, nil).Roll(nightfall, "Lurking Wolf")
	if !ok || ev.Type != TypeSuccessfulHunt || ev.Effects.RepWolf != 2 || ev.Effects.RepVillage != -1 {
		t.Fatalf("success: got %+v ok=%v", ev, ok)
	}

	tn.Events.HuntSuccessChance = 0
	ev, ok = New(testCatalogs(), tn, nil).Roll(nightfall, "Lurking Wolf")
	if !ok || ev.Type != TypeFailedHunt || !ev.Effects.IsZero() {
		t.Fatalf("failure: got %+v ok=%v", ev, ok)
	}
}

func TestRoll_GenericVariantAndFallback(t *testing.T) {
	patrol := catalogs.NightEventTemplate{
		ID: "patrol", Name: "Lynch patrol", Flavor: "Torches in the lane.",
		Effects: map[model.JobType]model.EventOutcome{
			model.JobHuman: {RepVillage: 1, Flavor: "You join the patrol."},
		},
	}
	tn := certain(tuning.Defaults())
	tn.Events.HuntChance = 0

	ev, ok := New(testCatalogs(patrol), tn, nil).Roll(nightfall, "Farmer")
	want := model.NightEvent{Type: "Lynch patrol", Flavor: "You join the patrol.", Effects: model.EventOutcome{RepVillage: 1}}
	if !ok || !reflect.DeepEqual(ev, want) {
		t.Fatalf("variant: got %+v want %+v", ev, want)
	}

	ev, ok = New(testCatalogs(patrol), tn, nil).Roll(nightfall, "Lurking Wolf")
	want = model.NightEvent{Type: "Lynch patrol", Flavor: "Torches in the lane."}
	if !ok || !reflect.DeepEqual(ev, want) {
		t.Fatalf("fallback: got %+v want %+v", ev, want)
	}
}

func TestRoll_NoEventWhenChancesAreZero(t *testing.T) {
	tn := tuning.Defaults()
	tn.Events.SeerChance, tn.Events.HuntChance, tn.Events.GenericChance = 0, 0, 0
	r := New(testCatalogs(catalogs.NightEventTemplate{ID: "x", Name: "X"}), tn, nil)
	for _, job := range []string{"Seer", "Farmer", "Lurking Wolf", "Nobody"} {
		if ev, ok := r.Roll(nightfall, job); ok {
			t.Fatalf("%s: unexpected event %+v", job, ev)
		}
	}
}

func TestRoll_SameSeedSameSequence(t *testing.T) {
	pool := []catalogs.NightEventTemplate{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}, {ID: "c", Name: "C"}}
	tn := tuning.Defaults()
	a := New(testCatalogs(pool...), tn, NewRand(42))
	b := New(testCatalogs(pool...), tn, NewRand(42))
	for i := 0; i < 200; i++ {
		day := uint64(nightfall + 24*i)
		job := []string{"Seer", "Farmer", "Lurking Wolf"}[i%3]
		ea, oka := a.Roll(day, job)
		eb, okb := b.Roll(day, job)
		if oka != okb || !reflect.DeepEqual(ea, eb) {
			t.Fatalf("roll %d diverged: %+v/%v vs %+v/%v", i, ea, oka, eb, okb)
		}
	}
}

func TestApply_ScalesOnlyGains(t *testing.T) {
	p := model.NewPlayer(16, "")
	mods := talents.Neutral()
	mods.RepWolf = 1.5
	mods.RepVillage = 3
	Apply(&p, model.NightEvent{Effects: model.EventOutcome{RepWolf: 2, RepVillage: -1, CurseLevel: 4}}, mods)
	if math.Abs(p.RepWolf-3) > 1e-9 || p.RepVillage != -1 || p.CurseLevel != 4 {
		t.Fatalf("got wolf=%v village=%v curse=%v", p.RepWolf, p.RepVillage, p.CurseLevel)
	}
}
