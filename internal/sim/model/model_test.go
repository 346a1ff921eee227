package model

import (
	"encoding/json"
	"testing"
)

func TestNewPlayer_StartingJobCompleted(t *testing.T) {
	p := NewPlayer(16, "Simple Villager")
	if p.ActiveJob != "Simple Villager" || !p.CompletedJobs.Has("Simple Villager") {
		t.Fatalf("starting job not active+completed: %+v", p)
	}
	if p.HousingTier != -1 || p.Day != 0 || p.Coins != 0 {
		t.Fatalf("unexpected fresh player: %+v", p)
	}
}

func TestJobSet_SerializesAsSortedList(t *testing.T) {
	p := NewPlayer(16, "Woodcutter")
	p.CompletedJobs.Add("Alpha")
	p.CompletedJobs.Add("")

	b, err := json.Marshal(p.CompletedJobs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `["Alpha","Woodcutter"]` {
		t.Fatalf("got %s", b)
	}

	var back JobSet
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 2 || !back.Has("Alpha") || !back.Has("Woodcutter") {
		t.Fatalf("round trip lost members: %v", back)
	}
}

func TestClone_Independent(t *testing.T) {
	p := NewPlayer(16, "A")
	c := p.Clone()
	c.CompletedJobs.Add("B")
	if p.CompletedJobs.Has("B") {
		t.Fatalf("clone shares completed jobs")
	}

	l := NewLegacy()
	lc := l.Clone()
	lc.Talents["x"] = 1
	if l.TalentLevel("x") != 0 {
		t.Fatalf("clone shares talents")
	}
}
