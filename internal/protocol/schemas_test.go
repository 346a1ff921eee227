package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"moonrise.game/internal/protocol"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// asDoc round-trips a Go value so the validator sees plain JSON types.
func asDoc(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func sampleState() protocol.GameState {
	return protocol.GameState{
		Player: protocol.PlayerState{
			Day: 12, Age: 16.096, Coins: 12, ActiveJob: "Simple Villager",
			CompletedJobs: []string{"Simple Villager"}, HousingTier: -1,
			IsNight: true, TickInDay: 12, EffectiveMaxAge: 40,
		},
		Skills: []protocol.SkillState{{Name: "Discipline", Category: "General", Level: 1, XP: 6, XPToNext: 50}},
		Legacy: protocol.LegacyState{Talents: map[string]int{}},
		Clock:  "RUNNING",
	}
}

func TestSchemas_ValidateMessages(t *testing.T) {
	hello := compile(t, "hello.schema.json")
	welcome := compile(t, "welcome.schema.json")
	command := compile(t, "command.schema.json")
	update := compile(t, "update.schema.json")

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(asDoc(t, v)); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	validate(hello, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "web"})
	validate(welcome, protocol.WelcomeMsg{
		Type: protocol.TypeWelcome, ProtocolVersion: protocol.Version, SessionID: "s-1",
		Params: protocol.GameParams{TickIntervalMs: 200, TicksPerDay: 24, YearsPerTick: 0.008, StartAge: 16, RebirthAge: 70, MaxAge: 40},
		Catalogs: protocol.CatalogDigests{
			Ages: "a", Jobs: "b", Skills: "c", Talents: "d", Housing: "e", NightEvents: "f",
		},
	})

	tier := 0
	st := sampleState()
	for _, c := range []protocol.CommandMsg{
		{Type: protocol.TypeStart},
		{Type: protocol.TypeStart, State: &st},
		{Type: protocol.TypeStop},
		{Type: protocol.TypeSetJob, JobName: "Woodcutter", ReqID: "r1"},
		{Type: protocol.TypePurchaseTalent, TalentID: "primal_greed"},
		{Type: protocol.TypePurchaseHousing, TierIndex: &tier},
		{Type: protocol.TypePerformRebirth},
	} {
		validate(command, c)
	}

	validate(update, protocol.UpdateMsg{
		Type: protocol.TypeUpdate, ProtocolVersion: protocol.Version, Seq: 3, Running: true,
		State: sampleState(), UnlockedJobs: []string{"Simple Villager", "Woodcutter"},
	})
}

func TestSchemas_RejectIncompleteCommands(t *testing.T) {
	command := compile(t, "command.schema.json")
	for _, raw := range []string{
		`{"type":"SET_JOB"}`,
		`{"type":"PURCHASE_HOUSING"}`,
		`{"type":"PURCHASE_HOUSING","tier_index":-1}`,
		`{"type":"DANCE"}`,
	} {
		var doc any
		_ = json.Unmarshal([]byte(raw), &doc)
		if err := command.Validate(doc); err == nil {
			t.Fatalf("expected %s to be rejected", raw)
		}
	}
}
