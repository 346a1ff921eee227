package engine

import (
	"moonrise.game/internal/sim/model"
	"moonrise.game/internal/sim/rewards"
)

// Optional sinks (may be nil). Implemented in internal/persistence/*.
type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// Recorder receives history rows. Implementations must not block the loop.
type Recorder interface {
	RecordTick(entry TickLogEntry)
	RecordRebirth(r RebirthRecord)
	RecordNightEvent(r NightEventRecord)
	RecordLegacy(l model.Legacy)
}

type TickLogEntry struct {
	Rebirths  int                `json:"rebirths"`
	Day       uint64             `json:"day"`
	Age       float64            `json:"age"`
	Night     bool               `json:"night"`
	Job       string             `json:"job,omitempty"`
	Coins     float64            `json:"coins"`
	CoinGain  float64            `json:"coin_gain,omitempty"`
	XP        []rewards.SkillXP  `json:"xp,omitempty"`
	Event     *model.NightEvent  `json:"event,omitempty"`
	LeveledUp bool               `json:"leveled_up,omitempty"`
	Commands  []RecordedCommand  `json:"commands,omitempty"`
	Clock     model.ClockState   `json:"clock"`
	Cause     model.RebirthCause `json:"cause,omitempty"`
}

// RecordedCommand is a command applied between the previous tick and this one.
type RecordedCommand struct {
	Type string `json:"type"`
	Arg  string `json:"arg,omitempty"`
	Code string `json:"code,omitempty"`
}

type RebirthRecord struct {
	Rebirth      int                `json:"rebirth"`
	Day          uint64             `json:"day"`
	Age          float64            `json:"age"`
	Cause        model.RebirthCause `json:"cause"`
	TotalLevels  int                `json:"total_levels"`
	EchoesGained int                `json:"echoes_gained"`
	Prestige     bool               `json:"prestige"`
}

type NightEventRecord struct {
	Rebirths int              `json:"rebirths"`
	Day      uint64           `json:"day"`
	Job      string           `json:"job"`
	Event    model.NightEvent `json:"event"`
}

// State is a deep-copied view of the whole game.
type State struct {
	Player model.Player
	Skills []model.Skill
	Legacy model.Legacy
	Clock  model.ClockState
	Cause  model.RebirthCause

	// Running is the scheduler flag (START/STOP), separate from Clock.
	Running bool
}

// Recorders fans history out to every non-nil recorder.
func Recorders(rs ...Recorder) Recorder {
	var out multiRecorder
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multiRecorder []Recorder

func (m multiRecorder) RecordTick(e TickLogEntry) {
	for _, r := range m {
		r.RecordTick(e)
	}
}

func (m multiRecorder) RecordRebirth(rec RebirthRecord) {
	for _, r := range m {
		r.RecordRebirth(rec)
	}
}

func (m multiRecorder) RecordNightEvent(rec NightEventRecord) {
	for _, r := range m {
		r.RecordNightEvent(rec)
	}
}

func (m multiRecorder) RecordLegacy(l model.Legacy) {
	for _, r := range m {
		r.RecordLegacy(l)
	}
}

func (s State) Clone() State {
	out := s
	out.Player = s.Player.Clone()
	out.Legacy = s.Legacy.Clone()
	out.Skills = append([]model.Skill(nil), s.Skills...)
	return out
}
