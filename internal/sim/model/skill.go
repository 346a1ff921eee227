package model

type SkillCategory string

const (
	CategoryGeneral SkillCategory = "General"
	CategoryJob     SkillCategory = "Job"
	CategoryHuman   SkillCategory = "Human"
	CategoryWolf    SkillCategory = "Wolf"
)

func (c SkillCategory) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryJob, CategoryHuman, CategoryWolf:
		return true
	default:
		return false
	}
}

// Skill is the mutable state of one named skill.
// Invariant: XP < XPToNext and Level >= 1 after every mutation.
type Skill struct {
	Name     string        `json:"name"`
	Category SkillCategory `json:"category"`
	Level    int           `json:"level"`
	XP       float64       `json:"xp"`
	XPToNext int           `json:"xp_to_next"`
	Effect   string        `json:"effect,omitempty"`
}

type JobType string

const (
	JobHuman    JobType = "human"
	JobWerewolf JobType = "werewolf"
)

func (t JobType) Valid() bool {
	return t == JobHuman || t == JobWerewolf
}

// ClockState is the Progression Clock state machine.
type ClockState string

const (
	ClockRunning         ClockState = "RUNNING"
	ClockAwaitingRebirth ClockState = "AWAITING_REBIRTH"
)

// RebirthCause explains why the clock entered ClockAwaitingRebirth.
type RebirthCause string

const (
	CauseNone   RebirthCause = ""
	CauseChoice RebirthCause = "choice"
	CauseOldAge RebirthCause = "old_age"
)

// EventOutcome is the numeric side-effect of a night event.
type EventOutcome struct {
	RepVillage float64 `json:"repVillage,omitempty"`
	RepWolf    float64 `json:"repWolf,omitempty"`
	CurseLevel float64 `json:"curseLevel,omitempty"`
	Flavor     string  `json:"flavor,omitempty"`
}

func (o EventOutcome) IsZero() bool {
	return o.RepVillage == 0 && o.RepWolf == 0 && o.CurseLevel == 0
}

// NightEvent is a resolved event ready to be applied and reported.
type NightEvent struct {
	Type    string       `json:"type"`
	Flavor  string       `json:"flavor"`
	Effects EventOutcome `json:"effects"`
}
