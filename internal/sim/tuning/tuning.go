package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	Seed uint64 `yaml:"seed" json:"seed"`

	TickIntervalMs int     `yaml:"tick_interval_ms" json:"tick_interval_ms"`
	TicksPerDay    int     `yaml:"ticks_per_day" json:"ticks_per_day"`
	YearsPerTick   float64 `yaml:"years_per_tick" json:"years_per_tick"`
	// EventTickInDay is the tick-in-day on which night events may fire.
	// Zero means the first night tick (TicksPerDay/2).
	EventTickInDay int `yaml:"event_tick_in_day" json:"event_tick_in_day"`

	StartingJob string `yaml:"starting_job" json:"starting_job"`
	SeerJob     string `yaml:"seer_job" json:"seer_job"`

	XPGrowth float64 `yaml:"xp_growth" json:"xp_growth"`

	Rewards  Rewards  `yaml:"rewards" json:"rewards"`
	Events   Events   `yaml:"events" json:"events"`
	Rebirth  Rebirth  `yaml:"rebirth" json:"rebirth"`
	Prestige Prestige `yaml:"prestige" json:"prestige"`

	AutosaveEveryTicks int `yaml:"autosave_every_ticks" json:"autosave_every_ticks"`
}

type Rewards struct {
	BaseCoinGain       float64 `yaml:"base_coin_gain" json:"base_coin_gain"`
	BaseXPGain         float64 `yaml:"base_xp_gain" json:"base_xp_gain"`
	JobReputationScale float64 `yaml:"job_reputation_scale" json:"job_reputation_scale"`
	// TalentPerLevel is used for multiplier talents whose catalog value is zero.
	TalentPerLevel float64 `yaml:"talent_per_level" json:"talent_per_level"`
}

type Events struct {
	SeerChance        float64 `yaml:"seer_chance" json:"seer_chance"`
	HuntChance        float64 `yaml:"hunt_chance" json:"hunt_chance"`
	HuntSuccessChance float64 `yaml:"hunt_success_chance" json:"hunt_success_chance"`
	HuntRepWolf       float64 `yaml:"hunt_rep_wolf" json:"hunt_rep_wolf"`
	HuntRepVillage    float64 `yaml:"hunt_rep_village" json:"hunt_rep_village"`
	GenericChance     float64 `yaml:"generic_chance" json:"generic_chance"`
}

type Rebirth struct {
	EchoBase    int `yaml:"echo_base" json:"echo_base"`
	EchoDivisor int `yaml:"echo_divisor" json:"echo_divisor"`
}

type Prestige struct {
	RepVillage float64 `yaml:"rep_village" json:"rep_village"`
	RepWolf    float64 `yaml:"rep_wolf" json:"rep_wolf"`
	CurseLevel float64 `yaml:"curse_level" json:"curse_level"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		Seed:            1337,
		TickIntervalMs:  200,
		TicksPerDay:     24,
		YearsPerTick:    0.008,
		StartingJob:     "Simple Villager",
		SeerJob:         "Seer",
		XPGrowth:        1.5,
		Rewards: Rewards{
			BaseCoinGain:       1,
			BaseXPGain:         0.5,
			JobReputationScale: 0.1,
			TalentPerLevel:     0.1,
		},
		Events: Events{
			SeerChance:        0.5,
			HuntChance:        0.4,
			HuntSuccessChance: 0.7,
			HuntRepWolf:       2,
			HuntRepVillage:    -1,
			GenericChance:     0.2,
		},
		Rebirth: Rebirth{
			EchoBase:    1,
			EchoDivisor: 5,
		},
		Prestige: Prestige{
			RepVillage: 30,
			RepWolf:    60,
			CurseLevel: 100,
		},
		AutosaveEveryTicks: 120,
	}
}

// Load reads a tuning file on top of Defaults, so a partial file only overrides
// the keys it names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.TickIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("tick_interval_ms must be > 0"))
	}
	if t.TicksPerDay < 2 {
		errs = append(errs, fmt.Errorf("ticks_per_day must be >= 2"))
	}
	if t.YearsPerTick <= 0 {
		errs = append(errs, fmt.Errorf("years_per_tick must be > 0"))
	}
	if t.EventTickInDay < 0 || (t.TicksPerDay > 0 && t.EventTickInDay >= t.TicksPerDay) {
		errs = append(errs, fmt.Errorf("event_tick_in_day out of range"))
	}
	if t.XPGrowth <= 1 {
		errs = append(errs, fmt.Errorf("xp_growth must be > 1"))
	}
	if t.Rebirth.EchoDivisor <= 0 {
		errs = append(errs, fmt.Errorf("rebirth.echo_divisor must be > 0"))
	}
	for name, p := range map[string]float64{
		"events.seer_chance":         t.Events.SeerChance,
		"events.hunt_chance":         t.Events.HuntChance,
		"events.hunt_success_chance": t.Events.HuntSuccessChance,
		"events.generic_chance":      t.Events.GenericChance,
	} {
		if p < 0 || p > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1]", name))
		}
	}
	return errors.Join(errs...)
}

// NightfallTick is the tick-in-day on which night events are resolved.
func (t Tuning) NightfallTick() int {
	if t.EventTickInDay > 0 {
		return t.EventTickInDay
	}
	return t.TicksPerDay / 2
}
