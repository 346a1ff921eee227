package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Params          GameParams     `json:"params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type GameParams struct {
	TickIntervalMs int     `json:"tick_interval_ms"`
	TicksPerDay    int     `json:"ticks_per_day"`
	YearsPerTick   float64 `json:"years_per_tick"`
	StartAge       float64 `json:"start_age"`
	RebirthAge     float64 `json:"rebirth_age"`
	MaxAge         float64 `json:"max_age"`
}

type CatalogDigests struct {
	Ages        string `json:"ages"`
	Jobs        string `json:"jobs"`
	Skills      string `json:"skills"`
	Talents     string `json:"talents"`
	Housing     string `json:"housing"`
	NightEvents string `json:"night_events"`
	Tuning      string `json:"tuning,omitempty"`
}

// CommandMsg carries every command type. Fields that a type does not use are
// ignored.
type CommandMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ReqID           string `json:"req_id,omitempty"`

	JobName   string `json:"job_name,omitempty"`
	TalentID  string `json:"talent_id,omitempty"`
	TierIndex *int   `json:"tier_index,omitempty"`

	// State optionally replaces the whole game on START.
	State *GameState `json:"state,omitempty"`
}

type GameState struct {
	Player PlayerState  `json:"player"`
	Skills []SkillState `json:"skills"`
	Legacy LegacyState  `json:"legacy"`
	Clock  string       `json:"clock"`
	Cause  string       `json:"cause,omitempty"`
}

type PlayerState struct {
	Day           uint64   `json:"day"`
	Age           float64  `json:"age"`
	Coins         float64  `json:"coins"`
	ActiveJob     string   `json:"active_job"`
	CompletedJobs []string `json:"completed_jobs"`
	RepVillage    float64  `json:"rep_village"`
	RepWolf       float64  `json:"rep_wolf"`
	CurseLevel    float64  `json:"curse_level"`
	HousingTier   int      `json:"housing_tier"`

	// Derived, ignored on input.
	IsNight         bool    `json:"is_night"`
	TickInDay       int     `json:"tick_in_day"`
	EffectiveMaxAge float64 `json:"effective_max_age"`
}

type SkillState struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Level    int     `json:"level"`
	XP       float64 `json:"xp"`
	XPToNext int     `json:"xp_to_next"`
	Effect   string  `json:"effect,omitempty"`
}

type LegacyState struct {
	Rebirths         int            `json:"rebirths"`
	BloodEchoes      int            `json:"blood_echoes"`
	Talents          map[string]int `json:"talents"`
	PrestigeUnlocked bool           `json:"prestige_unlocked,omitempty"`
}

// UPDATE (server -> client): full state after every tick or command.
type UpdateMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Seq             uint64    `json:"seq"`
	Running         bool      `json:"running"`
	State           GameState `json:"state"`
	UnlockedJobs    []string  `json:"unlocked_jobs"`
}

type EventEffects struct {
	RepVillage float64 `json:"rep_village,omitempty"`
	RepWolf    float64 `json:"rep_wolf,omitempty"`
	CurseLevel float64 `json:"curse_level,omitempty"`
}

type NightEventPayload struct {
	Type    string       `json:"type"`
	Flavor  string       `json:"flavor"`
	Effects EventEffects `json:"effects"`
}

type EventTriggeredMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Day             uint64            `json:"day"`
	Event           NightEventPayload `json:"event"`
}

type ClearEventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Day             uint64 `json:"day"`
}

type NeedsJobRenderMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	UnlockedJobs    []string `json:"unlocked_jobs"`
}

type ShowRebirthModalMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Cause           string  `json:"cause"`
	Age             float64 `json:"age"`
	EffectiveMaxAge float64 `json:"effective_max_age"`
}

type RebirthCompleteMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Rebirths        int    `json:"rebirths"`
	TotalLevels     int    `json:"total_levels"`
	EchoesGained    int    `json:"echoes_gained"`
	Prestige        bool   `json:"prestige,omitempty"`
}

type CommandRejectedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Command         string `json:"command"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}
