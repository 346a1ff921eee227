package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"moonrise.game/internal/sim/model"
)

// ErrMissingSection is returned when a required config file is absent.
var ErrMissingSection = errors.New("missing required config section")

type Catalogs struct {
	Ages    Ages
	Jobs    JobCatalog
	Skills  SkillCatalog
	Talents TalentCatalog
	Housing HousingCatalog
	Events  EventCatalog
}

type Ages struct {
	StartAge   float64 `json:"startAge"`
	RebirthAge float64 `json:"rebirthAge"`
	MaxAge     float64 `json:"maxAge"`
	Digest     string  `json:"-"`
}

type JobCatalog struct {
	Order  []string
	ByName map[string]JobDef
	Digest string
}

type JobDef struct {
	Name              string            `json:"name"`
	Type              model.JobType     `json:"type"`
	Description       string            `json:"description,omitempty"`
	Produces          []string          `json:"produces"`
	RequiredJobs      []string          `json:"requiredJobs,omitempty"`
	RequiredSkills    map[string]int    `json:"requiredSkills,omitempty"`
	ReputationEffects ReputationEffects `json:"reputationEffects,omitempty"`
	CoinGain          float64           `json:"coinGain,omitempty"`
}

type ReputationEffects struct {
	RepVillage float64 `json:"repVillage,omitempty"`
	RepWolf    float64 `json:"repWolf,omitempty"`
}

type SkillCatalog struct {
	Order  []string
	ByName map[string]SkillDef
	Digest string
}

type SkillDef struct {
	Name     string              `json:"name"`
	Category model.SkillCategory `json:"category"`
	Level    int                 `json:"level"`
	XP       float64             `json:"xp"`
	XPToNext int                 `json:"xpToNext"`
	Effect   string              `json:"effect,omitempty"`
}

type TalentEffect string

const (
	EffectXPMultiplier      TalentEffect = "xp_multiplier"
	EffectCoinMultiplier    TalentEffect = "coin_multiplier"
	EffectVillageRepScaling TalentEffect = "village_rep_multiplier"
	EffectWolfRepScaling    TalentEffect = "wolf_rep_multiplier"
	EffectRebirthSkillXP    TalentEffect = "rebirth_skill_xp"
)

type TalentCatalog struct {
	Order  []string
	ByID   map[string]TalentDef
	Digest string
}

type TalentDef struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Cost        int          `json:"cost"`
	MaxLevel    int          `json:"maxLevel"`
	Value       float64      `json:"value"`
	Effect      TalentEffect `json:"effect"`
}

type HousingCatalog struct {
	Tiers  []HousingTier
	Digest string
}

type HousingTier struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Cost        float64 `json:"cost"`
	MaxAgeBonus float64 `json:"maxAgeBonus"`
}

type EventCatalog struct {
	// Pool is ordered by id so uniform draws are reproducible for a given seed.
	Pool   []NightEventTemplate
	ByID   map[string]NightEventTemplate
	Digest string
}

type NightEventTemplate struct {
	ID      string                               `json:"id"`
	Name    string                               `json:"name"`
	Flavor  string                               `json:"flavor"`
	Effects map[model.JobType]model.EventOutcome `json:"effects,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadAges(filepath.Join(configDir, "ages.json"), &c.Ages); err != nil {
		return nil, err
	}
	if err := loadSkills(filepath.Join(configDir, "skills.json"), &c.Skills); err != nil {
		return nil, err
	}
	if err := loadJobs(filepath.Join(configDir, "jobs.json"), &c.Jobs); err != nil {
		return nil, err
	}
	if err := loadTalents(filepath.Join(configDir, "talents.json"), &c.Talents); err != nil {
		return nil, err
	}
	if err := loadHousing(filepath.Join(configDir, "housing.json"), &c.Housing); err != nil {
		return nil, err
	}
	if err := loadEvents(filepath.Join(configDir, "night_events"), &c.Events); err != nil {
		return nil, err
	}
	if err := c.crossCheck(); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// readRequired reads a file that must exist, validating it against its schema.
func readRequired(path, schema string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrMissingSection)
		}
		return nil, err
	}
	if err := validateDoc(schema, raw); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return raw, nil
}

// readOptional is readRequired but returns nil, nil when the file is absent.
func readOptional(path, schema string) ([]byte, error) {
	raw, err := readRequired(path, schema)
	if errors.Is(err, ErrMissingSection) {
		return nil, nil
	}
	return raw, err
}

func loadAges(path string, out *Ages) error {
	raw, err := readRequired(path, "ages.schema.json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("ages.json: %w", err)
	}
	if out.RebirthAge < out.StartAge || out.MaxAge < out.StartAge {
		return fmt.Errorf("ages.json: rebirthAge and maxAge must be >= startAge")
	}
	out.Digest = sha256Hex(raw)
	return nil
}

func loadSkills(path string, out *SkillCatalog) error {
	raw, err := readRequired(path, "skills.schema.json")
	if err != nil {
		return err
	}
	var defs []SkillDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("skills.json: %w", err)
	}
	out.ByName = make(map[string]SkillDef, len(defs))
	for _, d := range defs {
		if _, dup := out.ByName[d.Name]; dup {
			return fmt.Errorf("skills.json: duplicate skill %q", d.Name)
		}
		if d.Level < 1 {
			d.Level = 1
		}
		if d.XP >= float64(d.XPToNext) {
			return fmt.Errorf("skills.json: %s: xp must be below xpToNext", d.Name)
		}
		out.ByName[d.Name] = d
		out.Order = append(out.Order, d.Name)
	}
	out.Digest = sha256Hex(raw)
	return nil
}

func loadJobs(path string, out *JobCatalog) error {
	raw, err := readRequired(path, "jobs.schema.json")
	if err != nil {
		return err
	}
	var defs []JobDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("jobs.json: %w", err)
	}
	out.ByName = make(map[string]JobDef, len(defs))
	for _, d := range defs {
		if _, dup := out.ByName[d.Name]; dup {
			return fmt.Errorf("jobs.json: duplicate job %q", d.Name)
		}
		out.ByName[d.Name] = d
		out.Order = append(out.Order, d.Name)
	}
	out.Digest = sha256Hex(raw)
	return nil
}

func loadTalents(path string, out *TalentCatalog) error {
	out.ByID = map[string]TalentDef{}
	raw, err := readOptional(path, "talents.schema.json")
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	if raw == nil {
		return nil
	}
	var defs []TalentDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("talents.json: %w", err)
	}
	for _, d := range defs {
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("talents.json: duplicate talent %q", d.ID)
		}
		out.ByID[d.ID] = d
		out.Order = append(out.Order, d.ID)
	}
	return nil
}

func loadHousing(path string, out *HousingCatalog) error {
	raw, err := readOptional(path, "housing.schema.json")
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	if raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, &out.Tiers); err != nil {
		return fmt.Errorf("housing.json: %w", err)
	}
	return nil
}

func loadEvents(dir string, out *EventCatalog) error {
	out.ByID = map[string]NightEventTemplate{}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	sort.Strings(files)

	var concat bytes.Buffer
	for _, p := range files {
		b, err := readRequired(p, "night_event.schema.json")
		if err != nil {
			return err
		}
		concat.Write(b)
		concat.WriteByte('\n')

		var ev NightEventTemplate
		if err := json.Unmarshal(b, &ev); err != nil {
			return fmt.Errorf("night event %s: %w", filepath.Base(p), err)
		}
		if ev.ID == "" {
			return fmt.Errorf("night event %s: missing id", filepath.Base(p))
		}
		out.ByID[ev.ID] = ev
	}
	ids := make([]string, 0, len(out.ByID))
	for id := range out.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out.Pool = append(out.Pool, out.ByID[id])
	}
	out.Digest = sha256Hex(concat.Bytes())
	return nil
}

// crossCheck verifies references between sections.
func (c *Catalogs) crossCheck() error {
	for _, name := range c.Jobs.Order {
		j := c.Jobs.ByName[name]
		for _, req := range j.RequiredJobs {
			if _, ok := c.Jobs.ByName[req]; !ok {
				return fmt.Errorf("jobs.json: %s requires unknown job %q", name, req)
			}
		}
	}
	return nil
}

// Job returns the job definition and whether it exists.
func (c *Catalogs) Job(name string) (JobDef, bool) {
	if c == nil {
		return JobDef{}, false
	}
	j, ok := c.Jobs.ByName[name]
	return j, ok
}

// Talent returns the talent definition and whether it exists.
func (c *Catalogs) Talent(id string) (TalentDef, bool) {
	if c == nil {
		return TalentDef{}, false
	}
	t, ok := c.Talents.ByID[id]
	return t, ok
}

// TalentsWithEffect returns talents targeting one mechanic, in catalog order.
func (c *Catalogs) TalentsWithEffect(effect TalentEffect) []TalentDef {
	if c == nil {
		return nil
	}
	var out []TalentDef
	for _, id := range c.Talents.Order {
		if t := c.Talents.ByID[id]; t.Effect == effect {
			out = append(out, t)
		}
	}
	return out
}
