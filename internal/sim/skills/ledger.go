package skills

import (
	"math"
	"sort"
	"strings"

	"moonrise.game/internal/sim/catalogs"
	"moonrise.game/internal/sim/model"
)

const DefaultGrowth = 1.5

// Ledger tracks experience and level per named skill.
type Ledger struct {
	skills map[string]*model.Skill

	// Growth multiplies the level-up threshold on every level gained. Must be > 1.
	Growth float64
	// Bonus is the permanent XP multiplier applied unless a grant opts out.
	Bonus float64
}

// GrantResult reports the outcome of one grant.
type GrantResult struct {
	Known     bool
	Applied   float64
	LevelsUp  int
	LeveledUp bool
}

// NewLedger deep-copies the skill templates from the catalog.
func NewLedger(cat catalogs.SkillCatalog, growth float64) *Ledger {
	if growth <= 1 {
		growth = DefaultGrowth
	}
	l := &Ledger{
		skills: make(map[string]*model.Skill, len(cat.ByName)),
		Growth: growth,
		Bonus:  1,
	}
	l.AddMissing(cat)
	return l
}

// AddMissing seeds every catalog skill the ledger does not track yet.
func (l *Ledger) AddMissing(cat catalogs.SkillCatalog) {
	for _, name := range cat.Order {
		if _, ok := l.skills[name]; ok {
			continue
		}
		d := cat.ByName[name]
		lvl := d.Level
		if lvl < 1 {
			lvl = 1
		}
		l.skills[name] = &model.Skill{
			Name:     d.Name,
			Category: d.Category,
			Level:    lvl,
			XP:       d.XP,
			XPToNext: d.XPToNext,
			Effect:   d.Effect,
		}
	}
}

// FromSkills rebuilds a ledger from persisted skills.
func FromSkills(in []model.Skill, growth float64) *Ledger {
	if growth <= 1 {
		growth = DefaultGrowth
	}
	l := &Ledger{skills: make(map[string]*model.Skill, len(in)), Growth: growth, Bonus: 1}
	for _, s := range in {
		s := s
		if s.Name == "" {
			continue
		}
		if s.Level < 1 {
			s.Level = 1
		}
		if s.XPToNext < 1 {
			s.XPToNext = 1
		}
		if s.XP < 0 {
			s.XP = 0
		}
		l.skills[s.Name] = &s
		l.levelUp(&s)
	}
	return l
}

// Grant adds XP to a skill and rolls overflow into level-ups.
// Unknown skills are ignored.
func (l *Ledger) Grant(name string, amount float64, ignorePermanentBonus bool) GrantResult {
	s, ok := l.skills[name]
	if !ok {
		return GrantResult{}
	}
	res := GrantResult{Known: true}
	if !(amount > 0) {
		return res
	}
	if !ignorePermanentBonus && l.Bonus > 0 {
		amount *= l.Bonus
	}
	s.XP += amount
	res.Applied = amount
	res.LevelsUp = l.levelUp(s)
	res.LeveledUp = res.LevelsUp > 0
	return res
}

func (l *Ledger) levelUp(s *model.Skill) int {
	n := 0
	for s.XP >= float64(s.XPToNext) {
		s.XP -= float64(s.XPToNext)
		s.Level++
		next := int(math.Round(float64(s.XPToNext) * l.Growth))
		if next <= s.XPToNext {
			next = s.XPToNext + 1
		}
		s.XPToNext = next
		n++
	}
	return n
}

// Level returns the current level, or 0 for an unknown skill.
func (l *Ledger) Level(name string) int {
	if s, ok := l.skills[name]; ok {
		return s.Level
	}
	return 0
}

func (l *Ledger) Get(name string) (model.Skill, bool) {
	s, ok := l.skills[name]
	if !ok {
		return model.Skill{}, false
	}
	return *s, true
}

func (l *Ledger) TotalLevels() int {
	total := 0
	for _, s := range l.skills {
		total += s.Level
	}
	return total
}

// Names returns the skill names in lexical order.
func (l *Ledger) Names() []string {
	out := make([]string, 0, len(l.skills))
	for k := range l.skills {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Skills returns copies of all skills ordered by name.
func (l *Ledger) Skills() []model.Skill {
	names := l.Names()
	out := make([]model.Skill, 0, len(names))
	for _, n := range names {
		out = append(out, *l.skills[n])
	}
	return out
}

func (l *Ledger) Clone() *Ledger {
	out := &Ledger{skills: make(map[string]*model.Skill, len(l.skills)), Growth: l.Growth, Bonus: l.Bonus}
	for k, v := range l.skills {
		cp := *v
		out.skills[k] = &cp
	}
	return out
}

// SkillNameFromProduce maps a produce tag such as "Lore_ReadingXP" to the skill
// name "Lore Reading". ok is false for tags that are not XP tags.
func SkillNameFromProduce(tag string) (string, bool) {
	if len(tag) < 2 || !strings.EqualFold(tag[len(tag)-2:], "xp") {
		return "", false
	}
	base := strings.ReplaceAll(tag[:len(tag)-2], "_", " ")
	words := strings.Fields(base)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " "), len(words) > 0
}
