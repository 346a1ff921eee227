package model

import "sort"

// Legacy is the permanent state that survives rebirths.
type Legacy struct {
	Rebirths    int `json:"rebirths"`
	BloodEchoes int `json:"blood_echoes"`

	// Talents maps talent id to purchased level.
	Talents map[string]int `json:"talents"`

	PrestigeUnlocked bool `json:"prestige_unlocked,omitempty"`
}

func NewLegacy() Legacy {
	return Legacy{Talents: map[string]int{}}
}

func (l Legacy) Clone() Legacy {
	out := l
	out.Talents = make(map[string]int, len(l.Talents))
	for k, v := range l.Talents {
		out.Talents[k] = v
	}
	return out
}

func (l Legacy) TalentLevel(id string) int {
	if l.Talents == nil {
		return 0
	}
	return l.Talents[id]
}

// TalentIDs returns purchased talent ids in lexical order.
func (l Legacy) TalentIDs() []string {
	out := make([]string, 0, len(l.Talents))
	for k, v := range l.Talents {
		if v > 0 {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
