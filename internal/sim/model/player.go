package model

import (
	"encoding/json"
	"sort"
)

// Player is the ephemeral state of one life. It is replaced wholesale on rebirth.
type Player struct {
	Day       uint64  `json:"day"`
	Age       float64 `json:"age"`
	Coins     float64 `json:"coins"`
	ActiveJob string  `json:"active_job"`

	// CompletedJobs only grows within a life.
	CompletedJobs JobSet `json:"completed_jobs"`

	RepVillage float64 `json:"rep_village"`
	RepWolf    float64 `json:"rep_wolf"`
	CurseLevel float64 `json:"curse_level"`

	// HousingTier is the index of the highest purchased tier, -1 for none.
	HousingTier int `json:"housing_tier"`
}

// NewPlayer returns the initial state of a life.
func NewPlayer(startAge float64, startingJob string) Player {
	p := Player{
		Age:           startAge,
		CompletedJobs: JobSet{},
		HousingTier:   -1,
	}
	if startingJob != "" {
		p.ActiveJob = startingJob
		p.CompletedJobs.Add(startingJob)
	}
	return p
}

func (p Player) Clone() Player {
	out := p
	out.CompletedJobs = p.CompletedJobs.Clone()
	return out
}

// JobSet is the set of job names activated during the current life.
type JobSet map[string]struct{}

func NewJobSet(names ...string) JobSet {
	s := make(JobSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

func (s JobSet) Add(name string) {
	if name == "" {
		return
	}
	s[name] = struct{}{}
}

func (s JobSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s JobSet) Clone() JobSet {
	out := make(JobSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Sorted returns the members in lexical order (used at persistence/message boundaries).
func (s JobSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON writes the set as a sorted list.
func (s JobSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *JobSet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	*s = NewJobSet(names...)
	return nil
}
