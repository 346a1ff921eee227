// Package jobs decides which jobs a character may hold and when they pay out.
package jobs

import (
	"errors"
	"fmt"
	"sort"

	"moonrise.game/internal/sim/catalogs"
	"moonrise.game/internal/sim/model"
)

var (
	ErrUnknownJob    = errors.New("unknown job")
	ErrJobLocked     = errors.New("job locked")
	ErrAlreadyActive = errors.New("job already active")
)

// SkillLevels is the read side of the skill ledger that gating needs.
type SkillLevels interface {
	Level(name string) int
}

// IsUnlocked reports whether every required job has been completed in this life
// and every required skill is at or above its minimum level.
func IsUnlocked(job catalogs.JobDef, completed model.JobSet, skills SkillLevels) bool {
	for _, req := range job.RequiredJobs {
		if !completed.Has(req) {
			return false
		}
	}
	for name, min := range job.RequiredSkills {
		if skills == nil || skills.Level(name) < min {
			return false
		}
	}
	return true
}

// IsActiveAtPhase: human jobs work by day, werewolf jobs by night.
func IsActiveAtPhase(job catalogs.JobDef, isNight bool) bool {
	switch job.Type {
	case model.JobHuman:
		return !isNight
	case model.JobWerewolf:
		return isNight
	default:
		return false
	}
}

// Select makes name the active job. On success the job is also recorded as
// completed. On error the player is left untouched.
func Select(p *model.Player, cats *catalogs.Catalogs, skills SkillLevels, name string) error {
	job, ok := cats.Job(name)
	if !ok {
		return fmt.Errorf("select %q: %w", name, ErrUnknownJob)
	}
	if p.ActiveJob == name {
		return fmt.Errorf("select %q: %w", name, ErrAlreadyActive)
	}
	if !IsUnlocked(job, p.CompletedJobs, skills) {
		return fmt.Errorf("select %q: %w", name, ErrJobLocked)
	}
	if p.CompletedJobs == nil {
		p.CompletedJobs = model.JobSet{}
	}
	p.ActiveJob = name
	p.CompletedJobs.Add(name)
	return nil
}

// Unlocked lists the currently unlocked jobs in lexical order.
func Unlocked(cats *catalogs.Catalogs, completed model.JobSet, skills SkillLevels) []string {
	if cats == nil {
		return nil
	}
	var out []string
	for _, name := range cats.Jobs.Order {
		if IsUnlocked(cats.Jobs.ByName[name], completed, skills) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
