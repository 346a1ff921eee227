// Package rewards computes and applies the per-tick payout of the active job.
package rewards

import (
	"moonrise.game/internal/sim/catalogs"
	"moonrise.game/internal/sim/jobs"
	"moonrise.game/internal/sim/model"
	"moonrise.game/internal/sim/skills"
	"moonrise.game/internal/sim/talents"
	"moonrise.game/internal/sim/tuning"
)

const coinsTag = "coins"

// Payout is what one tick of work yields. XP amounts are before the
// permanent XP bonus, which the ledger applies.
type Payout struct {
	Job        string
	Coins      float64
	XP         []SkillXP
	RepVillage float64
	RepWolf    float64
}

type SkillXP struct {
	Skill  string  `json:"skill"`
	Amount float64 `json:"amount"`
}

func (p Payout) Empty() bool {
	return p.Job == ""
}

// Inputs bundles everything Resolve reads. It never mutates any of it.
type Inputs struct {
	Catalogs  *catalogs.Catalogs
	ActiveJob string
	IsNight   bool
	Modifiers talents.Modifiers
	Rewards   tuning.Rewards
}

// Resolve returns the payout for one tick, or an empty payout when there is no
// active job, the job is unknown, or the job does not work in the current phase.
func Resolve(in Inputs) Payout {
	if in.ActiveJob == "" {
		return Payout{}
	}
	job, ok := in.Catalogs.Job(in.ActiveJob)
	if !ok {
		return Payout{}
	}
	if !jobs.IsActiveAtPhase(job, in.IsNight) {
		return Payout{}
	}

	out := Payout{Job: job.Name}
	coin := job.CoinGain
	if coin <= 0 {
		coin = in.Rewards.BaseCoinGain
	}
	coin *= in.Modifiers.Coins

	for _, tag := range job.Produces {
		if tag == coinsTag {
			out.Coins += coin
			continue
		}
		if name, ok := skills.SkillNameFromProduce(tag); ok {
			out.XP = append(out.XP, SkillXP{Skill: name, Amount: in.Rewards.BaseXPGain})
		}
	}

	v, w := in.Modifiers.ScaleReputation(job.ReputationEffects.RepVillage, job.ReputationEffects.RepWolf)
	out.RepVillage = v * in.Rewards.JobReputationScale
	out.RepWolf = w * in.Rewards.JobReputationScale
	return out
}

// Applied reports side effects of Apply that the caller turns into notifications.
type Applied struct {
	LeveledUp bool
}

// Apply credits a payout to the player and the skill ledger.
func Apply(p *model.Player, ledger *skills.Ledger, pay Payout) Applied {
	var res Applied
	if pay.Empty() {
		return res
	}
	p.Coins += pay.Coins
	p.RepVillage += pay.RepVillage
	p.RepWolf += pay.RepWolf
	for _, x := range pay.XP {
		if ledger.Grant(x.Skill, x.Amount, false).LeveledUp {
			res.LeveledUp = true
		}
	}
	return res
}
