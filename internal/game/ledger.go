package game

import (
	"fmt"

	"guildcorp.gg/internal/tuning"
)

// InterestResult reports the deltas applied by one interest tick.
type InterestResult struct {
	GoldInterest int
	ExpInterest  int
	Applied      bool
}

// AvailableExp is the unspent EXP bank balance; only this part earns
// interest and pays for builds.
func (g *Guild) AvailableExp() int { return g.GuildExp - g.ExpSpent }

// ApplyInterest credits weekly interest on gold and unspent EXP. Guarded by
// the week number so a retried tick within the same week is a no-op.
func (g *Guild) ApplyInterest(week int, cfg tuning.Economy) InterestResult {
	if week <= g.LastInterestWeek {
		return InterestResult{}
	}
	goldInterest := g.Gold * cfg.GoldInterestRatePct / 100
	expInterest := g.AvailableExp() * cfg.ExpInterestRatePct / 100

	g.Gold += goldInterest
	g.GuildExp += expInterest
	g.LastInterestWeek = week

	return InterestResult{GoldInterest: goldInterest, ExpInterest: expInterest, Applied: true}
}

// EarnExp credits activity EXP (dungeon rewards, training) to the bank.
func (g *Guild) EarnExp(amount int) {
	if amount > 0 {
		g.GuildExp += amount
	}
}

// BuildKind names a purchasable permanent guild upgrade.
type BuildKind string

const (
	BuildTrainingEfficiency  BuildKind = "TRAINING_EFFICIENCY"
	BuildDungeonRewards      BuildKind = "DUNGEON_REWARDS"
	BuildRecruitmentCost     BuildKind = "RECRUITMENT_COST"
	BuildFacilityMaintenance BuildKind = "FACILITY_MAINTENANCE"
	BuildExtraActions        BuildKind = "EXTRA_ACTIONS"
)

// PurchaseBuild debits EXP and applies the named permanent bonus. Bonuses
// are additive percentages, never multiplicative.
func (g *Guild) PurchaseBuild(kind BuildKind, cost int, cfg tuning.Economy) error {
	if cost <= 0 {
		return fmt.Errorf("%w: build cost must be positive", ErrValidation)
	}
	if g.AvailableExp() < cost {
		return fmt.Errorf("%w: need %d EXP, have %d", ErrInsufficient, cost, g.AvailableExp())
	}

	switch kind {
	case BuildTrainingEfficiency:
		g.TrainingEfficiencyPct += cfg.BuildBonusPct.TrainingEfficiency
	case BuildDungeonRewards:
		g.DungeonRewardPct += cfg.BuildBonusPct.DungeonRewards
	case BuildRecruitmentCost:
		g.RecruitCostReductionPct += cfg.BuildBonusPct.RecruitmentCost
	case BuildFacilityMaintenance:
		g.FacilityCostReductionPct += cfg.BuildBonusPct.FacilityMaintenance
	case BuildExtraActions:
		g.ExtraActions += cfg.BuildBonusPct.ExtraActions
	default:
		return fmt.Errorf("%w: unknown build kind %q", ErrValidation, kind)
	}

	g.ExpSpent += cost
	return nil
}

// ApplySharePenalty lowers a share price in proportion to a failure
// penalty, bounded by the configured cap. Returns the new price and the
// applied drop fraction.
func ApplySharePenalty(price float64, penalty int, cfg tuning.Timekeeper) (float64, float64) {
	impact := float64(penalty) / float64(cfg.PenaltyImpactScale)
	limit := float64(cfg.MaxShareDropPct) / 100.0
	if impact > limit {
		impact = limit
	}
	return price * (1 - impact), impact
}

// ApplyShareBonus raises a share price in proportion to a completion bonus,
// bounded by the configured cap. Returns the new price and the applied
// boost fraction.
func ApplyShareBonus(price float64, bonus int, cfg tuning.Timekeeper) (float64, float64) {
	impact := float64(bonus) / float64(cfg.BonusImpactScale)
	limit := float64(cfg.MaxShareBoostPct) / 100.0
	if impact > limit {
		impact = limit
	}
	return price * (1 + impact), impact
}
