package game

import "guildcorp.gg/internal/tuning"

// CalculateBid computes what a bot guild offers for a dungeon worth
// dungeonValue with competitionLevel rival bidders. The chain is: base
// fraction of value, personality multiplier, behavior multiplier, a linear
// competition bump, and finally a hard cap at a fraction of the treasury.
// The cap always wins.
func (b *BotGuild) CalculateBid(dungeonValue, competitionLevel int, cfg tuning.Bots) int {
	bid := float64(dungeonValue) * cfg.BaseBidFraction

	switch b.Personality {
	case PersonalityAggressiveTrader:
		bid *= 1.2 + b.RiskTolerance*0.3
	case PersonalityConservativeBuilder:
		bid *= 0.8 + b.RiskTolerance*0.2
	case PersonalityNetworkingElite:
		bid *= 1.1
	case PersonalityOpportunisticShark:
		bid *= 1.0 + b.RiskTolerance*0.4
	}

	switch b.Behavior {
	case BehaviorAggressive:
		bid *= cfg.AggressiveBehaviorMult
	case BehaviorDefensive:
		bid *= cfg.DefensiveBehaviorMult
	}

	bid *= 1.0 + float64(competitionLevel)*cfg.CompetitionBump

	limit := int(float64(b.Gold) * cfg.TreasuryCapFraction)
	if int(bid) > limit {
		return limit
	}
	return int(bid)
}

// UpdatePerformance moves the 0-100 performance score by a fixed step and
// rederives the behavior state. Behavior is never mutated anywhere else.
func (b *BotGuild) UpdatePerformance(success bool, cfg tuning.Bots) {
	if success {
		b.PerformanceScore += float64(cfg.SuccessStep)
		if b.PerformanceScore > 100 {
			b.PerformanceScore = 100
		}
		b.ConsecutiveSuccesses++
	} else {
		b.PerformanceScore -= float64(cfg.FailureStep)
		if b.PerformanceScore < 0 {
			b.PerformanceScore = 0
		}
		b.ConsecutiveSuccesses = 0
	}
	b.Behavior = BehaviorForScore(b.PerformanceScore, cfg)
}

// BehaviorForScore maps a performance score onto the behavior ladder via
// fixed non-overlapping thresholds.
func BehaviorForScore(score float64, cfg tuning.Bots) BehaviorState {
	switch {
	case score > cfg.DominantThreshold:
		return BehaviorDominant
	case score > cfg.GrowingThreshold:
		return BehaviorGrowing
	case score > cfg.ConsolidatingThreshold:
		return BehaviorConsolidating
	case score > cfg.DefensiveThreshold:
		return BehaviorDefensive
	default:
		return BehaviorStruggling
	}
}

// Rank reports the bot guild's tier from its share price, same ladder as
// player guilds.
func (b *BotGuild) Rank(cfg tuning.Ranks) Rank { return RankForPrice(b.SharePrice, cfg) }
