package game

import (
	"testing"

	"guildcorp.gg/internal/tuning"
)

func TestCalculateBid_TreasuryCap(t *testing.T) {
	cfg := tuning.Defaults().Bots

	// Aggressive trader in AGGRESSIVE mode on a rich dungeon: the raw bid
	// far exceeds the treasury cap, so the cap must win.
	b := &BotGuild{
		Gold:          1000,
		Personality:   PersonalityAggressiveTrader,
		Behavior:      BehaviorAggressive,
		RiskTolerance: 1.0,
	}
	bid := b.CalculateBid(2500, 4, cfg)
	if bid > 800 {
		t.Fatalf("bid %d exceeds 0.8x treasury cap of 800", bid)
	}
	if bid != 800 {
		t.Errorf("bid = %d, want exactly the 800 cap", bid)
	}
}

func TestCalculateBid_PersonalitySpread(t *testing.T) {
	cfg := tuning.Defaults().Bots

	mk := func(p PersonalityType) *BotGuild {
		return &BotGuild{Gold: 1_000_000, Personality: p, Behavior: BehaviorConsolidating, RiskTolerance: 0.5}
	}

	aggressive := mk(PersonalityAggressiveTrader).CalculateBid(1000, 0, cfg)
	conservative := mk(PersonalityConservativeBuilder).CalculateBid(1000, 0, cfg)
	if aggressive <= conservative {
		t.Errorf("aggressive bid %d should exceed conservative bid %d", aggressive, conservative)
	}

	// Base fraction sanity: an archetype with no multiplier bids 60%.
	plain := mk(PersonalityDataAnalyst).CalculateBid(1000, 0, cfg)
	if plain != 600 {
		t.Errorf("unmodified bid = %d, want 600", plain)
	}
}

func TestCalculateBid_BehaviorAndCompetition(t *testing.T) {
	cfg := tuning.Defaults().Bots

	mk := func(behavior BehaviorState) *BotGuild {
		return &BotGuild{Gold: 1_000_000, Personality: PersonalityDataAnalyst, Behavior: behavior}
	}

	if got := mk(BehaviorAggressive).CalculateBid(1000, 0, cfg); got != 780 {
		t.Errorf("aggressive behavior bid = %d, want 780", got)
	}
	if got := mk(BehaviorDefensive).CalculateBid(1000, 0, cfg); got != 420 {
		t.Errorf("defensive behavior bid = %d, want 420", got)
	}

	// Each competitor adds a linear 10% bump.
	calm := mk(BehaviorConsolidating)
	noRivals := calm.CalculateBid(1000, 0, cfg)
	threeRivals := calm.CalculateBid(1000, 3, cfg)
	if threeRivals != noRivals*13/10 {
		t.Errorf("competition bump: %d vs %d", noRivals, threeRivals)
	}
}

func TestUpdatePerformance(t *testing.T) {
	cfg := tuning.Defaults().Bots

	b := &BotGuild{PerformanceScore: 50, Behavior: BehaviorConsolidating}

	b.UpdatePerformance(true, cfg)
	if b.PerformanceScore != 55 || b.ConsecutiveSuccesses != 1 {
		t.Errorf("after success: score=%v streak=%d", b.PerformanceScore, b.ConsecutiveSuccesses)
	}

	b.UpdatePerformance(false, cfg)
	if b.PerformanceScore != 52 || b.ConsecutiveSuccesses != 0 {
		t.Errorf("after failure: score=%v streak=%d", b.PerformanceScore, b.ConsecutiveSuccesses)
	}

	// Score is capped at 100 and floored at 0.
	b.PerformanceScore = 98
	b.UpdatePerformance(true, cfg)
	if b.PerformanceScore != 100 {
		t.Errorf("score = %v, want cap 100", b.PerformanceScore)
	}
	b.PerformanceScore = 1
	b.UpdatePerformance(false, cfg)
	if b.PerformanceScore != 0 {
		t.Errorf("score = %v, want floor 0", b.PerformanceScore)
	}
}

func TestBehaviorForScore_Thresholds(t *testing.T) {
	cfg := tuning.Defaults().Bots

	cases := []struct {
		score float64
		want  BehaviorState
	}{
		{100, BehaviorDominant},
		{81, BehaviorDominant},
		{80, BehaviorGrowing},
		{61, BehaviorGrowing},
		{60, BehaviorConsolidating},
		{41, BehaviorConsolidating},
		{40, BehaviorDefensive},
		{21, BehaviorDefensive},
		{20, BehaviorStruggling},
		{0, BehaviorStruggling},
	}
	for _, tc := range cases {
		if got := BehaviorForScore(tc.score, cfg); got != tc.want {
			t.Errorf("BehaviorForScore(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}
