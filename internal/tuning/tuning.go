package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning carries every balance constant the game layer treats as
// configuration: rank thresholds, dungeon multiplier tables, time windows,
// tick intervals and bot AI coefficients. Loaded once at startup and passed
// to services read-only.
type Tuning struct {
	Economy    Economy    `yaml:"economy"`
	Ranks      Ranks      `yaml:"ranks"`
	Dungeons   Dungeons   `yaml:"dungeons"`
	Combat     Combat     `yaml:"combat"`
	Timekeeper Timekeeper `yaml:"timekeeper"`
	Bots       Bots       `yaml:"bots"`
}

type Economy struct {
	StartingGold       int `yaml:"starting_gold"`
	StartingSharePrice int `yaml:"starting_share_price"`

	// Interest applies once per game week to gold and unspent guild EXP.
	GoldInterestRatePct int `yaml:"gold_interest_rate_pct"`
	ExpInterestRatePct  int `yaml:"exp_interest_rate_pct"`

	// Permanent bonus granted per purchase, keyed by build kind.
	BuildBonusPct BuildBonuses `yaml:"build_bonus_pct"`
}

type BuildBonuses struct {
	TrainingEfficiency  int `yaml:"training_efficiency"`
	DungeonRewards      int `yaml:"dungeon_rewards"`
	RecruitmentCost     int `yaml:"recruitment_cost"`
	FacilityMaintenance int `yaml:"facility_maintenance"`
	ExtraActions        int `yaml:"extra_actions"`
}

type Ranks struct {
	// Share-price floor per rank, descending. A price below the D floor is E.
	PriceFloorS int `yaml:"price_floor_s"`
	PriceFloorA int `yaml:"price_floor_a"`
	PriceFloorB int `yaml:"price_floor_b"`
	PriceFloorC int `yaml:"price_floor_c"`
	PriceFloorD int `yaml:"price_floor_d"`

	// Capacity tables, indexed E..S. Must be total over all six ranks.
	MaxAdventurers map[string]int `yaml:"max_adventurers"`
	MaxFacilities  map[string]int `yaml:"max_facilities"`
	MaxContracts   map[string]int `yaml:"max_contracts"`
}

// RankParams drives dungeon generation for one difficulty rank.
type RankParams struct {
	Rooms           int     `yaml:"rooms"`
	LootBase        int     `yaml:"loot_base"`
	CompletionBonus int     `yaml:"completion_bonus"`
	FailurePenalty  int     `yaml:"failure_penalty"`
	BaseDifficulty  int     `yaml:"base_difficulty"`
	EnemyCount      int     `yaml:"enemy_count"`
	MiningMult      float64 `yaml:"mining_mult"`
}

type Dungeons struct {
	Params map[string]RankParams `yaml:"params"`

	BiddingWindowHours int `yaml:"bidding_window_hours"`
	ActiveWindowDays   int `yaml:"active_window_days"`

	DifficultyPerRoom       int `yaml:"difficulty_per_room"`
	MiningDurationHours     int `yaml:"mining_duration_hours"`
	BossMiningDurationHours int `yaml:"boss_mining_duration_hours"`

	// Real-time budget a run may spend inside the dungeon per calendar day.
	TimeLimitPerDayMinutes int `yaml:"time_limit_per_day_minutes"`
}

type Combat struct {
	MinSuccessChance float64 `yaml:"min_success_chance"`
	MaxSuccessChance float64 `yaml:"max_success_chance"`

	VictoryExpPerDifficulty  int `yaml:"victory_exp_per_difficulty"`
	VictoryGoldPerDifficulty int `yaml:"victory_gold_per_difficulty"`
	DefeatExpPerDifficulty   int `yaml:"defeat_exp_per_difficulty"`

	VictoryDamageMin int `yaml:"victory_damage_min"`
	VictoryDamageMax int `yaml:"victory_damage_max"`
	DefeatDamageMin  int `yaml:"defeat_damage_min"`
	DefeatDamageMax  int `yaml:"defeat_damage_max"`
}

type Timekeeper struct {
	MiningTickSeconds     int `yaml:"mining_tick_seconds"`
	DailyResetTickSeconds int `yaml:"daily_reset_tick_seconds"`
	CollapseTickSeconds   int `yaml:"collapse_tick_seconds"`
	CompletionTickSeconds int `yaml:"completion_tick_seconds"`

	// Share-price adjustments are proportional to penalty/bonus size but
	// bounded by these caps.
	MaxShareDropPct    int `yaml:"max_share_drop_pct"`
	MaxShareBoostPct   int `yaml:"max_share_boost_pct"`
	PenaltyImpactScale int `yaml:"penalty_impact_scale"`
	BonusImpactScale   int `yaml:"bonus_impact_scale"`
}

type Bots struct {
	BaseBidFraction     float64 `yaml:"base_bid_fraction"`
	TreasuryCapFraction float64 `yaml:"treasury_cap_fraction"`
	CompetitionBump     float64 `yaml:"competition_bump"`

	AggressiveBehaviorMult float64 `yaml:"aggressive_behavior_mult"`
	DefensiveBehaviorMult  float64 `yaml:"defensive_behavior_mult"`

	SuccessStep int `yaml:"success_step"`
	FailureStep int `yaml:"failure_step"`

	BidTickSeconds int `yaml:"bid_tick_seconds"`

	DominantThreshold      float64 `yaml:"dominant_threshold"`
	GrowingThreshold       float64 `yaml:"growing_threshold"`
	ConsolidatingThreshold float64 `yaml:"consolidating_threshold"`
	DefensiveThreshold     float64 `yaml:"defensive_threshold"`
}

// Load reads tuning from a YAML file. A missing path returns defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	return t, nil
}

func Defaults() Tuning {
	var t Tuning
	t.applyDefaults()
	return t
}

func (t *Tuning) applyDefaults() {
	e := &t.Economy
	if e.StartingGold <= 0 {
		e.StartingGold = 5000
	}
	if e.StartingSharePrice <= 0 {
		e.StartingSharePrice = 100
	}
	if e.GoldInterestRatePct <= 0 {
		e.GoldInterestRatePct = 5
	}
	if e.ExpInterestRatePct <= 0 {
		e.ExpInterestRatePct = 5
	}
	b := &e.BuildBonusPct
	if b.TrainingEfficiency <= 0 {
		b.TrainingEfficiency = 10
	}
	if b.DungeonRewards <= 0 {
		b.DungeonRewards = 15
	}
	if b.RecruitmentCost <= 0 {
		b.RecruitmentCost = 5
	}
	if b.FacilityMaintenance <= 0 {
		b.FacilityMaintenance = 8
	}
	if b.ExtraActions <= 0 {
		b.ExtraActions = 1
	}

	r := &t.Ranks
	if r.PriceFloorS <= 0 {
		r.PriceFloorS = 800
	}
	if r.PriceFloorA <= 0 {
		r.PriceFloorA = 401
	}
	if r.PriceFloorB <= 0 {
		r.PriceFloorB = 201
	}
	if r.PriceFloorC <= 0 {
		r.PriceFloorC = 101
	}
	if r.PriceFloorD <= 0 {
		r.PriceFloorD = 51
	}
	if len(r.MaxAdventurers) == 0 {
		r.MaxAdventurers = map[string]int{"E": 1, "D": 2, "C": 4, "B": 6, "A": 8, "S": 10}
	}
	if len(r.MaxFacilities) == 0 {
		r.MaxFacilities = map[string]int{"E": 2, "D": 3, "C": 4, "B": 5, "A": 6, "S": 8}
	}
	if len(r.MaxContracts) == 0 {
		r.MaxContracts = map[string]int{"E": 1, "D": 2, "C": 3, "B": 4, "A": 5, "S": 6}
	}

	d := &t.Dungeons
	if len(d.Params) == 0 {
		d.Params = map[string]RankParams{
			"E": {Rooms: 3, LootBase: 100, CompletionBonus: 500, FailurePenalty: 200, BaseDifficulty: 10, EnemyCount: 2, MiningMult: 0.5},
			"D": {Rooms: 5, LootBase: 200, CompletionBonus: 1000, FailurePenalty: 500, BaseDifficulty: 20, EnemyCount: 3, MiningMult: 0.8},
			"C": {Rooms: 7, LootBase: 400, CompletionBonus: 2000, FailurePenalty: 1000, BaseDifficulty: 35, EnemyCount: 4, MiningMult: 1.0},
			"B": {Rooms: 10, LootBase: 800, CompletionBonus: 4000, FailurePenalty: 2000, BaseDifficulty: 50, EnemyCount: 5, MiningMult: 1.5},
			"A": {Rooms: 12, LootBase: 1500, CompletionBonus: 8000, FailurePenalty: 4000, BaseDifficulty: 70, EnemyCount: 6, MiningMult: 2.0},
			"S": {Rooms: 15, LootBase: 3000, CompletionBonus: 15000, FailurePenalty: 8000, BaseDifficulty: 90, EnemyCount: 8, MiningMult: 3.0},
		}
	}
	if d.BiddingWindowHours <= 0 {
		d.BiddingWindowHours = 24
	}
	if d.ActiveWindowDays <= 0 {
		d.ActiveWindowDays = 7
	}
	if d.DifficultyPerRoom <= 0 {
		d.DifficultyPerRoom = 5
	}
	if d.MiningDurationHours <= 0 {
		d.MiningDurationHours = 4
	}
	if d.BossMiningDurationHours <= 0 {
		d.BossMiningDurationHours = 8
	}
	if d.TimeLimitPerDayMinutes <= 0 {
		d.TimeLimitPerDayMinutes = 480
	}

	c := &t.Combat
	if c.MinSuccessChance <= 0 {
		c.MinSuccessChance = 0.05
	}
	if c.MaxSuccessChance <= 0 || c.MaxSuccessChance > 1.0 {
		c.MaxSuccessChance = 0.95
	}
	if c.VictoryExpPerDifficulty <= 0 {
		c.VictoryExpPerDifficulty = 5
	}
	if c.VictoryGoldPerDifficulty <= 0 {
		c.VictoryGoldPerDifficulty = 3
	}
	if c.DefeatExpPerDifficulty <= 0 {
		c.DefeatExpPerDifficulty = 2
	}
	if c.VictoryDamageMin <= 0 {
		c.VictoryDamageMin = 10
	}
	if c.VictoryDamageMax <= 0 {
		c.VictoryDamageMax = 30
	}
	if c.DefeatDamageMin <= 0 {
		c.DefeatDamageMin = 50
	}
	if c.DefeatDamageMax <= 0 {
		c.DefeatDamageMax = 80
	}

	tk := &t.Timekeeper
	if tk.MiningTickSeconds <= 0 {
		tk.MiningTickSeconds = 60
	}
	if tk.DailyResetTickSeconds <= 0 {
		tk.DailyResetTickSeconds = 3600
	}
	if tk.CollapseTickSeconds <= 0 {
		tk.CollapseTickSeconds = 60
	}
	if tk.CompletionTickSeconds <= 0 {
		tk.CompletionTickSeconds = 300
	}
	if tk.MaxShareDropPct <= 0 {
		tk.MaxShareDropPct = 15
	}
	if tk.MaxShareBoostPct <= 0 {
		tk.MaxShareBoostPct = 25
	}
	if tk.PenaltyImpactScale <= 0 {
		tk.PenaltyImpactScale = 10000
	}
	if tk.BonusImpactScale <= 0 {
		tk.BonusImpactScale = 5000
	}

	bo := &t.Bots
	if bo.BaseBidFraction <= 0 {
		bo.BaseBidFraction = 0.6
	}
	if bo.TreasuryCapFraction <= 0 {
		bo.TreasuryCapFraction = 0.8
	}
	if bo.CompetitionBump <= 0 {
		bo.CompetitionBump = 0.1
	}
	if bo.AggressiveBehaviorMult <= 0 {
		bo.AggressiveBehaviorMult = 1.3
	}
	if bo.DefensiveBehaviorMult <= 0 {
		bo.DefensiveBehaviorMult = 0.7
	}
	if bo.SuccessStep <= 0 {
		bo.SuccessStep = 5
	}
	if bo.FailureStep <= 0 {
		bo.FailureStep = 3
	}
	if bo.BidTickSeconds <= 0 {
		bo.BidTickSeconds = 120
	}
	if bo.DominantThreshold <= 0 {
		bo.DominantThreshold = 80
	}
	if bo.GrowingThreshold <= 0 {
		bo.GrowingThreshold = 60
	}
	if bo.ConsolidatingThreshold <= 0 {
		bo.ConsolidatingThreshold = 40
	}
	if bo.DefensiveThreshold <= 0 {
		bo.DefensiveThreshold = 20
	}
}
