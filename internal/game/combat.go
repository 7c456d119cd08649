package game

import (
	"math/rand"

	"guildcorp.gg/internal/tuning"
)

type CombatResult string

const (
	CombatVictory CombatResult = "VICTORY"
	CombatDefeat  CombatResult = "DEFEAT"
)

// CombatOutcome is the full resolution of one room battle.
type CombatOutcome struct {
	Result          CombatResult
	SuccessChance   float64
	ExpGained       int
	GoldGained      int
	DamageTaken     int
	DurationMinutes int
	EnemiesKilled   int
}

// PartyPower aggregates adventurer contributions. Monotonic: adding a member
// or raising any stat never lowers the total.
func PartyPower(party []Adventurer) int {
	total := 0
	for _, a := range party {
		total += a.Level*10 + a.Strength + a.Dexterity
	}
	return total
}

// SuccessProbability is the clamped power ratio. Pure; clamping keeps both
// outcomes possible at any power gap.
func SuccessProbability(partyPower, enemyPower int, cfg tuning.Combat) float64 {
	if partyPower <= 0 && enemyPower <= 0 {
		return cfg.MinSuccessChance
	}
	p := float64(partyPower) / float64(partyPower+enemyPower)
	if p < cfg.MinSuccessChance {
		p = cfg.MinSuccessChance
	}
	if p > cfg.MaxSuccessChance {
		p = cfg.MaxSuccessChance
	}
	return p
}

// SimulateCombat resolves a battle with a single weighted draw from the
// supplied source. Rewards scale with difficulty; defeat still grants a
// reduced effort reward, never zero and never the full victory amount, and
// draws damage from a higher range.
func SimulateCombat(party []Adventurer, enemies EnemyConfig, difficulty int, rng *rand.Rand, cfg tuning.Combat) CombatOutcome {
	partyPower := PartyPower(party)
	enemyPower := EnemyPower(difficulty)
	chance := SuccessProbability(partyPower, enemyPower, cfg)

	out := CombatOutcome{
		SuccessChance:   chance,
		DurationMinutes: 5 + rng.Intn(11),
	}

	if rng.Float64() < chance {
		out.Result = CombatVictory
		out.ExpGained = difficulty * cfg.VictoryExpPerDifficulty
		out.GoldGained = difficulty * cfg.VictoryGoldPerDifficulty
		out.DamageTaken = cfg.VictoryDamageMin + rng.Intn(cfg.VictoryDamageMax-cfg.VictoryDamageMin+1)
		out.EnemiesKilled = enemies.Count
	} else {
		out.Result = CombatDefeat
		out.ExpGained = difficulty * cfg.DefeatExpPerDifficulty
		out.GoldGained = 0
		out.DamageTaken = cfg.DefeatDamageMin + rng.Intn(cfg.DefeatDamageMax-cfg.DefeatDamageMin+1)
	}
	return out
}
