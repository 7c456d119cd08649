package game

import (
	"errors"
	"testing"

	"guildcorp.gg/internal/tuning"
)

func TestApplyInterest(t *testing.T) {
	cfg := tuning.Defaults().Economy

	g := &Guild{Gold: 5000, GuildExp: 1000, ExpSpent: 600}
	res := g.ApplyInterest(1, cfg)
	if !res.Applied {
		t.Fatal("interest not applied")
	}
	if res.GoldInterest != 250 {
		t.Errorf("gold interest = %d, want 250", res.GoldInterest)
	}
	// Only the unspent 400 EXP earns interest.
	if res.ExpInterest != 20 {
		t.Errorf("exp interest = %d, want 20", res.ExpInterest)
	}
	if g.Gold != 5250 || g.GuildExp != 1020 {
		t.Errorf("balances = %d gold / %d exp, want 5250 / 1020", g.Gold, g.GuildExp)
	}
}

func TestApplyInterest_IdempotentPerWeek(t *testing.T) {
	cfg := tuning.Defaults().Economy

	g := &Guild{Gold: 1000}
	first := g.ApplyInterest(3, cfg)
	second := g.ApplyInterest(3, cfg)

	if !first.Applied {
		t.Fatal("first application should apply")
	}
	if second.Applied {
		t.Fatal("second application within the same week must be a no-op")
	}
	if g.Gold != 1050 {
		t.Errorf("gold = %d, want 1050 after a single application", g.Gold)
	}
}

func TestPurchaseBuild(t *testing.T) {
	cfg := tuning.Defaults().Economy

	g := &Guild{GuildExp: 500}
	if err := g.PurchaseBuild(BuildDungeonRewards, 300, cfg); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if g.DungeonRewardPct != 15 {
		t.Errorf("dungeon reward bonus = %d, want 15", g.DungeonRewardPct)
	}
	if g.AvailableExp() != 200 {
		t.Errorf("available exp = %d, want 200", g.AvailableExp())
	}

	// Second purchase stacks additively.
	if err := g.PurchaseBuild(BuildDungeonRewards, 200, cfg); err != nil {
		t.Fatalf("second purchase: %v", err)
	}
	if g.DungeonRewardPct != 30 {
		t.Errorf("stacked bonus = %d, want 30", g.DungeonRewardPct)
	}
}

func TestPurchaseBuild_Errors(t *testing.T) {
	cfg := tuning.Defaults().Economy

	g := &Guild{GuildExp: 100}
	if err := g.PurchaseBuild(BuildTrainingEfficiency, 500, cfg); !errors.Is(err, ErrInsufficient) {
		t.Errorf("short on exp: got %v, want ErrInsufficient", err)
	}
	if err := g.PurchaseBuild(BuildKind("MOON_BASE"), 50, cfg); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown kind: got %v, want ErrValidation", err)
	}
	if g.ExpSpent != 0 {
		t.Errorf("failed purchases must not debit exp, spent = %d", g.ExpSpent)
	}
}

func TestSharePriceAdjustments_Capped(t *testing.T) {
	cfg := tuning.Defaults().Timekeeper

	// Huge penalty clamps at the 15% cap.
	price, drop := ApplySharePenalty(100, 1_000_000, cfg)
	if drop != 0.15 {
		t.Errorf("drop = %v, want 0.15 cap", drop)
	}
	if price != 85 {
		t.Errorf("price = %v, want 85", price)
	}

	// Small penalty applies proportionally.
	_, drop = ApplySharePenalty(100, 500, cfg)
	if drop != 0.05 {
		t.Errorf("drop = %v, want 0.05", drop)
	}

	// Huge bonus clamps at the 25% cap.
	price, boost := ApplyShareBonus(100, 1_000_000, cfg)
	if boost != 0.25 {
		t.Errorf("boost = %v, want 0.25 cap", boost)
	}
	if price != 125 {
		t.Errorf("price = %v, want 125", price)
	}
}
