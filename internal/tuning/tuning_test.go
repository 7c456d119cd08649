package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	tn := Defaults()

	if tn.Economy.GoldInterestRatePct != 5 {
		t.Errorf("gold interest = %d, want 5", tn.Economy.GoldInterestRatePct)
	}
	if tn.Ranks.PriceFloorS != 800 || tn.Ranks.PriceFloorD != 51 {
		t.Errorf("rank floors = S:%d D:%d", tn.Ranks.PriceFloorS, tn.Ranks.PriceFloorD)
	}
	if tn.Timekeeper.MiningTickSeconds != 60 {
		t.Errorf("mining tick = %d, want 60", tn.Timekeeper.MiningTickSeconds)
	}
	if tn.Bots.BaseBidFraction != 0.6 || tn.Bots.TreasuryCapFraction != 0.8 {
		t.Errorf("bot fractions = %v / %v", tn.Bots.BaseBidFraction, tn.Bots.TreasuryCapFraction)
	}

	// Every rank has a full parameter row.
	for _, r := range []string{"E", "D", "C", "B", "A", "S"} {
		p, ok := tn.Dungeons.Params[r]
		if !ok {
			t.Fatalf("missing dungeon params for rank %s", r)
		}
		if p.Rooms <= 0 || p.LootBase <= 0 || p.MiningMult <= 0 {
			t.Errorf("rank %s params incomplete: %+v", r, p)
		}
		if tn.Ranks.MaxAdventurers[r] <= 0 || tn.Ranks.MaxContracts[r] <= 0 {
			t.Errorf("rank %s capacity tables incomplete", r)
		}
	}

	s := tn.Dungeons.Params["S"]
	if s.Rooms != 15 || s.CompletionBonus != 15000 {
		t.Errorf("S params = %+v", s)
	}
}

func TestLoad_OverridesAndBackfill(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	yaml := `
economy:
  starting_gold: 9000
timekeeper:
  mining_tick_seconds: 5
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	tn, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tn.Economy.StartingGold != 9000 {
		t.Errorf("starting gold = %d, want override 9000", tn.Economy.StartingGold)
	}
	if tn.Timekeeper.MiningTickSeconds != 5 {
		t.Errorf("mining tick = %d, want override 5", tn.Timekeeper.MiningTickSeconds)
	}
	// Everything the file omits is backfilled with defaults.
	if tn.Economy.GoldInterestRatePct != 5 {
		t.Errorf("interest not backfilled: %d", tn.Economy.GoldInterestRatePct)
	}
	if len(tn.Dungeons.Params) != 6 {
		t.Errorf("dungeon params not backfilled: %d rows", len(tn.Dungeons.Params))
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	tn, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tn.Economy.StartingGold != 5000 {
		t.Errorf("empty path should yield defaults, got starting gold %d", tn.Economy.StartingGold)
	}
}
