package game

import (
	"testing"

	"guildcorp.gg/internal/tuning"
)

func TestRankForPrice_Thresholds(t *testing.T) {
	cfg := tuning.Defaults().Ranks

	cases := []struct {
		price float64
		want  Rank
	}{
		{0, RankE},
		{50.9, RankE},
		{51, RankD},
		{100, RankD},
		{101, RankC},
		{200, RankC},
		{201, RankB},
		{400, RankB},
		{401, RankA},
		{799, RankA},
		{800, RankS},
		{12000, RankS},
	}
	for _, tc := range cases {
		if got := RankForPrice(tc.price, cfg); got != tc.want {
			t.Errorf("RankForPrice(%v) = %s, want %s", tc.price, got, tc.want)
		}
	}
}

func TestRankForPrice_Monotonic(t *testing.T) {
	cfg := tuning.Defaults().Ranks

	prev := RankForPrice(0, cfg)
	for price := 1; price <= 1200; price++ {
		cur := RankForPrice(float64(price), cfg)
		if cur.Ordinal() < prev.Ordinal() {
			t.Fatalf("rank dropped from %s to %s at price %d", prev, cur, price)
		}
		prev = cur
	}
}

func TestRankOrdinal_Ordering(t *testing.T) {
	order := []Rank{RankE, RankD, RankC, RankB, RankA, RankS}
	for i := 1; i < len(order); i++ {
		if order[i].Ordinal() <= order[i-1].Ordinal() {
			t.Fatalf("%s should outrank %s", order[i], order[i-1])
		}
	}
	if !RankA.AtLeast(RankC) {
		t.Fatal("A should satisfy a C requirement")
	}
	if RankD.AtLeast(RankB) {
		t.Fatal("D should not satisfy a B requirement")
	}
}

func TestMaxCapacityForRank_Total(t *testing.T) {
	cfg := tuning.Defaults().Ranks

	for _, r := range []Rank{RankE, RankD, RankC, RankB, RankA, RankS} {
		for _, cat := range []CapacityCategory{CapacityAdventurers, CapacityFacilities, CapacityContracts} {
			if n := MaxCapacityForRank(r, cat, cfg); n <= 0 {
				t.Errorf("capacity %s/%s = %d, want positive", r, cat, n)
			}
		}
	}

	if got := MaxCapacityForRank(RankS, CapacityAdventurers, cfg); got != 10 {
		t.Errorf("S-rank adventurer slots = %d, want 10", got)
	}
	if got := MaxCapacityForRank(RankE, CapacityContracts, cfg); got != 1 {
		t.Errorf("E-rank contract slots = %d, want 1", got)
	}
}
