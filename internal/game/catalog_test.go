package game

import (
	"errors"
	"testing"
	"time"

	"guildcorp.gg/internal/tuning"
)

func TestGenerateDungeon_BossRoomProperty(t *testing.T) {
	cfg := tuning.Defaults().Dungeons
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, rank := range []Rank{RankE, RankD, RankC, RankB, RankA, RankS} {
		d, rooms, err := GenerateDungeon(1, rank, "Ancient Ruins", "Tokyo", 1, now, cfg)
		if err != nil {
			t.Fatalf("generate %s: %v", rank, err)
		}
		if len(rooms) != d.TotalRooms {
			t.Fatalf("%s: %d rooms generated, dungeon says %d", rank, len(rooms), d.TotalRooms)
		}

		bossCount := 0
		for _, r := range rooms {
			if r.BossRoom {
				bossCount++
				if r.Number != d.TotalRooms {
					t.Errorf("%s: boss in room %d, want last room %d", rank, r.Number, d.TotalRooms)
				}
				if !r.Enemies.Boss || r.Enemies.Count != 1 {
					t.Errorf("%s: boss room enemy config %+v", rank, r.Enemies)
				}
			}
		}
		if bossCount != 1 {
			t.Errorf("%s: %d boss rooms, want exactly 1", rank, bossCount)
		}
	}
}

func TestGenerateDungeon_Deterministic(t *testing.T) {
	cfg := tuning.Defaults().Dungeons
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, a, err := GenerateDungeon(1, RankB, "Ruins", "Berlin", 2, now, cfg)
	if err != nil {
		t.Fatal(err)
	}
	_, b, err := GenerateDungeon(1, RankB, "Ruins", "Berlin", 2, now, cfg)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i].Difficulty != b[i].Difficulty || a[i].Mining != b[i].Mining || a[i].Loot != b[i].Loot {
			t.Errorf("room %d differs between identical generations", i+1)
		}
	}
}

func TestGenerateDungeon_Scaling(t *testing.T) {
	cfg := tuning.Defaults().Dungeons
	now := time.Now().UTC()

	_, rooms, err := GenerateDungeon(1, RankC, "Mine", "Lima", 1, now, cfg)
	if err != nil {
		t.Fatal(err)
	}

	// Difficulty and yields rise strictly with room number.
	for i := 1; i < len(rooms); i++ {
		if rooms[i].Difficulty <= rooms[i-1].Difficulty {
			t.Errorf("difficulty not increasing at room %d", i+1)
		}
		if rooms[i].Mining.IronOre <= rooms[i-1].Mining.IronOre {
			t.Errorf("iron yield not increasing at room %d", i+1)
		}
	}

	// C-rank room 1: base 35 + 1*5.
	if rooms[0].Difficulty != 40 {
		t.Errorf("room 1 difficulty = %d, want 40", rooms[0].Difficulty)
	}
}

func TestGenerateDungeon_StartsDiscovered(t *testing.T) {
	cfg := tuning.Defaults().Dungeons
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	d, _, err := GenerateDungeon(1, RankE, "Cave", "Oslo", 1, now, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != DungeonDiscovered {
		t.Errorf("status = %s, want DISCOVERED", d.Status)
	}
	if !d.BiddingClosesAt.IsZero() || !d.ClosesAt.IsZero() {
		t.Errorf("windows stamped before the bidding announcement: %v / %v", d.BiddingClosesAt, d.ClosesAt)
	}
	if !d.DiscoveredAt.Equal(now) {
		t.Errorf("discovered_at = %v, want %v", d.DiscoveredAt, now)
	}
}

func TestOpenBidding_Windows(t *testing.T) {
	cfg := tuning.Defaults().Dungeons
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	d, _, err := GenerateDungeon(1, RankE, "Cave", "Oslo", 1, now.Add(-time.Hour), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.OpenBidding(now, cfg); err != nil {
		t.Fatal(err)
	}
	if got := d.BiddingClosesAt.Sub(now); got != 24*time.Hour {
		t.Errorf("bidding window = %v, want 24h", got)
	}
	if got := d.ClosesAt.Sub(now); got != 7*24*time.Hour {
		t.Errorf("active window = %v, want 168h", got)
	}
	if d.Status != DungeonBidding {
		t.Errorf("status = %s, want BIDDING", d.Status)
	}

	// Announcing twice is a state conflict.
	if err := d.OpenBidding(now, cfg); !errors.Is(err, ErrState) {
		t.Errorf("second announcement: got %v, want ErrState", err)
	}
}
