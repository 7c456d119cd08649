package game

import (
	"fmt"
	"time"

	"guildcorp.gg/internal/tuning"
)

// GenerateDungeon builds a dungeon instance and its rooms from the
// rank-indexed parameter table. All numeric balance fields are a pure
// function of rank and room number so generation is reproducible; only the
// flavor names vary with the supplied location.
func GenerateDungeon(sessionID int64, rank Rank, name, location string, maxContracts int, now time.Time, cfg tuning.Dungeons) (*Dungeon, []*DungeonRoom, error) {
	params, ok := cfg.Params[string(rank)]
	if !ok {
		return nil, nil, fmt.Errorf("%w: no dungeon params for rank %q", ErrValidation, rank)
	}
	if maxContracts <= 0 {
		maxContracts = 1
	}

	d := &Dungeon{
		SessionID:       sessionID,
		Name:            name,
		Location:        location,
		Rank:            rank,
		TotalRooms:      params.Rooms,
		BossRoom:        params.Rooms,
		MaxContracts:    maxContracts,
		BaseLootValue:   params.LootBase,
		CompletionBonus: params.CompletionBonus,
		FailurePenalty:  params.FailurePenalty,
		Status:          DungeonDiscovered,
		DiscoveredAt:    now,
	}

	rooms := make([]*DungeonRoom, 0, params.Rooms)
	for n := 1; n <= params.Rooms; n++ {
		rooms = append(rooms, generateRoom(d, params, n, cfg))
	}
	return d, rooms, nil
}

// OpenBidding announces a discovered dungeon to the market. Both the
// sealed-bid window and the active window count from the announcement.
func (d *Dungeon) OpenBidding(now time.Time, cfg tuning.Dungeons) error {
	if d.Status != DungeonDiscovered {
		return fmt.Errorf("%w: dungeon is %s, expected DISCOVERED", ErrState, d.Status)
	}
	d.BiddingClosesAt = now.Add(time.Duration(cfg.BiddingWindowHours) * time.Hour)
	d.ClosesAt = now.Add(time.Duration(cfg.ActiveWindowDays) * 24 * time.Hour)
	d.Status = DungeonBidding
	return nil
}

func generateRoom(d *Dungeon, params tuning.RankParams, number int, cfg tuning.Dungeons) *DungeonRoom {
	boss := number == d.BossRoom

	room := &DungeonRoom{
		Number:     number,
		BossRoom:   boss,
		Difficulty: params.BaseDifficulty + number*cfg.DifficultyPerRoom,
		Loot:       Loot{Gold: d.BaseLootValue, Exp: d.BaseLootValue / 2},
		Mining:     miningYield(params, number),
	}

	if boss {
		room.Name = fmt.Sprintf("Boss Chamber - %s Core", d.Name)
		room.Enemies = EnemyConfig{
			Kind:  fmt.Sprintf("%s_rank_boss", d.Rank),
			Level: number * 10,
			Count: 1,
			Boss:  true,
		}
		room.MiningDurationHours = cfg.BossMiningDurationHours
	} else {
		room.Name = fmt.Sprintf("Chamber %d", number)
		room.Enemies = EnemyConfig{
			Kind:  fmt.Sprintf("%s_rank_minion", d.Rank),
			Level: number * 5,
			Count: params.EnemyCount + number/3,
		}
		room.MiningDurationHours = cfg.MiningDurationHours
	}
	return room
}

// miningYield scales linearly with room number and the rank multiplier.
func miningYield(params tuning.RankParams, number int) ResourceYield {
	return ResourceYield{
		IronOre:         int(float64(10*number) * params.MiningMult),
		PreciousGems:    int(float64(2*number) * params.MiningMult),
		MagicalCrystals: int(float64(number) * params.MiningMult),
	}
}

// EnemyPower is the monotonic combat weight of a room's configured
// difficulty.
func EnemyPower(difficulty int) int { return difficulty * 10 }
