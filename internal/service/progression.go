package service

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"guildcorp.gg/internal/game"
	"guildcorp.gg/internal/store"
	"guildcorp.gg/internal/tuning"
)

// Progression drives a guild's expedition through a dungeon: entering,
// room-by-room advancement, combat resolution, retreat and mining kickoff.
// Room state only ever moves forward and every operation is one transaction.
type Progression struct {
	store *store.Store
	cfg   tuning.Tuning
	clock Clock
	log   *log.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewProgression(st *store.Store, cfg tuning.Tuning, clock Clock, rng *rand.Rand, logger *log.Logger) *Progression {
	return &Progression{store: st, cfg: cfg, clock: clock, rng: rng, log: logger}
}

// EnterDungeon moves an awarded run into the dungeon with the given party
// and opens room 1 for combat. A SUSPENDED run re-enters at the entrance
// with its loot and room records intact. Bot runs never enter here; they are
// simulated by the background sweep.
func (p *Progression) EnterDungeon(ctx context.Context, runID int64, party []int64) (*game.Run, error) {
	if len(party) == 0 {
		return nil, fmt.Errorf("%w: party must not be empty", game.ErrValidation)
	}
	now := p.clock.Now()

	var out *game.Run
	err := p.store.Update(ctx, func(tx *store.Tx) error {
		run, err := tx.RunByID(runID)
		if err != nil {
			return err
		}
		if run.Status != game.RunPreparing && run.Status != game.RunSuspended {
			return fmt.Errorf("%w: run is %s, expected PREPARING or SUSPENDED", game.ErrState, run.Status)
		}
		if run.TodayTimeUsed >= run.TimeLimitPerDay {
			return fmt.Errorf("%w: daily time budget exhausted", game.ErrState)
		}
		contract, err := tx.ContractByID(run.ContractID)
		if err != nil {
			return err
		}
		if contract.BotOwned {
			return fmt.Errorf("%w: bot expeditions are simulated", game.ErrValidation)
		}
		if !now.Before(contract.AccessExpiresAt) {
			return fmt.Errorf("%w: contract access expired", game.ErrState)
		}

		guild, err := tx.GuildByID(run.GuildID)
		if err != nil {
			return err
		}
		limit := game.MaxCapacityForRank(guild.Rank(p.cfg.Ranks), game.CapacityAdventurers, p.cfg.Ranks)
		if len(party) > limit {
			return fmt.Errorf("%w: party of %d exceeds %d slots", game.ErrCapacity, len(party), limit)
		}
		roster, err := tx.AdventurersByIDs(party)
		if err != nil {
			return err
		}
		for _, a := range roster {
			if a.GuildID != run.GuildID {
				return fmt.Errorf("%w: adventurer %d belongs to another guild", game.ErrValidation, a.ID)
			}
		}

		// First entry opens room 1; a resume keeps whatever the run left
		// behind and restarts from the entrance.
		if run.Status == game.RunPreparing {
			room, err := tx.RoomByNumber(run.DungeonID, 1)
			if err != nil {
				return err
			}
			progress := &game.RoomProgress{
				RunID:          run.ID,
				RoomID:         room.ID,
				State:          game.RoomCombat,
				FirstEnteredAt: now,
			}
			if err := tx.UpsertRoomProgress(progress); err != nil {
				return err
			}
			run.CurrentRoom = 1
			run.FurthestRoom = 1
			run.LastResetDate = now.Format("2006-01-02")
		}

		run.Status = game.RunActive
		run.Party = party
		if err := tx.UpdateRun(run); err != nil {
			return err
		}
		out = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Printf("run %d entered dungeon %d with party of %d", out.ID, out.DungeonID, len(party))
	return out, nil
}

// ResolveCombat fights the current room. Victory clears the room and banks
// loot on the run; clearing the boss room completes the whole expedition.
// Defeat wounds the party and ends the run on the spot.
func (p *Progression) ResolveCombat(ctx context.Context, runID int64) (*game.CombatOutcome, *game.Run, error) {
	now := p.clock.Now()

	var outcome game.CombatOutcome
	var outRun *game.Run
	err := p.store.Update(ctx, func(tx *store.Tx) error {
		run, err := tx.RunByID(runID)
		if err != nil {
			return err
		}
		if run.Status != game.RunActive {
			return fmt.Errorf("%w: run is %s, expected ACTIVE", game.ErrState, run.Status)
		}
		if run.TodayTimeUsed >= run.TimeLimitPerDay {
			run.Status = game.RunSuspended
			if err := tx.UpdateRun(run); err != nil {
				return err
			}
			return fmt.Errorf("%w: daily time budget exhausted", game.ErrState)
		}

		room, err := tx.RoomByNumber(run.DungeonID, run.CurrentRoom)
		if err != nil {
			return err
		}
		progress, err := tx.RoomProgress(run.ID, room.ID)
		if err != nil {
			return err
		}
		if progress == nil || progress.State != game.RoomCombat {
			return fmt.Errorf("%w: room %d is not contested", game.ErrState, run.CurrentRoom)
		}

		roster, err := tx.AdventurersByIDs(run.Party)
		if err != nil {
			return err
		}
		guild, err := tx.GuildByID(run.GuildID)
		if err != nil {
			return err
		}

		p.mu.Lock()
		outcome = game.SimulateCombat(roster, room.Enemies, room.Difficulty, p.rng, p.cfg.Combat)
		p.mu.Unlock()

		run.TodayTimeUsed += outcome.DurationMinutes
		for i := range roster {
			roster[i].Health -= outcome.DamageTaken
			if roster[i].Health < 1 {
				roster[i].Health = 1
			}
			if err := tx.UpdateAdventurer(&roster[i]); err != nil {
				return err
			}
		}

		if outcome.Result == game.CombatVictory {
			loot := game.Loot{
				Gold: room.Loot.Gold * (100 + guild.DungeonRewardPct) / 100,
				Exp:  room.Loot.Exp,
			}
			loot.Gold += outcome.GoldGained
			loot.Exp += outcome.ExpGained

			progress.State = game.RoomCleared
			progress.ClearedAt = now
			progress.LootCollected = loot
			if err := tx.UpsertRoomProgress(progress); err != nil {
				return err
			}

			run.TotalLoot.Add(loot)
			run.RoomsCleared++
			run.EnemiesDefeated += outcome.EnemiesKilled
			if room.BossRoom {
				run.BossDefeated = true
				if err := p.completeRun(tx, run, guild, now); err != nil {
					return err
				}
			}
		} else {
			// A wipe fails the run immediately. The effort exp is still
			// recorded; the room keeps no partial credit.
			run.TotalLoot.Add(game.Loot{Exp: outcome.ExpGained})
			run.Status = game.RunFailed
			run.CompletedAt = now
		}

		if err := tx.UpdateRun(run); err != nil {
			return err
		}
		outRun = run
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &outcome, outRun, nil
}

// AdvanceToRoom steps the expedition to the next room. Only the immediate
// next room is reachable, and only once the current one is cleared.
func (p *Progression) AdvanceToRoom(ctx context.Context, runID int64, number int) (*game.Run, error) {
	now := p.clock.Now()

	var out *game.Run
	err := p.store.Update(ctx, func(tx *store.Tx) error {
		run, err := tx.RunByID(runID)
		if err != nil {
			return err
		}
		if run.Status != game.RunActive {
			return fmt.Errorf("%w: run is %s, expected ACTIVE", game.ErrState, run.Status)
		}
		if number != run.CurrentRoom+1 {
			return fmt.Errorf("%w: can only advance to room %d", game.ErrState, run.CurrentRoom+1)
		}
		d, err := tx.DungeonByID(run.DungeonID)
		if err != nil {
			return err
		}
		if number > d.TotalRooms {
			return fmt.Errorf("%w: dungeon has %d rooms", game.ErrValidation, d.TotalRooms)
		}

		// The entrance has no room record; past it the current room must be
		// in a cleared state before moving on.
		if run.CurrentRoom > 0 {
			current, err := tx.RoomByNumber(run.DungeonID, run.CurrentRoom)
			if err != nil {
				return err
			}
			progress, err := tx.RoomProgress(run.ID, current.ID)
			if err != nil {
				return err
			}
			if progress == nil || progress.State == game.RoomUnexplored || progress.State == game.RoomCombat {
				return fmt.Errorf("%w: room %d not cleared", game.ErrState, run.CurrentRoom)
			}
		}

		next, err := tx.RoomByNumber(run.DungeonID, number)
		if err != nil {
			return err
		}
		nextProgress, err := tx.RoomProgress(run.ID, next.ID)
		if err != nil {
			return err
		}
		if nextProgress == nil {
			nextProgress = &game.RoomProgress{
				RunID:          run.ID,
				RoomID:         next.ID,
				State:          game.RoomCombat,
				FirstEnteredAt: now,
			}
			if err := tx.UpsertRoomProgress(nextProgress); err != nil {
				return err
			}
		}

		run.CurrentRoom = number
		if number > run.FurthestRoom {
			run.FurthestRoom = number
		}
		if err := tx.UpdateRun(run); err != nil {
			return err
		}
		out = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Retreat pulls the party back to the entrance. The run suspends with every
// room record and all banked loot intact and can be re-entered later.
func (p *Progression) Retreat(ctx context.Context, runID int64) (*game.Run, error) {
	var out *game.Run
	err := p.store.Update(ctx, func(tx *store.Tx) error {
		run, err := tx.RunByID(runID)
		if err != nil {
			return err
		}
		if run.Status != game.RunActive {
			return fmt.Errorf("%w: run is %s, expected ACTIVE", game.ErrState, run.Status)
		}

		run.Status = game.RunSuspended
		run.CurrentRoom = 0
		if err := tx.UpdateRun(run); err != nil {
			return err
		}
		out = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Printf("run %d retreated to the entrance", runID)
	return out, nil
}

// Abandon ends the expedition for good. Banked loot is paid out, no penalty
// applies, and the dungeon stays open for its remaining window.
func (p *Progression) Abandon(ctx context.Context, runID int64) (*game.Run, error) {
	now := p.clock.Now()

	var out *game.Run
	err := p.store.Update(ctx, func(tx *store.Tx) error {
		run, err := tx.RunByID(runID)
		if err != nil {
			return err
		}
		if run.Status != game.RunActive && run.Status != game.RunSuspended {
			return fmt.Errorf("%w: run is %s", game.ErrState, run.Status)
		}
		guild, err := tx.GuildByID(run.GuildID)
		if err != nil {
			return err
		}
		guild.Gold += run.TotalLoot.Gold
		guild.EarnExp(run.TotalLoot.Exp)
		if err := tx.UpdateGuild(guild); err != nil {
			return err
		}

		run.Status = game.RunAbandoned
		run.CompletedAt = now
		if err := tx.UpdateRun(run); err != nil {
			return err
		}
		out = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Printf("run %d abandoned with %d gold banked", runID, out.TotalLoot.Gold)
	return out, nil
}

// StartMining opens a background extraction job in a cleared room.
func (p *Progression) StartMining(ctx context.Context, runID int64, roomNumber, miners int) (*game.MiningOperation, error) {
	if miners <= 0 {
		miners = 1
	}
	now := p.clock.Now()

	var out *game.MiningOperation
	err := p.store.Update(ctx, func(tx *store.Tx) error {
		run, err := tx.RunByID(runID)
		if err != nil {
			return err
		}
		if run.Status != game.RunActive {
			return fmt.Errorf("%w: run is %s, expected ACTIVE", game.ErrState, run.Status)
		}
		room, err := tx.RoomByNumber(run.DungeonID, roomNumber)
		if err != nil {
			return err
		}
		progress, err := tx.RoomProgress(run.ID, room.ID)
		if err != nil {
			return err
		}
		if progress == nil || progress.State != game.RoomCleared {
			return fmt.Errorf("%w: room %d is not cleared for mining", game.ErrState, roomNumber)
		}

		progress.State = game.RoomMining
		if err := tx.UpsertRoomProgress(progress); err != nil {
			return err
		}

		op := &game.MiningOperation{
			RunID:               run.ID,
			RoomProgressID:      progress.ID,
			GuildID:             run.GuildID,
			Miners:              miners,
			DurationHours:       room.MiningDurationHours,
			Target:              room.Mining,
			Active:              true,
			StartedAt:           now,
			LastUpdate:          now,
			EstimatedCompletion: now.Add(time.Duration(room.MiningDurationHours) * time.Hour),
		}
		if err := tx.InsertMiningOp(op); err != nil {
			return err
		}

		run.MiningOps++
		if err := tx.UpdateRun(run); err != nil {
			return err
		}
		out = op
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Printf("mining op %d started in run %d room %d (%dh)", out.ID, runID, roomNumber, out.DurationHours)
	return out, nil
}

// completeRun finalizes a boss kill: loot and completion bonus paid out,
// share price boosted. The first finisher claims the dungeon; later runs on
// a multi-contract dungeon still earn their bonus but the completion record
// is never overwritten.
func (p *Progression) completeRun(tx *store.Tx, run *game.Run, guild *game.Guild, now time.Time) error {
	d, err := tx.DungeonByID(run.DungeonID)
	if err != nil {
		return err
	}

	bonus := d.CompletionBonus * (100 + guild.DungeonRewardPct) / 100
	guild.Gold += run.TotalLoot.Gold + bonus
	guild.EarnExp(run.TotalLoot.Exp)

	newPrice, boost := game.ApplyShareBonus(guild.SharePrice, d.CompletionBonus, p.cfg.Timekeeper)
	guild.SharePrice = newPrice
	if err := tx.UpdateGuild(guild); err != nil {
		return err
	}

	run.Status = game.RunCompleted
	run.CompletedAt = now
	run.CompletionBonusEarned = bonus

	if !d.Completed {
		d.Status = game.DungeonCompleted
		d.Completed = true
		d.CompletedByGuild = guild.ID
		if err := tx.UpdateDungeon(d); err != nil {
			return err
		}
	}

	p.log.Printf("run %d completed dungeon %d: bonus=%d share+%.0f%%", run.ID, d.ID, bonus, boost*100)
	return nil
}
