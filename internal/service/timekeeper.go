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

// Timekeeper is the background processor: mining progress, daily time-budget
// resets, auction closes, dungeon collapse and bot expedition sweeps all run
// on its tickers. It is an explicit service with Start/Stop; nothing here is
// a process-wide singleton. Each entity is updated in its own transaction so
// one bad record never stalls a whole sweep.
type Timekeeper struct {
	store   *store.Store
	cfg     tuning.Tuning
	clock   Clock
	bidding *Bidding
	feed    FeedSink
	log     *log.Logger

	mu  sync.Mutex
	rng *rand.Rand

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewTimekeeper(st *store.Store, cfg tuning.Tuning, clock Clock, bidding *Bidding, feed FeedSink, rng *rand.Rand, logger *log.Logger) *Timekeeper {
	return &Timekeeper{store: st, cfg: cfg, clock: clock, bidding: bidding, feed: feed, rng: rng, log: logger}
}

// Start launches the four tick loops. Stop (or ctx cancellation) shuts them
// down; Start must not be called twice.
func (tk *Timekeeper) Start(ctx context.Context) {
	ctx, tk.cancel = context.WithCancel(ctx)

	loops := []struct {
		name     string
		interval time.Duration
		fn       func(context.Context)
	}{
		{"mining", time.Duration(tk.cfg.Timekeeper.MiningTickSeconds) * time.Second, tk.TickMining},
		{"daily-reset", time.Duration(tk.cfg.Timekeeper.DailyResetTickSeconds) * time.Second, tk.TickDailyReset},
		{"collapse", time.Duration(tk.cfg.Timekeeper.CollapseTickSeconds) * time.Second, tk.TickAuctions},
		{"completion", time.Duration(tk.cfg.Timekeeper.CompletionTickSeconds) * time.Second, tk.TickBotRuns},
	}
	for _, l := range loops {
		tk.wg.Add(1)
		go func(name string, interval time.Duration, fn func(context.Context)) {
			defer tk.wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					fn(ctx)
				}
			}
		}(l.name, l.interval, l.fn)
	}
	tk.log.Printf("timekeeper started (%d loops)", len(loops))
}

func (tk *Timekeeper) Stop() {
	tk.once.Do(func() {
		if tk.cancel != nil {
			tk.cancel()
		}
		tk.wg.Wait()
		tk.log.Printf("timekeeper stopped")
	})
}

// TickMining advances every active extraction job by the wall-clock time
// since its last update. Progress and extracted amounts never decrease, and
// an operation completes exactly once.
func (tk *Timekeeper) TickMining(ctx context.Context) {
	now := tk.clock.Now()

	var ops []*game.MiningOperation
	err := tk.store.View(ctx, func(tx *store.Tx) error {
		var err error
		ops, err = tx.ActiveMiningOps()
		return err
	})
	if err != nil {
		tk.log.Printf("mining tick: list: %v", err)
		return
	}

	for _, op := range ops {
		opID := op.ID
		err := tk.store.Update(ctx, func(tx *store.Tx) error {
			op, err := tx.MiningOpByID(opID)
			if err != nil {
				return err
			}
			if !op.Active {
				return nil
			}

			elapsed := now.Sub(op.LastUpdate).Hours()
			if elapsed < 0 {
				elapsed = 0
			}
			op.HoursDone += elapsed
			op.LastUpdate = now

			pct := op.HoursDone / float64(op.DurationHours) * 100
			if pct > op.Pct {
				op.Pct = pct
			}
			if op.Pct >= 100 {
				op.Pct = 100
				op.Extracted = op.Target
				op.Active = false
				op.Completed = true
			} else {
				op.Extracted = extractAt(op.Target, op.Pct, op.Extracted)
			}
			if err := tx.UpdateMiningOp(op); err != nil {
				return err
			}

			if op.Completed {
				return tk.exhaustRoom(tx, op)
			}
			return nil
		})
		if err != nil {
			tk.log.Printf("mining tick: op %d: %v", opID, err)
		}
	}
}

// extractAt interpolates toward the target at pct, never dropping below what
// is already out of the ground.
func extractAt(target game.ResourceYield, pct float64, prev game.ResourceYield) game.ResourceYield {
	at := func(total, prev int) int {
		n := int(float64(total) * pct / 100)
		if n < prev {
			return prev
		}
		if n > total {
			return total
		}
		return n
	}
	return game.ResourceYield{
		IronOre:         at(target.IronOre, prev.IronOre),
		PreciousGems:    at(target.PreciousGems, prev.PreciousGems),
		MagicalCrystals: at(target.MagicalCrystals, prev.MagicalCrystals),
	}
}

func (tk *Timekeeper) exhaustRoom(tx *store.Tx, op *game.MiningOperation) error {
	run, err := tx.RunByID(op.RunID)
	if err != nil {
		return err
	}
	progress, err := tx.ProgressByRun(run.ID)
	if err != nil {
		return err
	}
	for _, p := range progress {
		if p.ID == op.RoomProgressID && p.State == game.RoomMining {
			p.State = game.RoomExhausted
			p.MiningPct = 100
			return tx.UpsertRoomProgress(p)
		}
	}
	return nil
}

// TickDailyReset zeroes every run's daily time budget the first tick after
// UTC midnight and wakes suspended runs. Re-running within the same day is a
// no-op.
func (tk *Timekeeper) TickDailyReset(ctx context.Context) {
	today := tk.clock.Now().Format("2006-01-02")

	var runs []*game.Run
	err := tk.store.View(ctx, func(tx *store.Tx) error {
		var err error
		runs, err = tx.RunsByStatus(game.RunActive, game.RunSuspended)
		return err
	})
	if err != nil {
		tk.log.Printf("daily reset: list: %v", err)
		return
	}

	for _, r := range runs {
		if r.LastResetDate == today {
			continue
		}
		runID := r.ID
		err := tk.store.Update(ctx, func(tx *store.Tx) error {
			run, err := tx.RunByID(runID)
			if err != nil {
				return err
			}
			if run.LastResetDate == today {
				return nil
			}
			run.TodayTimeUsed = 0
			run.LastResetDate = today
			if run.Status == game.RunSuspended {
				run.Status = game.RunActive
			}
			return tx.UpdateRun(run)
		})
		if err != nil {
			tk.log.Printf("daily reset: run %d: %v", runID, err)
		}
	}
}

// TickAuctions closes every bidding window that has elapsed, then collapses
// dungeons past their active window and settles the failure fallout.
func (tk *Timekeeper) TickAuctions(ctx context.Context) {
	now := tk.clock.Now()

	var expired []*game.Dungeon
	err := tk.store.View(ctx, func(tx *store.Tx) error {
		var err error
		expired, err = tx.BiddingExpired(now)
		return err
	})
	if err != nil {
		tk.log.Printf("auction tick: list: %v", err)
		return
	}
	for _, d := range expired {
		if _, err := tk.bidding.CloseBidding(ctx, d.ID); err != nil {
			tk.log.Printf("auction tick: dungeon %d: %v", d.ID, err)
		}
	}

	var overdue []*game.Dungeon
	err = tk.store.View(ctx, func(tx *store.Tx) error {
		var err error
		overdue, err = tx.ActiveExpired(now)
		return err
	})
	if err != nil {
		tk.log.Printf("collapse tick: list: %v", err)
		return
	}
	for _, d := range overdue {
		if err := tk.collapseDungeon(ctx, d.ID, now); err != nil {
			tk.log.Printf("collapse tick: dungeon %d: %v", d.ID, err)
		}
	}
}

// collapseDungeon marks a dungeon collapsed and fails every unfinished run
// on it: the failure penalty is paid, share prices drop proportionally
// (capped), and bot owners take a performance hit.
func (tk *Timekeeper) collapseDungeon(ctx context.Context, dungeonID int64, now time.Time) error {
	var fallout []game.MarketActivity
	var names []string

	err := tk.store.Update(ctx, func(tx *store.Tx) error {
		d, err := tx.DungeonByID(dungeonID)
		if err != nil {
			return err
		}
		if d.Status != game.DungeonActive {
			return nil
		}
		d.Status = game.DungeonCollapsed
		if err := tx.UpdateDungeon(d); err != nil {
			return err
		}
		sess, err := tx.SessionByID(d.SessionID)
		if err != nil {
			return err
		}

		runs, err := tx.RunsByDungeon(d.ID)
		if err != nil {
			return err
		}
		for _, r := range runs {
			if r.Status == game.RunCompleted || r.Status == game.RunFailed || r.Status == game.RunAbandoned {
				continue
			}
			// Reload with the party so the update keeps the roster intact.
			run, err := tx.RunByID(r.ID)
			if err != nil {
				return err
			}
			contract, err := tx.ContractByID(run.ContractID)
			if err != nil {
				return err
			}

			run.Status = game.RunFailed
			run.CompletedAt = now

			if contract.BotOwned {
				bot, err := tx.BotGuildByID(run.GuildID)
				if err != nil {
					return err
				}
				paid := d.FailurePenalty
				if paid > bot.Gold {
					paid = bot.Gold
				}
				bot.Gold -= paid
				run.FailurePenaltyPaid = paid
				newPrice, drop := game.ApplySharePenalty(bot.SharePrice, d.FailurePenalty, tk.cfg.Timekeeper)
				bot.SharePrice = newPrice
				bot.UpdatePerformance(false, tk.cfg.Bots)
				if err := tx.UpdateBotGuild(bot); err != nil {
					return err
				}

				a := game.MarketActivity{
					SessionID:     d.SessionID,
					BotID:         bot.ID,
					Type:          game.ActivityDungeonFailed,
					GameDay:       sess.GameDay(now),
					Title:         bot.Name + " fails to clear " + d.Name,
					Body:          "The " + string(d.Rank) + "-rank dungeon collapsed before the expedition finished.",
					GoldDelta:     -paid,
					ShareDeltaPct: -drop * 100,
					CreatedAt:     now,
				}
				if err := tx.InsertActivity(&a); err != nil {
					return err
				}
				fallout = append(fallout, a)
				names = append(names, bot.Name)
			} else {
				guild, err := tx.GuildByID(run.GuildID)
				if err != nil {
					return err
				}
				paid := d.FailurePenalty
				if paid > guild.Gold {
					paid = guild.Gold
				}
				guild.Gold -= paid
				run.FailurePenaltyPaid = paid
				newPrice, _ := game.ApplySharePenalty(guild.SharePrice, d.FailurePenalty, tk.cfg.Timekeeper)
				guild.SharePrice = newPrice
				if err := tx.UpdateGuild(guild); err != nil {
					return err
				}
			}

			if err := tx.UpdateRun(run); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if tk.feed != nil {
		for i, a := range fallout {
			tk.feed.PublishActivity(a, names[i])
		}
	}
	return nil
}

// TickBotRuns simulates bot expeditions. A bot run resolves in a single
// sweep pass: success pays loot and the completion bonus and lifts the share
// price, failure pays the penalty early instead of waiting for collapse.
func (tk *Timekeeper) TickBotRuns(ctx context.Context) {
	now := tk.clock.Now()

	var runs []*game.Run
	err := tk.store.View(ctx, func(tx *store.Tx) error {
		var err error
		runs, err = tx.RunsByStatus(game.RunPreparing)
		return err
	})
	if err != nil {
		tk.log.Printf("bot run tick: list: %v", err)
		return
	}

	for _, r := range runs {
		runID := r.ID
		var activity *game.MarketActivity
		var botName string

		err := tk.store.Update(ctx, func(tx *store.Tx) error {
			run, err := tx.RunByID(runID)
			if err != nil {
				return err
			}
			if run.Status != game.RunPreparing {
				return nil
			}
			contract, err := tx.ContractByID(run.ContractID)
			if err != nil {
				return err
			}
			if !contract.BotOwned {
				return nil
			}
			d, err := tx.DungeonByID(run.DungeonID)
			if err != nil {
				return err
			}
			// A dungeon another guild already finished still owes this bot
			// its own expedition; collapsed ones are settled elsewhere.
			if d.Status != game.DungeonActive && d.Status != game.DungeonCompleted {
				return nil
			}
			sess, err := tx.SessionByID(d.SessionID)
			if err != nil {
				return err
			}
			bot, err := tx.BotGuildByID(run.GuildID)
			if err != nil {
				return err
			}

			tk.mu.Lock()
			roll := tk.rng.Float64()
			tk.mu.Unlock()
			chance := 0.4 + bot.RiskTolerance*0.2 + bot.PerformanceScore/500

			run.CompletedAt = now
			if roll < chance {
				loot := d.BaseLootValue * d.TotalRooms
				bot.Gold += loot + d.CompletionBonus
				bot.DungeonsCompleted++
				newPrice, boost := game.ApplyShareBonus(bot.SharePrice, d.CompletionBonus, tk.cfg.Timekeeper)
				bot.SharePrice = newPrice
				bot.UpdatePerformance(true, tk.cfg.Bots)

				run.Status = game.RunCompleted
				run.TotalLoot = game.Loot{Gold: loot}
				run.RoomsCleared = d.TotalRooms
				run.BossDefeated = true
				run.CompletionBonusEarned = d.CompletionBonus

				// Only the first finisher claims the dungeon record.
				if !d.Completed {
					d.Status = game.DungeonCompleted
					d.Completed = true
					d.CompletedByGuild = bot.ID
					if err := tx.UpdateDungeon(d); err != nil {
						return err
					}
				}

				a := game.MarketActivity{
					SessionID:     d.SessionID,
					BotID:         bot.ID,
					Type:          game.ActivityDungeonComplete,
					GameDay:       sess.GameDay(now),
					Title:         bot.Name + " clears " + d.Name,
					Body:          "Full clear of the " + string(d.Rank) + "-rank dungeon, bonus collected.",
					GoldDelta:     loot + d.CompletionBonus,
					ShareDeltaPct: boost * 100,
					Successful:    true,
					CreatedAt:     now,
				}
				if err := tx.InsertActivity(&a); err != nil {
					return err
				}
				activity, botName = &a, bot.Name
			} else {
				paid := d.FailurePenalty
				if paid > bot.Gold {
					paid = bot.Gold
				}
				bot.Gold -= paid
				newPrice, drop := game.ApplySharePenalty(bot.SharePrice, d.FailurePenalty, tk.cfg.Timekeeper)
				bot.SharePrice = newPrice
				bot.UpdatePerformance(false, tk.cfg.Bots)

				run.Status = game.RunFailed
				run.FailurePenaltyPaid = paid

				a := game.MarketActivity{
					SessionID:     d.SessionID,
					BotID:         bot.ID,
					Type:          game.ActivityDungeonFailed,
					GameDay:       sess.GameDay(now),
					Title:         bot.Name + " retreats from " + d.Name,
					Body:          fmt.Sprintf("The expedition broke on room %d.", d.TotalRooms/2),
					GoldDelta:     -paid,
					ShareDeltaPct: -drop * 100,
					CreatedAt:     now,
				}
				if err := tx.InsertActivity(&a); err != nil {
					return err
				}
				activity, botName = &a, bot.Name
			}

			if err := tx.UpdateBotGuild(bot); err != nil {
				return err
			}
			return tx.UpdateRun(run)
		})
		if err != nil {
			tk.log.Printf("bot run tick: run %d: %v", runID, err)
			continue
		}
		if activity != nil && tk.feed != nil {
			tk.feed.PublishActivity(*activity, botName)
		}
	}
}
