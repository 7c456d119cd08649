package service

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"guildcorp.gg/internal/game"
	"guildcorp.gg/internal/store"
	"guildcorp.gg/internal/tuning"
)

// BotMarket is the AI side of the contract market. On its own ticker each
// bot guild surveys the open dungeons of its session and places bids through
// the same bidding engine as the player, so bots obey every rule the player
// does.
type BotMarket struct {
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

func NewBotMarket(st *store.Store, cfg tuning.Tuning, clock Clock, bidding *Bidding, feed FeedSink, rng *rand.Rand, logger *log.Logger) *BotMarket {
	return &BotMarket{store: st, cfg: cfg, clock: clock, bidding: bidding, feed: feed, rng: rng, log: logger}
}

func (m *BotMarket) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(time.Duration(m.cfg.Bots.BidTickSeconds) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.TickBidding(ctx)
			}
		}
	}()
}

func (m *BotMarket) Stop() {
	m.once.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		m.wg.Wait()
	})
}

// TickBidding runs one bidding pass over every active session.
func (m *BotMarket) TickBidding(ctx context.Context) {
	var sessions []*game.Session
	err := m.store.View(ctx, func(tx *store.Tx) error {
		var err error
		sessions, err = tx.ActiveSessions()
		return err
	})
	if err != nil {
		m.log.Printf("bot bidding: sessions: %v", err)
		return
	}
	for _, s := range sessions {
		if n, err := m.RunBidding(ctx, s.ID); err != nil {
			m.log.Printf("bot bidding: session %d: %v", s.ID, err)
		} else if n > 0 {
			m.log.Printf("bot bidding: session %d placed %d bids", s.ID, n)
		}
	}
}

// RunBidding lets every bot of one session evaluate the open dungeons once.
// Returns the number of bids placed.
func (m *BotMarket) RunBidding(ctx context.Context, sessionID int64) (int, error) {
	type plan struct {
		bot       *game.BotGuild
		dungeonID int64
		amount    int
	}

	var plans []plan
	var gameDay int
	err := m.store.View(ctx, func(tx *store.Tx) error {
		sess, err := tx.SessionByID(sessionID)
		if err != nil {
			return err
		}
		gameDay = sess.GameDay(m.clock.Now())
		bots, err := tx.BotGuildsBySession(sessionID)
		if err != nil {
			return err
		}
		open, err := tx.DungeonsBySession(sessionID, game.DungeonBidding)
		if err != nil {
			return err
		}

		for _, bot := range bots {
			for _, d := range open {
				if !bot.Rank(m.cfg.Ranks).AtLeast(d.Rank) {
					continue
				}
				pending, err := tx.PendingContract(d.ID, bot.ID, true)
				if err != nil {
					return err
				}
				if pending != nil {
					continue
				}

				m.mu.Lock()
				roll := m.rng.Float64()
				m.mu.Unlock()
				if roll > 0.35+bot.RiskTolerance*0.3 {
					continue
				}

				competition, err := tx.CountPendingContracts(d.ID)
				if err != nil {
					return err
				}
				value := d.BaseLootValue*d.TotalRooms + d.CompletionBonus
				amount := bot.CalculateBid(value, competition, m.cfg.Bots)
				if amount <= 0 || amount > bot.Gold {
					continue
				}
				plans = append(plans, plan{bot: bot, dungeonID: d.ID, amount: amount})
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	now := m.clock.Now()
	placed := 0
	for _, p := range plans {
		if _, _, err := m.bidding.SubmitBid(ctx, p.dungeonID, p.bot.ID, p.amount, true); err != nil {
			// Capacity and funds can shift between survey and submission.
			m.log.Printf("bot %d bid on dungeon %d: %v", p.bot.ID, p.dungeonID, err)
			continue
		}
		placed++

		a := game.MarketActivity{
			SessionID:  sessionID,
			BotID:      p.bot.ID,
			Type:       game.ActivityDungeonBid,
			GameDay:    gameDay,
			Title:      p.bot.Name + " enters the auction",
			Body:       "A sealed bid has been lodged with the dungeon authority.",
			GoldDelta:  -p.amount,
			Successful: true,
			CreatedAt:  now,
		}
		err := m.store.Update(ctx, func(tx *store.Tx) error { return tx.InsertActivity(&a) })
		if err != nil {
			m.log.Printf("bot %d activity: %v", p.bot.ID, err)
			continue
		}
		if m.feed != nil {
			m.feed.PublishActivity(a, p.bot.Name)
		}
	}
	return placed, nil
}
