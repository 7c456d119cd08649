package service

import (
	"context"
	"fmt"
	"log"
	"sort"

	"guildcorp.gg/internal/game"
	"guildcorp.gg/internal/store"
	"guildcorp.gg/internal/tuning"
)

// Bidding runs the sealed-bid contract market: submission while the window
// is open, then a single atomic close that awards access and debits gold.
type Bidding struct {
	store *store.Store
	cfg   tuning.Tuning
	clock Clock
	log   *log.Logger
}

func NewBidding(st *store.Store, cfg tuning.Tuning, clock Clock, logger *log.Logger) *Bidding {
	return &Bidding{store: st, cfg: cfg, clock: clock, log: logger}
}

// AuctionResult is the outcome of closing one dungeon's bidding window.
type AuctionResult struct {
	DungeonID int64
	Awarded   []*game.Contract
	Rejected  []*game.Contract
	NoBids    bool
}

// SubmitBid places or replaces a guild's sealed bid on a dungeon. Gold is
// only checked here; the debit happens at award time. A second submission by
// the same guild replaces the pending bid and resets its priority timestamp.
func (b *Bidding) SubmitBid(ctx context.Context, dungeonID, guildID int64, amount int, botOwned bool) (*game.Contract, bool, error) {
	if amount <= 0 {
		return nil, false, fmt.Errorf("%w: bid amount must be positive", game.ErrValidation)
	}
	now := b.clock.Now()

	var contract *game.Contract
	var replaced bool
	err := b.store.Update(ctx, func(tx *store.Tx) error {
		d, err := tx.DungeonByID(dungeonID)
		if err != nil {
			return err
		}
		if d.Status != game.DungeonBidding {
			return fmt.Errorf("%w: dungeon %d is %s, not open for bids", game.ErrState, d.ID, d.Status)
		}
		if !now.Before(d.BiddingClosesAt) {
			return fmt.Errorf("%w: bidding window closed", game.ErrState)
		}

		rank, gold, err := bidderStanding(tx, guildID, botOwned, b.cfg.Ranks)
		if err != nil {
			return err
		}
		if !rank.AtLeast(d.Rank) {
			return fmt.Errorf("%w: guild rank %s below dungeon rank %s", game.ErrState, rank, d.Rank)
		}
		if gold < amount {
			return fmt.Errorf("%w: bid %d exceeds treasury %d", game.ErrInsufficient, amount, gold)
		}

		held, err := tx.CountAwardedByGuild(guildID, botOwned)
		if err != nil {
			return err
		}
		if held >= game.MaxCapacityForRank(rank, game.CapacityContracts, b.cfg.Ranks) {
			return fmt.Errorf("%w: contract slots full for rank %s", game.ErrCapacity, rank)
		}

		existing, err := tx.PendingContract(dungeonID, guildID, botOwned)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.BidAmount = amount
			existing.SubmittedAt = now
			if err := tx.UpdateContract(existing); err != nil {
				return err
			}
			contract, replaced = existing, true
			return nil
		}

		c := &game.Contract{
			DungeonID:   dungeonID,
			GuildID:     guildID,
			BotOwned:    botOwned,
			BidAmount:   amount,
			SubmittedAt: now,
			Status:      game.ContractPending,
		}
		if err := tx.InsertContract(c); err != nil {
			return err
		}
		contract = c
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return contract, replaced, nil
}

// CloseBidding resolves one dungeon's auction atomically: pending bids are
// ranked by amount descending with earlier submission breaking ties, up to
// max_contracts winners are debited and granted access runs, everyone else
// is rejected. An unclaimed dungeon collapses on the spot.
func (b *Bidding) CloseBidding(ctx context.Context, dungeonID int64) (*AuctionResult, error) {
	now := b.clock.Now()
	res := &AuctionResult{DungeonID: dungeonID}

	err := b.store.Update(ctx, func(tx *store.Tx) error {
		d, err := tx.DungeonByID(dungeonID)
		if err != nil {
			return err
		}
		if d.Status != game.DungeonBidding {
			return fmt.Errorf("%w: dungeon %d already resolved (%s)", game.ErrState, d.ID, d.Status)
		}

		pending, err := tx.ContractsByDungeon(dungeonID, game.ContractPending)
		if err != nil {
			return err
		}
		sort.Slice(pending, func(i, j int) bool {
			if pending[i].BidAmount != pending[j].BidAmount {
				return pending[i].BidAmount > pending[j].BidAmount
			}
			if !pending[i].SubmittedAt.Equal(pending[j].SubmittedAt) {
				return pending[i].SubmittedAt.Before(pending[j].SubmittedAt)
			}
			return pending[i].ID < pending[j].ID
		})

		for _, c := range pending {
			if len(res.Awarded) >= d.MaxContracts {
				res.Rejected = append(res.Rejected, c)
				continue
			}
			ok, err := debitBidder(tx, c)
			if err != nil {
				return err
			}
			if !ok {
				// Treasury shrank since submission; the bid lapses.
				res.Rejected = append(res.Rejected, c)
				continue
			}
			c.Status = game.ContractAwarded
			c.AwardedAt = now
			c.AccessExpiresAt = d.ClosesAt
			if err := tx.UpdateContract(c); err != nil {
				return err
			}
			run := &game.Run{
				DungeonID:       d.ID,
				GuildID:         c.GuildID,
				ContractID:      c.ID,
				Status:          game.RunPreparing,
				TimeLimitPerDay: b.cfg.Dungeons.TimeLimitPerDayMinutes,
				StartedAt:       now,
			}
			if err := tx.InsertRun(run); err != nil {
				return err
			}
			res.Awarded = append(res.Awarded, c)
		}

		for _, c := range res.Rejected {
			c.Status = game.ContractRejected
			if err := tx.UpdateContract(c); err != nil {
				return err
			}
		}

		if len(res.Awarded) > 0 {
			d.Status = game.DungeonActive
		} else {
			res.NoBids = len(pending) == 0
			d.Status = game.DungeonCollapsed
		}
		return tx.UpdateDungeon(d)
	})
	if err != nil {
		return nil, err
	}

	b.log.Printf("auction closed dungeon=%d awarded=%d rejected=%d", dungeonID, len(res.Awarded), len(res.Rejected))
	return res, nil
}

// bidderStanding loads the rank and treasury of either kind of guild.
func bidderStanding(tx *store.Tx, guildID int64, botOwned bool, ranks tuning.Ranks) (game.Rank, int, error) {
	if botOwned {
		bot, err := tx.BotGuildByID(guildID)
		if err != nil {
			return "", 0, err
		}
		return bot.Rank(ranks), bot.Gold, nil
	}
	g, err := tx.GuildByID(guildID)
	if err != nil {
		return "", 0, err
	}
	return g.Rank(ranks), g.Gold, nil
}

// debitBidder withdraws the bid amount at award time. Returns false when the
// treasury can no longer cover the bid.
func debitBidder(tx *store.Tx, c *game.Contract) (bool, error) {
	if c.BotOwned {
		bot, err := tx.BotGuildByID(c.GuildID)
		if err != nil {
			return false, err
		}
		if bot.Gold < c.BidAmount {
			return false, nil
		}
		bot.Gold -= c.BidAmount
		return true, tx.UpdateBotGuild(bot)
	}
	g, err := tx.GuildByID(c.GuildID)
	if err != nil {
		return false, err
	}
	if g.Gold < c.BidAmount {
		return false, nil
	}
	g.Gold -= c.BidAmount
	return true, tx.UpdateGuild(g)
}
