package service

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"guildcorp.gg/internal/game"
	"guildcorp.gg/internal/store"
	"guildcorp.gg/internal/tuning"
)

// Sessions creates and advances game worlds. A new session seeds the player
// guild with a starting roster, six bot competitors and an opening slate of
// dungeons; week advancement pays interest on gold and unspent EXP.
type Sessions struct {
	store *store.Store
	cfg   tuning.Tuning
	clock Clock
	feed  FeedSink
	log   *log.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSessions(st *store.Store, cfg tuning.Tuning, clock Clock, feed FeedSink, rng *rand.Rand, logger *log.Logger) *Sessions {
	return &Sessions{store: st, cfg: cfg, clock: clock, feed: feed, rng: rng, log: logger}
}

type botTemplate struct {
	name        string
	ceo         string
	personality game.PersonalityType
	risk        float64
}

var botTemplates = []botTemplate{
	{"Ironhold Consortium", "Darius Vexmoor", game.PersonalityAggressiveTrader, 0.8},
	{"Silverleaf Syndicate", "Elara Thistlewood", game.PersonalityConservativeBuilder, 0.3},
	{"Gilded Compass Guild", "Marcus Brasshand", game.PersonalityNetworkingElite, 0.5},
	{"Obsidian Ledger", "Yuki Tanakala", game.PersonalityDataAnalyst, 0.4},
	{"Dawnbreak Company", "Seraphina Goldlight", game.PersonalityCharismaticLeader, 0.6},
	{"Maw & Sons", "Grom Deepmaw", game.PersonalityOpportunisticShark, 0.9},
}

var starterNames = []string{"Kael", "Mira", "Thorne", "Isolde", "Bren", "Vex"}

var dungeonNames = []string{
	"Sunken Vault", "Howling Depths", "Emberfall Mine", "Glass Labyrinth",
	"Drowned Cathedral", "Verdant Hollow", "Shattered Spire", "Coldiron Crypt",
}

var dungeonLocations = []string{
	"Northern Reach", "Ashen Plains", "Mistwood", "Old Harbor",
	"Thornvale", "The Scar",
}

// CreateSession provisions a full game world for one player.
func (s *Sessions) CreateSession(ctx context.Context, playerID int64, guildName string) (*game.Session, *game.Guild, error) {
	if guildName == "" {
		return nil, nil, fmt.Errorf("%w: guild name required", game.ErrValidation)
	}
	now := s.clock.Now()

	sess := &game.Session{
		PublicID:  uuid.NewString(),
		PlayerID:  playerID,
		Week:      1,
		Active:    true,
		CreatedAt: now,
	}
	guild := &game.Guild{
		Name:       guildName,
		Gold:       s.cfg.Economy.StartingGold,
		SharePrice: float64(s.cfg.Economy.StartingSharePrice),
		CreatedAt:  now,
	}

	var founded []game.MarketActivity
	var foundedNames []string
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		if err := tx.InsertSession(sess); err != nil {
			return err
		}
		guild.SessionID = sess.ID
		if err := tx.InsertGuild(guild); err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		for i := 0; i < 2; i++ {
			a := &game.Adventurer{
				GuildID:   guild.ID,
				Name:      starterNames[s.rng.Intn(len(starterNames))],
				Level:     1,
				Strength:  8 + s.rng.Intn(5),
				Dexterity: 8 + s.rng.Intn(5),
				Health:    100,
			}
			if err := tx.InsertAdventurer(a); err != nil {
				return err
			}
		}

		for _, t := range botTemplates {
			bot := &game.BotGuild{
				SessionID:        sess.ID,
				Name:             t.name,
				CEOName:          t.ceo,
				Gold:             s.cfg.Economy.StartingGold,
				SharePrice:       float64(s.cfg.Economy.StartingSharePrice),
				Personality:      t.personality,
				Behavior:         game.BehaviorConsolidating,
				RiskTolerance:    t.risk,
				PerformanceScore: 50,
				CreatedAt:        now,
			}
			if err := tx.InsertBotGuild(bot); err != nil {
				return err
			}
			a := game.MarketActivity{
				SessionID:  sess.ID,
				BotID:      bot.ID,
				Type:       game.ActivityGuildFounded,
				GameDay:    sess.GameDay(now),
				Title:      bot.Name + " opens for business",
				Body:       "CEO " + bot.CEOName + " rings the opening bell.",
				Successful: true,
				CreatedAt:  now,
			}
			if err := tx.InsertActivity(&a); err != nil {
				return err
			}
			founded = append(founded, a)
			foundedNames = append(foundedNames, bot.Name)
		}

		for _, rank := range []game.Rank{game.RankE, game.RankE, game.RankD, game.RankC} {
			if err := s.spawnDungeon(tx, sess.ID, rank); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if s.feed != nil {
		for i, a := range founded {
			s.feed.PublishActivity(a, foundedNames[i])
		}
	}
	s.log.Printf("session %s created for player %d", sess.PublicID, playerID)
	return sess, guild, nil
}

// SpawnDungeon adds one fresh dungeon to an existing session.
func (s *Sessions) SpawnDungeon(ctx context.Context, sessionID int64, rank game.Rank) (*game.Dungeon, error) {
	var out *game.Dungeon
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		d, err := s.spawnDungeonLocked(tx, sessionID, rank)
		if err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}

// spawnDungeon requires s.mu held.
func (s *Sessions) spawnDungeon(tx *store.Tx, sessionID int64, rank game.Rank) error {
	_, err := s.spawnDungeonLocked(tx, sessionID, rank)
	return err
}

func (s *Sessions) spawnDungeonLocked(tx *store.Tx, sessionID int64, rank game.Rank) (*game.Dungeon, error) {
	name := dungeonNames[s.rng.Intn(len(dungeonNames))]
	location := dungeonLocations[s.rng.Intn(len(dungeonLocations))]
	maxContracts := 1
	if rank.Ordinal() >= game.RankC.Ordinal() {
		maxContracts = 2
	}

	now := s.clock.Now()
	d, rooms, err := game.GenerateDungeon(sessionID, rank, name, location, maxContracts, now, s.cfg.Dungeons)
	if err != nil {
		return nil, err
	}
	// Discovery and the market announcement happen in the same breath here;
	// the auction windows start counting immediately.
	if err := d.OpenBidding(now, s.cfg.Dungeons); err != nil {
		return nil, err
	}
	if err := tx.InsertDungeon(d, rooms); err != nil {
		return nil, err
	}
	return d, nil
}

// AdvanceWeek moves the session clock one game week and pays interest to the
// player guild and every bot. Applying the same week twice is a no-op for
// the guild thanks to the interest guard.
func (s *Sessions) AdvanceWeek(ctx context.Context, sessionID int64) (*game.InterestResult, int, error) {
	var res game.InterestResult
	var week int
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		sess, err := tx.SessionByID(sessionID)
		if err != nil {
			return err
		}
		sess.Week++
		week = sess.Week
		if err := tx.UpdateSession(sess); err != nil {
			return err
		}

		guild, err := tx.GuildBySession(sessionID)
		if err != nil {
			return err
		}
		res = guild.ApplyInterest(sess.Week, s.cfg.Economy)
		if err := tx.UpdateGuild(guild); err != nil {
			return err
		}

		bots, err := tx.BotGuildsBySession(sessionID)
		if err != nil {
			return err
		}
		for _, bot := range bots {
			bot.Gold += bot.Gold * s.cfg.Economy.GoldInterestRatePct / 100
			bot.ExpBank += bot.ExpBank * s.cfg.Economy.ExpInterestRatePct / 100
			if err := tx.UpdateBotGuild(bot); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	s.log.Printf("session %d advanced to week %d (interest: %d gold, %d exp)", sessionID, week, res.GoldInterest, res.ExpInterest)
	return &res, week, nil
}
