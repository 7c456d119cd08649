package service

import (
	"context"
	"io"
	"log"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"guildcorp.gg/internal/game"
	"guildcorp.gg/internal/store"
	"guildcorp.gg/internal/tuning"
)

// env wires every service against one temp database with a fake clock and a
// seeded rng.
type env struct {
	store    *store.Store
	clock    *FakeClock
	cfg      tuning.Tuning
	sessions *Sessions
	bidding  *Bidding
	prog     *Progression
	tk       *Timekeeper
	market   *BotMarket

	sess  *game.Session
	guild *game.Guild
	bots  []*game.BotGuild
	feed  *capturedFeed
}

type capturedFeed struct {
	activities []game.MarketActivity
}

func (f *capturedFeed) PublishActivity(a game.MarketActivity, _ string) {
	f.activities = append(f.activities, a)
}

func newEnv(t *testing.T) *env {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "game.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := tuning.Defaults()
	clock := NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	logger := log.New(io.Discard, "", 0)
	feed := &capturedFeed{}

	e := &env{store: st, clock: clock, cfg: cfg, feed: feed}
	e.bidding = NewBidding(st, cfg, clock, logger)
	e.sessions = NewSessions(st, cfg, clock, feed, rand.New(rand.NewSource(11)), logger)
	e.prog = NewProgression(st, cfg, clock, rand.New(rand.NewSource(12)), logger)
	e.tk = NewTimekeeper(st, cfg, clock, e.bidding, feed, rand.New(rand.NewSource(13)), logger)
	e.market = NewBotMarket(st, cfg, clock, e.bidding, feed, rand.New(rand.NewSource(14)), logger)

	e.sess, e.guild, err = e.sessions.CreateSession(context.Background(), 1, "Oakenshield Ventures")
	require.NoError(t, err)

	require.NoError(t, st.View(context.Background(), func(tx *store.Tx) error {
		e.bots, err = tx.BotGuildsBySession(e.sess.ID)
		return err
	}))
	require.Len(t, e.bots, 6)
	return e
}

// openDungeon returns a session dungeon in BIDDING at or below the given
// rank so the player guild can bid on it.
func (e *env) openDungeon(t *testing.T, maxRank game.Rank) *game.Dungeon {
	t.Helper()
	var out *game.Dungeon
	require.NoError(t, e.store.View(context.Background(), func(tx *store.Tx) error {
		ds, err := tx.DungeonsBySession(e.sess.ID, game.DungeonBidding)
		if err != nil {
			return err
		}
		for _, d := range ds {
			if maxRank.AtLeast(d.Rank) {
				out = d
				return nil
			}
		}
		return nil
	}))
	require.NotNil(t, out, "no open dungeon at or below rank %s", maxRank)
	return out
}

func (e *env) reloadGuild(t *testing.T) *game.Guild {
	t.Helper()
	var g *game.Guild
	require.NoError(t, e.store.View(context.Background(), func(tx *store.Tx) error {
		var err error
		g, err = tx.GuildBySession(e.sess.ID)
		return err
	}))
	return g
}

func (e *env) reloadDungeon(t *testing.T, id int64) *game.Dungeon {
	t.Helper()
	var d *game.Dungeon
	require.NoError(t, e.store.View(context.Background(), func(tx *store.Tx) error {
		var err error
		d, err = tx.DungeonByID(id)
		return err
	}))
	return d
}

func (e *env) reloadBot(t *testing.T, id int64) *game.BotGuild {
	t.Helper()
	var b *game.BotGuild
	require.NoError(t, e.store.View(context.Background(), func(tx *store.Tx) error {
		var err error
		b, err = tx.BotGuildByID(id)
		return err
	}))
	return b
}

func (e *env) reloadRun(t *testing.T, id int64) *game.Run {
	t.Helper()
	var r *game.Run
	require.NoError(t, e.store.View(context.Background(), func(tx *store.Tx) error {
		var err error
		r, err = tx.RunByID(id)
		return err
	}))
	return r
}
