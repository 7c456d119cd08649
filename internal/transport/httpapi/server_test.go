package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildcorp.gg/internal/game"
	"guildcorp.gg/internal/protocol"
	"guildcorp.gg/internal/service"
	"guildcorp.gg/internal/store"
	"guildcorp.gg/internal/tuning"
)

type api struct {
	t       *testing.T
	base    string
	store   *store.Store
	clock   *service.FakeClock
	bidding *service.Bidding

	sessionID string // public uuid
	guildID   int64
	sessID    int64
}

func newAPI(t *testing.T) *api {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "game.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := tuning.Defaults()
	clock := service.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	logger := log.New(io.Discard, "", 0)

	bidding := service.NewBidding(st, cfg, clock, logger)
	sessions := service.NewSessions(st, cfg, clock, nil, rand.New(rand.NewSource(21)), logger)
	prog := service.NewProgression(st, cfg, clock, rand.New(rand.NewSource(22)), logger)

	srv := NewServer(st, cfg, clock, sessions, bidding, prog, logger)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	a := &api{t: t, base: ts.URL, store: st, clock: clock, bidding: bidding}

	var created struct {
		SessionID string             `json:"session_id"`
		Week      int                `json:"week"`
		Guild     protocol.GuildView `json:"guild"`
	}
	resp := a.do(http.MethodPost, "/api/sessions", map[string]any{
		"player_id":  1,
		"guild_name": "Oakenshield Ventures",
	}, &created)
	require.Equal(t, http.StatusCreated, resp)
	a.sessionID = created.SessionID
	a.guildID = created.Guild.ID

	require.NoError(t, st.View(context.Background(), func(tx *store.Tx) error {
		sess, err := tx.SessionByPublicID(a.sessionID)
		if err != nil {
			return err
		}
		a.sessID = sess.ID
		return nil
	}))
	return a
}

// do issues one JSON request and decodes the response into out when non-nil.
func (a *api) do(method, path string, body, out any) int {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.base+path, rd)
	require.NoError(a.t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (a *api) openDungeonID() int64 {
	a.t.Helper()
	var out int64
	require.NoError(a.t, a.store.View(context.Background(), func(tx *store.Tx) error {
		ds, err := tx.DungeonsBySession(a.sessID, game.DungeonBidding)
		if err != nil {
			return err
		}
		for _, d := range ds {
			if d.Rank == game.RankE {
				out = d.ID
				return nil
			}
		}
		return nil
	}))
	require.NotZero(a.t, out)
	return out
}

func TestCreateAndGetSession(t *testing.T) {
	a := newAPI(t)

	var got struct {
		SessionID string             `json:"session_id"`
		Week      int                `json:"week"`
		Guild     protocol.GuildView `json:"guild"`
	}
	code := a.do(http.MethodGet, "/api/sessions/"+a.sessionID, nil, &got)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, got.Week)
	assert.Equal(t, 5000, got.Guild.Gold)
	assert.Equal(t, "D", got.Guild.Rank)
	assert.Equal(t, "Growth Phase", got.Guild.RankTitle)

	var errMsg protocol.ErrorMsg
	code = a.do(http.MethodGet, "/api/sessions/no-such-session", nil, &errMsg)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, protocol.ErrNotFound, errMsg.Code)
	assert.Equal(t, protocol.TypeError, errMsg.Type)
}

func TestListDungeons(t *testing.T) {
	a := newAPI(t)

	var got struct {
		Dungeons []protocol.DungeonView `json:"dungeons"`
	}
	code := a.do(http.MethodGet, "/api/sessions/"+a.sessionID+"/dungeons?status=BIDDING", nil, &got)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, got.Dungeons, 4, "fresh session seeds four open dungeons")
	for _, d := range got.Dungeons {
		assert.Equal(t, "BIDDING", d.Status)
		assert.NotEmpty(t, d.Name)
	}
}

func TestBidLifecycle(t *testing.T) {
	a := newAPI(t)
	dungeonID := a.openDungeonID()
	path := fmt.Sprintf("/api/dungeons/%d", dungeonID)

	var errMsg protocol.ErrorMsg
	code := a.do(http.MethodPost, path+"/bids", map[string]any{"guild_id": a.guildID, "amount": 0}, &errMsg)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, protocol.ErrBadRequest, errMsg.Code)

	code = a.do(http.MethodPost, path+"/bids", map[string]any{"guild_id": a.guildID, "amount": 999999}, &errMsg)
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, protocol.ErrNoFunds, errMsg.Code)

	var bid protocol.BidResult
	code = a.do(http.MethodPost, path+"/bids", map[string]any{"guild_id": a.guildID, "amount": 300}, &bid)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, bid.Replaced)
	assert.Equal(t, 300, bid.Contract.BidAmount)
	assert.Equal(t, "PENDING", bid.Contract.Status)

	var outcome protocol.AuctionOutcome
	code = a.do(http.MethodPost, path+"/close", nil, &outcome)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, outcome.Awarded, 1)
	assert.False(t, outcome.NoBids)

	// Second close conflicts.
	code = a.do(http.MethodPost, path+"/close", nil, &errMsg)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, protocol.ErrStateConflict, errMsg.Code)
}

func TestRunEnterAndCombat(t *testing.T) {
	a := newAPI(t)
	dungeonID := a.openDungeonID()
	ctx := context.Background()

	_, _, err := a.bidding.SubmitBid(ctx, dungeonID, a.guildID, 300, false)
	require.NoError(t, err)
	res, err := a.bidding.CloseBidding(ctx, dungeonID)
	require.NoError(t, err)
	require.Len(t, res.Awarded, 1)

	var runID int64
	var party []int64
	require.NoError(t, a.store.View(ctx, func(tx *store.Tx) error {
		run, err := tx.RunByContract(res.Awarded[0].ID)
		if err != nil {
			return err
		}
		runID = run.ID
		advs, err := tx.AdventurersByGuild(a.guildID)
		if err != nil {
			return err
		}
		for _, adv := range advs {
			party = append(party, adv.ID)
		}
		return nil
	}))

	runPath := fmt.Sprintf("/api/runs/%d", runID)

	var run protocol.RunView
	code := a.do(http.MethodPost, runPath+"/enter", map[string]any{"party": party}, &run)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ACTIVE", run.Status)
	assert.Equal(t, 1, run.CurrentRoom)

	var report protocol.CombatReport
	code = a.do(http.MethodPost, runPath+"/combat", nil, &report)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, []string{"VICTORY", "DEFEAT"}, report.Result)
	assert.Positive(t, report.DurationMinutes)

	// Fighting a cleared or already contested room out of order conflicts.
	var errMsg protocol.ErrorMsg
	code = a.do(http.MethodPost, runPath+"/advance", map[string]any{"room": 3}, &errMsg)
	assert.Equal(t, http.StatusConflict, code)

	code = a.do(http.MethodGet, runPath, nil, &run)
	require.Equal(t, http.StatusOK, code)
	assert.Positive(t, run.TodayTimeUsed)
}

func TestAdvanceWeekEndpoint(t *testing.T) {
	a := newAPI(t)

	var report protocol.InterestReport
	code := a.do(http.MethodPost, "/api/sessions/"+a.sessionID+"/advance-week", nil, &report)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, report.Week)
	assert.True(t, report.Applied)
	assert.Equal(t, 250, report.GoldInterest)
}

func TestPurchaseBuild(t *testing.T) {
	a := newAPI(t)
	path := fmt.Sprintf("/api/guilds/%d/builds", a.guildID)

	// No EXP banked yet.
	var errMsg protocol.ErrorMsg
	code := a.do(http.MethodPost, path, map[string]any{"kind": "DUNGEON_REWARDS", "cost": 100}, &errMsg)
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, protocol.ErrNoFunds, errMsg.Code)

	require.NoError(t, a.store.Update(context.Background(), func(tx *store.Tx) error {
		g, err := tx.GuildByID(a.guildID)
		if err != nil {
			return err
		}
		g.EarnExp(500)
		return tx.UpdateGuild(g)
	}))

	var guild protocol.GuildView
	code = a.do(http.MethodPost, path, map[string]any{"kind": "DUNGEON_REWARDS", "cost": 100}, &guild)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 400, guild.AvailableExp)

	code = a.do(http.MethodPost, path, map[string]any{"kind": "NO_SUCH_BUILD", "cost": 100}, &errMsg)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, protocol.ErrBadRequest, errMsg.Code)
}
