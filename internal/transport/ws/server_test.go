package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildcorp.gg/internal/game"
	"guildcorp.gg/internal/protocol"
	"guildcorp.gg/internal/service"
	"guildcorp.gg/internal/store"
	"guildcorp.gg/internal/tuning"
)

func newTestServer(t *testing.T) (*Server, *game.Session, string) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "game.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sess := &game.Session{PublicID: "sess-feed-test", PlayerID: 1, Week: 3, Active: true, CreatedAt: time.Now()}
	require.NoError(t, st.Update(context.Background(), func(tx *store.Tx) error {
		if err := tx.InsertSession(sess); err != nil {
			return err
		}
		if err := tx.InsertGuild(&game.Guild{SessionID: sess.ID, Name: "Oakenshield Ventures", Gold: 5000, SharePrice: 100}); err != nil {
			return err
		}
		return tx.InsertBotGuild(&game.BotGuild{
			SessionID: sess.ID, Name: "Ironhold Consortium", CEOName: "Darius Vexmoor",
			Gold: 5000, SharePrice: 250, Personality: game.PersonalityAggressiveTrader,
			Behavior: game.BehaviorConsolidating, RiskTolerance: 0.8, PerformanceScore: 50,
		})
	}))

	clock := service.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	srv := NewServer(st, tuning.Defaults(), clock, log.New(io.Discard, "", 0))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, sess, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, v))
}

func (s *Server) waitForSubscribers(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.subs) == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandshakeAndFeed(t *testing.T) {
	srv, sess, url := newTestServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.PublicID,
	}))

	var welcome protocol.WelcomeMsg
	readMsg(t, conn, &welcome)
	assert.Equal(t, protocol.TypeWelcome, welcome.Type)
	assert.Equal(t, sess.PublicID, welcome.SessionID)
	assert.Equal(t, 3, welcome.GameWeek)

	srv.waitForSubscribers(t, 1)
	srv.PublishActivity(game.MarketActivity{
		ID:         42,
		SessionID:  sess.ID,
		Type:       game.ActivityDungeonComplete,
		Title:      "Ironhold Consortium clears Sunken Vault",
		GoldDelta:  1300,
		Successful: true,
		CreatedAt:  time.Now(),
	}, "Ironhold Consortium")

	var feed protocol.FeedMsg
	readMsg(t, conn, &feed)
	assert.Equal(t, protocol.TypeFeed, feed.Type)
	assert.Equal(t, "42", feed.ActivityID)
	assert.Equal(t, string(game.ActivityDungeonComplete), feed.Activity)
	assert.Equal(t, "Ironhold Consortium", feed.GuildName)
	assert.Equal(t, 1300, feed.GoldDelta)
	assert.True(t, feed.Successful)
}

func TestTickerBroadcast(t *testing.T) {
	srv, sess, url := newTestServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.PublicID,
	}))
	var welcome protocol.WelcomeMsg
	readMsg(t, conn, &welcome)

	srv.waitForSubscribers(t, 1)
	srv.BroadcastTicker(context.Background())

	var ticker protocol.TickerMsg
	readMsg(t, conn, &ticker)
	assert.Equal(t, protocol.TypeTicker, ticker.Type)
	require.Len(t, ticker.Entries, 2)
	assert.Equal(t, "Oakenshield Ventures", ticker.Entries[0].GuildName)
	assert.False(t, ticker.Entries[0].Bot)
	assert.Equal(t, "Ironhold Consortium", ticker.Entries[1].GuildName)
	assert.True(t, ticker.Entries[1].Bot)
	assert.Equal(t, "B", ticker.Entries[1].Rank, "share price 250 ranks B")
}

func TestHandshakeRejects(t *testing.T) {
	_, sess, url := newTestServer(t)

	t.Run("wrong version", func(t *testing.T) {
		conn := dial(t, url)
		require.NoError(t, conn.WriteJSON(protocol.HelloMsg{
			Type:            protocol.TypeHello,
			ProtocolVersion: "0.9",
			SessionID:       sess.PublicID,
		}))
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := conn.ReadMessage()
		assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
	})

	t.Run("unknown session", func(t *testing.T) {
		conn := dial(t, url)
		require.NoError(t, conn.WriteJSON(protocol.HelloMsg{
			Type:            protocol.TypeHello,
			ProtocolVersion: protocol.Version,
			SessionID:       "no-such-session",
		}))
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := conn.ReadMessage()
		assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
	})

	t.Run("not a hello", func(t *testing.T) {
		conn := dial(t, url)
		require.NoError(t, conn.WriteJSON(protocol.BaseMessage{Type: protocol.TypeFeed}))
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := conn.ReadMessage()
		assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
	})
}
