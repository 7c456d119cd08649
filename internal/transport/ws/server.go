// Package ws pushes the live market feed to browser clients. One socket per
// client: a HELLO/WELCOME handshake binds the connection to a session, then
// the server streams FEED messages as bot activity happens and periodic
// TICKER snapshots of every guild's share price.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"guildcorp.gg/internal/game"
	"guildcorp.gg/internal/protocol"
	"guildcorp.gg/internal/service"
	"guildcorp.gg/internal/store"
	"guildcorp.gg/internal/tuning"
)

type subscriber struct {
	sessionID int64
	out       chan []byte
}

type Server struct {
	store *store.Store
	cfg   tuning.Tuning
	clock service.Clock
	log   *log.Logger

	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*subscriber]struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewServer(st *store.Store, cfg tuning.Tuning, clock service.Clock, logger *log.Logger) *Server {
	return &Server{
		store: st,
		cfg:   cfg,
		clock: clock,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// Start launches the periodic ticker broadcast. The feed itself is pushed
// eagerly from PublishActivity and needs no loop.
func (s *Server) Start(ctx context.Context, interval time.Duration) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.BroadcastTicker(ctx)
			}
		}
	}()
}

func (s *Server) Stop() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
	})
}

// PublishActivity fans one market event out to every socket watching its
// session. Slow clients drop messages rather than stall the caller.
func (s *Server) PublishActivity(a game.MarketActivity, guildName string) {
	msg := protocol.FeedFromActivity(a, guildName)
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Printf("feed marshal: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		if sub.sessionID != a.SessionID {
			continue
		}
		select {
		case sub.out <- b:
		default:
		}
	}
}

// BroadcastTicker pushes a share-price snapshot to every connected session.
func (s *Server) BroadcastTicker(ctx context.Context) {
	sessions := s.watchedSessions()
	for sessionID := range sessions {
		msg, err := s.tickerFor(ctx, sessionID)
		if err != nil {
			s.log.Printf("ticker: session %d: %v", sessionID, err)
			continue
		}
		b, err := json.Marshal(msg)
		if err != nil {
			s.log.Printf("ticker marshal: %v", err)
			continue
		}
		s.mu.Lock()
		for sub := range s.subs {
			if sub.sessionID != sessionID {
				continue
			}
			select {
			case sub.out <- b:
			default:
			}
		}
		s.mu.Unlock()
	}
}

func (s *Server) watchedSessions() map[int64]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]struct{}, len(s.subs))
	for sub := range s.subs {
		out[sub.sessionID] = struct{}{}
	}
	return out
}

func (s *Server) tickerFor(ctx context.Context, sessionID int64) (*protocol.TickerMsg, error) {
	msg := &protocol.TickerMsg{Type: protocol.TypeTicker, ProtocolVersion: protocol.Version}
	err := s.store.View(ctx, func(tx *store.Tx) error {
		guild, err := tx.GuildBySession(sessionID)
		if err != nil {
			return err
		}
		msg.Entries = append(msg.Entries, protocol.TickerEntry{
			GuildName:  guild.Name,
			SharePrice: guild.SharePrice,
			Rank:       string(guild.Rank(s.cfg.Ranks)),
		})
		bots, err := tx.BotGuildsBySession(sessionID)
		if err != nil {
			return err
		}
		for _, b := range bots {
			msg.Entries = append(msg.Entries, protocol.TickerEntry{
				GuildName:  b.Name,
				Bot:        true,
				SharePrice: b.SharePrice,
				Rank:       string(b.Rank(s.cfg.Ranks)),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sub := s.handshake(r.Context(), conn)
		if sub == nil {
			return
		}

		s.mu.Lock()
		s.subs[sub] = struct{}{}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-sub.out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. The feed socket is push-only after the handshake, so
		// inbound frames only keep the connection alive.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) *subscriber {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		s.reject(conn, "expected HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		s.reject(conn, "bad protocol_version")
		return nil
	}

	var sess *game.Session
	err = s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		sess, err = tx.SessionByPublicID(hello.SessionID)
		return err
	})
	if err != nil {
		s.reject(conn, "unknown session")
		return nil
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.PublicID,
		GameWeek:        sess.Week,
		ServerTime:      s.clock.Now().Format(time.RFC3339),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	return &subscriber{sessionID: sess.ID, out: make(chan []byte, 32)}
}

func (s *Server) reject(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
