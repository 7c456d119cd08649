// Package httpapi is the REST surface of the game server. Handlers decode a
// request, call exactly one service operation and render the result; every
// domain error maps onto a protocol error code and the matching HTTP status.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"guildcorp.gg/internal/game"
	"guildcorp.gg/internal/protocol"
	"guildcorp.gg/internal/service"
	"guildcorp.gg/internal/store"
	"guildcorp.gg/internal/tuning"
)

type Server struct {
	store    *store.Store
	cfg      tuning.Tuning
	clock    service.Clock
	sessions *service.Sessions
	bidding  *service.Bidding
	prog     *service.Progression
	log      *log.Logger
}

func NewServer(st *store.Store, cfg tuning.Tuning, clock service.Clock, sessions *service.Sessions, bidding *service.Bidding, prog *service.Progression, logger *log.Logger) *Server {
	return &Server{store: st, cfg: cfg, clock: clock, sessions: sessions, bidding: bidding, prog: prog, log: logger}
}

// Routes registers every endpoint on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/advance-week", s.handleAdvanceWeek)
	mux.HandleFunc("GET /api/sessions/{id}/dungeons", s.handleListDungeons)
	mux.HandleFunc("GET /api/sessions/{id}/feed", s.handleFeed)

	mux.HandleFunc("GET /api/guilds/{id}", s.handleGetGuild)
	mux.HandleFunc("POST /api/guilds/{id}/builds", s.handlePurchaseBuild)

	mux.HandleFunc("GET /api/dungeons/{id}", s.handleGetDungeon)
	mux.HandleFunc("POST /api/dungeons/{id}/bids", s.handleSubmitBid)
	mux.HandleFunc("POST /api/dungeons/{id}/close", s.handleCloseBidding)

	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("POST /api/runs/{id}/enter", s.handleEnter)
	mux.HandleFunc("POST /api/runs/{id}/combat", s.handleCombat)
	mux.HandleFunc("POST /api/runs/{id}/advance", s.handleAdvance)
	mux.HandleFunc("POST /api/runs/{id}/retreat", s.handleRetreat)
	mux.HandleFunc("POST /api/runs/{id}/abandon", s.handleAbandon)
	mux.HandleFunc("POST /api/runs/{id}/mine", s.handleMine)
	mux.HandleFunc("GET /api/runs/{id}/mining", s.handleMiningStatus)

	return mux
}

func statusForCode(code string) int {
	switch code {
	case protocol.ErrBadRequest, protocol.ErrProtoBadRequest:
		return http.StatusBadRequest
	case protocol.ErrNotFound:
		return http.StatusNotFound
	case protocol.ErrStateConflict, protocol.ErrCapacity:
		return http.StatusConflict
	case protocol.ErrNoFunds:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(rw http.ResponseWriter, err error) {
	code := protocol.CodeForError(err)
	if code == protocol.ErrInternal {
		s.log.Printf("internal error: %v", err)
	}
	writeJSON(rw, statusForCode(code), protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         err.Error(),
	})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(game.ErrValidation, err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Join(game.ErrValidation, errors.New("bad id"))
	}
	return id, nil
}

// sessionFromPath resolves the {id} segment, which is the public uuid handed
// out at session creation.
func (s *Server) sessionFromPath(r *http.Request) (*game.Session, error) {
	var sess *game.Session
	err := s.store.View(r.Context(), func(tx *store.Tx) error {
		var err error
		sess, err = tx.SessionByPublicID(r.PathValue("id"))
		return err
	})
	return sess, err
}

func (s *Server) handleCreateSession(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID  int64  `json:"player_id"`
		GuildName string `json:"guild_name"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(rw, err)
		return
	}
	sess, guild, err := s.sessions.CreateSession(r.Context(), req.PlayerID, req.GuildName)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusCreated, map[string]any{
		"session_id": sess.PublicID,
		"week":       sess.Week,
		"guild":      s.guildView(guild),
	})
}

func (s *Server) handleGetSession(rw http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFromPath(r)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	var guild *game.Guild
	err = s.store.View(r.Context(), func(tx *store.Tx) error {
		var err error
		guild, err = tx.GuildBySession(sess.ID)
		return err
	})
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"session_id": sess.PublicID,
		"week":       sess.Week,
		"active":     sess.Active,
		"guild":      s.guildView(guild),
	})
}

func (s *Server) handleAdvanceWeek(rw http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFromPath(r)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	res, week, err := s.sessions.AdvanceWeek(r.Context(), sess.ID)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.InterestReport{
		Week:         week,
		GoldInterest: res.GoldInterest,
		ExpInterest:  res.ExpInterest,
		Applied:      res.Applied,
	})
}

func (s *Server) handleListDungeons(rw http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFromPath(r)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	var dungeons []*game.Dungeon
	err = s.store.View(r.Context(), func(tx *store.Tx) error {
		var err error
		if status := r.URL.Query().Get("status"); status != "" {
			dungeons, err = tx.DungeonsBySession(sess.ID, game.DungeonStatus(status))
		} else {
			dungeons, err = tx.DungeonsBySession(sess.ID, "")
		}
		return err
	})
	if err != nil {
		s.writeError(rw, err)
		return
	}
	views := make([]protocol.DungeonView, 0, len(dungeons))
	for _, d := range dungeons {
		views = append(views, dungeonView(d))
	}
	writeJSON(rw, http.StatusOK, map[string]any{"dungeons": views})
}

func (s *Server) handleFeed(rw http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFromPath(r)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	var msgs []protocol.FeedMsg
	err = s.store.View(r.Context(), func(tx *store.Tx) error {
		activities, err := tx.RecentActivities(sess.ID, limit)
		if err != nil {
			return err
		}
		for _, a := range activities {
			bot, err := tx.BotGuildByID(a.BotID)
			if err != nil {
				return err
			}
			msgs = append(msgs, protocol.FeedFromActivity(*a, bot.Name))
		}
		return nil
	})
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"feed": msgs})
}

func (s *Server) handleGetGuild(rw http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	var guild *game.Guild
	err = s.store.View(r.Context(), func(tx *store.Tx) error {
		var err error
		guild, err = tx.GuildByID(id)
		return err
	})
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, s.guildView(guild))
}

func (s *Server) handlePurchaseBuild(rw http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	var req struct {
		Kind string `json:"kind"`
		Cost int    `json:"cost"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(rw, err)
		return
	}
	var guild *game.Guild
	err = s.store.Update(r.Context(), func(tx *store.Tx) error {
		var err error
		guild, err = tx.GuildByID(id)
		if err != nil {
			return err
		}
		if err := guild.PurchaseBuild(game.BuildKind(req.Kind), req.Cost, s.cfg.Economy); err != nil {
			return err
		}
		return tx.UpdateGuild(guild)
	})
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, s.guildView(guild))
}

func (s *Server) handleGetDungeon(rw http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	var d *game.Dungeon
	err = s.store.View(r.Context(), func(tx *store.Tx) error {
		var err error
		d, err = tx.DungeonByID(id)
		return err
	})
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, dungeonView(d))
}

func (s *Server) handleSubmitBid(rw http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	var req struct {
		GuildID int64 `json:"guild_id"`
		Amount  int   `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(rw, err)
		return
	}
	contract, replaced, err := s.bidding.SubmitBid(r.Context(), id, req.GuildID, req.Amount, false)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.BidResult{
		Contract: contractView(contract),
		Replaced: replaced,
	})
}

func (s *Server) handleCloseBidding(rw http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	res, err := s.bidding.CloseBidding(r.Context(), id)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	out := protocol.AuctionOutcome{DungeonID: res.DungeonID, NoBids: res.NoBids}
	for _, c := range res.Awarded {
		out.Awarded = append(out.Awarded, c.ID)
	}
	for _, c := range res.Rejected {
		out.Rejected = append(out.Rejected, c.ID)
	}
	writeJSON(rw, http.StatusOK, out)
}

func (s *Server) handleGetRun(rw http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	var run *game.Run
	err = s.store.View(r.Context(), func(tx *store.Tx) error {
		var err error
		run, err = tx.RunByID(id)
		return err
	})
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, runView(run))
}

func (s *Server) handleEnter(rw http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	var req struct {
		Party []int64 `json:"party"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(rw, err)
		return
	}
	run, err := s.prog.EnterDungeon(r.Context(), id, req.Party)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, runView(run))
}

func (s *Server) handleCombat(rw http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	outcome, run, err := s.prog.ResolveCombat(r.Context(), id)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.CombatReport{
		RoomNumber:      run.CurrentRoom,
		Result:          string(outcome.Result),
		SuccessChance:   outcome.SuccessChance,
		ExpGained:       outcome.ExpGained,
		GoldGained:      outcome.GoldGained,
		DamageTaken:     outcome.DamageTaken,
		DurationMinutes: outcome.DurationMinutes,
		EnemiesKilled:   outcome.EnemiesKilled,
		RunStatus:       string(run.Status),
	})
}

func (s *Server) handleAdvance(rw http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	var req struct {
		Room int `json:"room"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(rw, err)
		return
	}
	run, err := s.prog.AdvanceToRoom(r.Context(), id, req.Room)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, runView(run))
}

func (s *Server) handleRetreat(rw http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	run, err := s.prog.Retreat(r.Context(), id)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, runView(run))
}

func (s *Server) handleAbandon(rw http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	run, err := s.prog.Abandon(r.Context(), id)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, runView(run))
}

func (s *Server) handleMine(rw http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	var req struct {
		Room   int `json:"room"`
		Miners int `json:"miners"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(rw, err)
		return
	}
	op, err := s.prog.StartMining(r.Context(), id, req.Room, req.Miners)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, miningStatus(op, req.Room))
}

func (s *Server) handleMiningStatus(rw http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	var out []protocol.MiningStatus
	err = s.store.View(r.Context(), func(tx *store.Tx) error {
		ops, err := tx.MiningOpsByRun(id)
		if err != nil {
			return err
		}
		for _, op := range ops {
			out = append(out, miningStatus(op, 0))
		}
		return nil
	})
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"operations": out})
}

func (s *Server) guildView(g *game.Guild) protocol.GuildView {
	rank := g.Rank(s.cfg.Ranks)
	return protocol.GuildView{
		ID:           g.ID,
		Name:         g.Name,
		Gold:         g.Gold,
		SharePrice:   g.SharePrice,
		Rank:         string(rank),
		RankTitle:    game.RankDescription(rank),
		GuildExp:     g.GuildExp,
		AvailableExp: g.AvailableExp(),
	}
}

func dungeonView(d *game.Dungeon) protocol.DungeonView {
	return protocol.DungeonView{
		ID:              d.ID,
		Name:            d.Name,
		Location:        d.Location,
		Rank:            string(d.Rank),
		Status:          string(d.Status),
		TotalRooms:      d.TotalRooms,
		BaseLootValue:   d.BaseLootValue,
		CompletionBonus: d.CompletionBonus,
		FailurePenalty:  d.FailurePenalty,
		BiddingClosesAt: d.BiddingClosesAt.UTC().Format(time.RFC3339),
		ClosesAt:        d.ClosesAt.UTC().Format(time.RFC3339),
	}
}

func contractView(c *game.Contract) protocol.ContractView {
	return protocol.ContractView{
		ID:        c.ID,
		DungeonID: c.DungeonID,
		GuildID:   c.GuildID,
		BidAmount: c.BidAmount,
		Status:    string(c.Status),
	}
}

func runView(r *game.Run) protocol.RunView {
	return protocol.RunView{
		ID:              r.ID,
		DungeonID:       r.DungeonID,
		Status:          string(r.Status),
		CurrentRoom:     r.CurrentRoom,
		FurthestRoom:    r.FurthestRoom,
		TotalLoot:       r.TotalLoot,
		RoomsCleared:    r.RoomsCleared,
		BossDefeated:    r.BossDefeated,
		TodayTimeUsed:   r.TodayTimeUsed,
		TimeLimitPerDay: r.TimeLimitPerDay,
	}
}

func miningStatus(op *game.MiningOperation, room int) protocol.MiningStatus {
	return protocol.MiningStatus{
		OperationID: op.ID,
		RoomNumber:  room,
		Pct:         op.Pct,
		Extracted:   op.Extracted,
		Target:      op.Target,
		Completed:   op.Completed,
	}
}
