package protocol

import (
	"strconv"
	"time"

	"guildcorp.gg/internal/game"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	ClientName      string `json:"client_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	GameWeek        int    `json:"game_week"`
	ServerTime      string `json:"server_time"` // RFC 3339
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

// FEED (server -> client): one bot market activity, pushed as it happens.
type FeedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	ActivityID string `json:"activity_id"`
	Activity   string `json:"activity"` // game.ActivityType
	GameDay    int    `json:"game_day"`

	GuildName string `json:"guild_name"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`

	GoldDelta     int     `json:"gold_delta,omitempty"`
	ShareDeltaPct float64 `json:"share_delta_pct,omitempty"`
	Successful    bool    `json:"successful"`

	At string `json:"at"` // RFC 3339
}

// TICKER (server -> client): periodic share-price snapshot of every guild in
// the session.
type TickerMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Entries         []TickerEntry `json:"entries"`
}

type TickerEntry struct {
	GuildName  string  `json:"guild_name"`
	Bot        bool    `json:"bot"`
	SharePrice float64 `json:"share_price"`
	Rank       string  `json:"rank"`
}

// HTTP API payloads. Views are flat snapshots of domain entities; result
// types carry the outcome of one operation.

type GuildView struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Gold         int     `json:"gold"`
	SharePrice   float64 `json:"share_price"`
	Rank         string  `json:"rank"`
	RankTitle    string  `json:"rank_title"`
	GuildExp     int     `json:"guild_exp"`
	AvailableExp int     `json:"available_exp"`
}

type DungeonView struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Location        string `json:"location"`
	Rank            string `json:"rank"`
	Status          string `json:"status"`
	TotalRooms      int    `json:"total_rooms"`
	BaseLootValue   int    `json:"base_loot_value"`
	CompletionBonus int    `json:"completion_bonus"`
	FailurePenalty  int    `json:"failure_penalty"`
	BiddingClosesAt string `json:"bidding_closes_at"`
	ClosesAt        string `json:"closes_at"`
}

type ContractView struct {
	ID        int64  `json:"id"`
	DungeonID int64  `json:"dungeon_id"`
	GuildID   int64  `json:"guild_id"`
	BidAmount int    `json:"bid_amount"`
	Status    string `json:"status"`
}

type RunView struct {
	ID           int64     `json:"id"`
	DungeonID    int64     `json:"dungeon_id"`
	Status       string    `json:"status"`
	CurrentRoom  int       `json:"current_room"`
	FurthestRoom int       `json:"furthest_room"`
	TotalLoot    game.Loot `json:"total_loot"`
	RoomsCleared int       `json:"rooms_cleared"`
	BossDefeated bool      `json:"boss_defeated"`

	TodayTimeUsed   int `json:"today_time_used_minutes"`
	TimeLimitPerDay int `json:"time_limit_per_day_minutes"`
}

// BidResult is returned by bid submission: the contract as recorded, plus
// whether an earlier pending bid was replaced.
type BidResult struct {
	Contract ContractView `json:"contract"`
	Replaced bool         `json:"replaced"`
}

// AuctionOutcome is the result of closing bidding on one dungeon.
type AuctionOutcome struct {
	DungeonID int64   `json:"dungeon_id"`
	Awarded   []int64 `json:"awarded_contract_ids"`
	Rejected  []int64 `json:"rejected_contract_ids"`
	NoBids    bool    `json:"no_bids"`
}

// CombatReport is the resolution of one room battle.
type CombatReport struct {
	RoomNumber      int     `json:"room_number"`
	Result          string  `json:"result"`
	SuccessChance   float64 `json:"success_chance"`
	ExpGained       int     `json:"exp_gained"`
	GoldGained      int     `json:"gold_gained"`
	DamageTaken     int     `json:"damage_taken"`
	DurationMinutes int     `json:"duration_minutes"`
	EnemiesKilled   int     `json:"enemies_killed"`
	RunStatus       string  `json:"run_status"`
}

// MiningStatus is a live snapshot of one extraction job.
type MiningStatus struct {
	OperationID int64              `json:"operation_id"`
	RoomNumber  int                `json:"room_number"`
	Pct         float64            `json:"pct"`
	Extracted   game.ResourceYield `json:"extracted"`
	Target      game.ResourceYield `json:"target"`
	Completed   bool               `json:"completed"`
}

// InterestReport summarizes one weekly interest application.
type InterestReport struct {
	Week         int  `json:"week"`
	GoldInterest int  `json:"gold_interest"`
	ExpInterest  int  `json:"exp_interest"`
	Applied      bool `json:"applied"`
}

// FeedFromActivity builds the wire message for one market activity record.
func FeedFromActivity(a game.MarketActivity, guildName string) FeedMsg {
	return FeedMsg{
		Type:            TypeFeed,
		ProtocolVersion: Version,
		ActivityID:      strconv.FormatInt(a.ID, 10),
		Activity:        string(a.Type),
		GameDay:         a.GameDay,
		GuildName:       guildName,
		Title:           a.Title,
		Body:            a.Body,
		GoldDelta:       a.GoldDelta,
		ShareDeltaPct:   a.ShareDeltaPct,
		Successful:      a.Successful,
		At:              a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
