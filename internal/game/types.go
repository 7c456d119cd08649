package game

import "time"

// Rank is the ordinal guild/dungeon tier, E lowest to S highest.
type Rank string

const (
	RankE Rank = "E"
	RankD Rank = "D"
	RankC Rank = "C"
	RankB Rank = "B"
	RankA Rank = "A"
	RankS Rank = "S"
)

type DungeonStatus string

const (
	DungeonDiscovered DungeonStatus = "DISCOVERED"
	DungeonBidding    DungeonStatus = "BIDDING"
	DungeonActive     DungeonStatus = "ACTIVE"
	DungeonCollapsed  DungeonStatus = "COLLAPSED"
	DungeonCompleted  DungeonStatus = "COMPLETED"
)

type ContractStatus string

const (
	ContractPending   ContractStatus = "PENDING"
	ContractAwarded   ContractStatus = "AWARDED"
	ContractRejected  ContractStatus = "REJECTED"
	ContractCancelled ContractStatus = "CANCELLED"
)

type RunStatus string

const (
	RunPreparing RunStatus = "PREPARING"
	RunActive    RunStatus = "ACTIVE"
	RunSuspended RunStatus = "SUSPENDED"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
	RunAbandoned RunStatus = "ABANDONED"
)

type RoomState string

const (
	RoomUnexplored RoomState = "UNEXPLORED"
	RoomCombat     RoomState = "COMBAT"
	RoomCleared    RoomState = "CLEARED"
	RoomMining     RoomState = "MINING"
	RoomExhausted  RoomState = "EXHAUSTED"
)

type PersonalityType string

const (
	PersonalityAggressiveTrader    PersonalityType = "AGGRESSIVE_TRADER"
	PersonalityConservativeBuilder PersonalityType = "CONSERVATIVE_BUILDER"
	PersonalityNetworkingElite     PersonalityType = "NETWORKING_ELITE"
	PersonalityDataAnalyst         PersonalityType = "DATA_ANALYST"
	PersonalityCharismaticLeader   PersonalityType = "CHARISMATIC_LEADER"
	PersonalityOpportunisticShark  PersonalityType = "OPPORTUNISTIC_SHARK"
)

type BehaviorState string

const (
	BehaviorGrowing       BehaviorState = "GROWING"
	BehaviorConsolidating BehaviorState = "CONSOLIDATING"
	BehaviorAggressive    BehaviorState = "AGGRESSIVE"
	BehaviorDefensive     BehaviorState = "DEFENSIVE"
	BehaviorStruggling    BehaviorState = "STRUGGLING"
	BehaviorDominant      BehaviorState = "DOMINANT"
)

type ActivityType string

const (
	ActivityDungeonBid      ActivityType = "DUNGEON_BID"
	ActivityDungeonComplete ActivityType = "DUNGEON_COMPLETE"
	ActivityDungeonFailed   ActivityType = "DUNGEON_FAILED"
	ActivityGuildFounded    ActivityType = "GUILD_FOUNDED"
	ActivityMarketPost      ActivityType = "MARKET_POST"
)

// Session is one player's isolated game world: their guild, the bot
// competitors and every dungeon instance live inside exactly one session.
type Session struct {
	ID        int64
	PublicID  string // uuid handed to the presentation layer
	PlayerID  int64
	Week      int
	Active    bool
	CreatedAt time.Time
}

// GameDay is the in-world day counter stamped on feed activities: seven days
// per advanced week plus the wall-clock day inside the current week.
func (s *Session) GameDay(now time.Time) int {
	elapsed := int(now.Sub(s.CreatedAt).Hours() / 24)
	if elapsed < 0 {
		elapsed = 0
	}
	return (s.Week-1)*7 + elapsed%7 + 1
}

// Guild is the player-controlled company. Gold and the EXP bank are mutated
// by bidding debits, interest credits, penalties and bonuses; rank is always
// derived from SharePrice, never stored.
type Guild struct {
	ID        int64
	SessionID int64
	Name      string

	Gold       int
	SharePrice float64

	// EXP banking: GuildExp accumulates, ExpSpent tracks build purchases.
	// Available EXP is the difference and earns interest.
	GuildExp int
	ExpSpent int

	// Permanent additive percentage bonuses purchased with EXP.
	TrainingEfficiencyPct    int
	DungeonRewardPct         int
	RecruitCostReductionPct  int
	FacilityCostReductionPct int
	ExtraActions             int

	// Interest idempotence guard: the last game week interest was applied.
	LastInterestWeek int

	CreatedAt time.Time
}

// Adventurer carries only the fields the expedition core needs: ownership
// and combat contribution.
type Adventurer struct {
	ID        int64
	GuildID   int64
	Name      string
	Level     int
	Strength  int
	Dexterity int
	Health    int
}

// Loot is the typed gold/exp pair used for room drops and run totals.
type Loot struct {
	Gold int `json:"gold"`
	Exp  int `json:"exp"`
}

func (l *Loot) Add(other Loot) {
	l.Gold += other.Gold
	l.Exp += other.Exp
}

// ResourceYield is the typed mining table for a room: target amounts per
// resource kind, also used for extraction progress.
type ResourceYield struct {
	IronOre         int `json:"iron_ore"`
	PreciousGems    int `json:"precious_gems"`
	MagicalCrystals int `json:"magical_crystals"`
}

// EnemyConfig describes the opposition in one room.
type EnemyConfig struct {
	Kind  string `json:"kind"`
	Level int    `json:"level"`
	Count int    `json:"count"`
	Boss  bool   `json:"boss"`
}

type Dungeon struct {
	ID        int64
	SessionID int64

	Name     string
	Location string
	Rank     Rank

	TotalRooms    int
	BossRoom      int // always the highest room number
	MaxContracts  int
	BaseLootValue int

	CompletionBonus int
	FailurePenalty  int

	BiddingClosesAt time.Time
	ClosesAt        time.Time

	Status           DungeonStatus
	Completed        bool
	CompletedByGuild int64
	DiscoveredAt     time.Time
}

type DungeonRoom struct {
	ID        int64
	DungeonID int64

	Number     int
	Name       string
	BossRoom   bool
	Difficulty int

	Enemies EnemyConfig
	Loot    Loot

	Mining              ResourceYield
	MiningDurationHours int
}

// Contract is one guild's sealed bid for one dungeon, and after the auction
// closes, the access grant. At most one PENDING contract exists per
// (guild, dungeon); resubmission replaces the bid in place.
type Contract struct {
	ID        int64
	DungeonID int64
	GuildID   int64
	BotOwned  bool

	BidAmount   int
	SubmittedAt time.Time

	Status          ContractStatus
	AwardedAt       time.Time
	AccessExpiresAt time.Time
}

type Run struct {
	ID         int64
	DungeonID  int64
	GuildID    int64
	ContractID int64

	CurrentRoom  int // 0 = entrance
	FurthestRoom int
	Status       RunStatus

	Party []int64

	TotalLoot       Loot
	RoomsCleared    int
	EnemiesDefeated int
	MiningOps       int

	BossDefeated bool

	// Real-time budget, minutes per calendar day.
	TodayTimeUsed   int
	TimeLimitPerDay int
	LastResetDate   string // YYYY-MM-DD in UTC; empty before the first reset

	CompletionBonusEarned int
	FailurePenaltyPaid    int

	StartedAt   time.Time
	CompletedAt time.Time
}

// RoomProgress is the per-(run, room) state record, created lazily the first
// time a run touches the room. State only moves forward.
type RoomProgress struct {
	ID     int64
	RunID  int64
	RoomID int64

	State RoomState

	LootCollected  Loot
	MiningPct      float64
	FirstEnteredAt time.Time
	ClearedAt      time.Time
}

// MiningOperation is a background extraction job in a cleared room. Hours
// accumulate from wall-clock time; extraction interpolates toward the target
// yield and never decreases. Completes exactly once.
type MiningOperation struct {
	ID             int64
	RunID          int64
	RoomProgressID int64
	GuildID        int64

	Miners        int
	DurationHours int
	HoursDone     float64
	Pct           float64

	Target    ResourceYield
	Extracted ResourceYield

	Active    bool
	Completed bool

	StartedAt           time.Time
	LastUpdate          time.Time
	EstimatedCompletion time.Time
}

// BotGuild is an AI competitor inside a session. Behavior is always derived
// from PerformanceScore via fixed thresholds, never set independently.
type BotGuild struct {
	ID        int64
	SessionID int64

	Name    string
	CEOName string

	Gold       int
	SharePrice float64
	ExpBank    int

	Personality   PersonalityType
	Behavior      BehaviorState
	RiskTolerance float64 // 0..1

	PerformanceScore     float64 // 0..100
	ConsecutiveSuccesses int
	DungeonsCompleted    int

	CreatedAt time.Time
}

// MarketActivity is a typed record of something a bot guild did, consumed by
// the activity feed. Replaces the old ad hoc JSON payload column.
type MarketActivity struct {
	ID        int64
	SessionID int64
	BotID     int64

	Type    ActivityType
	GameDay int
	Title   string
	Body    string

	GoldDelta     int
	ShareDeltaPct float64
	Successful    bool

	CreatedAt time.Time
}
