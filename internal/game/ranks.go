package game

import "guildcorp.gg/internal/tuning"

var rankOrder = map[Rank]int{
	RankE: 1,
	RankD: 2,
	RankC: 3,
	RankB: 4,
	RankA: 5,
	RankS: 6,
}

// Ordinal returns the rank's position, E=1 .. S=6. Unknown ranks are 0.
func (r Rank) Ordinal() int { return rankOrder[r] }

// AtLeast reports whether r meets or exceeds other. A guild may only bid on
// dungeons whose rank it meets.
func (r Rank) AtLeast(other Rank) bool { return r.Ordinal() >= other.Ordinal() }

// RankForPrice maps a share price onto the rank ladder. The threshold table
// is ordered top-down, so the result is monotonically non-decreasing in
// price.
func RankForPrice(price float64, cfg tuning.Ranks) Rank {
	switch {
	case price >= float64(cfg.PriceFloorS):
		return RankS
	case price >= float64(cfg.PriceFloorA):
		return RankA
	case price >= float64(cfg.PriceFloorB):
		return RankB
	case price >= float64(cfg.PriceFloorC):
		return RankC
	case price >= float64(cfg.PriceFloorD):
		return RankD
	default:
		return RankE
	}
}

// RankDescription is flavor for the presentation layer.
func RankDescription(r Rank) string {
	switch r {
	case RankS:
		return "Market Leader"
	case RankA:
		return "Elite"
	case RankB:
		return "Successful"
	case RankC:
		return "Established"
	case RankD:
		return "Growth Phase"
	default:
		return "Startup Phase"
	}
}

// Rank reports the guild's current tier, always derived from share price.
func (g *Guild) Rank(cfg tuning.Ranks) Rank { return RankForPrice(g.SharePrice, cfg) }

// CapacityCategory selects one of the rank-indexed capacity tables.
type CapacityCategory string

const (
	CapacityAdventurers CapacityCategory = "ADVENTURERS"
	CapacityFacilities  CapacityCategory = "FACILITIES"
	CapacityContracts   CapacityCategory = "CONTRACTS"
)

// MaxCapacityForRank is a total lookup: every rank has an entry in each
// table (tuning defaults guarantee it), and an unknown rank falls back to
// the E row.
func MaxCapacityForRank(r Rank, category CapacityCategory, cfg tuning.Ranks) int {
	var table map[string]int
	switch category {
	case CapacityAdventurers:
		table = cfg.MaxAdventurers
	case CapacityFacilities:
		table = cfg.MaxFacilities
	case CapacityContracts:
		table = cfg.MaxContracts
	default:
		return 0
	}
	if n, ok := table[string(r)]; ok {
		return n
	}
	return table[string(RankE)]
}
