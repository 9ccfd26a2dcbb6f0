package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InplayStatus is the live state Betfair reports for a match.
type InplayStatus string

const (
	StatusUnset             InplayStatus = ""
	StatusKickOff           InplayStatus = "KickOff"
	StatusInPlay            InplayStatus = "InPlay"
	StatusSecondHalfKickOff InplayStatus = "SecondHalfKickOff"
	StatusFinished          InplayStatus = "Finished"
	StatusCancelled         InplayStatus = "Cancelled"
	StatusAbandoned         InplayStatus = "Abandoned"
)

// Terminal reports whether the status can never change again.
func (s InplayStatus) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled || s == StatusAbandoned
}

// Started reports whether play has begun (used as the in-play SP fallback signal).
func (s InplayStatus) Started() bool {
	return s == StatusKickOff || s == StatusInPlay || s == StatusSecondHalfKickOff
}

// Result values for a settled match.
const (
	ResultDraw     = 0
	ResultDecisive = 1
)

// Fav values derived from the starting-price snapshot.
const (
	FavEqual = 0
	FavHome  = 1
	FavAway  = 2
)

// Band is a 15-minute interval of match time, named by its upper bound.
// The 90 band is open-ended: everything past minute 75.
type Band int

// Bands in play order. Index with BandIndex.
var Bands = [6]Band{15, 30, 45, 60, 75, 90}

// BandFor maps minutes elapsed to the band the match is currently in.
func BandFor(elapsed int) Band {
	switch {
	case elapsed <= 15:
		return 15
	case elapsed <= 30:
		return 30
	case elapsed <= 45:
		return 45
	case elapsed <= 60:
		return 60
	case elapsed <= 75:
		return 75
	default:
		return 90
	}
}

// BandIndex returns the position of b in Bands.
func BandIndex(b Band) int {
	for i, bb := range Bands {
		if bb == b {
			return i
		}
	}
	return -1
}

// BandScore is the score observed at first entry into a band.
// Both halves are written together, exactly once.
type BandScore struct {
	H *int
	A *int
}

// Set reports whether the band pair has been captured.
func (b BandScore) Set() bool {
	return b.H != nil && b.A != nil
}

// MatchRecord is one row of the current-matches table. Created by discovery,
// mutated every tick, destroyed by archival or deletion.
type MatchRecord struct {
	EventID    string
	EventName  string
	Comp       string
	MarketID   string // Match Odds market; empty until discovery finds it
	Kickoff    *time.Time
	BotVersion string

	// Volatile live state, always overwritten with the latest gateway values.
	InplayStatus InplayStatus
	TimeElapsed  *int
	HScore       *int
	AScore       *int
	HRedCards    *int
	ARedCards    *int

	// Market snapshot, volatile.
	HBack, ABack, DBack *float64
	HLay, ALay, DLay    *float64
	MarketState         string

	// Starting-price snapshot, write-once per field.
	HSP *float64
	ASP *float64
	DSP *float64
	Fav *int

	// Goal timeline: one pair per Bands entry, write-once, backfilled at FT.
	Goals [6]BandScore

	// Outcome, write-once.
	FTScore string
	Result  *int

	// Strategy ownership.
	Strategy string
	PnL      *float64
	Order    OrderState
}

// ParseFTScore parses a "H-A" score string. ok is false when either half
// does not parse to an integer.
func ParseFTScore(s string) (h, a int, ok bool) {
	left, right, found := strings.Cut(s, "-")
	if !found {
		return 0, 0, false
	}
	h, errH := strconv.Atoi(strings.TrimSpace(left))
	a, errA := strconv.Atoi(strings.TrimSpace(right))
	if errH != nil || errA != nil {
		return 0, 0, false
	}
	return h, a, true
}

// FormatFTScore renders a final score as stored in ft_score.
func FormatFTScore(h, a int) string {
	return fmt.Sprintf("%d-%d", h, a)
}

// ComputeResult returns ResultDecisive when home != away, ResultDraw otherwise.
func ComputeResult(h, a int) int {
	if h != a {
		return ResultDecisive
	}
	return ResultDraw
}

// Favourite derives the fav code from effective home/away prices:
// lower price is the favourite, equal prices mean no favourite.
func Favourite(homePrice, awayPrice float64) int {
	switch {
	case homePrice < awayPrice:
		return FavHome
	case awayPrice < homePrice:
		return FavAway
	default:
		return FavEqual
	}
}

// ScorelessDraw reports whether the match is currently 0-0.
func (m *MatchRecord) ScorelessDraw() bool {
	return m.HScore != nil && m.AScore != nil && *m.HScore == 0 && *m.AScore == 0
}

// AgeSinceKickoff returns how long ago the match kicked off, or false if the
// kickoff is unknown or still in the future.
func (m *MatchRecord) AgeSinceKickoff(now time.Time) (time.Duration, bool) {
	if m.Kickoff == nil {
		return 0, false
	}
	age := now.Sub(*m.Kickoff)
	if age < 0 {
		return 0, false
	}
	return age, true
}
