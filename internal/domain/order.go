package domain

import (
	"strings"
	"time"
)

// Entry statuses. Live entries carry the exchange's report verbatim
// (e.g. SUCCESS, EXECUTION_COMPLETE); the constants below are the locally
// assigned ones.
const (
	EntryStatusPaper     = "PAPER_EXECUTED"
	EntryStatusCancelled = "CANCELLED"
	EntryStatusErrorPfx  = "ERROR:"
)

// Entry is one lay order placed against the draw. Price is the capped limit
// price actually submitted, never the raw book price.
type Entry struct {
	Price     float64
	Stake     float64
	Matched   float64
	Remaining float64
	Status    string
	BetID     string
	PlacedAt  time.Time
}

// Cancellable reports whether the entry's status still allows a cancel.
func (e *Entry) Cancellable() bool {
	s := strings.ToUpper(e.Status)
	return !strings.Contains(s, "CANCEL") && !strings.Contains(s, "EXECUTION_COMPLETE")
}

// Liability is the potential loss on a lay at the given price and size.
func Liability(price, size float64) float64 {
	l := (price - 1.0) * size
	if l < 0 {
		return 0
	}
	return l
}

// OrderState is the strategy-owned order lifecycle of a match. Entry2 can
// only exist once Entry1 does, which keeps the two-entry accounting honest
// without flag fields.
type OrderState struct {
	Entry1    *Entry
	Entry2    *Entry
	Liability float64
}

// EntriesPlaced counts how many entries have been attempted (0, 1 or 2).
func (o OrderState) EntriesPlaced() int {
	switch {
	case o.Entry2 != nil:
		return 2
	case o.Entry1 != nil:
		return 1
	default:
		return 0
	}
}

// PnL settles the order state for a known result. A decisive result returns
// the matched stake of every entry; a draw loses each entry's lay liability
// on its matched portion. Entries that never matched contribute nothing.
func (o OrderState) PnL(result int) float64 {
	var pnl float64
	for _, e := range []*Entry{o.Entry1, o.Entry2} {
		if e == nil || e.Matched <= 0 {
			continue
		}
		if result == ResultDecisive {
			pnl += e.Matched
		} else {
			pnl -= (e.Price - 1.0) * e.Matched
		}
	}
	return pnl
}
