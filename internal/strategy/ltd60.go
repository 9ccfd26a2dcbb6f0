package strategy

// ltd60.go: Lay the Draw at kickoff, optional second lay at the 60th minute.
//
// Assignment only happens for competitions in the filtered-leagues list; the
// second entry additionally needs the late-goal list and a scoreless draw.
// There are no exits: settlement at full time belongs to the finalizer, which
// calls back into SettlePnL.

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sgmartin/ltdbot/internal/domain"
	"github.com/sgmartin/ltdbot/internal/ports"
)

const ltd60Name = "LTD60"

// LTD60Config configures the strategy. Zero values are not defaulted here;
// the config package owns defaults.
type LTD60Config struct {
	MaxEntryOdds       float64
	MaxSecondEntryOdds float64
	KOWindowMinutes    int
	SecondEntryMinute  int
	SecondCancelMinute int
	StakePaper         float64
	StakeLive          float64
	PaperMode          bool
	FilteredLeaguesCSV string
	LateGoalLeaguesCSV string
}

// LTD60 lays the draw near kickoff with a price cap, and again at the 60th
// minute in late-goal leagues when the match is still scoreless.
type LTD60 struct {
	cfg       LTD60Config
	filtered  map[string]bool
	lateGoals map[string]bool
}

// NewLTD60 builds the strategy, loading both league allow-lists. Missing
// list files leave the corresponding set empty.
func NewLTD60(cfg LTD60Config) *LTD60 {
	s := &LTD60{
		cfg:       cfg,
		filtered:  LoadLeagues(cfg.FilteredLeaguesCSV),
		lateGoals: LoadLeagues(cfg.LateGoalLeaguesCSV),
	}
	slog.Info("ltd60: initialised",
		"paper", cfg.PaperMode,
		"filtered_leagues", len(s.filtered),
		"late_goal_leagues", len(s.lateGoals),
	)
	return s
}

// Name implements Strategy.
func (s *LTD60) Name() string { return ltd60Name }

// RequiresGateway implements Strategy. LTD60 always wants live prices, even
// in paper mode.
func (s *LTD60) RequiresGateway() bool { return true }

// AssignIfApplicable implements Strategy. Pure gate: claims the match once
// when its competition is allow-listed and its Match Odds market is known.
func (s *LTD60) AssignIfApplicable(ctx context.Context, store ports.MatchStore, rec *domain.MatchRecord) error {
	if rec.Strategy != "" {
		return nil
	}
	if !s.filtered[NormaliseLeague(rec.Comp)] || rec.MarketID == "" {
		return nil
	}
	if err := store.UpdateCurrent(ctx, rec.EventID, ports.Fields{"strategy": ltd60Name}); err != nil {
		return err
	}
	rec.Strategy = ltd60Name
	slog.Info("ltd60: assigned", "comp", rec.Comp, "event", rec.EventName)
	return nil
}

// SettlePnL implements Strategy.
func (s *LTD60) SettlePnL(rec *domain.MatchRecord, result int) float64 {
	return rec.Order.PnL(result)
}

// OnTick implements Strategy: refresh prices, try entry 1, sync order state,
// run both cancellation checks, then try entry 2. The record is re-read from
// the store between phases so each guard sees the latest persisted state.
func (s *LTD60) OnTick(ctx context.Context, store ports.MatchStore, rec *domain.MatchRecord, session ports.Session) error {
	if rec.Strategy != ltd60Name || rec.MarketID == "" {
		return nil
	}

	rec, err := s.refetch(ctx, store, rec.EventID)
	if err != nil || rec == nil {
		return err
	}

	dLay := s.refreshPrices(ctx, store, rec, session)

	var minsToKO *float64
	if rec.Kickoff != nil {
		m := time.Until(*rec.Kickoff).Minutes()
		minsToKO = &m
	}

	if err := s.maybeEntry1(ctx, store, rec, dLay, minsToKO, session); err != nil {
		return err
	}
	if rec, err = s.refetch(ctx, store, rec.EventID); err != nil || rec == nil {
		return err
	}

	s.syncOrderState(ctx, store, rec, session)
	if rec, err = s.refetch(ctx, store, rec.EventID); err != nil || rec == nil {
		return err
	}

	if err := s.maybeCancelEntry1(ctx, store, rec, session); err != nil {
		return err
	}
	if err := s.maybeCancelEntry2(ctx, store, rec, session); err != nil {
		return err
	}
	if rec, err = s.refetch(ctx, store, rec.EventID); err != nil || rec == nil {
		return err
	}

	return s.maybeEntry2(ctx, store, rec, dLay, session)
}

func (s *LTD60) refetch(ctx context.Context, store ports.MatchStore, eventID string) (*domain.MatchRecord, error) {
	return store.FetchCurrent(ctx, eventID)
}

// refreshPrices pulls the Match Odds lay prices, persists them, and returns
// the current best draw lay. Falls back to the last stored value when the
// book is unavailable this tick.
func (s *LTD60) refreshPrices(ctx context.Context, store ports.MatchStore, rec *domain.MatchRecord, session ports.Session) *float64 {
	if session == nil {
		return rec.DLay
	}
	book, err := session.MarketBook(ctx, rec.MarketID)
	if err != nil {
		slog.Warn("ltd60: market book unavailable", "event", rec.EventID, "err", err)
		return rec.DLay
	}
	if book == nil {
		return rec.DLay
	}

	updates := ports.Fields{}
	if book.Home.BestLay != nil {
		updates["h_lay"] = *book.Home.BestLay
	}
	if book.Away.BestLay != nil {
		updates["a_lay"] = *book.Away.BestLay
	}
	if book.Draw.BestLay != nil {
		updates["d_lay"] = *book.Draw.BestLay
	}
	if len(updates) > 0 {
		if err := store.UpdateCurrent(ctx, rec.EventID, updates); err != nil {
			slog.Warn("ltd60: price update failed", "event", rec.EventID, "err", err)
		}
	}
	if book.Draw.BestLay != nil {
		return book.Draw.BestLay
	}
	return rec.DLay
}

func (s *LTD60) stake() float64 {
	if s.cfg.PaperMode {
		return s.cfg.StakePaper
	}
	return s.cfg.StakeLive
}

// maybeEntry1 places the first lay when the match is inside the KO window
// (or already in play) and a draw price exists. The limit price is capped at
// MaxEntryOdds.
func (s *LTD60) maybeEntry1(ctx context.Context, store ports.MatchStore, rec *domain.MatchRecord, dLay, minsToKO *float64, session ports.Session) error {
	if rec.Order.Entry1 != nil {
		return nil // already in
	}
	if minsToKO != nil && *minsToKO > float64(s.cfg.KOWindowMinutes) {
		return nil
	}
	if dLay == nil || *dLay <= 0 {
		return nil
	}

	stake := s.stake()
	price := *dLay
	if price > s.cfg.MaxEntryOdds {
		price = s.cfg.MaxEntryOdds
	}

	entry, addLiability := s.placeLay(ctx, rec, session, price, stake, s.cfg.MaxEntryOdds)
	if entry == nil {
		return nil
	}

	updates := entryFields("e1", *entry)
	updates["liability"] = rec.Order.Liability + addLiability
	if err := store.UpdateCurrent(ctx, rec.EventID, updates); err != nil {
		return err
	}

	slog.Info("ltd60: entry1 placed",
		"comp", rec.Comp, "event", rec.EventName,
		"price", price, "size", stake,
		"matched", entry.Matched, "status", entry.Status, "bet_id", entry.BetID,
	)
	return nil
}

// maybeEntry2 adds the 60th-minute lay: late-goal league, scoreless draw,
// past the second-entry threshold, and only on top of an existing entry 1.
func (s *LTD60) maybeEntry2(ctx context.Context, store ports.MatchStore, rec *domain.MatchRecord, dLay *float64, session ports.Session) error {
	if rec.Order.Entry1 == nil || rec.Order.Entry2 != nil {
		return nil
	}
	if !s.lateGoals[NormaliseLeague(rec.Comp)] {
		return nil
	}
	if !rec.ScorelessDraw() {
		return nil
	}
	if rec.TimeElapsed == nil || *rec.TimeElapsed <= s.cfg.SecondEntryMinute {
		return nil
	}
	if dLay == nil || *dLay <= 0 {
		return nil
	}

	stake := s.stake()
	price := *dLay
	if price > s.cfg.MaxSecondEntryOdds {
		price = s.cfg.MaxSecondEntryOdds
	}

	entry, addLiability := s.placeLay(ctx, rec, session, price, stake, s.cfg.MaxSecondEntryOdds)
	if entry == nil {
		return nil
	}

	updates := entryFields("e2", *entry)
	updates["liability"] = rec.Order.Liability + addLiability
	if err := store.UpdateCurrent(ctx, rec.EventID, updates); err != nil {
		return err
	}

	slog.Info("ltd60: entry2 placed",
		"comp", rec.Comp, "event", rec.EventName,
		"price", price, "size", stake,
		"matched", entry.Matched, "status", entry.Status, "bet_id", entry.BetID,
	)
	return nil
}

// placeLay executes one lay order in paper or live mode and returns the
// resulting entry plus the liability to add to the running total. A nil
// entry means the attempt could not even be made (no live session).
func (s *LTD60) placeLay(ctx context.Context, rec *domain.MatchRecord, session ports.Session, price, stake, cap float64) (*domain.Entry, float64) {
	now := time.Now().UTC()

	if s.cfg.PaperMode {
		e := &domain.Entry{
			Price:    price,
			Stake:    stake,
			Status:   domain.EntryStatusPaper,
			BetID:    "paper-" + uuid.NewString(),
			PlacedAt: now,
		}
		// A capped order sits at the top of the book unmatched; anything
		// below the cap fills in full.
		if price >= cap {
			e.Matched = 0
			e.Remaining = stake
			return e, 0
		}
		e.Matched = stake
		e.Remaining = 0
		return e, domain.Liability(price, stake)
	}

	if session == nil {
		return nil, 0
	}

	rep, err := session.PlaceLayOrder(ctx, rec.MarketID, price, stake)
	if err != nil {
		slog.Warn("ltd60: order placement failed",
			"comp", rec.Comp, "event", rec.EventName, "price", price, "err", err)
		return &domain.Entry{
			Price:     price,
			Stake:     stake,
			Matched:   0,
			Remaining: stake,
			Status:    domain.EntryStatusErrorPfx + err.Error(),
			PlacedAt:  now,
		}, 0
	}

	return &domain.Entry{
		Price:     price,
		Stake:     stake,
		Matched:   rep.Matched,
		Remaining: stake - rep.Matched,
		Status:    rep.Status,
		BetID:     rep.BetID,
		PlacedAt:  now,
	}, domain.Liability(price, stake)
}

// syncOrderState re-queries the exchange for both live entries so the
// cancellation guards act on fresh matched amounts. Paper entries have
// nothing to sync.
func (s *LTD60) syncOrderState(ctx context.Context, store ports.MatchStore, rec *domain.MatchRecord, session ports.Session) {
	if s.cfg.PaperMode || session == nil {
		return
	}

	for _, slot := range []struct {
		prefix string
		entry  *domain.Entry
	}{
		{"e1", rec.Order.Entry1},
		{"e2", rec.Order.Entry2},
	} {
		e := slot.entry
		if e == nil || e.BetID == "" || !e.Cancellable() {
			continue
		}
		upd, err := session.OrderState(ctx, rec.MarketID, e.BetID)
		if err != nil {
			slog.Warn("ltd60: order state sync failed",
				"event", rec.EventID, "bet_id", e.BetID, "err", err)
			continue
		}
		if upd.Status == "" && upd.Matched == 0 && upd.Remaining == 0 {
			continue // exchange had nothing for this bet
		}
		if upd.Matched == e.Matched && upd.Remaining == e.Remaining && (upd.Status == "" || upd.Status == e.Status) {
			continue
		}
		updates := ports.Fields{
			slot.prefix + "_matched":   upd.Matched,
			slot.prefix + "_remaining": upd.Remaining,
		}
		if upd.Status != "" {
			updates[slot.prefix+"_status"] = upd.Status
		}
		if err := store.UpdateCurrent(ctx, rec.EventID, updates); err != nil {
			slog.Warn("ltd60: order state persist failed", "event", rec.EventID, "err", err)
		}
	}
}

// maybeCancelEntry1 pulls an unmatched capped first entry once the match
// reaches the second-entry minute. Any matched amount vetoes the cancel.
func (s *LTD60) maybeCancelEntry1(ctx context.Context, store ports.MatchStore, rec *domain.MatchRecord, session ports.Session) error {
	return s.cancelEntry(ctx, store, rec, session, "e1", rec.Order.Entry1,
		s.cfg.MaxEntryOdds, s.cfg.SecondEntryMinute)
}

// maybeCancelEntry2 mirrors entry-1 cancellation keyed to the second cap and
// the later threshold.
func (s *LTD60) maybeCancelEntry2(ctx context.Context, store ports.MatchStore, rec *domain.MatchRecord, session ports.Session) error {
	return s.cancelEntry(ctx, store, rec, session, "e2", rec.Order.Entry2,
		s.cfg.MaxSecondEntryOdds, s.cfg.SecondCancelMinute)
}

func (s *LTD60) cancelEntry(ctx context.Context, store ports.MatchStore, rec *domain.MatchRecord, session ports.Session, prefix string, e *domain.Entry, cap float64, minute int) error {
	if e == nil || !e.Cancellable() {
		return nil
	}
	// Only ever cancel an order that sat at the cap; a fill at a better
	// price is left to work.
	if e.Price != cap {
		return nil
	}
	if e.Matched > 0 {
		return nil
	}
	if rec.TimeElapsed == nil || *rec.TimeElapsed < minute {
		return nil
	}

	reason := "UNMATCHED_BY_" + strconv.Itoa(minute) + "MIN"

	if !s.cfg.PaperMode {
		if e.BetID == "" {
			return nil
		}
		if session == nil {
			return nil
		}
		if err := session.CancelOrder(ctx, rec.MarketID, e.BetID); err != nil {
			slog.Warn("ltd60: cancel failed",
				"comp", rec.Comp, "event", rec.EventName, "bet_id", e.BetID, "err", err)
			return store.UpdateCurrent(ctx, rec.EventID, ports.Fields{
				prefix + "_status": "CANCEL_ERR_" + reason + ":" + err.Error(),
			})
		}
	}

	if err := store.UpdateCurrent(ctx, rec.EventID, ports.Fields{
		prefix + "_status":    domain.EntryStatusCancelled + "_" + reason,
		prefix + "_remaining": 0.0,
	}); err != nil {
		return err
	}

	slog.Info("ltd60: entry cancelled",
		"comp", rec.Comp, "event", rec.EventName,
		"entry", prefix, "reason", reason, "bet_id", e.BetID,
	)
	return nil
}

// entryFields flattens an entry into its persisted column set.
func entryFields(prefix string, e domain.Entry) ports.Fields {
	return ports.Fields{
		prefix + "_price":     e.Price,
		prefix + "_stake":     e.Stake,
		prefix + "_matched":   e.Matched,
		prefix + "_remaining": e.Remaining,
		prefix + "_status":    e.Status,
		prefix + "_bet_id":    e.BetID,
		prefix + "_placed_at": e.PlacedAt,
	}
}
