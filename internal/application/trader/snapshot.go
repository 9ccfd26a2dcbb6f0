package trader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sgmartin/ltdbot/internal/domain"
	"github.com/sgmartin/ltdbot/internal/ports"
)

// SnapshotConfig controls the one-time starting-price capture.
type SnapshotConfig struct {
	// CaptureWindow is the pre-kickoff span in which SPs are snapshotted.
	CaptureWindow time.Duration
	// FallbackInplay allows a first in-play capture when the window was missed.
	FallbackInplay bool
}

// SnapshotUpdater pulls gateway data once per tick per match and persists a
// single batched update: volatile score/price state, the write-once SP and
// favourite capture, and the write-once goal-timeline bands.
type SnapshotUpdater struct {
	store ports.MatchStore
	cfg   SnapshotConfig
}

// NewSnapshotUpdater builds the updater.
func NewSnapshotUpdater(store ports.MatchStore, cfg SnapshotConfig) *SnapshotUpdater {
	return &SnapshotUpdater{store: store, cfg: cfg}
}

// Update refreshes one match from the session. A nil session, or any absent
// gateway data, means "no live data this tick", not an error.
func (u *SnapshotUpdater) Update(ctx context.Context, session ports.Session, rec *domain.MatchRecord) error {
	if session == nil {
		return nil
	}

	updates := ports.Fields{}

	live, err := session.LiveScore(ctx, rec.EventID)
	if err != nil {
		slog.Warn("trader: live score unavailable", "event", rec.EventID, "err", err)
		live = nil
	}
	if live != nil {
		// Volatile fields: latest gateway values always win.
		updates["inplay_status"] = live.Status
		updates["time_elapsed"] = live.TimeElapsed
		updates["h_score"] = live.HScore
		updates["a_score"] = live.AScore
		updates["h_red_cards"] = live.HRedCards
		updates["a_red_cards"] = live.ARedCards

		u.applyGoalBands(updates, rec, live)
	}

	if rec.MarketID != "" {
		book, err := session.MarketBook(ctx, rec.MarketID)
		if err != nil {
			slog.Warn("trader: market book unavailable", "event", rec.EventID, "err", err)
			book = nil
		}
		if book != nil {
			updates["h_back"] = book.Home.BestBack
			updates["a_back"] = book.Away.BestBack
			updates["d_back"] = book.Draw.BestBack
			updates["h_lay"] = book.Home.BestLay
			updates["a_lay"] = book.Away.BestLay
			updates["d_lay"] = book.Draw.BestLay
			updates["market_state"] = book.MarketState

			u.applySPCapture(updates, rec, live, book)
		}
	}

	if len(updates) == 0 {
		return nil
	}
	if err := u.store.UpdateCurrent(ctx, rec.EventID, updates); err != nil {
		return fmt.Errorf("trader.SnapshotUpdater: %s: %w", rec.EventID, err)
	}
	return nil
}

// applyGoalBands writes the current band's score pair the first time the
// match is seen inside it, and backfills every still-empty band from the
// final score once the match is Finished.
func (u *SnapshotUpdater) applyGoalBands(updates ports.Fields, rec *domain.MatchRecord, live *domain.LiveScore) {
	if live.TimeElapsed != nil && live.HScore != nil && live.AScore != nil {
		band := domain.BandFor(*live.TimeElapsed)
		if !rec.Goals[domain.BandIndex(band)].Set() {
			updates[fmt.Sprintf("h_goals%d", band)] = *live.HScore
			updates[fmt.Sprintf("a_goals%d", band)] = *live.AScore
		}
	}

	if live.Status != domain.StatusFinished {
		return
	}

	fth, fta, ok := domain.ParseFTScore(rec.FTScore)
	if !ok {
		// ft_score missing or malformed; the last known live score stands in.
		if live.HScore == nil || live.AScore == nil {
			return
		}
		fth, fta = *live.HScore, *live.AScore
	}
	for i, band := range domain.Bands {
		if rec.Goals[i].Set() {
			continue
		}
		updates[fmt.Sprintf("h_goals%d", band)] = fth
		updates[fmt.Sprintf("a_goals%d", band)] = fta
	}
}

// applySPCapture performs the write-once starting-price snapshot. The
// pre-kickoff window is preferred; the in-play fallback (when enabled) takes
// the first tick where play has visibly started. Each SP field is written
// independently, and the favourite is derived once from whichever home/away
// prices are effective.
func (u *SnapshotUpdater) applySPCapture(updates ports.Fields, rec *domain.MatchRecord, live *domain.LiveScore, book *domain.MarketBook) {
	needsSP := rec.HSP == nil || rec.ASP == nil || rec.DSP == nil
	if !needsSP && rec.Fav != nil {
		return
	}

	captureNow := false
	if rec.Kickoff != nil {
		toKO := time.Until(*rec.Kickoff)
		if toKO >= 0 && toKO <= u.cfg.CaptureWindow {
			captureNow = true
		}
	}
	if !captureNow && u.cfg.FallbackInplay && needsSP {
		elapsed := rec.TimeElapsed
		status := rec.InplayStatus
		if live != nil {
			if live.TimeElapsed != nil {
				elapsed = live.TimeElapsed
			}
			if live.Status != domain.StatusUnset {
				status = live.Status
			}
		}
		if (elapsed != nil && *elapsed >= 0) || status.Started() {
			captureNow = true
		}
	}
	if !captureNow {
		return
	}

	hSnap := book.Home.BestBack
	aSnap := book.Away.BestBack
	dSnap := book.Draw.BestBack

	if rec.HSP == nil && hSnap != nil {
		updates["h_sp"] = *hSnap
	}
	if rec.ASP == nil && aSnap != nil {
		updates["a_sp"] = *aSnap
	}
	if rec.DSP == nil && dSnap != nil {
		updates["d_sp"] = *dSnap
	}

	if rec.Fav == nil {
		effH := rec.HSP
		if effH == nil {
			effH = hSnap
		}
		effA := rec.ASP
		if effA == nil {
			effA = aSnap
		}
		if effH != nil && effA != nil {
			updates["fav"] = domain.Favourite(*effH, *effA)
		}
	}
}
