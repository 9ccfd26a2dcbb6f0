package trader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sgmartin/ltdbot/internal/domain"
	"github.com/sgmartin/ltdbot/internal/ports"
	"github.com/sgmartin/ltdbot/internal/strategy"
)

// FinalizeConfig bounds the forced-finish and purge policies.
type FinalizeConfig struct {
	// FinishTimeout forces settlement on matches still non-terminal this
	// long after kickoff.
	FinishTimeout time.Duration
	// PurgeAfter deletes rows this old that never produced usable data.
	PurgeAfter time.Duration
}

// Finalizer settles finished matches and moves them to the archive. Every
// step is idempotent: a match already archived or already settled is a no-op.
type Finalizer struct {
	store      ports.MatchStore
	strategies *strategy.Registry
	cfg        FinalizeConfig
}

// NewFinalizer builds the finalizer.
func NewFinalizer(store ports.MatchStore, strategies *strategy.Registry, cfg FinalizeConfig) *Finalizer {
	return &Finalizer{store: store, strategies: strategies, cfg: cfg}
}

// Finalize settles and archives the match when it is due: naturally once the
// feed reports it finished, or forcibly once FinishTimeout has elapsed since
// kickoff. Returns whether the match was archived this call.
func (f *Finalizer) Finalize(ctx context.Context, rec *domain.MatchRecord) (bool, error) {
	if rec.InplayStatus == domain.StatusFinished {
		return f.settleAndArchive(ctx, rec, false)
	}

	age, ok := rec.AgeSinceKickoff(time.Now().UTC())
	if ok && !rec.InplayStatus.Terminal() && age > f.cfg.FinishTimeout {
		slog.Info("trader: forcing finish past timeout",
			"event", rec.EventID, "age", age.Round(time.Minute))
		return f.settleAndArchive(ctx, rec, true)
	}
	return false, nil
}

// Purgeable reports whether a stale row should be dropped outright: older
// than PurgeAfter, never reached a terminal state, and carrying no usable
// in-play data (no final score, play never got past half time).
func (f *Finalizer) Purgeable(rec *domain.MatchRecord, now time.Time) bool {
	age, ok := rec.AgeSinceKickoff(now)
	if !ok || age <= f.cfg.PurgeAfter {
		return false
	}
	if rec.InplayStatus.Terminal() || rec.FTScore != "" {
		return false
	}
	return rec.TimeElapsed == nil || *rec.TimeElapsed < 90
}

func (f *Finalizer) settleAndArchive(ctx context.Context, rec *domain.MatchRecord, forced bool) (bool, error) {
	fth, fta, scoreKnown := domain.ParseFTScore(rec.FTScore)
	if !scoreKnown && rec.HScore != nil && rec.AScore != nil {
		fth, fta = *rec.HScore, *rec.AScore
		scoreKnown = true
	}
	if !scoreKnown {
		// Nothing to settle against; the row waits for a score or the purge.
		if !forced {
			slog.Warn("trader: finished without a score", "event", rec.EventID)
		}
		return false, nil
	}

	result := domain.ComputeResult(fth, fta)
	updates := ports.Fields{
		"inplay_status": domain.StatusFinished,
		"result":        result,
	}
	if rec.FTScore == "" {
		updates["ft_score"] = domain.FormatFTScore(fth, fta)
	}
	// The snapshot updater backfills bands only when the feed itself reports
	// Finished; a forced finish has to complete the timeline here so archived
	// rows always carry all six bands.
	for i, band := range domain.Bands {
		if rec.Goals[i].Set() {
			continue
		}
		updates[fmt.Sprintf("h_goals%d", band)] = fth
		updates[fmt.Sprintf("a_goals%d", band)] = fta
	}
	if rec.PnL == nil && rec.Strategy != "" {
		if strat, ok := f.strategies.Get(rec.Strategy); ok {
			updates["pnl"] = strat.SettlePnL(rec, result)
		}
	}

	if err := f.store.UpdateCurrent(ctx, rec.EventID, updates); err != nil {
		return false, fmt.Errorf("trader.Finalizer: settle %s: %w", rec.EventID, err)
	}
	if err := f.store.ArchiveMatch(ctx, rec.EventID); err != nil {
		return false, fmt.Errorf("trader.Finalizer: archive %s: %w", rec.EventID, err)
	}
	slog.Info("trader: match archived",
		"event", rec.EventID, "score", domain.FormatFTScore(fth, fta),
		"result", result, "forced", forced)
	return true, nil
}
