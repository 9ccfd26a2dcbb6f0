package trader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sgmartin/ltdbot/internal/ports"
	"github.com/sgmartin/ltdbot/internal/strategy"
)

// Config drives the controller loop.
type Config struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
}

// TickResult summarises one pass over the current_matches table.
type TickResult struct {
	Processed int
	Archived  int
	Purged    int
	Errors    int
}

// Controller owns the match-lifecycle loop: purge stale rows, refresh each
// live match from the gateway, settle what finished, then hand the match to
// its strategy. One gateway session is opened per tick and closed at the end
// of it. Errors on one match never stop the others.
type Controller struct {
	store      ports.MatchStore
	gateway    ports.Gateway
	strategies *strategy.Registry
	snapshots  *SnapshotUpdater
	finalizer  *Finalizer
	notifier   ports.Notifier
	cfg        Config

	tick          int
	lastHeartbeat time.Time
	warned        map[string]struct{} // events already warned about failing snapshots
}

// NewController wires the loop together. gateway and notifier may be nil.
func NewController(
	store ports.MatchStore,
	gateway ports.Gateway,
	strategies *strategy.Registry,
	snapshots *SnapshotUpdater,
	finalizer *Finalizer,
	notifier ports.Notifier,
	cfg Config,
) *Controller {
	return &Controller{
		store:      store,
		gateway:    gateway,
		strategies: strategies,
		snapshots:  snapshots,
		finalizer:  finalizer,
		notifier:   notifier,
		cfg:        cfg,
		warned:     make(map[string]struct{}),
	}
}

// Run ticks until the context is cancelled. The first tick fires immediately.
func (c *Controller) Run(ctx context.Context) error {
	slog.Info("trader: controller started", "poll", c.cfg.PollInterval)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		res, err := c.RunOnce(ctx)
		if err != nil {
			slog.Error("trader: tick failed", "err", err)
		} else {
			slog.Debug("trader: tick done",
				"processed", res.Processed, "archived", res.Archived,
				"purged", res.Purged, "errors", res.Errors)
		}
		c.maybeHeartbeat(ctx)

		select {
		case <-ctx.Done():
			slog.Info("trader: controller stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single controller tick.
func (c *Controller) RunOnce(ctx context.Context) (TickResult, error) {
	c.tick++
	var res TickResult

	purged, err := c.purgeStale(ctx)
	if err != nil {
		slog.Warn("trader: purge pass failed", "err", err)
	}
	res.Purged = purged

	rows, err := c.store.ListCurrent(ctx)
	if err != nil {
		return res, fmt.Errorf("trader.Controller: list current: %w", err)
	}

	session := c.openSession(ctx)
	if session != nil {
		defer func() {
			if err := session.Close(); err != nil {
				slog.Warn("trader: session close failed", "err", err)
			}
		}()
	}

	for _, rec := range rows {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Processed++
		if !c.processMatch(ctx, session, rec.EventID, &res) {
			res.Errors++
		}
	}
	return res, nil
}

// processMatch runs the per-match phases in order, refetching the row
// between phases so each one sees the previous one's writes. Reports false
// when any phase errored.
func (c *Controller) processMatch(ctx context.Context, session ports.Session, eventID string, res *TickResult) bool {
	ok := true

	rec, err := c.store.FetchCurrent(ctx, eventID)
	if err != nil || rec == nil {
		return err == nil
	}

	if err := c.snapshots.Update(ctx, session, rec); err != nil {
		if _, seen := c.warned[eventID]; !seen {
			slog.Warn("trader: snapshot failed", "event", eventID, "err", err)
			c.warned[eventID] = struct{}{}
		}
		ok = false
	} else {
		delete(c.warned, eventID)
	}

	rec, err = c.store.FetchCurrent(ctx, eventID)
	if err != nil || rec == nil {
		return ok && err == nil
	}
	archived, err := c.finalizer.Finalize(ctx, rec)
	if err != nil {
		slog.Warn("trader: finalize failed", "event", eventID, "err", err)
		ok = false
	}
	if archived {
		res.Archived++
		delete(c.warned, eventID)
		return ok
	}

	for _, strat := range c.strategies.All() {
		rec, err = c.store.FetchCurrent(ctx, eventID)
		if err != nil || rec == nil {
			return ok && err == nil
		}
		if err := strat.AssignIfApplicable(ctx, c.store, rec); err != nil {
			slog.Warn("trader: assignment failed",
				"event", eventID, "strategy", strat.Name(), "err", err)
			ok = false
			continue
		}
		rec, err = c.store.FetchCurrent(ctx, eventID)
		if err != nil || rec == nil {
			return ok && err == nil
		}
		if rec.Strategy != strat.Name() {
			continue
		}
		if err := strat.OnTick(ctx, c.store, rec, session); err != nil {
			slog.Warn("trader: strategy tick failed",
				"event", eventID, "strategy", strat.Name(), "err", err)
			ok = false
		}
	}
	return ok
}

// purgeStale deletes rows that aged out without ever producing usable data.
func (c *Controller) purgeStale(ctx context.Context) (int, error) {
	rows, err := c.store.ListCurrent(ctx)
	if err != nil {
		return 0, fmt.Errorf("trader.Controller: purge list: %w", err)
	}
	now := time.Now().UTC()
	purged := 0
	for i := range rows {
		rec := &rows[i]
		if !c.finalizer.Purgeable(rec, now) {
			continue
		}
		if err := c.store.DeleteFromCurrent(ctx, rec.EventID); err != nil {
			slog.Warn("trader: purge delete failed", "event", rec.EventID, "err", err)
			continue
		}
		slog.Info("trader: purged stale match", "event", rec.EventID, "name", rec.EventName)
		delete(c.warned, rec.EventID)
		purged++
	}
	return purged, nil
}

// openSession connects to the gateway when any installed strategy needs it.
// Connection failure degrades the tick to store-only work.
func (c *Controller) openSession(ctx context.Context) ports.Session {
	if c.gateway == nil {
		return nil
	}
	needed := false
	for _, strat := range c.strategies.All() {
		if strat.RequiresGateway() {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}
	session, err := c.gateway.Connect(ctx)
	if err != nil {
		slog.Warn("trader: gateway connect failed", "err", err)
		return nil
	}
	return session
}

// maybeHeartbeat emits a liveness summary at most once per interval.
func (c *Controller) maybeHeartbeat(ctx context.Context) {
	if c.notifier == nil || c.cfg.HeartbeatInterval <= 0 {
		return
	}
	now := time.Now()
	if !c.lastHeartbeat.IsZero() && now.Sub(c.lastHeartbeat) < c.cfg.HeartbeatInterval {
		return
	}
	c.lastHeartbeat = now

	rows, err := c.store.ListCurrent(ctx)
	if err != nil {
		slog.Warn("trader: heartbeat list failed", "err", err)
		return
	}
	hb := ports.Heartbeat{Total: len(rows), Tick: c.tick}
	for _, rec := range rows {
		if rec.InplayStatus.Started() && !rec.InplayStatus.Terminal() {
			hb.InPlay++
		}
		if rec.Strategy != "" {
			hb.Assigned++
		}
	}
	if err := c.notifier.Heartbeat(ctx, hb); err != nil {
		slog.Warn("trader: heartbeat failed", "err", err)
	}
}
