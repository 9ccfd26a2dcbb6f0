package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sgmartin/ltdbot/internal/domain"
	"github.com/sgmartin/ltdbot/internal/ports"
)

// Finder pulls upcoming fixtures from the exchange catalogue and seeds the
// current-matches table. Existing rows are left untouched.
type Finder struct {
	store          ports.MatchStore
	gateway        ports.Gateway
	lookaheadHours int
	botVersion     string
}

// NewFinder builds the fixture finder.
func NewFinder(store ports.MatchStore, gateway ports.Gateway, lookaheadHours int, botVersion string) *Finder {
	return &Finder{
		store:          store,
		gateway:        gateway,
		lookaheadHours: lookaheadHours,
		botVersion:     botVersion,
	}
}

// Run performs one discovery pass and returns how many fixtures it seeded.
// It is shaped as a scheduler.Job.
func (f *Finder) Run(ctx context.Context) (int, error) {
	session, err := f.gateway.Connect(ctx)
	if err != nil {
		return 0, fmt.Errorf("discovery.Finder: connect: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("discovery: session close failed", "err", err)
		}
	}()

	fixtures, err := session.UpcomingFixtures(ctx, f.lookaheadHours)
	if err != nil {
		return 0, fmt.Errorf("discovery.Finder: fixtures: %w", err)
	}

	seeded := 0
	for _, fx := range fixtures {
		if fx.EventID == "" {
			continue
		}
		rec := domain.MatchRecord{
			EventID:    fx.EventID,
			EventName:  fx.EventName,
			Comp:       fx.Comp,
			MarketID:   fx.MarketID,
			BotVersion: f.botVersion,
			Kickoff:    parseKickoff(fx.Kickoff),
		}
		inserted, err := f.store.InsertCurrent(ctx, rec)
		if err != nil {
			return seeded, fmt.Errorf("discovery.Finder: insert %s: %w", fx.EventID, err)
		}
		// Fixtures already on the board don't count as seeded.
		if inserted {
			seeded++
		}
	}
	slog.Info("discovery: pass complete", "fixtures", len(fixtures), "seeded", seeded)
	return seeded, nil
}

// parseKickoff tolerates the two timestamp shapes the catalogue emits.
func parseKickoff(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000Z"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	slog.Warn("discovery: unparseable kickoff", "raw", raw)
	return nil
}
