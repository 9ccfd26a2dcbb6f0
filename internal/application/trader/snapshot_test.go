package trader_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgmartin/ltdbot/internal/application/trader"
	"github.com/sgmartin/ltdbot/internal/domain"
)

func TestSnapshot_VolatileFieldsAlwaysOverwritten(t *testing.T) {
	db := newStore(t)
	seed(t, db, "ev1", nil)
	u := trader.NewSnapshotUpdater(db, trader.SnapshotConfig{CaptureWindow: 90 * time.Second})

	session := &fakeSession{
		scores: map[string]*domain.LiveScore{
			"ev1": {Status: domain.StatusInPlay, TimeElapsed: intp(30), HScore: intp(1), AScore: intp(0)},
		},
		books: map[string]*domain.MarketBook{"mkt-ev1": book(2.0, 3.5, 3.4)},
	}
	require.NoError(t, u.Update(context.Background(), session, fetch(t, db, "ev1")))

	rec := fetch(t, db, "ev1")
	assert.Equal(t, domain.StatusInPlay, rec.InplayStatus)
	assert.Equal(t, 30, *rec.TimeElapsed)
	assert.Equal(t, 1, *rec.HScore)
	assert.InDelta(t, 3.4, *rec.DBack, 0.001)
	assert.InDelta(t, 3.5, *rec.DLay, 0.001)
	assert.Equal(t, "OPEN", rec.MarketState)

	// Next tick with new values replaces everything volatile.
	session.scores["ev1"] = &domain.LiveScore{
		Status: domain.StatusInPlay, TimeElapsed: intp(55), HScore: intp(1), AScore: intp(1),
	}
	session.books["mkt-ev1"] = book(2.4, 3.1, 3.0)
	require.NoError(t, u.Update(context.Background(), session, rec))

	rec = fetch(t, db, "ev1")
	assert.Equal(t, 55, *rec.TimeElapsed)
	assert.Equal(t, 1, *rec.AScore)
	assert.InDelta(t, 3.0, *rec.DBack, 0.001)
}

func TestSnapshot_SPCapturedOnceInsideWindow(t *testing.T) {
	db := newStore(t)
	seed(t, db, "ev1", timep(time.Now().UTC().Add(time.Minute)))
	u := trader.NewSnapshotUpdater(db, trader.SnapshotConfig{CaptureWindow: 90 * time.Second})

	session := &fakeSession{
		books: map[string]*domain.MarketBook{"mkt-ev1": book(1.8, 4.2, 3.6)},
	}
	require.NoError(t, u.Update(context.Background(), session, fetch(t, db, "ev1")))

	rec := fetch(t, db, "ev1")
	require.NotNil(t, rec.HSP)
	assert.InDelta(t, 1.8, *rec.HSP, 0.001)
	assert.InDelta(t, 4.2, *rec.ASP, 0.001)
	assert.InDelta(t, 3.6, *rec.DSP, 0.001)
	require.NotNil(t, rec.Fav)
	assert.Equal(t, domain.FavHome, *rec.Fav)

	// Prices move; the snapshot must not.
	session.books["mkt-ev1"] = book(2.6, 2.4, 3.2)
	require.NoError(t, u.Update(context.Background(), session, rec))

	rec = fetch(t, db, "ev1")
	assert.InDelta(t, 1.8, *rec.HSP, 0.001)
	assert.InDelta(t, 4.2, *rec.ASP, 0.001)
	assert.Equal(t, domain.FavHome, *rec.Fav)
}

func TestSnapshot_SPNotCapturedOutsideWindow(t *testing.T) {
	db := newStore(t)
	seed(t, db, "ev1", timep(time.Now().UTC().Add(time.Hour)))
	u := trader.NewSnapshotUpdater(db, trader.SnapshotConfig{CaptureWindow: 90 * time.Second})

	session := &fakeSession{
		books: map[string]*domain.MarketBook{"mkt-ev1": book(1.8, 4.2, 3.6)},
	}
	require.NoError(t, u.Update(context.Background(), session, fetch(t, db, "ev1")))

	rec := fetch(t, db, "ev1")
	assert.Nil(t, rec.HSP)
	assert.Nil(t, rec.Fav)
	assert.NotNil(t, rec.DBack, "volatile prices still tracked")
}

func TestSnapshot_SPInplayFallback(t *testing.T) {
	db := newStore(t)
	// Kickoff long past: the pre-KO window was missed.
	seed(t, db, "ev1", timep(time.Now().UTC().Add(-20*time.Minute)))
	u := trader.NewSnapshotUpdater(db, trader.SnapshotConfig{
		CaptureWindow:  90 * time.Second,
		FallbackInplay: true,
	})

	session := &fakeSession{
		scores: map[string]*domain.LiveScore{
			"ev1": {Status: domain.StatusInPlay, TimeElapsed: intp(20), HScore: intp(0), AScore: intp(0)},
		},
		books: map[string]*domain.MarketBook{"mkt-ev1": book(2.1, 3.3, 3.1)},
	}
	require.NoError(t, u.Update(context.Background(), session, fetch(t, db, "ev1")))

	rec := fetch(t, db, "ev1")
	require.NotNil(t, rec.DSP)
	assert.InDelta(t, 3.1, *rec.DSP, 0.001)
	require.NotNil(t, rec.Fav)
	assert.Equal(t, domain.FavHome, *rec.Fav)
}

func TestSnapshot_GoalBandWrittenOnce(t *testing.T) {
	db := newStore(t)
	seed(t, db, "ev1", nil)
	u := trader.NewSnapshotUpdater(db, trader.SnapshotConfig{CaptureWindow: 90 * time.Second})

	session := &fakeSession{
		scores: map[string]*domain.LiveScore{
			"ev1": {Status: domain.StatusInPlay, TimeElapsed: intp(5), HScore: intp(0), AScore: intp(0)},
		},
	}
	require.NoError(t, u.Update(context.Background(), session, fetch(t, db, "ev1")))

	rec := fetch(t, db, "ev1")
	b15 := rec.Goals[domain.BandIndex(15)]
	require.True(t, b15.Set())
	assert.Equal(t, 0, *b15.H)

	// A goal later in the same band must not rewrite the captured pair.
	session.scores["ev1"] = &domain.LiveScore{
		Status: domain.StatusInPlay, TimeElapsed: intp(14), HScore: intp(2), AScore: intp(0),
	}
	require.NoError(t, u.Update(context.Background(), session, rec))

	rec = fetch(t, db, "ev1")
	assert.Equal(t, 0, *rec.Goals[domain.BandIndex(15)].H, "first value wins")
	assert.Equal(t, 2, *rec.HScore, "volatile score still tracks")

	// Crossing into the next band captures the new pair there.
	session.scores["ev1"] = &domain.LiveScore{
		Status: domain.StatusInPlay, TimeElapsed: intp(22), HScore: intp(2), AScore: intp(1),
	}
	require.NoError(t, u.Update(context.Background(), session, rec))

	rec = fetch(t, db, "ev1")
	b30 := rec.Goals[domain.BandIndex(30)]
	require.True(t, b30.Set())
	assert.Equal(t, 2, *b30.H)
	assert.Equal(t, 1, *b30.A)
}

func TestSnapshot_FinishedBackfillsEmptyBands(t *testing.T) {
	db := newStore(t)
	seed(t, db, "ev1", nil)
	u := trader.NewSnapshotUpdater(db, trader.SnapshotConfig{CaptureWindow: 90 * time.Second})

	// Only band 30 was observed live.
	session := &fakeSession{
		scores: map[string]*domain.LiveScore{
			"ev1": {Status: domain.StatusInPlay, TimeElapsed: intp(25), HScore: intp(1), AScore: intp(0)},
		},
	}
	require.NoError(t, u.Update(context.Background(), session, fetch(t, db, "ev1")))

	session.scores["ev1"] = &domain.LiveScore{
		Status: domain.StatusFinished, TimeElapsed: intp(90), HScore: intp(2), AScore: intp(1),
	}
	require.NoError(t, u.Update(context.Background(), session, fetch(t, db, "ev1")))

	rec := fetch(t, db, "ev1")
	assert.Equal(t, 1, *rec.Goals[domain.BandIndex(30)].H, "observed band untouched")
	for _, band := range []domain.Band{15, 45, 60, 75, 90} {
		bs := rec.Goals[domain.BandIndex(band)]
		require.True(t, bs.Set(), "band %d backfilled", band)
		assert.Equal(t, 2, *bs.H, "band %d", band)
		assert.Equal(t, 1, *bs.A, "band %d", band)
	}
}

func TestSnapshot_NilSessionIsNoop(t *testing.T) {
	db := newStore(t)
	seed(t, db, "ev1", nil)
	u := trader.NewSnapshotUpdater(db, trader.SnapshotConfig{CaptureWindow: 90 * time.Second})

	require.NoError(t, u.Update(context.Background(), nil, fetch(t, db, "ev1")))

	rec := fetch(t, db, "ev1")
	assert.Equal(t, domain.StatusUnset, rec.InplayStatus)
	assert.Nil(t, rec.DBack)
}
