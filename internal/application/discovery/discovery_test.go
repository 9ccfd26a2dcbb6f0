package discovery_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgmartin/ltdbot/internal/adapters/storage"
	"github.com/sgmartin/ltdbot/internal/application/discovery"
	"github.com/sgmartin/ltdbot/internal/domain"
	"github.com/sgmartin/ltdbot/internal/ports"
)

type fixtureSession struct {
	fixtures  []domain.Fixture
	lookahead int
	closed    bool
}

func (f *fixtureSession) LiveScore(context.Context, string) (*domain.LiveScore, error) {
	return nil, nil
}

func (f *fixtureSession) MarketBook(context.Context, string) (*domain.MarketBook, error) {
	return nil, nil
}

func (f *fixtureSession) PlaceLayOrder(context.Context, string, float64, float64) (domain.PlaceReport, error) {
	return domain.PlaceReport{}, nil
}

func (f *fixtureSession) CancelOrder(context.Context, string, string) error { return nil }

func (f *fixtureSession) OrderState(context.Context, string, string) (domain.OrderUpdate, error) {
	return domain.OrderUpdate{}, nil
}

func (f *fixtureSession) UpcomingFixtures(_ context.Context, lookaheadHours int) ([]domain.Fixture, error) {
	f.lookahead = lookaheadHours
	return f.fixtures, nil
}

func (f *fixtureSession) Close() error {
	f.closed = true
	return nil
}

type fixtureGateway struct{ session *fixtureSession }

func (g *fixtureGateway) Connect(context.Context) (ports.Session, error) {
	return g.session, nil
}

func TestFinderSeedsFixtures(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	session := &fixtureSession{fixtures: []domain.Fixture{
		{EventID: "ev1", EventName: "Home v Away", Comp: "Premier League",
			MarketID: "1.1", Kickoff: "2026-03-14T15:00:00.000Z"},
		{EventID: "ev2", EventName: "Third v Fourth", Comp: "Serie A", MarketID: "1.2"},
		{EventName: "No Event ID"}, // skipped
	}}
	finder := discovery.NewFinder(db, &fixtureGateway{session: session}, 12, "test-1")

	n, err := finder.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 12, session.lookahead)
	assert.True(t, session.closed)

	rows, err := db.ListCurrent(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ev1", rows[0].EventID, "scheduled fixture sorts first")
	require.NotNil(t, rows[0].Kickoff)
	assert.Equal(t, 15, rows[0].Kickoff.UTC().Hour())
	assert.Equal(t, "test-1", rows[0].BotVersion)
	assert.Nil(t, rows[1].Kickoff)
}

func TestFinderRerunLeavesExistingRows(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	session := &fixtureSession{fixtures: []domain.Fixture{
		{EventID: "ev1", EventName: "Home v Away", Comp: "Premier League", MarketID: "1.1"},
	}}
	finder := discovery.NewFinder(db, &fixtureGateway{session: session}, 12, "test-1")

	ctx := context.Background()
	n, err := finder.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The trader has since written state that a re-seed must not clobber.
	require.NoError(t, db.UpdateCurrent(ctx, "ev1", ports.Fields{"strategy": "LTD60"}))

	n, err = finder.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "already-known fixtures are not counted again")

	rec, err := db.FetchCurrent(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, "LTD60", rec.Strategy)
}
