package trader_test

// Shared fakes for the controller-loop tests. The store is the real SQLite
// adapter on :memory:; only the exchange side is faked.

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sgmartin/ltdbot/internal/adapters/storage"
	"github.com/sgmartin/ltdbot/internal/domain"
	"github.com/sgmartin/ltdbot/internal/ports"
)

type fakeSession struct {
	scores map[string]*domain.LiveScore
	books  map[string]*domain.MarketBook
	closed bool
}

func (f *fakeSession) LiveScore(_ context.Context, eventID string) (*domain.LiveScore, error) {
	return f.scores[eventID], nil
}

func (f *fakeSession) MarketBook(_ context.Context, marketID string) (*domain.MarketBook, error) {
	return f.books[marketID], nil
}

func (f *fakeSession) PlaceLayOrder(context.Context, string, float64, float64) (domain.PlaceReport, error) {
	return domain.PlaceReport{Status: "EXECUTABLE", BetID: "bet-1"}, nil
}

func (f *fakeSession) CancelOrder(context.Context, string, string) error { return nil }

func (f *fakeSession) OrderState(context.Context, string, string) (domain.OrderUpdate, error) {
	return domain.OrderUpdate{}, nil
}

func (f *fakeSession) UpcomingFixtures(context.Context, int) ([]domain.Fixture, error) {
	return nil, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

type fakeGateway struct {
	session *fakeSession
}

func (g *fakeGateway) Connect(context.Context) (ports.Session, error) {
	return g.session, nil
}

type fakeNotifier struct {
	beats []ports.Heartbeat
}

func (n *fakeNotifier) Heartbeat(_ context.Context, hb ports.Heartbeat) error {
	n.beats = append(n.beats, hb)
	return nil
}

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *storage.SQLiteStore, eventID string, kickoff *time.Time) {
	t.Helper()
	_, err := db.InsertCurrent(context.Background(), domain.MatchRecord{
		EventID:   eventID,
		EventName: eventID + " Home v Away",
		Comp:      "Test League",
		MarketID:  "mkt-" + eventID,
		Kickoff:   kickoff,
	})
	require.NoError(t, err)
}

func fetch(t *testing.T, db *storage.SQLiteStore, eventID string) *domain.MatchRecord {
	t.Helper()
	rec, err := db.FetchCurrent(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func intp(v int) *int              { return &v }
func floatp(v float64) *float64    { return &v }
func timep(v time.Time) *time.Time { return &v }

func book(hb, ab, db float64) *domain.MarketBook {
	return &domain.MarketBook{
		Home:        domain.RunnerPrices{BestBack: floatp(hb), BestLay: floatp(hb + 0.1)},
		Away:        domain.RunnerPrices{BestBack: floatp(ab), BestLay: floatp(ab + 0.1)},
		Draw:        domain.RunnerPrices{BestBack: floatp(db), BestLay: floatp(db + 0.1)},
		MarketState: "OPEN",
	}
}
