package ports

import (
	"context"

	"github.com/sgmartin/ltdbot/internal/domain"
)

// Gateway opens exchange sessions. One session is established per controller
// tick and closed when the tick completes.
type Gateway interface {
	Connect(ctx context.Context) (Session, error)
}

// Session is an authenticated exchange connection. Absent data comes back as
// (nil, nil): the caller treats it as "no live data this tick", never as a
// reason to abort.
type Session interface {
	// LiveScore returns the in-play snapshot for an event, or nil if the
	// feed has nothing for it.
	LiveScore(ctx context.Context, eventID string) (*domain.LiveScore, error)

	// MarketBook returns the Match Odds order book, or nil if unavailable.
	MarketBook(ctx context.Context, marketID string) (*domain.MarketBook, error)

	// PlaceLayOrder submits a limit lay order against the draw.
	PlaceLayOrder(ctx context.Context, marketID string, price, size float64) (domain.PlaceReport, error)

	// CancelOrder cancels the unmatched remainder of a bet.
	CancelOrder(ctx context.Context, marketID, betID string) error

	// OrderState re-queries matched/remaining/status for a placed bet.
	OrderState(ctx context.Context, marketID, betID string) (domain.OrderUpdate, error)

	// UpcomingFixtures lists matches kicking off within the lookahead window.
	UpcomingFixtures(ctx context.Context, lookaheadHours int) ([]domain.Fixture, error)

	// Close logs the session out. Safe to call once per session.
	Close() error
}
