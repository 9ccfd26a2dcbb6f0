package domain

// LiveScore is one in-play snapshot for an event. Optional fields are nil
// when the feed does not report them; callers check presence instead of
// probing.
type LiveScore struct {
	Status      InplayStatus
	TimeElapsed *int
	HScore      *int
	AScore      *int
	HRedCards   *int
	ARedCards   *int
}

// RunnerPrices holds the best available back and lay for one runner.
type RunnerPrices struct {
	BestBack *float64
	BestLay  *float64
}

// MarketBook is the order-book snapshot for a Match Odds market.
// Runner order is home, away, draw, per Betfair's Match Odds convention.
type MarketBook struct {
	Home        RunnerPrices
	Away        RunnerPrices
	Draw        RunnerPrices
	MarketState string // OPEN, SUSPENDED, CLOSED
}

// PlaceReport is the exchange's response to an order placement.
type PlaceReport struct {
	Status  string
	BetID   string
	Matched float64
}

// OrderUpdate is the current state of a previously placed order.
type OrderUpdate struct {
	Status    string
	Matched   float64
	Remaining float64
}

// Fixture is one upcoming match from the catalogue, consumed by discovery.
type Fixture struct {
	EventID   string
	EventName string
	Comp      string
	MarketID  string
	Kickoff   string // ISO-8601 as reported by the catalogue
}
