package betfair

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sgmartin/ltdbot/internal/domain"
	"github.com/sgmartin/ltdbot/internal/ports"
)

// Gateway opens authenticated Betfair sessions. It satisfies ports.Gateway.
type Gateway struct {
	client *Client
}

// NewGateway builds the exchange gateway.
func NewGateway(apiBase, appKey, user, pass string, rps float64) *Gateway {
	return &Gateway{client: NewClient(apiBase, appKey, user, pass, rps)}
}

// Connect logs in and returns a live session.
func (g *Gateway) Connect(ctx context.Context) (ports.Session, error) {
	token, err := g.client.login(ctx)
	if err != nil {
		return nil, fmt.Errorf("betfair.Gateway: %w", err)
	}
	return &Session{
		client:    g.client,
		token:     token,
		drawByMkt: make(map[string]int64),
	}, nil
}

// Session is one authenticated connection. It caches the draw runner's
// selection id per market so placement does not need a second book fetch.
type Session struct {
	client    *Client
	token     string
	drawByMkt map[string]int64
}

// LiveScore fetches the in-play timeline for an event. Returns (nil, nil)
// when the feed has nothing for it.
func (s *Session) LiveScore(ctx context.Context, eventID string) (*domain.LiveScore, error) {
	url := fmt.Sprintf("%s/eventTimeline?eventId=%s&alt=json&locale=en", s.client.inplayBase, eventID)
	var tl eventTimeline
	if err := s.client.getJSON(ctx, s.token, url, &tl); err != nil {
		return nil, err
	}
	if tl.EventID == 0 && tl.Score == nil && tl.InPlayMatchStatus == "" {
		return nil, nil
	}

	live := &domain.LiveScore{
		Status:      mapInplayStatus(tl.Status, tl.InPlayMatchStatus),
		TimeElapsed: tl.TimeElapsed,
	}
	if tl.Score != nil {
		live.HScore = parseScore(tl.Score.Home.Score)
		live.AScore = parseScore(tl.Score.Away.Score)
		live.HRedCards = tl.Score.Home.NumberOfRedCards
		live.ARedCards = tl.Score.Away.NumberOfRedCards
	}
	return live, nil
}

// MarketBook fetches best prices for a Match Odds market. Runner order is
// home, away, draw.
func (s *Session) MarketBook(ctx context.Context, marketID string) (*domain.MarketBook, error) {
	var books []marketBook
	err := s.client.rpc(ctx, s.token, "listMarketBook", listMarketBookParams{
		MarketIDs:       []string{marketID},
		PriceProjection: priceProjection{PriceData: []string{"EX_BEST_OFFERS"}},
	}, &books)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, nil
	}
	book := books[0]
	if len(book.Runners) < 3 {
		return nil, nil
	}
	s.drawByMkt[marketID] = book.Runners[2].SelectionID

	return &domain.MarketBook{
		Home:        runnerPrices(book.Runners[0]),
		Away:        runnerPrices(book.Runners[1]),
		Draw:        runnerPrices(book.Runners[2]),
		MarketState: book.Status,
	}, nil
}

// PlaceLayOrder submits a persistent limit lay on the draw.
func (s *Session) PlaceLayOrder(ctx context.Context, marketID string, price, size float64) (domain.PlaceReport, error) {
	selectionID, err := s.drawSelection(ctx, marketID)
	if err != nil {
		return domain.PlaceReport{}, err
	}

	var report placeExecutionReport
	err = s.client.rpc(ctx, s.token, "placeOrders", placeOrdersParams{
		MarketID: marketID,
		Instructions: []placeInstruction{{
			OrderType:   "LIMIT",
			SelectionID: selectionID,
			Side:        "LAY",
			LimitOrder: limitOrder{
				Size:            size,
				Price:           price,
				PersistenceType: "PERSIST",
			},
		}},
	}, &report)
	if err != nil {
		return domain.PlaceReport{}, err
	}
	if len(report.InstructionReports) == 0 {
		return domain.PlaceReport{}, fmt.Errorf("betfair: placeOrders: empty report, status=%s error=%s",
			report.Status, report.ErrorCode)
	}
	ir := report.InstructionReports[0]
	if report.Status != "SUCCESS" {
		code := ir.ErrorCode
		if code == "" {
			code = report.ErrorCode
		}
		return domain.PlaceReport{}, fmt.Errorf("betfair: placeOrders rejected: %s", code)
	}
	return domain.PlaceReport{
		Status:  ir.OrderStatus,
		BetID:   ir.BetID,
		Matched: ir.SizeMatched,
	}, nil
}

// CancelOrder cancels the unmatched remainder of a bet.
func (s *Session) CancelOrder(ctx context.Context, marketID, betID string) error {
	var report cancelExecutionReport
	err := s.client.rpc(ctx, s.token, "cancelOrders", cancelOrdersParams{
		MarketID:     marketID,
		Instructions: []cancelInstruction{{BetID: betID}},
	}, &report)
	if err != nil {
		return err
	}
	if report.Status != "SUCCESS" {
		return fmt.Errorf("betfair: cancelOrders rejected: %s", report.ErrorCode)
	}
	return nil
}

// OrderState re-queries one bet's matched/remaining/status.
func (s *Session) OrderState(ctx context.Context, marketID, betID string) (domain.OrderUpdate, error) {
	var report currentOrderSummaryReport
	err := s.client.rpc(ctx, s.token, "listCurrentOrders", listCurrentOrdersParams{
		BetIDs: []string{betID},
	}, &report)
	if err != nil {
		return domain.OrderUpdate{}, err
	}
	for _, o := range report.CurrentOrders {
		if o.BetID == betID {
			return domain.OrderUpdate{
				Status:    o.Status,
				Matched:   o.SizeMatched,
				Remaining: o.SizeRemaining,
			}, nil
		}
	}
	// Not in current orders: settled or cancelled away. Report nothing
	// rather than a zeroed state the caller might persist.
	return domain.OrderUpdate{}, nil
}

// UpcomingFixtures lists soccer Match Odds markets starting inside the
// lookahead window.
func (s *Session) UpcomingFixtures(ctx context.Context, lookaheadHours int) ([]domain.Fixture, error) {
	now := time.Now().UTC()
	var catalogues []marketCatalogue
	err := s.client.rpc(ctx, s.token, "listMarketCatalogue", listMarketCatalogueParams{
		Filter: marketFilter{
			EventTypeIDs:    []string{soccerEventTypeID},
			MarketTypeCodes: []string{matchOddsMarketType},
			MarketStartTime: &timeRange{
				From: now.Format(time.RFC3339),
				To:   now.Add(time.Duration(lookaheadHours) * time.Hour).Format(time.RFC3339),
			},
		},
		MarketProjection: []string{"EVENT", "COMPETITION", "MARKET_START_TIME"},
		Sort:             "FIRST_TO_START",
		MaxResults:       200,
	}, &catalogues)
	if err != nil {
		return nil, err
	}

	fixtures := make([]domain.Fixture, 0, len(catalogues))
	for _, cat := range catalogues {
		fixtures = append(fixtures, domain.Fixture{
			EventID:   cat.Event.ID,
			EventName: cat.Event.Name,
			Comp:      cat.Competition.Name,
			MarketID:  cat.MarketID,
			Kickoff:   cat.Event.OpenDate,
		})
	}
	return fixtures, nil
}

// Close logs the session out.
func (s *Session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.client.logout(ctx, s.token)
	return nil
}

// drawSelection resolves the draw runner's selection id, fetching the book
// once if this session has not seen the market yet.
func (s *Session) drawSelection(ctx context.Context, marketID string) (int64, error) {
	if id, ok := s.drawByMkt[marketID]; ok {
		return id, nil
	}
	if _, err := s.MarketBook(ctx, marketID); err != nil {
		return 0, err
	}
	id, ok := s.drawByMkt[marketID]
	if !ok {
		return 0, fmt.Errorf("betfair: no draw runner for market %s", marketID)
	}
	return id, nil
}

func runnerPrices(r bookRunner) domain.RunnerPrices {
	var rp domain.RunnerPrices
	if len(r.EX.AvailableToBack) > 0 {
		p := r.EX.AvailableToBack[0].Price
		rp.BestBack = &p
	}
	if len(r.EX.AvailableToLay) > 0 {
		p := r.EX.AvailableToLay[0].Price
		rp.BestLay = &p
	}
	return rp
}

// mapInplayStatus folds the score-service status pair into the domain enum.
func mapInplayStatus(status, matchStatus string) domain.InplayStatus {
	switch matchStatus {
	case "KickOff":
		return domain.StatusKickOff
	case "SecondHalfKickOff":
		return domain.StatusSecondHalfKickOff
	case "Finished", "FullTime":
		return domain.StatusFinished
	}
	switch status {
	case "COMPLETE", "CLOSED":
		return domain.StatusFinished
	case "IN_PLAY":
		return domain.StatusInPlay
	}
	if matchStatus != "" {
		return domain.StatusInPlay
	}
	return domain.StatusUnset
}

func parseScore(raw string) *int {
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}
