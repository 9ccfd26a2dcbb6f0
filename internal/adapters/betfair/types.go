package betfair

// Wire shapes for the subset of the Betting API and the in-play score
// service this bot consumes.

type priceSize struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

type exchangePrices struct {
	AvailableToBack []priceSize `json:"availableToBack"`
	AvailableToLay  []priceSize `json:"availableToLay"`
}

type bookRunner struct {
	SelectionID int64          `json:"selectionId"`
	Status      string         `json:"status"`
	EX          exchangePrices `json:"ex"`
}

type marketBook struct {
	MarketID string       `json:"marketId"`
	Status   string       `json:"status"` // OPEN, SUSPENDED, CLOSED
	Inplay   bool         `json:"inplay"`
	Runners  []bookRunner `json:"runners"`
}

type listMarketBookParams struct {
	MarketIDs       []string        `json:"marketIds"`
	PriceProjection priceProjection `json:"priceProjection"`
}

type priceProjection struct {
	PriceData []string `json:"priceData"`
}

type marketFilter struct {
	EventTypeIDs    []string   `json:"eventTypeIds,omitempty"`
	MarketTypeCodes []string   `json:"marketTypeCodes,omitempty"`
	MarketStartTime *timeRange `json:"marketStartTime,omitempty"`
}

type timeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type listMarketCatalogueParams struct {
	Filter           marketFilter `json:"filter"`
	MarketProjection []string     `json:"marketProjection"`
	Sort             string       `json:"sort"`
	MaxResults       int          `json:"maxResults"`
}

type catalogueEvent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	OpenDate    string `json:"openDate"`
	CountryCode string `json:"countryCode"`
}

type catalogueCompetition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type marketCatalogue struct {
	MarketID    string               `json:"marketId"`
	MarketName  string               `json:"marketName"`
	Event       catalogueEvent       `json:"event"`
	Competition catalogueCompetition `json:"competition"`
}

type limitOrder struct {
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	PersistenceType string  `json:"persistenceType"`
}

type placeInstruction struct {
	OrderType   string     `json:"orderType"`
	SelectionID int64      `json:"selectionId"`
	Side        string     `json:"side"`
	LimitOrder  limitOrder `json:"limitOrder"`
}

type placeOrdersParams struct {
	MarketID     string             `json:"marketId"`
	Instructions []placeInstruction `json:"instructions"`
}

type placeInstructionReport struct {
	Status      string  `json:"status"`
	ErrorCode   string  `json:"errorCode"`
	BetID       string  `json:"betId"`
	SizeMatched float64 `json:"sizeMatched"`
	OrderStatus string  `json:"orderStatus"`
}

type placeExecutionReport struct {
	Status             string                   `json:"status"`
	ErrorCode          string                   `json:"errorCode"`
	InstructionReports []placeInstructionReport `json:"instructionReports"`
}

type cancelInstruction struct {
	BetID string `json:"betId"`
}

type cancelOrdersParams struct {
	MarketID     string              `json:"marketId"`
	Instructions []cancelInstruction `json:"instructions"`
}

type cancelExecutionReport struct {
	Status    string `json:"status"`
	ErrorCode string `json:"errorCode"`
}

type listCurrentOrdersParams struct {
	BetIDs []string `json:"betIds"`
}

type currentOrder struct {
	BetID         string  `json:"betId"`
	Status        string  `json:"status"` // EXECUTABLE, EXECUTION_COMPLETE
	SizeMatched   float64 `json:"sizeMatched"`
	SizeRemaining float64 `json:"sizeRemaining"`
}

type currentOrderSummaryReport struct {
	CurrentOrders []currentOrder `json:"currentOrders"`
	MoreAvailable bool           `json:"moreAvailable"`
}

// eventTimeline is the in-play score service payload.
type eventTimeline struct {
	EventID           int64          `json:"eventId"`
	Status            string         `json:"status"` // IN_PLAY, COMPLETE
	InPlayMatchStatus string         `json:"inPlayMatchStatus"`
	TimeElapsed       *int           `json:"timeElapsed"`
	Score             *timelineScore `json:"score"`
}

type timelineScore struct {
	Home timelineSide `json:"home"`
	Away timelineSide `json:"away"`
}

type timelineSide struct {
	Score            string `json:"score"`
	NumberOfRedCards *int   `json:"numberOfRedCards"`
}
