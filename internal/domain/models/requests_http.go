package models

// Requests for HTTP endpoints. Defined in domain for consistency and reuse.

type SignalRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required,ticker"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
}

type FundRequest struct {
	Amount float64 `json:"amount" validate:"gt=0"`
}

type PlaceOrderRequest struct {
	Symbol   string  `json:"symbol" validate:"required,ticker"`
	Side     string  `json:"side" validate:"required,oneof=buy sell"`
	Quantity float64 `json:"quantity" validate:"gt=0"`
	Price    float64 `json:"price" validate:"gte=0"`
	Type     string  `json:"type" default:"market" validate:"oneof=market limit"`
}

type HistoryRequest struct {
	Limit int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=1000"`
	Since string `query:"since" json:"since"`
}

type CandidatesRequest struct {
	Candidates []EvolutionCandidate `json:"candidates" validate:"required,dive"`
}

type CorrelationCheckRequest struct {
	Candidate EvolutionCandidate `json:"candidate" validate:"required"`
}

type RegisterBotRequest struct {
	BotID     string             `json:"botId" validate:"required"`
	Candidate EvolutionCandidate `json:"candidate"`
}

type BotIDParam struct {
	ID string `param:"id" validate:"required"`
}

type CandlesRequest struct {
	Symbol    string `query:"symbol" validate:"required,ticker"`
	Timeframe string `query:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	Limit     int    `query:"limit" default:"200" validate:"gte=1,lte=5000"`
}
