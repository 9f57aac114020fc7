package models

type DecisionAction string

const (
	ActionEnter   DecisionAction = "enter"
	ActionExit    DecisionAction = "exit"
	ActionNoTrade DecisionAction = "no_trade"
)

// BrainContext is what the Brain service decides on. Indicators is open-ended
// and receives the composite signal under the "composite" key.
type BrainContext struct {
	Symbol     string                 `json:"symbol" validate:"required,ticker"`
	Timeframe  string                 `json:"timeframe" default:"1h"`
	Price      float64                `json:"price"`
	Regime     string                 `json:"regime,omitempty"`
	Position   *Position              `json:"position,omitempty"`
	Indicators map[string]interface{} `json:"indicators,omitempty"`
}

type Decision struct {
	Action     DecisionAction `json:"action"`
	Confidence float64        `json:"confidence"`
	Reasoning  []string       `json:"reasoning"`
}

// CycleRequest drives one decision cycle for a symbol.
type CycleRequest struct {
	Symbol       string                `json:"symbol" validate:"required,ticker"`
	Timeframe    string                `json:"timeframe" default:"1h"`
	Quantity     float64               `json:"quantity" validate:"gt=0"`
	BotID        string                `json:"botId,omitempty"`
	RouteContext RouteSelectionContext `json:"routeContext" validate:"-"`
}

type CycleResult struct {
	Symbol   string          `json:"symbol"`
	Signal   CompositeSignal `json:"signal"`
	Decision Decision        `json:"decision"`
	Route    *RouteSelection `json:"route,omitempty"`
	Order    *OrderResult    `json:"order,omitempty"`
	Skipped  string          `json:"skipped,omitempty"`
}
