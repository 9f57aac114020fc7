package models

import "time"

type EventType string

const (
	EventOrderFilled          EventType = "order.filled"
	EventAccountFunded        EventType = "account.funded"
	EventAccountReset         EventType = "account.reset"
	EventBanditUpdated        EventType = "bandit.updated"
	EventCorrelationRejected  EventType = "evolution.correlation_rejected"
	EventEvolutionBatchScored EventType = "evolution.batch_scored"
)

// TradingEvent is published on the event stream and journaled.
type TradingEvent struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Symbol    string      `json:"symbol,omitempty"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// OutcomeMessage is the wire form of a realized outcome on the outcomes topic.
type OutcomeMessage struct {
	BotID    string                `json:"botId,omitempty"`
	Route    RouteType             `json:"route"`
	PnL      float64               `json:"pnl"`
	Friction float64               `json:"friction"`
	Drawdown float64               `json:"drawdown"`
	Context  RouteSelectionContext `json:"context"`
}
