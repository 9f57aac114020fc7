package models

import "time"

type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

// OrderStatus is always filled in the single-fill paper model.
type OrderStatus string

const OrderFilled OrderStatus = "filled"

type TradeKind string

const (
	TradeFill    TradeKind = "trade"
	TradeFunding TradeKind = "funding"
)

// Position is a long holding in one symbol. Quantity is always > 0 while held.
type Position struct {
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	AvgPrice  float64 `json:"avgPrice"`
	TotalCost float64 `json:"totalCost"`
}

type Order struct {
	OrderID    int64       `json:"orderId"`
	Symbol     string      `json:"symbol"`
	Side       OrderSide   `json:"side"`
	Quantity   float64     `json:"quantity"`
	Price      float64     `json:"price"`
	TotalValue float64     `json:"totalValue"`
	Type       OrderType   `json:"type"`
	Status     OrderStatus `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
}

// TradeRecord is an entry in the trade log: a fill or a funding deposit.
type TradeRecord struct {
	ID          string    `json:"id"`
	Kind        TradeKind `json:"kind"`
	OrderID     int64     `json:"orderId,omitempty"`
	Symbol      string    `json:"symbol,omitempty"`
	Side        OrderSide `json:"side,omitempty"`
	Quantity    float64   `json:"quantity,omitempty"`
	Price       float64   `json:"price,omitempty"`
	Value       float64   `json:"value"`
	RealizedPnL float64   `json:"realizedPnL"`
	Timestamp   time.Time `json:"timestamp"`
}

// PaperAccount is the persisted ledger document.
type PaperAccount struct {
	InitialBalance float64       `json:"initialBalance"`
	USDBalance     float64       `json:"usdBalance"`
	Positions      []Position    `json:"positions"`
	Orders         []Order       `json:"orders"`
	OrderHistory   []Order       `json:"orderHistory"`
	Trades         []TradeRecord `json:"trades"`
	LastOrderID    int64         `json:"lastOrderId"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// OrderRequest is the input to PlaceOrder. Price is only read for limit orders.
type OrderRequest struct {
	Symbol   string    `json:"symbol" validate:"required,ticker"`
	Side     OrderSide `json:"side" validate:"required"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price,omitempty"`
	Type     OrderType `json:"type" default:"market"`
}

// OrderResult is the filled order plus the realized PnL of a sell.
type OrderResult struct {
	Order       Order     `json:"order"`
	RealizedPnL float64   `json:"realizedPnL"`
	Position    *Position `json:"position,omitempty"`
	USDBalance  float64   `json:"usdBalance"`
}

// PositionView is a held position marked to the live price.
type PositionView struct {
	Position
	CurrentPrice   float64 `json:"currentPrice"`
	MarketValue    float64 `json:"marketValue"`
	UnrealizedPnL  float64 `json:"unrealizedPnL"`
	PnLPercent     float64 `json:"pnlPercent"`
	PriceAvailable bool    `json:"priceAvailable"`
	Error          string  `json:"error,omitempty"`
}

type AccountView struct {
	USDBalance         float64        `json:"usdBalance"`
	Positions          []PositionView `json:"positions"`
	TotalPositionValue float64        `json:"totalPositionValue"`
	TotalValue         float64        `json:"totalValue"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

type AccountStats struct {
	TotalTrades     int     `json:"totalTrades"`
	ClosedTrades    int     `json:"closedTrades"`
	WinningTrades   int     `json:"winningTrades"`
	LosingTrades    int     `json:"losingTrades"`
	WinRate         float64 `json:"winRate"`
	RealizedPnL     float64 `json:"realizedPnL"`
	UnrealizedPnL   float64 `json:"unrealizedPnL"`
	TotalPnL        float64 `json:"totalPnL"`
	TotalPnLPercent float64 `json:"totalPnLPercent"`
	TotalFunded     float64 `json:"totalFunded"`
	CurrentValue    float64 `json:"currentValue"`
}
