package models

import "time"

// RouteType is a trade structure the router can choose.
type RouteType string

const (
	RouteVertical     RouteType = "vertical"
	RouteLongCall     RouteType = "long_call"
	RouteLongPut      RouteType = "long_put"
	RouteEquity       RouteType = "equity"
	RouteLeveragedETF RouteType = "leveraged_etf"
)

// AllRouteTypes lists every structure the bandit keeps priors for.
var AllRouteTypes = []RouteType{RouteVertical, RouteLongCall, RouteLongPut, RouteEquity, RouteLeveragedETF}

// IsOption reports whether the route is built from listed options.
func (r RouteType) IsOption() bool {
	return r == RouteVertical || r == RouteLongCall || r == RouteLongPut
}

// Valid reports whether r is a known route type.
func (r RouteType) Valid() bool {
	for _, t := range AllRouteTypes {
		if t == r {
			return true
		}
	}
	return false
}

// RouteCandidate is one concrete structure, e.g. a vertical with its strikes.
type RouteCandidate struct {
	Type   RouteType          `json:"type" validate:"required,oneof=vertical long_call long_put equity leveraged_etf"`
	Params map[string]float64 `json:"params,omitempty"`
}

// RouteSelectionContext is the read-only feature vector for a selection.
type RouteSelectionContext struct {
	IVRank           float64          `json:"ivRank" validate:"gte=0,lte=1"`
	ExpectedMove     float64          `json:"expectedMove" validate:"gte=0"`
	TrendStrength    float64          `json:"trendStrength" validate:"gte=-1,lte=1"`
	RVOL             float64          `json:"rvol" validate:"gte=0"`
	ChainQuality     float64          `json:"chainQuality" validate:"gte=0,lte=1"`
	FrictionHeadroom float64          `json:"frictionHeadroom"`
	ThetaHeadroom    float64          `json:"thetaHeadroom"`
	VegaHeadroom     float64          `json:"vegaHeadroom"`
	AvailableRoutes  []RouteCandidate `json:"availableRoutes" validate:"required,min=1,dive"`
}

// ScoredRoute carries every score component for one candidate.
type ScoredRoute struct {
	Route            RouteCandidate `json:"route"`
	ThompsonSample   float64        `json:"thompsonSample"`
	ContextScore     float64        `json:"contextScore"`
	PerformanceScore float64        `json:"performanceScore"`
	BanditScore      float64        `json:"banditScore"`
}

// RouteSelection is the router's answer.
type RouteSelection struct {
	SelectedRoute ScoredRoute   `json:"selectedRoute"`
	Alternatives  []ScoredRoute `json:"alternatives"`
	Confidence    float64       `json:"confidence"`
	Rationale     string        `json:"rationale"`
}

// BanditModel holds Beta posteriors per route and learned context weights.
type BanditModel struct {
	Alpha          map[RouteType]float64            `json:"alpha"`
	Beta           map[RouteType]float64            `json:"beta"`
	ContextWeights map[string]map[RouteType]float64 `json:"contextWeights"`
	UpdatedAt      time.Time                        `json:"updatedAt"`
}

// RoutePerformance is the realized track record of a route type.
type RoutePerformance struct {
	TotalTrades int     `json:"totalTrades"`
	Wins        int     `json:"wins"`
	TotalPnL    float64 `json:"totalPnL"`
	AvgPnL      float64 `json:"avgPnL"`
	WinRate     float64 `json:"winRate"`
	AvgFriction float64 `json:"avgFriction"`
	AvgDrawdown float64 `json:"avgDrawdown"`
}

// RouteOutcome is the realized result of a trade placed on a route.
type RouteOutcome struct {
	Route    RouteType `json:"route" validate:"required,oneof=vertical long_call long_put equity leveraged_etf"`
	PnL      float64   `json:"pnl"`
	Friction float64   `json:"friction" validate:"gte=0"`
	Drawdown float64   `json:"drawdown" validate:"gte=0"`
}

// BanditReward pairs an outcome with the context the route was chosen in.
type BanditReward struct {
	Context RouteSelectionContext `json:"context"`
	Outcome RouteOutcome          `json:"outcome" validate:"required"`
}

// RouterSnapshot is a copy of the router state for inspection.
type RouterSnapshot struct {
	Model       BanditModel                    `json:"model"`
	Performance map[RouteType]RoutePerformance `json:"performance"`
}
