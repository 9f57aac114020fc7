package models

// StrategyParameters is the part of a candidate that identifies its logic.
type StrategyParameters struct {
	EntrySignals []string           `json:"entrySignals"`
	ExitSignals  []string           `json:"exitSignals"`
	StopLoss     float64            `json:"stopLoss"`
	TakeProfit   float64            `json:"takeProfit"`
	Timeframe    string             `json:"timeframe"`
	Extra        map[string]float64 `json:"extra,omitempty"`
}

// BacktestMetrics summarizes an in-sample run. Zero TradeCount means unknown.
type BacktestMetrics struct {
	TradeCount int     `json:"tradeCount"`
	WinRate    float64 `json:"winRate"`
	AvgWin     float64 `json:"avgWin"`
	AvgLoss    float64 `json:"avgLoss"`
}

// EvolutionCandidate is a strategy under evaluation by the search process.
type EvolutionCandidate struct {
	ID                 string             `json:"id" validate:"required"`
	Parameters         StrategyParameters `json:"parameters"`
	Metrics            BacktestMetrics    `json:"metrics"`
	Fitness            float64            `json:"fitness"`
	NoveltyPenalty     float64            `json:"noveltyPenalty"`
	AdversarialPenalty float64            `json:"adversarialPenalty"`
	Fingerprint        string             `json:"fingerprint,omitempty"`
}

// AdversarialSegment is a stressed market period a candidate must survive.
type AdversarialSegment struct {
	Name           string  `json:"name"`
	Days           int     `json:"days"`
	WinRateShift   float64 `json:"winRateShift"`
	WinMultiplier  float64 `json:"winMultiplier"`
	LossMultiplier float64 `json:"lossMultiplier"`
	TradeFrequency float64 `json:"tradeFrequency"`
}

// SegmentResult is the outcome of one candidate on one segment.
type SegmentResult struct {
	CandidateID string  `json:"candidateId"`
	Segment     string  `json:"segment"`
	Sharpe      float64 `json:"sharpe"`
	Penalty     float64 `json:"penalty"`
}

type CorrelationCheck struct {
	Allowed        bool    `json:"allowed"`
	Reason         string  `json:"reason,omitempty"`
	Correlation    float64 `json:"correlation"`
	ConflictingBot string  `json:"conflictingBot,omitempty"`
	Fingerprint    string  `json:"fingerprint"`
}

type OptimizationStats struct {
	CacheSize              int              `json:"cacheSize"`
	CacheHits              int64            `json:"cacheHits"`
	CacheMisses            int64            `json:"cacheMisses"`
	CacheHitRate           float64          `json:"cacheHitRate"`
	UniqueFingerprints     int              `json:"uniqueFingerprints"`
	AdversarialEvaluations int              `json:"adversarialEvaluations"`
	WorstAdversarialSharpe float64          `json:"worstAdversarialSharpe"`
	ActiveBots             int              `json:"activeBots"`
	MaxPairwiseCorrelation float64          `json:"maxPairwiseCorrelation"`
	DiversificationScore   float64          `json:"diversificationScore"`
	LiveOutcomes           int              `json:"liveOutcomes"`
	WorstLiveSharpe        float64          `json:"worstLiveSharpe"`
	LiveBots               []BotPerformance `json:"liveBots,omitempty"`
}

// BotPerformance is the live track record of a registered bot.
type BotPerformance struct {
	BotID    string  `json:"botId"`
	Active   bool    `json:"active"`
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	WinRate  float64 `json:"winRate"`
	TotalPnL float64 `json:"totalPnL"`
	AvgPnL   float64 `json:"avgPnL"`
	// Sharpe is per-trade mean over standard deviation, scaled by sqrt(trades).
	Sharpe float64 `json:"sharpe"`
}

// EvolutionBatch is a set of candidates scored asynchronously by the guard.
type EvolutionBatch struct {
	BatchID    string               `json:"batchId"`
	Candidates []EvolutionCandidate `json:"candidates" validate:"required,min=1,dive"`
}

// EvolutionBatchResult is published once a batch has been scored.
type EvolutionBatchResult struct {
	BatchID    string               `json:"batchId"`
	Candidates []EvolutionCandidate `json:"candidates"`
	Segments   []SegmentResult      `json:"segments"`
}
