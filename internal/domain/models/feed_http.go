package models

// Requests for the feed control/read HTTP endpoints. Defined in domain for
// consistency and reuse.

type CreateFeedRequest struct {
	Type                 string   `json:"type" default:"auto" validate:"oneof=historical simulated hybrid auto"`
	Symbols              []string `json:"symbols" validate:"required,min=1,dive,required"`
	ReplaySpeed          float64  `json:"replay_speed" default:"1" validate:"gt=0"`
	EnableAnomalies      bool     `json:"enable_anomalies"`
	AnomalyFrequency     float64  `json:"anomaly_frequency" default:"6" validate:"gte=0"`
	VolatilityMultiplier float64  `json:"volatility_multiplier" default:"1" validate:"gt=0"`
	LiquidityMultiplier  float64  `json:"liquidity_multiplier" default:"1" validate:"gt=0"`
	AutoStart            bool     `json:"auto_start"`
}

type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=5000"`
}

type TicksRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Limit  int    `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=10000"`
}

type SymbolRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type SeekRequest struct {
	Timestamp string `json:"timestamp" validate:"required"` // RFC3339 or unix seconds
}

type SpeedRequest struct {
	Speed float64 `json:"speed" validate:"required,gt=0"`
}

type InjectAnomalyRequest struct {
	Type        string   `json:"type" validate:"required,oneof=mev_sandwich mev_frontrun flash_loan arbitrage"`
	Severity    string   `json:"severity" default:"medium" validate:"oneof=low medium high extreme"`
	DurationMs  int64    `json:"duration_ms" default:"60000" validate:"gt=0"`
	Symbols     []string `json:"symbols" validate:"required,min=1"`
	Description string   `json:"description"`
}
