package models

import "time"

// Feed types understood by the factory.
const (
	FeedTypeHistorical = "historical"
	FeedTypeSimulated  = "simulated"
	FeedTypeHybrid     = "hybrid"
	FeedTypeAuto       = "auto"
)

// Replay speed bounds; SetReplaySpeed clamps into this range.
const (
	MinReplaySpeed = 0.1
	MaxReplaySpeed = 1000
)

// FeedConfig is the per-feed configuration consumed at Initialize. It is a
// value type: feeds replace it wholesale on Initialize/UpdateConfig and
// never mutate a caller's copy.
type FeedConfig struct {
	Symbols              []string
	ReplaySpeed          float64
	EnableAnomalies      bool
	AnomalyFrequency     float64 // events per hour
	VolatilityMultiplier float64
	LiquidityMultiplier  float64
}

// Normalized returns a copy with defaults applied and the replay speed
// clamped into [MinReplaySpeed, MaxReplaySpeed].
func (c FeedConfig) Normalized() FeedConfig {
	out := c
	out.Symbols = append([]string(nil), c.Symbols...)
	if out.ReplaySpeed == 0 {
		out.ReplaySpeed = 1
	}
	out.ReplaySpeed = ClampReplaySpeed(out.ReplaySpeed)
	if out.VolatilityMultiplier == 0 {
		out.VolatilityMultiplier = 1
	}
	if out.LiquidityMultiplier == 0 {
		out.LiquidityMultiplier = 1
	}
	return out
}

// ClampReplaySpeed bounds x into the supported replay speed range.
func ClampReplaySpeed(x float64) float64 {
	if x < MinReplaySpeed {
		return MinReplaySpeed
	}
	if x > MaxReplaySpeed {
		return MaxReplaySpeed
	}
	return x
}

// FeedStatistics is the running counters owned and mutated only by a feed.
type FeedStatistics struct {
	FeedType           string
	TicksProcessed     int64
	CandlesProcessed   int64
	AnomaliesGenerated int64
	CurrentTimestamp   time.Time
	DataLatency        time.Duration
	IsRealTime         bool
	Uptime             time.Duration
}
