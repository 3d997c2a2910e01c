package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/feed"
	applogger "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/logger"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/queue"
)

// AnomalyJobType is the queue message type consumed by AnomalyInjectJob.
const AnomalyJobType = "anomaly.inject"

// AnomalyJobPayload is the queued request to inject an anomaly into a
// running feed. External tools enqueue these through Redis instead of
// hitting the HTTP API.
type AnomalyJobPayload struct {
	FeedID      string   `json:"feed_id"`
	Type        string   `json:"type"`
	Severity    string   `json:"severity"`
	DurationMs  int64    `json:"duration_ms"`
	Symbols     []string `json:"symbols"`
	Description string   `json:"description"`
}

// AnomalyInjectJob delivers queued anomalies to feeds in the factory
// registry.
type AnomalyInjectJob struct {
	l       *applogger.Logger
	factory *feed.Factory
}

func NewAnomalyInjectJob(l *applogger.Logger, factory *feed.Factory) *AnomalyInjectJob {
	return &AnomalyInjectJob{l: l, factory: factory}
}

func (j *AnomalyInjectJob) Name() string { return "anomaly_inject" }
func (j *AnomalyInjectJob) Type() string { return AnomalyJobType }

func (j *AnomalyInjectJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[AnomalyJobPayload](payload)
	if err != nil {
		return fmt.Errorf("anomaly job payload: %w", err)
	}
	if p.Type == "" || len(p.Symbols) == 0 {
		return fmt.Errorf("anomaly job requires type and symbols")
	}

	f, ok := j.factory.Get(p.FeedID)
	if !ok {
		return fmt.Errorf("feed not found: %s", p.FeedID)
	}

	severity := p.Severity
	if severity == "" {
		severity = models.SeverityMedium
	}
	durationMs := p.DurationMs
	if durationMs <= 0 {
		durationMs = 60_000
	}

	f.InjectAnomaly(models.MarketAnomaly{
		Type:            p.Type,
		Severity:        severity,
		Timestamp:       time.Now(),
		Duration:        time.Duration(durationMs) * time.Millisecond,
		AffectedSymbols: p.Symbols,
		Description:     p.Description,
	})
	j.l.Info("queued anomaly injected",
		applogger.String("feed", p.FeedID),
		applogger.String("type", p.Type),
		applogger.String("severity", severity),
	)
	return nil
}

var _ queue.Job = (*AnomalyInjectJob)(nil)
