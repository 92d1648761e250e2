package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"churn-prediction-api/config"
	"churn-prediction-api/logger"
	"churn-prediction-api/observability"
	"churn-prediction-api/pipeline"
	"churn-prediction-api/services"
	"churn-prediction-api/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ReasonLabelFlip       = "label_flip"
	ReasonProbabilityRise = "probability_rise"
)

// Snapshot is one stored prediction for a customer.
type Snapshot struct {
	CustomerID  string
	Probability float64
	Label       string
	CreatedAt   time.Time
}

// Alert reports a customer whose latest prediction is materially worse than
// the one before it.
type Alert struct {
	TS          time.Time `json:"ts"`
	CustomerID  string    `json:"customer_id"`
	Reason      string    `json:"reason"`
	Previous    float64   `json:"previous_probability"`
	Current     float64   `json:"current_probability"`
	Delta       float64   `json:"delta"`
	Label       string    `json:"label"`
	PredictedAt time.Time `json:"predicted_at"`
}

var (
	alertsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "churn_riskwatch_alerts_generated_total",
		Help: "Total number of churn escalation alerts, by reason.",
	}, []string{"reason"})
	alertsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "churn_riskwatch_alerts_published_total",
		Help: "Total number of alerts published to Redis.",
	})
	cycleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "churn_riskwatch_cycle_failures_total",
		Help: "Total number of failed watch cycles.",
	})
	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "churn_riskwatch_cycle_duration_seconds",
		Help:    "Duration of a full watch cycle.",
		Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
	})
)

// latestTwoQuery returns, per customer, the two most recent predictions.
const latestTwoQuery = `
	SELECT customer_id, churn_probability, prediction_label, created_at
	FROM (
		SELECT customer_id, churn_probability, prediction_label, created_at,
		       ROW_NUMBER() OVER (PARTITION BY customer_id ORDER BY created_at DESC, id DESC) AS rn
		FROM predictions
		WHERE customer_id IS NOT NULL
	) ranked
	WHERE rn <= 2
	ORDER BY customer_id, created_at DESC
`

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.OpenPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("db connect failed", "error", err)
	}
	defer pool.Close()

	// Redis is required: alerts have nowhere else to go.
	cache, err := services.NewCacheService(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("redis connect failed", "error", err)
	}
	defer cache.Close()

	go func() {
		if err := observability.ServeOps(ctx, cfg.Metrics.Addr, log); err != nil {
			log.Error("metrics server failed", "error", err)
		}
	}()

	interval := time.Duration(cfg.RiskWatch.IntervalSec) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	log.Info("riskwatch running", "interval", interval.String(), "min_delta", cfg.RiskWatch.MinDelta)

	// Only predictions written after start-up can raise alerts.
	since := time.Now().UTC()
	since = runCycle(ctx, pool, cache, log, cfg.RiskWatch.MinDelta, since)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			since = runCycle(ctx, pool, cache, log, cfg.RiskWatch.MinDelta, since)
		case <-ctx.Done():
			log.Info("riskwatch shutting down")
			return
		}
	}
}

// runCycle checks every customer once and returns the watermark for the next
// cycle. On failure the watermark is left unchanged so nothing is skipped.
func runCycle(ctx context.Context, pool *pgxpool.Pool, cache *services.CacheService, log *logger.Logger, minDelta float64, since time.Time) time.Time {
	start := time.Now()
	defer func() {
		cycleDuration.Observe(time.Since(start).Seconds())
	}()

	snapshots, err := loadSnapshots(ctx, pool)
	if err != nil {
		cycleFailures.Inc()
		log.Error("load predictions failed", "error", err)
		return since
	}

	alerts := detectEscalations(snapshots, minDelta, since)
	published, failedAt := publishAlerts(alerts, func(a Alert) error {
		return cache.Publish(ctx, services.ChannelAlerts, a)
	}, log)

	log.Info("watch cycle completed",
		"customers", len(snapshots),
		"alerts", len(alerts),
		"published", published,
		"duration", time.Since(start).String(),
	)
	return nextWatermark(snapshots, since, failedAt)
}

// publishAlerts sends every alert and returns how many went out and the
// earliest PredictedAt among those that did not, or the zero time.
func publishAlerts(alerts []Alert, publish func(Alert) error, log *logger.Logger) (int, time.Time) {
	published := 0
	var failedAt time.Time
	for _, a := range alerts {
		alertsGenerated.WithLabelValues(a.Reason).Inc()
		if err := publish(a); err != nil {
			log.Warn("alert publish failed", "customer_id", a.CustomerID, "error", err)
			if failedAt.IsZero() || a.PredictedAt.Before(failedAt) {
				failedAt = a.PredictedAt
			}
			continue
		}
		alertsPublished.Inc()
		published++
	}
	return published, failedAt
}

// nextWatermark holds the watermark just below the earliest unpublished
// alert so it is raised again next cycle. Alerts published alongside it at
// or after that time may be repeated.
func nextWatermark(snapshots map[string][]Snapshot, since, failedAt time.Time) time.Time {
	w := watermark(snapshots, since)
	if failedAt.IsZero() {
		return w
	}
	if capped := failedAt.Add(-time.Nanosecond); capped.Before(w) {
		w = capped
	}
	if w.Before(since) {
		w = since
	}
	return w
}

func loadSnapshots(ctx context.Context, pool *pgxpool.Pool) (map[string][]Snapshot, error) {
	rows, err := pool.Query(ctx, latestTwoQuery)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	snaps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Snapshot, error) {
		var s Snapshot
		err := row.Scan(&s.CustomerID, &s.Probability, &s.Label, &s.CreatedAt)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan predictions: %w", err)
	}

	out := make(map[string][]Snapshot)
	for _, s := range snaps {
		out[s.CustomerID] = append(out[s.CustomerID], s)
	}
	return out, nil
}

// detectEscalations compares each customer's latest prediction with the one
// before it. Each slice is newest first. Only latest predictions newer than
// since are considered. A flip from safe to likely churn always alerts; a
// rise of at least minDelta alerts otherwise. Alerts are ordered by customer.
func detectEscalations(snapshots map[string][]Snapshot, minDelta float64, since time.Time) []Alert {
	var alerts []Alert
	for id, snaps := range snapshots {
		if len(snaps) < 2 {
			continue
		}
		cur, prev := snaps[0], snaps[1]
		if !cur.CreatedAt.After(since) {
			continue
		}

		delta := cur.Probability - prev.Probability
		var reason string
		switch {
		case cur.Label == string(pipeline.LabelLikelyChurn) && prev.Label != string(pipeline.LabelLikelyChurn):
			reason = ReasonLabelFlip
		case minDelta > 0 && delta >= minDelta:
			reason = ReasonProbabilityRise
		default:
			continue
		}

		alerts = append(alerts, Alert{
			TS:          time.Now().UTC().Truncate(time.Second),
			CustomerID:  id,
			Reason:      reason,
			Previous:    pipeline.Round(prev.Probability, 3),
			Current:     pipeline.Round(cur.Probability, 3),
			Delta:       pipeline.Round(delta, 3),
			Label:       cur.Label,
			PredictedAt: cur.CreatedAt,
		})
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].CustomerID < alerts[j].CustomerID })
	return alerts
}

// watermark returns the newest latest-prediction time seen, or since when
// nothing newer exists.
func watermark(snapshots map[string][]Snapshot, since time.Time) time.Time {
	w := since
	for _, snaps := range snapshots {
		if len(snaps) > 0 && snaps[0].CreatedAt.After(w) {
			w = snaps[0].CreatedAt
		}
	}
	return w
}
