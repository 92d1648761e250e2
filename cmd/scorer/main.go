package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"churn-prediction-api/classifier"
	"churn-prediction-api/config"
	"churn-prediction-api/logger"
	"churn-prediction-api/models"
	"churn-prediction-api/pipeline"
	"churn-prediction-api/services"
	"churn-prediction-api/store"
)

// discardSaver is used with -dry-run; nothing is stored.
type discardSaver struct{}

func (discardSaver) SaveAll(context.Context, []models.Prediction) error { return nil }

func main() {
	in := flag.String("in", "", "CSV file to score (required)")
	out := flag.String("out", "", "write the scored CSV here")
	dryRun := flag.Bool("dry-run", false, "score without storing or publishing")
	flag.Parse()

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

	if *in == "" {
		log.Fatal("-in is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var saver services.PredictionSaver = discardSaver{}
	cache := services.Disabled()
	if !*dryRun {
		pool, err := store.OpenPool(ctx, cfg.Database)
		if err != nil {
			log.Fatal("db connect failed", "error", err)
		}
		defer pool.Close()
		saver = store.NewPgxSaver(pool)

		cache, err = services.NewCacheService(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn("redis unavailable, predictions will not be published", "error", err)
		}
		defer cache.Close()
	}

	model := classifier.NewProvider(classifier.FromConfig(cfg.Model))
	// The service gets a disabled cache so rows are published synchronously below.
	svc := services.NewPredictionService(model, saver, services.NoText{}, nil, log)

	src, err := os.Open(*in)
	if err != nil {
		log.Fatal("open input failed", "path", *in, "error", err)
	}
	defer src.Close()

	var dst io.Writer
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatal("create output failed", "path", *out, "error", err)
		}
		defer f.Close()
		dst = f
	}

	start := time.Now()
	res, err := scoreFile(ctx, svc, src, dst)
	if err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			log.Fatal("input rejected", "path", *in, "error", err)
		}
		log.Fatal("scoring failed", "path", *in, "error", err)
	}

	published := publishRows(ctx, cache, res.Rows)
	log.Info("batch scored",
		"batch_id", res.BatchID,
		"rows", res.Outcome.TotalRows,
		"likely_churn", res.Outcome.LikelyChurn,
		"churn_rate", res.Outcome.ChurnRate,
		"average_probability", res.Outcome.AverageProbability,
		"auto_filled", res.AutoFilled,
		"published", published,
		"dry_run", *dryRun,
		"duration", time.Since(start).String(),
	)
}

// scoreFile scores and stores one CSV and, when dst is set, writes the
// export table to it.
func scoreFile(ctx context.Context, svc *services.PredictionService, src io.Reader, dst io.Writer) (*services.BatchResult, error) {
	res, err := svc.PredictBatch(ctx, src, false)
	if err != nil {
		return nil, err
	}
	if dst != nil {
		if err := pipeline.WriteExport(dst, res.Table, res.Results); err != nil {
			return nil, fmt.Errorf("write export: %w", err)
		}
	}
	return res, nil
}

// publishRows sends every stored row to the live channel and returns how
// many went out. It stops at the first failure.
func publishRows(ctx context.Context, cache *services.CacheService, rows []models.Prediction) int {
	if !cache.Available() {
		return 0
	}
	for i, row := range rows {
		if err := cache.Publish(ctx, services.ChannelPredictions, row); err != nil {
			return i
		}
	}
	return len(rows)
}
