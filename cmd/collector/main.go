package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"churn-prediction-api/classifier"
	"churn-prediction-api/config"
	"churn-prediction-api/logger"
	"churn-prediction-api/models"
	"churn-prediction-api/observability"
	"churn-prediction-api/pipeline"
	"churn-prediction-api/services"
	"churn-prediction-api/store"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	msgsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "churn_collector_messages_received_total",
		Help: "Total number of MQTT messages received by the collector.",
	})
	recordsScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "churn_collector_records_scored_total",
		Help: "Total number of customer records scored and stored.",
	})
	msgsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "churn_collector_messages_failed_total",
		Help: "Total number of messages rejected or failed, by stage.",
	}, []string{"stage"})
)

var errEmptyPayload = errors.New("payload carries no records")

// collector scores customer feature messages as they arrive.
type collector struct {
	runner *pipeline.Runner
	saver  services.PredictionSaver
	cache  *services.CacheService
	log    *logger.Logger
}

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

	cache, err := services.NewCacheService(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn("redis unavailable, skipping live publish", "error", err)
	}
	defer cache.Close()

	model := classifier.NewProvider(classifier.FromConfig(cfg.Model))
	if _, err := model.Classifier(ctx); err != nil {
		log.Fatal("classifier failed to load", "kind", cfg.Model.Kind, "path", cfg.Model.Path, "error", err)
	}

	c := &collector{
		runner: pipeline.NewRunner(model),
		saver:  store.NewPgxSaver(pool),
		cache:  cache,
		log:    log,
	}

	go func() {
		if err := observability.ServeOps(ctx, cfg.Metrics.Addr, log); err != nil {
			log.Error("metrics server failed", "error", err)
		}
	}()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.URL)
	opts.SetClientID("churn-collector-" + time.Now().Format("20060102150405"))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, message mqtt.Message) {
		if n, err := c.processMessage(ctx, message.Payload()); err != nil {
			log.Warn("message dropped", "topic", message.Topic(), "error", err)
		} else {
			log.Debug("message scored", "topic", message.Topic(), "records", n)
		}
	})
	opts.OnConnect = func(client mqtt.Client) {
		token := client.Subscribe(cfg.MQTT.Topic, 1, nil)
		token.Wait()
		if token.Error() != nil {
			log.Error("mqtt subscribe failed", "topic", cfg.MQTT.Topic, "error", token.Error())
			return
		}
		log.Info("collector subscribed", "topic", cfg.MQTT.Topic)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if token.Error() != nil {
		log.Fatal("mqtt connection failed", "url", cfg.MQTT.URL, "error", token.Error())
	}

	log.Info("collector running", "mqtt", cfg.MQTT.URL, "metrics", cfg.Metrics.Addr)

	<-ctx.Done()
	log.Info("collector shutting down")
	client.Disconnect(250)
}

// processMessage scores one message, a JSON object or an array of objects
// keyed like the single-prediction request, and stores the rows. It returns
// the number of records stored.
func (c *collector) processMessage(ctx context.Context, payload []byte) (int, error) {
	msgsReceived.Inc()

	raws, err := decodeRecords(payload)
	if err != nil {
		msgsFailed.WithLabelValues("decode").Inc()
		return 0, err
	}

	records := make([]pipeline.FeatureRecord, len(raws))
	ids := make([]*string, len(raws))
	for i, raw := range raws {
		records[i] = pipeline.NormalizeRecord(raw)
		ids[i] = pipeline.RecordCustomerID(raw)
	}

	probs, err := c.runner.Run(ctx, records)
	if err != nil {
		msgsFailed.WithLabelValues("inference").Inc()
		return 0, err
	}

	results := pipeline.Assemble(records, ids, probs)
	rows := make([]models.Prediction, len(results))
	for i, r := range results {
		rows[i] = services.ToPrediction(r, nil, nil)
	}
	if err := c.saver.SaveAll(ctx, rows); err != nil {
		msgsFailed.WithLabelValues("persist").Inc()
		return 0, fmt.Errorf("%w: %v", services.ErrPersistence, err)
	}
	recordsScored.Add(float64(len(rows)))

	if c.cache.Available() {
		if err := c.cache.DeletePrefix(ctx, services.AnalyticsKeyPrefix); err != nil {
			c.log.Warn("analytics cache invalidation failed", "error", err)
		}
		for _, row := range rows {
			if err := c.cache.Publish(ctx, services.ChannelPredictions, row); err != nil {
				c.log.Warn("publish prediction failed", "error", err)
				break
			}
		}
	}
	return len(rows), nil
}

func decodeRecords(payload []byte) ([]pipeline.RawRecord, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, errEmptyPayload
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var raws []pipeline.RawRecord
	if trimmed[0] == '[' {
		if err := dec.Decode(&raws); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
	} else {
		var raw pipeline.RawRecord
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		raws = []pipeline.RawRecord{raw}
	}

	out := raws[:0]
	for _, r := range raws {
		if r != nil {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, errEmptyPayload
	}
	return out, nil
}
