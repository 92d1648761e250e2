package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"churn-prediction-api/logger"
	"churn-prediction-api/models"
	"churn-prediction-api/observability"
	"churn-prediction-api/pipeline"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrPersistence wraps any failure to store computed predictions.
var ErrPersistence = errors.New("failed to save predictions")

// PredictionSaver stores a batch of predictions atomically.
type PredictionSaver interface {
	SaveAll(ctx context.Context, rows []models.Prediction) error
}

type PredictionService struct {
	runner *pipeline.Runner
	store  PredictionSaver
	text   TextService
	cache  *CacheService
	log    *logger.Logger
}

func NewPredictionService(source pipeline.ClassifierSource, store PredictionSaver, text TextService, cache *CacheService, log *logger.Logger) *PredictionService {
	if cache == nil {
		cache = Disabled()
	}
	return &PredictionService{
		runner: pipeline.NewRunner(source),
		store:  store,
		text:   text,
		cache:  cache,
		log:    log,
	}
}

type SingleResult struct {
	CustomerID  *string        `json:"customer_id,omitempty"`
	Probability float64        `json:"probability"`
	Label       pipeline.Label `json:"label"`
	Explanation string         `json:"explanation"`
	Reasons     []string       `json:"reasons"`
}

// PredictSingle scores one record, explains it, and stores it.
func (s *PredictionService) PredictSingle(ctx context.Context, raw pipeline.RawRecord) (*SingleResult, error) {
	ctx, span := otel.Tracer(observability.TracerName).Start(ctx, "predict.single")
	defer span.End()

	record := pipeline.NormalizeRecord(raw)
	customerID := pipeline.RecordCustomerID(raw)

	probs, err := s.infer(ctx, []pipeline.FeatureRecord{record})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	result := pipeline.Assemble([]pipeline.FeatureRecord{record}, []*string{customerID}, probs)[0]
	predictionsTotal.WithLabelValues("single").Inc()
	if result.Label == pipeline.LabelLikelyChurn {
		likelyChurnTotal.Inc()
	}

	features := record.Map()
	if customerID != nil {
		features[pipeline.CustomerIDJSONKey] = *customerID
	}
	explanation := s.text.ExplainSingle(ctx, features, result.RawProbability)

	row := ToPrediction(result, nil, &explanation)
	if err := s.persist(ctx, []models.Prediction{row}); err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.log.Error("persist single prediction", "customer_id", customerID, "probability", result.Probability, "error", err)
		return nil, err
	}

	return &SingleResult{
		CustomerID:  customerID,
		Probability: result.Probability,
		Label:       result.Label,
		Explanation: explanation,
		Reasons:     []string{},
	}, nil
}

type BatchResult struct {
	BatchID    string
	Table      *pipeline.Table
	Results    []pipeline.Result
	AutoFilled []string
	Outcome    pipeline.Outcome
	Rows       []models.Prediction
	// Summary is empty unless requested.
	Summary string
}

// PredictBatch decodes an uploaded CSV, scores every row with one classifier
// call, and stores all rows under a fresh batch id. A *pipeline.ValidationError
// is returned for structurally unusable uploads.
func (s *PredictionService) PredictBatch(ctx context.Context, r io.Reader, summarize bool) (*BatchResult, error) {
	ctx, span := otel.Tracer(observability.TracerName).Start(ctx, "predict.batch")
	defer span.End()

	table, err := pipeline.ReadCSV(r)
	if err != nil {
		predictionsFailed.WithLabelValues("decode").Inc()
		return nil, err
	}
	batch := pipeline.NormalizeBatch(table)
	for _, col := range batch.AutoFilled {
		autoFilledColumns.WithLabelValues(col).Inc()
	}
	batchRows.Observe(float64(len(batch.Records)))
	span.SetAttributes(
		attribute.Int("batch.rows", len(batch.Records)),
		attribute.StringSlice("batch.auto_filled", batch.AutoFilled),
	)

	probs, err := s.infer(ctx, batch.Records)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	results := pipeline.Assemble(batch.Records, batch.CustomerIDs, probs)
	outcome := pipeline.Summarize(results)
	predictionsTotal.WithLabelValues("batch").Add(float64(len(results)))
	likelyChurnTotal.Add(float64(outcome.LikelyChurn))

	batchID := uuid.NewString()
	rows := make([]models.Prediction, len(results))
	for i, res := range results {
		rows[i] = ToPrediction(res, &batchID, nil)
	}
	if err := s.persist(ctx, rows); err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.log.Error("persist batch", "batch_id", batchID, "rows", len(rows),
			"likely_churn", outcome.LikelyChurn, "error", err)
		return nil, err
	}

	out := &BatchResult{
		BatchID:    batchID,
		Table:      table,
		Results:    results,
		AutoFilled: batch.AutoFilled,
		Outcome:    outcome,
		Rows:       rows,
	}
	if summarize {
		out.Summary = s.text.SummarizeBatch(ctx, outcome)
	}
	return out, nil
}

func (s *PredictionService) infer(ctx context.Context, records []pipeline.FeatureRecord) ([]float64, error) {
	ctx, span := otel.Tracer(observability.TracerName).Start(ctx, "classifier.predict")
	defer span.End()
	span.SetAttributes(attribute.Int("rows", len(records)))

	start := time.Now()
	probs, err := s.runner.Run(ctx, records)
	inferenceDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		predictionsFailed.WithLabelValues("inference").Inc()
		span.RecordError(err)
		return nil, err
	}
	return probs, nil
}

// persist stores rows, then fans them out to live subscribers and drops the
// cached analytics. Fan-out runs in the background and never fails the call.
func (s *PredictionService) persist(ctx context.Context, rows []models.Prediction) error {
	if err := s.store.SaveAll(ctx, rows); err != nil {
		predictionsFailed.WithLabelValues("persist").Inc()
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if !s.cache.Available() {
		return nil
	}
	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.cache.DeletePrefix(bg, AnalyticsKeyPrefix); err != nil {
			s.log.Warn("analytics cache invalidation failed", "error", err)
		}
		for _, row := range rows {
			if err := s.cache.Publish(bg, ChannelPredictions, row); err != nil {
				s.log.Warn("publish prediction failed", "error", err)
				return
			}
		}
	}()
	return nil
}

// ToPrediction maps an assembled result onto its stored row.
func ToPrediction(r pipeline.Result, batchID, explanation *string) models.Prediction {
	payment := r.Record.PaymentMethod
	return models.Prediction{
		CustomerID:     r.CustomerID,
		BatchID:        batchID,
		Tenure:         r.Record.Tenure,
		MonthlyCharges: r.Record.MonthlyCharges,
		Contract:       r.Record.Contract,
		PaymentMethod:  &payment,
		Probability:    r.RawProbability,
		Label:          string(r.Label),
		Explanation:    explanation,
		SchemaVersion:  models.CurrentSchemaVersion,
	}
}
