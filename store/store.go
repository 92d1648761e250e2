// Package store persists predictions and answers the history and analytics
// queries over them.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"churn-prediction-api/models"
	"churn-prediction-api/pipeline"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")

// saveBatchSize bounds the rows per INSERT statement.
const saveBatchSize = 500

type PredictionStore struct {
	db *gorm.DB
}

func New(db *gorm.DB) *PredictionStore {
	return &PredictionStore{db: db}
}

func (s *PredictionStore) DB() *gorm.DB { return s.db }

// Migrate creates or updates the tables this service owns.
func (s *PredictionStore) Migrate() error {
	return s.db.AutoMigrate(&models.Prediction{}, &models.User{})
}

// SaveAll writes every prediction in one transaction, preserving order.
// Either all rows are stored or none are.
func (s *PredictionStore) SaveAll(ctx context.Context, rows []models.Prediction) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(rows, saveBatchSize).Error; err != nil {
			return fmt.Errorf("insert predictions: %w", err)
		}
		return nil
	})
}

// List returns up to limit predictions older than before, newest first, and
// whether more exist.
func (s *PredictionStore) List(ctx context.Context, limit int, before *time.Time) ([]models.Prediction, bool, error) {
	query := s.db.WithContext(ctx).Model(&models.Prediction{}).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1)
	if before != nil {
		query = query.Where("created_at < ?", *before)
	}

	var rows []models.Prediction
	if err := query.Find(&rows).Error; err != nil {
		return nil, false, err
	}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	return rows, hasMore, nil
}

func (s *PredictionStore) ByCustomer(ctx context.Context, customerID string) ([]models.Prediction, error) {
	var rows []models.Prediction
	err := s.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// Latest returns the customer's most recent prediction.
func (s *PredictionStore) Latest(ctx context.Context, customerID string) (*models.Prediction, error) {
	var row models.Prediction
	err := s.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Order("id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// DeleteAll removes every stored prediction and returns how many were removed.
func (s *PredictionStore) DeleteAll(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Prediction{})
	return res.RowsAffected, res.Error
}

type Summary struct {
	TotalPredictions   int64   `json:"total_predictions"`
	HighRiskCustomers  int64   `json:"high_risk_customers"`
	AverageProbability float64 `json:"average_probability"`
	ChurnRate          float64 `json:"churn_rate"`
}

func (s *PredictionStore) Summary(ctx context.Context) (Summary, error) {
	var row struct {
		Total    int64
		HighRisk int64
		Average  float64
	}
	err := s.db.WithContext(ctx).Model(&models.Prediction{}).
		Select(
			"COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN churn_probability > ? THEN 1 ELSE 0 END), 0) AS high_risk, "+
				"COALESCE(AVG(churn_probability), 0) AS average",
			pipeline.ChurnThreshold,
		).
		Scan(&row).Error
	if err != nil {
		return Summary{}, err
	}

	out := Summary{
		TotalPredictions:   row.Total,
		HighRiskCustomers:  row.HighRisk,
		AverageProbability: pipeline.Round(row.Average, 3),
	}
	if row.Total > 0 {
		out.ChurnRate = pipeline.Round(float64(row.HighRisk)/float64(row.Total)*100, 2)
	}
	return out, nil
}

type Bucket struct {
	Bucket string `json:"bucket"`
	Count  int64  `json:"count"`
}

// distributionBounds are the inclusive upper bounds of the first four
// buckets; the last bucket takes everything above 0.8.
var distributionBounds = []float64{0.2, 0.4, 0.6, 0.8}

var bucketNames = []string{"0-0.2", "0.2-0.4", "0.4-0.6", "0.6-0.8", "0.8-1.0"}

func (s *PredictionStore) Distribution(ctx context.Context) ([]Bucket, error) {
	var rows []struct {
		Idx   int
		Count int64
	}
	b := distributionBounds
	err := s.db.WithContext(ctx).Model(&models.Prediction{}).
		Select(
			"CASE WHEN churn_probability <= ? THEN 0 "+
				"WHEN churn_probability <= ? THEN 1 "+
				"WHEN churn_probability <= ? THEN 2 "+
				"WHEN churn_probability <= ? THEN 3 "+
				"ELSE 4 END AS idx, COUNT(*) AS count",
			b[0], b[1], b[2], b[3],
		).
		Group("idx").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]Bucket, len(bucketNames))
	for i, name := range bucketNames {
		out[i].Bucket = name
	}
	for _, r := range rows {
		if r.Idx >= 0 && r.Idx < len(out) {
			out[r.Idx].Count = r.Count
		}
	}
	return out, nil
}

type ContractRate struct {
	Contract  string  `json:"contract"`
	ChurnRate float64 `json:"churn_rate"`
}

// ByContract returns the churn rate (percent) for each known contract type.
// Rows with other contract values are ignored.
func (s *PredictionStore) ByContract(ctx context.Context) ([]ContractRate, error) {
	var rows []struct {
		Contract string
		Total    int64
		Churned  int64
	}
	err := s.db.WithContext(ctx).Model(&models.Prediction{}).
		Select(
			"contract, COUNT(*) AS total, "+
				"SUM(CASE WHEN prediction_label = ? THEN 1 ELSE 0 END) AS churned",
			string(pipeline.LabelLikelyChurn),
		).
		Where("contract IN ?", pipeline.Contracts).
		Group("contract").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]ContractRate, len(pipeline.Contracts))
	for i, c := range pipeline.Contracts {
		out[i].Contract = c
		for _, r := range rows {
			if r.Contract == c && r.Total > 0 {
				out[i].ChurnRate = pipeline.Round(float64(r.Churned)/float64(r.Total)*100, 2)
			}
		}
	}
	return out, nil
}

type RiskEntry struct {
	CustomerID  *string `json:"customer_id"`
	Probability float64 `json:"probability"`
	Contract    string  `json:"contract"`
	Tenure      int     `json:"tenure"`
	Label       string  `json:"label"`
}

func (s *PredictionStore) TopRisk(ctx context.Context, n int) ([]RiskEntry, error) {
	var rows []models.Prediction
	err := s.db.WithContext(ctx).
		Order("churn_probability DESC").
		Order("id ASC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]RiskEntry, len(rows))
	for i, r := range rows {
		out[i] = RiskEntry{
			CustomerID:  r.CustomerID,
			Probability: pipeline.Round(r.Probability, 3),
			Contract:    r.Contract,
			Tenure:      r.Tenure,
			Label:       r.Label,
		}
	}
	return out, nil
}
