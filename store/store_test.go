package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"churn-prediction-api/models"
	"churn-prediction-api/pipeline"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *PredictionStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s := New(db)
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func strPtr(s string) *string { return &s }

func prediction(id string, p float64, contract string, at time.Time) models.Prediction {
	label := string(pipeline.LabelFor(p))
	var cid *string
	if id != "" {
		cid = strPtr(id)
	}
	return models.Prediction{
		CustomerID:    cid,
		Tenure:        12,
		Contract:      contract,
		Probability:   p,
		Label:         label,
		SchemaVersion: models.CurrentSchemaVersion,
		CreatedAt:     at,
	}
}

func seed(t *testing.T, s *PredictionStore) time.Time {
	t.Helper()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := []models.Prediction{
		prediction("A", 0.10, "Two year", base),
		prediction("A", 0.70, "Month-to-month", base.Add(time.Minute)),
		prediction("B", 0.50, "One year", base.Add(2*time.Minute)),
		prediction("C", 0.95, "Month-to-month", base.Add(3*time.Minute)),
		prediction("", 0.35, "Weekly", base.Add(4*time.Minute)),
	}
	if err := s.SaveAll(context.Background(), rows); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	return base
}

func TestSaveAllPreservesOrderAndNulls(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	var rows []models.Prediction
	if err := s.DB().Order("id ASC").Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Fatalf("stored %d rows, want 5", len(rows))
	}
	wantProbs := []float64{0.10, 0.70, 0.50, 0.95, 0.35}
	for i, r := range rows {
		if r.Probability != wantProbs[i] {
			t.Errorf("row %d probability = %v, want %v", i, r.Probability, wantProbs[i])
		}
	}
	if rows[4].CustomerID != nil {
		t.Errorf("blank customer id stored as %q, want NULL", *rows[4].CustomerID)
	}
	if rows[0].PaymentMethod != nil || rows[0].Explanation != nil {
		t.Error("unset optional columns should stay NULL")
	}
}

func TestSaveAllEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveAll(context.Background(), nil); err != nil {
		t.Errorf("SaveAll(nil) = %v", err)
	}
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	base := seed(t, s)
	ctx := context.Background()

	rows, hasMore, err := s.List(ctx, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || !hasMore {
		t.Fatalf("List(2) = %d rows, hasMore=%v", len(rows), hasMore)
	}
	if rows[0].Probability != 0.35 || rows[1].Probability != 0.95 {
		t.Errorf("List not newest first: %v, %v", rows[0].Probability, rows[1].Probability)
	}

	before := base.Add(2 * time.Minute)
	rows, hasMore, err = s.List(ctx, 10, &before)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || hasMore {
		t.Errorf("List(before) = %d rows, hasMore=%v; want 2, false", len(rows), hasMore)
	}
}

func TestByCustomerAndLatest(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	rows, err := s.ByCustomer(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Probability != 0.70 {
		t.Errorf("ByCustomer(A) = %+v", rows)
	}

	latest, err := s.Latest(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	if latest.Contract != "Month-to-month" {
		t.Errorf("Latest(A).Contract = %q", latest.Contract)
	}

	if _, err := s.Latest(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest(nobody) error = %v, want ErrNotFound", err)
	}
}

func TestSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if empty != (Summary{}) {
		t.Errorf("empty Summary = %+v", empty)
	}

	seed(t, s)
	got, err := s.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := Summary{
		TotalPredictions:   5,
		HighRiskCustomers:  2,
		AverageProbability: 0.52,
		ChurnRate:          40,
	}
	if got != want {
		t.Errorf("Summary = %+v, want %+v", got, want)
	}
}

func TestDistribution(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	got, err := s.Distribution(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{1, 1, 1, 1, 1}
	if len(got) != len(want) {
		t.Fatalf("got %d buckets", len(got))
	}
	for i := range want {
		if got[i].Count != want[i] {
			t.Errorf("bucket %s = %d, want %d", got[i].Bucket, got[i].Count, want[i])
		}
	}
}

func TestDistributionBoundsInclusive(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	rows := []models.Prediction{
		prediction("x", 0.2, "One year", now),
		prediction("y", 0.8, "One year", now),
		prediction("z", 0.81, "One year", now),
	}
	if err := s.SaveAll(context.Background(), rows); err != nil {
		t.Fatal(err)
	}
	got, err := s.Distribution(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Count != 1 || got[3].Count != 1 || got[4].Count != 1 {
		t.Errorf("Distribution = %+v", got)
	}
}

func TestByContract(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	got, err := s.ByContract(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []ContractRate{
		{Contract: "Month-to-month", ChurnRate: 100},
		{Contract: "One year", ChurnRate: 0},
		{Contract: "Two year", ChurnRate: 0},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ByContract[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTopRisk(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	got, err := s.TopRisk(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("TopRisk(2) = %d entries", len(got))
	}
	if got[0].Probability != 0.95 || *got[0].CustomerID != "C" {
		t.Errorf("TopRisk[0] = %+v", got[0])
	}
	if got[1].Probability != 0.70 {
		t.Errorf("TopRisk[1] = %+v", got[1])
	}
}

func TestDeleteAll(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	n, err := s.DeleteAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("DeleteAll = %d, want 5", n)
	}
	rows, _, err := s.List(context.Background(), 10, nil)
	if err != nil || len(rows) != 0 {
		t.Errorf("after DeleteAll: %d rows, err=%v", len(rows), err)
	}
}

func TestMigrateKeepsLegacyRowsAtVersionOne(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "legacy.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	legacy := []string{
		`CREATE TABLE predictions (
			id integer PRIMARY KEY AUTOINCREMENT,
			customer_id text,
			tenure integer,
			monthly_charges real,
			contract text,
			churn_probability real,
			prediction_label text,
			created_at datetime
		)`,
		`INSERT INTO predictions (customer_id, tenure, monthly_charges, contract, churn_probability, prediction_label, created_at)
		 VALUES ('OLD', 3, 20, 'Month-to-month', 0.7, 'Likely to Churn', '2023-01-01 00:00:00')`,
	}
	for _, stmt := range legacy {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("legacy schema: %v", err)
		}
	}

	s := New(db)
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	got, err := s.Latest(context.Background(), "OLD")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got.SchemaVersion != models.SchemaV1 {
		t.Errorf("legacy row schema_version = %d, want %d", got.SchemaVersion, models.SchemaV1)
	}
	if got.PaymentMethod != nil || got.Explanation != nil {
		t.Errorf("legacy row gained values: %+v", got)
	}
}
