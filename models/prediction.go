package models

import "time"

// Prediction schema versions. Version 2 added payment_method, version 3 the
// stored explanation; older rows leave those columns NULL.
const (
	SchemaV1 = 1
	SchemaV2 = 2
	SchemaV3 = 3

	CurrentSchemaVersion = SchemaV3
)

type Prediction struct {
	ID             uint      `gorm:"column:id;primaryKey" json:"id"`
	CustomerID     *string   `gorm:"column:customer_id;index" json:"customer_id"`
	BatchID        *string   `gorm:"column:batch_id;index" json:"batch_id,omitempty"`
	Tenure         int       `gorm:"column:tenure" json:"tenure"`
	MonthlyCharges float64   `gorm:"column:monthly_charges" json:"monthly_charges"`
	Contract       string    `gorm:"column:contract" json:"contract"`
	PaymentMethod  *string   `gorm:"column:payment_method" json:"payment_method"`
	Probability    float64   `gorm:"column:churn_probability" json:"probability"`
	Label          string    `gorm:"column:prediction_label" json:"label"`
	Explanation    *string   `gorm:"column:explanation;type:text" json:"explanation,omitempty"`
	// Rows that predate the column migrate in as version 1.
	SchemaVersion  int       `gorm:"column:schema_version;default:1" json:"schema_version"`
	CreatedAt      time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (Prediction) TableName() string { return "predictions" }
