// Package pipeline turns raw customer feature rows into churn predictions:
// schema completion and coercion, one classifier call per batch, labelling,
// and assembly of the results handed to storage and to clients.
package pipeline

import "strings"

type Kind int

const (
	Categorical Kind = iota
	Integer
	Float
	// Derived fields fall back to a value computed from other fields.
	Derived
)

type Field struct {
	Column  string
	JSONKey string
	Kind    Kind
	Default string
}

const (
	CustomerIDColumn  = "customerID"
	CustomerIDJSONKey = "customer_id"

	// fallback for categorical fields without a registered default
	categoricalFallback = "No"
)

var schema = []Field{
	{Column: "gender", JSONKey: "gender", Kind: Categorical, Default: "Male"},
	{Column: "SeniorCitizen", JSONKey: "senior_citizen", Kind: Integer, Default: "0"},
	{Column: "Partner", JSONKey: "partner", Kind: Categorical, Default: "No"},
	{Column: "Dependents", JSONKey: "dependents", Kind: Categorical, Default: "No"},
	{Column: "tenure", JSONKey: "tenure", Kind: Integer, Default: "0"},
	{Column: "PhoneService", JSONKey: "phone_service", Kind: Categorical, Default: "Yes"},
	{Column: "MultipleLines", JSONKey: "multiple_lines", Kind: Categorical, Default: "No"},
	{Column: "InternetService", JSONKey: "internet_service", Kind: Categorical, Default: "DSL"},
	{Column: "OnlineSecurity", JSONKey: "online_security", Kind: Categorical, Default: "No"},
	{Column: "OnlineBackup", JSONKey: "online_backup", Kind: Categorical, Default: "No"},
	{Column: "DeviceProtection", JSONKey: "device_protection", Kind: Categorical, Default: "No"},
	{Column: "TechSupport", JSONKey: "tech_support", Kind: Categorical, Default: "No"},
	{Column: "StreamingTV", JSONKey: "streaming_tv", Kind: Categorical, Default: "No"},
	{Column: "StreamingMovies", JSONKey: "streaming_movies", Kind: Categorical, Default: "No"},
	{Column: "Contract", JSONKey: "contract", Kind: Categorical, Default: "Month-to-month"},
	{Column: "PaperlessBilling", JSONKey: "paperless_billing", Kind: Categorical, Default: "Yes"},
	{Column: "PaymentMethod", JSONKey: "payment_method", Kind: Categorical, Default: "Electronic check"},
	{Column: "MonthlyCharges", JSONKey: "monthly_charges", Kind: Float, Default: "0"},
	{Column: "TotalCharges", JSONKey: "total_charges", Kind: Derived},
}

// Contract values the classifier was trained on.
var Contracts = []string{"Month-to-month", "One year", "Two year"}

// Schema returns the ordered feature fields. The customer identifier is not
// a feature and is not part of it.
func Schema() []Field {
	out := make([]Field, len(schema))
	copy(out, schema)
	return out
}

// Columns returns the feature column names in schema order.
func Columns() []string {
	out := make([]string, len(schema))
	for i, f := range schema {
		out[i] = f.Column
	}
	return out
}

// Lookup finds a field by column name or JSON key, ignoring case.
func Lookup(name string) (Field, bool) {
	name = strings.TrimSpace(name)
	for _, f := range schema {
		if strings.EqualFold(f.Column, name) || strings.EqualFold(f.JSONKey, name) {
			return f, true
		}
	}
	return Field{}, false
}

func isCustomerIDColumn(name string) bool {
	name = strings.TrimSpace(name)
	return strings.EqualFold(name, CustomerIDColumn) || strings.EqualFold(name, CustomerIDJSONKey)
}
