package pipeline

// RawRecord is one unnormalized row keyed by column name or JSON key.
// Values may be missing, blank, or of the wrong type.
type RawRecord map[string]any

// FeatureRecord is one customer's feature vector, fully typed and complete.
type FeatureRecord struct {
	Gender           string  `json:"gender"`
	SeniorCitizen    int     `json:"senior_citizen"`
	Partner          string  `json:"partner"`
	Dependents       string  `json:"dependents"`
	Tenure           int     `json:"tenure"`
	PhoneService     string  `json:"phone_service"`
	MultipleLines    string  `json:"multiple_lines"`
	InternetService  string  `json:"internet_service"`
	OnlineSecurity   string  `json:"online_security"`
	OnlineBackup     string  `json:"online_backup"`
	DeviceProtection string  `json:"device_protection"`
	TechSupport      string  `json:"tech_support"`
	StreamingTV      string  `json:"streaming_tv"`
	StreamingMovies  string  `json:"streaming_movies"`
	Contract         string  `json:"contract"`
	PaperlessBilling string  `json:"paperless_billing"`
	PaymentMethod    string  `json:"payment_method"`
	MonthlyCharges   float64 `json:"monthly_charges"`
	TotalCharges     float64 `json:"total_charges"`
}

// Value returns the typed value of a schema column: string for categorical
// fields, int for integer fields, float64 otherwise. Unknown columns yield nil.
func (r FeatureRecord) Value(column string) any {
	switch column {
	case "gender":
		return r.Gender
	case "SeniorCitizen":
		return r.SeniorCitizen
	case "Partner":
		return r.Partner
	case "Dependents":
		return r.Dependents
	case "tenure":
		return r.Tenure
	case "PhoneService":
		return r.PhoneService
	case "MultipleLines":
		return r.MultipleLines
	case "InternetService":
		return r.InternetService
	case "OnlineSecurity":
		return r.OnlineSecurity
	case "OnlineBackup":
		return r.OnlineBackup
	case "DeviceProtection":
		return r.DeviceProtection
	case "TechSupport":
		return r.TechSupport
	case "StreamingTV":
		return r.StreamingTV
	case "StreamingMovies":
		return r.StreamingMovies
	case "Contract":
		return r.Contract
	case "PaperlessBilling":
		return r.PaperlessBilling
	case "PaymentMethod":
		return r.PaymentMethod
	case "MonthlyCharges":
		return r.MonthlyCharges
	case "TotalCharges":
		return r.TotalCharges
	}
	return nil
}

func (r *FeatureRecord) setString(column, v string) {
	switch column {
	case "gender":
		r.Gender = v
	case "Partner":
		r.Partner = v
	case "Dependents":
		r.Dependents = v
	case "PhoneService":
		r.PhoneService = v
	case "MultipleLines":
		r.MultipleLines = v
	case "InternetService":
		r.InternetService = v
	case "OnlineSecurity":
		r.OnlineSecurity = v
	case "OnlineBackup":
		r.OnlineBackup = v
	case "DeviceProtection":
		r.DeviceProtection = v
	case "TechSupport":
		r.TechSupport = v
	case "StreamingTV":
		r.StreamingTV = v
	case "StreamingMovies":
		r.StreamingMovies = v
	case "Contract":
		r.Contract = v
	case "PaperlessBilling":
		r.PaperlessBilling = v
	case "PaymentMethod":
		r.PaymentMethod = v
	}
}

func (r *FeatureRecord) setInt(column string, v int) {
	switch column {
	case "SeniorCitizen":
		r.SeniorCitizen = v
	case "tenure":
		r.Tenure = v
	}
}

// Raw converts the record back into a RawRecord keyed by column name.
func (r FeatureRecord) Raw() RawRecord {
	raw := make(RawRecord, len(schema))
	for _, f := range schema {
		raw[f.Column] = r.Value(f.Column)
	}
	return raw
}

// Map returns the record keyed by JSON key, for prompts and responses.
func (r FeatureRecord) Map() map[string]any {
	out := make(map[string]any, len(schema))
	for _, f := range schema {
		out[f.JSONKey] = r.Value(f.Column)
	}
	return out
}
