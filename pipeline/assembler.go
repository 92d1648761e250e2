package pipeline

import "math"

// PreviewSize is how many results a batch JSON response carries.
const PreviewSize = 10

// Result is the outcome for one input row.
type Result struct {
	Row         int     `json:"row"`
	CustomerID  *string `json:"customer_id,omitempty"`
	Probability float64 `json:"probability"`
	Label       Label   `json:"label"`

	RawProbability float64       `json:"-"`
	Record         FeatureRecord `json:"-"`
}

// Assemble joins records, identifiers and probabilities into one result per
// row, in input order. probs must be index-aligned with records; customerIDs
// may be nil or shorter, in which case the missing ids stay nil.
func Assemble(records []FeatureRecord, customerIDs []*string, probs []float64) []Result {
	results := make([]Result, len(records))
	for i, rec := range records {
		p := probs[i]
		var id *string
		if i < len(customerIDs) {
			id = customerIDs[i]
		}
		results[i] = Result{
			Row:            i,
			CustomerID:     id,
			Probability:    Round(p, 3),
			Label:          LabelFor(p),
			RawProbability: p,
			Record:         rec,
		}
	}
	return results
}

// Preview returns at most n leading results.
func Preview(results []Result, n int) []Result {
	if len(results) <= n {
		return results
	}
	return results[:n]
}

func Round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
