package pipeline

// Outcome aggregates one assembled batch. LikelyChurn + Safe == TotalRows.
type Outcome struct {
	TotalRows             int            `json:"total_rows"`
	LikelyChurn           int            `json:"likely_churn"`
	Safe                  int            `json:"safe"`
	ChurnRate             float64        `json:"churn_rate"`
	AverageProbability    float64        `json:"average_probability"`
	LikelyChurnByContract map[string]int `json:"likely_churn_by_contract"`
}

func Summarize(results []Result) Outcome {
	o := Outcome{
		TotalRows:             len(results),
		LikelyChurnByContract: make(map[string]int),
	}
	var sum float64
	for _, r := range results {
		sum += r.RawProbability
		if r.Label == LabelLikelyChurn {
			o.LikelyChurn++
			o.LikelyChurnByContract[r.Record.Contract]++
		} else {
			o.Safe++
		}
	}
	if o.TotalRows > 0 {
		o.ChurnRate = Round(float64(o.LikelyChurn)/float64(o.TotalRows)*100, 2)
		o.AverageProbability = Round(sum/float64(o.TotalRows), 3)
	}
	return o
}
