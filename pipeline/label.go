package pipeline

type Label string

const (
	LabelLikelyChurn Label = "Likely to Churn"
	LabelSafe        Label = "Safe Customer"
)

// ChurnThreshold is exclusive: a probability of exactly 0.5 is Safe.
const ChurnThreshold = 0.5

func LabelFor(p float64) Label {
	if p > ChurnThreshold {
		return LabelLikelyChurn
	}
	return LabelSafe
}
