package engagement

// Status is the coarse classification shown for a session or time window.
type Status string

const (
	StatusAttentive   Status = "attentive"
	StatusConfused    Status = "confused"
	StatusInattentive Status = "inattentive"
)

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Classify derives a status label from metric means. The attention floor
// rule fires first: attention under 50 is inattentive regardless of the
// other metrics. Otherwise confusion above understanding means confused.
// Pure function; callers must get the same label for the same inputs.
func Classify(attentionMean, understandingMean, confusionMean float64) Status {
	if attentionMean < 50 {
		return StatusInattentive
	}
	if confusionMean > understandingMean {
		return StatusConfused
	}
	return StatusAttentive
}

// ConfusionProxy derives a confusion mean when no separate confusion series
// exists: the complement of understanding.
func ConfusionProxy(understandingMean float64) float64 {
	return 100 - understandingMean
}
