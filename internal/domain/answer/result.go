// Package answer models QA results and their confidence scoring.
package answer

import "time"

// NotFoundAnswer is returned when no context supports an answer.
const NotFoundAnswer = "I cannot find information about this in the provided context."

// Citation is an excerpt supporting an answer.
type Citation struct {
	Text   string
	Page   int // 0 when unknown
	Source string
}

// Result is the answer for a single year.
type Result struct {
	Year           int
	Query          string
	Answer         string
	Confidence     float64
	Citations      []Citation
	ProcessingTime time.Duration
}

// FullFillChunks is the number of retrieved chunks that counts as complete context.
const FullFillChunks = 5

// Confidence combines retrieval similarity with how much context was found:
// 0.7*mean(similarity) + 0.3*min(n/5, 1), clamped to [0,1]. Empty input yields 0.
func Confidence(similarities []float64) float64 {
	if len(similarities) == 0 {
		return 0
	}

	var sum float64
	for _, s := range similarities {
		sum += s
	}
	avg := sum / float64(len(similarities))

	fill := min(float64(len(similarities))/FullFillChunks, 1.0)

	return Clamp(avg*0.7 + fill*0.3)
}

// Clamp bounds v to [0,1]. NaN maps to 0.
func Clamp(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
