package reportqa

import "time"

// Answer is the response to a question about one report year.
type Answer struct {
	Year     int
	Question string // the question after sanitization
	Text     string
	// Found is false when no indexed passage supported an answer.
	Found      bool
	Confidence float64 // within [0,1]
	Citations  []Citation
	Duration   time.Duration
}

// Citation is a report excerpt supporting an answer.
type Citation struct {
	Text   string
	Page   int // 0 when unknown
	Source string
}

// IngestSummary reports what an ingestion run did, by year.
type IngestSummary struct {
	RunID     string
	Processed []int
	Skipped   []int
	Pruned    []int
	Chunks    int
}

// Stats summarizes the reports directory and the index.
type Stats struct {
	AvailableYears []int
	ProcessedYears []int
	TotalDocuments int
	TotalChunks    int
	LastUpdated    time.Time
}
