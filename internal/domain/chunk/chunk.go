// Package chunk describes indexed report passages.
package chunk

import "fmt"

// Chunk is a passage of a report with its embedding.
type Chunk struct {
	Year    int
	Source  string
	Page    int
	Ordinal int
	Content string
	Vector  []float32
}

// ID is the stable identifier of a chunk within its year.
func (c *Chunk) ID() string {
	return fmt.Sprintf("%d:%05d", c.Year, c.Ordinal)
}

// Hit is a chunk returned by similarity search.
type Hit struct {
	Content    string
	Page       int
	Source     string
	Similarity float64 // in [0,1], higher is closer
}
