package db

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TagFilter restricts a search to documents whose TAG field equals Value.
type TagFilter struct {
	Field string
	Value string
}

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string // defaults to "vector"
	Filters      []TagFilter
	Vector       []float32
	K            int
	ReturnFields []string
}

// Field returns the vector field name, applying the default.
func (q *KNNQuery) Field() string {
	if q.VectorField == "" {
		return "vector"
	}
	return q.VectorField
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit. Score is a similarity in [0,1].
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// EncodeVector serializes a vector as little-endian FLOAT32 bytes, the layout
// FT indexes expect in HASH fields and query PARAMS.
func EncodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// DecodeVector parses bytes produced by EncodeVector.
func DecodeVector(s string) ([]float32, error) {
	if len(s)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data: len=%d (not multiple of 4)", len(s))
	}
	data := []byte(s)
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

// DistanceToSimilarity converts a cosine distance to a similarity clamped to [0,1].
func DistanceToSimilarity(distance float64) float64 {
	s := 1.0 - distance
	if s < 0 || s != s {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
