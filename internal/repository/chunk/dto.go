package chunk

import (
	"strconv"

	"github.com/kailas-cloud/reportqa/internal/db"
	domchunk "github.com/kailas-cloud/reportqa/internal/domain/chunk"
)

// Hash field names.
const (
	fieldYear    = "year"
	fieldSource  = "source"
	fieldPage    = "page"
	fieldOrdinal = "ordinal"
	fieldContent = "content"
	fieldVector  = "vector"
)

func buildIndex(name, prefix string, dim int, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	return db.NewIndex(name).
		Prefix(prefix).
		Tag(fieldYear).
		Tag(fieldSource).
		Numeric(fieldPage).
		VectorHNSW(fieldVector, dim, db.DistanceCosine, hnsw.M, hnsw.EFConstruct).
		Build()
}

func buildHashFields(c *domchunk.Chunk) map[string]string {
	return map[string]string{
		fieldYear:    strconv.Itoa(c.Year),
		fieldSource:  c.Source,
		fieldPage:    strconv.Itoa(c.Page),
		fieldOrdinal: strconv.Itoa(c.Ordinal),
		fieldContent: c.Content,
		fieldVector:  db.EncodeVector(c.Vector),
	}
}

// parseHit maps a search entry to a hit. A missing or malformed page reads as 0.
func parseHit(e db.SearchEntry) domchunk.Hit {
	page, _ := strconv.Atoi(e.Fields[fieldPage])
	return domchunk.Hit{
		Content:    e.Fields[fieldContent],
		Page:       page,
		Source:     e.Fields[fieldSource],
		Similarity: e.Score,
	}
}
