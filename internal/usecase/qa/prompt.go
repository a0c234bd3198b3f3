package qa

import (
	"strings"

	"github.com/kailas-cloud/reportqa/internal/domain/answer"
	"github.com/kailas-cloud/reportqa/internal/domain/chunk"
)

const systemPrompt = "You are a helpful assistant that answers questions about Apple's annual reports. " +
	"Use only the provided context to answer the question. " +
	`If the answer cannot be found in the context, say "` + answer.NotFoundAnswer + `"`

func buildPrompt(question string, hits []chunk.Hit) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, h.Content)
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(strings.Join(parts, "\n\n"))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

var exampleQueries = []string{
	"What was Apple's total revenue in 2023?",
	"How many employees did Apple have?",
	"What were Apple's main product categories?",
	"What was Apple's net income?",
	"What were Apple's research and development expenses?",
	"What was Apple's operating margin?",
	"What were Apple's geographic sales breakdown?",
	"What were Apple's key strategic initiatives?",
	"What was Apple's cash flow from operations?",
	"What were Apple's capital expenditures?",
}
