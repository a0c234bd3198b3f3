// Package reportqa embeds the annual report question answering engine in a Go
// program, without the HTTP server.
//
// The client reads reports named after their fiscal year (apple_2023.pdf,
// apple_2022.txt) from a directory, indexes them in Valkey, Redis or memory and
// answers questions from the indexed text.
//
//	client, _ := reportqa.New(ctx,
//	    reportqa.WithMemory(),
//	    reportqa.WithReportsDir("./data"),
//	    reportqa.WithEmbedder(embedder),
//	    reportqa.WithCompleter(llm),
//	)
//	defer client.Close()
//
//	_, _ = client.Ingest(ctx, false)
//	ans, _ := client.Ask(ctx, "What was the total revenue?", 2023)
//	fmt.Println(ans.Text, ans.Confidence)
//
// Token spend at the providers is counted per day and month and may be capped
// with WithTokenBudget; see Client.Usage.
package reportqa
