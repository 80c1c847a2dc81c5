// Package lectern embeds lecture transcript search in a Go program.
//
// The client queries an existing Redis vector index of transcript passages,
// keeps matches above a similarity floor and groups them per video, the same
// retrieval the lectern API serves on /api/search. No HTTP server or language
// model is involved; the caller supplies the embedder.
//
//	client, _ := lectern.New(ctx,
//	    lectern.WithRedis("localhost:6379", ""),
//	    lectern.WithEmbedder(myEmbedder),
//	    lectern.WithMinScore(0.4),
//	)
//	defer client.Close()
//	res, _ := client.Search(ctx, "javascript closures")
//	for _, v := range res.Videos {
//	    fmt.Println(v.Title, v.Timestamps[0].Start)
//	}
package lectern
