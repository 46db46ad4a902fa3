// Package songdex recommends songs from a catalog of acoustic features,
// optionally fused with similar-track data from Last.fm.
//
// Content-based recommendations standardize the nine acoustic features and
// return the nearest songs by Euclidean distance. Hybrid recommendations
// additionally ask an external provider for tracks similar to every
// neighbour and rank the reported tracks by their summed match score.
//
//	client, err := songdex.New(ctx,
//	    songdex.WithCatalogFiles("songs.tsv", "acoustic_features.tsv"),
//	    songdex.WithK(5),
//	    songdex.WithLastFM(os.Getenv("LASTFM_API_KEY")),
//	)
//	if err != nil { ... }
//	defer client.Close()
//
//	res, _ := client.Hybrid(ctx, "Bohemian")
//	for _, t := range res.Top {
//	    fmt.Println(t.Name, t.Artist, t.Score)
//	}
package songdex
