// Package main is the songdex command-line front end.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/kailas-cloud/songdex"
	"github.com/kailas-cloud/songdex/internal/domain"
	logpkg "github.com/kailas-cloud/songdex/internal/logger"
	"github.com/kailas-cloud/songdex/internal/version"
)

const (
	promptText = "Enter a song name to get recommendations:"
	noResults  = "No recommendations found."
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	songs       string
	features    string
	k           int
	top         int
	hybrid      bool
	lastfmKey   string
	query       string
	timeout     time.Duration
	concurrency int
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	d := domain.DefaultRecommendConfig()
	fs := flag.NewFlagSet("songdex-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.songs, "songs", getEnvOrDefault("SONGS_PATH", "data/songs.csv"),
		"Songs table (tab-separated), or a .parquet catalog")
	fs.StringVar(&o.features, "features", getEnvOrDefault("FEATURES_PATH", "data/acoustic_features.csv"),
		"Acoustic features table (tab-separated); ignored for a .parquet catalog")
	fs.IntVar(&o.k, "k", d.K, "Number of neighbours, the matched song included")
	fs.IntVar(&o.top, "top", d.TopN, "Size of the fused ranking in hybrid mode")
	fs.BoolVar(&o.hybrid, "hybrid", false, "Fuse with Last.fm similar tracks")
	fs.StringVar(&o.lastfmKey, "lastfm-key", os.Getenv("LASTFM_API_KEY"), "Last.fm API key (hybrid mode)")
	fs.StringVar(&o.query, "q", "", "Song name to look up; prompts on stdin when empty")
	fs.DurationVar(&o.timeout, "timeout", 5*time.Second, "Timeout per Last.fm lookup")
	fs.IntVar(&o.concurrency, "concurrency", 4, "Parallel Last.fm lookups")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.k <= 0 {
		return o, fmt.Errorf("-k must be positive, got %d", o.k)
	}
	if o.hybrid && o.lastfmKey == "" {
		return o, errors.New("-hybrid requires -lastfm-key or LASTFM_API_KEY")
	}
	if strings.HasSuffix(strings.ToLower(o.songs), ".parquet") {
		o.features = ""
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if o.showVersion {
		fmt.Fprintln(stdout, "songdex-cli", version.String())
		return 0
	}

	logger, err := logpkg.NewLogger("cli")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	opts := []songdex.Option{
		songdex.WithCatalogFiles(o.songs, o.features),
		songdex.WithK(o.k),
		songdex.WithTopN(o.top),
		songdex.WithLogger(logger),
	}
	if o.hybrid {
		opts = append(opts,
			songdex.WithLastFM(o.lastfmKey),
			songdex.WithFetchTimeout(o.timeout),
			songdex.WithConcurrency(o.concurrency),
		)
	}
	return runWith(ctx, o, opts, stdin, stdout, stderr)
}

// runWith builds the client and answers a single query.
func runWith(
	ctx context.Context, o options, opts []songdex.Option, stdin io.Reader, stdout, stderr io.Writer,
) int {
	client, err := songdex.New(ctx, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load data: %v\n", err)
		return 1
	}
	defer client.Close()

	query := o.query
	if query == "" {
		fmt.Fprint(stdout, promptText+" ")
		query, err = readLine(stdin)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading input: %v\n", err)
			return 1
		}
	}
	if strings.TrimSpace(query) == "" {
		fmt.Fprintln(stdout, noResults)
		return 0
	}

	if o.hybrid {
		res, err := client.Hybrid(ctx, query)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		printHybrid(stdout, res)
		return 0
	}

	res, err := client.Recommend(ctx, query)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	printContent(stdout, res)
	return 0
}

func readLine(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if sc.Scan() {
		return sc.Text(), nil
	}
	return "", sc.Err()
}

func printContent(w io.Writer, res songdex.Result) {
	if res.Empty() {
		fmt.Fprintln(w, noResults)
		return
	}
	fmt.Fprintf(w, "Because you like %s by %s:\n", res.Anchor.Name, res.Anchor.Artist)
	if len(res.Recommendations) == 0 {
		fmt.Fprintln(w, noResults)
		return
	}
	for i, r := range res.Recommendations {
		fmt.Fprintf(w, "%2d. %s - %s (distance %.3f)\n", i+1, r.Name, r.Artist, r.Distance)
	}
}

func printHybrid(w io.Writer, res songdex.HybridResult) {
	printContent(w, res.Result)
	if res.Empty() {
		return
	}
	if res.FailedLookups > 0 {
		fmt.Fprintf(w, "(%d Last.fm lookups failed and were skipped)\n", res.FailedLookups)
	}
	if len(res.Top) == 0 {
		fmt.Fprintln(w, "Last.fm reported no similar tracks.")
		return
	}
	fmt.Fprintln(w, "Top hybrid recommendations:")
	for i, t := range res.Top {
		fmt.Fprintf(w, "%2d. %s - %s (score %.3f)\n", i+1, t.Name, t.Artist, t.Score)
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
