package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/factsearch"
	"github.com/poiesic/factsearch/config"
	"github.com/poiesic/factsearch/core"
	"github.com/poiesic/factsearch/ingestion"
	"github.com/poiesic/factsearch/logging"
	"github.com/poiesic/factsearch/search"
)

// Input formats accepted by ingest.
const (
	formatJSON    = "json"
	formatBanks   = "banks"
	formatMapping = "mapping"
)

// commands holds state shared by every subcommand.
type commands struct {
	open   opener
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
}

func (c *commands) withDatabase(fn func(db *factsearch.Database) error) error {
	db, err := c.open(c.cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	return fn(db)
}

// loadedSearcher creates a searcher and loads the current snapshot.
func loadedSearcher(ctx context.Context, db *factsearch.Database) (*search.Searcher, error) {
	searcher, err := db.NewSearcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create searcher: %w", err)
	}
	if err := searcher.Load(ctx); err != nil {
		searcher.Release()
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	return searcher, nil
}

func queryOptions(ctx *cli.Context) []search.QueryOption {
	var opts []search.QueryOption
	if ctx.IsSet("top-k") {
		opts = append(opts, search.WithTopK(ctx.Int("top-k")))
	}
	if ctx.IsSet("threshold") {
		opts = append(opts, search.WithThreshold(ctx.Float64("threshold")))
	}
	return opts
}

func (c *commands) ingest(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("at least one input file is required")
	}
	format := ctx.String("format")
	chunks := c.cfg.ChunkOptions()
	if ctx.IsSet("chunk-size") {
		chunks.Size = ctx.Int("chunk-size")
	}
	if ctx.IsSet("chunk-overlap") {
		chunks.Overlap = ctx.Int("chunk-overlap")
	}
	if err := chunks.Validate(); err != nil {
		return err
	}

	var docs []ingestion.Document
	for _, path := range ctx.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		parsed, err := parseInput(format, data, chunks)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		docs = append(docs, parsed...)
	}

	return c.withDatabase(func(db *factsearch.Database) error {
		pipeline, err := db.NewIngestionPipeline(ingestion.WithProgress(c.stderr))
		if err != nil {
			return fmt.Errorf("failed to create pipeline: %w", err)
		}
		if ctx.Bool("replace") {
			if err := pipeline.Clear(ctx.Context); err != nil {
				return fmt.Errorf("failed to clear corpus: %w", err)
			}
		}

		result, err := pipeline.Ingest(ctx.Context, docs)
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
		fmt.Fprintf(c.stdout, "Ingested %d entries starting at row %d (%d skipped, %d dimensions)\n",
			result.Added, result.FirstRow, result.Skipped, result.Dimensions)
		return nil
	})
}

func parseInput(format string, data []byte, chunks ingestion.ChunkOptions) ([]ingestion.Document, error) {
	switch format {
	case formatJSON:
		facts, err := ingestion.FlattenJSON(data)
		if err != nil {
			return nil, err
		}
		return ingestion.Documents(facts), nil
	case formatBanks:
		facts, err := ingestion.FlattenBanks(data, chunks)
		if err != nil {
			return nil, err
		}
		return ingestion.Documents(facts), nil
	case formatMapping:
		return ingestion.LoadKeyMapping(data)
	default:
		return nil, fmt.Errorf("unknown format %q: must be one of %s, %s, %s",
			format, formatJSON, formatBanks, formatMapping)
	}
}

func (c *commands) search(ctx *cli.Context) error {
	query := strings.Join(ctx.Args().Slice(), " ")
	if query == "" {
		return fmt.Errorf("a query is required")
	}

	return c.withDatabase(func(db *factsearch.Database) error {
		searcher, err := loadedSearcher(ctx.Context, db)
		if err != nil {
			return err
		}
		defer searcher.Release()

		results, err := searcher.Search(ctx.Context, query, queryOptions(ctx)...)
		if err != nil {
			return err
		}
		if ctx.Bool("json") {
			return json.NewEncoder(c.stdout).Encode(results)
		}
		c.printResults(results)
		return nil
	})
}

func (c *commands) printResults(results []core.SearchResult) {
	fmt.Fprintf(c.stdout, "Found %d hits\n", len(results))
	for _, r := range results {
		fmt.Fprintf(c.stdout, "%d: '%s' (%s)[%0.3f sim=%0.3f]\n", r.Rank, r.Content, r.Source, r.Score, r.Similarity)
	}
}

func (c *commands) batch(ctx *cli.Context) error {
	var in io.Reader = os.Stdin
	if path := ctx.String("file"); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening queries: %w", err)
		}
		defer f.Close()
		in = f
	}

	var queries []string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			queries = append(queries, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading queries: %w", err)
	}

	return c.withDatabase(func(db *factsearch.Database) error {
		searcher, err := loadedSearcher(ctx.Context, db)
		if err != nil {
			return err
		}
		defer searcher.Release()

		results, err := searcher.BatchSearch(ctx.Context, queries, queryOptions(ctx)...)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(c.stdout)
		for i, r := range results {
			if err := enc.Encode(map[string]any{"query": queries[i], "results": r}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *commands) reembed(ctx *cli.Context) error {
	if ctx.IsSet("batch-size") {
		c.cfg.Ingestion.BatchSize = ctx.Int("batch-size")
	}
	if ctx.IsSet("max-retries") {
		c.cfg.Ingestion.MaxRetries = ctx.Int("max-retries")
	}
	if ctx.IsSet("retry-delay") {
		c.cfg.Ingestion.RetryDelay = ctx.Duration("retry-delay")
	}
	if ctx.IsSet("concurrency") {
		c.cfg.Ingestion.Concurrency = ctx.Int("concurrency")
	}
	if err := c.cfg.ReembedConfig().Validate(); err != nil {
		return err
	}

	return c.withDatabase(func(db *factsearch.Database) error {
		reembedder, err := db.NewReembedder(c.stderr)
		if err != nil {
			return fmt.Errorf("failed to create reembedder: %w", err)
		}

		fmt.Fprintf(c.stderr, "Database: %s\n", c.cfg.Storage.Path)
		fmt.Fprintf(c.stderr, "Embedding host: %s\n", c.cfg.Embedding.Host)
		fmt.Fprintf(c.stderr, "Embedding model: %s\n", c.cfg.Embedding.Model)
		fmt.Fprintln(c.stderr)

		summary, err := reembedder.Run(ctx.Context)
		if err != nil {
			return fmt.Errorf("reembedding failed: %w", err)
		}
		fmt.Fprintf(c.stdout, "Reembedded %d entries (%d dimensions) in %s\n",
			summary.Entries, summary.Dimensions, summary.Elapsed.Round(time.Millisecond))
		return nil
	})
}

func (c *commands) stats(ctx *cli.Context) error {
	return c.withDatabase(func(db *factsearch.Database) error {
		searcher, err := loadedSearcher(ctx.Context, db)
		if err != nil {
			return err
		}
		defer searcher.Release()

		st := searcher.Stats()
		fmt.Fprintf(c.stdout, "Entries:        %d\n", st.Entries)
		fmt.Fprintf(c.stdout, "Vectors:        %d\n", st.Vectors)
		fmt.Fprintf(c.stdout, "Serving rows:   %d\n", st.Rows)
		fmt.Fprintf(c.stdout, "Dimensions:     %d\n", st.Dimensions)
		fmt.Fprintf(c.stdout, "Vocabulary:     %d\n", st.Vocabulary)
		fmt.Fprintf(c.stdout, "Average length: %.2f\n", st.AverageLength)
		fmt.Fprintf(c.stdout, "Fingerprint:    %016x\n", uint64(st.Fingerprint))

		manifest, err := db.ManifestRepository().LoadManifest(ctx.Context)
		if err != nil {
			return fmt.Errorf("reading manifest: %w", err)
		}
		if manifest != nil {
			fmt.Fprintf(c.stdout, "Model:          %s\n", manifest.Model)
			fmt.Fprintf(c.stdout, "Built at:       %s\n", manifest.BuiltAt.Format("2006-01-02 15:04:05 MST"))
		}
		return nil
	})
}

func (c *commands) serve(ctx *cli.Context) error {
	addr := c.cfg.Server.Addr
	if ctx.IsSet("addr") {
		addr = ctx.String("addr")
	}

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.withDatabase(func(db *factsearch.Database) error {
		searcher, err := db.NewSearcher()
		if err != nil {
			return fmt.Errorf("failed to create searcher: %w", err)
		}
		defer searcher.Release()
		// An empty or broken index still serves /healthz as not ready until
		// POST /reload succeeds.
		if err := searcher.Load(runCtx); err != nil {
			logging.WithComponent("cli").Warn("index not loaded, serving as not ready", "err", err)
		}

		srv, err := db.NewServer(searcher)
		if err != nil {
			return err
		}
		return srv.Run(runCtx, addr)
	})
}
