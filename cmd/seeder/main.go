package main

import (
	"context"
	"flag"
	"iter"
	"log/slog"
	"os"

	"github.com/poiesic/factsearch"
	"github.com/poiesic/factsearch/config"
	"github.com/poiesic/factsearch/ingestion"
)

// sampleBanks is a small bank product catalogue in the raw banks format.
const sampleBanks = `{
  "banks": [
    {
      "bank_information": {"bank_name": "Northwind Bank", "established": 1962, "headquarters": "Leeds"},
      "home_loan": {"interest_rate": "8.5% per annum", "max_tenure": "30 years", "processing_fee": "0.5% of loan amount"},
      "personal_loan": {"interest_rate": "12% per annum", "max_amount": 2500000, "prepayment_allowed": true},
      "savings_account": {"interest_rate": "3.5% per annum", "minimum_balance": 10000},
      "branches": ["Leeds", "York", "Hull"]
    },
    {
      "bank_information": {"bank_name": "Harbour Credit Union", "established": 1988, "headquarters": "Bristol"},
      "home_loan": {"interest_rate": "8.1% per annum", "max_tenure": "25 years", "processing_fee": "none"},
      "car_loan": {"interest_rate": "9.25% per annum", "max_tenure": "7 years"},
      "fixed_deposit": {"rates": [{"tenure": "1 year", "rate": "6.8%"}, {"tenure": "3 years", "rate": "7.1%"}]},
      "branches": ["Bristol", "Bath"]
    },
    {
      "bank_information": {"bank_name": "Summit Savings"},
      "savings_account": {"interest_rate": "4% per annum", "minimum_balance": 0, "online_only": true},
      "credit_card": {"annual_fee": "waived in the first year", "reward_rate": "1 point per 100 spent"}
    }
  ]
}`

var (
	seedFileName = flag.String("src", "", "raw banks JSON file to seed from")
	configPath   = flag.String("config", "", "factsearch YAML config")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// factsFromBanks returns an iterator over the flattened facts of a banks file.
func factsFromBanks(data []byte, opts ingestion.ChunkOptions) (iter.Seq[ingestion.Fact], error) {
	facts, err := ingestion.FlattenBanks(data, opts)
	if err != nil {
		return nil, err
	}
	return func(yield func(ingestion.Fact) bool) {
		for _, f := range facts {
			if !yield(f) {
				return
			}
		}
	}, nil
}

// ingestBatched reads from a source iterator and ingests facts in batches.
func ingestBatched(ctx context.Context, pipeline *ingestion.Pipeline, source iter.Seq[ingestion.Fact], batchSize int) error {
	batch := make([]ingestion.Fact, 0, batchSize)

	for fact := range source {
		batch = append(batch, fact)
		if len(batch) == batchSize {
			if _, err := pipeline.IngestFacts(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	// Process any remaining facts
	if len(batch) > 0 {
		if _, err := pipeline.IngestFacts(ctx, batch); err != nil {
			return err
		}
	}

	return nil
}

func main() {
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	db, err := factsearch.NewDatabase(cfg)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	ingester, err := db.NewIngestionPipeline()
	if err != nil {
		panic(err)
	}

	ctx := context.Background()

	// Determine source of seed data
	data := []byte(sampleBanks)
	if *seedFileName != "" {
		data, err = os.ReadFile(*seedFileName)
		if err != nil {
			panic(err)
		}
	}
	source, err := factsFromBanks(data, cfg.ChunkOptions())
	if err != nil {
		panic(err)
	}

	// Ingest in batches of 20
	if err := ingestBatched(ctx, ingester, source, 20); err != nil {
		panic(err)
	}
	slog.Info("seeding complete", "db", cfg.Storage.Path)
}
