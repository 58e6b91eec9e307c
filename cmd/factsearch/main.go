// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/factsearch"
	"github.com/poiesic/factsearch/config"
	"github.com/poiesic/factsearch/logging"
)

// opener opens the database described by cfg.
type opener func(cfg *config.Config) (*factsearch.Database, error)

func openDatabase(cfg *config.Config) (*factsearch.Database, error) {
	return factsearch.NewDatabase(cfg)
}

func main() {
	app := newApp(openDatabase, os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(open opener, stdout, stderr io.Writer) *cli.App {
	cmds := &commands{open: open, stdout: stdout, stderr: stderr}

	return &cli.App{
		Name:      "factsearch",
		Usage:     "Hybrid semantic and keyword search over flattened facts",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"FACTSEARCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file if it exists",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides storage.path)",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL (overrides embedding.host)",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name (overrides embedding.model)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log output format (text, json)",
			},
		},
		Before: cmds.setup,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Flatten JSON files into facts and index them",
				ArgsUsage: "FILE...",
				Action:    cmds.ingest,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Input format: json (any nested JSON), banks (raw bank records) or mapping ([content, source] pairs)",
						Value:   formatJSON,
					},
					&cli.BoolFlag{
						Name:  "replace",
						Usage: "Clear the corpus and vectors before ingesting",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Split values longer than this many words (banks format)",
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "Words shared by consecutive chunks (banks format)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Run one query against the index",
				ArgsUsage: "QUERY...",
				Action:    cmds.search,
				Flags:     queryFlags(),
			},
			{
				Name:   "batch",
				Usage:  "Run one query per input line, printing one JSON result list per line",
				Action: cmds.batch,
				Flags: append(queryFlags(),
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"i"},
						Usage:   "File of queries, one per line (- for stdin)",
						Value:   "-",
					},
				),
			},
			{
				Name:   "reembed",
				Usage:  "Rebuild every vector with the configured embedding model",
				Action: cmds.reembed,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of entries to embed per request",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per batch",
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Batches embedded in parallel",
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Load the index and print corpus statistics",
				Action: cmds.stats,
			},
			{
				Name:   "serve",
				Usage:  "Serve the search API over HTTP",
				Action: cmds.serve,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides server.addr)",
					},
				},
			},
		},
	}
}

func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "top-k",
			Aliases: []string{"k"},
			Usage:   "Maximum number of results (defaults to search.topK)",
		},
		&cli.Float64Flag{
			Name:    "threshold",
			Aliases: []string{"t"},
			Usage:   "Minimum fused score (defaults to search.threshold)",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print results as JSON",
		},
	}
}

// setup loads the env file, then the config, then installs the logger.
func (c *commands) setup(ctx *cli.Context) error {
	if path := ctx.String("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading env file %s: %w", path, err)
		}
	}

	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return err
	}
	if ctx.IsSet("db") {
		cfg.Storage.Path = ctx.String("db")
		cfg.Storage.InMemory = false
	}
	if ctx.IsSet("embedding-host") {
		cfg.Embedding.Host = ctx.String("embedding-host")
	}
	if ctx.IsSet("embedding-model") {
		cfg.Embedding.Model = ctx.String("embedding-model")
	}
	if ctx.IsSet("log-level") {
		cfg.Logging.Level = ctx.String("log-level")
	}
	if ctx.IsSet("log-format") {
		cfg.Logging.Format = ctx.String("log-format")
	}

	if err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, c.stderr); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}
