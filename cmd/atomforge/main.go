// Copyright 2025 Veridian Labs
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
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/veridian/atomforge"
	"github.com/veridian/atomforge/ai"
	"github.com/veridian/atomforge/core"
	"github.com/veridian/atomforge/pipeline"
	"github.com/veridian/atomforge/search"
	"github.com/veridian/atomforge/storage"
)

func main() {
	app := &cli.App{
		Name:  "atomforge",
		Usage: "Knowledge atom ingestion and similarity search over technical documentation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "worker",
				Usage:  "Run the ingestion worker pool against the durable job queue",
				Action: workerCommand,
				Flags: append(commonFlags(),
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent jobs",
						Value: 4,
					},
					&cli.DurationFlag{
						Name:  "lease",
						Usage: "Visibility timeout taken on each dequeued job",
						Value: 5 * time.Minute,
					},
					&cli.IntFlag{
						Name:  "source-tier",
						Usage: "Trust tier for ingested sources (1=official, 2=partner, 3=community)",
						Value: core.SourceTierCommunity,
					},
					&cli.DurationFlag{
						Name:  "sweep-interval",
						Usage: "Interval between source list sweeps (0 disables the scheduler)",
					},
					&cli.StringSliceFlag{
						Name:  "source",
						Usage: "Source URL to sweep periodically (repeatable)",
					},
				),
			},
			{
				Name:      "ingest",
				Usage:     "Enqueue source URLs for ingestion",
				ArgsUsage: "URL [URL...]",
				Action:    ingestCommand,
				Flags: append(commonFlags(),
					&cli.BoolFlag{
						Name:  "now",
						Usage: "Run the job synchronously instead of enqueueing",
					},
					&cli.IntFlag{
						Name:  "source-tier",
						Usage: "Trust tier for ingested sources (1=official, 2=partner, 3=community)",
						Value: core.SourceTierCommunity,
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Query the indexed atom corpus by similarity",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: append(commonFlags(),
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Similarity floor for results",
						Value: 0.25,
					},
					&cli.StringFlag{
						Name:  "manufacturer",
						Usage: "Filter by manufacturer slug",
					},
					&cli.StringFlag{
						Name:  "product",
						Usage: "Filter by product family slug",
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Filter by atom type (fault, procedure, concept, pattern, specification)",
					},
					&cli.StringFlag{
						Name:  "difficulty",
						Usage: "Filter by difficulty (beginner, intermediate, advanced)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Emit full results as JSON",
					},
				),
			},
			{
				Name:   "stats",
				Usage:  "Show store and queue counts",
				Action: statsCommand,
				Flags:  commonFlags(),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "ai-host",
			Usage: "OpenAI-compatible service host URL for both models",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "extractor-model",
			Usage: "Extraction model name",
			Value: "qwen2.5:3b",
		},
		&cli.StringFlag{
			Name:    "ai-token",
			Usage:   "API token for the AI service",
			EnvVars: []string{"ATOMFORGE_AI_TOKEN"},
		},
	}
}

// openSystem builds a System from the common flags.
func openSystem(c *cli.Context) (*atomforge.System, error) {
	opts := []ai.ConfigOption{
		ai.WithHost(c.String("ai-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithExtractorModel(c.String("extractor-model")),
	}
	if token := c.String("ai-token"); token != "" {
		opts = append(opts, ai.WithToken(token))
	}
	aiConfig := ai.NewConfig(opts...)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	system, err := atomforge.NewSystem(c.String("db"), atomforge.WithAIConfig(aiConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return system, nil
}

func workerCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	orchOpts := []pipeline.OrchestratorOption{
		pipeline.WithSourceTier(c.Int("source-tier")),
	}
	workers, err := system.NewWorkerPool(orchOpts,
		pipeline.WithWorkers(c.Int("workers")),
		pipeline.WithLease(c.Duration("lease")))
	if err != nil {
		return err
	}

	if sources := c.StringSlice("source"); len(sources) > 0 {
		schedOpts := []pipeline.SchedulerOption{}
		if interval := c.Duration("sweep-interval"); interval > 0 {
			schedOpts = append(schedOpts, pipeline.WithSweepInterval(interval))
		}
		scheduler, err := system.NewScheduler(pipeline.StaticSources(sources...), schedOpts...)
		if err != nil {
			return err
		}
		go func() {
			if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("scheduler stopped", "err", err)
			}
		}()
	}

	if err := workers.Start(ctx); err != nil {
		return err
	}
	workers.Wait()
	workers.Release()
	return nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one source URL is required")
	}

	ctx := context.Background()
	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	if c.Bool("now") {
		for _, url := range c.Args().Slice() {
			job, err := system.RunSingleJob(ctx, url,
				pipeline.WithSourceTier(c.Int("source-tier")))
			if err != nil {
				return err
			}
			printJob(job)
		}
		return nil
	}

	queue := system.JobQueue()
	for _, url := range c.Args().Slice() {
		id, err := queue.Enqueue(ctx, url)
		if err != nil {
			return fmt.Errorf("enqueue %s: %w", url, err)
		}
		fmt.Printf("enqueued %s as message %d\n", url, id)
	}
	return nil
}

func printJob(job *core.IngestionJob) {
	fmt.Printf("job %s: %s (%d atoms indexed)\n", job.JobID, job.Status, job.AtomsIndexed)
	for _, line := range job.Logs {
		fmt.Printf("  log: %s\n", line)
	}
	for _, line := range job.Errors {
		fmt.Printf("  err: %s\n", line)
	}
}

func searchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("query text is required")
	}

	ctx := context.Background()
	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	searcher, err := system.NewSearcher()
	if err != nil {
		return err
	}

	results, err := searcher.Search(ctx, search.Query{
		Text:          strings.Join(c.Args().Slice(), " "),
		Limit:         c.Int("limit"),
		MinSimilarity: float32(c.Float64("min-similarity")),
		Filter: &storage.AtomFilter{
			Manufacturer:  c.String("manufacturer"),
			ProductFamily: c.String("product"),
			AtomType:      core.AtomType(c.String("type")),
			Difficulty:    core.Difficulty(c.String("difficulty")),
		},
	})
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for i, result := range results {
		fmt.Printf("%2d. [%.3f] %s  %s\n", i+1, result.Similarity, result.Atom.AtomID, result.Atom.Title)
		fmt.Printf("    %s\n", result.Atom.Summary)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	ctx := context.Background()
	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	atomCount, err := system.AtomRepository().CountAtoms(ctx)
	if err != nil {
		return err
	}
	queueLen, err := system.JobQueue().Len(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("atoms:  %d\n", atomCount)
	fmt.Printf("queued: %d\n", queueLen)
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
