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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/poiesic/studyplanner"
	"github.com/poiesic/studyplanner/config"
	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/ingestion"
	"github.com/poiesic/studyplanner/queue"
	"github.com/poiesic/studyplanner/tutor"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "studyworker",
		Usage: "Background jobs for the study planner: tutoring answers and document ingestion",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides STUDY_LOG_LEVEL",
			},
			&cli.StringSliceFlag{
				Name:    "env-file",
				Aliases: []string{"e"},
				Usage:   "Read settings from a .env file (repeatable); the environment takes precedence",
				Value:   cli.NewStringSlice(".env"),
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run queued jobs until interrupted",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "redrive-every",
						Usage: "Re-drive failed and stale documents at this interval (0 disables)",
						Value: 10 * time.Minute,
					},
					&cli.DurationFlag{
						Name:  "stale-after",
						Usage: "Treat unfinished documents idle for this long as stuck",
						Value: ingestion.DefaultStaleAfter,
					},
					&cli.DurationFlag{
						Name:  "purge-after",
						Usage: "Delete finished jobs older than this (0 keeps them)",
						Value: 7 * 24 * time.Hour,
					},
				},
			},
			{
				Name:   "bootstrap",
				Usage:  "Create or verify the vector collection",
				Action: bootstrapCommand,
			},
			{
				Name:   "enqueue-answer",
				Usage:  "Queue a tutoring question",
				Action: enqueueAnswerCommand,
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "owner", Usage: "Owner ID", Required: true},
					&cli.Uint64Flag{Name: "topic", Usage: "Topic ID", Required: true},
					&cli.StringFlag{Name: "question", Aliases: []string{"q"}, Usage: "Question text", Required: true},
					&cli.StringFlag{Name: "model", Usage: "Answer provider (empty for the configured default)"},
					&cli.BoolFlag{Name: "wait", Aliases: []string{"w"}, Usage: "Run the job now and print its result"},
				},
			},
			{
				Name:   "enqueue-ingest",
				Usage:  "Queue ingestion of a stored document",
				Action: enqueueIngestCommand,
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "document", Aliases: []string{"d"}, Usage: "Document ID", Required: true},
					&cli.BoolFlag{Name: "wait", Aliases: []string{"w"}, Usage: "Run the job now and print its result"},
				},
			},
			{
				Name:      "status",
				Usage:     "Print the status of a job",
				ArgsUsage: "<job-id>",
				Action:    statusCommand,
			},
			{
				Name:   "redrive",
				Usage:  "Requeue failed documents and documents stuck for longer than --stale-after",
				Action: redriveCommand,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "stale-after",
						Usage: "Treat unfinished documents idle for this long as stuck",
						Value: ingestion.DefaultStaleAfter,
					},
				},
			},
			{
				Name:   "clear-context",
				Usage:  "Forget the tutoring conversation of an owner and topic",
				Action: clearContextCommand,
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "owner", Usage: "Owner ID", Required: true},
					&cli.Uint64Flag{Name: "topic", Usage: "Topic ID", Required: true},
				},
			},
			{
				Name:   "purge",
				Usage:  "Delete finished jobs",
				Action: purgeCommand,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Only jobs that finished longer ago than this",
						Value: 7 * 24 * time.Hour,
					},
				},
			},
		},
	}
}

// loadConfig reads settings from the env files and the environment.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.Context, c.StringSlice("env-file")...)
	if err != nil {
		return nil, err
	}
	if level := c.String("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

// openRuntime loads settings and opens the runtime. The caller must Close it.
func openRuntime(c *cli.Context) (*studyplanner.Runtime, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if !c.IsSet("log-level") {
		if err := configureLogger(cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	runtime, err := studyplanner.Open(c.Context, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open runtime: %w", err)
	}
	return runtime, nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runtime, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer runtime.Close()

	if err := runtime.Bootstrap(ctx); err != nil {
		// Ingestion jobs retry the bootstrap themselves
		slog.Warn("vector collection not ready", "err", err)
	}
	if err := runtime.Start(ctx); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	slog.Info("worker started")

	g, ctx := errgroup.WithContext(ctx)
	if every := c.Duration("redrive-every"); every > 0 {
		staleAfter := c.Duration("stale-after")
		g.Go(func() error {
			return tick(ctx, every, func() {
				if _, err := runtime.Redrive(ctx, staleAfter, nil); err != nil && ctx.Err() == nil {
					slog.Error("re-drive failed", "err", err)
				}
			})
		})
	}
	if olderThan := c.Duration("purge-after"); olderThan > 0 {
		g.Go(func() error {
			return tick(ctx, time.Hour, func() {
				n, err := runtime.PurgeJobs(ctx, olderThan)
				if err != nil && ctx.Err() == nil {
					slog.Error("purge failed", "err", err)
					return
				}
				if n > 0 {
					slog.Info("purged finished jobs", "count", n)
				}
			})
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	err = g.Wait()
	slog.Info("worker stopping")
	return err
}

// tick calls fn at each tick of interval until ctx is done.
func tick(ctx context.Context, interval time.Duration, fn func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn()
		}
	}
}

func bootstrapCommand(c *cli.Context) error {
	runtime, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer runtime.Close()

	if err := runtime.Bootstrap(c.Context); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "collection ready")
	return nil
}

func enqueueAnswerCommand(c *cli.Context) error {
	runtime, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer runtime.Close()

	handle, err := runtime.EnqueueAnswer(c.Context, tutor.Request{
		OwnerID:  core.ID(c.Uint64("owner")),
		TopicID:  core.ID(c.Uint64("topic")),
		Question: c.String("question"),
		Model:    c.String("model"),
	})
	if err != nil {
		return err
	}
	return report(c, runtime, handle)
}

func enqueueIngestCommand(c *cli.Context) error {
	runtime, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer runtime.Close()

	handle, err := runtime.EnqueueIngestion(c.Context, core.ID(c.Uint64("document")))
	if err != nil {
		return err
	}
	return report(c, runtime, handle)
}

// report prints the job handle, or with --wait runs the queue until the job
// finishes and prints its status.
func report(c *cli.Context, runtime *studyplanner.Runtime, handle string) error {
	if !c.Bool("wait") {
		fmt.Fprintln(c.App.Writer, handle)
		return nil
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runtime.Start(ctx); err != nil {
		return err
	}
	status, err := waitForJob(ctx, runtime, handle, 250*time.Millisecond)
	if err != nil {
		return err
	}
	return printStatus(c.App.Writer, status)
}

func waitForJob(ctx context.Context, runtime *studyplanner.Runtime, handle string, interval time.Duration) (*queue.Status, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := runtime.PollStatus(ctx, handle)
		if err != nil {
			return nil, err
		}
		if status.State.Terminal() {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

func statusCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("status takes exactly one job id", 2)
	}
	runtime, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer runtime.Close()

	status, err := runtime.PollStatus(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	return printStatus(c.App.Writer, status)
}

func printStatus(w io.Writer, status *queue.Status) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}

func redriveCommand(c *cli.Context) error {
	runtime, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer runtime.Close()

	result, err := runtime.Redrive(c.Context, c.Duration("stale-after"), c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("re-drive failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "scanned %d, requeued %d, skipped %d\n", result.Scanned, result.Requeued, result.Skipped)
	return nil
}

func clearContextCommand(c *cli.Context) error {
	runtime, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer runtime.Close()

	runtime.ClearContext(c.Context, core.ID(c.Uint64("owner")), core.ID(c.Uint64("topic")))
	return nil
}

func purgeCommand(c *cli.Context) error {
	runtime, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer runtime.Close()

	n, err := runtime.PurgeJobs(c.Context, c.Duration("older-than"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "purged %d jobs\n", n)
	return nil
}

func setupLogger(c *cli.Context) error {
	level := c.String("log-level")
	if level == "" {
		level = "info"
	}
	return configureLogger(level)
}

func configureLogger(levelStr string) error {
	level, err := config.ParseLogLevel(levelStr)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}
