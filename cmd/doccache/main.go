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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/poiesic/doccache"
	"github.com/poiesic/doccache/acquire"
	"github.com/poiesic/doccache/breaker"
	"github.com/poiesic/doccache/config"
	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/orchestrator"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "doccache",
		Usage: "Documentation cache with parallel partition search and background enrichment",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{"DOCCACHE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "BadgerDB directory (overrides storage.data_dir; empty runs in memory)",
			},
			&cli.StringFlag{
				Name:  "content-dsn",
				Usage: "SQLite DSN of the content store (overrides storage.content_dsn)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Answer a documentation query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "technology",
						Aliases: []string{"t"},
						Usage:   "Technology hint, e.g. python",
					},
					&cli.DurationFlag{
						Name:  "deadline",
						Usage: "Response deadline (default search.default_deadline)",
					},
					&cli.BoolFlag{
						Name:  "no-enrich",
						Usage: "Never dispatch background enrichment",
					},
					&cli.StringFlag{
						Name:  "client",
						Usage: "Client id subject to rate limiting",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the response as JSON",
					},
				},
			},
			{
				Name:   "ingest",
				Usage:  "Acquire a document and index it",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "url",
						Usage: "Web page to scrape",
					},
					&cli.StringFlag{
						Name:  "repo",
						Usage: "Code-host file as owner/repo/path[@ref]",
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Local markdown file to ingest as manual content",
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Title of manual content (default: first heading)",
					},
					&cli.StringFlag{
						Name:    "technology",
						Aliases: []string{"t"},
						Usage:   "Technology tag",
					},
					&cli.StringFlag{
						Name:  "partition",
						Usage: "Target partition (default: technology, then enrich.default_partition)",
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Document type (reference, api, guide, tutorial, blog, other)",
					},
					&cli.StringFlag{
						Name:  "version",
						Usage: "Version the document describes",
					},
				},
			},
			{
				Name:   "cleanup",
				Usage:  "Remove expired documents from every partition",
				Action: cleanupCommand,
			},
			{
				Name:   "ttl",
				Usage:  "Compute the lifetime assigned to a document",
				Action: ttlCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "technology",
						Aliases:  []string{"t"},
						Usage:    "Technology tag",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Document type",
						Value: string(core.DocumentTypeOther),
					},
					&cli.StringFlag{
						Name:  "version",
						Usage: "Version string, e.g. 2.0.0-beta.1 or latest",
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Document whose text is scanned for stability markers",
					},
				},
			},
			{
				Name:   "breakers",
				Usage:  "Show circuit breaker policies and states",
				Action: breakersCommand,
			},
			{
				Name:      "feedback",
				Usage:     "Adjust the quality score of a document",
				ArgsUsage: "<content-id>",
				Action:    feedbackCommand,
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:     "delta",
						Usage:    "Amount added to the quality score, e.g. -0.2",
						Required: true,
					},
				},
			},
		},
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, err
	}
	if c.IsSet("data-dir") {
		cfg.Storage.DataDir = c.String("data-dir")
	}
	if c.IsSet("content-dsn") {
		cfg.Storage.ContentDSN = c.String("content-dsn")
	}
	return cfg, nil
}

func openEngine(c *cli.Context, opts ...doccache.EngineOption) (*doccache.Engine, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	opts = append([]doccache.EngineOption{doccache.WithLogger(slog.Default())}, opts...)
	engine, err := doccache.NewEngine(c.Context, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

func searchCommand(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("query is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	resp, err := engine.Query(c.Context, orchestrator.Request{
		Query:      text,
		Technology: c.String("technology"),
		Deadline:   c.Duration("deadline"),
		ClientID:   c.String("client"),
		NoEnrich:   c.Bool("no-enrich"),
	})
	if err != nil && !errors.Is(err, core.ErrNoSources) {
		return fmt.Errorf("search failed: %w", err)
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResponse(c.App.Writer, resp)
	if resp.EnrichmentJob != "" {
		fmt.Fprintf(c.App.ErrWriter, "Enrichment job %s queued; waiting for it before exit\n", resp.EnrichmentJob)
	}
	return nil
}

func printResponse(w io.Writer, resp *orchestrator.Response) {
	var flags []string
	if resp.CacheHit {
		flags = append(flags, "cached")
	}
	if resp.Stale {
		flags = append(flags, "stale")
	}
	if resp.Partial() {
		flags = append(flags, "partial")
	}
	status := ""
	if len(flags) > 0 {
		status = " (" + strings.Join(flags, ", ") + ")"
	}
	fmt.Fprintf(w, "Query: %s%s in %s\n", resp.Query.Text, status, resp.Elapsed.Round(time.Millisecond))

	if resp.Result == nil || len(resp.Result.Results) == 0 {
		fmt.Fprintln(w, "No results.")
	} else {
		for i, hit := range resp.Result.Results {
			fmt.Fprintf(w, "%2d. [%.3f] %s (%s, %s)\n", i+1, hit.Score, hit.Title, hit.Partition, hit.ContentID)
			if hit.Snippet != "" {
				fmt.Fprintf(w, "    %s\n", strings.ReplaceAll(hit.Snippet, "\n", " "))
			}
		}
	}
	if resp.Result != nil && len(resp.Result.FailedPartitions) > 0 {
		fmt.Fprintf(w, "Failed partitions: %s\n", strings.Join(resp.Result.FailedPartitions, ", "))
	}
	if v := resp.Verdict; v != nil {
		fmt.Fprintf(w, "Sufficiency: %.2f (confidence %.2f)\n", v.Sufficiency, v.Confidence)
	}
}

func ingestTarget(c *cli.Context) (core.AcquisitionTarget, acquire.RawContent, error) {
	target := core.AcquisitionTarget{
		Technology:   c.String("technology"),
		Partition:    c.String("partition"),
		DocumentType: core.DocumentType(c.String("type")),
		Version:      c.String("version"),
	}

	var sources int
	for _, name := range []string{"url", "repo", "file"} {
		if c.String(name) != "" {
			sources++
		}
	}
	if sources != 1 {
		return target, nil, fmt.Errorf("exactly one of --url, --repo or --file is required")
	}

	switch {
	case c.String("url") != "":
		target.Kind = core.SourceWeb
		target.Location = c.String("url")
	case c.String("repo") != "":
		target.Kind = core.SourceCodeHost
		target.Location = c.String("repo")
	default:
		path := c.String("file")
		data, err := os.ReadFile(path)
		if err != nil {
			return target, nil, fmt.Errorf("read %s: %w", path, err)
		}
		target.Kind = core.SourceManual
		target.Location = path
		return target, &acquire.ManualContent{Title: c.String("title"), Body: string(data), URL: path}, nil
	}
	return target, nil, nil
}

func ingestCommand(c *cli.Context) error {
	target, raw, err := ingestTarget(c)
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	var record *core.ContentRecord
	if raw != nil {
		record, err = engine.IngestRaw(c.Context, raw, target)
	} else {
		record, err = engine.Acquire(c.Context, target)
	}
	if err != nil {
		var below *core.BelowThresholdError
		if errors.As(err, &below) {
			return fmt.Errorf("content rejected: quality %.2f is below %.2f", below.Score, below.Threshold)
		}
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Ingested %s into %s\n", record.ContentID, record.Partition)
	fmt.Fprintf(c.App.Writer, "  title:   %s\n", record.Title)
	fmt.Fprintf(c.App.Writer, "  quality: %.2f\n", record.QualityScore)
	fmt.Fprintf(c.App.Writer, "  expires: %s (%s)\n", record.ExpiresAt.Format(time.RFC3339),
		record.ExpiresAt.Sub(record.CreatedAt))
	return nil
}

func cleanupCommand(c *cli.Context) error {
	engine, err := openEngine(c, doccache.WithProgress(c.App.ErrWriter))
	if err != nil {
		return err
	}
	defer engine.Close()

	report, err := engine.Sweep(c.Context)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Partitions: %d\n", len(report.Partitions))
	fmt.Fprintf(c.App.Writer, "Deleted:    %d\n", report.Deleted)
	fmt.Fprintf(c.App.Writer, "Expired:    %d content records\n", report.RecordsExpired)
	fmt.Fprintf(c.App.Writer, "Refreshed:  %d freshness scores\n", report.FreshnessUpdated)
	if report.Failed > 0 || len(report.FailedSweeps) > 0 {
		fmt.Fprintf(c.App.Writer, "Failed:     %d documents, partitions %s\n",
			report.Failed, strings.Join(report.FailedSweeps, ", "))
	}
	return nil
}

func ttlCommand(c *cli.Context) error {
	var text string
	if path := c.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		text = string(data)
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	lifetime := engine.ComputeTTL(c.String("technology"), core.DocumentType(c.String("type")), text, c.String("version"))
	fmt.Fprintln(c.App.Writer, lifetime)
	return nil
}

func breakersCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()
	cfg := engine.Config()

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tTHRESHOLD\tRECOVERY\tREQUEST TIMEOUT")
	for _, row := range []struct {
		category breaker.Category
		policy   config.Policy
	}{
		{breaker.ExternalAPI, cfg.Breakers.ExternalAPI},
		{breaker.InternalService, cfg.Breakers.InternalService},
		{breaker.WebScraping, cfg.Breakers.WebScraping},
	} {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", row.category, row.policy.FailureThreshold,
			row.policy.RecoveryTimeout, row.policy.RequestTimeout)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	states := engine.Breakers()
	if len(states) == 0 {
		fmt.Fprintln(c.App.Writer, "\nNo breakers have been exercised in this process.")
		return nil
	}
	fmt.Fprintln(c.App.Writer)
	w = tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tDESTINATION\tSTATE\tFAILURES")
	for _, s := range states {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.Category, s.Destination, s.State, s.ConsecutiveFailures)
	}
	return w.Flush()
}

func feedbackCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("content id is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	record, err := engine.Feedback(c.Context, id, c.Float64("delta"))
	if err != nil {
		return fmt.Errorf("feedback failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s: quality %.2f, status %s\n", record.ContentID, record.QualityScore, record.Status)
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
