package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jobsift/jobsift/internal/ingest"
	"github.com/jobsift/jobsift/internal/jobfeed"
	"github.com/jobsift/jobsift/internal/model"
	"github.com/jobsift/jobsift/internal/repository"
)

type summary struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Filters  int      `json:"filters_marked"`
	Errors   []string `json:"errors,omitempty"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string for filters")
		feedURL     = flag.String("job-feed-url", os.Getenv("JOB_FEED_DATABASE_URL"), "PostgreSQL connection string for jobs (defaults to -database-url)")
		input       = flag.String("input", "-", "NDJSON file of scraped jobs, or - for stdin")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if *feedURL == "" {
		*feedURL = *databaseURL
	}

	var src io.Reader = os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open input:", err)
			os.Exit(1)
		}
		defer f.Close()
		src = f
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	feedDB, err := jobfeed.Open(ctx, *feedURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect job feed:", err)
		os.Exit(1)
	}
	defer feedDB.Close()
	feed := jobfeed.NewRepository(feedDB)

	out, err := importJobs(ctx, src, ingest.NewImporter(feed, repo))
	if err != nil {
		fmt.Fprintln(os.Stderr, "import:", err)
		os.Exit(1)
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Printf("imported %d jobs, skipped %d, marked %d filters\n", out.Imported, out.Skipped, out.Filters)
		for _, e := range out.Errors {
			fmt.Fprintln(os.Stderr, e)
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

const batchSize = 500

func importJobs(ctx context.Context, src io.Reader, importer *ingest.Importer) (*summary, error) {
	out := &summary{}
	now := time.Now().UTC()
	marked := make(map[string]struct{})

	flush := func(batch []*model.Job) error {
		if len(batch) == 0 {
			return nil
		}
		res, err := importer.Import(ctx, batch)
		out.Imported += res.Jobs
		if err != nil {
			return err
		}
		for _, job := range batch {
			for _, h := range job.SearchHashes {
				marked[h] = struct{}{}
			}
		}
		out.Filters = len(marked)
		return nil
	}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	batch := make([]*model.Job, 0, batchSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		job, err := ingest.DecodeRecord([]byte(raw), now)
		if err != nil {
			out.Skipped++
			out.Errors = append(out.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		batch = append(batch, job)
		if len(batch) == batchSize {
			if err := flush(batch); err != nil {
				return out, fmt.Errorf("line %d: %w", line, err)
			}
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("read input: %w", err)
	}

	if err := flush(batch); err != nil {
		return out, err
	}
	return out, nil
}
