// Command extract reads an HTML document (from stdin, a file, a URL, or a
// directory of files), applies a field spec, and prints the extraction report
// as JSON.
//
// Usage (stdin):
//
//	cat page.html | extract -spec fields.yaml
//
// Usage (fetch URL):
//
//	extract -spec fields.yaml -url "https://example.com/page"
//
// Usage (directory mode):
//
//	extract -spec fields.yaml -dir ./pages
//
// Debug (print outer HTML blocks):
//
//	cat page.html | extract -selector "div.gallery"
//
// Debug (print text for selector matches):
//
//	cat page.html | extract -selector ".price" -text
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"listingcheck/internal/extract"
	"listingcheck/internal/metrics"
	"listingcheck/internal/metrics/datadog"
	"listingcheck/internal/storage"

	// register all backends with the storage factory.
	_ "listingcheck/internal/storage/all"
)

func main() {
	os.Exit(run(
		context.Background(),
		os.Args[1:],
		os.Stdin,
		os.Stdout,
		os.Stderr,
		http.DefaultClient,
	))
}

// run is split out from main so we can unit test the command without spawning
// an OS process.
//
// It returns a Unix-style exit code:
//   - 0 for success
//   - 2 for usage/config errors
//   - 1 for operational/runtime errors
func run(
	ctx context.Context,
	args []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	httpClient *http.Client,
) int {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(stderr)

	onlyText := fs.Bool("text", false, "Debug: print text blocks for -selector matches (not JSON)")
	debugSelector := fs.String("selector", "", "Debug: CSS selector to print matches for (not JSON)")
	specPath := fs.String("spec", "", "Path to field spec file, JSON or YAML (required for extraction)")
	urlFlag := fs.String("url", "", "Optional: fetch HTML from URL instead of stdin")
	fileFlag := fs.String("file", "", "Optional: read HTML from a local file instead of stdin")
	dirFlag := fs.String("dir", "", "Optional: directory containing HTML files (one report per file)")
	baseFlag := fs.String("base", "", "Base URL for resolving url fields (overrides the spec file)")
	timeout := fs.Duration("timeout", 20*time.Second, "Timeout for -url fetch")
	storeKind := fs.String("store", "", "Storage backend for reports (sqlite, postgres, mssql)")
	storeDSN := fs.String("dsn", "", "Storage DSN, required with -store")
	useDatadog := fs.Bool("datadog", false, "Submit extraction metrics to Datadog")
	ddTags := fs.String("dd-tags", "", "Extra Datadog tags, CSV of key:value (overrides env METRICS_TAGS)")
	verbose := fs.Bool("v", false, "Enable per-field trace logging")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).
		With().Timestamp().Logger().
		Level(zerolog.WarnLevel)
	if *verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}

	loader := extract.NewLoader(httpClient, *timeout)

	// Debug selector mode needs HTML input but NOT a spec.
	if *debugSelector != "" {
		html, err := loader.Load(ctx, extract.Input{
			URL:   *urlFlag,
			File:  *fileFlag,
			Stdin: stdin,
		})
		if err != nil {
			fmt.Fprintf(stderr, "load html: %v\n", err)
			return 1
		}

		if err := extract.DebugPrintSelector(stdout, html, *debugSelector, *onlyText); err != nil {
			fmt.Fprintf(stderr, "debug selector: %v\n", err)
			return 1
		}
		return 0
	}

	if *specPath == "" {
		fmt.Fprintf(stderr, "missing -spec\n")
		return 2
	}

	sf, err := extract.LoadSpecFile(*specPath)
	if err != nil {
		fmt.Fprintf(stderr, "load spec: %v\n", err)
		return 2
	}

	baseURL := sf.BaseURL
	if *baseFlag != "" {
		baseURL = *baseFlag
	}
	opts := extract.Options{
		BaseURL: baseURL,
		Trace:   extract.LogSink{Logger: logger},
	}

	var backend metrics.Backend = metrics.Nop{}
	if *useDatadog {
		tags := datadog.ParseTagsCSV(*ddTags)
		if len(tags) == 0 {
			tags = datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		}
		dd, err := datadog.NewBackend(ctx, datadog.Options{Tags: tags})
		if err != nil {
			logger.Warn().Err(err).Msg("datadog init failed, metrics disabled")
		} else {
			backend = dd
			defer func() {
				if err := dd.Close(); err != nil {
					logger.Warn().Err(err).Msg("datadog close")
				}
			}()
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)

	// Directory mode: stream output as a single JSON array. Reports are not
	// persisted in this mode because directory files carry no page URL.
	if *dirFlag != "" {
		if *storeKind != "" {
			fmt.Fprintf(stderr, "-store cannot be combined with -dir\n")
			return 2
		}
		if err := extract.StreamFromDir(stdout, *dirFlag, sf.Fields, opts, enc); err != nil {
			fmt.Fprintf(stderr, "dir extract: %v\n", err)
			return 1
		}
		backend.IncCounter(metrics.PagesTotal, 1, nil)
		return 0
	}

	var repo storage.Repository
	if *storeKind != "" {
		if *storeDSN == "" {
			fmt.Fprintf(stderr, "-store requires -dsn\n")
			return 2
		}
		repo, err = storage.New(ctx, storage.Config{Kind: *storeKind, DSN: *storeDSN})
		if err != nil {
			fmt.Fprintf(stderr, "open storage: %v\n", err)
			return 1
		}
		defer repo.Close()
		if err := repo.EnsureSchema(ctx); err != nil {
			fmt.Fprintf(stderr, "ensure schema: %v\n", err)
			return 1
		}
	}

	// Single input mode: stdin, -file, or -url.
	html, err := loader.Load(ctx, extract.Input{
		URL:   *urlFlag,
		File:  *fileFlag,
		Stdin: stdin,
	})
	if err != nil {
		fmt.Fprintf(stderr, "load html: %v\n", err)
		return 1
	}

	fetchedAt := time.Now()
	start := time.Now()
	report, err := extract.ExtractHTML(html, sf.Fields, opts)
	if err != nil {
		fmt.Fprintf(stderr, "extract: %v\n", err)
		return 1
	}
	emitMetrics(backend, report, time.Since(start))

	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(stderr, "encode json: %v\n", err)
		return 1
	}

	if repo != nil {
		rec := storage.ReportRecord{
			PageURL:   pageIdentity(*urlFlag, *fileFlag),
			FetchedAt: fetchedAt,
			Report:    report,
		}
		if err := repo.SaveReport(ctx, rec); err != nil {
			fmt.Fprintf(stderr, "save report: %v\n", err)
			return 1
		}
	}
	return 0
}

// pageIdentity picks the stored page_url for a run: the fetched URL when one
// was given, else the file path, else "stdin".
func pageIdentity(url, file string) string {
	if url != "" {
		return url
	}
	if file != "" {
		return file
	}
	return "stdin"
}

func emitMetrics(b metrics.Backend, report *extract.Report, dur time.Duration) {
	b.IncCounter(metrics.PagesTotal, 1, nil)
	b.ObserveHistogram(metrics.DurationSeconds, dur.Seconds(), nil)
	for _, f := range report.Fields() {
		b.IncCounter(metrics.FieldsTotal, 1, metrics.Labels{
			"field":  f.Name,
			"status": string(f.Status),
		})
		if f.Skipped > 0 {
			b.IncCounter(metrics.ItemsSkipped, float64(f.Skipped), metrics.Labels{
				"field": f.Name,
			})
		}
	}
}
