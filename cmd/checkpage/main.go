// Command checkpage runs a field spec against one page and prints a
// human-readable per-field summary instead of JSON. It is the quick health
// check for a spec: run it after a site changes its markup to see which
// selectors still hold, which fields survive only via fallbacks, and which
// are gone.
//
// Usage:
//
//	checkpage -spec fields.yaml -url "https://example.com/flat/42"
//	cat page.html | checkpage -spec fields.yaml
//
// Exit code is 1 when any required field is missing, so the command works as
// a monitoring probe.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"listingcheck/internal/extract"
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

// run returns a Unix-style exit code:
//   - 0 when every required field was extracted
//   - 1 when a required field is missing or a runtime error occurred
//   - 2 for usage/config errors
func run(
	ctx context.Context,
	args []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	httpClient *http.Client,
) int {
	fs := flag.NewFlagSet("checkpage", flag.ContinueOnError)
	fs.SetOutput(stderr)

	specPath := fs.String("spec", "", "Path to field spec file, JSON or YAML (required)")
	urlFlag := fs.String("url", "", "Optional: fetch HTML from URL instead of stdin")
	fileFlag := fs.String("file", "", "Optional: read HTML from a local file instead of stdin")
	baseFlag := fs.String("base", "", "Base URL for resolving url fields (overrides the spec file)")
	timeout := fs.Duration("timeout", 20*time.Second, "Timeout for -url fetch")
	verbose := fs.Bool("v", false, "Enable per-field trace logging")

	if err := fs.Parse(args); err != nil {
		return 2
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

	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).
		With().Timestamp().Logger().
		Level(zerolog.WarnLevel)
	if *verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}

	loader := extract.NewLoader(httpClient, *timeout)
	html, err := loader.Load(ctx, extract.Input{
		URL:   *urlFlag,
		File:  *fileFlag,
		Stdin: stdin,
	})
	if err != nil {
		fmt.Fprintf(stderr, "load html: %v\n", err)
		return 1
	}

	baseURL := sf.BaseURL
	if *baseFlag != "" {
		baseURL = *baseFlag
	}

	trace := &extract.CollectSink{}
	report, err := extract.ExtractHTML(html, sf.Fields, extract.Options{
		BaseURL: baseURL,
		Trace:   trace,
	})
	if err != nil {
		fmt.Fprintf(stderr, "extract: %v\n", err)
		return 1
	}

	attempts := map[string]int{}
	for _, e := range trace.Entries {
		attempts[e.Field] = len(e.Attempts)
	}

	requiredMissing := 0
	for i, spec := range sf.Fields {
		res := report.Fields()[i]
		printField(stdout, spec, res, attempts[spec.Name])
		if spec.Required && !res.OK() {
			requiredMissing++
		}
	}

	fmt.Fprintf(stdout, "\n%d/%d fields ok", report.Len()-report.FailedCount(), report.Len())
	if n := report.SkippedCount(); n > 0 {
		fmt.Fprintf(stdout, ", %d malformed items skipped", n)
	}
	if requiredMissing > 0 {
		fmt.Fprintf(stdout, ", %d required missing", requiredMissing)
	}
	fmt.Fprintln(stdout)

	if requiredMissing > 0 {
		return 1
	}
	return 0
}

func printField(w io.Writer, spec extract.FieldSpec, res extract.FieldResult, attempts int) {
	if !res.OK() {
		mark := "FAIL"
		if !spec.Required {
			mark = "miss"
		}
		fmt.Fprintf(w, "%s  %s (tried %d selectors)\n", mark, spec.Name, attempts)
		return
	}

	via := ""
	if res.Strategy > 0 {
		via = fmt.Sprintf(" via fallback %d", res.Strategy)
	}
	fmt.Fprintf(w, "ok    %s%s: %s\n", spec.Name, via, preview(res))
}

// preview renders a one-line summary of a field value for terminal output.
func preview(res extract.FieldResult) string {
	switch {
	case len(res.Pairs) > 0:
		s := fmt.Sprintf("%d pairs", len(res.Pairs))
		if res.Skipped > 0 {
			s += fmt.Sprintf(" (%d skipped)", res.Skipped)
		}
		return s
	case len(res.Values) > 0:
		return fmt.Sprintf("%d values, first %s", len(res.Values), truncate(res.Values[0], 60))
	case res.Value == "":
		return "(empty)"
	default:
		return truncate(res.Value, 80)
	}
}

func truncate(s string, max int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "…"
}
