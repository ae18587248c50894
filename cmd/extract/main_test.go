package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func writeSpec(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fields.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return path
}

// TestRun_StdinReport verifies the "stdin + spec" happy path.
//
// We test via run() (not main()) so the test is fast, deterministic,
// and does not require an OS-level subprocess.
func TestRun_StdinReport(t *testing.T) {
	t.Parallel()

	specPath := writeSpec(t, `{
		"fields": [
			{"name":"title","locator":{"selector":"h1"}},
			{"name":"price","locator":{"selector":".price"}}
		]
	}`)

	stdin := bytes.NewBufferString(`<html><body><h1> Hello </h1></body></html>`)
	var stdout, stderr bytes.Buffer

	code := run(
		context.Background(),
		[]string{"-spec", specPath},
		stdin,
		&stdout,
		&stderr,
		http.DefaultClient,
	)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr.String())
	}

	var got map[string]map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("stdout is not valid json: %v; out=%s", err, stdout.String())
	}
	if got["title"]["value"] != "Hello" || got["title"]["status"] != "ok" {
		t.Fatalf("unexpected title result: %#v", got["title"])
	}
	if got["price"]["status"] != "missing" {
		t.Fatalf("unexpected price result: %#v", got["price"])
	}
}

// TestRun_DebugSelectorText verifies debug selector mode prints text (not JSON).
func TestRun_DebugSelectorText(t *testing.T) {
	t.Parallel()

	stdin := bytes.NewBufferString(`<div id="x">  A  </div><div id="x">B</div>`)
	var stdout, stderr bytes.Buffer

	code := run(
		context.Background(),
		[]string{"-selector", "div#x", "-text"},
		stdin,
		&stdout,
		&stderr,
		http.DefaultClient,
	)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr.String())
	}

	out := stdout.String()
	if out != "A\n\nB\n\n" {
		t.Fatalf("unexpected debug output: %q", out)
	}
}

func TestRun_MissingSpecIsUsageError(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := run(
		context.Background(),
		nil,
		bytes.NewBufferString("<html></html>"),
		&stdout,
		&stderr,
		http.DefaultClient,
	)
	if code != 2 {
		t.Fatalf("run returned %d, want 2; stderr=%s", code, stderr.String())
	}
}

// TestRun_URLFetch verifies the -url path end to end with httptest, including
// base URL resolution for url fields.
func TestRun_URLFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<html><body><img class="photo" src="/img/1.jpg"></body></html>`))
	}))
	t.Cleanup(srv.Close)

	specPath := writeSpec(t, `{
		"fields": [
			{"name":"photo","locator":{"selector":"img.photo"},"kind":"url","attrs":["src"]}
		]
	}`)

	var stdout, stderr bytes.Buffer
	client := &http.Client{Timeout: 2 * time.Second}

	code := run(
		context.Background(),
		[]string{"-spec", specPath, "-url", srv.URL, "-base", srv.URL},
		bytes.NewBuffer(nil),
		&stdout,
		&stderr,
		client,
	)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr.String())
	}

	var got map[string]map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("stdout is not valid json: %v", err)
	}
	if got["photo"]["value"] != srv.URL+"/img/1.jpg" {
		t.Fatalf("unexpected photo url: %#v", got["photo"]["value"])
	}
}

// TestRun_DirMode verifies directory mode emits one JSON array entry per file.
func TestRun_DirMode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for name, html := range map[string]string{
		"a.html": `<h1>First</h1>`,
		"b.html": `<h1>Second</h1>`,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(html), 0o600); err != nil {
			t.Fatalf("write page: %v", err)
		}
	}

	specPath := writeSpec(t, `{
		"fields": [{"name":"title","locator":{"selector":"h1"}}]
	}`)

	var stdout, stderr bytes.Buffer
	code := run(
		context.Background(),
		[]string{"-spec", specPath, "-dir", dir},
		bytes.NewBuffer(nil),
		&stdout,
		&stderr,
		http.DefaultClient,
	)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr.String())
	}

	var got []map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("stdout is not valid json: %v; out=%s", err, stdout.String())
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0]["source_file"] != "a.html" || got[1]["source_file"] != "b.html" {
		t.Fatalf("unexpected file order: %#v", got)
	}
}

func TestRun_StoreWithDirRejected(t *testing.T) {
	t.Parallel()

	specPath := writeSpec(t, `{
		"fields": [{"name":"title","locator":{"selector":"h1"}}]
	}`)

	var stdout, stderr bytes.Buffer
	code := run(
		context.Background(),
		[]string{"-spec", specPath, "-dir", t.TempDir(), "-store", "sqlite", "-dsn", "x"},
		bytes.NewBuffer(nil),
		&stdout,
		&stderr,
		http.DefaultClient,
	)
	if code != 2 {
		t.Fatalf("run returned %d, want 2; stderr=%s", code, stderr.String())
	}
}

// TestRun_StoreSqlite verifies the report lands in the configured store.
func TestRun_StoreSqlite(t *testing.T) {
	t.Parallel()

	specPath := writeSpec(t, `{
		"fields": [{"name":"title","locator":{"selector":"h1"}}]
	}`)
	dsn := filepath.Join(t.TempDir(), "reports.db")

	var stdout, stderr bytes.Buffer
	code := run(
		context.Background(),
		[]string{"-spec", specPath, "-store", "sqlite", "-dsn", dsn},
		bytes.NewBufferString(`<h1>Stored</h1>`),
		&stdout,
		&stderr,
		http.DefaultClient,
	)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr.String())
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var pageURL string
	if err := db.QueryRow("SELECT page_url FROM extraction_reports").Scan(&pageURL); err != nil {
		t.Fatalf("query report: %v", err)
	}
	if pageURL != "stdin" {
		t.Fatalf("page_url = %q, want stdin", pageURL)
	}
}
