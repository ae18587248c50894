package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const samplePage = `<html><body>
	<h1 class="title"> Two-room flat, 54 m² </h1>
	<span class="price">12 500 000</span>
	<ul class="params">
		<li><span>Floor</span><span>5 of 9</span></li>
		<li><span>orphan</span></li>
		<li><span>Year</span><span>2008</span></li>
	</ul>
</body></html>`

func writeSpec(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fields.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return path
}

func runCheck(t *testing.T, spec, page string) (int, string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	code := run(
		context.Background(),
		[]string{"-spec", writeSpec(t, spec)},
		bytes.NewBufferString(page),
		&stdout,
		&stderr,
		http.DefaultClient,
	)
	return code, stdout.String(), stderr.String()
}

func TestRun_AllFieldsOK(t *testing.T) {
	t.Parallel()

	code, out, errOut := runCheck(t, `{
		"fields": [
			{"name":"title","locator":{"selector":"h1.title"},"required":true},
			{"name":"params","locator":{"selector":"ul.params"},"kind":"pair","items":"li","all":true}
		]
	}`, samplePage)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, errOut)
	}
	if !strings.Contains(out, "ok    title: Two-room flat, 54 m²") {
		t.Fatalf("missing title line in output:\n%s", out)
	}
	if !strings.Contains(out, "ok    params: 2 pairs (1 skipped)") {
		t.Fatalf("missing params line in output:\n%s", out)
	}
	if !strings.Contains(out, "2/2 fields ok, 1 malformed items skipped") {
		t.Fatalf("missing summary line in output:\n%s", out)
	}
}

func TestRun_FallbackAnnotated(t *testing.T) {
	t.Parallel()

	code, out, errOut := runCheck(t, `{
		"fields": [
			{"name":"price","locator":{"selector":".price-new"},"fallbacks":[{"selector":".price"}]}
		]
	}`, samplePage)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, errOut)
	}
	if !strings.Contains(out, "ok    price via fallback 1: 12 500 000") {
		t.Fatalf("missing fallback annotation in output:\n%s", out)
	}
}

func TestRun_RequiredMissingFails(t *testing.T) {
	t.Parallel()

	code, out, _ := runCheck(t, `{
		"fields": [
			{"name":"title","locator":{"selector":"h1.title"},"required":true},
			{"name":"gallery","locator":{"selector":".gallery img"},"fallbacks":[{"selector":".photos img"}],"required":true},
			{"name":"agent","locator":{"selector":".agent"}}
		]
	}`, samplePage)
	if code != 1 {
		t.Fatalf("run returned %d, want 1; out=%s", code, out)
	}
	if !strings.Contains(out, "FAIL  gallery (tried 2 selectors)") {
		t.Fatalf("missing required-failure line in output:\n%s", out)
	}
	if !strings.Contains(out, "miss  agent (tried 1 selectors)") {
		t.Fatalf("missing optional-miss line in output:\n%s", out)
	}
	if !strings.Contains(out, "1/3 fields ok") || !strings.Contains(out, "1 required missing") {
		t.Fatalf("missing summary counts in output:\n%s", out)
	}
}

func TestRun_MissingSpecIsUsageError(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := run(
		context.Background(),
		nil,
		bytes.NewBufferString(samplePage),
		&stdout,
		&stderr,
		http.DefaultClient,
	)
	if code != 2 {
		t.Fatalf("run returned %d, want 2", code)
	}
}
