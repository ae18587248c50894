package storage

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"listingcheck/internal/extract"
)

type fakeRepo struct{}

func (fakeRepo) Close()                                         {}
func (fakeRepo) EnsureSchema(context.Context) error             { return nil }
func (fakeRepo) SaveReport(context.Context, ReportRecord) error { return nil }

func TestNew_EmptyKind(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
}

func TestNew_UnsupportedKind(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "nosuchdb"})
	if err == nil || !strings.Contains(err.Error(), "unsupported storage kind") {
		t.Fatalf("expected unsupported kind error, got %v", err)
	}
}

func TestRegister_AndNew(t *testing.T) {
	Register("fake-registered", func(ctx context.Context, cfg Config) (Repository, error) {
		return fakeRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: "fake-registered", DSN: "ignored"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if repo == nil {
		t.Fatalf("expected repository, got nil")
	}
}

func TestRegister_Panics(t *testing.T) {
	mustPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		fn()
	}

	mustPanic("empty kind", func() { Register("", func(context.Context, Config) (Repository, error) { return fakeRepo{}, nil }) })
	mustPanic("nil factory", func() { Register("fake-nil", nil) })

	Register("fake-dup", func(context.Context, Config) (Repository, error) { return fakeRepo{}, nil })
	mustPanic("duplicate kind", func() { Register("fake-dup", func(context.Context, Config) (Repository, error) { return fakeRepo{}, nil }) })
}

func TestFieldRows(t *testing.T) {
	t.Parallel()

	const page = `<html><body><h1 class="title"> Hello </h1></body></html>`
	specs := []extract.FieldSpec{
		{Name: "title", Locator: extract.Locator{Selector: "h1.title"}, Kind: extract.KindText},
		{Name: "missing", Locator: extract.Locator{Selector: ".nope"}, Kind: extract.KindText},
	}
	report, err := extract.ExtractHTML(page, specs, extract.Options{})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	rows, err := FieldRows(report)
	if err != nil {
		t.Fatalf("FieldRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Position != 0 || rows[0].Name != "title" || rows[0].Status != "ok" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Position != 1 || rows[1].Name != "missing" || rows[1].Status != "missing" {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(rows[0].Payload), &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if payload["value"] != "Hello" {
		t.Fatalf("payload value = %v, want Hello", payload["value"])
	}
}

func TestFieldRows_NilReport(t *testing.T) {
	t.Parallel()

	if _, err := FieldRows(nil); err == nil {
		t.Fatalf("expected error for nil report")
	}
}
