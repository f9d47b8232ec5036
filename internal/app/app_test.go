package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperifyio/gothreadpdf/internal/store"
)

func postHTML(id, number, author, date, inner string) string {
	return fmt.Sprintf(`<div class="post_wrapper" id=%q>
  <div class="poster"><h4>%s</h4></div>
  <div class="keyinfo">
    <div class="smalltext">%s</div>
    <a class="message_number" href="?topic=42.msg%s#msg%s">%s</a>
  </div>
  <div class="post"><div class="inner">%s</div></div>
</div>`, id, author, date, id, id, number, inner)
}

func threadPage(title, pagelinks, posts string) string {
	return `<html><head><title>` + title + `</title></head><body><h1 class="thread-title">` + title + `</h1>` +
		pagelinks + posts + `</body></html>`
}

// twoPageThread serves a thread whose first page advertises two pages.
func twoPageThread(t *testing.T) *httptest.Server {
	t.Helper()
	links := `<div class="pagelinks"><a class="nav_page" href="?page=1">1</a><a class="nav_page" href="?page=2">2</a></div>`
	pages := map[string]string{
		"1": threadPage("Garage heater build", links,
			postHTML("101", "#1", "alice", "day 1", "<p>parts arrived</p>")),
		"2": threadPage("Garage heater build", links,
			postHTML("201", "#2", "bob", "day 2", "<p>wired it up</p>")),
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "" {
			page = "1"
		}
		body, ok := pages[page]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
}

func TestExportThread_EndToEnd(t *testing.T) {
	srv := twoPageThread(t)
	defer srv.Close()
	outDir := t.TempDir()

	a, err := New(Config{
		ThreadURL: srv.URL + "/index.php?topic=42&msg=7",
		OutputDir: outDir,
		Timeout:   5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := a.ExportThread(context.Background())
	if err != nil {
		t.Fatalf("ExportThread: %v", err)
	}
	if !bytes.HasPrefix(res.PDF, []byte("%PDF")) {
		t.Fatalf("result is not a PDF")
	}
	if res.Document.Title != "Garage heater build" {
		t.Fatalf("title = %q", res.Document.Title)
	}
	if len(res.Document.Posts) != 2 {
		t.Fatalf("posts = %d, want 2 (one per page)", len(res.Document.Posts))
	}
	if res.StoredPath == "" {
		t.Fatalf("sink was not used")
	}
	if _, err := os.Stat(res.StoredPath); err != nil {
		t.Fatalf("stored PDF missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "manifest.yaml")); err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
}

func TestExportThread_RejectsConcurrentExport(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(entered) })
		<-release
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(threadPage("T", "", postHTML("1", "#1", "a", "d", "<p>x</p>"))))
	}))
	defer srv.Close()

	a, err := New(Config{ThreadURL: srv.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := a.ExportThread(context.Background())
		done <- err
	}()
	<-entered

	if _, err := a.ExportThread(context.Background()); !errors.Is(err, ErrExportInFlight) {
		t.Fatalf("second export: got %v, want ErrExportInFlight", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first export: %v", err)
	}
}

type failSink struct{}

func (failSink) Store(context.Context, []byte, store.ExportMeta) (string, error) {
	return "", errors.New("disk full")
}

func TestExportThread_SinkFailureDoesNotFailExport(t *testing.T) {
	srv := twoPageThread(t)
	defer srv.Close()

	a, err := New(Config{ThreadURL: srv.URL + "/index.php?topic=42", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.SetSink(failSink{})

	res, err := a.ExportThread(context.Background())
	if err != nil {
		t.Fatalf("ExportThread must succeed despite sink failure: %v", err)
	}
	if len(res.PDF) == 0 {
		t.Fatalf("PDF lost")
	}
	if res.StoredPath != "" {
		t.Fatalf("stored path set despite sink failure")
	}
}

func TestExportThread_NoExtractablePosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(threadPage("Empty", "", "")))
	}))
	defer srv.Close()

	a, err := New(Config{ThreadURL: srv.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.ExportThread(context.Background()); err == nil {
		t.Fatalf("expected error for thread with no posts")
	}
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(Config{}); err == nil {
		t.Fatalf("missing URL must fail validation")
	}
	if err := ValidateConfig(Config{ThreadURL: "https://forum.example", Pages: -1}); err == nil {
		t.Fatalf("negative pages must fail validation")
	}
	if err := ValidateConfig(Config{ThreadURL: "https://forum.example"}); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestApplyFileConfig_PreservesExplicitFlags(t *testing.T) {
	var fc FileConfig
	fc.URL = "https://file.example/thread"
	fc.Pages = 4
	fc.Fetch.UA = "from-file/1.0"
	fc.Cache.Dir = "/tmp/cache-from-file"

	cfg := Config{ThreadURL: "https://flag.example/thread"}
	ApplyFileConfig(&cfg, fc)

	if cfg.ThreadURL != "https://flag.example/thread" {
		t.Fatalf("explicit flag overridden: %q", cfg.ThreadURL)
	}
	if cfg.Pages != 4 || cfg.UserAgent != "from-file/1.0" || cfg.CacheDir != "/tmp/cache-from-file" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
}

func TestLoadConfigFile_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()

	ypath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(ypath, []byte("url: https://forum.example/t\npages: 2\nfetch:\n  ua: tester/1.0\n"), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	fc, err := LoadConfigFile(ypath)
	if err != nil {
		t.Fatalf("LoadConfigFile yaml: %v", err)
	}
	if fc.URL != "https://forum.example/t" || fc.Pages != 2 || fc.Fetch.UA != "tester/1.0" {
		t.Fatalf("yaml config wrong: %+v", fc)
	}

	jpath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(jpath, []byte(`{"url":"https://forum.example/j","pages":3}`), 0o644); err != nil {
		t.Fatalf("write json: %v", err)
	}
	fc, err = LoadConfigFile(jpath)
	if err != nil {
		t.Fatalf("LoadConfigFile json: %v", err)
	}
	if fc.URL != "https://forum.example/j" || fc.Pages != 3 {
		t.Fatalf("json config wrong: %+v", fc)
	}
}
