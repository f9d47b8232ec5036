package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGet_RetriesTransientThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 3, PerRequestTimeout: 2 * time.Second}
	body, ct, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected retry after 500, got %d calls", calls)
	}
	if !strings.Contains(string(body), "ok") {
		t.Fatalf("unexpected body %q", body)
	}
	if !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestGet_RejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{0x00, 0x01})
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 1}
	if _, _, err := c.Get(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected content-type error")
	}
}

func TestGet_SendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	c := &Client{UserAgent: "gothreadpdf/1.0"}
	if _, _, err := c.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotUA != "gothreadpdf/1.0" {
		t.Fatalf("user agent not sent, got %q", gotUA)
	}
}

func TestGet_ServesFromCacheOn304(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("<html>cached page</html>"))
	}))
	defer srv.Close()

	c := &Client{Cache: &PageCache{Dir: t.TempDir()}}
	first, _, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	second, _, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("cached body mismatch: %q vs %q", first, second)
	}
	if calls != 2 {
		t.Fatalf("expected a revalidation round-trip, got %d calls", calls)
	}
}

func TestGet_RejectsUnsupportedScheme(t *testing.T) {
	c := &Client{}
	if _, _, err := c.Get(context.Background(), "ftp://example.com/thread"); err == nil {
		t.Fatalf("expected scheme error")
	}
}

func TestDecodeHTML_Latin1(t *testing.T) {
	// "café" with an ISO-8859-1 encoded e-acute byte.
	raw := []byte{'c', 'a', 'f', 0xE9}
	out, err := DecodeHTML(raw, "text/html; charset=iso-8859-1")
	if err != nil {
		t.Fatalf("DecodeHTML: %v", err)
	}
	if string(out) != "café" {
		t.Fatalf("expected decoded UTF-8, got %q", out)
	}
}

func TestDecodeHTML_UTF8PassThrough(t *testing.T) {
	in := []byte("<html><body>héllo</body></html>")
	out, err := DecodeHTML(in, "text/html; charset=utf-8")
	if err != nil {
		t.Fatalf("DecodeHTML: %v", err)
	}
	if string(out) != string(in) {
		t.Fatalf("expected pass-through, got %q", out)
	}
}
