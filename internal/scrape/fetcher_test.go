package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/gothreadpdf/internal/fetch"
)

// threadServer serves a three-page thread where page 2 always fails.
func threadServer(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"1": wrapPage("Build log",
			postMarkup("101", "#1", "alice", "day 1", "<p>first</p>")+
				postMarkup("102", "#2", "bob", "day 1", "<p>second</p>")),
		"3": wrapPage("Build log",
			postMarkup("301", "#6", "carol", "day 3", "<p>sixth</p>")+
				postMarkup("302", "#7", "dan", "day 3", "<p>seventh</p>")+
				postMarkup("303", "#8", "erin", "day 3", "<p>eighth</p>")),
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "2" {
			http.Error(w, "gone", http.StatusInternalServerError)
			return
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

func TestFetchAllPages_OrderAndFaultTolerance(t *testing.T) {
	srv := threadServer(t)
	defer srv.Close()

	f := &Fetcher{
		Client:  &fetch.Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second},
		Profile: DefaultProfile(),
	}
	results, err := f.FetchAllPages(context.Background(), srv.URL+"/index.php?topic=42", 3)
	if err != nil {
		t.Fatalf("FetchAllPages: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 page results, got %d", len(results))
	}
	if results[0].Err != nil || len(results[0].Posts) != 2 {
		t.Fatalf("page 1: %+v", results[0])
	}
	if results[1].Err == nil || len(results[1].Posts) != 0 {
		t.Fatalf("page 2 should have failed: %+v", results[1])
	}
	if results[2].Err != nil || len(results[2].Posts) != 3 {
		t.Fatalf("page 3: %+v", results[2])
	}

	doc := BuildDocument("Build log", srv.URL, results, time.Now())
	if len(doc.Posts) != 5 {
		t.Fatalf("expected 5 posts from pages 1 and 3, got %d", len(doc.Posts))
	}
	last := 0
	for _, p := range doc.Posts {
		if p.PageIndex < last {
			t.Fatalf("page index regressed: %+v", doc.Posts)
		}
		last = p.PageIndex
		if p.PageIndex == 2 {
			t.Fatalf("failed page leaked posts: %+v", p)
		}
	}
}

func TestFetchAllPages_StripsPostAnchorFromThreadURL(t *testing.T) {
	var sawMsgParam bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("msg") != "" {
			sawMsgParam = true
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(wrapPage("T", postMarkup("1", "#1", "a", "d", "<p>x</p>"))))
	}))
	defer srv.Close()

	f := &Fetcher{Client: &fetch.Client{MaxAttempts: 1}, Profile: DefaultProfile()}
	if _, err := f.FetchAllPages(context.Background(), srv.URL+"/index.php?topic=42&msg=99", 1); err != nil {
		t.Fatalf("FetchAllPages: %v", err)
	}
	if sawMsgParam {
		t.Fatalf("single-post parameter was not stripped before fetching")
	}
}

func TestFetchAllPages_ContextCancel(t *testing.T) {
	srv := threadServer(t)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &Fetcher{Client: &fetch.Client{MaxAttempts: 1}, Profile: DefaultProfile()}
	if _, err := f.FetchAllPages(ctx, srv.URL, 3); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestBuildDocument_KeepsDuplicates(t *testing.T) {
	// Upstream pagination can repeat a post on two consecutive pages; the
	// builder keeps both copies.
	p1 := wrapPage("T", postMarkup("150", "#5", "alice", "d", "<p>boundary</p>"))
	results := []PageResult{}
	for page := 1; page <= 2; page++ {
		doc := pageDoc(t, p1)
		results = append(results, PageResult{PageIndex: page, Posts: ExtractPosts(doc, nil, page, DefaultProfile())})
	}
	doc := BuildDocument("T", "https://forum.example", results, time.Now())
	if len(doc.Posts) != 2 {
		t.Fatalf("duplicates must be retained, got %d posts", len(doc.Posts))
	}
}

func TestLoadProfile_Overlay(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/profile.yaml"
	if err := writeFile(path, "post: \"article.forum-post\"\npageParam: start\n"); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.Post != "article.forum-post" {
		t.Fatalf("override not applied: %q", p.Post)
	}
	if p.PageParam != "start" {
		t.Fatalf("pageParam override not applied: %q", p.PageParam)
	}
	if p.Author != DefaultProfile().Author {
		t.Fatalf("untouched selector changed: %q", p.Author)
	}
	if !strings.Contains(p.Content, "inner") {
		t.Fatalf("default content selector lost: %q", p.Content)
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
