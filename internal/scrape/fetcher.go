package scrape

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gothreadpdf/internal/fetch"
	"github.com/hyperifyio/gothreadpdf/internal/model"
)

// PageResult is the outcome of fetching and extracting one page: either its
// posts in page order or the error that made the page unusable. A failed
// page contributes zero posts and never aborts the rest of the fetch.
type PageResult struct {
	PageIndex int
	Posts     []model.Post
	Err       error
}

// Fetcher walks a thread's pages strictly in ascending order, one at a time.
// Post ordering across pages depends on this; the limiter inside the client
// paces the sequential requests.
type Fetcher struct {
	Client  *fetch.Client
	Profile Profile
}

// FetchDocument retrieves one page and parses it into a queryable document.
func (f *Fetcher) FetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, ct, err := f.Client.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	utf8Body, err := fetch.DecodeHTML(body, ct)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8Body))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return doc, nil
}

// FetchPage retrieves, decodes and extracts a single page.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string, pageIndex int) ([]model.Post, error) {
	doc, err := f.FetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageIndex, err)
	}
	base, _ := url.Parse(pageURL)
	return ExtractPosts(doc, base, pageIndex, f.Profile), nil
}

// FetchAllPages fetches pages 1..totalPages in ascending order and returns
// one PageResult per page. A fetch or parse failure is recorded on its page
// and logged with the page index; the loop continues so a single bad page
// cannot empty the whole export.
func (f *Fetcher) FetchAllPages(ctx context.Context, threadURL string, totalPages int) ([]PageResult, error) {
	canonical, err := Canonicalize(threadURL)
	if err != nil {
		return nil, err
	}
	if totalPages < 1 {
		totalPages = 1
	}
	results := make([]PageResult, 0, totalPages)
	for page := 1; page <= totalPages; page++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := PageResult{PageIndex: page}
		pageURL, err := PageURL(canonical, page, f.Profile.PageParam)
		if err != nil {
			res.Err = err
		} else {
			res.Posts, res.Err = f.FetchPage(ctx, pageURL, page)
		}
		if res.Err != nil {
			log.Warn().Err(res.Err).Int("page", page).Msg("page failed; continuing with remaining pages")
		} else {
			log.Debug().Int("page", page).Int("posts", len(res.Posts)).Msg("page extracted")
		}
		results = append(results, res)
	}
	return results, nil
}
