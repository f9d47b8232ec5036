package scrape

import (
	"time"

	"github.com/hyperifyio/gothreadpdf/internal/model"
)

// BuildDocument flattens per-page results into one ordered thread document.
// Successful pages contribute their posts in page order; failed pages
// contribute nothing. No deduplication is performed: if upstream pagination
// shows the same post on two consecutive pages, both copies are retained.
func BuildDocument(title, sourceURL string, results []PageResult, scrapedAt time.Time) *model.ThreadDocument {
	doc := &model.ThreadDocument{
		Title:     title,
		SourceURL: sourceURL,
		ScrapedAt: scrapedAt,
	}
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		doc.Posts = append(doc.Posts, r.Posts...)
	}
	return doc
}
