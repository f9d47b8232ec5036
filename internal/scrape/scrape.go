// Package scrape turns fetched forum pages into ordered post records. It
// owns the per-page extraction rules, the sequential pagination fetch, and
// the assembly of the final thread document.
package scrape

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hyperifyio/gothreadpdf/internal/model"
	"github.com/hyperifyio/gothreadpdf/internal/normalize"
)

var (
	postNumberRe  = regexp.MustCompile(`#+\s*\d+`)
	quoteAuthorRe = regexp.MustCompile(`(?i)^quote from:?\s*(.+?)(?:\s+on\s+.*)?$`)
	paginationRe  = regexp.MustCompile(`\d+`)
)

// ExtractThreadTitle reads the thread title from page one, falling back to
// the document <title>.
func ExtractThreadTitle(doc *goquery.Document, p Profile) string {
	if t := strings.TrimSpace(doc.Find(p.ThreadTitle).First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// DiscoverPageCount reads the pagination control and returns the highest
// page number it names, or 1 when no control is found. Discovery failure is
// not an error; a thread with no pagination has one page.
func DiscoverPageCount(doc *goquery.Document, p Profile) int {
	max := 1
	doc.Find(p.Pagination).Each(func(_ int, s *goquery.Selection) {
		for _, m := range paginationRe.FindAllString(s.Text(), -1) {
			if n, err := strconv.Atoi(m); err == nil && n > max {
				max = n
			}
		}
	})
	return max
}

// ExtractPosts applies the profile's per-post rules to one page. The same
// rules run for every page regardless of origin. Posts with no content and
// no extractable author are dropped. The page document is consumed: excluded
// substructures are detached from it before body normalization.
func ExtractPosts(doc *goquery.Document, base *url.URL, pageIndex int, p Profile) []model.Post {
	var posts []model.Post
	doc.Find(p.Post).Each(func(i int, s *goquery.Selection) {
		post := extractPost(s, base, pageIndex, i, p)
		if post.Empty() {
			return
		}
		posts = append(posts, post)
	})
	return posts
}

func extractPost(s *goquery.Selection, base *url.URL, pageIndex, ordinal int, p Profile) model.Post {
	post := model.Post{PageIndex: pageIndex}

	if id, ok := s.Attr("id"); ok && strings.TrimSpace(id) != "" {
		post.ID = strings.TrimSpace(id)
	} else {
		post.ID = fmt.Sprintf("page%d-post%d", pageIndex, ordinal+1)
	}

	share := s.Find(p.PostNumber).First()
	if m := postNumberRe.FindString(share.Text()); m != "" {
		post.PostNumber = model.NormalizePostNumber(strings.ReplaceAll(m, " ", ""))
	}
	if href, ok := share.Attr("href"); ok {
		post.PostURL = resolveURL(base, href)
	}

	post.Author = model.UnknownAuthor
	if a := strings.TrimSpace(s.Find(p.Author).First().Text()); a != "" {
		post.Author = a
	}
	post.Date = strings.TrimSpace(s.Find(p.Date).First().Text())

	post.Quotes = extractQuotes(s, p)
	post.Attachments = extractAttachments(s, base, p)

	// Quotes and attachments are rendered from their structured records;
	// detach them (and other excluded substructures) so the body text does
	// not repeat them.
	for _, sel := range p.Excluded {
		s.Find(sel).Remove()
	}
	if body := s.Find(p.Content).First(); len(body.Nodes) > 0 {
		post.Content = normalize.FlattenChildren(body.Nodes[0])
	}
	return post
}

func extractQuotes(s *goquery.Selection, p Profile) []model.Quote {
	headers := s.Find(p.QuoteHeader)
	var quotes []model.Quote
	s.Find(p.QuoteBlock).Each(func(i int, block *goquery.Selection) {
		q := model.Quote{}
		if i < headers.Length() {
			q.Title = strings.TrimSpace(headers.Eq(i).Text())
		}
		if m := quoteAuthorRe.FindStringSubmatch(q.Title); m != nil {
			q.Author = strings.TrimSpace(m[1])
		}
		if len(block.Nodes) > 0 {
			q.Content = normalize.FlattenChildren(block.Nodes[0])
		}
		if q.Content == "" && q.Title == "" {
			return
		}
		quotes = append(quotes, q)
	})
	return quotes
}

func extractAttachments(s *goquery.Selection, base *url.URL, p Profile) []model.Attachment {
	var atts []model.Attachment
	s.Find(p.Attachment).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		abs := resolveURL(base, href)
		name := strings.TrimSpace(a.Text())
		if name == "" {
			name, _ = a.Attr("title")
			name = strings.TrimSpace(name)
		}
		if name == "" {
			if u, err := url.Parse(abs); err == nil {
				name = path.Base(u.Path)
			}
		}
		if name == "" || name == "." || name == "/" {
			name = model.DefaultAttachmentName
		}
		atts = append(atts, model.Attachment{
			Filename: name,
			URL:      abs,
			Kind:     model.ClassifyAttachment(abs),
		})
	})
	return atts
}

func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
