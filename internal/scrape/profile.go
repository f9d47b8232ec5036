package scrape

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"
)

// Profile names the CSS selectors used to pull thread structure out of a
// page. The defaults target the SMF-style markup the exporter was written
// against; a YAML file can override individual selectors for other skins.
type Profile struct {
	// ThreadTitle locates the thread title on page one. The document
	// <title> is the fallback.
	ThreadTitle string `yaml:"threadTitle"`
	// Post matches one post container per post.
	Post string `yaml:"post"`
	// PostNumber matches the share link whose text carries "#N" and whose
	// href is the post permalink.
	PostNumber string `yaml:"postNumber"`
	// Author and Date are resolved within a post container.
	Author string `yaml:"author"`
	Date   string `yaml:"date"`
	// Content is the post body container, resolved within a post.
	Content string `yaml:"content"`
	// QuoteHeader and QuoteBlock pair by index within a post.
	QuoteHeader string `yaml:"quoteHeader"`
	QuoteBlock  string `yaml:"quoteBlock"`
	// Attachment matches one anchor per attached file.
	Attachment string `yaml:"attachment"`
	// Excluded substructures are removed from the body before
	// normalization so they are not rendered both structured and inline.
	Excluded []string `yaml:"excluded"`
	// Pagination matches the page-number links used for page-count
	// discovery.
	Pagination string `yaml:"pagination"`
	// PageParam is the query parameter that selects a page of the thread.
	PageParam string `yaml:"pageParam"`
}

// DefaultProfile returns the built-in selector set.
func DefaultProfile() Profile {
	return Profile{
		ThreadTitle: "h1.thread-title, div#top_subject",
		Post:        "div.post_wrapper",
		PostNumber:  "a.message_number",
		Author:      "div.poster h4",
		Date:        "div.keyinfo div.smalltext",
		Content:     "div.post div.inner",
		QuoteHeader: "div.quoteheader",
		QuoteBlock:  "blockquote.bbc_standard_quote",
		Attachment:  "div.attachments a",
		Excluded: []string{
			"div.quoteheader",
			"blockquote.bbc_standard_quote",
			"div.attachments",
			"div.signature",
			"div.moderatorbar",
		},
		Pagination: "div.pagelinks a.nav_page",
		PageParam:  "page",
	}
}

// LoadProfile overlays selectors from a YAML file onto the defaults. Only
// fields present in the file replace their defaults.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	b, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	var over Profile
	if err := yaml.Unmarshal(b, &over); err != nil {
		return p, fmt.Errorf("parse profile: %w", err)
	}
	if over.ThreadTitle != "" {
		p.ThreadTitle = over.ThreadTitle
	}
	if over.Post != "" {
		p.Post = over.Post
	}
	if over.PostNumber != "" {
		p.PostNumber = over.PostNumber
	}
	if over.Author != "" {
		p.Author = over.Author
	}
	if over.Date != "" {
		p.Date = over.Date
	}
	if over.Content != "" {
		p.Content = over.Content
	}
	if over.QuoteHeader != "" {
		p.QuoteHeader = over.QuoteHeader
	}
	if over.QuoteBlock != "" {
		p.QuoteBlock = over.QuoteBlock
	}
	if over.Attachment != "" {
		p.Attachment = over.Attachment
	}
	if len(over.Excluded) > 0 {
		p.Excluded = over.Excluded
	}
	if over.Pagination != "" {
		p.Pagination = over.Pagination
	}
	if over.PageParam != "" {
		p.PageParam = over.PageParam
	}
	return p, nil
}
