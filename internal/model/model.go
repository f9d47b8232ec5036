package model

import (
	"path"
	"strings"
	"time"
)

// UnknownAuthor is the sentinel used when a post's author cannot be extracted.
const UnknownAuthor = "Unknown Author"

// DefaultAttachmentName is used when an attachment link carries no filename.
const DefaultAttachmentName = "Attachment"

// ThreadDocument is the assembled, ordered view of one forum thread. It is
// built once per export after all pages have been fetched and is not mutated
// afterwards.
type ThreadDocument struct {
	Title     string
	SourceURL string
	ScrapedAt time.Time
	Posts     []Post
}

// PageCount reports how many distinct source pages contributed posts.
func (d *ThreadDocument) PageCount() int {
	seen := map[int]bool{}
	for _, p := range d.Posts {
		seen[p.PageIndex] = true
	}
	return len(seen)
}

// Post is one user-authored message. PageIndex is the 1-based page the post
// was extracted from; across Posts it is non-decreasing because pages are
// appended in ascending order.
type Post struct {
	ID          string
	PostNumber  string
	PostURL     string
	Author      string
	Date        string
	Content     string
	Attachments []Attachment
	Quotes      []Quote
	PageIndex   int
}

// Empty reports whether the post carries no extractable identity: no content
// and only the fallback author. Such posts are dropped during extraction.
func (p Post) Empty() bool {
	return strings.TrimSpace(p.Content) == "" && p.Author == UnknownAuthor
}

// Quote is an embedded excerpt of another post.
type Quote struct {
	Title   string
	Content string
	Author  string
}

// AttachmentKind classifies an attachment by its URL file extension.
type AttachmentKind string

const (
	KindImage AttachmentKind = "image"
	KindVideo AttachmentKind = "video"
	KindAudio AttachmentKind = "audio"
	KindFile  AttachmentKind = "file"
)

// Attachment references a file linked from a post.
type Attachment struct {
	Filename string
	URL      string
	Kind     AttachmentKind
}

var kindByExt = map[string]AttachmentKind{
	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".gif":  KindImage,
	".webp": KindImage,
	".bmp":  KindImage,
	".svg":  KindImage,
	".mp4":  KindVideo,
	".webm": KindVideo,
	".mov":  KindVideo,
	".avi":  KindVideo,
	".mkv":  KindVideo,
	".mp3":  KindAudio,
	".wav":  KindAudio,
	".ogg":  KindAudio,
	".flac": KindAudio,
	".m4a":  KindAudio,
}

// ClassifyAttachment derives the attachment kind from the URL's file
// extension, case-insensitively. Unknown or missing extensions classify as
// KindFile.
func ClassifyAttachment(rawURL string) AttachmentKind {
	u := rawURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	ext := strings.ToLower(path.Ext(u))
	if k, ok := kindByExt[ext]; ok {
		return k
	}
	return KindFile
}

// NormalizePostNumber collapses a run of leading '#' characters to exactly
// one, so "##3" and "#3" both become "#3". Input without a leading hash is
// returned trimmed but otherwise unchanged.
func NormalizePostNumber(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return s
	}
	return "#" + strings.TrimLeft(s, "#")
}
