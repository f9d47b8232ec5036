// Package store persists finished exports. The directory sink writes the
// PDF next to a manifest.yaml that accumulates one record per export, so a
// directory of exports stays browsable without opening any file.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// ExportMeta describes one finished export for the manifest record.
type ExportMeta struct {
	Title     string    `yaml:"title"`
	SourceURL string    `yaml:"sourceUrl"`
	Posts     int       `yaml:"posts"`
	Pages     int       `yaml:"pages"`
	Size      int64     `yaml:"size"`
	SavedAt   time.Time `yaml:"savedAt"`
	File      string    `yaml:"file"`
}

// Sink accepts a finished PDF plus its metadata. Implementations are called
// at most once per export and must not be retried by the caller.
type Sink interface {
	Store(ctx context.Context, pdf []byte, meta ExportMeta) (string, error)
}

// DirSink stores exports as files in a single directory.
type DirSink struct {
	Dir string
}

type manifest struct {
	Exports []ExportMeta `yaml:"exports"`
}

// Store writes the PDF under a slug-plus-timestamp name and appends a record
// to the directory manifest. It returns the path of the written PDF.
func (s *DirSink) Store(ctx context.Context, pdf []byte, meta ExportMeta) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("store: %w", err)
	}

	name := fmt.Sprintf("%s-%s.pdf", Slug(meta.Title), meta.SavedAt.UTC().Format("20060102-150405"))
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", fmt.Errorf("store: %w", err)
	}

	meta.File = name
	meta.Size = int64(len(pdf))
	if err := s.appendManifest(meta); err != nil {
		// The PDF itself landed; a broken manifest should not undo that.
		return path, fmt.Errorf("store: manifest: %w", err)
	}
	return path, nil
}

func (s *DirSink) appendManifest(meta ExportMeta) error {
	path := filepath.Join(s.Dir, "manifest.yaml")
	var m manifest
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	m.Exports = append(m.Exports, meta)

	out, err := yaml.Marshal(&m)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Slug turns a thread title into a filesystem-safe lowercase name. Empty or
// fully non-alphanumeric titles become "thread".
func Slug(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
		if b.Len() >= 60 {
			break
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "thread"
	}
	return out
}
