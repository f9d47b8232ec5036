package model

import "testing"

func TestClassifyAttachment(t *testing.T) {
	cases := []struct {
		url  string
		want AttachmentKind
	}{
		{"https://forum.example/att/photo.png", KindImage},
		{"https://forum.example/att/PHOTO.PNG", KindImage},
		{"https://forum.example/att/clip.mp4", KindVideo},
		{"https://forum.example/att/song.mp3", KindAudio},
		{"https://forum.example/att/bundle.zip", KindFile},
		{"https://forum.example/att/notes.PDF", KindFile},
		{"https://forum.example/att/photo.jpeg?download=1", KindImage},
		{"https://forum.example/att/noextension", KindFile},
		{"", KindFile},
	}
	for _, c := range cases {
		if got := ClassifyAttachment(c.url); got != c.want {
			t.Fatalf("ClassifyAttachment(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestNormalizePostNumber(t *testing.T) {
	cases := []struct{ in, want string }{
		{"#3", "#3"},
		{"##3", "#3"},
		{"####12", "#12"},
		{" #7 ", "#7"},
		{"42", "42"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizePostNumber(c.in); got != c.want {
			t.Fatalf("NormalizePostNumber(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPostEmpty(t *testing.T) {
	p := Post{Author: UnknownAuthor, Content: "  \n "}
	if !p.Empty() {
		t.Fatalf("expected post with blank content and fallback author to be empty")
	}
	p.Content = "hello"
	if p.Empty() {
		t.Fatalf("post with content must not be empty")
	}
	p = Post{Author: "alice", Content: ""}
	if p.Empty() {
		t.Fatalf("post with a real author must not be empty")
	}
}

func TestPageCount(t *testing.T) {
	d := ThreadDocument{Posts: []Post{{PageIndex: 1}, {PageIndex: 1}, {PageIndex: 3}}}
	if got := d.PageCount(); got != 2 {
		t.Fatalf("PageCount = %d, want 2", got)
	}
}
