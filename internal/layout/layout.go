// Package layout paints a thread document onto fixed-size PDF pages.
//
// The engine runs one linear pass over the posts with a manually managed
// vertical cursor: every emission checks remaining page space first, because
// painted content cannot be moved afterwards. Page breaks, header bands,
// link annotations and the closing footer are all positioned explicitly.
package layout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gothreadpdf/internal/emoji"
	"github.com/hyperifyio/gothreadpdf/internal/model"
)

const (
	fontFamily = "Helvetica"

	marginLeft   = 15.0
	marginRight  = 15.0
	marginTop    = 15.0
	marginBottom = 18.0

	headerBandH   = 9.0
	headerBandPad = 2.5
	quoteIndent   = 6.0
	postGap       = 4.0

	// Point-to-millimetre factor used to size annotation rectangles from
	// the active font size.
	mmPerPt = 0.3528
)

// textStyle bundles the font parameters applied together before emitting a
// run of text.
type textStyle struct {
	style   string
	size    float64
	lineH   float64
	r, g, b int
}

var (
	styleTitle     = textStyle{"B", 16, 7, 20, 20, 20}
	styleLink      = textStyle{"", 9, 4.5, 40, 80, 160}
	styleMeta      = textStyle{"", 8.5, 4.2, 110, 110, 110}
	styleAuthor    = textStyle{"B", 11, 5, 30, 30, 30}
	styleDate      = textStyle{"", 8.5, 4.2, 110, 110, 110}
	styleOrdinal   = textStyle{"B", 10, 5, 70, 90, 140}
	styleBody      = textStyle{"", 10, 5, 20, 20, 20}
	styleQuoteHead = textStyle{"B", 9.5, 4.6, 70, 70, 70}
	styleQuote     = textStyle{"I", 9.5, 4.6, 70, 70, 70}
	styleAttHead   = textStyle{"B", 9, 4.5, 50, 50, 50}
	styleAtt       = textStyle{"", 9, 4.5, 40, 40, 40}
	styleMuted     = textStyle{"I", 8, 4, 130, 130, 130}
)

// Options configures an Engine.
type Options struct {
	// Emoji is the substitution table applied to all text before wrapping.
	// May be nil or still loading; substitution is then skipped.
	Emoji *emoji.Table
}

// Engine renders thread documents to PDF. An Engine is stateless across
// renders and safe for reuse; each Render builds its own cursor state.
type Engine struct {
	emoji *emoji.Table
}

// New returns an Engine with the given options.
func New(opts Options) *Engine {
	return &Engine{emoji: opts.Emoji}
}

// Render paints doc into a complete PDF and returns the serialized bytes.
// Rendering is all-or-nothing: any painting failure returns an error and no
// partial document. The context is checked between posts so a cancelled
// export stops promptly.
func (e *Engine) Render(ctx context.Context, doc *model.ThreadDocument) ([]byte, error) {
	if doc == nil || len(doc.Posts) == 0 {
		return nil, errors.New("layout: document has no posts")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetAutoPageBreak(false, 0)

	pageW, pageH := pdf.GetPageSize()
	r := &renderer{
		pdf:      pdf,
		tr:       pdf.UnicodeTranslatorFromDescriptor(""),
		emoji:    e.emoji,
		pageW:    pageW,
		pageH:    pageH,
		left:     marginLeft,
		top:      marginTop,
		bottom:   marginBottom,
		contentW: pageW - marginLeft - marginRight,
	}

	pdf.AddPage()
	r.y = r.top
	r.renderDocumentHeader(doc)

	for i, p := range doc.Posts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("layout: %w", err)
		}
		r.renderPost(i, p)
	}

	r.renderFooter(doc.SourceURL)

	if pdf.Err() {
		return nil, fmt.Errorf("layout: %v", pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	return buf.Bytes(), nil
}

// renderer holds the per-render cursor and page geometry.
type renderer struct {
	pdf   *gofpdf.Fpdf
	tr    func(string) string
	emoji *emoji.Table

	y        float64
	pageW    float64
	pageH    float64
	left     float64
	top      float64
	bottom   float64
	contentW float64
}

func (r *renderer) apply(s textStyle) {
	r.pdf.SetFont(fontFamily, s.style, s.size)
	r.pdf.SetTextColor(s.r, s.g, s.b)
}

// ensure guarantees h millimetres of vertical space, starting a new page if
// the current one cannot hold it. Reports whether a page break happened.
func (r *renderer) ensure(h float64) bool {
	if r.y+h <= r.pageH-r.bottom {
		return false
	}
	r.pdf.AddPage()
	r.y = r.top
	return true
}

func (r *renderer) substitute(s string) string {
	return r.emoji.Replace(s)
}

// annotate attaches a clickable region over already-painted text. A bad
// rectangle or missing URL is logged and skipped; the text stays visible but
// non-clickable.
func (r *renderer) annotate(x, y, w, h float64, url string) {
	if url == "" {
		return
	}
	if w <= 0 || h <= 0 || x < 0 || y < 0 || x+w > r.pageW {
		log.Warn().Str("url", url).Msg("skipping link annotation with out-of-page bounds")
		return
	}
	r.pdf.LinkString(x, y, w, h, url)
}

func (r *renderer) renderDocumentHeader(doc *model.ThreadDocument) {
	r.apply(styleTitle)
	for _, ln := range r.pdf.SplitText(r.tr(r.substitute(doc.Title)), r.contentW) {
		r.pdf.Text(r.left, r.y+styleTitle.lineH*0.8, ln)
		r.y += styleTitle.lineH
	}
	r.y += 1

	if doc.SourceURL != "" {
		r.apply(styleLink)
		src := r.tr(doc.SourceURL)
		r.pdf.Text(r.left, r.y+styleLink.lineH*0.8, src)
		h := styleLink.size * mmPerPt
		r.annotate(r.left, r.y+styleLink.lineH*0.8-h*0.85, r.pdf.GetStringWidth(src), h*1.1, doc.SourceURL)
		r.y += styleLink.lineH
	}

	r.apply(styleMeta)
	meta := fmt.Sprintf("Exported %s - %d posts across %d pages",
		doc.ScrapedAt.Format("Jan 2, 2006 15:04"), len(doc.Posts), doc.PageCount())
	r.pdf.Text(r.left, r.y+styleMeta.lineH*0.8, r.tr(meta))
	r.y += styleMeta.lineH + 1

	r.pdf.SetDrawColor(180, 180, 180)
	r.pdf.Line(r.left, r.y, r.pageW-marginRight, r.y)
	r.y += 4
}

func (r *renderer) renderPost(idx int, p model.Post) {
	// Never start a header band the page cannot also fit two body lines
	// under.
	r.ensure(headerBandH + 2*styleBody.lineH)

	if idx%2 == 0 {
		r.pdf.SetFillColor(242, 242, 242)
	} else {
		r.pdf.SetFillColor(228, 234, 242)
	}
	// Band first, text on top; the reverse order would hide the text.
	r.pdf.RoundedRect(r.left, r.y, r.contentW, headerBandH, 1.5, "1234", "F")

	base := r.y + headerBandH - 3.2

	author := r.tr(r.substitute(p.Author))
	r.apply(styleAuthor)
	x := r.left + headerBandPad
	r.pdf.Text(x, base, author)
	x += r.pdf.GetStringWidth(author)

	if p.Date != "" {
		// The date fragment starts exactly where the measured author text
		// ends, not at a fixed column.
		r.apply(styleDate)
		r.pdf.Text(x+1.5, base, r.tr("- "+p.Date))
	}

	if p.PostNumber != "" {
		r.apply(styleOrdinal)
		num := r.tr(p.PostNumber)
		w := r.pdf.GetStringWidth(num)
		nx := r.left + r.contentW - headerBandPad - w
		r.pdf.Text(nx, base, num)
		h := styleOrdinal.size * mmPerPt
		r.annotate(nx, base-h*0.85, w, h*1.1, p.PostURL)
	}

	r.y += headerBandH + 2

	for _, q := range p.Quotes {
		r.renderQuote(q)
	}

	r.writeWrapped(r.substitute(p.Content), 0, styleBody)

	if len(p.Attachments) > 0 {
		r.renderAttachments(p.Attachments)
	}

	r.y += postGap
}

func (r *renderer) renderQuote(q model.Quote) {
	// Each quote gets its own space check so a run of short quotes cannot
	// overflow the page silently.
	r.ensure(2*styleQuote.lineH + 1)

	head := q.Author
	if head == "" {
		head = q.Title
	}
	if head == "" {
		head = "Quote"
	}
	r.apply(styleQuoteHead)
	r.pdf.Text(r.left+quoteIndent, r.y+styleQuoteHead.lineH*0.8, r.tr(r.substitute(head)+" wrote:"))
	r.y += styleQuoteHead.lineH

	r.writeWrapped(r.substitute(q.Content), quoteIndent, styleQuote)
	r.y += 1.5
}

// writeWrapped wraps text to the content width minus indent and emits it
// line by line. Each line is space-checked individually; a break mid-text
// prints a muted continuation marker at the top of the new page before the
// style is restored.
func (r *renderer) writeWrapped(text string, indent float64, st textStyle) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	r.apply(st)
	lines := r.pdf.SplitText(r.tr(text), r.contentW-indent)
	for _, ln := range lines {
		if strings.TrimSpace(ln) == "" {
			r.y += st.lineH * 0.6
			continue
		}
		if r.ensure(st.lineH) {
			r.continuedMarker()
			r.apply(st)
		}
		r.pdf.Text(r.left+indent, r.y+st.lineH*0.75, ln)
		r.y += st.lineH
	}
}

func (r *renderer) continuedMarker() {
	r.apply(styleMuted)
	r.pdf.Text(r.left, r.y+styleMuted.lineH*0.75, "(continued...)")
	r.y += styleMuted.lineH + 1
}

func (r *renderer) renderAttachments(atts []model.Attachment) {
	r.ensure(float64(len(atts)+1) * styleAtt.lineH)

	r.apply(styleAttHead)
	r.pdf.Text(r.left, r.y+styleAttHead.lineH*0.8, "Attachments:")
	r.y += styleAttHead.lineH

	for _, a := range atts {
		if r.ensure(styleAtt.lineH) {
			r.continuedMarker()
		}
		r.apply(styleAtt)
		name := a.Filename
		label := r.tr(r.substitute("• " + name + " (" + string(a.Kind) + ")"))
		baseline := r.y + styleAtt.lineH*0.75
		r.pdf.Text(r.left, baseline, label)

		bulletW := r.pdf.GetStringWidth(r.tr("• "))
		nameW := r.pdf.GetStringWidth(r.tr(name))
		h := styleAtt.size * mmPerPt
		r.annotate(r.left+bulletW, baseline-h*0.85, nameW, h*1.1, a.URL)
		r.y += styleAtt.lineH
	}
	r.y += 1
}
