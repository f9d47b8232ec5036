package layout

import "math/rand"

// footerPhrases is the pool the closing line is drawn from, one per export.
var footerPhrases = []string{
	"May your threads stay on topic.",
	"Printed before the forum software update ate it.",
	"Now safe from link rot and database crashes.",
	"All 404s were harmed in the making of this document.",
	"Scroll-free since the invention of paper.",
	"Archived today, argued about forever.",
}

// renderFooter paints the attribution block near the bottom of the current
// (last) page. It sits inside the bottom margin band at a fixed position and
// never causes a page break of its own.
func (r *renderer) renderFooter(sourceURL string) {
	y := r.pageH - r.bottom + 3
	r.apply(styleMuted)
	line := "Exported with gothreadpdf"
	if sourceURL != "" {
		line += " from " + sourceURL
	}
	r.pdf.Text(r.left, y, r.tr(line))
	r.pdf.Text(r.left, y+styleMuted.lineH, r.tr(footerPhrases[rand.Intn(len(footerPhrases))]))
}
