package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
)

// BlankPage returns a white page image of the given pixel size.
func BlankPage(width, height int) *image.NRGBA {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return imaging.New(width, height, color.White)
}

// MinimalPDF builds a small but valid PDF. Each argument is one 612x792 page
// holding the given lines as Helvetica text, 20 points apart starting at the
// top. A page without lines has an empty content stream and no text layer.
func MinimalPDF(pages ...[]string) []byte {
	if len(pages) == 0 {
		pages = [][]string{nil}
	}

	// 1 catalog, 2 page tree, 3 font, then a page and a content object per page.
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"", // page tree, filled in below
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	kids := make([]string, 0, len(pages))
	for _, lines := range pages {
		pageObj := len(objs) + 1
		contentObj := pageObj + 1
		kids = append(kids, fmt.Sprintf("%d 0 R", pageObj))

		var content strings.Builder
		if len(lines) > 0 {
			content.WriteString("BT /F1 10 Tf 50 740 Td")
			for i, l := range lines {
				if i > 0 {
					content.WriteString(" 0 -20 Td")
				}
				fmt.Fprintf(&content, " (%s) Tj", escapePDFString(l))
			}
			content.WriteString(" ET")
		}

		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R "+
				"/Resources << /Font << /F1 3 0 R >> >> >>", contentObj),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		)
	}
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func escapePDFString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
