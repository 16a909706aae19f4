package docmeta

import (
	"fmt"
	"strings"
	"testing"
)

func TestInspectResolvesMimeType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000000000")
	cases := []struct {
		name     string
		data     []byte
		declared string
		want     string
	}{
		{name: "declared kept", data: png, declared: "image/png", want: "image/png"},
		{name: "octet stream sniffed", data: png, declared: "application/octet-stream", want: "image/png"},
		{name: "missing sniffed", data: png, declared: "", want: "image/png"},
		{name: "parameters dropped", data: []byte("hello"), declared: "Text/Plain; charset=utf-8", want: "text/plain"},
		{name: "pdf magic wins", data: []byte("%PDF-1.7 broken"), declared: "image/jpeg", want: "application/pdf"},
	}
	i := NewInspector()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := i.Inspect(tc.data, tc.declared).MimeType; got != tc.want {
				t.Fatalf("MimeType = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestInspectImagesCountAsOnePage(t *testing.T) {
	info := NewInspector().Inspect([]byte("\xff\xd8\xff\xe0jpeg"), "image/jpeg")
	if info.PageCount != 1 {
		t.Fatalf("expected 1 page, got %d", info.PageCount)
	}
}

func TestInspectBrokenPDFHasZeroPages(t *testing.T) {
	info := NewInspector().Inspect([]byte("%PDF-1.4\nnot really a pdf"), "application/pdf")
	if info.MimeType != "application/pdf" || info.PageCount != 0 {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestInspectCountsPDFPages(t *testing.T) {
	info := NewInspector().Inspect(minimalPDF(2), "application/pdf")
	if info.PageCount != 2 {
		t.Fatalf("expected 2 pages, got %d", info.PageCount)
	}
}

// minimalPDF builds a valid PDF with n empty pages and a correct xref table.
func minimalPDF(n int) []byte {
	var objects []string
	kids := make([]string, 0, n)
	for p := 0; p < n; p++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+p))
	}
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))
	for p := 0; p < n; p++ {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for idx, obj := range objects {
		offsets[idx] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", idx+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(b.String())
}
