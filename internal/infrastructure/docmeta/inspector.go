package docmeta

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/fitscore/internal/core/domain"
)

const (
	mimePDF         = "application/pdf"
	mimeOctetStream = "application/octet-stream"
)

var pdfMagic = []byte("%PDF-")

// Inspector resolves the effective mime type of an upload and, for PDFs,
// its page count. It never fails; unknown values are left zero.
type Inspector struct{}

func NewInspector() *Inspector {
	return &Inspector{}
}

func (i *Inspector) Inspect(data []byte, declaredMimeType string) domain.DocumentInfo {
	mimeType := resolveMimeType(data, declaredMimeType)
	info := domain.DocumentInfo{MimeType: mimeType}

	switch {
	case mimeType == mimePDF:
		info.PageCount = countPDFPages(data)
	case strings.HasPrefix(mimeType, "image/"):
		info.PageCount = 1
	}
	return info
}

func resolveMimeType(data []byte, declared string) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if idx := strings.Index(declared, ";"); idx >= 0 {
		declared = strings.TrimSpace(declared[:idx])
	}
	if bytes.HasPrefix(data, pdfMagic) {
		return mimePDF
	}
	if declared != "" && declared != mimeOctetStream {
		return declared
	}
	sniffed := http.DetectContentType(data)
	if idx := strings.Index(sniffed, ";"); idx >= 0 {
		sniffed = strings.TrimSpace(sniffed[:idx])
	}
	return sniffed
}

// countPDFPages returns 0 for documents the parser cannot read. The parser
// panics on some malformed inputs.
func countPDFPages(data []byte) (pages int) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("pdf_inspect_panic", "error", r)
			pages = 0
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		slog.Debug("pdf_inspect_failed", "error", err)
		return 0
	}
	return reader.NumPage()
}
