package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/inthisone/dashcore/internal/shared/types"
)

// pdfFetcher reads local PDF documents and extracts their text page by page
type pdfFetcher struct{}

func (f *pdfFetcher) Kind() types.SourceKind {
	return types.SourcePDF
}

func (f *pdfFetcher) Fetch(ctx context.Context, cfg types.SourceConfig) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrFetchFailed, err)
	}

	path := filepath.Clean(cfg.URI)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", types.ErrFetchFailed, path, err)
	}

	payload, err := extractPDF(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrParseFailed, path, err)
	}

	return &Result{
		Raw:       raw,
		Payload:   payload,
		MediaType: "pdf",
		Meta: map[string]interface{}{
			"path": path,
			"size": int64(len(raw)),
		},
	}, nil
}

// extractPDF pulls per-page plain text. The pdf reader panics on some
// malformed documents, so extraction runs behind a recover.
func extractPDF(raw []byte) (payload interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, err
	}

	total := reader.NumPage()
	pages := make([]interface{}, 0, total)
	var joined strings.Builder
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, perr := page.GetPlainText(nil)
		if perr != nil {
			// Keep the page slot so page numbers stay aligned
			text = ""
		}
		text = strings.TrimSpace(text)
		pages = append(pages, map[string]interface{}{
			"page": i,
			"text": text,
		})
		if text != "" {
			if joined.Len() > 0 {
				joined.WriteString("\n\n")
			}
			joined.WriteString(text)
		}
	}

	return map[string]interface{}{
		"page_count": total,
		"pages":      pages,
		"text":       joined.String(),
	}, nil
}
