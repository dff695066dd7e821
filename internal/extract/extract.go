// Package extract turns stored résumé PDFs into plain text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"resume-feedback/internal/shared/storage/object"
	"resume-feedback/internal/shared/telemetry"
	"resume-feedback/internal/shared/util"
)

// MaxReadBytes bounds how much of a stored object FromStore loads.
const MaxReadBytes = 16 << 20

// PDFText returns the text of every page in order, or "" if the document cannot be read.
// It never fails: corrupt, encrypted and unsupported files all degrade to "".
func PDFText(data []byte) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Warn("extract.pdf_panic", map[string]any{"error": fmt.Sprint(rec), "size_bytes": len(data)})
			text = ""
		}
	}()

	if len(data) == 0 {
		return ""
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		telemetry.Warn("extract.pdf_unreadable", map[string]any{"error": err.Error(), "size_bytes": len(data)})
		return ""
	}

	var b strings.Builder
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			telemetry.Warn("extract.page_failed", map[string]any{"page": i, "error": err.Error()})
			continue
		}
		appendPage(&b, pageText)
	}
	return b.String()
}

// appendPage adds one page's cleaned text, skipping pages with nothing left.
func appendPage(b *strings.Builder, pageText string) {
	pageText = strings.TrimSpace(util.CleanText(pageText))
	if pageText == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(pageText)
}

// FromStore loads the object at key and extracts its text. Only the read can fail.
func FromStore(ctx context.Context, store object.ObjectStore, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := store.Open(ctx, key)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", key, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, MaxReadBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return PDFText(raw), nil
}
