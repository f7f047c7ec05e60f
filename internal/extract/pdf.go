package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads the plain text and page count of a PDF document.
type PDFExtractor struct{}

func (PDFExtractor) Extract(_ context.Context, data []byte, _ string) (Result, error) {
	if len(data) == 0 {
		return Result{}, fmt.Errorf("empty pdf")
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}
	pages := reader.NumPage()
	plain, err := reader.GetPlainText()
	if err != nil {
		return Result{}, fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return Result{}, fmt.Errorf("read pdf text: %w", err)
	}
	return Result{Text: buf.String(), PageCount: intPtr(pages)}, nil
}
