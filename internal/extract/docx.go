package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	docxBodyPart     = "word/document.xml"
	maxDocxBodyBytes = 64 << 20
	wordprocessingNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
)

// DOCXExtractor reads the raw text of a word-processing document. Paragraphs
// are separated by blank lines. Page count is not derivable from the file.
type DOCXExtractor struct{}

func (DOCXExtractor) Extract(_ context.Context, data []byte, _ string) (Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("open docx: %w", err)
	}
	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPart {
			body = f
			break
		}
	}
	if body == nil {
		return Result{}, fmt.Errorf("docx: %s missing", docxBodyPart)
	}
	rc, err := body.Open()
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", docxBodyPart, err)
	}
	defer rc.Close()

	text, err := docxText(rc, maxDocxBodyBytes)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text}, nil
}

// docxText collects paragraph text from the document body. A body larger
// than limit is cut there and the text read so far is returned.
func docxText(r io.Reader, limit int64) (string, error) {
	lr := &io.LimitedReader{R: r, N: limit}
	dec := xml.NewDecoder(lr)
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if lr.N <= 0 {
				break
			}
			return "", fmt.Errorf("parse docx xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordprocessingNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordprocessingNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	return strings.TrimRight(strings.Join(paragraphs, "\n\n"), "\n"), nil
}
