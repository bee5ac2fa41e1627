package extract

import (
	"bytes"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// Format is a document type the extractor understands.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

var pdfMagic = []byte("%PDF-")

// DetectFormat picks the format from the content, then the content type,
// then the file extension.
func DetectFormat(filename, contentType string, head []byte) (Format, error) {
	if bytes.HasPrefix(bytes.TrimLeft(head, "\xef\xbb\xbf \t\r\n"), pdfMagic) {
		return FormatPDF, nil
	}

	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			switch mt {
			case "application/pdf":
				return FormatPDF, nil
			case "text/markdown", "text/x-markdown":
				return FormatMarkdown, nil
			case "text/plain":
				if isMarkdownExt(filename) {
					return FormatMarkdown, nil
				}
				return FormatText, nil
			}
		}
	}

	switch ext := strings.ToLower(filepath.Ext(filename)); {
	case ext == ".pdf":
		return FormatPDF, nil
	case isMarkdownExt(filename):
		return FormatMarkdown, nil
	case ext == ".txt" || ext == ".text":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, filename, contentType)
}

func isMarkdownExt(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
