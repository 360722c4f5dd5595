// Package extract turns uploaded documents and fetched pages into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"unicode/utf8"
)

var (
	ErrNotText = errors.New("content is not valid UTF-8 text")
	ErrNoText  = errors.New("no text found")
)

// Format is the closed set of supported input formats.
type Format int

const (
	FormatUnknown Format = iota
	FormatPlainText
	FormatMarkdown
	FormatPDF
	FormatDOCX
	FormatHTML
)

func (f Format) String() string {
	switch f {
	case FormatPlainText:
		return "txt"
	case FormatMarkdown:
		return "md"
	case FormatPDF:
		return "pdf"
	case FormatDOCX:
		return "docx"
	case FormatHTML:
		return "html"
	case FormatUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// DetectFormat looks at the file extension first and the MIME type second.
func DetectFormat(fileName, mimeType string) Format {
	switch strings.ToLower(path.Ext(strings.TrimSpace(fileName))) {
	case ".txt", ".text":
		return FormatPlainText
	case ".md", ".markdown":
		return FormatMarkdown
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".html", ".htm", ".xhtml":
		return FormatHTML
	}

	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(mimeType))
	if err != nil {
		return FormatUnknown
	}

	switch mediaType {
	case "text/plain":
		return FormatPlainText
	case "text/markdown", "text/x-markdown":
		return FormatMarkdown
	case "application/pdf":
		return FormatPDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return FormatDOCX
	case "text/html", "application/xhtml+xml":
		return FormatHTML
	default:
		return FormatUnknown
	}
}

// FromBytes extracts plain text from data. Unknown formats are read as
// UTF-8 text.
func FromBytes(format Format, data []byte) (string, error) {
	var (
		text string
		err  error
	)

	switch format {
	case FormatPDF:
		text, err = pdfText(data)
	case FormatDOCX:
		text, err = docxText(data)
	case FormatHTML:
		text, err = htmlText(bytes.NewReader(data))
	case FormatPlainText, FormatMarkdown, FormatUnknown:
		text, err = utf8Text(data)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", format, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("extract %s: %w", format, ErrNoText)
	}

	return text, nil
}

func utf8Text(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", ErrNotText
	}

	return string(data), nil
}
