// Package document turns an uploaded file into plain text. It detects the
// format from the file extension, extracts text from .txt and .pdf files, and
// stamps each read with a fresh document identifier.
package document

import (
	"path/filepath"
	"strings"
)

// Format identifies a supported input file format.
type Format string

const (
	// FormatText is a UTF-8 plain text file.
	FormatText Format = "txt"
	// FormatPDF is a PDF whose text layer is extracted page by page.
	FormatPDF Format = "pdf"
)

// Document is the raw text of one uploaded file. It lives only until the text
// has been chunked and indexed.
type Document struct {
	// ID is the unique identifier generated when the file was read.
	ID string

	// Name is the base file name, used as the chunk source label.
	Name string

	// Path is the path the document was read from.
	Path string

	// Format is the detected input format.
	Format Format

	// Pages is the number of PDF pages read. Zero for text files.
	Pages int

	// Text is the extracted document text.
	Text string
}

// DetectFormat infers the Format from the file extension. Matching is
// case-insensitive. ok is false for any extension other than .txt or .pdf.
func DetectFormat(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return FormatText, true
	case ".pdf":
		return FormatPDF, true
	default:
		return "", false
	}
}
