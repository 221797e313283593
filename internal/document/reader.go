package document

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/54b3r/promptdoc-go/internal/apperr"
	"github.com/54b3r/promptdoc-go/internal/logging"
)

// Reader extracts text from uploaded files. The zero value is ready to use.
type Reader struct {
	// newID generates document identifiers. Defaults to uuid.NewString.
	newID func() string
}

// NewReader constructs a Reader that stamps documents with random UUIDs.
func NewReader() *Reader {
	return &Reader{newID: uuid.NewString}
}

// Read detects the format of the file at path and extracts its text.
//
// Errors wrap the apperr taxonomy: ErrEmptyInput for an empty path,
// ErrFileNotFound for a missing file, ErrUnsupportedFormat for any extension
// other than .txt/.pdf, and ErrFileRead for I/O or parse failures. A document
// whose text is empty is returned without error; callers decide whether that
// is acceptable.
func (r *Reader) Read(ctx context.Context, path string) (*Document, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("document: %w: no file provided", apperr.ErrEmptyInput)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("document: %w: %s", apperr.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("document: %w: %v", apperr.ErrFileRead, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("document: %w: %s is a directory", apperr.ErrFileRead, path)
	}

	format, ok := DetectFormat(path)
	if !ok {
		return nil, fmt.Errorf("document: %w: %q", apperr.ErrUnsupportedFormat, filepath.Ext(path))
	}

	doc := &Document{
		ID:     r.id(),
		Name:   filepath.Base(path),
		Path:   path,
		Format: format,
	}

	switch format {
	case FormatText:
		doc.Text, err = readText(path)
	case FormatPDF:
		doc.Text, doc.Pages, err = readPDF(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("document read",
		slog.String("document_id", doc.ID),
		slog.String("name", doc.Name),
		slog.String("format", string(doc.Format)),
		slog.Int("pages", doc.Pages),
		slog.Int("characters", utf8.RuneCountInString(doc.Text)),
	)

	return doc, nil
}

// id returns a fresh document identifier.
func (r *Reader) id() string {
	if r.newID == nil {
		return uuid.NewString()
	}
	return r.newID()
}

// readText reads a UTF-8 text file.
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("document: %w: %v", apperr.ErrFileRead, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("document: %w: %s is not valid UTF-8", apperr.ErrFileRead, filepath.Base(path))
	}
	return string(data), nil
}

// readPDF extracts the text layer of every page and joins the pages, each
// followed by a newline. The pdf package panics on some malformed inputs, so
// panics are converted to ErrFileRead.
func readPDF(ctx context.Context, path string) (text string, pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("document: %w: pdf: %v", apperr.ErrFileRead, rec)
		}
	}()

	f, rd, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("document: %w: pdf: %v", apperr.ErrFileRead, err)
	}
	defer f.Close()

	var sb strings.Builder
	total := rd.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", 0, fmt.Errorf("document: pdf read cancelled: %w", err)
		}
		page := rd.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("document: %w: pdf page %d: %v", apperr.ErrFileRead, i, err)
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}

	return sb.String(), total, nil
}
