// Package document turns uploaded files into plain text for quiz generation.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// ErrEmptyText is returned when a document holds no readable text.
	ErrEmptyText = errors.New("document produced no text")
	// ErrUnsupported is returned for files that are neither PDF nor text.
	ErrUnsupported = errors.New("unsupported document type")
)

// Extensions lists the accepted file extensions.
var Extensions = []string{".pdf", ".txt"}

type kind int

const (
	kindUnknown kind = iota
	kindPDF
	kindText
)

// Read extracts the text of the document called name. The type is taken
// from the extension when it is known and sniffed from the content
// otherwise.
func Read(name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}

	var text string
	switch k, detected := detect(name, data); k {
	case kindPDF:
		text, err = readPDF(data)
	case kindText:
		text, err = readText(data)
	default:
		return "", fmt.Errorf("%w: %s (%s)", ErrUnsupported, name, detected)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

func detect(name string, data []byte) (kind, string) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return kindPDF, "application/pdf"
	case ".txt":
		return kindText, "text/plain"
	}

	mt := mimetype.Detect(data)
	if mt.Is("application/pdf") {
		return kindPDF, mt.String()
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return kindText, mt.String()
		}
	}
	return kindUnknown, mt.String()
}

func readPDF(data []byte) (text string, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed pdf: %v", p)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	return string(out), nil
}

// readText decodes UTF-8 text, honoring a UTF-8 or UTF-16 byte order mark.
func readText(data []byte) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), dec))
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return string(out), nil
}
