package pdfextract

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MinTextLength is the number of meaningful characters a text layer needs
// before the document is considered to have text.
const MinTextLength = 50

var ErrEmptyFile = errors.New("empty pdf file")

// Inspector reads page counts and text layers from in-memory PDFs.
type Inspector struct{}

func NewInspector() *Inspector {
	return &Inspector{}
}

func (Inspector) PageCount(data []byte) (int, error) {
	return PageCount(data)
}

func (Inspector) ExtractText(data []byte) (string, error) {
	return ExtractText(bytes.NewReader(data))
}

func open(data []byte) (*pdf.Reader, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// PageCount returns the number of pages declared by the document.
func PageCount(data []byte) (int, error) {
	r, err := open(data)
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

// ExtractText reads the entire content of r and extracts plain text from the PDF.
// Returns empty string and nil error if the PDF has no extractable text.
func ExtractText(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", nil
	}
	pdfReader, err := open(b)
	if err != nil {
		return "", err
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// CollapseWhitespace trims text and folds every whitespace run into one space.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func HasMeaningfulText(text string) bool {
	return len([]rune(CollapseWhitespace(text))) > MinTextLength
}
