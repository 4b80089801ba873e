// Package extract turns uploaded what-if reports into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnreadable is returned for input that is not a readable PDF.
var ErrUnreadable = errors.New("unreadable document")

// Extractor returns the text of an uploaded report.
type Extractor interface {
	Extract(data []byte) (string, error)
}

// PDF extracts text from every page of a PDF, in page order.
type PDF struct{}

func NewPDF() *PDF { return &PDF{} }

func (PDF) Extract(data []byte) (text string, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return sb.String(), nil
}
