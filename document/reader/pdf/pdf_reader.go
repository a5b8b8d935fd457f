// Package pdf extracts plain text from PDF documents.
package pdf

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"trpc.group/trpc-go/trpc-assistant-go/log"
)

// Reader extracts the plain text of a PDF document.
type Reader struct {
	maxTextLength int
}

// Option represents a functional option for configuring the PDF reader.
type Option func(*Reader)

// WithMaxTextLength caps the extracted text at the given number of
// characters. Zero or negative means no cap.
func WithMaxTextLength(n int) Option {
	return func(r *Reader) {
		r.maxTextLength = n
	}
}

// New creates a new PDF reader with the given options.
func New(opts ...Option) *Reader {
	r := &Reader{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadFromReader extracts text from PDF content supplied by an io.Reader.
func (r *Reader) ReadFromReader(reader io.Reader) (string, error) {
	readerAt, size, err := toReaderAt(reader)
	if err != nil {
		return "", err
	}
	return r.extract(readerAt, size)
}

// ReadFromFile extracts text from a PDF file on disk.
func (r *Reader) ReadFromFile(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", err
	}
	return r.extract(file, info.Size())
}

func (r *Reader) extract(readerAt io.ReaderAt, size int64) (string, error) {
	pdfReader, err := pdf.NewReader(readerAt, size)
	if err != nil {
		return "", err
	}

	var allText strings.Builder
	totalPage := pdfReader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := pdfReader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Debugf("pdf reader: skipping page %d: %v", pageIndex, err)
			continue
		}
		allText.WriteString(text)
		allText.WriteString("\n")
	}

	return capText(allText.String(), r.maxTextLength), nil
}

// capText caps text at n characters. The cut lands on a rune boundary so
// extracted umlauts and accents at the cap are not left as invalid UTF-8.
func capText(text string, n int) string {
	if n <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

func toReaderAt(r io.Reader) (io.ReaderAt, int64, error) {
	// An *os.File already satisfies io.ReaderAt and knows its size.
	if ra, ok := r.(io.ReaderAt); ok {
		if seeker, ok := r.(io.Seeker); ok {
			size, err := seeker.Seek(0, io.SeekEnd)
			if err != nil {
				return nil, 0, err
			}
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return nil, 0, err
			}
			return ra, size, nil
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(data), int64(len(data)), nil
}
