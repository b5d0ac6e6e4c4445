package doctree

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/GriffinCanCode/filedeck/internal/shared/textenc"
)

// ErrNotText is returned when a binary document is read as text
var ErrNotText = errors.New("document is not text")

// Text is a document decoded to UTF-8
type Text struct {
	Document
	Content    string `json:"content"`
	Encoding   string `json:"encoding"`
	Confidence int    `json:"confidence"`
	BOM        bool   `json:"bom"`
	Truncated  bool   `json:"truncated"`
	BytesRead  int    `json:"bytes_read"`
}

// ReadOptions controls ReadText
type ReadOptions struct {
	MaxBytes int64  // <= 0 reads everything
	Encoding string // "" detects
	Force    bool   // read documents whose MIME type is not text
}

// ReadText reads and decodes a text document
func ReadText(t Tree, uri string, opts ReadOptions) (Text, error) {
	doc, err := t.Stat(uri)
	if err != nil {
		return Text{}, err
	}
	if doc.IsDir {
		return Text{}, fmt.Errorf("%w: %s", ErrIsDir, uri)
	}
	if !opts.Force && !IsText(doc.MIMEType) {
		return Text{}, fmt.Errorf("%w: %s is %s", ErrNotText, doc.Name, doc.MIMEType)
	}

	data, truncated, err := t.ReadAll(uri, opts.MaxBytes)
	if err != nil {
		return Text{}, err
	}
	n := len(data)
	if truncated {
		data = trimPartialRune(data)
	}

	decoded, err := textenc.Decode(data, opts.Encoding)
	if err != nil {
		return Text{}, err
	}
	return Text{
		Document:   doc,
		Content:    decoded.Text,
		Encoding:   decoded.Encoding,
		Confidence: decoded.Confidence,
		BOM:        decoded.BOM,
		Truncated:  truncated,
		BytesRead:  n,
	}, nil
}

// WriteText encodes content and replaces the document with it. A UTF-8 byte
// order mark is written when bom is set.
func WriteText(t Tree, uri, content, encoding string, bom bool) (Document, int64, error) {
	data, err := textenc.Encode(content, encoding)
	if err != nil {
		return Document{}, 0, err
	}
	if bom {
		if _, canonical, _ := textenc.Lookup(encoding); canonical == textenc.UTF8 {
			data = append([]byte{0xEF, 0xBB, 0xBF}, data...)
		}
	}
	return t.Write(uri, bytes.NewReader(data))
}

// trimPartialRune drops an incomplete UTF-8 sequence cut off at the end of b
func trimPartialRune(b []byte) []byte {
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			return b
		}
	}
	return b
}
