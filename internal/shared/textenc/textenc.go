// Package textenc detects the character set of document bytes and converts
// between it and UTF-8.
package textenc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// UTF8 is the canonical name of the default encoding
const UTF8 = "utf-8"

// ErrUnsupported is returned for encoding names with no known codec
var ErrUnsupported = errors.New("unsupported encoding")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decoded is text converted to UTF-8
type Decoded struct {
	Text       string
	Encoding   string // canonical name, e.g. "utf-8", "windows-1252", "shift_jis"
	Confidence int    // 0-100; 100 when the bytes were valid UTF-8
	BOM        bool
}

// Lookup returns the codec and canonical name for an encoding label. The
// codec reports runes it cannot encode instead of escaping them.
func Lookup(name string) (encoding.Encoding, string, error) {
	label := strings.ToLower(strings.TrimSpace(name))
	if label == "" || label == UTF8 || label == "utf8" {
		return unicode.UTF8, UTF8, nil
	}
	_, canonical := charset.Lookup(label)
	if canonical == "" {
		// chardet reports some charsets with extra dashes, e.g. "GB-18030"
		_, canonical = charset.Lookup(strings.ReplaceAll(label, "-", ""))
	}
	if canonical == "" {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	enc, err := htmlindex.Get(canonical)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	if n, err := htmlindex.Name(enc); err == nil {
		canonical = n
	}
	return enc, canonical, nil
}

// Detect guesses the encoding of data
func Detect(data []byte) (name string, confidence int) {
	if bytes.HasPrefix(data, utf8BOM) || utf8.Valid(data) {
		return UTF8, 100
	}
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return "windows-1252", 0
	}
	if _, canonical, err := Lookup(result.Charset); err == nil {
		return canonical, result.Confidence
	}
	return "windows-1252", 0
}

// Decode converts data to UTF-8. An empty name detects the encoding.
func Decode(data []byte, name string) (Decoded, error) {
	confidence := 100
	if name == "" {
		name, confidence = Detect(data)
	}
	enc, canonical, err := Lookup(name)
	if err != nil {
		return Decoded{}, err
	}

	out := Decoded{Encoding: canonical, Confidence: confidence}
	if canonical == UTF8 {
		if bytes.HasPrefix(data, utf8BOM) {
			data = data[len(utf8BOM):]
			out.BOM = true
		}
		out.Text = strings.ToValidUTF8(string(data), "�")
		return out, nil
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return Decoded{}, fmt.Errorf("decode %s: %w", canonical, err)
	}
	out.Text = string(decoded)
	return out, nil
}

// Encode converts UTF-8 text to the named encoding. Characters the target
// cannot represent are an error.
func Encode(text, name string) ([]byte, error) {
	enc, canonical, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if canonical == UTF8 {
		return []byte(text), nil
	}
	encoded, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", canonical, err)
	}
	return encoded, nil
}
