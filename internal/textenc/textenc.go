// Package textenc converts between named legacy text encodings and UTF-8.
//
// Decoding never fails on bad input: bytes that are invalid in the source
// encoding become U+FFFD. Encoding replaces characters the target encoding
// cannot represent with its replacement byte.
package textenc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// aliases covers common names htmlindex does not know.
var aliases = map[string]string{
	"cp1250": "windows-1250",
	"cp1251": "windows-1251",
	"cp1252": "windows-1252",
	"cp852":  "ibm852",
	"latin2": "iso-8859-2",
	"utf8":   "utf-8",
}

// ErrUnknownEncoding is returned by Lookup for names it does not know.
var ErrUnknownEncoding = errors.New("unknown encoding")

// Lookup returns the encoding registered under name. Names are
// case-insensitive; "utf-8", "windows-1250" and "cp1250" are all accepted.
func Lookup(name string) (encoding.Encoding, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[n]; ok {
		n = a
	}
	if n == "utf-8" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(n)
	if err != nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownEncoding, name)
	}
	return enc, nil
}

// Name returns the canonical name of enc.
func Name(enc encoding.Encoding) string {
	if enc == unicode.UTF8 {
		return "utf-8"
	}
	if n, err := htmlindex.Name(enc); err == nil {
		return n
	}
	return fmt.Sprint(enc)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader decodes text in a named encoding to UTF-8. A leading UTF-8 byte
// order mark is dropped whatever the declared encoding.
type Reader struct {
	counter *countingReader
	r       io.Reader
}

// NewReader wraps r so reads yield UTF-8.
func NewReader(r io.Reader, enc encoding.Encoding) *Reader {
	counter := &countingReader{r: r}
	return &Reader{
		counter: counter,
		r:       transform.NewReader(skipBOM(counter), enc.NewDecoder()),
	}
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	return r.r.Read(p)
}

// BytesRead returns how many raw bytes have been consumed so far.
func (r *Reader) BytesRead() int64 {
	return r.counter.n
}

// skipBOM returns a reader positioned after a UTF-8 BOM, if r starts with one.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// NewWriter returns a writer that encodes UTF-8 input into enc before
// writing to w. Characters enc cannot represent are replaced. The caller
// must Close the returned writer to flush buffered output.
func NewWriter(w io.Writer, enc encoding.Encoding) io.WriteCloser {
	return transform.NewWriter(w, encoding.ReplaceUnsupported(enc.NewEncoder()))
}

// DecodeString decodes s from enc to UTF-8.
func DecodeString(s string, enc encoding.Encoding) (string, error) {
	out, _, err := transform.String(enc.NewDecoder(), s)
	return out, err
}
