package adapter

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/sheetmerge/internal/core"
	"github.com/JonMunkholm/sheetmerge/internal/textenc"
)

// ctxCheckEvery is how many lines are read between cancellation checks.
const ctxCheckEvery = 1000

// textSource is an open delimited file decoding to UTF-8.
type textSource struct {
	path string
	file *os.File
	dec  *textenc.Reader
}

func openText(path, encoding string) (*textSource, error) {
	enc, err := textenc.Lookup(encoding)
	if err != nil {
		return nil, &core.Error{Kind: core.KindInvalidConfiguration, Path: path, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &core.Error{Kind: core.KindUnreadableSource, Path: path, Err: err}
	}

	return &textSource{path: path, file: f, dec: textenc.NewReader(f, enc)}, nil
}

func (s *textSource) Close() error {
	return s.file.Close()
}

// eachLine calls fn for every line with its 1-based number. Line endings
// ("\n" or "\r\n") are removed. A final line without a newline is still
// delivered; a trailing newline does not produce an extra empty line.
func (s *textSource) eachLine(ctx context.Context, fn func(n int, line string) error) error {
	br := bufio.NewReaderSize(s.dec, 64*1024)

	for n := 1; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return &core.Error{Kind: core.KindUnreadableSource, Path: s.path, Line: n, Err: err}
		}
		if line == "" && err != nil {
			return nil
		}

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		if ferr := fn(n, line); ferr != nil {
			return ferr
		}
		if err != nil {
			return nil
		}
	}
}

// splitFields splits a line on the delimiter. Quotes are not interpreted.
func splitFields(line string, delim rune) []string {
	return strings.Split(line, string(delim))
}
