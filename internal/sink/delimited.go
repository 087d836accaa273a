package sink

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/sheetmerge/internal/core"
	"github.com/JonMunkholm/sheetmerge/internal/textenc"
)

// WriteDelimitedTo writes a header line and one line per record to w,
// fields joined by the delimiter and lines ended with "\n". Fields are
// not quoted or escaped, so a value containing the delimiter or a newline
// will not read back as one field.
func WriteDelimitedTo(w io.Writer, ds core.Dataset, delim rune) error {
	bw := bufio.NewWriter(w)
	sep := string(delim)

	if _, err := bw.WriteString(strings.Join(ds.Columns, sep) + "\n"); err != nil {
		return err
	}
	for _, r := range ds.Records {
		if _, err := bw.WriteString(strings.Join(core.Conform(ds.Width(), r), sep) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteDelimited writes ds to path in the given encoding.
func WriteDelimited(ds core.Dataset, path string, opts Options) (err error) {
	opts = opts.withDefaults()
	enc, err := textenc.Lookup(opts.Encoding)
	if err != nil {
		return &core.Error{Kind: core.KindInvalidConfiguration, Path: path, Err: err}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	ew := textenc.NewWriter(f, enc)
	if err := WriteDelimitedTo(ew, ds, opts.Delimiter); err != nil {
		return err
	}
	return ew.Close()
}

func writeDelimitedTemp(ds core.Dataset, target string, opts Options) (string, error) {
	tmp, err := tempFor(target)
	if err != nil {
		return "", err
	}
	if err := WriteDelimited(ds, tmp, opts); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}
