package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Charset names the source encoding a reader was decoded from.
type Charset string

const (
	UTF8        Charset = "UTF-8"
	UTF16LE     Charset = "UTF-16LE"
	UTF16BE     Charset = "UTF-16BE"
	Windows1252 Charset = "windows-1252"
	ISO88599    Charset = "ISO-8859-9"
)

// sniffLen is how much of the input is inspected before choosing a decoder.
const sniffLen = 4096

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// NewUTF8Reader returns a reader yielding r's content as UTF-8 along with the
// charset it was detected as. A UTF-8 BOM is stripped. Undetectable input is
// treated as Windows-1252, which is what spreadsheet exports from bank
// back-office tools usually are.
func NewUTF8Reader(r io.Reader) (io.Reader, Charset, error) {
	br := bufio.NewReaderSize(r, sniffLen)

	buf, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, "", fmt.Errorf("peek: %w", err)
	}

	switch {
	case bytes.HasPrefix(buf, bomUTF8):
		_, _ = br.Discard(len(bomUTF8))
		return br, UTF8, nil
	case bytes.HasPrefix(buf, bomUTF16LE):
		return decode(br, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)), UTF16LE, nil
	case bytes.HasPrefix(buf, bomUTF16BE):
		return decode(br, unicode.UTF16(unicode.BigEndian, unicode.UseBOM)), UTF16BE, nil
	case validPrefix(buf, len(buf) == sniffLen):
		return br, UTF8, nil
	}

	charset := detect(buf)
	switch charset {
	case UTF8:
		return br, UTF8, nil
	case ISO88599:
		return decode(br, charmap.ISO8859_9), ISO88599, nil
	}

	return decode(br, charmap.Windows1252), Windows1252, nil
}

// validPrefix reports whether buf is valid UTF-8. When truncated is set a rune
// cut off at the end of buf is ignored.
func validPrefix(buf []byte, truncated bool) bool {
	if truncated {
		start := len(buf) - 1
		for start > 0 && len(buf)-start < utf8.UTFMax && !utf8.RuneStart(buf[start]) {
			start--
		}

		if start >= 0 && !utf8.FullRune(buf[start:]) {
			buf = buf[:start]
		}
	}

	return utf8.Valid(buf)
}

func decode(r io.Reader, e encoding.Encoding) io.Reader {
	return transform.NewReader(r, e.NewDecoder())
}

func detect(buf []byte) Charset {
	result, err := chardet.NewTextDetector().DetectBest(buf)
	if err != nil {
		return Windows1252
	}

	switch result.Charset {
	case "UTF-8":
		return UTF8
	case "ISO-8859-9":
		return ISO88599
	}

	return Windows1252
}
