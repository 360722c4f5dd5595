package ollama

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/tidwall/gjson"
)

const maxLineBytes = 1 << 20

// Line is one decoded object of a streaming generate response.
type Line struct {
	Response string
	Done     bool
	Error    string
}

// ParseLine decodes one streaming line. It reports false for lines that are
// not valid JSON objects.
func ParseLine(line []byte) (Line, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || !gjson.ValidBytes(line) {
		return Line{}, false
	}

	parsed := gjson.ParseBytes(line)
	if !parsed.IsObject() {
		return Line{}, false
	}

	return Line{
		Response: parsed.Get("response").String(),
		Done:     parsed.Get("done").Bool(),
		Error:    parsed.Get("error").String(),
	}, true
}

// Fragments lazily yields response fragments in receipt order. Malformed
// lines, including lines longer than maxLineBytes, are skipped. A line
// carrying an error, or a failed read, ends the sequence with an error. The
// sequence reads r once and cannot be restarted.
func Fragments(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		reader := bufio.NewReader(r)

		var (
			line     []byte
			oversize bool
		)

		for {
			chunk, err := reader.ReadSlice('\n')

			if !oversize {
				if len(line)+len(chunk) > maxLineBytes {
					oversize = true
					line = line[:0]
				} else {
					line = append(line, chunk...)
				}
			}

			if errors.Is(err, bufio.ErrBufferFull) {
				continue
			}

			if !oversize && !yieldLine(line, yield) {
				return
			}

			line = line[:0]
			oversize = false

			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield("", err)
				}

				return
			}
		}
	}
}

// yieldLine reports whether the sequence goes on after line.
func yieldLine(raw []byte, yield func(string, error) bool) bool {
	line, ok := ParseLine(raw)
	if !ok || line.Response == "" && line.Error == "" {
		return true
	}

	if line.Error != "" {
		yield("", fmt.Errorf("server error: %s", line.Error))
		return false
	}

	return yield(line.Response, nil)
}

// Collect concatenates every fragment. On error nothing is returned.
func Collect(fragments iter.Seq2[string, error]) (string, error) {
	var b strings.Builder

	for fragment, err := range fragments {
		if err != nil {
			return "", err
		}

		b.WriteString(fragment)
	}

	return b.String(), nil
}
