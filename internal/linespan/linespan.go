// Package linespan exposes a byte buffer as a lazy sequence of lines.
package linespan

import (
	"bytes"
	"iter"
)

// Lines iterates over the lines of buf. Each yielded slice aliases buf and
// excludes the trailing '\n'. A final trailing newline yields no extra
// empty line; empty input yields nothing.
func Lines(buf []byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for len(buf) > 0 {
			i := bytes.IndexByte(buf, '\n')
			if i < 0 {
				yield(buf)
				return
			}
			if !yield(buf[:i]) {
				return
			}
			buf = buf[i+1:]
		}
	}
}

// Split collects Lines into a slice. The slices still alias buf.
func Split(buf []byte) [][]byte {
	var out [][]byte
	for line := range Lines(buf) {
		out = append(out, line)
	}
	return out
}
