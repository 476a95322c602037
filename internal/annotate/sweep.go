package annotate

import (
	"iter"
	"regexp"
)

// cursor is the view a rule body gets of the line under the sweep. It
// carries the preserve/kill/match primitives plus the running output line
// counter. The capture scratch slice is reused across lines.
type cursor struct {
	line      []byte
	input     int // 1-based input line number, for error context
	out       int // 1-based number the line gets if preserved
	preserved bool
	killed    bool
	scratch   [][]byte
}

func (c *cursor) Line() []byte { return c.line }

// Preserve appends the current line to the output.
func (c *cursor) Preserve() { c.preserved = true }

// Kill drops the current line.
func (c *cursor) Kill() { c.killed = true }

// AsmLinum is the output line number the current line will occupy if
// preserved.
func (c *cursor) AsmLinum() int { return c.out }

// InputLinum is the 1-based line number in the sweep's input.
func (c *cursor) InputLinum() int { return c.input }

// Match runs re against the current line starting at off. On success ms[0]
// is the whole match and ms[1:] the capture groups (nil for groups that did
// not participate); next is the offset just past the match, for repeated
// extraction of references along a line. ms is reused by the next call.
func (c *cursor) Match(re *regexp.Regexp, off int) (ms [][]byte, next int, ok bool) {
	if off > len(c.line) {
		return nil, off, false
	}
	idx := re.FindSubmatchIndex(c.line[off:])
	if idx == nil {
		return nil, off, false
	}
	ms = c.scratch[:0]
	for i := 0; i <= re.NumSubexp(); i++ {
		lo, hi := idx[2*i], idx[2*i+1]
		if lo < 0 {
			ms = append(ms, nil)
		} else {
			ms = append(ms, c.line[off+lo:off+hi])
		}
	}
	c.scratch = ms
	return ms, off + idx[1], true
}

// sweep drives body over every non-empty line of input. A body that
// returns without preserving or killing gets the default disposition:
// preserve when opts.PreserveDirectives is set, kill otherwise. Empty
// lines are killed unconditionally. Returns the preserved lines.
func sweep(input iter.Seq[[]byte], opts Options, body func(c *cursor) error) ([][]byte, error) {
	var out [][]byte
	c := &cursor{out: 1, scratch: make([][]byte, 0, 10)}
	for line := range input {
		c.input++
		if len(line) == 0 {
			continue
		}
		c.line = line
		c.preserved = false
		c.killed = false
		if err := body(c); err != nil {
			return nil, err
		}
		if !c.preserved && !c.killed && opts.PreserveDirectives {
			c.preserved = true
		}
		if c.preserved {
			out = append(out, line)
			c.out++
		}
	}
	return out, nil
}
