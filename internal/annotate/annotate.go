// Package annotate filters compiler assembly output down to the functions
// that originate in one source file, mapping source lines to output line
// ranges along the way.
//
// The work happens in two regex-driven sweeps over the input. The first
// pass collects symbols, per-routine label references and the .file table,
// and decides which file indices belong to the target file. A depth-1
// reachability step turns that into the set of labels worth keeping. The
// second pass re-sweeps the intermediate lines, emitting only reachable
// content, recording the source-line to output-line mapping, and
// optionally collecting demangling pairs.
//
// Output lines are subslices of the input buffer; callers must keep the
// buffer alive while using a Result, or go through ApplyDemanglings for an
// owned copy.
package annotate

import (
	"iter"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/ianlancetaylor/demangle"

	"asmlens/internal/linespan"
)

// Options selects what the sweeps keep beyond the target file's routines.
// The zero value keeps the minimum.
type Options struct {
	// PreserveDirectives keeps assembler directives no other rule claimed.
	PreserveDirectives bool `json:"preserve_directives"`
	// PreserveComments keeps standalone comment lines.
	PreserveComments bool `json:"preserve_comments"`
	// PreserveLibraryFunctions includes every routine, not just the target
	// file's.
	PreserveLibraryFunctions bool `json:"preserve_library_functions"`
	// PreserveUnusedLabels keeps labels nothing reachable references.
	PreserveUnusedLabels bool `json:"preserve_unused_labels"`
	// Demangle collects mangled/demangled pairs for later substitution.
	Demangle bool `json:"demangle"`
}

// Demangling pairs one occurrence of a mangled symbol in the output with
// its demangled form. Mangled aliases the input buffer.
type Demangling struct {
	Mangled   []byte
	Demangled string

	line int // 0-based index into Result.Output
	col  int // byte offset of Mangled within that line
}

// Result is what Annotate returns. Output and the Demangling.Mangled
// slices alias the input buffer.
type Result struct {
	Output      [][]byte
	Linemap     []Mapping
	Demanglings []Demangling
}

// Annotate parses the assembly in input and returns the filtered,
// source-correlated view of it. targetFile selects which source file's
// functions to keep; when empty, the primary source of the translation
// unit (from the DWARF5 .file 0 entry) is used.
func Annotate(input []byte, opts Options, targetFile string) (*Result, error) {
	if len(input) == 0 {
		return &Result{}, nil
	}
	s := newParserState()
	inter, err := firstPass(linespan.Lines(input), s, opts, targetFile)
	if err != nil {
		return nil, err
	}
	reach(s, opts)
	return secondPass(slices.Values(inter), s, opts)
}

func parseNum(c *cursor, b []byte) (int, error) {
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, &MalformedNumberError{Line: c.InputLinum(), Text: string(b)}
	}
	return n, nil
}

func absClean(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return filepath.Clean(p)
}

// firstPass produces the intermediate line sequence and fills s. Label
// lines, instruction bodies and indented lines no rule claims are
// preserved; unindented lines that are not labels are dropped; the .file
// table and the set of routines with .loc entries pointing at the target
// file are recorded on the way.
func firstPass(input iter.Seq[[]byte], s *parserState, opts Options, targetFile string) ([][]byte, error) {
	rt := rules()
	s.target = targetFile

	out, err := sweep(input, opts, func(c *cursor) error {
		line := c.Line()
		if line[0] != '\t' {
			if m, _, ok := c.Match(rt.labelStart, 0); ok {
				if s.globals[string(m[1])] {
					s.currentGlobal = string(m[1])
				}
				c.Preserve()
			} else {
				c.Kill()
			}
			return nil
		}

		if s.currentGlobal != "" {
			if _, next, ok := c.Match(rt.hasOpcode, 0); ok {
				g := s.currentGlobal
				if _, seen := s.routines[g]; !seen {
					s.routines[g] = nil
				}
				for off := next; ; {
					ref, n2, ok2 := c.Match(rt.labelReference, off)
					if !ok2 {
						break
					}
					s.routines[g] = append(s.routines[g], string(ref[0]))
					off = n2
				}
				c.Preserve()
				return nil
			}
		}
		if !opts.PreserveComments {
			if _, _, ok := c.Match(rt.commentOnly, 0); ok {
				c.Kill()
				return nil
			}
		}
		if m, _, ok := c.Match(rt.definesGlobal, 0); ok {
			s.globals[string(m[1])] = true
			return nil // default disposition
		}
		if m, _, ok := c.Match(rt.definesType, 0); ok {
			s.globals[string(m[1])] = true
			return nil // default disposition
		}
		if m, _, ok := c.Match(rt.fileDirective, 0); ok {
			return s.addFileEntry(c, m)
		}
		if m, _, ok := c.Match(rt.locDirective, 0); ok {
			fileno, err := parseNum(c, m[1])
			if err != nil {
				return err
			}
			if s.currentGlobal != "" && s.targetIndex(fileno) {
				s.targetFileRoutines[s.currentGlobal] = true
			}
			c.Preserve()
			return nil
		}
		if _, _, ok := c.Match(rt.endblock, 0); ok {
			s.currentGlobal = ""
			c.Preserve()
			return nil
		}
		// Remaining indented lines (string constants, jump tables, cfi
		// prologue) stay in the intermediate sequence so the second pass
		// can judge them by reachability.
		c.Preserve()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.targetInfo == nil {
		return nil, &NoTargetFileError{Target: s.target}
	}
	return out, nil
}

// addFileEntry handles one .file directive: records the table entry,
// learns the compilation directory from the DWARF5 index-0 entry, and
// matches the entry's reconstructed path against the target.
func (s *parserState) addFileEntry(c *cursor, m [][]byte) error {
	fileno, err := parseNum(c, m[1])
	if err != nil {
		return err
	}
	name := string(m[3])
	if name == "-" {
		name = "<stdin>"
	}
	info := &fileInfo{
		indices: map[int]bool{fileno: true},
		dir:     string(m[2]),
		name:    name,
		md5:     string(m[4]),
	}

	// DWARF5 .file 0 carries the compilation directory; it anchors both
	// relative entry paths and an unspecified target.
	if fileno == 0 {
		s.compileDir = absClean(info.dir)
		if s.target == "" {
			s.target = filepath.Join(s.compileDir, info.name)
		} else {
			s.target = absClean(s.target)
		}
	}
	if s.compileDir == "" {
		return &MissingCompileDirError{Line: c.InputLinum()}
	}
	s.fileTable[fileno] = info

	switch {
	case entryPath(info, s.compileDir) == s.target:
		if s.targetInfo == nil {
			s.targetInfo = info
		}
		s.targetInfo.indices[fileno] = true
	case s.targetInfo != nil && s.targetInfo.equal(info, s.compileDir):
		s.targetInfo.indices[fileno] = true
	}
	return nil // default disposition
}

// reach derives usedLabels: every routine of interest plus its immediate
// callees. No transitive closure is taken.
func reach(s *parserState, opts Options) {
	if opts.PreserveLibraryFunctions {
		for label, callees := range s.routines {
			s.usedLabels[label] = true
			for _, callee := range callees {
				s.usedLabels[callee] = true
			}
		}
		return
	}
	for label := range s.targetFileRoutines {
		s.usedLabels[label] = true
		for _, callee := range s.routines[label] {
			s.usedLabels[callee] = true
		}
	}
}

// secondPass re-sweeps the intermediate sequence, keeping only content
// under reachable labels, registering linemap entries for instructions,
// and collecting demangling pairs on preserved lines.
func secondPass(input iter.Seq[[]byte], s *parserState, opts Options) (*Result, error) {
	rt := rules()
	reachableLabel := ""
	sourceLinum := 0 // 0 = unset; source lines are 1-based

	var demanglings []Demangling

	out, err := sweep(input, opts, func(c *cursor) error {
		preserve := func() {
			if opts.Demangle {
				for off := 0; ; {
					m, next, ok := c.Match(rt.mangled, off)
					if !ok {
						break
					}
					mangled := m[0]
					if d := demangle.Filter(string(mangled)); d != string(mangled) {
						demanglings = append(demanglings, Demangling{
							Mangled:   mangled,
							Demangled: d,
							line:      c.AsmLinum() - 1,
							col:       next - len(mangled),
						})
					}
					off = next
				}
			}
			c.Preserve()
		}

		line := c.Line()
		if line[0] != '\t' {
			if m, _, ok := c.Match(rt.labelStart, 0); ok {
				l := string(m[1])
				switch {
				case s.usedLabels[l]:
					reachableLabel = l
					preserve()
				case opts.PreserveUnusedLabels:
					// Kept, but deliberately not made the reachable
					// label: the body below it stays subject to the
					// previous label's reachability.
					preserve()
				default:
					c.Kill()
				}
			}
			return nil
		}

		if _, _, ok := c.Match(rt.dataDefn, 0); ok && reachableLabel != "" {
			preserve()
			return nil
		}
		if _, _, ok := c.Match(rt.hasOpcode, 0); ok && reachableLabel != "" {
			if sourceLinum != 0 {
				s.lines.register(sourceLinum, c.AsmLinum())
			}
			preserve()
			return nil
		}
		if m, _, ok := c.Match(rt.locDirective, 0); ok {
			fileno, err := parseNum(c, m[1])
			if err != nil {
				return err
			}
			if s.targetIndex(fileno) {
				n, err := parseNum(c, m[2])
				if err != nil {
					return err
				}
				sourceLinum = n
			} else {
				sourceLinum = 0
			}
			return nil
		}
		if m, _, ok := c.Match(rt.stabn, 0); ok {
			// http://www.math.utah.edu/docs/info/stabs_11.html
			// 68     0x44     N_SLINE   line number in text segment
			// 100    0x64     N_SO      path and name of source file
			// 132    0x84     N_SOL     name of sub-source (#include) file
			typ, err := parseNum(c, m[1])
			if err != nil {
				return err
			}
			switch typ {
			case 68:
				n, err := parseNum(c, m[2])
				if err != nil {
					return err
				}
				sourceLinum = n
			case 100, 132:
				sourceLinum = 0
			default:
			}
			return nil
		}
		if _, _, ok := c.Match(rt.endblock, 0); ok {
			reachableLabel = ""
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Result{Output: out, Linemap: s.lines.flatten(), Demanglings: demanglings}, nil
}

// ApplyDemanglings renders the output with every recorded demangling
// substituted in, returning owned strings. Substitutions within a line are
// applied right-to-left so earlier offsets stay valid. Lines without
// demanglings come back byte-for-byte identical to the original slices.
func ApplyDemanglings(r *Result) []string {
	out := make([]string, len(r.Output))
	di := 0
	for i, line := range r.Output {
		start := di
		for di < len(r.Demanglings) && r.Demanglings[di].line == i {
			di++
		}
		if start == di {
			out[i] = string(line)
			continue
		}
		b := append([]byte(nil), line...)
		for j := di - 1; j >= start; j-- {
			d := r.Demanglings[j]
			rest := append([]byte(d.Demangled), b[d.col+len(d.Mangled):]...)
			b = append(b[:d.col], rest...)
		}
		out[i] = string(b)
	}
	return out
}
