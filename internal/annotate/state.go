package annotate

import "path/filepath"

// fileInfo is one record of the .file table. indices accumulates every
// file index that resolved to the same file.
type fileInfo struct {
	indices map[int]bool
	dir     string
	name    string
	md5     string
}

// equal reports whether two records denote the same file: matching
// non-empty md5 sums, or, failing that, the same reconstructed absolute
// path under compileDir.
func (f *fileInfo) equal(g *fileInfo, compileDir string) bool {
	if f.md5 != "" && g.md5 != "" {
		return f.md5 == g.md5
	}
	return entryPath(f, compileDir) == entryPath(g, compileDir)
}

// entryPath reconstructs the absolute path of a .file record. Different
// compilers report the same source in different shapes:
//
//	GCC:
//	.file "source.cpp"        # no index, never matches here
//	.file 0 "/…/hier" "source.cpp"
//	.file 1 "header.hpp"
//	.file 2 "inner/header.hpp"
//	.file 3 "source.cpp"
//
//	Clang:
//	.file "source.cpp"
//	.file 0 "/…/hier" "source.cpp" md5 …
//	.file 1 "." "header.hpp" md5 …
//	.file 2 "./inner" "header.hpp" md5 …
//
// Resolving the record's directory (when present) against compileDir, then
// the filename against that, lands on the same canonical path in every
// case.
func entryPath(f *fileInfo, compileDir string) string {
	if f.dir != "" {
		d := f.dir
		if !filepath.IsAbs(d) {
			d = filepath.Join(compileDir, d)
		}
		return filepath.Join(d, f.name)
	}
	return filepath.Join(compileDir, f.name)
}

// parserState accumulates everything the annotator learns. The first pass
// fills the symbol, file and routine tables; reach then fills usedLabels
// and the second pass fills lines. Map keys are copies of the
// corresponding input slices.
type parserState struct {
	routines      map[string][]string // routine symbol -> referenced labels
	globals       map[string]bool
	currentGlobal string // symbol whose body is being scanned; "" outside any

	compileDir string // from the DWARF5 .file 0 entry
	target     string // absolute path of the file being annotated
	fileTable  map[int]*fileInfo

	// union of the file-table records matching target
	targetInfo *fileInfo

	targetFileRoutines map[string]bool
	usedLabels         map[string]bool

	lines *linemap
}

func newParserState() *parserState {
	return &parserState{
		routines:           make(map[string][]string),
		globals:            make(map[string]bool),
		fileTable:          make(map[int]*fileInfo),
		targetFileRoutines: make(map[string]bool),
		usedLabels:         make(map[string]bool),
		lines:              newLinemap(),
	}
}

// targetIndex reports whether file index n resolved to the target file.
func (s *parserState) targetIndex(n int) bool {
	return s.targetInfo != nil && s.targetInfo.indices[n]
}
