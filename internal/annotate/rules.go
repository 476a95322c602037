package annotate

import (
	"regexp"
	"sync"
)

// ruleTable is the catalogue of line patterns the two passes dispatch on.
// One immutable instance is shared process-wide; capture scratch space
// lives in the cursor, not here, so concurrent sweeps stay safe.
type ruleTable struct {
	labelStart     *regexp.Regexp // ^name: [#comment]
	hasOpcode      *regexp.Regexp // indented mnemonic
	commentOnly    *regexp.Regexp
	labelReference *regexp.Regexp // .Lfoo anywhere in the operands
	definesGlobal  *regexp.Regexp // .globl sym
	definesType    *regexp.Regexp // .type sym,@function / %object
	fileDirective  *regexp.Regexp // .file N [dir] "name" [md5 0x..]
	locDirective   *regexp.Regexp // .loc fileno linum ...
	stabn          *regexp.Regexp // .stabn type,0,linum,...
	endblock       *regexp.Regexp
	dataDefn       *regexp.Regexp
	mangled        *regexp.Regexp // Itanium-mangled symbol
}

var (
	rulesOnce sync.Once
	ruleSet   *ruleTable
)

// rules returns the shared rule table, compiling it on first use.
func rules() *ruleTable {
	rulesOnce.Do(func() {
		ruleSet = &ruleTable{
			labelStart:     regexp.MustCompile(`^([^:]+): *(?:#|$)(?:.*)`),
			hasOpcode:      regexp.MustCompile(`^[[:space:]]+[A-Za-z]+[[:space:]]*`),
			commentOnly:    regexp.MustCompile(`^[[:space:]]*(?:[#;@]|//|/\*.*\*/).*$`),
			labelReference: regexp.MustCompile(`\.[A-Z_a-z][$.0-9A-Z_a-z]*`),
			definesGlobal:  regexp.MustCompile(`^[[:space:]]*\.globa?l[[:space:]]*([.A-Z_a-z][$.0-9A-Z_a-z]*)`),
			definesType:    regexp.MustCompile(`^[[:space:]]*\.type[[:space:]]*(.*),[[:space:]]*[%@]`),
			fileDirective:  regexp.MustCompile(`^[[:space:]]*\.file[[:space:]]+([[:digit:]]+)(?:[[:space:]]+"([^"]+)")?[[:space:]]+"([^"]+)"(?:[[:space:]]+md5[[:space:]]+(0x[[:xdigit:]]+))?.*`),
			locDirective:   regexp.MustCompile(`^[[:space:]]*\.loc[[:space:]]+([[:digit:]]+)[[:space:]]+([[:digit:]]+).*`),
			stabn:          regexp.MustCompile(`^.*\.stabn[[:space:]]+([[:digit:]]+),0,([[:digit:]]+),.*`),
			endblock:       regexp.MustCompile(`\.(?:cfi_endproc|data|section|text)`),
			dataDefn:       regexp.MustCompile(`^[[:space:]]*\.(?:string|asciz|ascii|[1248]?byte|short|word|long|quad|value|zero)`),
			mangled:        regexp.MustCompile(`_Z[A-Za-z0-9_]+`),
		}
	})
	return ruleSet
}
