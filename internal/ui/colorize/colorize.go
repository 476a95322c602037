// Package colorize renders assembly listings with terminal colors via
// chroma. Colors are skipped when ASMLENS_NO_COLOR is set so piped output
// stays clean.
package colorize

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// getAssemblyLexer returns an appropriate assembly lexer with fallbacks
func getAssemblyLexer() chroma.Lexer {
	// Compiler output is GAS syntax; try those lexers first
	candidates := []string{"gas", "GAS", "Gas", "armasm", "nasm"}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

// getListingStyle returns the listing style with fallbacks
func getListingStyle() *chroma.Style {
	candidates := []string{"asmlens-dark", "dracula", "monokai"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter
func getTerminalFormatter() chroma.Formatter {
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Enabled reports whether colorized output is wanted at all.
func Enabled() bool {
	return os.Getenv("ASMLENS_NO_COLOR") == ""
}

// Listing applies syntax highlighting to a whole assembly listing.
// On any failure the input comes back unchanged.
func Listing(code string) (string, error) {
	if !Enabled() {
		return code, nil
	}

	lexer := getAssemblyLexer()
	if lexer == nil {
		return code, nil
	}

	style := getListingStyle()
	formatter := getTerminalFormatter()

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code, err
	}

	return buf.String(), nil
}

// Line colorizes a single listing line, preserving its formatting.
func Line(line string) string {
	out, err := Listing(line)
	if err != nil {
		return line
	}
	// chroma may append a newline the caller did not have
	return strings.TrimSuffix(out, "\n")
}
