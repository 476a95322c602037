package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

func init() {
	// Register our custom listing style on package initialization
	_ = ListingDark
}

// ListingDark is a custom style for assembly listings matching our color scheme
var ListingDark = styles.Register(chroma.MustNewStyle("asmlens-dark", chroma.StyleEntries{
	chroma.Text:           "#FFFFFF",    // Default text white
	chroma.Background:     "bg:#1e1e1e", // Dark background
	chroma.Comment:        "#6A9955",    // Comments in green
	chroma.CommentPreproc: "#6A9955",

	chroma.Keyword:       "#FFFFFF", // Instructions in white
	chroma.KeywordPseudo: "#C586C0", // Assembler directives in purple
	chroma.Name:          "#7C9C9D", // Generic names (registers) in teal
	chroma.NameBuiltin:   "#7C9C9D",
	chroma.NameVariable:  "#7C9C9D",

	// Numbers
	chroma.LiteralNumber:        "#FF5F87",
	chroma.LiteralNumberHex:     "#FF5F87",
	chroma.LiteralNumberBin:     "#FF5F87",
	chroma.LiteralNumberOct:     "#FF5F87",
	chroma.LiteralNumberInteger: "#FF5F87",
	chroma.LiteralNumberFloat:   "#FF5F87",

	// Labels and symbols
	chroma.NameLabel:    "#FFD700", // Labels in gold
	chroma.NameFunction: "#FFFFFF",

	chroma.Operator:    "#FFFFFF",
	chroma.Punctuation: "#FFFFFF",

	chroma.String: "#EACD53", // Strings in golden
}))
