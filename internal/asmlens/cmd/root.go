// Package cmd wires the asmlens command line: one-shot annotation on the
// root command, plus serve/rpc/watch/tail subcommands.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"asmlens/internal/annotate"
	"asmlens/internal/asmlens/log"
	"asmlens/internal/compiledb"
	"asmlens/internal/compiler"
	"asmlens/internal/logging"
	"asmlens/internal/ui/colorize"
)

var (
	opts        annotate.Options
	flagAsmFile string
	flagCCJ     string
	flagTarget  string
	flagJSON    bool
	flagTUI     bool
	flagDebug   bool
)

// jsonOutput is the machine-readable result shape.
type jsonOutput struct {
	Assembly     []string           `json:"assembly"`
	LineMappings []annotate.Mapping `json:"line_mappings"`
}

var rootCmd = &cobra.Command{
	Use:   "asmlens [source-file]",
	Short: "Source-correlated view of compiler assembly",
	Long: `Asmlens shows the assembly a compiler generates for one source file,
filtered down to the functions that originate there, with a mapping from
source lines to assembly lines.

With a source file argument the compile command is resolved through
compile_commands.json and the compiler is run with -S -g1. Assembly can
also be read directly from a file or stdin.`,
	Example: `
# Annotate a translation unit from the compilation database
asmlens src/parser.cpp

# Annotate a header through the translation unit that includes it
asmlens include/parser.hpp

# Feed assembly directly
g++ -S -g1 source.cpp -o - | asmlens

# Machine-readable output
asmlens --json --demangle src/parser.cpp
  `,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Setup(flagDebug)
		lg := logging.New()
		defer lg.Close()

		asm, target, err := gatherAssembly(cmd.Context(), args)
		if err != nil {
			var cerr *compiler.Error
			if errors.As(err, &cerr) {
				fmt.Fprint(os.Stderr, cerr.Dribble)
			}
			return err
		}

		result, err := annotate.Annotate(asm, opts, target)
		if err != nil {
			lg.Annotation(target, len(asm)).Error("Annotation failed", "error", err)
			return err
		}
		lines := annotate.ApplyDemanglings(result)
		lg.Annotation(target, len(asm)).Debug("Annotated",
			"output_lines", len(lines),
			"line_mappings", len(result.Linemap))

		if flagTUI {
			program := tea.NewProgram(
				newModel(target, lines, result.Linemap),
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
			)
			if _, err := program.Run(); err != nil {
				slog.Error("TUI run error", "error", err)
				return fmt.Errorf("TUI error: %v", err)
			}
			return nil
		}

		if flagJSON {
			out := jsonOutput{Assembly: lines, LineMappings: result.Linemap}
			if out.Assembly == nil {
				out.Assembly = []string{}
			}
			if out.LineMappings == nil {
				out.LineMappings = []annotate.Mapping{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		useColor := colorize.Enabled() && term.IsTerminal(os.Stdout.Fd())
		for _, line := range lines {
			if useColor {
				line = colorize.Line(line)
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

func init() {
	f := rootCmd.Flags()
	f.BoolVar(&opts.PreserveDirectives, "preserve-directives", false, "preserve all non-comment assembler directives")
	f.BoolVar(&opts.PreserveComments, "preserve-comments", false, "preserve comments")
	f.BoolVar(&opts.PreserveUnusedLabels, "preserve-unused", false, "preserve unused labels")
	f.BoolVar(&opts.PreserveLibraryFunctions, "preserve-library-functions", false, "preserve library functions")
	f.BoolVar(&opts.Demangle, "demangle", false, "demangle C++ symbols")
	f.StringVar(&flagAsmFile, "asm-file", "", "read assembly directly from a file")
	f.StringVar(&flagTarget, "target", "", "source file to filter by (defaults to the translation unit)")
	f.BoolVar(&flagJSON, "json", false, "output results in JSON format")
	f.BoolVar(&flagTUI, "tui", false, "open the interactive viewer")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagCCJ, "ccj", "", "path to compile_commands.json")
	pf.BoolVarP(&flagDebug, "debug", "d", false, "debug logging")
}

// resolveCCJ returns the compilation database to use: the --ccj flag or a
// probe of the working directory.
func resolveCCJ() (string, error) {
	if flagCCJ != "" {
		return flagCCJ, nil
	}
	if probe, ok := compiledb.Find(); ok {
		return probe, nil
	}
	return "", errors.New("no compile_commands.json found; pass --ccj")
}

// gatherAssembly produces the assembly text and the target file to filter
// by, from whichever input the flags selected.
func gatherAssembly(ctx context.Context, args []string) ([]byte, string, error) {
	target := flagTarget

	if flagAsmFile != "" {
		asm, err := os.ReadFile(flagAsmFile)
		if err != nil {
			return nil, "", fmt.Errorf("read assembly: %w", err)
		}
		return asm, target, nil
	}

	if len(args) == 1 {
		ccj, err := resolveCCJ()
		if err != nil {
			return nil, "", err
		}
		source := args[0]
		cmd, err := compiledb.Infer(ccj, source)
		if err != nil {
			return nil, "", err
		}
		res, err := compiler.GetAsm(ctx, cmd)
		if err != nil {
			return nil, "", err
		}
		if target == "" {
			if abs, err := filepath.Abs(source); err == nil {
				source = abs
			}
			if source != cmd.File {
				target = source // a header, annotated through its TU
			}
		}
		return res.Assembly, target, nil
	}

	if term.IsTerminal(os.Stdin.Fd()) {
		return nil, "", errors.New("no input: pass a source file, --asm-file, or pipe assembly to stdin")
	}
	asm, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, "", fmt.Errorf("read stdin: %w", err)
	}
	return asm, target, nil
}

func Execute() {
	// Bypass fang's markdown rendering when output is being piped so the
	// annotated listing stays machine-consumable.
	plain := flagPresent("--json") || !term.IsTerminal(os.Stdout.Fd())

	if plain {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

func flagPresent(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name || strings.HasPrefix(arg, name+"=") {
			return true
		}
	}
	return false
}
