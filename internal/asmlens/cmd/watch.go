package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"asmlens/internal/annotate"
	"asmlens/internal/asmlens/log"
	"asmlens/internal/compiledb"
	"asmlens/internal/compiler"
	"asmlens/internal/logging"
	"asmlens/internal/ui/colorize"
)

var watchCmd = &cobra.Command{
	Use:   "watch [file]",
	Short: "Re-annotate whenever a file changes",
	Long: `Watch a source or assembly file and print a fresh annotated listing on
every change. Source files are recompiled through compile_commands.json;
.s files are re-read as-is.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Setup(flagDebug)
		lg := logging.New()
		defer lg.Close()

		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		render := func() {
			if err := annotateOnce(cmd, lg, path); err != nil {
				fmt.Fprintf(os.Stderr, "annotate: %v\n", err)
			}
		}
		render()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer watcher.Close()

		// Watch the directory: editors replace files on save, which drops
		// a watch registered on the file itself.
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			return err
		}

		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Name != path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				slog.Debug("File changed", "file", path, "op", event.Op)
				render()
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				slog.Error("Watcher error", "error", err)
			}
		}
	},
}

// annotateOnce runs the one-shot pipeline for path and prints the listing.
func annotateOnce(cmd *cobra.Command, lg *logging.Logger, path string) error {
	var asm []byte
	target := flagTarget

	if isAsmFile(path) {
		blob, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		asm = blob
	} else {
		ccj, err := resolveCCJ()
		if err != nil {
			return err
		}
		entry, err := compiledb.Infer(ccj, path)
		if err != nil {
			return err
		}
		res, err := compiler.GetAsm(cmd.Context(), entry)
		if err != nil {
			return err
		}
		lg.Invocation(res.Invocation.Compiler, res.Invocation.Directory).
			Debug("Compiled", "asm_bytes", len(res.Assembly))
		asm = res.Assembly
		if target == "" && path != entry.File {
			target = path
		}
	}

	result, err := annotate.Annotate(asm, opts, target)
	if err != nil {
		return err
	}
	for _, line := range annotate.ApplyDemanglings(result) {
		if colorize.Enabled() {
			line = colorize.Line(line)
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

func isAsmFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".s", ".asm":
		return true
	}
	return false
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
