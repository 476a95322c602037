// Package compiledb resolves compile commands for translation units from
// a compile_commands.json database, including the indirect case of header
// files, which compile through a translation unit that includes them.
package compiledb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Command is one compile_commands.json entry. Either Command or Arguments
// is populated, depending on the generator.
type Command struct {
	Directory string   `json:"directory"`
	Command   string   `json:"command"`
	Arguments []string `json:"arguments,omitempty"`
	File      string   `json:"file"`
}

// CommandLine returns the command as a single string regardless of which
// field the database used.
func (c *Command) CommandLine() string {
	if c.Command != "" {
		return c.Command
	}
	return strings.Join(c.Arguments, " ")
}

// Find probes the working directory for a compile_commands.json.
func Find() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	probe := filepath.Join(cwd, "compile_commands.json")
	if _, err := os.Stat(probe); err != nil {
		return "", false
	}
	return probe, true
}

// Load parses the database at path.
func Load(path string) ([]Command, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compile commands: %w", err)
	}
	var cmds []Command
	if err := json.Unmarshal(blob, &cmds); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cmds, nil
}

// Lookup finds the entry whose file matches target. Database entries may
// record files relative to the database's directory or absolute; target is
// compared in whichever form the entry uses.
func Lookup(ccjPath, target string) (*Command, error) {
	cmds, err := Load(ccjPath)
	if err != nil {
		return nil, err
	}
	ccjDir := filepath.Dir(ccjPath)
	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(ccjDir, p)
	}

	for i := range cmds {
		entry := &cmds[i]
		probe := target
		if filepath.IsAbs(entry.File) {
			probe = abs(target)
		} else if filepath.IsAbs(target) {
			if rel, err := filepath.Rel(ccjDir, target); err == nil {
				probe = rel
			}
		}
		if filepath.Clean(entry.File) == filepath.Clean(probe) {
			found := *entry
			found.Directory = abs(entry.Directory)
			found.File = abs(entry.File)
			return &found, nil
		}
	}
	return nil, fmt.Errorf("no compile command for %s in %s", target, ccjPath)
}

// Infer resolves the compile command for target, falling back for headers
// to the first translation unit that includes them by basename. The
// returned command is always a translation unit; annotating then filters
// by the header's path.
func Infer(ccjPath, target string) (*Command, error) {
	if cmd, err := Lookup(ccjPath, target); err == nil {
		return cmd, nil
	}
	if !isHeader(target) {
		return nil, fmt.Errorf("no compile command for %s in %s", target, ccjPath)
	}

	cmds, err := Load(ccjPath)
	if err != nil {
		return nil, err
	}
	ccjDir := filepath.Dir(ccjPath)
	base := filepath.Base(target)
	for i := range cmds {
		entry := &cmds[i]
		tu := entry.File
		if !filepath.IsAbs(tu) {
			tu = filepath.Join(ccjDir, tu)
		}
		if includesHeader(tu, base) {
			found := *entry
			if !filepath.IsAbs(found.Directory) {
				found.Directory = filepath.Join(ccjDir, found.Directory)
			}
			found.File = tu
			return &found, nil
		}
	}
	return nil, fmt.Errorf("no translation unit includes %s in %s", target, ccjPath)
}

func isHeader(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".h", ".hh", ".hpp", ".hxx", ".inl":
		return true
	}
	return false
}

// includesHeader scans a translation unit's text for an #include whose
// path ends in base. A textual scan is enough here: false positives just
// compile a TU that does not mention the header, and the annotator then
// reports NoTargetFile.
func includesHeader(tuPath, base string) bool {
	blob, err := os.ReadFile(tuPath)
	if err != nil {
		return false
	}
	for line := range strings.Lines(string(blob)) {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		if !strings.HasPrefix(rest, "include") {
			continue
		}
		if strings.Contains(rest, "\""+base+"\"") ||
			strings.Contains(rest, "/"+base+"\"") ||
			strings.Contains(rest, "<"+base+">") ||
			strings.Contains(rest, "/"+base+">") {
			return true
		}
	}
	return false
}
