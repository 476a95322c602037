package compiledb

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLookupAbsoluteEntry(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.cpp")
	writeFile(t, src, "int main() { return 42; }\n")
	ccj := filepath.Join(dir, "compile_commands.json")
	writeFile(t, ccj, `[
  {"directory": "`+dir+`", "command": "g++ -c source.cpp -o source.o", "file": "`+src+`"}
]`)

	cmd, err := Lookup(ccj, src)
	if err != nil {
		t.Fatal(err)
	}
	if cmd.File != src {
		t.Errorf("file = %q, want %q", cmd.File, src)
	}
	if cmd.Directory != dir {
		t.Errorf("directory = %q, want %q", cmd.Directory, dir)
	}
}

func TestLookupRelativeEntry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "source.cpp"), "int main() {}\n")
	ccj := filepath.Join(dir, "compile_commands.json")
	writeFile(t, ccj, `[
  {"directory": ".", "command": "g++ -c source.cpp", "file": "source.cpp"}
]`)

	// Relative target against a relative entry.
	cmd, err := Lookup(ccj, "source.cpp")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(cmd.File) {
		t.Errorf("resolved file %q is not absolute", cmd.File)
	}

	// Absolute target against a relative entry.
	cmd, err = Lookup(ccj, filepath.Join(dir, "source.cpp"))
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Directory != filepath.Clean(dir) {
		t.Errorf("directory = %q, want %q", cmd.Directory, dir)
	}
}

func TestLookupMiss(t *testing.T) {
	dir := t.TempDir()
	ccj := filepath.Join(dir, "compile_commands.json")
	writeFile(t, ccj, `[]`)
	if _, err := Lookup(ccj, "missing.cpp"); err == nil {
		t.Fatal("want error for missing entry")
	}
}

func TestInferHeader(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.cpp")
	writeFile(t, src, "#include \"header.hpp\"\nint main() { return thingy(); }\n")
	writeFile(t, filepath.Join(dir, "header.hpp"), "int thingy();\n")
	ccj := filepath.Join(dir, "compile_commands.json")
	writeFile(t, ccj, `[
  {"directory": "`+dir+`", "command": "g++ -c source.cpp -o source.o", "file": "`+src+`"}
]`)

	cmd, err := Infer(ccj, filepath.Join(dir, "header.hpp"))
	if err != nil {
		t.Fatal(err)
	}
	if cmd.File != src {
		t.Errorf("inferred TU = %q, want %q", cmd.File, src)
	}
}

func TestInferHeaderNoIncluder(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.cpp")
	writeFile(t, src, "int main() {}\n")
	ccj := filepath.Join(dir, "compile_commands.json")
	writeFile(t, ccj, `[
  {"directory": "`+dir+`", "command": "g++ -c source.cpp", "file": "`+src+`"}
]`)

	if _, err := Infer(ccj, filepath.Join(dir, "header.hpp")); err == nil {
		t.Fatal("want error when no TU includes the header")
	}
}

func TestCommandLineFromArguments(t *testing.T) {
	c := Command{Arguments: []string{"g++", "-c", "a.cpp"}}
	if got := c.CommandLine(); got != "g++ -c a.cpp" {
		t.Errorf("CommandLine = %q", got)
	}
}
