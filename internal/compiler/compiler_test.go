package compiler

import (
	"slices"
	"testing"

	"asmlens/internal/compiledb"
)

func TestBuildInvocation(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		file     string
		wantComp string
		wantArgs []string
	}{
		{
			name:     "object compile",
			command:  "g++ -std=c++20 -c source.cpp -o source.o",
			file:     "/proj/source.cpp",
			wantComp: "g++",
			wantArgs: []string{"-std=c++20", "-S", "source.cpp", "-g1", "-o", "-"},
		},
		{
			name:     "no dash c appends the file",
			command:  "clang++ -O2 source.cpp",
			file:     "/proj/source.cpp",
			wantComp: "clang++",
			wantArgs: []string{"-O2", "source.cpp", "-g1", "-S", "/proj/source.cpp", "-o", "-"},
		},
		{
			name:     "joined output flag",
			command:  "gcc -c main.c -omain.o",
			file:     "/proj/main.c",
			wantComp: "gcc",
			wantArgs: []string{"-S", "main.c", "-g1", "-o", "-"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := BuildInvocation(&compiledb.Command{
				Directory: "/proj",
				Command:   tt.command,
				File:      tt.file,
			})
			if inv.Compiler != tt.wantComp {
				t.Errorf("compiler = %q, want %q", inv.Compiler, tt.wantComp)
			}
			if !slices.Equal(inv.Args, tt.wantArgs) {
				t.Errorf("args = %q, want %q", inv.Args, tt.wantArgs)
			}
			if inv.Directory != "/proj" {
				t.Errorf("directory = %q", inv.Directory)
			}
		})
	}
}

func TestBuildInvocationEmpty(t *testing.T) {
	inv := BuildInvocation(&compiledb.Command{Directory: "/proj"})
	if inv.Compiler != "" {
		t.Errorf("compiler = %q, want empty", inv.Compiler)
	}
}
