package linespan

import (
	"testing"
)

func TestLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "single line no newline",
			input: "mov eax, 1",
			want:  []string{"mov eax, 1"},
		},
		{
			name:  "trailing newline",
			input: "main:\n\tret\n",
			want:  []string{"main:", "\tret"},
		},
		{
			name:  "blank lines kept in the middle",
			input: "a\n\nb\n",
			want:  []string{"a", "", "b"},
		},
		{
			name:  "only newlines",
			input: "\n\n",
			want:  []string{"", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for line := range Lines([]byte(tt.input)) {
				got = append(got, string(line))
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d lines %q, want %d lines %q", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("line %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLinesAliasBuffer(t *testing.T) {
	buf := []byte("one\ntwo\n")
	lines := Split(buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	// Mutating the buffer must show through the line slices.
	buf[0] = 'O'
	if string(lines[0]) != "One" {
		t.Errorf("line slice does not alias buffer: %q", lines[0])
	}
}

func TestLinesEarlyStop(t *testing.T) {
	n := 0
	for range Lines([]byte("a\nb\nc\n")) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterated %d lines after break, want 2", n)
	}
}
