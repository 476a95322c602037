package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func TestFramingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msg := map[string]any{"jsonrpc": "2.0", "method": "initialize", "id": 1}
	if err := WriteMessage(&buf, msg); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "Content-Length: ") {
		t.Fatalf("missing header in %q", buf.String())
	}

	blob, err := ReadMessage(bufio.NewReader(&buf))
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(blob, &got); err != nil {
		t.Fatal(err)
	}
	if got["method"] != "initialize" {
		t.Errorf("round-tripped message = %v", got)
	}
}

func TestReadMessageEOF(t *testing.T) {
	_, err := ReadMessage(bufio.NewReader(strings.NewReader("")))
	if err != io.EOF {
		t.Errorf("got %v, want io.EOF", err)
	}
}

func TestReadMessageMissingLength(t *testing.T) {
	_, err := ReadMessage(bufio.NewReader(strings.NewReader("X-Other: 1\r\n\r\n{}")))
	if err == nil {
		t.Error("want error for missing Content-Length")
	}
}

const sessionAsm = `	.text
	.globl	main
	.type	main, @function
main:
	.cfi_startproc
	.file 0 "/work/rpc" "source.cpp"
	.loc 0 2 12
	movl	$42, %eax
	ret
	.cfi_endproc
`

func runSession(t *testing.T, requests ...any) []map[string]any {
	t.Helper()
	var in bytes.Buffer
	for _, req := range requests {
		if err := WriteMessage(&in, req); err != nil {
			t.Fatal(err)
		}
	}
	var out bytes.Buffer
	s := NewSession("/work/rpc/compile_commands.json", "/work/rpc")
	if err := s.Serve(context.Background(), &in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var replies []map[string]any
	br := bufio.NewReader(&out)
	for {
		blob, err := ReadMessage(br)
		if err == io.EOF {
			return replies
		}
		if err != nil {
			t.Fatal(err)
		}
		var msg map[string]any
		if err := json.Unmarshal(blob, &msg); err != nil {
			t.Fatal(err)
		}
		replies = append(replies, msg)
	}
}

func TestSessionInitializeAndShutdown(t *testing.T) {
	replies := runSession(t,
		map[string]any{"jsonrpc": "2.0", "id": 1, "method": "initialize"},
		map[string]any{"jsonrpc": "2.0", "id": 2, "method": "shutdown"},
	)
	if len(replies) != 2 {
		t.Fatalf("got %d replies, want 2", len(replies))
	}
	result, ok := replies[0]["result"].(map[string]any)
	if !ok {
		t.Fatalf("initialize reply = %v", replies[0])
	}
	info, _ := result["serverInfo"].(map[string]any)
	if info["name"] != "asmlens" {
		t.Errorf("serverInfo = %v", info)
	}
	if result["ccj"] != "/work/rpc/compile_commands.json" {
		t.Errorf("ccj = %v", result["ccj"])
	}
}

func TestSessionUnknownMethod(t *testing.T) {
	replies := runSession(t,
		map[string]any{"jsonrpc": "2.0", "id": 1, "method": "bogus"},
		map[string]any{"jsonrpc": "2.0", "id": 2, "method": "shutdown"},
	)
	if len(replies) != 2 {
		t.Fatalf("got %d replies, want 2", len(replies))
	}
	errObj, ok := replies[0]["error"].(map[string]any)
	if !ok {
		t.Fatalf("reply = %v, want error", replies[0])
	}
	if int(errObj["code"].(float64)) != codeMethodNotFound {
		t.Errorf("code = %v", errObj["code"])
	}
}

func TestSessionAnnotateInline(t *testing.T) {
	replies := runSession(t,
		map[string]any{
			"jsonrpc": "2.0", "id": 1, "method": "annotate",
			"params": map[string]any{"assembly": sessionAsm},
		},
		map[string]any{"jsonrpc": "2.0", "id": 2, "method": "shutdown"},
	)
	if len(replies) != 2 {
		t.Fatalf("got %d replies, want 2", len(replies))
	}
	result, ok := replies[0]["result"].(map[string]any)
	if !ok {
		t.Fatalf("annotate reply = %v", replies[0])
	}
	asm, ok := result["assembly"].([]any)
	if !ok || len(asm) == 0 {
		t.Fatalf("assembly = %v", result["assembly"])
	}
	if asm[0] != "main:" {
		t.Errorf("first output line = %v", asm[0])
	}
	mappings, ok := result["line_mappings"].([]any)
	if !ok || len(mappings) != 1 {
		t.Fatalf("line_mappings = %v", result["line_mappings"])
	}
	m := mappings[0].(map[string]any)
	if m["source_line"].(float64) != 2 || m["asm_start"].(float64) != 2 || m["asm_end"].(float64) != 3 {
		t.Errorf("mapping = %v", m)
	}
}

func TestSessionAnnotateCachedToken(t *testing.T) {
	replies := runSession(t,
		map[string]any{
			"jsonrpc": "2.0", "id": 1, "method": "annotate",
			"params": map[string]any{"assembly": sessionAsm},
		},
		map[string]any{
			"jsonrpc": "2.0", "id": 2, "method": "annotate",
			"params": map[string]any{"annotate_token": 1},
		},
		map[string]any{"jsonrpc": "2.0", "id": 3, "method": "shutdown"},
	)
	if len(replies) != 3 {
		t.Fatalf("got %d replies, want 3", len(replies))
	}
	first, ok1 := replies[0]["result"].(map[string]any)
	second, ok2 := replies[1]["result"].(map[string]any)
	if !ok1 || !ok2 {
		t.Fatalf("replies = %v", replies)
	}
	if first["token"].(float64) != 1 {
		t.Errorf("first annotate token = %v", first["token"])
	}
	a1, _ := first["assembly"].([]any)
	a2, _ := second["assembly"].([]any)
	if len(a1) == 0 || len(a1) != len(a2) {
		t.Errorf("cached result differs: %v vs %v", a1, a2)
	}
}

func TestSessionAnnotateBadInput(t *testing.T) {
	replies := runSession(t,
		map[string]any{
			"jsonrpc": "2.0", "id": 1, "method": "annotate",
			"params": map[string]any{"assembly": "\t.text\nmain:\n\tret\n"},
		},
		map[string]any{"jsonrpc": "2.0", "id": 2, "method": "shutdown"},
	)
	if _, ok := replies[0]["error"].(map[string]any); !ok {
		t.Errorf("reply = %v, want error for input without .file entries", replies[0])
	}
}
