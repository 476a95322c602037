// Package rpc serves the annotator over JSON-RPC 2.0 with Content-Length
// framed messages, the framing LSP clients speak. A session caches infer,
// compile and annotate results by token so a client can re-annotate the
// same compilation under different options without recompiling.
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"asmlens/internal/annotate"
	"asmlens/internal/compiledb"
	"asmlens/internal/compiler"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// ReadMessage reads one Content-Length framed message. Returns io.EOF
// cleanly at end of stream.
func ReadMessage(r *bufio.Reader) ([]byte, error) {
	length := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" {
				return nil, io.EOF
			}
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break // end of headers
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("malformed header %q", line)
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("bad Content-Length %q: %w", value, err)
			}
			length = n
		}
	}
	if length < 0 {
		return nil, errors.New("missing Content-Length header")
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteMessage frames and writes one message.
func WriteMessage(w io.Writer, v any) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(blob)); err != nil {
		return err
	}
	_, err = w.Write(blob)
	return err
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// Session is one JSON-RPC conversation. All replies go through a single
// writer mutex; annotator calls are serialised because Serve dispatches
// one request at a time.
type Session struct {
	ccjPath     string
	projectRoot string

	wmu sync.Mutex
	w   io.Writer

	counter       atomic.Int64
	inferCache    map[int64]*compiledb.Command
	asmCache      map[int64]*compiler.Result
	annotateCache map[int64]map[string]any
}

// NewSession prepares a session against one compile_commands.json.
func NewSession(ccjPath, projectRoot string) *Session {
	return &Session{
		ccjPath:       ccjPath,
		projectRoot:   projectRoot,
		inferCache:    make(map[int64]*compiledb.Command),
		asmCache:      make(map[int64]*compiler.Result),
		annotateCache: make(map[int64]map[string]any),
	}
}

var errShutdown = errors.New("shutdown requested")

// Serve reads framed requests from r and writes replies to w until EOF or
// a shutdown request.
func (s *Session) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.w = w
	br := bufio.NewReader(r)
	for {
		blob, err := ReadMessage(br)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if err := s.dispatch(ctx, blob); err != nil {
			if errors.Is(err, errShutdown) {
				return nil
			}
			return err
		}
	}
}

func (s *Session) reply(msg any) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := WriteMessage(s.w, msg); err != nil {
		slog.Error("Failed to write reply", "error", err)
	}
}

func (s *Session) replyResult(id json.RawMessage, result any) {
	s.reply(response{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Session) replyError(id json.RawMessage, code int, msg string) {
	s.reply(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}})
}

func (s *Session) progress(id json.RawMessage, phase, status string, elapsed time.Duration) {
	params := map[string]any{
		"request_id": id,
		"phase":      phase,
		"status":     status,
	}
	if elapsed > 0 {
		params["elapsed_ms"] = elapsed.Milliseconds()
	}
	s.reply(notification{JSONRPC: "2.0", Method: "asmlens/progress", Params: params})
}

func (s *Session) dispatch(ctx context.Context, blob []byte) error {
	var req request
	if err := json.Unmarshal(blob, &req); err != nil {
		s.replyError(nil, codeParseError, "parse error")
		return nil
	}
	switch req.Method {
	case "initialize":
		s.handleInitialize(req.ID)
	case "infer":
		s.handleInfer(req.ID, req.Params)
	case "asm":
		s.handleAsm(ctx, req.ID, req.Params)
	case "annotate":
		s.handleAnnotate(req.ID, req.Params)
	case "shutdown":
		s.replyResult(req.ID, map[string]any{})
		return errShutdown
	default:
		s.replyError(req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
	}
	return nil
}

func (s *Session) handleInitialize(id json.RawMessage) {
	s.replyResult(id, map[string]any{
		"serverInfo":   map[string]any{"name": "asmlens", "version": "0.1"},
		"ccj":          s.ccjPath,
		"project_root": s.projectRoot,
	})
}

type inferParams struct {
	File  string `json:"file"`
	Token int64  `json:"token,omitempty"`
}

func (s *Session) handleInfer(id json.RawMessage, raw json.RawMessage) {
	var p inferParams
	if err := json.Unmarshal(raw, &p); err != nil {
		s.replyError(id, codeInvalidParams, err.Error())
		return
	}
	if p.Token != 0 {
		if cmd, ok := s.inferCache[p.Token]; ok {
			s.replyResult(id, inferResult(p.Token, cmd))
			return
		}
	}
	if p.File == "" {
		s.replyError(id, codeInvalidParams, "missing file")
		return
	}
	cmd, err := compiledb.Infer(s.ccjPath, p.File)
	if err != nil {
		s.replyError(id, codeInternalError, err.Error())
		return
	}
	tok := s.counter.Add(1)
	s.inferCache[tok] = cmd
	s.replyResult(id, inferResult(tok, cmd))
}

func inferResult(tok int64, cmd *compiledb.Command) map[string]any {
	return map[string]any{
		"token":     tok,
		"directory": cmd.Directory,
		"command":   cmd.CommandLine(),
		"file":      cmd.File,
	}
}

type asmParams struct {
	Token      int64 `json:"token,omitempty"`     // infer token to compile
	AsmToken   int64 `json:"asm_token,omitempty"` // cached compile to re-fetch
	WithOutput bool  `json:"with_output,omitempty"`
}

func (s *Session) handleAsm(ctx context.Context, id json.RawMessage, raw json.RawMessage) {
	var p asmParams
	if err := json.Unmarshal(raw, &p); err != nil {
		s.replyError(id, codeInvalidParams, err.Error())
		return
	}
	if p.AsmToken != 0 {
		if res, ok := s.asmCache[p.AsmToken]; ok {
			s.replyResult(id, asmResult(p.AsmToken, res, p.WithOutput))
			return
		}
		s.replyError(id, codeInvalidParams, "unknown asm token")
		return
	}
	cmd, ok := s.inferCache[p.Token]
	if !ok {
		s.replyError(id, codeInvalidParams, "unknown infer token")
		return
	}

	t0 := time.Now()
	s.progress(id, "compile", "started", 0)
	res, err := compiler.GetAsm(ctx, cmd)
	if err != nil {
		var cerr *compiler.Error
		if errors.As(err, &cerr) {
			s.reply(response{JSONRPC: "2.0", ID: id, Error: &rpcError{
				Code:    codeInternalError,
				Message: "compilation failed",
				Data:    map[string]any{"stderr": cerr.Dribble},
			}})
			return
		}
		s.replyError(id, codeInternalError, err.Error())
		return
	}
	s.progress(id, "compile", "finished", time.Since(t0))

	tok := s.counter.Add(1)
	s.asmCache[tok] = res
	s.replyResult(id, asmResult(tok, res, p.WithOutput))
}

func asmResult(tok int64, res *compiler.Result, withOutput bool) map[string]any {
	out := map[string]any{
		"token":     tok,
		"bytes":     len(res.Assembly),
		"compiler":  res.Invocation.Compiler,
		"directory": res.Invocation.Directory,
	}
	if withOutput {
		out["assembly"] = string(res.Assembly)
	}
	return out
}

type annotateParams struct {
	Token       int64            `json:"token,omitempty"`          // asm token
	Assembly    string           `json:"assembly,omitempty"`       // inline alternative
	CachedToken int64            `json:"annotate_token,omitempty"` // re-fetch a previous result
	TargetFile  string           `json:"target_file,omitempty"`
	Options     annotate.Options `json:"options"`
}

func (s *Session) handleAnnotate(id json.RawMessage, raw json.RawMessage) {
	var p annotateParams
	if err := json.Unmarshal(raw, &p); err != nil {
		s.replyError(id, codeInvalidParams, err.Error())
		return
	}
	if p.CachedToken != 0 {
		if body, ok := s.annotateCache[p.CachedToken]; ok {
			s.replyResult(id, body)
			return
		}
		s.replyError(id, codeInvalidParams, "unknown annotate token")
		return
	}

	var asm []byte
	switch {
	case p.Assembly != "":
		asm = []byte(p.Assembly)
	case p.Token != 0:
		res, ok := s.asmCache[p.Token]
		if !ok {
			s.replyError(id, codeInvalidParams, "unknown asm token")
			return
		}
		asm = res.Assembly
	default:
		s.replyError(id, codeInvalidParams, "need token or assembly")
		return
	}

	result, err := annotate.Annotate(asm, p.Options, p.TargetFile)
	if err != nil {
		s.replyError(id, codeInternalError, err.Error())
		return
	}
	tok := s.counter.Add(1)
	body := annotationBody(tok, result)
	s.annotateCache[tok] = body
	s.replyResult(id, body)
}

func annotationBody(tok int64, r *annotate.Result) map[string]any {
	return map[string]any{
		"token":         tok,
		"assembly":      annotate.ApplyDemanglings(r),
		"line_mappings": r.Linemap,
	}
}
