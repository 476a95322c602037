// Package server exposes the annotator over HTTP and WebSocket for the
// browser front end. The annotator itself is synchronous; one mutex
// serialises every compile-and-annotate round trip.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/net/websocket"

	"asmlens/internal/annotate"
	"asmlens/internal/compiledb"
	"asmlens/internal/compiler"
)

// Request is one annotation round trip. Either Assembly carries the text
// directly, or SourceFile names a file resolved through
// compile_commands.json.
type Request struct {
	SourceFile string           `json:"source_file,omitempty"`
	TargetFile string           `json:"target_file,omitempty"`
	Assembly   string           `json:"assembly,omitempty"`
	Options    annotate.Options `json:"options"`
}

// Response mirrors the CLI's JSON output.
type Response struct {
	Assembly     []string           `json:"assembly"`
	LineMappings []annotate.Mapping `json:"line_mappings"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Stderr string `json:"stderr,omitempty"`
}

// Server handles the HTTP and WebSocket endpoints.
type Server struct {
	ccjPath string
	webRoot string // static override; embedded page when empty

	mu sync.Mutex
}

func New(ccjPath, webRoot string) *Server {
	return &Server{ccjPath: ccjPath, webRoot: webRoot}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.webRoot != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.webRoot)))
	} else {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, indexHTML)
		})
	}
	mux.HandleFunc("/api/annotate", s.handleAnnotate)
	mux.Handle("/ws", websocket.Handler(s.handleWS))
	return mux
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()
	slog.Info("Serving web UI", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	resp, err := s.annotateRequest(r.Context(), &req)
	if err != nil {
		status := http.StatusInternalServerError
		body := errorResponse{Error: err.Error()}
		var cerr *compiler.Error
		if errors.As(err, &cerr) {
			status = http.StatusUnprocessableEntity
			body.Stderr = cerr.Dribble
		}
		var nt *annotate.NoTargetFileError
		if errors.As(err, &nt) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWS(ws *websocket.Conn) {
	defer ws.Close()
	for {
		var req Request
		if err := websocket.JSON.Receive(ws, &req); err != nil {
			return
		}
		resp, err := s.annotateRequest(context.Background(), &req)
		if err != nil {
			body := errorResponse{Error: err.Error()}
			var cerr *compiler.Error
			if errors.As(err, &cerr) {
				body.Stderr = cerr.Dribble
			}
			if err := websocket.JSON.Send(ws, body); err != nil {
				return
			}
			continue
		}
		if err := websocket.JSON.Send(ws, resp); err != nil {
			return
		}
	}
}

// annotateRequest runs the full pipeline for one request under the
// serialisation mutex.
func (s *Server) annotateRequest(ctx context.Context, req *Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asm := []byte(req.Assembly)
	target := req.TargetFile
	if len(asm) == 0 {
		if req.SourceFile == "" {
			return nil, errors.New("need source_file or assembly")
		}
		if s.ccjPath == "" {
			return nil, errors.New("no compile_commands.json configured")
		}
		cmd, err := compiledb.Infer(s.ccjPath, req.SourceFile)
		if err != nil {
			return nil, err
		}
		res, err := compiler.GetAsm(ctx, cmd)
		if err != nil {
			return nil, err
		}
		asm = res.Assembly
		if target == "" && req.SourceFile != cmd.File {
			target = req.SourceFile // header annotated through its TU
		}
	}

	result, err := annotate.Annotate(asm, req.Options, target)
	if err != nil {
		return nil, err
	}
	resp := &Response{
		Assembly:     annotate.ApplyDemanglings(result),
		LineMappings: result.Linemap,
	}
	if resp.Assembly == nil {
		resp.Assembly = []string{}
	}
	if resp.LineMappings == nil {
		resp.LineMappings = []annotate.Mapping{}
	}
	return resp, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>asmlens</title>
<style>
body { font-family: sans-serif; margin: 2em; }
textarea { width: 100%; height: 12em; font-family: monospace; }
pre { background: #1e1e1e; color: #d4d4d4; padding: 1em; overflow-x: auto; }
</style>
</head>
<body>
<h1>asmlens</h1>
<p>Paste assembly below, or POST a source file to <code>/api/annotate</code>.</p>
<textarea id="asm" placeholder="assembly listing"></textarea>
<label><input type="checkbox" id="demangle"> demangle</label>
<button onclick="annotate()">Annotate</button>
<pre id="out"></pre>
<script>
async function annotate() {
  const body = {
    assembly: document.getElementById('asm').value,
    options: { demangle: document.getElementById('demangle').checked },
  };
  const r = await fetch('/api/annotate', {
    method: 'POST',
    headers: { 'Content-Type': 'application/json' },
    body: JSON.stringify(body),
  });
  const data = await r.json();
  document.getElementById('out').textContent =
    data.error ? data.error : data.assembly.join('\n');
}
</script>
</body>
</html>
`
