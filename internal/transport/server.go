package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/25smoking/mcpscan/internal/config"
	"github.com/25smoking/mcpscan/internal/core"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Scanner runs one scan. *engine.Engine satisfies it.
type Scanner interface {
	Scan(ctx context.Context, sc *core.ScanContext) (*core.Report, error)
}

// Server accepts WebSocket connections and answers scan requests. Each
// connection is handled independently; closing it cancels its in-flight scans.
type Server struct {
	scanner  Scanner
	cfg      config.ServerConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader
	http     *http.Server

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func NewServer(scanner Scanner, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		scanner: scanner,
		cfg:     cfg,
		logger:  logger,
		conns:   make(map[*websocket.Conn]struct{}),
	}
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler serves the WebSocket endpoint on "/" and a liveness probe on "/healthz".
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/", s.handleWebSocket)
	return mux
}

// ListenAndServe listens on the configured address.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("scanner server listening", zap.String("addr", ln.Addr().String()))
	err := s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections, closes open ones and waits for their
// handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)

	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", zap.Error(err))
		return
	}
	if !s.track(conn) {
		_ = conn.Close()
		return
	}
	defer s.untrack(conn)

	remote := conn.RemoteAddr().String()
	log := s.logger.With(zap.String("remote", remote))
	log.Info("client connected")

	// Oversized frames end the connection with close code 1009.
	if s.cfg.ReadLimit > 0 {
		conn.SetReadLimit(s.cfg.ReadLimit)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctx = core.WithLogger(ctx, log)
	out := &connWriter{conn: conn, timeout: s.cfg.WriteTimeout}

	var inflight sync.WaitGroup
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("read failed", zap.Error(err))
			}
			break
		}

		inflight.Add(1)
		go func(data []byte) {
			defer inflight.Done()
			resp := s.handleMessage(ctx, data)
			if resp == nil {
				return
			}
			if err := out.write(resp); err != nil {
				log.Debug("write failed", zap.Error(err))
			}
		}(data)
	}

	cancel()
	inflight.Wait()
	_ = conn.Close()
	log.Info("client disconnected")
}

// handleMessage turns one inbound frame into its response. It returns nil when
// the connection went away and nobody is waiting for an answer.
func (s *Server) handleMessage(ctx context.Context, data []byte) (resp *Response) {
	var req Request
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			core.LoggerFrom(ctx).Error("request handler panic", zap.Any("panic", r), zap.String("stack", stack))
			resp = errorResponse(req.ID, fmt.Sprintf("internal error: %v", r), stack)
		}
	}()

	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse("", fmt.Sprintf("malformed message: %v", err), "")
	}

	switch req.Type {
	case TypeScan:
	case "":
		return errorResponse(req.ID, "message type is required", "")
	default:
		return errorResponse(req.ID, fmt.Sprintf("unsupported message type %q", req.Type), "")
	}

	scanCtx := ctx
	if s.cfg.MaxScanTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, s.cfg.MaxScanTimeout)
		defer cancel()
	}

	started := time.Now()
	report, err := s.scanner.Scan(scanCtx, req.Context)
	if err != nil {
		if ctx.Err() != nil {
			core.LoggerFrom(ctx).Info("scan abandoned, client gone")
			return nil
		}
		core.LoggerFrom(ctx).Warn("scan failed", zap.Error(err))
		return errorResponse(req.ID, err.Error(), faultStack(err))
	}

	core.LoggerFrom(ctx).Info("scan completed",
		zap.Int("findings", len(report.Vulnerabilities)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return resultsResponse(req.ID, report)
}

// connWriter serializes writes; a websocket connection allows one writer at a time.
type connWriter struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
}

func (w *connWriter) write(resp *Response) error {
	data, err := EncodeResponse(resp)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timeout > 0 {
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// faultStack returns the trace recorded by a detector fault, if err carries one.
func faultStack(err error) string {
	var fault *core.DetectorFault
	if errors.As(err, &fault) {
		return fault.Stack
	}
	return ""
}
