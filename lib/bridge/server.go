// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/editorlink-project/editorlink/lib/activity"
	"github.com/editorlink-project/editorlink/lib/command"
	"github.com/editorlink-project/editorlink/lib/config"
	"github.com/editorlink-project/editorlink/lib/diaglog"
	"github.com/editorlink-project/editorlink/lib/endpoint"
	"github.com/editorlink-project/editorlink/lib/hostenv"
	"github.com/editorlink-project/editorlink/lib/mainloop"
	"github.com/editorlink-project/editorlink/lib/protocol"
)

// methodMalformed is the placeholder method name recorded for request
// lines that never decoded far enough to have one.
const methodMalformed = "(malformed)"

// Options wires a Server together. Host and Registry are required;
// everything else has a usable default.
type Options struct {
	// Host is the embedding editor.
	Host hostenv.Host

	// Registry resolves method names to handlers.
	Registry *command.Registry

	// Dispatcher carries work onto the host loop. Defaults to a fresh
	// dispatcher; the embedder must pump whichever dispatcher the
	// server ends up using.
	Dispatcher *mainloop.Dispatcher

	// Recorder keeps the recent-activity buffer. Defaults to a fresh
	// recorder with the standard capacity.
	Recorder *activity.Recorder

	// Diag is the file-backed diagnostic logger. Defaults to a
	// disabled logger.
	Diag *diaglog.Logger

	// Logger receives structured stderr output. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// Config is the process configuration (auth flag, endpoint seed,
	// run directory, wait tuning).
	Config config.Config

	// SocketPath overrides the derived socket location. Tests use it
	// to place sockets under short /tmp paths.
	SocketPath string
}

// Server is the bridge's IPC endpoint.
type Server struct {
	host       hostenv.Host
	registry   *command.Registry
	dispatcher *mainloop.Dispatcher
	recorder   *activity.Recorder
	diag       *diaglog.Logger
	logger     *slog.Logger

	endpointName string
	socketPath   string
	sessionToken string
	authRequired bool
	pollInterval time.Duration
	waitCeiling  time.Duration

	// syncMethods are handled on the worker goroutine instead of the
	// host loop, so they stay answerable while the host is busy. Only
	// methods that touch no host state may be listed here.
	syncMethods map[string]bool

	running atomic.Bool

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}

	workers     sync.WaitGroup
	connMu      sync.Mutex
	connections map[net.Conn]struct{}

	connectionCounter atomic.Int64
	requestCounter    atomic.Uint64
	lastRequestNanos  atomic.Int64
}

// NewServer builds a server from options. The endpoint identity is
// derived once here and never changes for the life of the process.
func NewServer(options Options) (*Server, error) {
	if options.Host == nil {
		return nil, fmt.Errorf("bridge: Host is required")
	}
	if options.Registry == nil {
		return nil, fmt.Errorf("bridge: Registry is required")
	}

	dispatcher := options.Dispatcher
	if dispatcher == nil {
		dispatcher = mainloop.NewDispatcher()
	}
	recorder := options.Recorder
	if recorder == nil {
		recorder = activity.NewRecorder(0)
	}
	diag := options.Diag
	if diag == nil {
		diag = diaglog.New("", diaglog.Options{Disabled: true})
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	seed := options.Config.EndpointSeed
	if seed == "" {
		seed = options.Host.ProjectRoot()
	}
	endpointName := endpoint.Name(seed)

	socketPath := options.SocketPath
	if socketPath == "" {
		runDir := options.Config.RunDir
		if runDir == "" {
			runDir = endpoint.DefaultRunDir()
		}
		socketPath = endpoint.SocketPath(runDir, endpointName)
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, fmt.Errorf("bridge: generating session token: %w", err)
	}

	pollInterval := options.Config.PollInterval.Std()
	if pollInterval <= 0 {
		pollInterval = mainloop.DefaultPollInterval
	}
	waitCeiling := options.Config.WaitCeiling.Std()
	if waitCeiling <= 0 {
		waitCeiling = mainloop.DefaultWaitCeiling
	}

	return &Server{
		host:         options.Host,
		registry:     options.Registry,
		dispatcher:   dispatcher,
		recorder:     recorder,
		diag:         diag,
		logger:       logger,
		endpointName: endpointName,
		socketPath:   socketPath,
		sessionToken: token,
		authRequired: options.Config.AuthRequired,
		pollInterval: pollInterval,
		waitCeiling:  waitCeiling,
		syncMethods:  make(map[string]bool),
		connections:  make(map[net.Conn]struct{}),
	}, nil
}

// newSessionToken generates the per-process shared secret.
func newSessionToken() (string, error) {
	token := make([]byte, 16)
	if _, err := rand.Read(token); err != nil {
		return "", err
	}
	return hex.EncodeToString(token), nil
}

// EndpointName returns the stable endpoint identity.
func (s *Server) EndpointName() string { return s.endpointName }

// SocketPath returns the Unix socket the server binds.
func (s *Server) SocketPath() string { return s.socketPath }

// SessionToken returns the per-process shared secret clients must send
// when authentication is required.
func (s *Server) SessionToken() string { return s.sessionToken }

// Dispatcher returns the dispatcher the embedding host must pump.
func (s *Server) Dispatcher() *mainloop.Dispatcher { return s.dispatcher }

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool { return s.running.Load() }

// Start binds the endpoint socket and begins accepting connections on
// a background goroutine. Calling Start on a running server is a
// no-op.
func (s *Server) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		s.running.Store(false)
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	if s.authRequired {
		// Peer credentials are checked per connection as well; the
		// file mode keeps casual cross-user access out entirely.
		_ = os.Chmod(s.socketPath, 0o600)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.listener = listener
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.acceptLoop(ctx, listener)
	}()

	s.logger.Info("bridge listening",
		"endpoint", s.endpointName,
		"socket", s.socketPath,
		"auth_required", s.authRequired,
	)
	if s.authRequired {
		s.logger.Info("session token issued", "token", s.sessionToken)
	}
	s.diag.Log(slog.LevelInfo, "server", "bridge started", map[string]any{
		"endpoint": s.endpointName,
		"socket":   s.socketPath,
	})
	return nil
}

// Stop shuts the server down: the accept loop exits, every worker is
// interrupted, and the socket file is removed. In-flight work items
// already queued to the host loop are not cancelled; their results are
// discarded because the workers that submitted them are gone.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	s.mu.Lock()
	listener := s.listener
	cancel := s.cancel
	done := s.done
	s.listener = nil
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if listener != nil {
		listener.Close()
	}
	// The accept loop must exit before the worker wait: it is the only
	// thing that adds workers.
	if done != nil {
		<-done
	}

	// Closing the connections unblocks workers parked on reads.
	s.connMu.Lock()
	for connection := range s.connections {
		connection.Close()
	}
	s.connMu.Unlock()

	s.workers.Wait()
	_ = os.Remove(s.socketPath)

	s.logger.Info("bridge stopped", "endpoint", s.endpointName)
	s.diag.Log(slog.LevelInfo, "server", "bridge stopped", nil)
}

// acceptLoop accepts connections until the listener closes, handing
// each one to a dedicated worker goroutine.
func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) {
	for {
		connection, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		connectionID := s.connectionCounter.Add(1)
		s.connMu.Lock()
		s.connections[connection] = struct{}{}
		s.connMu.Unlock()

		s.workers.Add(1)
		go func() {
			defer s.workers.Done()
			defer func() {
				s.connMu.Lock()
				delete(s.connections, connection)
				s.connMu.Unlock()
				connection.Close()
			}()
			s.serveConnection(ctx, connection, connectionID)
		}()
	}
}

// serveConnection is the per-connection worker loop. Requests on one
// connection are strictly sequential: the response to request N is
// written and flushed before request N+1 is read.
func (s *Server) serveConnection(ctx context.Context, connection net.Conn, connectionID int64) {
	logger := s.logger.With("connection_id", connectionID)
	logger.Debug("connection accepted")
	s.diag.Log(slog.LevelDebug, "server", "connection accepted", map[string]any{
		"connection_id": connectionID,
	})

	if s.authRequired {
		if err := verifySameUserPeer(connection); err != nil {
			logger.Warn("rejecting connection from unverified peer", "error", err)
			s.diag.Log(slog.LevelWarn, "server", "peer credential check failed", map[string]any{
				"connection_id": connectionID,
				"error":         err.Error(),
			})
			return
		}
	}

	scanner := bufio.NewScanner(connection)
	scanner.Buffer(make([]byte, 64*1024), protocol.MaxLineBytes)
	writer := bufio.NewWriter(connection)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		response := s.handleRequest(ctx, logger, connectionID, line)
		if ctx.Err() != nil {
			return
		}
		if err := writeResponse(writer, response); err != nil {
			logger.Debug("writing response failed", "error", err)
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		logger.Debug("connection read ended", "error", err)
		s.diag.Log(slog.LevelDebug, "server", "connection read ended", map[string]any{
			"connection_id": connectionID,
			"error":         err.Error(),
		})
	}
	logger.Debug("connection closed")
}

// writeResponse frames one response line and flushes it immediately.
// A response that cannot be serialized (a handler stuffed something
// unmarshalable into error details) degrades to a bare INTERNAL_ERROR
// rather than breaking the one-line-per-request framing.
func writeResponse(writer *bufio.Writer, response protocol.Response) error {
	data, err := json.Marshal(response)
	if err != nil {
		data, err = json.Marshal(protocol.Failure(
			protocol.CodeInternalError,
			fmt.Sprintf("serializing response: %v", err),
			nil,
		))
		if err != nil {
			return err
		}
	}
	if _, err := writer.Write(append(data, '\n')); err != nil {
		return err
	}
	return writer.Flush()
}

// handleRequest runs the full lifecycle for one request line and
// returns the response to write. Every path through here records an
// activity entry and diagnostic log lines.
func (s *Server) handleRequest(ctx context.Context, logger *slog.Logger, connectionID int64, line []byte) protocol.Response {
	started := time.Now()
	requestNumber := s.requestCounter.Add(1)
	s.lastRequestNanos.Store(started.UnixNano())

	request, err := protocol.ParseRequest(line)
	if err != nil {
		response := protocol.Failure(protocol.CodeParseError, err.Error(), nil)
		s.finishRequest(logger, methodMalformed, fmt.Sprintf("%d#%s", requestNumber, methodMalformed), started, response)
		return response
	}
	if request.Method == "" {
		response := protocol.Failure(protocol.CodeInvalidRequest, "missing required field: method", nil)
		s.finishRequest(logger, methodMalformed, fmt.Sprintf("%d#%s", requestNumber, methodMalformed), started, response)
		return response
	}

	// Correlation id for log lines only; it never appears on the wire.
	correlationID := fmt.Sprintf("%d#%s", requestNumber, request.Method)

	if s.authRequired && request.Auth != s.sessionToken {
		response := protocol.Failure(protocol.CodeInvalidRequest, "invalid or missing auth token", nil)
		s.finishRequest(logger, request.Method, correlationID, started, response)
		return response
	}

	s.diag.Log(slog.LevelDebug, "server", "request received", map[string]any{
		"correlation_id": correlationID,
		"connection_id":  connectionID,
	})

	var response protocol.Response
	if s.syncMethods[request.Method] {
		// Introspection methods answer on the worker so they stay
		// usable while the host loop is stalled.
		response = s.registry.Route(ctx, request.Method, request.Params)
	} else {
		response = s.dispatchToHost(ctx, logger, correlationID, request)
	}

	s.finishRequest(logger, request.Method, correlationID, started, response)
	return response
}

// dispatchToHost queues the routed call for the host loop and waits
// for it under the bounded poll.
func (s *Server) dispatchToHost(ctx context.Context, logger *slog.Logger, correlationID string, request protocol.Request) protocol.Response {
	pending := s.dispatcher.Submit(func() (any, error) {
		return s.registry.Route(ctx, request.Method, request.Params), nil
	})

	result, err := pending.Wait(ctx, mainloop.WaitOptions{
		PollInterval: s.pollInterval,
		Ceiling:      s.waitCeiling,
		OnPoll: func(elapsed time.Duration) {
			busy := s.host.Busy()
			logger.Warn("request still waiting on host loop",
				"correlation_id", correlationID,
				"elapsed", elapsed,
				"host_busy", busy,
				"queued_items", s.dispatcher.Len(),
			)
			s.diag.Log(slog.LevelWarn, "server", "still waiting on host loop", map[string]any{
				"correlation_id": correlationID,
				"elapsed_ms":     elapsed.Milliseconds(),
				"host_busy":      busy,
				"queued_items":   s.dispatcher.Len(),
			})
		},
	})
	switch {
	case errors.Is(err, mainloop.ErrTimeout):
		busy := s.host.Busy()
		return protocol.Failure(
			protocol.CodeTimeout,
			fmt.Sprintf("host did not execute the request within %s", s.waitCeiling),
			map[string]any{"host_busy": busy},
		)
	case err != nil:
		// Shutdown cancellation or a panic that escaped the router's
		// own boundary. There may be no transport left to respond on;
		// the worker loop checks for cancellation before writing.
		return protocol.Failure(protocol.CodeInternalError, err.Error(), nil)
	}

	response, ok := result.(protocol.Response)
	if !ok {
		return protocol.Failure(protocol.CodeInternalError, "host returned an unexpected result type", nil)
	}
	return response
}

// finishRequest records the activity entry and the completion log line
// for one request, regardless of outcome.
func (s *Server) finishRequest(logger *slog.Logger, method, correlationID string, started time.Time, response protocol.Response) {
	duration := time.Since(started)
	success := !response.IsError()
	errorMessage := ""
	errorCode := ""
	if !success {
		errorMessage = response.Err.Message
		errorCode = response.Err.Code
	}

	s.recorder.Record(method, duration, success, errorMessage)

	if success {
		logger.Debug("request completed",
			"correlation_id", correlationID,
			"duration", duration,
		)
	} else {
		logger.Warn("request failed",
			"correlation_id", correlationID,
			"duration", duration,
			"code", errorCode,
			"error", errorMessage,
		)
		// Logged even though the error is also returned to the caller:
		// the client may discard the response, and the operator still
		// needs to reconstruct the failure afterwards.
		s.diag.Log(slog.LevelError, "server", "request error", map[string]any{
			"correlation_id": correlationID,
			"code":           errorCode,
			"error":          errorMessage,
		})
	}
	s.diag.Log(slog.LevelDebug, "server", "request completed", map[string]any{
		"correlation_id": correlationID,
		"duration_ms":    duration.Milliseconds(),
		"success":        success,
		"code":           errorCode,
	})
}

// Status is the synchronous health surface. It reads only local
// state — never the host loop — so probes succeed even while the host
// is frozen.
type Status struct {
	Endpoint     string           `json:"endpoint"`
	Socket       string           `json:"socket"`
	Running      bool             `json:"running"`
	Host         hostenv.Identity `json:"host"`
	HostBusy     bool             `json:"host_busy"`
	RequestCount uint64           `json:"request_count"`
	LastRequest  *time.Time       `json:"last_request,omitempty"`
}

// Status reports the bridge's current condition.
func (s *Server) Status() Status {
	status := Status{
		Endpoint:     s.endpointName,
		Socket:       s.socketPath,
		Running:      s.running.Load(),
		Host:         s.host.Identity(),
		HostBusy:     s.host.Busy(),
		RequestCount: s.requestCounter.Load(),
	}
	if nanos := s.lastRequestNanos.Load(); nanos != 0 {
		at := time.Unix(0, nanos)
		status.LastRequest = &at
	}
	return status
}
