package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voxnav/voxnav/pkg/assistant"
	"github.com/voxnav/voxnav/pkg/errorsx"
)

type Config struct {
	Addr           string   `mapstructure:"addr"`
	TurnPath       string   `mapstructure:"turn_path"`
	WebsocketPath  string   `mapstructure:"ws_path"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReadTimeoutMS  int      `mapstructure:"read_timeout_ms"`
	WriteTimeoutMS int      `mapstructure:"write_timeout_ms"`
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.TurnPath == "" {
		c.TurnPath = "/v1/turn"
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = "/v1/stream"
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	if c.ReadTimeoutMS <= 0 {
		c.ReadTimeoutMS = 30000
	}
	if c.WriteTimeoutMS <= 0 {
		c.WriteTimeoutMS = 30000
	}
	return c
}

// TurnHandler is the engine-side contract the server drives.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req assistant.TurnRequest) (assistant.Reply, error)
}

// Server exposes the assistant over HTTP and websocket. POST /v1/turn handles
// one request/reply pair; /v1/stream upgrades to a websocket carrying one JSON
// turn per message for clients that hold a conversation open.
type Server struct {
	cfg      Config
	handler  TurnHandler
	server   *http.Server
	upgrader websocket.Upgrader
	logger   *slog.Logger
	draining atomic.Bool
}

func NewServer(cfg Config, handler TurnHandler, logger *slog.Logger) *Server {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	s.upgrader.CheckOrigin = s.checkOrigin
	return s
}

func (s *Server) Name() string { return "http" }

// Start begins serving and blocks until the listener fails or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.TurnPath, s.handleTurn)
	mux.HandleFunc(s.cfg.WebsocketPath, s.handleStream)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.server = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      mux,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutMS) * time.Millisecond,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.logger.Info("transport listening", "addr", s.cfg.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.draining.Store(true)
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req assistant.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	reply, err := s.handler.HandleTurn(r.Context(), req)
	s.writeReply(w, reply, err)
}

func (s *Server) writeReply(w http.ResponseWriter, reply assistant.Reply, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	if encErr := json.NewEncoder(w).Encode(reply); encErr != nil {
		s.logger.Warn("reply encode failed", "error", encErr)
	}
}

// statusFor maps turn errors onto HTTP status codes. Transient collaborator
// failures are retryable and say so with a 503.
func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errorsx.Transient(err) {
		return http.StatusServiceUnavailable
	}
	switch errorsx.Reason(err) {
	case errorsx.ReasonSchemaNotFound:
		return http.StatusUnprocessableEntity
	case errorsx.ReasonInvalidSlotValue:
		return http.StatusOK
	case errorsx.ReasonUnknown:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type wsError struct {
	TraceID string `json:"trace_id,omitempty"`
	Error   string `json:"error"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	connID := uuid.NewString()
	log := s.logger.With("conn_id", connID, "remote", r.RemoteAddr)
	log.Info("websocket connected")
	defer func() {
		_ = conn.Close()
		log.Info("websocket closed")
	}()

	for {
		if s.draining.Load() {
			return
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("websocket read failed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var req assistant.TurnRequest
		if err := json.Unmarshal(data, &req); err != nil {
			_ = conn.WriteJSON(wsError{Error: "malformed turn message"})
			continue
		}
		reply, terr := s.handler.HandleTurn(r.Context(), req)
		if terr != nil {
			log.Warn("turn failed", "trace_id", reply.TraceID, "error", terr)
		}
		if err := conn.WriteJSON(reply); err != nil {
			log.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowAnyOrigin {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}
