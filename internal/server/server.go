package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/audiolibrelab/dialmix/internal/config"
	"github.com/audiolibrelab/dialmix/internal/service"
)

const (
	clientBuffer  = 16
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// StatusSource exposes the live state of a sync loop.
type StatusSource interface {
	State() service.State
	GetLastError() string
}

// Server publishes the host's cycle reports over HTTP and WebSocket
type Server struct {
	cfg        *config.Config
	configFile string
	port       string
	status     StatusSource
	serverID   string

	mux      *http.ServeMux
	upgrader websocket.Upgrader

	reportMu   sync.RWMutex
	lastReport *service.CycleReport

	clientsMu sync.Mutex
	clients   map[string]*client
	// closed is set once shutdown has closed the clients; guarded by clientsMu.
	closed bool

	wg sync.WaitGroup
}

type client struct {
	ID       string
	Conn     *websocket.Conn
	sendChan chan interface{}
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	ServerID string               `json:"server_id"`
	State    service.State        `json:"state"`
	Message  string               `json:"message,omitempty"`
	Profile  string               `json:"profile"`
	Report   *service.CycleReport `json:"report,omitempty"`
}

// BindingInfo describes one configured dial
type BindingInfo struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Selector string `json:"selector"`
}

// ConfigResponse represents the JSON response for config endpoint
type ConfigResponse struct {
	Profile      string        `json:"profile"`
	Backend      string        `json:"backend"`
	SerialPath   string        `json:"serial_path"`
	Baud         int           `json:"baud"`
	MuteFeedback bool          `json:"mute_feedback"`
	Bindings     []BindingInfo `json:"bindings"`
}

// New creates a status server for the loaded configuration. Register it as
// an observer of the host loop to publish reports.
func New(cfg *config.Config, configFile string, status StatusSource, port string) *Server {
	s := &Server{
		cfg:        cfg,
		configFile: configFile,
		port:       port,
		status:     status,
		serverID:   uuid.New().String(),
		mux:        http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// status is read-only and meant for the local network
				if origin := r.Header.Get("Origin"); origin != "" {
					slog.Debug("Accepting WebSocket origin", "origin", origin)
				}
				return true
			},
		},
		clients: make(map[string]*client),
	}

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/config", s.handleConfig)
	s.mux.HandleFunc("/config/profiles", s.handleProfiles)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{Addr: ":" + s.port, Handler: s.mux}

	localIP := getLocalIP()
	slog.Info("Starting dialmix status server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	s.closeClients()
	s.wg.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Observe stores the report and pushes it to every connected client.
func (s *Server) Observe(report *service.CycleReport) {
	s.reportMu.Lock()
	s.lastReport = report
	s.reportMu.Unlock()

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for _, c := range s.clients {
		select {
		case c.sendChan <- report:
		default:
			slog.Debug("Client too slow, dropping report", "client", c.ID, "cycle", report.Cycle)
		}
	}
}

// LastReport returns the most recent cycle report, or nil before the first
// cycle completes.
func (s *Server) LastReport() *service.CycleReport {
	s.reportMu.RLock()
	defer s.reportMu.RUnlock()
	return s.lastReport
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(indexHTML))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	response := StatusResponse{
		ServerID: s.serverID,
		State:    service.StateIdle,
		Profile:  s.cfg.Profile,
		Report:   s.LastReport(),
	}
	if s.status != nil {
		response.State = s.status.State()
		response.Message = s.status.GetLastError()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	bindings := s.cfg.Bindings()
	response := ConfigResponse{
		Profile:      s.cfg.Profile,
		Backend:      s.cfg.Audio.Backend,
		SerialPath:   s.cfg.Serial.Path,
		Baud:         s.cfg.Serial.Baud,
		MuteFeedback: s.cfg.Serial.MuteFeedback,
		Bindings:     make([]BindingInfo, len(bindings)),
	}
	for i, b := range bindings {
		response.Bindings[i] = BindingInfo{
			Index:    i,
			Name:     b.Name,
			Kind:     b.Selector.Kind().String(),
			Selector: b.Selector.String(),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	root, err := config.ValidateConfigurationFormat(s.configFile)
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, "Failed to read profiles", "error", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"profiles": config.ProfileNames(root),
		"active":   s.cfg.Profile,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{
		ID:       uuid.New().String(),
		Conn:     conn,
		sendChan: make(chan interface{}, clientBuffer),
	}
	if report := s.LastReport(); report != nil {
		c.sendChan <- report
	}

	s.clientsMu.Lock()
	if s.closed {
		s.clientsMu.Unlock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeDeadline))
		conn.Close()
		slog.Debug("Refused status client during shutdown", "remote", r.RemoteAddr)
		return
	}
	s.clients[c.ID] = c
	s.wg.Add(1)
	s.clientsMu.Unlock()
	slog.Info("Status client connected", "client", c.ID, "remote", r.RemoteAddr)

	go func() {
		defer s.wg.Done()
		s.clientWriter(c)
	}()

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("WebSocket read error", "client", c.ID, "error", err)
			}
			break
		}
	}

	s.removeClient(c.ID)
	slog.Info("Status client disconnected", "client", c.ID)
}

func (s *Server) clientWriter(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.Conn.Close()

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				c.Conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeDeadline))
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				slog.Error("Failed to marshal message", "error", err)
				continue
			}
			c.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("Failed to write message", "client", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

func (s *Server) removeClient(id string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if c, ok := s.clients[id]; ok {
		delete(s.clients, id)
		close(c.sendChan)
	}
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.closed = true
	for id, c := range s.clients {
		delete(s.clients, id)
		close(c.sendChan)
	}
}

// sendErrorResponse sends a standardized error response with logging
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

// getLocalIP returns the local network IP address
func getLocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
