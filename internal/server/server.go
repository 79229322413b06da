// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/config"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/copilot"
	apperrors "github.com/GriffinCanCode/ride-copilot/platform/internal/errors"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/history"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/metrics"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/overlay"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/settings"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/trace"
)

// Copilot is the part of the copilot manager the server drives.
type Copilot interface {
	Ingest(ctx context.Context, in copilot.Input) copilot.Result
	Overlay() <-chan overlay.Instruction
	Latest() (copilot.Result, bool)
	Visible() bool
	History(ctx context.Context, limit int) ([]history.Record, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	StartShift() time.Time
	StopShift()
	ShiftSummary(ctx context.Context) (history.Summary, error)
	ScreenText() string
	SetCapturePaused(paused bool)
	CapturePaused() bool
}

// SettingsStore reads and writes the driver's tunables.
type SettingsStore interface {
	settings.Provider
	settings.Saver
}

// Message types.
type Message struct {
	Type string `json:"type"`
}

type OverlayMessage struct {
	Type string `json:"type"`
	overlay.Instruction
}

type HideMessage struct {
	Type string `json:"type"`
}

type ScreenTextMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Source  string `json:"source,omitempty"`
	Package string `json:"package,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type AckMessage struct {
	Type     string          `json:"type"`
	Outcome  copilot.Outcome `json:"outcome"`
	RecordID string          `json:"record_id,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// client is one overlay connection with its own ingest budget.
type client struct {
	conn    *websocket.Conn
	limiter *rate.Limiter
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	cp       Copilot
	settings SettingsStore
	cfg      config.HTTPConfig

	mu      sync.RWMutex
	clients map[*websocket.Conn]*client

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a new server and starts the overlay broadcaster.
func New(cp Copilot, st SettingsStore, cfg config.HTTPConfig) *Server {
	s := &Server{
		cp:       cp,
		settings: st,
		cfg:      cfg,
		clients:  make(map[*websocket.Conn]*client),
		done:     make(chan struct{}),
	}

	go s.broadcastOverlay()

	return s
}

// Close stops the broadcaster. Open connections end with their requests.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("POST /api/offers/parse", s.handleParse)
	mux.HandleFunc("GET /api/offers/latest", s.handleLatest)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/history/{id}/status", s.handleSetStatus)
	mux.HandleFunc("GET /api/shift", s.handleShift)
	mux.HandleFunc("POST /api/shift/start", s.handleShiftStart)
	mux.HandleFunc("POST /api/shift/stop", s.handleShiftStop)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
	mux.HandleFunc("GET /api/capture", s.handleCapture)
	mux.HandleFunc("POST /api/capture/pause", s.handleCapturePause)
	mux.HandleFunc("POST /api/capture/resume", s.handleCaptureResume)

	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Apply middleware: trace -> CORS
	return corsMiddleware(s.originPatterns())(trace.Middleware(mux))
}

func (s *Server) originPatterns() []string {
	if len(s.cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.cfg.AllowedOrigins
}

func corsMiddleware(patterns []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && originAllowed(origin, patterns) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			} else if origin == "" && containsWildcard(patterns) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "*")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// originAllowed matches the origin's host against host patterns such as
// "localhost:*", the same form the WebSocket accept check uses.
func originAllowed(origin string, patterns []string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Host)
	for _, p := range patterns {
		if ok, _ := path.Match(strings.ToLower(p), host); ok {
			return true
		}
	}
	return false
}

func containsWildcard(patterns []string) bool {
	for _, p := range patterns {
		if p == "*" {
			return true
		}
	}
	return false
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := trace.Logger(r.Context())
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		log.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	c := &client{
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(s.cfg.WSRatePerSecond), s.cfg.WSBurst),
	}
	s.mu.Lock()
	s.clients[conn] = c
	s.mu.Unlock()
	metrics.OverlayClients.Inc()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		metrics.OverlayClients.Dec()
	}()

	baseCtx := r.Context()
	log.Info("websocket connected", "remote", r.RemoteAddr)

	// New clients see the offer that is already on screen.
	if latest, ok := s.cp.Latest(); ok && s.cp.Visible() {
		s.write(baseCtx, conn, OverlayMessage{Type: TypeOverlay, Instruction: latest.Instruction})
	}

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case TypeScreenText:
			if !c.limiter.Allow() {
				log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
				s.write(baseCtx, conn, ErrorMessage{Type: TypeError, Message: "rate limit exceeded"})
				continue
			}
			var in ScreenTextMessage
			if err := json.Unmarshal(msg, &in); err != nil {
				s.write(baseCtx, conn, ErrorMessage{Type: TypeError, Message: "malformed screen_text message"})
				continue
			}
			// Continue the caller's trace when the message carries one
			ctx := baseCtx
			if tc, ok := trace.ExtractFromJSON(msg); ok {
				ctx = trace.WithContext(ctx, tc)
			} else {
				ctx, _ = trace.EnsureContext(ctx)
			}
			s.handleScreenText(ctx, conn, in)
		default:
			s.write(baseCtx, conn, ErrorMessage{Type: TypeError, Message: "unknown message type " + strconv.Quote(base.Type)})
		}
	}
}

func (s *Server) handleScreenText(ctx context.Context, conn *websocket.Conn, in ScreenTextMessage) {
	ctx, span := trace.StartSpan(ctx, "handle_screen_text")
	defer span.End()

	source := in.Source
	if source == "" {
		source = copilot.SourceAccessibility
	}
	res := s.cp.Ingest(ctx, copilot.Input{Text: in.Text, Source: source, Package: in.Package})
	span.SetAttr("outcome", string(res.Outcome))

	s.write(ctx, conn, AckMessage{Type: TypeAck, Outcome: res.Outcome, RecordID: res.RecordID})
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, msg any) {
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	_ = wsjson.Write(ctx, conn, msg)
}

func (s *Server) broadcastOverlay() {
	for {
		select {
		case <-s.done:
			return
		case in := <-s.cp.Overlay():
			var msg any = OverlayMessage{Type: TypeOverlay, Instruction: in}
			if !in.Visible {
				msg = HideMessage{Type: TypeOverlayHide}
			}

			s.mu.RLock()
			for conn := range s.clients {
				go func(c *websocket.Conn) {
					s.write(context.Background(), c, msg)
				}(conn)
			}
			s.mu.RUnlock()
		}
	}
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req copilot.Input
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Source == "" {
		req.Source = copilot.SourceAPI
	}
	writeJSON(w, http.StatusOK, s.cp.Ingest(r.Context(), req))
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	res, ok := s.cp.Latest()
	if !ok {
		writeError(w, apperrors.New(apperrors.CodeNotFound, "no offer assessed yet"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid limit %q", v))
			return
		}
		limit = n
	}

	records, err := s.cp.History(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid record id"))
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := s.cp.SetStatus(r.Context(), id, req.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id.String(), "status": req.Status})
}

// shiftResponse adds derived figures to the summary.
type shiftResponse struct {
	history.Summary
	AcceptRate float64 `json:"accept_rate"`
}

func (s *Server) handleShift(w http.ResponseWriter, r *http.Request) {
	sum, err := s.cp.ShiftSummary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shiftResponse{Summary: sum, AcceptRate: sum.AcceptRate()})
}

func (s *Server) handleShiftStart(w http.ResponseWriter, _ *http.Request) {
	start := s.cp.StartShift()
	writeJSON(w, http.StatusOK, map[string]any{"status": "shift_started", "start": start})
}

func (s *Server) handleShiftStop(w http.ResponseWriter, r *http.Request) {
	s.cp.StopShift()
	s.handleShift(w, r)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeJSON(w, http.StatusOK, settings.Defaults())
		return
	}
	cur, err := s.settings.Current(r.Context())
	if err != nil {
		trace.Logger(r.Context()).Warn("settings read failed", "error", err)
	}
	writeJSON(w, http.StatusOK, cur)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, apperrors.New(apperrors.CodeUnavailable, "settings are read-only"))
		return
	}

	var next settings.Settings
	if err := decodeJSON(w, r, &next); err != nil {
		writeError(w, err)
		return
	}
	if err := next.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := s.settings.Save(r.Context(), next); err != nil {
		writeError(w, err)
		return
	}
	trace.Logger(r.Context()).Info("settings updated")
	writeJSON(w, http.StatusOK, next)
}

func (s *Server) handleCapture(w http.ResponseWriter, _ *http.Request) {
	text := s.cp.ScreenText()
	if len(text) > TextPreviewLimit {
		text = text[:TextPreviewLimit] + "..."
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"paused":         s.cp.CapturePaused(),
		"extracted_text": text,
	})
}

func (s *Server) handleCapturePause(w http.ResponseWriter, _ *http.Request) {
	s.cp.SetCapturePaused(true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "capture_paused"})
}

func (s *Server) handleCaptureResume(w http.ResponseWriter, _ *http.Request) {
	s.cp.SetCapturePaused(false)
	writeJSON(w, http.StatusOK, map[string]string{"status": "capture_resumed"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), map[string]string{"error": err.Error()})
}

// httpStatus maps an error code onto the closest HTTP status.
func httpStatus(err error) int {
	switch {
	case apperrors.IsCode(err, apperrors.CodeInvalidArgument):
		return http.StatusBadRequest
	case apperrors.IsCode(err, apperrors.CodeNotFound):
		return http.StatusNotFound
	case apperrors.IsCode(err, apperrors.CodeUnavailable), apperrors.IsCode(err, apperrors.CodeStorageFailed):
		return http.StatusServiceUnavailable
	case apperrors.IsCode(err, apperrors.CodeTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
