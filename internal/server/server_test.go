package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/config"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/copilot"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/economics"
	apperrors "github.com/GriffinCanCode/ride-copilot/platform/internal/errors"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/history"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/offer"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/overlay"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/settings"
)

// mockCopilot for testing.
type mockCopilot struct {
	mu         sync.Mutex
	inputs     []copilot.Input
	result     copilot.Result
	latest     *copilot.Result
	visible    bool
	records    []history.Record
	historyLim int
	statusErr  error
	statuses   map[uuid.UUID]string
	shiftOn    bool
	screenText string
	paused     bool
	overlayCh  chan overlay.Instruction
}

func newMockCopilot() *mockCopilot {
	return &mockCopilot{
		result:     copilot.Result{Outcome: copilot.OutcomeNoOffer},
		statuses:   make(map[uuid.UUID]string),
		screenText: "Test screen text",
		overlayCh:  make(chan overlay.Instruction, 10),
	}
}

func (m *mockCopilot) Ingest(_ context.Context, in copilot.Input) copilot.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, in)
	return m.result
}

func (m *mockCopilot) ingested() []copilot.Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]copilot.Input(nil), m.inputs...)
}

func (m *mockCopilot) Overlay() <-chan overlay.Instruction { return m.overlayCh }
func (m *mockCopilot) Visible() bool                       { return m.visible }
func (m *mockCopilot) StartShift() time.Time               { m.shiftOn = true; return time.Unix(0, 0) }
func (m *mockCopilot) StopShift()                          { m.shiftOn = false }
func (m *mockCopilot) ScreenText() string                  { return m.screenText }
func (m *mockCopilot) SetCapturePaused(paused bool)        { m.paused = paused }
func (m *mockCopilot) CapturePaused() bool                 { return m.paused }

func (m *mockCopilot) Latest() (copilot.Result, bool) {
	if m.latest == nil {
		return copilot.Result{}, false
	}
	return *m.latest, true
}

func (m *mockCopilot) History(_ context.Context, limit int) ([]history.Record, error) {
	m.historyLim = limit
	return m.records, nil
}

func (m *mockCopilot) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	if m.statusErr != nil {
		return m.statusErr
	}
	m.statuses[id] = status
	return nil
}

func (m *mockCopilot) ShiftSummary(context.Context) (history.Summary, error) {
	return history.Summary{Active: m.shiftOn, Accepted: 3, Declined: 1, ByLevel: map[string]int{}}, nil
}

// memorySettings is a SettingsStore backed by a field.
type memorySettings struct {
	s settings.Settings
}

func (m *memorySettings) Current(context.Context) (settings.Settings, error) { return m.s, nil }
func (m *memorySettings) Save(_ context.Context, s settings.Settings) error  { m.s = s; return nil }

func testConfig() config.HTTPConfig {
	return config.HTTPConfig{AllowedOrigins: []string{"*"}, WSRatePerSecond: 10, WSBurst: 20}
}

func newTestServer(t *testing.T, cp *mockCopilot) (*Server, http.Handler) {
	t.Helper()
	s := New(cp, &memorySettings{s: settings.Defaults()}, testConfig())
	t.Cleanup(s.Close)
	return s, s.Handler()
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware([]string{"localhost:*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Test OPTIONS request
	req := httptest.NewRequest("OPTIONS", "/test", http.NoBody)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("OPTIONS status = %d, want %d", rec.Code, http.StatusOK)
	}
	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "http://localhost:5173" {
		t.Errorf("CORS origin = %q, want %q", v, "http://localhost:5173")
	}
	if v := rec.Header().Get("Access-Control-Allow-Methods"); v != "GET, POST, PUT, OPTIONS" {
		t.Errorf("CORS methods = %q, want %q", v, "GET, POST, PUT, OPTIONS")
	}

	// Test disallowed origin
	req = httptest.NewRequest("GET", "/test", http.NoBody)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET status = %d, want %d", rec.Code, http.StatusOK)
	}
	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "" {
		t.Errorf("CORS origin on disallowed = %q, want empty", v)
	}
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		origin   string
		patterns []string
		want     bool
	}{
		{"http://localhost:3000", []string{"localhost:*"}, true},
		{"http://127.0.0.1:8000", []string{"localhost:*", "127.0.0.1:*"}, true},
		{"https://example.com", []string{"localhost:*"}, false},
		{"https://example.com", []string{"*"}, true},
		{"not a url", []string{"*"}, false},
	}

	for _, tt := range tests {
		if got := originAllowed(tt.origin, tt.patterns); got != tt.want {
			t.Errorf("originAllowed(%q, %v) = %v, want %v", tt.origin, tt.patterns, got, tt.want)
		}
	}
}

func TestHandleParse(t *testing.T) {
	cp := newMockCopilot()
	cp.result = copilot.Result{
		Outcome:    copilot.OutcomeAssessed,
		RecordID:   "abc",
		Assessment: &economics.Assessment{Overall: economics.LevelAccept},
	}
	_, h := newTestServer(t, cp)

	rec := do(h, "POST", "/api/offers/parse", `{"text":"Reject ride$20.15"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var got struct {
		Outcome    string `json:"outcome"`
		RecordID   string `json:"record_id"`
		Assessment struct {
			Overall string `json:"overall"`
		} `json:"assessment"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("json.Unmarshal error: %v", err)
	}
	if got.Outcome != "assessed" || got.RecordID != "abc" || got.Assessment.Overall != "accept" {
		t.Errorf("response = %+v", got)
	}

	inputs := cp.ingested()
	if len(inputs) != 1 || inputs[0].Source != copilot.SourceAPI {
		t.Errorf("ingested = %+v, want one api input", inputs)
	}
}

func TestHandleParseBadBody(t *testing.T) {
	_, h := newTestServer(t, newMockCopilot())

	for _, body := range []string{`{`, `{"txt":"x"}`, `[]`} {
		if rec := do(h, "POST", "/api/offers/parse", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %q status = %d, want 400", body, rec.Code)
		}
	}
}

func TestHandleLatest(t *testing.T) {
	cp := newMockCopilot()
	_, h := newTestServer(t, cp)

	if rec := do(h, "GET", "/api/offers/latest", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status without offer = %d, want 404", rec.Code)
	}

	cp.latest = &copilot.Result{Outcome: copilot.OutcomeAssessed, RecordID: "r1"}
	rec := do(h, "GET", "/api/offers/latest", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"record_id":"r1"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleHistory(t *testing.T) {
	cp := newMockCopilot()
	cp.records = []history.Record{{ID: uuid.New(), Recommendation: economics.LevelCaution}}
	_, h := newTestServer(t, cp)

	tests := []struct {
		target    string
		wantCode  int
		wantLimit int
	}{
		{"/api/history", http.StatusOK, 0},
		{"/api/history?limit=5", http.StatusOK, 5},
		{"/api/history?limit=abc", http.StatusBadRequest, -1},
		{"/api/history?limit=-2", http.StatusBadRequest, -1},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			cp.historyLim = -1
			rec := do(h, "GET", tt.target, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if cp.historyLim != tt.wantLimit {
				t.Errorf("limit = %d, want %d", cp.historyLim, tt.wantLimit)
			}
		})
	}

	rec := do(h, "GET", "/api/history", "")
	var body struct {
		Records []history.Record `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal error: %v", err)
	}
	if len(body.Records) != 1 || body.Records[0].Recommendation != economics.LevelCaution {
		t.Errorf("records = %+v", body.Records)
	}
}

func TestHandleSetStatus(t *testing.T) {
	cp := newMockCopilot()
	_, h := newTestServer(t, cp)
	id := uuid.New()

	rec := do(h, "POST", "/api/history/"+id.String()+"/status", `{"status":"accepted"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if cp.statuses[id] != offer.StatusAccepted {
		t.Errorf("status recorded = %q, want accepted", cp.statuses[id])
	}

	if rec := do(h, "POST", "/api/history/not-a-uuid/status", `{"status":"accepted"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}

	cp.statusErr = apperrors.New(apperrors.CodeNotFound, "record not found")
	if rec := do(h, "POST", "/api/history/"+id.String()+"/status", `{"status":"declined"}`); rec.Code != http.StatusNotFound {
		t.Errorf("missing record status = %d, want 404", rec.Code)
	}
}

func TestShiftEndpoints(t *testing.T) {
	cp := newMockCopilot()
	_, h := newTestServer(t, cp)

	if rec := do(h, "POST", "/api/shift/start", ""); rec.Code != http.StatusOK || !cp.shiftOn {
		t.Fatalf("start status = %d, shiftOn = %v", rec.Code, cp.shiftOn)
	}

	rec := do(h, "GET", "/api/shift", "")
	var sum struct {
		Active     bool    `json:"active"`
		Accepted   int     `json:"accepted"`
		AcceptRate float64 `json:"accept_rate"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("json.Unmarshal error: %v", err)
	}
	if !sum.Active || sum.Accepted != 3 || sum.AcceptRate != 0.75 {
		t.Errorf("summary = %+v", sum)
	}

	if rec := do(h, "POST", "/api/shift/stop", ""); rec.Code != http.StatusOK || cp.shiftOn {
		t.Errorf("stop status = %d, shiftOn = %v", rec.Code, cp.shiftOn)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	_, h := newTestServer(t, newMockCopilot())

	rec := do(h, "GET", "/api/settings", "")
	var cur settings.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &cur); err != nil {
		t.Fatalf("json.Unmarshal error: %v", err)
	}
	if cur != settings.Defaults() {
		t.Errorf("settings = %+v, want defaults", cur)
	}

	cur.Thresholds.AcceptPerMile = 1.5
	body, _ := json.Marshal(cur)
	if rec := do(h, "PUT", "/api/settings", string(body)); rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(h, "GET", "/api/settings", "")
	if !strings.Contains(rec.Body.String(), `"accept_per_mile":1.5`) {
		t.Errorf("settings after PUT = %s", rec.Body.String())
	}

	cur.Thresholds.DeclinePerMile = 3
	body, _ = json.Marshal(cur)
	if rec := do(h, "PUT", "/api/settings", string(body)); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid PUT status = %d, want 400", rec.Code)
	}
}

func TestSettingsReadOnly(t *testing.T) {
	s := New(newMockCopilot(), nil, testConfig())
	defer s.Close()
	h := s.Handler()

	if rec := do(h, "GET", "/api/settings", ""); rec.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200", rec.Code)
	}
	body, _ := json.Marshal(settings.Defaults())
	if rec := do(h, "PUT", "/api/settings", string(body)); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("PUT status = %d, want 503", rec.Code)
	}
}

func TestCaptureEndpoints(t *testing.T) {
	cp := newMockCopilot()
	cp.screenText = strings.Repeat("a", TextPreviewLimit+10)
	_, h := newTestServer(t, cp)

	rec := do(h, "GET", "/api/capture", "")
	var got struct {
		Paused bool   `json:"paused"`
		Text   string `json:"extracted_text"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("json.Unmarshal error: %v", err)
	}
	if len(got.Text) != TextPreviewLimit+3 {
		t.Errorf("preview length = %d, want %d", len(got.Text), TextPreviewLimit+3)
	}

	do(h, "POST", "/api/capture/pause", "")
	if !cp.paused {
		t.Error("pause should pause capture")
	}
	do(h, "POST", "/api/capture/resume", "")
	if cp.paused {
		t.Error("resume should resume capture")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, h := newTestServer(t, newMockCopilot())

	if rec := do(h, "GET", "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
	rec := do(h, "GET", "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "copilot_overlay_clients") {
		t.Errorf("metrics status = %d", rec.Code)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code apperrors.Code
		want int
	}{
		{apperrors.CodeInvalidArgument, http.StatusBadRequest},
		{apperrors.CodeNotFound, http.StatusNotFound},
		{apperrors.CodeUnavailable, http.StatusServiceUnavailable},
		{apperrors.CodeStorageFailed, http.StatusServiceUnavailable},
		{apperrors.CodeTimeout, http.StatusGatewayTimeout},
		{apperrors.CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := httpStatus(apperrors.New(tt.code, "x")); got != tt.want {
			t.Errorf("httpStatus(%v) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func dialWS(t *testing.T, h http.Handler) (*websocket.Conn, context.Context) {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("websocket.Dial error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func TestWebSocketScreenText(t *testing.T) {
	cp := newMockCopilot()
	cp.result = copilot.Result{Outcome: copilot.OutcomeDuplicate}
	_, h := newTestServer(t, cp)
	conn, ctx := dialWS(t, h)

	msg := ScreenTextMessage{Type: TypeScreenText, Text: "Match", Package: "com.lyft.android.driver"}
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		t.Fatalf("wsjson.Write error: %v", err)
	}

	var ack AckMessage
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		t.Fatalf("wsjson.Read error: %v", err)
	}
	if ack.Type != TypeAck || ack.Outcome != copilot.OutcomeDuplicate {
		t.Errorf("ack = %+v", ack)
	}

	inputs := cp.ingested()
	if len(inputs) != 1 || inputs[0].Source != copilot.SourceAccessibility || inputs[0].Package != "com.lyft.android.driver" {
		t.Errorf("ingested = %+v", inputs)
	}
}

func TestWebSocketUnknownType(t *testing.T) {
	_, h := newTestServer(t, newMockCopilot())
	conn, ctx := dialWS(t, h)

	if err := wsjson.Write(ctx, conn, Message{Type: "chat"}); err != nil {
		t.Fatalf("wsjson.Write error: %v", err)
	}
	var got ErrorMessage
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("wsjson.Read error: %v", err)
	}
	if got.Type != TypeError {
		t.Errorf("message = %+v, want error", got)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	cp := newMockCopilot()
	s := New(cp, nil, config.HTTPConfig{AllowedOrigins: []string{"*"}, WSRatePerSecond: 0.001, WSBurst: 1})
	defer s.Close()
	conn, ctx := dialWS(t, s.Handler())

	for i := 0; i < 2; i++ {
		if err := wsjson.Write(ctx, conn, ScreenTextMessage{Type: TypeScreenText, Text: "x"}); err != nil {
			t.Fatalf("wsjson.Write error: %v", err)
		}
	}

	var first, second Message
	if err := wsjson.Read(ctx, conn, &first); err != nil {
		t.Fatalf("wsjson.Read error: %v", err)
	}
	if err := wsjson.Read(ctx, conn, &second); err != nil {
		t.Fatalf("wsjson.Read error: %v", err)
	}
	if first.Type != TypeAck || second.Type != TypeError {
		t.Errorf("messages = %q, %q, want ack then error", first.Type, second.Type)
	}
	if n := len(cp.ingested()); n != 1 {
		t.Errorf("ingested = %d, want 1", n)
	}
}

func TestWebSocketOverlayBroadcast(t *testing.T) {
	cp := newMockCopilot()
	_, h := newTestServer(t, cp)
	conn, ctx := dialWS(t, h)

	// A screen_text round trip proves the connection is registered.
	_ = wsjson.Write(ctx, conn, ScreenTextMessage{Type: TypeScreenText, Text: "x"})
	var ack AckMessage
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		t.Fatalf("wsjson.Read error: %v", err)
	}

	cp.overlayCh <- overlay.Instruction{Visible: true, OfferID: "r1", Color: overlay.ColorAccept}
	var shown struct {
		Type    string `json:"type"`
		OfferID string `json:"offer_id"`
		Color   string `json:"color"`
	}
	if err := wsjson.Read(ctx, conn, &shown); err != nil {
		t.Fatalf("wsjson.Read error: %v", err)
	}
	if shown.Type != TypeOverlay || shown.OfferID != "r1" || shown.Color != overlay.ColorAccept {
		t.Errorf("overlay message = %+v", shown)
	}

	cp.overlayCh <- overlay.Hidden()
	var hidden Message
	if err := wsjson.Read(ctx, conn, &hidden); err != nil {
		t.Fatalf("wsjson.Read error: %v", err)
	}
	if hidden.Type != TypeOverlayHide {
		t.Errorf("hide message type = %q, want %q", hidden.Type, TypeOverlayHide)
	}
}

func TestWebSocketReplaysVisibleOffer(t *testing.T) {
	cp := newMockCopilot()
	cp.latest = &copilot.Result{Instruction: overlay.Instruction{Visible: true, OfferID: "r9"}}
	cp.visible = true
	_, h := newTestServer(t, cp)
	conn, ctx := dialWS(t, h)

	var shown struct {
		Type    string `json:"type"`
		OfferID string `json:"offer_id"`
	}
	if err := wsjson.Read(ctx, conn, &shown); err != nil {
		t.Fatalf("wsjson.Read error: %v", err)
	}
	if shown.Type != TypeOverlay || shown.OfferID != "r9" {
		t.Errorf("replayed message = %+v", shown)
	}
}
