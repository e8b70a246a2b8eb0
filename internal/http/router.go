package httpx

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/webpulse/api/internal/domain"
	"github.com/webpulse/api/internal/service/vitals"
	"github.com/webpulse/api/internal/ws"
)

// AlertHistory reads archived alerts for the history endpoint.
type AlertHistory interface {
	ArchivedAlerts(ctx context.Context, since time.Time, limit int) ([]domain.Alert, error)
}

// Router wires HTTP endpoints to the telemetry engine.
type Router struct {
	mux            *http.ServeMux
	logger         *slog.Logger
	engine         *vitals.Engine
	hub            *ws.Hub
	history        AlertHistory
	upgrader       websocket.Upgrader
	limiter        RateLimiter
	collectorToken string
	defaultRange   time.Duration
	maxRange       time.Duration
	dbHealth       func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	ingestedTotal      *prometheus.CounterVec
	rejectedTotal      prometheus.Counter
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitIngest    = 600
	rateLimitRead      = 120
	rateLimitStream    = 30
	rateLimitArchive   = 30
	healthCheckTimeout = 2 * time.Second
	sseHeartbeatEvery  = 15 * time.Second
	defaultAlertLimit  = 50
	maxIngestBatch     = 1000
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, engine *vitals.Engine, hub *ws.Hub, history AlertHistory, limiter RateLimiter, collectorToken string, defaultRange, maxRange time.Duration, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		logger:  logger,
		engine:  engine,
		hub:     hub,
		history: history,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:        limiter,
		collectorToken: strings.TrimSpace(collectorToken),
		defaultRange:   defaultRange,
		maxRange:       maxRange,
		dbHealth:       dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if r.defaultRange <= 0 {
		r.defaultRange = time.Hour
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit(r.handleHealthz))
	r.mux.HandleFunc("/vitals", r.audit(r.withRateLimit("vitals_ingest", rateLimitIngest, rateWindowDefault, r.requireCollectorToken(r.handleVitals))))
	r.mux.HandleFunc("/vitals/stream", r.audit(r.withRateLimit("vitals_stream", rateLimitStream, rateWindowRealtime, r.handleStream)))
	r.mux.HandleFunc("/dashboard", r.audit(r.withRateLimit("dashboard", rateLimitRead, rateWindowDefault, r.handleDashboard)))
	r.mux.HandleFunc("/analysis/", r.audit(r.withRateLimit("analysis", rateLimitRead, rateWindowDefault, r.handleAnalysis)))
	r.mux.HandleFunc("/alerts", r.audit(r.withRateLimit("alerts", rateLimitRead, rateWindowDefault, r.handleAlerts)))
	r.mux.HandleFunc("/alerts/history", r.audit(r.withRateLimit("alert_history", rateLimitRead, rateWindowDefault, r.handleAlertHistory)))
	r.mux.HandleFunc("/export", r.audit(r.withRateLimit("export", rateLimitArchive, rateWindowDefault, r.requireCollectorToken(r.handleExport))))
	r.mux.HandleFunc("/import", r.audit(r.withRateLimit("import", rateLimitArchive, rateWindowDefault, r.requireCollectorToken(r.handleImport))))
	r.mux.Handle("/metrics", promhttp.Handler())
}

func (r *Router) handleVitals(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var body json.RawMessage
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var payloads []vitalPayload
		if err := json.Unmarshal(body, &payloads); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(payloads) > maxIngestBatch {
			writeError(w, http.StatusBadRequest, "batch too large")
			return
		}
		accepted := 0
		rejections := make([]string, 0)
		for _, p := range payloads {
			m, err := r.engine.Ingest(p.raw())
			if err != nil {
				r.recordRejected()
				rejections = append(rejections, err.Error())
				continue
			}
			r.recordIngested(m.Name, string(m.Rating))
			accepted++
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"accepted": accepted,
			"rejected": len(rejections),
			"errors":   rejections,
		})
		return
	}

	var payload vitalPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	m, err := r.engine.Ingest(payload.raw())
	if err != nil {
		r.recordRejected()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	r.recordIngested(m.Name, string(m.Rating))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":     m.ID,
		"rating": string(m.Rating),
	})
}

func (r *Router) handleDashboard(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	timeRange, err := r.parseRange(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, marshalSnapshot(r.engine.Snapshot(timeRange)))
}

func (r *Router) handleAnalysis(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	name := strings.TrimPrefix(req.URL.Path, "/analysis/")
	if name == "" || strings.Contains(name, "/") {
		r.notFound(w)
		return
	}
	timeRange, err := r.parseRange(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	analysis, err := r.engine.Analyze(name, timeRange)
	if err != nil {
		if errors.Is(err, vitals.ErrEmptyWindow) {
			writeError(w, http.StatusNotFound, "no measurements for metric in window")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, marshalAnalysis(analysis))
}

func (r *Router) handleAlerts(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	severity := domain.AlertSeverity(strings.TrimSpace(req.URL.Query().Get("severity")))
	switch severity {
	case "", domain.SeverityCritical, domain.SeverityWarning, domain.SeverityInfo:
	default:
		writeError(w, http.StatusBadRequest, "unknown severity")
		return
	}
	metric := strings.TrimSpace(req.URL.Query().Get("metric"))
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	writeJSON(w, http.StatusOK, marshalAlerts(r.engine.Alerts(severity, metric, limit)))
}

func (r *Router) handleAlertHistory(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.history == nil {
		writeError(w, http.StatusNotFound, "alert history not configured")
		return
	}
	timeRange, err := r.parseRange(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	alerts, err := r.history.ArchivedAlerts(req.Context(), time.Now().Add(-timeRange), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, marshalAlerts(alerts))
}

func (r *Router) handleExport(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	timeRange, err := r.parseRange(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	measurements, err := r.engine.Export(timeRange)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":        len(measurements),
		"measurements": marshalMeasurements(measurements),
	})
}

func (r *Router) handleImport(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Measurements []measurementPayload `json:"measurements"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	measurements := make([]domain.Measurement, 0, len(payload.Measurements))
	for _, p := range payload.Measurements {
		measurements = append(measurements, p.measurement())
	}
	accepted, rejected := r.engine.Import(measurements)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted": accepted,
		"rejected": rejected,
	})
}

func (r *Router) handleStream(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.hub == nil {
		writeError(w, http.StatusNotFound, "streaming not configured")
		return
	}
	topic := strings.TrimSpace(req.URL.Query().Get("metric"))
	if topic == "" {
		topic = ws.TopicAll
	}
	if websocket.IsWebSocketUpgrade(req) {
		r.streamWebSocket(w, req, topic)
		return
	}
	r.streamSSE(w, req, topic)
}

func (r *Router) streamWebSocket(w http.ResponseWriter, req *http.Request, topic string) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(topic, client)
	go func() {
		defer func() {
			r.hub.Unregister(topic, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) streamSSE(w http.ResponseWriter, req *http.Request, topic string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, r.logger)
	r.hub.Register(topic, client)
	defer func() {
		r.hub.Unregister(topic, client)
		client.Close()
	}()

	heartbeat := time.NewTicker(sseHeartbeatEvery)
	defer heartbeat.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-heartbeat.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	components["engine"] = map[string]any{
		"status":                "up",
		"retained_measurements": r.engine.StoredCount(),
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// parseRange reads the range_ms query parameter, bounded to keep scans over
// the retained set finite.
func (r *Router) parseRange(req *http.Request) (time.Duration, error) {
	raw := strings.TrimSpace(req.URL.Query().Get("range_ms"))
	if raw == "" {
		return r.defaultRange, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return 0, errors.New("range_ms must be a positive integer")
	}
	timeRange := time.Duration(ms) * time.Millisecond
	if r.maxRange > 0 && timeRange > r.maxRange {
		timeRange = r.maxRange
	}
	return timeRange, nil
}

func (r *Router) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}

		r.recordRequestMetrics(req.Method, req.URL.Path, status, duration)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

// requireCollectorToken guards write and archive endpoints with the shared
// collector secret.
func (r *Router) requireCollectorToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		expected := r.collectorToken
		if expected == "" {
			r.logger.Error("collector token not configured", "path", req.URL.Path)
			writeError(w, http.StatusInternalServerError, "collector authentication misconfigured")
			return
		}
		token := strings.TrimSpace(req.Header.Get("X-Collector-Token"))
		if token == "" {
			if auth := strings.TrimSpace(req.Header.Get("Authorization")); strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}
		if len(token) != len(expected) || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			r.logger.Warn("collector token mismatch", "path", req.URL.Path)
			writeError(w, http.StatusUnauthorized, "invalid collector token")
			return
		}
		next(w, req)
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
