package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/carebridge/carechat/internal/core/domain"
	"github.com/carebridge/carechat/internal/core/ports"
	"github.com/carebridge/carechat/internal/observability/metrics"
)

const serviceName = "carechat-api"

type RouterConfig struct {
	MaxUploadBytes int64
	RateLimitRPS   int
	RateLimitBurst int
	MaxConcurrent  int
}

type Router struct {
	sessions ports.SessionManager
	ingest   ports.DocumentIngestor
	chat     ports.ChatService
	notifier ports.ReportNotifier
	metrics  *metrics.HTTPServerMetrics
	cfg      RouterConfig
}

func NewRouter(
	sessions ports.SessionManager,
	ingest ports.DocumentIngestor,
	chat ports.ChatService,
	notifier ports.ReportNotifier,
	m *metrics.HTTPServerMetrics,
	cfg RouterConfig,
) *Router {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	return &Router{
		sessions: sessions,
		ingest:   ingest,
		chat:     chat,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("GET /metrics", rt.metrics.Handler())
	mux.HandleFunc("GET /{$}", rt.ui)

	mux.HandleFunc("POST /v1/sessions", rt.createSession)
	mux.HandleFunc("GET /v1/sessions/{id}", rt.getSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", rt.endSession)
	mux.HandleFunc("POST /v1/sessions/{id}/documents", rt.attachDocument)
	mux.HandleFunc("POST /v1/sessions/{id}/summarize", rt.summarize)
	mux.HandleFunc("POST /v1/sessions/{id}/messages", rt.postMessage)
	mux.HandleFunc("POST /v1/sessions/{id}/report", rt.sendReport)

	var handler http.Handler = mux
	handler = requestValidationMiddleware(handler)
	handler = backpressureMiddleware(handler, rt.cfg.MaxConcurrent, 50*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	session, err := rt.sessions.Create(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.metrics.SessionOpened()
	writeJSON(w, http.StatusCreated, session)
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	session, turns, err := rt.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": session,
		"turns":   turns,
	})
}

func (rt *Router) endSession(w http.ResponseWriter, r *http.Request) {
	if err := rt.sessions.End(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	rt.metrics.SessionClosed()
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) attachDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	started := time.Now()
	extracted, err := rt.ingest.Attach(
		r.Context(),
		r.PathValue("id"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.metrics.RecordExtraction(serviceName, time.Since(started))
	for _, page := range extracted.Pages {
		rt.metrics.RecordOCRPage(serviceName, page.Confidence, page.Failed)
	}
	writeJSON(w, http.StatusOK, extracted)
}

func (rt *Router) summarize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	started := time.Now()
	result, err := rt.chat.Summarize(r.Context(), r.PathValue("id"), req.Text)
	rt.recordChat("summarize", started, result, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) postMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	started := time.Now()
	result, err := rt.chat.Ask(r.Context(), r.PathValue("id"), req.Message)
	rt.recordChat("messages", started, result, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) sendReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Recipient string `json:"recipient"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	err := rt.notifier.SendReport(r.Context(), r.PathValue("id"), req.Recipient)
	rt.metrics.RecordReport(serviceName, "sync", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

func (rt *Router) recordChat(endpoint string, started time.Time, result *domain.ChatResult, err error) {
	evicted := 0
	if result != nil {
		evicted = result.EvictedTurns
	}
	rt.metrics.RecordChatCompletion(serviceName, endpoint, time.Since(started), evicted, err)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
