package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
	"github.com/kirillkom/grounded-policy-assistant/internal/core/ports"
	"github.com/kirillkom/grounded-policy-assistant/internal/observability/metrics"
)

// TrafficConfig bounds the inbound request flow. Zero values disable
// the corresponding gate.
type TrafficConfig struct {
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxInFlight     int
	MaxInFlightWait time.Duration
}

type Router struct {
	uploader ports.PolicyUploader
	reader   ports.PolicyReader
	answerer ports.PolicyAnswerer
	settings ports.SettingsStore
	metrics  *metrics.HTTPServerMetrics
	service  string
	traffic  TrafficConfig
}

func NewRouter(
	uploader ports.PolicyUploader,
	reader ports.PolicyReader,
	answerer ports.PolicyAnswerer,
	settings ports.SettingsStore,
	serverMetrics *metrics.HTTPServerMetrics,
	service string,
	traffic TrafficConfig,
) *Router {
	return &Router{
		uploader: uploader,
		reader:   reader,
		answerer: answerer,
		settings: settings,
		metrics:  serverMetrics,
		service:  service,
		traffic:  traffic,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.documents)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/settings", rt.runtimeSettings)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	if rt.traffic.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.traffic.RateLimitRPS, rt.traffic.RateLimitBurst)
	}
	if rt.traffic.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.traffic.MaxInFlight, rt.traffic.MaxInFlightWait)
	}
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// documents handles the collection endpoint: POST replaces the active
// document, GET reports the state of the current one.
func (rt *Router) documents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadDocument(w, r)
	case http.MethodGet:
		rt.activeDocument(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	doc, err := rt.uploader.Upload(r.Context(), req.Name, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordDocumentUpload(rt.service, doc.Truncated)
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) activeDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.reader.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question        string  `json:"question"`
		Mode            string  `json:"mode"`
		TopK            int     `json:"top_k"`
		MinScore        float64 `json:"min_score"`
		MaxContextChars int     `json:"max_context_chars"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	mode, ok := domain.NormalizeResponseMode(req.Mode)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown mode: " + req.Mode})
		return
	}
	if req.Mode == "" {
		// let the use case fall back to the persisted default mode
		mode = ""
	}

	start := time.Now()
	answer, err := rt.answerer.Ask(r.Context(), req.Question, mode, domain.AskOptions{
		TopK:            req.TopK,
		MinScore:        req.MinScore,
		MaxContextChars: req.MaxContextChars,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordAskObservation(
			rt.service,
			string(answer.Decision.Mode),
			req.Mode,
			len(answer.Decision.Debug.Chunks),
			answer.Decision.Debug.StitchingAdded,
			answer.Decision.Debug.ContextCharsUsed,
			time.Since(start),
		)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"answer":   answer.Text,
		"decision": answer.Decision,
	})
}

func (rt *Router) runtimeSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		current, err := rt.settings.Load(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, current)

	case http.MethodPut:
		var req domain.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		if req.DefaultMode != "" {
			mode, ok := domain.NormalizeResponseMode(string(req.DefaultMode))
			if !ok {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown default_mode: " + string(req.DefaultMode)})
				return
			}
			req.DefaultMode = mode
		}
		if err := rt.settings.Save(r.Context(), req); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)

	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
