package app

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"linkscout/internal/observability"
	"linkscout/internal/refresh"
)

// Handler builds the HTTP facade. Probes are public; everything else sits
// behind the api-key guard when one is configured.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(observability.RequestID)
	r.Use(observability.Logging)

	r.Get("/version", s.handleVersion)
	r.Get("/healthz", s.handleHealthz)

	r.Group(func(api chi.Router) {
		api.Use(observability.APIKey(s.cfg.APIKey))

		api.Post("/search", s.handleSearch)
		api.Post("/response", s.handleResponse)
		api.Post("/refresh", s.handleRefresh)
		api.Get("/catalog", s.handleCatalog)
	})
	return r
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type searchRequestBody struct {
	Query  string `json:"query"`
	ChatID string `json:"chat_id"`
}

// handleSearch starts a fresh flow for the chat; the answer arrives through
// the chat transport, not this response.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_body", "request body must be json")
		return
	}
	if strings.TrimSpace(body.ChatID) == "" {
		writeErr(w, http.StatusBadRequest, "missing_chat_id", "chat_id is required")
		return
	}
	s.machine.BeginSearch(strings.TrimSpace(body.ChatID), body.Query)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type responseRequestBody struct {
	Text   string `json:"text"`
	ChatID string `json:"chat_id"`
}

func (s *Server) handleResponse(w http.ResponseWriter, r *http.Request) {
	var body responseRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_body", "request body must be json")
		return
	}
	if strings.TrimSpace(body.ChatID) == "" {
		writeErr(w, http.StatusBadRequest, "missing_chat_id", "chat_id is required")
		return
	}
	s.machine.OnMessage(strings.TrimSpace(body.ChatID), body.Text)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleRefresh kicks off a refresh cycle out of band. A cycle already in
// flight is reported as a conflict, never queued.
func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if s.pipeline.Running() {
		writeErr(w, http.StatusConflict, "refresh_in_flight", refresh.ErrAlreadyRunning.Error())
		return
	}
	go s.runRefresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

type catalogSiteResponse struct {
	ID          string            `json:"id"`
	BaseURL     string            `json:"base_url"`
	Categories  map[string]string `json:"categories"`
	WorkingURLs map[string]string `json:"working_urls"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	working := s.store.WorkingSnapshot()
	out := make([]catalogSiteResponse, 0, len(s.store.Sites()))
	for _, site := range s.store.Sites() {
		categories := make(map[string]string, len(site.Categories))
		for _, cat := range site.Categories {
			categories[cat.Key] = cat.Label
		}
		out = append(out, catalogSiteResponse{
			ID:          site.ID,
			BaseURL:     site.BaseURL,
			Categories:  categories,
			WorkingURLs: working[site.ID],
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": out})
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorBody struct {
	Error apiError `json:"error"`
}

func writeErr(w http.ResponseWriter, code int, errCode, message string) {
	writeJSON(w, code, apiErrorBody{Error: apiError{Code: errCode, Message: message}})
}
