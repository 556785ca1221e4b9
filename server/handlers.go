package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/joeychilson/autolink/config"
	"github.com/joeychilson/autolink/format"
	"github.com/joeychilson/autolink/linker"
	"github.com/joeychilson/autolink/rules"
	"github.com/joeychilson/autolink/service"
)

// LinkRequest represents a request to link keywords in content.
type LinkRequest struct {
	Content     string            `json:"content"`
	ContentType string            `json:"content_type,omitempty"`
	URL         string            `json:"url,omitempty"`
	View        string            `json:"view,omitempty"`
	Rules       string            `json:"rules,omitempty"`
	Keywords    map[string]string `json:"keywords,omitempty"`
	MaxLinks    int               `json:"max_links,omitempty"`
}

// LinkResponse represents the linked content.
type LinkResponse struct {
	Content    string                 `json:"content"`
	Applied    bool                   `json:"applied"`
	Links      int                    `json:"links"`
	Keywords   []linker.KeywordResult `json:"keywords"`
	CacheState string                 `json:"cache_state"`
}

// RulesRequest represents a raw rule list to parse.
type RulesRequest struct {
	Rules string `json:"rules"`
}

// RulesResponse represents a parsed rule list.
type RulesResponse struct {
	Rules      rules.RuleSet `json:"rules"`
	Order      []string      `json:"order"`
	Normalized string        `json:"normalized"`
}

// ErrorResponse represents an error.
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

// handleLink handles POST /v1/link requests.
func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	log := s.logger.WithContext(r.Context())

	var req LinkRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := validateRequest(&req); err != nil {
		log.Warn("invalid request", "error", err)
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.service.Link(r.Context(), &service.Request{
		Content:     req.Content,
		ContentType: req.ContentType,
		URL:         req.URL,
		View:        req.View,
		Rules:       req.Rules,
		Keywords:    req.Keywords,
		MaxLinks:    req.MaxLinks,
	})
	switch {
	case errors.Is(err, format.ErrUnsupportedContentType):
		s.sendError(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	case errors.Is(err, service.ErrInvalidRequest):
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		log.Error("link failed", "url", req.URL, "error", err)
		s.sendError(w, "failed to link content", http.StatusInternalServerError)
		return
	}

	log.Debug("link completed",
		"url", req.URL,
		"links", resp.Links,
		"cache_state", resp.CacheState)

	keywords := resp.Keywords
	if keywords == nil {
		keywords = []linker.KeywordResult{}
	}

	s.sendJSON(w, LinkResponse{
		Content:    resp.Content,
		Applied:    resp.Applied,
		Links:      resp.Links,
		Keywords:   keywords,
		CacheState: resp.CacheState,
	}, http.StatusOK)
}

// handleRules handles POST /v1/rules requests.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	var req RulesRequest
	if !s.decode(w, r, &req) {
		return
	}

	parsed := s.service.ParseRules(req.Rules)

	resp := RulesResponse{
		Rules:      parsed.Rules,
		Order:      make([]string, 0, len(parsed.Order)),
		Normalized: parsed.Normalized,
	}
	if resp.Rules == nil {
		resp.Rules = rules.RuleSet{}
	}
	for _, rule := range parsed.Order {
		resp.Order = append(resp.Order, rule.Keyword)
	}

	s.sendJSON(w, resp, http.StatusOK)
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	s.sendJSON(w, health, http.StatusOK)
}

// decode reads a JSON body into v, writing an error response on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.sendError(w, fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit), http.StatusRequestEntityTooLarge)
		return false
	}

	s.logger.WithContext(r.Context()).Warn("failed to decode request", "error", err)
	s.sendError(w, "Invalid JSON", http.StatusBadRequest)
	return false
}

func validateRequest(req *LinkRequest) error {
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}

	if req.MaxLinks < 0 {
		return fmt.Errorf("max_links must be non-negative")
	}

	if req.URL != "" {
		u, err := url.Parse(req.URL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("url must be an absolute URL")
		}
	}

	if req.View != "" && !slices.Contains(config.KnownViews, strings.ToLower(req.View)) {
		return fmt.Errorf("view must be one of %s", strings.Join(config.KnownViews, ", "))
	}

	return nil
}

func (s *Server) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	s.sendJSON(w, ErrorResponse{
		Error:      message,
		StatusCode: statusCode,
	}, statusCode)
}
