package engine

import (
	"net/http"
	"strings"

	jsoncodec "github.com/drblury/actionflow/internal/engine/jsoncodec"
)

// StartIntrospectionServer mounts the logic inventory API when enabled.
func (s *Service) StartIntrospectionServer() {
	if !s.Conf.IntrospectionEnabled {
		return
	}

	port := s.Conf.IntrospectionPort
	if port == 0 {
		port = 8081
	}

	s.RegisterHTTPHandler(port, "/api/logic", http.HandlerFunc(s.handleGetLogic))
}

func (s *Service) handleGetLogic(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Set CORS headers based on configuration
	if s.Conf != nil && len(s.Conf.IntrospectionCORSAllowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		allowedOrigin := s.getAllowedCORSOrigin(origin)
		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
	}

	// Handle preflight requests
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := jsoncodec.Encode(w, s.Engine.Logic()); err != nil {
		s.Logger.Error("Failed to encode logic inventory", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// getAllowedCORSOrigin checks if the request origin is allowed and returns
// the appropriate Access-Control-Allow-Origin value.
func (s *Service) getAllowedCORSOrigin(requestOrigin string) string {
	if s.Conf == nil {
		return ""
	}
	for _, allowed := range s.Conf.IntrospectionCORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
