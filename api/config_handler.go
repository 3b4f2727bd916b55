// Package api — configuration inspection endpoints.
package api

import (
	"net/http"

	"github.com/seenimoa/fnopart/internal/config"
)

// handleGetConfig returns the running configuration with S3 credentials
// removed.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    redactConfig(s.cfg),
	})
}

// handleGetConfigSecrets reports where each credential comes from, masked.
func (s *Server) handleGetConfigSecrets(w http.ResponseWriter, r *http.Request) {
	if s.cfg == nil {
		s.writeError(w, http.StatusInternalServerError, "configuration not loaded")
		return
	}
	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckSecrets(s.cfg),
	})
}

// redactConfig copies cfg and blanks credential fields.
func redactConfig(cfg *config.Config) *config.Config {
	if cfg == nil {
		return nil
	}
	out := *cfg
	out.API.CORSOrigins = append([]string(nil), cfg.API.CORSOrigins...)
	if out.Archive.S3.AccessKeyID != "" {
		out.Archive.S3.AccessKeyID = "***"
	}
	if out.Archive.S3.SecretAccessKey != "" {
		out.Archive.S3.SecretAccessKey = "***"
	}
	return &out
}
