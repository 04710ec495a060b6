package server

import (
	"log/slog"
	"net/http"

	"github.com/jameshartig/autopreset/pkg/log"
)

func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	h, ok := s.handlers[name]
	if !ok {
		writeJSONError(w, "unknown preset: "+name, http.StatusNotFound)
		return
	}

	attrs := []any{slog.String("preset", name), slog.String("trigger", "http")}
	if email, ok := r.Context().Value(emailContextKey).(string); ok {
		attrs = append(attrs, slog.String("email", email))
	}
	ctx := log.WithAttrs(r.Context(), attrs...)

	// the request body is ignored, the preset is fixed
	resp := h.Handle(ctx)
	writeJSON(w, resp.Body, resp.StatusCode)
}
