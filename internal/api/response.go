// Package api wires the HTTP surface (spec §6): gorilla/mux routing,
// request handlers, and the JSON envelope/error-mapping helpers the
// teacher's own internal/api/handler.go established.
package api

import (
	"encoding/json"
	"net/http"
)

// respondJSON writes v as the JSON body with the given status code,
// mirroring the teacher's respondWithJSON helper.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// respondError writes the {"error": "..."} envelope (spec §4.6), merging in
// any extra fields the caller supplies (available/required/from_currency/
// to_currency), the way original_source/src/services/accounts.rs attaches
// extra keys to its error bodies.
func respondError(w http.ResponseWriter, status int, message string, extra map[string]any) {
	body := map[string]any{"error": message}
	for k, v := range extra {
		body[k] = v
	}
	respondJSON(w, status, body)
}
