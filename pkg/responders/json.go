// Package responders holds small helpers for writing HTTP responses.
package responders

import (
	"encoding/json"
	"net/http"
)

// JSON writes payload as a JSON body with the given status. A nil payload
// writes the status line only. The payload is marshaled before the header is
// written so an encoding failure can still produce a 500.
func JSON(w http.ResponseWriter, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, `{"error":"encoding_failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
