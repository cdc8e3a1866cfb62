// Package api is the control surface of the daemon: the four message
// kinds the UI speaks (schedule, cancel, get-status, fill-now) plus the
// supporting endpoints, all wrapped in an explicit ok/error envelope.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type envelope struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("marshal response", "error", err)
		status = http.StatusInternalServerError
		data = []byte(`{"ok":false,"error":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Error("write response", "error", err)
	}
}

func respondOK(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, envelope{OK: true, Result: result})
}

func respondErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{OK: false, Error: msg})
}
