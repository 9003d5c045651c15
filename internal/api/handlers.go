// Package api provides HTTP handlers for Hifadhi Link endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Vulimwa/hifadhi-ussd/internal/models"
)

func (s *Server) bannerHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte("Hifadhi Link USSD backend is running")); err != nil {
		slog.Error("Server.bannerHandler: failed to write response", "error", err)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	})
}

// ussdHandler decodes one gateway callback. The decoder runs under the
// response budget; if it overruns, the handler answers with the proactive
// timeout fallback instead of letting the gateway time out silently.
func (s *Server) ussdHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	start := time.Now()
	ussdRequestsTotal.Inc()

	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.ussdHandler: failed to parse form", "error", err)
		writeUSSDResponse(w, models.USSDResponse{Type: models.ResponseEnd, Body: "Invalid request"})
		ussdResponsesTotal.WithLabelValues(string(models.ResponseEnd)).Inc()
		return
	}

	req := models.USSDRequest{
		SessionID:   r.PostFormValue("sessionId"),
		ServiceCode: r.PostFormValue("serviceCode"),
		PhoneNumber: r.PostFormValue("phoneNumber"),
		Text:        r.PostFormValue("text"),
	}
	slog.Debug("Server.ussdHandler: incoming request", "session_id", req.SessionID, "text_len", len(req.Text))

	ctx, cancel := context.WithTimeout(r.Context(), s.budget)
	defer cancel()

	respCh := make(chan models.USSDResponse, 1)
	go func() {
		respCh <- s.decoder.Handle(ctx, req)
	}()

	var resp models.USSDResponse
	select {
	case resp = <-respCh:
	case <-ctx.Done():
		slog.Error("Server.ussdHandler: response budget exhausted", "session_id", req.SessionID, "budget", s.budget)
		ussdTimeoutsTotal.Inc()
		resp = s.decoder.TimeoutResponse("")
	}

	writeUSSDResponse(w, resp)
	ussdResponsesTotal.WithLabelValues(string(resp.Type)).Inc()
	ussdDurationSeconds.Observe(time.Since(start).Seconds())
	slog.Debug("Server.ussdHandler: responded", "session_id", req.SessionID, "marker", resp.Type, "elapsed", time.Since(start))
}

// decodeJSONArray reads a JSON array request body into dst.
func decodeJSONArray(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		slog.Warn("Server.decodeJSONArray: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return false
	}
	return true
}
