// Package api provides the token-protected admin endpoints: bulk upsert of
// ward alerts/contacts and CSV export of incidents.
package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Vulimwa/hifadhi-ussd/internal/models"
)

// AdminTokenHeader carries the shared admin token.
const AdminTokenHeader = "X-Admin-Token"

// adminAuth guards the admin subtree with a constant-time token check.
// With no token configured the subtree is disabled entirely.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			writeJSONResponse(w, http.StatusNotFound, models.Error("admin endpoints disabled"))
			return
		}
		token := r.Header.Get(AdminTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			slog.Warn("Server.adminAuth: unauthorized admin request", "path", r.URL.Path)
			writeJSONResponse(w, http.StatusUnauthorized, models.Error("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) seedAlertsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var alerts []models.Alert
	if !decodeJSONArray(w, r, &alerts) {
		return
	}
	for _, a := range alerts {
		if a.Ward == "" {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("alert entry missing ward"))
			return
		}
		if err := s.st.UpsertAlert(a); err != nil {
			slog.Error("Server.seedAlertsHandler: upsert failed", "error", err, "ward", a.Ward)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("seed failed"))
			return
		}
	}
	slog.Info("Server.seedAlertsHandler: alerts seeded", "count", len(alerts))
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]int{"upserted": len(alerts)}))
}

func (s *Server) seedContactsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var contacts []models.Contact
	if !decodeJSONArray(w, r, &contacts) {
		return
	}
	for _, c := range contacts {
		if c.Ward == "" {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("contact entry missing ward"))
			return
		}
		if err := s.st.UpsertContact(c); err != nil {
			slog.Error("Server.seedContactsHandler: upsert failed", "error", err, "ward", c.Ward)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("seed failed"))
			return
		}
	}
	slog.Info("Server.seedContactsHandler: contacts seeded", "count", len(contacts))
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]int{"upserted": len(contacts)}))
}

var phoneMaskRe = regexp.MustCompile(`(\+?\d{4})\d+(\d{2})`)

// maskPhone hides the middle digits of a phone number for export.
func maskPhone(phone string) string {
	return phoneMaskRe.ReplaceAllString(phone, "$1****$2")
}

func (s *Server) exportIncidentsHandler(w http.ResponseWriter, r *http.Request) {
	incidents, err := s.st.ListIncidents()
	if err != nil {
		slog.Error("Server.exportIncidentsHandler: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("export failed"))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="incidents.csv"`)

	var sb strings.Builder
	sb.WriteString("case_id,created_at,phone,ward,type,species,urgency,village,note,status\n")
	for _, inc := range incidents {
		row := []string{
			safeCSV(inc.CaseID),
			inc.CreatedAt.UTC().Format(time.RFC3339),
			safeCSV(maskPhone(inc.Phone)),
			safeCSV(inc.Ward),
			safeCSV(string(inc.Type)),
			safeCSV(string(inc.Species)),
			safeCSV(string(inc.Urgency)),
			safeCSV(inc.Village),
			safeCSV(inc.Note),
			safeCSV(string(inc.Status)),
		}
		sb.WriteString(strings.Join(row, ","))
		sb.WriteByte('\n')
	}
	if _, err := w.Write([]byte(sb.String())); err != nil {
		slog.Error("Server.exportIncidentsHandler: failed to write response", "error", err)
	}
	slog.Debug("Server.exportIncidentsHandler: exported incidents", "count", len(incidents))
}

// safeCSV escapes a value for a CSV cell.
func safeCSV(v string) string {
	if strings.ContainsAny(v, ",\n\"") {
		return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return v
}
