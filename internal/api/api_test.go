package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Vulimwa/hifadhi-ussd/internal/cache"
	"github.com/Vulimwa/hifadhi-ussd/internal/i18n"
	"github.com/Vulimwa/hifadhi-ussd/internal/models"
	"github.com/Vulimwa/hifadhi-ussd/internal/sms"
	"github.com/Vulimwa/hifadhi-ussd/internal/store"
	"github.com/Vulimwa/hifadhi-ussd/internal/ussd"
)

const testAdminToken = "test-admin-token"

func newTestServer(t *testing.T, opts ...Option) (*Server, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	decoder := ussd.NewDecoder(st, cache.NewMemoryCache(), i18n.NewCatalog(models.LanguageEnglish), sms.NewLogNotifier())
	opts = append([]Option{WithAdminToken(testAdminToken)}, opts...)
	return NewServer(decoder, st, opts...), st
}

func postUSSD(t *testing.T, h http.Handler, sessionID, phone, text string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	form.Set("sessionId", sessionID)
	form.Set("serviceCode", "*789#")
	form.Set("phoneNumber", phone)
	form.Set("text", text)
	req := httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestUSSDEndpointRootMenu(t *testing.T) {
	s, _ := newTestServer(t)
	w := postUSSD(t, s.Handler(), "s1", "+254700000001", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, "CON ") || !strings.Contains(body, "HIFADHI LINK") {
		t.Errorf("expected CON root menu, got %q", body)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected text/plain response, got %q", ct)
	}
}

func TestUSSDEndpointRegisterCompletes(t *testing.T) {
	s, st := newTestServer(t)
	w := postUSSD(t, s.Handler(), "s1", "0712345678", "1*Jane*1*Mwakitau*1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "END ") {
		t.Errorf("expected END response, got %q", w.Body.String())
	}
	u, err := st.GetUserByPhone("+254712345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil || u.Name != "Jane" {
		t.Errorf("expected persisted registration, got %+v", u)
	}
}

func TestUSSDEndpointMissingSession(t *testing.T) {
	s, _ := newTestServer(t)
	w := postUSSD(t, s.Handler(), "", "+254700000001", "1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "END ") {
		t.Errorf("expected END for malformed request, got %q", w.Body.String())
	}
}

// slowStore delays user lookups past the response budget.
type slowStore struct {
	store.Store
	delay time.Duration
}

func (s *slowStore) GetUserByPhone(phone string) (*models.User, error) {
	time.Sleep(s.delay)
	return s.Store.GetUserByPhone(phone)
}

func TestUSSDEndpointTimeoutFallback(t *testing.T) {
	st := &slowStore{Store: store.NewInMemoryStore(), delay: 200 * time.Millisecond}
	decoder := ussd.NewDecoder(st, cache.NewMemoryCache(), i18n.NewCatalog(models.LanguageEnglish), sms.NewLogNotifier())
	s := NewServer(decoder, st, WithResponseBudget(20*time.Millisecond))

	w := postUSSD(t, s.Handler(), "s1", "+254700000001", "1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Request timeout") {
		t.Errorf("expected proactive timeout body, got %q", w.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Errorf("expected health body, got %q", w.Body.String())
	}
}

func TestAdminRequiresToken(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/alerts/seed", strings.NewReader("[]"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/alerts/seed", strings.NewReader("[]"))
	req.Header.Set(AdminTokenHeader, "wrong")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", w.Code)
	}
}

func TestAdminDisabledWithoutConfiguredToken(t *testing.T) {
	st := store.NewInMemoryStore()
	decoder := ussd.NewDecoder(st, cache.NewMemoryCache(), i18n.NewCatalog(models.LanguageEnglish), sms.NewLogNotifier())
	s := NewServer(decoder, st)

	req := httptest.NewRequest(http.MethodPost, "/admin/alerts/seed", strings.NewReader("[]"))
	req.Header.Set(AdminTokenHeader, "anything")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 when no token configured, got %d", w.Code)
	}
}

func TestAdminSeedAlerts(t *testing.T) {
	s, st := newTestServer(t)
	body := `[{"ward":"Sagalla","risk":"HIGH","window":"18:00-06:00","summary_en":"Elephant herd near river","summary_sw":"Kundi la ndovu"}]`
	req := httptest.NewRequest(http.MethodPost, "/admin/alerts/seed", strings.NewReader(body))
	req.Header.Set(AdminTokenHeader, testAdminToken)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	a, err := st.GetAlertByWard("Sagalla")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil || a.Risk != models.RiskHigh {
		t.Errorf("expected seeded alert, got %+v", a)
	}
}

func TestAdminSeedAlertsRejectsMissingWard(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/alerts/seed", strings.NewReader(`[{"risk":"LOW"}]`))
	req.Header.Set(AdminTokenHeader, testAdminToken)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for entry without ward, got %d", w.Code)
	}
}

func TestAdminSeedContacts(t *testing.T) {
	s, st := newTestServer(t)
	body := `[{"ward":"Kasigau","kws_hotline":"0800-111","ward_admin":"0722-222"}]`
	req := httptest.NewRequest(http.MethodPost, "/admin/contacts/seed", strings.NewReader(body))
	req.Header.Set(AdminTokenHeader, testAdminToken)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	c, err := st.GetContactByWard("Kasigau")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil || c.KWSHotline != "0800-111" {
		t.Errorf("expected seeded contact, got %+v", c)
	}
}

func TestAdminExportIncidentsCSV(t *testing.T) {
	s, st := newTestServer(t)
	if err := st.CreateIncident(models.Incident{
		CaseID: "case-1", Phone: "+254712345678",
		Species: models.SpeciesElephant, Urgency: models.UrgencyNow, Type: models.IncidentTypeCrop,
		Ward: "Sagalla", Village: "Mwakitau", Note: "near school, by the river",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/export/incidents.csv", nil)
	req.Header.Set(AdminTokenHeader, testAdminToken)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected text/csv, got %q", ct)
	}

	body := w.Body.String()
	if !strings.HasPrefix(body, "case_id,created_at,phone,ward,type,species,urgency,village,note,status\n") {
		t.Errorf("unexpected CSV header: %q", body)
	}
	if strings.Contains(body, "+254712345678") {
		t.Error("export must not contain the full phone number")
	}
	if !strings.Contains(body, "****78") {
		t.Errorf("expected masked phone in export, got %q", body)
	}
	// The note contains a comma, so the cell must be quoted.
	if !strings.Contains(body, `"near school, by the river"`) {
		t.Errorf("expected quoted note cell, got %q", body)
	}
}

func TestMaskPhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+254712345678", "+2547****78"},
		{"0712345678", "0712****78"},
		{"", ""},
	}
	for _, c := range cases {
		if got := maskPhone(c.in); got != c.want {
			t.Errorf("maskPhone(%q): expected %q, got %q", c.in, c.want, got)
		}
	}
}
