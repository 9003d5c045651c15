package store

import (
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/Vulimwa/hifadhi-ussd/internal/models"
)

func TestInMemoryStoreUsers(t *testing.T) {
	s := NewInMemoryStore()

	u, err := s.GetUserByPhone("+254700000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u != nil {
		t.Fatal("expected nil for unknown phone")
	}

	if err := s.UpsertUser(models.User{
		Phone: "+254700000001", Name: "Jane", Ward: "Sagalla", Village: "Mwakitau", Lang: models.LanguageEnglish,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, err = s.GetUserByPhone("+254700000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil || u.Name != "Jane" || u.Ward != "Sagalla" {
		t.Errorf("user not stored or retrieved correctly: %+v", u)
	}
}

func TestInMemoryStoreSetUserLanguageCreatesProfile(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.SetUserLanguage("+254700000002", models.LanguageSwahili); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, err := s.GetUserByPhone("+254700000002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil || u.Lang != models.LanguageSwahili {
		t.Errorf("expected bare profile with language, got %+v", u)
	}
}

func TestInMemoryStoreSetUserLocationKeepsName(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.UpsertUser(models.User{Phone: "+254700000003", Name: "Ali"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetUserLocation("+254700000003", "Kasigau", "Bungule"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, _ := s.GetUserByPhone("+254700000003")
	if u == nil || u.Name != "Ali" || u.Ward != "Kasigau" || u.Village != "Bungule" {
		t.Errorf("location update lost fields: %+v", u)
	}
}

func TestInMemoryStoreIncidentsNewestFirst(t *testing.T) {
	s := NewInMemoryStore()
	older := models.Incident{CaseID: "c1", Phone: "+1", CreatedAt: time.Now().Add(-time.Hour)}
	newer := models.Incident{CaseID: "c2", Phone: "+1", CreatedAt: time.Now()}
	if err := s.CreateIncident(older); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CreateIncident(newer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	incidents, err := s.ListIncidents()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(incidents) != 2 || incidents[0].CaseID != "c2" {
		t.Errorf("expected newest first, got %+v", incidents)
	}
	if incidents[1].Status != models.IncidentStatusNew {
		t.Errorf("expected default status new, got %s", incidents[1].Status)
	}
}

func TestInMemoryStoreAlertsAndContacts(t *testing.T) {
	s := NewInMemoryStore()
	if a, _ := s.GetAlertByWard("Sagalla"); a != nil {
		t.Fatal("expected nil for unseeded ward")
	}
	if err := s.UpsertAlert(models.Alert{Ward: "Sagalla", Risk: models.RiskHigh, Window: "18:00-06:00", SummaryEN: "herd near river"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err := s.GetAlertByWard("Sagalla")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil || a.Risk != models.RiskHigh {
		t.Errorf("alert not stored or retrieved correctly: %+v", a)
	}

	if err := s.UpsertContact(models.Contact{Ward: "Sagalla", KWSHotline: "0800-111", WardAdmin: "0722-222"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := s.GetContactByWard("Sagalla")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil || c.KWSHotline != "0800-111" {
		t.Errorf("contact not stored or retrieved correctly: %+v", c)
	}
}

func TestSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hifadhi_test.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	// Requires a running PostgreSQL instance; set DATABASE_URL to enable.
	connStr := getenvOrSkip(t, "DATABASE_URL")
	s, err := NewPostgresStore(WithPostgresDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer s.Close()

	s.db.Exec("DELETE FROM incidents")
	s.db.Exec("DELETE FROM users")
	s.db.Exec("DELETE FROM alerts")
	s.db.Exec("DELETE FROM contacts")

	exerciseStore(t, s)
}

// exerciseStore runs the shared backend conformance checks.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	if err := s.UpsertUser(models.User{
		Phone: "+254700000001", Name: "Jane", Ward: "Sagalla", Village: "Mwakitau", Lang: models.LanguageEnglish,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, err := s.GetUserByPhone("+254700000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil || u.Name != "Jane" || u.Ward != "Sagalla" || u.Village != "Mwakitau" {
		t.Errorf("user round-trip failed: %+v", u)
	}

	// Upsert replaces, never duplicates.
	if err := s.UpsertUser(models.User{
		Phone: "+254700000001", Name: "Jane W", Ward: "Marungu", Village: "Kighombo", Lang: models.LanguageSwahili,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, _ = s.GetUserByPhone("+254700000001")
	if u == nil || u.Name != "Jane W" || u.Lang != models.LanguageSwahili {
		t.Errorf("upsert did not replace: %+v", u)
	}

	if err := s.SetUserLanguage("+254700000009", models.LanguageSwahili); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, _ = s.GetUserByPhone("+254700000009")
	if u == nil || u.Lang != models.LanguageSwahili {
		t.Errorf("language upsert for unknown phone failed: %+v", u)
	}

	if err := s.SetUserLocation("+254700000001", "Kasigau", "Bungule"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, _ = s.GetUserByPhone("+254700000001")
	if u == nil || u.Ward != "Kasigau" || u.Village != "Bungule" {
		t.Errorf("location update failed: %+v", u)
	}

	inc := models.Incident{
		CaseID: "case-1", Phone: "+254700000001",
		Species: models.SpeciesElephant, Urgency: models.UrgencyNow, Type: models.IncidentTypeCrop,
		Ward: "Kasigau", Village: "Bungule", Note: "near school",
		Status: models.IncidentStatusNew,
	}
	if err := s.CreateIncident(inc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	incidents, err := s.ListIncidents()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(incidents) != 1 || incidents[0].CaseID != "case-1" || incidents[0].Note != "near school" {
		t.Errorf("incident round-trip failed: %+v", incidents)
	}

	if err := s.UpsertAlert(models.Alert{
		Ward: "Kasigau", Risk: models.RiskMed, Window: "04:00-07:00",
		SummaryEN: "buffalo sighted", SummarySW: "nyati wameonekana",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err := s.GetAlertByWard("Kasigau")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil || a.Risk != models.RiskMed || a.SummarySW != "nyati wameonekana" {
		t.Errorf("alert round-trip failed: %+v", a)
	}

	if err := s.UpsertContact(models.Contact{Ward: "Kasigau", KWSHotline: "0800-111", WardAdmin: "0722-222"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := s.GetContactByWard("Kasigau")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil || c.WardAdmin != "0722-222" {
		t.Errorf("contact round-trip failed: %+v", c)
	}

	if a, _ := s.GetAlertByWard("Nowhere"); a != nil {
		t.Error("expected nil alert for unknown ward")
	}
	if c, _ := s.GetContactByWard("Nowhere"); c != nil {
		t.Error("expected nil contact for unknown ward")
	}
}

func getenvOrSkip(t *testing.T, key string) string {
	v := ""
	if val, ok := syscall.Getenv(key); ok {
		v = val
	}
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}
