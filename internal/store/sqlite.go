// Package store provides storage backends for Hifadhi Link.
//
// This file implements the SQLite-backed store, the default for single-node
// deployments.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/Vulimwa/hifadhi-ussd/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetUserByPhone(phone string) (*models.User, error) {
	row := s.db.QueryRow(
		`SELECT phone, name, ward, village, lang, registered_at, updated_at FROM users WHERE phone = ?`,
		phone)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetUserByPhone not found", "phone", phone)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUserByPhone failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query user %s: %w", phone, err)
	}
	return u, nil
}

func (s *SQLiteStore) UpsertUser(user models.User) error {
	now := time.Now()
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = now
	}
	_, err := s.db.Exec(`
		INSERT INTO users (phone, name, ward, village, lang, registered_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			name = excluded.name,
			ward = excluded.ward,
			village = excluded.village,
			lang = excluded.lang,
			registered_at = excluded.registered_at,
			updated_at = excluded.updated_at`,
		user.Phone, nilIfEmpty(user.Name), nilIfEmpty(user.Ward), nilIfEmpty(user.Village),
		nilIfEmpty(string(user.Lang)), user.RegisteredAt, now)
	if err != nil {
		slog.Error("SQLiteStore UpsertUser failed", "error", err, "phone", user.Phone)
		return fmt.Errorf("failed to upsert user %s: %w", user.Phone, err)
	}
	slog.Debug("SQLiteStore UpsertUser succeeded", "phone", user.Phone, "ward", user.Ward)
	return nil
}

func (s *SQLiteStore) SetUserLanguage(phone string, lang models.Language) error {
	_, err := s.db.Exec(`
		INSERT INTO users (phone, lang, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET lang = excluded.lang, updated_at = excluded.updated_at`,
		phone, string(lang), time.Now())
	if err != nil {
		slog.Error("SQLiteStore SetUserLanguage failed", "error", err, "phone", phone, "lang", lang)
		return fmt.Errorf("failed to set language for %s: %w", phone, err)
	}
	slog.Debug("SQLiteStore SetUserLanguage succeeded", "phone", phone, "lang", lang)
	return nil
}

func (s *SQLiteStore) SetUserLocation(phone, ward, village string) error {
	_, err := s.db.Exec(`
		INSERT INTO users (phone, ward, village, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET ward = excluded.ward, village = excluded.village, updated_at = excluded.updated_at`,
		phone, nilIfEmpty(ward), nilIfEmpty(village), time.Now())
	if err != nil {
		slog.Error("SQLiteStore SetUserLocation failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to set location for %s: %w", phone, err)
	}
	slog.Debug("SQLiteStore SetUserLocation succeeded", "phone", phone, "ward", ward)
	return nil
}

func (s *SQLiteStore) CreateIncident(incident models.Incident) error {
	if incident.Status == "" {
		incident.Status = models.IncidentStatusNew
	}
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO incidents (case_id, phone, species, urgency, type, ward, village, note, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		incident.CaseID, incident.Phone, string(incident.Species), string(incident.Urgency),
		string(incident.Type), nilIfEmpty(incident.Ward), nilIfEmpty(incident.Village),
		nilIfEmpty(incident.Note), string(incident.Status), incident.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateIncident failed", "error", err, "case_id", incident.CaseID)
		return fmt.Errorf("failed to insert incident %s: %w", incident.CaseID, err)
	}
	slog.Debug("SQLiteStore CreateIncident succeeded", "case_id", incident.CaseID, "ward", incident.Ward)
	return nil
}

func (s *SQLiteStore) ListIncidents() ([]models.Incident, error) {
	rows, err := s.db.Query(`
		SELECT case_id, phone, species, urgency, type, ward, village, note, status, created_at
		FROM incidents ORDER BY created_at DESC`)
	if err != nil {
		slog.Error("SQLiteStore ListIncidents query failed", "error", err)
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var incidents []models.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			slog.Error("SQLiteStore ListIncidents scan failed", "error", err)
			return nil, err
		}
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListIncidents rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate incident rows: %w", err)
	}
	slog.Debug("SQLiteStore ListIncidents succeeded", "count", len(incidents))
	return incidents, nil
}

func (s *SQLiteStore) GetAlertByWard(ward string) (*models.Alert, error) {
	row := s.db.QueryRow(
		`SELECT ward, risk, risk_window, summary_en, summary_sw, updated_by FROM alerts WHERE ward = ?`,
		ward)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetAlertByWard not found", "ward", ward)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetAlertByWard failed", "error", err, "ward", ward)
		return nil, fmt.Errorf("failed to query alert for %s: %w", ward, err)
	}
	return a, nil
}

func (s *SQLiteStore) UpsertAlert(alert models.Alert) error {
	_, err := s.db.Exec(`
		INSERT INTO alerts (ward, risk, risk_window, summary_en, summary_sw, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ward) DO UPDATE SET
			risk = excluded.risk,
			risk_window = excluded.risk_window,
			summary_en = excluded.summary_en,
			summary_sw = excluded.summary_sw,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		alert.Ward, string(alert.Risk), alert.Window, alert.SummaryEN, alert.SummarySW,
		nilIfEmpty(alert.UpdatedBy), time.Now())
	if err != nil {
		slog.Error("SQLiteStore UpsertAlert failed", "error", err, "ward", alert.Ward)
		return fmt.Errorf("failed to upsert alert for %s: %w", alert.Ward, err)
	}
	slog.Debug("SQLiteStore UpsertAlert succeeded", "ward", alert.Ward, "risk", alert.Risk)
	return nil
}

func (s *SQLiteStore) GetContactByWard(ward string) (*models.Contact, error) {
	row := s.db.QueryRow(
		`SELECT ward, kws_hotline, ward_admin FROM contacts WHERE ward = ?`, ward)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetContactByWard not found", "ward", ward)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetContactByWard failed", "error", err, "ward", ward)
		return nil, fmt.Errorf("failed to query contact for %s: %w", ward, err)
	}
	return c, nil
}

func (s *SQLiteStore) UpsertContact(contact models.Contact) error {
	_, err := s.db.Exec(`
		INSERT INTO contacts (ward, kws_hotline, ward_admin, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ward) DO UPDATE SET
			kws_hotline = excluded.kws_hotline,
			ward_admin = excluded.ward_admin,
			updated_at = excluded.updated_at`,
		contact.Ward, contact.KWSHotline, contact.WardAdmin, time.Now())
	if err != nil {
		slog.Error("SQLiteStore UpsertContact failed", "error", err, "ward", contact.Ward)
		return fmt.Errorf("failed to upsert contact for %s: %w", contact.Ward, err)
	}
	slog.Debug("SQLiteStore UpsertContact succeeded", "ward", contact.Ward)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
