// Package store provides storage backends for Hifadhi Link.
//
// This file implements the PostgreSQL-backed store for multi-instance
// deployments.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/Vulimwa/hifadhi-ussd/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetUserByPhone(phone string) (*models.User, error) {
	row := s.db.QueryRow(
		`SELECT phone, name, ward, village, lang, registered_at, updated_at FROM users WHERE phone = $1`,
		phone)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetUserByPhone not found", "phone", phone)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUserByPhone failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query user %s: %w", phone, err)
	}
	return u, nil
}

func (s *PostgresStore) UpsertUser(user models.User) error {
	now := time.Now()
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = now
	}
	_, err := s.db.Exec(`
		INSERT INTO users (phone, name, ward, village, lang, registered_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (phone) DO UPDATE SET
			name = EXCLUDED.name,
			ward = EXCLUDED.ward,
			village = EXCLUDED.village,
			lang = EXCLUDED.lang,
			registered_at = EXCLUDED.registered_at,
			updated_at = EXCLUDED.updated_at`,
		user.Phone, nilIfEmpty(user.Name), nilIfEmpty(user.Ward), nilIfEmpty(user.Village),
		nilIfEmpty(string(user.Lang)), user.RegisteredAt, now)
	if err != nil {
		slog.Error("PostgresStore UpsertUser failed", "error", err, "phone", user.Phone)
		return fmt.Errorf("failed to upsert user %s: %w", user.Phone, err)
	}
	slog.Debug("PostgresStore UpsertUser succeeded", "phone", user.Phone, "ward", user.Ward)
	return nil
}

func (s *PostgresStore) SetUserLanguage(phone string, lang models.Language) error {
	_, err := s.db.Exec(`
		INSERT INTO users (phone, lang, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE SET lang = EXCLUDED.lang, updated_at = EXCLUDED.updated_at`,
		phone, string(lang), time.Now())
	if err != nil {
		slog.Error("PostgresStore SetUserLanguage failed", "error", err, "phone", phone, "lang", lang)
		return fmt.Errorf("failed to set language for %s: %w", phone, err)
	}
	slog.Debug("PostgresStore SetUserLanguage succeeded", "phone", phone, "lang", lang)
	return nil
}

func (s *PostgresStore) SetUserLocation(phone, ward, village string) error {
	_, err := s.db.Exec(`
		INSERT INTO users (phone, ward, village, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (phone) DO UPDATE SET ward = EXCLUDED.ward, village = EXCLUDED.village, updated_at = EXCLUDED.updated_at`,
		phone, nilIfEmpty(ward), nilIfEmpty(village), time.Now())
	if err != nil {
		slog.Error("PostgresStore SetUserLocation failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to set location for %s: %w", phone, err)
	}
	slog.Debug("PostgresStore SetUserLocation succeeded", "phone", phone, "ward", ward)
	return nil
}

func (s *PostgresStore) CreateIncident(incident models.Incident) error {
	if incident.Status == "" {
		incident.Status = models.IncidentStatusNew
	}
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO incidents (case_id, phone, species, urgency, type, ward, village, note, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		incident.CaseID, incident.Phone, string(incident.Species), string(incident.Urgency),
		string(incident.Type), nilIfEmpty(incident.Ward), nilIfEmpty(incident.Village),
		nilIfEmpty(incident.Note), string(incident.Status), incident.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateIncident failed", "error", err, "case_id", incident.CaseID)
		return fmt.Errorf("failed to insert incident %s: %w", incident.CaseID, err)
	}
	slog.Debug("PostgresStore CreateIncident succeeded", "case_id", incident.CaseID, "ward", incident.Ward)
	return nil
}

func (s *PostgresStore) ListIncidents() ([]models.Incident, error) {
	rows, err := s.db.Query(`
		SELECT case_id, phone, species, urgency, type, ward, village, note, status, created_at
		FROM incidents ORDER BY created_at DESC`)
	if err != nil {
		slog.Error("PostgresStore ListIncidents query failed", "error", err)
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var incidents []models.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			slog.Error("PostgresStore ListIncidents scan failed", "error", err)
			return nil, err
		}
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListIncidents rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate incident rows: %w", err)
	}
	slog.Debug("PostgresStore ListIncidents succeeded", "count", len(incidents))
	return incidents, nil
}

func (s *PostgresStore) GetAlertByWard(ward string) (*models.Alert, error) {
	row := s.db.QueryRow(
		`SELECT ward, risk, risk_window, summary_en, summary_sw, updated_by FROM alerts WHERE ward = $1`,
		ward)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetAlertByWard not found", "ward", ward)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetAlertByWard failed", "error", err, "ward", ward)
		return nil, fmt.Errorf("failed to query alert for %s: %w", ward, err)
	}
	return a, nil
}

func (s *PostgresStore) UpsertAlert(alert models.Alert) error {
	_, err := s.db.Exec(`
		INSERT INTO alerts (ward, risk, risk_window, summary_en, summary_sw, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ward) DO UPDATE SET
			risk = EXCLUDED.risk,
			risk_window = EXCLUDED.risk_window,
			summary_en = EXCLUDED.summary_en,
			summary_sw = EXCLUDED.summary_sw,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at`,
		alert.Ward, string(alert.Risk), alert.Window, alert.SummaryEN, alert.SummarySW,
		nilIfEmpty(alert.UpdatedBy), time.Now())
	if err != nil {
		slog.Error("PostgresStore UpsertAlert failed", "error", err, "ward", alert.Ward)
		return fmt.Errorf("failed to upsert alert for %s: %w", alert.Ward, err)
	}
	slog.Debug("PostgresStore UpsertAlert succeeded", "ward", alert.Ward, "risk", alert.Risk)
	return nil
}

func (s *PostgresStore) GetContactByWard(ward string) (*models.Contact, error) {
	row := s.db.QueryRow(
		`SELECT ward, kws_hotline, ward_admin FROM contacts WHERE ward = $1`, ward)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetContactByWard not found", "ward", ward)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetContactByWard failed", "error", err, "ward", ward)
		return nil, fmt.Errorf("failed to query contact for %s: %w", ward, err)
	}
	return c, nil
}

func (s *PostgresStore) UpsertContact(contact models.Contact) error {
	_, err := s.db.Exec(`
		INSERT INTO contacts (ward, kws_hotline, ward_admin, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ward) DO UPDATE SET
			kws_hotline = EXCLUDED.kws_hotline,
			ward_admin = EXCLUDED.ward_admin,
			updated_at = EXCLUDED.updated_at`,
		contact.Ward, contact.KWSHotline, contact.WardAdmin, time.Now())
	if err != nil {
		slog.Error("PostgresStore UpsertContact failed", "error", err, "ward", contact.Ward)
		return fmt.Errorf("failed to upsert contact for %s: %w", contact.Ward, err)
	}
	slog.Debug("PostgresStore UpsertContact succeeded", "ward", contact.Ward)
	return nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}
