// Package store provides storage backends for Hifadhi Link.
//
// It defines the Store interface consumed by the USSD decoder and admin
// endpoints, with in-memory, SQLite and PostgreSQL implementations.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/Vulimwa/hifadhi-ussd/internal/models"
)

// Store is the persistence surface the decoder and admin handlers depend on.
// Lookup misses return (nil, nil) rather than an error.
type Store interface {
	// GetUserByPhone returns the caller profile for a canonical phone number.
	GetUserByPhone(phone string) (*models.User, error)

	// UpsertUser inserts or fully updates a registration record.
	UpsertUser(user models.User) error

	// SetUserLanguage persists a language preference, creating a bare
	// profile when the phone is unknown.
	SetUserLanguage(phone string, lang models.Language) error

	// SetUserLocation persists ward and village learned during an incident
	// report, creating a bare profile when the phone is unknown.
	SetUserLocation(phone, ward, village string) error

	// CreateIncident appends a new incident record.
	CreateIncident(incident models.Incident) error

	// ListIncidents returns all incidents, newest first.
	ListIncidents() ([]models.Incident, error)

	// GetAlertByWard returns the current advisory for a ward.
	GetAlertByWard(ward string) (*models.Alert, error)

	// UpsertAlert inserts or replaces the advisory for a ward.
	UpsertAlert(alert models.Alert) error

	// GetContactByWard returns the emergency contacts for a ward.
	GetContactByWard(ward string) (*models.Contact, error)

	// UpsertContact inserts or replaces the contacts for a ward.
	UpsertContact(contact models.Contact) error

	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// InMemoryStore is a map-backed Store for tests and local development.
type InMemoryStore struct {
	mu        sync.RWMutex
	users     map[string]models.User
	incidents []models.Incident
	alerts    map[string]models.Alert
	contacts  map[string]models.Contact
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:    make(map[string]models.User),
		alerts:   make(map[string]models.Alert),
		contacts: make(map[string]models.Contact),
	}
}

func (s *InMemoryStore) GetUserByPhone(phone string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[phone]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *InMemoryStore) UpsertUser(user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.UpdatedAt = time.Now()
	s.users[user.Phone] = user
	return nil
}

func (s *InMemoryStore) SetUserLanguage(phone string, lang models.Language) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[phone]
	u.Phone = phone
	u.Lang = lang
	u.UpdatedAt = time.Now()
	s.users[phone] = u
	return nil
}

func (s *InMemoryStore) SetUserLocation(phone, ward, village string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[phone]
	u.Phone = phone
	u.Ward = ward
	u.Village = village
	u.UpdatedAt = time.Now()
	s.users[phone] = u
	return nil
}

func (s *InMemoryStore) CreateIncident(incident models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if incident.Status == "" {
		incident.Status = models.IncidentStatusNew
	}
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = time.Now()
	}
	s.incidents = append(s.incidents, incident)
	return nil
}

func (s *InMemoryStore) ListIncidents() ([]models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Incident, len(s.incidents))
	copy(out, s.incidents)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) GetAlertByWard(ward string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[ward]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *InMemoryStore) UpsertAlert(alert models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert.UpdatedAt = time.Now()
	s.alerts[alert.Ward] = alert
	return nil
}

func (s *InMemoryStore) GetContactByWard(ward string) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[ward]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *InMemoryStore) UpsertContact(contact models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	contact.UpdatedAt = time.Now()
	s.contacts[contact.Ward] = contact
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
