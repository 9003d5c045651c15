// Package models defines the core data structures for Hifadhi Link.
//
// It includes the user, incident, alert and contact records shared across
// modules, plus the USSD request/response types and validation errors.
package models

import (
	"errors"
	"time"
)

// Language identifies a supported catalog language.
type Language string

const (
	// LanguageEnglish is the default service language.
	LanguageEnglish Language = "EN"
	// LanguageSwahili is the alternate service language.
	LanguageSwahili Language = "SW"
)

// IsValidLanguage checks if the given language is supported.
func IsValidLanguage(l Language) bool {
	return l == LanguageEnglish || l == LanguageSwahili
}

// Toggle returns the other supported language.
func (l Language) Toggle() Language {
	if l == LanguageEnglish {
		return LanguageSwahili
	}
	return LanguageEnglish
}

// Species identifies the animal involved in an incident.
type Species string

const (
	SpeciesElephant Species = "elephant"
	SpeciesBuffalo  Species = "buffalo"
	SpeciesLion     Species = "lion"
	SpeciesOther    Species = "other"
)

// Urgency classifies how recent or pressing an incident is.
type Urgency string

const (
	UrgencyNow   Urgency = "now"
	UrgencyToday Urgency = "today"
	UrgencyPast  Urgency = "24h"
)

// IncidentType classifies what the incident affected.
type IncidentType string

const (
	IncidentTypeCrop      IncidentType = "crop"
	IncidentTypeLivestock IncidentType = "livestock"
	IncidentTypeFence     IncidentType = "fence"
	IncidentTypeHuman     IncidentType = "human"
)

// IncidentStatus tracks the triage state of a reported incident.
type IncidentStatus string

const (
	IncidentStatusNew    IncidentStatus = "new"
	IncidentStatusAck    IncidentStatus = "ack"
	IncidentStatusClosed IncidentStatus = "closed"
)

// RiskLevel grades the current wildlife movement risk for a ward.
type RiskLevel string

const (
	RiskLow  RiskLevel = "LOW"
	RiskMed  RiskLevel = "MED"
	RiskHigh RiskLevel = "HIGH"
)

// Validation constants for decoder input validation.
const (
	// MinNameLength is the minimum accepted length for a registration name.
	MinNameLength = 2
	// MaxVillageLength is the maximum accepted length for a village entry.
	MaxVillageLength = 24
	// MaxNoteLength is the maximum accepted length for an optional incident note.
	MaxNoteLength = 50
)

// Error variables for better error handling and testability.
var (
	ErrMissingSessionID   = errors.New("session id is required")
	ErrMissingPhoneNumber = errors.New("phone number is required")
	ErrEmptyPhoneNumber   = errors.New("phone number cannot be empty")
	ErrUnknownFlow        = errors.New("unknown flow selector")
)

// User is a registered (or partially known) caller profile.
// Ward and village, when present, let the decoder skip steps.
type User struct {
	Phone        string    `json:"phone"`
	Name         string    `json:"name,omitempty"`
	Ward         string    `json:"ward,omitempty"`
	Village      string    `json:"village,omitempty"`
	Lang         Language  `json:"lang,omitempty"`
	RegisteredAt time.Time `json:"registered_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Incident is a human-wildlife conflict report captured over USSD.
type Incident struct {
	CaseID    string         `json:"case_id"`
	Phone     string         `json:"phone"`
	Species   Species        `json:"species"`
	Urgency   Urgency        `json:"urgency"`
	Type      IncidentType   `json:"type"`
	Ward      string         `json:"ward"`
	Village   string         `json:"village"`
	Note      string         `json:"note,omitempty"`
	Status    IncidentStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// Alert is the current risk advisory for a ward.
type Alert struct {
	Ward      string    `json:"ward"`
	Risk      RiskLevel `json:"risk"`
	Window    string    `json:"window"`
	SummaryEN string    `json:"summary_en"`
	SummarySW string    `json:"summary_sw"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Summary returns the language-specific alert summary.
func (a Alert) Summary(lang Language) string {
	if lang == LanguageSwahili {
		return a.SummarySW
	}
	return a.SummaryEN
}

// Contact holds the emergency numbers published for a ward.
type Contact struct {
	Ward       string    `json:"ward"`
	KWSHotline string    `json:"kws_hotline"`
	WardAdmin  string    `json:"ward_admin"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// USSDRequest is the gateway callback payload for one session step.
type USSDRequest struct {
	SessionID   string `json:"sessionId"`
	ServiceCode string `json:"serviceCode"`
	PhoneNumber string `json:"phoneNumber"`
	Text        string `json:"text"`
}

// Validate checks the transport-required fields of a USSD request.
func (r *USSDRequest) Validate() error {
	if r.SessionID == "" {
		return ErrMissingSessionID
	}
	if r.PhoneNumber == "" {
		return ErrMissingPhoneNumber
	}
	return nil
}

// ResponseType is the protocol marker prefixed to every USSD reply.
type ResponseType string

const (
	// ResponseContinue tells the gateway to expect another input.
	ResponseContinue ResponseType = "CON"
	// ResponseEnd terminates the session.
	ResponseEnd ResponseType = "END"
)

// USSDResponse is the single-line reply returned to the gateway.
type USSDResponse struct {
	Type ResponseType
	Body string
}

// Render formats the response as the gateway wire line "CON ..." / "END ...".
func (r USSDResponse) Render() string {
	t := r.Type
	if t != ResponseContinue && t != ResponseEnd {
		t = ResponseEnd
	}
	body := r.Body
	if body == "" {
		body = "Service error"
	}
	return string(t) + " " + body
}

// IsTerminal reports whether the response ends the session.
func (r USSDResponse) IsTerminal() bool {
	return r.Type == ResponseEnd
}

// API response types for consistent admin JSON responses.

// APIStatus represents the status field of an admin API response.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
