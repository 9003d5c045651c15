package ussd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Vulimwa/hifadhi-ussd/internal/cache"
	"github.com/Vulimwa/hifadhi-ussd/internal/i18n"
	"github.com/Vulimwa/hifadhi-ussd/internal/models"
	"github.com/Vulimwa/hifadhi-ussd/internal/sms"
	"github.com/Vulimwa/hifadhi-ussd/internal/store"
)

// TokenDelimiter separates the accumulated entries in the gateway's text
// field.
const TokenDelimiter = "*"

// DefaultCountryCode is prepended when canonicalizing local-format numbers.
const DefaultCountryCode = "+254"

// DefaultWards is the ward list used when none is configured.
var DefaultWards = []string{"Sagalla", "Marungu", "Kasigau", "Mbololo", "Wundanyi"}

// Opts holds configuration options for the Decoder.
type Opts struct {
	Wards       []string
	CountryCode string
	NewCaseID   func() string
}

// Option defines a configuration option for the Decoder.
type Option func(*Opts)

// WithWards sets the configured ward list.
func WithWards(wards []string) Option {
	return func(o *Opts) { o.Wards = wards }
}

// WithCountryCode sets the international prefix used for phone
// canonicalization.
func WithCountryCode(code string) Option {
	return func(o *Opts) { o.CountryCode = code }
}

// WithCaseIDGenerator injects the case id source, for deterministic tests.
func WithCaseIDGenerator(gen func() string) Option {
	return func(o *Opts) { o.NewCaseID = gen }
}

// Decoder is the entry point for USSD requests. It owns no session state;
// everything it needs is re-derived per request from the token history, the
// caller profile and the idempotency cache.
type Decoder struct {
	store       store.Store
	cache       cache.Cache
	catalog     *i18n.Catalog
	notifier    sms.Notifier
	wards       []string
	countryCode string
	newCaseID   func() string
}

// NewDecoder wires the decoder with its collaborators.
func NewDecoder(st store.Store, c cache.Cache, catalog *i18n.Catalog, notifier sms.Notifier, opts ...Option) *Decoder {
	cfg := Opts{
		Wards:       DefaultWards,
		CountryCode: DefaultCountryCode,
		NewCaseID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Decoder created", "wards", len(cfg.Wards), "country_code", cfg.CountryCode)
	return &Decoder{
		store:       st,
		cache:       c,
		catalog:     catalog,
		notifier:    notifier,
		wards:       cfg.Wards,
		countryCode: cfg.CountryCode,
		newCaseID:   cfg.NewCaseID,
	}
}

// NormalizePhone canonicalizes a phone number to international form:
// leading "+" kept as-is, a leading "0" swaps in the country code, a bare
// country code gains "+", anything else keeps digits only behind "+".
func (d *Decoder) NormalizePhone(phone string) string {
	p := strings.TrimSpace(phone)
	if p == "" {
		return ""
	}
	cc := strings.TrimPrefix(d.countryCode, "+")
	switch {
	case strings.HasPrefix(p, "+"):
		return p
	case strings.HasPrefix(p, "0"):
		return "+" + cc + p[1:]
	case strings.HasPrefix(p, cc):
		return "+" + p
	default:
		return "+" + digitsOnly(p)
	}
}

// SplitTokens splits the cumulative input on the delimiter, discarding
// empty entries.
func SplitTokens(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, TokenDelimiter)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// Handle decodes one gateway callback into a USSD response. It never
// returns an error; collaborator failures become localized terminal
// responses.
func (d *Decoder) Handle(ctx context.Context, req models.USSDRequest) models.USSDResponse {
	if err := req.Validate(); err != nil {
		slog.Warn("Decoder.Handle: malformed request", "error", err)
		return models.USSDResponse{Type: models.ResponseEnd, Body: "Invalid request"}
	}

	phone := d.NormalizePhone(req.PhoneNumber)
	tokens := SplitTokens(req.Text)
	slog.Debug("Decoder.Handle: processing request", "session_id", req.SessionID, "phone", phone, "tokens", len(tokens))

	caller, err := d.store.GetUserByPhone(phone)
	if err != nil {
		slog.Error("Decoder.Handle: user lookup failed", "error", err, "phone", phone)
		return d.terminalError(d.catalog.DefaultLanguage())
	}
	lang := d.catalog.DefaultLanguage()
	if caller != nil && models.IsValidLanguage(caller.Lang) {
		lang = caller.Lang
	}
	var callerCtx models.User
	if caller != nil {
		callerCtx = *caller
	}

	// A completed session answers retransmissions from the cache alone.
	if cached, ok, err := d.cache.Get(ctx, req.SessionID); err != nil {
		slog.Warn("Decoder.Handle: cache lookup failed, treating as miss", "error", err, "session_id", req.SessionID)
	} else if ok {
		slog.Debug("Decoder.Handle: idempotent replay", "session_id", req.SessionID)
		return models.USSDResponse{Type: models.ResponseEnd, Body: cached}
	}

	if len(tokens) == 0 {
		return d.con(lang, i18n.KeyRootMenu, i18n.Data{})
	}
	return d.dispatch(ctx, req.SessionID, phone, lang, callerCtx, tokens)
}

// dispatch selects the flow from the first token and converts the
// resolver's verdict into a protocol response. A root restart re-reads the
// following token as a fresh flow selector.
func (d *Decoder) dispatch(ctx context.Context, sessionID, phone string, lang models.Language, caller models.User, tokens []string) models.USSDResponse {
	flow, ok := FlowForSelector(tokens[0])
	if !ok {
		slog.Debug("Decoder.dispatch: unknown flow selector", "session_id", sessionID, "selector", tokens[0])
		return models.USSDResponse{Type: models.ResponseEnd, Body: d.catalog.Render(lang, i18n.KeyInvalid, i18n.Data{})}
	}

	verdict := Resolve(flow, tokens[1:], caller, d.wards)
	switch verdict.Kind {
	case VerdictPrompt, VerdictReject:
		data, err := d.enrichPromptData(verdict.Key, verdict.Data)
		if err != nil {
			slog.Error("Decoder.dispatch: prompt data lookup failed", "error", err, "session_id", sessionID, "flow", flow)
			return d.terminalError(lang)
		}
		return d.con(lang, verdict.Key, data)
	case VerdictRestartRoot:
		if len(verdict.Remaining) > 0 {
			return d.dispatch(ctx, sessionID, phone, lang, caller, verdict.Remaining)
		}
		return d.con(lang, i18n.KeyRootMenu, i18n.Data{})
	case VerdictComplete:
		return d.complete(ctx, sessionID, phone, lang, caller, flow, verdict.Fields)
	default:
		return d.terminalError(lang)
	}
}

// enrichPromptData fills in record data the resolver cannot know: the
// current alert or contacts for the ward shown in a menu.
func (d *Decoder) enrichPromptData(key i18n.Key, data i18n.Data) (i18n.Data, error) {
	switch key {
	case i18n.KeyAlertsMenu:
		alert, err := d.store.GetAlertByWard(data.Field(FieldWard))
		if err != nil {
			return data, err
		}
		data.Alert = alert
	case i18n.KeyContactsMenu:
		contact, err := d.store.GetContactByWard(data.Field(FieldWard))
		if err != nil {
			return data, err
		}
		data.Contact = contact
	}
	return data, nil
}

// complete runs the flow's side effect exactly once and caches the
// terminal response. Side-effect failures return a terminal error that is
// deliberately not cached, so a retry can attempt the write again.
func (d *Decoder) complete(ctx context.Context, sessionID, phone string, lang models.Language, caller models.User, flow Flow, fields Fields) models.USSDResponse {
	switch flow {
	case FlowToggleLanguage:
		newLang := lang.Toggle()
		if err := d.store.SetUserLanguage(phone, newLang); err != nil {
			slog.Error("Decoder.complete: language toggle failed", "error", err, "phone", phone)
			return d.terminalError(lang)
		}
		slog.Info("Decoder.complete: language toggled", "phone", phone, "lang", newLang)
		// Non-terminal completion: the session continues at the root menu,
		// so nothing is cached.
		return d.con(newLang, i18n.KeyLangToggled, i18n.Data{})

	case FlowRegister:
		user := models.User{
			Phone:   phone,
			Name:    fields[FieldName],
			Ward:    fields[FieldWard],
			Village: fields[FieldVillage],
			Lang:    lang,
		}
		if err := d.store.UpsertUser(user); err != nil {
			slog.Error("Decoder.complete: registration failed", "error", err, "phone", phone)
			return d.terminalError(lang)
		}
		slog.Info("Decoder.complete: user registered", "phone", phone, "ward", user.Ward)
		body := d.catalog.Render(lang, i18n.KeyRegSuccess, i18n.Data{Fields: fields})
		return d.end(ctx, sessionID, body)

	case FlowReportIncident:
		caseID := d.newCaseID()
		// Remember the reporter's location for future sessions; the
		// incident itself is the write that must not be lost.
		if err := d.store.SetUserLocation(phone, fields[FieldWard], fields[FieldVillage]); err != nil {
			slog.Warn("Decoder.complete: reporter location update failed", "error", err, "phone", phone)
		}
		incident := models.Incident{
			CaseID:  caseID,
			Phone:   phone,
			Species: models.Species(fields[FieldSpecies]),
			Urgency: models.Urgency(fields[FieldUrgency]),
			Type:    models.IncidentType(fields[FieldType]),
			Ward:    fields[FieldWard],
			Village: fields[FieldVillage],
			Note:    fields[FieldNote],
			Status:  models.IncidentStatusNew,
		}
		if err := d.store.CreateIncident(incident); err != nil {
			slog.Error("Decoder.complete: incident create failed", "error", err, "case_id", caseID)
			return d.terminalError(lang)
		}
		slog.Info("Decoder.complete: incident recorded", "case_id", caseID, "ward", incident.Ward, "species", incident.Species)
		body := d.catalog.Render(lang, i18n.KeyIncidentSaved, i18n.Data{Fields: map[string]string{"case_id": caseID}})
		return d.end(ctx, sessionID, body)

	case FlowCheckAlerts:
		alert, err := d.store.GetAlertByWard(fields[FieldWard])
		if err != nil {
			slog.Error("Decoder.complete: alert lookup failed", "error", err, "ward", fields[FieldWard])
			return d.terminalError(lang)
		}
		if err := d.notifier.Send(ctx, phone, sms.KindAlertSummary, d.catalog.AlertSummary(lang, alert)); err != nil {
			slog.Error("Decoder.complete: alert sms dispatch failed", "error", err, "phone", phone)
			return d.terminalError(lang)
		}
		return d.end(ctx, sessionID, d.catalog.Render(lang, i18n.KeySMSSent, i18n.Data{}))

	case FlowViewTips:
		if err := d.notifier.Send(ctx, phone, sms.KindTips, d.catalog.TipsSummary(lang)); err != nil {
			slog.Error("Decoder.complete: tips sms dispatch failed", "error", err, "phone", phone)
			return d.terminalError(lang)
		}
		return d.end(ctx, sessionID, d.catalog.Render(lang, i18n.KeySMSSent, i18n.Data{}))

	case FlowViewContacts:
		contact, err := d.store.GetContactByWard(fields[FieldWard])
		if err != nil {
			slog.Error("Decoder.complete: contact lookup failed", "error", err, "ward", fields[FieldWard])
			return d.terminalError(lang)
		}
		if err := d.notifier.Send(ctx, phone, sms.KindContacts, d.catalog.ContactSummary(lang, contact)); err != nil {
			slog.Error("Decoder.complete: contacts sms dispatch failed", "error", err, "phone", phone)
			return d.terminalError(lang)
		}
		return d.end(ctx, sessionID, d.catalog.Render(lang, i18n.KeySMSSent, i18n.Data{}))

	default:
		return d.terminalError(lang)
	}
}

func (d *Decoder) con(lang models.Language, key i18n.Key, data i18n.Data) models.USSDResponse {
	return models.USSDResponse{Type: models.ResponseContinue, Body: d.catalog.Render(lang, key, data)}
}

// end caches the terminal body under the session id before returning it.
func (d *Decoder) end(ctx context.Context, sessionID, body string) models.USSDResponse {
	if err := d.cache.Set(ctx, sessionID, body); err != nil {
		slog.Warn("Decoder.end: failed to cache terminal response", "error", err, "session_id", sessionID)
	}
	return models.USSDResponse{Type: models.ResponseEnd, Body: body}
}

// terminalError renders the localized failure message without caching it.
func (d *Decoder) terminalError(lang models.Language) models.USSDResponse {
	return models.USSDResponse{Type: models.ResponseEnd, Body: d.catalog.Render(lang, i18n.KeyError, i18n.Data{})}
}

// TimeoutResponse is the proactive fallback emitted when the handler's
// response budget is exhausted.
func (d *Decoder) TimeoutResponse(lang models.Language) models.USSDResponse {
	if !models.IsValidLanguage(lang) {
		lang = d.catalog.DefaultLanguage()
	}
	return models.USSDResponse{Type: models.ResponseEnd, Body: d.catalog.Render(lang, i18n.KeyTimeout, i18n.Data{})}
}

func digitsOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
