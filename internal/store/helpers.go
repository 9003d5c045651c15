package store

import (
	"database/sql"

	"github.com/Vulimwa/hifadhi-ussd/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUser scans a user row with its nullable columns.
func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var name, ward, village, lang sql.NullString
	var registeredAt, updatedAt sql.NullTime
	err := row.Scan(&u.Phone, &name, &ward, &village, &lang, &registeredAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.Name = name.String
	u.Ward = ward.String
	u.Village = village.String
	u.Lang = models.Language(lang.String)
	if registeredAt.Valid {
		u.RegisteredAt = registeredAt.Time
	}
	if updatedAt.Valid {
		u.UpdatedAt = updatedAt.Time
	}
	return &u, nil
}

// scanIncident scans an incident row.
func scanIncident(row rowScanner) (models.Incident, error) {
	var inc models.Incident
	var species, urgency, typ, status string
	var ward, village, note sql.NullString
	err := row.Scan(&inc.CaseID, &inc.Phone, &species, &urgency, &typ,
		&ward, &village, &note, &status, &inc.CreatedAt)
	if err != nil {
		return inc, err
	}
	inc.Species = models.Species(species)
	inc.Urgency = models.Urgency(urgency)
	inc.Type = models.IncidentType(typ)
	inc.Status = models.IncidentStatus(status)
	inc.Ward = ward.String
	inc.Village = village.String
	inc.Note = note.String
	return inc, nil
}

// scanAlert scans an alert row.
func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	var risk, window, summaryEN, summarySW, updatedBy sql.NullString
	err := row.Scan(&a.Ward, &risk, &window, &summaryEN, &summarySW, &updatedBy)
	if err != nil {
		return nil, err
	}
	a.Risk = models.RiskLevel(risk.String)
	a.Window = window.String
	a.SummaryEN = summaryEN.String
	a.SummarySW = summarySW.String
	a.UpdatedBy = updatedBy.String
	return &a, nil
}

// scanContact scans a contact row.
func scanContact(row rowScanner) (*models.Contact, error) {
	var c models.Contact
	var hotline, admin sql.NullString
	err := row.Scan(&c.Ward, &hotline, &admin)
	if err != nil {
		return nil, err
	}
	c.KWSHotline = hotline.String
	c.WardAdmin = admin.String
	return &c, nil
}
